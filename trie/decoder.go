package trie

import (
	"errors"
	"fmt"
)

var errDecodeInvalid = errors.New("trie: invalid encoded node")

// decodeNode parses an RLP-encoded trie node. A node is always a list of
// either two items (short node) or seventeen (branch). hash is the node's
// known hash reference, threaded through for the memo.
func decodeNode(hash hashNode, data []byte) (node, error) {
	if len(data) == 0 {
		return nil, errDecodeInvalid
	}

	elems, err := decodeRLPList(data)
	if err != nil {
		return nil, fmt.Errorf("trie decode: %w", err)
	}

	switch len(elems) {
	case 2:
		return decodeShort(hash, elems)
	case 17:
		return decodeFull(hash, elems)
	default:
		return nil, fmt.Errorf("%w: expected 2 or 17 elements, got %d", errDecodeInvalid, len(elems))
	}
}

// decodeShort parses [path, payload]: a leaf when the compact path carries
// the terminator, an extension otherwise.
func decodeShort(hash hashNode, elems [][]byte) (node, error) {
	key := compactToHex(elems[0])
	flags := nodeFlag{hash: hash}

	if hasTerm(key) {
		return &shortNode{Key: key, Val: valueNode(elems[1]), flags: flags}, nil
	}

	child, err := decodeRef(elems[1])
	if err != nil {
		return nil, err
	}
	return &shortNode{Key: key, Val: child, flags: flags}, nil
}

// decodeFull parses a 17-item branch: sixteen child references and the
// value slot.
func decodeFull(hash hashNode, elems [][]byte) (node, error) {
	n := &fullNode{flags: nodeFlag{hash: hash}}
	for i := 0; i < 16; i++ {
		if len(elems[i]) == 0 {
			continue
		}
		child, err := decodeRef(elems[i])
		if err != nil {
			return nil, err
		}
		n.Children[i] = child
	}
	if len(elems[16]) > 0 {
		n.Children[16] = valueNode(elems[16])
	}
	return n, nil
}

// decodeRef resolves a child slot: exactly 32 bytes is a hash reference;
// anything shorter is a node inlined in place (nodes under 32 encoded
// bytes are embedded rather than hashed).
func decodeRef(data []byte) (node, error) {
	switch {
	case len(data) == 0:
		return nil, nil
	case len(data) == 32:
		return hashNode(data), nil
	default:
		return decodeNode(nil, data)
	}
}

// bigEndianLen reads an RLP long-form length of lenLen bytes.
func bigEndianLen(data []byte, lenLen int) int {
	var length int
	for i := 0; i < lenLen; i++ {
		length = length<<8 | int(data[i])
	}
	return length
}

// decodeRLPList splits the payload of a top-level RLP list into its raw
// items. String items are returned as their content; nested lists are
// returned whole (header included) so decodeRef can recurse into them.
func decodeRLPList(data []byte) ([][]byte, error) {
	if len(data) == 0 {
		return nil, errDecodeInvalid
	}

	tag := data[0]
	if tag < 0xc0 {
		return nil, fmt.Errorf("%w: expected list, got string prefix 0x%02x", errDecodeInvalid, tag)
	}

	var payload []byte
	if tag <= 0xf7 {
		length := int(tag - 0xc0)
		if 1+length > len(data) {
			return nil, errDecodeInvalid
		}
		payload = data[1 : 1+length]
	} else {
		lenLen := int(tag - 0xf7)
		if 1+lenLen > len(data) {
			return nil, errDecodeInvalid
		}
		length := bigEndianLen(data[1:1+lenLen], lenLen)
		if 1+lenLen+length > len(data) {
			return nil, errDecodeInvalid
		}
		payload = data[1+lenLen : 1+lenLen+length]
	}

	var elems [][]byte
	for len(payload) > 0 {
		elem, rest, err := decodeOneElement(payload)
		if err != nil {
			return nil, err
		}
		elems = append(elems, elem)
		payload = rest
	}
	return elems, nil
}

// decodeOneElement consumes one item from the front of data. Strings come
// back unwrapped; lists come back with their header so the caller can
// hand them to decodeNode.
func decodeOneElement(data []byte) (content []byte, rest []byte, err error) {
	if len(data) == 0 {
		return nil, nil, errDecodeInvalid
	}

	tag := data[0]
	switch {
	case tag <= 0x7f:
		return data[:1], data[1:], nil

	case tag == 0x80:
		return nil, data[1:], nil

	case tag <= 0xb7:
		length := int(tag - 0x80)
		if 1+length > len(data) {
			return nil, nil, errDecodeInvalid
		}
		return data[1 : 1+length], data[1+length:], nil

	case tag <= 0xbf:
		lenLen := int(tag - 0xb7)
		if 1+lenLen > len(data) {
			return nil, nil, errDecodeInvalid
		}
		length := bigEndianLen(data[1:1+lenLen], lenLen)
		end := 1 + lenLen + length
		if end > len(data) || end < 0 {
			return nil, nil, errDecodeInvalid
		}
		return data[1+lenLen : end], data[end:], nil

	case tag <= 0xf7:
		end := 1 + int(tag-0xc0)
		if end > len(data) {
			return nil, nil, errDecodeInvalid
		}
		return data[:end], data[end:], nil

	default:
		lenLen := int(tag - 0xf7)
		if 1+lenLen > len(data) {
			return nil, nil, errDecodeInvalid
		}
		length := bigEndianLen(data[1:1+lenLen], lenLen)
		end := 1 + lenLen + length
		if end > len(data) || end < 0 {
			return nil, nil, errDecodeInvalid
		}
		return data[:end], data[end:], nil
	}
}
