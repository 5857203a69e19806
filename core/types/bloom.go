package types

import (
	"encoding/binary"

	"golang.org/x/crypto/sha3"
)

// BloomBitLength is the width of the logs bloom in bits (2048).
const BloomBitLength = 8 * BloomLength

// bloom9 derives the three bloom bit indices for an entry: keccak256 the
// data, take the first three 16-bit big-endian words, and keep the low 11
// bits of each.
func bloom9(data []byte) [3]uint {
	d := sha3.NewLegacyKeccak256()
	d.Write(data)
	digest := d.Sum(nil)
	var bits [3]uint
	for i := range bits {
		bits[i] = uint(binary.BigEndian.Uint16(digest[2*i:])) & (BloomBitLength - 1)
	}
	return bits
}

// bloomByteBit maps a bloom bit index to its byte offset and bit mask.
// Bit 0 is the least-significant bit of the LAST byte: the bloom is one
// 2048-bit big-endian integer laid out over 256 bytes.
func bloomByteBit(bit uint) (int, byte) {
	return BloomLength - 1 - int(bit/8), 1 << (bit % 8)
}

// BloomAdd sets the three bits derived from data in the bloom filter.
func BloomAdd(bloom *Bloom, data []byte) {
	for _, bit := range bloom9(data) {
		idx, mask := bloomByteBit(bit)
		bloom[idx] |= mask
	}
}

// LogsBloom folds a set of logs into one bloom: every log contributes its
// address and each of its topics.
func LogsBloom(logs []*Log) Bloom {
	var bloom Bloom
	for _, log := range logs {
		BloomAdd(&bloom, log.Address.Bytes())
		for _, topic := range log.Topics {
			BloomAdd(&bloom, topic.Bytes())
		}
	}
	return bloom
}

// BloomContains reports whether all three bits for data are set. False
// positives are possible; false negatives are not.
func BloomContains(bloom Bloom, data []byte) bool {
	for _, bit := range bloom9(data) {
		idx, mask := bloomByteBit(bit)
		if bloom[idx]&mask == 0 {
			return false
		}
	}
	return true
}

// CreateBloom ORs together the blooms of every receipt in a block.
func CreateBloom(receipts []*Receipt) Bloom {
	var bloom Bloom
	for _, receipt := range receipts {
		for i := range receipt.Bloom {
			bloom[i] |= receipt.Bloom[i]
		}
	}
	return bloom
}
