package types

// BloomByteLength is the bloom filter width in bytes (256).
const BloomByteLength = BloomLength

// bloomBitLength is the bloom filter width in bits (2048).
const bloomBitLength = BloomByteLength * 8

// BytesToBloom builds a Bloom from a byte slice, padding or truncating
// on the left to exactly 256 bytes.
func BytesToBloom(b []byte) Bloom {
	var bloom Bloom
	bloom.SetBytes(b)
	return bloom
}

// Bytes returns a copy of the bloom's backing bytes.
func (b Bloom) Bytes() []byte {
	out := make([]byte, BloomByteLength)
	copy(out, b[:])
	return out
}

// SetBytes loads the bloom from data, keeping the low-order bytes when
// data is wider than the filter.
func (b *Bloom) SetBytes(data []byte) {
	*b = Bloom{}
	if len(data) > BloomByteLength {
		data = data[len(data)-BloomByteLength:]
	}
	copy(b[BloomByteLength-len(data):], data)
}

// Add inserts data into the bloom.
func (b *Bloom) Add(data []byte) {
	BloomAdd(b, data)
}

// Test reports whether data may be in the bloom. A true answer can be a
// false positive.
func (b Bloom) Test(data []byte) bool {
	return BloomContains(b, data)
}

// Or folds another bloom into the receiver.
func (b *Bloom) Or(other Bloom) {
	for i := range b {
		b[i] |= other[i]
	}
}

// bloomBits resolves data to its three (byte index, bit position) pairs
// inside the 256-byte array.
func bloomBits(data []byte) [3][2]uint {
	var result [3][2]uint
	for i, bit := range bloom9(data) {
		result[i][0] = uint(BloomByteLength - 1 - int(bit/8))
		result[i][1] = bit % 8
	}
	return result
}
