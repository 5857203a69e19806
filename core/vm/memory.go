package vm

import "math/big"

// Memory is one frame's byte-addressable scratch space. It only ever
// grows, and only through Resize; the expansion gas for a given size has
// always been charged before the bytes exist.
type Memory struct {
	store       []byte
	lastGasCost uint64
}

// NewMemory returns an empty frame memory.
func NewMemory() *Memory {
	return &Memory{}
}

// Set copies value into [offset, offset+size). The region must already
// be inside the allocated store.
func (m *Memory) Set(offset, size uint64, value []byte) {
	if size == 0 {
		return
	}
	if offset+size > uint64(len(m.store)) {
		panic("memory: out of bounds write")
	}
	copy(m.store[offset:offset+size], value)
}

// Set32 writes val right-aligned into the 32 bytes at offset.
func (m *Memory) Set32(offset uint64, val *big.Int) {
	if offset+32 > uint64(len(m.store)) {
		panic("memory: out of bounds write")
	}
	b := val.Bytes()
	if len(b) > 32 {
		b = b[len(b)-32:]
	}
	word := m.store[offset : offset+32]
	for i := range word {
		word[i] = 0
	}
	copy(word[32-len(b):], b)
}

// Resize grows the store to at least size bytes.
func (m *Memory) Resize(size uint64) {
	if uint64(len(m.store)) < size {
		m.store = append(m.store, make([]byte, size-uint64(len(m.store)))...)
	}
}

// Get returns a copy of [offset, offset+size), zero-filled where the
// range runs past the allocated store.
func (m *Memory) Get(offset, size int64) []byte {
	if size == 0 {
		return nil
	}
	out := make([]byte, size)
	if offset < int64(len(m.store)) {
		copy(out, m.store[offset:])
	}
	return out
}

// GetPtr returns the backing bytes of [offset, offset+size) without
// copying. The caller must not hold the slice across a Resize.
func (m *Memory) GetPtr(offset, size int64) []byte {
	if size == 0 {
		return nil
	}
	return m.store[offset : offset+size]
}

// Len returns the allocated size in bytes.
func (m *Memory) Len() int {
	return len(m.store)
}

// Data exposes the full backing store. Used by tracers.
func (m *Memory) Data() []byte {
	return m.store
}
