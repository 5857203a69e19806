package types

import (
	"math/big"
	"sync/atomic"
	"unsafe"
)

// Header is an Ethereum block header. Field order matches the consensus
// RLP layout; the trailing optional pointers appear in the encoding only
// from the fork that introduced them.
type Header struct {
	ParentHash  Hash
	UncleHash   Hash
	Coinbase    Address
	Root        Hash
	TxHash      Hash
	ReceiptHash Hash
	Bloom       Bloom
	Difficulty  *big.Int
	Number      *big.Int
	GasLimit    uint64
	GasUsed     uint64
	Time        uint64
	Extra       []byte
	MixDigest   Hash
	Nonce       BlockNonce

	// EIP-1559 (London).
	BaseFee *big.Int

	// EIP-4895 (Shanghai): beacon chain push withdrawals.
	WithdrawalsHash *Hash

	// EIP-4844 (Cancun): blob gas accounting.
	BlobGasUsed   *uint64
	ExcessBlobGas *uint64

	// EIP-4788 (Cancun): beacon block root in the EVM.
	ParentBeaconRoot *Hash

	// EIP-7685 (Prague): execution layer requests commitment.
	RequestsHash *Hash

	// EIP-7928: block-level access list.
	BlockAccessListHash *Hash

	// EIP-7706: separate calldata gas dimension.
	CalldataGasUsed   *uint64
	CalldataExcessGas *uint64

	// Memoized hash and size; never serialized.
	hash atomic.Pointer[Hash]
	size atomic.Uint64
}

// Hash returns the keccak256 of the header's consensus RLP encoding,
// computing it once and caching the result.
func (h *Header) Hash() Hash {
	if cached := h.hash.Load(); cached != nil {
		return *cached
	}
	hash := computeHeaderHash(h)
	h.hash.Store(&hash)
	return hash
}

// Size estimates the header's in-memory footprint in bytes.
func (h *Header) Size() uint64 {
	if cached := h.size.Load(); cached != 0 {
		return cached
	}
	s := unsafe.Sizeof(*h) + uintptr(len(h.Extra))
	for _, v := range []*big.Int{h.Difficulty, h.Number, h.BaseFee} {
		if v != nil {
			s += unsafe.Sizeof(*v)
		}
	}
	size := uint64(s)
	h.size.Store(size)
	return size
}
