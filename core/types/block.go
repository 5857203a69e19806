package types

import (
	"math/big"
	"sync/atomic"
	"unsafe"
)

// Withdrawal is a consensus-layer balance credit (EIP-4895). Amount is
// denominated in Gwei.
type Withdrawal struct {
	Index          uint64
	ValidatorIndex uint64
	Address        Address
	Amount         uint64
}

// Body holds everything in a block besides the header. Withdrawals is nil
// for pre-Shanghai blocks and non-nil (possibly empty) afterwards.
type Body struct {
	Transactions []*Transaction
	Uncles       []*Header
	Withdrawals  []*Withdrawal
}

// Block pairs a header with its body. Blocks are immutable once built;
// the constructor deep-copies its inputs and accessors hand out copies of
// anything mutable.
type Block struct {
	header *Header
	body   Body

	hash atomic.Pointer[Hash]
	size atomic.Uint64
}

// NewBlock assembles a block from a header and body, copying both. A nil
// body yields an empty block.
func NewBlock(header *Header, body *Body) *Block {
	b := &Block{header: copyHeader(header)}
	if body == nil {
		return b
	}

	b.body.Transactions = append([]*Transaction(nil), body.Transactions...)

	b.body.Uncles = make([]*Header, len(body.Uncles))
	for i, uncle := range body.Uncles {
		b.body.Uncles[i] = copyHeader(uncle)
	}

	if body.Withdrawals != nil {
		b.body.Withdrawals = make([]*Withdrawal, len(body.Withdrawals))
		for i, w := range body.Withdrawals {
			wCopy := *w
			b.body.Withdrawals[i] = &wCopy
		}
	}
	return b
}

// Header returns a copy of the block header.
func (b *Block) Header() *Header { return copyHeader(b.header) }

// Body returns the block body.
func (b *Block) Body() *Body {
	return &Body{
		Transactions: b.body.Transactions,
		Uncles:       b.body.Uncles,
		Withdrawals:  b.body.Withdrawals,
	}
}

// Transactions returns the block's transactions in order.
func (b *Block) Transactions() []*Transaction { return b.body.Transactions }

// Uncles returns the block's ommer headers.
func (b *Block) Uncles() []*Header { return b.body.Uncles }

// Withdrawals returns the block's withdrawals, nil before Shanghai.
func (b *Block) Withdrawals() []*Withdrawal { return b.body.Withdrawals }

// Number returns the block number.
func (b *Block) Number() *big.Int {
	if b.header.Number == nil {
		return new(big.Int)
	}
	return new(big.Int).Set(b.header.Number)
}

// NumberU64 returns the block number as a uint64.
func (b *Block) NumberU64() uint64 {
	if b.header.Number == nil {
		return 0
	}
	return b.header.Number.Uint64()
}

// GasLimit returns the block gas limit.
func (b *Block) GasLimit() uint64 { return b.header.GasLimit }

// GasUsed returns the gas consumed by the block.
func (b *Block) GasUsed() uint64 { return b.header.GasUsed }

// Time returns the block timestamp.
func (b *Block) Time() uint64 { return b.header.Time }

// Difficulty returns the block difficulty, zero post-merge.
func (b *Block) Difficulty() *big.Int {
	if b.header.Difficulty == nil {
		return new(big.Int)
	}
	return new(big.Int).Set(b.header.Difficulty)
}

// BaseFee returns the EIP-1559 base fee, nil before London.
func (b *Block) BaseFee() *big.Int {
	if b.header.BaseFee == nil {
		return nil
	}
	return new(big.Int).Set(b.header.BaseFee)
}

// ParentHash returns the parent block hash.
func (b *Block) ParentHash() Hash { return b.header.ParentHash }

// TxHash returns the transactions trie root.
func (b *Block) TxHash() Hash { return b.header.TxHash }

// ReceiptHash returns the receipt trie root.
func (b *Block) ReceiptHash() Hash { return b.header.ReceiptHash }

// UncleHash returns the ommers hash.
func (b *Block) UncleHash() Hash { return b.header.UncleHash }

// Root returns the post-state root.
func (b *Block) Root() Hash { return b.header.Root }

// Coinbase returns the fee recipient.
func (b *Block) Coinbase() Address { return b.header.Coinbase }

// Bloom returns the block's logs bloom.
func (b *Block) Bloom() Bloom { return b.header.Bloom }

// MixDigest returns the prevRandao/mix-hash field.
func (b *Block) MixDigest() Hash { return b.header.MixDigest }

// Nonce returns the legacy PoW nonce.
func (b *Block) Nonce() BlockNonce { return b.header.Nonce }

// Extra returns the header extra data.
func (b *Block) Extra() []byte { return b.header.Extra }

// Hash returns the block hash: the keccak256 of the header encoding.
func (b *Block) Hash() Hash {
	if cached := b.hash.Load(); cached != nil {
		return *cached
	}
	h := b.header.Hash()
	b.hash.Store(&h)
	return h
}

// Size estimates the block's in-memory footprint in bytes.
func (b *Block) Size() uint64 {
	if cached := b.size.Load(); cached != 0 {
		return cached
	}
	s := unsafe.Sizeof(*b) + unsafe.Sizeof(*b.header)
	for _, tx := range b.body.Transactions {
		s += uintptr(tx.Size())
	}
	for _, uncle := range b.body.Uncles {
		s += uintptr(uncle.Size())
	}
	size := uint64(s)
	b.size.Store(size)
	return size
}

// ptrCopy clones an optional scalar header field.
func ptrCopy[T any](p *T) *T {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}

// copyHeader deep-copies a header field by field, leaving the new
// header's hash/size memos unset.
func copyHeader(h *Header) *Header {
	cpy := Header{
		ParentHash:  h.ParentHash,
		UncleHash:   h.UncleHash,
		Coinbase:    h.Coinbase,
		Root:        h.Root,
		TxHash:      h.TxHash,
		ReceiptHash: h.ReceiptHash,
		Bloom:       h.Bloom,
		GasLimit:    h.GasLimit,
		GasUsed:     h.GasUsed,
		Time:        h.Time,
		MixDigest:   h.MixDigest,
		Nonce:       h.Nonce,

		WithdrawalsHash:     ptrCopy(h.WithdrawalsHash),
		BlobGasUsed:         ptrCopy(h.BlobGasUsed),
		ExcessBlobGas:       ptrCopy(h.ExcessBlobGas),
		ParentBeaconRoot:    ptrCopy(h.ParentBeaconRoot),
		RequestsHash:        ptrCopy(h.RequestsHash),
		BlockAccessListHash: ptrCopy(h.BlockAccessListHash),
		CalldataGasUsed:     ptrCopy(h.CalldataGasUsed),
		CalldataExcessGas:   ptrCopy(h.CalldataExcessGas),
	}

	if h.Difficulty != nil {
		cpy.Difficulty = new(big.Int).Set(h.Difficulty)
	}
	if h.Number != nil {
		cpy.Number = new(big.Int).Set(h.Number)
	}
	if h.BaseFee != nil {
		cpy.BaseFee = new(big.Int).Set(h.BaseFee)
	}
	if len(h.Extra) > 0 {
		cpy.Extra = append([]byte(nil), h.Extra...)
	}
	return &cpy
}
