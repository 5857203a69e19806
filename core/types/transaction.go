package types

import (
	"math/big"
	"sync/atomic"
	"unsafe"
)

// Transaction envelope type tags. The tag prefixes the typed encodings;
// legacy transactions carry none.
const (
	LegacyTxType     = 0x00
	AccessListTxType = 0x01
	DynamicFeeTxType = 0x02
	BlobTxType       = 0x03
	SetCodeTxType    = 0x04
)

// Transaction wraps one of the five payload shapes behind a stable API.
// The wrapper owns its payload (the constructor copies it) and memoizes
// the hash, size, and recovered sender.
type Transaction struct {
	inner TxData
	hash  atomic.Pointer[Hash]
	size  atomic.Uint64
	from  atomic.Pointer[Address]
}

// SetSender caches the sender address on the transaction.
func (tx *Transaction) SetSender(addr Address) {
	a := addr
	tx.from.Store(&a)
}

// Sender returns the cached sender address, or nil if signature recovery
// has not run yet.
func (tx *Transaction) Sender() *Address {
	return tx.from.Load()
}

// TxData is the per-type payload behind a Transaction. The accessors
// normalize the fee fields: legacy shapes answer the tip/fee-cap getters
// with their gas price.
type TxData interface {
	txType() byte
	chainID() *big.Int
	accessList() AccessList
	data() []byte
	gas() uint64
	gasPrice() *big.Int
	gasTipCap() *big.Int
	gasFeeCap() *big.Int
	value() *big.Int
	nonce() uint64
	to() *Address

	copy() TxData
}

// AccessList pre-warms addresses and storage slots (EIP-2930).
type AccessList []AccessTuple

// AccessTuple is one warmed address with its warmed storage slots.
type AccessTuple struct {
	Address     Address
	StorageKeys []Hash
}

// Authorization is one EIP-7702 delegation entry of a SetCodeTx.
type Authorization struct {
	ChainID *big.Int
	Address Address
	Nonce   uint64
	V       *big.Int
	R       *big.Int
	S       *big.Int
}

// --- Type 0x00: legacy ---

// LegacyTx is the original transaction shape. Its V value doubles as the
// EIP-155 chain-id carrier.
type LegacyTx struct {
	Nonce    uint64
	GasPrice *big.Int
	Gas      uint64
	To       *Address
	Value    *big.Int
	Data     []byte
	V, R, S  *big.Int
}

func (tx *LegacyTx) txType() byte            { return LegacyTxType }
func (tx *LegacyTx) chainID() *big.Int       { return deriveChainID(tx.V) }
func (tx *LegacyTx) accessList() AccessList  { return nil }
func (tx *LegacyTx) data() []byte            { return tx.Data }
func (tx *LegacyTx) gas() uint64             { return tx.Gas }
func (tx *LegacyTx) gasPrice() *big.Int      { return tx.GasPrice }
func (tx *LegacyTx) gasTipCap() *big.Int     { return tx.GasPrice }
func (tx *LegacyTx) gasFeeCap() *big.Int     { return tx.GasPrice }
func (tx *LegacyTx) value() *big.Int         { return tx.Value }
func (tx *LegacyTx) nonce() uint64           { return tx.Nonce }
func (tx *LegacyTx) to() *Address            { return tx.To }

func (tx *LegacyTx) copy() TxData {
	return &LegacyTx{
		Nonce:    tx.Nonce,
		GasPrice: bigCopy(tx.GasPrice),
		Gas:      tx.Gas,
		To:       copyAddressPtr(tx.To),
		Value:    bigCopy(tx.Value),
		Data:     copyBytes(tx.Data),
		V:        bigCopy(tx.V),
		R:        bigCopy(tx.R),
		S:        bigCopy(tx.S),
	}
}

// --- Type 0x01: access list (EIP-2930) ---

type AccessListTx struct {
	ChainID    *big.Int
	Nonce      uint64
	GasPrice   *big.Int
	Gas        uint64
	To         *Address
	Value      *big.Int
	Data       []byte
	AccessList AccessList
	V, R, S    *big.Int
}

func (tx *AccessListTx) txType() byte            { return AccessListTxType }
func (tx *AccessListTx) chainID() *big.Int       { return tx.ChainID }
func (tx *AccessListTx) accessList() AccessList  { return tx.AccessList }
func (tx *AccessListTx) data() []byte            { return tx.Data }
func (tx *AccessListTx) gas() uint64             { return tx.Gas }
func (tx *AccessListTx) gasPrice() *big.Int      { return tx.GasPrice }
func (tx *AccessListTx) gasTipCap() *big.Int     { return tx.GasPrice }
func (tx *AccessListTx) gasFeeCap() *big.Int     { return tx.GasPrice }
func (tx *AccessListTx) value() *big.Int         { return tx.Value }
func (tx *AccessListTx) nonce() uint64           { return tx.Nonce }
func (tx *AccessListTx) to() *Address            { return tx.To }

func (tx *AccessListTx) copy() TxData {
	return &AccessListTx{
		ChainID:    bigCopy(tx.ChainID),
		Nonce:      tx.Nonce,
		GasPrice:   bigCopy(tx.GasPrice),
		Gas:        tx.Gas,
		To:         copyAddressPtr(tx.To),
		Value:      bigCopy(tx.Value),
		Data:       copyBytes(tx.Data),
		AccessList: copyAccessList(tx.AccessList),
		V:          bigCopy(tx.V),
		R:          bigCopy(tx.R),
		S:          bigCopy(tx.S),
	}
}

// --- Type 0x02: dynamic fee (EIP-1559) ---

type DynamicFeeTx struct {
	ChainID    *big.Int
	Nonce      uint64
	GasTipCap  *big.Int // maxPriorityFeePerGas
	GasFeeCap  *big.Int // maxFeePerGas
	Gas        uint64
	To         *Address
	Value      *big.Int
	Data       []byte
	AccessList AccessList
	V, R, S    *big.Int
}

func (tx *DynamicFeeTx) txType() byte            { return DynamicFeeTxType }
func (tx *DynamicFeeTx) chainID() *big.Int       { return tx.ChainID }
func (tx *DynamicFeeTx) accessList() AccessList  { return tx.AccessList }
func (tx *DynamicFeeTx) data() []byte            { return tx.Data }
func (tx *DynamicFeeTx) gas() uint64             { return tx.Gas }
func (tx *DynamicFeeTx) gasPrice() *big.Int      { return tx.GasFeeCap }
func (tx *DynamicFeeTx) gasTipCap() *big.Int     { return tx.GasTipCap }
func (tx *DynamicFeeTx) gasFeeCap() *big.Int     { return tx.GasFeeCap }
func (tx *DynamicFeeTx) value() *big.Int         { return tx.Value }
func (tx *DynamicFeeTx) nonce() uint64           { return tx.Nonce }
func (tx *DynamicFeeTx) to() *Address            { return tx.To }

func (tx *DynamicFeeTx) copy() TxData {
	return &DynamicFeeTx{
		ChainID:    bigCopy(tx.ChainID),
		Nonce:      tx.Nonce,
		GasTipCap:  bigCopy(tx.GasTipCap),
		GasFeeCap:  bigCopy(tx.GasFeeCap),
		Gas:        tx.Gas,
		To:         copyAddressPtr(tx.To),
		Value:      bigCopy(tx.Value),
		Data:       copyBytes(tx.Data),
		AccessList: copyAccessList(tx.AccessList),
		V:          bigCopy(tx.V),
		R:          bigCopy(tx.R),
		S:          bigCopy(tx.S),
	}
}

// --- Type 0x03: blob (EIP-4844) ---

// BlobTx carries blob commitments. Its To is a plain Address: a blob
// transaction can never create a contract.
type BlobTx struct {
	ChainID    *big.Int
	Nonce      uint64
	GasTipCap  *big.Int
	GasFeeCap  *big.Int
	Gas        uint64
	To         Address
	Value      *big.Int
	Data       []byte
	AccessList AccessList
	BlobFeeCap *big.Int
	BlobHashes []Hash
	V, R, S    *big.Int
}

func (tx *BlobTx) txType() byte            { return BlobTxType }
func (tx *BlobTx) chainID() *big.Int       { return tx.ChainID }
func (tx *BlobTx) accessList() AccessList  { return tx.AccessList }
func (tx *BlobTx) data() []byte            { return tx.Data }
func (tx *BlobTx) gas() uint64             { return tx.Gas }
func (tx *BlobTx) gasPrice() *big.Int      { return tx.GasFeeCap }
func (tx *BlobTx) gasTipCap() *big.Int     { return tx.GasTipCap }
func (tx *BlobTx) gasFeeCap() *big.Int     { return tx.GasFeeCap }
func (tx *BlobTx) value() *big.Int         { return tx.Value }
func (tx *BlobTx) nonce() uint64           { return tx.Nonce }
func (tx *BlobTx) to() *Address            { addr := tx.To; return &addr }

func (tx *BlobTx) copy() TxData {
	cpy := &BlobTx{
		ChainID:    bigCopy(tx.ChainID),
		Nonce:      tx.Nonce,
		GasTipCap:  bigCopy(tx.GasTipCap),
		GasFeeCap:  bigCopy(tx.GasFeeCap),
		Gas:        tx.Gas,
		To:         tx.To,
		Value:      bigCopy(tx.Value),
		Data:       copyBytes(tx.Data),
		AccessList: copyAccessList(tx.AccessList),
		BlobFeeCap: bigCopy(tx.BlobFeeCap),
		V:          bigCopy(tx.V),
		R:          bigCopy(tx.R),
		S:          bigCopy(tx.S),
	}
	if tx.BlobHashes != nil {
		cpy.BlobHashes = append([]Hash(nil), tx.BlobHashes...)
	}
	return cpy
}

// --- Type 0x04: set code (EIP-7702) ---

// SetCodeTx installs delegation designators on the authorizing accounts.
// Like BlobTx, it always has a recipient.
type SetCodeTx struct {
	ChainID           *big.Int
	Nonce             uint64
	GasTipCap         *big.Int
	GasFeeCap         *big.Int
	Gas               uint64
	To                Address
	Value             *big.Int
	Data              []byte
	AccessList        AccessList
	AuthorizationList []Authorization
	V, R, S           *big.Int
}

func (tx *SetCodeTx) txType() byte            { return SetCodeTxType }
func (tx *SetCodeTx) chainID() *big.Int       { return tx.ChainID }
func (tx *SetCodeTx) accessList() AccessList  { return tx.AccessList }
func (tx *SetCodeTx) data() []byte            { return tx.Data }
func (tx *SetCodeTx) gas() uint64             { return tx.Gas }
func (tx *SetCodeTx) gasPrice() *big.Int      { return tx.GasFeeCap }
func (tx *SetCodeTx) gasTipCap() *big.Int     { return tx.GasTipCap }
func (tx *SetCodeTx) gasFeeCap() *big.Int     { return tx.GasFeeCap }
func (tx *SetCodeTx) value() *big.Int         { return tx.Value }
func (tx *SetCodeTx) nonce() uint64           { return tx.Nonce }
func (tx *SetCodeTx) to() *Address            { addr := tx.To; return &addr }

func (tx *SetCodeTx) copy() TxData {
	cpy := &SetCodeTx{
		ChainID:    bigCopy(tx.ChainID),
		Nonce:      tx.Nonce,
		GasTipCap:  bigCopy(tx.GasTipCap),
		GasFeeCap:  bigCopy(tx.GasFeeCap),
		Gas:        tx.Gas,
		To:         tx.To,
		Value:      bigCopy(tx.Value),
		Data:       copyBytes(tx.Data),
		AccessList: copyAccessList(tx.AccessList),
		V:          bigCopy(tx.V),
		R:          bigCopy(tx.R),
		S:          bigCopy(tx.S),
	}
	if tx.AuthorizationList != nil {
		cpy.AuthorizationList = make([]Authorization, len(tx.AuthorizationList))
		for i, auth := range tx.AuthorizationList {
			cpy.AuthorizationList[i] = Authorization{
				ChainID: bigCopy(auth.ChainID),
				Address: auth.Address,
				Nonce:   auth.Nonce,
				V:       bigCopy(auth.V),
				R:       bigCopy(auth.R),
				S:       bigCopy(auth.S),
			}
		}
	}
	return cpy
}

// --- Wrapper API ---

// NewTransaction wraps a payload in a Transaction, copying it.
func NewTransaction(inner TxData) *Transaction {
	return &Transaction{inner: inner.copy()}
}

// Type returns the envelope type tag.
func (tx *Transaction) Type() uint8 { return tx.inner.txType() }

// ChainId returns the chain id the transaction commits to.
func (tx *Transaction) ChainId() *big.Int { return tx.inner.chainID() }

// AccessList returns the transaction's access list, nil for legacy.
func (tx *Transaction) AccessList() AccessList { return tx.inner.accessList() }

// Data returns the call input or init code.
func (tx *Transaction) Data() []byte { return tx.inner.data() }

// Gas returns the gas limit.
func (tx *Transaction) Gas() uint64 { return tx.inner.gas() }

// GasPrice returns the legacy gas price, or the fee cap for typed txs.
func (tx *Transaction) GasPrice() *big.Int { return tx.inner.gasPrice() }

// GasTipCap returns maxPriorityFeePerGas.
func (tx *Transaction) GasTipCap() *big.Int { return tx.inner.gasTipCap() }

// GasFeeCap returns maxFeePerGas.
func (tx *Transaction) GasFeeCap() *big.Int { return tx.inner.gasFeeCap() }

// Value returns the transferred amount in wei.
func (tx *Transaction) Value() *big.Int { return tx.inner.value() }

// Nonce returns the sender nonce.
func (tx *Transaction) Nonce() uint64 { return tx.inner.nonce() }

// To returns the recipient, or nil for contract creation.
func (tx *Transaction) To() *Address { return tx.inner.to() }

// AuthorizationList returns the EIP-7702 authorization entries; nil for
// every type except SetCodeTx.
func (tx *Transaction) AuthorizationList() []Authorization {
	if setCode, ok := tx.inner.(*SetCodeTx); ok {
		return setCode.AuthorizationList
	}
	return nil
}

// BlobGasFeeCap returns maxFeePerBlobGas; nil for non-blob types.
func (tx *Transaction) BlobGasFeeCap() *big.Int {
	if blob, ok := tx.inner.(*BlobTx); ok {
		return blob.BlobFeeCap
	}
	return nil
}

// BlobHashes returns the versioned blob hashes; nil for non-blob types.
func (tx *Transaction) BlobHashes() []Hash {
	if blob, ok := tx.inner.(*BlobTx); ok {
		return blob.BlobHashes
	}
	return nil
}

// BlobGas returns the blob gas the transaction consumes: one
// GAS_PER_BLOB (131072) unit per blob hash.
func (tx *Transaction) BlobGas() uint64 {
	if blob, ok := tx.inner.(*BlobTx); ok {
		return uint64(len(blob.BlobHashes)) * 131072
	}
	return 0
}

// RawSignatureValues returns the transaction's V, R, S.
func (tx *Transaction) RawSignatureValues() (v, r, s *big.Int) {
	switch t := tx.inner.(type) {
	case *LegacyTx:
		return t.V, t.R, t.S
	case *AccessListTx:
		return t.V, t.R, t.S
	case *DynamicFeeTx:
		return t.V, t.R, t.S
	case *BlobTx:
		return t.V, t.R, t.S
	case *SetCodeTx:
		return t.V, t.R, t.S
	default:
		return nil, nil, nil
	}
}

// Hash returns the transaction hash: keccak256 of the (type-prefixed)
// encoding, memoized on first use.
func (tx *Transaction) Hash() Hash {
	if h := tx.hash.Load(); h != nil {
		return *h
	}
	h := tx.hashRLP()
	tx.hash.Store(&h)
	return h
}

// Size estimates the wrapper's in-memory footprint in bytes.
func (tx *Transaction) Size() uint64 {
	if cached := tx.size.Load(); cached != 0 {
		return cached
	}
	size := uint64(unsafe.Sizeof(*tx))
	tx.size.Store(size)
	return size
}

// --- Copy helpers ---

func bigCopy(v *big.Int) *big.Int {
	if v == nil {
		return nil
	}
	return new(big.Int).Set(v)
}

func copyAddressPtr(a *Address) *Address {
	if a == nil {
		return nil
	}
	cpy := *a
	return &cpy
}

func copyBytes(b []byte) []byte {
	if b == nil {
		return nil
	}
	return append([]byte(nil), b...)
}

func copyAccessList(al AccessList) AccessList {
	if al == nil {
		return nil
	}
	cpy := make(AccessList, len(al))
	for i, tuple := range al {
		cpy[i] = AccessTuple{
			Address:     tuple.Address,
			StorageKeys: append([]Hash(nil), tuple.StorageKeys...),
		}
	}
	return cpy
}

// deriveChainID recovers the chain id folded into a legacy V per EIP-155:
// v = chainID*2 + 35 + recoveryBit. Pre-EIP-155 values 27/28 carry none.
func deriveChainID(v *big.Int) *big.Int {
	if v == nil {
		return new(big.Int)
	}
	if v.BitLen() <= 8 {
		val := v.Uint64()
		if val == 27 || val == 28 {
			return new(big.Int)
		}
	}
	chainID := new(big.Int).Sub(v, big.NewInt(35))
	return chainID.Div(chainID, big.NewInt(2))
}
