package core

import (
	"crypto/ecdsa"
	"math/big"
	"testing"

	"github.com/wyfeng/evmcore/core/state"
	"github.com/wyfeng/evmcore/core/types"
	"github.com/wyfeng/evmcore/crypto"
)

// ---------------------------------------------------------------------------
// Chain construction helpers shared by the end-to-end and validation tests.
// ---------------------------------------------------------------------------

// testGenesisState builds the standard test genesis state: the system
// predeploys installed, plus the given balances.
func testGenesisState(alloc map[types.Address]*big.Int) *state.MemoryStateDB {
	statedb := state.NewMemoryStateDB()
	ApplyGenesisAlloc(statedb, SystemContractAlloc())
	for addr, bal := range alloc {
		statedb.AddBalance(addr, bal)
	}
	return statedb
}

// testChain creates a blockchain with a bare genesis block and the standard
// test genesis state.
func testChain(t *testing.T) (*Blockchain, *state.MemoryStateDB) {
	t.Helper()
	statedb := testGenesisState(nil)
	genesis := makeGenesis(30_000_000, big.NewInt(1))
	bc, err := NewBlockchain(TestConfig, genesis, statedb)
	if err != nil {
		t.Fatalf("NewBlockchain: %v", err)
	}
	return bc, statedb
}

// e2eChain sets up a blockchain with genesis state where the given accounts
// are pre-funded.
func e2eChain(t *testing.T, gasLimit uint64, baseFee *big.Int, alloc map[types.Address]*big.Int) *Blockchain {
	t.Helper()
	statedb := testGenesisState(alloc)
	genesis := makeGenesis(gasLimit, baseFee)
	bc, err := NewBlockchain(TestConfig, genesis, statedb)
	if err != nil {
		t.Fatalf("NewBlockchain: %v", err)
	}
	return bc
}

// ether returns n * 1e18.
func ether(n int64) *big.Int {
	return new(big.Int).Mul(big.NewInt(n), new(big.Int).SetUint64(1e18))
}

// gwei returns n * 1e9.
func gwei(n int64) *big.Int {
	return new(big.Int).Mul(big.NewInt(n), big.NewInt(1e9))
}

// signLegacyTx creates a legacy transaction signed with the given private key.
// It sets the EIP-155 V value so that the signing hash includes the chainID.
func signLegacyTx(t *testing.T, key *ecdsa.PrivateKey, chainID *big.Int, inner *types.LegacyTx) *types.Transaction {
	t.Helper()
	// For the signing hash to include chainID (EIP-155), V must already
	// encode it: V = chainID*2 + 35 (recovery id filled in below).
	inner.V = new(big.Int).Add(new(big.Int).Mul(chainID, big.NewInt(2)), big.NewInt(35))
	inner.R = new(big.Int)
	inner.S = new(big.Int)

	tx := types.NewTransaction(inner)
	sigHash := tx.SigningHash()

	sig, err := crypto.Sign(sigHash[:], key)
	if err != nil {
		t.Fatalf("crypto.Sign: %v", err)
	}

	r := new(big.Int).SetBytes(sig[0:32])
	s := new(big.Int).SetBytes(sig[32:64])
	recoveryID := sig[64] // 0 or 1

	// EIP-155 V = chainID * 2 + 35 + recovery_id
	v := new(big.Int).Add(
		new(big.Int).Add(new(big.Int).Mul(chainID, big.NewInt(2)), big.NewInt(35)),
		new(big.Int).SetUint64(uint64(recoveryID)),
	)

	inner.V = v
	inner.R = r
	inner.S = s

	signed := types.NewTransaction(inner)
	signed.SetSender(crypto.PubkeyToAddress(key.PublicKey))
	return signed
}

// signDynamicFeeTx creates an EIP-1559 transaction signed with the given key.
func signDynamicFeeTx(t *testing.T, key *ecdsa.PrivateKey, inner *types.DynamicFeeTx) *types.Transaction {
	t.Helper()
	// Typed transactions: V is 0 or 1 (recovery id).
	inner.V = new(big.Int)
	inner.R = new(big.Int)
	inner.S = new(big.Int)

	tx := types.NewTransaction(inner)
	sigHash := tx.SigningHash()

	sig, err := crypto.Sign(sigHash[:], key)
	if err != nil {
		t.Fatalf("crypto.Sign: %v", err)
	}

	inner.V = new(big.Int).SetUint64(uint64(sig[64]))
	inner.R = new(big.Int).SetBytes(sig[0:32])
	inner.S = new(big.Int).SetBytes(sig[32:64])

	signed := types.NewTransaction(inner)
	signed.SetSender(crypto.PubkeyToAddress(key.PublicKey))
	return signed
}

// TxPoolReader supplies pending transactions to the test block builder.
type TxPoolReader interface {
	Pending() []*types.Transaction
}

// simpleTxPool is a minimal TxPoolReader for testing.
type simpleTxPool struct {
	txs []*types.Transaction
}

func (p *simpleTxPool) Pending() []*types.Transaction {
	return p.txs
}

// buildBlockOnState assembles a child of parent containing txs, executing
// them on statedb to fill in every consensus-critical header field (gas
// used, state root, bloom, tx/receipt/withdrawals roots, requests hash).
func buildBlockOnState(config *ChainConfig, parent *types.Block, statedb *state.MemoryStateDB, txs []*types.Transaction, coinbase types.Address) (*types.Block, []*types.Receipt, error) {
	parentHeader := parent.Header()

	var blobGasUsed uint64
	for _, tx := range txs {
		blobGasUsed += CountBlobGas(tx)
	}
	childTime := parentHeader.Time + 12
	excessBlobGas := NextBlockExcessBlobGas(config, parentHeader, childTime)
	emptyWithdrawalsHash := types.EmptyRootHash

	header := &types.Header{
		ParentHash:      parent.Hash(),
		Number:          new(big.Int).Add(parentHeader.Number, big.NewInt(1)),
		GasLimit:        parentHeader.GasLimit,
		Time:            childTime,
		Coinbase:        coinbase,
		Difficulty:      new(big.Int),
		BaseFee:         CalcBaseFee(parentHeader),
		UncleHash:       EmptyUncleHash,
		WithdrawalsHash: &emptyWithdrawalsHash,
		BlobGasUsed:     &blobGasUsed,
		ExcessBlobGas:   &excessBlobGas,
	}

	body := &types.Body{
		Transactions: txs,
		Withdrawals:  []*types.Withdrawal{},
	}

	// Execute on the provided state to derive the remaining header fields.
	proc := NewStateProcessor(config)
	draft := types.NewBlock(header, body)
	result, err := proc.ProcessWithRequests(draft, statedb)
	if err != nil {
		return nil, nil, err
	}
	receipts := result.Receipts

	if len(receipts) > 0 {
		header.GasUsed = receipts[len(receipts)-1].CumulativeGasUsed
	}
	header.Root = statedb.GetRoot()
	header.Bloom = types.CreateBloom(receipts)
	header.TxHash = TransactionsTrieRoot(txs)
	header.ReceiptHash = ReceiptTrieRoot(receipts)
	if config != nil && config.IsPrague(childTime) {
		requestsHash := types.ComputeRequestsHash(result.Requests)
		header.RequestsHash = &requestsHash
	}

	return types.NewBlock(header, body), receipts, nil
}

// buildAndInsert builds a block from the pool's pending transactions on top
// of the current head and inserts it into the chain.
func buildAndInsert(t *testing.T, bc *Blockchain, pool TxPoolReader, feeRecipient types.Address) (*types.Block, []*types.Receipt) {
	t.Helper()
	parent := bc.CurrentBlock()
	statedb := bc.State()
	block, receipts, err := buildBlockOnState(bc.Config(), parent, statedb, pool.Pending(), feeRecipient)
	if err != nil {
		t.Fatalf("build block: %v", err)
	}
	if err := bc.InsertBlock(block); err != nil {
		t.Fatalf("InsertBlock: %v", err)
	}
	return block, receipts
}

// makeBlock builds a valid child block of parent with the given transactions,
// executing them from the standard test genesis state. It is intended for
// blocks built directly on a testChain genesis.
func makeBlock(parent *types.Block, txs []*types.Transaction) *types.Block {
	statedb := testGenesisState(nil)
	block, _, err := buildBlockOnState(TestConfig, parent, statedb, txs, types.Address{})
	if err != nil {
		panic(err)
	}
	return block
}
