package core

import (
	"errors"
	"fmt"
	"math/big"
	"sync"

	"github.com/wyfeng/evmcore/core/state"
	"github.com/wyfeng/evmcore/core/types"
)

var (
	ErrNoGenesis       = errors.New("genesis block not provided")
	ErrBlockNotFound   = errors.New("block not found")
	ErrStateNotFound   = errors.New("state not found for block")
	ErrBlockTooLarge   = errors.New("block RLP size exceeds limit")
	ErrTxRootMismatch  = errors.New("transactions root mismatch")
	ErrWithdrawalsRootMismatch = errors.New("withdrawals root mismatch")
)

// MaxRlpBlockSize bounds the RLP-encoded size of a block: 10 MiB minus a
// 2 MiB margin reserved for the enclosing consensus-layer payload.
const MaxRlpBlockSize = 10_485_760 - 2_097_152

// blockHashWindow is how far back the BLOCKHASH opcode can reach.
const blockHashWindow = 255

// Blockchain manages the canonical chain of blocks in memory, applying the
// state transition to each inserted block and keeping the head state.
type Blockchain struct {
	mu        sync.RWMutex
	config    *ChainConfig
	processor *StateProcessor
	validator *BlockValidator

	// Block cache: hash -> block.
	blockCache map[types.Hash]*types.Block

	// Canonical number -> hash for quick lookups.
	canonCache map[uint64]types.Hash

	// Genesis state (used as base for re-execution).
	genesisState *state.MemoryStateDB

	// Current state after processing the head block.
	currentState *state.MemoryStateDB

	// The genesis block.
	genesis *types.Block

	// Current head block.
	currentBlock *types.Block
}

// NewBlockchain creates a new blockchain initialized with the given genesis
// block. The statedb should contain the genesis state (pre-funded accounts,
// system predeploys, etc.).
func NewBlockchain(config *ChainConfig, genesis *types.Block, statedb *state.MemoryStateDB) (*Blockchain, error) {
	if genesis == nil {
		return nil, ErrNoGenesis
	}

	bc := &Blockchain{
		config:       config,
		processor:    NewStateProcessor(config),
		validator:    NewBlockValidator(config),
		blockCache:   make(map[types.Hash]*types.Block),
		canonCache:   make(map[uint64]types.Hash),
		genesisState: statedb,
		currentState: statedb.Copy(),
		genesis:      genesis,
		currentBlock: genesis,
	}
	bc.processor.SetGetHash(bc.getHashLocked)

	hash := genesis.Hash()
	bc.blockCache[hash] = genesis
	bc.canonCache[genesis.NumberU64()] = hash

	return bc, nil
}

// InsertBlock validates, executes, and inserts a single block. A rejected
// block leaves the chain and its state untouched.
func (bc *Blockchain) InsertBlock(block *types.Block) error {
	bc.mu.Lock()
	defer bc.mu.Unlock()
	return bc.insertBlock(block)
}

// insertBlock is the internal insert without locking.
func (bc *Blockchain) insertBlock(block *types.Block) error {
	hash := block.Hash()

	// Skip if already known.
	if _, ok := bc.blockCache[hash]; ok {
		return nil
	}

	// Reject oversized blocks before any further work.
	if encoded, err := block.EncodeRLP(); err != nil {
		return fmt.Errorf("encode block %d: %w", block.NumberU64(), err)
	} else if len(encoded) > MaxRlpBlockSize {
		return fmt.Errorf("%w: %d > %d", ErrBlockTooLarge, len(encoded), MaxRlpBlockSize)
	}

	header := block.Header()

	// Find parent.
	parent := bc.blockCache[header.ParentHash]
	if parent == nil {
		return fmt.Errorf("%w: parent %v", ErrUnknownParent, header.ParentHash)
	}

	// Validate header against parent, then the body against the header.
	if err := bc.validator.ValidateHeader(header, parent.Header()); err != nil {
		return err
	}
	if err := bc.validator.ValidateBody(block); err != nil {
		return err
	}

	// Execute against the state at the parent. Execution happens on a
	// private copy, so a failure below leaves the chain state untouched.
	statedb, err := bc.stateAt(parent)
	if err != nil {
		return fmt.Errorf("state at parent %d: %w", parent.NumberU64(), err)
	}

	receipts, requests, err := bc.execute(block, statedb)
	if err != nil {
		return fmt.Errorf("process block %d: %w", block.NumberU64(), err)
	}

	// Compare every derived commitment against the header.
	if err := bc.verifyExecutionOutputs(block, statedb, receipts, requests); err != nil {
		return err
	}

	// Commit: store the block and advance the head.
	bc.blockCache[hash] = block

	num := block.NumberU64()
	if num > bc.currentBlock.NumberU64() {
		bc.canonCache[num] = hash
		bc.currentBlock = block
		bc.currentState = statedb
	}

	return nil
}

// execute runs a block's transactions (and request harvesting post-Prague)
// against the given state.
func (bc *Blockchain) execute(block *types.Block, statedb *state.MemoryStateDB) ([]*types.Receipt, types.Requests, error) {
	if bc.config != nil && bc.config.IsPrague(block.Time()) {
		result, err := bc.processor.ProcessWithRequests(block, statedb)
		if err != nil {
			return nil, nil, err
		}
		return result.Receipts, result.Requests, nil
	}
	receipts, err := bc.processor.Process(block, statedb)
	return receipts, nil, err
}

// verifyExecutionOutputs compares the post-execution commitments (gas used,
// state root, bloom, transaction/receipt/withdrawals roots, requests hash)
// with the block header. Any mismatch invalidates the block.
func (bc *Blockchain) verifyExecutionOutputs(block *types.Block, statedb *state.MemoryStateDB, receipts []*types.Receipt, requests types.Requests) error {
	header := block.Header()

	var gasUsed uint64
	if len(receipts) > 0 {
		gasUsed = receipts[len(receipts)-1].CumulativeGasUsed
	}
	if header.GasUsed != gasUsed {
		return fmt.Errorf("%w: header %d, computed %d", ErrSTGasUsedMismatch, header.GasUsed, gasUsed)
	}

	if root := statedb.GetRoot(); header.Root != root {
		return fmt.Errorf("%w: header %s, computed %s", ErrSTStateRootMismatch, header.Root.Hex(), root.Hex())
	}

	if bloom := types.CreateBloom(receipts); header.Bloom != bloom {
		return ErrSTBloomMismatch
	}

	if txRoot := TransactionsTrieRoot(block.Transactions()); header.TxHash != txRoot {
		return fmt.Errorf("%w: header %s, computed %s", ErrTxRootMismatch, header.TxHash.Hex(), txRoot.Hex())
	}

	if receiptRoot := ReceiptTrieRoot(receipts); header.ReceiptHash != receiptRoot {
		return fmt.Errorf("%w: header %s, computed %s", ErrSTReceiptRootMismatch, header.ReceiptHash.Hex(), receiptRoot.Hex())
	}

	if bc.config != nil && bc.config.IsShanghai(block.Time()) {
		wRoot := deriveWithdrawalsRoot(block.Withdrawals())
		if header.WithdrawalsHash == nil || *header.WithdrawalsHash != wRoot {
			return fmt.Errorf("%w: computed %s", ErrWithdrawalsRootMismatch, wRoot.Hex())
		}
	}

	return bc.validator.ValidateRequests(header, requests)
}

// InsertChain inserts a chain of blocks sequentially. Blocks must be in
// ascending order; each must connect to its parent. Returns the number of
// blocks inserted and the first error encountered.
func (bc *Blockchain) InsertChain(blocks []*types.Block) (int, error) {
	bc.mu.Lock()
	defer bc.mu.Unlock()

	for i, block := range blocks {
		if err := bc.insertBlock(block); err != nil {
			return i, err
		}
	}
	return len(blocks), nil
}

// GetBlock retrieves a block by hash, or nil if not found.
func (bc *Blockchain) GetBlock(hash types.Hash) *types.Block {
	bc.mu.RLock()
	defer bc.mu.RUnlock()
	return bc.blockCache[hash]
}

// GetBlockByNumber retrieves the canonical block for a given number.
func (bc *Blockchain) GetBlockByNumber(number uint64) *types.Block {
	bc.mu.RLock()
	defer bc.mu.RUnlock()
	hash, ok := bc.canonCache[number]
	if !ok {
		return nil
	}
	return bc.blockCache[hash]
}

// CurrentBlock returns the head of the canonical chain.
func (bc *Blockchain) CurrentBlock() *types.Block {
	bc.mu.RLock()
	defer bc.mu.RUnlock()
	return bc.currentBlock
}

// HasBlock checks if a block with the given hash exists.
func (bc *Blockchain) HasBlock(hash types.Hash) bool {
	bc.mu.RLock()
	defer bc.mu.RUnlock()
	_, ok := bc.blockCache[hash]
	return ok
}

// SetHead rewinds the canonical chain to the given block number. Blocks
// above the target number are removed from the canonical index.
func (bc *Blockchain) SetHead(number uint64) error {
	bc.mu.Lock()
	defer bc.mu.Unlock()

	target, ok := bc.canonCache[number]
	if !ok {
		return fmt.Errorf("%w: no canonical block at %d", ErrBlockNotFound, number)
	}

	current := bc.currentBlock.NumberU64()
	for n := current; n > number; n-- {
		if hash, ok := bc.canonCache[n]; ok {
			delete(bc.canonCache, n)
			delete(bc.blockCache, hash)
		}
	}

	bc.currentBlock = bc.blockCache[target]

	// Re-derive state by re-executing from genesis.
	statedb, err := bc.stateAt(bc.currentBlock)
	if err != nil {
		return fmt.Errorf("re-derive state at %d: %w", number, err)
	}
	bc.currentState = statedb

	return nil
}

// GetHashFn returns a hash lookup for the BLOCKHASH opcode, serving the
// canonical hash of any of the most recent blockHashWindow blocks.
func (bc *Blockchain) GetHashFn() func(uint64) types.Hash {
	return func(number uint64) types.Hash {
		bc.mu.RLock()
		defer bc.mu.RUnlock()
		return bc.getHashLocked(number)
	}
}

// getHashLocked resolves number -> canonical hash under an already-held (or
// insertion-time) lock, honoring the lookback window relative to the head.
func (bc *Blockchain) getHashLocked(number uint64) types.Hash {
	head := bc.currentBlock.NumberU64()
	if number > head || head-number > blockHashWindow {
		return types.Hash{}
	}
	if hash, ok := bc.canonCache[number]; ok {
		return hash
	}
	return types.Hash{}
}

// Genesis returns the genesis block.
func (bc *Blockchain) Genesis() *types.Block {
	return bc.genesis
}

// Config returns the chain configuration.
func (bc *Blockchain) Config() *ChainConfig {
	return bc.config
}

// State returns a copy of the current state.
func (bc *Blockchain) State() *state.MemoryStateDB {
	bc.mu.RLock()
	defer bc.mu.RUnlock()
	return bc.currentState.Copy()
}

// ChainLength returns the length of the canonical chain (genesis = 1).
func (bc *Blockchain) ChainLength() uint64 {
	bc.mu.RLock()
	defer bc.mu.RUnlock()
	return bc.currentBlock.NumberU64() + 1
}

// stateAt returns the state after executing up to (and including) the given
// block. For the genesis block this is the genesis state directly; any other
// block is re-executed from genesis.
func (bc *Blockchain) stateAt(block *types.Block) (*state.MemoryStateDB, error) {
	if block.Hash() == bc.genesis.Hash() {
		return bc.genesisState.Copy(), nil
	}
	if block.Hash() == bc.currentBlock.Hash() {
		return bc.currentState.Copy(), nil
	}

	// Collect the chain of blocks from genesis to this block.
	var chain []*types.Block
	current := block
	for current.Hash() != bc.genesis.Hash() {
		chain = append(chain, current)
		parent, ok := bc.blockCache[current.ParentHash()]
		if !ok {
			return nil, fmt.Errorf("%w: missing ancestor at %v", ErrStateNotFound, current.ParentHash())
		}
		current = parent
	}

	// Re-execute from genesis.
	statedb := bc.genesisState.Copy()
	for i := len(chain) - 1; i >= 0; i-- {
		b := chain[i]
		if _, _, err := bc.execute(b, statedb); err != nil {
			return nil, fmt.Errorf("re-execute block %d: %w", b.NumberU64(), err)
		}
	}
	return statedb, nil
}

// makeGenesis creates a bare genesis block with the given gas limit and
// base fee, suitable for test chains.
func makeGenesis(gasLimit uint64, baseFee *big.Int) *types.Block {
	header := &types.Header{
		Number:     big.NewInt(0),
		GasLimit:   gasLimit,
		GasUsed:    0,
		Time:       0,
		Difficulty: new(big.Int),
		BaseFee:    baseFee,
		UncleHash:  EmptyUncleHash,
	}
	return types.NewBlock(header, nil)
}
