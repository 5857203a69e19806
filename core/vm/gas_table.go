package vm

import (
	"math"
	"math/big"

	"github.com/wyfeng/evmcore/core/types"
)

// Gas cost constants for EIP-2929 (cold/warm access), EIP-3529 (reduced refunds),
// and EIP-1559 gas metering.
const (
	ColdAccountAccessCost uint64 = 2600
	ColdSloadCost         uint64 = 2100
	WarmStorageReadCost   uint64 = 100
	CallStipend           uint64 = 2300 // free gas for CALL with value
	MaxCallDepth          int    = 1024

	// Memory expansion costs.
	MemoryGasCostPerWord uint64 = 3

	// EIP-3529: max gas refund is gasUsed/5 (was gasUsed/2 before London).
	MaxRefundQuotient uint64 = 5

	// EIP-3529: SSTORE_CLEARS_SCHEDULE refund = SSTORE_RESET_GAS + ACCESS_LIST_STORAGE_KEY_COST.
	// SSTORE_RESET_GAS = 5000 - COLD_SLOAD_COST = 2900
	// ACCESS_LIST_STORAGE_KEY_COST = 1900
	SstoreClearsScheduleRefund uint64 = 4800

	// SELFDESTRUCT gas.
	SelfdestructGas          uint64 = 5000
	CreateBySelfdestructGas  uint64 = 25000 // sending to a new account
	CreateDataGas            uint64 = 200   // per byte of created contract code
	MaxCodeSize              int    = 24576 // EIP-170: max contract size
	MaxInitCodeSize          int    = 49152 // EIP-3860: max init code size (2 * MaxCodeSize)

	// EIP-3860: initcode word gas.
	InitCodeWordGas uint64 = 2

	// CALL gas constants.
	CallGasFraction      uint64 = 64    // 63/64 rule (EIP-150)
	CallValueTransferGas uint64 = 9000  // paid for non-zero value transfer
	CallNewAccountGas    uint64 = 25000 // paid when calling a non-existent account
)

// MemoryGasCost calculates the gas cost for memory expansion.
// Gas for memory = 3 * numWords + numWords^2 / 512
// Returns math.MaxUint64 on overflow to signal out-of-gas.
func MemoryGasCost(memSize uint64) uint64 {
	if memSize == 0 {
		return 0
	}
	words := toWordSize(memSize)
	// Overflow check: words * words could overflow for large memory sizes.
	// sqrt(MaxUint64) ~ 4.29e9, so if words > ~4.29 billion, words*words overflows.
	if words > 181_000 {
		// At 181_000 words (5.8 MB), gas cost is ~64 billion, well beyond any block
		// gas limit. Return MaxUint64 to signal out-of-gas.
		return math.MaxUint64
	}
	linear := words * MemoryGasCostPerWord
	quadratic := words * words / 512
	return linear + quadratic
}

// MaxMemorySize caps the addressable EVM memory per frame. Expansion past
// this size can never be paid for within a block's gas, so it is rejected
// outright rather than priced.
const MaxMemorySize uint64 = 32 * 1024 * 1024

// MemoryCost returns the cost of expanding memory from oldSize to newSize
// bytes. The second return is false when the requested size exceeds
// MaxMemorySize or overflows.
func MemoryCost(oldSize, newSize uint64) (uint64, bool) {
	if newSize > MaxMemorySize {
		return 0, false
	}
	if newSize <= oldSize {
		return 0, true
	}
	return MemoryGasCost(newSize) - MemoryGasCost(oldSize), true
}

// MemoryExpansionGas returns the gas cost for expanding memory from oldSize to newSize.
func MemoryExpansionGas(oldSize, newSize uint64) uint64 {
	if newSize <= oldSize {
		return 0
	}
	return MemoryGasCost(newSize) - MemoryGasCost(oldSize)
}

// toWordSize rounds up to the next 32-byte word.
func toWordSize(size uint64) uint64 {
	if size == 0 {
		return 0
	}
	// Guard against overflow: if size > MaxUint64-31, size+31 wraps around.
	if size > math.MaxUint64-31 {
		return math.MaxUint64/32 + 1 // ceiling division result
	}
	return (size + 31) / 32
}

// CallGas computes the gas available for a CALL-family opcode per the 63/64 rule (EIP-150).
// The caller gets to keep 1/64 of its remaining gas.
func CallGas(availableGas, requestedGas uint64) uint64 {
	maxGas := availableGas - availableGas/CallGasFraction
	if requestedGas > maxGas {
		return maxGas
	}
	return requestedGas
}

// SstoreGas computes the gas cost and refund for an SSTORE operation.
// Per EIP-2200 / EIP-3529 (post-London):
//   - If current == new: WarmStorageReadCost (100 gas, no-op)
//   - If current != new:
//     - If original == current: SstoreSet (20000) or SstoreReset (2900)
//     - If original != current: WarmStorageReadCost (100)
//   - Refund logic per EIP-3529 (SstoreClearsScheduleRefund = 4800).
func SstoreGas(original, current, newVal [32]byte, cold bool) (gas uint64, refund int64) {
	if cold {
		gas += ColdSloadCost
	}

	if current == newVal {
		// No-op: current value equals new value.
		gas += WarmStorageReadCost
		return gas, 0
	}

	if original == current {
		if isZero(original) {
			// Create slot: 0 -> non-zero.
			gas += GasSstoreSet
			return gas, 0
		}
		// Update slot: original == current != new.
		gas += GasSstoreReset
		if isZero(newVal) {
			// Delete slot: non-zero -> zero. Refund per EIP-3529.
			refund = int64(SstoreClearsScheduleRefund)
		}
		return gas, refund
	}

	// Dirty slot: original != current (already modified in this transaction).
	gas += WarmStorageReadCost

	// Calculate refund adjustments for dirty slots.
	if !isZero(original) {
		if isZero(current) && !isZero(newVal) {
			// Undo a previous clear: subtract the refund that was previously given.
			refund -= int64(SstoreClearsScheduleRefund)
		} else if !isZero(current) && isZero(newVal) {
			// Clear a dirty non-zero slot: add refund.
			refund += int64(SstoreClearsScheduleRefund)
		}
	}
	if original == newVal {
		// Restoring to original value.
		if isZero(original) {
			// Was 0, set to X, now back to 0: refund the set cost minus the warm read.
			refund += int64(GasSstoreSet) - int64(WarmStorageReadCost)
		} else {
			// Was X, changed to Y, now back to X: refund the reset cost minus the warm read.
			refund += int64(GasSstoreReset) - int64(WarmStorageReadCost)
		}
	}
	return gas, refund
}

// LogGas computes the gas cost for a LOG operation.
// Returns: GasLog + numTopics*GasLogTopic + dataSize*GasLogData.
func LogGas(numTopics uint64, dataSize uint64) uint64 {
	gas := safeAdd(GasLog, safeMul(numTopics, GasLogTopic))
	return safeAdd(gas, safeMul(dataSize, GasLogData))
}

// Sha3Gas computes the gas cost for a SHA3/KECCAK256 operation.
// Returns: GasKeccak256 + ceil(dataSize/32)*GasKeccak256Word.
func Sha3Gas(dataSize uint64) uint64 {
	words := toWordSize(dataSize)
	return safeAdd(GasKeccak256, safeMul(words, GasKeccak256Word))
}

// ExpGas computes the gas cost for the EXP operation.
// Returns: GasSlowStep(10) + 50 * byte_length(exponent).
func ExpGas(exponent *big.Int) uint64 {
	if exponent.Sign() == 0 {
		return GasSlowStep
	}
	byteLen := uint64((exponent.BitLen() + 7) / 8)
	return safeAdd(GasSlowStep, safeMul(50, byteLen))
}

// CopyGas computes the gas cost for a copy operation (CALLDATACOPY, CODECOPY, etc.).
// Returns: GasCopy * ceil(size/32).
func CopyGas(size uint64) uint64 {
	return safeMul(GasCopy, toWordSize(size))
}

// isZero returns true if all bytes are zero.
func isZero(val [32]byte) bool {
	for _, b := range val {
		if b != 0 {
			return false
		}
	}
	return true
}

// safeAdd returns a+b, capping at math.MaxUint64 on overflow.
func safeAdd(a, b uint64) uint64 {
	if a > math.MaxUint64-b {
		return math.MaxUint64
	}
	return a + b
}

// safeMul returns a*b, capping at math.MaxUint64 on overflow.
func safeMul(a, b uint64) uint64 {
	if a == 0 || b == 0 {
		return 0
	}
	if a > math.MaxUint64/b {
		return math.MaxUint64
	}
	return a * b
}

// --- Dynamic gas functions wired into the jump tables ---
//
// Every function shares the dynamicGasFunc shape: it receives the
// word-aligned memory footprint the opcode needs and returns the variable
// gas on top of the opcode's constant cost.

// gasSha3 prices KECCAK256: 6 per hashed word plus memory expansion.
func gasSha3(evm *EVM, contract *Contract, stack *Stack, mem *Memory, memorySize uint64) (uint64, error) {
	words := toWordSize(stack.Back(1).Uint64())
	gas := safeMul(words, GasKeccak256Word)
	memGas, err := gasMemExpansion(evm, contract, stack, mem, memorySize)
	if err != nil {
		return 0, err
	}
	return safeAdd(gas, memGas), nil
}

// gasExpFrontier prices EXP before EIP-160: 10 per exponent byte.
func gasExpFrontier(evm *EVM, contract *Contract, stack *Stack, mem *Memory, memorySize uint64) (uint64, error) {
	exp := stack.Back(1)
	if exp.Sign() == 0 {
		return 0, nil
	}
	return GasExpByteFrontier * uint64((exp.BitLen()+7)/8), nil
}

// gasExp prices EXP from EIP-160 on: 50 per exponent byte.
func gasExp(evm *EVM, contract *Contract, stack *Stack, mem *Memory, memorySize uint64) (uint64, error) {
	exp := stack.Back(1)
	if exp.Sign() == 0 {
		return 0, nil
	}
	return GasExpByteEIP160 * uint64((exp.BitLen()+7)/8), nil
}

// gasCopy prices CALLDATACOPY/CODECOPY/RETURNDATACOPY: 3 per copied word
// plus memory expansion. The length sits at stack depth 2.
func gasCopy(evm *EVM, contract *Contract, stack *Stack, mem *Memory, memorySize uint64) (uint64, error) {
	gas := safeMul(GasCopy, toWordSize(stack.Back(2).Uint64()))
	memGas, err := gasMemExpansion(evm, contract, stack, mem, memorySize)
	if err != nil {
		return 0, err
	}
	return safeAdd(gas, memGas), nil
}

// gasMcopy prices MCOPY (EIP-5656): 3 per copied word plus expansion over
// both the source and destination regions.
func gasMcopy(evm *EVM, contract *Contract, stack *Stack, mem *Memory, memorySize uint64) (uint64, error) {
	gas := safeMul(GasCopy, toWordSize(stack.Back(2).Uint64()))
	memGas, err := gasMemExpansion(evm, contract, stack, mem, memorySize)
	if err != nil {
		return 0, err
	}
	return safeAdd(gas, memGas), nil
}

// gasExtCodeCopyCopy prices EXTCODECOPY before Berlin: 3 per copied word
// plus memory expansion. The length sits at stack depth 3.
func gasExtCodeCopyCopy(evm *EVM, contract *Contract, stack *Stack, mem *Memory, memorySize uint64) (uint64, error) {
	gas := safeMul(GasCopy, toWordSize(stack.Back(3).Uint64()))
	memGas, err := gasMemExpansion(evm, contract, stack, mem, memorySize)
	if err != nil {
		return 0, err
	}
	return safeAdd(gas, memGas), nil
}

// makeGasLog prices LOG0..LOG4: 375 per topic, 8 per data byte, plus
// memory expansion. The base 375 is the opcode's constant gas.
func makeGasLog(n uint64) dynamicGasFunc {
	return func(evm *EVM, contract *Contract, stack *Stack, mem *Memory, memorySize uint64) (uint64, error) {
		gas := safeMul(n, GasLogTopic)
		gas = safeAdd(gas, safeMul(stack.Back(1).Uint64(), GasLogData))
		memGas, err := gasMemExpansion(evm, contract, stack, mem, memorySize)
		if err != nil {
			return 0, err
		}
		return safeAdd(gas, memGas), nil
	}
}

// gasCreateDynamic prices CREATE from Shanghai (EIP-3860): 2 per initcode
// word plus memory expansion.
func gasCreateDynamic(evm *EVM, contract *Contract, stack *Stack, mem *Memory, memorySize uint64) (uint64, error) {
	// Stack: value, offset, length.
	words := toWordSize(stack.Back(2).Uint64())
	gas := safeMul(InitCodeWordGas, words)
	memGas, err := gasMemExpansion(evm, contract, stack, mem, memorySize)
	if err != nil {
		return 0, err
	}
	return safeAdd(gas, memGas), nil
}

// gasCreate2Constantinople prices CREATE2 before Shanghai: 6 per initcode
// word for the address hash, plus memory expansion.
func gasCreate2Constantinople(evm *EVM, contract *Contract, stack *Stack, mem *Memory, memorySize uint64) (uint64, error) {
	words := toWordSize(stack.Back(2).Uint64())
	gas := safeMul(GasKeccak256Word, words)
	memGas, err := gasMemExpansion(evm, contract, stack, mem, memorySize)
	if err != nil {
		return 0, err
	}
	return safeAdd(gas, memGas), nil
}

// gasCreate2Dynamic prices CREATE2 from Shanghai: the address hash plus
// EIP-3860 initcode words, plus memory expansion.
func gasCreate2Dynamic(evm *EVM, contract *Contract, stack *Stack, mem *Memory, memorySize uint64) (uint64, error) {
	words := toWordSize(stack.Back(2).Uint64())
	gas := safeMul(InitCodeWordGas+GasKeccak256Word, words)
	memGas, err := gasMemExpansion(evm, contract, stack, mem, memorySize)
	if err != nil {
		return 0, err
	}
	return safeAdd(gas, memGas), nil
}

// gasSstoreLegacy prices SSTORE before Berlin: 20000 when creating a slot,
// 5000 otherwise, with a 15000 refund for clearing a slot.
func gasSstoreLegacy(evm *EVM, contract *Contract, stack *Stack, mem *Memory, memorySize uint64) (uint64, error) {
	if evm.StateDB == nil {
		return GasSstoreResetLegacy, nil
	}
	key := bigToHash(stack.Back(0))
	newVal := bigToHash(stack.Back(1))
	current := evm.StateDB.GetState(contract.Address, key)

	switch {
	case current == (types.Hash{}) && newVal != (types.Hash{}):
		return GasSstoreSet, nil
	case current != (types.Hash{}) && newVal == (types.Hash{}):
		evm.StateDB.AddRefund(SstoreClearRefundFrontier)
		return GasSstoreResetLegacy, nil
	default:
		return GasSstoreResetLegacy, nil
	}
}

// gasSstoreEIP2929 prices SSTORE from Berlin: the EIP-2929 cold surcharge
// on first touch, then the EIP-2200/EIP-3529 tiers over the slot's
// original and current values. The computed refund delta is applied to the
// state's refund counter here, so restoring a slot also unwinds an earlier
// clearing refund.
func gasSstoreEIP2929(evm *EVM, contract *Contract, stack *Stack, mem *Memory, memorySize uint64) (uint64, error) {
	loc := stack.Back(0)
	slot := bigToHash(loc)

	// SSTORE carries no constant gas, so a cold slot pays the full
	// ColdSloadCost here.
	var coldGas uint64
	if evm.StateDB != nil {
		_, slotWarm := evm.StateDB.SlotInAccessList(contract.Address, slot)
		if !slotWarm {
			evm.StateDB.AddSlotToAccessList(contract.Address, slot)
			coldGas = ColdSloadCost
		}
	}

	if evm.StateDB == nil {
		return WarmStorageReadCost + coldGas, nil
	}

	current := evm.StateDB.GetState(contract.Address, slot)
	original := evm.StateDB.GetCommittedState(contract.Address, slot)
	newVal := bigToHash(stack.Back(1))

	var currentBytes, originalBytes, newBytes [32]byte
	copy(currentBytes[:], current[:])
	copy(originalBytes[:], original[:])
	copy(newBytes[:], newVal[:])

	gas, refund := SstoreGas(originalBytes, currentBytes, newBytes, false)
	if refund > 0 {
		evm.StateDB.AddRefund(uint64(refund))
	} else if refund < 0 {
		evm.StateDB.SubRefund(uint64(-refund))
	}
	return gas + coldGas, nil
}

// gasSelfdestructFrontier prices SELFDESTRUCT before Berlin: 25000 extra
// when the swept balance lands on a non-existent account.
func gasSelfdestructFrontier(evm *EVM, contract *Contract, stack *Stack, mem *Memory, memorySize uint64) (uint64, error) {
	if evm.StateDB == nil {
		return 0, nil
	}
	addr := types.BytesToAddress(stack.Back(0).Bytes())
	if !evm.StateDB.Exist(addr) && evm.StateDB.GetBalance(contract.Address).Sign() != 0 {
		return CreateBySelfdestructGas, nil
	}
	return 0, nil
}

// gasSelfdestructEIP2929 prices SELFDESTRUCT from Berlin: the cold-access
// surcharge on the beneficiary plus 25000 when sweeping a balance into a
// non-existent account. No refund is issued (EIP-3529).
func gasSelfdestructEIP2929(evm *EVM, contract *Contract, stack *Stack, mem *Memory, memorySize uint64) (uint64, error) {
	addr := types.BytesToAddress(stack.Back(0).Bytes())
	gas := gasEIP2929AccountCheck(evm, addr)

	if evm.StateDB != nil {
		if !evm.StateDB.Exist(addr) && evm.StateDB.GetBalance(contract.Address).Sign() != 0 {
			gas = safeAdd(gas, CreateBySelfdestructGas)
		}
	}
	return gas, nil
}

// --- Pre-Berlin CALL-family dynamic gas ---

// gasCallFrontier prices CALL before Berlin: 9000 for a value transfer,
// another 25000 when the recipient does not exist, plus memory expansion.
// Stack: gas, addr, value, argsOffset, argsLength, retOffset, retLength.
func gasCallFrontier(evm *EVM, contract *Contract, stack *Stack, mem *Memory, memorySize uint64) (uint64, error) {
	var gas uint64
	if stack.Back(2).Sign() != 0 {
		gas = safeAdd(gas, CallValueTransferGas)
		addr := types.BytesToAddress(stack.Back(1).Bytes())
		if evm.StateDB != nil && !evm.StateDB.Exist(addr) {
			gas = safeAdd(gas, CallNewAccountGas)
		}
	}
	memGas, err := gasMemExpansion(evm, contract, stack, mem, memorySize)
	if err != nil {
		return 0, err
	}
	return safeAdd(gas, memGas), nil
}

// gasCallCodeFrontier prices CALLCODE before Berlin: value transfer gas
// plus memory expansion. CALLCODE never creates an account, so there is no
// new-account surcharge.
func gasCallCodeFrontier(evm *EVM, contract *Contract, stack *Stack, mem *Memory, memorySize uint64) (uint64, error) {
	var gas uint64
	if stack.Back(2).Sign() != 0 {
		gas = safeAdd(gas, CallValueTransferGas)
	}
	memGas, err := gasMemExpansion(evm, contract, stack, mem, memorySize)
	if err != nil {
		return 0, err
	}
	return safeAdd(gas, memGas), nil
}

// --- EIP-2929 warm/cold dynamic gas ---

// gasSloadEIP2929 adds the cold surcharge for SLOAD. The warm cost is the
// opcode's constant gas.
func gasSloadEIP2929(evm *EVM, contract *Contract, stack *Stack, mem *Memory, memorySize uint64) (uint64, error) {
	slot := bigToHash(stack.Back(0))
	return gasEIP2929SlotCheck(evm, contract.Address, slot), nil
}

// gasBalanceEIP2929 adds the cold surcharge for BALANCE.
func gasBalanceEIP2929(evm *EVM, contract *Contract, stack *Stack, mem *Memory, memorySize uint64) (uint64, error) {
	addr := types.BytesToAddress(stack.Back(0).Bytes())
	return gasEIP2929AccountCheck(evm, addr), nil
}

// gasExtCodeSizeEIP2929 adds the cold surcharge for EXTCODESIZE.
func gasExtCodeSizeEIP2929(evm *EVM, contract *Contract, stack *Stack, mem *Memory, memorySize uint64) (uint64, error) {
	addr := types.BytesToAddress(stack.Back(0).Bytes())
	return gasEIP2929AccountCheck(evm, addr), nil
}

// gasExtCodeHashEIP2929 adds the cold surcharge for EXTCODEHASH.
func gasExtCodeHashEIP2929(evm *EVM, contract *Contract, stack *Stack, mem *Memory, memorySize uint64) (uint64, error) {
	addr := types.BytesToAddress(stack.Back(0).Bytes())
	return gasEIP2929AccountCheck(evm, addr), nil
}

// gasExtCodeCopyEIP2929 adds the cold surcharge for EXTCODECOPY on top of
// the per-word copy cost and memory expansion.
func gasExtCodeCopyEIP2929(evm *EVM, contract *Contract, stack *Stack, mem *Memory, memorySize uint64) (uint64, error) {
	addr := types.BytesToAddress(stack.Back(0).Bytes())
	gas := gasEIP2929AccountCheck(evm, addr)
	gas = safeAdd(gas, safeMul(GasCopy, toWordSize(stack.Back(3).Uint64())))
	memGas, err := gasMemExpansion(evm, contract, stack, mem, memorySize)
	if err != nil {
		return 0, err
	}
	return safeAdd(gas, memGas), nil
}

// gasCallEIP2929 prices CALL from Berlin: cold surcharge on the target,
// value transfer and new-account costs, plus memory expansion.
// Stack: gas, addr, value, argsOffset, argsLength, retOffset, retLength.
func gasCallEIP2929(evm *EVM, contract *Contract, stack *Stack, mem *Memory, memorySize uint64) (uint64, error) {
	addr := types.BytesToAddress(stack.Back(1).Bytes())
	gas := gasEIP2929AccountCheck(evm, addr)
	if stack.Back(2).Sign() != 0 {
		gas = safeAdd(gas, CallValueTransferGas)
		if evm.StateDB != nil && !evm.StateDB.Exist(addr) {
			gas = safeAdd(gas, CallNewAccountGas)
		}
	}
	memGas, err := gasMemExpansion(evm, contract, stack, mem, memorySize)
	if err != nil {
		return 0, err
	}
	return safeAdd(gas, memGas), nil
}

// gasCallCodeEIP2929 prices CALLCODE from Berlin: cold surcharge plus
// value transfer gas plus memory expansion.
func gasCallCodeEIP2929(evm *EVM, contract *Contract, stack *Stack, mem *Memory, memorySize uint64) (uint64, error) {
	addr := types.BytesToAddress(stack.Back(1).Bytes())
	gas := gasEIP2929AccountCheck(evm, addr)
	if stack.Back(2).Sign() != 0 {
		gas = safeAdd(gas, CallValueTransferGas)
	}
	memGas, err := gasMemExpansion(evm, contract, stack, mem, memorySize)
	if err != nil {
		return 0, err
	}
	return safeAdd(gas, memGas), nil
}

// gasDelegateCallEIP2929 prices DELEGATECALL from Berlin: cold surcharge
// plus memory expansion.
func gasDelegateCallEIP2929(evm *EVM, contract *Contract, stack *Stack, mem *Memory, memorySize uint64) (uint64, error) {
	addr := types.BytesToAddress(stack.Back(1).Bytes())
	gas := gasEIP2929AccountCheck(evm, addr)
	memGas, err := gasMemExpansion(evm, contract, stack, mem, memorySize)
	if err != nil {
		return 0, err
	}
	return safeAdd(gas, memGas), nil
}

// gasStaticCallEIP2929 prices STATICCALL from Berlin: cold surcharge plus
// memory expansion.
func gasStaticCallEIP2929(evm *EVM, contract *Contract, stack *Stack, mem *Memory, memorySize uint64) (uint64, error) {
	addr := types.BytesToAddress(stack.Back(1).Bytes())
	gas := gasEIP2929AccountCheck(evm, addr)
	memGas, err := gasMemExpansion(evm, contract, stack, mem, memorySize)
	if err != nil {
		return 0, err
	}
	return safeAdd(gas, memGas), nil
}
