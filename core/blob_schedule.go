package core

import "math/big"

// Fork-aware blob schedule. Each fork that changes blob throughput gets a
// named schedule entry mapping to its target/max blob counts and blob base
// fee update fraction (EIP-4844 at Cancun, EIP-7691 at Prague).

// BlobSchedule holds the blob parameters for a specific fork.
type BlobSchedule struct {
	Target         uint64 // target blobs per block
	Max            uint64 // maximum blobs per block
	UpdateFraction uint64 // blob base fee update fraction
}

// Named blob schedules per fork.
var (
	// CancunBlobSchedule: the original EIP-4844 parameters.
	CancunBlobSchedule = BlobSchedule{
		Target:         3,
		Max:            6,
		UpdateFraction: 3338477,
	}

	// PragueBlobSchedule: EIP-7691 increased blob throughput.
	// Target raised from 3 to 6, max from 6 to 9.
	PragueBlobSchedule = BlobSchedule{
		Target:         6,
		Max:            9,
		UpdateFraction: 5007716,
	}
)

// GetBlobSchedule returns the active blob schedule for the given config and
// timestamp. A nil config falls back to the Cancun parameters.
func GetBlobSchedule(config *ChainConfig, time uint64) BlobSchedule {
	if config != nil && config.IsPrague(time) {
		return PragueBlobSchedule
	}
	return CancunBlobSchedule
}

// MaxBlobsForBlock returns the maximum number of blobs a block may carry at
// the given timestamp.
func MaxBlobsForBlock(config *ChainConfig, time uint64) uint64 {
	return GetBlobSchedule(config, time).Max
}

// TargetBlobsForBlock returns the target number of blobs per block at the
// given timestamp.
func TargetBlobsForBlock(config *ChainConfig, time uint64) uint64 {
	return GetBlobSchedule(config, time).Target
}

// MaxBlobGasForBlock returns the maximum blob gas a block may consume at
// the given timestamp.
func MaxBlobGasForBlock(config *ChainConfig, time uint64) uint64 {
	return GetBlobSchedule(config, time).Max * GasPerBlob
}

// CalcBlobBaseFeeWithSchedule computes the blob base fee from excess blob gas
// using the given schedule's update fraction. Uses the EIP-4844 fake
// exponential with MIN_BLOB_GASPRICE = 1.
func CalcBlobBaseFeeWithSchedule(excessBlobGas uint64, schedule BlobSchedule) *big.Int {
	return fakeExponentialV2(
		big.NewInt(1),
		new(big.Int).SetUint64(excessBlobGas),
		new(big.Int).SetUint64(schedule.UpdateFraction),
	)
}

// CalcExcessBlobGasWithSchedule computes excess blob gas for the next block
// using the given schedule's target.
func CalcExcessBlobGasWithSchedule(parentExcessGas, parentBlobGasUsed uint64, schedule BlobSchedule) uint64 {
	targetBlobGas := schedule.Target * GasPerBlob
	if parentExcessGas+parentBlobGasUsed < targetBlobGas {
		return 0
	}
	return parentExcessGas + parentBlobGasUsed - targetBlobGas
}
