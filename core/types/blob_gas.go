package types

import "math/big"

// EIP-4844 blob gas parameters (original Cancun values).
const (
	BlobTxBlobGasPerBlob         = 1 << 17 // gas per blob
	MaxBlobGasPerBlock           = 6 * BlobTxBlobGasPerBlob
	TargetBlobGasPerBlock        = 3 * BlobTxBlobGasPerBlob
	BlobTxMinBlobGasprice        = 1
	BlobBaseFeeUpdateFraction    = 3338477
	VersionedHashVersionKZG byte = 0x01
)

// CalcExcessBlobGas rolls the blob gas excess forward one block: the
// parent's excess plus its usage, less the target, floored at zero.
func CalcExcessBlobGas(parentExcessBlobGas, parentBlobGasUsed uint64) uint64 {
	if parentExcessBlobGas+parentBlobGasUsed < TargetBlobGasPerBlock {
		return 0
	}
	return parentExcessBlobGas + parentBlobGasUsed - TargetBlobGasPerBlock
}

// CalcBlobFee prices blob gas from the accumulated excess via the
// EIP-4844 approximated exponential.
func CalcBlobFee(excessBlobGas uint64) *big.Int {
	return fakeExponential(
		big.NewInt(BlobTxMinBlobGasprice),
		new(big.Int).SetUint64(excessBlobGas),
		big.NewInt(BlobBaseFeeUpdateFraction),
	)
}

// GetBlobGasUsed returns the blob gas consumed by numBlobs blobs.
func GetBlobGasUsed(numBlobs int) uint64 {
	return uint64(numBlobs) * BlobTxBlobGasPerBlob
}

// fakeExponential approximates factor * e^(numerator/denominator) by
// summing Taylor terms term_i = term_{i-1} * numerator / (denominator*i),
// seeded with factor*denominator, until the term underflows to zero.
func fakeExponential(factor, numerator, denominator *big.Int) *big.Int {
	var (
		i     = big.NewInt(1)
		sum   = new(big.Int)
		term  = new(big.Int).Mul(factor, denominator)
		tmp   = new(big.Int)
		denom = new(big.Int)
	)
	for term.Sign() > 0 {
		sum.Add(sum, term)
		tmp.Mul(term, numerator)
		denom.Mul(denominator, i)
		term.Div(tmp, denom)
		i.Add(i, big.NewInt(1))
	}
	return sum.Div(sum, denominator)
}
