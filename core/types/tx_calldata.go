package types

// EIP-7706 calldata gas accounting constants.
const (
	// CalldataTokensPerNonZeroByte is the token weight of a non-zero
	// calldata byte; zero bytes weigh one token.
	CalldataTokensPerNonZeroByte uint64 = 4

	// CalldataGasPerToken is the calldata gas charged per token.
	CalldataGasPerToken uint64 = 4

	// CalldataGasLimitRatio derives the calldata gas limit from the
	// execution gas limit: calldata_gas_limit = gas_limit / ratio.
	CalldataGasLimitRatio uint64 = 4
)

// CalldataTokenGas returns the calldata gas for a byte slice under EIP-7706
// token accounting.
func CalldataTokenGas(data []byte) uint64 {
	var tokens uint64
	for _, b := range data {
		if b == 0 {
			tokens++
		} else {
			tokens += CalldataTokensPerNonZeroByte
		}
	}
	return tokens * CalldataGasPerToken
}

// CalldataGas returns the calldata gas consumed by the transaction under
// EIP-7706 token accounting.
func (tx *Transaction) CalldataGas() uint64 {
	return CalldataTokenGas(tx.Data())
}
