package types

// FrameResult is the outcome of one frame inside a frame transaction.
type FrameResult struct {
	Status  uint64
	GasUsed uint64
	Logs    []*Log
}

// FrameTxReceipt is an EIP-8141 frame transaction receipt. Its payload
// encodes as [cumulative_gas_used, payer, [[status, gas_used, logs], ...]].
type FrameTxReceipt struct {
	CumulativeGasUsed uint64
	Payer             Address
	FrameResults      []FrameResult
}

// TotalGasUsed sums the gas consumed across every frame.
func (r *FrameTxReceipt) TotalGasUsed() uint64 {
	var total uint64
	for _, fr := range r.FrameResults {
		total += fr.GasUsed
	}
	return total
}

// AllLogs concatenates every frame's logs in frame order.
func (r *FrameTxReceipt) AllLogs() []*Log {
	var logs []*Log
	for _, fr := range r.FrameResults {
		logs = append(logs, fr.Logs...)
	}
	return logs
}
