package feedbatch

// BatchWindow limit/offset pair for one batch query
type BatchWindow struct {
	Limit  int
	Offset int
}

// ComputeOffset number of items to skip before the window of batch batchNumber
func ComputeOffset(batchNumber, batchSize int) int {
	return (batchNumber - 1) * batchSize
}

// WindowFor derive the query window for a batch. The window is recomputed
// fresh on every invocation and is relative to the stable ascending ordering
// of the source collection, not to a snapshot of its rows.
func WindowFor(batchNumber, batchSize int) (BatchWindow, BatchError) {
	if batchNumber < 1 {
		return BatchWindow{}, NewBatchError(ErrCodeGeneral, "batch number must be positive, got:%v", batchNumber)
	}
	if batchSize < 1 {
		return BatchWindow{}, NewBatchError(ErrCodeGeneral, "batch size must be positive, got:%v", batchSize)
	}
	return BatchWindow{Limit: batchSize, Offset: ComputeOffset(batchNumber, batchSize)}, nil
}
