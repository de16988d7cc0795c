package feedbatch

import (
	"context"
	"fmt"
	"runtime/debug"
)

// Args opaque parameter bag passed unchanged to every hook of a run
type Args map[string]interface{}

// ChainedJob is the contract a concrete chained batch job implements. The
// engine drives the lifecycle, the job supplies the hook bodies.
type ChainedJob interface {
	// Name stable slug identifying the job
	Name() string
	// PluginName stable namespace of the owning plugin; together with Name
	// it forms the external scheduling key and must never change mid-run
	PluginName() string
	// BatchSize window size, constant across all batches of one run
	BatchSize() int
	// GetItemsForBatch query raw item keys for one window, ordered ascending
	// by an immutable key. Errors are fatal to the run.
	GetItemsForBatch(ctx context.Context, window BatchWindow, args Args) ([]interface{}, error)
	// FilterItemsBeforeProcessing materialize raw keys into full item
	// objects, dropping kinds irrelevant to export. An empty result is the
	// chain's sole termination signal, so a filter must only return empty
	// at true end of collection.
	FilterItemsBeforeProcessing(ctx context.Context, keys []interface{}, args Args) ([]interface{}, error)
	// ProcessItem transform one item into a record. An error or panic here
	// skips the item and never aborts the batch. A nil record with nil
	// error drops the item silently.
	ProcessItem(ctx context.Context, item interface{}, args Args) (interface{}, error)
	// WriteRecords flush one batch of records to the feed artifact, in
	// fetch order. Errors are fatal to the run.
	WriteRecords(ctx context.Context, records []interface{}, args Args) error
}

// StartHandler optional hook invoked once before the first batch
type StartHandler interface {
	HandleStart(ctx context.Context, args Args) error
}

// EndHandler optional hook invoked once after the terminating empty batch
type EndHandler interface {
	HandleEnd(ctx context.Context, args Args) error
}

// keyed lets items expose a stable identifier for skip logging
type keyed interface {
	ItemKey() string
}

func itemKey(item interface{}) string {
	if k, ok := item.(keyed); ok {
		return k.ItemKey()
	}
	return fmt.Sprintf("%v", item)
}

// JobKey external scheduling key of a job
func JobKey(job ChainedJob) string {
	return job.PluginName() + ":" + job.Name()
}

// ChainEngine drives the start/batch/end lifecycle of one ChainedJob. The
// engine holds no state across invocations; the processed item buffer is
// built fresh inside every HandleBatchAction call.
type ChainEngine struct {
	job ChainedJob
}

// NewChainEngine engine over a concrete job
func NewChainEngine(job ChainedJob) *ChainEngine {
	return &ChainEngine{job: job}
}

// Start run the job's start hook. Safe to call again after an aborted run,
// stale temporary state is discarded by the hook rather than appended to.
func (e *ChainEngine) Start(ctx context.Context, args Args) BatchError {
	handler, ok := e.job.(StartHandler)
	if !ok {
		return nil
	}
	if err := handler.HandleStart(ctx, args); err != nil {
		return NewBatchError(ErrCodeStorageFail, "start hook of job:%v failed", JobKey(e.job), err)
	}
	return nil
}

// HandleBatchAction execute one batch. Returns the number of records
// flushed and whether the chain terminated, which happens on the first
// batch whose materialized item list is empty.
func (e *ChainEngine) HandleBatchAction(ctx context.Context, batchNumber int, args Args) (processed int, done bool, err BatchError) {
	window, err := WindowFor(batchNumber, e.job.BatchSize())
	if err != nil {
		return 0, false, err
	}
	keys, er := e.job.GetItemsForBatch(ctx, window, args)
	if er != nil {
		return 0, false, NewBatchError(ErrCodeSourceFail, "query batch:%v of job:%v err", batchNumber, JobKey(e.job), er)
	}
	items, er := e.job.FilterItemsBeforeProcessing(ctx, keys, args)
	if er != nil {
		return 0, false, NewBatchError(ErrCodeSourceFail, "materialize batch:%v of job:%v err", batchNumber, JobKey(e.job), er)
	}
	if len(items) == 0 {
		logger.Info(ctx, "chain complete, jobKey:%v, batchNumber:%v", JobKey(e.job), batchNumber)
		return 0, true, nil
	}
	buffer := make([]interface{}, 0, len(items))
	for _, item := range items {
		record, ie := e.processItem(ctx, item, args)
		if ie != nil {
			logger.Warn(ctx, "skip item, jobKey:%v, batchNumber:%v, item:%v, err:%v", JobKey(e.job), batchNumber, itemKey(item), ie)
			continue
		}
		if record == nil {
			continue
		}
		buffer = append(buffer, record)
	}
	if len(buffer) > 0 {
		if er = e.job.WriteRecords(ctx, buffer, args); er != nil {
			return 0, false, NewBatchError(ErrCodeStorageFail, "flush batch:%v of job:%v err", batchNumber, JobKey(e.job), er)
		}
	}
	logger.Debug(ctx, "batch flushed, jobKey:%v, batchNumber:%v, fetched:%v, written:%v", JobKey(e.job), batchNumber, len(items), len(buffer))
	return len(buffer), false, nil
}

// processItem isolates one item transform, turning panics into item errors
func (e *ChainEngine) processItem(ctx context.Context, item interface{}, args Args) (record interface{}, err error) {
	defer func() {
		if r := recover(); r != nil {
			logger.Error(ctx, "panic in ProcessItem, jobKey:%v, item:%v, err:%v, stack:%v", JobKey(e.job), itemKey(item), r, string(debug.Stack()))
			err = NewBatchError(ErrCodeItemFail, "panic in ProcessItem: %v", r)
		}
	}()
	return e.job.ProcessItem(ctx, item, args)
}

// End run the job's end hook, promoting the finished artifact
func (e *ChainEngine) End(ctx context.Context, args Args) BatchError {
	handler, ok := e.job.(EndHandler)
	if !ok {
		return nil
	}
	if err := handler.HandleEnd(ctx, args); err != nil {
		return NewBatchError(ErrCodeStorageFail, "end hook of job:%v failed", JobKey(e.job), err)
	}
	return nil
}
