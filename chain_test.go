package feedbatch

import (
	"context"
	"fmt"
	"testing"

	"github.com/bmizerany/assert"
)

// stubJob in-memory chained job over ascending integer ids
type stubJob struct {
	name      string
	ids       []int64
	batchSize int
	failIDs   map[int64]bool
	panicIDs  map[int64]bool
	started   int
	ended     int
	flushed   [][]interface{}
	writeErr  error
	queryErr  error
	onProcess func(id int64)
}

func newStubJob(name string, count int, batchSize int) *stubJob {
	job := &stubJob{
		name:      name,
		batchSize: batchSize,
		failIDs:   map[int64]bool{},
		panicIDs:  map[int64]bool{},
	}
	for i := 1; i <= count; i++ {
		job.ids = append(job.ids, int64(i))
	}
	return job
}

func (j *stubJob) Name() string       { return j.name }
func (j *stubJob) PluginName() string { return "testplugin" }
func (j *stubJob) BatchSize() int     { return j.batchSize }

func (j *stubJob) HandleStart(ctx context.Context, args Args) error {
	j.started++
	j.flushed = nil
	return nil
}

func (j *stubJob) HandleEnd(ctx context.Context, args Args) error {
	j.ended++
	return nil
}

func (j *stubJob) GetItemsForBatch(ctx context.Context, window BatchWindow, args Args) ([]interface{}, error) {
	if j.queryErr != nil {
		return nil, j.queryErr
	}
	start := window.Offset
	if start > len(j.ids) {
		start = len(j.ids)
	}
	end := start + window.Limit
	if end > len(j.ids) {
		end = len(j.ids)
	}
	keys := make([]interface{}, 0, end-start)
	for _, id := range j.ids[start:end] {
		keys = append(keys, id)
	}
	return keys, nil
}

func (j *stubJob) FilterItemsBeforeProcessing(ctx context.Context, keys []interface{}, args Args) ([]interface{}, error) {
	return keys, nil
}

func (j *stubJob) ProcessItem(ctx context.Context, item interface{}, args Args) (interface{}, error) {
	id := item.(int64)
	if j.onProcess != nil {
		j.onProcess(id)
	}
	if j.panicIDs[id] {
		panic(fmt.Sprintf("bad item %v", id))
	}
	if j.failIDs[id] {
		return nil, fmt.Errorf("can not transform item %v", id)
	}
	return fmt.Sprintf("row-%d", id), nil
}

func (j *stubJob) WriteRecords(ctx context.Context, records []interface{}, args Args) error {
	if j.writeErr != nil {
		return j.writeErr
	}
	j.flushed = append(j.flushed, records)
	return nil
}

func (j *stubJob) totalWritten() int {
	n := 0
	for _, batch := range j.flushed {
		n += len(batch)
	}
	return n
}

func runChain(t *testing.T, engine *ChainEngine, maxBatches int) int {
	ctx := context.Background()
	assert.Equal(t, nil, engine.Start(ctx, Args{}))
	batches := 0
	for n := 1; n <= maxBatches; n++ {
		batches++
		_, done, err := engine.HandleBatchAction(ctx, n, Args{})
		assert.Equal(t, nil, err)
		if done {
			assert.Equal(t, nil, engine.End(ctx, Args{}))
			return batches
		}
	}
	t.Fatalf("chain did not terminate within %v batches", maxBatches)
	return batches
}

func TestChainEngine_Scenario37(t *testing.T) {
	job := newStubJob("scenario37", 37, 15)
	engine := NewChainEngine(job)

	batches := runChain(t, engine, 10)

	// 37 items at batch size 15: three data batches plus the empty one
	assert.Equal(t, 4, batches)
	assert.Equal(t, 3, len(job.flushed))
	assert.Equal(t, 15, len(job.flushed[0]))
	assert.Equal(t, 15, len(job.flushed[1]))
	assert.Equal(t, 7, len(job.flushed[2]))
	assert.Equal(t, "row-1", job.flushed[0][0])
	assert.Equal(t, "row-16", job.flushed[1][0])
	assert.Equal(t, "row-37", job.flushed[2][6])
	assert.Equal(t, 1, job.started)
	assert.Equal(t, 1, job.ended)
}

func TestChainEngine_ForwardProgress(t *testing.T) {
	for _, size := range []int{1, 2, 7, 100} {
		for _, count := range []int{0, 1, 6, 7, 8, 50} {
			job := newStubJob(fmt.Sprintf("fp-%d-%d", count, size), count, size)
			engine := NewChainEngine(job)
			batches := runChain(t, engine, count/size+2)
			assert.Equal(t, count, job.totalWritten())
			expected := (count+size-1)/size + 1
			if count == 0 {
				expected = 1
			}
			assert.Equal(t, expected, batches)
		}
	}
}

func TestChainEngine_ItemIsolation(t *testing.T) {
	job := newStubJob("isolation", 10, 5)
	job.failIDs[3] = true
	job.panicIDs[7] = true
	engine := NewChainEngine(job)

	runChain(t, engine, 5)

	// two bad items are skipped, the chain still completes
	assert.Equal(t, 8, job.totalWritten())
	assert.Equal(t, 4, len(job.flushed[0]))
	assert.Equal(t, 4, len(job.flushed[1]))
	assert.Equal(t, 1, job.ended)
}

func TestChainEngine_AllItemsFailingStillAdvances(t *testing.T) {
	job := newStubJob("allfail", 4, 2)
	for _, id := range job.ids {
		job.failIDs[id] = true
	}
	engine := NewChainEngine(job)

	batches := runChain(t, engine, 5)

	// every window filtered to zero records, yet batch numbers advanced
	assert.Equal(t, 3, batches)
	assert.Equal(t, 0, job.totalWritten())
}

func TestChainEngine_SourceErrorIsFatal(t *testing.T) {
	job := newStubJob("fatal", 10, 5)
	job.queryErr = fmt.Errorf("table is gone")
	engine := NewChainEngine(job)

	_, _, err := engine.HandleBatchAction(context.Background(), 1, Args{})
	assert.NotEqual(t, nil, err)
	assert.Equal(t, ErrCodeSourceFail, err.Code())
}

func TestChainEngine_WriteErrorIsFatal(t *testing.T) {
	job := newStubJob("fatalwrite", 10, 5)
	job.writeErr = fmt.Errorf("disk full")
	engine := NewChainEngine(job)

	_, _, err := engine.HandleBatchAction(context.Background(), 1, Args{})
	assert.NotEqual(t, nil, err)
	assert.Equal(t, ErrCodeStorageFail, err.Code())
}

func TestChainEngine_InvalidBatchNumber(t *testing.T) {
	job := newStubJob("window", 10, 5)
	engine := NewChainEngine(job)

	_, _, err := engine.HandleBatchAction(context.Background(), 0, Args{})
	assert.NotEqual(t, nil, err)
}
