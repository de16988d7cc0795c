package feedbatch

import (
	"context"
	"reflect"
	"runtime/debug"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/productsync/feedbatch/status"
	"github.com/productsync/feedbatch/util"
)

// RunExecution state of one chained run. It is owned by the driver, never
// by the engine; the engine only ever sees the batch number and args.
type RunExecution struct {
	RunId       string
	JobName     string
	PluginName  string
	Args        Args
	BatchNumber int
	RunStatus   status.RunStatus
	StartTime   time.Time
	EndTime     time.Time
	FailError   BatchError
	WriteCount  int64

	mu       sync.Mutex
	stopping bool
}

// JobKey scheduling key of the job this run belongs to
func (e *RunExecution) JobKey() string {
	return e.PluginName + ":" + e.JobName
}

func (e *RunExecution) requestStop() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.stopping = true
	if !e.RunStatus.Terminal() {
		e.RunStatus = e.RunStatus.And(status.STOPPING)
	}
}

func (e *RunExecution) isStopping() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.stopping
}

func (e *RunExecution) transition(s status.RunStatus) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.RunStatus = e.RunStatus.And(s)
}

func (e *RunExecution) finish(final status.RunStatus, err BatchError) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if final == status.STOPPED {
		e.RunStatus = status.STOPPED
	} else {
		e.RunStatus = e.RunStatus.And(final)
	}
	e.FailError = err
	e.EndTime = time.Now()
}

func (e *RunExecution) markBatch(batchNumber int) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.BatchNumber = batchNumber
}

func (e *RunExecution) addWritten(n int) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.WriteCount += int64(n)
}

// snapshot copy of the run state, safe to hand to readers while the run
// goroutine is still mutating the original
func (e *RunExecution) snapshot() *RunExecution {
	e.mu.Lock()
	defer e.mu.Unlock()
	return &RunExecution{
		RunId:       e.RunId,
		JobName:     e.JobName,
		PluginName:  e.PluginName,
		Args:        e.Args,
		BatchNumber: e.BatchNumber,
		RunStatus:   e.RunStatus,
		StartTime:   e.StartTime,
		EndTime:     e.EndTime,
		FailError:   e.FailError,
		WriteCount:  e.WriteCount,
	}
}

// Driver in-process scheduler driving chained runs. It guarantees at most
// one in-flight run per job key, strictly increasing batch numbers within a
// run, and at most one in-flight batch invocation at a time.
type Driver struct {
	mu        sync.Mutex
	inFlight  map[string]*RunExecution
	runs      map[string]*RunExecution
	listeners []RunListener
}

// NewDriver new driver instance
func NewDriver() *Driver {
	return &Driver{
		inFlight: make(map[string]*RunExecution),
		runs:     make(map[string]*RunExecution),
	}
}

// AddListener attach a listener invoked around every run
func (d *Driver) AddListener(listener RunListener) {
	d.listeners = append(d.listeners, listener)
}

// Start run a registered job to completion synchronously
func (d *Driver) Start(ctx context.Context, jobKey string, args Args) (*RunExecution, error) {
	job, execution, err := d.acquire(ctx, jobKey, args)
	if err != nil {
		return execution, err
	}
	e := d.run(ctx, job, execution)
	if e != nil {
		return execution, e
	}
	return execution, nil
}

// StartAsync run a registered job on the driver task pool
func (d *Driver) StartAsync(ctx context.Context, jobKey string, args Args) (*RunExecution, Future, error) {
	job, execution, err := d.acquire(ctx, jobKey, args)
	if err != nil {
		return execution, nil, err
	}
	future := runPool.Submit(ctx, func() (interface{}, error) {
		if e := d.run(ctx, job, execution); e != nil {
			return execution, e
		}
		return execution, nil
	})
	return execution, future, nil
}

// Stop ask a run to halt before its next batch. The aborted run's temp
// artifact is discarded by the next Start, not resumed.
func (d *Driver) Stop(runId string) error {
	d.mu.Lock()
	execution, ok := d.runs[runId]
	d.mu.Unlock()
	if !ok {
		return NewBatchError(ErrCodeGeneral, "no run with id:%v", runId)
	}
	execution.requestStop()
	return nil
}

// Execution look up run state by run id. The returned value is a snapshot;
// polling it again after an in-flight run progressed requires a fresh call.
func (d *Driver) Execution(runId string) (*RunExecution, bool) {
	d.mu.Lock()
	execution, ok := d.runs[runId]
	d.mu.Unlock()
	if !ok {
		return nil, false
	}
	return execution.snapshot(), true
}

func (d *Driver) acquire(ctx context.Context, jobKey string, args Args) (ChainedJob, *RunExecution, error) {
	job, ok := GetJob(jobKey)
	if !ok {
		return nil, nil, NewBatchError(ErrCodeGeneral, "no job registered with key:%v", jobKey)
	}
	execution := &RunExecution{
		RunId:      uuid.NewString(),
		JobName:    job.Name(),
		PluginName: job.PluginName(),
		Args:       args,
		RunStatus:  status.STARTING,
		StartTime:  time.Now(),
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	if running, exists := d.inFlight[jobKey]; exists {
		logger.Warn(ctx, "run already in flight, jobKey:%v, runId:%v", jobKey, running.RunId)
		return nil, running, ConcurrentError
	}
	d.inFlight[jobKey] = execution
	d.runs[execution.RunId] = execution
	return job, execution, nil
}

func (d *Driver) release(execution *RunExecution) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.inFlight[execution.JobKey()] == execution {
		delete(d.inFlight, execution.JobKey())
	}
}

func (d *Driver) run(ctx context.Context, job ChainedJob, execution *RunExecution) (err BatchError) {
	defer d.release(execution)
	defer func() {
		if er := recover(); er != nil {
			logger.Error(ctx, "panic in run, jobKey:%v, runId:%v, err:%v, stack:%v", execution.JobKey(), execution.RunId, er, string(debug.Stack()))
			err = NewBatchError(ErrCodeGeneral, "panic in run: %v", er)
		}
		if err != nil {
			final := status.FAILED
			if err.Code() == ErrCodeStop {
				final = status.STOPPED
			}
			execution.finish(final, err)
		}
		for _, listener := range d.listeners {
			if e := listener.AfterRun(execution); e != nil {
				logger.Error(ctx, "run listener err, jobKey:%v, runId:%v, listener:%v, err:%v", execution.JobKey(), execution.RunId, reflect.TypeOf(listener).String(), e)
			}
		}
	}()

	argsJson, _ := util.JsonString(execution.Args)
	logger.Info(ctx, "start run, jobKey:%v, runId:%v, args:%v", execution.JobKey(), execution.RunId, argsJson)
	for _, listener := range d.listeners {
		if e := listener.BeforeRun(execution); e != nil {
			logger.Error(ctx, "run listener err, jobKey:%v, runId:%v, listener:%v, err:%v", execution.JobKey(), execution.RunId, reflect.TypeOf(listener).String(), e)
			return e
		}
	}

	engine := NewChainEngine(job)
	if err = engine.Start(ctx, execution.Args); err != nil {
		return err
	}
	execution.transition(status.STARTED)

	for batchNumber := 1; ; batchNumber++ {
		if execution.isStopping() {
			logger.Info(ctx, "run stopped, jobKey:%v, runId:%v, batchNumber:%v", execution.JobKey(), execution.RunId, batchNumber)
			return StopError
		}
		execution.markBatch(batchNumber)
		processed, done, e := engine.HandleBatchAction(ctx, batchNumber, execution.Args)
		if e != nil {
			logger.Error(ctx, "batch failed, jobKey:%v, runId:%v, batchNumber:%v, err:%v", execution.JobKey(), execution.RunId, batchNumber, e)
			return e
		}
		execution.addWritten(processed)
		if done {
			break
		}
	}

	if err = engine.End(ctx, execution.Args); err != nil {
		return err
	}
	execution.finish(status.COMPLETED, nil)
	logger.Info(ctx, "run completed, jobKey:%v, runId:%v, batches:%v, written:%v", execution.JobKey(), execution.RunId, execution.BatchNumber, execution.WriteCount)
	return nil
}
