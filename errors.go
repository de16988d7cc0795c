package feedbatch

import (
	"fmt"

	"github.com/pkg/errors"
)

// BatchError error interface carried through the chain engine
type BatchError interface {
	// Code error category, one of the ErrCode* constants
	Code() string
	// Message readable description without the stack
	Message() string
	// StackTrace stack of the error origin
	StackTrace() errors.StackTrace
	Error() string
}

type batchErr struct {
	code string
	msg  string
	err  error
}

func (err *batchErr) Code() string {
	return err.code
}

func (err *batchErr) Message() string {
	return err.msg
}

func (err *batchErr) StackTrace() errors.StackTrace {
	if tracer, ok := err.err.(interface{ StackTrace() errors.StackTrace }); ok {
		return tracer.StackTrace()
	}
	return nil
}

func (err *batchErr) Error() string {
	return fmt.Sprintf("batch err, code:%v, message:%v", err.code, err.msg)
}

func (err *batchErr) Format(f fmt.State, verb rune) {
	if formatter, ok := err.err.(fmt.Formatter); ok && verb == 'v' && f.Flag('+') {
		fmt.Fprintf(f, "batch err, code:%v, message:%v, cause:", err.code, err.msg)
		formatter.Format(f, verb)
		return
	}
	fmt.Fprint(f, err.Error())
}

// NewBatchError build a BatchError with an error code and a message. The
// message may be a format string, and a trailing error argument is recorded
// as the cause. An existing BatchError passes through unchanged.
func NewBatchError(code string, msg string, args ...interface{}) BatchError {
	var cause error
	if len(args) > 0 {
		switch e := args[len(args)-1].(type) {
		case BatchError:
			return e
		case error:
			cause = e
			args = args[:len(args)-1]
		}
	}
	if len(args) > 0 {
		msg = fmt.Sprintf(msg, args...)
	}
	if cause != nil {
		msg = fmt.Sprintf("%v: %v", msg, cause)
		return &batchErr{code: code, msg: msg, err: errors.WithStack(cause)}
	}
	return &batchErr{code: code, msg: msg, err: errors.New(msg)}
}

const (
	//ErrCodeItemFail a single item failed to transform, the batch continues
	ErrCodeItemFail = "item_fail"
	//ErrCodeSourceFail the item source query failed, fatal to the run
	ErrCodeSourceFail = "source_fail"
	//ErrCodeStorageFail the feed artifact could not be written, fatal to the run
	ErrCodeStorageFail = "storage_fail"
	//ErrCodeConcurrency another run of the same job is in flight
	ErrCodeConcurrency = "concurrency"
	//ErrCodeStop the run was asked to stop between batches
	ErrCodeStop = "stop"
	//ErrCodeGeneral uncategorized failure
	ErrCodeGeneral = "general"
)

var (
	StopError       BatchError = &batchErr{code: ErrCodeStop, msg: "run stopping", err: errors.New("run stopping")}
	ConcurrentError BatchError = &batchErr{code: ErrCodeConcurrency, msg: "run already in flight", err: errors.New("run already in flight")}
)
