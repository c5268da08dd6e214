package psort

import (
	"errors"
	"fmt"
)

// ErrInvalidConfig is returned by Config.Validate.
var ErrInvalidConfig = errors.New("psort: invalid config")

// WorkerFault reports a panic raised inside a worker, usually by the less
// function. When a sort fails with a WorkerFault the caller's sequence is
// left as it was before the call.
type WorkerFault struct {
	Worker int    // worker that panicked
	Task   Task   // task being processed
	Value  any    // value passed to panic
	Stack  []byte // stack of the panicking goroutine
}

func (f *WorkerFault) Error() string {
	return fmt.Sprintf("psort: worker %d panicked on task %s: %v", f.Worker, f.Task, f.Value)
}

// Unwrap returns the panic value when it is an error.
func (f *WorkerFault) Unwrap() error {
	if err, ok := f.Value.(error); ok {
		return err
	}
	return nil
}
