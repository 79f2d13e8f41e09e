package sweep

import (
	"errors"
	"fmt"
)

// ErrNoSeries indicates an executor returned a result without a series.
var ErrNoSeries = errors.New("sweep: executor returned no series")

// TaskError reports the failure of one task, identified by its position in
// the submitted list and its (L, T) parameters.
type TaskError struct {
	Index int
	L     int
	T     float64
	Seed  int64
	Err   error
}

func newTaskError(idx int, t Task, err error) *TaskError {
	return &TaskError{Index: idx, L: t.L, T: t.T, Seed: t.Seed, Err: err}
}

func (e *TaskError) Error() string {
	return fmt.Sprintf("task %d (L=%d, T=%.4f, seed=%d): %v", e.Index, e.L, e.T, e.Seed, e.Err)
}

func (e *TaskError) Unwrap() error {
	return e.Err
}
