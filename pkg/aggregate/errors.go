package aggregate

import (
	"errors"
	"fmt"

	"github.com/Sumatoshi-tech/chunkfold/pkg/source"
)

// Sentinel errors.
var (
	// ErrInvalidArgument is returned for caller errors detected before any read.
	ErrInvalidArgument = errors.New("invalid argument")
	// ErrWorkerTimeout is wrapped by WorkerFailure when the join deadline expires.
	ErrWorkerTimeout = errors.New("worker timed out")
)

// SourceReadError reports a failed window read. The partially folded
// accumulator is discarded.
type SourceReadError struct {
	Window int   // Zero-based index of the window being read.
	Offset int64 // Record offset at which the read failed.
	Err    error
}

func (e *SourceReadError) Error() string {
	return fmt.Sprintf("read window %d at record %d: %v", e.Window, e.Offset, e.Err)
}

func (e *SourceReadError) Unwrap() error {
	return e.Err
}

// WorkerFailure reports a failed partition of a partitioned aggregation.
type WorkerFailure struct {
	Partition int
	Range     source.Range
	Err       error
}

func (e *WorkerFailure) Error() string {
	return fmt.Sprintf("worker %d (records %s): %v", e.Partition, e.Range, e.Err)
}

func (e *WorkerFailure) Unwrap() error {
	return e.Err
}
