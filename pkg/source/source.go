// Package source defines the read-only data source contract consumed by the
// aggregators: a record sequence of (usually) known length that can be opened
// over any contiguous record range and read in bounded windows.
package source

import (
	"context"
	"errors"
	"fmt"
)

// Unbounded marks a Range that extends to the end of the source.
const Unbounded int64 = -1

// Sentinel errors.
var (
	// ErrUnknownLength is returned by Len when a source cannot report its size.
	ErrUnknownLength = errors.New("source length is unknown")
	// ErrInvalidRange is returned by Open for malformed ranges.
	ErrInvalidRange = errors.New("invalid record range")
)

// Range is a half-open record index interval [Start, End).
type Range struct {
	Start int64 // Inclusive index.
	End   int64 // Exclusive index, or Unbounded.
}

// All is the range covering a whole source.
var All = Range{Start: 0, End: Unbounded}

// Len returns the number of records in the range, or -1 when unbounded.
func (r Range) Len() int64 {
	if r.End == Unbounded {
		return Unbounded
	}

	return r.End - r.Start
}

// Bounded reports whether the range has a finite end.
func (r Range) Bounded() bool {
	return r.End != Unbounded
}

// Clamp limits the range end to total records.
func (r Range) Clamp(total int64) Range {
	if r.End == Unbounded || r.End > total {
		r.End = total
	}

	r.Start = min(r.Start, r.End)

	return r
}

func (r Range) String() string {
	if r.End == Unbounded {
		return fmt.Sprintf("[%d,end)", r.Start)
	}

	return fmt.Sprintf("[%d,%d)", r.Start, r.End)
}

// ValidateRange checks that r is well formed.
func ValidateRange(r Range) error {
	if r.Start < 0 {
		return fmt.Errorf("%w: negative start %d", ErrInvalidRange, r.Start)
	}

	if r.End != Unbounded && r.End < r.Start {
		return fmt.Errorf("%w: end %d before start %d", ErrInvalidRange, r.End, r.Start)
	}

	return nil
}

// Reader is a stateful cursor over a range of records. Each call to Read
// copies the next records into dst.
type Reader[R any] interface {
	// Read fills up to len(dst) records and returns how many were written.
	// At the end of the range Read returns io.EOF, possibly together with
	// n > 0. Any other error means the read failed. Read must not be called
	// concurrently.
	Read(ctx context.Context, dst []R) (int, error)
	// Close releases the resources held by the reader.
	Close() error
}

// Source is a read-only sequence of records. Implementations must allow
// concurrent Open calls for disjoint ranges.
type Source[R any] interface {
	// Len returns the total number of records, or ErrUnknownLength.
	Len(ctx context.Context) (int64, error)
	// Open returns a Reader positioned at r.Start that stops at r.End.
	Open(ctx context.Context, r Range) (Reader[R], error)
}
