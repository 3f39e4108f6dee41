package source

import (
	"context"
	"io"
)

type funcSource[R any] struct {
	n  int64
	at func(i int64) R
}

// FromFunc returns a Source of n records where record i is at(i). Records are
// produced on demand, so a window never holds more than it was asked for.
// at must be deterministic for the windowing invariant to hold.
func FromFunc[R any](n int64, at func(i int64) R) Source[R] {
	return &funcSource[R]{n: n, at: at}
}

func (s *funcSource[R]) Len(context.Context) (int64, error) {
	return s.n, nil
}

func (s *funcSource[R]) Open(_ context.Context, r Range) (Reader[R], error) {
	err := ValidateRange(r)
	if err != nil {
		return nil, err
	}

	r = r.Clamp(s.n)

	return &funcReader[R]{next: r.Start, end: r.End, at: s.at}, nil
}

type funcReader[R any] struct {
	next int64
	end  int64
	at   func(i int64) R
}

func (r *funcReader[R]) Read(ctx context.Context, dst []R) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}

	n := 0
	for n < len(dst) && r.next < r.end {
		dst[n] = r.at(r.next)
		r.next++
		n++
	}

	if r.next >= r.end {
		return n, io.EOF
	}

	return n, nil
}

func (r *funcReader[R]) Close() error { return nil }
