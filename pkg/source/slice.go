package source

import (
	"context"
	"io"
)

type sliceSource[R any] struct {
	records []R
}

// FromSlice returns a Source over an in-memory slice. The slice must not be
// modified while the source is in use.
func FromSlice[R any](records []R) Source[R] {
	return &sliceSource[R]{records: records}
}

func (s *sliceSource[R]) Len(context.Context) (int64, error) {
	return int64(len(s.records)), nil
}

func (s *sliceSource[R]) Open(_ context.Context, r Range) (Reader[R], error) {
	err := ValidateRange(r)
	if err != nil {
		return nil, err
	}

	r = r.Clamp(int64(len(s.records)))

	return &sliceReader[R]{rest: s.records[r.Start:r.End]}, nil
}

type sliceReader[R any] struct {
	rest []R
}

func (r *sliceReader[R]) Read(ctx context.Context, dst []R) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}

	n := copy(dst, r.rest)
	r.rest = r.rest[n:]

	if len(r.rest) == 0 {
		return n, io.EOF
	}

	return n, nil
}

func (r *sliceReader[R]) Close() error {
	r.rest = nil

	return nil
}
