package source

import (
	"context"
	"errors"
	"fmt"
	"io"
)

// readAllChunk is the initial buffer growth step for ReadAll when the
// source length is unknown.
const readAllChunk = 1 << 12

// ReadError reports a failed read together with the record offset at which
// it happened.
type ReadError struct {
	Offset int64
	Err    error
}

func (e *ReadError) Error() string {
	return fmt.Sprintf("read at record %d: %v", e.Offset, e.Err)
}

func (e *ReadError) Unwrap() error {
	return e.Err
}

// ReadAll loads every record of src into memory. It is the baseline
// "load everything first" strategy and allocates proportionally to the input.
func ReadAll[R any](ctx context.Context, src Source[R]) ([]R, error) {
	return ReadRange(ctx, src, All)
}

// ReadRange loads the records of r into memory.
func ReadRange[R any](ctx context.Context, src Source[R], r Range) ([]R, error) {
	capacity := int64(readAllChunk)

	total, err := src.Len(ctx)

	switch {
	case err == nil:
		capacity = r.Clamp(total).Len()
	case !errors.Is(err, ErrUnknownLength):
		return nil, fmt.Errorf("source length: %w", err)
	}

	rd, err := src.Open(ctx, r)
	if err != nil {
		return nil, fmt.Errorf("open source: %w", err)
	}
	defer rd.Close()

	out := make([]R, 0, max(capacity, 0))

	for {
		if len(out) == cap(out) {
			out = append(out, make([]R, readAllChunk)...)[:len(out)]
		}

		n, readErr := rd.Read(ctx, out[len(out):cap(out)])
		out = out[:len(out)+n]

		if errors.Is(readErr, io.EOF) {
			return out, nil
		}

		if readErr != nil {
			return nil, &ReadError{Offset: r.Start + int64(len(out)), Err: readErr}
		}
	}
}
