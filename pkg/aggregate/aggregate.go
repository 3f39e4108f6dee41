// Package aggregate folds a source.Source into a fixed-shape accumulator,
// either window by window (Chunked), all at once (Naive) or across several
// independent workers over disjoint partitions (Partitioned).
package aggregate

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/Sumatoshi-tech/chunkfold/pkg/source"
)

// Fold folds one window into the accumulator. It must be pure and must not
// retain window: the backing buffer is reused for the next window.
type Fold[A, R any] func(acc A, window []R) (A, error)

// Combine merges two partial accumulators. It must be associative and
// commutative.
type Combine[A any] func(a, b A) (A, error)

// Result is the outcome of an aggregation.
type Result[A any] struct {
	Value   A
	Records int64
	Windows int
}

// Chunked folds src in consecutive windows of at most chunkSize records,
// strictly in source order. A failed read aborts with *SourceReadError and
// the partial accumulator is discarded.
func Chunked[R, A any](
	ctx context.Context,
	src source.Source[R],
	chunkSize int,
	init A,
	fold Fold[A, R],
	opts ...Option,
) (Result[A], error) {
	if chunkSize <= 0 {
		return Result[A]{}, fmt.Errorf("%w: chunk size %d", ErrInvalidArgument, chunkSize)
	}

	if fold == nil {
		return Result[A]{}, fmt.Errorf("%w: nil fold", ErrInvalidArgument)
	}

	cfg := newConfig(opts)

	err := source.ValidateRange(cfg.span)
	if err != nil {
		return Result[A]{}, fmt.Errorf("%w: %w", ErrInvalidArgument, err)
	}

	rd, err := src.Open(ctx, cfg.span)
	if err != nil {
		return Result[A]{}, &SourceReadError{Window: 0, Offset: cfg.span.Start, Err: err}
	}
	defer rd.Close()

	telemetry := newWindowTelemetry(cfg)
	buf := make([]R, chunkSize)
	res := Result[A]{Value: init}
	offset := cfg.span.Start

	for {
		n, readErr := fill(ctx, rd, buf)
		if readErr != nil && !errors.Is(readErr, io.EOF) {
			return Result[A]{}, &SourceReadError{Window: res.Windows, Offset: offset + int64(n), Err: readErr}
		}

		if n > 0 {
			heapBefore := telemetry.before()

			res.Value, err = fold(res.Value, buf[:n])
			if err != nil {
				return Result[A]{}, fmt.Errorf("fold window %d: %w", res.Windows, err)
			}

			telemetry.after(ctx, res.Windows, n, heapBefore)

			res.Windows++
			res.Records += int64(n)
			offset += int64(n)
		}

		if readErr != nil {
			return res, nil
		}
	}
}

// fill reads until buf is full, the reader is exhausted or a read fails,
// so that every window except the last holds exactly len(buf) records.
func fill[R any](ctx context.Context, rd source.Reader[R], buf []R) (int, error) {
	filled := 0

	for filled < len(buf) {
		n, err := rd.Read(ctx, buf[filled:])
		filled += n

		if err != nil {
			return filled, err
		}
	}

	return filled, nil
}

// Naive loads the whole source (or the WithRange sub-range) into memory and
// folds it as a single window. It is the baseline Chunked is compared with.
func Naive[R, A any](
	ctx context.Context,
	src source.Source[R],
	init A,
	foldAll Fold[A, R],
	opts ...Option,
) (Result[A], error) {
	if foldAll == nil {
		return Result[A]{}, fmt.Errorf("%w: nil fold", ErrInvalidArgument)
	}

	cfg := newConfig(opts)

	err := source.ValidateRange(cfg.span)
	if err != nil {
		return Result[A]{}, fmt.Errorf("%w: %w", ErrInvalidArgument, err)
	}

	records, err := source.ReadRange(ctx, src, cfg.span)
	if err != nil {
		readErr := &SourceReadError{Window: 0, Offset: cfg.span.Start, Err: err}

		var at *source.ReadError
		if errors.As(err, &at) {
			readErr.Offset = at.Offset
		}

		return Result[A]{}, readErr
	}

	if len(records) == 0 {
		return Result[A]{Value: init}, nil
	}

	telemetry := newWindowTelemetry(cfg)
	heapBefore := telemetry.before()

	value, err := foldAll(init, records)
	if err != nil {
		return Result[A]{}, fmt.Errorf("fold window 0: %w", err)
	}

	telemetry.after(ctx, 0, len(records), heapBefore)

	return Result[A]{Value: value, Records: int64(len(records)), Windows: 1}, nil
}
