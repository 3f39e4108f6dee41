// Package arrowcol holds a float64 column in an Apache Arrow array and serves
// windows of it without copying the underlying buffer.
package arrowcol

import (
	"context"
	"fmt"
	"io"

	"github.com/apache/arrow/go/v10/arrow/array"
	"github.com/apache/arrow/go/v10/arrow/memory"

	"github.com/Sumatoshi-tech/chunkfold/pkg/source"
)

// Column is an immutable Arrow Float64 array. It implements
// source.Source[float64].
type Column struct {
	arr *array.Float64
}

// FromSource drains src into a new Arrow array allocated from mem.
// A nil mem selects memory.DefaultAllocator.
func FromSource(ctx context.Context, src source.Source[float64], mem memory.Allocator) (*Column, error) {
	if mem == nil {
		mem = memory.DefaultAllocator
	}

	b := array.NewFloat64Builder(mem)
	defer b.Release()

	n, err := src.Len(ctx)
	if err == nil && n > 0 {
		b.Reserve(int(n))
	}

	err = source.Each(ctx, src, source.DefaultBatch, func(window []float64) error {
		b.AppendValues(window, nil)

		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("build arrow column: %w", err)
	}

	return &Column{arr: b.NewFloat64Array()}, nil
}

// Release drops the reference to the Arrow buffers.
func (c *Column) Release() {
	c.arr.Release()
}

// Values returns the backing buffer. Callers must not modify it.
func (c *Column) Values() []float64 {
	return c.arr.Float64Values()
}

// Slice returns a zero-copy view of r. The caller releases it.
func (c *Column) Slice(r source.Range) (*array.Float64, error) {
	err := source.ValidateRange(r)
	if err != nil {
		return nil, err
	}

	r = r.Clamp(int64(c.arr.Len()))

	view, ok := array.NewSlice(c.arr, r.Start, r.End).(*array.Float64)
	if !ok {
		return nil, fmt.Errorf("slice %s: unexpected array type", r)
	}

	return view, nil
}

// Windows calls fn with consecutive views of at most size values.
// The views alias the column buffer.
func (c *Column) Windows(size int, fn func([]float64) error) error {
	if size <= 0 {
		return fmt.Errorf("%w: window size %d", source.ErrInvalidRange, size)
	}

	values := c.Values()

	for start := 0; start < len(values); start += size {
		err := fn(values[start:min(start+size, len(values))])
		if err != nil {
			return err
		}
	}

	return nil
}

// Len implements source.Source.
func (c *Column) Len(context.Context) (int64, error) {
	return int64(c.arr.Len()), nil
}

// Open implements source.Source.
func (c *Column) Open(_ context.Context, r source.Range) (source.Reader[float64], error) {
	err := source.ValidateRange(r)
	if err != nil {
		return nil, err
	}

	r = r.Clamp(int64(c.arr.Len()))

	return &reader{values: c.Values()[r.Start:r.End]}, nil
}

type reader struct {
	values []float64
}

func (r *reader) Read(ctx context.Context, dst []float64) (int, error) {
	err := ctx.Err()
	if err != nil {
		return 0, err
	}

	n := copy(dst, r.values)
	r.values = r.values[n:]

	if len(r.values) == 0 {
		return n, io.EOF
	}

	return n, nil
}

func (r *reader) Close() error { return nil }
