package aggregate_test

import (
	"context"
	"errors"
	"io"
	"math"
	"sync/atomic"

	"github.com/Sumatoshi-tech/chunkfold/pkg/aggregate"
	"github.com/Sumatoshi-tech/chunkfold/pkg/source"
)

var errRead = errors.New("disk on fire")

func sumFold(acc float64, window []float64) (float64, error) {
	for _, v := range window {
		acc += v
	}

	return acc, nil
}

func sumCombine(a, b float64) (float64, error) { return a + b, nil }

func zero() float64 { return 0 }

// waveSource is a deterministic float source with values of mixed magnitude.
func waveSource(n int64) source.Source[float64] {
	return source.FromFunc(n, func(i int64) float64 {
		return math.Sin(float64(i))*1e3 + float64(i%7)/3
	})
}

// failingSource fails any read that reaches record failAt.
type failingSource struct {
	values []float64
	failAt int64
	opens  atomic.Int32
}

func (s *failingSource) Len(context.Context) (int64, error) {
	return int64(len(s.values)), nil
}

func (s *failingSource) Open(_ context.Context, r source.Range) (source.Reader[float64], error) {
	s.opens.Add(1)

	r = r.Clamp(int64(len(s.values)))

	return &failingReader{src: s, next: r.Start, end: r.End}, nil
}

type failingReader struct {
	src  *failingSource
	next int64
	end  int64
}

func (r *failingReader) Read(_ context.Context, dst []float64) (int, error) {
	n := 0
	for n < len(dst) && r.next < r.end {
		if r.next == r.src.failAt {
			return n, errRead
		}

		dst[n] = r.src.values[r.next]
		r.next++
		n++
	}

	if r.next >= r.end {
		return n, io.EOF
	}

	return n, nil
}

func (r *failingReader) Close() error { return nil }

// blockingSource blocks every read of partitions that start at or after
// blockFrom until the context is done.
type blockingSource struct {
	n         int64
	blockFrom int64
}

func (s *blockingSource) Len(context.Context) (int64, error) { return s.n, nil }

func (s *blockingSource) Open(ctx context.Context, r source.Range) (source.Reader[float64], error) {
	inner, err := waveSource(s.n).Open(ctx, r)
	if err != nil {
		return nil, err
	}

	return &blockingReader{Reader: inner, block: r.Start >= s.blockFrom}, nil
}

type blockingReader struct {
	source.Reader[float64]

	block bool
}

func (r *blockingReader) Read(ctx context.Context, dst []float64) (int, error) {
	if r.block {
		<-ctx.Done()

		return 0, ctx.Err()
	}

	return r.Reader.Read(ctx, dst)
}

// unsizedSource hides the length of its inner source.
type unsizedSource struct {
	source.Source[float64]
}

func (unsizedSource) Len(context.Context) (int64, error) {
	return 0, source.ErrUnknownLength
}

var _ aggregate.Fold[float64, float64] = sumFold
