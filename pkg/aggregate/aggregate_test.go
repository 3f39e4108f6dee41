package aggregate_test

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Sumatoshi-tech/chunkfold/pkg/aggregate"
	"github.com/Sumatoshi-tech/chunkfold/pkg/source"
)

var errFold = errors.New("fold rejected window")

func TestChunked_WindowsInSourceOrder(t *testing.T) {
	t.Parallel()

	var windows [][]int

	fold := func(acc int, window []int) (int, error) {
		windows = append(windows, append([]int(nil), window...))

		for _, v := range window {
			acc += v
		}

		return acc, nil
	}

	res, err := aggregate.Chunked(context.Background(), source.FromSlice([]int{1, 2, 3, 4, 5}), 2, 0, fold)
	require.NoError(t, err)

	assert.Equal(t, [][]int{{1, 2}, {3, 4}, {5}}, windows)
	assert.Equal(t, 15, res.Value)
	assert.Equal(t, int64(5), res.Records)
	assert.Equal(t, 3, res.Windows)
}

func TestChunked_MatchesNaive(t *testing.T) {
	t.Parallel()

	const n = 1000

	ctx := context.Background()
	src := waveSource(n)

	naive, err := aggregate.Naive(ctx, src, 0.0, sumFold)
	require.NoError(t, err)
	assert.Equal(t, int64(n), naive.Records)
	assert.Equal(t, 1, naive.Windows)

	for _, chunk := range []int{1, 7, n, n + 1} {
		res, err := aggregate.Chunked(ctx, src, chunk, 0.0, sumFold)
		require.NoError(t, err)

		assert.Equal(t, int64(n), res.Records)
		assert.True(t, aggregate.ApproxEqual(naive.Value, res.Value, aggregate.DefaultTolerance),
			"chunk %d: naive %v chunked %v", chunk, naive.Value, res.Value)
	}
}

func TestChunked_OversizedChunkIsSingleWindow(t *testing.T) {
	t.Parallel()

	res, err := aggregate.Chunked(context.Background(), waveSource(10), 11, 0.0, sumFold)
	require.NoError(t, err)
	assert.Equal(t, 1, res.Windows)
}

func TestChunked_Deterministic(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	src := waveSource(257)

	first, err := aggregate.Chunked(ctx, src, 16, 0.0, sumFold)
	require.NoError(t, err)

	second, err := aggregate.Chunked(ctx, src, 16, 0.0, sumFold)
	require.NoError(t, err)

	assert.Equal(t, first, second)
}

func TestChunked_EmptySourceReturnsIdentity(t *testing.T) {
	t.Parallel()

	res, err := aggregate.Chunked(context.Background(), source.FromSlice([]float64{}), 4, 42.0, sumFold)
	require.NoError(t, err)
	assert.Equal(t, aggregate.Result[float64]{Value: 42}, res)

	naive, err := aggregate.Naive(context.Background(), source.FromSlice([]float64{}), 42.0, sumFold)
	require.NoError(t, err)
	assert.Equal(t, res, naive)
}

func TestChunked_InvalidChunkSizeReadsNothing(t *testing.T) {
	t.Parallel()

	for _, chunk := range []int{0, -3} {
		src := &failingSource{values: []float64{1, 2}, failAt: -1}

		res, err := aggregate.Chunked(context.Background(), src, chunk, 0.0, sumFold)
		require.ErrorIs(t, err, aggregate.ErrInvalidArgument)
		assert.Zero(t, res)
		assert.Zero(t, src.opens.Load())
	}
}

func TestChunked_ReadFailureNamesWindowAndOffset(t *testing.T) {
	t.Parallel()

	values := make([]float64, 20)
	src := &failingSource{values: values, failAt: 7}

	res, err := aggregate.Chunked(context.Background(), src, 3, 0.0, sumFold)
	require.ErrorIs(t, err, errRead)
	assert.Zero(t, res)

	var readErr *aggregate.SourceReadError
	require.ErrorAs(t, err, &readErr)
	assert.Equal(t, 2, readErr.Window)
	assert.Equal(t, int64(7), readErr.Offset)
}

func TestNaive_ReadFailureNamesOffset(t *testing.T) {
	t.Parallel()

	src := &failingSource{values: make([]float64, 20), failAt: 11}

	_, err := aggregate.Naive(context.Background(), src, 0.0, sumFold)

	var readErr *aggregate.SourceReadError
	require.ErrorAs(t, err, &readErr)
	assert.Equal(t, 0, readErr.Window)
	assert.Equal(t, int64(11), readErr.Offset)
}

func TestChunked_FoldErrorAborts(t *testing.T) {
	t.Parallel()

	calls := 0
	fold := func(acc float64, window []float64) (float64, error) {
		calls++
		if calls == 2 {
			return 0, errFold
		}

		return sumFold(acc, window)
	}

	res, err := aggregate.Chunked(context.Background(), waveSource(10), 3, 0.0, fold)
	require.ErrorIs(t, err, errFold)
	assert.Contains(t, err.Error(), "fold window 1")
	assert.Zero(t, res)
}

func TestChunked_WithRange(t *testing.T) {
	t.Parallel()

	src := source.FromSlice([]float64{1, 2, 3, 4, 5, 6})

	res, err := aggregate.Chunked(context.Background(), src, 2, 0.0, sumFold,
		aggregate.WithRange(source.Range{Start: 1, End: 4}))
	require.NoError(t, err)
	assert.InDelta(t, 9.0, res.Value, 0)
	assert.Equal(t, int64(3), res.Records)

	_, err = aggregate.Chunked(context.Background(), src, 2, 0.0, sumFold,
		aggregate.WithRange(source.Range{Start: 4, End: 1}))
	require.ErrorIs(t, err, aggregate.ErrInvalidArgument)
}

func TestChunked_WindowObserverAndMemoryLog(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer

	logger := slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}))

	var stats []aggregate.WindowStat

	_, err := aggregate.Chunked(context.Background(), waveSource(10), 4, 0.0, sumFold,
		aggregate.WithLogger(logger),
		aggregate.WithMemoryLog(true),
		aggregate.WithWindowObserver(func(s aggregate.WindowStat) { stats = append(stats, s) }),
	)
	require.NoError(t, err)

	require.Len(t, stats, 3)
	assert.Equal(t, []int{4, 4, 2}, []int{stats[0].Records, stats[1].Records, stats[2].Records})
	assert.Equal(t, 2, stats[2].Index)
	assert.Positive(t, stats[0].HeapAfter)
	assert.Equal(t, 3, bytes.Count(buf.Bytes(), []byte("aggregate: window memory")))
	assert.Contains(t, buf.String(), "growth_ema_kib=")
}
