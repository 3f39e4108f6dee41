package stats_test

import (
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/Sumatoshi-tech/chunkfold/pkg/alg/stats"
)

func TestMeanStdDev(t *testing.T) {
	t.Parallel()

	mean, stddev := stats.MeanStdDev([]float64{2, 4, 4, 4, 5, 5, 7, 9})
	assert.InDelta(t, 5.0, mean, 1e-12)
	assert.InDelta(t, 2.0, stddev, 1e-12)

	mean, stddev = stats.MeanStdDev(nil)
	assert.Zero(t, mean)
	assert.Zero(t, stddev)
}

func TestPercentile(t *testing.T) {
	t.Parallel()

	sorted := []float64{1, 2, 3, 4, 5}

	tests := []struct {
		name string
		p    float64
		want float64
	}{
		{name: "min", p: 0, want: 1},
		{name: "median", p: stats.PercentileMedian, want: 3},
		{name: "interpolated", p: 0.3, want: 2.2},
		{name: "max", p: 1, want: 5},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			assert.InDelta(t, tt.want, stats.Percentile(sorted, tt.p), 1e-12)
		})
	}

	assert.Zero(t, stats.Percentile(nil, 0.5))
}

func TestSummarize(t *testing.T) {
	t.Parallel()

	values := []float64{5, 1, 4, 2, 3}
	got := stats.Summarize(values)

	assert.Equal(t, 5, got.N)
	assert.InDelta(t, 3.0, got.Mean, 1e-12)
	assert.InDelta(t, math.Sqrt(2), got.StdDev, 1e-12)
	assert.InDelta(t, 1.0, got.Min, 0)
	assert.InDelta(t, 3.0, got.Median, 0)
	assert.InDelta(t, 4.8, got.P95, 1e-12)
	assert.InDelta(t, 5.0, got.Max, 0)
	assert.Equal(t, []float64{5, 1, 4, 2, 3}, values, "input must not be reordered")

	assert.Equal(t, stats.Summary{}, stats.Summarize(nil))
}

func TestSeconds(t *testing.T) {
	t.Parallel()

	got := stats.Seconds([]time.Duration{time.Second, 250 * time.Millisecond})
	assert.Equal(t, []float64{1, 0.25}, got)
}

func TestEMA(t *testing.T) {
	t.Parallel()

	ema := stats.EMA{Alpha: 0.3}
	assert.Zero(t, ema.Mean())

	assert.InDelta(t, 10.0, ema.Observe(10), 1e-12)
	// 10 + 0.3 * (20 - 10) = 13.
	assert.InDelta(t, 13.0, ema.Observe(20), 1e-12)
	assert.Equal(t, 2, ema.N())

	follow := stats.EMA{Alpha: 1}
	follow.Observe(10)
	assert.InDelta(t, 20.0, follow.Observe(20), 1e-12)
}
