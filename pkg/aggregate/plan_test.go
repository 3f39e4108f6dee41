package aggregate_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Sumatoshi-tech/chunkfold/pkg/aggregate"
	"github.com/Sumatoshi-tech/chunkfold/pkg/source"
)

func TestPlan(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name  string
		total int64
		chunk int
		want  []source.Range
	}{
		{name: "remainder last", total: 5, chunk: 2, want: []source.Range{{Start: 0, End: 2}, {Start: 2, End: 4}, {Start: 4, End: 5}}},
		{name: "even split", total: 4, chunk: 2, want: []source.Range{{Start: 0, End: 2}, {Start: 2, End: 4}}},
		{name: "single window", total: 3, chunk: 10, want: []source.Range{{Start: 0, End: 3}}},
		{name: "empty", total: 0, chunk: 10, want: nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			got, err := aggregate.Plan(tt.total, tt.chunk)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestPlan_InvalidArguments(t *testing.T) {
	t.Parallel()

	_, err := aggregate.Plan(10, 0)
	require.ErrorIs(t, err, aggregate.ErrInvalidArgument)

	_, err = aggregate.Plan(-1, 4)
	require.ErrorIs(t, err, aggregate.ErrInvalidArgument)
}

func TestPartitions(t *testing.T) {
	t.Parallel()

	got, err := aggregate.Partitions(10, 3)
	require.NoError(t, err)
	assert.Equal(t, []source.Range{{Start: 0, End: 3}, {Start: 3, End: 6}, {Start: 6, End: 10}}, got)

	got, err = aggregate.Partitions(2, 4)
	require.NoError(t, err)
	assert.Equal(t, []source.Range{{Start: 0, End: 0}, {Start: 0, End: 0}, {Start: 0, End: 0}, {Start: 0, End: 2}}, got)

	_, err = aggregate.Partitions(10, 0)
	require.ErrorIs(t, err, aggregate.ErrInvalidArgument)
}

func TestChunkSizeForBudget(t *testing.T) {
	t.Parallel()

	assert.Equal(t, aggregate.MaxBudgetChunkSize, aggregate.ChunkSizeForBudget(0, 8))
	assert.Equal(t, aggregate.MinBudgetChunkSize, aggregate.ChunkSizeForBudget(100, 8))
	// 8 bytes per record plus 50% headroom is 12 bytes.
	assert.Equal(t, 1200, aggregate.ChunkSizeForBudget(14400, 8))
}

func TestApproxEqual(t *testing.T) {
	t.Parallel()

	assert.True(t, aggregate.ApproxEqual(1e12, 1e12+1, aggregate.DefaultTolerance))
	assert.False(t, aggregate.ApproxEqual(1, 1.001, aggregate.DefaultTolerance))
	assert.True(t, aggregate.ApproxEqual(0, 0, aggregate.DefaultTolerance))
	assert.False(t, aggregate.ApproxEqual(0, 1e-300, aggregate.DefaultTolerance))
}
