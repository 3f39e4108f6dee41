package parquetfile_test

import (
	"context"
	"io"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Sumatoshi-tech/chunkfold/pkg/accum"
	"github.com/Sumatoshi-tech/chunkfold/pkg/aggregate"
	"github.com/Sumatoshi-tech/chunkfold/pkg/dataset"
	"github.com/Sumatoshi-tech/chunkfold/pkg/source"
	"github.com/Sumatoshi-tech/chunkfold/pkg/storage/parquetfile"
)

func TestFile_RoundTripAcrossRowGroups(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "data.parquet")
	gen := dataset.Records(2500, 9)

	require.NoError(t, parquetfile.Write(ctx, path, gen, 1000))

	f, err := parquetfile.Open[dataset.Record](path)
	require.NoError(t, err)

	n, err := f.Len(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(2500), n)

	want, err := source.ReadAll(ctx, gen)
	require.NoError(t, err)

	got, err := source.ReadAll(ctx, f)
	require.NoError(t, err)
	assert.Equal(t, want, got)

	// Crosses the boundary between the first and second row group.
	part, err := source.ReadRange(ctx, f, source.Range{Start: 995, End: 1005})
	require.NoError(t, err)
	assert.Equal(t, want[995:1005], part)
}

func TestFile_GroupMomentsMatchGenerator(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "data.parquet")
	gen := dataset.Records(3000, 1)

	require.NoError(t, parquetfile.Write(ctx, path, gen, 0))

	f, err := parquetfile.Open[dataset.Record](path)
	require.NoError(t, err)

	fold := accum.GroupOf(dataset.RecordCategory, dataset.RecordValue)

	want, err := aggregate.Naive(ctx, gen, accum.GroupMoments{}, fold)
	require.NoError(t, err)

	got, err := aggregate.Partitioned(ctx, f, 3,
		func() accum.GroupMoments { return accum.GroupMoments{} }, fold, accum.Combiner[accum.GroupMoments](),
		aggregate.WithChunkSize(256))
	require.NoError(t, err)

	for _, k := range want.Value.Keys() {
		assert.Equal(t, want.Value[k].Count, got.Value[k].Count, k)
		assert.InDelta(t, want.Value[k].Mean(), got.Value[k].Mean(), 1e-9, k)
	}
}

func TestFile_ShortFileIsUnexpectedEOF(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "data.parquet")

	require.NoError(t, parquetfile.Write(ctx, path, dataset.Records(1000, 3), 0))

	f, err := parquetfile.Open[dataset.Record](path)
	require.NoError(t, err)

	// The row count was read by Open; the file now holds fewer rows.
	require.NoError(t, parquetfile.Write(ctx, path, dataset.Records(600, 3), 0))

	_, err = source.ReadAll(ctx, f)
	require.ErrorIs(t, err, io.ErrUnexpectedEOF)
	assert.Contains(t, err.Error(), "at 600")
}
