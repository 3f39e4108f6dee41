package binfile_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Sumatoshi-tech/chunkfold/pkg/accum"
	"github.com/Sumatoshi-tech/chunkfold/pkg/aggregate"
	"github.com/Sumatoshi-tech/chunkfold/pkg/dataset"
	"github.com/Sumatoshi-tech/chunkfold/pkg/source"
	"github.com/Sumatoshi-tech/chunkfold/pkg/storage/binfile"
)

const rows = 5000

func identity(v float64) float64 { return v }

func TestFormats_RoundTripAndDigest(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	dir := t.TempDir()
	gen := dataset.Uniform(rows, 11)

	raw := filepath.Join(dir, "data.f64")
	packed := filepath.Join(dir, "data.f64.lz4")

	require.NoError(t, binfile.Write(ctx, raw, gen))
	require.NoError(t, binfile.WriteLZ4(ctx, packed, gen))

	info, err := os.Stat(raw)
	require.NoError(t, err)
	assert.Equal(t, int64(rows*binfile.Stride), info.Size())

	file, err := binfile.OpenFile(raw)
	require.NoError(t, err)

	t.Cleanup(func() { file.Close() })

	mapped, err := binfile.OpenMmap(raw)
	require.NoError(t, err)

	t.Cleanup(func() { mapped.Close() })

	compressed, err := binfile.OpenLZ4(packed)
	require.NoError(t, err)

	want, err := aggregate.Naive(ctx, gen, accum.Digest{}, accum.DigestOf(accum.Float64Bytes))
	require.NoError(t, err)

	for name, src := range map[string]source.Source[float64]{
		"pread": file,
		"mmap":  mapped,
		"lz4":   compressed,
	} {
		n, err := src.Len(ctx)
		require.NoError(t, err, name)
		assert.Equal(t, int64(rows), n, name)

		got, err := aggregate.Chunked(ctx, src, 333, accum.Digest{}, accum.DigestOf(accum.Float64Bytes))
		require.NoError(t, err, name)
		assert.Equal(t, want.Value, got.Value, name)

		sub, err := source.ReadRange(ctx, src, source.Range{Start: 4990, End: 6000})
		require.NoError(t, err, name)
		assert.Len(t, sub, 10, name)
	}
}

func TestFormats_PartitionedSum(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	dir := t.TempDir()
	gen := dataset.Uniform(rows, 5)

	raw := filepath.Join(dir, "data.f64")
	packed := filepath.Join(dir, "data.f64.lz4")

	require.NoError(t, binfile.Write(ctx, raw, gen))
	require.NoError(t, binfile.WriteLZ4(ctx, packed, gen))

	naive, err := aggregate.Naive(ctx, gen, accum.KahanSum{}, accum.KahanOf(identity))
	require.NoError(t, err)

	mapped, err := binfile.OpenMmap(raw)
	require.NoError(t, err)

	defer mapped.Close()

	compressed, err := binfile.OpenLZ4(packed)
	require.NoError(t, err)

	for _, src := range []source.Source[float64]{mapped, compressed} {
		res, err := aggregate.Partitioned(ctx, src, 4,
			func() accum.KahanSum { return accum.KahanSum{} },
			accum.KahanOf(identity), accum.Combiner[accum.KahanSum]())
		require.NoError(t, err)
		assert.True(t, aggregate.ApproxEqual(naive.Value.Value(), res.Value.Value(), aggregate.DefaultTolerance))
	}
}

func TestOpen_RejectsCorruptFiles(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()

	short := filepath.Join(dir, "short.f64")
	require.NoError(t, os.WriteFile(short, []byte{1, 2, 3}, 0o600))

	_, err := binfile.OpenFile(short)
	require.ErrorIs(t, err, binfile.ErrTruncated)

	_, err = binfile.OpenMmap(short)
	require.ErrorIs(t, err, binfile.ErrTruncated)

	_, err = binfile.OpenLZ4(short)
	require.ErrorIs(t, err, binfile.ErrBadHeader)
}
