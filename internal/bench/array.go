package bench

import (
	"context"
	"errors"

	"github.com/Sumatoshi-tech/chunkfold/pkg/accum"
	"github.com/Sumatoshi-tech/chunkfold/pkg/aggregate"
	"github.com/Sumatoshi-tech/chunkfold/pkg/dataset"
	"github.com/Sumatoshi-tech/chunkfold/pkg/source"
	"github.com/Sumatoshi-tech/chunkfold/pkg/storage/arrowcol"
	"github.com/Sumatoshi-tech/chunkfold/pkg/storage/binfile"
)

// arrayVariants sum the fixed-stride float64 array.
func arrayVariants() []Variant {
	return []Variant{
		{Name: "array/naive", Group: GroupArray, Baseline: true, Run: arrayNaive},
		{Name: "array/chunked", Group: GroupArray, Run: arrayChunked},
		{Name: "array/mmap", Group: GroupArray, Run: arrayMmap},
		{Name: "array/lz4", Group: GroupArray, Run: arrayLZ4},
		{Name: "array/arrow", Group: GroupArray, Run: arrayArrow},
		{Name: "array/generated", Group: GroupArray, Run: arrayGenerated},
		{Name: "array/partitioned", Group: GroupArray, Run: arrayPartitioned},
	}
}

func kahanChunked(ctx context.Context, env Env, src source.Source[float64]) (Outcome, error) {
	res, err := aggregate.Chunked(ctx, src, env.ChunkSize, accum.KahanSum{}, accum.KahanOf(identity),
		env.aggregateOptions()...)
	if err != nil {
		return Outcome{}, err
	}

	return outcome(res, res.Value.Value()), nil
}

func arrayNaive(ctx context.Context, env Env) (out Outcome, err error) {
	f, err := binfile.OpenFile(env.Path(FileValuesBin))
	if err != nil {
		return Outcome{}, err
	}
	defer func() { err = errors.Join(err, f.Close()) }()

	res, err := aggregate.Naive(ctx, f, accum.KahanSum{}, accum.KahanOf(identity), aggregate.WithLogger(env.logger()))
	if err != nil {
		return Outcome{}, err
	}

	return outcome(res, res.Value.Value()), nil
}

func arrayChunked(ctx context.Context, env Env) (out Outcome, err error) {
	f, err := binfile.OpenFile(env.Path(FileValuesBin))
	if err != nil {
		return Outcome{}, err
	}
	defer func() { err = errors.Join(err, f.Close()) }()

	return kahanChunked(ctx, env, f)
}

func arrayMmap(ctx context.Context, env Env) (out Outcome, err error) {
	m, err := binfile.OpenMmap(env.Path(FileValuesBin))
	if err != nil {
		return Outcome{}, err
	}
	defer func() { err = errors.Join(err, m.Close()) }()

	return kahanChunked(ctx, env, m)
}

func arrayLZ4(ctx context.Context, env Env) (Outcome, error) {
	f, err := binfile.OpenLZ4(env.Path(FileValuesLZ4))
	if err != nil {
		return Outcome{}, err
	}

	return kahanChunked(ctx, env, f)
}

// arrayArrow loads the array into Arrow memory, then folds zero-copy windows.
func arrayArrow(ctx context.Context, env Env) (out Outcome, err error) {
	m, err := binfile.OpenMmap(env.Path(FileValuesBin))
	if err != nil {
		return Outcome{}, err
	}
	defer func() { err = errors.Join(err, m.Close()) }()

	col, err := arrowcol.FromSource(ctx, m, nil)
	if err != nil {
		return Outcome{}, err
	}
	defer col.Release()

	var sum accum.KahanSum

	err = col.Windows(env.ChunkSize, func(window []float64) error {
		for _, v := range window {
			sum = sum.Add(v)
		}

		return nil
	})
	if err != nil {
		return Outcome{}, err
	}

	return Outcome{Value: sum.Value(), Records: int64(len(col.Values()))}, nil
}

// arrayGenerated computes the values on the fly instead of reading them.
func arrayGenerated(ctx context.Context, env Env) (Outcome, error) {
	return kahanChunked(ctx, env, dataset.Uniform(env.Rows, env.Seed))
}

func arrayPartitioned(ctx context.Context, env Env) (out Outcome, err error) {
	m, err := binfile.OpenMmap(env.Path(FileValuesBin))
	if err != nil {
		return Outcome{}, err
	}
	defer func() { err = errors.Join(err, m.Close()) }()

	res, err := aggregate.Partitioned(ctx, m, env.Workers,
		func() accum.KahanSum { return accum.KahanSum{} },
		accum.KahanOf(identity),
		accum.Combiner[accum.KahanSum](),
		env.aggregateOptions()...,
	)
	if err != nil {
		return Outcome{}, err
	}

	return outcome(res, res.Value.Value()), nil
}
