package bench

import (
	"context"

	"github.com/Sumatoshi-tech/chunkfold/pkg/accum"
	"github.com/Sumatoshi-tech/chunkfold/pkg/aggregate"
	"github.com/Sumatoshi-tech/chunkfold/pkg/measure"
	"github.com/Sumatoshi-tech/chunkfold/pkg/source"
)

// generatorVariants sum i*i for every row index, once from a materialized
// slice and once from values produced on demand.
func generatorVariants() []Variant {
	return []Variant{
		{Name: "generator/list", Group: GroupGenerator, Baseline: true, Run: generatorList},
		{Name: "generator/stream", Group: GroupGenerator, Run: generatorStream},
	}
}

func squares(n int64) source.Source[float64] {
	return source.FromFunc(n, func(i int64) float64 { return float64(i) * float64(i) })
}

func generatorList(ctx context.Context, env Env) (Outcome, error) {
	values, err := source.ReadAll(ctx, squares(env.Rows))
	if err != nil {
		return Outcome{}, err
	}

	var sum accum.KahanSum

	for _, v := range values {
		sum = sum.Add(v)
	}

	return Outcome{Value: sum.Value(), Records: int64(len(values)), HeldBytes: measure.SliceBytes(values)}, nil
}

func generatorStream(ctx context.Context, env Env) (Outcome, error) {
	res, err := aggregate.Chunked(ctx, squares(env.Rows), env.ChunkSize, accum.KahanSum{}, accum.KahanOf(identity),
		env.aggregateOptions()...)
	if err != nil {
		return Outcome{}, err
	}

	return outcome(res, res.Value.Value()), nil
}
