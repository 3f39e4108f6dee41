package bench

import (
	"context"
	"errors"

	"github.com/Sumatoshi-tech/chunkfold/pkg/accum"
	"github.com/Sumatoshi-tech/chunkfold/pkg/aggregate"
	"github.com/Sumatoshi-tech/chunkfold/pkg/alg/stats"
	"github.com/Sumatoshi-tech/chunkfold/pkg/dataset"
	"github.com/Sumatoshi-tech/chunkfold/pkg/measure"
	"github.com/Sumatoshi-tech/chunkfold/pkg/source"
)

var errLoadedEarly = errors.New("lazy handler loaded before first access")

// lazyVariants compute the mean of the uniform values with eager, deferred
// and streaming loads.
func lazyVariants() []Variant {
	return []Variant{
		{Name: "lazy/eager", Group: GroupLazy, Baseline: true, Run: lazyEager},
		{Name: "lazy/handler", Group: GroupLazy, Run: lazyHandler},
		{Name: "lazy/chunked", Group: GroupLazy, Run: lazyChunked},
	}
}

func lazyEager(ctx context.Context, env Env) (Outcome, error) {
	values, err := source.ReadAll(ctx, dataset.Uniform(env.Rows, env.Seed))
	if err != nil {
		return Outcome{}, err
	}

	mean, _ := stats.MeanStdDev(values)

	return Outcome{Value: mean, Records: int64(len(values)), HeldBytes: measure.SliceBytes(values)}, nil
}

func lazyHandler(ctx context.Context, env Env) (Outcome, error) {
	h := dataset.NewHandler(ctx, dataset.Uniform(env.Rows, env.Seed), env.logger())
	if h.Loaded() {
		return Outcome{}, errLoadedEarly
	}

	summary, err := h.Summary()
	if err != nil {
		return Outcome{}, err
	}

	values, err := h.Data()
	if err != nil {
		return Outcome{}, err
	}

	return Outcome{Value: summary.Mean, Records: int64(len(values))}, nil
}

func lazyChunked(ctx context.Context, env Env) (Outcome, error) {
	res, err := aggregate.Chunked(ctx, dataset.Uniform(env.Rows, env.Seed), env.ChunkSize,
		accum.Moments{}, accum.MomentsOf(identity), env.aggregateOptions()...)
	if err != nil {
		return Outcome{}, err
	}

	return outcome(res, res.Value.Mean()), nil
}
