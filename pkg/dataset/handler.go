package dataset

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/Sumatoshi-tech/chunkfold/pkg/alg/stats"
	"github.com/Sumatoshi-tech/chunkfold/pkg/lazy"
	"github.com/Sumatoshi-tech/chunkfold/pkg/source"
)

// Summary is the mean and population standard deviation of a dataset.
type Summary struct {
	Mean float64
	Std  float64
}

// Handler holds a dataset that is only loaded when first needed.
// Constructing a Handler performs no reads.
type Handler struct {
	data   *lazy.Sync[[]float64]
	logger *slog.Logger
}

// NewHandler returns a Handler over src. ctx bounds the deferred load.
func NewHandler(ctx context.Context, src source.Source[float64], logger *slog.Logger) *Handler {
	if logger == nil {
		logger = slog.Default()
	}

	h := &Handler{logger: logger}
	h.data = lazy.NewSync(func() ([]float64, error) {
		logger.DebugContext(ctx, "dataset: loading")

		values, err := source.ReadAll(ctx, src)
		if err != nil {
			return nil, fmt.Errorf("load dataset: %w", err)
		}

		logger.DebugContext(ctx, "dataset: loaded", "records", len(values))

		return values, nil
	})

	return h
}

// Loaded reports whether the dataset has been materialized.
func (h *Handler) Loaded() bool {
	return h.data.Loaded()
}

// Data returns the materialized dataset, loading it on first call.
func (h *Handler) Data() ([]float64, error) {
	return h.data.Get()
}

// Summary loads the dataset if needed and returns its mean and std.
func (h *Handler) Summary() (Summary, error) {
	values, err := h.Data()
	if err != nil {
		return Summary{}, err
	}

	mean, std := stats.MeanStdDev(values)

	return Summary{Mean: mean, Std: std}, nil
}
