package measure

import (
	"context"
	"log/slog"

	"github.com/Sumatoshi-tech/chunkfold/pkg/units"
)

// LogSample emits a structured log entry for one measured call.
func LogSample(ctx context.Context, logger *slog.Logger, op string, s Sample) {
	if logger == nil {
		logger = slog.Default()
	}

	logger.InfoContext(ctx, "measure: sample",
		"op", op,
		"duration", s.Duration,
		"peak", units.Bytes(s.PeakBytes),
		"alloc", units.Bytes(s.AllocBytes),
		"gc", s.NumGC,
	)
}

// Instrument wraps op so that every call is measured and logged under name.
// A call made while another session is active runs unmeasured and logs at
// debug level instead of failing.
func Instrument[T any](name string, logger *slog.Logger, op func(context.Context) (T, error), opts ...Option) func(context.Context) (T, error) {
	if logger == nil {
		logger = slog.Default()
	}

	return func(ctx context.Context) (T, error) {
		session, err := Start(opts...)
		if err != nil {
			logger.DebugContext(ctx, "measure: running unmeasured", "op", name, "reason", err)

			return op(ctx)
		}

		defer func() {
			LogSample(ctx, logger, name, session.Stop())
		}()

		return op(ctx)
	}
}
