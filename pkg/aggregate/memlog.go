package aggregate

import (
	"context"
	"log/slog"
	"runtime/metrics"

	"github.com/Sumatoshi-tech/chunkfold/pkg/alg/stats"
	"github.com/Sumatoshi-tech/chunkfold/pkg/units"
)

// emaAlpha controls smoothing of the per-window heap growth. 0.3 gives a
// half-life of roughly three windows.
const emaAlpha = 0.3

const heapObjectsMetric = "/memory/classes/heap/objects:bytes"

// heapProbe reads live heap bytes without stopping the world.
type heapProbe struct {
	sample []metrics.Sample
}

func newHeapProbe() *heapProbe {
	return &heapProbe{sample: []metrics.Sample{{Name: heapObjectsMetric}}}
}

func (p *heapProbe) read() uint64 {
	metrics.Read(p.sample)

	if p.sample[0].Value.Kind() != metrics.KindUint64 {
		return 0
	}

	return p.sample[0].Value.Uint64()
}

// windowTelemetry feeds the observer and the debug log after each fold.
type windowTelemetry struct {
	probe    *heapProbe
	ema      stats.EMA
	logger   *slog.Logger
	observer func(WindowStat)
	log      bool
}

func newWindowTelemetry(cfg config) *windowTelemetry {
	if !cfg.tracksMemory() {
		return nil
	}

	return &windowTelemetry{
		probe:    newHeapProbe(),
		ema:      stats.EMA{Alpha: emaAlpha},
		logger:   cfg.logger,
		observer: cfg.observer,
		log:      cfg.memLog,
	}
}

func (t *windowTelemetry) before() uint64 {
	if t == nil {
		return 0
	}

	return t.probe.read()
}

func (t *windowTelemetry) after(ctx context.Context, index, records int, heapBefore uint64) {
	if t == nil {
		return
	}

	stat := WindowStat{
		Index:      index,
		Records:    records,
		HeapBefore: heapBefore,
		HeapAfter:  t.probe.read(),
	}

	growth := t.ema.Observe(float64(stat.HeapAfter) - float64(stat.HeapBefore))

	if t.observer != nil {
		t.observer(stat)
	}

	if t.log {
		logWindowMemory(ctx, t.logger, stat, growth)
	}
}

func logWindowMemory(ctx context.Context, logger *slog.Logger, stat WindowStat, growthEMA float64) {
	logger.DebugContext(ctx, "aggregate: window memory",
		"window", stat.Index,
		"records", stat.Records,
		"heap_before_mib", units.ToMiB(stat.HeapBefore),
		"heap_after_mib", units.ToMiB(stat.HeapAfter),
		"growth_ema_kib", growthEMA/units.KiB,
	)
}
