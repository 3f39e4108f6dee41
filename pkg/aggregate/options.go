package aggregate

import (
	"log/slog"
	"time"

	"github.com/Sumatoshi-tech/chunkfold/pkg/source"
)

// DefaultChunkSize is the per-worker window size used by Partitioned.
const DefaultChunkSize = 1024

// WindowStat is the per-window telemetry delivered to a window observer.
type WindowStat struct {
	Index      int
	Records    int
	HeapBefore uint64
	HeapAfter  uint64
}

type config struct {
	logger    *slog.Logger
	span      source.Range
	observer  func(WindowStat)
	memLog    bool
	chunkSize int
	timeout   time.Duration
}

func newConfig(opts []Option) config {
	cfg := config{
		span:      source.All,
		chunkSize: DefaultChunkSize,
	}

	for _, opt := range opts {
		opt(&cfg)
	}

	if cfg.logger == nil {
		cfg.logger = slog.Default()
	}

	return cfg
}

func (c config) tracksMemory() bool {
	return c.observer != nil || c.memLog
}

// Option configures an aggregation.
type Option func(*config)

// WithLogger sets the logger used for window telemetry.
func WithLogger(logger *slog.Logger) Option {
	return func(c *config) {
		c.logger = logger
	}
}

// WithRange restricts the aggregation to a sub-range of the source.
func WithRange(r source.Range) Option {
	return func(c *config) {
		c.span = r
	}
}

// WithWindowObserver registers fn to receive a WindowStat after every fold.
func WithWindowObserver(fn func(WindowStat)) Option {
	return func(c *config) {
		c.observer = fn
	}
}

// WithMemoryLog enables the per-window debug memory log.
func WithMemoryLog(enabled bool) Option {
	return func(c *config) {
		c.memLog = enabled
	}
}

// WithChunkSize sets the window size each partition worker uses.
func WithChunkSize(n int) Option {
	return func(c *config) {
		c.chunkSize = n
	}
}

// WithTimeout bounds the partitioned join. Zero disables the bound.
func WithTimeout(d time.Duration) Option {
	return func(c *config) {
		c.timeout = d
	}
}

// workerOptions carries the telemetry settings into a partition worker.
// The observer then runs on several goroutines and must be safe for that.
func (c config) workerOptions(opts ...Option) []Option {
	base := []Option{
		WithLogger(c.logger),
		WithWindowObserver(c.observer),
		WithMemoryLog(c.memLog),
	}

	return append(base, opts...)
}
