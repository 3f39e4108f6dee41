// Package measure captures wall-clock duration and peak heap usage of a single
// operation. Tracking is process-global: at most one session may be active at
// a time, so nested measurement must run in a child process.
package measure

import (
	"context"
	"errors"
	"runtime"
	"runtime/metrics"
	"sync"
	"sync/atomic"
	"time"

	"github.com/Sumatoshi-tech/chunkfold/pkg/units"
)

// DefaultSampleInterval is the period of the background heap sampler.
const DefaultSampleInterval = time.Millisecond

// ErrSessionActive is returned by Start while another session is running.
var ErrSessionActive = errors.New("measure: tracking session already active")

// runtime/metrics keys read by the sampler.
const (
	metricHeapObjects = "/memory/classes/heap/objects:bytes"
	metricAllocBytes  = "/gc/heap/allocs:bytes"
	metricAllocObjs   = "/gc/heap/allocs:objects"
	metricGCCycles    = "/gc/cycles/total:gc-cycles"
)

// active guards the single process-wide session slot.
var active atomic.Bool

// Sample is the resource profile of one measured call.
type Sample struct {
	Duration   time.Duration
	PeakBytes  uint64 // Peak live heap above the session baseline.
	AllocBytes uint64 // Bytes allocated during the session.
	Mallocs    uint64 // Heap objects allocated during the session.
	NumGC      uint64 // Completed GC cycles during the session.
	RSSBytes   uint64 // Process resident set at stop, 0 when unsupported.
}

// Seconds returns the duration in seconds.
func (s Sample) Seconds() float64 {
	return s.Duration.Seconds()
}

// PeakMiB returns the peak heap growth in MiB.
func (s Sample) PeakMiB() float64 {
	return units.ToMiB(s.PeakBytes)
}

type options struct {
	interval time.Duration
	gc       bool
}

// Option configures a session.
type Option func(*options)

// WithSampleInterval sets the heap sampling period. Non-positive values keep the default.
func WithSampleInterval(d time.Duration) Option {
	return func(o *options) {
		if d > 0 {
			o.interval = d
		}
	}
}

// WithGC forces a garbage collection before the baseline is taken.
func WithGC(enabled bool) Option {
	return func(o *options) {
		o.gc = enabled
	}
}

type counters struct {
	heap   uint64
	alloc  uint64
	mallcs uint64
	gc     uint64
}

func readCounters(samples []metrics.Sample) counters {
	metrics.Read(samples)

	var c counters

	for _, s := range samples {
		if s.Value.Kind() != metrics.KindUint64 {
			continue
		}

		switch s.Name {
		case metricHeapObjects:
			c.heap = s.Value.Uint64()
		case metricAllocBytes:
			c.alloc = s.Value.Uint64()
		case metricAllocObjs:
			c.mallcs = s.Value.Uint64()
		case metricGCCycles:
			c.gc = s.Value.Uint64()
		}
	}

	return c
}

func newSamples() []metrics.Sample {
	return []metrics.Sample{
		{Name: metricHeapObjects},
		{Name: metricAllocBytes},
		{Name: metricAllocObjs},
		{Name: metricGCCycles},
	}
}

// Session is an active tracking session obtained from Start.
type Session struct {
	started  time.Time
	baseline counters
	peakHeap atomic.Uint64

	stop     chan struct{}
	done     chan struct{}
	stopOnce sync.Once
	result   Sample
}

// Start acquires the process-wide tracking slot and begins sampling.
// It returns ErrSessionActive if a session is already running.
func Start(opts ...Option) (*Session, error) {
	cfg := options{interval: DefaultSampleInterval}
	for _, opt := range opts {
		opt(&cfg)
	}

	if !active.CompareAndSwap(false, true) {
		return nil, ErrSessionActive
	}

	if cfg.gc {
		runtime.GC()
	}

	s := &Session{
		stop: make(chan struct{}),
		done: make(chan struct{}),
	}

	s.baseline = readCounters(newSamples())
	s.peakHeap.Store(s.baseline.heap)
	s.started = time.Now()

	go s.sample(cfg.interval)

	return s, nil
}

func (s *Session) sample(interval time.Duration) {
	defer close(s.done)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	samples := []metrics.Sample{{Name: metricHeapObjects}}

	for {
		select {
		case <-s.stop:
			return
		case <-ticker.C:
			s.observe(readCounters(samples).heap)
		}
	}
}

func (s *Session) observe(heap uint64) {
	for {
		cur := s.peakHeap.Load()
		if heap <= cur || s.peakHeap.CompareAndSwap(cur, heap) {
			return
		}
	}
}

// Stop ends the session, releases the global slot and returns the sample.
// Later calls return the same sample.
func (s *Session) Stop() Sample {
	s.stopOnce.Do(func() {
		elapsed := time.Since(s.started)

		close(s.stop)
		<-s.done

		final := readCounters(newSamples())
		s.observe(final.heap)

		rss, err := ProcessRSS()
		if err != nil {
			rss = 0
		}

		s.result = Sample{
			Duration:   elapsed,
			PeakBytes:  s.peakHeap.Load() - s.baseline.heap,
			AllocBytes: final.alloc - s.baseline.alloc,
			Mallocs:    final.mallcs - s.baseline.mallcs,
			NumGC:      final.gc - s.baseline.gc,
			RSSBytes:   rss,
		}

		active.Store(false)
	})

	return s.result
}

// Measure runs op exactly once inside a tracking session and returns its
// result with the resource sample. An error from op is returned unchanged
// together with the sample up to the failure. If op panics, the session is
// released before the panic continues to unwind.
func Measure[T any](ctx context.Context, op func(context.Context) (T, error), opts ...Option) (result T, sample Sample, err error) {
	session, err := Start(opts...)
	if err != nil {
		return result, Sample{}, err
	}

	defer func() {
		sample = session.Stop()
	}()

	result, err = op(ctx)

	return result, sample, err
}
