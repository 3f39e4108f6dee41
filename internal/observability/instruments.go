package observability

import (
	"errors"
	"fmt"

	"go.opentelemetry.io/otel/metric"
)

// instruments creates the instruments of one meter and collects every
// creation failure for a single check at the end.
type instruments struct {
	meter metric.Meter
	errs  []error
}

func collect[T any](in *instruments, name string, inst T, err error) T {
	if err != nil {
		in.errs = append(in.errs, fmt.Errorf("instrument %s: %w", name, err))
	}

	return inst
}

func (in *instruments) int64Counter(name, desc, unit string) metric.Int64Counter {
	c, err := in.meter.Int64Counter(name, metric.WithDescription(desc), metric.WithUnit(unit))

	return collect(in, name, c, err)
}

func (in *instruments) float64Histogram(name, desc, unit string, bounds []float64) metric.Float64Histogram {
	h, err := in.meter.Float64Histogram(name,
		metric.WithDescription(desc),
		metric.WithUnit(unit),
		metric.WithExplicitBucketBoundaries(bounds...),
	)

	return collect(in, name, h, err)
}

func (in *instruments) err() error {
	return errors.Join(in.errs...)
}
