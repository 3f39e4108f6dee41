// Package bench is the strategy gallery: every way of aggregating the
// generated dataset, measured side by side and checked against a baseline.
package bench

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"slices"
	"time"

	"github.com/Sumatoshi-tech/chunkfold/pkg/aggregate"
)

// Groups, one per family of loading strategies.
const (
	GroupCSV       = "csv"
	GroupArray     = "array"
	GroupFrame     = "frame"
	GroupGroupBy   = "groupby"
	GroupGenerator = "generator"
	GroupLazy      = "lazy"
	GroupExtremes  = "extremes"
	GroupDistinct  = "distinct"
)

// Groups lists every group in gallery order.
var Groups = []string{
	GroupCSV, GroupArray, GroupFrame, GroupGroupBy, GroupExtremes, GroupDistinct, GroupGenerator, GroupLazy,
}

var (
	// ErrUnknownVariant is returned by Select and Lookup for names not in the gallery.
	ErrUnknownVariant = errors.New("unknown variant")
	// ErrUnknownGroup is returned by Select for group names not in Groups.
	ErrUnknownGroup = errors.New("unknown group")
)

// Outcome is what a strategy computed.
type Outcome struct {
	Value   float64 `json:"value"`
	Records int64   `json:"records"`
	// HeldBytes is the size of the data a strategy materialized at once,
	// when it reports one.
	HeldBytes uint64 `json:"held_bytes,omitempty"`
}

// Env describes the dataset and aggregation settings shared by all variants.
type Env struct {
	Dir       string
	Rows      int64
	Seed      uint64
	ChunkSize int
	Workers   int
	Timeout   time.Duration
	Logger    *slog.Logger
}

// Path returns the location of a dataset file.
func (e Env) Path(name string) string {
	return filepath.Join(e.Dir, name)
}

func (e Env) logger() *slog.Logger {
	if e.Logger == nil {
		return slog.Default()
	}

	return e.Logger
}

func (e Env) aggregateOptions() []aggregate.Option {
	return []aggregate.Option{
		aggregate.WithLogger(e.logger()),
		aggregate.WithChunkSize(e.ChunkSize),
		aggregate.WithTimeout(e.Timeout),
	}
}

// Variant is one measured strategy.
type Variant struct {
	Name  string
	Group string
	// Baseline marks the variant the rest of the group is checked against.
	Baseline bool
	// Tolerance overrides the run tolerance of the baseline check for
	// variants that trade precision away.
	Tolerance float64
	Run       func(ctx context.Context, env Env) (Outcome, error)
}

// All returns the gallery in group order.
func All() []Variant {
	var out []Variant

	out = append(out, csvVariants()...)
	out = append(out, arrayVariants()...)
	out = append(out, frameVariants()...)
	out = append(out, groupByVariants()...)
	out = append(out, extremesVariants()...)
	out = append(out, distinctVariants()...)
	out = append(out, generatorVariants()...)
	out = append(out, lazyVariants()...)

	return out
}

// Lookup finds a variant by name.
func Lookup(name string) (Variant, error) {
	for _, v := range All() {
		if v.Name == name {
			return v, nil
		}
	}

	return Variant{}, fmt.Errorf("%w: %q", ErrUnknownVariant, name)
}

// Select filters the gallery by group and variant name. Empty filters match
// everything.
func Select(groups, names []string) ([]Variant, error) {
	for _, g := range groups {
		if !slices.Contains(Groups, g) {
			return nil, fmt.Errorf("%w: %q", ErrUnknownGroup, g)
		}
	}

	all := All()

	for _, n := range names {
		if !slices.ContainsFunc(all, func(v Variant) bool { return v.Name == n }) {
			return nil, fmt.Errorf("%w: %q", ErrUnknownVariant, n)
		}
	}

	var out []Variant

	for _, v := range all {
		if len(groups) > 0 && !slices.Contains(groups, v.Group) {
			continue
		}

		if len(names) > 0 && !slices.Contains(names, v.Name) {
			continue
		}

		out = append(out, v)
	}

	return out, nil
}

func outcome[A any](res aggregate.Result[A], value float64) Outcome {
	return Outcome{Value: value, Records: res.Records}
}

func identity(v float64) float64 { return v }
