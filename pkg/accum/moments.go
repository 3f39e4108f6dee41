package accum

import (
	"maps"
	"math"
	"slices"

	"github.com/Sumatoshi-tech/chunkfold/pkg/aggregate"
)

// Moments holds the count, sum and sum of squares of a sample.
type Moments struct {
	Count int64
	Sum   float64
	SumSq float64
}

// Add returns m with v observed.
func (m Moments) Add(v float64) Moments {
	m.Count++
	m.Sum += v
	m.SumSq += v * v

	return m
}

// Merge implements Mergeable.
func (m Moments) Merge(o Moments) Moments {
	return Moments{Count: m.Count + o.Count, Sum: m.Sum + o.Sum, SumSq: m.SumSq + o.SumSq}
}

// Mean returns the arithmetic mean, or 0 for an empty sample.
func (m Moments) Mean() float64 {
	if m.Count == 0 {
		return 0
	}

	return m.Sum / float64(m.Count)
}

// Variance returns the population variance (÷n), or 0 for an empty sample.
func (m Moments) Variance() float64 {
	if m.Count == 0 {
		return 0
	}

	mean := m.Mean()

	return max(m.SumSq/float64(m.Count)-mean*mean, 0)
}

// Std returns the population standard deviation.
func (m Moments) Std() float64 {
	return math.Sqrt(m.Variance())
}

// MomentsOf folds get(r) into Moments.
func MomentsOf[R any](get func(R) float64) aggregate.Fold[Moments, R] {
	return foldEach(func(m Moments, r R) Moments { return m.Add(get(r)) })
}

// GroupMoments holds Moments per group key. Its size is bounded by the
// number of distinct keys, not by the number of records.
type GroupMoments map[string]Moments

// Merge implements Mergeable. Neither operand is modified.
func (g GroupMoments) Merge(o GroupMoments) GroupMoments {
	out := maps.Clone(g)
	if out == nil {
		out = make(GroupMoments, len(o))
	}

	for k, m := range o {
		out[k] = out[k].Merge(m)
	}

	return out
}

// Keys returns the group keys in sorted order.
func (g GroupMoments) Keys() []string {
	return slices.Sorted(maps.Keys(g))
}

// GroupOf folds get(r) into the Moments of group key(r).
func GroupOf[R any](key func(R) string, get func(R) float64) aggregate.Fold[GroupMoments, R] {
	return func(g GroupMoments, window []R) (GroupMoments, error) {
		out := maps.Clone(g)
		if out == nil {
			out = make(GroupMoments)
		}

		for _, r := range window {
			k := key(r)
			out[k] = out[k].Add(get(r))
		}

		return out, nil
	}
}

// MinMax tracks the smallest and largest value seen.
type MinMax struct {
	Min  float64
	Max  float64
	Seen bool
}

// Add returns m with v observed.
func (m MinMax) Add(v float64) MinMax {
	if !m.Seen {
		return MinMax{Min: v, Max: v, Seen: true}
	}

	m.Min = min(m.Min, v)
	m.Max = max(m.Max, v)

	return m
}

// Merge implements Mergeable.
func (m MinMax) Merge(o MinMax) MinMax {
	if !o.Seen {
		return m
	}

	return m.Add(o.Min).Add(o.Max)
}

// MinMaxOf folds get(r) into a MinMax.
func MinMaxOf[R any](get func(R) float64) aggregate.Fold[MinMax, R] {
	return foldEach(func(m MinMax, r R) MinMax { return m.Add(get(r)) })
}
