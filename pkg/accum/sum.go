package accum

import (
	"math"

	"github.com/shopspring/decimal"

	"github.com/Sumatoshi-tech/chunkfold/pkg/aggregate"
)

// Sum is a plain float64 running sum.
type Sum struct {
	Total float64
}

// Add returns s with v added.
func (s Sum) Add(v float64) Sum {
	s.Total += v

	return s
}

// Merge implements Mergeable.
func (s Sum) Merge(o Sum) Sum {
	return s.Add(o.Total)
}

// SumOf folds get(r) into a Sum.
func SumOf[R any](get func(R) float64) aggregate.Fold[Sum, R] {
	return foldEach(func(s Sum, r R) Sum { return s.Add(get(r)) })
}

// KahanSum is a Neumaier compensated sum. Its error does not grow with the
// number of terms, so chunked and naive results agree more tightly.
type KahanSum struct {
	sum  float64
	comp float64
}

// Value returns the compensated total.
func (k KahanSum) Value() float64 {
	return k.sum + k.comp
}

// Add returns k with v added.
func (k KahanSum) Add(v float64) KahanSum {
	t := k.sum + v

	if math.Abs(k.sum) >= math.Abs(v) {
		k.comp += (k.sum - t) + v
	} else {
		k.comp += (v - t) + k.sum
	}

	k.sum = t

	return k
}

// Merge implements Mergeable.
func (k KahanSum) Merge(o KahanSum) KahanSum {
	return k.Add(o.sum).Add(o.comp)
}

// KahanOf folds get(r) into a KahanSum.
func KahanOf[R any](get func(R) float64) aggregate.Fold[KahanSum, R] {
	return foldEach(func(k KahanSum, r R) KahanSum { return k.Add(get(r)) })
}

// DecimalSum is an exact decimal running sum. Every float64 input is
// converted through its shortest decimal representation.
type DecimalSum struct {
	Total decimal.Decimal
}

// Add returns d with v added.
func (d DecimalSum) Add(v float64) DecimalSum {
	d.Total = d.Total.Add(decimal.NewFromFloat(v))

	return d
}

// Float64 returns the nearest float64 to the exact total.
func (d DecimalSum) Float64() float64 {
	return d.Total.InexactFloat64()
}

// Merge implements Mergeable.
func (d DecimalSum) Merge(o DecimalSum) DecimalSum {
	d.Total = d.Total.Add(o.Total)

	return d
}

// DecimalOf folds get(r) into a DecimalSum.
func DecimalOf[R any](get func(R) float64) aggregate.Fold[DecimalSum, R] {
	return foldEach(func(d DecimalSum, r R) DecimalSum { return d.Add(get(r)) })
}

// Count counts records.
type Count struct {
	N int64
}

// Merge implements Mergeable.
func (c Count) Merge(o Count) Count {
	return Count{N: c.N + o.N}
}

// CountOf counts every record of a window.
func CountOf[R any]() aggregate.Fold[Count, R] {
	return func(c Count, window []R) (Count, error) {
		c.N += int64(len(window))

		return c, nil
	}
}
