// Package accum provides fixed-shape accumulators and the fold and combine
// functions that drive them through package aggregate. Accumulators are
// values: folds return an updated copy and never share state with the input.
package accum

import (
	"github.com/Sumatoshi-tech/chunkfold/pkg/aggregate"
)

// Mergeable is an accumulator that can absorb a partial of the same shape.
type Mergeable[A any] interface {
	Merge(other A) A
}

// Merge is the Combine function for any Mergeable accumulator.
func Merge[A Mergeable[A]](a, b A) (A, error) {
	return a.Merge(b), nil
}

// Combiner returns Merge as an aggregate.Combine for A.
func Combiner[A Mergeable[A]]() aggregate.Combine[A] {
	return Merge[A]
}

// foldEach builds a fold that applies step to every record in order.
func foldEach[A, R any](step func(A, R) A) aggregate.Fold[A, R] {
	return func(acc A, window []R) (A, error) {
		for _, r := range window {
			acc = step(acc, r)
		}

		return acc, nil
	}
}
