package aggregate

import (
	"fmt"

	"github.com/Sumatoshi-tech/chunkfold/pkg/source"
)

// Chunk size bounds used when sizing windows from a memory budget.
const (
	// MinBudgetChunkSize keeps per-window overhead amortized on tight budgets.
	MinBudgetChunkSize = 64

	// MaxBudgetChunkSize caps the window so a single fold stays short.
	MaxBudgetChunkSize = 1 << 22

	// safetyMarginPercent accounts for transient fold allocations that scale
	// with the window but are not part of the window buffer itself.
	safetyMarginPercent = 50

	percentDivisor = 100
)

// Plan returns the window ranges Chunked reads for a source of total
// records: consecutive [start, end) ranges of chunkSize records, the last
// one holding the remainder.
func Plan(total int64, chunkSize int) ([]source.Range, error) {
	if chunkSize <= 0 {
		return nil, fmt.Errorf("%w: chunk size %d", ErrInvalidArgument, chunkSize)
	}

	if total < 0 {
		return nil, fmt.Errorf("%w: total %d", ErrInvalidArgument, total)
	}

	if total == 0 {
		return nil, nil
	}

	step := int64(chunkSize)
	windows := make([]source.Range, 0, (total+step-1)/step)

	for start := int64(0); start < total; start += step {
		windows = append(windows, source.Range{Start: start, End: min(start+step, total)})
	}

	return windows, nil
}

// ChunkSizeForBudget derives a window size from a memory budget and the
// in-memory size of one record, leaving headroom for fold allocations.
// A zero budget selects MaxBudgetChunkSize.
func ChunkSizeForBudget(budget, recordBytes uint64) int {
	if budget == 0 {
		return MaxBudgetChunkSize
	}

	perRecord := max(recordBytes, 1)
	perRecord += perRecord * safetyMarginPercent / percentDivisor

	fit := budget / perRecord

	return int(max(min(fit, MaxBudgetChunkSize), MinBudgetChunkSize))
}

// Partitions splits total records into n contiguous ranges of
// floor(total/n) records; the last range takes the remainder. When
// total < n the leading ranges are empty.
func Partitions(total int64, n int) ([]source.Range, error) {
	if n <= 0 {
		return nil, fmt.Errorf("%w: %d workers", ErrInvalidArgument, n)
	}

	if total < 0 {
		return nil, fmt.Errorf("%w: total %d", ErrInvalidArgument, total)
	}

	return partitionsOf(source.Range{Start: 0, End: total}, n), nil
}

func partitionsOf(span source.Range, n int) []source.Range {
	size := span.Len() / int64(n)
	parts := make([]source.Range, n)

	for i := range parts {
		start := span.Start + int64(i)*size
		parts[i] = source.Range{Start: start, End: start + size}
	}

	parts[n-1].End = span.End

	return parts
}
