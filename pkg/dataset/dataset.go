// Package dataset generates the deterministic synthetic tables the strategy
// gallery runs on. Every value is a pure function of (seed, index), so any
// range of a generated source reads the same records no matter how it is
// windowed or partitioned.
package dataset

import (
	"encoding/binary"
	"math"

	"github.com/cespare/xxhash/v2"

	"github.com/Sumatoshi-tech/chunkfold/pkg/source"
)

// Categories are the group keys assigned to generated records.
var Categories = []string{"A", "B", "C", "D"}

// Record is one row of the id/value/category table.
type Record struct {
	ID       int64   `json:"id" parquet:"id"`
	Value    float64 `json:"value" parquet:"value"`
	Category string  `json:"category" parquet:"category,dict"`
}

// Field streams used to derive independent values from one index.
const (
	streamUniform uint64 = iota + 1
	streamNormalU
	streamNormalV
	streamCategory
)

// mantissaBits is the number of random bits in a float64 in [0, 1).
const mantissaBits = 53

func hash(seed uint64, stream uint64, i int64) uint64 {
	var buf [24]byte

	binary.LittleEndian.PutUint64(buf[0:], seed)
	binary.LittleEndian.PutUint64(buf[8:], stream)
	binary.LittleEndian.PutUint64(buf[16:], uint64(i))

	return xxhash.Sum64(buf[:])
}

func unit(h uint64) float64 {
	return float64(h>>(64-mantissaBits)) / (1 << mantissaBits)
}

// UniformAt returns the i-th uniform value in [0, 1) of the given seed.
func UniformAt(seed uint64, i int64) float64 {
	return unit(hash(seed, streamUniform, i))
}

// NormalAt returns the i-th standard normal value of the given seed
// (Box-Muller over two independent uniforms).
func NormalAt(seed uint64, i int64) float64 {
	u := 1 - unit(hash(seed, streamNormalU, i)) // (0, 1] keeps the log finite.
	v := unit(hash(seed, streamNormalV, i))

	return math.Sqrt(-2*math.Log(u)) * math.Cos(2*math.Pi*v)
}

// RecordAt returns the i-th record of the given seed.
func RecordAt(seed uint64, i int64) Record {
	c := hash(seed, streamCategory, i) % uint64(len(Categories))

	return Record{ID: i, Value: NormalAt(seed, i), Category: Categories[c]}
}

// Uniform returns a lazily generated source of n uniform values.
func Uniform(n int64, seed uint64) source.Source[float64] {
	return source.FromFunc(n, func(i int64) float64 { return UniformAt(seed, i) })
}

// Records returns a lazily generated source of n records.
func Records(n int64, seed uint64) source.Source[Record] {
	return source.FromFunc(n, func(i int64) Record { return RecordAt(seed, i) })
}

// Doubled returns the id/value table of the CSV examples, where record i
// holds value 2*i.
func Doubled(n int64) source.Source[Record] {
	return source.FromFunc(n, func(i int64) Record {
		return Record{ID: i, Value: float64(2 * i), Category: Categories[i%int64(len(Categories))]}
	})
}

// SumIDTimesTwo is the exact sum of the Doubled table of n rows:
// 2 * (0 + 1 + ... + n-1).
func SumIDTimesTwo(n int64) float64 {
	if n <= 0 {
		return 0
	}

	return float64(n) * float64(n-1)
}

// RecordValue extracts Record.Value.
func RecordValue(r Record) float64 { return r.Value }

// RecordCategory extracts Record.Category.
func RecordCategory(r Record) string { return r.Category }

// Compact is a Record narrowed to the columns a value aggregation reads:
// a float32 value and the index of its category in Categories.
type Compact struct {
	Value    float32
	Category uint8
}

// CategoryCode returns the index of name in Categories.
func CategoryCode(name string) (uint8, bool) {
	for i, c := range Categories {
		if c == name {
			return uint8(i), true
		}
	}

	return 0, false
}

// CompactValue widens Compact.Value back to float64.
func CompactValue(c Compact) float64 { return float64(c.Value) }
