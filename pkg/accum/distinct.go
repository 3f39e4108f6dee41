package accum

import (
	"math"
	"math/bits"

	"github.com/cespare/xxhash/v2"

	"github.com/Sumatoshi-tech/chunkfold/pkg/aggregate"
)

// distinctPrecision selects 2^14 registers, about 0.8% standard error.
const distinctPrecision = 14

const distinctRegisters = 1 << distinctPrecision

// LogLog-Beta bias polynomial for precision 14 (Qin et al. 2016).
var distinctBeta = [8]float64{
	-0.370393911, 0.070471823, 0.17393686, 0.16339839,
	-0.09237745, 0.03738027, -0.005384159, 0.00042419,
}

// Distinct is a HyperLogLog estimate of the number of distinct keys seen.
// Estimates of disjoint or overlapping partitions merge exactly: the merged
// sketch equals the sketch of the concatenated stream.
type Distinct struct {
	registers []uint8
}

// add records one hashed key in place.
func (d Distinct) add(h uint64) {
	idx := h >> (64 - distinctPrecision)
	rest := h<<distinctPrecision | 1<<(distinctPrecision-1)
	rho := uint8(bits.LeadingZeros64(rest)) + 1

	if rho > d.registers[idx] {
		d.registers[idx] = rho
	}
}

// Merge returns the register-wise maximum of d and o.
func (d Distinct) Merge(o Distinct) Distinct {
	if d.registers == nil {
		return o
	}

	if o.registers == nil {
		return d
	}

	out := Distinct{registers: make([]uint8, distinctRegisters)}
	for i := range out.registers {
		out.registers[i] = max(d.registers[i], o.registers[i])
	}

	return out
}

// Estimate returns the approximate distinct count.
func (d Distinct) Estimate() uint64 {
	if d.registers == nil {
		return 0
	}

	var (
		zeros    float64
		harmonic float64
	)

	for _, r := range d.registers {
		if r == 0 {
			zeros++
		}

		harmonic += math.Exp2(-float64(r))
	}

	if zeros == distinctRegisters {
		return 0
	}

	m := float64(distinctRegisters)
	alpha := 0.7213 / (1 + 1.079/m)

	return uint64(math.Round(alpha * m * (m - zeros) / (beta(zeros) + harmonic)))
}

func beta(zeros float64) float64 {
	zl := math.Log(zeros + 1)
	out := distinctBeta[0] * zeros
	pow := 1.0

	for _, c := range distinctBeta[1:] {
		pow *= zl
		out += c * pow
	}

	return out
}

// DistinctOf folds records into a Distinct keyed by the bytes encode
// appends for each record.
func DistinctOf[R any](encode func(dst []byte, r R) []byte) aggregate.Fold[Distinct, R] {
	return func(d Distinct, window []R) (Distinct, error) {
		if len(window) == 0 {
			return d, nil
		}

		out := Distinct{registers: make([]uint8, distinctRegisters)}
		copy(out.registers, d.registers)

		buf := make([]byte, 0, 64)

		for _, r := range window {
			buf = encode(buf[:0], r)
			out.add(xxhash.Sum64(buf))
		}

		return out, nil
	}
}
