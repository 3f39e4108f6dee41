package aggregate

import "math"

// DefaultTolerance is the relative tolerance for comparing chunked, naive and
// partitioned floating-point results.
const DefaultTolerance = 1e-9

// ApproxEqual reports whether a and b agree within relTol relative to the
// larger magnitude. NaN never compares equal.
func ApproxEqual(a, b, relTol float64) bool {
	if a == b {
		return true
	}

	if math.IsNaN(a) || math.IsNaN(b) || math.IsInf(a, 0) || math.IsInf(b, 0) {
		return false
	}

	return math.Abs(a-b) <= relTol*max(math.Abs(a), math.Abs(b))
}
