package stats

// EMA is an exponential moving average. The zero value with Alpha set is
// ready to use; the first observation seeds the average.
type EMA struct {
	// Alpha is the smoothing factor in (0, 1]. 1 tracks the last observation.
	Alpha float64

	mean float64
	n    int
}

// Observe adds v and returns the new average.
func (e *EMA) Observe(v float64) float64 {
	e.n++

	if e.n == 1 {
		e.mean = v
	} else {
		e.mean += e.Alpha * (v - e.mean)
	}

	return e.mean
}

// Mean is the current average, 0 before any observation.
func (e *EMA) Mean() float64 { return e.mean }

// N is the number of observations.
func (e *EMA) N() int { return e.n }
