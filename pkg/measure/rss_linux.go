//go:build linux

package measure

import (
	"fmt"
	"os"
)

// ProcessRSS returns the resident set size of the current process.
func ProcessRSS() (uint64, error) {
	f, err := os.Open("/proc/self/statm")
	if err != nil {
		return 0, fmt.Errorf("%w: %w", ErrRSSUnsupported, err)
	}

	defer f.Close()

	var vsize, rss uint64

	_, err = fmt.Fscan(f, &vsize, &rss)
	if err != nil {
		return 0, fmt.Errorf("parse statm: %w", err)
	}

	return rss * uint64(os.Getpagesize()), nil
}
