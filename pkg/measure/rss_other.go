//go:build !linux

package measure

// ProcessRSS is only implemented on Linux.
func ProcessRSS() (uint64, error) {
	return 0, ErrRSSUnsupported
}
