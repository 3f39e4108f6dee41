package measure

import (
	"errors"
	"unsafe"
)

// ErrRSSUnsupported is returned by ProcessRSS where the platform offers no
// cheap way to read the resident set.
var ErrRSSUnsupported = errors.New("measure: process RSS not supported on this platform")

// SliceBytes returns the shallow size of the backing array of s. Memory
// referenced by the elements (strings, pointers) is not included.
func SliceBytes[T any](s []T) uint64 {
	var zero T

	return uint64(cap(s)) * uint64(unsafe.Sizeof(zero))
}
