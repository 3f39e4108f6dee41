// Package units provides binary size unit multipliers (1024-based) and
// conversions used when reporting memory measurements.
package units

import "github.com/dustin/go-humanize"

// Binary size multipliers.
const (
	KiB = 1024
	MiB = 1024 * KiB
	GiB = 1024 * MiB
)

// ToMiB converts a byte count to fractional mebibytes.
func ToMiB(bytes uint64) float64 {
	return float64(bytes) / MiB
}

// ToKiB converts a byte count to fractional kibibytes.
func ToKiB(bytes uint64) float64 {
	return float64(bytes) / KiB
}

// Bytes formats a byte count with IEC suffixes (e.g. "12 MiB").
func Bytes(bytes uint64) string {
	return humanize.IBytes(bytes)
}

// ParseBytes parses a humanized size string ("256MB", "1GiB", "4096").
func ParseBytes(s string) (uint64, error) {
	return humanize.ParseBytes(s)
}
