package units

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBinarySizeConstants(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		got  int64
		want int64
	}{
		{"KiB equals 1024", KiB, 1024},
		{"MiB equals 1024*KiB", MiB, 1024 * 1024},
		{"GiB equals 1024*MiB", GiB, 1024 * 1024 * 1024},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			assert.Equal(t, tt.want, tt.got)
		})
	}
}

func TestToMiB(t *testing.T) {
	t.Parallel()

	assert.InDelta(t, 1.5, ToMiB(MiB+MiB/2), 1e-12)
	assert.InDelta(t, 0.0, ToMiB(0), 1e-12)
	assert.InDelta(t, 2.0, ToKiB(2*KiB), 1e-12)
}

func TestBytesRoundTrip(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "1.0 MiB", Bytes(MiB))

	n, err := ParseBytes("4MiB")
	require.NoError(t, err)
	assert.Equal(t, uint64(4*MiB), n)

	_, err = ParseBytes("lots")
	require.Error(t, err)
}
