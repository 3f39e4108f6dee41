package accum

import (
	"encoding/binary"
	"math"

	"github.com/cespare/xxhash/v2"

	"github.com/Sumatoshi-tech/chunkfold/pkg/aggregate"
)

// Digest is an order-sensitive fingerprint of a record stream. Each record
// is hashed together with the running value, so two streams share a digest
// only if they hold the same records in the same order regardless of how
// they were windowed. Digests of partitions cannot be combined.
type Digest struct {
	Sum     uint64
	Records int64
}

// DigestOf folds records into a Digest. encode appends the canonical byte
// form of r to dst and returns the extended slice.
func DigestOf[R any](encode func(dst []byte, r R) []byte) aggregate.Fold[Digest, R] {
	return func(d Digest, window []R) (Digest, error) {
		buf := make([]byte, 0, 64)

		for _, r := range window {
			buf = binary.LittleEndian.AppendUint64(buf[:0], d.Sum)
			buf = encode(buf, r)
			d.Sum = xxhash.Sum64(buf)
			d.Records++
		}

		return d, nil
	}
}

// Float64Bytes is a DigestOf encoder for float64 records.
func Float64Bytes(dst []byte, v float64) []byte {
	return binary.LittleEndian.AppendUint64(dst, math.Float64bits(v))
}
