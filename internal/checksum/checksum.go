// Package checksum fingerprints note file contents.
package checksum

import (
	"strconv"

	"github.com/cespare/xxhash/v2"
)

// Sum returns the hex-encoded xxhash64 digest of data.
func Sum(data []byte) string {
	return strconv.FormatUint(xxhash.Sum64(data), 16)
}
