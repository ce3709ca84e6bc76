package event

import (
	"strconv"

	"github.com/cespare/xxhash/v2"
)

// DeriveID produces a stable correlation id from a label. Async and flow
// records that belong together need a shared id; when the call site has no
// natural one, hashing the label gives the same id on every occurrence.
func DeriveID(label string) string {
	return strconv.FormatUint(xxhash.Sum64String(label), 16)
}
