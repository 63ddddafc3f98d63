package ops

import (
	"math/rand"
	"strconv"
	"sync/atomic"
)

// Named uuids reference rows inserted earlier in the same OVSDB transaction.
// They must be valid identifiers, so they start with a letter.
const namedUUIDTag = "row"

var rowCounter = rand.Uint64() >> 16

// BuildNamedUUID returns a named uuid unique within the process
func BuildNamedUUID() string {
	return namedUUIDTag + strconv.FormatUint(atomic.AddUint64(&rowCounter, 1), 10)
}

// IsNamedUUID reports whether id was returned by BuildNamedUUID
func IsNamedUUID(id string) bool {
	if len(id) <= len(namedUUIDTag) || id[:len(namedUUIDTag)] != namedUUIDTag {
		return false
	}
	_, err := strconv.ParseUint(id[len(namedUUIDTag):], 10, 64)
	return err == nil
}
