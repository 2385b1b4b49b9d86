// Package idgen generates record identifiers of the form
// "<prefix>-<base36 timestamp>-<base36 random>".
package idgen

import (
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
)

// New returns a fresh id for the given record-type prefix, e.g. "fact",
// "ep", "cl", "proc", "cluster", "chg", "run".
func New(prefix string) string {
	ts := strconv.FormatInt(time.Now().UTC().UnixNano(), 36)
	rnd := randomBase36()
	return prefix + "-" + ts + "-" + rnd
}

// randomBase36 derives a base36 random component from a UUIDv4's entropy,
// reusing google/uuid's CSPRNG rather than rolling a second one.
func randomBase36() string {
	u := uuid.New()
	hi := uint64(0)
	lo := uint64(0)
	for i := 0; i < 8; i++ {
		hi = hi<<8 | uint64(u[i])
	}
	for i := 8; i < 16; i++ {
		lo = lo<<8 | uint64(u[i])
	}
	s := strconv.FormatUint(hi, 36) + strconv.FormatUint(lo, 36)
	if len(s) > 16 {
		s = s[:16]
	}
	return s
}

// Prefix returns the record-type prefix embedded in an id, or "" if the
// id does not look like one of ours.
func Prefix(id string) string {
	idx := strings.IndexByte(id, '-')
	if idx < 0 {
		return ""
	}
	return id[:idx]
}
