// Package xid generates prefixed, time-ordered identifiers for domain records
// (sales, payments, movements, notifications).
package xid

import (
	"crypto/rand"
	"fmt"
	"time"
)

// suffixBytes is the entropy appended after the timestamp. 8 bytes keeps
// collisions within a single nanosecond out of practical reach.
const suffixBytes = 8

// New returns an id of the form prefix-<unixnano>-<16 hex chars>. The leading
// timestamp keeps ids lexicographically sortable by creation time, which the
// sale path relies on for its ascending lock order.
func New(prefix string) string {
	now := time.Now().UnixNano()
	var suffix [suffixBytes]byte
	if _, err := rand.Read(suffix[:]); err != nil {
		return fmt.Sprintf("%s-%d", prefix, now)
	}
	return fmt.Sprintf("%s-%d-%x", prefix, now, suffix)
}
