// Package xid generates prefixed identifiers for carts, tickets,
// products and cash cuts. The nanosecond stamp keeps ids roughly
// sortable by creation time; the random suffix keeps them unique.
package xid

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"time"
)

// New returns an id of the form prefix-<unixnano>-<8 random bytes hex>.
// If the random source fails the id falls back to the stamp alone.
func New(prefix string) string {
	stamp := time.Now().UnixNano()
	suffix := make([]byte, 8)
	if _, err := rand.Read(suffix); err != nil {
		return fmt.Sprintf("%s-%d", prefix, stamp)
	}
	return fmt.Sprintf("%s-%d-%s", prefix, stamp, hex.EncodeToString(suffix))
}
