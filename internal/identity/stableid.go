// Package identity bridges the browser's session-scoped tab and group ids to
// durable rows keyed by stable ids.
//
// A browser id is only a binding: it is cleared by BeginSession and re-made on
// the next observation. The stable id is the key that survives restarts.
package identity

import (
	"crypto/rand"
	"io"
	"strings"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
)

// Stable id prefixes.
const (
	TabPrefix   = "tab"
	GroupPrefix = "grp"
)

var (
	entropyMu sync.Mutex
	entropy   io.Reader = ulid.Monotonic(rand.Reader, 0)
)

// NewTabStableID allocates a stable id for a tab, e.g. tab_01J9Z...
func NewTabStableID() string {
	return newStableID(TabPrefix)
}

// NewGroupStableID allocates a stable id for a tab group.
func NewGroupStableID() string {
	return newStableID(GroupPrefix)
}

func newStableID(prefix string) string {
	entropyMu.Lock()
	defer entropyMu.Unlock()
	return prefix + "_" + ulid.MustNew(ulid.Timestamp(time.Now()), entropy).String()
}

// ValidStableID reports whether s has the given prefix followed by a ULID.
func ValidStableID(prefix, s string) bool {
	rest, ok := strings.CutPrefix(s, prefix+"_")
	if !ok {
		return false
	}
	_, err := ulid.Parse(rest)
	return err == nil
}
