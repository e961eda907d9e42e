package id

import (
	"crypto/rand"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
)

var (
	mu sync.Mutex
	// Monotonic entropy keeps ids minted within the same millisecond in
	// creation order, which notification fan-out relies on for stable listing.
	entropy = ulid.Monotonic(rand.Reader, 0)
)

// New generates a ULID for the current time.
func New() string {
	return NewAt(time.Now())
}

// NewAt generates a ULID whose timestamp is t, so an id can share the
// creation time stored beside it.
func NewAt(t time.Time) string {
	mu.Lock()
	defer mu.Unlock()
	return ulid.MustNew(ulid.Timestamp(t), entropy).String()
}
