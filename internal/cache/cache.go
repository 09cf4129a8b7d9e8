// Package cache provides the best-effort key/value store used to
// memoize catalog lookups. A miss or corrupted entry is never an
// error, only a signal to recompute.
package cache

import "time"

// Cache is the narrow contract resolution code depends on. Backends
// must be safe for concurrent use; writes follow an upsert discipline
// where the last writer wins.
type Cache interface {
	// Get returns the stored value, or false on miss, expiry, or a
	// corrupted entry.
	Get(key string) ([]byte, bool)
	// Put stores value under key for ttl. A zero ttl means no expiry.
	Put(key string, value []byte, ttl time.Duration)
	Delete(key string)
}

// Stats summarizes a backend's contents for the CLI.
type Stats struct {
	Entries int
	Expired int
}
