package cache

import (
	"time"

	gocache "github.com/patrickmn/go-cache"
)

// Memory is an in-process TTL cache. Suitable for single-run tools and
// tests; nothing survives process exit.
type Memory struct {
	store *gocache.Cache
}

// NewMemory creates a memory cache that sweeps expired entries every
// ten minutes.
func NewMemory() *Memory {
	return &Memory{store: gocache.New(gocache.NoExpiration, 10*time.Minute)}
}

func (m *Memory) Get(key string) ([]byte, bool) {
	v, found := m.store.Get(key)
	if !found {
		return nil, false
	}
	data, ok := v.([]byte)
	if !ok {
		// Foreign value under our key; treat as a miss.
		m.store.Delete(key)
		return nil, false
	}
	return data, true
}

func (m *Memory) Put(key string, value []byte, ttl time.Duration) {
	if ttl <= 0 {
		ttl = gocache.NoExpiration
	}
	m.store.Set(key, value, ttl)
}

func (m *Memory) Delete(key string) {
	m.store.Delete(key)
}

// Clear drops every entry.
func (m *Memory) Clear() {
	m.store.Flush()
}

// Stats reports the live entry count. Expired entries are swept by the
// underlying store, so the expired count is always zero here.
func (m *Memory) Stats() Stats {
	return Stats{Entries: m.store.ItemCount()}
}
