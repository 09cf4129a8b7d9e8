package cache

import (
	"database/sql"
	"time"

	"github.com/charmbracelet/log"
)

// SQLite persists cache entries in the kv_cache table so resolutions
// survive across runs. Expiry is checked at read time.
type SQLite struct {
	db     *sql.DB
	logger *log.Logger
	now    func() time.Time
}

// NewSQLite wraps an open database. The migrations must already have
// been applied.
func NewSQLite(db *sql.DB, logger *log.Logger) *SQLite {
	return &SQLite{db: db, logger: logger, now: time.Now}
}

func (s *SQLite) Get(key string) ([]byte, bool) {
	var value []byte
	var expires sql.NullTime
	err := s.db.QueryRow("SELECT value, expires_at FROM kv_cache WHERE key = ?", key).Scan(&value, &expires)
	if err == sql.ErrNoRows {
		return nil, false
	}
	if err != nil {
		// A failed read is a miss, not a failure of the caller's run.
		s.logger.Warn("cache read failed, treating as miss", "key", key, "error", err)
		return nil, false
	}
	if expires.Valid && s.now().After(expires.Time) {
		s.Delete(key)
		return nil, false
	}
	if len(value) == 0 {
		s.logger.Warn("corrupted cache entry, treating as miss", "key", key)
		s.Delete(key)
		return nil, false
	}
	return value, true
}

func (s *SQLite) Put(key string, value []byte, ttl time.Duration) {
	var expires any
	if ttl > 0 {
		expires = s.now().Add(ttl)
	}
	_, err := s.db.Exec(
		"INSERT INTO kv_cache (key, value, expires_at) VALUES (?, ?, ?) ON CONFLICT(key) DO UPDATE SET value = excluded.value, expires_at = excluded.expires_at",
		key, value, expires,
	)
	if err != nil {
		s.logger.Warn("cache write failed", "key", key, "error", err)
	}
}

func (s *SQLite) Delete(key string) {
	if _, err := s.db.Exec("DELETE FROM kv_cache WHERE key = ?", key); err != nil {
		s.logger.Warn("cache delete failed", "key", key, "error", err)
	}
}

// Clear drops every entry.
func (s *SQLite) Clear() error {
	_, err := s.db.Exec("DELETE FROM kv_cache")
	return err
}

// Stats counts live and expired entries.
func (s *SQLite) Stats() (Stats, error) {
	var stats Stats
	err := s.db.QueryRow("SELECT COUNT(*) FROM kv_cache").Scan(&stats.Entries)
	if err != nil {
		return stats, err
	}
	err = s.db.QueryRow("SELECT COUNT(*) FROM kv_cache WHERE expires_at IS NOT NULL AND expires_at < ?", s.now()).Scan(&stats.Expired)
	if err != nil {
		return stats, err
	}
	stats.Entries -= stats.Expired
	return stats, nil
}
