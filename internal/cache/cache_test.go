package cache

import (
	"io"
	"testing"
	"time"

	"github.com/tmkontra/syncify/internal/shared"
)

func newTestSQLite(t *testing.T) *SQLite {
	t.Helper()
	db, err := shared.NewDatabase(":memory:")
	if err != nil {
		t.Fatalf("failed to open database: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	if err := shared.RunMigrations(db); err != nil {
		t.Fatalf("failed to run migrations: %v", err)
	}
	return NewSQLite(db, shared.NewLogger(io.Discard))
}

func TestMemory(t *testing.T) {
	t.Run("roundtrip", func(t *testing.T) {
		c := NewMemory()
		c.Put("k", []byte("v"), time.Minute)

		got, ok := c.Get("k")
		if !ok || string(got) != "v" {
			t.Errorf("Get = (%q, %v), want (v, true)", got, ok)
		}
	})

	t.Run("miss", func(t *testing.T) {
		c := NewMemory()
		if _, ok := c.Get("absent"); ok {
			t.Error("expected miss for absent key")
		}
	})

	t.Run("delete", func(t *testing.T) {
		c := NewMemory()
		c.Put("k", []byte("v"), time.Minute)
		c.Delete("k")
		if _, ok := c.Get("k"); ok {
			t.Error("expected miss after delete")
		}
	})

	t.Run("clear and stats", func(t *testing.T) {
		c := NewMemory()
		c.Put("a", []byte("1"), 0)
		c.Put("b", []byte("2"), 0)
		if s := c.Stats(); s.Entries != 2 {
			t.Errorf("Stats.Entries = %d, want 2", s.Entries)
		}
		c.Clear()
		if s := c.Stats(); s.Entries != 0 {
			t.Errorf("Stats.Entries after Clear = %d, want 0", s.Entries)
		}
	})
}

func TestSQLite(t *testing.T) {
	t.Run("roundtrip", func(t *testing.T) {
		c := newTestSQLite(t)
		c.Put("k", []byte("v"), time.Minute)

		got, ok := c.Get("k")
		if !ok || string(got) != "v" {
			t.Errorf("Get = (%q, %v), want (v, true)", got, ok)
		}
	})

	t.Run("upsert overwrites", func(t *testing.T) {
		c := newTestSQLite(t)
		c.Put("k", []byte("old"), time.Minute)
		c.Put("k", []byte("new"), time.Minute)

		got, _ := c.Get("k")
		if string(got) != "new" {
			t.Errorf("Get = %q, want new", got)
		}
	})

	t.Run("expired entry is a miss", func(t *testing.T) {
		c := newTestSQLite(t)
		c.Put("k", []byte("v"), time.Minute)

		c.now = func() time.Time { return time.Now().Add(2 * time.Minute) }
		if _, ok := c.Get("k"); ok {
			t.Error("expected miss for expired entry")
		}
	})

	t.Run("zero ttl never expires", func(t *testing.T) {
		c := newTestSQLite(t)
		c.Put("k", []byte("v"), 0)

		c.now = func() time.Time { return time.Now().Add(365 * 24 * time.Hour) }
		if _, ok := c.Get("k"); !ok {
			t.Error("entry with zero ttl should not expire")
		}
	})

	t.Run("corrupted entry is a miss", func(t *testing.T) {
		c := newTestSQLite(t)
		if _, err := c.db.Exec("INSERT INTO kv_cache (key, value) VALUES ('bad', '')"); err != nil {
			t.Fatalf("failed to seed corrupt row: %v", err)
		}
		if _, ok := c.Get("bad"); ok {
			t.Error("expected miss for corrupted entry")
		}
		// The corrupt row is evicted on read.
		var count int
		if err := c.db.QueryRow("SELECT COUNT(*) FROM kv_cache WHERE key = 'bad'").Scan(&count); err != nil {
			t.Fatalf("count failed: %v", err)
		}
		if count != 0 {
			t.Error("corrupted entry should be evicted")
		}
	})

	t.Run("clear and stats", func(t *testing.T) {
		c := newTestSQLite(t)
		c.Put("a", []byte("1"), time.Hour)
		c.Put("b", []byte("2"), time.Hour)

		stats, err := c.Stats()
		if err != nil {
			t.Fatalf("Stats failed: %v", err)
		}
		if stats.Entries != 2 {
			t.Errorf("Stats.Entries = %d, want 2", stats.Entries)
		}

		if err := c.Clear(); err != nil {
			t.Fatalf("Clear failed: %v", err)
		}
		stats, err = c.Stats()
		if err != nil {
			t.Fatalf("Stats failed: %v", err)
		}
		if stats.Entries != 0 {
			t.Errorf("Stats.Entries after Clear = %d, want 0", stats.Entries)
		}
	})
}
