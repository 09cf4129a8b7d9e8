package decisions

import (
	"io"
	"testing"
	"time"

	"github.com/tmkontra/syncify/internal/models"
	"github.com/tmkontra/syncify/internal/shared"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	db, err := shared.NewDatabase(":memory:")
	if err != nil {
		t.Fatalf("failed to open database: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	if err := shared.RunMigrations(db); err != nil {
		t.Fatalf("failed to run migrations: %v", err)
	}
	return NewStore(db, shared.NewLogger(io.Discard))
}

func TestFingerprint(t *testing.T) {
	entry := models.LocalEntry{Locator: "/music/a.mp3", Artist: "Nina Simone", Title: "Feeling Good"}

	t.Run("stable", func(t *testing.T) {
		if Fingerprint(entry, "c1") != Fingerprint(entry, "c1") {
			t.Error("equal inputs must produce equal fingerprints")
		}
	})

	t.Run("candidate id distinguishes", func(t *testing.T) {
		if Fingerprint(entry, "c1") == Fingerprint(entry, "c2") {
			t.Error("different candidate ids must produce different fingerprints")
		}
		if Fingerprint(entry, "c1") == Fingerprint(entry, "") {
			t.Error("candidate vs no-candidate must differ")
		}
	})

	t.Run("normalization applied", func(t *testing.T) {
		variant := entry
		variant.Artist = "NINA SIMONE"
		if Fingerprint(entry, "c1") != Fingerprint(variant, "c1") {
			t.Error("case differences should normalize to the same fingerprint")
		}
	})
}

func TestStore(t *testing.T) {
	entry := models.LocalEntry{Locator: "/music/a.mp3", Artist: "Nina Simone", Title: "Feeling Good"}

	t.Run("record and cached", func(t *testing.T) {
		store := newTestStore(t)
		err := store.Record(models.Decision{
			SourceLocator: entry.Locator,
			Artist:        entry.Artist,
			Title:         entry.Title,
			CandidateID:   "c1",
			MatchedArtist: "Nina Simone",
			Outcome:       models.OutcomeAccept,
		})
		if err != nil {
			t.Fatalf("Record failed: %v", err)
		}

		d, found := store.Cached(entry, "c1")
		if !found {
			t.Fatal("expected cached decision")
		}
		if d.Outcome != models.OutcomeAccept || d.CandidateID != "c1" {
			t.Errorf("unexpected decision %+v", d)
		}
	})

	t.Run("miss for unknown pair", func(t *testing.T) {
		store := newTestStore(t)
		if _, found := store.Cached(entry, "absent"); found {
			t.Error("expected miss for unrecorded pair")
		}
	})

	t.Run("upsert replaces outcome", func(t *testing.T) {
		store := newTestStore(t)
		base := models.Decision{
			SourceLocator: entry.Locator, Artist: entry.Artist, Title: entry.Title,
			CandidateID: "c1", Outcome: models.OutcomeAccept,
		}
		if err := store.Record(base); err != nil {
			t.Fatalf("Record failed: %v", err)
		}
		base.Outcome = models.OutcomeReject
		if err := store.Record(base); err != nil {
			t.Fatalf("second Record failed: %v", err)
		}

		d, found := store.Cached(entry, "c1")
		if !found || d.Outcome != models.OutcomeReject {
			t.Errorf("expected rejected after upsert, got %+v", d)
		}
	})

	t.Run("expired decision evicted on read", func(t *testing.T) {
		store := newTestStore(t)
		if err := store.Record(models.Decision{
			SourceLocator: entry.Locator, Artist: entry.Artist, Title: entry.Title,
			CandidateID: "c1", Outcome: models.OutcomeAccept,
		}); err != nil {
			t.Fatalf("Record failed: %v", err)
		}

		store.now = func() time.Time { return time.Now().Add(RetentionWindow + time.Hour) }
		if _, found := store.Cached(entry, "c1"); found {
			t.Error("expected miss for expired decision")
		}

		// The row is gone even at the original clock.
		store.now = time.Now
		if _, found := store.Cached(entry, "c1"); found {
			t.Error("expired decision should be evicted, not just hidden")
		}
	})
}

func TestMinePatterns(t *testing.T) {
	accept := func(store *Store, locator, artist, matched string) {
		t.Helper()
		err := store.Record(models.Decision{
			SourceLocator: locator,
			Artist:        artist,
			Title:         "Song",
			CandidateID:   "c-" + locator,
			MatchedArtist: matched,
			Outcome:       models.OutcomeAccept,
		})
		if err != nil {
			t.Fatalf("Record failed: %v", err)
		}
	}

	t.Run("promotes recurring correction", func(t *testing.T) {
		store := newTestStore(t)
		accept(store, "a1", "Xplastaz", "X Plastaz")
		accept(store, "a2", "Xplastaz", "X Plastaz")

		patterns, err := store.MinePatterns()
		if err != nil {
			t.Fatalf("MinePatterns failed: %v", err)
		}
		if len(patterns) != 1 {
			t.Fatalf("expected 1 pattern, got %d", len(patterns))
		}
		p := patterns[0]
		if p.Variant != "xplastaz" || p.Canonical != "X Plastaz" || p.Occurrences != 2 {
			t.Errorf("unexpected pattern %+v", p)
		}
	})

	t.Run("single occurrence not promoted", func(t *testing.T) {
		store := newTestStore(t)
		accept(store, "a1", "Xplastaz", "X Plastaz")

		patterns, err := store.MinePatterns()
		if err != nil {
			t.Fatalf("MinePatterns failed: %v", err)
		}
		if len(patterns) != 0 {
			t.Errorf("expected no patterns, got %+v", patterns)
		}
	})

	t.Run("unrelated names not promoted", func(t *testing.T) {
		store := newTestStore(t)
		accept(store, "a1", "Somebody", "Completely Different Band")
		accept(store, "a2", "Somebody", "Completely Different Band")

		patterns, err := store.MinePatterns()
		if err != nil {
			t.Fatalf("MinePatterns failed: %v", err)
		}
		if len(patterns) != 0 {
			t.Errorf("dissimilar names should not promote, got %+v", patterns)
		}
	})

	t.Run("identity not promoted", func(t *testing.T) {
		store := newTestStore(t)
		accept(store, "a1", "Nina Simone", "Nina Simone")
		accept(store, "a2", "Nina Simone", "Nina Simone")

		patterns, err := store.MinePatterns()
		if err != nil {
			t.Fatalf("MinePatterns failed: %v", err)
		}
		if len(patterns) != 0 {
			t.Errorf("identity mapping should not promote, got %+v", patterns)
		}
	})
}

func TestApplyPatterns(t *testing.T) {
	patterns := []models.LearnedPattern{
		{Variant: "xplastaz", Canonical: "X Plastaz", Occurrences: 3},
	}

	t.Run("patch applied", func(t *testing.T) {
		entry := models.LocalEntry{Artist: "Xplastaz", Title: "Msimu Kwa Msimu"}
		patched, changed := ApplyPatterns(entry, patterns)
		if !changed || patched.Artist != "X Plastaz" {
			t.Errorf("ApplyPatterns = (%+v, %v)", patched, changed)
		}
		if patched.Title != entry.Title {
			t.Error("title must not change")
		}
	})

	t.Run("no match passes through", func(t *testing.T) {
		entry := models.LocalEntry{Artist: "Nina Simone", Title: "Feeling Good"}
		patched, changed := ApplyPatterns(entry, patterns)
		if changed || patched != entry {
			t.Errorf("ApplyPatterns = (%+v, %v), want unchanged", patched, changed)
		}
	})
}
