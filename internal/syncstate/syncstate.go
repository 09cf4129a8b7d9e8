// Package syncstate content-hashes a playlist's resolved entries so
// unchanged playlists skip redundant reconciliation passes.
package syncstate

import (
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/tmkontra/syncify/internal/models"
)

// MaxAge forces a resync even for unchanged content. The hash cannot
// see direct edits to the remote playlist, so age acts as a liveness
// bound on that drift.
const MaxAge = 7 * 24 * time.Hour

// ContentHash hashes the sorted, pipe-joined (artist, title, album)
// tuples of the resolved entries. Order-independent: only a change to
// the multiset of tracks changes the hash. Tuples join on newline so
// field and tuple boundaries stay distinct.
func ContentHash(entries []models.LocalEntry) string {
	tuples := make([]string, 0, len(entries))
	for _, e := range entries {
		tuples = append(tuples, e.Artist+"|"+e.Title+"|"+e.Album)
	}
	sort.Strings(tuples)

	h := sha256.New()
	h.Write([]byte(strings.Join(tuples, "\n")))
	return hex.EncodeToString(h.Sum(nil))
}

// Tracker persists per-playlist sync states.
type Tracker struct {
	db  *sql.DB
	now func() time.Time
}

// NewTracker wraps an open, migrated database.
func NewTracker(db *sql.DB) *Tracker {
	return &Tracker{db: db, now: time.Now}
}

// NeedsSync reports whether a playlist must be reconciled and returns
// the hash of its current content. Sync is skipped only when the hash
// is unchanged and the last success is younger than MaxAge.
func (t *Tracker) NeedsSync(playlistKey string, entries []models.LocalEntry) (bool, string, error) {
	hash := ContentHash(entries)

	state, err := t.Get(playlistKey)
	if err != nil {
		return true, hash, err
	}
	if state == nil {
		return true, hash, nil
	}
	if state.ContentHash != hash {
		return true, hash, nil
	}
	if t.now().Sub(state.SyncedAt) >= MaxAge {
		return true, hash, nil
	}
	return false, hash, nil
}

// Get loads the stored state for a playlist, or nil when none exists.
func (t *Tracker) Get(playlistKey string) (*models.SyncState, error) {
	var state models.SyncState
	err := t.db.QueryRow(`SELECT playlist_key, remote_id, content_hash, track_count, matched_count, skipped_count, synced_at
		FROM sync_states WHERE playlist_key = ?`, playlistKey).Scan(
		&state.PlaylistKey, &state.RemoteID, &state.ContentHash,
		&state.TrackCount, &state.MatchedCount, &state.SkippedCount, &state.SyncedAt,
	)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load sync state: %w", err)
	}
	return &state, nil
}

// Record stores the state of a successful reconciliation.
func (t *Tracker) Record(state models.SyncState) error {
	if state.SyncedAt.IsZero() {
		state.SyncedAt = t.now()
	}
	_, err := t.db.Exec(`INSERT INTO sync_states
		(playlist_key, remote_id, content_hash, track_count, matched_count, skipped_count, synced_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(playlist_key) DO UPDATE SET
			remote_id = excluded.remote_id,
			content_hash = excluded.content_hash,
			track_count = excluded.track_count,
			matched_count = excluded.matched_count,
			skipped_count = excluded.skipped_count,
			synced_at = excluded.synced_at`,
		state.PlaylistKey, state.RemoteID, state.ContentHash,
		state.TrackCount, state.MatchedCount, state.SkippedCount, state.SyncedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to record sync state: %w", err)
	}
	return nil
}
