// Package decisions persists accept/reject outcomes for track
// resolutions and mines recurring artist-name corrections from the
// accepted history.
package decisions

import (
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	"fmt"
	"time"

	"github.com/charmbracelet/log"
	"github.com/tmkontra/syncify/internal/match"
	"github.com/tmkontra/syncify/internal/models"
	"github.com/tmkontra/syncify/internal/shared"
)

// RetentionWindow bounds how long a recorded decision stays usable.
// Expiry is checked at read time; rows are evicted lazily.
const RetentionWindow = 30 * 24 * time.Hour

// minPatternOccurrences is the promotion floor for mined corrections.
const minPatternOccurrences = 2

// patternSimilarityFloor guards against promoting corrections between
// unrelated artist names.
const patternSimilarityFloor = 70.0

// Store is the sqlite-backed decision log.
type Store struct {
	db     *sql.DB
	logger *log.Logger
	now    func() time.Time
}

// NewStore wraps an open, migrated database.
func NewStore(db *sql.DB, logger *log.Logger) *Store {
	return &Store{db: db, logger: logger, now: time.Now}
}

// Fingerprint derives the stable decision key for an entry and the
// candidate it was judged against (empty id for "no candidate").
// Deterministic across runs for unchanged input.
func Fingerprint(entry models.LocalEntry, candidateID string) string {
	h := sha256.New()
	fmt.Fprintf(h, "%s|%s|%s|%s",
		entry.Locator,
		match.Normalize(entry.Artist),
		match.Normalize(entry.Title),
		candidateID,
	)
	return hex.EncodeToString(h.Sum(nil))
}

// Record upserts one decision. Last writer wins on fingerprint
// collisions, which keeps re-runs idempotent.
func (s *Store) Record(d models.Decision) error {
	if d.Fingerprint == "" {
		d.Fingerprint = Fingerprint(models.LocalEntry{
			Locator: d.SourceLocator, Artist: d.Artist, Title: d.Title,
		}, d.CandidateID)
	}
	if d.ID == "" {
		d.ID = shared.GenerateID()
	}
	if d.CreatedAt.IsZero() {
		d.CreatedAt = s.now()
	}

	_, err := s.db.Exec(`INSERT INTO decisions
		(id, fingerprint, source_locator, artist, title, candidate_id, matched_artist, matched_title, outcome, manual_search, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(fingerprint) DO UPDATE SET
			candidate_id = excluded.candidate_id,
			matched_artist = excluded.matched_artist,
			matched_title = excluded.matched_title,
			outcome = excluded.outcome,
			manual_search = excluded.manual_search,
			created_at = excluded.created_at`,
		d.ID, d.Fingerprint, d.SourceLocator, d.Artist, d.Title,
		nullable(d.CandidateID), nullable(d.MatchedArtist), nullable(d.MatchedTitle),
		d.Outcome, nullable(d.ManualSearch), d.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to record decision: %w", err)
	}
	return nil
}

// Cached returns the stored outcome for an entry+candidate pair.
// Decisions past the retention window are evicted on read and reported
// as absent.
func (s *Store) Cached(entry models.LocalEntry, candidateID string) (*models.Decision, bool) {
	fingerprint := Fingerprint(entry, candidateID)

	var d models.Decision
	var candID, matchedArtist, matchedTitle, manualSearch sql.NullString
	err := s.db.QueryRow(`SELECT id, fingerprint, source_locator, artist, title,
		candidate_id, matched_artist, matched_title, outcome, manual_search, created_at
		FROM decisions WHERE fingerprint = ?`, fingerprint).Scan(
		&d.ID, &d.Fingerprint, &d.SourceLocator, &d.Artist, &d.Title,
		&candID, &matchedArtist, &matchedTitle, &d.Outcome, &manualSearch, &d.CreatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, false
	}
	if err != nil {
		s.logger.Warn("decision lookup failed", "fingerprint", fingerprint, "error", err)
		return nil, false
	}

	if s.now().Sub(d.CreatedAt) > RetentionWindow {
		if _, err := s.db.Exec("DELETE FROM decisions WHERE fingerprint = ?", fingerprint); err != nil {
			s.logger.Warn("failed to evict expired decision", "fingerprint", fingerprint, "error", err)
		}
		return nil, false
	}

	d.CandidateID = candID.String
	d.MatchedArtist = matchedArtist.String
	d.MatchedTitle = matchedTitle.String
	d.ManualSearch = manualSearch.String
	return &d, true
}

// MinePatterns scans all accepted decisions and derives artist-name
// corrections: for each normalized original artist, the most frequent
// matched artist, promoted only with at least two occurrences and a
// plausible similarity to the variant. Recomputed from a full scan,
// never mutated incrementally.
func (s *Store) MinePatterns() ([]models.LearnedPattern, error) {
	rows, err := s.db.Query(
		"SELECT artist, matched_artist FROM decisions WHERE outcome = ? AND matched_artist IS NOT NULL AND matched_artist != ''",
		models.OutcomeAccept,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to scan decisions: %w", err)
	}
	defer rows.Close()

	// variant -> matched artist -> count
	groups := make(map[string]map[string]int)
	for rows.Next() {
		var artist, matched string
		if err := rows.Scan(&artist, &matched); err != nil {
			return nil, fmt.Errorf("failed to scan decision row: %w", err)
		}
		variant := match.Normalize(artist)
		if variant == "" {
			continue
		}
		if groups[variant] == nil {
			groups[variant] = make(map[string]int)
		}
		groups[variant][matched]++
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("decision scan failed: %w", err)
	}

	var patterns []models.LearnedPattern
	for variant, counts := range groups {
		var canonical string
		var best int
		for matched, count := range counts {
			if count > best || (count == best && matched < canonical) {
				canonical = matched
				best = count
			}
		}
		if best < minPatternOccurrences {
			continue
		}
		if match.Normalize(canonical) == variant {
			// Not a correction, the accepted artist already matches.
			continue
		}
		if match.Similarity(variant, match.Normalize(canonical)) <= patternSimilarityFloor {
			continue
		}
		patterns = append(patterns, models.LearnedPattern{
			Variant:     variant,
			Canonical:   canonical,
			Occurrences: best,
		})
	}
	return patterns, nil
}

// ApplyPatterns rewrites an entry's artist through the mined
// corrections. Returns the patched entry and whether anything changed;
// callers keep the original around as a fallback when the patched
// search comes up empty.
func ApplyPatterns(entry models.LocalEntry, patterns []models.LearnedPattern) (models.LocalEntry, bool) {
	variant := match.Normalize(entry.Artist)
	if variant == "" {
		return entry, false
	}
	for _, p := range patterns {
		if p.Variant == variant {
			patched := entry
			patched.Artist = p.Canonical
			return patched, true
		}
	}
	return entry, false
}

func nullable(s string) any {
	if s == "" {
		return nil
	}
	return s
}
