package models

import (
	"strings"
	"time"
)

// LocalEntry is one playlist line or file path reduced to a metadata
// triple. Unresolvable fields stay empty; extraction never fails.
type LocalEntry struct {
	Artist  string `json:"artist,omitempty"`
	Title   string `json:"title"`
	Album   string `json:"album,omitempty"`
	Locator string `json:"locator"` // original path or text line
	Raw     string `json:"raw"`     // pre-strip text, preserved for display
}

// DisplayName returns a human-readable "Artist - Title" form.
func (e LocalEntry) DisplayName() string {
	if e.Artist == "" {
		return e.Title
	}
	return e.Artist + " - " + e.Title
}

// IsVariousArtists reports whether the artist field is a compilation
// placeholder rather than a real artist name.
func (e LocalEntry) IsVariousArtists() bool {
	a := strings.ToLower(strings.TrimSpace(e.Artist))
	return a == "various artists" || a == "various" || a == "va" || a == "v.a."
}

// Candidate is a single catalog search hit.
type Candidate struct {
	ID         string   `json:"id"`
	Title      string   `json:"title"`
	Artists    []string `json:"artists"`
	Album      string   `json:"album,omitempty"`
	URI        string   `json:"uri"`
	Popularity int      `json:"popularity"`
	DurationMS int      `json:"duration_ms,omitempty"`
}

// PrimaryArtist returns the first listed artist, or "" for an empty list.
func (c Candidate) PrimaryArtist() string {
	if len(c.Artists) == 0 {
		return ""
	}
	return c.Artists[0]
}

// JoinedArtists returns all artists joined with ", ".
func (c Candidate) JoinedArtists() string {
	return strings.Join(c.Artists, ", ")
}

// MatchResult pairs a candidate with its match score for one entry.
type MatchResult struct {
	Candidate Candidate `json:"candidate"`
	Score     float64   `json:"score"`  // 0-100, before variant weighting
	Weight    float64   `json:"weight"` // query-variant weight applied when ranking
	// RemixFallback marks a match found only after stripping remix tags
	// from the title. Callers route these to review instead of
	// auto-accepting.
	RemixFallback bool `json:"remix_fallback,omitempty"`
}

// Weighted returns the score with the query-variant weight applied,
// used when comparing results across variants.
func (m MatchResult) Weighted() float64 {
	return m.Score * m.Weight
}

// Decision outcome values.
const (
	OutcomeAccept = "accept"
	OutcomeReject = "reject"
)

// Decision records one accept or reject outcome for an entry and the
// candidate it was judged against (none for rejections without a pick).
type Decision struct {
	ID            string    `json:"id"`
	Fingerprint   string    `json:"fingerprint"`
	SourceLocator string    `json:"source_locator"`
	Artist        string    `json:"artist"`
	Title         string    `json:"title"`
	CandidateID   string    `json:"candidate_id,omitempty"`
	MatchedArtist string    `json:"matched_artist,omitempty"`
	MatchedTitle  string    `json:"matched_title,omitempty"`
	Outcome       string    `json:"outcome"`
	ManualSearch  string    `json:"manual_search,omitempty"` // query text, when the user searched by hand
	CreatedAt     time.Time `json:"created_at"`
}

// LearnedPattern maps a recurring variant artist spelling to the
// canonical form users accepted for it.
type LearnedPattern struct {
	Variant     string `json:"variant"`
	Canonical   string `json:"canonical"`
	Occurrences int    `json:"occurrences"`
}

// RemotePlaylist is a playlist hosted by the catalog service.
type RemotePlaylist struct {
	ID         string   `json:"id"`
	Name       string   `json:"name"`
	OwnerID    string   `json:"owner_id"`
	TrackURIs  []string `json:"track_uris,omitempty"`
	TrackCount int      `json:"track_count"`
}

// SyncState is the stored fingerprint of a playlist's last successful
// reconciliation.
type SyncState struct {
	PlaylistKey  string    `json:"playlist_key"` // local path or playlist name
	RemoteID     string    `json:"remote_id"`
	ContentHash  string    `json:"content_hash"`
	TrackCount   int       `json:"track_count"`
	MatchedCount int       `json:"matched_count"`
	SkippedCount int       `json:"skipped_count"`
	SyncedAt     time.Time `json:"synced_at"`
}

// ReviewAction is the driver's answer to a ReviewRequest.
type ReviewAction int

const (
	ReviewAccept ReviewAction = iota
	ReviewReject
	ReviewSkip
	ReviewSkipRest
	ReviewManualSearch
)

// ReviewRequest is a pending manual decision. The engine sends one on
// its review channel and blocks the affected entry until Respond is
// called; it never touches terminal I/O itself.
type ReviewRequest struct {
	Entry      LocalEntry    `json:"entry"`
	Candidates []MatchResult `json:"candidates"` // best first

	respond chan ReviewResponse
}

// ReviewResponse carries the chosen action. Query is set only for
// ReviewManualSearch; Choice indexes Candidates for ReviewAccept and
// defaults to the top candidate.
type ReviewResponse struct {
	Action ReviewAction `json:"action"`
	Choice int          `json:"choice,omitempty"`
	Query  string       `json:"query,omitempty"`
}

// NewReviewRequest builds a request with its response channel armed.
func NewReviewRequest(entry LocalEntry, candidates []MatchResult) *ReviewRequest {
	return &ReviewRequest{
		Entry:      entry,
		Candidates: candidates,
		respond:    make(chan ReviewResponse, 1),
	}
}

// Respond delivers the driver's decision. Calling it more than once
// panics, matching the one-question-one-answer contract.
func (r *ReviewRequest) Respond(resp ReviewResponse) {
	r.respond <- resp
	close(r.respond)
}

// Wait blocks until the driver responds.
func (r *ReviewRequest) Wait() ReviewResponse {
	return <-r.respond
}
