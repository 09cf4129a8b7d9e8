// Package reconcile makes a remote playlist's track membership match a
// locally resolved track set. It resolves duplicate-named remote
// playlists, folds their content together, and keeps every mutation
// idempotent by diffing against the remote state first.
package reconcile

import (
	"context"
	"fmt"
	"sort"

	"github.com/charmbracelet/log"

	"github.com/tmkontra/syncify/internal/models"
	"github.com/tmkontra/syncify/internal/services"
)

// Action is the transition chosen for one local playlist after name
// matching.
type Action int

const (
	// ActionNone means no safe action exists, usually because only
	// similar-name matches were found.
	ActionNone Action = iota
	// ActionCreate creates a new remote playlist.
	ActionCreate
	// ActionUpdate syncs one matched remote playlist.
	ActionUpdate
	// ActionMerge folds duplicate-named remote playlists into one
	// keeper before syncing it.
	ActionMerge
)

func (a Action) String() string {
	switch a {
	case ActionCreate:
		return "create"
	case ActionUpdate:
		return "update"
	case ActionMerge:
		return "merge_duplicates"
	default:
		return "none"
	}
}

// Report is the outcome of one reconciliation pass. Batch mutations are
// partial-failure tolerant, so success and failure counts are reported
// separately.
type Report struct {
	PlaylistID   string
	PlaylistName string
	Action       Action

	Added        int
	Removed      int
	AddFailed    int
	RemoveFailed int

	// DuplicateTracks counts surplus in-playlist occurrences of a URI
	// that were collapsed to one.
	DuplicateTracks int

	// MergedPlaylists lists duplicate playlist ids deleted after their
	// content was folded into the keeper.
	MergedPlaylists []string
	// FlaggedPlaylists lists duplicates left in place in read-only
	// mode.
	FlaggedPlaylists []string
	// SimilarNames lists remote names that matched only fuzzily and
	// need confirmation before any action.
	SimilarNames []string
	// ExtraTracks lists remote URIs absent from the local resolved
	// set.
	ExtraTracks []string
}

// Reconciler drives the playlist state machine against a catalog.
type Reconciler struct {
	catalog services.Catalog
	logger  *log.Logger

	// ReadOnly suppresses every destructive mutation. Duplicates are
	// flagged instead of deleted and nothing is created, renamed,
	// added, or removed.
	ReadOnly bool
	// RemoveExtras deletes remote tracks absent from the local set
	// instead of only reporting them.
	RemoveExtras bool
	Names        NameMatchConfig
}

// New builds a reconciler with default name-matching thresholds.
func New(catalog services.Catalog, logger *log.Logger) *Reconciler {
	return &Reconciler{
		catalog: catalog,
		logger:  logger,
		Names:   DefaultNameMatchConfig(),
	}
}

// Reconcile brings the remote playlist for localName in line with the
// resolved track URIs. Exact and suffix name matches are acted on;
// similar matches are only reported. With no match at all a new
// playlist is created.
func (r *Reconciler) Reconcile(ctx context.Context, localName string, uris []string) (*Report, error) {
	ownerID, err := r.catalog.CurrentUserID(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to identify playlist owner: %w", err)
	}
	playlists, err := r.catalog.ListPlaylists(ctx, ownerID)
	if err != nil {
		return nil, fmt.Errorf("failed to list playlists: %w", err)
	}

	report := &Report{PlaylistName: CleanLocalName(localName)}

	var matched []models.RemotePlaylist
	for _, p := range playlists {
		switch MatchName(localName, p.Name, r.Names) {
		case MatchExact, MatchSuffix:
			matched = append(matched, p)
		case MatchSimilar:
			report.SimilarNames = append(report.SimilarNames, p.Name)
		}
	}

	switch len(matched) {
	case 0:
		if len(report.SimilarNames) > 0 {
			r.logger.Warn("only similar-named playlists found, skipping",
				"local", localName, "similar", report.SimilarNames)
			return report, nil
		}
		return report, r.create(ctx, report, ownerID, uris)
	case 1:
		report.Action = ActionUpdate
		report.PlaylistID = matched[0].ID
		return report, r.update(ctx, report, matched[0], uris)
	default:
		report.Action = ActionMerge
		return report, r.merge(ctx, report, matched, uris)
	}
}

// ExtraTracks returns the remote URIs of a playlist that are absent
// from the resolved local set. Read-only, used by missing-tracks
// audits.
func (r *Reconciler) ExtraTracks(ctx context.Context, playlistID string, resolved []string) ([]string, error) {
	current, err := r.catalog.ListPlaylistTracks(ctx, playlistID)
	if err != nil {
		return nil, fmt.Errorf("failed to list playlist tracks: %w", err)
	}
	want := uriSet(resolved)
	var extras []string
	for _, uri := range current {
		if !want[uri] {
			extras = append(extras, uri)
		}
	}
	return extras, nil
}

func (r *Reconciler) create(ctx context.Context, report *Report, ownerID string, uris []string) error {
	report.Action = ActionCreate
	if r.ReadOnly {
		r.logger.Info("read-only mode, skipping playlist creation", "name", report.PlaylistName)
		return nil
	}
	playlist, err := r.catalog.CreatePlaylist(ctx, ownerID, report.PlaylistName)
	if err != nil {
		return fmt.Errorf("failed to create playlist: %w", err)
	}
	report.PlaylistID = playlist.ID
	r.addTracks(ctx, report, playlist.ID, dedupeURIs(uris))
	return nil
}

func (r *Reconciler) update(ctx context.Context, report *Report, playlist models.RemotePlaylist, uris []string) error {
	current, err := r.catalog.ListPlaylistTracks(ctx, playlist.ID)
	if err != nil {
		return fmt.Errorf("failed to list playlist tracks: %w", err)
	}
	current = r.collapseDuplicates(ctx, report, playlist.ID, current)

	desired := dedupeURIs(uris)
	have := uriSet(current)
	var missing []string
	for _, uri := range desired {
		if !have[uri] {
			missing = append(missing, uri)
		}
	}
	r.addTracks(ctx, report, playlist.ID, missing)

	want := uriSet(desired)
	for _, uri := range current {
		if !want[uri] {
			report.ExtraTracks = append(report.ExtraTracks, uri)
		}
	}
	if r.RemoveExtras {
		r.removeTracks(ctx, report, playlist.ID, report.ExtraTracks)
	}

	if playlist.Name != report.PlaylistName {
		if r.ReadOnly {
			r.logger.Info("read-only mode, skipping rename",
				"playlist", playlist.Name, "want", report.PlaylistName)
		} else if err := r.catalog.RenamePlaylist(ctx, playlist.ID, report.PlaylistName); err != nil {
			r.logger.Warn("failed to rename playlist", "playlist", playlist.ID, "error", err)
		}
	}
	return nil
}

// merge resolves duplicate-named remote playlists. The playlist whose
// track count is closest to the local resolved count is kept, the
// others' content is folded into it, then they are deleted (or flagged
// in read-only mode) before the keeper is synced and renamed.
func (r *Reconciler) merge(ctx context.Context, report *Report, matched []models.RemotePlaylist, uris []string) error {
	sort.SliceStable(matched, func(i, j int) bool {
		di := absDiff(matched[i].TrackCount, len(uris))
		dj := absDiff(matched[j].TrackCount, len(uris))
		if di != dj {
			return di < dj
		}
		if matched[i].TrackCount != matched[j].TrackCount {
			return matched[i].TrackCount > matched[j].TrackCount
		}
		return matched[i].ID < matched[j].ID
	})
	keeper := matched[0]
	report.PlaylistID = keeper.ID
	r.logger.Info("resolving duplicate playlists",
		"keeper", keeper.Name, "duplicates", len(matched)-1)

	keeperTracks, err := r.catalog.ListPlaylistTracks(ctx, keeper.ID)
	if err != nil {
		return fmt.Errorf("failed to list keeper tracks: %w", err)
	}
	keeperSet := uriSet(keeperTracks)

	for _, dup := range matched[1:] {
		tracks, err := r.catalog.ListPlaylistTracks(ctx, dup.ID)
		if err != nil {
			r.logger.Warn("failed to read duplicate playlist", "playlist", dup.ID, "error", err)
			report.FlaggedPlaylists = append(report.FlaggedPlaylists, dup.ID)
			continue
		}
		var fold []string
		for _, uri := range dedupeURIs(tracks) {
			if !keeperSet[uri] {
				fold = append(fold, uri)
				keeperSet[uri] = true
			}
		}
		if r.ReadOnly {
			r.logger.Info("read-only mode, flagging duplicate playlist",
				"playlist", dup.Name, "foldable", len(fold))
			report.FlaggedPlaylists = append(report.FlaggedPlaylists, dup.ID)
			continue
		}
		r.addTracks(ctx, report, keeper.ID, fold)
		if err := r.catalog.DeletePlaylist(ctx, dup.ID); err != nil {
			r.logger.Warn("failed to delete duplicate playlist", "playlist", dup.ID, "error", err)
			report.FlaggedPlaylists = append(report.FlaggedPlaylists, dup.ID)
			continue
		}
		report.MergedPlaylists = append(report.MergedPlaylists, dup.ID)
	}

	return r.update(ctx, report, keeper, uris)
}

// collapseDuplicates removes surplus in-playlist occurrences of a URI.
// The catalog's remove call drops every occurrence, so collapsed URIs
// are re-added once. Returns the resulting track list.
func (r *Reconciler) collapseDuplicates(ctx context.Context, report *Report, playlistID string, current []string) []string {
	seen := make(map[string]int, len(current))
	var dups []string
	for _, uri := range current {
		seen[uri]++
		if seen[uri] == 2 {
			dups = append(dups, uri)
		}
	}
	if len(dups) == 0 {
		return current
	}

	surplus := 0
	for _, uri := range dups {
		surplus += seen[uri] - 1
	}
	if r.ReadOnly {
		r.logger.Info("read-only mode, leaving duplicate tracks",
			"playlist", playlistID, "duplicates", surplus)
		return current
	}

	r.logger.Info("collapsing duplicate tracks", "playlist", playlistID, "duplicates", surplus)
	for _, batch := range batches(dups, services.MaxBatchSize) {
		if err := r.catalog.RemoveItems(ctx, playlistID, batch); err != nil {
			r.logger.Warn("failed to remove duplicate tracks", "playlist", playlistID, "error", err)
			return current
		}
	}
	for _, batch := range batches(dups, services.MaxBatchSize) {
		if err := r.catalog.AddItems(ctx, playlistID, batch); err != nil {
			r.logger.Warn("failed to restore collapsed tracks", "playlist", playlistID, "error", err)
		}
	}
	report.DuplicateTracks += surplus
	return dedupeURIs(current)
}

// addTracks appends URIs in catalog-sized batches. A failed batch is
// logged and counted; the rest still run.
func (r *Reconciler) addTracks(ctx context.Context, report *Report, playlistID string, uris []string) {
	if r.ReadOnly && len(uris) > 0 {
		r.logger.Info("read-only mode, skipping add", "playlist", playlistID, "tracks", len(uris))
		return
	}
	for _, batch := range batches(uris, services.MaxBatchSize) {
		if err := r.catalog.AddItems(ctx, playlistID, batch); err != nil {
			r.logger.Warn("failed to add tracks", "playlist", playlistID, "count", len(batch), "error", err)
			report.AddFailed += len(batch)
			continue
		}
		report.Added += len(batch)
	}
}

func (r *Reconciler) removeTracks(ctx context.Context, report *Report, playlistID string, uris []string) {
	if r.ReadOnly && len(uris) > 0 {
		r.logger.Info("read-only mode, skipping remove", "playlist", playlistID, "tracks", len(uris))
		return
	}
	for _, batch := range batches(uris, services.MaxBatchSize) {
		if err := r.catalog.RemoveItems(ctx, playlistID, batch); err != nil {
			r.logger.Warn("failed to remove tracks", "playlist", playlistID, "count", len(batch), "error", err)
			report.RemoveFailed += len(batch)
			continue
		}
		report.Removed += len(batch)
	}
}

func batches(uris []string, size int) [][]string {
	var out [][]string
	for len(uris) > size {
		out = append(out, uris[:size])
		uris = uris[size:]
	}
	if len(uris) > 0 {
		out = append(out, uris)
	}
	return out
}

func uriSet(uris []string) map[string]bool {
	set := make(map[string]bool, len(uris))
	for _, uri := range uris {
		set[uri] = true
	}
	return set
}

func dedupeURIs(uris []string) []string {
	seen := make(map[string]bool, len(uris))
	out := make([]string, 0, len(uris))
	for _, uri := range uris {
		if seen[uri] {
			continue
		}
		seen[uri] = true
		out = append(out, uri)
	}
	return out
}

func absDiff(a, b int) int {
	if a > b {
		return a - b
	}
	return b - a
}
