package tasks

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/tmkontra/syncify/internal/extract"
	"github.com/tmkontra/syncify/internal/models"
	"github.com/tmkontra/syncify/internal/reconcile"
	"github.com/tmkontra/syncify/internal/shared"
)

// ConvertPlaylist resolves a local playlist file and pushes the matched
// tracks to the remote playlist of the same name, creating it when
// absent. Remote tracks absent locally are reported but left in place.
func (e *Engine) ConvertPlaylist(
	ctx context.Context,
	progress chan<- ProgressUpdate,
	reviews chan<- *models.ReviewRequest,
	path string,
) (*RunReport, error) {
	return e.syncPlaylist(ctx, progress, reviews, path, false)
}

// ReconcilePlaylist is ConvertPlaylist plus extra-track removal: the
// remote playlist ends up with exactly the locally resolved set.
func (e *Engine) ReconcilePlaylist(
	ctx context.Context,
	progress chan<- ProgressUpdate,
	reviews chan<- *models.ReviewRequest,
	path string,
) (*RunReport, error) {
	return e.syncPlaylist(ctx, progress, reviews, path, true)
}

func (e *Engine) syncPlaylist(
	ctx context.Context,
	progress chan<- ProgressUpdate,
	reviews chan<- *models.ReviewRequest,
	path string,
	removeExtras bool,
) (*RunReport, error) {
	entries, err := extract.ParsePlaylistFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read playlist: %w", err)
	}

	report := &RunReport{
		Playlist:     reconcile.CleanLocalName(path),
		PlaylistPath: path,
		Total:        len(entries),
	}
	e.sendProgress(progress, scanUpdate(path, len(entries)))

	var contentHash string
	if e.tracker != nil {
		needed, hash, err := e.tracker.NeedsSync(path, entries)
		if err != nil {
			e.logger.Warn("sync state lookup failed", "playlist", path, "error", err)
		}
		if err == nil && !needed {
			report.SyncSkipped = true
			e.sendProgress(progress, syncSkippedUpdate(path))
			return report, nil
		}
		contentHash = hash
	}

	e.refreshPatterns()
	outcomes := e.resolveEntries(ctx, progress, reviews, entries, true)
	uris := e.tally(report, outcomes)

	// Reconciliation only starts once every entry has an outcome:
	// extra-track detection needs the complete resolved set.
	e.sendProgress(progress, reconcileUpdate(report.Playlist))
	e.reconciler.RemoveExtras = removeExtras
	rep, err := e.reconciler.Reconcile(ctx, filepath.Base(path), uris)
	if err != nil {
		return report, fmt.Errorf("reconciliation failed: %w", err)
	}
	report.Added = rep.Added
	report.Removed = rep.Removed
	report.AddFailed = rep.AddFailed
	report.RemoveFailed = rep.RemoveFailed
	report.SimilarNames = rep.SimilarNames

	if e.tracker != nil && rep.PlaylistID != "" {
		err := e.tracker.Record(models.SyncState{
			PlaylistKey:  path,
			RemoteID:     rep.PlaylistID,
			ContentHash:  contentHash,
			TrackCount:   len(entries),
			MatchedCount: report.Resolved,
			SkippedCount: report.Unresolved + report.Ambiguous,
		})
		if err != nil {
			e.logger.Warn("failed to record sync state", "playlist", path, "error", err)
		}
	}

	e.sendProgress(progress, completedUpdate(report))
	return report, nil
}

// tally folds per-entry outcomes into the report and returns the URIs
// of the accepted matches in input order.
func (e *Engine) tally(report *RunReport, outcomes []entryOutcome) []string {
	var uris []string
	for _, o := range outcomes {
		if o.fromCache {
			report.CacheHits++
		}
		switch o.status {
		case statusAccepted:
			report.Resolved++
			uris = append(uris, o.match.Candidate.URI)
		case statusAmbiguous:
			report.Ambiguous++
		default:
			report.Unresolved++
			report.Unmatched = append(report.Unmatched, o.entry)
		}
	}
	return uris
}

// FindMissingTracks audits a playlist without mutating anything: no
// catalog writes, no recorded decisions. It reports resolved local
// tracks absent remotely and remote tracks absent locally.
func (e *Engine) FindMissingTracks(
	ctx context.Context,
	progress chan<- ProgressUpdate,
	reviews chan<- *models.ReviewRequest,
	path string,
) (*MissingReport, error) {
	entries, err := extract.ParsePlaylistFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read playlist: %w", err)
	}

	report := &MissingReport{Playlist: reconcile.CleanLocalName(path)}
	e.sendProgress(progress, scanUpdate(path, len(entries)))
	e.sendProgress(progress, auditUpdate(report.Playlist))

	remote, err := e.findRemote(ctx, filepath.Base(path))
	if err != nil {
		return nil, err
	}
	report.RemoteID = remote.ID
	report.RemoteName = remote.Name

	e.refreshPatterns()
	outcomes := e.resolveEntries(ctx, progress, reviews, entries, false)

	remoteTracks, err := e.catalog.ListPlaylistTracks(ctx, remote.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to list playlist tracks: %w", err)
	}
	have := make(map[string]bool, len(remoteTracks))
	for _, uri := range remoteTracks {
		have[uri] = true
	}

	var resolved []string
	for _, o := range outcomes {
		if o.status != statusAccepted {
			report.Unresolved = append(report.Unresolved, o.entry)
			continue
		}
		uri := o.match.Candidate.URI
		resolved = append(resolved, uri)
		if !have[uri] {
			report.Missing = append(report.Missing, uri)
		}
	}

	report.Extras, err = e.reconciler.ExtraTracks(ctx, remote.ID, resolved)
	if err != nil {
		return nil, err
	}
	return report, nil
}

// findRemote picks the remote playlist whose name matches the local
// one exactly or modulo a playlist file extension. A fuzzy-only match
// is reported as ambiguous, never acted on.
func (e *Engine) findRemote(ctx context.Context, localName string) (*models.RemotePlaylist, error) {
	ownerID, err := e.catalog.CurrentUserID(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to identify playlist owner: %w", err)
	}
	playlists, err := e.catalog.ListPlaylists(ctx, ownerID)
	if err != nil {
		return nil, fmt.Errorf("failed to list playlists: %w", err)
	}
	var similar []string
	for _, p := range playlists {
		switch reconcile.MatchName(localName, p.Name, e.reconciler.Names) {
		case reconcile.MatchExact, reconcile.MatchSuffix:
			return &p, nil
		case reconcile.MatchSimilar:
			similar = append(similar, p.Name)
		}
	}
	if len(similar) > 0 {
		return nil, fmt.Errorf("%w: %q resembles %s",
			shared.ErrAmbiguousName, localName, strings.Join(similar, ", "))
	}
	return nil, fmt.Errorf("%w: no remote playlist named %q", shared.ErrPlaylistMissing, localName)
}

// ConvertDirectory converts every playlist file under dir. Per-playlist
// failures are logged and the run continues; only authentication
// failures abort the whole walk.
func (e *Engine) ConvertDirectory(
	ctx context.Context,
	progress chan<- ProgressUpdate,
	reviews chan<- *models.ReviewRequest,
	dir string,
) ([]*RunReport, error) {
	paths, err := extract.FindPlaylistFiles(dir)
	if err != nil {
		return nil, err
	}
	if len(paths) == 0 {
		return nil, fmt.Errorf("%w: no playlist files under %s", shared.ErrInvalidInput, dir)
	}

	var reports []*RunReport
	for _, path := range paths {
		if ctx.Err() != nil {
			break
		}
		report, err := e.ConvertPlaylist(ctx, progress, reviews, path)
		if err != nil {
			if errors.Is(err, shared.ErrAuthFailed) {
				return reports, err
			}
			e.logger.Error("playlist conversion failed", "playlist", path, "error", err)
			if report == nil {
				report = &RunReport{Playlist: reconcile.CleanLocalName(path), PlaylistPath: path}
			}
		}
		reports = append(reports, report)
	}
	return reports, nil
}
