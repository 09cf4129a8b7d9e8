// Package tasks orchestrates playlist conversion and reconciliation
// runs: resolve entries through a bounded worker pool, route uncertain
// matches to the caller for review, then reconcile the remote playlist
// once every entry has been resolved.
//
// Operations emit progress updates via channels for non-blocking status
// reporting to the CLI layer. Manual decisions travel the same way: the
// engine sends a [models.ReviewRequest] and blocks the affected entry
// until the driver responds, never touching terminal I/O itself.
package tasks

import (
	"context"
	"errors"
	"sort"
	"sync"
	"sync/atomic"

	"github.com/charmbracelet/log"
	"golang.org/x/time/rate"

	"github.com/tmkontra/syncify/internal/decisions"
	"github.com/tmkontra/syncify/internal/match"
	"github.com/tmkontra/syncify/internal/models"
	"github.com/tmkontra/syncify/internal/reconcile"
	"github.com/tmkontra/syncify/internal/resolve"
	"github.com/tmkontra/syncify/internal/services"
	"github.com/tmkontra/syncify/internal/shared"
	"github.com/tmkontra/syncify/internal/syncstate"
)

const (
	defaultWorkers = 3
	maxWorkers     = 5

	defaultRateLimit = 5.0
)

// Options control one engine's resolution policy.
type Options struct {
	// Threshold is the score floor below which an entry is unresolved.
	Threshold float64
	// AutoThreshold is the score at or above which a match is accepted
	// without review. Must exceed Threshold.
	AutoThreshold float64
	// Workers bounds the resolution pool.
	Workers int
	// RateLimit paces catalog searches, in requests per second.
	RateLimit float64
	// Batch suppresses review prompts. Matches below AutoThreshold are
	// counted as ambiguous instead of reviewed.
	Batch bool
}

// RunReport is the outcome of one playlist run. A completed run always
// reports counts instead of stopping on the first error.
type RunReport struct {
	Playlist     string
	PlaylistPath string

	Total      int
	Resolved   int
	Unresolved int
	// Ambiguous counts entries that needed review but got none, either
	// in batch mode or after a skip-the-rest response.
	Ambiguous int
	// CacheHits counts entries served from the resolution cache.
	CacheHits int

	Added        int
	Removed      int
	AddFailed    int
	RemoveFailed int

	// SyncSkipped is set when the playlist content was unchanged and
	// recently synced, so no catalog work ran.
	SyncSkipped bool

	SimilarNames []string
	Unmatched    []models.LocalEntry
}

// MissingReport is the outcome of a read-only playlist audit.
type MissingReport struct {
	Playlist   string
	RemoteID   string
	RemoteName string
	// Missing lists resolved local URIs absent from the remote
	// playlist.
	Missing []string
	// Extras lists remote URIs absent from the local resolved set.
	Extras     []string
	Unresolved []models.LocalEntry
}

// Engine drives resolution and reconciliation for playlists.
type Engine struct {
	catalog    services.Catalog
	resolver   *resolve.Resolver
	reconciler *reconcile.Reconciler
	decisions  *decisions.Store
	tracker    *syncstate.Tracker
	logger     *log.Logger
	opts       Options
}

// NewEngine wires an engine. The decision store and sync tracker may be
// nil, disabling decision memory and sync skipping respectively.
func NewEngine(
	catalog services.Catalog,
	resolver *resolve.Resolver,
	reconciler *reconcile.Reconciler,
	store *decisions.Store,
	tracker *syncstate.Tracker,
	logger *log.Logger,
	opts Options,
) *Engine {
	if opts.Workers <= 0 {
		opts.Workers = defaultWorkers
	}
	if opts.Workers > maxWorkers {
		opts.Workers = maxWorkers
	}
	if opts.RateLimit <= 0 {
		opts.RateLimit = defaultRateLimit
	}
	if opts.AutoThreshold < opts.Threshold {
		opts.AutoThreshold = opts.Threshold
	}
	return &Engine{
		catalog:    catalog,
		resolver:   resolver,
		reconciler: reconciler,
		decisions:  store,
		tracker:    tracker,
		logger:     logger,
		opts:       opts,
	}
}

// sendProgress sends a progress update without blocking. A full or nil
// channel drops the update rather than stalling the run.
func (e *Engine) sendProgress(progress chan<- ProgressUpdate, update ProgressUpdate) {
	if progress == nil {
		return
	}
	select {
	case progress <- update:
	default:
	}
}

// refreshPatterns re-mines artist corrections from the decision history
// and installs them on the resolver.
func (e *Engine) refreshPatterns() {
	if e.decisions == nil {
		return
	}
	patterns, err := e.decisions.MinePatterns()
	if err != nil {
		e.logger.Warn("failed to mine decision patterns", "error", err)
		return
	}
	e.resolver.Patterns = patterns
	if len(patterns) > 0 {
		e.logger.Info("applying learned artist corrections", "patterns", len(patterns))
	}
}

type outcomeStatus int

const (
	statusAccepted outcomeStatus = iota
	statusUnresolved
	statusAmbiguous
)

type entryOutcome struct {
	entry     models.LocalEntry
	match     *models.MatchResult
	status    outcomeStatus
	fromCache bool
	manual    string // manual search query, when one was used
}

// resolveEntries resolves every entry through a bounded worker pool.
// Review requests surface on the reviews channel; a skip-the-rest
// response makes the remaining entries drain as ambiguous without
// crashing in-flight workers. Outcomes keep input order.
func (e *Engine) resolveEntries(
	ctx context.Context,
	progress chan<- ProgressUpdate,
	reviews chan<- *models.ReviewRequest,
	entries []models.LocalEntry,
	record bool,
) []entryOutcome {
	outcomes := make([]entryOutcome, len(entries))
	limiter := rate.NewLimiter(rate.Limit(e.opts.RateLimit), 1)

	jobs := make(chan int, len(entries))
	for i := range entries {
		jobs <- i
	}
	close(jobs)

	var skipRest atomic.Bool
	var completed atomic.Int64
	var wg sync.WaitGroup
	for w := 0; w < e.opts.Workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for idx := range jobs {
				entry := entries[idx]
				if ctx.Err() != nil || skipRest.Load() {
					outcomes[idx] = entryOutcome{entry: entry, status: statusAmbiguous}
					continue
				}
				if err := limiter.Wait(ctx); err != nil {
					outcomes[idx] = entryOutcome{entry: entry, status: statusAmbiguous}
					continue
				}
				outcomes[idx] = e.resolveOne(ctx, reviews, entry, &skipRest, record)
				e.sendProgress(progress, resolveUpdate(int(completed.Add(1)), len(entries), entry))
			}
		}()
	}
	wg.Wait()
	return outcomes
}

// resolveOne runs the full decision pipeline for a single entry.
func (e *Engine) resolveOne(
	ctx context.Context,
	reviews chan<- *models.ReviewRequest,
	entry models.LocalEntry,
	skipRest *atomic.Bool,
	record bool,
) entryOutcome {
	res, err := e.resolver.Resolve(ctx, entry)
	if err != nil {
		if !errors.Is(err, shared.ErrNoCandidate) {
			e.logger.Warn("resolution failed", "entry", entry.DisplayName(), "error", err)
		}
		return entryOutcome{entry: entry, status: statusUnresolved}
	}
	best := res.Best

	// A remembered decision for this exact entry+candidate pair wins
	// over thresholds either way.
	if e.decisions != nil {
		if d, found := e.decisions.Cached(entry, best.Candidate.ID); found {
			if d.Outcome == models.OutcomeAccept {
				return entryOutcome{entry: entry, match: &best, status: statusAccepted, fromCache: res.FromCache}
			}
			return entryOutcome{entry: entry, status: statusUnresolved, fromCache: res.FromCache}
		}
	}

	if best.Score >= e.opts.AutoThreshold && !best.RemixFallback {
		if record {
			e.recordAccept(entry, best.Candidate, "")
		}
		return entryOutcome{entry: entry, match: &best, status: statusAccepted, fromCache: res.FromCache}
	}

	if e.opts.Batch || skipRest.Load() {
		return entryOutcome{entry: entry, status: statusAmbiguous, fromCache: res.FromCache}
	}

	return e.review(ctx, reviews, entry, res.Candidates, skipRest, record)
}

// review hands the entry to the driver and applies its answer. A manual
// search re-queries the catalog and loops back with fresh candidates.
func (e *Engine) review(
	ctx context.Context,
	reviews chan<- *models.ReviewRequest,
	entry models.LocalEntry,
	candidates []models.MatchResult,
	skipRest *atomic.Bool,
	record bool,
) entryOutcome {
	if reviews == nil {
		return entryOutcome{entry: entry, status: statusAmbiguous}
	}

	manualQuery := ""
	for {
		req := models.NewReviewRequest(entry, candidates)
		select {
		case reviews <- req:
		case <-ctx.Done():
			return entryOutcome{entry: entry, status: statusAmbiguous}
		}
		resp := req.Wait()

		switch resp.Action {
		case models.ReviewAccept:
			choice := resp.Choice
			if choice < 0 || choice >= len(candidates) {
				choice = 0
			}
			if len(candidates) == 0 {
				return entryOutcome{entry: entry, status: statusUnresolved}
			}
			picked := candidates[choice]
			if record {
				e.recordAccept(entry, picked.Candidate, manualQuery)
			}
			return entryOutcome{entry: entry, match: &picked, status: statusAccepted, manual: manualQuery}
		case models.ReviewReject:
			if record && len(candidates) > 0 {
				e.recordReject(entry, candidates[0].Candidate)
			}
			return entryOutcome{entry: entry, status: statusUnresolved}
		case models.ReviewSkipRest:
			skipRest.Store(true)
			return entryOutcome{entry: entry, status: statusAmbiguous}
		case models.ReviewManualSearch:
			manualQuery = resp.Query
			found, err := e.manualSearch(ctx, entry, resp.Query)
			if err != nil {
				e.logger.Warn("manual search failed", "query", resp.Query, "error", err)
				return entryOutcome{entry: entry, status: statusUnresolved}
			}
			candidates = found
		default: // ReviewSkip
			return entryOutcome{entry: entry, status: statusUnresolved}
		}
	}
}

// manualSearch scores the hits of a user-supplied query against the
// entry.
func (e *Engine) manualSearch(ctx context.Context, entry models.LocalEntry, query string) ([]models.MatchResult, error) {
	hits, err := e.catalog.Search(ctx, query, 10)
	if err != nil {
		return nil, err
	}
	results := make([]models.MatchResult, 0, len(hits))
	for _, c := range hits {
		results = append(results, models.MatchResult{
			Candidate: c,
			Score:     match.Score(entry, c),
			Weight:    1.0,
		})
	}
	sort.SliceStable(results, func(i, j int) bool {
		return match.Better(results[i], results[j])
	})
	return results, nil
}

func (e *Engine) recordAccept(entry models.LocalEntry, c models.Candidate, manualQuery string) {
	if e.decisions == nil {
		return
	}
	err := e.decisions.Record(models.Decision{
		SourceLocator: entry.Locator,
		Artist:        entry.Artist,
		Title:         entry.Title,
		CandidateID:   c.ID,
		MatchedArtist: c.PrimaryArtist(),
		MatchedTitle:  c.Title,
		Outcome:       models.OutcomeAccept,
		ManualSearch:  manualQuery,
	})
	if err != nil {
		e.logger.Warn("failed to record decision", "entry", entry.DisplayName(), "error", err)
	}
}

func (e *Engine) recordReject(entry models.LocalEntry, c models.Candidate) {
	if e.decisions == nil {
		return
	}
	err := e.decisions.Record(models.Decision{
		SourceLocator: entry.Locator,
		Artist:        entry.Artist,
		Title:         entry.Title,
		CandidateID:   c.ID,
		MatchedArtist: c.PrimaryArtist(),
		MatchedTitle:  c.Title,
		Outcome:       models.OutcomeReject,
	})
	if err != nil {
		e.logger.Warn("failed to record decision", "entry", entry.DisplayName(), "error", err)
	}
}
