// Package resolve turns local entries into catalog identities: plan
// queries, search, score, and memoize the outcome in a TTL cache.
package resolve

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/charmbracelet/log"
	"github.com/tmkontra/syncify/internal/cache"
	"github.com/tmkontra/syncify/internal/decisions"
	"github.com/tmkontra/syncify/internal/match"
	"github.com/tmkontra/syncify/internal/models"
	"github.com/tmkontra/syncify/internal/services"
	"github.com/tmkontra/syncify/internal/shared"
)

const (
	// cacheKeyPrefix versions the cache namespace. Bump it when the
	// scoring or planning semantics change so stale resolutions from
	// older code never leak through.
	cacheKeyPrefix = "track_search_v2_"

	// CacheTTL bounds how long a memoized resolution is trusted.
	CacheTTL = 7 * 24 * time.Hour

	errClassNoCandidate = "no_candidate"

	searchLimit   = 10
	maxCandidates = 5
)

// Resolution is the outcome of resolving one entry.
type Resolution struct {
	Best models.MatchResult
	// Candidates holds the top scored candidates, best first, for
	// review flows. Empty on cache hits.
	Candidates []models.MatchResult
	FromCache  bool
}

// cacheEntry is the stored form of a resolution, positive or negative.
type cacheEntry struct {
	Version    string             `json:"version"`
	Found      bool               `json:"found"`
	Result     models.MatchResult `json:"result,omitempty"`
	ErrorClass string             `json:"error_class,omitempty"`
}

// CacheKey derives the versioned cache key for an entry's normalized
// identity.
func CacheKey(entry models.LocalEntry) string {
	h := sha256.New()
	fmt.Fprintf(h, "%s|%s|%s",
		match.Normalize(entry.Artist),
		match.Normalize(entry.Title),
		match.Normalize(entry.Album),
	)
	return cacheKeyPrefix + hex.EncodeToString(h.Sum(nil))[:16]
}

// Resolver runs the planning/search/scoring pipeline for one catalog.
type Resolver struct {
	catalog services.Catalog
	cache   cache.Cache
	logger  *log.Logger

	// Threshold is the score floor below which a best match does not
	// count as found.
	Threshold float64
	// Patterns are mined artist corrections applied before planning.
	Patterns []models.LearnedPattern
}

// NewResolver wires a resolver. A nil cache disables memoization.
func NewResolver(catalog services.Catalog, c cache.Cache, logger *log.Logger, threshold float64) *Resolver {
	return &Resolver{
		catalog:   catalog,
		cache:     c,
		logger:    logger,
		Threshold: threshold,
	}
}

// Resolve finds the best catalog identity for an entry. Returns
// shared.ErrNoCandidate when nothing scores above the threshold; that
// outcome is cached. Transient catalog failures are surfaced as errors
// and never cached as a definitive no.
func (r *Resolver) Resolve(ctx context.Context, entry models.LocalEntry) (*Resolution, error) {
	key := CacheKey(entry)
	if res, hit, err := r.fromCache(key); hit {
		return res, err
	}

	patched, applied := decisions.ApplyPatterns(entry, r.Patterns)
	res, err := r.search(ctx, patched)

	// A learned pattern that made things worse falls back to the
	// original values.
	if applied && (err != nil || res.Best.Score < r.Threshold) {
		orig, origErr := r.search(ctx, entry)
		if origErr == nil && (err != nil || match.Better(orig.Best, res.Best)) {
			res, err = orig, nil
		}
	}

	// Remix fallback: a remix title with no good hit retries once
	// against the base recording, flagged so callers route the result
	// to review instead of auto-accepting.
	if (err != nil || res.Best.Score < r.Threshold) && match.HasRemixTag(entry.Title) {
		stripped := entry
		stripped.Title = match.StripRemixTags(entry.Title)
		if stripped.Title != "" && stripped.Title != entry.Title {
			fallback, fbErr := r.search(ctx, stripped)
			if fbErr == nil && fallback.Best.Score >= r.Threshold {
				fallback.Best.RemixFallback = true
				for i := range fallback.Candidates {
					fallback.Candidates[i].RemixFallback = true
				}
				res, err = fallback, nil
			}
		}
	}

	if err != nil {
		if errors.Is(err, shared.ErrNoCandidate) {
			r.writeCache(key, cacheEntry{Version: cacheKeyPrefix, ErrorClass: errClassNoCandidate})
		}
		// Transient failures are not cached; the next run should retry.
		return nil, err
	}

	if res.Best.Score < r.Threshold {
		r.writeCache(key, cacheEntry{Version: cacheKeyPrefix, ErrorClass: errClassNoCandidate})
		return res, fmt.Errorf("%w: best score %.1f below threshold %.1f",
			shared.ErrNoCandidate, res.Best.Score, r.Threshold)
	}

	r.writeCache(key, cacheEntry{Version: cacheKeyPrefix, Found: true, Result: res.Best})
	return res, nil
}

func (r *Resolver) fromCache(key string) (*Resolution, bool, error) {
	if r.cache == nil {
		return nil, false, nil
	}
	data, ok := r.cache.Get(key)
	if !ok {
		return nil, false, nil
	}

	ce, err := decodeEntry(data)
	if err != nil {
		// Corrupt entries count as misses: log once, evict, recompute.
		r.logger.Warn("dropping resolution cache entry", "key", key, "error", err)
		r.cache.Delete(key)
		return nil, false, nil
	}

	if ce.Found {
		return &Resolution{Best: ce.Result, FromCache: true}, true, nil
	}
	if ce.ErrorClass == errClassNoCandidate {
		return nil, true, fmt.Errorf("%w: cached", shared.ErrNoCandidate)
	}
	// Negatives from transient errors are never served.
	r.cache.Delete(key)
	return nil, false, nil
}

// decodeEntry parses a stored resolution, returning ErrCacheCorrupt for
// undecodable or stale-format payloads.
func decodeEntry(data []byte) (cacheEntry, error) {
	var ce cacheEntry
	if err := json.Unmarshal(data, &ce); err != nil {
		return ce, fmt.Errorf("%w: %v", shared.ErrCacheCorrupt, err)
	}
	if ce.Version != cacheKeyPrefix {
		return ce, fmt.Errorf("%w: version %q", shared.ErrCacheCorrupt, ce.Version)
	}
	return ce, nil
}

func (r *Resolver) writeCache(key string, ce cacheEntry) {
	if r.cache == nil {
		return
	}
	data, err := json.Marshal(ce)
	if err != nil {
		return
	}
	r.cache.Put(key, data, CacheTTL)
}

// search runs every planned variant, scores the hits, and keeps the
// ranked top candidates. Early-stops when a variant's best weighted
// score clears the bar.
func (r *Resolver) search(ctx context.Context, entry models.LocalEntry) (*Resolution, error) {
	plan := match.Plan(entry)
	if len(plan) == 0 {
		return nil, fmt.Errorf("%w: empty query plan", shared.ErrNoCandidate)
	}

	var top []models.MatchResult
	var transientErr error
	searched := false

	for _, variant := range plan {
		candidates, err := r.catalog.Search(ctx, variant.Query, searchLimit)
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			// One failed variant does not sink the entry; remember the
			// error in case every variant fails.
			r.logger.Debug("search variant failed", "query", variant.Query, "error", err)
			transientErr = err
			continue
		}
		searched = true

		for _, candidate := range candidates {
			if variant.Swapped && !match.ValidateSwap(entry, candidate) {
				continue
			}
			result := models.MatchResult{
				Candidate: candidate,
				Score:     match.Score(entry, candidate),
				Weight:    variant.Weight,
			}
			top = insertRanked(top, result)
		}

		if len(top) > 0 && top[0].Weighted() >= match.EarlyStopScore {
			break
		}
	}

	if !searched {
		if transientErr != nil {
			return nil, transientErr
		}
		return nil, fmt.Errorf("%w: no variant searched", shared.ErrNoCandidate)
	}
	if len(top) == 0 {
		return nil, fmt.Errorf("%w: %s", shared.ErrNoCandidate, entry.DisplayName())
	}
	return &Resolution{Best: top[0], Candidates: top}, nil
}

// insertRanked keeps the top candidates ordered best-first, bounded at
// maxCandidates. The same track surfacing from several query variants
// appears once, keeping its strongest result.
func insertRanked(top []models.MatchResult, result models.MatchResult) []models.MatchResult {
	for i, existing := range top {
		if existing.Candidate.ID == result.Candidate.ID {
			if !match.Better(result, existing) {
				return top
			}
			top = append(top[:i], top[i+1:]...)
			break
		}
	}

	pos := len(top)
	for i, existing := range top {
		if match.Better(result, existing) {
			pos = i
			break
		}
	}
	if pos == len(top) {
		if len(top) < maxCandidates {
			return append(top, result)
		}
		return top
	}
	top = append(top, models.MatchResult{})
	copy(top[pos+1:], top[pos:])
	top[pos] = result
	if len(top) > maxCandidates {
		top = top[:maxCandidates]
	}
	return top
}
