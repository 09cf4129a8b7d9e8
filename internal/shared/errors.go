package shared

import "fmt"

var (
	// Configuration errors
	ErrMissingConfig      = fmt.Errorf("configuration not found")
	ErrInvalidConfig      = fmt.Errorf("invalid configuration")
	ErrMissingCredentials = fmt.Errorf("missing credentials")

	// Authentication errors
	ErrAuthFailed       = fmt.Errorf("authentication failed")
	ErrNotAuthenticated = fmt.Errorf("not authenticated")

	// Catalog and matching errors
	ErrRateLimited     = fmt.Errorf("rate limited")
	ErrNoCandidate     = fmt.Errorf("no candidate found")
	ErrAmbiguousName   = fmt.Errorf("ambiguous name match")
	ErrMutationFailed  = fmt.Errorf("catalog mutation failed")
	ErrAPIRequest      = fmt.Errorf("API request failed")
	ErrPlaylistMissing = fmt.Errorf("playlist not found")

	// Cache errors
	ErrCacheCorrupt = fmt.Errorf("corrupted cache entry")

	// Input validation errors
	ErrInvalidInput = fmt.Errorf("invalid input")
	ErrInvalidFlag  = fmt.Errorf("invalid flag value")
)
