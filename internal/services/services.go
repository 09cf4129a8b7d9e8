// package services defines the Catalog interface for external music
// catalogs and its Spotify implementation
package services

import (
	"context"

	"github.com/tmkontra/syncify/internal/models"
)

// MaxBatchSize is the largest number of track URIs one add or remove
// call may carry.
const MaxBatchSize = 100

// Catalog is the external music-catalog contract the resolution and
// reconciliation core consumes. Search results carry no ordering
// guarantee beyond "service-ranked"; callers re-rank.
type Catalog interface {
	// Search runs a track search and returns up to limit candidates.
	Search(ctx context.Context, query string, limit int) ([]models.Candidate, error)

	// CreatePlaylist creates an empty playlist owned by ownerID.
	CreatePlaylist(ctx context.Context, ownerID, name string) (*models.RemotePlaylist, error)

	// AddItems appends track URIs to a playlist. At most MaxBatchSize
	// URIs per call.
	AddItems(ctx context.Context, playlistID string, uris []string) error

	// RemoveItems removes track URIs from a playlist. At most
	// MaxBatchSize URIs per call.
	RemoveItems(ctx context.Context, playlistID string, uris []string) error

	RenamePlaylist(ctx context.Context, playlistID, name string) error
	DeletePlaylist(ctx context.Context, playlistID string) error

	// ListPlaylists returns every playlist owned by ownerID, paging
	// through the catalog as needed.
	ListPlaylists(ctx context.Context, ownerID string) ([]models.RemotePlaylist, error)

	// ListPlaylistTracks returns every track URI in a playlist in
	// playlist order.
	ListPlaylistTracks(ctx context.Context, playlistID string) ([]string, error)

	// CurrentUserID returns the authenticated user's id.
	CurrentUserID(ctx context.Context) (string, error)
}
