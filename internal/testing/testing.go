// package testing contains shared testing utilities
package testing

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/tmkontra/syncify/internal/models"
	"github.com/tmkontra/syncify/internal/shared"
)

// MockCatalog is an in-memory test double for [services.Catalog]. It
// keeps real playlist state so mutation sequences can be asserted, and
// records every search query it receives.
type MockCatalog struct {
	mu sync.Mutex

	// SearchFunc handles Search calls. Nil means "no results".
	SearchFunc func(query string, limit int) ([]models.Candidate, error)

	UserID    string
	Playlists map[string]*models.RemotePlaylist

	SearchQueries []string
	Mutations     []string

	// FailMutations makes every mutating call return an error.
	FailMutations bool

	nextID int
}

// NewMockCatalog creates an empty mock catalog for user "user1".
func NewMockCatalog() *MockCatalog {
	return &MockCatalog{
		UserID:    "user1",
		Playlists: make(map[string]*models.RemotePlaylist),
	}
}

// AddPlaylist seeds a remote playlist and returns it.
func (m *MockCatalog) AddPlaylist(name string, uris []string) *models.RemotePlaylist {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.nextID++
	p := &models.RemotePlaylist{
		ID:         fmt.Sprintf("playlist%d", m.nextID),
		Name:       name,
		OwnerID:    m.UserID,
		TrackURIs:  append([]string(nil), uris...),
		TrackCount: len(uris),
	}
	m.Playlists[p.ID] = p
	return p
}

func (m *MockCatalog) record(op string) {
	m.Mutations = append(m.Mutations, op)
}

func (m *MockCatalog) CurrentUserID(ctx context.Context) (string, error) {
	return m.UserID, nil
}

func (m *MockCatalog) Search(ctx context.Context, query string, limit int) ([]models.Candidate, error) {
	m.mu.Lock()
	m.SearchQueries = append(m.SearchQueries, query)
	fn := m.SearchFunc
	m.mu.Unlock()
	if fn == nil {
		return nil, nil
	}
	return fn(query, limit)
}

func (m *MockCatalog) CreatePlaylist(ctx context.Context, ownerID, name string) (*models.RemotePlaylist, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.FailMutations {
		return nil, shared.ErrMutationFailed
	}
	m.nextID++
	p := &models.RemotePlaylist{
		ID:      fmt.Sprintf("playlist%d", m.nextID),
		Name:    name,
		OwnerID: ownerID,
	}
	m.Playlists[p.ID] = p
	m.record("create:" + name)
	return p, nil
}

func (m *MockCatalog) AddItems(ctx context.Context, playlistID string, uris []string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.FailMutations {
		return shared.ErrMutationFailed
	}
	if len(uris) > 100 {
		return errors.New("batch too large")
	}
	p, ok := m.Playlists[playlistID]
	if !ok {
		return shared.ErrPlaylistMissing
	}
	p.TrackURIs = append(p.TrackURIs, uris...)
	p.TrackCount = len(p.TrackURIs)
	m.record(fmt.Sprintf("add:%s:%d", playlistID, len(uris)))
	return nil
}

func (m *MockCatalog) RemoveItems(ctx context.Context, playlistID string, uris []string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.FailMutations {
		return shared.ErrMutationFailed
	}
	p, ok := m.Playlists[playlistID]
	if !ok {
		return shared.ErrPlaylistMissing
	}
	drop := make(map[string]bool, len(uris))
	for _, uri := range uris {
		drop[uri] = true
	}
	kept := p.TrackURIs[:0]
	for _, uri := range p.TrackURIs {
		if !drop[uri] {
			kept = append(kept, uri)
		}
	}
	p.TrackURIs = kept
	p.TrackCount = len(p.TrackURIs)
	m.record(fmt.Sprintf("remove:%s:%d", playlistID, len(uris)))
	return nil
}

func (m *MockCatalog) RenamePlaylist(ctx context.Context, playlistID, name string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.FailMutations {
		return shared.ErrMutationFailed
	}
	p, ok := m.Playlists[playlistID]
	if !ok {
		return shared.ErrPlaylistMissing
	}
	p.Name = name
	m.record(fmt.Sprintf("rename:%s:%s", playlistID, name))
	return nil
}

func (m *MockCatalog) DeletePlaylist(ctx context.Context, playlistID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.FailMutations {
		return shared.ErrMutationFailed
	}
	if _, ok := m.Playlists[playlistID]; !ok {
		return shared.ErrPlaylistMissing
	}
	delete(m.Playlists, playlistID)
	m.record("delete:" + playlistID)
	return nil
}

func (m *MockCatalog) ListPlaylists(ctx context.Context, ownerID string) ([]models.RemotePlaylist, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []models.RemotePlaylist
	for _, p := range m.Playlists {
		if ownerID == "" || p.OwnerID == ownerID {
			out = append(out, *p)
		}
	}
	return out, nil
}

func (m *MockCatalog) ListPlaylistTracks(ctx context.Context, playlistID string) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.Playlists[playlistID]
	if !ok {
		return nil, shared.ErrPlaylistMissing
	}
	return append([]string(nil), p.TrackURIs...), nil
}

// CandidateFor builds a search hook returning one fixed candidate for
// every query.
func CandidateFor(c models.Candidate) func(string, int) ([]models.Candidate, error) {
	return func(string, int) ([]models.Candidate, error) {
		return []models.Candidate{c}, nil
	}
}

// FWriter always returns an error on Write
type FWriter struct{}

func (f *FWriter) Write(p []byte) (n int, err error) {
	return 0, errors.New("write failed")
}
