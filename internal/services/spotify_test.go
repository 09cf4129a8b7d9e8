package services

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/tmkontra/syncify/internal/shared"
	"golang.org/x/oauth2"
)

func testCatalog(t *testing.T, handler http.Handler) (*SpotifyCatalog, *httptest.Server) {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	catalog, err := NewSpotifyCatalog(shared.SpotifyConfig{
		ClientID:     "test_client_id",
		ClientSecret: "test_client_secret",
	}, NewRateLimiter(1000), shared.NewLogger(io.Discard))
	if err != nil {
		t.Fatalf("failed to create catalog: %v", err)
	}
	catalog.baseURL = server.URL
	catalog.token = &oauth2.Token{AccessToken: "test_token"}
	catalog.httpClient = server.Client()
	return catalog, server
}

func TestNewSpotifyCatalog(t *testing.T) {
	t.Run("missing client id", func(t *testing.T) {
		_, err := NewSpotifyCatalog(shared.SpotifyConfig{ClientSecret: "x"}, nil, shared.NewLogger(io.Discard))
		if !errors.Is(err, shared.ErrMissingCredentials) {
			t.Errorf("expected ErrMissingCredentials, got %v", err)
		}
	})

	t.Run("missing client secret", func(t *testing.T) {
		_, err := NewSpotifyCatalog(shared.SpotifyConfig{ClientID: "x"}, nil, shared.NewLogger(io.Discard))
		if !errors.Is(err, shared.ErrMissingCredentials) {
			t.Errorf("expected ErrMissingCredentials, got %v", err)
		}
	})

	t.Run("not authenticated", func(t *testing.T) {
		catalog, err := NewSpotifyCatalog(shared.SpotifyConfig{
			ClientID: "x", ClientSecret: "y",
		}, nil, shared.NewLogger(io.Discard))
		if err != nil {
			t.Fatalf("failed to create catalog: %v", err)
		}
		_, err = catalog.Search(context.Background(), "query", 10)
		if !errors.Is(err, shared.ErrNotAuthenticated) {
			t.Errorf("expected ErrNotAuthenticated, got %v", err)
		}
	})
}

func TestSpotifySearch(t *testing.T) {
	t.Run("maps tracks to candidates", func(t *testing.T) {
		catalog, _ := testCatalog(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.URL.Path != "/search" {
				t.Errorf("unexpected path %s", r.URL.Path)
			}
			if got := r.URL.Query().Get("q"); got != `artist:"Nina Simone" track:"Feeling Good"` {
				t.Errorf("unexpected query %q", got)
			}
			json.NewEncoder(w).Encode(map[string]any{
				"tracks": map[string]any{
					"items": []map[string]any{{
						"id":         "track1",
						"name":       "Feeling Good",
						"uri":        "spotify:track:track1",
						"popularity": 70,
						"artists":    []map[string]any{{"id": "a1", "name": "Nina Simone"}},
						"album":      map[string]any{"id": "al1", "name": "I Put a Spell on You"},
					}},
				},
			})
		}))

		candidates, err := catalog.Search(context.Background(), `artist:"Nina Simone" track:"Feeling Good"`, 10)
		if err != nil {
			t.Fatalf("Search failed: %v", err)
		}
		if len(candidates) != 1 {
			t.Fatalf("expected 1 candidate, got %d", len(candidates))
		}
		c := candidates[0]
		if c.ID != "track1" || c.Title != "Feeling Good" || c.PrimaryArtist() != "Nina Simone" {
			t.Errorf("unexpected candidate %+v", c)
		}
		if c.URI != "spotify:track:track1" || c.Popularity != 70 {
			t.Errorf("unexpected candidate %+v", c)
		}
	})

	t.Run("retries throttled requests", func(t *testing.T) {
		var calls int
		catalog, _ := testCatalog(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			calls++
			if calls == 1 {
				w.Header().Set("Retry-After", "0")
				w.WriteHeader(http.StatusTooManyRequests)
				return
			}
			json.NewEncoder(w).Encode(searchResponse{})
		}))

		if _, err := catalog.Search(context.Background(), "q", 10); err != nil {
			t.Fatalf("Search failed after retry: %v", err)
		}
		if calls != 2 {
			t.Errorf("expected 2 calls, got %d", calls)
		}
	})

	t.Run("gives up after max retries", func(t *testing.T) {
		var calls int
		catalog, _ := testCatalog(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			calls++
			w.WriteHeader(http.StatusTooManyRequests)
		}))

		_, err := catalog.Search(context.Background(), "q", 10)
		if !errors.Is(err, shared.ErrRateLimited) {
			t.Errorf("expected ErrRateLimited, got %v", err)
		}
		if calls != maxRetries {
			t.Errorf("expected %d calls, got %d", maxRetries, calls)
		}
	})

	t.Run("auth failure is not retried", func(t *testing.T) {
		var calls int
		catalog, _ := testCatalog(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			calls++
			w.WriteHeader(http.StatusUnauthorized)
		}))

		_, err := catalog.Search(context.Background(), "q", 10)
		if !errors.Is(err, shared.ErrAuthFailed) {
			t.Errorf("expected ErrAuthFailed, got %v", err)
		}
		if calls != 1 {
			t.Errorf("expected 1 call, got %d", calls)
		}
	})
}

func TestSpotifyMutations(t *testing.T) {
	t.Run("add items enforces batch limit", func(t *testing.T) {
		catalog, _ := testCatalog(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))

		uris := make([]string, MaxBatchSize+1)
		for i := range uris {
			uris[i] = "spotify:track:x"
		}
		err := catalog.AddItems(context.Background(), "p1", uris)
		if !errors.Is(err, shared.ErrInvalidInput) {
			t.Errorf("expected ErrInvalidInput, got %v", err)
		}
	})

	t.Run("add items posts uris", func(t *testing.T) {
		var body struct {
			URIs []string `json:"uris"`
		}
		catalog, _ := testCatalog(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.Method != http.MethodPost || r.URL.Path != "/playlists/p1/tracks" {
				t.Errorf("unexpected request %s %s", r.Method, r.URL.Path)
			}
			json.NewDecoder(r.Body).Decode(&body)
			w.WriteHeader(http.StatusCreated)
		}))

		if err := catalog.AddItems(context.Background(), "p1", []string{"spotify:track:a", "spotify:track:b"}); err != nil {
			t.Fatalf("AddItems failed: %v", err)
		}
		if len(body.URIs) != 2 {
			t.Errorf("expected 2 uris posted, got %d", len(body.URIs))
		}
	})

	t.Run("empty batch is a no-op", func(t *testing.T) {
		catalog, _ := testCatalog(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			t.Error("no request expected for empty batch")
		}))
		if err := catalog.AddItems(context.Background(), "p1", nil); err != nil {
			t.Errorf("AddItems(nil) = %v, want nil", err)
		}
		if err := catalog.RemoveItems(context.Background(), "p1", nil); err != nil {
			t.Errorf("RemoveItems(nil) = %v, want nil", err)
		}
	})

	t.Run("delete unfollows", func(t *testing.T) {
		var path, method string
		catalog, _ := testCatalog(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			path, method = r.URL.Path, r.Method
			w.WriteHeader(http.StatusOK)
		}))

		if err := catalog.DeletePlaylist(context.Background(), "p1"); err != nil {
			t.Fatalf("DeletePlaylist failed: %v", err)
		}
		if method != http.MethodDelete || path != "/playlists/p1/followers" {
			t.Errorf("unexpected request %s %s", method, path)
		}
	})

	t.Run("create playlist", func(t *testing.T) {
		catalog, _ := testCatalog(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.URL.Path != "/users/me1/playlists" {
				t.Errorf("unexpected path %s", r.URL.Path)
			}
			json.NewEncoder(w).Encode(SpotifyPlaylist{
				ID: "new1", Name: "Road Trip", Owner: Owner{ID: "me1"},
			})
		}))

		playlist, err := catalog.CreatePlaylist(context.Background(), "me1", "Road Trip")
		if err != nil {
			t.Fatalf("CreatePlaylist failed: %v", err)
		}
		if playlist.ID != "new1" || playlist.Name != "Road Trip" || playlist.OwnerID != "me1" {
			t.Errorf("unexpected playlist %+v", playlist)
		}
	})
}

func TestSpotifyListing(t *testing.T) {
	t.Run("list playlists filters by owner", func(t *testing.T) {
		catalog, _ := testCatalog(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			json.NewEncoder(w).Encode(paginatedPlaylists{
				Items: []SpotifyPlaylist{
					{ID: "p1", Name: "Mine", Owner: Owner{ID: "me1"}},
					{ID: "p2", Name: "Theirs", Owner: Owner{ID: "other"}},
				},
			})
		}))

		playlists, err := catalog.ListPlaylists(context.Background(), "me1")
		if err != nil {
			t.Fatalf("ListPlaylists failed: %v", err)
		}
		if len(playlists) != 1 || playlists[0].ID != "p1" {
			t.Errorf("unexpected playlists %+v", playlists)
		}
	})

	t.Run("list tracks pages through", func(t *testing.T) {
		var calls int
		catalog, _ := testCatalog(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			calls++
			var page paginatedPlaylistTracks
			if calls == 1 {
				next := "more"
				page.Next = &next
				page.Items = []struct {
					Track SpotifyTrack `json:"track"`
				}{{Track: SpotifyTrack{URI: "spotify:track:a"}}}
			} else {
				page.Items = []struct {
					Track SpotifyTrack `json:"track"`
				}{{Track: SpotifyTrack{URI: "spotify:track:b"}}}
			}
			json.NewEncoder(w).Encode(page)
		}))

		uris, err := catalog.ListPlaylistTracks(context.Background(), "p1")
		if err != nil {
			t.Fatalf("ListPlaylistTracks failed: %v", err)
		}
		if len(uris) != 2 || uris[0] != "spotify:track:a" || uris[1] != "spotify:track:b" {
			t.Errorf("unexpected uris %v", uris)
		}
		if calls != 2 {
			t.Errorf("expected 2 pages, got %d", calls)
		}
	})
}
