// Spotify implementation of [Catalog]
//
// Spotify API response types based on https://developer.spotify.com/documentation/web-api/reference/
package services

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/charmbracelet/log"
	"github.com/tmkontra/syncify/internal/models"
	"github.com/tmkontra/syncify/internal/shared"
	"golang.org/x/oauth2"
)

const (
	spotifyAuthURL  = "https://accounts.spotify.com/authorize"
	spotifyTokenURL = "https://accounts.spotify.com/api/token"
	spotifyBaseURL  = "https://api.spotify.com/v1"

	maxRetries = 3
	pageLimit  = 50
)

// SpotifyArtist represents a Spotify artist.
type SpotifyArtist struct {
	ID   string `json:"id"`
	Name string `json:"name"`
	URI  string `json:"uri"`
}

// SpotifyAlbum represents a Spotify album.
type SpotifyAlbum struct {
	ID   string `json:"id"`
	Name string `json:"name"`
	URI  string `json:"uri"`
}

// SpotifyTrack represents a Spotify track.
type SpotifyTrack struct {
	ID         string          `json:"id"`
	Name       string          `json:"name"`
	Artists    []SpotifyArtist `json:"artists"`
	Album      SpotifyAlbum    `json:"album"`
	DurationMS int             `json:"duration_ms"`
	Popularity int             `json:"popularity"`
	URI        string          `json:"uri"`
}

// Owner represents a playlist owner.
type Owner struct {
	ID          string `json:"id"`
	DisplayName string `json:"display_name"`
}

type playlistTracksField struct {
	Total int `json:"total"`
}

// SpotifyPlaylist represents a Spotify playlist.
type SpotifyPlaylist struct {
	ID     string              `json:"id"`
	Name   string              `json:"name"`
	Owner  Owner               `json:"owner"`
	Public bool                `json:"public"`
	Tracks playlistTracksField `json:"tracks"`
	URI    string              `json:"uri"`
}

type searchResponse struct {
	Tracks struct {
		Items []SpotifyTrack `json:"items"`
	} `json:"tracks"`
}

type paginatedPlaylists struct {
	Items []SpotifyPlaylist `json:"items"`
	Total int               `json:"total"`
	Next  *string           `json:"next"`
}

type paginatedPlaylistTracks struct {
	Items []struct {
		Track SpotifyTrack `json:"track"`
	} `json:"items"`
	Total int     `json:"total"`
	Next  *string `json:"next"`
}

// SpotifyCatalog implements [Catalog] against the Spotify Web API.
// Every request goes through the injected [RateLimiter].
type SpotifyCatalog struct {
	config     *oauth2.Config
	token      *oauth2.Token
	httpClient *http.Client
	baseURL    string
	limiter    *RateLimiter
	logger     *log.Logger
}

// NewSpotifyCatalog creates a Spotify catalog client with the given
// OAuth2 credentials.
func NewSpotifyCatalog(cfg shared.SpotifyConfig, limiter *RateLimiter, logger *log.Logger) (*SpotifyCatalog, error) {
	if cfg.ClientID == "" {
		return nil, fmt.Errorf("%w: client_id", shared.ErrMissingCredentials)
	}
	if cfg.ClientSecret == "" {
		return nil, fmt.Errorf("%w: client_secret", shared.ErrMissingCredentials)
	}
	redirectURI := cfg.RedirectURI
	if redirectURI == "" {
		redirectURI = "http://localhost:8080/callback"
	}
	if limiter == nil {
		limiter = NewRateLimiter(5)
	}

	config := &oauth2.Config{
		ClientID:     cfg.ClientID,
		ClientSecret: cfg.ClientSecret,
		RedirectURL:  redirectURI,
		Scopes: []string{
			"playlist-read-private",
			"playlist-read-collaborative",
			"playlist-modify-public",
			"playlist-modify-private",
		},
		Endpoint: oauth2.Endpoint{
			AuthURL:  spotifyAuthURL,
			TokenURL: spotifyTokenURL,
		},
	}

	return &SpotifyCatalog{
		config:     config,
		httpClient: http.DefaultClient,
		baseURL:    spotifyBaseURL,
		limiter:    limiter,
		logger:     logger,
	}, nil
}

// Authenticate establishes an API session. Expects either an
// "access_token" or "auth_code" in credentials.
func (s *SpotifyCatalog) Authenticate(ctx context.Context, credentials map[string]string) error {
	if accessToken, ok := credentials["access_token"]; ok && accessToken != "" {
		s.token = &oauth2.Token{AccessToken: accessToken}
		s.httpClient = s.config.Client(ctx, s.token)
		return nil
	}

	if authCode, ok := credentials["auth_code"]; ok && authCode != "" {
		token, err := s.config.Exchange(ctx, authCode)
		if err != nil {
			return fmt.Errorf("%w: failed to exchange auth code: %v", shared.ErrAuthFailed, err)
		}
		s.token = token
		s.httpClient = s.config.Client(ctx, s.token)
		return nil
	}

	return fmt.Errorf("%w: access_token or auth_code", shared.ErrMissingCredentials)
}

// GetAuthURL returns the OAuth2 authorization URL for user login.
func (s *SpotifyCatalog) GetAuthURL(state string) string {
	return s.config.AuthCodeURL(state, oauth2.AccessTypeOffline)
}

// doRequest performs a rate-limited, retrying request against the API.
// Throttling and server errors are retried up to maxRetries times.
func (s *SpotifyCatalog) doRequest(ctx context.Context, method, endpoint string, body, result any) error {
	if s.token == nil {
		return fmt.Errorf("%w: call Authenticate first", shared.ErrNotAuthenticated)
	}

	apiURL := s.baseURL + endpoint

	var lastErr error
	for attempt := 0; attempt < maxRetries; attempt++ {
		if err := s.limiter.Wait(ctx); err != nil {
			return err
		}

		var reqBody *bytes.Reader
		if body != nil {
			data, err := json.Marshal(body)
			if err != nil {
				return fmt.Errorf("failed to encode request body: %w", err)
			}
			reqBody = bytes.NewReader(data)
		} else {
			reqBody = bytes.NewReader(nil)
		}

		req, err := http.NewRequestWithContext(ctx, method, apiURL, reqBody)
		if err != nil {
			return fmt.Errorf("failed to create request: %w", err)
		}
		req.Header.Set("Authorization", "Bearer "+s.token.AccessToken)
		req.Header.Set("Content-Type", "application/json")

		resp, err := s.httpClient.Do(req)
		if err != nil {
			lastErr = fmt.Errorf("request failed: %w", err)
			continue
		}

		switch {
		case resp.StatusCode == http.StatusTooManyRequests:
			retryAfter := parseRetryAfter(resp.Header.Get("Retry-After"))
			resp.Body.Close()
			s.limiter.OnThrottled(retryAfter)
			s.logger.Warn("rate limited by catalog", "endpoint", endpoint, "retry_after", retryAfter)
			lastErr = fmt.Errorf("%w: %s", shared.ErrRateLimited, endpoint)
			continue

		case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
			resp.Body.Close()
			return fmt.Errorf("%w: status %d", shared.ErrAuthFailed, resp.StatusCode)

		case resp.StatusCode >= 500:
			resp.Body.Close()
			lastErr = fmt.Errorf("%w: status %d", shared.ErrAPIRequest, resp.StatusCode)
			continue

		case resp.StatusCode < 200 || resp.StatusCode >= 300:
			resp.Body.Close()
			return fmt.Errorf("%w: status %d", shared.ErrAPIRequest, resp.StatusCode)
		}

		s.limiter.OnSuccess()
		if result != nil {
			if err := json.NewDecoder(resp.Body).Decode(result); err != nil {
				resp.Body.Close()
				return fmt.Errorf("failed to decode response: %w", err)
			}
		}
		resp.Body.Close()
		return nil
	}
	return lastErr
}

func parseRetryAfter(header string) time.Duration {
	if header == "" {
		return 0
	}
	secs, err := strconv.Atoi(header)
	if err != nil {
		return 0
	}
	return time.Duration(secs) * time.Second
}

// CurrentUserID returns the authenticated user's id.
func (s *SpotifyCatalog) CurrentUserID(ctx context.Context) (string, error) {
	var user struct {
		ID string `json:"id"`
	}
	if err := s.doRequest(ctx, http.MethodGet, "/me", nil, &user); err != nil {
		return "", err
	}
	return user.ID, nil
}

// Search runs a track search and maps the hits to candidates.
func (s *SpotifyCatalog) Search(ctx context.Context, query string, limit int) ([]models.Candidate, error) {
	if limit <= 0 || limit > pageLimit {
		limit = 20
	}
	endpoint := fmt.Sprintf("/search?q=%s&type=track&limit=%d", url.QueryEscape(query), limit)

	var response searchResponse
	if err := s.doRequest(ctx, http.MethodGet, endpoint, nil, &response); err != nil {
		return nil, err
	}

	candidates := make([]models.Candidate, 0, len(response.Tracks.Items))
	for _, track := range response.Tracks.Items {
		candidates = append(candidates, trackToCandidate(track))
	}
	return candidates, nil
}

func trackToCandidate(track SpotifyTrack) models.Candidate {
	artists := make([]string, 0, len(track.Artists))
	for _, a := range track.Artists {
		artists = append(artists, a.Name)
	}
	return models.Candidate{
		ID:         track.ID,
		Title:      track.Name,
		Artists:    artists,
		Album:      track.Album.Name,
		URI:        track.URI,
		Popularity: track.Popularity,
		DurationMS: track.DurationMS,
	}
}

// CreatePlaylist creates a new private playlist for the owner.
func (s *SpotifyCatalog) CreatePlaylist(ctx context.Context, ownerID, name string) (*models.RemotePlaylist, error) {
	body := map[string]any{"name": name, "public": false}
	endpoint := fmt.Sprintf("/users/%s/playlists", url.PathEscape(ownerID))

	var created SpotifyPlaylist
	if err := s.doRequest(ctx, http.MethodPost, endpoint, body, &created); err != nil {
		return nil, fmt.Errorf("%w: create %q: %v", shared.ErrMutationFailed, name, err)
	}
	return &models.RemotePlaylist{
		ID:         created.ID,
		Name:       created.Name,
		OwnerID:    created.Owner.ID,
		TrackCount: created.Tracks.Total,
	}, nil
}

// AddItems appends up to MaxBatchSize track URIs to a playlist.
func (s *SpotifyCatalog) AddItems(ctx context.Context, playlistID string, uris []string) error {
	if len(uris) == 0 {
		return nil
	}
	if len(uris) > MaxBatchSize {
		return fmt.Errorf("%w: %d uris exceeds batch limit %d", shared.ErrInvalidInput, len(uris), MaxBatchSize)
	}
	endpoint := fmt.Sprintf("/playlists/%s/tracks", url.PathEscape(playlistID))
	body := map[string]any{"uris": uris}
	if err := s.doRequest(ctx, http.MethodPost, endpoint, body, nil); err != nil {
		return fmt.Errorf("%w: add items: %v", shared.ErrMutationFailed, err)
	}
	return nil
}

// RemoveItems removes up to MaxBatchSize track URIs from a playlist.
func (s *SpotifyCatalog) RemoveItems(ctx context.Context, playlistID string, uris []string) error {
	if len(uris) == 0 {
		return nil
	}
	if len(uris) > MaxBatchSize {
		return fmt.Errorf("%w: %d uris exceeds batch limit %d", shared.ErrInvalidInput, len(uris), MaxBatchSize)
	}
	tracks := make([]map[string]string, 0, len(uris))
	for _, uri := range uris {
		tracks = append(tracks, map[string]string{"uri": uri})
	}
	endpoint := fmt.Sprintf("/playlists/%s/tracks", url.PathEscape(playlistID))
	body := map[string]any{"tracks": tracks}
	if err := s.doRequest(ctx, http.MethodDelete, endpoint, body, nil); err != nil {
		return fmt.Errorf("%w: remove items: %v", shared.ErrMutationFailed, err)
	}
	return nil
}

// RenamePlaylist changes a playlist's display name.
func (s *SpotifyCatalog) RenamePlaylist(ctx context.Context, playlistID, name string) error {
	endpoint := fmt.Sprintf("/playlists/%s", url.PathEscape(playlistID))
	body := map[string]any{"name": name}
	if err := s.doRequest(ctx, http.MethodPut, endpoint, body, nil); err != nil {
		return fmt.Errorf("%w: rename to %q: %v", shared.ErrMutationFailed, name, err)
	}
	return nil
}

// DeletePlaylist removes the playlist from the user's library. Spotify
// models deletion as unfollowing.
func (s *SpotifyCatalog) DeletePlaylist(ctx context.Context, playlistID string) error {
	endpoint := fmt.Sprintf("/playlists/%s/followers", url.PathEscape(playlistID))
	if err := s.doRequest(ctx, http.MethodDelete, endpoint, nil, nil); err != nil {
		return fmt.Errorf("%w: delete playlist: %v", shared.ErrMutationFailed, err)
	}
	return nil
}

// ListPlaylists pages through the user's playlists and returns the
// ones owned by ownerID.
func (s *SpotifyCatalog) ListPlaylists(ctx context.Context, ownerID string) ([]models.RemotePlaylist, error) {
	var playlists []models.RemotePlaylist
	offset := 0
	for {
		endpoint := fmt.Sprintf("/me/playlists?limit=%d&offset=%d", pageLimit, offset)
		var page paginatedPlaylists
		if err := s.doRequest(ctx, http.MethodGet, endpoint, nil, &page); err != nil {
			return nil, err
		}
		for _, p := range page.Items {
			if ownerID != "" && p.Owner.ID != ownerID {
				continue
			}
			playlists = append(playlists, models.RemotePlaylist{
				ID:         p.ID,
				Name:       p.Name,
				OwnerID:    p.Owner.ID,
				TrackCount: p.Tracks.Total,
			})
		}
		if page.Next == nil || len(page.Items) == 0 {
			return playlists, nil
		}
		offset += pageLimit
	}
}

// ListPlaylistTracks pages through a playlist and returns its track
// URIs in order.
func (s *SpotifyCatalog) ListPlaylistTracks(ctx context.Context, playlistID string) ([]string, error) {
	var uris []string
	offset := 0
	for {
		endpoint := fmt.Sprintf("/playlists/%s/tracks?limit=%d&offset=%d", url.PathEscape(playlistID), pageLimit*2, offset)
		var page paginatedPlaylistTracks
		if err := s.doRequest(ctx, http.MethodGet, endpoint, nil, &page); err != nil {
			return nil, err
		}
		for _, item := range page.Items {
			if item.Track.URI != "" {
				uris = append(uris, item.Track.URI)
			}
		}
		if page.Next == nil || len(page.Items) == 0 {
			return uris, nil
		}
		offset += pageLimit * 2
	}
}
