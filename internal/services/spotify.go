// Spotify API implementation of [Catalog]
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
	"time"

	"github.com/opuslt/opussync/internal/shared"
	"golang.org/x/oauth2"
	"golang.org/x/time/rate"
)

const (
	spotifyAuthURL  = "https://accounts.spotify.com/authorize"
	spotifyTokenURL = "https://accounts.spotify.com/api/token"
	spotifyBaseURL  = "https://api.spotify.com/v1"

	// playlistPageLimit is the page size for playlist reads; the API caps it at 100.
	playlistPageLimit = 100
)

// SpotifyTrack represents a Spotify track.
type SpotifyTrack struct {
	ID      string          `json:"id"`
	Name    string          `json:"name"`
	Artists []SpotifyArtist `json:"artists"`
	URI     string          `json:"uri"`
}

// SpotifyArtist represents a Spotify artist.
type SpotifyArtist struct {
	ID     string   `json:"id"`
	Name   string   `json:"name"`
	Genres []string `json:"genres"`
	URI    string   `json:"uri"`
}

// SpotifyPlaylistTrack represents a track occurrence within a playlist page.
type SpotifyPlaylistTrack struct {
	AddedAt string       `json:"added_at"`
	Track   SpotifyTrack `json:"track"`
}

// SpotifyPlaylistPage represents one page of a playlist-items response.
type SpotifyPlaylistPage struct {
	Items  []SpotifyPlaylistTrack `json:"items"`
	Total  int                    `json:"total"`
	Limit  int                    `json:"limit"`
	Offset int                    `json:"offset"`
	Next   *string                `json:"next"`
}

// SpotifyService implements the Catalog interface for Spotify API interactions.
// Uses [oauth2] for authentication and a [rate.Limiter] to stay under the
// Web API rate limit. The limiter is not a retry mechanism.
type SpotifyService struct {
	config      *oauth2.Config
	token       *oauth2.Token
	httpClient  *http.Client
	limiter     *rate.Limiter
	baseURL     string
	credentials map[string]string
}

// NewSpotifyService creates a new Spotify service with the given OAuth2 credentials.
func NewSpotifyService(credentials map[string]string) (*SpotifyService, error) {
	clientID, ok := credentials["client_id"]
	if !ok || clientID == "" {
		return nil, fmt.Errorf("missing client_id in credentials")
	}

	clientSecret, ok := credentials["client_secret"]
	if !ok || clientSecret == "" {
		return nil, fmt.Errorf("missing client_secret in credentials")
	}

	redirectURI, ok := credentials["redirect_uri"]
	if !ok || redirectURI == "" {
		redirectURI = "http://localhost:8080/callback"
	}

	config := &oauth2.Config{
		ClientID:     clientID,
		ClientSecret: clientSecret,
		RedirectURL:  redirectURI,
		Scopes: []string{
			"playlist-modify-public",
		},
		Endpoint: oauth2.Endpoint{
			AuthURL:  spotifyAuthURL,
			TokenURL: spotifyTokenURL,
		},
	}

	return &SpotifyService{
		config:      config,
		httpClient:  http.DefaultClient,
		limiter:     rate.NewLimiter(rate.Limit(10), 10),
		baseURL:     spotifyBaseURL,
		credentials: credentials,
	}, nil
}

// Authenticate establishes an authenticated HTTP client.
//
// A "refresh_token" in credentials selects the headless path used by
// scheduled runs: the token source refreshes silently, no browser.
// Otherwise an "access_token" or "auth_code" is expected.
func (s *SpotifyService) Authenticate(ctx context.Context, credentials map[string]string) error {
	if refreshToken, ok := credentials["refresh_token"]; ok && refreshToken != "" {
		token := &oauth2.Token{
			AccessToken:  credentials["access_token"],
			RefreshToken: refreshToken,
			Expiry:       time.Now().Add(-time.Minute), // force a refresh on first use
		}
		return s.OAuthenticate(ctx, token)
	}

	if accessToken, ok := credentials["access_token"]; ok && accessToken != "" {
		s.token = &oauth2.Token{AccessToken: accessToken}
		s.httpClient = s.config.Client(ctx, s.token)
		return nil
	}

	if authCode, ok := credentials["auth_code"]; ok && authCode != "" {
		token, err := s.config.Exchange(ctx, authCode)
		if err != nil {
			return fmt.Errorf("failed to exchange auth code: %w", err)
		}
		return s.OAuthenticate(ctx, token)
	}

	return fmt.Errorf("%w: missing refresh_token, access_token or auth_code", shared.ErrMissingCredentials)
}

// OAuthenticate installs an [oauth2.Token] and the refreshing client built from it.
func (s *SpotifyService) OAuthenticate(ctx context.Context, token *oauth2.Token) error {
	if token == nil || (token.AccessToken == "" && token.RefreshToken == "") {
		return fmt.Errorf("%w: empty token", shared.ErrMissingCredentials)
	}
	s.token = token
	s.httpClient = s.config.Client(ctx, token)
	return nil
}

func (s *SpotifyService) Name() string {
	return "Spotify"
}

// GetAuthURL returns the OAuth2 authorization URL for user login.
func (s *SpotifyService) GetAuthURL(state string) string {
	return s.config.AuthCodeURL(state, oauth2.AccessTypeOffline)
}

// GetOAuthConfig exposes the OAuth2 config for the callback server.
func (s *SpotifyService) GetOAuthConfig() *oauth2.Config {
	return s.config
}

// doRequest performs an authenticated HTTP request to the Spotify API.
func (s *SpotifyService) doRequest(ctx context.Context, method, endpoint string, body interface{}, result interface{}) error {
	if s.token == nil {
		return fmt.Errorf("not authenticated: call Authenticate first")
	}

	if err := s.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("rate limiter interrupted: %w", err)
	}

	apiURL := s.baseURL + endpoint

	var reqBody *bytes.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to marshal request body: %w", err)
		}
		reqBody = bytes.NewReader(payload)
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
		return fmt.Errorf("%w: %v", shared.ErrAPIRequest, err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusUnauthorized:
		return fmt.Errorf("%w: status %d", shared.ErrTokenExpired, resp.StatusCode)
	case resp.StatusCode == http.StatusNotFound:
		return fmt.Errorf("%w: status %d", shared.ErrPlaylistNotFound, resp.StatusCode)
	case resp.StatusCode < 200 || resp.StatusCode >= 300:
		return fmt.Errorf("%w: status %d", shared.ErrAPIRequest, resp.StatusCode)
	}

	if result != nil {
		if err := json.NewDecoder(resp.Body).Decode(result); err != nil {
			return fmt.Errorf("failed to decode response: %w", err)
		}
	}

	return nil
}

// SearchTrack searches for the best track match, limit 1.
//
// Returns (nil, nil) when Spotify has no match; the caller decides
// whether that becomes a negative-cache entry.
func (s *SpotifyService) SearchTrack(ctx context.Context, title, artist string) (*Track, error) {
	query := fmt.Sprintf("track:%q artist:%q", title, artist)
	endpoint := fmt.Sprintf("/search?q=%s&type=track&limit=1", url.QueryEscape(query))

	var response struct {
		Tracks struct {
			Items []SpotifyTrack `json:"items"`
		} `json:"tracks"`
	}

	if err := s.doRequest(ctx, http.MethodGet, endpoint, nil, &response); err != nil {
		return nil, err
	}

	if len(response.Tracks.Items) == 0 {
		return nil, nil
	}

	track := toTrack(response.Tracks.Items[0])
	return &track, nil
}

// Artist retrieves an artist by ID, including the full genre list.
func (s *SpotifyService) Artist(ctx context.Context, artistID string) (*Artist, error) {
	var artist SpotifyArtist
	endpoint := fmt.Sprintf("/artists/%s", artistID)
	if err := s.doRequest(ctx, http.MethodGet, endpoint, nil, &artist); err != nil {
		return nil, err
	}

	return &Artist{ID: artist.ID, Name: artist.Name, Genres: artist.Genres}, nil
}

// Track retrieves a single track by ID or URI.
func (s *SpotifyService) Track(ctx context.Context, trackID string) (*Track, error) {
	var st SpotifyTrack
	endpoint := fmt.Sprintf("/tracks/%s", trackIDFromURI(trackID))
	if err := s.doRequest(ctx, http.MethodGet, endpoint, nil, &st); err != nil {
		return nil, err
	}

	track := toTrack(st)
	return &track, nil
}

// PlaylistItems reads the full ordered membership of a playlist.
// Pagination is fully drained before returning.
func (s *SpotifyService) PlaylistItems(ctx context.Context, playlistID string) ([]PlaylistItem, error) {
	var items []PlaylistItem
	offset := 0
	position := 0

	for {
		endpoint := fmt.Sprintf(
			"/playlists/%s/tracks?limit=%d&offset=%d&additional_types=track",
			playlistID, playlistPageLimit, offset,
		)

		var page SpotifyPlaylistPage
		if err := s.doRequest(ctx, http.MethodGet, endpoint, nil, &page); err != nil {
			return nil, err
		}

		for _, it := range page.Items {
			addedAt, err := time.Parse(time.RFC3339, it.AddedAt)
			if err != nil {
				return nil, fmt.Errorf("failed to parse added_at %q: %w", it.AddedAt, err)
			}
			items = append(items, PlaylistItem{
				Position: position,
				AddedAt:  addedAt,
				URI:      it.Track.URI,
			})
			position++
		}

		if page.Next == nil {
			break
		}
		offset += playlistPageLimit
	}

	return items, nil
}

// RemoveOccurrences removes the given track occurrences from a playlist.
// Positions must be exact so only the intended occurrences disappear.
func (s *SpotifyService) RemoveOccurrences(ctx context.Context, playlistID string, occurrences []Occurrence) error {
	if len(occurrences) == 0 {
		return nil
	}

	body := struct {
		Tracks []Occurrence `json:"tracks"`
	}{Tracks: occurrences}

	endpoint := fmt.Sprintf("/playlists/%s/tracks", playlistID)
	return s.doRequest(ctx, http.MethodDelete, endpoint, body, nil)
}

// AppendItems appends track URIs to the end of a playlist.
func (s *SpotifyService) AppendItems(ctx context.Context, playlistID string, uris []string) error {
	if len(uris) == 0 {
		return nil
	}

	body := struct {
		URIs []string `json:"uris"`
	}{URIs: uris}

	endpoint := fmt.Sprintf("/playlists/%s/tracks", playlistID)
	return s.doRequest(ctx, http.MethodPost, endpoint, body, nil)
}

func toTrack(st SpotifyTrack) Track {
	track := Track{
		ID:    st.ID,
		URI:   st.URI,
		Title: st.Name,
	}
	for _, a := range st.Artists {
		track.Artists = append(track.Artists, ArtistRef{ID: a.ID, Name: a.Name})
	}
	return track
}

// trackIDFromURI accepts either a bare ID or a "spotify:track:<id>" URI.
func trackIDFromURI(id string) string {
	const prefix = "spotify:track:"
	if len(id) > len(prefix) && id[:len(prefix)] == prefix {
		return id[len(prefix):]
	}
	return id
}
