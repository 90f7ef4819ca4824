package services

import (
	"context"
	"time"

	"golang.org/x/oauth2"
)

// Catalog defines the operations the sync engine needs from the
// streaming catalog: track search, artist and track detail, and
// playlist reads and mutations.
//
// All methods block; remote failures are returned, never retried here.
type Catalog interface {
	// SearchTrack searches for a track by title and artist.
	// Returns (nil, nil) when the catalog has no match.
	SearchTrack(ctx context.Context, title, artist string) (*Track, error)

	// Artist retrieves a single artist, including its genre list.
	Artist(ctx context.Context, artistID string) (*Artist, error)

	// Track retrieves a single track by ID or URI.
	Track(ctx context.Context, trackID string) (*Track, error)

	// PlaylistItems reads the full ordered membership of a playlist,
	// draining pagination before returning.
	PlaylistItems(ctx context.Context, playlistID string) ([]PlaylistItem, error)

	// RemoveOccurrences removes specific occurrences of tracks from a
	// playlist, addressed by URI and exact positions.
	RemoveOccurrences(ctx context.Context, playlistID string, occurrences []Occurrence) error

	// AppendItems appends track URIs to the end of a playlist.
	AppendItems(ctx context.Context, playlistID string, uris []string) error

	// Name returns the name of the catalog service (e.g., "Spotify")
	Name() string
}

// OAuthService is implemented by catalogs that authenticate through an
// OAuth2 authorization-code flow.
type OAuthService interface {
	GetAuthURL(state string) string
	GetOAuthConfig() *oauth2.Config
	OAuthenticate(ctx context.Context, token *oauth2.Token) error
}

// Track represents a catalog track.
type Track struct {
	ID      string
	URI     string
	Title   string
	Artists []ArtistRef
}

// ArtistRef identifies an artist as it appears on a track.
type ArtistRef struct {
	ID   string
	Name string
}

// Artist represents a catalog artist with its genre tags.
type Artist struct {
	ID     string
	Name   string
	Genres []string
}

// PlaylistItem is one occurrence of a track within a playlist snapshot.
// Position is the remote ordinal; a URI may appear at several positions.
type PlaylistItem struct {
	Position int
	AddedAt  time.Time
	URI      string
}

// Occurrence addresses specific positions of a track URI for removal.
type Occurrence struct {
	URI       string `json:"uri"`
	Positions []int  `json:"positions"`
}
