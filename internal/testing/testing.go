// package testing contains shared testing utilities
package testing

import (
	"context"
	"errors"
	"os"
	"testing"

	"github.com/opuslt/opussync/internal/services"
)

// MockCatalog is a scriptable test double for [services.Catalog].
// Unset function fields behave as empty successes; calls are recorded.
type MockCatalog struct {
	SearchTrackFunc       func(ctx context.Context, title, artist string) (*services.Track, error)
	ArtistFunc            func(ctx context.Context, artistID string) (*services.Artist, error)
	TrackFunc             func(ctx context.Context, trackID string) (*services.Track, error)
	PlaylistItemsFunc     func(ctx context.Context, playlistID string) ([]services.PlaylistItem, error)
	RemoveOccurrencesFunc func(ctx context.Context, playlistID string, occurrences []services.Occurrence) error
	AppendItemsFunc       func(ctx context.Context, playlistID string, uris []string) error

	SearchCalls []([2]string)
	Removals    [][]services.Occurrence
	Appends     [][]string
}

func (m *MockCatalog) SearchTrack(ctx context.Context, title, artist string) (*services.Track, error) {
	m.SearchCalls = append(m.SearchCalls, [2]string{title, artist})
	if m.SearchTrackFunc == nil {
		return nil, nil
	}
	return m.SearchTrackFunc(ctx, title, artist)
}

func (m *MockCatalog) Artist(ctx context.Context, artistID string) (*services.Artist, error) {
	if m.ArtistFunc == nil {
		return &services.Artist{ID: artistID}, nil
	}
	return m.ArtistFunc(ctx, artistID)
}

func (m *MockCatalog) Track(ctx context.Context, trackID string) (*services.Track, error) {
	if m.TrackFunc == nil {
		return &services.Track{ID: trackID, URI: trackID}, nil
	}
	return m.TrackFunc(ctx, trackID)
}

func (m *MockCatalog) PlaylistItems(ctx context.Context, playlistID string) ([]services.PlaylistItem, error) {
	if m.PlaylistItemsFunc == nil {
		return nil, nil
	}
	return m.PlaylistItemsFunc(ctx, playlistID)
}

func (m *MockCatalog) RemoveOccurrences(ctx context.Context, playlistID string, occurrences []services.Occurrence) error {
	m.Removals = append(m.Removals, occurrences)
	if m.RemoveOccurrencesFunc == nil {
		return nil
	}
	return m.RemoveOccurrencesFunc(ctx, playlistID, occurrences)
}

func (m *MockCatalog) AppendItems(ctx context.Context, playlistID string, uris []string) error {
	m.Appends = append(m.Appends, uris)
	if m.AppendItemsFunc == nil {
		return nil
	}
	return m.AppendItemsFunc(ctx, playlistID, uris)
}

func (m *MockCatalog) Name() string { return "mock" }

// MemStore is an in-memory test double for the sync engine's store.
type MemStore struct {
	Tracks          map[string]string
	NotFound        map[string]bool
	Genres          map[string][]string
	Classifications map[string]MemClassification
}

// MemClassification is a stored verdict in a [MemStore].
type MemClassification struct {
	IsTarget bool
	Snapshot []byte
}

func NewMemStore() *MemStore {
	return &MemStore{
		Tracks:          map[string]string{},
		NotFound:        map[string]bool{},
		Genres:          map[string][]string{},
		Classifications: map[string]MemClassification{},
	}
}

func (s *MemStore) LookupTrack(key string) (string, bool, error) {
	uri, ok := s.Tracks[key]
	return uri, ok, nil
}

func (s *MemStore) RecentlyNotFound(key string) (bool, error) {
	return s.NotFound[key], nil
}

func (s *MemStore) StorePositive(key, uri string) error {
	s.Tracks[key] = uri
	delete(s.NotFound, key)
	return nil
}

func (s *MemStore) StoreNegative(key string) error {
	s.NotFound[key] = true
	return nil
}

func (s *MemStore) ArtistGenres(artistID string) ([]string, bool, error) {
	genres, ok := s.Genres[artistID]
	return genres, ok, nil
}

func (s *MemStore) StoreArtistGenres(artistID string, genres []string) error {
	if genres == nil {
		genres = []string{}
	}
	s.Genres[artistID] = genres
	return nil
}

func (s *MemStore) TrackClassification(trackID string) (bool, []byte, bool, error) {
	c, ok := s.Classifications[trackID]
	return c.IsTarget, c.Snapshot, ok, nil
}

func (s *MemStore) StoreTrackClassification(trackID string, isTarget bool, snapshot []byte) error {
	s.Classifications[trackID] = MemClassification{IsTarget: isTarget, Snapshot: snapshot}
	return nil
}

func (s *MemStore) ClearClassifications() (int64, error) {
	n := int64(len(s.Classifications))
	s.Classifications = map[string]MemClassification{}
	return n, nil
}

// FWriter always returns an error on Write
type FWriter struct{}

func (f *FWriter) Write(p []byte) (n int, err error) {
	return 0, errors.New("write failed")
}

func MustGetwd(t *testing.T) string {
	t.Helper()
	wd, err := os.Getwd()
	if err != nil {
		t.Fatalf("Failed to get working directory: %v", err)
	}
	return wd
}

func MustChdir(t *testing.T, dir string) {
	t.Helper()
	if err := os.Chdir(dir); err != nil {
		t.Fatalf("Failed to change directory to %s: %v", dir, err)
	}
}

func AssertFileExists(t *testing.T, path string) {
	t.Helper()
	if _, err := os.Stat(path); os.IsNotExist(err) {
		t.Errorf("File does not exist: %s", path)
	}
}

func MustReadFile(t *testing.T, path string) string {
	t.Helper()
	content, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("Failed to read file %s: %v", path, err)
	}
	return string(content)
}
