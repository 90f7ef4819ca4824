package tasks

import (
	"context"
	"errors"
	"testing"

	"github.com/opuslt/opussync/internal/services"
	tu "github.com/opuslt/opussync/internal/testing"
)

var targetKeywords = []string{"Drum and Bass", "drum & bass", "dnb", "uk garage", "jungle"}

func TestClassifier(t *testing.T) {
	t.Run("IsTargetGenre", func(t *testing.T) {
		t.Run("matches a keyword case-insensitively", func(t *testing.T) {
			store := tu.NewMemStore()
			catalog := &tu.MockCatalog{
				TrackFunc: func(ctx context.Context, trackID string) (*services.Track, error) {
					return &services.Track{
						URI:     trackID,
						Artists: []services.ArtistRef{{ID: "a1"}},
					}, nil
				},
				ArtistFunc: func(ctx context.Context, artistID string) (*services.Artist, error) {
					return &services.Artist{ID: artistID, Genres: []string{"liquid funk", "Drum And Bass"}}, nil
				},
			}

			c := NewClassifier(catalog, store, targetKeywords, nil)
			isTarget, cached, err := c.IsTargetGenre(context.Background(), "spotify:track:x")
			if err != nil {
				t.Fatalf("IsTargetGenre failed: %v", err)
			}
			if !isTarget || cached {
				t.Errorf("got isTarget=%v cached=%v", isTarget, cached)
			}
		})

		t.Run("substring tags do not match", func(t *testing.T) {
			store := tu.NewMemStore()
			catalog := &tu.MockCatalog{
				TrackFunc: func(ctx context.Context, trackID string) (*services.Track, error) {
					return &services.Track{URI: trackID, Artists: []services.ArtistRef{{ID: "a1"}}}, nil
				},
				ArtistFunc: func(ctx context.Context, artistID string) (*services.Artist, error) {
					return &services.Artist{ID: artistID, Genres: []string{"deep dnb fusion"}}, nil
				},
			}

			c := NewClassifier(catalog, store, targetKeywords, nil)
			isTarget, _, err := c.IsTargetGenre(context.Background(), "spotify:track:x")
			if err != nil {
				t.Fatalf("IsTargetGenre failed: %v", err)
			}
			if isTarget {
				t.Error("exact membership only, substrings must not match")
			}
		})

		t.Run("any artist matching is enough", func(t *testing.T) {
			store := tu.NewMemStore()
			catalog := &tu.MockCatalog{
				TrackFunc: func(ctx context.Context, trackID string) (*services.Track, error) {
					return &services.Track{
						URI:     trackID,
						Artists: []services.ArtistRef{{ID: "pop"}, {ID: "junglist"}},
					}, nil
				},
				ArtistFunc: func(ctx context.Context, artistID string) (*services.Artist, error) {
					if artistID == "junglist" {
						return &services.Artist{ID: artistID, Genres: []string{"jungle"}}, nil
					}
					return &services.Artist{ID: artistID, Genres: []string{"pop"}}, nil
				},
			}

			c := NewClassifier(catalog, store, targetKeywords, nil)
			isTarget, _, err := c.IsTargetGenre(context.Background(), "spotify:track:x")
			if err != nil {
				t.Fatalf("IsTargetGenre failed: %v", err)
			}
			if !isTarget {
				t.Error("expected a match through the second artist")
			}
		})

		t.Run("verdict is cached with a snapshot", func(t *testing.T) {
			store := tu.NewMemStore()
			trackCalls := 0
			catalog := &tu.MockCatalog{
				TrackFunc: func(ctx context.Context, trackID string) (*services.Track, error) {
					trackCalls++
					return &services.Track{URI: trackID, Artists: []services.ArtistRef{{ID: "a1"}}}, nil
				},
				ArtistFunc: func(ctx context.Context, artistID string) (*services.Artist, error) {
					return &services.Artist{ID: artistID, Genres: []string{"dnb"}}, nil
				},
			}

			c := NewClassifier(catalog, store, targetKeywords, nil)

			isTarget, cached, err := c.IsTargetGenre(context.Background(), "spotify:track:x")
			if err != nil || !isTarget || cached {
				t.Fatalf("first call: isTarget=%v cached=%v err=%v", isTarget, cached, err)
			}
			if len(store.Classifications["spotify:track:x"].Snapshot) == 0 {
				t.Error("expected a stored snapshot")
			}

			isTarget, cached, err = c.IsTargetGenre(context.Background(), "spotify:track:x")
			if err != nil || !isTarget || !cached {
				t.Fatalf("second call: isTarget=%v cached=%v err=%v", isTarget, cached, err)
			}
			if trackCalls != 1 {
				t.Errorf("expected 1 remote track fetch, got %d", trackCalls)
			}
		})

		t.Run("artist genre cache avoids repeat artist fetches", func(t *testing.T) {
			store := tu.NewMemStore()
			artistCalls := 0
			catalog := &tu.MockCatalog{
				TrackFunc: func(ctx context.Context, trackID string) (*services.Track, error) {
					return &services.Track{URI: trackID, Artists: []services.ArtistRef{{ID: "a1"}}}, nil
				},
				ArtistFunc: func(ctx context.Context, artistID string) (*services.Artist, error) {
					artistCalls++
					return &services.Artist{ID: artistID, Genres: nil}, nil
				},
			}

			c := NewClassifier(catalog, store, targetKeywords, nil)

			if _, _, err := c.IsTargetGenre(context.Background(), "spotify:track:x"); err != nil {
				t.Fatalf("IsTargetGenre failed: %v", err)
			}
			// Same artist on a different track: the cached empty list is a hit.
			if _, _, err := c.IsTargetGenre(context.Background(), "spotify:track:y"); err != nil {
				t.Fatalf("IsTargetGenre failed: %v", err)
			}

			if artistCalls != 1 {
				t.Errorf("expected 1 artist fetch, got %d", artistCalls)
			}
		})

		t.Run("remote error propagates without caching", func(t *testing.T) {
			boom := errors.New("spotify down")
			store := tu.NewMemStore()
			catalog := &tu.MockCatalog{
				TrackFunc: func(ctx context.Context, trackID string) (*services.Track, error) {
					return nil, boom
				},
			}

			c := NewClassifier(catalog, store, targetKeywords, nil)
			if _, _, err := c.IsTargetGenre(context.Background(), "spotify:track:x"); !errors.Is(err, boom) {
				t.Errorf("expected propagated error, got %v", err)
			}
			if len(store.Classifications) != 0 {
				t.Error("errors must not be cached as verdicts")
			}
		})
	})
}
