package tasks

import (
	"context"
	"errors"
	"testing"

	"github.com/opuslt/opussync/internal/feed"
	"github.com/opuslt/opussync/internal/services"
	tu "github.com/opuslt/opussync/internal/testing"
)

func TestResolver(t *testing.T) {
	rec := feed.Record{Artist: "Koven", Title: "Worlds Collide"}

	t.Run("Resolve", func(t *testing.T) {
		t.Run("positive cache short-circuits the catalog", func(t *testing.T) {
			store := tu.NewMemStore()
			store.Tracks[rec.Key()] = "spotify:track:cached"
			catalog := &tu.MockCatalog{}

			res, err := NewResolver(catalog, store, nil).Resolve(context.Background(), rec)
			if err != nil {
				t.Fatalf("Resolve failed: %v", err)
			}
			if !res.Found || !res.FromCache || res.URI != "spotify:track:cached" {
				t.Errorf("unexpected resolution: %+v", res)
			}
			if len(catalog.SearchCalls) != 0 {
				t.Errorf("expected no remote search, got %d", len(catalog.SearchCalls))
			}
		})

		t.Run("same-day negative entry suppresses the search", func(t *testing.T) {
			store := tu.NewMemStore()
			store.NotFound[rec.Key()] = true
			catalog := &tu.MockCatalog{}

			res, err := NewResolver(catalog, store, nil).Resolve(context.Background(), rec)
			if err != nil {
				t.Fatalf("Resolve failed: %v", err)
			}
			if res.Found || !res.FromCache {
				t.Errorf("unexpected resolution: %+v", res)
			}
			if len(catalog.SearchCalls) != 0 {
				t.Errorf("expected no remote search, got %d", len(catalog.SearchCalls))
			}
		})

		t.Run("remote hit is cached under the original key", func(t *testing.T) {
			store := tu.NewMemStore()
			catalog := &tu.MockCatalog{
				SearchTrackFunc: func(ctx context.Context, title, artist string) (*services.Track, error) {
					return &services.Track{URI: "spotify:track:found"}, nil
				},
			}

			res, err := NewResolver(catalog, store, nil).Resolve(context.Background(), rec)
			if err != nil {
				t.Fatalf("Resolve failed: %v", err)
			}
			if !res.Found || res.FromCache || res.URI != "spotify:track:found" {
				t.Errorf("unexpected resolution: %+v", res)
			}
			if store.Tracks[rec.Key()] != "spotify:track:found" {
				t.Errorf("resolution not cached: %v", store.Tracks)
			}
		})

		t.Run("multi-artist fallback caches under the combined key", func(t *testing.T) {
			multi := feed.Record{Artist: "Koven & Circadian", Title: "Worlds Collide"}
			store := tu.NewMemStore()
			catalog := &tu.MockCatalog{
				SearchTrackFunc: func(ctx context.Context, title, artist string) (*services.Track, error) {
					if artist == "Koven" {
						return &services.Track{URI: "spotify:track:fallback"}, nil
					}
					return nil, nil
				},
			}

			res, err := NewResolver(catalog, store, nil).Resolve(context.Background(), multi)
			if err != nil {
				t.Fatalf("Resolve failed: %v", err)
			}
			if !res.Found || res.URI != "spotify:track:fallback" {
				t.Errorf("unexpected resolution: %+v", res)
			}

			if len(catalog.SearchCalls) != 2 {
				t.Fatalf("expected 2 searches, got %d", len(catalog.SearchCalls))
			}
			if catalog.SearchCalls[1][1] != "Koven" {
				t.Errorf("fallback searched %q", catalog.SearchCalls[1][1])
			}
			// The cache key stays the full combined credit, not the fallback artist.
			if store.Tracks[multi.Key()] != "spotify:track:fallback" {
				t.Errorf("expected combined-key cache entry, got %v", store.Tracks)
			}
		})

		t.Run("single-artist miss skips the fallback and caches negatively", func(t *testing.T) {
			store := tu.NewMemStore()
			catalog := &tu.MockCatalog{}

			res, err := NewResolver(catalog, store, nil).Resolve(context.Background(), rec)
			if err != nil {
				t.Fatalf("Resolve failed: %v", err)
			}
			if res.Found || res.FromCache {
				t.Errorf("unexpected resolution: %+v", res)
			}
			if len(catalog.SearchCalls) != 1 {
				t.Errorf("expected 1 search, got %d", len(catalog.SearchCalls))
			}
			if !store.NotFound[rec.Key()] {
				t.Error("expected negative cache entry")
			}
		})

		t.Run("remote error propagates unretried", func(t *testing.T) {
			boom := errors.New("rate limited")
			store := tu.NewMemStore()
			catalog := &tu.MockCatalog{
				SearchTrackFunc: func(ctx context.Context, title, artist string) (*services.Track, error) {
					return nil, boom
				},
			}

			if _, err := NewResolver(catalog, store, nil).Resolve(context.Background(), rec); !errors.Is(err, boom) {
				t.Errorf("expected propagated error, got %v", err)
			}
			if store.NotFound[rec.Key()] {
				t.Error("errors must not poison the negative cache")
			}
		})
	})

	t.Run("cleanArtist", func(t *testing.T) {
		cases := []struct {
			name string
			in   string
			want string
		}{
			{"plain credit untouched", "Koven", "Koven"},
			{"standalone and removed", "Chase and Status", "Chase  Status"},
			{"case-insensitive and", "Chase AND Status", "Chase  Status"},
			{"GandG restored before stripping", "GandG Project", "G&G Project"},
			{"embedded and kept", "Sandstorm", "Sandstorm"},
		}

		for _, tc := range cases {
			t.Run(tc.name, func(t *testing.T) {
				if got := cleanArtist(tc.in); got != tc.want {
					t.Errorf("cleanArtist(%q) = %q, want %q", tc.in, got, tc.want)
				}
			})
		}
	})

	t.Run("firstArtist", func(t *testing.T) {
		cases := []struct {
			name  string
			in    string
			want  string
			multi bool
		}{
			{"single artist", "Koven", "", false},
			{"comma", "Koven, Circadian", "Koven", true},
			{"ampersand", "Koven & Circadian", "Koven", true},
			{"lowercase and", "Koven and Circadian", "Koven", true},
			{"versus", "Koven Vs Circadian", "Koven", true},
			{"slash", "Koven/Circadian", "Koven", true},
			{"chained separators", "A, B & C/D", "A", true},
			{"uppercase AND detected but not split", "Koven AND Circadian", "Koven AND Circadian", true},
		}

		for _, tc := range cases {
			t.Run(tc.name, func(t *testing.T) {
				got, multi := firstArtist(tc.in)
				if multi != tc.multi || got != tc.want {
					t.Errorf("firstArtist(%q) = %q, %v; want %q, %v", tc.in, got, multi, tc.want, tc.multi)
				}
			})
		}
	})
}
