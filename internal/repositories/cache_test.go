package repositories

import (
	"testing"
	"time"

	"github.com/opuslt/opussync/internal/shared"
)

func newTestRepository(t *testing.T) *CacheRepository {
	t.Helper()

	db, err := shared.NewDatabase(":memory:")
	if err != nil {
		t.Fatalf("failed to create database: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	if err := shared.RunMigrations(db); err != nil {
		t.Fatalf("failed to run migrations: %v", err)
	}

	return NewCacheRepository(db, time.UTC)
}

func TestCacheRepository(t *testing.T) {
	t.Run("resolution cache", func(t *testing.T) {
		t.Run("lookup misses then hits after store", func(t *testing.T) {
			repo := newTestRepository(t)

			if _, ok, err := repo.LookupTrack("artist - song"); err != nil || ok {
				t.Fatalf("expected clean miss, got ok=%v err=%v", ok, err)
			}

			if err := repo.StorePositive("artist - song", "spotify:track:x"); err != nil {
				t.Fatalf("StorePositive failed: %v", err)
			}

			uri, ok, err := repo.LookupTrack("artist - song")
			if err != nil || !ok {
				t.Fatalf("expected hit, got ok=%v err=%v", ok, err)
			}
			if uri != "spotify:track:x" {
				t.Errorf("unexpected uri %q", uri)
			}
		})

		t.Run("positive store retracts a negative entry", func(t *testing.T) {
			repo := newTestRepository(t)

			if err := repo.StoreNegative("artist - song"); err != nil {
				t.Fatalf("StoreNegative failed: %v", err)
			}
			if missed, _ := repo.RecentlyNotFound("artist - song"); !missed {
				t.Fatal("expected negative entry")
			}

			if err := repo.StorePositive("artist - song", "spotify:track:x"); err != nil {
				t.Fatalf("StorePositive failed: %v", err)
			}

			if missed, _ := repo.RecentlyNotFound("artist - song"); missed {
				t.Error("negative entry should have been retracted")
			}
		})
	})

	t.Run("negative cache day scoping", func(t *testing.T) {
		repo := newTestRepository(t)

		yesterday := time.Date(2025, 6, 9, 23, 30, 0, 0, time.UTC)
		today := time.Date(2025, 6, 10, 0, 30, 0, 0, time.UTC)

		repo.Now = func() time.Time { return yesterday }
		if err := repo.StoreNegative("artist - song"); err != nil {
			t.Fatalf("StoreNegative failed: %v", err)
		}

		missed, err := repo.RecentlyNotFound("artist - song")
		if err != nil || !missed {
			t.Fatalf("expected same-day suppression, got missed=%v err=%v", missed, err)
		}

		// The calendar day rolls over and the miss becomes retryable.
		repo.Now = func() time.Time { return today }
		missed, err = repo.RecentlyNotFound("artist - song")
		if err != nil {
			t.Fatalf("RecentlyNotFound failed: %v", err)
		}
		if missed {
			t.Error("a stale negative entry must not suppress a retry")
		}
	})

	t.Run("artist genres", func(t *testing.T) {
		t.Run("cached empty list is a hit", func(t *testing.T) {
			repo := newTestRepository(t)

			if _, ok, err := repo.ArtistGenres("a1"); err != nil || ok {
				t.Fatalf("expected miss, got ok=%v err=%v", ok, err)
			}

			if err := repo.StoreArtistGenres("a1", nil); err != nil {
				t.Fatalf("StoreArtistGenres failed: %v", err)
			}

			genres, ok, err := repo.ArtistGenres("a1")
			if err != nil || !ok {
				t.Fatalf("expected hit, got ok=%v err=%v", ok, err)
			}
			if len(genres) != 0 {
				t.Errorf("expected empty list, got %v", genres)
			}
		})

		t.Run("round-trips a genre list", func(t *testing.T) {
			repo := newTestRepository(t)

			want := []string{"drum and bass", "jungle"}
			if err := repo.StoreArtistGenres("a2", want); err != nil {
				t.Fatalf("StoreArtistGenres failed: %v", err)
			}

			genres, ok, err := repo.ArtistGenres("a2")
			if err != nil || !ok {
				t.Fatalf("expected hit, got ok=%v err=%v", ok, err)
			}
			if len(genres) != 2 || genres[0] != "drum and bass" {
				t.Errorf("unexpected genres %v", genres)
			}
		})
	})

	t.Run("track classifications", func(t *testing.T) {
		repo := newTestRepository(t)

		if _, _, found, err := repo.TrackClassification("spotify:track:x"); err != nil || found {
			t.Fatalf("expected miss, got found=%v err=%v", found, err)
		}

		snapshot := []byte(`{"id":"x","artists":[{"id":"a1"}]}`)
		if err := repo.StoreTrackClassification("spotify:track:x", true, snapshot); err != nil {
			t.Fatalf("StoreTrackClassification failed: %v", err)
		}
		if err := repo.StoreTrackClassification("spotify:track:y", false, nil); err != nil {
			t.Fatalf("StoreTrackClassification failed: %v", err)
		}

		isTarget, snap, found, err := repo.TrackClassification("spotify:track:x")
		if err != nil || !found {
			t.Fatalf("expected hit, got found=%v err=%v", found, err)
		}
		if !isTarget || string(snap) != string(snapshot) {
			t.Errorf("unexpected verdict %v / snapshot %s", isTarget, snap)
		}

		count, err := repo.ClearClassifications()
		if err != nil {
			t.Fatalf("ClearClassifications failed: %v", err)
		}
		if count != 2 {
			t.Errorf("expected 2 cleared rows, got %d", count)
		}

		if _, _, found, _ := repo.TrackClassification("spotify:track:x"); found {
			t.Error("classification should be gone after clear")
		}
	})

	t.Run("Stats", func(t *testing.T) {
		repo := newTestRepository(t)

		repo.StorePositive("a - b", "spotify:track:1")
		repo.StoreNegative("c - d")
		repo.StoreArtistGenres("a1", []string{"jungle"})
		repo.StoreTrackClassification("spotify:track:1", true, nil)

		stats, err := repo.Stats()
		if err != nil {
			t.Fatalf("Stats failed: %v", err)
		}
		if stats.Resolved != 1 || stats.NotFound != 1 || stats.ArtistGenres != 1 || stats.Classifications != 1 {
			t.Errorf("unexpected stats: %+v", stats)
		}
	})
}
