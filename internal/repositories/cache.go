package repositories

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"
)

// dateLayout is the ISO calendar-date format used by the negative cache.
const dateLayout = "2006-01-02"

// CacheStats reports row counts per cache table.
type CacheStats struct {
	Resolved        int
	NotFound        int
	ArtistGenres    int
	Classifications int
}

// CacheRepository implements the persistent cache operations over a SQLite
// connection. "Today" is evaluated in the station's time zone so the
// negative cache day-scoping matches the feed's clock.
type CacheRepository struct {
	db  *sql.DB
	loc *time.Location

	// Now provides the reference clock for day-scoping. Overridable in tests.
	Now func() time.Time
}

// NewCacheRepository creates a CacheRepository with the given database
// connection and station time zone.
func NewCacheRepository(db *sql.DB, loc *time.Location) *CacheRepository {
	if loc == nil {
		loc = time.UTC
	}
	return &CacheRepository{db: db, loc: loc, Now: time.Now}
}

func (r *CacheRepository) today() string {
	return r.Now().In(r.loc).Format(dateLayout)
}

// LookupTrack returns the cached catalog URI for a song key, if any.
// Point lookup, no network.
func (r *CacheRepository) LookupTrack(key string) (string, bool, error) {
	var uri string
	err := r.db.QueryRow("SELECT uri FROM tracks WHERE key = ?", key).Scan(&uri)
	if err == sql.ErrNoRows {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("failed to look up track: %w", err)
	}
	return uri, true, nil
}

// RecentlyNotFound reports whether the key was searched and missed today.
// An entry from an earlier day does not count; the miss is retried once
// per calendar day.
func (r *CacheRepository) RecentlyNotFound(key string) (bool, error) {
	var lastSearch string
	err := r.db.QueryRow("SELECT last_search_date FROM not_found WHERE key = ?", key).Scan(&lastSearch)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to check negative cache: %w", err)
	}
	return lastSearch == r.today(), nil
}

// StorePositive upserts a resolved song and retracts any negative entry
// for the same key. A key must never sit in both caches at once.
func (r *CacheRepository) StorePositive(key, uri string) error {
	if _, err := r.db.Exec("INSERT OR REPLACE INTO tracks(key, uri) VALUES (?, ?)", key, uri); err != nil {
		return fmt.Errorf("failed to store resolution: %w", err)
	}
	if _, err := r.db.Exec("DELETE FROM not_found WHERE key = ?", key); err != nil {
		return fmt.Errorf("failed to retract negative entry: %w", err)
	}
	return nil
}

// StoreNegative marks the key as searched and not found today.
// Positive entries are untouched.
func (r *CacheRepository) StoreNegative(key string) error {
	_, err := r.db.Exec(
		"INSERT OR REPLACE INTO not_found(key, last_search_date) VALUES (?, ?)",
		key, r.today(),
	)
	if err != nil {
		return fmt.Errorf("failed to store negative entry: %w", err)
	}
	return nil
}

// ArtistGenres returns the cached genre list for an artist.
// A cached empty list is a hit; only a missing row is a miss.
func (r *CacheRepository) ArtistGenres(artistID string) ([]string, bool, error) {
	var raw string
	err := r.db.QueryRow("SELECT genres FROM artist_genres WHERE artist_id = ?", artistID).Scan(&raw)
	if err == sql.ErrNoRows {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("failed to look up artist genres: %w", err)
	}

	var genres []string
	if err := json.Unmarshal([]byte(raw), &genres); err != nil {
		return nil, false, fmt.Errorf("failed to decode cached genres: %w", err)
	}
	return genres, true, nil
}

// StoreArtistGenres caches the full genre list for an artist, empty included.
func (r *CacheRepository) StoreArtistGenres(artistID string, genres []string) error {
	if genres == nil {
		genres = []string{}
	}
	raw, err := json.Marshal(genres)
	if err != nil {
		return fmt.Errorf("failed to encode genres: %w", err)
	}

	_, err = r.db.Exec(
		"INSERT OR REPLACE INTO artist_genres(artist_id, genres) VALUES (?, ?)",
		artistID, string(raw),
	)
	if err != nil {
		return fmt.Errorf("failed to store artist genres: %w", err)
	}
	return nil
}

// TrackClassification returns the cached genre verdict and snapshot for
// a track; found is false when the track has not been classified.
func (r *CacheRepository) TrackClassification(trackID string) (isTarget bool, snapshot []byte, found bool, err error) {
	var (
		target int
		snap   sql.NullString
	)
	err = r.db.QueryRow(
		"SELECT is_target, snapshot FROM track_classification WHERE track_id = ?", trackID,
	).Scan(&target, &snap)
	if err == sql.ErrNoRows {
		return false, nil, false, nil
	}
	if err != nil {
		return false, nil, false, fmt.Errorf("failed to look up classification: %w", err)
	}

	if snap.Valid {
		snapshot = []byte(snap.String)
	}
	return target != 0, snapshot, true, nil
}

// StoreTrackClassification caches the verdict and snapshot for a track.
func (r *CacheRepository) StoreTrackClassification(trackID string, isTarget bool, snapshot []byte) error {
	target := 0
	if isTarget {
		target = 1
	}

	_, err := r.db.Exec(
		"INSERT OR REPLACE INTO track_classification(track_id, is_target, snapshot) VALUES (?, ?, ?)",
		trackID, target, string(snapshot),
	)
	if err != nil {
		return fmt.Errorf("failed to store classification: %w", err)
	}
	return nil
}

// ClearClassifications wipes the track classification cache and returns
// the number of entries removed. Used when the target-genre keyword set
// changes and every track needs re-evaluation.
func (r *CacheRepository) ClearClassifications() (int64, error) {
	result, err := r.db.Exec("DELETE FROM track_classification")
	if err != nil {
		return 0, fmt.Errorf("failed to clear classifications: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to count cleared rows: %w", err)
	}
	return rows, nil
}

// Stats reports the current size of each cache table.
func (r *CacheRepository) Stats() (*CacheStats, error) {
	stats := &CacheStats{}
	for _, c := range []struct {
		table  string
		target *int
	}{
		{"tracks", &stats.Resolved},
		{"not_found", &stats.NotFound},
		{"artist_genres", &stats.ArtistGenres},
		{"track_classification", &stats.Classifications},
	} {
		query := fmt.Sprintf("SELECT COUNT(*) FROM %s", c.table)
		if err := r.db.QueryRow(query).Scan(c.target); err != nil {
			return nil, fmt.Errorf("failed to count %s: %w", c.table, err)
		}
	}
	return stats, nil
}
