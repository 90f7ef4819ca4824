package tasks

import (
	"context"
	"fmt"
	"time"

	"github.com/charmbracelet/log"
	"github.com/opuslt/opussync/internal/feed"
	"github.com/opuslt/opussync/internal/services"
	"github.com/opuslt/opussync/internal/shared"
)

const (
	tick  = "✓"
	cross = "✗"

	// defaultGenreMaxTracks caps the genre playlist when the config
	// leaves genre_max_tracks unset. A zero cap would mark every slot
	// for removal.
	defaultGenreMaxTracks = 100
)

// Store is the persistent cache capability injected into the engine.
// Implemented by repositories.CacheRepository; tests use an in-memory fake.
type Store interface {
	// Resolution cache
	LookupTrack(key string) (uri string, ok bool, err error)
	RecentlyNotFound(key string) (bool, error)
	StorePositive(key, uri string) error
	StoreNegative(key string) error

	// Genre caches
	ArtistGenres(artistID string) (genres []string, ok bool, err error)
	StoreArtistGenres(artistID string, genres []string) error
	TrackClassification(trackID string) (isTarget bool, snapshot []byte, found bool, err error)
	StoreTrackClassification(trackID string, isTarget bool, snapshot []byte) error
	ClearClassifications() (int64, error)
}

// FeedSource produces the raw recently-played items.
// Implemented by feed.Client.
type FeedSource interface {
	Fetch(ctx context.Context) ([]map[string]any, error)
}

// PlaylistResult counts the mutations applied to one managed playlist.
type PlaylistResult struct {
	Added   int
	Removed int
}

// SyncResult summarizes one full pass.
type SyncResult struct {
	Records  int             // normalized records within the window
	Resolved int             // records that resolved to a catalog URI
	Main     PlaylistResult  // main playlist mutations
	Genre    *PlaylistResult // nil when the genre playlist was skipped
	Misses   []string        // songs the catalog could not resolve
}

// EngineOpts contains the collaborators and settings for a SyncEngine.
type EngineOpts struct {
	Feed       FeedSource
	Normalizer *feed.Normalizer
	Catalog    services.Catalog
	Store      Store
	Keywords   []string

	MainPlaylistID  string
	GenrePlaylistID string
	GenreMaxTracks  int
	Cutoff          time.Duration

	Logger *log.Logger
}

// SyncEngine orchestrates one batch pass: normalize the feed, resolve
// and classify every record, then reconcile the managed playlists.
type SyncEngine struct {
	feed       FeedSource
	normalizer *feed.Normalizer
	store      Store
	resolver   *Resolver
	classifier *Classifier
	reconciler *Reconciler

	mainPlaylistID  string
	genrePlaylistID string
	genreMaxTracks  int
	cutoff          time.Duration

	logger *log.Logger
}

// NewSyncEngine creates a SyncEngine from the provided options.
func NewSyncEngine(opts EngineOpts) *SyncEngine {
	if opts.Logger == nil {
		opts.Logger = shared.NewLogger(nil)
	}
	if opts.GenreMaxTracks <= 0 {
		opts.GenreMaxTracks = defaultGenreMaxTracks
	}

	return &SyncEngine{
		feed:            opts.Feed,
		normalizer:      opts.Normalizer,
		store:           opts.Store,
		resolver:        NewResolver(opts.Catalog, opts.Store, opts.Logger),
		classifier:      NewClassifier(opts.Catalog, opts.Store, opts.Keywords, opts.Logger),
		reconciler:      NewReconciler(opts.Catalog, opts.Logger),
		mainPlaylistID:  opts.MainPlaylistID,
		genrePlaylistID: opts.GenrePlaylistID,
		genreMaxTracks:  opts.GenreMaxTracks,
		cutoff:          opts.Cutoff,
		logger:          opts.Logger,
	}
}

// Run executes one pass.
//
// A malformed feed payload yields zero records and the pass continues,
// so retention on the managed playlists still executes. Remote-call
// failures abort the run; the caches and playlists stay as they were
// after the last committed step and the next scheduled run resumes.
func (e *SyncEngine) Run(ctx context.Context) (*SyncResult, error) {
	if e.mainPlaylistID == "" {
		return nil, fmt.Errorf("%w: main playlist id not configured", shared.ErrInvalidConfig)
	}

	items, err := e.feed.Fetch(ctx)
	if err != nil {
		return nil, err
	}

	records := e.normalizer.Normalize(items)
	e.logger.Info("fetched recent records", "count", len(records))

	result := &SyncResult{Records: len(records)}

	var uris, genreURIs []string
	for _, rec := range records {
		res, err := e.resolver.Resolve(ctx, rec)
		if err != nil {
			return nil, err
		}

		if !res.Found {
			e.logSong(cross, rec, "not found", false)
			result.Misses = append(result.Misses, fmt.Sprintf("%s – %s", rec.Artist, rec.Title))
			continue
		}

		isTarget, cached, err := e.classifier.IsTargetGenre(ctx, res.URI)
		if err != nil {
			return nil, err
		}

		where := "SPOTIFY"
		if res.FromCache {
			where = "CACHE"
		}
		if cached {
			where += "+GENRE_CACHE"
		}
		e.logSong(tick, rec, fmt.Sprintf("found (%s)", where), isTarget)

		uris = append(uris, res.URI)
		if isTarget {
			genreURIs = append(genreURIs, res.URI)
		}
	}
	result.Resolved = len(uris)

	added, removed, err := e.reconciler.Reconcile(ctx, e.mainPlaylistID, MaxAge(e.cutoff), uris)
	result.Main = PlaylistResult{Added: added, Removed: removed}
	if err != nil {
		return result, err
	}
	e.logMutation(result.Main, "main")

	if e.genrePlaylistID != "" && len(genreURIs) > 0 {
		added, removed, err := e.reconciler.Reconcile(ctx, e.genrePlaylistID, MaxCount(e.genreMaxTracks), genreURIs)
		result.Genre = &PlaylistResult{Added: added, Removed: removed}
		if err != nil {
			return result, err
		}
		e.logMutation(*result.Genre, "genre")
	}

	if len(result.Misses) > 0 {
		e.logger.Info("unresolved songs", "missing", result.Misses)
	}

	return result, nil
}

// ClearGenreCache wipes the track classification cache so every track is
// re-evaluated against the current keyword set.
func (e *SyncEngine) ClearGenreCache() (int64, error) {
	return e.store.ClearClassifications()
}

// logSong emits the uniform per-song line.
func (e *SyncEngine) logSong(mark string, rec feed.Record, note string, isTarget bool) {
	flag := "--"
	if isTarget {
		flag = "genre"
	}
	e.logger.Infof("%s %-35s – %-35s %-18s %s", mark, truncate(rec.Artist, 35), truncate(rec.Title, 35), note, flag)
}

// logMutation emits the uniform playlist mutation lines.
func (e *SyncEngine) logMutation(res PlaylistResult, playlist string) {
	if res.Removed > 0 {
		e.logger.Info("removed tracks", "count", res.Removed, "playlist", playlist)
	}
	if res.Added > 0 {
		e.logger.Info("added tracks", "count", res.Added, "playlist", playlist)
	}
}

// truncate shortens s to at most n runes. Artist and title names from
// the feed carry multi-byte characters, so byte slicing would split them.
func truncate(s string, n int) string {
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[:n])
}
