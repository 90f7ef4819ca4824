package tasks

import (
	"context"
	"encoding/json"
	"strings"

	"github.com/charmbracelet/log"
	"github.com/opuslt/opussync/internal/services"
	"github.com/opuslt/opussync/internal/shared"
)

// Classifier decides whether a resolved track belongs to the target
// genre, using a closed keyword vocabulary against artist genre tags.
//
// Artist genre lists and per-track verdicts are both cached
// indefinitely; the track-level cache is only invalidated by an
// explicit clear when the keyword set changes.
type Classifier struct {
	catalog  services.Catalog
	store    Store
	keywords map[string]struct{}
	logger   *log.Logger
}

// NewClassifier creates a Classifier with the given target-genre keywords.
// Matching is case-insensitive exact membership.
func NewClassifier(catalog services.Catalog, store Store, keywords []string, logger *log.Logger) *Classifier {
	if logger == nil {
		logger = shared.NewLogger(nil)
	}

	set := make(map[string]struct{}, len(keywords))
	for _, kw := range keywords {
		set[strings.ToLower(kw)] = struct{}{}
	}

	return &Classifier{catalog: catalog, store: store, keywords: set, logger: logger}
}

// IsTargetGenre reports whether the track's artists carry a target-genre
// tag. The second return value tells whether the verdict came from the
// track-level cache, in which case no remote call was made at all.
func (c *Classifier) IsTargetGenre(ctx context.Context, trackURI string) (bool, bool, error) {
	if verdict, _, found, err := c.store.TrackClassification(trackURI); err != nil {
		return false, false, err
	} else if found {
		return verdict, true, nil
	}

	track, err := c.catalog.Track(ctx, trackURI)
	if err != nil {
		return false, false, err
	}

	isTarget := false
	for _, artist := range track.Artists {
		genres, err := c.artistGenres(ctx, artist.ID)
		if err != nil {
			return false, false, err
		}
		if c.matches(genres) {
			isTarget = true
			break
		}
	}

	snapshot, err := json.Marshal(track)
	if err != nil {
		return false, false, err
	}
	if err := c.store.StoreTrackClassification(trackURI, isTarget, snapshot); err != nil {
		return false, false, err
	}

	return isTarget, false, nil
}

// artistGenres resolves an artist's genre list, cache first. A remote
// result is cached in full, empty lists included, before evaluation.
func (c *Classifier) artistGenres(ctx context.Context, artistID string) ([]string, error) {
	genres, ok, err := c.store.ArtistGenres(artistID)
	if err != nil {
		return nil, err
	}
	if ok {
		return genres, nil
	}

	artist, err := c.catalog.Artist(ctx, artistID)
	if err != nil {
		return nil, err
	}

	if err := c.store.StoreArtistGenres(artistID, artist.Genres); err != nil {
		return nil, err
	}
	return artist.Genres, nil
}

func (c *Classifier) matches(genres []string) bool {
	for _, g := range genres {
		if _, ok := c.keywords[strings.ToLower(g)]; ok {
			return true
		}
	}
	return false
}
