package tasks

import (
	"context"
	"regexp"
	"strings"

	"github.com/charmbracelet/log"
	"github.com/opuslt/opussync/internal/feed"
	"github.com/opuslt/opussync/internal/services"
	"github.com/opuslt/opussync/internal/shared"
)

// andRE matches the standalone word "and" for query sanitization.
var andRE = regexp.MustCompile(`(?i)\band\b`)

// multiArtistSeps is the fixed separator list used to detect combined
// artist credits and to extract the leading artist for the fallback
// search. Keep the list and its casing exactly as is.
var multiArtistSeps = []string{",", " and ", " & ", " Vs ", "/"}

// Resolution is the outcome of resolving one record against the catalog.
// FromCache distinguishes cache hits from remote lookups for logging;
// the semantics are identical either way.
type Resolution struct {
	URI       string
	Found     bool
	FromCache bool
}

// Resolver turns a normalized record into a catalog track URI,
// consulting the persistent caches before going remote.
type Resolver struct {
	catalog services.Catalog
	store   Store
	logger  *log.Logger
}

// NewResolver creates a Resolver over the given catalog and store.
func NewResolver(catalog services.Catalog, store Store, logger *log.Logger) *Resolver {
	if logger == nil {
		logger = shared.NewLogger(nil)
	}
	return &Resolver{catalog: catalog, store: store, logger: logger}
}

// Resolve looks up the record's catalog URI.
//
// Order: positive cache, negative cache (same-day only), remote search,
// then one fallback search with the first artist of a combined credit.
// A success is cached under the record's original key; a total miss is
// cached negatively for today. Remote errors propagate unretried.
func (r *Resolver) Resolve(ctx context.Context, rec feed.Record) (Resolution, error) {
	key := rec.Key()

	if uri, ok, err := r.store.LookupTrack(key); err != nil {
		return Resolution{}, err
	} else if ok {
		return Resolution{URI: uri, Found: true, FromCache: true}, nil
	}

	if missed, err := r.store.RecentlyNotFound(key); err != nil {
		return Resolution{}, err
	} else if missed {
		return Resolution{FromCache: true}, nil
	}

	track, err := r.catalog.SearchTrack(ctx, rec.Title, cleanArtist(rec.Artist))
	if err != nil {
		return Resolution{}, err
	}

	if track == nil {
		if first, ok := firstArtist(rec.Artist); ok {
			r.logger.Debug("retrying search with first artist only", "artist", first)
			track, err = r.catalog.SearchTrack(ctx, rec.Title, cleanArtist(first))
			if err != nil {
				return Resolution{}, err
			}
		}
	}

	if track != nil {
		if err := r.store.StorePositive(key, track.URI); err != nil {
			return Resolution{}, err
		}
		return Resolution{URI: track.URI, Found: true}, nil
	}

	if err := r.store.StoreNegative(key); err != nil {
		return Resolution{}, err
	}
	return Resolution{}, nil
}

// cleanArtist sanitizes an artist credit for querying: the station
// spells G&G as "GandG", which is undone first, then every standalone
// "and" is removed. Surrounding separators are left as they are.
func cleanArtist(artist string) string {
	if strings.Contains(artist, "GandG") {
		artist = strings.ReplaceAll(artist, "GandG", "G&G")
	}
	return strings.TrimSpace(andRE.ReplaceAllString(artist, ""))
}

// firstArtist reports whether the credit looks multi-artist and, if so,
// returns the substring before the first separator.
func firstArtist(artist string) (string, bool) {
	multi := strings.Contains(artist, ",") ||
		strings.Contains(strings.ToLower(artist), " and ") ||
		strings.Contains(artist, " & ") ||
		strings.Contains(artist, " Vs ") ||
		strings.Contains(artist, "/")
	if !multi {
		return "", false
	}

	first := artist
	for _, sep := range multiArtistSeps {
		first = strings.SplitN(first, sep, 2)[0]
	}
	return strings.TrimSpace(first), true
}
