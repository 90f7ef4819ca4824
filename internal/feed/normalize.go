package feed

import (
	"encoding/json"
	"regexp"
	"sort"
	"strings"
	"time"

	"github.com/charmbracelet/log"
	"github.com/opuslt/opussync/internal/shared"
)

// stationTimeLayout is the date-time shape the feed currently emits.
const stationTimeLayout = "2006.01.02 15:04"

var (
	yearRE = regexp.MustCompile(`\(\d{4}\)\s*$`)                // strips "(2025)" from the tail
	featRE = regexp.MustCompile(`(?i)\((?:feat|ft)\.?\s+.*?\)\s*`) // strips "(feat. Artist)"
)

// Ordered candidate keys tried per item, first present wins.
var (
	timestampFields = []string{"dt", "time", "timestamp"}
	songFields      = []string{"song", "name"}
)

// Record is one normalized feed entry. Immutable; discarded after one pass.
type Record struct {
	Timestamp time.Time
	Artist    string
	Title     string
}

// Key returns the case-insensitive identity of the logical song.
// The same key addresses the resolution and negative caches.
func (r Record) Key() string {
	return strings.ToLower(r.Artist) + " - " + strings.ToLower(r.Title)
}

// Normalizer turns raw feed items into deduplicated, time-ordered records.
// No network or storage access.
type Normalizer struct {
	loc    *time.Location
	cutoff time.Duration
	logger *log.Logger

	// Now is the reference point for the cutoff window. Overridable in tests.
	Now func() time.Time
}

// NewNormalizer creates a Normalizer for the station's time zone and cutoff window.
func NewNormalizer(loc *time.Location, cutoff time.Duration, logger *log.Logger) *Normalizer {
	if logger == nil {
		logger = shared.NewLogger(nil)
	}
	return &Normalizer{
		loc:    loc,
		cutoff: cutoff,
		logger: logger,
		Now:    time.Now,
	}
}

// Normalize parses raw items into records within the cutoff window,
// sorted ascending by timestamp and unique by [Record.Key] with the
// earliest occurrence kept.
//
// Malformed items (unparseable timestamp, missing or unsplittable song
// string) are dropped without affecting the rest of the batch.
func (n *Normalizer) Normalize(items []map[string]any) []Record {
	cutoff := n.Now().In(n.loc).Add(-n.cutoff)

	var latest []Record
	for _, item := range items {
		ts, ok := n.extractTimestamp(item)
		if !ok {
			n.logger.Debug("dropping item with unparseable timestamp")
			continue
		}
		// A record exactly at the cutoff instant is excluded.
		if !ts.After(cutoff) {
			continue
		}

		raw := strings.TrimSpace(extractString(item, songFields))
		if raw == "" {
			continue
		}

		artist, title, ok := splitSong(raw)
		if !ok {
			n.logger.Debug("dropping item with unrecognized song shape", "song", raw)
			continue
		}

		latest = append(latest, Record{Timestamp: ts, Artist: artist, Title: cleanTitle(title)})
	}

	sort.SliceStable(latest, func(i, j int) bool {
		return latest[i].Timestamp.Before(latest[j].Timestamp)
	})

	seen := make(map[string]struct{}, len(latest))
	unique := make([]Record, 0, len(latest))
	for _, rec := range latest {
		key := rec.Key()
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}
		unique = append(unique, rec)
	}

	return unique
}

// extractTimestamp tries the candidate timestamp fields in order and parses
// the first present value. Accepted shapes: epoch milliseconds or the
// station's local date-time layout.
func (n *Normalizer) extractTimestamp(item map[string]any) (time.Time, bool) {
	for _, field := range timestampFields {
		raw, ok := item[field]
		if !ok || raw == nil {
			continue
		}
		return n.parseTimestamp(raw)
	}
	return time.Time{}, false
}

func (n *Normalizer) parseTimestamp(raw any) (time.Time, bool) {
	switch v := raw.(type) {
	case float64:
		return time.UnixMilli(int64(v)).In(n.loc), true
	case int64:
		return time.UnixMilli(v).In(n.loc), true
	case int:
		return time.UnixMilli(int64(v)).In(n.loc), true
	case json.Number:
		ms, err := v.Float64()
		if err != nil {
			return time.Time{}, false
		}
		return time.UnixMilli(int64(ms)).In(n.loc), true
	case string:
		ts, err := time.ParseInLocation(stationTimeLayout, strings.TrimSpace(v), n.loc)
		if err != nil {
			return time.Time{}, false
		}
		return ts, true
	default:
		return time.Time{}, false
	}
}

// extractString returns the first present non-empty string among the candidate fields.
func extractString(item map[string]any, fields []string) string {
	for _, field := range fields {
		if s, ok := item[field].(string); ok && s != "" {
			return s
		}
	}
	return ""
}

// splitSong splits "Artist - Title" on the first literal " - " separator.
// Anything that doesn't match this exact shape is rejected.
func splitSong(raw string) (artist, title string, ok bool) {
	idx := strings.Index(raw, " - ")
	if idx < 0 {
		return "", "", false
	}

	artist = strings.TrimSpace(raw[:idx])
	title = strings.TrimSpace(raw[idx+3:])
	if artist == "" || title == "" {
		return "", "", false
	}

	return artist, title, true
}

// cleanTitle removes the trailing "(2024)" year marker and any
// "(feat. …)" / "(ft. …)" parenthetical from the title.
func cleanTitle(title string) string {
	title = strings.TrimSpace(yearRE.ReplaceAllString(title, ""))
	title = strings.TrimSpace(featRE.ReplaceAllString(title, ""))
	return title
}
