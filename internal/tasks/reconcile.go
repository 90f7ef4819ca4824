package tasks

import (
	"context"
	"sort"
	"time"

	"github.com/charmbracelet/log"
	"github.com/opuslt/opussync/internal/services"
	"github.com/opuslt/opussync/internal/shared"
)

// batchSize caps the number of entries per playlist mutation request.
const batchSize = 100

// RetentionPolicy selects which playlist slots are eligible for removal.
type RetentionPolicy interface {
	eligible(now time.Time, slots []services.PlaylistItem) []services.PlaylistItem
}

// MaxAge marks every slot added before now minus the duration.
type MaxAge time.Duration

func (d MaxAge) eligible(now time.Time, slots []services.PlaylistItem) []services.PlaylistItem {
	cutoff := now.Add(-time.Duration(d))
	var out []services.PlaylistItem
	for _, slot := range slots {
		if slot.AddedAt.Before(cutoff) {
			out = append(out, slot)
		}
	}
	return out
}

// MaxCount keeps the newest n slots by added-at and marks the rest.
type MaxCount int

func (n MaxCount) eligible(now time.Time, slots []services.PlaylistItem) []services.PlaylistItem {
	if len(slots) <= int(n) {
		return nil
	}

	sorted := make([]services.PlaylistItem, len(slots))
	copy(sorted, slots)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].AddedAt.Before(sorted[j].AddedAt)
	})

	return sorted[:len(sorted)-int(n)]
}

// Reconciler maintains one managed playlist: snapshot, removal under a
// retention policy, then idempotent diff-based additions.
type Reconciler struct {
	catalog services.Catalog
	logger  *log.Logger

	// Now is the reference point for age-based retention. Overridable in tests.
	Now func() time.Time
}

// NewReconciler creates a Reconciler over the given catalog.
func NewReconciler(catalog services.Catalog, logger *log.Logger) *Reconciler {
	if logger == nil {
		logger = shared.NewLogger(nil)
	}
	return &Reconciler{catalog: catalog, logger: logger, Now: time.Now}
}

// Reconcile brings one playlist in line with the retention policy and
// the URIs produced by this run. Returns the number of slots removed
// and tracks added.
//
// The snapshot is re-read after removals because positions shift; when
// nothing was removed the pre-removal snapshot is reused to save a
// remote read. Additions are suppressed by exact URI membership and
// keep the resolution order.
func (r *Reconciler) Reconcile(ctx context.Context, playlistID string, policy RetentionPolicy, uris []string) (added, removed int, err error) {
	snapshot, err := r.catalog.PlaylistItems(ctx, playlistID)
	if err != nil {
		return 0, 0, err
	}

	removed, err = r.remove(ctx, playlistID, policy.eligible(r.Now(), snapshot))
	if err != nil {
		return 0, removed, err
	}

	if removed > 0 {
		if snapshot, err = r.catalog.PlaylistItems(ctx, playlistID); err != nil {
			return 0, removed, err
		}
	}

	current := make(map[string]struct{}, len(snapshot))
	for _, slot := range snapshot {
		current[slot.URI] = struct{}{}
	}

	var toAdd []string
	for _, uri := range uris {
		if _, present := current[uri]; !present {
			toAdd = append(toAdd, uri)
		}
	}

	for start := 0; start < len(toAdd); start += batchSize {
		end := min(start+batchSize, len(toAdd))
		if err := r.catalog.AppendItems(ctx, playlistID, toAdd[start:end]); err != nil {
			return added, removed, err
		}
		added += end - start
	}

	return added, removed, nil
}

// remove issues removal-by-occurrence requests for the eligible slots.
// Slots are grouped by URI so one request entry can carry every doomed
// position of a track; zero eligible slots issues no request.
func (r *Reconciler) remove(ctx context.Context, playlistID string, eligible []services.PlaylistItem) (int, error) {
	if len(eligible) == 0 {
		return 0, nil
	}

	byURI := make(map[string]*services.Occurrence)
	var occurrences []*services.Occurrence
	for _, slot := range eligible {
		occ, ok := byURI[slot.URI]
		if !ok {
			occ = &services.Occurrence{URI: slot.URI}
			byURI[slot.URI] = occ
			occurrences = append(occurrences, occ)
		}
		occ.Positions = append(occ.Positions, slot.Position)
	}

	removed := 0
	for start := 0; start < len(occurrences); start += batchSize {
		end := min(start+batchSize, len(occurrences))

		batch := make([]services.Occurrence, 0, end-start)
		count := 0
		for _, occ := range occurrences[start:end] {
			batch = append(batch, *occ)
			count += len(occ.Positions)
		}

		if err := r.catalog.RemoveOccurrences(ctx, playlistID, batch); err != nil {
			return removed, err
		}
		removed += count
	}

	return removed, nil
}
