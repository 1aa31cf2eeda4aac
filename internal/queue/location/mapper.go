// -----------------------------------------------------------------------
// Location mapper (C5) - periodically refreshes an element's PossibleSite
// field from the location adapter and site catalog.
// -----------------------------------------------------------------------

package location

import (
	"context"
	"time"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/workqueue/internal/interfaces"
	"github.com/ternarybob/workqueue/internal/models"
)

// Policy bundles release-gating rules for a refresh pass. Refresh does not
// read these fields: it keeps every replica site the site catalog knows,
// whether or not the replica is complete or subscribed.
type Policy struct {
	// ReleaseIncompleteBlocks allows an element to be released to sites that
	// hold only a partial replica of its input.
	ReleaseIncompleteBlocks bool
	// ReleaseRequireSubscribed requires the replica to be an active PhEDEx
	// subscription rather than an incidental complete copy.
	ReleaseRequireSubscribed bool
}

// Mapper refreshes element locations on a schedule.
type Mapper struct {
	Store           interfaces.BackendStore
	Location        interfaces.LocationAdapter
	SiteCatalog     interfaces.SiteCatalog
	Policy          Policy
	RefreshInterval time.Duration
	FullInterval    time.Duration
	Logger          arbor.ILogger
}

// Tracker records, per element, when its PossibleSite was last
// recomputed; kept in-process since a restart re-running every refresh
// once is harmless (the mapper is explicitly idempotent).
type Tracker struct {
	last map[string]time.Time
}

func NewTracker() *Tracker {
	return &Tracker{last: make(map[string]time.Time)}
}

func (t *Tracker) due(elementID string, interval time.Duration) bool {
	last, ok := t.last[elementID]
	return !ok || time.Since(last) >= interval
}

func (t *Tracker) mark(elementID string) {
	t.last[elementID] = time.Now()
}

// Refresh walks every Available element with a non-empty Inputs set that
// is due for refresh (RefreshInterval since its last refresh) and updates
// its PossibleSite. full refreshes every such element regardless of its
// last-refresh timestamp.
func (m *Mapper) Refresh(ctx context.Context, tracker *Tracker, full bool) error {
	if tracker == nil {
		tracker = NewTracker()
	}

	elements, err := m.elementsWithInputs(ctx)
	if err != nil {
		return err
	}

	validSites, err := m.SiteCatalog.FreeSlots(ctx)
	if err != nil {
		return err
	}

	interval := m.RefreshInterval
	if full {
		interval = m.FullInterval
	}

	for _, e := range elements {
		if !full && !tracker.due(e.Id, interval) {
			continue
		}

		replicas, err := m.Location.GetReplicaInfoForBlocks(ctx, e.Inputs)
		if err != nil {
			m.Logger.Warn().Err(err).Str("element_id", e.Id).Msg("location refresh failed for element")
			continue
		}

		siteSet := map[string]bool{}
		for _, r := range replicas {
			for _, s := range r.Sites {
				if _, ok := validSites[s]; ok {
					siteSet[s] = true
				}
			}
		}
		sites := make([]string, 0, len(siteSet))
		for s := range siteSet {
			sites = append(sites, s)
		}

		e.PossibleSite = sites
		if err := m.Store.SaveElement(ctx, e); err != nil {
			m.Logger.Warn().Err(err).Str("element_id", e.Id).Msg("failed to persist refreshed site list")
			continue
		}
		tracker.mark(e.Id)
	}
	return nil
}

func (m *Mapper) elementsWithInputs(ctx context.Context) ([]*models.Element, error) {
	all, err := m.Store.AvailableWork(ctx, interfaces.AvailableWorkFilter{})
	if err != nil {
		return nil, err
	}
	var out []*models.Element
	for _, e := range all {
		if len(e.Inputs) > 0 {
			out = append(out, e)
		}
	}
	return out, nil
}
