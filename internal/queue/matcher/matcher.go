// -----------------------------------------------------------------------
// Matcher - the priority/FIFO/greedy-site allocation algorithm that turns
// an offer of free slots into a concrete set of elements to acquire. The
// matcher is read-only: moving matched elements on (to Negotiating in
// PullWork, to Running in GetWork) is the engine's job once it has decided
// to commit to the match.
// -----------------------------------------------------------------------

package matcher

import (
	"context"
	"sort"

	"github.com/ternarybob/workqueue/internal/interfaces"
	"github.com/ternarybob/workqueue/internal/models"
)

// Offer describes the resources a matcher call has to allocate against.
type Offer struct {
	JobSlots         map[string]int           // site -> free slots
	SiteJobCounts    map[string]map[int]int   // site -> priority -> jobs already queued at that priority or higher
	ExcludeWorkflows map[string]bool
	NumElems         int // upper bound on elements to return; 0 means unbounded
}

// Result is the matcher's read-only output.
type Result struct {
	Matched        []*models.Element
	RemainingSlots map[string]int
}

// Match implements the five-step algorithm: fetch Available elements whose
// PossibleSite intersects the offer's sites, sort by (-Priority,
// InsertTime), then greedily place each one at the first site with room
// and no higher-priority starvation, alphabetically tie-broken.
func Match(ctx context.Context, store interfaces.BackendStore, offer Offer) (Result, error) {
	sites := siteNames(offer.JobSlots)
	candidates, err := store.AvailableWork(ctx, interfaces.AvailableWorkFilter{Sites: sites})
	if err != nil {
		return Result{}, err
	}

	filtered := candidates[:0]
	for _, e := range candidates {
		if offer.ExcludeWorkflows[e.RequestName] {
			continue
		}
		filtered = append(filtered, e)
	}
	candidates = filtered

	sort.SliceStable(candidates, func(i, j int) bool {
		if candidates[i].Priority != candidates[j].Priority {
			return candidates[i].Priority > candidates[j].Priority
		}
		return candidates[i].InsertTime.Before(candidates[j].InsertTime)
	})

	remaining := make(map[string]int, len(offer.JobSlots))
	for site, slots := range offer.JobSlots {
		remaining[site] = slots
	}

	var matched []*models.Element
	for _, e := range candidates {
		if offer.NumElems > 0 && len(matched) >= offer.NumElems {
			break
		}
		site, ok := pickSite(e, remaining, offer.SiteJobCounts, e.Priority)
		if !ok {
			continue
		}
		remaining[site] -= e.Jobs
		matched = append(matched, e)
	}

	return Result{Matched: matched, RemainingSlots: remaining}, nil
}

// pickSite finds the first site (in alphabetical order) from e's
// PossibleSite that still has free slots and is not starved by a
// higher-priority band.
// pickSite treats an empty PossibleSite as "runs anywhere" - the same
// wildcard rule AvailableWork uses to admit the element as a candidate in
// the first place - and considers every site with offered slots instead.
func pickSite(e *models.Element, remaining map[string]int, siteJobCounts map[string]map[int]int, priority int) (string, bool) {
	var candidates []string
	if len(e.PossibleSite) > 0 {
		candidates = append([]string(nil), e.PossibleSite...)
	} else {
		for site := range remaining {
			candidates = append(candidates, site)
		}
	}
	sort.Strings(candidates)
	for _, site := range candidates {
		if remaining[site] <= 0 {
			continue
		}
		if starved(siteJobCounts, site, priority) {
			continue
		}
		return site, true
	}
	return "", false
}

// starved reports whether a higher-priority band at site has already
// consumed the site's slots, per the site's reported job counts.
func starved(siteJobCounts map[string]map[int]int, site string, priority int) bool {
	counts, ok := siteJobCounts[site]
	if !ok {
		return false
	}
	for p, jobs := range counts {
		if p > priority && jobs > 0 {
			return true
		}
	}
	return false
}

func siteNames(jobSlots map[string]int) []string {
	out := make([]string, 0, len(jobSlots))
	for site := range jobSlots {
		out = append(out, site)
	}
	return out
}
