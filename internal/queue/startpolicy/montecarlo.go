package startpolicy

import (
	"context"

	"github.com/ternarybob/workqueue/internal/common"
	"github.com/ternarybob/workqueue/internal/models"
)

// MonteCarloPolicy needs no input data: it emits ceil(total_events /
// events_per_job) elements carrying contiguous, disjoint event-range
// masks seeded from the inbox element's FirstEvent/FirstLumi bases.
type MonteCarloPolicy struct{}

func (p *MonteCarloPolicy) Split(ctx context.Context, in Input) ([]*models.Element, []string, error) {
	eventsPerJob := in.Task.Splitting.EventsPerJob
	if eventsPerJob <= 0 {
		eventsPerJob = 1
	}
	totalEvents := in.Task.TotalEvents
	if totalEvents <= 0 {
		return nil, nil, nil
	}

	ranges := chunkRange(in.FirstEventBase, totalEvents, eventsPerJob)
	elements := make([]*models.Element, 0, len(ranges))
	for _, r := range ranges {
		e := models.NewElement(in.Spec.RequestName, in.Task.Name, models.StartPolicyMonteCarlo, in.Spec.Priority)
		e.Id = common.NewElementID()
		e.TeamName = in.Spec.TeamName
		e.Mask.FirstEvent = r.first
		e.Mask.LastEvent = r.last
		e.Mask.FirstLumi = in.FirstLumiBase + (r.first - in.FirstEventBase - 1)
		e.Mask.LastLumi = in.FirstLumiBase + (r.last - in.FirstEventBase - 1)
		e.ParentFlag = in.Task.ParentProcessingFlag()
		e.NumberOfEvents = int(r.last - r.first + 1)
		e.Jobs = 1
		elements = append(elements, e)
	}
	return elements, nil, nil
}

// SupportsWorkAddition is false: a MonteCarlo request's total event count
// is fixed at injection time, so it is never eligible for the
// continuous-split loop.
func (p *MonteCarloPolicy) SupportsWorkAddition() bool { return false }

func (p *MonteCarloPolicy) NewDataAvailable(ctx context.Context, in Input) (bool, error) {
	return false, nil
}
