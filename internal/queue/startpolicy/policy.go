// -----------------------------------------------------------------------
// Start policies - strategy objects that turn a spec's task and its
// available input into concrete Elements.
// -----------------------------------------------------------------------

package startpolicy

import (
	"context"

	"github.com/ternarybob/workqueue/internal/interfaces"
	"github.com/ternarybob/workqueue/internal/models"
)

// Input bundles everything a policy needs to split one task: the task
// definition itself, the parent request's priority/team, the metadata and
// location adapters it may consult, and the inputs already claimed by a
// prior split so continuous mode never re-emits the same block twice.
type Input struct {
	Spec            *models.Spec
	Task            *models.Task
	Metadata        interfaces.MetadataAdapter
	Location        interfaces.LocationAdapter
	ProcessedInputs map[string]bool
	RejectedInputs  map[string]bool
	// FirstEventBase/FirstLumiBase seed MonteCarlo's contiguous ranges so a
	// continuous-split loop never reissues an event range already split.
	FirstEventBase int64
	FirstLumiBase  int64
}

// Policy is the strategy interface every start policy implements.
type Policy interface {
	// Split produces the elements for one pass over Input, plus the inputs
	// it looked at but filtered out (empty blocks, blocks with no viable
	// site after whitelist/blacklist filtering). An empty result with a nil
	// error means there was nothing new to split.
	Split(ctx context.Context, in Input) (elements []*models.Element, rejectedInputs []string, err error)

	// SupportsWorkAddition reports whether elements produced by this policy
	// can be added to after the initial split, the continuous-split loop's
	// gate for whether a request needs ongoing newDataAvailable checks.
	SupportsWorkAddition() bool

	// NewDataAvailable reports whether the metadata adapter has surfaced a
	// block or dataset not already accounted for in ProcessedInputs or
	// RejectedInputs.
	NewDataAvailable(ctx context.Context, in Input) (bool, error)
}

// Registry maps a spec's declared start-policy name to its implementation.
var Registry = map[models.StartPolicyName]Policy{
	models.StartPolicyBlock:         &BlockPolicy{},
	models.StartPolicyDataset:       &DatasetPolicy{},
	models.StartPolicyMonteCarlo:    &MonteCarloPolicy{},
	models.StartPolicyResubmitBlock: &ResubmitBlockPolicy{},
}

// For returns the policy implementation registered for name, or nil if
// name is not a known policy.
func For(name models.StartPolicyName) Policy {
	return Registry[name]
}
