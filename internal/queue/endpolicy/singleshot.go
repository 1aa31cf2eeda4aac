// -----------------------------------------------------------------------
// SingleShot end policy - folds a set of child elements into a single
// aggregate status for their parent inbox element. Pure function: it
// records which inputs would change (Modified) but performs no writes.
// -----------------------------------------------------------------------

package endpolicy

import "github.com/ternarybob/workqueue/internal/models"

// Config carries the tunable parameters SingleShot reads from the spec.
type Config struct {
	// SuccessThreshold is the minimum job-weighted success fraction
	// required for the aggregate to resolve Done rather than Failed.
	SuccessThreshold float64
}

// Result is SingleShot's pure output: the aggregate status/percentages the
// caller should persist on the parent, plus which of the input elements
// this reconciliation pass actually changed.
type Result struct {
	Status          models.Status
	PercentComplete float64
	PercentSuccess  float64
	Modified        []*models.Element
}

// Reconcile implements the four-step SingleShot algorithm: a cancellation
// in progress always wins; otherwise the aggregate resolves once every
// element reaches an end state, weighted by job count; otherwise the
// aggregate is Running (or Negotiating if there are no elements yet).
// parents is the inbox element(s) this element set rolls up to - while any
// of them is still open for continuous-split new data, the aggregate never
// finalizes to Done/Failed on the strength of the currently materialized
// elements alone, since more are still expected.
func Reconcile(elements []*models.Element, parents []*models.InboxElement, cfg Config) Result {
	if len(elements) == 0 {
		return Result{Status: models.StatusNegotiating}
	}

	for _, e := range elements {
		if e.Status == models.StatusCancelRequested {
			return Result{Status: models.StatusCancelRequested, Modified: modifiedOf(elements)}
		}
	}

	allEnded := true
	var totalJobs, successJobs float64
	var weightedComplete, weightedSuccess float64
	for _, e := range elements {
		if !e.Status.IsTerminal() {
			allEnded = false
		}
		jobs := float64(e.Jobs)
		if jobs <= 0 {
			jobs = 1
		}
		totalJobs += jobs
		successJobs += e.PercentSuccess * jobs
		weightedComplete += e.PercentComplete * jobs
		weightedSuccess += e.PercentSuccess * jobs
	}

	percentComplete := 0.0
	percentSuccess := 0.0
	if totalJobs > 0 {
		percentComplete = weightedComplete / totalJobs
		percentSuccess = weightedSuccess / totalJobs
	}

	if allEnded && !anyOpenForNewData(parents) {
		success := 0.0
		if totalJobs > 0 {
			success = successJobs / totalJobs
		}
		status := models.StatusFailed
		if success >= cfg.SuccessThreshold {
			status = models.StatusDone
		}
		return Result{
			Status:          status,
			PercentComplete: percentComplete,
			PercentSuccess:  percentSuccess,
			Modified:        modifiedOf(elements),
		}
	}

	return Result{
		Status:          models.StatusRunning,
		PercentComplete: percentComplete,
		PercentSuccess:  percentSuccess,
	}
}

func anyOpenForNewData(parents []*models.InboxElement) bool {
	for _, p := range parents {
		if p.OpenForNewData {
			return true
		}
	}
	return false
}

// modifiedOf returns every non-terminal element a cancellation or
// finalization pass needs the engine to persist.
func modifiedOf(elements []*models.Element) []*models.Element {
	var out []*models.Element
	for _, e := range elements {
		if !e.Status.IsTerminal() {
			out = append(out, e)
		}
	}
	return out
}
