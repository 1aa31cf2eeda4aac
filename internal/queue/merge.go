// -----------------------------------------------------------------------
// Conflict resolution - merges two divergent copies of the same element
// left behind by a crashed or duplicate writer. Used by FixConflicts and
// by BadgerStore's save retry loop, which must absorb concurrent or
// out-of-order status writes without ever regressing a status.
// -----------------------------------------------------------------------

package queue

import (
	"github.com/ternarybob/workqueue/internal/models"
)

// statusRank orders statuses along the partial order a merge must never
// regress. CancelRequested/Canceled rank above their siblings because a
// cancellation, once observed, must never be lost to a stale overwrite.
var statusRank = map[models.Status]int{
	models.StatusAvailable:       0,
	models.StatusNegotiating:     1,
	models.StatusAcquired:        2,
	models.StatusRunning:         3,
	models.StatusCancelRequested: 4,
	models.StatusDone:            5,
	models.StatusFailed:          5,
	models.StatusCanceled:        6,
}

func rankOf(s models.Status) int {
	if r, ok := statusRank[s]; ok {
		return r
	}
	return -1
}

// mergeStatus returns the higher-ranked of two statuses, so a merge never
// moves an element backward along its lifecycle.
func mergeStatus(a, b models.Status) models.Status {
	if rankOf(b) > rankOf(a) {
		return b
	}
	return a
}

func mergeFloat(a, b float64) float64 {
	if b > a {
		return b
	}
	return a
}

func mergeInt(a, b int) int {
	if b > a {
		return b
	}
	return a
}

// unionStrings merges two string slices, preserving a's order and
// appending any of b's entries not already present.
func unionStrings(a, b []string) []string {
	seen := make(map[string]bool, len(a))
	out := make([]string, 0, len(a)+len(b))
	for _, s := range a {
		if !seen[s] {
			seen[s] = true
			out = append(out, s)
		}
	}
	for _, s := range b {
		if !seen[s] {
			seen[s] = true
			out = append(out, s)
		}
	}
	return out
}

// MergeElements resolves two divergent copies of the same element id into
// one record: status and percent fields take the monotone maximum, file
// location sets union, and the pick keeps whichever of the two InsertTime
// values is earlier (the older write is definitionally the original).
// The result's Rev is one above the larger of the two inputs' Revs.
func MergeElements(a, b *models.Element) *models.Element {
	merged := *a
	merged.Status = mergeStatus(a.Status, b.Status)
	merged.PercentComplete = mergeFloat(a.PercentComplete, b.PercentComplete)
	merged.PercentSuccess = mergeFloat(a.PercentSuccess, b.PercentSuccess)
	merged.NumOfFilesAdded = mergeInt(a.NumOfFilesAdded, b.NumOfFilesAdded)
	merged.PossibleSite = unionStrings(a.PossibleSite, b.PossibleSite)
	merged.OpenForNewData = a.OpenForNewData || b.OpenForNewData
	if b.InsertTime.Before(a.InsertTime) {
		merged.InsertTime = b.InsertTime
	}
	if a.ChildQueueUrl == "" {
		merged.ChildQueueUrl = b.ChildQueueUrl
	}
	if a.WMBSUrl == "" {
		merged.WMBSUrl = b.WMBSUrl
	}
	if a.Rev >= b.Rev {
		merged.Rev = a.Rev + 1
	} else {
		merged.Rev = b.Rev + 1
	}
	return &merged
}

// MergeInboxElements applies the same monotone merge rule to a parent's
// inbox record. An InboxElement has no file-location fields; in addition
// to MergeElements' status and percent rules, this merge takes the maximum
// of the job/file/event/lumi totals and the union of the processed and
// rejected input ledgers.
func MergeInboxElements(a, b *models.InboxElement) *models.InboxElement {
	merged := *a
	merged.Status = mergeStatus(a.Status, b.Status)
	merged.PercentComplete = mergeFloat(a.PercentComplete, b.PercentComplete)
	merged.PercentSuccess = mergeFloat(a.PercentSuccess, b.PercentSuccess)
	merged.Jobs = mergeInt(a.Jobs, b.Jobs)
	merged.NumberOfFiles = mergeInt(a.NumberOfFiles, b.NumberOfFiles)
	merged.NumberOfEvents = mergeInt(a.NumberOfEvents, b.NumberOfEvents)
	merged.NumberOfLumis = mergeInt(a.NumberOfLumis, b.NumberOfLumis)
	merged.ProcessedInputs = unionStrings(a.ProcessedInputs, b.ProcessedInputs)
	merged.RejectedInputs = unionStrings(a.RejectedInputs, b.RejectedInputs)
	merged.OpenForNewData = a.OpenForNewData || b.OpenForNewData
	if b.InsertTime.Before(a.InsertTime) {
		merged.InsertTime = b.InsertTime
	}
	if a.Rev >= b.Rev {
		merged.Rev = a.Rev + 1
	} else {
		merged.Rev = b.Rev + 1
	}
	return &merged
}
