// -----------------------------------------------------------------------
// Element state machine - the transition table of the lifecycle diagram,
// the cancel fast path, and the reset-to-Available special case.
// -----------------------------------------------------------------------

package queue

import "github.com/ternarybob/workqueue/internal/models"

// AllowedTransitions enumerates every status a given status may move to.
// An empty slice marks a terminal state. CancelRequested and Canceled are
// reachable from any non-terminal status, so they are added programmatically
// in init rather than repeated at every entry below.
// Available reaches Negotiating via the parent/child replication path
// (PullWork) and Running directly via a local agent pull (GetWork) - both
// leave an Available element, neither revisits it.
var AllowedTransitions = map[models.Status][]models.Status{
	models.StatusAvailable:   {models.StatusNegotiating, models.StatusRunning},
	models.StatusNegotiating: {models.StatusAcquired, models.StatusAvailable},
	models.StatusAcquired:    {models.StatusRunning, models.StatusAvailable},
	models.StatusRunning:     {models.StatusDone, models.StatusFailed, models.StatusAvailable},
	models.StatusDone:        {},
	models.StatusFailed:      {},
	models.StatusCanceled:    {},
}

func init() {
	// Cancellation and cooperative cancel requests can be raised against any
	// non-terminal element regardless of where it currently sits.
	for status, targets := range AllowedTransitions {
		if status.IsTerminal() {
			continue
		}
		AllowedTransitions[status] = append(targets, models.StatusCancelRequested, models.StatusCanceled)
	}
	AllowedTransitions[models.StatusCancelRequested] = []models.Status{models.StatusCanceled, models.StatusFailed, models.StatusDone}
}

// CanTransition reports whether moving an element from `from` to `to` is a
// legal step of the lifecycle diagram.
func CanTransition(from, to models.Status) bool {
	if from == to {
		return true
	}
	targets, ok := AllowedTransitions[from]
	if !ok {
		return false
	}
	for _, t := range targets {
		if t == to {
			return true
		}
	}
	return false
}

// Reset reverts a non-terminal element to Available, clearing the
// acquisition state a failed or abandoned agent left behind. Terminal
// elements are left untouched; callers should check Status.IsTerminal
// first if they need to distinguish a no-op from an error.
func Reset(e *models.Element) {
	if e.Status.IsTerminal() {
		return
	}
	e.Status = models.StatusAvailable
	e.ChildQueueUrl = ""
	e.WMBSUrl = ""
	e.SubscriptionId = 0
}

// CancelFastPath decides whether canceling an element can finalize
// immediately or must wait for a child queue to cooperate. An element with
// no child queue attached has nothing downstream to notify, so it can be
// marked Canceled directly; otherwise it is marked CancelRequested and the
// engine's cancellation sweep must later force it to Canceled once
// cancelGraceTime elapses without a child response.
func CancelFastPath(e *models.Element) models.Status {
	if e.Status.IsTerminal() {
		return e.Status
	}
	if e.ChildQueueUrl == "" {
		return models.StatusCanceled
	}
	return models.StatusCancelRequested
}

// ApplyCancel mutates e according to CancelFastPath and bumps its revision.
func ApplyCancel(e *models.Element) {
	target := CancelFastPath(e)
	if target == e.Status {
		return
	}
	e.Status = target
	e.Touch()
}
