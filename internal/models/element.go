// -----------------------------------------------------------------------
// Element - persisted unit of splittable work tracked by the queue
// -----------------------------------------------------------------------

package models

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Status is the lifecycle state of an Element or InboxElement. Transitions
// are enforced by the engine's state machine, not by this type.
type Status string

const (
	StatusAvailable       Status = "Available"
	StatusNegotiating     Status = "Negotiating"
	StatusAcquired        Status = "Acquired"
	StatusRunning         Status = "Running"
	StatusDone            Status = "Done"
	StatusFailed          Status = "Failed"
	StatusCancelRequested Status = "CancelRequested"
	StatusCanceled        Status = "Canceled"
)

func (s Status) IsValid() bool {
	switch s {
	case StatusAvailable, StatusNegotiating, StatusAcquired, StatusRunning,
		StatusDone, StatusFailed, StatusCancelRequested, StatusCanceled:
		return true
	}
	return false
}

func (s Status) String() string {
	return string(s)
}

// IsTerminal reports whether no further transition out of s is possible.
func (s Status) IsTerminal() bool {
	return s == StatusDone || s == StatusFailed || s == StatusCanceled
}

// Mask restricts an Element's inputs to a run/lumi/event range. A zero-value
// field means "unbounded" on that edge.
type Mask struct {
	FirstEvent int64 `json:"first_event" badgerhold:"-"`
	LastEvent  int64 `json:"last_event" badgerhold:"-"`
	FirstLumi  int64 `json:"first_lumi" badgerhold:"-"`
	LastLumi   int64 `json:"last_lumi" badgerhold:"-"`
	FirstRun   int64 `json:"first_run" badgerhold:"-"`
	LastRun    int64 `json:"last_run" badgerhold:"-"`
}

// Element is a unit of work produced by a start-policy split. It carries
// enough information for an agent to request and process the described
// inputs without consulting the originating request again.
type Element struct {
	Id  string `json:"id" badgerhold:"key"`
	Rev uint64 `json:"rev"` // optimistic-concurrency version, bumped on every save

	RequestName string `json:"request_name" badgerhold:"index"`
	TaskName    string `json:"task_name"`

	Status   Status `json:"status" badgerhold:"index"`
	Priority int    `json:"priority" badgerhold:"index"`
	Jobs     int    `json:"jobs"`

	StartPolicy StartPolicyName `json:"start_policy"`
	EndPolicy   EndPolicyName   `json:"end_policy"`
	TeamName    string          `json:"team_name" badgerhold:"index"`

	Inputs       []string `json:"inputs"` // block names, dataset names, or MC seed ranges
	PossibleSite []string `json:"possible_site" badgerhold:"index"`
	ParentFlag   bool     `json:"parent_processing"`
	Mask         Mask     `json:"mask"`

	NumberOfFiles  int `json:"number_of_files"`
	NumberOfEvents int `json:"number_of_events"`
	NumberOfLumis  int `json:"number_of_lumis"`

	PercentComplete float64 `json:"percent_complete"`
	PercentSuccess  float64 `json:"percent_success"`

	ParentQueueId  string `json:"parent_queue_id"`
	ParentQueueUrl string `json:"parent_queue_url"`
	ChildQueueUrl  string `json:"child_queue_url" badgerhold:"index"`
	WMBSUrl        string `json:"wmbs_url"`
	SubscriptionId int64  `json:"subscription_id"`

	OpenForNewData        bool      `json:"open_for_new_data" badgerhold:"index"`
	TimestampFoundNewData time.Time `json:"timestamp_found_new_data"`
	NumOfFilesAdded       int       `json:"num_of_files_added"`

	InsertTime time.Time `json:"insert_time"`
	UpdateTime time.Time `json:"update_time"`
}

// NewElement constructs a freshly split Element in the Available state.
func NewElement(requestName, taskName string, policy StartPolicyName, priority int) *Element {
	now := time.Now().UTC()
	return &Element{
		Id:          uuid.New().String(),
		RequestName: requestName,
		TaskName:    taskName,
		Status:      StatusAvailable,
		Priority:    priority,
		StartPolicy: policy,
		InsertTime:  now,
		UpdateTime:  now,
	}
}

// Touch bumps the revision counter and update timestamp. Callers must hold
// whatever lock the backend store requires before persisting.
func (e *Element) Touch() {
	e.Rev++
	e.UpdateTime = time.Now().UTC()
}

func (e *Element) Validate() error {
	if e.Id == "" {
		return fmt.Errorf("element id is required")
	}
	if e.RequestName == "" {
		return fmt.Errorf("element %s: request name is required", e.Id)
	}
	if !e.Status.IsValid() {
		return fmt.Errorf("element %s: invalid status %q", e.Id, e.Status)
	}
	if !e.StartPolicy.IsValid() {
		return fmt.Errorf("element %s: invalid start policy %q", e.Id, e.StartPolicy)
	}
	return nil
}

// Clone returns a deep copy safe for independent mutation, used when
// replicating an element across the parent/child boundary.
func (e *Element) Clone() *Element {
	clone := *e
	clone.Inputs = append([]string(nil), e.Inputs...)
	clone.PossibleSite = append([]string(nil), e.PossibleSite...)
	return &clone
}

// InboxElement is the parent-side record of a piece of work handed down to
// a child queue. Its status is derived from the child's reported Elements
// by the end policy, never set directly by a client.
type InboxElement struct {
	Id  string `json:"id" badgerhold:"key"`
	Rev uint64 `json:"rev"`

	RequestName string `json:"request_name" badgerhold:"index"`
	TaskName    string `json:"task_name"`

	Status   Status `json:"status" badgerhold:"index"`
	Priority int    `json:"priority"`

	StartPolicy StartPolicyName `json:"start_policy"`
	EndPolicy   EndPolicyName   `json:"end_policy"`
	TeamName    string          `json:"team_name" badgerhold:"index"`

	Inputs     []string `json:"inputs"`
	ParentFlag bool     `json:"parent_processing"`
	Mask       Mask     `json:"mask"`

	Jobs           int `json:"jobs"`
	NumberOfFiles  int `json:"number_of_files"`
	NumberOfEvents int `json:"number_of_events"`
	NumberOfLumis  int `json:"number_of_lumis"`

	PercentComplete  float64 `json:"percent_complete"`
	PercentSuccess   float64 `json:"percent_success"`
	SuccessThreshold float64 `json:"success_threshold"`

	ChildQueueUrl string `json:"child_queue_url" badgerhold:"index"`

	// ProcessedInputs/RejectedInputs are the continuous-split ledger: every
	// input (block or dataset name) a start policy has already turned into
	// an Element, or has permanently passed over, so re-splitting the same
	// task never produces a duplicate or reconsiders a dead input.
	ProcessedInputs []string `json:"processed_inputs"`
	RejectedInputs  []string `json:"rejected_inputs"`

	OpenForNewData        bool      `json:"open_for_new_data" badgerhold:"index"`
	TimestampFoundNewData time.Time `json:"timestamp_found_new_data"`

	InsertTime time.Time `json:"insert_time"`
	UpdateTime time.Time `json:"update_time"`
}

// ProcessedInputSet returns ProcessedInputs as a lookup set for a start
// policy's Input.ProcessedInputs field.
func (e *InboxElement) ProcessedInputSet() map[string]bool {
	return toSet(e.ProcessedInputs)
}

// RejectedInputSet returns RejectedInputs as a lookup set for a start
// policy's Input.RejectedInputs field.
func (e *InboxElement) RejectedInputSet() map[string]bool {
	return toSet(e.RejectedInputs)
}

func toSet(values []string) map[string]bool {
	set := make(map[string]bool, len(values))
	for _, v := range values {
		set[v] = true
	}
	return set
}

// AddProcessedInputs appends any inputs not already recorded as processed.
func (e *InboxElement) AddProcessedInputs(inputs ...string) {
	seen := e.ProcessedInputSet()
	for _, in := range inputs {
		if seen[in] {
			continue
		}
		seen[in] = true
		e.ProcessedInputs = append(e.ProcessedInputs, in)
	}
}

// AddRejectedInputs appends any inputs not already recorded as rejected.
func (e *InboxElement) AddRejectedInputs(inputs ...string) {
	seen := e.RejectedInputSet()
	for _, in := range inputs {
		if seen[in] {
			continue
		}
		seen[in] = true
		e.RejectedInputs = append(e.RejectedInputs, in)
	}
}

// EffectiveSuccessThreshold returns the threshold to reconcile against,
// defaulting to 0.9 when the owning spec never set one.
func (e *InboxElement) EffectiveSuccessThreshold() float64 {
	if e.SuccessThreshold <= 0 {
		return 0.9
	}
	return e.SuccessThreshold
}

func NewInboxElement(requestName, taskName string, policy StartPolicyName, priority int) *InboxElement {
	now := time.Now().UTC()
	return &InboxElement{
		Id:          uuid.New().String(),
		RequestName: requestName,
		TaskName:    taskName,
		Status:      StatusAvailable,
		Priority:    priority,
		StartPolicy: policy,
		InsertTime:  now,
		UpdateTime:  now,
	}
}

func (e *InboxElement) Touch() {
	e.Rev++
	e.UpdateTime = time.Now().UTC()
}

func (e *InboxElement) Validate() error {
	if e.Id == "" {
		return fmt.Errorf("inbox element id is required")
	}
	if e.RequestName == "" {
		return fmt.Errorf("inbox element %s: request name is required", e.Id)
	}
	if !e.Status.IsValid() {
		return fmt.Errorf("inbox element %s: invalid status %q", e.Id, e.Status)
	}
	return nil
}
