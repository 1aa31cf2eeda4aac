// -----------------------------------------------------------------------
// Spec - workflow specification document consumed by a start policy
// -----------------------------------------------------------------------

package models

import (
	"github.com/go-playground/validator/v10"
)

var specValidator = validator.New()

// RequestType classifies the top-level shape of a spec document, mirroring
// the distinction an upstream request manager makes between a processing
// chain and a from-scratch production request.
type RequestType string

const (
	RequestTypeProcessing RequestType = "Processing"
	RequestTypeProduction RequestType = "Production"
	RequestTypeResubmit   RequestType = "Resubmission"
)

// SplittingArgs carries the tunable parameters a start policy reads off a
// task: block/file/lumi/event granularity and any site whitelist/blacklist.
type SplittingArgs struct {
	Algorithm      string   `yaml:"algorithm"`
	FilesPerJob    int      `yaml:"files_per_job,omitempty"`
	EventsPerJob   int64    `yaml:"events_per_job,omitempty"`
	LumisPerJob    int      `yaml:"lumis_per_job,omitempty"`
	SiteWhitelist  []string `yaml:"site_whitelist,omitempty"`
	SiteBlacklist  []string `yaml:"site_blacklist,omitempty"`
	RunWhitelist   []int64  `yaml:"run_whitelist,omitempty"`
	RunBlacklist   []int64  `yaml:"run_blacklist,omitempty"`
}

// Task is one node of a spec's task tree: a named processing step with its
// own splitting arguments and, for production requests, its own seeded
// event generation parameters.
type Task struct {
	Name              string        `yaml:"name" validate:"required"`
	PathName          string        `yaml:"path_name"`
	InputDataset      string        `yaml:"input_dataset,omitempty"`
	Splitting         SplittingArgs `yaml:"splitting"`
	ParentProcessing  bool          `yaml:"parent_processing_flag"`
	TotalEvents       int64         `yaml:"total_events,omitempty"`
	FilterEfficiency  float64       `yaml:"filter_efficiency,omitempty"`
	Children          []*Task       `yaml:"children,omitempty"`
}

// EffectiveFilterEfficiency returns the task's configured filter efficiency,
// defaulting to 1.0 (no filtering) when the spec leaves it unset.
func (t *Task) EffectiveFilterEfficiency() float64 {
	if t.FilterEfficiency <= 0 {
		return 1.0
	}
	return t.FilterEfficiency
}

// Spec is the read-only document a start policy consults to split a
// request's inbox element into concrete Elements. It is loaded by
// internal/specstore and never mutated by the queue.
type Spec struct {
	RequestName string          `yaml:"request_name" validate:"required"`
	RequestType RequestType     `yaml:"request_type"`
	StartPolicy StartPolicyName `yaml:"start_policy" validate:"required,oneof=Block Dataset MonteCarlo ResubmitBlock"`
	EndPolicy   EndPolicyName   `yaml:"end_policy" validate:"required,oneof=SingleShot"`
	Priority    int             `yaml:"priority"`
	TeamName    string          `yaml:"team_name"`
	Tasks       []*Task         `yaml:"tasks" validate:"required,min=1,dive"`

	// SuccessThreshold is the job-weighted success fraction the end policy
	// requires to resolve a request Done rather than Failed.
	SuccessThreshold float64 `yaml:"success_threshold,omitempty" validate:"omitempty,gte=0,lte=1"`
}

func (s *Spec) Name() string {
	return s.RequestName
}

// EffectiveSuccessThreshold returns the spec's configured success
// threshold, defaulting to 0.9 when left unset.
func (s *Spec) EffectiveSuccessThreshold() float64 {
	if s.SuccessThreshold <= 0 {
		return 0.9
	}
	return s.SuccessThreshold
}

// TaskIterator walks the task tree depth-first, yielding every task
// including nested children. Grounded on the source spec's flattened
// taskIterator() generator.
func (s *Spec) TaskIterator() []*Task {
	var out []*Task
	var walk func(tasks []*Task)
	walk = func(tasks []*Task) {
		for _, t := range tasks {
			out = append(out, t)
			walk(t.Children)
		}
	}
	walk(s.Tasks)
	return out
}

func (s *Spec) GetTopLevelTask() *Task {
	if len(s.Tasks) == 0 {
		return nil
	}
	return s.Tasks[0]
}

// GetTask returns the named task anywhere in the tree, or nil.
func (s *Spec) GetTask(name string) *Task {
	for _, t := range s.TaskIterator() {
		if t.Name == name {
			return t
		}
	}
	return nil
}

func (t *Task) GetPathName() string {
	if t.PathName != "" {
		return t.PathName
	}
	return t.Name
}

func (t *Task) ParentProcessingFlag() bool {
	return t.ParentProcessing
}

// GetStep returns the named child task, or nil if no such step exists.
func (t *Task) GetStep(name string) *Task {
	for _, c := range t.Children {
		if c.Name == name {
			return c
		}
	}
	return nil
}

// CoerceDownstreamSplitting forces every non-first task that declares
// EventBased splitting onto WMBSMergeBySize instead. Only the first task of
// a spec may legitimately split on raw event counts; everything downstream
// consumes merged output and must split on file/size boundaries.
//
// Decision (Open Question 1): only the spec's first top-level task is
// exempt; every other task, the first task's own descendants included, is
// coerced, matching the upstream hint that only the lead task produces
// unmerged output.
func (s *Spec) CoerceDownstreamSplitting() {
	if len(s.Tasks) == 0 {
		return
	}
	first := s.Tasks[0]
	for _, t := range s.TaskIterator() {
		if t == first {
			continue
		}
		if t.Splitting.Algorithm == "EventBased" {
			t.Splitting.Algorithm = "WMBSMergeBySize"
		}
	}
}

// Validate checks the spec's struct tags with go-playground/validator,
// rejecting a missing request name, an unknown start/end policy, or an
// empty task tree before a start policy ever sees the document.
func (s *Spec) Validate() error {
	return specValidator.Struct(s)
}
