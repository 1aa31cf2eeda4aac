// -----------------------------------------------------------------------
// Adapter interfaces - boundaries to the external systems a queue element
// needs information from or actions performed against. Every adapter has
// a mock-mode implementation so the engine can run without any of these
// systems actually reachable.
// -----------------------------------------------------------------------

package interfaces

import (
	"context"
	"time"
)

// FileBlock describes a DBS file block: its name, parent dataset, the
// run/lumi/event ranges of the files it contains, and whether DBS still
// considers it open for new files.
type FileBlock struct {
	Name         string
	Dataset      string
	NumberFiles  int
	NumberEvents int
	NumberLumis  int
	IsOpen       bool     // true while DBS may still add files to this block
	Parents      []string // parent block names, populated only by GetFileBlockWithParents
}

// MetadataAdapter is the boundary to the dataset-bookkeeping system (DBS in
// the reference implementation). Start policies use it to discover the
// blocks that make up a dataset.
type MetadataAdapter interface {
	// ListFileBlocks returns every open and closed block belonging to
	// dataset; callers that only want stable input (Block policy) filter on
	// IsOpen themselves.
	ListFileBlocks(ctx context.Context, dataset string) ([]FileBlock, error)

	// GetFileBlock returns a single named block.
	GetFileBlock(ctx context.Context, blockName string) (FileBlock, error)

	// GetFileBlockWithParents returns a block together with the full parentage
	// chain needed when a task processes a dataset with ParentProcessing set.
	GetFileBlockWithParents(ctx context.Context, blockName string) (FileBlock, error)
}

// SiteReplicas describes where the files of a block currently have a
// complete, subscribed replica.
type SiteReplicas struct {
	BlockName string
	Sites     []string
}

// LocationAdapter is the boundary to the data-placement system (PhEDEx in
// the reference implementation). The location mapper polls it to keep
// Element.PossibleSite current.
type LocationAdapter interface {
	// GetReplicaInfoForBlocks returns the current site list for each of the
	// given blocks. Blocks with no complete replica anywhere are omitted.
	GetReplicaInfoForBlocks(ctx context.Context, blockNames []string) ([]SiteReplicas, error)

	// CreateSubscriptionAndAddFiles requests that dataset be replicated to
	// site. No start policy or engine path calls it.
	CreateSubscriptionAndAddFiles(ctx context.Context, dataset, site string) error
}

// SiteCatalog is the boundary to the site-resource information system.
// PullWork consults it for the slot counts it offers the matcher when no
// resources are given, and the location mapper uses its sites as the set
// of valid sites.
type SiteCatalog interface {
	// FreeSlots returns the currently unused job slots for every site known
	// to the catalog, keyed by site name.
	FreeSlots(ctx context.Context) (map[string]int, error)
}

// JobSummary reports a coarse job-level rollup for a workflow's tasks, used
// by the execution-substrate adapter and fed into the end policy.
type JobSummary struct {
	TaskName string
	Running  int
	Succeeded int
	Failed   int
}

// SubstrateAdapter is the boundary to the execution substrate the child
// queue ultimately hands jobs to (WMBS in the reference implementation).
type SubstrateAdapter interface {
	// CreateSubscription registers taskName's inputs with the substrate,
	// returning the subscription id it assigned and how many files it
	// actually staged for injection.
	CreateSubscription(ctx context.Context, requestName, taskName string, inputs []string) (subscriptionID int64, filesAdded int, err error)

	// WMBSSubscriptionStatus reports per-task job counts for subscriptionId.
	WMBSSubscriptionStatus(ctx context.Context, subscriptionID int64) ([]JobSummary, error)

	// KillWorkflow requests that every in-flight job belonging to
	// requestName be terminated, used on the cancellation fast path.
	KillWorkflow(ctx context.Context, requestName string) error
}

// RequestStats summarizes a workflow's end-to-end progress, reported
// upward to the request-manager on each monitor cycle.
type RequestStats struct {
	RequestName     string
	PercentComplete float64
	PercentSuccess  float64
	Status          string
	UpdateTime      time.Time
}

// RequestManagerAdapter is the boundary to the system of record for
// workflow lifecycle and global status (ReqMgr in the reference
// implementation).
type RequestManagerAdapter interface {
	// UpdateRequestStats pushes a status rollup for one or more requests.
	UpdateRequestStats(ctx context.Context, stats []RequestStats) error

	// GetRequestByNames returns the names the system of record still knows,
	// used by PerformQueueCleanupActions to find terminal requests it has
	// dropped.
	GetRequestByNames(ctx context.Context, names []string) ([]string, error)
}
