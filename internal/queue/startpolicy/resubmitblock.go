package startpolicy

import (
	"context"

	"github.com/ternarybob/workqueue/internal/common"
	"github.com/ternarybob/workqueue/internal/models"
)

// ResubmitBlockPolicy consumes an ACDC (recovery) collection/fileset and
// emits one element per (offset, count) file chunk, grounded on the same
// input dataset used as the recovery collection's identifier.
type ResubmitBlockPolicy struct{}

func (p *ResubmitBlockPolicy) Split(ctx context.Context, in Input) ([]*models.Element, []string, error) {
	block, err := in.Metadata.GetFileBlock(ctx, in.Task.InputDataset)
	if err != nil {
		return nil, nil, err
	}
	filesPerJob := in.Task.Splitting.FilesPerJob
	if filesPerJob <= 0 {
		filesPerJob = 1
	}

	chunks := chunkFiles(block.NumberFiles, filesPerJob)
	elements := make([]*models.Element, 0, len(chunks))
	for _, c := range chunks {
		e := models.NewElement(in.Spec.RequestName, in.Task.Name, models.StartPolicyResubmitBlock, in.Spec.Priority)
		e.Id = common.NewElementID()
		e.TeamName = in.Spec.TeamName
		e.Inputs = []string{block.Name}
		e.ParentFlag = in.Task.ParentProcessingFlag()
		e.NumberOfFiles = c.count
		e.Mask.FirstRun = int64(c.offset)
		e.Mask.LastRun = int64(c.offset + c.count - 1)
		e.Jobs = 1
		elements = append(elements, e)
	}
	return elements, nil, nil
}

// SupportsWorkAddition is false: a resubmission's recovery collection is
// fixed at submission time and never grows.
func (p *ResubmitBlockPolicy) SupportsWorkAddition() bool { return false }

func (p *ResubmitBlockPolicy) NewDataAvailable(ctx context.Context, in Input) (bool, error) {
	return false, nil
}
