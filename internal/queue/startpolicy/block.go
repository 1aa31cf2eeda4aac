package startpolicy

import (
	"context"

	"github.com/ternarybob/workqueue/internal/common"
	"github.com/ternarybob/workqueue/internal/models"
)

// BlockPolicy enumerates closed blocks of a task's input dataset and emits
// one element per block not already present in ProcessedInputs.
type BlockPolicy struct{}

func (p *BlockPolicy) Split(ctx context.Context, in Input) ([]*models.Element, []string, error) {
	blocks, err := in.Metadata.ListFileBlocks(ctx, in.Task.InputDataset)
	if err != nil {
		return nil, nil, err
	}

	var elements []*models.Element
	var rejected []string
	for _, block := range blocks {
		if block.IsOpen {
			continue
		}
		if in.ProcessedInputs[block.Name] || in.RejectedInputs[block.Name] {
			continue
		}
		if block.NumberFiles == 0 {
			rejected = append(rejected, block.Name)
			continue
		}

		sites, err := in.Location.GetReplicaInfoForBlocks(ctx, []string{block.Name})
		if err != nil {
			return nil, nil, err
		}
		var siteNames []string
		for _, s := range sites {
			siteNames = append(siteNames, s.Sites...)
		}
		siteNames = filterSites(siteNames, in.Task.Splitting.SiteWhitelist, in.Task.Splitting.SiteBlacklist)
		if len(siteNames) == 0 {
			rejected = append(rejected, block.Name)
			continue
		}

		e := models.NewElement(in.Spec.RequestName, in.Task.Name, models.StartPolicyBlock, in.Spec.Priority)
		e.Id = common.NewElementID()
		e.TeamName = in.Spec.TeamName
		e.Inputs = []string{block.Name}
		e.PossibleSite = siteNames
		e.ParentFlag = in.Task.ParentProcessingFlag()
		e.NumberOfFiles = block.NumberFiles
		e.NumberOfEvents = block.NumberEvents
		e.NumberOfLumis = block.NumberLumis
		e.Jobs = jobsForFiles(block.NumberFiles, in.Task.Splitting.FilesPerJob)
		elements = append(elements, e)
	}
	return elements, rejected, nil
}

func (p *BlockPolicy) SupportsWorkAddition() bool { return true }

func (p *BlockPolicy) NewDataAvailable(ctx context.Context, in Input) (bool, error) {
	blocks, err := in.Metadata.ListFileBlocks(ctx, in.Task.InputDataset)
	if err != nil {
		return false, err
	}
	for _, block := range blocks {
		if block.IsOpen {
			continue
		}
		if !in.ProcessedInputs[block.Name] && !in.RejectedInputs[block.Name] {
			return true, nil
		}
	}
	return false, nil
}

// jobsForFiles estimates job count from a files-per-job splitting
// parameter, defaulting to one job per file when unset.
func jobsForFiles(numberFiles, filesPerJob int) int {
	if filesPerJob <= 0 {
		filesPerJob = 1
	}
	return int(ceilDiv(int64(numberFiles), int64(filesPerJob)))
}
