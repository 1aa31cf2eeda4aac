package startpolicy

import (
	"context"

	"github.com/ternarybob/workqueue/internal/common"
	"github.com/ternarybob/workqueue/internal/models"
)

// DatasetPolicy emits one element per input dataset, its PossibleSite the
// union of every block's replica set. Block-level file lists are left to
// be materialized at injection time rather than at split time.
type DatasetPolicy struct{}

func (p *DatasetPolicy) Split(ctx context.Context, in Input) ([]*models.Element, []string, error) {
	if in.ProcessedInputs[in.Task.InputDataset] || in.RejectedInputs[in.Task.InputDataset] {
		return nil, nil, nil
	}

	blocks, err := in.Metadata.ListFileBlocks(ctx, in.Task.InputDataset)
	if err != nil {
		return nil, nil, err
	}
	if len(blocks) == 0 {
		return nil, nil, nil
	}

	blockNames := make([]string, 0, len(blocks))
	var totalFiles, totalEvents, totalLumis int
	for _, b := range blocks {
		if b.IsOpen {
			continue
		}
		blockNames = append(blockNames, b.Name)
		totalFiles += b.NumberFiles
		totalEvents += b.NumberEvents
		totalLumis += b.NumberLumis
	}
	if totalFiles == 0 {
		return nil, []string{in.Task.InputDataset}, nil
	}

	replicas, err := in.Location.GetReplicaInfoForBlocks(ctx, blockNames)
	if err != nil {
		return nil, nil, err
	}
	siteSet := map[string]bool{}
	for _, r := range replicas {
		for _, s := range r.Sites {
			siteSet[s] = true
		}
	}
	var sites []string
	for s := range siteSet {
		sites = append(sites, s)
	}
	sites = filterSites(sites, in.Task.Splitting.SiteWhitelist, in.Task.Splitting.SiteBlacklist)
	if len(sites) == 0 {
		return nil, []string{in.Task.InputDataset}, nil
	}

	e := models.NewElement(in.Spec.RequestName, in.Task.Name, models.StartPolicyDataset, in.Spec.Priority)
	e.Id = common.NewElementID()
	e.TeamName = in.Spec.TeamName
	e.Inputs = []string{in.Task.InputDataset}
	e.PossibleSite = sites
	e.ParentFlag = in.Task.ParentProcessingFlag()
	e.NumberOfFiles = totalFiles
	e.NumberOfEvents = totalEvents
	e.NumberOfLumis = totalLumis
	e.Jobs = jobsForFiles(totalFiles, in.Task.Splitting.FilesPerJob)
	return []*models.Element{e}, nil, nil
}

func (p *DatasetPolicy) SupportsWorkAddition() bool { return true }

func (p *DatasetPolicy) NewDataAvailable(ctx context.Context, in Input) (bool, error) {
	return !in.ProcessedInputs[in.Task.InputDataset] && !in.RejectedInputs[in.Task.InputDataset], nil
}
