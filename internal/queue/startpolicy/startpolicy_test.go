package startpolicy

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/ternarybob/workqueue/internal/interfaces"
	"github.com/ternarybob/workqueue/internal/models"
)

type fakeMetadata struct {
	blocks map[string][]interfaces.FileBlock
}

func (f *fakeMetadata) ListFileBlocks(ctx context.Context, dataset string) ([]interfaces.FileBlock, error) {
	return f.blocks[dataset], nil
}

func (f *fakeMetadata) GetFileBlock(ctx context.Context, blockName string) (interfaces.FileBlock, error) {
	for _, blocks := range f.blocks {
		for _, b := range blocks {
			if b.Name == blockName {
				return b, nil
			}
		}
	}
	return interfaces.FileBlock{}, nil
}

func (f *fakeMetadata) GetFileBlockWithParents(ctx context.Context, blockName string) (interfaces.FileBlock, error) {
	return f.GetFileBlock(ctx, blockName)
}

type fakeLocation struct {
	sites map[string][]string
}

func (f *fakeLocation) GetReplicaInfoForBlocks(ctx context.Context, blockNames []string) ([]interfaces.SiteReplicas, error) {
	var out []interfaces.SiteReplicas
	for _, b := range blockNames {
		out = append(out, interfaces.SiteReplicas{BlockName: b, Sites: f.sites[b]})
	}
	return out, nil
}

func (f *fakeLocation) CreateSubscriptionAndAddFiles(ctx context.Context, dataset, site string) error {
	return nil
}

func TestMonteCarloSplitDeterminism(t *testing.T) {
	spec := &models.Spec{RequestName: "req1", Priority: 5}
	task := &models.Task{
		Name:        "Production",
		TotalEvents: 10000,
		Splitting:   models.SplittingArgs{EventsPerJob: 250},
		FilterEfficiency: 1.0,
	}

	policy := &MonteCarloPolicy{}
	elements, _, err := policy.Split(context.Background(), Input{Spec: spec, Task: task})
	require.NoError(t, err)
	require.Len(t, elements, 40)

	assert.Equal(t, int64(1), elements[0].Mask.FirstEvent)
	assert.Equal(t, int64(250), elements[0].Mask.LastEvent)
	assert.Equal(t, int64(9751), elements[39].Mask.FirstEvent)
	assert.Equal(t, int64(10000), elements[39].Mask.LastEvent)

	for i := 1; i < len(elements); i++ {
		assert.Equal(t, elements[i-1].Mask.LastEvent+1, elements[i].Mask.FirstEvent)
	}
}

func TestBlockPolicySkipsProcessedInputs(t *testing.T) {
	spec := &models.Spec{RequestName: "req1", Priority: 1}
	task := &models.Task{Name: "Processing", InputDataset: "/a/b/c"}
	metadata := &fakeMetadata{blocks: map[string][]interfaces.FileBlock{
		"/a/b/c": {
			{Name: "block1", NumberFiles: 10},
			{Name: "block2", NumberFiles: 5},
		},
	}}
	location := &fakeLocation{sites: map[string][]string{
		"block2": {"T1_US_FNAL"},
	}}

	policy := &BlockPolicy{}
	elements, _, err := policy.Split(context.Background(), Input{
		Spec: spec, Task: task, Metadata: metadata, Location: location,
		ProcessedInputs: map[string]bool{"block1": true},
	})
	require.NoError(t, err)
	require.Len(t, elements, 1)
	assert.Equal(t, []string{"block2"}, elements[0].Inputs)
	assert.Equal(t, []string{"T1_US_FNAL"}, elements[0].PossibleSite)
}

func TestDatasetPolicyUnionsReplicas(t *testing.T) {
	spec := &models.Spec{RequestName: "req1", Priority: 1}
	task := &models.Task{Name: "Processing", InputDataset: "/a/b/c"}
	metadata := &fakeMetadata{blocks: map[string][]interfaces.FileBlock{
		"/a/b/c": {
			{Name: "block1", NumberFiles: 10},
			{Name: "block2", NumberFiles: 5},
		},
	}}
	location := &fakeLocation{sites: map[string][]string{
		"block1": {"T1_US_FNAL"},
		"block2": {"T2_CH_CERN"},
	}}

	policy := &DatasetPolicy{}
	elements, _, err := policy.Split(context.Background(), Input{Spec: spec, Task: task, Metadata: metadata, Location: location})
	require.NoError(t, err)
	require.Len(t, elements, 1)
	assert.ElementsMatch(t, []string{"T1_US_FNAL", "T2_CH_CERN"}, elements[0].PossibleSite)
	assert.Equal(t, 15, elements[0].NumberOfFiles)
}

func TestResubmitBlockChunksFiles(t *testing.T) {
	spec := &models.Spec{RequestName: "req1", Priority: 1}
	task := &models.Task{Name: "Resubmission", InputDataset: "acdc-block", Splitting: models.SplittingArgs{FilesPerJob: 10}}
	metadata := &fakeMetadata{blocks: map[string][]interfaces.FileBlock{
		"acdc": {{Name: "acdc-block", NumberFiles: 25}},
	}}

	policy := &ResubmitBlockPolicy{}
	elements, _, err := policy.Split(context.Background(), Input{Spec: spec, Task: task, Metadata: metadata})
	require.NoError(t, err)
	require.Len(t, elements, 3)
	assert.Equal(t, 5, elements[2].NumberOfFiles)
}

func TestBlockPolicySkipsOpenRejectsEmptyAndBlacklistedBlocks(t *testing.T) {
	spec := &models.Spec{RequestName: "req1", Priority: 1}
	task := &models.Task{Name: "Processing", InputDataset: "/a/b/c",
		Splitting: models.SplittingArgs{SiteBlacklist: []string{"T2_CH_CERN"}}}
	metadata := &fakeMetadata{blocks: map[string][]interfaces.FileBlock{
		"/a/b/c": {
			{Name: "open-block", NumberFiles: 10, IsOpen: true},
			{Name: "empty-block", NumberFiles: 0},
			{Name: "blacklisted-block", NumberFiles: 5},
			{Name: "good-block", NumberFiles: 5},
		},
	}}
	location := &fakeLocation{sites: map[string][]string{
		"blacklisted-block": {"T2_CH_CERN"},
		"good-block":         {"T1_US_FNAL"},
	}}

	policy := &BlockPolicy{}
	elements, rejected, err := policy.Split(context.Background(), Input{
		Spec: spec, Task: task, Metadata: metadata, Location: location,
	})
	require.NoError(t, err)
	require.Len(t, elements, 1)
	assert.Equal(t, []string{"good-block"}, elements[0].Inputs)
	assert.ElementsMatch(t, []string{"empty-block", "blacklisted-block"}, rejected)
}

func TestSupportsWorkAddition(t *testing.T) {
	assert.True(t, (&BlockPolicy{}).SupportsWorkAddition())
	assert.True(t, (&DatasetPolicy{}).SupportsWorkAddition())
	assert.False(t, (&MonteCarloPolicy{}).SupportsWorkAddition())
	assert.False(t, (&ResubmitBlockPolicy{}).SupportsWorkAddition())
}
