package adapters

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMockDBSSeededDataset(t *testing.T) {
	m := newMockDBS()
	blocks, err := m.ListFileBlocks(context.Background(), "/Mock/Primary/RAW")
	require.NoError(t, err)
	assert.Len(t, blocks, 2)
	assert.Equal(t, "/Mock/Primary/RAW#block0", blocks[0].Name)
}

func TestMockDBSSynthesizesUnseenDataset(t *testing.T) {
	m := newMockDBS()
	blocks, err := m.ListFileBlocks(context.Background(), "/Some/Other/DATASET")
	require.NoError(t, err)
	require.Len(t, blocks, 1)
	assert.Equal(t, "/Some/Other/DATASET", blocks[0].Dataset)
	assert.Greater(t, blocks[0].NumberFiles, 0)
}

func TestMockDBSGetFileBlockWithParentsFillsParents(t *testing.T) {
	m := newMockDBS()
	block, err := m.GetFileBlockWithParents(context.Background(), "/Mock/Primary/RAW#block0")
	require.NoError(t, err)
	assert.NotEmpty(t, block.Parents)
}

func TestMockPhEDExFallsBackToDefaultSites(t *testing.T) {
	m := newMockPhEDEx()
	replicas, err := m.GetReplicaInfoForBlocks(context.Background(), []string{"/unknown#block0"})
	require.NoError(t, err)
	require.Len(t, replicas, 1)
	assert.Contains(t, replicas[0].Sites, "T1_US_FNAL")
}

func TestMockSubstrateConvergesToSucceeded(t *testing.T) {
	m := newMockSubstrate()
	var last []struct{ running int }
	for i := 0; i < 3; i++ {
		summaries, err := m.WMBSSubscriptionStatus(context.Background(), 42)
		require.NoError(t, err)
		require.Len(t, summaries, 1)
		last = append(last, struct{ running int }{summaries[0].Running})
	}
	assert.Equal(t, 1, last[0].running)
	assert.Equal(t, 0, last[2].running)
}

func TestMockRequestManagerEchoesNames(t *testing.T) {
	m := newMockRequestManager()
	names, err := m.GetRequestByNames(context.Background(), []string{"wf1", "wf2"})
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"wf1", "wf2"}, names)
}
