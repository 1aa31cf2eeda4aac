package queue

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/ternarybob/workqueue/internal/models"
)

func TestMergeStatusNeverRegresses(t *testing.T) {
	a := models.NewElement("req1", "task1", models.StartPolicyBlock, 1)
	a.Status = models.StatusRunning
	b := models.NewElement("req1", "task1", models.StartPolicyBlock, 1)
	b.Id = a.Id
	b.Status = models.StatusAvailable // stale duplicate report

	merged := MergeElements(a, b)
	assert.Equal(t, models.StatusRunning, merged.Status)
}

func TestMergeStatusPicksCancellation(t *testing.T) {
	a := models.NewElement("req1", "task1", models.StartPolicyBlock, 1)
	a.Status = models.StatusRunning
	b := models.NewElement("req1", "task1", models.StartPolicyBlock, 1)
	b.Id = a.Id
	b.Status = models.StatusCancelRequested

	merged := MergeElements(a, b)
	assert.Equal(t, models.StatusCancelRequested, merged.Status)
}

func TestMergePercentTakesMax(t *testing.T) {
	a := models.NewElement("req1", "task1", models.StartPolicyBlock, 1)
	a.PercentComplete = 0.4
	b := models.NewElement("req1", "task1", models.StartPolicyBlock, 1)
	b.Id = a.Id
	b.PercentComplete = 0.6

	merged := MergeElements(a, b)
	assert.Equal(t, 0.6, merged.PercentComplete)
}

func TestMergeSitesUnion(t *testing.T) {
	a := models.NewElement("req1", "task1", models.StartPolicyBlock, 1)
	a.PossibleSite = []string{"T1_US_FNAL"}
	b := models.NewElement("req1", "task1", models.StartPolicyBlock, 1)
	b.Id = a.Id
	b.PossibleSite = []string{"T1_US_FNAL", "T2_CH_CERN"}

	merged := MergeElements(a, b)
	assert.ElementsMatch(t, []string{"T1_US_FNAL", "T2_CH_CERN"}, merged.PossibleSite)
}

func TestMergeKeepsEarlierInsertTime(t *testing.T) {
	now := time.Now().UTC()
	a := models.NewElement("req1", "task1", models.StartPolicyBlock, 1)
	a.InsertTime = now
	b := models.NewElement("req1", "task1", models.StartPolicyBlock, 1)
	b.Id = a.Id
	b.InsertTime = now.Add(-time.Hour)

	merged := MergeElements(a, b)
	assert.Equal(t, b.InsertTime, merged.InsertTime)
}

func TestMergeBumpsRevAboveBothInputs(t *testing.T) {
	a := models.NewElement("req1", "task1", models.StartPolicyBlock, 1)
	a.Rev = 3
	b := models.NewElement("req1", "task1", models.StartPolicyBlock, 1)
	b.Id = a.Id
	b.Rev = 7

	merged := MergeElements(a, b)
	assert.Greater(t, merged.Rev, uint64(7))
}

func TestMergeInboxElementsUnionsLedger(t *testing.T) {
	a := models.NewInboxElement("req1", "task1", models.StartPolicyBlock, 1)
	a.ProcessedInputs = []string{"block1"}
	a.RejectedInputs = []string{"block2"}
	a.Jobs = 4

	b := models.NewInboxElement("req1", "task1", models.StartPolicyBlock, 1)
	b.Id = a.Id
	b.ProcessedInputs = []string{"block1", "block3"}
	b.RejectedInputs = []string{"block4"}
	b.Jobs = 6

	merged := MergeInboxElements(a, b)
	assert.ElementsMatch(t, []string{"block1", "block3"}, merged.ProcessedInputs)
	assert.ElementsMatch(t, []string{"block2", "block4"}, merged.RejectedInputs)
	assert.Equal(t, 6, merged.Jobs)
}
