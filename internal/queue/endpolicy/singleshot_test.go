package endpolicy

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/ternarybob/workqueue/internal/models"
)

func buildElements(n int, succeeded int) []*models.Element {
	elements := make([]*models.Element, n)
	for i := 0; i < n; i++ {
		e := models.NewElement("req1", "task1", models.StartPolicyBlock, 1)
		e.Jobs = 1
		if i < succeeded {
			e.Status = models.StatusDone
			e.PercentSuccess = 1.0
			e.PercentComplete = 1.0
		} else {
			e.Status = models.StatusFailed
			e.PercentSuccess = 0
			e.PercentComplete = 1.0
		}
		elements[i] = e
	}
	return elements
}

func TestSingleShotThresholdBoundary(t *testing.T) {
	cfg := Config{SuccessThreshold: 0.9}

	below := Reconcile(buildElements(100, 89), nil, cfg)
	assert.Equal(t, models.StatusFailed, below.Status)

	atThreshold := Reconcile(buildElements(100, 90), nil, cfg)
	assert.Equal(t, models.StatusDone, atThreshold.Status)

	above := Reconcile(buildElements(100, 95), nil, cfg)
	assert.Equal(t, models.StatusDone, above.Status)
}

func TestSingleShotRunningWhenIncomplete(t *testing.T) {
	elements := buildElements(10, 5)
	elements[9].Status = models.StatusRunning
	result := Reconcile(elements, nil, Config{SuccessThreshold: 0.9})
	assert.Equal(t, models.StatusRunning, result.Status)
}

func TestSingleShotNoElementsIsNegotiating(t *testing.T) {
	result := Reconcile(nil, nil, Config{SuccessThreshold: 0.9})
	assert.Equal(t, models.StatusNegotiating, result.Status)
}

func TestSingleShotCancelRequestedWins(t *testing.T) {
	elements := buildElements(5, 5)
	elements[2].Status = models.StatusCancelRequested
	result := Reconcile(elements, nil, Config{SuccessThreshold: 0.9})
	assert.Equal(t, models.StatusCancelRequested, result.Status)
}

func TestSingleShotWaitsWhileParentOpenForNewData(t *testing.T) {
	elements := buildElements(100, 95)
	parents := []*models.InboxElement{{OpenForNewData: true}}
	result := Reconcile(elements, parents, Config{SuccessThreshold: 0.9})
	assert.Equal(t, models.StatusRunning, result.Status)

	parents[0].OpenForNewData = false
	result = Reconcile(elements, parents, Config{SuccessThreshold: 0.9})
	assert.Equal(t, models.StatusDone, result.Status)
}
