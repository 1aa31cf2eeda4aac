package queue

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/ternarybob/workqueue/internal/models"
)

func TestCanTransition(t *testing.T) {
	cases := []struct {
		from, to models.Status
		want     bool
	}{
		{models.StatusAvailable, models.StatusNegotiating, true},
		{models.StatusNegotiating, models.StatusAcquired, true},
		{models.StatusAcquired, models.StatusRunning, true},
		{models.StatusRunning, models.StatusDone, true},
		{models.StatusRunning, models.StatusFailed, true},
		{models.StatusAvailable, models.StatusRunning, true},
		{models.StatusDone, models.StatusRunning, false},
		{models.StatusRunning, models.StatusCancelRequested, true},
		{models.StatusAvailable, models.StatusCanceled, true},
		{models.StatusCancelRequested, models.StatusCanceled, true},
		{models.StatusCanceled, models.StatusAvailable, false},
	}
	for _, c := range cases {
		assert.Equal(t, c.want, CanTransition(c.from, c.to), "%s -> %s", c.from, c.to)
	}
}

func TestResetNonTerminal(t *testing.T) {
	e := models.NewElement("req1", "task1", models.StartPolicyBlock, 1)
	e.Status = models.StatusAcquired
	e.ChildQueueUrl = "http://child"
	Reset(e)
	assert.Equal(t, models.StatusAvailable, e.Status)
	assert.Empty(t, e.ChildQueueUrl)
}

func TestResetTerminalIsNoop(t *testing.T) {
	e := models.NewElement("req1", "task1", models.StartPolicyBlock, 1)
	e.Status = models.StatusDone
	rev := e.Rev
	Reset(e)
	assert.Equal(t, models.StatusDone, e.Status)
	assert.Equal(t, rev, e.Rev)
}

func TestCancelFastPathNoChild(t *testing.T) {
	e := models.NewElement("req1", "task1", models.StartPolicyBlock, 1)
	e.Status = models.StatusAcquired
	assert.Equal(t, models.StatusCanceled, CancelFastPath(e))
}

func TestCancelFastPathWithChild(t *testing.T) {
	e := models.NewElement("req1", "task1", models.StartPolicyBlock, 1)
	e.Status = models.StatusAcquired
	e.ChildQueueUrl = "http://child"
	assert.Equal(t, models.StatusCancelRequested, CancelFastPath(e))
}

func TestApplyCancelBumpsRev(t *testing.T) {
	e := models.NewElement("req1", "task1", models.StartPolicyBlock, 1)
	e.Status = models.StatusRunning
	rev := e.Rev
	ApplyCancel(e)
	assert.Equal(t, models.StatusCanceled, e.Status)
	assert.Greater(t, e.Rev, rev)
}
