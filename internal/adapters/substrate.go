// -----------------------------------------------------------------------
// Substrate adapter (C8) - the boundary to the execution substrate a child
// queue ultimately hands jobs to (WMBS in the reference implementation).
// -----------------------------------------------------------------------

package adapters

import (
	"context"
	"fmt"
	"net/url"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/workqueue/internal/common"
	"github.com/ternarybob/workqueue/internal/interfaces"
)

func NewSubstrateAdapter(cfg common.AdapterConfig, logger arbor.ILogger) interfaces.SubstrateAdapter {
	if cfg.MockMode {
		return newMockSubstrate()
	}
	return &substrateClient{baseClient: newBaseClient("substrate", cfg, logger)}
}

type substrateClient struct {
	*baseClient
}

type wmbsSummaryResponse struct {
	TaskName  string `json:"task_name"`
	Running   int    `json:"running"`
	Succeeded int    `json:"succeeded"`
	Failed    int    `json:"failed"`
}

type subscribeResponse struct {
	SubscriptionId int64 `json:"subscription_id"`
	FilesAdded     int   `json:"files_added"`
}

func (c *substrateClient) CreateSubscription(ctx context.Context, requestName, taskName string, inputs []string) (int64, int, error) {
	body := map[string]interface{}{
		"request_name": requestName,
		"task_name":    taskName,
		"inputs":       inputs,
	}
	var resp subscribeResponse
	if err := c.post(ctx, "/subscribe", body, &resp); err != nil {
		return 0, 0, err
	}
	return resp.SubscriptionId, resp.FilesAdded, nil
}

func (c *substrateClient) WMBSSubscriptionStatus(ctx context.Context, subscriptionID int64) ([]interfaces.JobSummary, error) {
	params := url.Values{}
	params.Set("subscription", fmt.Sprintf("%d", subscriptionID))
	var resp []wmbsSummaryResponse
	if err := c.get(ctx, "/subscriptionstatus", params, &resp); err != nil {
		return nil, err
	}
	out := make([]interfaces.JobSummary, len(resp))
	for i, s := range resp {
		out[i] = interfaces.JobSummary{TaskName: s.TaskName, Running: s.Running, Succeeded: s.Succeeded, Failed: s.Failed}
	}
	return out, nil
}

func (c *substrateClient) KillWorkflow(ctx context.Context, requestName string) error {
	body := map[string]string{"request_name": requestName}
	return c.post(ctx, "/kill", body, nil)
}

// mockSubstrate advances every tracked subscription toward Done on each
// status poll, so PerformSyncAndCancelAction has something to converge on
// without a real WMBS behind it.
type mockSubstrate struct {
	polls     map[int64]int
	nextSubID int64
}

func newMockSubstrate() *mockSubstrate {
	return &mockSubstrate{polls: make(map[int64]int), nextSubID: 1000}
}

func (m *mockSubstrate) CreateSubscription(ctx context.Context, requestName, taskName string, inputs []string) (int64, int, error) {
	m.nextSubID++
	return m.nextSubID, len(inputs), nil
}

func (m *mockSubstrate) WMBSSubscriptionStatus(ctx context.Context, subscriptionID int64) ([]interfaces.JobSummary, error) {
	m.polls[subscriptionID]++
	if m.polls[subscriptionID] < 3 {
		return []interfaces.JobSummary{{TaskName: "Production", Running: 1, Succeeded: 0, Failed: 0}}, nil
	}
	return []interfaces.JobSummary{{TaskName: "Production", Running: 0, Succeeded: 1, Failed: 0}}, nil
}

func (m *mockSubstrate) KillWorkflow(ctx context.Context, requestName string) error {
	return nil
}
