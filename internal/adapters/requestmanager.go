// -----------------------------------------------------------------------
// Request-manager adapter - the system of record for workflow lifecycle and
// global status (ReqMgr in the reference implementation). The global queue
// pushes stats to it on QueueWork, and PerformQueueCleanupActions consults
// it to find terminal requests it no longer knows, which are safe to purge.
// -----------------------------------------------------------------------

package adapters

import (
	"context"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/workqueue/internal/common"
	"github.com/ternarybob/workqueue/internal/interfaces"
)

func NewRequestManagerAdapter(cfg common.AdapterConfig, logger arbor.ILogger) interfaces.RequestManagerAdapter {
	if cfg.MockMode {
		return newMockRequestManager()
	}
	return &requestManagerClient{baseClient: newBaseClient("requestmanager", cfg, logger)}
}

type requestManagerClient struct {
	*baseClient
}

func (c *requestManagerClient) UpdateRequestStats(ctx context.Context, stats []interfaces.RequestStats) error {
	return c.post(ctx, "/data/request", stats, nil)
}

type reqMgrNamesResponse struct {
	Requests []string `json:"requests"`
}

func (c *requestManagerClient) GetRequestByNames(ctx context.Context, names []string) ([]string, error) {
	var resp reqMgrNamesResponse
	if err := c.post(ctx, "/data/requestsbynames", map[string][]string{"names": names}, &resp); err != nil {
		return nil, err
	}
	return resp.Requests, nil
}

// mockRequestManager records pushed stats and echoes back every name it is
// asked about in a call, so PerformQueueCleanupActions never mistakes a
// workflow for one the system of record has forgotten.
type mockRequestManager struct {
	stats map[string]interfaces.RequestStats
}

func newMockRequestManager() *mockRequestManager {
	return &mockRequestManager{stats: make(map[string]interfaces.RequestStats)}
}

func (m *mockRequestManager) UpdateRequestStats(ctx context.Context, stats []interfaces.RequestStats) error {
	for _, s := range stats {
		m.stats[s.RequestName] = s
	}
	return nil
}

func (m *mockRequestManager) GetRequestByNames(ctx context.Context, names []string) ([]string, error) {
	out := make([]string, 0, len(names))
	for _, n := range names {
		out = append(out, n)
	}
	return out, nil
}
