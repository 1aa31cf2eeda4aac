// -----------------------------------------------------------------------
// Site-catalog adapter - the source of free job slots per site for
// PullWork and of the valid-site list for the location mapper.
// -----------------------------------------------------------------------

package adapters

import (
	"context"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/workqueue/internal/common"
	"github.com/ternarybob/workqueue/internal/interfaces"
)

func NewSiteCatalog(cfg common.AdapterConfig, logger arbor.ILogger) interfaces.SiteCatalog {
	if cfg.MockMode {
		return newMockSiteCatalog()
	}
	return &siteCatalogClient{baseClient: newBaseClient("sitecatalog", cfg, logger)}
}

type siteCatalogClient struct {
	*baseClient
}

func (c *siteCatalogClient) FreeSlots(ctx context.Context) (map[string]int, error) {
	var resp map[string]int
	if err := c.get(ctx, "/freeslots", nil, &resp); err != nil {
		return nil, err
	}
	return resp, nil
}

// mockSiteCatalog reports a fixed pool of slots at the two sites the other
// mock adapters place replicas at.
type mockSiteCatalog struct {
	slots map[string]int
}

func newMockSiteCatalog() *mockSiteCatalog {
	return &mockSiteCatalog{slots: map[string]int{"T1_US_FNAL": 200, "T2_CH_CERN": 100}}
}

func (m *mockSiteCatalog) FreeSlots(ctx context.Context) (map[string]int, error) {
	out := make(map[string]int, len(m.slots))
	for site, n := range m.slots {
		out[site] = n
	}
	return out, nil
}
