// -----------------------------------------------------------------------
// PhEDEx adapter (C5 collaborator) - LocationAdapter implementation used by
// the location mapper to keep Element.PossibleSite current and by the
// Block and Dataset start policies to place the elements they create.
// -----------------------------------------------------------------------

package adapters

import (
	"context"
	"net/url"
	"strings"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/workqueue/internal/common"
	"github.com/ternarybob/workqueue/internal/interfaces"
)

func NewLocationAdapter(cfg common.AdapterConfig, logger arbor.ILogger) interfaces.LocationAdapter {
	if cfg.MockMode {
		return newMockPhEDEx()
	}
	return &phedexClient{baseClient: newBaseClient("phedex", cfg, logger)}
}

type phedexClient struct {
	*baseClient
}

type phedexReplicaResponse struct {
	Block string   `json:"block"`
	Sites []string `json:"complete_sites"`
}

func (c *phedexClient) GetReplicaInfoForBlocks(ctx context.Context, blockNames []string) ([]interfaces.SiteReplicas, error) {
	params := url.Values{}
	params.Set("block", strings.Join(blockNames, ","))
	var resp []phedexReplicaResponse
	if err := c.get(ctx, "/blockreplicas", params, &resp); err != nil {
		return nil, err
	}
	out := make([]interfaces.SiteReplicas, 0, len(resp))
	for _, r := range resp {
		if len(r.Sites) == 0 {
			continue
		}
		out = append(out, interfaces.SiteReplicas{BlockName: r.Block, Sites: r.Sites})
	}
	return out, nil
}

func (c *phedexClient) CreateSubscriptionAndAddFiles(ctx context.Context, dataset, site string) error {
	body := map[string]string{"dataset": dataset, "node": site}
	return c.post(ctx, "/subscribe", body, nil)
}

// mockPhEDEx answers replica lookups from a small fixed site table, giving
// every unseen block the same two-site placement so Block and Dataset
// splits always have somewhere to land in mock mode.
type mockPhEDEx struct {
	sitesByBlock map[string][]string
	subscribed   map[string]bool
}

func newMockPhEDEx() *mockPhEDEx {
	return &mockPhEDEx{
		sitesByBlock: map[string][]string{
			"/Mock/Primary/RAW#block0": {"T1_US_FNAL", "T2_CH_CERN"},
			"/Mock/Primary/RAW#block1": {"T2_CH_CERN"},
		},
		subscribed: make(map[string]bool),
	}
}

func (m *mockPhEDEx) GetReplicaInfoForBlocks(ctx context.Context, blockNames []string) ([]interfaces.SiteReplicas, error) {
	out := make([]interfaces.SiteReplicas, 0, len(blockNames))
	for _, b := range blockNames {
		sites, ok := m.sitesByBlock[b]
		if !ok {
			sites = []string{"T1_US_FNAL", "T2_CH_CERN"}
		}
		out = append(out, interfaces.SiteReplicas{BlockName: b, Sites: sites})
	}
	return out, nil
}

func (m *mockPhEDEx) CreateSubscriptionAndAddFiles(ctx context.Context, dataset, site string) error {
	m.subscribed[dataset+"@"+site] = true
	return nil
}
