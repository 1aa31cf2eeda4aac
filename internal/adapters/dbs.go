// -----------------------------------------------------------------------
// DBS adapter (C1) - MetadataAdapter implementation. The HTTP client talks
// to a DBS-like REST reader; NewMetadataAdapter returns a mock dispatch
// table instead when the adapter is configured in mock mode, grounded on
// original_source's MockDbsApi.py (a fixed lookup table keyed by call
// signature, falling back to a generic synthesized answer).
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

// NewMetadataAdapter returns the configured MetadataAdapter implementation:
// an HTTP-backed DBS reader client, or an in-memory mock when cfg.MockMode
// is set.
func NewMetadataAdapter(cfg common.AdapterConfig, logger arbor.ILogger) interfaces.MetadataAdapter {
	if cfg.MockMode {
		return newMockDBS()
	}
	return &dbsClient{baseClient: newBaseClient("dbs", cfg, logger)}
}

type dbsClient struct {
	*baseClient
}

type dbsBlockResponse struct {
	BlockName    string   `json:"block_name"`
	Dataset      string   `json:"dataset"`
	NumberFiles  int      `json:"file_count"`
	NumberEvents int      `json:"event_count"`
	NumberLumis  int      `json:"lumi_section_num"`
	OpenForWrite bool     `json:"open_for_writing"`
	Parents      []string `json:"parent_blocks,omitempty"`
}

func (c *dbsClient) ListFileBlocks(ctx context.Context, dataset string) ([]interfaces.FileBlock, error) {
	params := url.Values{}
	params.Set("dataset", dataset)
	var resp []dbsBlockResponse
	if err := c.get(ctx, "/blocks", params, &resp); err != nil {
		return nil, err
	}
	out := make([]interfaces.FileBlock, len(resp))
	for i, b := range resp {
		out[i] = toFileBlock(b)
	}
	return out, nil
}

func (c *dbsClient) GetFileBlock(ctx context.Context, blockName string) (interfaces.FileBlock, error) {
	params := url.Values{}
	params.Set("block_name", blockName)
	var resp []dbsBlockResponse
	if err := c.get(ctx, "/blocks", params, &resp); err != nil {
		return interfaces.FileBlock{}, err
	}
	if len(resp) == 0 {
		return interfaces.FileBlock{}, fmt.Errorf("dbs: block %s not found", blockName)
	}
	return toFileBlock(resp[0]), nil
}

func (c *dbsClient) GetFileBlockWithParents(ctx context.Context, blockName string) (interfaces.FileBlock, error) {
	params := url.Values{}
	params.Set("block_name", blockName)
	params.Set("with_parents", "true")
	var resp []dbsBlockResponse
	if err := c.get(ctx, "/blockparents", params, &resp); err != nil {
		return interfaces.FileBlock{}, err
	}
	if len(resp) == 0 {
		return interfaces.FileBlock{}, fmt.Errorf("dbs: block %s not found", blockName)
	}
	return toFileBlock(resp[0]), nil
}

func toFileBlock(b dbsBlockResponse) interfaces.FileBlock {
	return interfaces.FileBlock{
		Name:         b.BlockName,
		Dataset:      b.Dataset,
		NumberFiles:  b.NumberFiles,
		NumberEvents: b.NumberEvents,
		NumberLumis:  b.NumberLumis,
		IsOpen:       b.OpenForWrite,
		Parents:      b.Parents,
	}
}

// mockDBS answers ListFileBlocks/GetFileBlock* from a small fixed fixture
// table, synthesizing a single deterministic block for any dataset or block
// name not already present in the table instead of erroring, since a queue
// running in mock mode should stay usable for any request name thrown at it.
type mockDBS struct {
	blocksByDataset map[string][]interfaces.FileBlock
	blocksByName    map[string]interfaces.FileBlock
}

func newMockDBS() *mockDBS {
	m := &mockDBS{
		blocksByDataset: make(map[string][]interfaces.FileBlock),
		blocksByName:    make(map[string]interfaces.FileBlock),
	}
	m.seed("/Mock/Primary/RAW", []interfaces.FileBlock{
		{Name: "/Mock/Primary/RAW#block0", Dataset: "/Mock/Primary/RAW", NumberFiles: 10, NumberEvents: 10000, NumberLumis: 40},
		{Name: "/Mock/Primary/RAW#block1", Dataset: "/Mock/Primary/RAW", NumberFiles: 8, NumberEvents: 8000, NumberLumis: 32},
	})
	return m
}

func (m *mockDBS) seed(dataset string, blocks []interfaces.FileBlock) {
	m.blocksByDataset[dataset] = blocks
	for _, b := range blocks {
		m.blocksByName[b.Name] = b
	}
}

func (m *mockDBS) ListFileBlocks(ctx context.Context, dataset string) ([]interfaces.FileBlock, error) {
	if blocks, ok := m.blocksByDataset[dataset]; ok {
		return blocks, nil
	}
	return []interfaces.FileBlock{synthesizeBlock(dataset + "#block0", dataset)}, nil
}

func (m *mockDBS) GetFileBlock(ctx context.Context, blockName string) (interfaces.FileBlock, error) {
	if b, ok := m.blocksByName[blockName]; ok {
		return b, nil
	}
	return synthesizeBlock(blockName, datasetOf(blockName)), nil
}

func (m *mockDBS) GetFileBlockWithParents(ctx context.Context, blockName string) (interfaces.FileBlock, error) {
	b, err := m.GetFileBlock(ctx, blockName)
	if err != nil {
		return b, err
	}
	if len(b.Parents) == 0 {
		b.Parents = []string{blockName + "-parent#block0"}
	}
	return b, nil
}

func synthesizeBlock(name, dataset string) interfaces.FileBlock {
	return interfaces.FileBlock{Name: name, Dataset: dataset, NumberFiles: 5, NumberEvents: 5000, NumberLumis: 20}
}

func datasetOf(blockName string) string {
	for i := len(blockName) - 1; i >= 0; i-- {
		if blockName[i] == '#' {
			return blockName[:i]
		}
	}
	return blockName
}
