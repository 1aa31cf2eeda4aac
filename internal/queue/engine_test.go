package queue

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/ternarybob/arbor"
	"github.com/ternarybob/workqueue/internal/interfaces"
	"github.com/ternarybob/workqueue/internal/models"
	"github.com/ternarybob/workqueue/internal/queue/matcher"
)

// memStore is a minimal in-memory interfaces.BackendStore used to exercise
// the engine's RPCs without a Badger database.
type memStore struct {
	elements map[string]*models.Element
	inboxes  map[string]*models.InboxElement
	activity []*models.ActivityEntry
}

func newMemStore() *memStore {
	return &memStore{elements: map[string]*models.Element{}, inboxes: map[string]*models.InboxElement{}}
}

func (m *memStore) InsertElement(ctx context.Context, e *models.Element) error {
	m.elements[e.Id] = e
	return nil
}
func (m *memStore) SaveElement(ctx context.Context, e *models.Element) error {
	m.elements[e.Id] = e
	return nil
}
func (m *memStore) GetElement(ctx context.Context, id string) (*models.Element, error) {
	return m.elements[id], nil
}
func (m *memStore) DeleteElement(ctx context.Context, id string) error {
	delete(m.elements, id)
	return nil
}
func (m *memStore) ElementsByRequest(ctx context.Context, requestName string) ([]*models.Element, error) {
	var out []*models.Element
	for _, e := range m.elements {
		if e.RequestName == requestName {
			out = append(out, e)
		}
	}
	return out, nil
}
func (m *memStore) AvailableWork(ctx context.Context, filter interfaces.AvailableWorkFilter) ([]*models.Element, error) {
	var out []*models.Element
	for _, e := range m.elements {
		if e.Status == models.StatusAvailable {
			out = append(out, e)
		}
	}
	return out, nil
}
func (m *memStore) InsertInboxElement(ctx context.Context, e *models.InboxElement) error {
	m.inboxes[e.Id] = e
	return nil
}
func (m *memStore) SaveInboxElement(ctx context.Context, e *models.InboxElement) error {
	m.inboxes[e.Id] = e
	return nil
}
func (m *memStore) GetInboxElement(ctx context.Context, id string) (*models.InboxElement, error) {
	return m.inboxes[id], nil
}
func (m *memStore) InboxElementsByRequest(ctx context.Context, requestName string) ([]*models.InboxElement, error) {
	var out []*models.InboxElement
	for _, e := range m.inboxes {
		if e.RequestName == requestName {
			out = append(out, e)
		}
	}
	return out, nil
}
func (m *memStore) AllInboxElements(ctx context.Context) ([]*models.InboxElement, error) {
	var out []*models.InboxElement
	for _, e := range m.inboxes {
		out = append(out, e)
	}
	return out, nil
}
func (m *memStore) FixConflicts(ctx context.Context, requestName string) error { return nil }
func (m *memStore) RecordActivity(ctx context.Context, entry *models.ActivityEntry) error {
	m.activity = append(m.activity, entry)
	return nil
}
func (m *memStore) ActivityByRequest(ctx context.Context, requestName string) ([]*models.ActivityEntry, error) {
	return m.activity, nil
}
func (m *memStore) Close() error { return nil }

type fakeSpecLoader struct{ specs map[string]*models.Spec }

func (f *fakeSpecLoader) Load(ctx context.Context, requestName string) (*models.Spec, error) {
	return f.specs[requestName], nil
}

type fakeMetadataAdapter struct{}

func (fakeMetadataAdapter) ListFileBlocks(ctx context.Context, dataset string) ([]interfaces.FileBlock, error) {
	return []interfaces.FileBlock{{Name: "block1", Dataset: dataset, NumberFiles: 10, NumberEvents: 1000}}, nil
}
func (fakeMetadataAdapter) GetFileBlock(ctx context.Context, blockName string) (interfaces.FileBlock, error) {
	return interfaces.FileBlock{Name: blockName, NumberFiles: 10}, nil
}
func (fakeMetadataAdapter) GetFileBlockWithParents(ctx context.Context, blockName string) (interfaces.FileBlock, error) {
	return interfaces.FileBlock{Name: blockName, NumberFiles: 10}, nil
}

type fakeLocationAdapter struct{}

func (fakeLocationAdapter) GetReplicaInfoForBlocks(ctx context.Context, blockNames []string) ([]interfaces.SiteReplicas, error) {
	var out []interfaces.SiteReplicas
	for _, b := range blockNames {
		out = append(out, interfaces.SiteReplicas{BlockName: b, Sites: []string{"T1_US_FNAL"}})
	}
	return out, nil
}
func (fakeLocationAdapter) CreateSubscriptionAndAddFiles(ctx context.Context, dataset, site string) error {
	return nil
}

type fakeSiteCatalog struct{}

func (fakeSiteCatalog) FreeSlots(ctx context.Context) (map[string]int, error) {
	return map[string]int{"T1_US_FNAL": 10}, nil
}

type fakeSubstrateAdapter struct {
	nextSubID int64
	summaries map[int64][]interfaces.JobSummary
}

func (f *fakeSubstrateAdapter) CreateSubscription(ctx context.Context, requestName, taskName string, inputs []string) (int64, int, error) {
	f.nextSubID++
	return f.nextSubID, len(inputs), nil
}
func (f *fakeSubstrateAdapter) WMBSSubscriptionStatus(ctx context.Context, subscriptionID int64) ([]interfaces.JobSummary, error) {
	return f.summaries[subscriptionID], nil
}
func (f *fakeSubstrateAdapter) KillWorkflow(ctx context.Context, requestName string) error { return nil }

type fakeRequestManagerAdapter struct{}

func (fakeRequestManagerAdapter) UpdateRequestStats(ctx context.Context, stats []interfaces.RequestStats) error {
	return nil
}
func (fakeRequestManagerAdapter) GetRequestByNames(ctx context.Context, names []string) ([]string, error) {
	return names, nil
}

func newTestEngine(specs map[string]*models.Spec) (*Engine, *memStore) {
	store := newMemStore()
	logger := arbor.NewLogger()
	eng := NewEngine(store, &fakeSpecLoader{specs: specs}, fakeMetadataAdapter{}, fakeLocationAdapter{},
		fakeSiteCatalog{}, &fakeSubstrateAdapter{}, fakeRequestManagerAdapter{}, logger, Config{})
	return eng, store
}

func testSpec(requestName string) *models.Spec {
	return &models.Spec{
		RequestName: requestName,
		RequestType: models.RequestTypeProcessing,
		StartPolicy: models.StartPolicyBlock,
		EndPolicy:   models.EndPolicySingleShot,
		Priority:    5,
		Tasks: []*models.Task{
			{Name: "Processing", InputDataset: "/a/b/c", Splitting: models.SplittingArgs{FilesPerJob: 5}},
		},
	}
}

func TestQueueWorkSplitsAndStoresElements(t *testing.T) {
	spec := testSpec("req1")
	eng, store := newTestEngine(map[string]*models.Spec{"req1": spec})

	err := eng.QueueWork(context.Background(), "req1", "team-a")
	require.NoError(t, err)

	elements, err := eng.Status(context.Background(), "req1")
	require.NoError(t, err)
	require.Len(t, elements, 1)
	assert.Equal(t, models.StatusAvailable, elements[0].Status)

	inboxes, err := eng.StatusInbox(context.Background(), "req1")
	require.NoError(t, err)
	require.Len(t, inboxes, 1)
	assert.Equal(t, models.StatusAcquired, inboxes[0].Status)
	assert.Equal(t, "team-a", inboxes[0].TeamName)

	assert.Len(t, store.activity, 1)
}

func TestQueueWorkRejectsMismatchedRequestName(t *testing.T) {
	spec := testSpec("req1")
	eng, _ := newTestEngine(map[string]*models.Spec{"req2": spec})

	err := eng.QueueWork(context.Background(), "req2", "team-a")
	var specErr *WorkQueueWMSpecError
	assert.ErrorAs(t, err, &specErr)
}

func TestSetPriorityUpdatesAllElements(t *testing.T) {
	spec := testSpec("req1")
	eng, _ := newTestEngine(map[string]*models.Spec{"req1": spec})
	require.NoError(t, eng.QueueWork(context.Background(), "req1", ""))

	require.NoError(t, eng.SetPriority(context.Background(), 99, []string{"req1"}))

	elements, _ := eng.Status(context.Background(), "req1")
	for _, e := range elements {
		assert.Equal(t, 99, e.Priority)
	}
}

func TestResetWorkReturnsElementToAvailable(t *testing.T) {
	spec := testSpec("req1")
	eng, store := newTestEngine(map[string]*models.Spec{"req1": spec})
	require.NoError(t, eng.QueueWork(context.Background(), "req1", ""))

	elements, _ := eng.Status(context.Background(), "req1")
	el := elements[0]
	el.Status = models.StatusAcquired
	el.ChildQueueUrl = "http://child"
	store.elements[el.Id] = el

	require.NoError(t, eng.ResetWork(context.Background(), []string{el.Id}))

	reset, _ := eng.Store.GetElement(context.Background(), el.Id)
	assert.Equal(t, models.StatusAvailable, reset.Status)
	assert.Empty(t, reset.ChildQueueUrl)
}

func TestCancelWorkFastPathNoChild(t *testing.T) {
	spec := testSpec("req1")
	eng, _ := newTestEngine(map[string]*models.Spec{"req1": spec})
	require.NoError(t, eng.QueueWork(context.Background(), "req1", ""))

	require.NoError(t, eng.CancelWork(context.Background(), "req1"))

	elements, _ := eng.Status(context.Background(), "req1")
	for _, e := range elements {
		assert.Equal(t, models.StatusCanceled, e.Status)
	}
	inboxes, _ := eng.StatusInbox(context.Background(), "req1")
	assert.Equal(t, models.StatusCanceled, inboxes[0].Status)
}

func TestGetWorkInjectsMatchedElements(t *testing.T) {
	spec := testSpec("req1")
	eng, _ := newTestEngine(map[string]*models.Spec{"req1": spec})
	require.NoError(t, eng.QueueWork(context.Background(), "req1", ""))

	offer := matcher.Offer{JobSlots: map[string]int{"T1_US_FNAL": 10}, NumElems: 10}
	injected, err := eng.GetWork(context.Background(), offer)
	require.NoError(t, err)
	require.Len(t, injected, 1)

	el := injected[0]
	assert.Equal(t, models.StatusRunning, el.Status)
	assert.NotZero(t, el.SubscriptionId)
	assert.Equal(t, el.NumberOfFiles, el.NumOfFilesAdded)

	stored, err := eng.Store.GetElement(context.Background(), el.Id)
	require.NoError(t, err)
	assert.Equal(t, models.StatusRunning, stored.Status)
}

// closableMetadataAdapter is a fakeMetadataAdapter with a mutable block
// list, used to simulate new data showing up mid-test for CloseWork.
type closableMetadataAdapter struct {
	blocks []interfaces.FileBlock
}

func (c *closableMetadataAdapter) ListFileBlocks(ctx context.Context, dataset string) ([]interfaces.FileBlock, error) {
	return c.blocks, nil
}
func (c *closableMetadataAdapter) GetFileBlock(ctx context.Context, blockName string) (interfaces.FileBlock, error) {
	for _, b := range c.blocks {
		if b.Name == blockName {
			return b, nil
		}
	}
	return interfaces.FileBlock{}, nil
}
func (c *closableMetadataAdapter) GetFileBlockWithParents(ctx context.Context, blockName string) (interfaces.FileBlock, error) {
	return c.GetFileBlock(ctx, blockName)
}

func TestCloseWorkReSplitsOnNewData(t *testing.T) {
	metadata := &closableMetadataAdapter{blocks: []interfaces.FileBlock{{Name: "block1", NumberFiles: 10}}}
	spec := testSpec("req1")
	store := newMemStore()
	eng := NewEngine(store, &fakeSpecLoader{specs: map[string]*models.Spec{"req1": spec}}, metadata, fakeLocationAdapter{},
		fakeSiteCatalog{}, &fakeSubstrateAdapter{}, fakeRequestManagerAdapter{}, arbor.NewLogger(), Config{OpenRunningTimeout: time.Hour})
	require.NoError(t, eng.QueueWork(context.Background(), "req1", ""))

	inboxes, err := eng.StatusInbox(context.Background(), "req1")
	require.NoError(t, err)
	inbox := inboxes[0]
	inbox.OpenForNewData = true
	require.NoError(t, store.SaveInboxElement(context.Background(), inbox))

	elements, _ := eng.Status(context.Background(), "req1")
	require.Len(t, elements, 1)

	metadata.blocks = append(metadata.blocks, interfaces.FileBlock{Name: "block2", NumberFiles: 5})

	require.NoError(t, eng.CloseWork(context.Background(), nil))

	elements, err = eng.Status(context.Background(), "req1")
	require.NoError(t, err)
	assert.Len(t, elements, 2)

	inboxes, err = eng.StatusInbox(context.Background(), "req1")
	require.NoError(t, err)
	assert.True(t, inboxes[0].OpenForNewData)
	assert.Contains(t, inboxes[0].ProcessedInputs, "block2")
}

func TestDeleteWorkflowsOnlyDeletesTerminalRequests(t *testing.T) {
	spec := testSpec("req1")
	eng, store := newTestEngine(map[string]*models.Spec{"req1": spec})
	require.NoError(t, eng.QueueWork(context.Background(), "req1", ""))

	require.NoError(t, eng.DeleteWorkflows(context.Background(), []string{"req1"}))
	elements, _ := eng.Status(context.Background(), "req1")
	assert.NotEmpty(t, elements, "non-terminal inbox should not be deleted")

	require.NoError(t, eng.CancelWork(context.Background(), "req1"))
	require.NoError(t, eng.DeleteWorkflows(context.Background(), []string{"req1"}))
	elements, _ = eng.Status(context.Background(), "req1")
	assert.Empty(t, elements)
	_ = store
}
