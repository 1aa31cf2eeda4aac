package matcher

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/ternarybob/workqueue/internal/interfaces"
	"github.com/ternarybob/workqueue/internal/models"
)

// fakeStore is a minimal in-memory interfaces.BackendStore sufficient for
// exercising the matcher's AvailableWork dependency.
type fakeStore struct {
	elements []*models.Element
}

func (f *fakeStore) InsertElement(ctx context.Context, e *models.Element) error { return nil }
func (f *fakeStore) SaveElement(ctx context.Context, e *models.Element) error  { return nil }
func (f *fakeStore) GetElement(ctx context.Context, id string) (*models.Element, error) {
	return nil, nil
}
func (f *fakeStore) DeleteElement(ctx context.Context, id string) error { return nil }
func (f *fakeStore) ElementsByRequest(ctx context.Context, requestName string) ([]*models.Element, error) {
	return nil, nil
}
func (f *fakeStore) AvailableWork(ctx context.Context, filter interfaces.AvailableWorkFilter) ([]*models.Element, error) {
	var out []*models.Element
	for _, e := range f.elements {
		if e.Status != models.StatusAvailable {
			continue
		}
		out = append(out, e)
	}
	return out, nil
}
func (f *fakeStore) InsertInboxElement(ctx context.Context, e *models.InboxElement) error { return nil }
func (f *fakeStore) SaveInboxElement(ctx context.Context, e *models.InboxElement) error   { return nil }
func (f *fakeStore) GetInboxElement(ctx context.Context, id string) (*models.InboxElement, error) {
	return nil, nil
}
func (f *fakeStore) InboxElementsByRequest(ctx context.Context, requestName string) ([]*models.InboxElement, error) {
	return nil, nil
}
func (f *fakeStore) AllInboxElements(ctx context.Context) ([]*models.InboxElement, error) {
	return nil, nil
}
func (f *fakeStore) FixConflicts(ctx context.Context, requestName string) error { return nil }
func (f *fakeStore) RecordActivity(ctx context.Context, entry *models.ActivityEntry) error {
	return nil
}
func (f *fakeStore) ActivityByRequest(ctx context.Context, requestName string) ([]*models.ActivityEntry, error) {
	return nil, nil
}
func (f *fakeStore) Close() error { return nil }

func elementAt(requestName string, priority int, jobs int, insertOffset time.Duration, sites ...string) *models.Element {
	e := models.NewElement(requestName, "task1", models.StartPolicyBlock, priority)
	e.Status = models.StatusAvailable
	e.Jobs = jobs
	e.PossibleSite = sites
	e.InsertTime = time.Now().UTC().Add(insertOffset)
	return e
}

func TestMatchPrioritizesHigherPriorityFirst(t *testing.T) {
	low := elementAt("reqLow", 1, 1, 0, "T1_US_FNAL")
	high := elementAt("reqHigh", 9, 1, time.Second, "T1_US_FNAL")
	store := &fakeStore{elements: []*models.Element{low, high}}

	result, err := Match(context.Background(), store, Offer{JobSlots: map[string]int{"T1_US_FNAL": 1}})
	require.NoError(t, err)
	require.Len(t, result.Matched, 1)
	assert.Equal(t, "reqHigh", result.Matched[0].RequestName)
}

func TestMatchFIFOWithinPriorityBand(t *testing.T) {
	earlier := elementAt("reqA", 5, 1, -time.Minute, "T1_US_FNAL")
	later := elementAt("reqB", 5, 1, 0, "T1_US_FNAL")
	store := &fakeStore{elements: []*models.Element{later, earlier}}

	result, err := Match(context.Background(), store, Offer{JobSlots: map[string]int{"T1_US_FNAL": 2}})
	require.NoError(t, err)
	require.Len(t, result.Matched, 2)
	assert.Equal(t, "reqA", result.Matched[0].RequestName)
	assert.Equal(t, "reqB", result.Matched[1].RequestName)
}

func TestMatchExcludesWorkflows(t *testing.T) {
	e := elementAt("reqExcluded", 5, 1, 0, "T1_US_FNAL")
	store := &fakeStore{elements: []*models.Element{e}}

	result, err := Match(context.Background(), store, Offer{
		JobSlots:         map[string]int{"T1_US_FNAL": 1},
		ExcludeWorkflows: map[string]bool{"reqExcluded": true},
	})
	require.NoError(t, err)
	assert.Empty(t, result.Matched)
}

func TestMatchAlphabeticalSiteTieBreak(t *testing.T) {
	e := elementAt("req1", 5, 1, 0, "T2_CH_CERN", "T1_US_FNAL")
	store := &fakeStore{elements: []*models.Element{e}}

	result, err := Match(context.Background(), store, Offer{
		JobSlots: map[string]int{"T1_US_FNAL": 1, "T2_CH_CERN": 1},
	})
	require.NoError(t, err)
	require.Len(t, result.Matched, 1)
	assert.Equal(t, 0, result.RemainingSlots["T1_US_FNAL"])
	assert.Equal(t, 1, result.RemainingSlots["T2_CH_CERN"])
}

func TestMatchPlacesElementWithNoPossibleSite(t *testing.T) {
	e := elementAt("reqMC", 5, 1, 0) // no sites: MonteCarlo/ResubmitBlock never set PossibleSite
	store := &fakeStore{elements: []*models.Element{e}}

	result, err := Match(context.Background(), store, Offer{
		JobSlots: map[string]int{"T1_US_FNAL": 1},
	})
	require.NoError(t, err)
	require.Len(t, result.Matched, 1)
	assert.Equal(t, "reqMC", result.Matched[0].RequestName)
	assert.Equal(t, 0, result.RemainingSlots["T1_US_FNAL"])
}

func TestMatchRespectsNumElemsCap(t *testing.T) {
	store := &fakeStore{elements: []*models.Element{
		elementAt("req1", 5, 1, 0, "T1_US_FNAL"),
		elementAt("req2", 5, 1, time.Second, "T1_US_FNAL"),
	}}

	result, err := Match(context.Background(), store, Offer{
		JobSlots: map[string]int{"T1_US_FNAL": 2},
		NumElems: 1,
	})
	require.NoError(t, err)
	assert.Len(t, result.Matched, 1)
}
