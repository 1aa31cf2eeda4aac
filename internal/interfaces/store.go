package interfaces

import (
	"context"

	"github.com/ternarybob/workqueue/internal/models"
)

// AvailableWorkFilter narrows the candidate set returned by AvailableWork to
// what a given matcher offer can actually use.
type AvailableWorkFilter struct {
	Sites    []string // candidate sites the element's PossibleSite must intersect
	TeamName string   // empty means any team
}

// BackendStore is the persistence boundary for Elements, InboxElements, and
// activity history. Implementations must guarantee that a successful Save
// only ever replaces a record with one bearing a strictly greater Rev, so
// concurrent writers never silently clobber each other's work.
type BackendStore interface {
	InsertElement(ctx context.Context, e *models.Element) error
	SaveElement(ctx context.Context, e *models.Element) error
	GetElement(ctx context.Context, id string) (*models.Element, error)
	DeleteElement(ctx context.Context, id string) error
	ElementsByRequest(ctx context.Context, requestName string) ([]*models.Element, error)
	AvailableWork(ctx context.Context, filter AvailableWorkFilter) ([]*models.Element, error)

	InsertInboxElement(ctx context.Context, e *models.InboxElement) error
	SaveInboxElement(ctx context.Context, e *models.InboxElement) error
	GetInboxElement(ctx context.Context, id string) (*models.InboxElement, error)
	InboxElementsByRequest(ctx context.Context, requestName string) ([]*models.InboxElement, error)
	AllInboxElements(ctx context.Context) ([]*models.InboxElement, error)

	// FixConflicts resolves any elements left in a torn state by a crashed
	// writer: duplicate inserts and stale saves are merged via the
	// status-max/percent-max/union rule rather than dropped.
	FixConflicts(ctx context.Context, requestName string) error

	RecordActivity(ctx context.Context, entry *models.ActivityEntry) error
	ActivityByRequest(ctx context.Context, requestName string) ([]*models.ActivityEntry, error)

	Close() error
}
