package models

import "time"

// ActivityEntry is one line of the queue's central operational journal: an
// append-only record of what happened to a workflow, keyed by request name
// so an operator can reconstruct a request's history across split,
// acquisition, replication and reconciliation events.
type ActivityEntry struct {
	Id          string    `json:"id" badgerhold:"key"`
	RequestName string    `json:"request_name" badgerhold:"index"`
	ElementId   string    `json:"element_id,omitempty"`
	Event       string    `json:"event"` // e.g. "split", "acquired", "status_change", "replicated", "reconciled"
	Detail      string    `json:"detail,omitempty"`
	Timestamp   time.Time `json:"timestamp" badgerhold:"index"`
}

func NewActivityEntry(id, requestName, event, detail string) *ActivityEntry {
	return &ActivityEntry{
		Id:          id,
		RequestName: requestName,
		Event:       event,
		Detail:      detail,
		Timestamp:   time.Now().UTC(),
	}
}
