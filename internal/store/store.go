package store

import (
	"context"
	"errors"
)

// ErrRecordNotFound is returned by RecordStore implementations when a
// record does not exist (e.g. deleted after a change event was queued).
var ErrRecordNotFound = errors.New("record not found")

// RecordStore is the narrow contract the indexing engine depends on. The
// engine never talks to the underlying storage technology directly.
type RecordStore interface {
	// Get fetches a record by type and id with all eagerPaths materialized
	// in a single batched call, so extraction never issues one query per
	// relationship per record.
	Get(ctx context.Context, recordType, id string, eagerPaths []string) (*Record, error)

	// ListIDs lists every record id of a type, used by backfills.
	ListIDs(ctx context.Context, recordType string) ([]string, error)

	// OwnersOf resolves the inverse of a relationship path: the ids of
	// parentType records whose path reaches the given related record.
	OwnersOf(ctx context.Context, parentType, path, relatedID string) ([]string, error)
}

// ChangeNotifier is implemented by the engine and registered with the
// record store so it receives create/update/delete notifications.
type ChangeNotifier interface {
	Notify(ctx context.Context, ev ChangeEvent) error
}
