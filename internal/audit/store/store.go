// Package store defines the append-only audit log persistence contract and
// its in-memory implementation.
package store

import (
	"context"

	"idplane/internal/audit/models"
)

// Filter selects audit records. At most one field is expected to be set;
// the query service normalizes caller input down to one before it reaches
// the store.
type Filter struct {
	UserID     string
	EntityType string
	EntityID   string
}

// Query is a filtered, paginated audit log read. Results are always
// newest-first by ingestion time.
type Query struct {
	Filter Filter
	Limit  int
	Offset int
}

// RecordStore persists audit records. Insert is idempotent on MessageKey:
// re-delivery of an already-ingested message is a no-op, not an error.
type RecordStore interface {
	Insert(ctx context.Context, record *models.Record) error
	List(ctx context.Context, q Query) ([]*models.Record, error)
	// Count returns the total matching records for the same filter,
	// ignoring limit and offset.
	Count(ctx context.Context, f Filter) (int64, error)
}
