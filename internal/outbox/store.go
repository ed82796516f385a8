package outbox

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Store defines the outbox persistence operations.
// Implementations must be safe for concurrent use.
type Store interface {
	// Append adds a new entry to the outbox. Called within the same
	// transaction as the business write; implementations read the active
	// transaction from the context.
	Append(ctx context.Context, entry *Entry) error

	// FetchUnprocessed returns up to limit pending entries ordered by
	// created_at ASC. Implementations should use row-level locking
	// (FOR UPDATE SKIP LOCKED) so concurrent relays do not double-publish.
	FetchUnprocessed(ctx context.Context, limit int) ([]*Entry, error)

	// MarkProcessed marks an entry as successfully published.
	MarkProcessed(ctx context.Context, id uuid.UUID, processedAt time.Time) error

	// CountPending returns the number of unprocessed entries.
	CountPending(ctx context.Context) (int64, error)

	// DeleteProcessedBefore removes old processed entries for cleanup.
	// Returns the number of entries deleted.
	DeleteProcessedBefore(ctx context.Context, before time.Time) (int64, error)
}
