// Package postgres implements the outbox store over PostgreSQL with plain
// database/sql.
package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"

	"idplane/internal/outbox"
	"idplane/pkg/platform/sentinel"
	platformtx "idplane/pkg/platform/tx"
)

// Store implements outbox.Store using PostgreSQL.
type Store struct {
	db *sql.DB
}

// New creates a new PostgreSQL outbox store.
func New(db *sql.DB) *Store {
	return &Store{db: db}
}

// executor resolves the active transaction from the context, falling back to
// the pool. Append joins the caller's transaction this way.
func (s *Store) executor(ctx context.Context) interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
} {
	if tx, ok := platformtx.From(ctx); ok {
		return tx
	}
	return s.db
}

// Append inserts a new entry. When the context carries an open transaction
// the insert joins it, which is what makes the outbox transactional.
func (s *Store) Append(ctx context.Context, entry *outbox.Entry) error {
	const q = `
		INSERT INTO outbox (id, aggregate_type, aggregate_id, topic, event_type, payload, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`

	_, err := s.executor(ctx).ExecContext(ctx, q,
		entry.ID,
		entry.AggregateType,
		entry.AggregateID,
		entry.Topic,
		entry.EventType,
		entry.Payload,
		entry.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert outbox entry: %w", err)
	}
	return nil
}

// FetchUnprocessed returns up to limit pending entries, oldest first.
// FOR UPDATE SKIP LOCKED lets concurrent relays share the table without
// blocking or double-publishing.
func (s *Store) FetchUnprocessed(ctx context.Context, limit int) ([]*outbox.Entry, error) {
	if limit <= 0 {
		return nil, nil
	}
	const maxBatch = 1000
	if limit > maxBatch {
		limit = maxBatch
	}

	const q = `
		SELECT id, aggregate_type, aggregate_id, topic, event_type, payload, created_at, processed_at
		FROM outbox
		WHERE processed_at IS NULL
		ORDER BY created_at ASC
		LIMIT $1
		FOR UPDATE SKIP LOCKED`

	rows, err := s.executor(ctx).QueryContext(ctx, q, limit)
	if err != nil {
		return nil, fmt.Errorf("fetch unprocessed entries: %w", err)
	}
	defer rows.Close()

	var entries []*outbox.Entry
	for rows.Next() {
		var (
			e           outbox.Entry
			processedAt sql.NullTime
		)
		if err := rows.Scan(
			&e.ID,
			&e.AggregateType,
			&e.AggregateID,
			&e.Topic,
			&e.EventType,
			&e.Payload,
			&e.CreatedAt,
			&processedAt,
		); err != nil {
			return nil, fmt.Errorf("scan outbox entry: %w", err)
		}
		if processedAt.Valid {
			t := processedAt.Time
			e.ProcessedAt = &t
		}
		entries = append(entries, &e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate outbox entries: %w", err)
	}
	return entries, nil
}

// MarkProcessed marks an entry as successfully published.
func (s *Store) MarkProcessed(ctx context.Context, id uuid.UUID, processedAt time.Time) error {
	const q = `
		UPDATE outbox
		SET processed_at = $2
		WHERE id = $1 AND processed_at IS NULL`

	result, err := s.executor(ctx).ExecContext(ctx, q, id, processedAt)
	if err != nil {
		return fmt.Errorf("mark outbox entry processed: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("get rows affected: %w", err)
	}
	if affected == 0 {
		return sentinel.ErrNotFound
	}
	return nil
}

// CountPending returns the number of unprocessed entries.
func (s *Store) CountPending(ctx context.Context) (int64, error) {
	const q = `SELECT COUNT(*) FROM outbox WHERE processed_at IS NULL`

	var count int64
	if err := s.db.QueryRowContext(ctx, q).Scan(&count); err != nil {
		return 0, fmt.Errorf("count pending entries: %w", err)
	}
	return count, nil
}

// DeleteProcessedBefore removes old processed entries.
func (s *Store) DeleteProcessedBefore(ctx context.Context, before time.Time) (int64, error) {
	const q = `DELETE FROM outbox WHERE processed_at IS NOT NULL AND processed_at < $1`

	result, err := s.db.ExecContext(ctx, q, before)
	if err != nil {
		return 0, fmt.Errorf("delete processed entries: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("get rows affected: %w", err)
	}
	return affected, nil
}
