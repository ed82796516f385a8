// Package postgres persists audit records in PostgreSQL with plain
// database/sql. The table is append-only; there are no update or delete
// paths.
package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"

	"idplane/internal/audit/models"
	"idplane/internal/audit/store"
	id "idplane/pkg/domain"
)

// Store persists audit records in PostgreSQL.
type Store struct {
	db *sql.DB
}

// New constructs a PostgreSQL-backed record store.
func New(db *sql.DB) *Store {
	return &Store{db: db}
}

// Insert appends a record. The unique index on message_key makes ingestion
// idempotent: a redelivered message hits the conflict and is a no-op.
func (s *Store) Insert(ctx context.Context, record *models.Record) error {
	details, err := json.Marshal(record.Details)
	if err != nil {
		return fmt.Errorf("encode details: %w", err)
	}

	const q = `
		INSERT INTO audit_logs
			(id, message_key, user_id, action, entity_type, entity_id,
			 details, ip_address, user_agent, device, occurred_at, ingested_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
		ON CONFLICT (message_key) DO NOTHING`

	_, err = s.db.ExecContext(ctx, q,
		uuid.UUID(record.ID),
		record.MessageKey,
		record.UserID,
		string(record.Action),
		string(record.EntityType),
		record.EntityID,
		details,
		record.IPAddress,
		record.UserAgent,
		record.Device,
		record.OccurredAt,
		record.IngestedAt,
	)
	if err != nil {
		// Insert races on id are also no-ops; the record is already there.
		if isUniqueViolation(err) {
			return nil
		}
		return fmt.Errorf("insert audit record: %w", err)
	}
	return nil
}

// List returns matching records newest-first by ingestion time.
func (s *Store) List(ctx context.Context, q store.Query) ([]*models.Record, error) {
	where, args := whereClause(q.Filter)

	limit := q.Limit
	if limit <= 0 {
		limit = 100
	}

	query := fmt.Sprintf(`
		SELECT id, message_key, user_id, action, entity_type, entity_id,
		       details, ip_address, user_agent, device, occurred_at, ingested_at
		FROM audit_logs
		%s
		ORDER BY ingested_at DESC, id DESC
		LIMIT $%d OFFSET $%d`, where, len(args)+1, len(args)+2)
	args = append(args, limit, q.Offset)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list audit records: %w", err)
	}
	defer rows.Close()

	var records []*models.Record
	for rows.Next() {
		record, err := scanRecord(rows)
		if err != nil {
			return nil, err
		}
		records = append(records, record)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate audit records: %w", err)
	}
	return records, nil
}

// Count returns the total matching records.
func (s *Store) Count(ctx context.Context, f store.Filter) (int64, error) {
	where, args := whereClause(f)

	var count int64
	query := "SELECT COUNT(*) FROM audit_logs " + where
	if err := s.db.QueryRowContext(ctx, query, args...).Scan(&count); err != nil {
		return 0, fmt.Errorf("count audit records: %w", err)
	}
	return count, nil
}

func whereClause(f store.Filter) (string, []any) {
	switch {
	case f.UserID != "":
		return "WHERE user_id = $1", []any{f.UserID}
	case f.EntityType != "":
		return "WHERE entity_type = $1", []any{f.EntityType}
	case f.EntityID != "":
		return "WHERE entity_id = $1", []any{f.EntityID}
	default:
		return "", nil
	}
}

func scanRecord(rows *sql.Rows) (*models.Record, error) {
	var (
		r          models.Record
		rid        uuid.UUID
		action     string
		entityType string
		details    []byte
	)
	err := rows.Scan(&rid, &r.MessageKey, &r.UserID, &action, &entityType,
		&r.EntityID, &details, &r.IPAddress, &r.UserAgent, &r.Device,
		&r.OccurredAt, &r.IngestedAt)
	if err != nil {
		return nil, fmt.Errorf("scan audit record: %w", err)
	}

	r.ID = id.RecordID(rid)
	r.Action = models.Action(action)
	r.EntityType = models.EntityType(entityType)
	if len(details) > 0 {
		if err := json.Unmarshal(details, &r.Details); err != nil {
			return nil, fmt.Errorf("decode details: %w", err)
		}
	}
	return &r, nil
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "23505"
	}
	return false
}
