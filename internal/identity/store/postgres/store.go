// Package postgres persists users in PostgreSQL with plain database/sql.
// A unique index on lower(email) enforces case-insensitive email
// uniqueness at the database level.
package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"

	"idplane/internal/identity/models"
	id "idplane/pkg/domain"
	"idplane/pkg/platform/sentinel"
	platformtx "idplane/pkg/platform/tx"
)

// Store persists users in PostgreSQL.
type Store struct {
	db *sql.DB
}

// New constructs a PostgreSQL-backed user store.
func New(db *sql.DB) *Store {
	return &Store{db: db}
}

type executor interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func (s *Store) executor(ctx context.Context) executor {
	if tx, ok := platformtx.From(ctx); ok {
		return tx
	}
	return s.db
}

// Save upserts a user by ID. Joins the caller's transaction when one is
// carried in the context.
func (s *Store) Save(ctx context.Context, user *models.User) error {
	if user == nil {
		return fmt.Errorf("user is required")
	}

	const q = `
		INSERT INTO users (id, email, password_hash, role, active, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (id) DO UPDATE SET
			email = EXCLUDED.email,
			password_hash = EXCLUDED.password_hash,
			role = EXCLUDED.role,
			active = EXCLUDED.active,
			updated_at = EXCLUDED.updated_at`

	_, err := s.executor(ctx).ExecContext(ctx, q,
		uuid.UUID(user.ID),
		user.Email,
		user.PasswordHash,
		string(user.Role),
		user.Active,
		user.CreatedAt,
		user.UpdatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("email already registered: %w", sentinel.ErrConflict)
		}
		return fmt.Errorf("save user: %w", err)
	}
	return nil
}

func (s *Store) FindByID(ctx context.Context, userID id.UserID) (*models.User, error) {
	const q = `
		SELECT id, email, password_hash, role, active, created_at, updated_at
		FROM users WHERE id = $1`

	return s.scanUser(s.executor(ctx).QueryRowContext(ctx, q, uuid.UUID(userID)), "find user by id")
}

func (s *Store) FindByEmail(ctx context.Context, email string) (*models.User, error) {
	const q = `
		SELECT id, email, password_hash, role, active, created_at, updated_at
		FROM users WHERE lower(email) = lower($1)`

	return s.scanUser(s.executor(ctx).QueryRowContext(ctx, q, email), "find user by email")
}

func (s *Store) Delete(ctx context.Context, userID id.UserID) error {
	const q = `DELETE FROM users WHERE id = $1`

	res, err := s.executor(ctx).ExecContext(ctx, q, uuid.UUID(userID))
	if err != nil {
		return fmt.Errorf("delete user: %w", err)
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete user rows: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("user not found: %w", sentinel.ErrNotFound)
	}
	return nil
}

func (s *Store) scanUser(row *sql.Row, op string) (*models.User, error) {
	var (
		u    models.User
		uid  uuid.UUID
		role string
	)
	err := row.Scan(&uid, &u.Email, &u.PasswordHash, &role, &u.Active, &u.CreatedAt, &u.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("user not found: %w", sentinel.ErrNotFound)
		}
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	u.ID = id.UserID(uid)
	u.Role = models.Role(role)
	return &u, nil
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "23505"
	}
	return false
}
