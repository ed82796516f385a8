// Package postgres persists profiles in PostgreSQL with plain database/sql.
package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"idplane/internal/profile/models"
	id "idplane/pkg/domain"
	"idplane/pkg/platform/sentinel"
	platformtx "idplane/pkg/platform/tx"
)

// Store persists profiles in PostgreSQL.
type Store struct {
	db *sql.DB
}

// New constructs a PostgreSQL-backed profile store.
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

// Save upserts a profile by user ID, which holds the one-profile-per-user
// invariant at the database level.
func (s *Store) Save(ctx context.Context, profile *models.Profile) error {
	if profile == nil {
		return fmt.Errorf("profile is required")
	}

	const q = `
		INSERT INTO user_profiles (id, user_id, display_name, bio, avatar_url, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (user_id) DO UPDATE SET
			display_name = EXCLUDED.display_name,
			bio = EXCLUDED.bio,
			avatar_url = EXCLUDED.avatar_url,
			updated_at = EXCLUDED.updated_at`

	_, err := s.executor(ctx).ExecContext(ctx, q,
		uuid.UUID(profile.ID),
		uuid.UUID(profile.UserID),
		profile.DisplayName,
		profile.Bio,
		profile.AvatarURL,
		profile.CreatedAt,
		profile.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("save profile: %w", err)
	}
	return nil
}

func (s *Store) FindByUserID(ctx context.Context, userID id.UserID) (*models.Profile, error) {
	const q = `
		SELECT id, user_id, display_name, bio, avatar_url, created_at, updated_at
		FROM user_profiles WHERE user_id = $1`

	var (
		p   models.Profile
		pid uuid.UUID
		uid uuid.UUID
	)
	err := s.executor(ctx).QueryRowContext(ctx, q, uuid.UUID(userID)).
		Scan(&pid, &uid, &p.DisplayName, &p.Bio, &p.AvatarURL, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("profile not found: %w", sentinel.ErrNotFound)
		}
		return nil, fmt.Errorf("find profile: %w", err)
	}
	p.ID = id.ProfileID(pid)
	p.UserID = id.UserID(uid)
	return &p, nil
}

func (s *Store) DeleteByUserID(ctx context.Context, userID id.UserID) error {
	const q = `DELETE FROM user_profiles WHERE user_id = $1`

	res, err := s.executor(ctx).ExecContext(ctx, q, uuid.UUID(userID))
	if err != nil {
		return fmt.Errorf("delete profile: %w", err)
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete profile rows: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("profile not found: %w", sentinel.ErrNotFound)
	}
	return nil
}
