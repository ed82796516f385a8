// Package store defines the user persistence contract and its in-memory
// implementation.
package store

import (
	"context"

	"idplane/internal/identity/models"
	id "idplane/pkg/domain"
)

//go:generate mockgen -destination=mocks/store_mock.go -package=mocks idplane/internal/identity/store UserStore

// UserStore persists user aggregates. Save is an upsert keyed by ID.
// Implementations join an active transaction carried in the context so the
// outbox append and the user write commit together.
type UserStore interface {
	Save(ctx context.Context, user *models.User) error
	FindByID(ctx context.Context, userID id.UserID) (*models.User, error)
	// FindByEmail looks up by normalized (lowercase) email.
	FindByEmail(ctx context.Context, email string) (*models.User, error)
	Delete(ctx context.Context, userID id.UserID) error
}
