//go:build integration

package postgres_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"idplane/internal/identity/models"
	"idplane/internal/identity/store/postgres"
	"idplane/pkg/platform/sentinel"
	"idplane/pkg/testutil/containers"
)

type PostgresStoreSuite struct {
	suite.Suite
	postgres *containers.PostgresContainer
	store    *postgres.Store
}

func TestPostgresStoreSuite(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	suite.Run(t, new(PostgresStoreSuite))
}

func (s *PostgresStoreSuite) SetupSuite() {
	mgr := containers.GetManager()
	s.postgres = mgr.GetPostgres(s.T())
	s.store = postgres.New(s.postgres.DB)
}

func (s *PostgresStoreSuite) SetupTest() {
	s.Require().NoError(s.postgres.TruncateTables(context.Background(), "users"))
}

func (s *PostgresStoreSuite) newUser(email string, role models.Role) *models.User {
	addr, err := models.NewEmail(email)
	s.Require().NoError(err)
	return models.NewUser(addr, "hash", role, time.Now().UTC())
}

func (s *PostgresStoreSuite) TestSaveAndFind() {
	ctx := context.Background()
	user := s.newUser("alice@example.com", models.RoleUser)

	s.Require().NoError(s.store.Save(ctx, user))

	byID, err := s.store.FindByID(ctx, user.ID)
	s.Require().NoError(err)
	s.Equal(user.Email, byID.Email)
	s.Equal(models.RoleUser, byID.Role)
	s.False(byID.Active)

	byEmail, err := s.store.FindByEmail(ctx, "ALICE@EXAMPLE.COM")
	s.Require().NoError(err)
	s.Equal(user.ID, byEmail.ID, "email lookup must be case-insensitive")
}

func (s *PostgresStoreSuite) TestDuplicateEmailDiffersOnlyByCase() {
	ctx := context.Background()

	s.Require().NoError(s.store.Save(ctx, s.newUser("bob@example.com", models.RoleUser)))

	err := s.store.Save(ctx, s.newUser("Bob@Example.com", models.RoleUser))
	s.Require().Error(err)
	s.True(errors.Is(err, sentinel.ErrConflict))
}

func (s *PostgresStoreSuite) TestSaveUpdatesExistingUser() {
	ctx := context.Background()
	user := s.newUser("carol@example.com", models.RoleUser)
	s.Require().NoError(s.store.Save(ctx, user))

	user.Activate(time.Now().UTC())
	s.Require().NoError(s.store.Save(ctx, user))

	got, err := s.store.FindByID(ctx, user.ID)
	s.Require().NoError(err)
	s.True(got.Active)
}

func (s *PostgresStoreSuite) TestDeleteMissingUser() {
	ctx := context.Background()
	user := s.newUser("dave@example.com", models.RoleUser)

	err := s.store.Delete(ctx, user.ID)
	s.Require().Error(err)
	s.True(errors.Is(err, sentinel.ErrNotFound))
}
