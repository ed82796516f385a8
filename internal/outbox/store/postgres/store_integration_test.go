//go:build integration

package postgres_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/suite"

	"idplane/internal/events"
	"idplane/internal/outbox"
	"idplane/internal/outbox/store/postgres"
	"idplane/pkg/platform/sentinel"
	platformtx "idplane/pkg/platform/tx"
	"idplane/pkg/testutil/containers"
)

type OutboxStoreSuite struct {
	suite.Suite
	postgres *containers.PostgresContainer
	store    *postgres.Store
}

func TestOutboxStoreSuite(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	suite.Run(t, new(OutboxStoreSuite))
}

func (s *OutboxStoreSuite) SetupSuite() {
	mgr := containers.GetManager()
	s.postgres = mgr.GetPostgres(s.T())
	s.store = postgres.New(s.postgres.DB)
}

func (s *OutboxStoreSuite) SetupTest() {
	s.Require().NoError(s.postgres.TruncateTables(context.Background(), "outbox"))
}

func (s *OutboxStoreSuite) entry(aggregateID string) *outbox.Entry {
	return outbox.NewEntry("user", aggregateID, events.TopicUserRegistered,
		events.TopicUserRegistered, []byte(`{"userId":"`+aggregateID+`"}`))
}

func (s *OutboxStoreSuite) TestAppendFetchMark() {
	ctx := context.Background()
	entry := s.entry(uuid.NewString())

	s.Require().NoError(s.store.Append(ctx, entry))

	pending, err := s.store.FetchUnprocessed(ctx, 10)
	s.Require().NoError(err)
	s.Require().Len(pending, 1)
	s.Equal(entry.ID, pending[0].ID)
	s.True(pending[0].IsPending())

	s.Require().NoError(s.store.MarkProcessed(ctx, entry.ID, time.Now().UTC()))

	pending, err = s.store.FetchUnprocessed(ctx, 10)
	s.Require().NoError(err)
	s.Empty(pending)

	count, err := s.store.CountPending(ctx)
	s.Require().NoError(err)
	s.Zero(count)
}

func (s *OutboxStoreSuite) TestAppendRollsBackWithTransaction() {
	ctx := context.Background()

	tx, err := s.postgres.DB.BeginTx(ctx, nil)
	s.Require().NoError(err)

	txCtx := platformtx.With(ctx, tx)
	s.Require().NoError(s.store.Append(txCtx, s.entry(uuid.NewString())))
	s.Require().NoError(tx.Rollback())

	count, err := s.store.CountPending(ctx)
	s.Require().NoError(err)
	s.Zero(count, "a rolled back business transaction must take its outbox entry with it")
}

func (s *OutboxStoreSuite) TestFetchOrdersOldestFirst() {
	ctx := context.Background()

	first := s.entry(uuid.NewString())
	first.CreatedAt = time.Now().UTC().Add(-time.Minute)
	second := s.entry(uuid.NewString())

	s.Require().NoError(s.store.Append(ctx, second))
	s.Require().NoError(s.store.Append(ctx, first))

	pending, err := s.store.FetchUnprocessed(ctx, 10)
	s.Require().NoError(err)
	s.Require().Len(pending, 2)
	s.Equal(first.ID, pending[0].ID)
}

func (s *OutboxStoreSuite) TestMarkProcessedTwice() {
	ctx := context.Background()
	entry := s.entry(uuid.NewString())
	s.Require().NoError(s.store.Append(ctx, entry))

	now := time.Now().UTC()
	s.Require().NoError(s.store.MarkProcessed(ctx, entry.ID, now))

	err := s.store.MarkProcessed(ctx, entry.ID, now)
	s.Require().Error(err)
	s.True(errors.Is(err, sentinel.ErrNotFound))
}

func (s *OutboxStoreSuite) TestDeleteProcessedBefore() {
	ctx := context.Background()
	entry := s.entry(uuid.NewString())
	s.Require().NoError(s.store.Append(ctx, entry))
	s.Require().NoError(s.store.MarkProcessed(ctx, entry.ID, time.Now().UTC().Add(-time.Hour)))

	deleted, err := s.store.DeleteProcessedBefore(ctx, time.Now().UTC())
	s.Require().NoError(err)
	s.EqualValues(1, deleted)
}
