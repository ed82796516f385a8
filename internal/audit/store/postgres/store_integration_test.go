//go:build integration

package postgres_test

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"idplane/internal/audit/models"
	"idplane/internal/audit/store"
	"idplane/internal/audit/store/postgres"
	id "idplane/pkg/domain"
	"idplane/pkg/testutil/containers"
)

type AuditStoreSuite struct {
	suite.Suite
	postgres *containers.PostgresContainer
	store    *postgres.Store
}

func TestAuditStoreSuite(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	suite.Run(t, new(AuditStoreSuite))
}

func (s *AuditStoreSuite) SetupSuite() {
	mgr := containers.GetManager()
	s.postgres = mgr.GetPostgres(s.T())
	s.store = postgres.New(s.postgres.DB)
}

func (s *AuditStoreSuite) SetupTest() {
	s.Require().NoError(s.postgres.TruncateTables(context.Background(), "audit_logs"))
}

func (s *AuditStoreSuite) record(key, userID string, ingestedAt time.Time) *models.Record {
	return &models.Record{
		ID:         id.NewRecordID(),
		MessageKey: key,
		UserID:     userID,
		Action:     models.ActionLogin,
		EntityType: models.EntityAuth,
		Details:    map[string]string{"origin": "test"},
		OccurredAt: ingestedAt,
		IngestedAt: ingestedAt,
	}
}

func (s *AuditStoreSuite) TestInsertIsIdempotentOnMessageKey() {
	ctx := context.Background()
	now := time.Now().UTC()

	first := s.record("evt-1", "user-a", now)
	s.Require().NoError(s.store.Insert(ctx, first))

	// Same message key with a fresh record ID, as a redelivery would carry.
	dup := s.record("evt-1", "user-a", now.Add(time.Second))
	s.Require().NoError(s.store.Insert(ctx, dup))

	total, err := s.store.Count(ctx, store.Filter{})
	s.Require().NoError(err)
	s.EqualValues(1, total)
}

func (s *AuditStoreSuite) TestListNewestFirstWithFilter() {
	ctx := context.Background()
	base := time.Now().UTC().Truncate(time.Millisecond)

	for i := 0; i < 3; i++ {
		r := s.record(fmt.Sprintf("evt-a-%d", i), "user-a", base.Add(time.Duration(i)*time.Second))
		s.Require().NoError(s.store.Insert(ctx, r))
	}
	s.Require().NoError(s.store.Insert(ctx, s.record("evt-b-0", "user-b", base)))

	records, err := s.store.List(ctx, store.Query{
		Filter: store.Filter{UserID: "user-a"},
		Limit:  10,
	})
	s.Require().NoError(err)
	s.Require().Len(records, 3)

	for i := 1; i < len(records); i++ {
		s.False(records[i].IngestedAt.After(records[i-1].IngestedAt))
	}
	for _, r := range records {
		s.Equal("user-a", r.UserID)
		s.Equal("test", r.Details["origin"])
	}
}

func (s *AuditStoreSuite) TestPaginationAndCount() {
	ctx := context.Background()
	base := time.Now().UTC()

	for i := 0; i < 5; i++ {
		r := s.record(fmt.Sprintf("evt-%d", i), "user-a", base.Add(time.Duration(i)*time.Second))
		s.Require().NoError(s.store.Insert(ctx, r))
	}

	page, err := s.store.List(ctx, store.Query{Limit: 2, Offset: 4})
	s.Require().NoError(err)
	s.Len(page, 1)

	total, err := s.store.Count(ctx, store.Filter{})
	s.Require().NoError(err)
	s.EqualValues(5, total)
}
