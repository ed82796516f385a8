package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/suite"

	"idplane/internal/events"
	"idplane/internal/outbox"
	"idplane/internal/profile/models"
	"idplane/internal/profile/store"
	id "idplane/pkg/domain"
	dErrors "idplane/pkg/domain-errors"
	"idplane/pkg/platform/tx"
)

// trackingCache records accessor calls and can simulate a dead backend
// (operations become no-ops, reads always miss).
type trackingCache struct {
	data    map[id.UserID]*models.Profile
	down    bool
	gets    int
	hits    int
	sets    int
	deletes int
}

func newTrackingCache() *trackingCache {
	return &trackingCache{data: make(map[id.UserID]*models.Profile)}
}

func (c *trackingCache) Get(_ context.Context, userID id.UserID) (*models.Profile, bool) {
	c.gets++
	if c.down {
		return nil, false
	}
	p, ok := c.data[userID]
	if ok {
		c.hits++
	}
	return p, ok
}

func (c *trackingCache) Set(_ context.Context, profile *models.Profile) {
	c.sets++
	if c.down {
		return
	}
	c.data[profile.UserID] = profile
}

func (c *trackingCache) Delete(_ context.Context, userID id.UserID) {
	c.deletes++
	if c.down {
		return
	}
	delete(c.data, userID)
}

type ProfileServiceSuite struct {
	suite.Suite

	profiles *store.InMemoryProfileStore
	outbox   *outbox.MemoryStore
	cache    *trackingCache
	service  *Service
}

func TestProfileServiceSuite(t *testing.T) {
	suite.Run(t, new(ProfileServiceSuite))
}

func (s *ProfileServiceSuite) SetupTest() {
	s.profiles = store.NewMemory()
	s.outbox = outbox.NewMemoryStore()
	s.cache = newTrackingCache()
	s.service = New(s.profiles, s.outbox, tx.NoopTransactor{}, s.cache)
}

func (s *ProfileServiceSuite) auditActions() []string {
	entries, err := s.outbox.FetchUnprocessed(context.Background(), 100)
	s.Require().NoError(err)

	var actions []string
	for _, e := range entries {
		msg, err := events.DecodeAuditMessage(e.Payload)
		s.Require().NoError(err)
		s.Equal("USER_PROFILE", msg.EntityType)
		actions = append(actions, msg.Action)
	}
	return actions
}

func (s *ProfileServiceSuite) TestCreateAndGet() {
	ctx := context.Background()
	userID := id.NewUserID()

	created, err := s.service.CreateProfile(ctx, userID, models.ProfileInput{DisplayName: "Alice"})
	s.Require().NoError(err)
	s.Equal(userID, created.UserID)

	// Create warms the cache, so this read is a hit.
	got, err := s.service.GetProfile(ctx, userID)
	s.Require().NoError(err)
	s.Equal(created.ID, got.ID)
	s.Equal(1, s.cache.hits)

	// Second create conflicts.
	_, err = s.service.CreateProfile(ctx, userID, models.ProfileInput{DisplayName: "Alice2"})
	s.Require().Error(err)
	s.True(dErrors.HasCode(err, dErrors.CodeConflict))

	s.Equal([]string{"CREATE"}, s.auditActions())
}

func (s *ProfileServiceSuite) TestGetMissRepopulatesCache() {
	ctx := context.Background()
	userID := id.NewUserID()

	_, err := s.service.CreateProfile(ctx, userID, models.ProfileInput{DisplayName: "Alice"})
	s.Require().NoError(err)

	// Simulate eviction.
	delete(s.cache.data, userID)

	got, err := s.service.GetProfile(ctx, userID)
	s.Require().NoError(err)
	s.Equal("Alice", got.DisplayName)

	// The miss repopulated the cache; this read hits.
	_, err = s.service.GetProfile(ctx, userID)
	s.Require().NoError(err)
	s.Equal(1, s.cache.hits)
}

func (s *ProfileServiceSuite) TestUpdateSyncsCache() {
	ctx := context.Background()
	userID := id.NewUserID()

	_, err := s.service.CreateProfile(ctx, userID, models.ProfileInput{DisplayName: "Alice"})
	s.Require().NoError(err)

	updated, err := s.service.UpdateProfile(ctx, userID, models.ProfileInput{DisplayName: "Alice B", Bio: "new"})
	s.Require().NoError(err)
	s.Equal("Alice B", updated.DisplayName)

	cached, ok := s.cache.data[userID]
	s.Require().True(ok)
	s.Equal("Alice B", cached.DisplayName)

	s.Equal([]string{"CREATE", "UPDATE"}, s.auditActions())
}

func (s *ProfileServiceSuite) TestDeleteDropsCacheAndRow() {
	ctx := context.Background()
	userID := id.NewUserID()

	_, err := s.service.CreateProfile(ctx, userID, models.ProfileInput{DisplayName: "Alice"})
	s.Require().NoError(err)

	s.Require().NoError(s.service.DeleteProfile(ctx, userID))

	_, ok := s.cache.data[userID]
	s.False(ok)

	_, err = s.service.GetProfile(ctx, userID)
	s.Require().Error(err)
	s.True(dErrors.HasCode(err, dErrors.CodeNotFound))

	s.Equal([]string{"CREATE", "DELETE"}, s.auditActions())
}

func (s *ProfileServiceSuite) TestCacheOutageNeverGatesOperations() {
	ctx := context.Background()
	userID := id.NewUserID()
	s.cache.down = true

	created, err := s.service.CreateProfile(ctx, userID, models.ProfileInput{DisplayName: "Alice"})
	s.Require().NoError(err, "create must succeed with a dead cache")

	got, err := s.service.GetProfile(ctx, userID)
	s.Require().NoError(err, "read must fall through to the store")
	s.Equal(created.ID, got.ID)

	_, err = s.service.UpdateProfile(ctx, userID, models.ProfileInput{DisplayName: "Alice B"})
	s.Require().NoError(err)

	s.Require().NoError(s.service.DeleteProfile(ctx, userID))
}

func (s *ProfileServiceSuite) TestValidation() {
	ctx := context.Background()
	userID := id.NewUserID()

	_, err := s.service.CreateProfile(ctx, userID, models.ProfileInput{DisplayName: "   "})
	s.Require().Error(err)
	s.True(dErrors.HasCode(err, dErrors.CodeValidation))

	_, err = s.service.GetProfile(ctx, id.UserID{})
	s.Require().Error(err)
	s.True(dErrors.HasCode(err, dErrors.CodeInvalidInput))
}
