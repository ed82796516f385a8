package service

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"
	"golang.org/x/crypto/bcrypt"

	"idplane/internal/events"
	"idplane/internal/identity/hasher"
	"idplane/internal/identity/models"
	"idplane/internal/identity/store"
	"idplane/internal/jwtauth"
	"idplane/internal/outbox"
	id "idplane/pkg/domain"
	dErrors "idplane/pkg/domain-errors"
	"idplane/pkg/platform/tx"
)

type ServiceSuite struct {
	suite.Suite

	users   *store.InMemoryUserStore
	outbox  *outbox.MemoryStore
	tokens  *jwtauth.Service
	service *Service
}

func TestServiceSuite(t *testing.T) {
	suite.Run(t, new(ServiceSuite))
}

func (s *ServiceSuite) SetupTest() {
	s.users = store.NewMemory()
	s.outbox = outbox.NewMemoryStore()

	tokens, err := jwtauth.New(jwtauth.Config{
		AccessSecret:  "test-access-secret",
		RefreshSecret: "test-refresh-secret",
	})
	s.Require().NoError(err)
	s.tokens = tokens

	s.service = New(
		s.users,
		s.outbox,
		tx.NoopTransactor{},
		hasher.NewBcrypt(bcrypt.MinCost),
		tokens,
		WithTokenVerifier(tokens),
	)
}

func (s *ServiceSuite) register(email, password, role string) models.UserView {
	view, err := s.service.Register(context.Background(), models.RegisterRequest{
		Email:    email,
		Password: password,
		Role:     role,
	})
	s.Require().NoError(err)
	return view
}

func (s *ServiceSuite) pendingEvents() []*outbox.Entry {
	entries, err := s.outbox.FetchUnprocessed(context.Background(), 100)
	s.Require().NoError(err)
	return entries
}

func (s *ServiceSuite) TestRegister() {
	ctx := context.Background()

	s.T().Run("new user starts inactive", func(t *testing.T) {
		view := s.register("alice@example.com", "password123", "")
		assert.Equal(t, "USER", view.Role)
		assert.False(t, view.Active)
	})

	s.T().Run("new admin starts active", func(t *testing.T) {
		view := s.register("root@example.com", "password123", "ADMIN")
		assert.Equal(t, "ADMIN", view.Role)
		assert.True(t, view.Active)
	})

	s.T().Run("duplicate email rejected case-insensitively", func(t *testing.T) {
		_, err := s.service.Register(ctx, models.RegisterRequest{
			Email:    "ALICE@Example.COM",
			Password: "password123",
		})
		require.Error(t, err)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeConflict))
	})

	s.T().Run("invalid email rejected", func(t *testing.T) {
		_, err := s.service.Register(ctx, models.RegisterRequest{
			Email:    "not-an-email",
			Password: "password123",
		})
		require.Error(t, err)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeValidation))
	})

	s.T().Run("short password rejected", func(t *testing.T) {
		_, err := s.service.Register(ctx, models.RegisterRequest{
			Email:    "bob@example.com",
			Password: "short",
		})
		require.Error(t, err)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeValidation))
	})

	s.T().Run("unknown role rejected", func(t *testing.T) {
		_, err := s.service.Register(ctx, models.RegisterRequest{
			Email:    "carol@example.com",
			Password: "password123",
			Role:     "SUPERUSER",
		})
		require.Error(t, err)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeValidation))
	})
}

func (s *ServiceSuite) TestRegisterStagesOutboxEntries() {
	view := s.register("alice@example.com", "password123", "")

	entries := s.pendingEvents()
	s.Require().Len(entries, 2)

	topics := []string{entries[0].Topic, entries[1].Topic}
	s.Contains(topics, events.TopicUserRegistered)
	s.Contains(topics, events.TopicAuditEvent)

	for _, e := range entries {
		s.Equal(view.ID, e.AggregateID, "partition key should be the user ID")
	}

	for _, e := range entries {
		if e.Topic != events.TopicAuditEvent {
			continue
		}
		msg, err := events.DecodeAuditMessage(e.Payload)
		s.Require().NoError(err)
		s.Equal("REGISTER", msg.Action)
		s.Equal("USER", msg.EntityType)
	}
}

func (s *ServiceSuite) TestLogin() {
	ctx := context.Background()
	s.register("admin@example.com", "password123", "ADMIN")
	s.register("user@example.com", "password123", "")

	s.T().Run("active account gets token pair", func(t *testing.T) {
		pair, err := s.service.Login(ctx, models.LoginRequest{
			Email:    "admin@example.com",
			Password: "password123",
		})
		require.NoError(t, err)
		assert.NotEmpty(t, pair.AccessToken)
		assert.NotEmpty(t, pair.RefreshToken)

		claims, err := s.tokens.Verify(pair.AccessToken, jwtauth.TypeAccess)
		require.NoError(t, err)
		assert.Equal(t, "ADMIN", claims.Role)
		assert.Equal(t, "admin@example.com", claims.Email)
	})

	s.T().Run("wrong password rejected", func(t *testing.T) {
		_, err := s.service.Login(ctx, models.LoginRequest{
			Email:    "admin@example.com",
			Password: "wrongpassword",
		})
		require.Error(t, err)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeUnauthorized))
		assert.Equal(t, "invalid credentials", err.Error())
	})

	s.T().Run("unknown email gets the same message", func(t *testing.T) {
		_, err := s.service.Login(ctx, models.LoginRequest{
			Email:    "ghost@example.com",
			Password: "password123",
		})
		require.Error(t, err)
		assert.Equal(t, "invalid credentials", err.Error())
	})

	s.T().Run("inactive account gets a distinct message", func(t *testing.T) {
		_, err := s.service.Login(ctx, models.LoginRequest{
			Email:    "user@example.com",
			Password: "password123",
		})
		require.Error(t, err)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeUnauthorized))
		assert.Equal(t, "account is not active", err.Error())
	})
}

func (s *ServiceSuite) TestLoginStagesEvents() {
	ctx := context.Background()
	s.register("admin@example.com", "password123", "ADMIN")
	before := len(s.pendingEvents())

	_, err := s.service.Login(ctx, models.LoginRequest{
		Email:    "admin@example.com",
		Password: "password123",
	})
	s.Require().NoError(err)

	entries := s.pendingEvents()
	s.Require().Len(entries, before+2)

	var sawLogin, sawAudit bool
	for _, e := range entries[before:] {
		switch e.Topic {
		case events.TopicUserLoggedIn:
			sawLogin = true
		case events.TopicAuditEvent:
			sawAudit = true
			var msg map[string]any
			s.Require().NoError(json.Unmarshal(e.Payload, &msg))
			s.Equal("LOGIN", msg["action"])
			s.Equal("AUTH", msg["entityType"])
		}
	}
	s.True(sawLogin)
	s.True(sawAudit)
}

func (s *ServiceSuite) TestRefresh() {
	ctx := context.Background()
	s.register("admin@example.com", "password123", "ADMIN")

	pair, err := s.service.Login(ctx, models.LoginRequest{
		Email:    "admin@example.com",
		Password: "password123",
	})
	s.Require().NoError(err)

	s.T().Run("valid refresh token mints access token", func(t *testing.T) {
		access, err := s.service.Refresh(ctx, pair.RefreshToken)
		require.NoError(t, err)

		claims, err := s.tokens.Verify(access, jwtauth.TypeAccess)
		require.NoError(t, err)
		assert.Equal(t, "ADMIN", claims.Role)
	})

	s.T().Run("access token rejected as refresh", func(t *testing.T) {
		_, err := s.service.Refresh(ctx, pair.AccessToken)
		require.Error(t, err)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeUnauthorized))
	})
}

func (s *ServiceSuite) TestLifecycle() {
	ctx := context.Background()
	user := s.register("user@example.com", "password123", "")
	admin := s.register("admin@example.com", "password123", "ADMIN")

	userID := s.mustParse(user.ID)
	adminID := s.mustParse(admin.ID)

	s.T().Run("activate then login succeeds", func(t *testing.T) {
		view, err := s.service.Activate(ctx, userID)
		require.NoError(t, err)
		assert.True(t, view.Active)

		_, err = s.service.Login(ctx, models.LoginRequest{
			Email:    "user@example.com",
			Password: "password123",
		})
		assert.NoError(t, err)
	})

	s.T().Run("deactivate blocks login again", func(t *testing.T) {
		view, err := s.service.Deactivate(ctx, userID)
		require.NoError(t, err)
		assert.False(t, view.Active)

		_, err = s.service.Login(ctx, models.LoginRequest{
			Email:    "user@example.com",
			Password: "password123",
		})
		require.Error(t, err)
		assert.Equal(t, "account is not active", err.Error())
	})

	s.T().Run("promote user to admin", func(t *testing.T) {
		view, err := s.service.ChangeRole(ctx, userID, "ADMIN")
		require.NoError(t, err)
		assert.Equal(t, "ADMIN", view.Role)
	})

	s.T().Run("admin cannot be demoted", func(t *testing.T) {
		_, err := s.service.ChangeRole(ctx, adminID, "USER")
		require.Error(t, err)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeForbidden))
	})

	s.T().Run("admin cannot be deleted", func(t *testing.T) {
		err := s.service.DeleteAccount(ctx, adminID)
		require.Error(t, err)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeForbidden))
	})

	s.T().Run("unknown user yields not found", func(t *testing.T) {
		ghost := s.register("ghost@example.com", "password123", "")
		ghostID := s.mustParse(ghost.ID)
		require.NoError(t, s.service.DeleteAccount(ctx, ghostID))

		_, err := s.service.GetUser(ctx, ghostID)
		require.Error(t, err)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeNotFound))
	})
}

func (s *ServiceSuite) TestTokensMintedBeforeRoleChangeKeepOldRole() {
	ctx := context.Background()
	view := s.register("user@example.com", "password123", "")
	userID := s.mustParse(view.ID)

	_, err := s.service.Activate(ctx, userID)
	s.Require().NoError(err)

	pair, err := s.service.Login(ctx, models.LoginRequest{
		Email:    "user@example.com",
		Password: "password123",
	})
	s.Require().NoError(err)

	_, err = s.service.ChangeRole(ctx, userID, "ADMIN")
	s.Require().NoError(err)

	// The in-flight token still asserts USER until it expires.
	claims, err := s.tokens.Verify(pair.AccessToken, jwtauth.TypeAccess)
	s.Require().NoError(err)
	s.Equal("USER", claims.Role)
	s.WithinDuration(time.Now().Add(15*time.Minute), claims.ExpiresAt.Time, time.Minute)
}

func (s *ServiceSuite) mustParse(raw string) id.UserID {
	parsed, err := id.ParseUserID(raw)
	s.Require().NoError(err)
	return parsed
}
