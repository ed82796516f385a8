package service

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
	"golang.org/x/crypto/bcrypt"

	"idplane/internal/identity/hasher"
	"idplane/internal/identity/models"
	"idplane/internal/identity/store/mocks"
	"idplane/internal/jwtauth"
	"idplane/internal/outbox"
	id "idplane/pkg/domain"
	dErrors "idplane/pkg/domain-errors"
	"idplane/pkg/platform/tx"
)

func newServiceWithStore(t *testing.T, users *mocks.MockUserStore) *Service {
	t.Helper()
	tokens, err := jwtauth.New(jwtauth.Config{
		AccessSecret:  "test-access-secret",
		RefreshSecret: "test-refresh-secret",
	})
	require.NoError(t, err)

	return New(users, outbox.NewMemoryStore(), tx.NoopTransactor{},
		hasher.NewBcrypt(bcrypt.MinCost), tokens)
}

func TestService_StoreFailuresSurfaceAsInfrastructure(t *testing.T) {
	ctrl := gomock.NewController(t)
	users := mocks.NewMockUserStore(ctrl)
	svc := newServiceWithStore(t, users)
	ctx := context.Background()

	t.Run("register lookup failure", func(t *testing.T) {
		users.EXPECT().FindByEmail(gomock.Any(), "alice@example.com").
			Return(nil, errors.New("connection refused"))

		_, err := svc.Register(ctx, models.RegisterRequest{
			Email:    "alice@example.com",
			Password: "password123",
		})
		require.Error(t, err)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeInfrastructure))
	})

	t.Run("lifecycle lookup failure", func(t *testing.T) {
		userID := id.NewUserID()
		users.EXPECT().FindByID(gomock.Any(), userID).
			Return(nil, errors.New("connection refused"))

		_, err := svc.Activate(ctx, userID)
		require.Error(t, err)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeInfrastructure))
	})

	t.Run("save failure rolls up from the transaction", func(t *testing.T) {
		userID := id.NewUserID()
		users.EXPECT().FindByID(gomock.Any(), userID).
			Return(&models.User{ID: userID, Email: "bob@example.com", Role: models.RoleUser}, nil)
		users.EXPECT().Save(gomock.Any(), gomock.Any()).
			Return(errors.New("write timeout"))

		_, err := svc.Deactivate(ctx, userID)
		require.Error(t, err)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeInfrastructure))
	})
}
