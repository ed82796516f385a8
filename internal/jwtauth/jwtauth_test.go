package jwtauth

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	id "idplane/pkg/domain"
	dErrors "idplane/pkg/domain-errors"
	"idplane/pkg/requestcontext"
)

func newTestService(t *testing.T) *Service {
	t.Helper()
	svc, err := New(Config{
		AccessSecret:  "access-secret-for-tests",
		RefreshSecret: "refresh-secret-for-tests",
		AccessTTL:     15 * time.Minute,
		RefreshTTL:    7 * 24 * time.Hour,
		Issuer:        "idplane-test",
	})
	require.NoError(t, err)
	return svc
}

func TestService_AccessTokenRoundTrip(t *testing.T) {
	svc := newTestService(t)
	userID := id.NewUserID()

	token, err := svc.GenerateAccessToken(context.Background(), userID, "alice@example.com", "ADMIN")
	require.NoError(t, err)

	claims, err := svc.Verify(token, TypeAccess)
	require.NoError(t, err)
	assert.Equal(t, userID.String(), claims.UserID)
	assert.Equal(t, "alice@example.com", claims.Email)
	assert.Equal(t, "ADMIN", claims.Role)
	assert.Equal(t, TypeAccess, claims.Type)
}

func TestService_TypeMismatchRejected(t *testing.T) {
	svc := newTestService(t)
	userID := id.NewUserID()

	refresh, err := svc.GenerateRefreshToken(context.Background(), userID, "alice@example.com", "USER")
	require.NoError(t, err)

	// A refresh token must never pass access verification, and vice versa.
	_, err = svc.Verify(refresh, TypeAccess)
	require.Error(t, err)
	assert.True(t, dErrors.HasCode(err, dErrors.CodeUnauthorized))

	access, err := svc.GenerateAccessToken(context.Background(), userID, "alice@example.com", "USER")
	require.NoError(t, err)

	_, err = svc.Verify(access, TypeRefresh)
	require.Error(t, err)
	assert.True(t, dErrors.HasCode(err, dErrors.CodeUnauthorized))
}

func TestService_ExpiredTokenRejected(t *testing.T) {
	svc := newTestService(t)
	userID := id.NewUserID()

	past := requestcontext.WithTime(context.Background(), time.Now().Add(-time.Hour))
	token, err := svc.GenerateAccessToken(past, userID, "alice@example.com", "USER")
	require.NoError(t, err)

	_, err = svc.Verify(token, TypeAccess)
	require.Error(t, err)
	assert.True(t, dErrors.HasCode(err, dErrors.CodeUnauthorized))
}

func TestService_TamperedTokenRejected(t *testing.T) {
	svc := newTestService(t)
	userID := id.NewUserID()

	token, err := svc.GenerateAccessToken(context.Background(), userID, "alice@example.com", "USER")
	require.NoError(t, err)

	tampered := token[:len(token)-2] + "xx"
	_, err = svc.Verify(tampered, TypeAccess)
	require.Error(t, err)
	assert.True(t, dErrors.HasCode(err, dErrors.CodeUnauthorized))
}

func TestService_WrongSecretRejected(t *testing.T) {
	svc := newTestService(t)
	other, err := New(Config{
		AccessSecret:  "different-access-secret",
		RefreshSecret: "different-refresh-secret",
	})
	require.NoError(t, err)

	token, err := other.GenerateAccessToken(context.Background(), id.NewUserID(), "a@example.com", "USER")
	require.NoError(t, err)

	_, err = svc.Verify(token, TypeAccess)
	require.Error(t, err)
	assert.True(t, dErrors.HasCode(err, dErrors.CodeUnauthorized))
}

func TestService_RoleChangeDoesNotAffectExistingToken(t *testing.T) {
	svc := newTestService(t)
	userID := id.NewUserID()

	before, err := svc.GenerateAccessToken(context.Background(), userID, "a@example.com", "USER")
	require.NoError(t, err)

	// Token minted before a promotion keeps asserting the old role.
	claims, err := svc.Verify(before, TypeAccess)
	require.NoError(t, err)
	assert.Equal(t, "USER", claims.Role)

	after, err := svc.GenerateAccessToken(context.Background(), userID, "a@example.com", "ADMIN")
	require.NoError(t, err)

	claims, err = svc.Verify(after, TypeAccess)
	require.NoError(t, err)
	assert.Equal(t, "ADMIN", claims.Role)
}
