package service

import (
	"context"

	auditmodels "idplane/internal/audit/models"
	"idplane/internal/events"
	"idplane/internal/identity/models"
	"idplane/internal/jwtauth"
	id "idplane/pkg/domain"
	dErrors "idplane/pkg/domain-errors"
	"idplane/pkg/requestcontext"
)

// Login authenticates by email and password and issues an access/refresh
// token pair. Unknown email and wrong password share one failure message;
// an inactive account gets its own, since the caller holds valid
// credentials and needs to know activation is what's missing.
func (s *Service) Login(ctx context.Context, req models.LoginRequest) (models.TokenPair, error) {
	ctx, span := s.tracer.Start(ctx, "identity.login")
	var err error
	defer func() { span.End(err) }()

	user, findErr := s.users.FindByEmail(ctx, req.Email)
	if findErr != nil {
		s.authFailure(ctx, "unknown_email")
		err = dErrors.New(dErrors.CodeUnauthorized, "invalid credentials")
		return models.TokenPair{}, err
	}

	if compareErr := s.hasher.Compare(user.PasswordHash, req.Password); compareErr != nil {
		s.authFailure(ctx, "wrong_password", "user_id", user.ID.String())
		err = dErrors.New(dErrors.CodeUnauthorized, "invalid credentials")
		return models.TokenPair{}, err
	}

	if !user.Active {
		s.authFailure(ctx, "inactive_account", "user_id", user.ID.String())
		err = dErrors.New(dErrors.CodeUnauthorized, "account is not active")
		return models.TokenPair{}, err
	}

	access, err := s.tokens.GenerateAccessToken(ctx, user.ID, user.Email, string(user.Role))
	if err != nil {
		return models.TokenPair{}, err
	}
	refresh, err := s.tokens.GenerateRefreshToken(ctx, user.ID, user.Email, string(user.Role))
	if err != nil {
		return models.TokenPair{}, err
	}

	// The login events ride their own transaction; there is no business row
	// to commit alongside, but they still reach the broker through the
	// outbox like everything else.
	err = s.transactor.WithinTx(ctx, func(ctx context.Context) error {
		if err := s.appendEvent(ctx, "user", events.UserLoggedIn{
			UserID:    user.ID.String(),
			Email:     user.Email,
			Timestamp: requestcontext.Now(ctx).UTC(),
		}); err != nil {
			return err
		}
		return s.appendAudit(ctx,
			auditmodels.ActionLogin,
			auditmodels.EntityAuth,
			user.ID.String(),
			user.ID.String(),
			nil,
		)
	})
	if err != nil {
		return models.TokenPair{}, err
	}

	if s.metrics != nil {
		s.metrics.IncrementLogins()
	}
	if s.logger != nil {
		s.logger.InfoContext(ctx, "user logged in", "user_id", user.ID.String())
	}

	return models.TokenPair{AccessToken: access, RefreshToken: refresh}, nil
}

// Refresh verifies a refresh token and mints a fresh access token carrying
// the claims as asserted at login time. A role change between login and
// refresh is not reflected; that is the stateless-token contract.
func (s *Service) Refresh(ctx context.Context, refreshToken string) (string, error) {
	if s.verifier == nil {
		return "", dErrors.New(dErrors.CodeInternal, "token verifier not configured")
	}

	claims, err := s.verifier.Verify(refreshToken, jwtauth.TypeRefresh)
	if err != nil {
		s.authFailure(ctx, "invalid_refresh_token")
		return "", dErrors.New(dErrors.CodeUnauthorized, "invalid or expired token")
	}

	userID, err := id.ParseUserID(claims.UserID)
	if err != nil {
		s.authFailure(ctx, "invalid_refresh_claims")
		return "", dErrors.New(dErrors.CodeUnauthorized, "invalid or expired token")
	}

	return s.tokens.GenerateAccessToken(ctx, userID, claims.Email, claims.Role)
}
