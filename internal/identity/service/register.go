package service

import (
	"context"
	"errors"

	auditmodels "idplane/internal/audit/models"
	"idplane/internal/events"
	"idplane/internal/identity/models"
	dErrors "idplane/pkg/domain-errors"
	"idplane/pkg/platform/sentinel"
	"idplane/pkg/platform/tracer"
	"idplane/pkg/requestcontext"
)

// Register creates a new account. A new admin starts active; a regular user
// starts inactive until an admin activates it. The user row, the
// user.registered event, and the REGISTER audit entry commit atomically.
func (s *Service) Register(ctx context.Context, req models.RegisterRequest) (models.UserView, error) {
	ctx, span := s.tracer.Start(ctx, "identity.register")
	var err error
	defer func() { span.End(err) }()

	email, err := models.NewEmail(req.Email)
	if err != nil {
		return models.UserView{}, err
	}

	password, err := models.NewPassword(req.Password)
	if err != nil {
		return models.UserView{}, err
	}

	role := models.RoleUser
	if req.Role != "" {
		role, err = models.ParseRole(req.Role)
		if err != nil {
			return models.UserView{}, err
		}
	}

	// Fast duplicate check; the unique index on lower(email) closes the
	// race between concurrent registrations.
	if _, lookupErr := s.users.FindByEmail(ctx, email.String()); lookupErr == nil {
		err = dErrors.New(dErrors.CodeConflict, "email already registered")
		return models.UserView{}, err
	} else if !errors.Is(lookupErr, sentinel.ErrNotFound) {
		err = mapStoreErr(lookupErr, "user not found")
		return models.UserView{}, err
	}

	hash, err := s.hasher.Hash(password.String())
	if err != nil {
		return models.UserView{}, err
	}

	user := models.NewUser(email, hash, role, requestcontext.Now(ctx).UTC())
	span.SetAttributes(tracer.String("user_id", user.ID.String()))

	err = s.transactor.WithinTx(ctx, func(ctx context.Context) error {
		if err := s.users.Save(ctx, user); err != nil {
			return mapStoreErr(err, "user not found")
		}
		if err := s.appendEvent(ctx, "user", events.UserRegistered{
			UserID:    user.ID.String(),
			Email:     user.Email,
			Timestamp: user.CreatedAt,
		}); err != nil {
			return err
		}
		return s.appendAudit(ctx,
			auditmodels.ActionRegister,
			auditmodels.EntityUser,
			user.ID.String(),
			user.ID.String(),
			map[string]string{"role": string(user.Role)},
		)
	})
	if err != nil {
		return models.UserView{}, err
	}

	if s.metrics != nil {
		s.metrics.IncrementUsersRegistered()
	}
	if s.logger != nil {
		s.logger.InfoContext(ctx, "user registered",
			"user_id", user.ID.String(),
			"role", user.Role,
			"active", user.Active,
		)
	}

	return models.ViewOf(user), nil
}
