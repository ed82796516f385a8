package service

import (
	"context"

	auditmodels "idplane/internal/audit/models"
	"idplane/internal/identity/models"
	id "idplane/pkg/domain"
	dErrors "idplane/pkg/domain-errors"
	"idplane/pkg/requestcontext"
)

// Activate marks an account active.
func (s *Service) Activate(ctx context.Context, userID id.UserID) (models.UserView, error) {
	return s.setActive(ctx, userID, true)
}

// Deactivate marks an account inactive. Existing tokens remain valid until
// expiry; deactivation only blocks new logins.
func (s *Service) Deactivate(ctx context.Context, userID id.UserID) (models.UserView, error) {
	return s.setActive(ctx, userID, false)
}

func (s *Service) setActive(ctx context.Context, userID id.UserID, active bool) (models.UserView, error) {
	spanName := "identity.deactivate"
	action := auditmodels.ActionDeactivate
	if active {
		spanName = "identity.activate"
		action = auditmodels.ActionActivate
	}
	ctx, span := s.tracer.Start(ctx, spanName)
	var err error
	defer func() { span.End(err) }()

	if userID.IsNil() {
		err = dErrors.New(dErrors.CodeInvalidInput, "user ID is required")
		return models.UserView{}, err
	}

	user, err := s.users.FindByID(ctx, userID)
	if err != nil {
		err = mapStoreErr(err, "user not found")
		return models.UserView{}, err
	}

	now := requestcontext.Now(ctx).UTC()
	if active {
		user.Activate(now)
	} else {
		user.Deactivate(now)
	}

	err = s.transactor.WithinTx(ctx, func(ctx context.Context) error {
		if err := s.users.Save(ctx, user); err != nil {
			return mapStoreErr(err, "user not found")
		}
		return s.appendAudit(ctx, action, auditmodels.EntityUser,
			user.ID.String(), requestActor(ctx, user.ID), nil)
	})
	if err != nil {
		return models.UserView{}, err
	}

	if s.logger != nil {
		s.logger.InfoContext(ctx, "account status changed",
			"user_id", user.ID.String(),
			"active", user.Active,
		)
	}
	return models.ViewOf(user), nil
}

// ChangeRole updates an account's role. Admin accounts cannot be demoted.
func (s *Service) ChangeRole(ctx context.Context, userID id.UserID, newRole string) (models.UserView, error) {
	ctx, span := s.tracer.Start(ctx, "identity.change_role")
	var err error
	defer func() { span.End(err) }()

	if userID.IsNil() {
		err = dErrors.New(dErrors.CodeInvalidInput, "user ID is required")
		return models.UserView{}, err
	}

	role, err := models.ParseRole(newRole)
	if err != nil {
		return models.UserView{}, err
	}

	user, err := s.users.FindByID(ctx, userID)
	if err != nil {
		err = mapStoreErr(err, "user not found")
		return models.UserView{}, err
	}

	previous := user.Role
	if err = user.ChangeRole(role, requestcontext.Now(ctx).UTC()); err != nil {
		return models.UserView{}, err
	}

	err = s.transactor.WithinTx(ctx, func(ctx context.Context) error {
		if err := s.users.Save(ctx, user); err != nil {
			return mapStoreErr(err, "user not found")
		}
		return s.appendAudit(ctx, auditmodels.ActionUpdate, auditmodels.EntityUser,
			user.ID.String(), requestActor(ctx, user.ID),
			map[string]string{"from": string(previous), "to": string(role)})
	})
	if err != nil {
		return models.UserView{}, err
	}

	if s.logger != nil {
		s.logger.InfoContext(ctx, "role changed",
			"user_id", user.ID.String(),
			"from", previous,
			"to", role,
		)
	}
	return models.ViewOf(user), nil
}

// DeleteAccount removes an account. Admin accounts cannot be deleted. The
// cached profile projection is dropped best-effort after the commit.
func (s *Service) DeleteAccount(ctx context.Context, userID id.UserID) error {
	ctx, span := s.tracer.Start(ctx, "identity.delete_account")
	var err error
	defer func() { span.End(err) }()

	if userID.IsNil() {
		err = dErrors.New(dErrors.CodeInvalidInput, "user ID is required")
		return err
	}

	user, err := s.users.FindByID(ctx, userID)
	if err != nil {
		err = mapStoreErr(err, "user not found")
		return err
	}
	if user.IsAdmin() {
		err = dErrors.New(dErrors.CodeForbidden, "admin account cannot be deleted")
		return err
	}

	err = s.transactor.WithinTx(ctx, func(ctx context.Context) error {
		if err := s.users.Delete(ctx, userID); err != nil {
			return mapStoreErr(err, "user not found")
		}
		return s.appendAudit(ctx, auditmodels.ActionDelete, auditmodels.EntityUser,
			user.ID.String(), requestActor(ctx, user.ID), nil)
	})
	if err != nil {
		return err
	}

	s.invalidateCache(ctx, userID)

	if s.logger != nil {
		s.logger.InfoContext(ctx, "account deleted", "user_id", userID.String())
	}
	return nil
}

// GetUser returns a single user by ID.
func (s *Service) GetUser(ctx context.Context, userID id.UserID) (models.UserView, error) {
	if userID.IsNil() {
		return models.UserView{}, dErrors.New(dErrors.CodeInvalidInput, "user ID is required")
	}
	user, err := s.users.FindByID(ctx, userID)
	if err != nil {
		return models.UserView{}, mapStoreErr(err, "user not found")
	}
	return models.ViewOf(user), nil
}

// requestActor attributes an audit entry to the authenticated caller,
// falling back to the affected user for unauthenticated flows.
func requestActor(ctx context.Context, fallback id.UserID) string {
	if actor := requestcontext.UserID(ctx); !actor.IsNil() {
		return actor.String()
	}
	return fallback.String()
}
