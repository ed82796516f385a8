// Package service orchestrates the profile use cases: cache-aside reads
// and persist-then-sync writes. Writes commit the profile row and the
// audit outbox entry in one transaction; the cache update after commit is
// best-effort and never gates the outcome.
package service

import (
	"context"
	"errors"
	"log/slog"

	auditmodels "idplane/internal/audit/models"
	"idplane/internal/events"
	"idplane/internal/outbox"
	"idplane/internal/profile/models"
	"idplane/internal/profile/store"
	id "idplane/pkg/domain"
	dErrors "idplane/pkg/domain-errors"
	"idplane/pkg/platform/sentinel"
	"idplane/pkg/platform/tracer"
	"idplane/pkg/platform/tx"
	"idplane/pkg/requestcontext"
)

// Cache is the cache-aside surface the service needs. All methods are
// best-effort; Get reports a miss instead of an error.
type Cache interface {
	Get(ctx context.Context, userID id.UserID) (*models.Profile, bool)
	Set(ctx context.Context, profile *models.Profile)
	Delete(ctx context.Context, userID id.UserID)
}

// Service implements the profile use cases.
type Service struct {
	profiles   store.ProfileStore
	outbox     outbox.Store
	transactor tx.Transactor
	cache      Cache

	logger *slog.Logger
	tracer tracer.Tracer
}

// Option configures the Service.
type Option func(*Service)

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) {
		s.logger = logger
	}
}

// WithTracer sets the tracer.
func WithTracer(t tracer.Tracer) Option {
	return func(s *Service) {
		s.tracer = t
	}
}

// New creates the profile service.
func New(profiles store.ProfileStore, ob outbox.Store, transactor tx.Transactor, cache Cache, opts ...Option) *Service {
	s := &Service{
		profiles:   profiles,
		outbox:     ob,
		transactor: transactor,
		cache:      cache,
		tracer:     tracer.Noop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// GetProfile is the cache-aside read: cache hit returns immediately, a miss
// falls through to the store and repopulates the cache.
func (s *Service) GetProfile(ctx context.Context, userID id.UserID) (*models.Profile, error) {
	ctx, span := s.tracer.Start(ctx, "profile.get")
	var err error
	defer func() { span.End(err) }()

	if userID.IsNil() {
		err = dErrors.New(dErrors.CodeInvalidInput, "user ID is required")
		return nil, err
	}

	if cached, ok := s.cache.Get(ctx, userID); ok {
		span.SetAttributes(tracer.Bool("cache_hit", true))
		return cached, nil
	}

	profile, err := s.profiles.FindByUserID(ctx, userID)
	if err != nil {
		err = mapStoreErr(err)
		return nil, err
	}

	s.cache.Set(ctx, profile)
	return profile, nil
}

// CreateProfile creates the user's profile. A second create for the same
// user is a conflict.
func (s *Service) CreateProfile(ctx context.Context, userID id.UserID, in models.ProfileInput) (*models.Profile, error) {
	ctx, span := s.tracer.Start(ctx, "profile.create")
	var err error
	defer func() { span.End(err) }()

	if userID.IsNil() {
		err = dErrors.New(dErrors.CodeInvalidInput, "user ID is required")
		return nil, err
	}
	if err = in.Validate(); err != nil {
		return nil, err
	}

	if _, lookupErr := s.profiles.FindByUserID(ctx, userID); lookupErr == nil {
		err = dErrors.New(dErrors.CodeConflict, "profile already exists")
		return nil, err
	} else if !errors.Is(lookupErr, sentinel.ErrNotFound) {
		err = mapStoreErr(lookupErr)
		return nil, err
	}

	profile := models.NewProfile(userID, in, requestcontext.Now(ctx).UTC())

	err = s.persist(ctx, profile, auditmodels.ActionCreate)
	if err != nil {
		return nil, err
	}

	s.cache.Set(ctx, profile)
	s.logInfo(ctx, "profile created", profile)
	return profile, nil
}

// UpdateProfile replaces the mutable fields. After the commit the stale
// cache entry is dropped and repopulated with the fresh row.
func (s *Service) UpdateProfile(ctx context.Context, userID id.UserID, in models.ProfileInput) (*models.Profile, error) {
	ctx, span := s.tracer.Start(ctx, "profile.update")
	var err error
	defer func() { span.End(err) }()

	if userID.IsNil() {
		err = dErrors.New(dErrors.CodeInvalidInput, "user ID is required")
		return nil, err
	}
	if err = in.Validate(); err != nil {
		return nil, err
	}

	profile, err := s.profiles.FindByUserID(ctx, userID)
	if err != nil {
		err = mapStoreErr(err)
		return nil, err
	}

	profile.Apply(in, requestcontext.Now(ctx).UTC())

	err = s.persist(ctx, profile, auditmodels.ActionUpdate)
	if err != nil {
		return nil, err
	}

	// Delete-then-set: if the set fails, readers fall through to the
	// fresh row instead of serving the stale entry.
	s.cache.Delete(ctx, userID)
	s.cache.Set(ctx, profile)
	s.logInfo(ctx, "profile updated", profile)
	return profile, nil
}

// DeleteProfile removes the profile and its cached projection.
func (s *Service) DeleteProfile(ctx context.Context, userID id.UserID) error {
	ctx, span := s.tracer.Start(ctx, "profile.delete")
	var err error
	defer func() { span.End(err) }()

	if userID.IsNil() {
		err = dErrors.New(dErrors.CodeInvalidInput, "user ID is required")
		return err
	}

	profile, err := s.profiles.FindByUserID(ctx, userID)
	if err != nil {
		err = mapStoreErr(err)
		return err
	}

	err = s.transactor.WithinTx(ctx, func(ctx context.Context) error {
		if err := s.profiles.DeleteByUserID(ctx, userID); err != nil {
			return mapStoreErr(err)
		}
		return s.appendAudit(ctx, auditmodels.ActionDelete, profile)
	})
	if err != nil {
		return err
	}

	s.cache.Delete(ctx, userID)
	s.logInfo(ctx, "profile deleted", profile)
	return nil
}

// persist commits the upsert and its audit entry atomically.
func (s *Service) persist(ctx context.Context, profile *models.Profile, action string) error {
	return s.transactor.WithinTx(ctx, func(ctx context.Context) error {
		if err := s.profiles.Save(ctx, profile); err != nil {
			return mapStoreErr(err)
		}
		return s.appendAudit(ctx, action, profile)
	})
}

func (s *Service) appendAudit(ctx context.Context, action string, profile *models.Profile) error {
	env, err := events.NewEnvelope(events.AuditMessage{
		UserID:     profile.UserID.String(),
		Action:     action,
		EntityType: auditmodels.EntityUserProfile,
		EntityID:   profile.ID.String(),
		IPAddress:  requestcontext.ClientIP(ctx),
		UserAgent:  requestcontext.UserAgent(ctx),
		Timestamp:  requestcontext.Now(ctx).UTC(),
	})
	if err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "build event envelope")
	}
	if err := s.outbox.Append(ctx, outbox.FromEnvelope("user_profile", env)); err != nil {
		return dErrors.Wrap(err, dErrors.CodeInfrastructure, "append outbox entry")
	}
	return nil
}

func (s *Service) logInfo(ctx context.Context, msg string, profile *models.Profile) {
	if s.logger != nil {
		s.logger.InfoContext(ctx, msg,
			"user_id", profile.UserID.String(),
			"profile_id", profile.ID.String(),
		)
	}
}

func mapStoreErr(err error) error {
	switch {
	case errors.Is(err, sentinel.ErrNotFound):
		return dErrors.New(dErrors.CodeNotFound, "profile not found")
	case errors.Is(err, sentinel.ErrConflict):
		return dErrors.New(dErrors.CodeConflict, "profile already exists")
	default:
		return dErrors.Wrap(err, dErrors.CodeInfrastructure, "profile store")
	}
}
