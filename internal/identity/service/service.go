// Package service orchestrates the identity use cases. Every mutating
// operation follows the same shape: validate input, mutate the aggregate
// under its invariants, commit the primary write and the outbox entries in
// one transaction, then do best-effort cache upkeep. The broker is never
// touched on the request path; the relay owns publishing.
package service

import (
	"context"
	"errors"
	"log/slog"

	"idplane/internal/identity/hasher"
	"idplane/internal/identity/store"
	"idplane/internal/jwtauth"
	"idplane/internal/outbox"
	"idplane/internal/platform/metrics"
	id "idplane/pkg/domain"
	dErrors "idplane/pkg/domain-errors"
	"idplane/pkg/platform/sentinel"
	"idplane/pkg/platform/tracer"
	"idplane/pkg/platform/tx"
)

// TokenIssuer mints session tokens. Satisfied by jwtauth.Service.
type TokenIssuer interface {
	GenerateAccessToken(ctx context.Context, userID id.UserID, email, role string) (string, error)
	GenerateRefreshToken(ctx context.Context, userID id.UserID, email, role string) (string, error)
}

// TokenVerifier verifies tokens of a given type. Satisfied by
// jwtauth.Service; only the refresh flow needs it here.
type TokenVerifier interface {
	Verify(tokenString, expectedType string) (*jwtauth.Claims, error)
}

// CacheInvalidator drops cached projections for a user. Failures are
// swallowed by the implementation; the cache repopulates on next read.
type CacheInvalidator interface {
	Delete(ctx context.Context, userID id.UserID)
}

// Service implements the identity use cases.
type Service struct {
	users      store.UserStore
	outbox     outbox.Store
	transactor tx.Transactor
	hasher     hasher.Hasher
	tokens     TokenIssuer
	verifier   TokenVerifier

	cache   CacheInvalidator
	logger  *slog.Logger
	metrics *metrics.Metrics
	tracer  tracer.Tracer
}

// Option configures the Service.
type Option func(*Service)

// WithTokenVerifier enables the refresh flow.
func WithTokenVerifier(v TokenVerifier) Option {
	return func(s *Service) {
		s.verifier = v
	}
}

// WithCacheInvalidator enables best-effort cache cleanup on destructive
// operations.
func WithCacheInvalidator(c CacheInvalidator) Option {
	return func(s *Service) {
		s.cache = c
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) {
		s.logger = logger
	}
}

// WithMetrics sets the metrics collector.
func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Service) {
		s.metrics = m
	}
}

// WithTracer sets the tracer.
func WithTracer(t tracer.Tracer) Option {
	return func(s *Service) {
		s.tracer = t
	}
}

// New creates the identity service. The store, outbox, transactor, hasher,
// and token issuer are required collaborators; everything else is optional.
func New(
	users store.UserStore,
	ob outbox.Store,
	transactor tx.Transactor,
	h hasher.Hasher,
	tokens TokenIssuer,
	opts ...Option,
) *Service {
	s := &Service{
		users:      users,
		outbox:     ob,
		transactor: transactor,
		hasher:     h,
		tokens:     tokens,
		tracer:     tracer.Noop(),
	}

	for _, opt := range opts {
		opt(s)
	}

	return s
}

// mapStoreErr translates store sentinels into coded domain errors.
func mapStoreErr(err error, notFoundMsg string) error {
	switch {
	case errors.Is(err, sentinel.ErrNotFound):
		return dErrors.New(dErrors.CodeNotFound, notFoundMsg)
	case errors.Is(err, sentinel.ErrConflict):
		return dErrors.New(dErrors.CodeConflict, "email already registered")
	default:
		return dErrors.Wrap(err, dErrors.CodeInfrastructure, "user store")
	}
}
