package service

import (
	"context"

	"idplane/internal/events"
	"idplane/internal/outbox"
	id "idplane/pkg/domain"
	dErrors "idplane/pkg/domain-errors"
	"idplane/pkg/requestcontext"
)

// appendEvent serializes a payload and appends it to the outbox. Must be
// called inside the use case transaction so the event commits with the
// business write.
func (s *Service) appendEvent(ctx context.Context, aggregateType string, payload events.Payload) error {
	env, err := events.NewEnvelope(payload)
	if err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "build event envelope")
	}
	if err := s.outbox.Append(ctx, outbox.FromEnvelope(aggregateType, env)); err != nil {
		return dErrors.Wrap(err, dErrors.CodeInfrastructure, "append outbox entry")
	}
	return nil
}

// appendAudit stages an audit message enriched with the request's client
// metadata.
func (s *Service) appendAudit(ctx context.Context, action, entityType, entityID, userID string, details map[string]string) error {
	return s.appendEvent(ctx, "user", events.AuditMessage{
		UserID:     userID,
		Action:     action,
		EntityType: entityType,
		EntityID:   entityID,
		Details:    details,
		IPAddress:  requestcontext.ClientIP(ctx),
		UserAgent:  requestcontext.UserAgent(ctx),
		Timestamp:  requestcontext.Now(ctx).UTC(),
	})
}

// authFailure logs and counts a failed authentication attempt.
func (s *Service) authFailure(ctx context.Context, reason string, attributes ...any) {
	if s.logger != nil {
		args := append(attributes, "reason", reason, "request_id", requestcontext.RequestID(ctx))
		s.logger.WarnContext(ctx, "authentication failed", args...)
	}
	if s.metrics != nil {
		s.metrics.IncrementAuthFailures()
	}
}

// invalidateCache drops cached projections for the user, best-effort.
func (s *Service) invalidateCache(ctx context.Context, userID id.UserID) {
	if s.cache == nil {
		return
	}
	s.cache.Delete(ctx, userID)
}
