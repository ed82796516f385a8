// Package consumer turns audit.event messages into persisted records. This
// is the validation boundary: anything outside the closed enums or with a
// broken shape is logged and dropped, never retried, because redelivery
// would fail identically forever.
package consumer

import (
	"context"
	"fmt"
	"log/slog"

	"idplane/internal/audit/device"
	"idplane/internal/audit/models"
	"idplane/internal/audit/store"
	"idplane/internal/events"
	"idplane/internal/platform/kafka/consumer"
	"idplane/internal/platform/metrics"
	id "idplane/pkg/domain"
	dErrors "idplane/pkg/domain-errors"
	"idplane/pkg/requestcontext"
)

// Handler implements consumer.Handler for the audit.event topic.
type Handler struct {
	store   store.RecordStore
	logger  *slog.Logger
	metrics *metrics.Metrics
}

// NewHandler creates the audit sink handler.
func NewHandler(s store.RecordStore, logger *slog.Logger, m *metrics.Metrics) *Handler {
	return &Handler{store: s, logger: logger, metrics: m}
}

// Handle ingests one audit message. A nil return commits the offset, which
// covers both success and deliberate drops; only infrastructure failures
// return an error and trigger the consumer's retry path.
func (h *Handler) Handle(ctx context.Context, msg *consumer.Message) error {
	payload, err := events.DecodeAuditMessage(msg.Value)
	if err != nil {
		h.drop(msg, "malformed_payload", err)
		return nil
	}

	record := &models.Record{
		ID:         id.NewRecordID(),
		MessageKey: messageKey(msg),
		UserID:     payload.UserID,
		Action:     models.Action(payload.Action),
		EntityType: models.EntityType(payload.EntityType),
		EntityID:   payload.EntityID,
		Details:    payload.Details,
		IPAddress:  payload.IPAddress,
		UserAgent:  payload.UserAgent,
		Device:     device.Summarize(payload.UserAgent),
		OccurredAt: payload.Timestamp,
		IngestedAt: requestcontext.Now(ctx).UTC(),
	}

	if err := record.Validate(); err != nil {
		h.drop(msg, "invalid_enum", err)
		return nil
	}

	if err := h.store.Insert(ctx, record); err != nil {
		if h.logger != nil {
			h.logger.Error("failed to persist audit record",
				"message_key", record.MessageKey,
				"action", record.Action,
				"error", err,
			)
		}
		return dErrors.Wrap(err, dErrors.CodeInfrastructure, "persist audit record")
	}

	if h.metrics != nil {
		h.metrics.IncrementAuditIngested()
	}
	return nil
}

// messageKey identifies an event for idempotent ingestion. The relay
// stamps every message with its outbox entry ID, which survives
// republication; the partition/offset fallback only covers messages from
// producers outside the outbox path.
func messageKey(msg *consumer.Message) string {
	if eventID := msg.Headers["event_id"]; eventID != "" {
		return eventID
	}
	return fmt.Sprintf("%s/%d/%d", msg.Topic, msg.Partition, msg.Offset)
}

func (h *Handler) drop(msg *consumer.Message, reason string, err error) {
	if h.logger != nil {
		h.logger.Warn("audit message dropped",
			"reason", reason,
			"topic", msg.Topic,
			"partition", msg.Partition,
			"offset", msg.Offset,
			"error", err,
		)
	}
	if h.metrics != nil {
		h.metrics.IncrementAuditDropped(reason)
	}
}
