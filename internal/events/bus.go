package events

import (
	"context"
	"log/slog"

	"idplane/internal/platform/kafka/producer"
	dErrors "idplane/pkg/domain-errors"
)

// Producer is the broker-facing contract the Bus needs. Satisfied by the
// franz-go producer and by the noop producer in tests.
type Producer interface {
	Produce(ctx context.Context, msg *producer.Message) error
}

// Bus publishes envelopes to the broker. Publish returns only after the
// broker has acknowledged the write. Request paths never use the Bus
// directly; the outbox relay is its only caller in production.
type Bus struct {
	producer Producer
	logger   *slog.Logger
}

// NewBus creates a Bus over the given producer.
func NewBus(prod Producer, logger *slog.Logger) *Bus {
	return &Bus{producer: prod, logger: logger}
}

// Publish sends the envelope to its topic. A broker failure surfaces as an
// infrastructure-coded error so callers can distinguish it from domain
// failures.
func (b *Bus) Publish(ctx context.Context, env *Envelope) error {
	msg := &producer.Message{
		Topic: env.Topic,
		Key:   []byte(env.PartitionKey),
		Value: env.Payload,
		Headers: map[string]string{
			"event_id":   env.EventID,
			"event_type": env.EventType,
			"emitted_at": env.Timestamp.Format("2006-01-02T15:04:05.000Z07:00"),
		},
	}

	if err := b.producer.Produce(ctx, msg); err != nil {
		if b.logger != nil {
			b.logger.Error("event publish failed",
				"topic", env.Topic,
				"event_type", env.EventType,
				"error", err,
			)
		}
		return dErrors.Wrap(err, dErrors.CodeInfrastructure, "publish event")
	}

	return nil
}
