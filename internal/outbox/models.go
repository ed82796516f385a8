// Package outbox implements the transactional outbox: mutating use cases
// append entries in the same database transaction as their primary write,
// and a relay worker publishes them to the broker afterwards. Request paths
// never touch the broker directly.
package outbox

import (
	"time"

	"github.com/google/uuid"

	"idplane/internal/events"
)

// Entry represents a pending event in the outbox table.
type Entry struct {
	ID            uuid.UUID
	AggregateType string // e.g. "user", "user_profile"
	AggregateID   string // doubles as the broker partition key
	Topic         string
	EventType     string
	Payload       []byte     // JSON-encoded event payload
	CreatedAt     time.Time  // when the entry was appended
	ProcessedAt   *time.Time // NULL = pending, non-NULL = published
}

// IsPending returns true if this entry has not been published yet.
func (e *Entry) IsPending() bool {
	return e.ProcessedAt == nil
}

// NewEntry creates an outbox entry with a generated UUID.
func NewEntry(aggregateType, aggregateID, topic, eventType string, payload []byte) *Entry {
	return &Entry{
		ID:            uuid.New(),
		AggregateType: aggregateType,
		AggregateID:   aggregateID,
		Topic:         topic,
		EventType:     eventType,
		Payload:       payload,
		CreatedAt:     time.Now().UTC(),
	}
}

// FromEnvelope builds an entry from an event envelope. The envelope's
// partition key becomes the aggregate ID so the relay republishes with the
// exact same key derivation the producer used, and the envelope's event ID
// becomes the entry ID so redeliveries stay deduplicatable downstream.
func FromEnvelope(aggregateType string, env *events.Envelope) *Entry {
	entry := NewEntry(aggregateType, env.PartitionKey, env.Topic, env.EventType, env.Payload)
	if eventID, err := uuid.Parse(env.EventID); err == nil {
		entry.ID = eventID
	}
	return entry
}

// Envelope reconstructs the broker envelope for the relay. Timestamp is the
// append time so a retried publish carries the identical record.
func (e *Entry) Envelope() *events.Envelope {
	return &events.Envelope{
		EventID:      e.ID.String(),
		Topic:        e.Topic,
		PartitionKey: e.AggregateID,
		EventType:    e.EventType,
		Timestamp:    e.CreatedAt,
		Payload:      e.Payload,
	}
}
