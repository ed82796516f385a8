// Package events defines the typed event model shared by the services:
// topic names, payload variants, and the envelope that carries them onto
// the broker. Producers build envelopes through the New* constructors so
// partition keys and timestamps are assigned in exactly one place.
package events

import (
	"bytes"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Topic names. The DLQ topic receives messages that exhausted consumer
// retries on the primary audit topic.
const (
	TopicUserRegistered = "user.registered"
	TopicUserLoggedIn   = "user.loggedIn"
	TopicAuditEvent     = "audit.event"
	TopicAuditEventDLQ  = "audit.event.dlq"
)

// fallbackPartitionKey is used when a payload carries neither a user ID nor
// an entity ID. All such events land on one partition, which is acceptable
// because they are rare.
const fallbackPartitionKey = "idplane"

// Payload is implemented by every event payload variant.
type Payload interface {
	// EventType returns the topic this payload belongs to.
	EventType() string
	// PartitionKey returns the broker partition key: the user ID when
	// present, else the entity ID, else a fixed fallback.
	PartitionKey() string
}

// UserRegistered is emitted after a registration commits.
type UserRegistered struct {
	UserID    string    `json:"userId"`
	Email     string    `json:"email"`
	Timestamp time.Time `json:"timestamp"`
}

func (p UserRegistered) EventType() string { return TopicUserRegistered }

func (p UserRegistered) PartitionKey() string {
	if p.UserID != "" {
		return p.UserID
	}
	return fallbackPartitionKey
}

// UserLoggedIn is emitted after a successful login commits.
type UserLoggedIn struct {
	UserID    string    `json:"userId"`
	Email     string    `json:"email"`
	Timestamp time.Time `json:"timestamp"`
}

func (p UserLoggedIn) EventType() string { return TopicUserLoggedIn }

func (p UserLoggedIn) PartitionKey() string {
	if p.UserID != "" {
		return p.UserID
	}
	return fallbackPartitionKey
}

// AuditMessage is the wire form of an audit event. Action and EntityType are
// validated against the audit package's closed enums at the consumer
// boundary, not here; a producer bug must not be able to crash the sink.
type AuditMessage struct {
	UserID     string            `json:"userId,omitempty"`
	Action     string            `json:"action"`
	EntityType string            `json:"entityType"`
	EntityID   string            `json:"entityId,omitempty"`
	Details    map[string]string `json:"details,omitempty"`
	IPAddress  string            `json:"ipAddress,omitempty"`
	UserAgent  string            `json:"userAgent,omitempty"`
	Timestamp  time.Time         `json:"timestamp"`
}

func (p AuditMessage) EventType() string { return TopicAuditEvent }

func (p AuditMessage) PartitionKey() string {
	if p.UserID != "" {
		return p.UserID
	}
	if p.EntityID != "" {
		return p.EntityID
	}
	return fallbackPartitionKey
}

// Envelope is the unit handed to the publisher. EventID, PartitionKey, and
// Timestamp are fixed at construction so retries publish the identical
// record; consumers deduplicate on EventID.
type Envelope struct {
	// EventID uniquely identifies the event across redeliveries.
	EventID      string
	Topic        string
	PartitionKey string
	EventType    string
	Timestamp    time.Time
	Payload      []byte
}

// NewEnvelope wraps a payload for publishing. The payload is serialized
// immediately; a payload that cannot marshal is a programming error and is
// reported as one.
func NewEnvelope(p Payload) (*Envelope, error) {
	raw, err := json.Marshal(p)
	if err != nil {
		return nil, fmt.Errorf("marshal %s payload: %w", p.EventType(), err)
	}

	return &Envelope{
		EventID:      uuid.New().String(),
		Topic:        p.EventType(),
		PartitionKey: p.PartitionKey(),
		EventType:    p.EventType(),
		Timestamp:    time.Now().UTC(),
		Payload:      raw,
	}, nil
}

// DecodeUserRegistered parses a user.registered payload, rejecting unknown
// fields so producer drift is caught instead of silently ignored.
func DecodeUserRegistered(raw []byte) (UserRegistered, error) {
	var p UserRegistered
	if err := decodeStrict(raw, &p); err != nil {
		return UserRegistered{}, fmt.Errorf("decode %s: %w", TopicUserRegistered, err)
	}
	return p, nil
}

// DecodeUserLoggedIn parses a user.loggedIn payload.
func DecodeUserLoggedIn(raw []byte) (UserLoggedIn, error) {
	var p UserLoggedIn
	if err := decodeStrict(raw, &p); err != nil {
		return UserLoggedIn{}, fmt.Errorf("decode %s: %w", TopicUserLoggedIn, err)
	}
	return p, nil
}

// DecodeAuditMessage parses an audit.event payload. Enum validation is left
// to the audit sink; this only guarantees the JSON shape.
func DecodeAuditMessage(raw []byte) (AuditMessage, error) {
	var p AuditMessage
	if err := decodeStrict(raw, &p); err != nil {
		return AuditMessage{}, fmt.Errorf("decode %s: %w", TopicAuditEvent, err)
	}
	return p, nil
}

func decodeStrict(raw []byte, v any) error {
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return err
	}
	// Trailing garbage after the JSON document is also a malformed message.
	if dec.More() {
		return fmt.Errorf("trailing data after payload")
	}
	return nil
}
