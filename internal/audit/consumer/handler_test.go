package consumer

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"idplane/internal/audit/store"
	"idplane/internal/events"
	"idplane/internal/platform/kafka/consumer"
)

func auditMessage(t *testing.T, payload events.AuditMessage, eventID string) *consumer.Message {
	t.Helper()
	raw, err := json.Marshal(payload)
	require.NoError(t, err)

	return &consumer.Message{
		Topic:     events.TopicAuditEvent,
		Partition: 0,
		Offset:    1,
		Key:       []byte(payload.UserID),
		Value:     raw,
		Headers:   map[string]string{"event_id": eventID},
		Timestamp: time.Now(),
	}
}

func TestHandler_IngestsValidMessage(t *testing.T) {
	ctx := context.Background()
	records := store.NewMemory()
	h := NewHandler(records, nil, nil)

	msg := auditMessage(t, events.AuditMessage{
		UserID:     "2f0c8b9e-46f2-4b41-9f3c-0e8f2b7d91aa",
		Action:     "LOGIN",
		EntityType: "AUTH",
		UserAgent:  "Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0 Safari/537.36",
		Timestamp:  time.Now().UTC(),
	}, "evt-1")

	require.NoError(t, h.Handle(ctx, msg))

	got, err := records.List(ctx, store.Query{Limit: 10})
	require.NoError(t, err)
	require.Len(t, got, 1)

	record := got[0]
	assert.Equal(t, "evt-1", record.MessageKey)
	assert.EqualValues(t, "LOGIN", record.Action)
	assert.EqualValues(t, "AUTH", record.EntityType)
	assert.Contains(t, record.Device, "Chrome")
	assert.False(t, record.IngestedAt.IsZero())
}

func TestHandler_RedeliveryIsIdempotent(t *testing.T) {
	ctx := context.Background()
	records := store.NewMemory()
	h := NewHandler(records, nil, nil)

	msg := auditMessage(t, events.AuditMessage{
		UserID:     "2f0c8b9e-46f2-4b41-9f3c-0e8f2b7d91aa",
		Action:     "READ",
		EntityType: "USER",
	}, "evt-dup")

	require.NoError(t, h.Handle(ctx, msg))
	require.NoError(t, h.Handle(ctx, msg))

	total, err := records.Count(ctx, store.Filter{})
	require.NoError(t, err)
	assert.EqualValues(t, 1, total)
}

func TestHandler_DropsInvalidMessages(t *testing.T) {
	ctx := context.Background()
	records := store.NewMemory()
	h := NewHandler(records, nil, nil)

	t.Run("unknown action", func(t *testing.T) {
		msg := auditMessage(t, events.AuditMessage{
			Action:     "EXPLODE",
			EntityType: "USER",
		}, "evt-bad-action")
		assert.NoError(t, h.Handle(ctx, msg), "drop must commit, not retry")
	})

	t.Run("unknown entity type", func(t *testing.T) {
		msg := auditMessage(t, events.AuditMessage{
			Action:     "READ",
			EntityType: "SPACESHIP",
		}, "evt-bad-entity")
		assert.NoError(t, h.Handle(ctx, msg))
	})

	t.Run("missing enums", func(t *testing.T) {
		msg := auditMessage(t, events.AuditMessage{}, "evt-empty")
		assert.NoError(t, h.Handle(ctx, msg))
	})

	t.Run("malformed json", func(t *testing.T) {
		msg := &consumer.Message{
			Topic: events.TopicAuditEvent,
			Value: []byte("{broken"),
		}
		assert.NoError(t, h.Handle(ctx, msg))
	})

	total, err := records.Count(ctx, store.Filter{})
	require.NoError(t, err)
	assert.Zero(t, total, "no dropped message may produce a record")
}
