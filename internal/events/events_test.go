package events

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"idplane/internal/platform/kafka/producer"
	dErrors "idplane/pkg/domain-errors"
)

func TestPartitionKey_FallbackOrder(t *testing.T) {
	t.Run("user id wins when present", func(t *testing.T) {
		p := AuditMessage{UserID: "u-1", EntityID: "e-1"}
		assert.Equal(t, "u-1", p.PartitionKey())
	})

	t.Run("entity id when user id empty", func(t *testing.T) {
		p := AuditMessage{EntityID: "e-1"}
		assert.Equal(t, "e-1", p.PartitionKey())
	})

	t.Run("fixed fallback when both empty", func(t *testing.T) {
		p := AuditMessage{}
		assert.Equal(t, fallbackPartitionKey, p.PartitionKey())
	})

	t.Run("login event falls back without user id", func(t *testing.T) {
		p := UserLoggedIn{}
		assert.Equal(t, fallbackPartitionKey, p.PartitionKey())
	})
}

func TestNewEnvelope(t *testing.T) {
	p := UserRegistered{
		UserID:    "u-1",
		Email:     "alice@example.com",
		Timestamp: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC),
	}

	env, err := NewEnvelope(p)
	require.NoError(t, err)

	assert.Equal(t, TopicUserRegistered, env.Topic)
	assert.Equal(t, TopicUserRegistered, env.EventType)
	assert.Equal(t, "u-1", env.PartitionKey)
	assert.False(t, env.Timestamp.IsZero())

	decoded, err := DecodeUserRegistered(env.Payload)
	require.NoError(t, err)
	assert.Equal(t, p, decoded)
}

func TestDecodeAuditMessage(t *testing.T) {
	t.Run("valid payload", func(t *testing.T) {
		raw := []byte(`{"userId":"u-1","action":"LOGIN","entityType":"AUTH","ipAddress":"10.0.0.1"}`)

		msg, err := DecodeAuditMessage(raw)
		require.NoError(t, err)
		assert.Equal(t, "u-1", msg.UserID)
		assert.Equal(t, "LOGIN", msg.Action)
		assert.Equal(t, "AUTH", msg.EntityType)
	})

	t.Run("unknown field rejected", func(t *testing.T) {
		raw := []byte(`{"action":"LOGIN","entityType":"AUTH","surprise":true}`)

		_, err := DecodeAuditMessage(raw)
		assert.Error(t, err)
	})

	t.Run("malformed json rejected", func(t *testing.T) {
		_, err := DecodeAuditMessage([]byte(`{"action":`))
		assert.Error(t, err)
	})

	t.Run("trailing data rejected", func(t *testing.T) {
		_, err := DecodeAuditMessage([]byte(`{"action":"LOGIN","entityType":"AUTH"}{}`))
		assert.Error(t, err)
	})
}

type captureProducer struct {
	msgs []*producer.Message
	err  error
}

func (c *captureProducer) Produce(_ context.Context, msg *producer.Message) error {
	if c.err != nil {
		return c.err
	}
	c.msgs = append(c.msgs, msg)
	return nil
}

func TestBus_Publish(t *testing.T) {
	t.Run("forwards envelope fields to producer", func(t *testing.T) {
		prod := &captureProducer{}
		bus := NewBus(prod, nil)

		env, err := NewEnvelope(UserLoggedIn{UserID: "u-9", Email: "bob@example.com"})
		require.NoError(t, err)
		require.NoError(t, bus.Publish(context.Background(), env))

		require.Len(t, prod.msgs, 1)
		msg := prod.msgs[0]
		assert.Equal(t, TopicUserLoggedIn, msg.Topic)
		assert.Equal(t, []byte("u-9"), msg.Key)
		assert.Equal(t, env.Payload, msg.Value)
		assert.Equal(t, TopicUserLoggedIn, msg.Headers["event_type"])
	})

	t.Run("broker failure surfaces as infrastructure error", func(t *testing.T) {
		prod := &captureProducer{err: errors.New("broker down")}
		bus := NewBus(prod, nil)

		env, err := NewEnvelope(AuditMessage{Action: "READ", EntityType: "USER"})
		require.NoError(t, err)

		err = bus.Publish(context.Background(), env)
		require.Error(t, err)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeInfrastructure))
	})
}
