package consumer

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"idplane/internal/platform/kafka/producer"
)

type handlerFunc func(ctx context.Context, msg *Message) error

func (f handlerFunc) Handle(ctx context.Context, msg *Message) error { return f(ctx, msg) }

type captureProducer struct {
	msgs []*producer.Message
	err  error
}

func (p *captureProducer) Produce(_ context.Context, msg *producer.Message) error {
	if p.err != nil {
		return p.err
	}
	p.msgs = append(p.msgs, msg)
	return nil
}

func newTestConsumer(t *testing.T, handler Handler, opts ...Option) *Consumer {
	t.Helper()
	opts = append([]Option{WithRetry(3, time.Millisecond)}, opts...)
	c, err := New(Config{Brokers: "localhost:9092", GroupID: "test"}, handler, nil, opts...)
	require.NoError(t, err)
	return c
}

func testMessage() *Message {
	return &Message{
		Topic:     "audit.event",
		Partition: 2,
		Offset:    41,
		Key:       []byte("user-1"),
		Value:     []byte(`{"action":"LOGIN"}`),
		Headers:   map[string]string{"event_id": "evt-7"},
	}
}

func TestProcess_SuccessCommitsWithoutRetry(t *testing.T) {
	attempts := 0
	dlq := &captureProducer{}
	c := newTestConsumer(t, handlerFunc(func(context.Context, *Message) error {
		attempts++
		return nil
	}), WithDeadLetter(dlq, "audit.event.dlq"))

	assert.True(t, c.process(testMessage()))
	assert.Equal(t, 1, attempts)
	assert.Empty(t, dlq.msgs)
}

func TestProcess_ExhaustedRetriesDeadLetter(t *testing.T) {
	attempts := 0
	deadLettered := 0
	dlq := &captureProducer{}
	c := newTestConsumer(t, handlerFunc(func(context.Context, *Message) error {
		attempts++
		return errors.New("store unavailable")
	}),
		WithDeadLetter(dlq, "audit.event.dlq"),
		WithDeadLetterCallback(func() { deadLettered++ }),
	)

	assert.True(t, c.process(testMessage()), "a dead-lettered message commits")
	assert.Equal(t, 3, attempts)
	assert.Equal(t, 1, deadLettered, "callback fires once per parked message")

	require.Len(t, dlq.msgs, 1)
	parked := dlq.msgs[0]
	assert.Equal(t, "audit.event.dlq", parked.Topic)
	assert.Equal(t, []byte("user-1"), parked.Key)
	assert.Equal(t, []byte(`{"action":"LOGIN"}`), parked.Value)
	assert.Equal(t, "audit.event", parked.Headers["origin_topic"])
	assert.Equal(t, "evt-7", parked.Headers["event_id"], "original headers survive")
	assert.Contains(t, parked.Headers["error"], "store unavailable")
}

func TestProcess_NoDeadLetterLeavesUncommitted(t *testing.T) {
	deadLettered := 0
	c := newTestConsumer(t, handlerFunc(func(context.Context, *Message) error {
		return errors.New("store unavailable")
	}), WithDeadLetterCallback(func() { deadLettered++ }))

	assert.False(t, c.process(testMessage()), "without a dead-letter topic the offset stays put")
	assert.Zero(t, deadLettered)
}

func TestProcess_DeadLetterPublishFailureLeavesUncommitted(t *testing.T) {
	deadLettered := 0
	dlq := &captureProducer{err: errors.New("broker down")}
	c := newTestConsumer(t, handlerFunc(func(context.Context, *Message) error {
		return errors.New("store unavailable")
	}),
		WithDeadLetter(dlq, "audit.event.dlq"),
		WithDeadLetterCallback(func() { deadLettered++ }),
	)

	assert.False(t, c.process(testMessage()), "an unparked message must not be committed")
	assert.Zero(t, deadLettered, "callback only counts successful publishes")
}
