package consumer

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/confluentinc/confluent-kafka-go/v2/kafka"

	"idplane/internal/platform/kafka/producer"
)

// Message represents a received Kafka message.
type Message struct {
	Topic     string
	Partition int32
	Offset    int64
	Key       []byte
	Value     []byte
	Headers   map[string]string
	Timestamp time.Time
}

// Handler processes consumed messages.
type Handler interface {
	// Handle processes a message. A nil return commits the offset. An error
	// triggers retry with backoff; once attempts are exhausted the message
	// is routed to the dead-letter topic (if configured) and committed.
	Handle(ctx context.Context, msg *Message) error
}

// DeadLetterProducer is the producer surface needed to park a poisoned
// message. Satisfied by the franz-go producer.
type DeadLetterProducer interface {
	Produce(ctx context.Context, msg *producer.Message) error
}

// Consumer wraps the confluent-kafka-go consumer. The broker connection is
// opened lazily by Start; construction only validates configuration.
type Consumer struct {
	handler Handler
	logger  *slog.Logger
	cfg     Config

	maxAttempts  int
	baseBackoff  time.Duration
	dlqProducer  DeadLetterProducer
	dlqTopic     string
	onDeadLetter func()

	consumer *kafka.Consumer
	topics   []string

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
	mu     sync.RWMutex
	closed bool
}

// Config holds consumer configuration.
type Config struct {
	Brokers         string
	GroupID         string
	AutoOffsetReset string
}

// Option configures the Consumer.
type Option func(*Consumer)

// WithRetry sets how many handler attempts a message gets and the base
// backoff between attempts (doubled per attempt).
func WithRetry(maxAttempts int, baseBackoff time.Duration) Option {
	return func(c *Consumer) {
		if maxAttempts > 0 {
			c.maxAttempts = maxAttempts
		}
		if baseBackoff > 0 {
			c.baseBackoff = baseBackoff
		}
	}
}

// WithDeadLetter routes messages that exhaust their retries to the given
// topic instead of leaving them uncommitted for endless redelivery.
func WithDeadLetter(prod DeadLetterProducer, topic string) Option {
	return func(c *Consumer) {
		c.dlqProducer = prod
		c.dlqTopic = topic
	}
}

// WithDeadLetterCallback runs fn after every successful dead-letter publish.
// The services use it to bump their dead-letter counter.
func WithDeadLetterCallback(fn func()) Option {
	return func(c *Consumer) {
		c.onDeadLetter = fn
	}
}

// New creates a new Kafka consumer.
func New(cfg Config, handler Handler, logger *slog.Logger, opts ...Option) (*Consumer, error) {
	if cfg.Brokers == "" {
		return nil, fmt.Errorf("kafka brokers not configured")
	}

	if cfg.GroupID == "" {
		return nil, fmt.Errorf("kafka consumer group ID not configured")
	}

	if cfg.AutoOffsetReset == "" {
		cfg.AutoOffsetReset = "earliest"
	}

	ctx, cancel := context.WithCancel(context.Background())

	c := &Consumer{
		handler:     handler,
		logger:      logger,
		cfg:         cfg,
		maxAttempts: 3,
		baseBackoff: 200 * time.Millisecond,
		ctx:         ctx,
		cancel:      cancel,
	}

	for _, opt := range opts {
		opt(c)
	}

	return c, nil
}

// Subscribe records the topics to consume. The broker connection is not
// opened until Start.
func (c *Consumer) Subscribe(topics []string) {
	c.mu.Lock()
	c.topics = topics
	c.mu.Unlock()
}

// Start opens the broker connection, joins the consumer group, and begins
// the consumption loop in a background goroutine.
func (c *Consumer) Start() error {
	configMap := &kafka.ConfigMap{
		"bootstrap.servers":  c.cfg.Brokers,
		"group.id":           c.cfg.GroupID,
		"auto.offset.reset":  c.cfg.AutoOffsetReset,
		"enable.auto.commit": false, // Manual commits for at-least-once delivery
	}

	consumer, err := kafka.NewConsumer(configMap)
	if err != nil {
		return fmt.Errorf("create kafka consumer: %w", err)
	}

	c.mu.Lock()
	c.consumer = consumer
	topics := c.topics
	c.mu.Unlock()

	if err := consumer.SubscribeTopics(topics, nil); err != nil {
		return fmt.Errorf("subscribe to topics: %w", err)
	}

	c.wg.Add(1)
	go c.run()
	return nil
}

// run is the main consumption loop.
func (c *Consumer) run() {
	defer c.wg.Done()

	for {
		select {
		case <-c.ctx.Done():
			return
		default:
			c.poll()
		}
	}
}

// poll reads and processes a single message.
func (c *Consumer) poll() {
	ev := c.consumer.Poll(100) // 100ms timeout
	if ev == nil {
		return
	}

	switch e := ev.(type) {
	case *kafka.Message:
		c.handleMessage(e)

	case kafka.Error:
		if e.Code() != kafka.ErrTimedOut {
			if c.logger != nil {
				c.logger.Error("kafka consumer error",
					"code", e.Code(),
					"error", e.Error(),
				)
			}
		}

	case kafka.PartitionEOF:
		// End of partition, normal operation
	}
}

// handleMessage processes a single Kafka message, retrying the handler with
// backoff before dead-lettering.
func (c *Consumer) handleMessage(km *kafka.Message) {
	headers := make(map[string]string)
	for _, h := range km.Headers {
		headers[h.Key] = string(h.Value)
	}

	msg := &Message{
		Topic:     *km.TopicPartition.Topic,
		Partition: km.TopicPartition.Partition,
		Offset:    int64(km.TopicPartition.Offset),
		Key:       km.Key,
		Value:     km.Value,
		Headers:   headers,
		Timestamp: km.Timestamp,
	}

	if !c.process(msg) {
		return
	}

	if _, err := c.consumer.CommitMessage(km); err != nil {
		if c.logger != nil {
			c.logger.Error("failed to commit offset",
				"topic", msg.Topic,
				"partition", msg.Partition,
				"offset", msg.Offset,
				"error", err,
			)
		}
	}
}

// process runs the handler with retry and backoff. It reports whether the
// offset should be committed: true on handler success or a successful
// dead-letter publish, false when the message must stay on the topic for
// redelivery.
func (c *Consumer) process(msg *Message) bool {
	var err error
	for attempt := 1; attempt <= c.maxAttempts; attempt++ {
		err = c.handler.Handle(c.ctx, msg)
		if err == nil {
			return true
		}

		if c.logger != nil {
			c.logger.Warn("handler failed",
				"topic", msg.Topic,
				"partition", msg.Partition,
				"offset", msg.Offset,
				"attempt", attempt,
				"error", err,
			)
		}

		if attempt < c.maxAttempts {
			backoff := c.baseBackoff << (attempt - 1)
			select {
			case <-c.ctx.Done():
				return false
			case <-time.After(backoff):
			}
		}
	}

	if c.dlqProducer == nil {
		// No dead-letter configured: leave uncommitted for redelivery.
		return false
	}
	if dlqErr := c.deadLetter(msg, err); dlqErr != nil {
		if c.logger != nil {
			c.logger.Error("failed to dead-letter message",
				"topic", msg.Topic,
				"offset", msg.Offset,
				"error", dlqErr,
			)
		}
		// Couldn't preserve the message; don't commit.
		return false
	}
	if c.onDeadLetter != nil {
		c.onDeadLetter()
	}
	if c.logger != nil {
		c.logger.Error("message dead-lettered",
			"topic", msg.Topic,
			"partition", msg.Partition,
			"offset", msg.Offset,
			"dlq_topic", c.dlqTopic,
			"error", err,
		)
	}
	return true
}

// deadLetter publishes the original message to the dead-letter topic with
// provenance headers so it can be inspected and replayed.
func (c *Consumer) deadLetter(msg *Message, cause error) error {
	headers := map[string]string{
		"origin_topic": msg.Topic,
		"error":        cause.Error(),
	}
	for k, v := range msg.Headers {
		headers[k] = v
	}

	return c.dlqProducer.Produce(c.ctx, &producer.Message{
		Topic:   c.dlqTopic,
		Key:     msg.Key,
		Value:   msg.Value,
		Headers: headers,
	})
}

// Stop gracefully stops the consumer.
func (c *Consumer) Stop(ctx context.Context) error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	c.closed = true
	c.mu.Unlock()

	c.cancel()

	done := make(chan struct{})
	go func() {
		c.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		if c.consumer != nil {
			return c.consumer.Close()
		}
		return nil
	case <-ctx.Done():
		if c.consumer != nil {
			c.consumer.Close()
		}
		return ctx.Err()
	}
}

// Healthy checks if the consumer is connected and has partition assignments.
func (c *Consumer) Healthy(ctx context.Context) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.closed || c.consumer == nil {
		return false
	}

	assignment, err := c.consumer.Assignment()
	if err != nil {
		return false
	}
	return len(assignment) > 0
}
