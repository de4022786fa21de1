package kafka

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/segmentio/kafka-go"
)

// ErrDuplicate is returned by handlers that skipped an already processed
// event. The consumer commits such messages without retrying.
var ErrDuplicate = errors.New("kafka: duplicate event")

const (
	defaultMaxRetries = 3
	defaultRetryStep  = 100 * time.Millisecond
)

// Handler processes one decoded event.
type Handler func(ctx context.Context, event *Event) error

// messageReader is the part of *kafka.Reader the consumer uses.
type messageReader interface {
	FetchMessage(ctx context.Context) (kafka.Message, error)
	CommitMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// ConsumerConfig holds Kafka consumer configuration.
type ConsumerConfig struct {
	Brokers  []string
	GroupID  string
	Topic    string
	MinBytes int
	MaxBytes int
}

// ConsumerOption customizes a Consumer.
type ConsumerOption func(*Consumer)

// WithDLQ forwards messages that exhaust their retries to dlq.
func WithDLQ(dlq *DLQProducer) ConsumerOption {
	return func(c *Consumer) { c.dlq = dlq }
}

// WithIdempotency wraps the handler so already processed event IDs are
// skipped.
func WithIdempotency(store IdempotencyStore) ConsumerOption {
	return func(c *Consumer) { c.idempotency = store }
}

// WithRetry overrides the attempt count and linear backoff step.
func WithRetry(attempts int, step time.Duration) ConsumerOption {
	return func(c *Consumer) {
		if attempts > 0 {
			c.maxRetries = attempts
		}
		c.retryStep = step
	}
}

// Consumer reads events from one topic in a consumer group, retrying
// failed handlers before committing past the message.
type Consumer struct {
	reader      messageReader
	topic       string
	group       string
	handler     Handler
	logger      *slog.Logger
	dlq         *DLQProducer
	idempotency IdempotencyStore
	maxRetries  int
	retryStep   time.Duration
	closeOnce   sync.Once
}

// NewConsumer creates a consumer for cfg.Topic in cfg.GroupID.
func NewConsumer(cfg ConsumerConfig, handler Handler, logger *slog.Logger, opts ...ConsumerOption) *Consumer {
	r := kafka.NewReader(kafka.ReaderConfig{
		Brokers:  cfg.Brokers,
		GroupID:  cfg.GroupID,
		Topic:    cfg.Topic,
		MinBytes: cfg.MinBytes,
		MaxBytes: cfg.MaxBytes,
	})
	return newConsumer(r, cfg.Topic, cfg.GroupID, handler, logger, opts...)
}

func newConsumer(r messageReader, topic, group string, handler Handler, logger *slog.Logger, opts ...ConsumerOption) *Consumer {
	c := &Consumer{
		reader:     r,
		topic:      topic,
		group:      group,
		handler:    handler,
		logger:     logger,
		maxRetries: defaultMaxRetries,
		retryStep:  defaultRetryStep,
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.idempotency != nil {
		c.handler = IdempotentHandler(c.idempotency, c.handler, logger)
	}
	return c
}

// Start consumes until ctx is canceled, then closes the reader.
func (c *Consumer) Start(ctx context.Context) error {
	c.logger.Info("consumer started",
		slog.String("topic", c.topic),
		slog.String("group", c.group),
	)

	for {
		msg, err := c.reader.FetchMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				c.logger.Info("consumer stopping", slog.String("topic", c.topic))
				return c.Close()
			}
			c.logger.Error("failed to fetch message", slog.String("error", err.Error()))
			continue
		}

		if !c.process(ctx, msg) {
			return c.Close()
		}
	}
}

// process handles one message and commits it. It returns false when ctx
// was canceled mid-retry, leaving the message uncommitted.
func (c *Consumer) process(ctx context.Context, msg kafka.Message) bool {
	msgCtx := extractTrace(ctx, &msg)

	event, err := UnmarshalEvent(msg.Value)
	if err != nil {
		c.logger.ErrorContext(msgCtx, "failed to unmarshal event",
			slog.String("error", err.Error()),
			slog.String("topic", msg.Topic),
			slog.Int64("offset", msg.Offset),
		)
		c.deadLetter(msgCtx, msg, err)
		c.commit(ctx, msg)
		return true
	}

	start := time.Now()
	lastErr := c.handleWithRetry(msgCtx, msg, event)
	consumerProcessingDuration.WithLabelValues(c.topic, c.group).Observe(time.Since(start).Seconds())

	switch {
	case lastErr == nil:
		consumerMessagesProcessed.WithLabelValues(c.topic, c.group).Inc()
	case errors.Is(lastErr, ErrDuplicate):
		consumerMessagesDuplicate.WithLabelValues(c.topic, c.group).Inc()
	case ctx.Err() != nil:
		return false
	default:
		consumerMessagesFailed.WithLabelValues(c.topic, c.group).Inc()
		c.logger.ErrorContext(msgCtx, "handler failed after all retries, skipping message",
			slog.String("event_type", event.EventType),
			slog.String("aggregate_id", event.AggregateID),
			slog.String("error", lastErr.Error()),
			slog.Int("partition", msg.Partition),
			slog.Int64("offset", msg.Offset),
		)
		c.deadLetter(msgCtx, msg, lastErr)
	}

	c.commit(ctx, msg)
	return true
}

func (c *Consumer) handleWithRetry(ctx context.Context, msg kafka.Message, event *Event) error {
	var lastErr error
	for attempt := 1; attempt <= c.maxRetries; attempt++ {
		lastErr = c.handler(ctx, event)
		if lastErr == nil || errors.Is(lastErr, ErrDuplicate) {
			return lastErr
		}

		c.logger.WarnContext(ctx, "handler failed",
			slog.String("event_type", event.EventType),
			slog.String("error", lastErr.Error()),
			slog.Int64("offset", msg.Offset),
			slog.Int("attempt", attempt),
			slog.Int("max_retries", c.maxRetries),
		)

		if attempt < c.maxRetries {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(time.Duration(attempt) * c.retryStep):
			}
		}
	}
	return lastErr
}

func (c *Consumer) deadLetter(ctx context.Context, msg kafka.Message, cause error) {
	if c.dlq == nil {
		return
	}
	if err := c.dlq.Publish(ctx, msg, cause, c.group); err != nil {
		c.logger.ErrorContext(ctx, "failed to publish to DLQ", slog.String("error", err.Error()))
		return
	}
	consumerDLQPublished.WithLabelValues(c.topic, c.group).Inc()
}

func (c *Consumer) commit(ctx context.Context, msg kafka.Message) {
	if err := c.reader.CommitMessages(ctx, msg); err != nil {
		c.logger.Error("failed to commit message",
			slog.String("error", err.Error()),
			slog.Int64("offset", msg.Offset),
		)
	}
}

// Close closes the reader. It is safe to call multiple times.
func (c *Consumer) Close() error {
	var err error
	c.closeOnce.Do(func() {
		err = c.reader.Close()
	})
	return err
}
