// Package consumer reads the domain event topic as a consumer group.
package consumer

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/twmb/franz-go/pkg/kgo"
)

// Message is one event as published by the outbox relay.
type Message struct {
	Topic     string
	Partition int32
	Offset    int64
	Key       []byte
	Type      string
	Event     Envelope
}

// Envelope is the JSON body the producer writes.
type Envelope struct {
	ID          string            `json:"id"`
	Type        string            `json:"type"`
	AggregateID string            `json:"aggregate_id"`
	OccurredAt  time.Time         `json:"occurred_at"`
	RequestID   string            `json:"request_id,omitempty"`
	Attributes  map[string]string `json:"attributes,omitempty"`
}

// Handler processes one message. Returning an error stops the consumer
// without committing the batch, so the message is redelivered.
type Handler interface {
	Handle(ctx context.Context, msg *Message) error
}

type Consumer struct {
	client *kgo.Client
	logger *slog.Logger
}

type Option func(*options)

type options struct {
	fromStart bool
}

// FromStart makes a new group begin at the oldest retained offset.
func FromStart() Option {
	return func(o *options) { o.fromStart = true }
}

func New(brokers []string, topic, group string, logger *slog.Logger, opts ...Option) (*Consumer, error) {
	if len(brokers) == 0 {
		return nil, errors.New("kafka: no brokers configured")
	}
	var o options
	for _, opt := range opts {
		opt(&o)
	}
	offset := kgo.NewOffset().AtEnd()
	if o.fromStart {
		offset = kgo.NewOffset().AtStart()
	}
	client, err := kgo.NewClient(
		kgo.SeedBrokers(brokers...),
		kgo.ConsumerGroup(group),
		kgo.ConsumeTopics(topic),
		kgo.ConsumeResetOffset(offset),
		kgo.DisableAutoCommit(),
	)
	if err != nil {
		return nil, fmt.Errorf("kafka: new consumer: %w", err)
	}
	return &Consumer{client: client, logger: logger}, nil
}

// Run polls until ctx is cancelled, committing each batch after every record
// in it was handled.
func (c *Consumer) Run(ctx context.Context, handler Handler) error {
	for {
		fetches := c.client.PollFetches(ctx)
		if fetches.IsClientClosed() || ctx.Err() != nil {
			return ctx.Err()
		}
		var fetchErr error
		fetches.EachError(func(topic string, partition int32, err error) {
			c.logger.ErrorContext(ctx, "kafka fetch failed",
				"topic", topic,
				"partition", partition,
				"error", err,
			)
			fetchErr = errors.Join(fetchErr, err)
		})
		if fetchErr != nil {
			return fmt.Errorf("kafka: fetch: %w", fetchErr)
		}

		var handleErr error
		fetches.EachRecord(func(rec *kgo.Record) {
			if handleErr != nil {
				return
			}
			handleErr = handler.Handle(ctx, decode(rec, c.logger))
		})
		if handleErr != nil {
			return handleErr
		}
		if err := c.client.CommitUncommittedOffsets(ctx); err != nil {
			return fmt.Errorf("kafka: commit: %w", err)
		}
	}
}

func (c *Consumer) Close() {
	c.client.Close()
}

// decode never fails: a body that is not an envelope is passed on with only
// the header fields set.
func decode(rec *kgo.Record, logger *slog.Logger) *Message {
	msg := &Message{
		Topic:     rec.Topic,
		Partition: rec.Partition,
		Offset:    rec.Offset,
		Key:       rec.Key,
	}
	for _, h := range rec.Headers {
		if h.Key == "event_type" {
			msg.Type = string(h.Value)
		}
	}
	if err := json.Unmarshal(rec.Value, &msg.Event); err != nil {
		logger.Warn("undecodable event body",
			"topic", rec.Topic,
			"offset", rec.Offset,
			"error", err,
		)
	}
	if msg.Type == "" {
		msg.Type = msg.Event.Type
	}
	return msg
}
