// Package producer publishes outbox records to Kafka with franz-go.
package producer

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/twmb/franz-go/pkg/kadm"
	"github.com/twmb/franz-go/pkg/kerr"
	"github.com/twmb/franz-go/pkg/kgo"

	"lifenavigator/pkg/platform/events"
)

// Producer implements events.Publisher. Records are keyed by aggregate so all
// events for one registrant land on the same partition in order.
type Producer struct {
	client *kgo.Client
	topic  string
	logger *slog.Logger
}

func New(brokers []string, topic string, logger *slog.Logger) (*Producer, error) {
	if len(brokers) == 0 {
		return nil, errors.New("kafka: no brokers configured")
	}
	client, err := kgo.NewClient(
		kgo.SeedBrokers(brokers...),
		kgo.DefaultProduceTopic(topic),
		kgo.RequiredAcks(kgo.AllISRAcks()),
		kgo.ProducerBatchMaxBytes(1<<20),
		kgo.RecordDeliveryTimeout(10*time.Second),
	)
	if err != nil {
		return nil, fmt.Errorf("kafka: new client: %w", err)
	}
	return &Producer{client: client, topic: topic, logger: logger}, nil
}

// EnsureTopic creates the topic if it does not exist.
func (p *Producer) EnsureTopic(ctx context.Context, partitions int32, replication int16) error {
	adm := kadm.NewClient(p.client)
	resp, err := adm.CreateTopics(ctx, partitions, replication, nil, p.topic)
	if err != nil {
		return fmt.Errorf("kafka: create topic: %w", err)
	}
	for _, r := range resp {
		if r.Err != nil && !errors.Is(r.Err, kerr.TopicAlreadyExists) {
			return fmt.Errorf("kafka: create topic %s: %w", r.Topic, r.Err)
		}
	}
	return nil
}

type message struct {
	ID          string            `json:"id"`
	Type        string            `json:"type"`
	AggregateID string            `json:"aggregate_id"`
	OccurredAt  time.Time         `json:"occurred_at"`
	RequestID   string            `json:"request_id,omitempty"`
	Attributes  map[string]string `json:"attributes,omitempty"`
}

func (p *Producer) Publish(ctx context.Context, records []events.Record) error {
	batch := make([]*kgo.Record, 0, len(records))
	for _, rec := range records {
		value, err := json.Marshal(message{
			ID:          rec.ID.String(),
			Type:        string(rec.Type),
			AggregateID: rec.AggregateID,
			OccurredAt:  rec.OccurredAt.UTC(),
			RequestID:   rec.RequestID,
			Attributes:  rec.Attributes,
		})
		if err != nil {
			return fmt.Errorf("kafka: marshal event %s: %w", rec.ID, err)
		}
		batch = append(batch, &kgo.Record{
			Topic: p.topic,
			Key:   []byte(rec.AggregateID),
			Value: value,
			Headers: []kgo.RecordHeader{
				{Key: "event_type", Value: []byte(rec.Type)},
				{Key: "event_id", Value: []byte(rec.ID.String())},
			},
		})
	}
	if err := p.client.ProduceSync(ctx, batch...).FirstErr(); err != nil {
		return fmt.Errorf("kafka: produce: %w", err)
	}
	return nil
}

// Health pings the cluster.
func (p *Producer) Health(ctx context.Context) error {
	return p.client.Ping(ctx)
}

func (p *Producer) Close() {
	p.client.Close()
}
