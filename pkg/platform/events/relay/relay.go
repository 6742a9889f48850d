// Package relay drains the outbox to a publisher.
package relay

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"lifenavigator/pkg/platform/events"
)

const defaultBatchSize = 100

type runner interface {
	RunInTx(ctx context.Context, key string, fn func(ctx context.Context) error) error
}

// Relay publishes unpublished outbox rows in batches. Rows are marked published
// only after the publisher accepted them, so delivery is at-least-once.
type Relay struct {
	store     events.Store
	publisher events.Publisher
	tx        runner
	logger    *slog.Logger
	batchSize int
	now       func() time.Time
}

type Option func(*Relay)

func WithBatchSize(n int) Option {
	return func(r *Relay) {
		if n > 0 {
			r.batchSize = n
		}
	}
}

func WithLogger(logger *slog.Logger) Option {
	return func(r *Relay) {
		r.logger = logger
	}
}

func New(store events.Store, publisher events.Publisher, tx runner, opts ...Option) *Relay {
	r := &Relay{
		store:     store,
		publisher: publisher,
		tx:        tx,
		logger:    slog.Default(),
		batchSize: defaultBatchSize,
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// RunOnce publishes one batch and returns how many rows it published.
func (r *Relay) RunOnce(ctx context.Context) (int, error) {
	var published int
	err := r.tx.RunInTx(ctx, "outbox:relay", func(ctx context.Context) error {
		records, err := r.store.Unpublished(ctx, r.batchSize)
		if err != nil {
			return err
		}
		if len(records) == 0 {
			return nil
		}
		if err := r.publisher.Publish(ctx, records); err != nil {
			return fmt.Errorf("publish outbox batch: %w", err)
		}
		ids := make([]uuid.UUID, len(records))
		for i, rec := range records {
			ids[i] = rec.ID
		}
		if err := r.store.MarkPublished(ctx, ids, r.now()); err != nil {
			return err
		}
		published = len(records)
		return nil
	})
	if err != nil {
		r.logger.ErrorContext(ctx, "outbox relay failed", "error", err)
		return 0, err
	}
	if published > 0 {
		r.logger.DebugContext(ctx, "outbox batch published", "count", published)
	}
	return published, nil
}

// LogPublisher writes records to the log. It stands in for the event stream when
// no brokers are configured.
type LogPublisher struct {
	Logger *slog.Logger
}

func (p LogPublisher) Publish(ctx context.Context, records []events.Record) error {
	for _, rec := range records {
		p.Logger.InfoContext(ctx, "domain event",
			"event_id", rec.ID.String(),
			"event_type", string(rec.Type),
			"aggregate_id", rec.AggregateID,
		)
	}
	return nil
}
