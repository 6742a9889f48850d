// Package events models the domain events the waitlist emits and the outbox
// they are written to. Events are appended inside the same transaction as the
// state change they describe and relayed to the event stream afterwards.
package events

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"lifenavigator/pkg/requestcontext"
)

type Type string

const (
	TypeRegistrantJoined   Type = "registrant_joined"
	TypeRegistrantDeleted  Type = "registrant_deleted"
	TypeEmailVerified      Type = "email_verified"
	TypeReferralRecorded   Type = "referral_recorded"
	TypeConversionRecorded Type = "conversion_recorded"
	TypeCreditMinted       Type = "credit_minted"
	TypeCreditRedeemed     Type = "credit_redeemed"
	TypeCreditExpired      Type = "credit_expired"
	TypeServiceVerified    Type = "service_verified"
	TypeCampaignSent       Type = "campaign_sent"
)

// Event is a fact about a registrant-owned aggregate.
type Event struct {
	ID          uuid.UUID
	Type        Type
	AggregateID string
	OccurredAt  time.Time
	RequestID   string
	Attributes  map[string]string
}

// Record is an outbox row awaiting or past publication.
type Record struct {
	Event
	PublishedAt *time.Time
}

// Store is the transactional outbox.
type Store interface {
	Append(ctx context.Context, event Event) error
	Unpublished(ctx context.Context, limit int) ([]Record, error)
	MarkPublished(ctx context.Context, ids []uuid.UUID, at time.Time) error
}

// Publisher forwards outbox records to the event stream.
type Publisher interface {
	Publish(ctx context.Context, records []Record) error
}

// New builds an event stamped with the request's time and correlation ID.
func New(ctx context.Context, typ Type, aggregateID string, attrs map[string]string) Event {
	return Event{
		ID:          uuid.New(),
		Type:        typ,
		AggregateID: aggregateID,
		OccurredAt:  requestcontext.Now(ctx),
		RequestID:   requestcontext.RequestID(ctx),
		Attributes:  attrs,
	}
}

// Emit appends the event to the outbox (when one is configured) and writes the
// audit log line. A nil store only logs.
func Emit(ctx context.Context, logger *slog.Logger, store Store, event Event) error {
	if logger != nil {
		args := []any{
			"event", string(event.Type),
			"log_type", "audit",
			"aggregate_id", event.AggregateID,
			"request_id", event.RequestID,
		}
		for k, v := range event.Attributes {
			args = append(args, k, v)
		}
		logger.InfoContext(ctx, string(event.Type), args...)
	}
	if store == nil {
		return nil
	}
	return store.Append(ctx, event)
}
