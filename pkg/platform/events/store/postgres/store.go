package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"lifenavigator/pkg/platform/events"
	txcontext "lifenavigator/pkg/platform/tx"
)

// Store implements events.Store on the outbox table. Appends made with a
// transaction in context commit or roll back with the state change.
type Store struct {
	db *sql.DB
}

func New(db *sql.DB) *Store {
	return &Store{db: db}
}

// outboxPayload is the JSON body published to the event stream.
type outboxPayload struct {
	ID          string            `json:"id"`
	Type        string            `json:"type"`
	AggregateID string            `json:"aggregate_id"`
	OccurredAt  string            `json:"occurred_at"`
	RequestID   string            `json:"request_id,omitempty"`
	Attributes  map[string]string `json:"attributes,omitempty"`
}

func (s *Store) Append(ctx context.Context, event events.Event) error {
	if event.ID == uuid.Nil {
		event.ID = uuid.New()
	}
	payload, err := json.Marshal(outboxPayload{
		ID:          event.ID.String(),
		Type:        string(event.Type),
		AggregateID: event.AggregateID,
		OccurredAt:  event.OccurredAt.UTC().Format(time.RFC3339Nano),
		RequestID:   event.RequestID,
		Attributes:  event.Attributes,
	})
	if err != nil {
		return fmt.Errorf("marshal outbox payload: %w", err)
	}

	query := `
		INSERT INTO outbox (id, aggregate_type, aggregate_id, event_type, payload, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`
	_, err = txcontext.Executor(ctx, s.db).ExecContext(ctx, query,
		event.ID,
		"registrant",
		event.AggregateID,
		string(event.Type),
		payload,
		event.OccurredAt,
	)
	if err != nil {
		return fmt.Errorf("insert outbox entry: %w", err)
	}
	return nil
}

// Unpublished locks up to limit pending rows. Call it inside a transaction so
// concurrent relays skip rows another relay is publishing.
func (s *Store) Unpublished(ctx context.Context, limit int) ([]events.Record, error) {
	query := `
		SELECT id, event_type, aggregate_id, payload, created_at
		FROM outbox
		WHERE published_at IS NULL
		ORDER BY created_at, id
		LIMIT $1
		FOR UPDATE SKIP LOCKED
	`
	rows, err := txcontext.Executor(ctx, s.db).QueryContext(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("select outbox: %w", err)
	}
	defer rows.Close()

	var out []events.Record
	for rows.Next() {
		var (
			rec     events.Record
			typ     string
			payload []byte
		)
		if err := rows.Scan(&rec.ID, &typ, &rec.AggregateID, &payload, &rec.OccurredAt); err != nil {
			return nil, fmt.Errorf("scan outbox: %w", err)
		}
		rec.Type = events.Type(typ)
		var body outboxPayload
		if err := json.Unmarshal(payload, &body); err == nil {
			rec.RequestID = body.RequestID
			rec.Attributes = body.Attributes
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

func (s *Store) MarkPublished(ctx context.Context, ids []uuid.UUID, at time.Time) error {
	if len(ids) == 0 {
		return nil
	}
	strIDs := make([]string, len(ids))
	for i, id := range ids {
		strIDs[i] = id.String()
	}
	query := `UPDATE outbox SET published_at = $1 WHERE id = ANY($2::uuid[]) AND published_at IS NULL`
	if _, err := txcontext.Executor(ctx, s.db).ExecContext(ctx, query, at, pq.Array(strIDs)); err != nil {
		return fmt.Errorf("mark outbox published: %w", err)
	}
	return nil
}
