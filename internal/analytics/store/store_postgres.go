package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"lifenavigator/internal/analytics/models"
	id "lifenavigator/pkg/domain"
	txcontext "lifenavigator/pkg/platform/tx"
)

type PostgresStore struct {
	db *sql.DB
}

func NewPostgres(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

func (s *PostgresStore) Insert(ctx context.Context, e *models.Event) error {
	props, err := json.Marshal(e.Properties)
	if err != nil {
		return fmt.Errorf("encode event properties: %w", err)
	}
	var registrantID any
	if e.RegistrantID != nil {
		registrantID = uuid.UUID(*e.RegistrantID)
	}
	_, err = txcontext.Executor(ctx, s.db).ExecContext(ctx, `
		INSERT INTO analytics_events (id, session_id, registrant_id, event_type, path, device, browser, properties, occurred_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`, e.ID, e.SessionID, registrantID, string(e.Type), e.Path, string(e.Device), e.Browser, props, e.OccurredAt)
	if err != nil {
		return fmt.Errorf("insert analytics event: %w", err)
	}
	return nil
}

func (s *PostgresStore) ListBetween(ctx context.Context, from, to time.Time) ([]*models.Event, error) {
	rows, err := txcontext.Executor(ctx, s.db).QueryContext(ctx, `
		SELECT id, session_id, registrant_id, event_type, path, device, browser, properties, occurred_at
		FROM analytics_events
		WHERE occurred_at >= $1 AND occurred_at < $2
		ORDER BY occurred_at
	`, from, to)
	if err != nil {
		return nil, fmt.Errorf("list analytics events: %w", err)
	}
	defer rows.Close()

	out := []*models.Event{}
	for rows.Next() {
		var (
			e            models.Event
			registrantID uuid.NullUUID
			typ, device  string
			props        []byte
		)
		if err := rows.Scan(&e.ID, &e.SessionID, &registrantID, &typ, &e.Path, &device, &e.Browser, &props, &e.OccurredAt); err != nil {
			return nil, fmt.Errorf("scan analytics event: %w", err)
		}
		if registrantID.Valid {
			rid := id.RegistrantID(registrantID.UUID)
			e.RegistrantID = &rid
		}
		e.Type = models.EventType(typ)
		e.Device = models.Device(device)
		if err := json.Unmarshal(props, &e.Properties); err != nil {
			return nil, fmt.Errorf("decode event properties: %w", err)
		}
		out = append(out, &e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate analytics events: %w", err)
	}
	return out, nil
}

func (s *PostgresStore) CountSessions(ctx context.Context, since time.Time) (int, error) {
	var n int
	err := txcontext.Executor(ctx, s.db).QueryRowContext(ctx,
		`SELECT COUNT(DISTINCT session_id) FROM analytics_events WHERE occurred_at >= $1`, since).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count analytics sessions: %w", err)
	}
	return n, nil
}
