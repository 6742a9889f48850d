package postgres

import (
	"context"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"lifenavigator/pkg/platform/events"
)

func TestStore_Append(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	event := events.Event{
		ID:          uuid.New(),
		Type:        events.TypeCreditMinted,
		AggregateID: "referrer-1",
		OccurredAt:  time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC),
		Attributes:  map[string]string{"amount": "20.00"},
	}

	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO outbox")).
		WithArgs(event.ID, "registrant", "referrer-1", "credit_minted", sqlmock.AnyArg(), event.OccurredAt).
		WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, New(db).Append(context.Background(), event))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestStore_Unpublished(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	id := uuid.New()
	created := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	rows := sqlmock.NewRows([]string{"id", "event_type", "aggregate_id", "payload", "created_at"}).
		AddRow(id.String(), "referral_recorded", "referrer-1", []byte(`{"request_id":"req-9","attributes":{"referred_id":"x"}}`), created)
	mock.ExpectQuery(regexp.QuoteMeta("FOR UPDATE SKIP LOCKED")).WithArgs(50).WillReturnRows(rows)

	records, err := New(db).Unpublished(context.Background(), 50)
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, id, records[0].ID)
	assert.Equal(t, events.TypeReferralRecorded, records[0].Type)
	assert.Equal(t, "req-9", records[0].RequestID)
	assert.Equal(t, "x", records[0].Attributes["referred_id"])
	assert.NoError(t, mock.ExpectationsWereMet())
}
