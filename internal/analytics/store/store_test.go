package store

import (
	"context"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"lifenavigator/internal/analytics/models"
	id "lifenavigator/pkg/domain"
)

var base = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

func newEvent(t *testing.T, session string, at time.Time) *models.Event {
	t.Helper()
	e, err := models.NewEvent(session, models.EventPageView, "/", nil, map[string]string{"utm_source": "x"}, "", at)
	require.NoError(t, err)
	return e
}

func TestInMemoryStore_ListBetweenAndSessions(t *testing.T) {
	store := NewInMemory()
	ctx := context.Background()
	require.NoError(t, store.Insert(ctx, newEvent(t, "b", base.Add(time.Hour))))
	require.NoError(t, store.Insert(ctx, newEvent(t, "a", base)))
	require.NoError(t, store.Insert(ctx, newEvent(t, "a", base.Add(-48*time.Hour))))

	got, err := store.ListBetween(ctx, base.Add(-time.Hour), base.Add(2*time.Hour))
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "a", got[0].SessionID)

	n, err := store.CountSessions(ctx, base.Add(-72*time.Hour))
	require.NoError(t, err)
	assert.Equal(t, 2, n)
}

func TestPostgresStore_Insert(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	e := newEvent(t, "s1", base)
	rid := id.NewRegistrantID()
	e.RegistrantID = &rid
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO analytics_events")).
		WithArgs(e.ID, "s1", uuid.UUID(rid), "page_view", "/", "desktop", "unknown", []byte(`{"utm_source":"x"}`), base).
		WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, NewPostgres(db).Insert(context.Background(), e))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_ListBetween(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	eventID := uuid.New()
	mock.ExpectQuery(regexp.QuoteMeta("FROM analytics_events")).
		WithArgs(base, base.Add(time.Hour)).
		WillReturnRows(sqlmock.NewRows([]string{"id", "session_id", "registrant_id", "event_type", "path", "device", "browser", "properties", "occurred_at"}).
			AddRow(eventID.String(), "s1", nil, "signup", "/join", "mobile", "Safari", []byte(`{"plan":"pro"}`), base))

	got, err := NewPostgres(db).ListBetween(context.Background(), base, base.Add(time.Hour))

	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, eventID, got[0].ID)
	assert.Nil(t, got[0].RegistrantID)
	assert.Equal(t, models.EventSignup, got[0].Type)
	assert.Equal(t, models.DeviceMobile, got[0].Device)
	assert.Equal(t, map[string]string{"plan": "pro"}, got[0].Properties)
}
