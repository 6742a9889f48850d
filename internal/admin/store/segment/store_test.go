package segment

import (
	"context"
	"fmt"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"lifenavigator/internal/admin/models"
	wlmodels "lifenavigator/internal/waitlist/models"
	"lifenavigator/internal/waitlist/store/registrant"
	id "lifenavigator/pkg/domain"
	"lifenavigator/pkg/platform/sentinel"
)

func mustParse(t *testing.T, fs ...models.Filter) []models.Condition {
	t.Helper()
	conds, err := models.ParseFilters(fs)
	require.NoError(t, err)
	return conds
}

func seed(t *testing.T, n int) *registrant.InMemoryStore {
	t.Helper()
	store := registrant.NewInMemory()
	for i := 1; i <= n; i++ {
		r, err := wlmodels.NewRegistrant(id.NewRegistrantID(), fmt.Sprintf("user%03d@example.com", i), "",
			100+i, id.ReferralCode(fmt.Sprintf("CODE%04d", i)), nil, id.TierFree, "", time.Now())
		require.NoError(t, err)
		r.IsPaying = i%2 == 0
		require.NoError(t, store.Create(context.Background(), r))
	}
	return store
}

func TestInMemoryStore_MembersAcrossPages(t *testing.T) {
	ctx := context.Background()
	store := NewInMemory(seed(t, 450))
	paying := mustParse(t, models.Filter{Field: "is_paying", Operator: "equals", Value: "true"})

	n, err := store.CountMembers(ctx, paying)
	require.NoError(t, err)
	assert.Equal(t, 225, n)

	all, err := store.Members(ctx, nil, 0)
	require.NoError(t, err)
	assert.Len(t, all, 450)

	first, err := store.Members(ctx, paying, models.PreviewLimit)
	require.NoError(t, err)
	require.Len(t, first, models.PreviewLimit)
	assert.Equal(t, "user002@example.com", first[0].Email)
	assert.Equal(t, 102, first[0].Position)
}

func TestInMemoryStore_SavedSegments(t *testing.T) {
	ctx := context.Background()
	store := NewInMemory(seed(t, 0))
	created := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)

	require.NoError(t, store.Save(ctx, &models.Segment{Slug: "payers", Name: "Payers", CreatedAt: created,
		Filters: []models.Filter{{Field: "is_paying", Operator: "equals", Value: "true"}}}))
	require.NoError(t, store.Save(ctx, &models.Segment{Slug: "payers", Name: "payers", CreatedAt: created.Add(time.Hour)}))

	got, err := store.FindBySlug(ctx, "payers")
	require.NoError(t, err)
	assert.Equal(t, "payers", got.Name)
	assert.Equal(t, created, got.CreatedAt)

	_, err = store.FindBySlug(ctx, "missing")
	assert.ErrorIs(t, err, sentinel.ErrNotFound)

	list, err := store.List(ctx)
	require.NoError(t, err)
	assert.Len(t, list, 1)
}

func TestBuildWhere(t *testing.T) {
	joined := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	where, args := BuildWhere(mustParse(t,
		models.Filter{Field: "email", Operator: "contains", Value: "100%_off"},
		models.Filter{Field: "interests", Operator: "contains", Value: "finance"},
		models.Filter{Field: "referral_count", Operator: "greater_than", Value: "3"},
		models.Filter{Field: "email_verified", Operator: "equals", Value: "true"},
		models.Filter{Field: "joined_at", Operator: "greater_than", Value: "2026-01-01T00:00:00Z"},
	))

	assert.Equal(t,
		"lower(email) LIKE '%' || $1 || '%' AND $2 = ANY(interests) AND referral_count > $3 AND email_verified = $4 AND joined_at > $5",
		where)
	assert.Equal(t, []any{`100\%\_off`, "finance", 3, true, joined}, args)

	where, args = BuildWhere(nil)
	assert.Equal(t, "TRUE", where)
	assert.Empty(t, args)
}

func TestPostgresStore_Members(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	rid := id.NewRegistrantID()
	joined := time.Date(2026, 2, 1, 0, 0, 0, 0, time.UTC)
	mock.ExpectQuery(regexp.QuoteMeta("FROM registrants WHERE is_paying = $1 ORDER BY position LIMIT $2")).
		WithArgs(true, 20).
		WillReturnRows(sqlmock.NewRows([]string{"id", "email", "name", "position", "referral_code", "referral_count",
			"interests", "tier_preference", "email_verified", "is_paying", "joined_at"}).
			AddRow(rid.String(), "a@example.com", "Ana", 101, "ABCDEFGH", 2, "{finance,travel}", "pro", true, true, joined))

	members, err := NewPostgres(db).Members(context.Background(),
		mustParse(t, models.Filter{Field: "is_paying", Operator: "equals", Value: "true"}), 20)

	require.NoError(t, err)
	require.Len(t, members, 1)
	assert.Equal(t, rid, members[0].ID)
	assert.Equal(t, []string{"finance", "travel"}, members[0].Interests)
	assert.Equal(t, id.TierPro, members[0].TierPreference)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_CountAndFind(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()
	store := NewPostgres(db)
	ctx := context.Background()

	mock.ExpectQuery(regexp.QuoteMeta("SELECT COUNT(*) FROM registrants WHERE TRUE")).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(42))
	n, err := store.CountMembers(ctx, nil)
	require.NoError(t, err)
	assert.Equal(t, 42, n)

	created := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	mock.ExpectQuery(regexp.QuoteMeta("FROM segments WHERE slug = $1")).
		WithArgs("payers").
		WillReturnRows(sqlmock.NewRows([]string{"slug", "name", "filters", "created_at"}).
			AddRow("payers", "Payers", []byte(`[{"field":"is_paying","operator":"equals","value":"true"}]`), created))
	seg, err := store.FindBySlug(ctx, "payers")
	require.NoError(t, err)
	assert.Equal(t, []models.Filter{{Field: "is_paying", Operator: "equals", Value: "true"}}, seg.Filters)

	mock.ExpectQuery(regexp.QuoteMeta("FROM segments WHERE slug = $1")).
		WithArgs("nope").
		WillReturnRows(sqlmock.NewRows([]string{"slug", "name", "filters", "created_at"}))
	_, err = store.FindBySlug(ctx, "nope")
	assert.ErrorIs(t, err, sentinel.ErrNotFound)

	assert.NoError(t, mock.ExpectationsWereMet())
}
