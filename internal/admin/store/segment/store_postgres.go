package segment

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"lifenavigator/internal/admin/models"
	wlmodels "lifenavigator/internal/waitlist/models"
	id "lifenavigator/pkg/domain"
	"lifenavigator/pkg/platform/sentinel"
	pkgstrings "lifenavigator/pkg/platform/strings"
	txcontext "lifenavigator/pkg/platform/tx"
)

const memberColumns = `id, email, name, position, referral_code, referral_count, interests, tier_preference, email_verified, is_paying, joined_at`

var columns = map[models.Field]string{
	models.FieldEmail:          "lower(email)",
	models.FieldName:           "lower(name)",
	models.FieldTierPreference: "tier_preference",
	models.FieldPosition:       "position",
	models.FieldReferralCount:  "referral_count",
	models.FieldEmailVerified:  "email_verified",
	models.FieldIsPaying:       "is_paying",
	models.FieldJoinedAt:       "joined_at",
}

// PostgresStore persists saved segments and renders conditions to SQL over
// the registrants table.
type PostgresStore struct {
	db *sql.DB
}

func NewPostgres(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

func (s *PostgresStore) Save(ctx context.Context, seg *models.Segment) error {
	filters, err := json.Marshal(seg.Filters)
	if err != nil {
		return fmt.Errorf("marshal segment filters: %w", err)
	}
	_, err = txcontext.Executor(ctx, s.db).ExecContext(ctx, `
		INSERT INTO segments (slug, name, filters, created_at)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (slug) DO UPDATE SET name = EXCLUDED.name, filters = EXCLUDED.filters
	`, seg.Slug, seg.Name, filters, seg.CreatedAt)
	if err != nil {
		return fmt.Errorf("save segment: %w", err)
	}
	return nil
}

func (s *PostgresStore) FindBySlug(ctx context.Context, slug string) (*models.Segment, error) {
	row := txcontext.Executor(ctx, s.db).QueryRowContext(ctx,
		`SELECT slug, name, filters, created_at FROM segments WHERE slug = $1`, slug)
	seg, err := scanSegment(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, sentinel.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("find segment: %w", err)
	}
	return seg, nil
}

func (s *PostgresStore) List(ctx context.Context) ([]*models.Segment, error) {
	rows, err := txcontext.Executor(ctx, s.db).QueryContext(ctx,
		`SELECT slug, name, filters, created_at FROM segments ORDER BY slug`)
	if err != nil {
		return nil, fmt.Errorf("list segments: %w", err)
	}
	defer rows.Close()

	out := []*models.Segment{}
	for rows.Next() {
		seg, err := scanSegment(rows)
		if err != nil {
			return nil, fmt.Errorf("scan segment: %w", err)
		}
		out = append(out, seg)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate segments: %w", err)
	}
	return out, nil
}

func (s *PostgresStore) Members(ctx context.Context, conds []models.Condition, limit int) ([]*wlmodels.Registrant, error) {
	where, args := BuildWhere(conds)
	query := `SELECT ` + memberColumns + ` FROM registrants WHERE ` + where + ` ORDER BY position`
	if limit > 0 {
		args = append(args, limit)
		query += ` LIMIT $` + strconv.Itoa(len(args))
	}
	rows, err := txcontext.Executor(ctx, s.db).QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list segment members: %w", err)
	}
	defer rows.Close()

	out := []*wlmodels.Registrant{}
	for rows.Next() {
		r, err := scanMember(rows)
		if err != nil {
			return nil, fmt.Errorf("scan segment member: %w", err)
		}
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate segment members: %w", err)
	}
	return out, nil
}

func (s *PostgresStore) CountMembers(ctx context.Context, conds []models.Condition) (int, error) {
	where, args := BuildWhere(conds)
	var n int
	err := txcontext.Executor(ctx, s.db).QueryRowContext(ctx,
		`SELECT COUNT(*) FROM registrants WHERE `+where, args...).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count segment members: %w", err)
	}
	return n, nil
}

// BuildWhere renders conds as a parameterized conjunction. Column names come
// from a fixed map; every value is a bind argument.
func BuildWhere(conds []models.Condition) (string, []any) {
	if len(conds) == 0 {
		return "TRUE", nil
	}
	clauses := make([]string, 0, len(conds))
	args := make([]any, 0, len(conds))
	for _, c := range conds {
		ph := "$" + strconv.Itoa(len(args)+1)
		switch {
		case c.Field == models.FieldInterests:
			args = append(args, c.Str)
			clauses = append(clauses, ph+" = ANY(interests)")
		case c.Operator == models.OpContains:
			args = append(args, pkgstrings.EscapeLike(c.Str))
			clauses = append(clauses, columns[c.Field]+" LIKE '%' || "+ph+" || '%'")
		case c.Operator == models.OpGreaterThan:
			args = append(args, c.Value())
			clauses = append(clauses, columns[c.Field]+" > "+ph)
		default:
			args = append(args, c.Value())
			clauses = append(clauses, columns[c.Field]+" = "+ph)
		}
	}
	return strings.Join(clauses, " AND "), args
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanSegment(row rowScanner) (*models.Segment, error) {
	var (
		seg     models.Segment
		filters []byte
	)
	if err := row.Scan(&seg.Slug, &seg.Name, &filters, &seg.CreatedAt); err != nil {
		return nil, err
	}
	if err := json.Unmarshal(filters, &seg.Filters); err != nil {
		return nil, fmt.Errorf("decode segment filters: %w", err)
	}
	return &seg, nil
}

func scanMember(row rowScanner) (*wlmodels.Registrant, error) {
	var (
		r          wlmodels.Registrant
		rid        uuid.UUID
		code, tier string
		interests  pq.StringArray
	)
	err := row.Scan(&rid, &r.Email, &r.Name, &r.Position, &code, &r.ReferralCount, &interests,
		&tier, &r.EmailVerified, &r.IsPaying, &r.JoinedAt)
	if err != nil {
		return nil, err
	}
	r.ID = id.RegistrantID(rid)
	r.ReferralCode = id.ReferralCode(code)
	r.TierPreference = id.Tier(tier)
	r.Interests = []string(interests)
	if r.Interests == nil {
		r.Interests = []string{}
	}
	return &r, nil
}
