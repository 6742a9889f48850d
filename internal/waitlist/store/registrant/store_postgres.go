package registrant

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/lib/pq"

	"lifenavigator/internal/waitlist/models"
	id "lifenavigator/pkg/domain"
	"lifenavigator/pkg/platform/sentinel"
	pkgstrings "lifenavigator/pkg/platform/strings"
	txcontext "lifenavigator/pkg/platform/tx"
)

const pgUniqueViolation = "23505"

const registrantColumns = `id, email, name, password_hash, position, referral_code, referred_by,
	referral_count, interests, tier_preference, email_verified, is_paying, joined_at, last_login`

// PostgresStore persists registrants in PostgreSQL.
type PostgresStore struct {
	db *sql.DB
}

func NewPostgres(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

func (s *PostgresStore) Create(ctx context.Context, r *models.Registrant) error {
	query := `
		INSERT INTO registrants (` + registrantColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
	`
	_, err := txcontext.Executor(ctx, s.db).ExecContext(ctx, query,
		uuid.UUID(r.ID),
		r.Email,
		r.Name,
		r.PasswordHash,
		r.Position,
		r.ReferralCode.String(),
		nullableID(r.ReferredBy),
		r.ReferralCount,
		pq.Array(r.Interests),
		r.TierPreference.String(),
		r.EmailVerified,
		r.IsPaying,
		r.JoinedAt,
		r.LastLogin,
	)
	if err != nil {
		return classifyInsertError(err)
	}
	return nil
}

func (s *PostgresStore) FindByID(ctx context.Context, registrantID id.RegistrantID) (*models.Registrant, error) {
	return s.findOne(ctx, `SELECT `+registrantColumns+` FROM registrants WHERE id = $1`, uuid.UUID(registrantID))
}

func (s *PostgresStore) FindByEmail(ctx context.Context, email string) (*models.Registrant, error) {
	return s.findOne(ctx, `SELECT `+registrantColumns+` FROM registrants WHERE lower(email) = lower($1)`, email)
}

func (s *PostgresStore) FindByCode(ctx context.Context, code id.ReferralCode) (*models.Registrant, error) {
	return s.findOne(ctx, `SELECT `+registrantColumns+` FROM registrants WHERE referral_code = $1`, code.String())
}

func (s *PostgresStore) MaxPosition(ctx context.Context) (int, error) {
	var maxPos int
	err := txcontext.Executor(ctx, s.db).QueryRowContext(ctx, `SELECT COALESCE(MAX(position), 0) FROM registrants`).Scan(&maxPos)
	if err != nil {
		return 0, fmt.Errorf("find max position: %w", err)
	}
	return maxPos, nil
}

// SetReferrer only writes when referred_by is still NULL.
func (s *PostgresStore) SetReferrer(ctx context.Context, registrantID, referrerID id.RegistrantID) error {
	res, err := txcontext.Executor(ctx, s.db).ExecContext(ctx, `
		UPDATE registrants SET referred_by = $2
		WHERE id = $1 AND referred_by IS NULL AND id <> $2
	`, uuid.UUID(registrantID), uuid.UUID(referrerID))
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23503" {
			return sentinel.ErrNotFound
		}
		return fmt.Errorf("set referrer: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("set referrer rows affected: %w", err)
	}
	if affected == 0 {
		if _, err := s.FindByID(ctx, registrantID); err != nil {
			return err
		}
		return sentinel.ErrConflict
	}
	return nil
}

func (s *PostgresStore) IncrementReferralCount(ctx context.Context, registrantID id.RegistrantID) (int, error) {
	var count int
	err := txcontext.Executor(ctx, s.db).QueryRowContext(ctx, `
		UPDATE registrants SET referral_count = referral_count + 1
		WHERE id = $1
		RETURNING referral_count
	`, uuid.UUID(registrantID)).Scan(&count)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, sentinel.ErrNotFound
	}
	if err != nil {
		return 0, fmt.Errorf("increment referral count: %w", err)
	}
	return count, nil
}

func (s *PostgresStore) SetPaying(ctx context.Context, registrantID id.RegistrantID, paying bool) error {
	return s.exec(ctx, "set paying", `UPDATE registrants SET is_paying = $2 WHERE id = $1`, uuid.UUID(registrantID), paying)
}

func (s *PostgresStore) MarkEmailVerified(ctx context.Context, registrantID id.RegistrantID) error {
	return s.exec(ctx, "mark email verified", `UPDATE registrants SET email_verified = TRUE WHERE id = $1`, uuid.UUID(registrantID))
}

func (s *PostgresStore) TouchLogin(ctx context.Context, registrantID id.RegistrantID, at time.Time) error {
	return s.exec(ctx, "touch login", `UPDATE registrants SET last_login = $2 WHERE id = $1`, uuid.UUID(registrantID), at)
}

// Delete relies on ON DELETE SET NULL to clear referred_by on referred registrants.
func (s *PostgresStore) Delete(ctx context.Context, registrantID id.RegistrantID) error {
	return s.exec(ctx, "delete registrant", `DELETE FROM registrants WHERE id = $1`, uuid.UUID(registrantID))
}

func (s *PostgresStore) List(ctx context.Context, filter models.ListFilter) ([]*models.Registrant, error) {
	filter = filter.Normalize()
	query := `
		SELECT ` + registrantColumns + ` FROM registrants
		WHERE $1 = '' OR lower(email) LIKE '%' || $1 || '%' OR lower(name) LIKE '%' || $1 || '%'
		ORDER BY position
		LIMIT $2 OFFSET $3
	`
	rows, err := txcontext.Executor(ctx, s.db).QueryContext(ctx, query, pkgstrings.EscapeLike(filter.Query), filter.Limit, filter.Offset)
	if err != nil {
		return nil, fmt.Errorf("list registrants: %w", err)
	}
	defer rows.Close()

	out := []*models.Registrant{}
	for rows.Next() {
		r, err := scanRegistrant(rows)
		if err != nil {
			return nil, fmt.Errorf("scan registrant: %w", err)
		}
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate registrants: %w", err)
	}
	return out, nil
}

func (s *PostgresStore) Count(ctx context.Context) (int, error) {
	var n int
	if err := txcontext.Executor(ctx, s.db).QueryRowContext(ctx, `SELECT COUNT(*) FROM registrants`).Scan(&n); err != nil {
		return 0, fmt.Errorf("count registrants: %w", err)
	}
	return n, nil
}

func (s *PostgresStore) findOne(ctx context.Context, query string, arg any) (*models.Registrant, error) {
	row := txcontext.Executor(ctx, s.db).QueryRowContext(ctx, query, arg)
	r, err := scanRegistrant(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, sentinel.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("find registrant: %w", err)
	}
	return r, nil
}

func (s *PostgresStore) exec(ctx context.Context, op, query string, args ...any) error {
	res, err := txcontext.Executor(ctx, s.db).ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("%s rows affected: %w", op, err)
	}
	if affected == 0 {
		return sentinel.ErrNotFound
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRegistrant(row rowScanner) (*models.Registrant, error) {
	var (
		r          models.Registrant
		rid        uuid.UUID
		code, tier string
		referredBy uuid.NullUUID
		interests  pq.StringArray
		lastLogin  sql.NullTime
	)
	err := row.Scan(&rid, &r.Email, &r.Name, &r.PasswordHash, &r.Position, &code, &referredBy,
		&r.ReferralCount, &interests, &tier, &r.EmailVerified, &r.IsPaying, &r.JoinedAt, &lastLogin)
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
	if referredBy.Valid {
		ref := id.RegistrantID(referredBy.UUID)
		r.ReferredBy = &ref
	}
	if lastLogin.Valid {
		at := lastLogin.Time
		r.LastLogin = &at
	}
	return &r, nil
}

func nullableID(rid *id.RegistrantID) uuid.NullUUID {
	if rid == nil {
		return uuid.NullUUID{}
	}
	return uuid.NullUUID{UUID: uuid.UUID(*rid), Valid: true}
}

// classifyInsertError maps unique-index violations onto the model's conflict errors.
func classifyInsertError(err error) error {
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) || pgErr.Code != pgUniqueViolation {
		return fmt.Errorf("insert registrant: %w", err)
	}
	switch pgErr.ConstraintName {
	case "registrants_email_key":
		return models.ErrEmailTaken
	case "registrants_position_key":
		return models.ErrPositionTaken
	case "registrants_referral_code_key":
		return models.ErrCodeTaken
	default:
		return sentinel.ErrConflict
	}
}
