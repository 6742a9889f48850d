package ledger

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/lib/pq"
	"github.com/shopspring/decimal"

	"lifenavigator/internal/referral/models"
	id "lifenavigator/pkg/domain"
	"lifenavigator/pkg/platform/sentinel"
	txcontext "lifenavigator/pkg/platform/tx"
)

const (
	pgUniqueViolation     = "23505"
	pgForeignKeyViolation = "23503"
	pgCheckViolation      = "23514"
)

const entryColumns = `id, referrer_id, referred_id, created_at, tier, amount, converted_at, credited, credit_id`

const creditColumns = `id, referrer_id, amount, referral_batch_count, created_at, expires_at, used, used_at, expired_at`

// PostgresStore persists the ledger in PostgreSQL.
type PostgresStore struct {
	db *sql.DB
}

func NewPostgres(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

func (s *PostgresStore) Insert(ctx context.Context, e *models.LedgerEntry) error {
	_, err := txcontext.Executor(ctx, s.db).ExecContext(ctx, `
		INSERT INTO referral_ledger (id, referrer_id, referred_id, created_at)
		VALUES ($1, $2, $3, $4)
	`, uuid.UUID(e.ID), uuid.UUID(e.ReferrerID), uuid.UUID(e.ReferredID), e.CreatedAt)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) {
			switch pgErr.Code {
			case pgUniqueViolation, pgCheckViolation:
				return sentinel.ErrConflict
			case pgForeignKeyViolation:
				return sentinel.ErrNotFound
			}
		}
		return fmt.Errorf("insert ledger entry: %w", err)
	}
	return nil
}

func (s *PostgresStore) FindByReferred(ctx context.Context, referredID id.RegistrantID) (*models.LedgerEntry, error) {
	row := txcontext.Executor(ctx, s.db).QueryRowContext(ctx,
		`SELECT `+entryColumns+` FROM referral_ledger WHERE referred_id = $1`, uuid.UUID(referredID))
	e, err := scanEntry(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, sentinel.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("find ledger entry: %w", err)
	}
	return e, nil
}

func (s *PostgresStore) MarkConverted(ctx context.Context, referredID id.RegistrantID, tier id.Tier, amount decimal.Decimal, at time.Time) (bool, error) {
	res, err := txcontext.Executor(ctx, s.db).ExecContext(ctx, `
		UPDATE referral_ledger SET tier = $2, amount = $3, converted_at = $4
		WHERE referred_id = $1 AND converted_at IS NULL
	`, uuid.UUID(referredID), tier.String(), amount, at)
	if err != nil {
		return false, fmt.Errorf("mark converted: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("mark converted rows affected: %w", err)
	}
	if affected == 1 {
		return true, nil
	}
	if _, err := s.FindByReferred(ctx, referredID); err != nil {
		return false, err
	}
	return false, nil
}

func (s *PostgresStore) ListByReferrer(ctx context.Context, referrerID id.RegistrantID) ([]*models.LedgerEntry, error) {
	return s.queryEntries(ctx, `SELECT `+entryColumns+` FROM referral_ledger
		WHERE referrer_id = $1 ORDER BY created_at, id`, uuid.UUID(referrerID))
}

// ListUncredited locks the referrer's pending rows for the rest of the transaction.
func (s *PostgresStore) ListUncredited(ctx context.Context, referrerID id.RegistrantID) ([]*models.LedgerEntry, error) {
	return s.queryEntries(ctx, `SELECT `+entryColumns+` FROM referral_ledger
		WHERE referrer_id = $1 AND converted_at IS NOT NULL AND credited = FALSE
		ORDER BY converted_at, id
		FOR UPDATE`, uuid.UUID(referrerID))
}

// MintCredit inserts the credit and flips exactly len(entryIDs) rows to
// credited. Anything else is ErrCreditMintAtomicity and the caller's
// transaction must roll back. Without a transaction in ctx it opens its own.
func (s *PostgresStore) MintCredit(ctx context.Context, credit *models.Credit, entryIDs []id.LedgerEntryID) error {
	if _, ok := txcontext.From(ctx); !ok {
		sqlTx, err := s.db.BeginTx(ctx, nil)
		if err != nil {
			return fmt.Errorf("begin mint transaction: %w", err)
		}
		defer func() { _ = sqlTx.Rollback() }()
		if err := s.mint(txcontext.WithTx(ctx, sqlTx), credit, entryIDs); err != nil {
			return err
		}
		if err := sqlTx.Commit(); err != nil {
			return fmt.Errorf("commit mint transaction: %w", err)
		}
		return nil
	}
	return s.mint(ctx, credit, entryIDs)
}

func (s *PostgresStore) mint(ctx context.Context, credit *models.Credit, entryIDs []id.LedgerEntryID) error {
	if len(entryIDs) != credit.BatchCount {
		return models.ErrCreditMintAtomicity
	}
	exec := txcontext.Executor(ctx, s.db)
	_, err := exec.ExecContext(ctx, `
		INSERT INTO referral_credits (id, referrer_id, amount, referral_batch_count, created_at, expires_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`, uuid.UUID(credit.ID), uuid.UUID(credit.ReferrerID), credit.Amount, credit.BatchCount, credit.CreatedAt, credit.ExpiresAt)
	if err != nil {
		return fmt.Errorf("insert credit: %w", err)
	}

	ids := make([]string, len(entryIDs))
	for i, entryID := range entryIDs {
		ids[i] = entryID.String()
	}
	res, err := exec.ExecContext(ctx, `
		UPDATE referral_ledger SET credited = TRUE, credit_id = $1
		WHERE id = ANY($2::uuid[]) AND referrer_id = $3 AND credited = FALSE AND converted_at IS NOT NULL
	`, uuid.UUID(credit.ID), pq.Array(ids), uuid.UUID(credit.ReferrerID))
	if err != nil {
		return fmt.Errorf("mark entries credited: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("mark entries credited rows affected: %w", err)
	}
	if affected != int64(len(entryIDs)) {
		return models.ErrCreditMintAtomicity
	}
	return nil
}

// DeleteByRegistrant removes ledger rows where registrantID is either side and
// the credits they own. The foreign keys cascade the same way; deleting here
// keeps the ledger consistent before the registrant row goes.
func (s *PostgresStore) DeleteByRegistrant(ctx context.Context, registrantID id.RegistrantID) error {
	exec := txcontext.Executor(ctx, s.db)
	if _, err := exec.ExecContext(ctx, `
		DELETE FROM referral_ledger WHERE referrer_id = $1 OR referred_id = $1
	`, uuid.UUID(registrantID)); err != nil {
		return fmt.Errorf("delete ledger entries: %w", err)
	}
	if _, err := exec.ExecContext(ctx, `
		DELETE FROM referral_credits WHERE referrer_id = $1
	`, uuid.UUID(registrantID)); err != nil {
		return fmt.Errorf("delete credits: %w", err)
	}
	return nil
}

func (s *PostgresStore) ReferrersWithPending(ctx context.Context, threshold int) ([]id.RegistrantID, error) {
	rows, err := txcontext.Executor(ctx, s.db).QueryContext(ctx, `
		SELECT referrer_id FROM referral_ledger
		WHERE converted_at IS NOT NULL AND credited = FALSE
		GROUP BY referrer_id
		HAVING COUNT(*) >= $1
	`, threshold)
	if err != nil {
		return nil, fmt.Errorf("list pending referrers: %w", err)
	}
	defer rows.Close()

	out := []id.RegistrantID{}
	for rows.Next() {
		var u uuid.UUID
		if err := rows.Scan(&u); err != nil {
			return nil, fmt.Errorf("scan pending referrer: %w", err)
		}
		out = append(out, id.RegistrantID(u))
	}
	return out, rows.Err()
}

func (s *PostgresStore) ListCredits(ctx context.Context, referrerID id.RegistrantID) ([]*models.Credit, error) {
	rows, err := txcontext.Executor(ctx, s.db).QueryContext(ctx,
		`SELECT `+creditColumns+` FROM referral_credits WHERE referrer_id = $1 ORDER BY created_at, id`,
		uuid.UUID(referrerID))
	if err != nil {
		return nil, fmt.Errorf("list credits: %w", err)
	}
	return collectCredits(rows)
}

func (s *PostgresStore) FindCredit(ctx context.Context, creditID id.CreditID) (*models.Credit, error) {
	row := txcontext.Executor(ctx, s.db).QueryRowContext(ctx,
		`SELECT `+creditColumns+` FROM referral_credits WHERE id = $1`, uuid.UUID(creditID))
	c, err := scanCredit(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, sentinel.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("find credit: %w", err)
	}
	return c, nil
}

func (s *PostgresStore) MarkCreditUsed(ctx context.Context, creditID id.CreditID, at time.Time) error {
	res, err := txcontext.Executor(ctx, s.db).ExecContext(ctx, `
		UPDATE referral_credits SET used = TRUE, used_at = $2
		WHERE id = $1 AND used = FALSE AND expired_at IS NULL AND expires_at > $2
	`, uuid.UUID(creditID), at)
	if err != nil {
		return fmt.Errorf("mark credit used: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("mark credit used rows affected: %w", err)
	}
	if affected == 1 {
		return nil
	}
	c, err := s.FindCredit(ctx, creditID)
	if err != nil {
		return err
	}
	if c.Used {
		return sentinel.ErrAlreadyUsed
	}
	return sentinel.ErrExpired
}

func (s *PostgresStore) ExpireCredits(ctx context.Context, now time.Time) ([]*models.Credit, error) {
	rows, err := txcontext.Executor(ctx, s.db).QueryContext(ctx, `
		UPDATE referral_credits SET expired_at = $1
		WHERE used = FALSE AND expired_at IS NULL AND expires_at <= $1
		RETURNING `+creditColumns, now)
	if err != nil {
		return nil, fmt.Errorf("expire credits: %w", err)
	}
	return collectCredits(rows)
}

func (s *PostgresStore) ClaimPaymentEvent(ctx context.Context, eventID string, registrantID id.RegistrantID, at time.Time) (bool, error) {
	res, err := txcontext.Executor(ctx, s.db).ExecContext(ctx, `
		INSERT INTO processed_payment_events (event_id, registrant_id, processed_at)
		VALUES ($1, $2, $3)
		ON CONFLICT (event_id) DO NOTHING
	`, eventID, uuid.UUID(registrantID), at)
	if err != nil {
		return false, fmt.Errorf("claim payment event: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("claim payment event rows affected: %w", err)
	}
	return affected == 1, nil
}

func (s *PostgresStore) Totals(ctx context.Context, now time.Time) (models.Totals, error) {
	var t models.Totals
	err := txcontext.Executor(ctx, s.db).QueryRowContext(ctx, `
		SELECT
			(SELECT COUNT(*) FROM referral_ledger),
			(SELECT COUNT(*) FROM referral_ledger WHERE converted_at IS NOT NULL),
			(SELECT COUNT(*) FROM referral_credits),
			(SELECT COUNT(*) FROM referral_credits WHERE used = FALSE AND expired_at IS NULL AND expires_at > $1)
	`, now).Scan(&t.Referrals, &t.Conversions, &t.CreditsMinted, &t.ActiveCredits)
	if err != nil {
		return models.Totals{}, fmt.Errorf("ledger totals: %w", err)
	}
	return t, nil
}

func (s *PostgresStore) queryEntries(ctx context.Context, query string, args ...any) ([]*models.LedgerEntry, error) {
	rows, err := txcontext.Executor(ctx, s.db).QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query ledger: %w", err)
	}
	defer rows.Close()

	out := []*models.LedgerEntry{}
	for rows.Next() {
		e, err := scanEntry(rows)
		if err != nil {
			return nil, fmt.Errorf("scan ledger entry: %w", err)
		}
		out = append(out, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate ledger: %w", err)
	}
	return out, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanEntry(row rowScanner) (*models.LedgerEntry, error) {
	var (
		e                           models.LedgerEntry
		entryID, referrer, referred uuid.UUID
		tier                        sql.NullString
		amount                      decimal.NullDecimal
		convertedAt                 sql.NullTime
		creditID                    uuid.NullUUID
	)
	if err := row.Scan(&entryID, &referrer, &referred, &e.CreatedAt, &tier, &amount, &convertedAt, &e.Credited, &creditID); err != nil {
		return nil, err
	}
	e.ID = id.LedgerEntryID(entryID)
	e.ReferrerID = id.RegistrantID(referrer)
	e.ReferredID = id.RegistrantID(referred)
	if tier.Valid {
		e.Tier = id.Tier(tier.String)
	}
	if amount.Valid {
		a := amount.Decimal
		e.Amount = &a
	}
	if convertedAt.Valid {
		at := convertedAt.Time
		e.ConvertedAt = &at
	}
	if creditID.Valid {
		cid := id.CreditID(creditID.UUID)
		e.CreditID = &cid
	}
	return &e, nil
}

func scanCredit(row rowScanner) (*models.Credit, error) {
	var (
		c                  models.Credit
		creditID, referrer uuid.UUID
		usedAt, expiredAt  sql.NullTime
	)
	if err := row.Scan(&creditID, &referrer, &c.Amount, &c.BatchCount, &c.CreatedAt, &c.ExpiresAt, &c.Used, &usedAt, &expiredAt); err != nil {
		return nil, err
	}
	c.ID = id.CreditID(creditID)
	c.ReferrerID = id.RegistrantID(referrer)
	if usedAt.Valid {
		at := usedAt.Time
		c.UsedAt = &at
	}
	if expiredAt.Valid {
		at := expiredAt.Time
		c.ExpiredAt = &at
	}
	return &c, nil
}

func collectCredits(rows *sql.Rows) ([]*models.Credit, error) {
	defer rows.Close()
	out := []*models.Credit{}
	for rows.Next() {
		c, err := scanCredit(rows)
		if err != nil {
			return nil, fmt.Errorf("scan credit: %w", err)
		}
		out = append(out, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate credits: %w", err)
	}
	return out, nil
}
