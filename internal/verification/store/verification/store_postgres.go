package verification

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"

	"lifenavigator/internal/verification/models"
	id "lifenavigator/pkg/domain"
	"lifenavigator/pkg/platform/sentinel"
	txcontext "lifenavigator/pkg/platform/tx"
)

const pgForeignKeyViolation = "23503"

type PostgresStore struct {
	db *sql.DB
}

func NewPostgres(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

func (s *PostgresStore) Insert(ctx context.Context, v *models.ServiceVerification) error {
	res, err := txcontext.Executor(ctx, s.db).ExecContext(ctx, `
		INSERT INTO service_verifications (registrant_id, service_type, provider, verified_at)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (registrant_id) DO NOTHING
	`, uuid.UUID(v.RegistrantID), v.ServiceType.String(), v.Provider, v.VerifiedAt)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == pgForeignKeyViolation {
			return sentinel.ErrNotFound
		}
		return fmt.Errorf("insert service verification: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("insert service verification rows affected: %w", err)
	}
	if affected == 0 {
		return sentinel.ErrConflict
	}
	return nil
}

func (s *PostgresStore) FindByRegistrant(ctx context.Context, registrantID id.RegistrantID) (*models.ServiceVerification, error) {
	var (
		v           models.ServiceVerification
		rid         uuid.UUID
		serviceType string
	)
	err := txcontext.Executor(ctx, s.db).QueryRowContext(ctx, `
		SELECT registrant_id, service_type, provider, verified_at
		FROM service_verifications WHERE registrant_id = $1
	`, uuid.UUID(registrantID)).Scan(&rid, &serviceType, &v.Provider, &v.VerifiedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, sentinel.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("find service verification: %w", err)
	}
	v.RegistrantID = id.RegistrantID(rid)
	v.ServiceType = models.ServiceType(serviceType)
	return &v, nil
}

func (s *PostgresStore) CountByType(ctx context.Context) (map[models.ServiceType]int, error) {
	rows, err := txcontext.Executor(ctx, s.db).QueryContext(ctx,
		`SELECT service_type, COUNT(*) FROM service_verifications GROUP BY service_type`)
	if err != nil {
		return nil, fmt.Errorf("count service verifications: %w", err)
	}
	defer rows.Close()

	out := make(map[models.ServiceType]int)
	for rows.Next() {
		var (
			t string
			n int
		)
		if err := rows.Scan(&t, &n); err != nil {
			return nil, fmt.Errorf("scan service verification count: %w", err)
		}
		out[models.ServiceType(t)] = n
	}
	return out, rows.Err()
}
