package tx

import (
	"context"
	"database/sql"
	"time"

	dErrors "lifenavigator/pkg/domain-errors"
)

const defaultTxTimeout = 5 * time.Second

// Postgres runs units of work in a database transaction. Keys are turned into
// transaction-scoped advisory locks so work on the same key is serialized
// across processes.
type Postgres struct {
	db      *sql.DB
	timeout time.Duration
}

func NewPostgres(db *sql.DB) *Postgres {
	return &Postgres{db: db}
}

// WithTimeout overrides the default 5s transaction timeout.
func (p *Postgres) WithTimeout(d time.Duration) *Postgres {
	p.timeout = d
	return p
}

func (p *Postgres) RunInTx(ctx context.Context, key string, fn func(ctx context.Context) error) error {
	if err := ctx.Err(); err != nil {
		return dErrors.Wrap(err, dErrors.CodeTimeout, "transaction aborted: context cancelled")
	}

	// Join an enclosing transaction rather than opening a second connection.
	if existing, ok := From(ctx); ok {
		if err := advisoryLock(ctx, existing, key); err != nil {
			return err
		}
		return fn(ctx)
	}

	timeout := p.timeout
	if timeout == 0 {
		timeout = defaultTxTimeout
	}
	if _, hasDeadline := ctx.Deadline(); !hasDeadline {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	sqlTx, err := p.db.BeginTx(ctx, nil)
	if err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to begin transaction")
	}
	defer func() {
		_ = sqlTx.Rollback()
	}()

	if err := advisoryLock(ctx, sqlTx, key); err != nil {
		return err
	}

	if err := fn(WithTx(ctx, sqlTx)); err != nil {
		return err
	}

	if err := sqlTx.Commit(); err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to commit transaction")
	}
	return nil
}

func advisoryLock(ctx context.Context, sqlTx *sql.Tx, key string) error {
	if key == "" {
		return nil
	}
	if _, err := sqlTx.ExecContext(ctx, `SELECT pg_advisory_xact_lock(hashtextextended($1, 0))`, key); err != nil {
		if ctx.Err() != nil {
			return dErrors.Wrap(err, dErrors.CodeTimeout, "timed out waiting for lock")
		}
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to acquire lock")
	}
	return nil
}
