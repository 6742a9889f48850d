package tx

import (
	"context"
	"errors"
	"regexp"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	dErrors "lifenavigator/pkg/domain-errors"
)

func TestInMemory_SerializesSameKey(t *testing.T) {
	runner := NewInMemory()
	var (
		inFlight atomic.Int32
		maxSeen  atomic.Int32
		wg       sync.WaitGroup
	)

	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			err := runner.RunInTx(context.Background(), "referral:abc", func(ctx context.Context) error {
				n := inFlight.Add(1)
				if n > maxSeen.Load() {
					maxSeen.Store(n)
				}
				inFlight.Add(-1)
				return nil
			})
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(1), maxSeen.Load())
}

func TestInMemory_NestedSameKeyDoesNotDeadlock(t *testing.T) {
	runner := NewInMemory()
	calls := 0

	err := runner.RunInTx(context.Background(), "referral:abc", func(ctx context.Context) error {
		calls++
		return runner.RunInTx(ctx, "referral:abc", func(ctx context.Context) error {
			calls++
			return nil
		})
	})

	require.NoError(t, err)
	assert.Equal(t, 2, calls)
}

func TestInMemory_CancelledContext(t *testing.T) {
	runner := NewInMemory()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := runner.RunInTx(ctx, "k", func(ctx context.Context) error {
		t.Fatal("fn must not run")
		return nil
	})

	require.Error(t, err)
	assert.True(t, dErrors.HasCode(err, dErrors.CodeTimeout))
}

func TestPostgres_CommitsWithAdvisoryLock(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta(`SELECT pg_advisory_xact_lock(hashtextextended($1, 0))`)).
		WithArgs("waitlist:position").
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectCommit()

	var sawTx bool
	err = NewPostgres(db).RunInTx(context.Background(), "waitlist:position", func(ctx context.Context) error {
		_, sawTx = From(ctx)
		return nil
	})

	require.NoError(t, err)
	assert.True(t, sawTx)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgres_RollsBackOnError(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectBegin()
	mock.ExpectRollback()

	boom := errors.New("boom")
	err = NewPostgres(db).RunInTx(context.Background(), "", func(ctx context.Context) error {
		return boom
	})

	assert.ErrorIs(t, err, boom)
	assert.NoError(t, mock.ExpectationsWereMet())
}
