package registrant

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"

	"lifenavigator/internal/waitlist/models"
	id "lifenavigator/pkg/domain"
	"lifenavigator/pkg/platform/sentinel"
)

type InMemoryStoreSuite struct {
	suite.Suite
	store *InMemoryStore
	ctx   context.Context
}

func TestInMemoryStoreSuite(t *testing.T) {
	suite.Run(t, new(InMemoryStoreSuite))
}

func (s *InMemoryStoreSuite) SetupTest() {
	s.store = NewInMemory()
	s.ctx = context.Background()
}

func newTestRegistrant(t require.TestingT, email string, position int, code string) *models.Registrant {
	r, err := models.NewRegistrant(id.NewRegistrantID(), email, "", position, id.ReferralCode(code), nil, id.TierFree, "", time.Now())
	require.NoError(t, err)
	return r
}

func (s *InMemoryStoreSuite) TestCreateEnforcesUniqueness() {
	s.Require().NoError(s.store.Create(s.ctx, newTestRegistrant(s.T(), "a@example.com", 100, "AAAAAAAA")))

	err := s.store.Create(s.ctx, newTestRegistrant(s.T(), "A@Example.com", 101, "BBBBBBBB"))
	s.ErrorIs(err, models.ErrEmailTaken)
	s.ErrorIs(err, sentinel.ErrConflict)

	err = s.store.Create(s.ctx, newTestRegistrant(s.T(), "b@example.com", 100, "BBBBBBBB"))
	s.ErrorIs(err, models.ErrPositionTaken)

	err = s.store.Create(s.ctx, newTestRegistrant(s.T(), "b@example.com", 101, "AAAAAAAA"))
	s.ErrorIs(err, models.ErrCodeTaken)
}

func (s *InMemoryStoreSuite) TestMaxPosition() {
	maxPos, err := s.store.MaxPosition(s.ctx)
	s.Require().NoError(err)
	s.Equal(0, maxPos)

	s.Require().NoError(s.store.Create(s.ctx, newTestRegistrant(s.T(), "a@example.com", 100, "AAAAAAAA")))
	s.Require().NoError(s.store.Create(s.ctx, newTestRegistrant(s.T(), "b@example.com", 101, "BBBBBBBB")))

	maxPos, err = s.store.MaxPosition(s.ctx)
	s.Require().NoError(err)
	s.Equal(101, maxPos)
}

func (s *InMemoryStoreSuite) TestSetReferrerIsWriteOnce() {
	referrer := newTestRegistrant(s.T(), "r@example.com", 100, "AAAAAAAA")
	referred := newTestRegistrant(s.T(), "d@example.com", 101, "BBBBBBBB")
	other := newTestRegistrant(s.T(), "o@example.com", 102, "CCCCCCCC")
	for _, r := range []*models.Registrant{referrer, referred, other} {
		s.Require().NoError(s.store.Create(s.ctx, r))
	}

	s.Require().NoError(s.store.SetReferrer(s.ctx, referred.ID, referrer.ID))
	s.ErrorIs(s.store.SetReferrer(s.ctx, referred.ID, other.ID), sentinel.ErrConflict)
	s.ErrorIs(s.store.SetReferrer(s.ctx, other.ID, other.ID), sentinel.ErrConflict)
	s.ErrorIs(s.store.SetReferrer(s.ctx, id.NewRegistrantID(), referrer.ID), sentinel.ErrNotFound)

	got, err := s.store.FindByID(s.ctx, referred.ID)
	s.Require().NoError(err)
	s.Require().NotNil(got.ReferredBy)
	s.Equal(referrer.ID, *got.ReferredBy)
}

func (s *InMemoryStoreSuite) TestDeleteClearsReferredBy() {
	referrer := newTestRegistrant(s.T(), "r@example.com", 100, "AAAAAAAA")
	referred := newTestRegistrant(s.T(), "d@example.com", 101, "BBBBBBBB")
	s.Require().NoError(s.store.Create(s.ctx, referrer))
	s.Require().NoError(s.store.Create(s.ctx, referred))
	s.Require().NoError(s.store.SetReferrer(s.ctx, referred.ID, referrer.ID))

	s.Require().NoError(s.store.Delete(s.ctx, referrer.ID))

	got, err := s.store.FindByID(s.ctx, referred.ID)
	s.Require().NoError(err)
	s.Nil(got.ReferredBy)
	_, err = s.store.FindByCode(s.ctx, referrer.ReferralCode)
	s.ErrorIs(err, sentinel.ErrNotFound)
}

func (s *InMemoryStoreSuite) TestReturnedValuesAreCopies() {
	r := newTestRegistrant(s.T(), "a@example.com", 100, "AAAAAAAA")
	s.Require().NoError(s.store.Create(s.ctx, r))

	got, err := s.store.FindByID(s.ctx, r.ID)
	s.Require().NoError(err)
	got.ReferralCount = 99

	again, err := s.store.FindByID(s.ctx, r.ID)
	s.Require().NoError(err)
	s.Equal(0, again.ReferralCount)
}

func (s *InMemoryStoreSuite) TestListPagesInPositionOrder() {
	for i := 0; i < 5; i++ {
		r := newTestRegistrant(s.T(), fmt.Sprintf("user%d@example.com", i), 104-i, fmt.Sprintf("CODE000%d", i))
		s.Require().NoError(s.store.Create(s.ctx, r))
	}

	page, err := s.store.List(s.ctx, models.ListFilter{Limit: 2, Offset: 1})
	s.Require().NoError(err)
	s.Require().Len(page, 2)
	s.Equal(101, page[0].Position)
	s.Equal(102, page[1].Position)

	page, err = s.store.List(s.ctx, models.ListFilter{Query: "USER3"})
	s.Require().NoError(err)
	s.Require().Len(page, 1)
	s.Equal("user3@example.com", page[0].Email)
}

func TestInMemoryStore_ConcurrentCreateSamePosition(t *testing.T) {
	store := NewInMemory()
	ctx := context.Background()

	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		successes int
		conflicts int
	)
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			r := newTestRegistrant(t, fmt.Sprintf("u%d@example.com", i), 100, fmt.Sprintf("CODE%04d", i))
			err := store.Create(ctx, r)
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				successes++
			case errors.Is(err, models.ErrPositionTaken):
				conflicts++
			}
		}(i)
	}
	wg.Wait()

	assert.Equal(t, 1, successes)
	assert.Equal(t, 19, conflicts)
}
