//go:build integration

package state_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"lifenavigator/internal/verification/models"
	"lifenavigator/internal/verification/store/state"
	id "lifenavigator/pkg/domain"
	"lifenavigator/pkg/platform/sentinel"
	"lifenavigator/pkg/testutil/containers"
)

type RedisStateSuite struct {
	suite.Suite
	redis *containers.RedisContainer
	store *state.RedisStore
}

func TestRedisStateSuite(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	suite.Run(t, new(RedisStateSuite))
}

func (s *RedisStateSuite) SetupSuite() {
	s.redis = containers.GetManager().GetRedis(s.T())
	s.store = state.NewRedis(s.redis.Client)
}

func (s *RedisStateSuite) SetupTest() {
	s.redis.Flush(s.T())
}

func (s *RedisStateSuite) TestSingleUse() {
	ctx := context.Background()
	registrantID := id.NewRegistrantID()
	s.Require().NoError(s.store.Save(ctx, models.State{Value: "v1", RegistrantID: registrantID, ExpiresAt: time.Now().Add(time.Minute)}))

	got, err := s.store.Consume(ctx, "v1", time.Now())
	s.Require().NoError(err)
	s.Equal(registrantID, got.RegistrantID)

	_, err = s.store.Consume(ctx, "v1", time.Now())
	s.ErrorIs(err, sentinel.ErrNotFound)
}

func (s *RedisStateSuite) TestExpiresWithTTL() {
	ctx := context.Background()
	s.Require().NoError(s.store.Save(ctx, models.State{Value: "v2", RegistrantID: id.NewRegistrantID(), ExpiresAt: time.Now().Add(time.Second)}))

	s.Eventually(func() bool {
		_, err := s.store.Consume(ctx, "v2", time.Now())
		return err != nil
	}, 5*time.Second, 200*time.Millisecond)
}
