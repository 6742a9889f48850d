package state

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"lifenavigator/internal/verification/models"
	id "lifenavigator/pkg/domain"
	"lifenavigator/pkg/platform/sentinel"
)

const keyPrefix = "verification:idme:state:"

// RedisStore keeps states as keys with a TTL; GETDEL makes consumption single use.
type RedisStore struct {
	client *redis.Client
}

func NewRedis(client *redis.Client) *RedisStore {
	return &RedisStore{client: client}
}

func (s *RedisStore) Save(ctx context.Context, st models.State) error {
	ttl := time.Until(st.ExpiresAt)
	if ttl <= 0 {
		return sentinel.ErrExpired
	}
	ok, err := s.client.SetNX(ctx, keyPrefix+st.Value, st.RegistrantID.String(), ttl).Result()
	if err != nil {
		return fmt.Errorf("save verification state: %w", err)
	}
	if !ok {
		return sentinel.ErrConflict
	}
	return nil
}

// Consume relies on the key TTL for expiry, so now is unused.
func (s *RedisStore) Consume(ctx context.Context, value string, _ time.Time) (models.State, error) {
	raw, err := s.client.GetDel(ctx, keyPrefix+value).Result()
	if errors.Is(err, redis.Nil) {
		return models.State{}, sentinel.ErrNotFound
	}
	if err != nil {
		return models.State{}, fmt.Errorf("consume verification state: %w", err)
	}
	registrantID, err := id.ParseRegistrantID(raw)
	if err != nil {
		return models.State{}, fmt.Errorf("corrupt verification state: %w", err)
	}
	return models.State{Value: value, RegistrantID: registrantID}, nil
}
