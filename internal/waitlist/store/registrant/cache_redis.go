package registrant

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"

	"lifenavigator/internal/waitlist/models"
	id "lifenavigator/pkg/domain"
)

const codeKeyPrefix = "waitlist:code:"

// Store is the persistence surface a CodeCache decorates.
type Store interface {
	FindByCode(ctx context.Context, code id.ReferralCode) (*models.Registrant, error)
	FindByID(ctx context.Context, registrantID id.RegistrantID) (*models.Registrant, error)
}

// CodeCache memoizes referral code to registrant id lookups in Redis. Codes are
// immutable, so entries only go stale when a registrant is deleted, which
// FindByID then reports as not found.
type CodeCache struct {
	store  Store
	client *redis.Client
	ttl    time.Duration
	logger *slog.Logger
}

type CodeCacheOption func(*CodeCache)

func WithCacheTTL(ttl time.Duration) CodeCacheOption {
	return func(c *CodeCache) { c.ttl = ttl }
}

func WithCacheLogger(logger *slog.Logger) CodeCacheOption {
	return func(c *CodeCache) { c.logger = logger }
}

func NewCodeCache(store Store, client *redis.Client, opts ...CodeCacheOption) *CodeCache {
	c := &CodeCache{
		store:  store,
		client: client,
		ttl:    10 * time.Minute,
		logger: slog.Default(),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(c)
		}
	}
	return c
}

// FindByCode resolves through Redis first. Redis failures fall through to the store.
func (c *CodeCache) FindByCode(ctx context.Context, code id.ReferralCode) (*models.Registrant, error) {
	key := codeKeyPrefix + code.String()
	cached, err := c.client.Get(ctx, key).Result()
	switch {
	case err == nil:
		if rid, parseErr := id.ParseRegistrantID(cached); parseErr == nil {
			return c.store.FindByID(ctx, rid)
		}
	case !errors.Is(err, redis.Nil):
		c.logger.WarnContext(ctx, "referral code cache read failed", "error", err)
	}

	r, err := c.store.FindByCode(ctx, code)
	if err != nil {
		return nil, err
	}
	if setErr := c.client.Set(ctx, key, r.ID.String(), c.ttl).Err(); setErr != nil {
		c.logger.WarnContext(ctx, "referral code cache write failed", "error", setErr)
	}
	return r, nil
}

// Forget drops a cached code, used when its registrant is deleted.
func (c *CodeCache) Forget(ctx context.Context, code id.ReferralCode) error {
	return c.client.Del(ctx, codeKeyPrefix+code.String()).Err()
}
