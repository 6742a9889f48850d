// Package redis opens the shared go-redis client used for OAuth state, session
// revocation, referral code lookups and rate-limit buckets.
package redis

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/redis/go-redis/v9"

	"lifenavigator/internal/platform/config"
)

// Client embeds *redis.Client so stores can take the concrete type directly.
type Client struct {
	*redis.Client
}

type openOptions struct {
	logger   *slog.Logger
	registry prometheus.Registerer
}

type Option func(*openOptions)

func WithLogger(logger *slog.Logger) Option {
	return func(o *openOptions) {
		o.logger = logger
	}
}

// WithPoolMetrics exports connection pool gauges on reg.
func WithPoolMetrics(reg prometheus.Registerer) Option {
	return func(o *openOptions) {
		o.registry = reg
	}
}

// Open connects and pings. An empty cfg.URL means Redis is not configured and
// yields (nil, nil); callers fall back to in-process stores.
func Open(ctx context.Context, cfg config.RedisConfig, opts ...Option) (*Client, error) {
	if cfg.URL == "" {
		return nil, nil
	}
	o := openOptions{logger: slog.Default()}
	for _, opt := range opts {
		opt(&o)
	}

	ro, err := redis.ParseURL(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("parse redis URL: %w", err)
	}
	if cfg.PoolSize > 0 {
		ro.PoolSize = cfg.PoolSize
	}
	if cfg.MinIdleConns > 0 {
		ro.MinIdleConns = cfg.MinIdleConns
	}
	if cfg.DialTimeout > 0 {
		ro.DialTimeout = cfg.DialTimeout
	}
	if cfg.ReadTimeout > 0 {
		ro.ReadTimeout = cfg.ReadTimeout
	}
	if cfg.WriteTimeout > 0 {
		ro.WriteTimeout = cfg.WriteTimeout
	}

	c := &Client{Client: redis.NewClient(ro)}
	if err := c.Health(ctx); err != nil {
		_ = c.Client.Close()
		return nil, err
	}
	if o.registry != nil {
		c.registerPoolMetrics(o.registry)
	}
	o.logger.InfoContext(ctx, "redis connected", "addr", ro.Addr, "db", ro.DB, "pool_size", ro.PoolSize)
	return c, nil
}

func (c *Client) Health(ctx context.Context) error {
	if err := c.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("redis ping: %w", err)
	}
	return nil
}

func (c *Client) registerPoolMetrics(reg prometheus.Registerer) {
	f := promauto.With(reg)
	f.NewGaugeFunc(prometheus.GaugeOpts{
		Name: "lifenav_redis_pool_total_conns",
		Help: "Connections currently held by the Redis pool",
	}, func() float64 { return float64(c.PoolStats().TotalConns) })
	f.NewGaugeFunc(prometheus.GaugeOpts{
		Name: "lifenav_redis_pool_idle_conns",
		Help: "Idle connections in the Redis pool",
	}, func() float64 { return float64(c.PoolStats().IdleConns) })
	f.NewCounterFunc(prometheus.CounterOpts{
		Name: "lifenav_redis_pool_timeouts_total",
		Help: "Times a caller waited too long for a pooled Redis connection",
	}, func() float64 { return float64(c.PoolStats().Timeouts) })
}
