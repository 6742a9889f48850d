// Package service applies per-class sliding-window rules to client IPs.
package service

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"lifenavigator/internal/ratelimit/metrics"
	"lifenavigator/internal/ratelimit/models"
	"lifenavigator/pkg/platform/circuit"
)

type BucketStore interface {
	Allow(ctx context.Context, key string, limit int, window time.Duration) (*models.Result, error)
}

// Limiter checks the primary store and, once the breaker opens, answers from
// an in-process fallback until the primary recovers.
type Limiter struct {
	primary  BucketStore
	fallback BucketStore
	breaker  *circuit.Breaker
	rules    map[models.Class]models.Rule
	metrics  *metrics.Metrics
	logger   *slog.Logger
}

type Option func(*Limiter)

func WithLogger(logger *slog.Logger) Option {
	return func(l *Limiter) { l.logger = logger }
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(l *Limiter) { l.metrics = m }
}

// WithFallback enables degraded mode backed by store, guarded by breaker.
func WithFallback(store BucketStore, breaker *circuit.Breaker) Option {
	return func(l *Limiter) {
		l.fallback = store
		l.breaker = breaker
	}
}

func New(primary BucketStore, rules map[models.Class]models.Rule, opts ...Option) *Limiter {
	l := &Limiter{
		primary: primary,
		rules:   rules,
		logger:  slog.Default(),
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Check counts one request from ip against class. Classes without a rule, or
// with a non-positive limit, are unlimited.
func (l *Limiter) Check(ctx context.Context, class models.Class, ip string) (*models.Result, error) {
	rule, ok := l.rules[class]
	if !ok || rule.Limit <= 0 || rule.Window <= 0 {
		return &models.Result{Allowed: true}, nil
	}
	key := models.NewIPKey(class, ip)

	result, err := l.allow(ctx, key, rule)
	switch {
	case err != nil:
		l.metrics.IncrementDecision(string(class), "error")
	case result.Allowed:
		l.metrics.IncrementDecision(string(class), "allowed")
	default:
		l.metrics.IncrementDecision(string(class), "limited")
	}
	return result, err
}

func (l *Limiter) allow(ctx context.Context, key string, rule models.Rule) (*models.Result, error) {
	if l.fallback == nil {
		return l.primary.Allow(ctx, key, rule.Limit, rule.Window)
	}

	if !l.breaker.IsOpen() || l.breaker.Allow() {
		result, err := l.primary.Allow(ctx, key, rule.Limit, rule.Window)
		if err == nil {
			if _, change := l.breaker.RecordSuccess(); change.Closed {
				l.logger.InfoContext(ctx, "rate limit store recovered", "breaker", l.breaker.Name())
				l.metrics.SetDegraded(false)
			}
			if !l.breaker.IsOpen() {
				return result, nil
			}
		} else {
			_, change := l.breaker.RecordFailure()
			if change.Opened {
				l.logger.WarnContext(ctx, "rate limit store failing, using in-process fallback",
					"breaker", l.breaker.Name(),
					"error", err,
				)
				l.metrics.SetDegraded(true)
			}
			if !l.breaker.IsOpen() {
				return nil, fmt.Errorf("check rate limit: %w", err)
			}
		}
	}

	result, err := l.fallback.Allow(ctx, key, rule.Limit, rule.Window)
	if err != nil {
		return nil, fmt.Errorf("check fallback rate limit: %w", err)
	}
	result.Degraded = true
	return result, nil
}
