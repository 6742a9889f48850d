// Package config loads service configuration from the environment.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	id "lifenavigator/pkg/domain"
)

// Config is the full service configuration.
type Config struct {
	Server       ServerConfig
	Database     DatabaseConfig
	Redis        RedisConfig
	Kafka        KafkaConfig
	Referral     ReferralConfig
	Verification VerificationConfig
	Email        EmailConfig
	Payments     PaymentsConfig
	RateLimit    RateLimitConfig
	Scheduler    SchedulerConfig
	TierPrices   map[id.Tier]decimal.Decimal
}

// ServerConfig captures HTTP server level configuration.
type ServerConfig struct {
	Addr          string
	Environment   string
	LogLevel      string
	AdminToken    string
	JWTSigningKey string
	PublicBaseURL string
}

// DatabaseConfig selects Postgres; an empty URL runs on in-memory stores.
type DatabaseConfig struct {
	URL             string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
}

type RedisConfig struct {
	URL          string
	PoolSize     int
	MinIdleConns int
	DialTimeout  time.Duration
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

type KafkaConfig struct {
	Brokers []string
	Topic   string
}

// ReferralConfig holds the referral program parameters.
type ReferralConfig struct {
	Threshold    int
	PositionJump int
	PositionBase int
	CreditWindow time.Duration
	LinkSecret   string
}

type VerificationConfig struct {
	IDMeClientID     string
	IDMeClientSecret string
	IDMeRedirectURL  string
	IDMeBaseURL      string
	IDMeAPIBaseURL   string
	DiscountPercent  decimal.Decimal
	StateTTL         time.Duration
}

type EmailConfig struct {
	ResendAPIKey  string
	ResendBaseURL string
	From          string
}

type PaymentsConfig struct {
	WebhookSecret string
}

type RateLimitConfig struct {
	SignupPerIP int
	LoginPerIP  int
	Window      time.Duration
}

type SchedulerConfig struct {
	OutboxInterval    time.Duration
	ExpiryInterval    time.Duration
	ReconcileInterval time.Duration
}

const devSecret = "dev-secret-change-in-production"

// FromEnv builds a Config from environment variables so main stays lean.
func FromEnv() (Config, error) {
	var errs []error
	intVar := func(key string, def int) int {
		v, err := getInt(key, def)
		if err != nil {
			errs = append(errs, err)
		}
		return v
	}
	durVar := func(key string, def time.Duration) time.Duration {
		v, err := getDuration(key, def)
		if err != nil {
			errs = append(errs, err)
		}
		return v
	}
	decVar := func(key string, def string) decimal.Decimal {
		v, err := getDecimal(key, def)
		if err != nil {
			errs = append(errs, err)
		}
		return v
	}

	cfg := Config{
		Server: ServerConfig{
			Addr:          getString("LIFENAV_ADDR", ":8080"),
			Environment:   getString("LIFENAV_ENV", "dev"),
			LogLevel:      getString("LOG_LEVEL", "info"),
			AdminToken:    os.Getenv("ADMIN_TOKEN"),
			JWTSigningKey: getString("JWT_SIGNING_KEY", devSecret),
			PublicBaseURL: strings.TrimRight(getString("PUBLIC_BASE_URL", "http://localhost:3000"), "/"),
		},
		Database: DatabaseConfig{
			URL:             os.Getenv("DATABASE_URL"),
			MaxOpenConns:    intVar("DATABASE_MAX_OPEN_CONNS", 20),
			MaxIdleConns:    intVar("DATABASE_MAX_IDLE_CONNS", 5),
			ConnMaxLifetime: durVar("DATABASE_CONN_MAX_LIFETIME", 30*time.Minute),
		},
		Redis: RedisConfig{
			URL:          os.Getenv("REDIS_URL"),
			PoolSize:     intVar("REDIS_POOL_SIZE", 10),
			MinIdleConns: intVar("REDIS_MIN_IDLE_CONNS", 2),
			DialTimeout:  durVar("REDIS_DIAL_TIMEOUT", 5*time.Second),
			ReadTimeout:  durVar("REDIS_READ_TIMEOUT", 3*time.Second),
			WriteTimeout: durVar("REDIS_WRITE_TIMEOUT", 3*time.Second),
		},
		Kafka: KafkaConfig{
			Brokers: splitList(os.Getenv("KAFKA_BROKERS")),
			Topic:   getString("KAFKA_TOPIC", "lifenavigator.events"),
		},
		Referral: ReferralConfig{
			Threshold:    intVar("REFERRAL_THRESHOLD", 20),
			PositionJump: intVar("REFERRAL_POSITION_JUMP", 100),
			PositionBase: intVar("WAITLIST_POSITION_BASE", 100),
			CreditWindow: durVar("REFERRAL_CREDIT_WINDOW", 30*24*time.Hour),
			LinkSecret:   getString("REFERRAL_LINK_SECRET", devSecret),
		},
		Verification: VerificationConfig{
			IDMeClientID:     os.Getenv("IDME_CLIENT_ID"),
			IDMeClientSecret: os.Getenv("IDME_CLIENT_SECRET"),
			IDMeRedirectURL:  os.Getenv("IDME_REDIRECT_URL"),
			IDMeBaseURL:      strings.TrimRight(getString("IDME_BASE_URL", "https://api.id.me"), "/"),
			IDMeAPIBaseURL:   strings.TrimRight(getString("IDME_API_BASE_URL", "https://api.id.me"), "/"),
			DiscountPercent:  decVar("SERVICE_DISCOUNT_PERCENT", "15"),
			StateTTL:         durVar("IDME_STATE_TTL", 10*time.Minute),
		},
		Email: EmailConfig{
			ResendAPIKey:  os.Getenv("RESEND_API_KEY"),
			ResendBaseURL: strings.TrimRight(getString("RESEND_BASE_URL", "https://api.resend.com"), "/"),
			From:          getString("EMAIL_FROM", "LifeNavigator <hello@lifenavigator.app>"),
		},
		Payments: PaymentsConfig{
			WebhookSecret: getString("PAYMENTS_WEBHOOK_SECRET", devSecret),
		},
		RateLimit: RateLimitConfig{
			SignupPerIP: intVar("RATELIMIT_SIGNUP_PER_IP", 10),
			LoginPerIP:  intVar("RATELIMIT_LOGIN_PER_IP", 20),
			Window:      durVar("RATELIMIT_WINDOW", time.Hour),
		},
		Scheduler: SchedulerConfig{
			OutboxInterval:    durVar("SCHEDULER_OUTBOX_INTERVAL", 5*time.Second),
			ExpiryInterval:    durVar("SCHEDULER_EXPIRY_INTERVAL", time.Hour),
			ReconcileInterval: durVar("SCHEDULER_RECONCILE_INTERVAL", 10*time.Minute),
		},
		TierPrices: map[id.Tier]decimal.Decimal{
			id.TierFree:   decimal.Zero,
			id.TierPro:    decVar("TIER_PRICE_PRO", "20.00"),
			id.TierAI:     decVar("TIER_PRICE_AI", "30.00"),
			id.TierFamily: decVar("TIER_PRICE_FAMILY", "40.00"),
		},
	}

	if len(errs) > 0 {
		return Config{}, errors.Join(errs...)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// IsDev reports whether development defaults are acceptable.
func (c Config) IsDev() bool {
	return c.Server.Environment == "dev" || c.Server.Environment == "test"
}

// Validate rejects settings that would break referral arithmetic or leave
// secrets at their development defaults outside dev.
func (c Config) Validate() error {
	var errs []error
	if c.Referral.Threshold <= 0 {
		errs = append(errs, errors.New("REFERRAL_THRESHOLD must be positive"))
	}
	if c.Referral.PositionJump <= 0 {
		errs = append(errs, errors.New("REFERRAL_POSITION_JUMP must be positive"))
	}
	if c.Referral.PositionBase <= 0 {
		errs = append(errs, errors.New("WAITLIST_POSITION_BASE must be positive"))
	}
	if c.Referral.CreditWindow <= 0 {
		errs = append(errs, errors.New("REFERRAL_CREDIT_WINDOW must be positive"))
	}
	if c.Verification.DiscountPercent.IsNegative() || c.Verification.DiscountPercent.GreaterThan(decimal.NewFromInt(100)) {
		errs = append(errs, errors.New("SERVICE_DISCOUNT_PERCENT must be between 0 and 100"))
	}
	if !c.IsDev() {
		for name, v := range map[string]string{
			"JWT_SIGNING_KEY":         c.Server.JWTSigningKey,
			"REFERRAL_LINK_SECRET":    c.Referral.LinkSecret,
			"PAYMENTS_WEBHOOK_SECRET": c.Payments.WebhookSecret,
		} {
			if v == devSecret {
				errs = append(errs, fmt.Errorf("%s must be set outside dev", name))
			}
		}
		if c.Server.AdminToken == "" {
			errs = append(errs, errors.New("ADMIN_TOKEN must be set outside dev"))
		}
	}
	return errors.Join(errs...)
}

func getString(key, def string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return def
}

func getInt(key string, def int) (int, error) {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return def, fmt.Errorf("%s: %w", key, err)
	}
	return n, nil
}

func getDuration(key string, def time.Duration) (time.Duration, error) {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return def, fmt.Errorf("%s: %w", key, err)
	}
	return d, nil
}

func getDecimal(key, def string) (decimal.Decimal, error) {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		v = def
	}
	d, err := decimal.NewFromString(v)
	if err != nil {
		return decimal.Zero, fmt.Errorf("%s: %w", key, err)
	}
	return d, nil
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
