// Package app builds the module graph shared by the server and the operator CLI.
package app

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	adminadapters "lifenavigator/internal/admin/adapters"
	adminhandler "lifenavigator/internal/admin/handler"
	adminservice "lifenavigator/internal/admin/service"
	segmentstore "lifenavigator/internal/admin/store/segment"
	analyticshandler "lifenavigator/internal/analytics/handler"
	analyticsservice "lifenavigator/internal/analytics/service"
	analyticsstore "lifenavigator/internal/analytics/store"
	authhandler "lifenavigator/internal/auth/handler"
	authmetrics "lifenavigator/internal/auth/metrics"
	authservice "lifenavigator/internal/auth/service"
	"lifenavigator/internal/auth/store/revocation"
	billinghandler "lifenavigator/internal/billing/handler"
	billingmetrics "lifenavigator/internal/billing/metrics"
	jwttoken "lifenavigator/internal/jwt_token"
	"lifenavigator/internal/notify"
	notifymetrics "lifenavigator/internal/notify/metrics"
	"lifenavigator/internal/platform/config"
	"lifenavigator/internal/platform/kafka/producer"
	platformmetrics "lifenavigator/internal/platform/metrics"
	"lifenavigator/internal/platform/postgres"
	redisclient "lifenavigator/internal/platform/redis"
	"lifenavigator/internal/platform/scheduler"
	rlmetrics "lifenavigator/internal/ratelimit/metrics"
	rlmiddleware "lifenavigator/internal/ratelimit/middleware"
	rlmodels "lifenavigator/internal/ratelimit/models"
	rlservice "lifenavigator/internal/ratelimit/service"
	"lifenavigator/internal/ratelimit/store/bucket"
	referralhandler "lifenavigator/internal/referral/handler"
	refmetrics "lifenavigator/internal/referral/metrics"
	refmodels "lifenavigator/internal/referral/models"
	refservice "lifenavigator/internal/referral/service"
	"lifenavigator/internal/referral/store/ledger"
	"lifenavigator/internal/rewards"
	rewardsadapters "lifenavigator/internal/rewards/adapters"
	rewardshandler "lifenavigator/internal/rewards/handler"
	rewardsmetrics "lifenavigator/internal/rewards/metrics"
	httptransport "lifenavigator/internal/transport/http"
	verificationhandler "lifenavigator/internal/verification/handler"
	"lifenavigator/internal/verification/idme"
	vermetrics "lifenavigator/internal/verification/metrics"
	verservice "lifenavigator/internal/verification/service"
	"lifenavigator/internal/verification/store/state"
	"lifenavigator/internal/verification/store/verification"
	waitlisthandler "lifenavigator/internal/waitlist/handler"
	wlmetrics "lifenavigator/internal/waitlist/metrics"
	wlmodels "lifenavigator/internal/waitlist/models"
	wlservice "lifenavigator/internal/waitlist/service"
	"lifenavigator/internal/waitlist/store/registrant"
	id "lifenavigator/pkg/domain"
	"lifenavigator/pkg/platform/circuit"
	"lifenavigator/pkg/platform/events"
	"lifenavigator/pkg/platform/events/relay"
	eventsmemory "lifenavigator/pkg/platform/events/store/memory"
	eventspostgres "lifenavigator/pkg/platform/events/store/postgres"
	"lifenavigator/pkg/platform/tx"
)

const jwtIssuer = "lifenavigator"

// registrantStore is everything the waitlist and the ledger need from the registry.
type registrantStore interface {
	wlservice.RegistrantStore
	refservice.RegistrantStore
}

type verificationStore interface {
	verservice.VerificationStore
	adminadapters.VerificationCounts
}

// App holds the wired services. Fields are nil-free once Build returns.
type App struct {
	Config   config.Config
	Logger   *slog.Logger
	Registry *prometheus.Registry

	DB       *sql.DB
	Redis    *redisclient.Client
	Producer *producer.Producer

	Waitlist     *wlservice.Service
	Referral     *refservice.Service
	Auth         *authservice.Service
	Verification *verservice.Service
	Rewards      *rewards.Service
	Analytics    *analyticsservice.Service
	Admin        *adminservice.Service
	Limiter      *rlservice.Limiter
	Relay        *relay.Relay

	billingMetrics *billingmetrics.Metrics
	httpMetrics    *platformmetrics.Metrics

	// LocalBuckets is the in-process rate limit store; it needs periodic sweeping.
	LocalBuckets *bucket.InMemoryBucketStore

	closers []func() error
}

type Option func(*options)

type options struct {
	skipMigrate bool
	skipKafka   bool
}

// WithoutMigrations leaves the schema untouched, for commands that only read.
func WithoutMigrations() Option {
	return func(o *options) { o.skipMigrate = true }
}

// WithoutKafka publishes the outbox to the log instead of Kafka.
func WithoutKafka() Option {
	return func(o *options) { o.skipKafka = true }
}

// Build connects to the configured infrastructure and wires every module.
// Without DATABASE_URL the stores are in-memory; without REDIS_URL the caches,
// OAuth state and rate limit buckets are in-process.
func Build(ctx context.Context, cfg config.Config, logger *slog.Logger, opts ...Option) (*App, error) {
	var o options
	for _, opt := range opts {
		opt(&o)
	}

	a := &App{
		Config:   cfg,
		Logger:   logger,
		Registry: prometheus.NewRegistry(),
	}
	a.Registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	if err := a.connect(ctx, o); err != nil {
		_ = a.Close()
		return nil, err
	}
	a.wire()
	return a, nil
}

func (a *App) connect(ctx context.Context, o options) error {
	if a.Config.Database.URL != "" {
		db, err := postgres.Open(ctx, a.Config.Database)
		if err != nil {
			return err
		}
		a.DB = db
		a.closers = append(a.closers, db.Close)
		if !o.skipMigrate {
			if err := postgres.Migrate(ctx, db); err != nil {
				return err
			}
		}
	}

	rc, err := redisclient.Open(ctx, a.Config.Redis,
		redisclient.WithLogger(a.Logger),
		redisclient.WithPoolMetrics(a.Registry),
	)
	if err != nil {
		return err
	}
	if rc != nil {
		a.Redis = rc
		a.closers = append(a.closers, rc.Close)
	}

	if len(a.Config.Kafka.Brokers) > 0 && !o.skipKafka {
		p, err := producer.New(a.Config.Kafka.Brokers, a.Config.Kafka.Topic, a.Logger)
		if err != nil {
			return err
		}
		a.closers = append(a.closers, func() error { p.Close(); return nil })
		if err := p.EnsureTopic(ctx, 3, 1); err != nil {
			return fmt.Errorf("ensure topic: %w", err)
		}
		a.Producer = p
	}
	return nil
}

func (a *App) wire() {
	cfg := a.Config
	logger := a.Logger

	var (
		runner        tx.Runner
		eventStore    events.Store
		registrants   registrantStore
		ledgers       refservice.LedgerStore
		verifications verificationStore
		analytics     analyticsservice.Store
		segments      adminservice.SegmentStore
	)
	if a.DB != nil {
		runner = tx.NewPostgres(a.DB)
		eventStore = eventspostgres.New(a.DB)
		registrants = registrant.NewPostgres(a.DB)
		ledgers = ledger.NewPostgres(a.DB)
		verifications = verification.NewPostgres(a.DB)
		analytics = analyticsstore.NewPostgres(a.DB)
		segments = segmentstore.NewPostgres(a.DB)
	} else {
		logger.Warn("DATABASE_URL not set; using in-memory stores")
		memRegistrants := registrant.NewInMemory()
		runner = tx.NewInMemory()
		eventStore = eventsmemory.NewInMemoryStore()
		registrants = memRegistrants
		ledgers = ledger.NewInMemory()
		verifications = verification.NewInMemory()
		analytics = analyticsstore.NewInMemory()
		segments = segmentstore.NewInMemory(memRegistrants)
	}

	var (
		states      verservice.StateStore      = state.NewInMemory()
		revocations authservice.RevocationStore = revocation.NewInMemory()
		codes       wlservice.CodeResolver      = registrants
	)
	if a.Redis != nil {
		states = state.NewRedis(a.Redis.Client)
		revocations = revocation.NewRedis(a.Redis.Client)
		codes = registrant.NewCodeCache(registrants, a.Redis.Client, registrant.WithCacheLogger(logger))
	}

	policy := wlmodels.PositionPolicy{Base: cfg.Referral.PositionBase, Jump: cfg.Referral.PositionJump}
	tokens := jwttoken.NewJWTService(cfg.Server.JWTSigningKey, jwtIssuer)

	// The dispatcher needs links from services that in turn notify through it.
	var (
		referralSvc *refservice.Service
		authSvc     *authservice.Service
	)
	dispatcher := notify.NewDispatcher(a.sender(), policy,
		notify.WithLogger(logger),
		notify.WithMetrics(notifymetrics.New(a.Registry)),
		notify.WithReferralLinks(func(code id.ReferralCode) string {
			return referralSvc.LinkFor(code)
		}),
		notify.WithVerificationLinks(func(registrantID id.RegistrantID) (string, error) {
			token, err := authSvc.IssueEmailVerification(registrantID)
			if err != nil {
				return "", err
			}
			return cfg.Server.PublicBaseURL + "/verify-email?token=" + url.QueryEscape(token), nil
		}),
	)

	a.Waitlist = wlservice.New(registrants, runner, policy,
		wlservice.WithLogger(logger),
		wlservice.WithMetrics(wlmetrics.New(a.Registry)),
		wlservice.WithCodeResolver(codes),
		wlservice.WithNotifier(dispatcher),
		wlservice.WithEventStore(eventStore),
	)

	referralSvc = refservice.New(ledgers, registrants, runner, refservice.Config{
		Accrual: refmodels.AccrualPolicy{
			Threshold:    cfg.Referral.Threshold,
			CreditWindow: cfg.Referral.CreditWindow,
		},
		Position:    policy,
		LinkBaseURL: cfg.Server.PublicBaseURL,
		LinkSecret:  []byte(cfg.Referral.LinkSecret),
	},
		refservice.WithLogger(logger),
		refservice.WithMetrics(refmetrics.New(a.Registry)),
		refservice.WithNotifier(dispatcher),
		refservice.WithEventStore(eventStore),
	)
	a.Referral = referralSvc
	a.Waitlist.SetReferralRecorder(referralSvc)

	authSvc = authservice.New(a.Waitlist, tokens,
		authservice.WithLogger(logger),
		authservice.WithMetrics(authmetrics.New(a.Registry)),
		authservice.WithRevocationStore(revocations),
	)
	a.Auth = authSvc

	provider := idme.New(idme.Config{
		ClientID:     cfg.Verification.IDMeClientID,
		ClientSecret: cfg.Verification.IDMeClientSecret,
		RedirectURL:  cfg.Verification.IDMeRedirectURL,
		BaseURL:      cfg.Verification.IDMeBaseURL,
		APIBaseURL:   cfg.Verification.IDMeAPIBaseURL,
		Timeout:      10 * time.Second,
	},
		idme.WithBreaker(circuit.New("idme")),
		idme.WithLogger(logger),
	)
	a.Verification = verservice.New(provider, states, verifications,
		verservice.WithLogger(logger),
		verservice.WithMetrics(vermetrics.New(a.Registry)),
		verservice.WithEventStore(eventStore),
		verservice.WithStateTTL(cfg.Verification.StateTTL),
	)

	a.Rewards = rewards.NewService(
		rewardsadapters.NewRegistrantAdapter(registrants),
		rewardsadapters.NewCreditAdapter(referralSvc),
		rewardsadapters.NewVerificationAdapter(a.Verification),
		rewards.Config{
			TierPrices:      cfg.TierPrices,
			DiscountPercent: cfg.Verification.DiscountPercent,
		},
		rewardsmetrics.New(a.Registry),
	)

	a.Analytics = analyticsservice.New(analytics, logger)

	a.Admin = adminservice.New(segments,
		adminadapters.NewReferralAdapter(referralSvc),
		adminadapters.NewVerificationAdapter(verifications),
		a.Analytics,
		dispatcher,
		adminservice.WithLogger(logger),
		adminservice.WithEventStore(eventStore),
	)

	a.LocalBuckets = bucket.NewInMemoryBucketStore()
	rules := map[rlmodels.Class]rlmodels.Rule{
		rlmodels.ClassJoin:  {Limit: cfg.RateLimit.SignupPerIP, Window: cfg.RateLimit.Window},
		rlmodels.ClassLogin: {Limit: cfg.RateLimit.LoginPerIP, Window: cfg.RateLimit.Window},
	}
	limiterOpts := []rlservice.Option{
		rlservice.WithLogger(logger),
		rlservice.WithMetrics(rlmetrics.New(a.Registry)),
	}
	if a.Redis != nil {
		limiterOpts = append(limiterOpts, rlservice.WithFallback(a.LocalBuckets, circuit.New("ratelimit-redis")))
		a.Limiter = rlservice.New(bucket.NewRedisBucketStore(a.Redis.Client), rules, limiterOpts...)
	} else {
		a.Limiter = rlservice.New(a.LocalBuckets, rules, limiterOpts...)
	}

	var publisher events.Publisher = relay.LogPublisher{Logger: logger}
	if a.Producer != nil {
		publisher = a.Producer
	}
	a.Relay = relay.New(eventStore, publisher, runner, relay.WithLogger(logger))

	a.billingMetrics = billingmetrics.New(a.Registry)
	a.httpMetrics = platformmetrics.New(a.Registry)
}

// Router builds the HTTP surface over the wired services.
func (a *App) Router() http.Handler {
	logger := a.Logger
	handlers := httptransport.Handlers{
		Waitlist:     waitlisthandler.New(a.Waitlist, logger),
		Referral:     referralhandler.New(a.Referral, logger),
		Auth:         authhandler.New(a.Auth, logger),
		Verification: verificationhandler.New(a.Verification, logger),
		Rewards:      rewardshandler.New(a.Rewards, logger),
		Billing:      billinghandler.New(a.Referral, []byte(a.Config.Payments.WebhookSecret), logger, a.billingMetrics),
		Analytics:    analyticshandler.New(a.Analytics, logger),
		Admin:        adminhandler.New(a.Admin, logger),
	}
	return httptransport.NewRouter(handlers, httptransport.Deps{
		Logger:     logger,
		Sessions:   a.Auth,
		RateLimit:  rlmiddleware.New(a.Limiter, logger),
		AdminToken: a.Config.Server.AdminToken,
		Metrics:    a.httpMetrics,
		Gatherer:   a.Registry,
		Health:     a.Health,
	})
}

func (a *App) sender() notify.Sender {
	if a.Config.Email.ResendAPIKey == "" {
		a.Logger.Warn("RESEND_API_KEY not set; emails are logged, not sent")
		return notify.NewLogSender(a.Logger)
	}
	return notify.NewResendSender(a.Config.Email.ResendAPIKey, a.Config.Email.ResendBaseURL, a.Config.Email.From,
		notify.WithResendBreaker(circuit.New("resend")),
		notify.WithResendLogger(a.Logger),
	)
}

// Jobs returns the periodic maintenance work the server schedules.
func (a *App) Jobs() []scheduler.Job {
	sched := a.Config.Scheduler
	return []scheduler.Job{
		{
			Name:     "outbox-relay",
			Interval: sched.OutboxInterval,
			Run: func(ctx context.Context) error {
				_, err := a.Relay.RunOnce(ctx)
				return err
			},
		},
		{
			Name:     "credit-expiry",
			Interval: sched.ExpiryInterval,
			Run: func(ctx context.Context) error {
				n, err := a.Referral.ExpireCredits(ctx)
				if n > 0 {
					a.Logger.InfoContext(ctx, "credits expired", "count", n)
				}
				return err
			},
		},
		{
			Name:     "accrual-reconcile",
			Interval: sched.ReconcileInterval,
			Run: func(ctx context.Context) error {
				res, err := a.Referral.ReconcileAll(ctx)
				if err != nil {
					return err
				}
				a.Logger.InfoContext(ctx, "accrual reconciled", "referrers", res.Referrers, "credits", res.Credits, "failures", res.Failures)
				return nil
			},
		},
		{
			Name:     "ratelimit-sweep",
			Interval: time.Minute,
			Run: func(context.Context) error {
				a.LocalBuckets.Sweep()
				return nil
			},
		},
	}
}

// Health reports whether the backing infrastructure is reachable.
func (a *App) Health(ctx context.Context) error {
	var errs []error
	if a.DB != nil {
		if err := a.DB.PingContext(ctx); err != nil {
			errs = append(errs, fmt.Errorf("postgres: %w", err))
		}
	}
	if a.Redis != nil {
		if err := a.Redis.Health(ctx); err != nil {
			errs = append(errs, fmt.Errorf("redis: %w", err))
		}
	}
	if a.Producer != nil {
		if err := a.Producer.Health(ctx); err != nil {
			errs = append(errs, fmt.Errorf("kafka: %w", err))
		}
	}
	return errors.Join(errs...)
}

// Close releases connections in reverse order of acquisition.
func (a *App) Close() error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	a.closers = nil
	return errors.Join(errs...)
}
