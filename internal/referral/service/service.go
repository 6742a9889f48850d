package service

import (
	"context"
	"log/slog"
	"time"

	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel"

	"lifenavigator/internal/referral/metrics"
	"lifenavigator/internal/referral/models"
	wlmodels "lifenavigator/internal/waitlist/models"
	id "lifenavigator/pkg/domain"
	"lifenavigator/pkg/platform/events"
	"lifenavigator/pkg/platform/tx"
)

var tracer = otel.Tracer("lifenavigator/internal/referral")

// DefaultMilestones are the referral counts that trigger a milestone email.
var DefaultMilestones = []int{1, 5, 10, 20, 50, 100}

// LockKey serializes every ledger write for one referrer.
func LockKey(referrerID id.RegistrantID) string {
	return "referral:" + referrerID.String()
}

type LedgerStore interface {
	Insert(ctx context.Context, e *models.LedgerEntry) error
	FindByReferred(ctx context.Context, referredID id.RegistrantID) (*models.LedgerEntry, error)
	MarkConverted(ctx context.Context, referredID id.RegistrantID, tier id.Tier, amount decimal.Decimal, at time.Time) (bool, error)
	ListByReferrer(ctx context.Context, referrerID id.RegistrantID) ([]*models.LedgerEntry, error)
	ListUncredited(ctx context.Context, referrerID id.RegistrantID) ([]*models.LedgerEntry, error)
	MintCredit(ctx context.Context, credit *models.Credit, entryIDs []id.LedgerEntryID) error
	ReferrersWithPending(ctx context.Context, threshold int) ([]id.RegistrantID, error)
	DeleteByRegistrant(ctx context.Context, registrantID id.RegistrantID) error
	ListCredits(ctx context.Context, referrerID id.RegistrantID) ([]*models.Credit, error)
	FindCredit(ctx context.Context, creditID id.CreditID) (*models.Credit, error)
	MarkCreditUsed(ctx context.Context, creditID id.CreditID, at time.Time) error
	ExpireCredits(ctx context.Context, now time.Time) ([]*models.Credit, error)
	ClaimPaymentEvent(ctx context.Context, eventID string, registrantID id.RegistrantID, at time.Time) (bool, error)
	Totals(ctx context.Context, now time.Time) (models.Totals, error)
}

// RegistrantStore is the slice of the waitlist registry the ledger writes through.
type RegistrantStore interface {
	FindByID(ctx context.Context, registrantID id.RegistrantID) (*wlmodels.Registrant, error)
	SetReferrer(ctx context.Context, registrantID, referrerID id.RegistrantID) error
	IncrementReferralCount(ctx context.Context, registrantID id.RegistrantID) (int, error)
	SetPaying(ctx context.Context, registrantID id.RegistrantID, paying bool) error
}

// Notifier sends referral emails. Implementations swallow their own failures.
type Notifier interface {
	ReferralMilestone(ctx context.Context, referrer *wlmodels.Registrant, count int)
	CreditEarned(ctx context.Context, referrer *wlmodels.Registrant, credit *models.Credit)
}

// Config holds the referral rules.
type Config struct {
	Accrual     models.AccrualPolicy
	Position    wlmodels.PositionPolicy
	LinkBaseURL string
	LinkSecret  []byte
	Milestones  []int
}

// Service owns the referral ledger and credit accrual.
type Service struct {
	ledger        LedgerStore
	registrants   RegistrantStore
	tx            tx.Runner
	cfg           Config
	notifier      Notifier
	events        events.Store
	logger        *slog.Logger
	metrics       *metrics.Metrics
	reconcileJobs int
}

type Option func(*Service)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) { s.logger = logger }
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Service) { s.metrics = m }
}

func WithNotifier(n Notifier) Option {
	return func(s *Service) { s.notifier = n }
}

func WithEventStore(store events.Store) Option {
	return func(s *Service) { s.events = store }
}

// WithReconcileConcurrency bounds how many referrers ReconcileAll accrues at once.
func WithReconcileConcurrency(n int) Option {
	return func(s *Service) {
		if n > 0 {
			s.reconcileJobs = n
		}
	}
}

func New(ledger LedgerStore, registrants RegistrantStore, runner tx.Runner, cfg Config, opts ...Option) *Service {
	if cfg.Milestones == nil {
		cfg.Milestones = DefaultMilestones
	}
	s := &Service{
		ledger:        ledger,
		registrants:   registrants,
		tx:            runner,
		cfg:           cfg,
		logger:        slog.Default(),
		reconcileJobs: 4,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Service) emit(ctx context.Context, event events.Event) error {
	return events.Emit(ctx, s.logger, s.events, event)
}

func (s *Service) isMilestone(count int) bool {
	for _, m := range s.cfg.Milestones {
		if m == count {
			return true
		}
	}
	return false
}
