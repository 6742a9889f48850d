package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"lifenavigator/internal/waitlist/metrics"
	"lifenavigator/internal/waitlist/models"
	id "lifenavigator/pkg/domain"
	dErrors "lifenavigator/pkg/domain-errors"
	"lifenavigator/pkg/platform/events"
	"lifenavigator/pkg/platform/sentinel"
	"lifenavigator/pkg/platform/tx"
	"lifenavigator/pkg/requestcontext"
	"lifenavigator/pkg/secrets"
)

// PositionLockKey serializes every write that reads or claims a stored position.
const PositionLockKey = "waitlist:position"

const (
	maxAllocationAttempts = 3
	maxCodeAttempts       = 5
)

type RegistrantStore interface {
	Create(ctx context.Context, r *models.Registrant) error
	FindByID(ctx context.Context, registrantID id.RegistrantID) (*models.Registrant, error)
	FindByEmail(ctx context.Context, email string) (*models.Registrant, error)
	FindByCode(ctx context.Context, code id.ReferralCode) (*models.Registrant, error)
	MaxPosition(ctx context.Context) (int, error)
	SetPaying(ctx context.Context, registrantID id.RegistrantID, paying bool) error
	MarkEmailVerified(ctx context.Context, registrantID id.RegistrantID) error
	TouchLogin(ctx context.Context, registrantID id.RegistrantID, at time.Time) error
	Delete(ctx context.Context, registrantID id.RegistrantID) error
	List(ctx context.Context, filter models.ListFilter) ([]*models.Registrant, error)
	Count(ctx context.Context) (int, error)
}

// CodeResolver looks registrants up by referral code, typically through a cache.
type CodeResolver interface {
	FindByCode(ctx context.Context, code id.ReferralCode) (*models.Registrant, error)
}

// ReferralRecorder attributes a signup to its referrer. AttributeSignup errors
// are recoverable from the signup's point of view. ForgetRegistrant runs inside
// the delete transaction and drops every ledger row and credit naming the
// registrant.
type ReferralRecorder interface {
	AttributeSignup(ctx context.Context, referrerID, referredID id.RegistrantID) error
	ForgetRegistrant(ctx context.Context, registrantID id.RegistrantID) error
}

// codeForgetter is implemented by resolvers that cache codes.
type codeForgetter interface {
	Forget(ctx context.Context, code id.ReferralCode) error
}

// Notifier sends the welcome email. It must not fail the caller.
type Notifier interface {
	Welcome(ctx context.Context, r *models.Registrant, effectivePosition int)
}

// Service owns the waitlist registry and position allocation.
type Service struct {
	store      RegistrantStore
	tx         tx.Runner
	allocator  *Allocator
	policy     models.PositionPolicy
	codes      CodeResolver
	referrals  ReferralRecorder
	notifier   Notifier
	events     events.Store
	logger     *slog.Logger
	metrics    *metrics.Metrics
	bcryptCost int
}

type Option func(*Service)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) { s.logger = logger }
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Service) { s.metrics = m }
}

func WithCodeResolver(codes CodeResolver) Option {
	return func(s *Service) { s.codes = codes }
}

func WithReferralRecorder(r ReferralRecorder) Option {
	return func(s *Service) { s.referrals = r }
}

func WithNotifier(n Notifier) Option {
	return func(s *Service) { s.notifier = n }
}

func WithEventStore(store events.Store) Option {
	return func(s *Service) { s.events = store }
}

// WithBcryptCost lowers the hashing cost in tests.
func WithBcryptCost(cost int) Option {
	return func(s *Service) { s.bcryptCost = cost }
}

// New constructs the waitlist service. policy.Base is the first position handed out.
func New(store RegistrantStore, runner tx.Runner, policy models.PositionPolicy, opts ...Option) *Service {
	s := &Service{
		store:     store,
		tx:        runner,
		allocator: NewAllocator(store, policy.Base),
		policy:    policy,
		codes:     store,
		logger:    slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// SetReferralRecorder wires the referral service after construction; the two
// services reference each other.
func (s *Service) SetReferralRecorder(r ReferralRecorder) {
	s.referrals = r
}

// Policy exposes the effective-position policy to other modules.
func (s *Service) Policy() models.PositionPolicy {
	return s.policy
}

func (s *Service) Get(ctx context.Context, registrantID id.RegistrantID) (*models.Registrant, error) {
	r, err := s.store.FindByID(ctx, registrantID)
	if err != nil {
		return nil, translateNotFound(err, "registrant not found", "failed to load registrant")
	}
	return r, nil
}

func (s *Service) GetByEmail(ctx context.Context, email string) (*models.Registrant, error) {
	normalized, err := models.NormalizeEmail(email)
	if err != nil {
		return nil, err
	}
	r, err := s.store.FindByEmail(ctx, normalized)
	if err != nil {
		return nil, translateNotFound(err, "registrant not found", "failed to load registrant")
	}
	return r, nil
}

// ResolveCode finds the owner of a referral code.
func (s *Service) ResolveCode(ctx context.Context, raw string) (*models.Registrant, error) {
	code, err := id.ParseReferralCode(raw)
	if err != nil {
		return nil, err
	}
	r, err := s.codes.FindByCode(ctx, code)
	if err != nil {
		return nil, translateNotFound(err, "referral code not found", "failed to resolve referral code")
	}
	return r, nil
}

// Status reports stored and effective positions. PeopleAhead is effective-1.
func (s *Service) Status(ctx context.Context, registrantID id.RegistrantID) (*models.Status, error) {
	r, err := s.Get(ctx, registrantID)
	if err != nil {
		return nil, err
	}
	eff := s.EffectivePosition(r)
	return &models.Status{
		RegistrantID:      r.ID,
		Email:             r.Email,
		StoredPosition:    r.Position,
		EffectivePosition: eff,
		PeopleAhead:       eff - 1,
		ReferralCode:      r.ReferralCode,
		ReferralCount:     r.ReferralCount,
		EmailVerified:     r.EmailVerified,
		IsPaying:          r.IsPaying,
	}, nil
}

func (s *Service) EffectivePosition(r *models.Registrant) int {
	return s.policy.Effective(r.Position, r.ReferralCount)
}

func (s *Service) List(ctx context.Context, filter models.ListFilter) ([]*models.Registrant, int, error) {
	list, err := s.store.List(ctx, filter)
	if err != nil {
		return nil, 0, dErrors.Wrap(err, dErrors.CodeInternal, "failed to list registrants")
	}
	total, err := s.store.Count(ctx)
	if err != nil {
		return nil, 0, dErrors.Wrap(err, dErrors.CodeInternal, "failed to count registrants")
	}
	return list, total, nil
}

// Delete removes a registrant along with their referral ledger rows and
// credits. Anyone they referred stays on the list with referred_by cleared.
func (s *Service) Delete(ctx context.Context, registrantID id.RegistrantID) error {
	var code id.ReferralCode
	err := s.tx.RunInTx(ctx, PositionLockKey, func(ctx context.Context) error {
		r, err := s.store.FindByID(ctx, registrantID)
		if err != nil {
			return err
		}
		code = r.ReferralCode
		if s.referrals != nil {
			if err := s.referrals.ForgetRegistrant(ctx, registrantID); err != nil {
				return fmt.Errorf("forget referrals: %w", err)
			}
		}
		if err := s.store.Delete(ctx, registrantID); err != nil {
			return err
		}
		return s.emit(ctx, events.New(ctx, events.TypeRegistrantDeleted, registrantID.String(), nil))
	})
	if err != nil {
		return translateNotFound(err, "registrant not found", "failed to delete registrant")
	}
	if f, ok := s.codes.(codeForgetter); ok {
		if err := f.Forget(ctx, code); err != nil {
			s.logger.WarnContext(ctx, "failed to evict referral code from cache",
				"registrant_id", registrantID.String(),
				"error", err,
			)
		}
	}
	if s.metrics != nil {
		s.metrics.IncrementDeleted()
	}
	return nil
}

func (s *Service) MarkEmailVerified(ctx context.Context, registrantID id.RegistrantID) error {
	err := s.tx.RunInTx(ctx, "", func(ctx context.Context) error {
		if err := s.store.MarkEmailVerified(ctx, registrantID); err != nil {
			return err
		}
		return s.emit(ctx, events.New(ctx, events.TypeEmailVerified, registrantID.String(), nil))
	})
	if err != nil {
		return translateNotFound(err, "registrant not found", "failed to verify email")
	}
	return nil
}

func (s *Service) TouchLogin(ctx context.Context, registrantID id.RegistrantID) error {
	if err := s.store.TouchLogin(ctx, registrantID, requestcontext.Now(ctx)); err != nil {
		return translateNotFound(err, "registrant not found", "failed to record login")
	}
	return nil
}

func (s *Service) SetPaying(ctx context.Context, registrantID id.RegistrantID, paying bool) error {
	if err := s.store.SetPaying(ctx, registrantID, paying); err != nil {
		return translateNotFound(err, "registrant not found", "failed to update paying status")
	}
	return nil
}

// VerifyCredentials checks a login attempt against the stored password hash.
func (s *Service) VerifyCredentials(ctx context.Context, email, password string) (*models.Registrant, error) {
	r, err := s.GetByEmail(ctx, email)
	if err != nil {
		if dErrors.HasCode(err, dErrors.CodeNotFound) || dErrors.HasCode(err, dErrors.CodeValidation) {
			return nil, dErrors.New(dErrors.CodeUnauthorized, "invalid credentials")
		}
		return nil, err
	}
	if err := secrets.VerifyPassword(password, r.PasswordHash); err != nil {
		return nil, err
	}
	return r, nil
}

func (s *Service) emit(ctx context.Context, event events.Event) error {
	return events.Emit(ctx, s.logger, s.events, event)
}

func translateNotFound(err error, notFoundMsg, internalMsg string) error {
	if errors.Is(err, sentinel.ErrNotFound) {
		return dErrors.New(dErrors.CodeNotFound, notFoundMsg)
	}
	var de *dErrors.Error
	if errors.As(err, &de) {
		return err
	}
	return dErrors.Wrap(err, dErrors.CodeInternal, internalMsg)
}
