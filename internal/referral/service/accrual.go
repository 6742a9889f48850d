package service

import (
	"context"
	"errors"
	"strconv"
	"sync"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"

	"lifenavigator/internal/referral/models"
	wlmodels "lifenavigator/internal/waitlist/models"
	id "lifenavigator/pkg/domain"
	dErrors "lifenavigator/pkg/domain-errors"
	"lifenavigator/pkg/platform/events"
	"lifenavigator/pkg/platform/sentinel"
	"lifenavigator/pkg/requestcontext"
)

// Accrue mints one credit per full batch of the referrer's oldest converted,
// uncredited referrals. Each credit claims its batch atomically; if any claim
// comes up short the whole accrual rolls back with ErrCreditMintAtomicity.
func (s *Service) Accrue(ctx context.Context, referrerID id.RegistrantID) ([]*models.Credit, error) {
	ctx, span := tracer.Start(ctx, "referral.Accrue", trace.WithAttributes(
		attribute.String("referrer_id", referrerID.String()),
	))
	defer span.End()

	start := time.Now()
	defer func() {
		if s.metrics != nil {
			s.metrics.ObserveAccrual(start)
		}
	}()

	var (
		referrer *wlmodels.Registrant
		minted   []*models.Credit
	)
	err := s.tx.RunInTx(ctx, LockKey(referrerID), func(ctx context.Context) error {
		minted = nil
		r, err := s.registrants.FindByID(ctx, referrerID)
		if err != nil {
			if errors.Is(err, sentinel.ErrNotFound) {
				return models.ErrUnknownReferrer
			}
			return dErrors.Wrap(err, dErrors.CodeInternal, "failed to load referrer")
		}
		referrer = r

		pending, err := s.ledger.ListUncredited(ctx, referrerID)
		if err != nil {
			return dErrors.Wrap(err, dErrors.CodeInternal, "failed to list uncredited referrals")
		}

		now := requestcontext.Now(ctx)
		for _, batch := range s.cfg.Accrual.Batches(pending) {
			credit := &models.Credit{
				ID:         id.NewCreditID(),
				ReferrerID: referrerID,
				Amount:     models.CreditAmount(batch),
				BatchCount: len(batch),
				CreatedAt:  now,
				ExpiresAt:  now.Add(s.cfg.Accrual.CreditWindow),
			}
			entryIDs := make([]id.LedgerEntryID, len(batch))
			for i, e := range batch {
				entryIDs[i] = e.ID
			}
			if err := s.ledger.MintCredit(ctx, credit, entryIDs); err != nil {
				if errors.Is(err, models.ErrCreditMintAtomicity) {
					return err
				}
				return dErrors.Wrap(err, dErrors.CodeInternal, "failed to mint credit")
			}
			if err := s.emit(ctx, events.New(ctx, events.TypeCreditMinted, referrerID.String(), map[string]string{
				"credit_id":   credit.ID.String(),
				"amount":      credit.Amount.StringFixed(2),
				"batch_count": strconv.Itoa(credit.BatchCount),
			})); err != nil {
				return dErrors.Wrap(err, dErrors.CodeInternal, "failed to record credit event")
			}
			minted = append(minted, credit)
		}
		return nil
	})
	if err != nil {
		if errors.Is(err, models.ErrCreditMintAtomicity) {
			if s.metrics != nil {
				s.metrics.IncrementMintAtomicityFailure()
			}
			s.logger.ErrorContext(ctx, "credit mint rolled back",
				"referrer_id", referrerID.String(),
				"error", err,
			)
		}
		span.RecordError(err)
		span.SetStatus(codes.Error, "accrual failed")
		return nil, err
	}

	span.SetAttributes(attribute.Int("credits_minted", len(minted)))
	if len(minted) > 0 {
		if s.metrics != nil {
			s.metrics.AddCreditsMinted(len(minted))
		}
		if s.notifier != nil {
			for _, c := range minted {
				s.notifier.CreditEarned(ctx, referrer, c)
			}
		}
	}
	return minted, nil
}

// ReconcileAll accrues every referrer holding a full batch. One referrer's
// failure does not stop the others; failures are counted and joined.
func (s *Service) ReconcileAll(ctx context.Context) (models.ReconcileResult, error) {
	referrers, err := s.ledger.ReferrersWithPending(ctx, s.cfg.Accrual.Threshold)
	if err != nil {
		return models.ReconcileResult{}, dErrors.Wrap(err, dErrors.CodeInternal, "failed to list pending referrers")
	}

	var (
		mu     sync.Mutex
		result = models.ReconcileResult{Referrers: len(referrers)}
		errs   []error
	)
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.reconcileJobs)
	for _, referrerID := range referrers {
		g.Go(func() error {
			credits, err := s.Accrue(gctx, referrerID)
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				result.Failures++
				errs = append(errs, err)
				return nil
			}
			result.Credits += len(credits)
			return nil
		})
	}
	_ = g.Wait()

	s.logger.InfoContext(ctx, "accrual reconcile finished",
		"referrers", result.Referrers,
		"credits", result.Credits,
		"failures", result.Failures,
	)
	return result, errors.Join(errs...)
}

// ExpireCredits sweeps unused credits past their expiry.
func (s *Service) ExpireCredits(ctx context.Context) (int, error) {
	var expired []*models.Credit
	err := s.tx.RunInTx(ctx, "", func(ctx context.Context) error {
		var err error
		expired, err = s.ledger.ExpireCredits(ctx, requestcontext.Now(ctx))
		if err != nil {
			return dErrors.Wrap(err, dErrors.CodeInternal, "failed to expire credits")
		}
		for _, c := range expired {
			if err := s.emit(ctx, events.New(ctx, events.TypeCreditExpired, c.ReferrerID.String(), map[string]string{
				"credit_id": c.ID.String(),
			})); err != nil {
				return dErrors.Wrap(err, dErrors.CodeInternal, "failed to record expiry event")
			}
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	if s.metrics != nil {
		s.metrics.AddCreditsExpired(len(expired))
	}
	return len(expired), nil
}

// RedeemCredit marks one of the referrer's active credits used.
func (s *Service) RedeemCredit(ctx context.Context, referrerID id.RegistrantID, creditID id.CreditID) (*models.Credit, error) {
	var credit *models.Credit
	err := s.tx.RunInTx(ctx, LockKey(referrerID), func(ctx context.Context) error {
		c, err := s.ledger.FindCredit(ctx, creditID)
		if err != nil {
			if errors.Is(err, sentinel.ErrNotFound) {
				return dErrors.New(dErrors.CodeNotFound, "credit not found")
			}
			return dErrors.Wrap(err, dErrors.CodeInternal, "failed to load credit")
		}
		if c.ReferrerID != referrerID {
			return dErrors.New(dErrors.CodeNotFound, "credit not found")
		}

		now := requestcontext.Now(ctx)
		if err := s.ledger.MarkCreditUsed(ctx, creditID, now); err != nil {
			switch {
			case errors.Is(err, sentinel.ErrAlreadyUsed):
				return dErrors.New(dErrors.CodeConflict, "credit already used")
			case errors.Is(err, sentinel.ErrExpired):
				return dErrors.New(dErrors.CodeConflict, "credit expired")
			default:
				return dErrors.Wrap(err, dErrors.CodeInternal, "failed to redeem credit")
			}
		}
		c.Used = true
		c.UsedAt = &now
		credit = c
		return s.emit(ctx, events.New(ctx, events.TypeCreditRedeemed, referrerID.String(), map[string]string{
			"credit_id": creditID.String(),
		}))
	})
	if err != nil {
		return nil, err
	}
	if s.metrics != nil {
		s.metrics.IncrementCreditsRedeemed()
	}
	return credit, nil
}
