package service

import (
	"context"
	"errors"
	"strconv"

	"lifenavigator/internal/referral/models"
	wlmodels "lifenavigator/internal/waitlist/models"
	id "lifenavigator/pkg/domain"
	dErrors "lifenavigator/pkg/domain-errors"
	"lifenavigator/pkg/platform/events"
	"lifenavigator/pkg/platform/sentinel"
	"lifenavigator/pkg/requestcontext"
)

// RecordReferral attributes referredID to referrerID. The ledger insert, the
// referred registrant's back-reference and the referrer's count move together
// in one transaction serialized on the referrer.
func (s *Service) RecordReferral(ctx context.Context, referrerID, referredID id.RegistrantID) (*models.LedgerEntry, error) {
	entry, err := models.NewLedgerEntry(referrerID, referredID, requestcontext.Now(ctx))
	if err != nil {
		s.countReferral(err)
		return nil, err
	}

	var (
		referrer *wlmodels.Registrant
		count    int
	)
	err = s.tx.RunInTx(ctx, LockKey(referrerID), func(ctx context.Context) error {
		r, err := s.registrants.FindByID(ctx, referrerID)
		if err != nil {
			if errors.Is(err, sentinel.ErrNotFound) {
				return models.ErrUnknownReferrer
			}
			return dErrors.Wrap(err, dErrors.CodeInternal, "failed to load referrer")
		}
		referrer = r

		referred, err := s.registrants.FindByID(ctx, referredID)
		if err != nil {
			if errors.Is(err, sentinel.ErrNotFound) {
				return dErrors.New(dErrors.CodeNotFound, "referred registrant not found")
			}
			return dErrors.Wrap(err, dErrors.CodeInternal, "failed to load referred registrant")
		}
		if referred.ReferredBy != nil {
			return models.ErrDuplicateReferral
		}

		if err := s.ledger.Insert(ctx, entry); err != nil {
			return translateAttributionErr(err, "failed to insert ledger entry")
		}
		if err := s.registrants.SetReferrer(ctx, referredID, referrerID); err != nil {
			return translateAttributionErr(err, "failed to set referrer")
		}
		count, err = s.registrants.IncrementReferralCount(ctx, referrerID)
		if err != nil {
			return dErrors.Wrap(err, dErrors.CodeInternal, "failed to advance referrer")
		}

		return s.emit(ctx, events.New(ctx, events.TypeReferralRecorded, referrerID.String(), map[string]string{
			"referred_id":    referredID.String(),
			"referral_count": strconv.Itoa(count),
		}))
	})
	if err != nil {
		s.countReferral(err)
		return nil, err
	}
	s.countReferral(nil)

	referrer.ReferralCount = count
	if s.notifier != nil && s.isMilestone(count) {
		s.notifier.ReferralMilestone(ctx, referrer, count)
	}
	return entry, nil
}

// AttributeSignup is RecordReferral for callers that only need the outcome.
func (s *Service) AttributeSignup(ctx context.Context, referrerID, referredID id.RegistrantID) error {
	_, err := s.RecordReferral(ctx, referrerID, referredID)
	return err
}

// ForgetRegistrant drops the registrant's ledger rows on both sides and the
// credits they own. It joins the caller's transaction.
func (s *Service) ForgetRegistrant(ctx context.Context, registrantID id.RegistrantID) error {
	if err := s.ledger.DeleteByRegistrant(ctx, registrantID); err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to delete referral ledger rows")
	}
	return nil
}

func translateAttributionErr(err error, msg string) error {
	switch {
	case errors.Is(err, sentinel.ErrConflict):
		return models.ErrDuplicateReferral
	case errors.Is(err, sentinel.ErrNotFound):
		return models.ErrUnknownReferrer
	default:
		return dErrors.Wrap(err, dErrors.CodeInternal, msg)
	}
}

func (s *Service) countReferral(err error) {
	if s.metrics == nil {
		return
	}
	switch {
	case err == nil:
		s.metrics.IncrementReferral("recorded")
	case errors.Is(err, models.ErrDuplicateReferral):
		s.metrics.IncrementReferral("duplicate")
	case errors.Is(err, models.ErrSelfReferral):
		s.metrics.IncrementReferral("self")
	case errors.Is(err, models.ErrUnknownReferrer):
		s.metrics.IncrementReferral("unknown_referrer")
	default:
		s.metrics.IncrementReferral("error")
	}
}
