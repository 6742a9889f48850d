package service

import (
	"context"
	"errors"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"lifenavigator/internal/referral/models"
	dErrors "lifenavigator/pkg/domain-errors"
	"lifenavigator/pkg/platform/events"
	"lifenavigator/pkg/platform/sentinel"
	"lifenavigator/pkg/requestcontext"
)

// MarkConverted records a paid subscription. It is idempotent: a repeated
// payment event, or a second conversion for an already converted entry,
// changes nothing. Newly converted referrals trigger accrual for their
// referrer after the conversion commits.
func (s *Service) MarkConverted(ctx context.Context, conv models.Conversion) (*models.ConversionResult, error) {
	ctx, span := tracer.Start(ctx, "referral.MarkConverted", trace.WithAttributes(
		attribute.String("referred_id", conv.ReferredID.String()),
		attribute.String("tier", conv.Tier.String()),
	))
	defer span.End()

	if err := conv.Validate(); err != nil {
		return nil, err
	}
	if _, err := s.registrants.FindByID(ctx, conv.ReferredID); err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, dErrors.New(dErrors.CodeNotFound, "registrant not found")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load registrant")
	}

	result := &models.ConversionResult{}
	lockKey := ""
	entry, err := s.ledger.FindByReferred(ctx, conv.ReferredID)
	switch {
	case err == nil:
		result.Referred = true
		lockKey = LockKey(entry.ReferrerID)
	case !errors.Is(err, sentinel.ErrNotFound):
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load ledger entry")
	}

	err = s.tx.RunInTx(ctx, lockKey, func(ctx context.Context) error {
		now := requestcontext.Now(ctx)
		if conv.EventID != "" {
			claimed, err := s.ledger.ClaimPaymentEvent(ctx, conv.EventID, conv.ReferredID, now)
			if err != nil {
				return dErrors.Wrap(err, dErrors.CodeInternal, "failed to claim payment event")
			}
			if !claimed {
				result.Duplicate = true
				return nil
			}
		}
		if err := s.registrants.SetPaying(ctx, conv.ReferredID, true); err != nil {
			return dErrors.Wrap(err, dErrors.CodeInternal, "failed to mark registrant paying")
		}
		if !result.Referred {
			return nil
		}

		converted, err := s.ledger.MarkConverted(ctx, conv.ReferredID, conv.Tier, conv.Amount, now)
		if err != nil {
			return dErrors.Wrap(err, dErrors.CodeInternal, "failed to record conversion")
		}
		result.Converted = converted
		if !converted {
			return nil
		}
		return s.emit(ctx, events.New(ctx, events.TypeConversionRecorded, entry.ReferrerID.String(), map[string]string{
			"referred_id": conv.ReferredID.String(),
			"tier":        conv.Tier.String(),
			"amount":      conv.Amount.StringFixed(2),
		}))
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "conversion failed")
		return nil, err
	}
	s.countConversion(result)

	if result.Converted {
		credits, err := s.Accrue(ctx, entry.ReferrerID)
		if err != nil {
			// The conversion is committed; the reconcile job retries accrual.
			s.logger.ErrorContext(ctx, "accrual after conversion failed",
				"referrer_id", entry.ReferrerID.String(),
				"error", err,
			)
		} else {
			result.Credits = credits
		}
	}
	return result, nil
}

func (s *Service) countConversion(result *models.ConversionResult) {
	if s.metrics == nil {
		return
	}
	switch {
	case result.Duplicate:
		s.metrics.IncrementConversion("duplicate")
	case !result.Referred:
		s.metrics.IncrementConversion("unreferred")
	case result.Converted:
		s.metrics.IncrementConversion("converted")
	default:
		s.metrics.IncrementConversion("repeat")
	}
}
