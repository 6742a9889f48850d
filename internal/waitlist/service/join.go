package service

import (
	"context"
	"errors"
	"strconv"
	"time"

	"lifenavigator/internal/waitlist/models"
	id "lifenavigator/pkg/domain"
	dErrors "lifenavigator/pkg/domain-errors"
	"lifenavigator/pkg/platform/events"
	"lifenavigator/pkg/platform/sentinel"
	"lifenavigator/pkg/requestcontext"
	"lifenavigator/pkg/secrets"
)

// Join puts an email on the waitlist, or returns the existing registrant for
// an email already on it. Referral attribution runs after the signup commits
// and never fails the signup.
func (s *Service) Join(ctx context.Context, req *models.JoinRequest) (*models.JoinResult, error) {
	start := time.Now()
	defer func() {
		if s.metrics != nil {
			s.metrics.ObserveJoin(start)
		}
	}()

	in, err := s.prepareJoin(ctx, req)
	if err != nil {
		return nil, err
	}

	var result *models.JoinResult
	for attempt := 1; attempt <= maxAllocationAttempts; attempt++ {
		result, err = s.joinOnce(ctx, in)
		if !errors.Is(err, models.ErrAllocationRace) {
			break
		}
		if s.metrics != nil {
			s.metrics.IncrementAllocationRetry()
		}
		s.logger.WarnContext(ctx, "position allocation raced, retrying", "attempt", attempt)
	}
	if errors.Is(err, models.ErrAllocationRace) {
		return nil, dErrors.Wrap(err, dErrors.CodeUnavailable, "waitlist is busy, please try again")
	}
	if err != nil {
		return nil, err
	}

	if in.referrer != nil && result.Registrant.ReferredBy == nil {
		result.Referred = s.attribute(ctx, in.referrer.ID, result.Registrant.ID)
		if result.Referred {
			ref := in.referrer.ID
			result.Registrant.ReferredBy = &ref
		}
	}

	if !result.AlreadyRegistered {
		if s.notifier != nil {
			s.notifier.Welcome(ctx, result.Registrant, result.EffectivePosition)
		}
		s.countSignup(result)
	} else if s.metrics != nil {
		s.metrics.IncrementSignup("existing")
	}
	return result, nil
}

type joinInput struct {
	email        string
	name         string
	passwordHash string
	interests    []string
	tier         id.Tier
	referrer     *models.Registrant
}

func (s *Service) prepareJoin(ctx context.Context, req *models.JoinRequest) (*joinInput, error) {
	if req == nil {
		return nil, dErrors.New(dErrors.CodeBadRequest, "request is required")
	}
	req.Normalize()
	if err := req.Validate(); err != nil {
		return nil, err
	}
	email, _ := models.NormalizeEmail(req.Email)
	name, _ := models.NormalizeName(req.Name)
	interests, _ := models.NormalizeInterests(req.Interests)
	tier, _ := id.ParseTier(req.TierPreference)

	in := &joinInput{email: email, name: name, interests: interests, tier: tier}
	if req.Password != "" {
		hash, err := secrets.HashPassword(req.Password, s.bcryptCost)
		if err != nil {
			return nil, err
		}
		in.passwordHash = hash
	}
	if req.ReferralCode != "" {
		in.referrer = s.lookupReferrer(ctx, req.ReferralCode)
	}
	return in, nil
}

// lookupReferrer resolves a code from the join form. Malformed and unknown
// codes are logged and dropped.
func (s *Service) lookupReferrer(ctx context.Context, raw string) *models.Registrant {
	code, err := id.ParseReferralCode(raw)
	if err != nil {
		s.logger.InfoContext(ctx, "ignoring malformed referral code at signup")
		return nil
	}
	referrer, err := s.codes.FindByCode(ctx, code)
	if err != nil {
		if !errors.Is(err, sentinel.ErrNotFound) {
			s.logger.WarnContext(ctx, "referral code lookup failed", "error", err)
		} else {
			s.logger.InfoContext(ctx, "ignoring unknown referral code at signup", "referral_code", code.String())
		}
		return nil
	}
	return referrer
}

func (s *Service) joinOnce(ctx context.Context, in *joinInput) (*models.JoinResult, error) {
	var result *models.JoinResult
	err := s.tx.RunInTx(ctx, PositionLockKey, func(ctx context.Context) error {
		existing, err := s.store.FindByEmail(ctx, in.email)
		if err == nil {
			result = &models.JoinResult{
				Registrant:        existing,
				EffectivePosition: s.EffectivePosition(existing),
				AlreadyRegistered: true,
			}
			return nil
		}
		if !errors.Is(err, sentinel.ErrNotFound) {
			return dErrors.Wrap(err, dErrors.CodeInternal, "failed to look up email")
		}

		position, err := s.allocator.Next(ctx)
		if err != nil {
			return dErrors.Wrap(err, dErrors.CodeInternal, "failed to allocate position")
		}
		code, err := s.uniqueCode(ctx)
		if err != nil {
			return err
		}

		r, err := models.NewRegistrant(id.NewRegistrantID(), in.email, in.name, position, code,
			in.interests, in.tier, in.passwordHash, requestcontext.Now(ctx))
		if err != nil {
			return dErrors.Wrap(err, dErrors.CodeInternal, "failed to build registrant")
		}
		if err := s.store.Create(ctx, r); err != nil {
			if errors.Is(err, sentinel.ErrConflict) {
				return models.ErrAllocationRace
			}
			return dErrors.Wrap(err, dErrors.CodeInternal, "failed to save registrant")
		}

		if err := s.emit(ctx, events.New(ctx, events.TypeRegistrantJoined, r.ID.String(), map[string]string{
			"position": strconv.Itoa(position),
			"tier":     r.TierPreference.String(),
		})); err != nil {
			return dErrors.Wrap(err, dErrors.CodeInternal, "failed to record join event")
		}
		result = &models.JoinResult{Registrant: r, EffectivePosition: s.EffectivePosition(r)}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// uniqueCode draws codes until one is unused. The unique index still guards
// against a collision that appears between check and insert.
func (s *Service) uniqueCode(ctx context.Context) (id.ReferralCode, error) {
	for i := 0; i < maxCodeAttempts; i++ {
		code, err := id.GenerateReferralCode()
		if err != nil {
			return "", err
		}
		_, err = s.store.FindByCode(ctx, code)
		if errors.Is(err, sentinel.ErrNotFound) {
			return code, nil
		}
		if err != nil {
			return "", dErrors.Wrap(err, dErrors.CodeInternal, "failed to check referral code")
		}
	}
	return "", models.ErrAllocationRace
}

// attribute records the referral and reports whether it stuck.
func (s *Service) attribute(ctx context.Context, referrerID, referredID id.RegistrantID) bool {
	if s.referrals == nil {
		return false
	}
	if err := s.referrals.AttributeSignup(ctx, referrerID, referredID); err != nil {
		s.logger.InfoContext(ctx, "referral not recorded at signup",
			"referrer_id", referrerID.String(),
			"referred_id", referredID.String(),
			"reason", err.Error(),
		)
		return false
	}
	return true
}

func (s *Service) countSignup(result *models.JoinResult) {
	if s.metrics == nil {
		return
	}
	if result.Referred {
		s.metrics.IncrementSignup("referred")
		return
	}
	s.metrics.IncrementSignup("created")
}
