package service

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"net/url"
	"strings"

	"github.com/shopspring/decimal"

	"lifenavigator/internal/referral/models"
	id "lifenavigator/pkg/domain"
	dErrors "lifenavigator/pkg/domain-errors"
	"lifenavigator/pkg/platform/sentinel"
	"lifenavigator/pkg/requestcontext"
)

// linkSignatureLen is the number of hex characters of the HMAC kept in links.
const linkSignatureLen = 16

// Stats summarizes a referrer's referrals, credits and place in line.
func (s *Service) Stats(ctx context.Context, referrerID id.RegistrantID) (*models.Stats, error) {
	r, err := s.registrants.FindByID(ctx, referrerID)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, dErrors.New(dErrors.CodeNotFound, "registrant not found")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load registrant")
	}
	entries, err := s.ledger.ListByReferrer(ctx, referrerID)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to list referrals")
	}
	credits, err := s.ledger.ListCredits(ctx, referrerID)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to list credits")
	}

	stats := &models.Stats{
		ReferrerID:         r.ID,
		ReferralCode:       r.ReferralCode,
		ReferralLink:       s.LinkFor(r.ReferralCode),
		TotalReferrals:     len(entries),
		RequiredForBenefit: s.cfg.Accrual.Threshold,
		StoredPosition:     r.Position,
		EffectivePosition:  s.cfg.Position.Effective(r.Position, r.ReferralCount),
		ActiveCredits:      []*models.Credit{},
		ActiveCreditTotal:  decimal.Zero,
	}
	for _, e := range entries {
		if e.IsConverted() {
			stats.Converted++
		}
		if e.Credited {
			stats.Credited++
		}
	}
	if t := s.cfg.Accrual.Threshold; t > 0 {
		stats.PendingTowardNext = (stats.Converted - stats.Credited) % t
	}

	now := requestcontext.Now(ctx)
	for _, c := range credits {
		if c.IsActive(now) {
			stats.ActiveCredits = append(stats.ActiveCredits, c)
			stats.ActiveCreditTotal = stats.ActiveCreditTotal.Add(c.Amount)
		}
	}
	return stats, nil
}

// ActiveCredits lists the referrer's redeemable credits.
func (s *Service) ActiveCredits(ctx context.Context, referrerID id.RegistrantID) ([]*models.Credit, error) {
	credits, err := s.ledger.ListCredits(ctx, referrerID)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to list credits")
	}
	now := requestcontext.Now(ctx)
	out := []*models.Credit{}
	for _, c := range credits {
		if c.IsActive(now) {
			out = append(out, c)
		}
	}
	return out, nil
}

// Totals returns ledger-wide counters.
func (s *Service) Totals(ctx context.Context) (models.Totals, error) {
	t, err := s.ledger.Totals(ctx, requestcontext.Now(ctx))
	if err != nil {
		return models.Totals{}, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load referral totals")
	}
	return t, nil
}

// ReferralLink returns the registrant's signed share link.
func (s *Service) ReferralLink(ctx context.Context, referrerID id.RegistrantID) (string, error) {
	r, err := s.registrants.FindByID(ctx, referrerID)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return "", dErrors.New(dErrors.CodeNotFound, "registrant not found")
		}
		return "", dErrors.Wrap(err, dErrors.CodeInternal, "failed to load registrant")
	}
	return s.LinkFor(r.ReferralCode), nil
}

// LinkFor builds <base>/join?ref=<code>&sig=<tag>. Without a secret the sig is omitted.
func (s *Service) LinkFor(code id.ReferralCode) string {
	q := url.Values{"ref": {code.String()}}
	if len(s.cfg.LinkSecret) > 0 {
		q.Set("sig", s.sign(code.String()))
	}
	return strings.TrimRight(s.cfg.LinkBaseURL, "/") + "/join?" + q.Encode()
}

// VerifyLinkSignature checks a sig taken from a share link.
func (s *Service) VerifyLinkSignature(code, sig string) bool {
	if len(s.cfg.LinkSecret) == 0 {
		return false
	}
	parsed, err := id.ParseReferralCode(code)
	if err != nil {
		return false
	}
	expected := s.sign(parsed.String())
	return hmac.Equal([]byte(expected), []byte(strings.ToLower(strings.TrimSpace(sig))))
}

func (s *Service) sign(code string) string {
	mac := hmac.New(sha256.New, s.cfg.LinkSecret)
	mac.Write([]byte(code))
	return hex.EncodeToString(mac.Sum(nil))[:linkSignatureLen]
}
