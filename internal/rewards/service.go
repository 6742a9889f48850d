package rewards

import (
	"context"

	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"

	"lifenavigator/internal/rewards/metrics"
	"lifenavigator/internal/rewards/ports"
	id "lifenavigator/pkg/domain"
)

type Config struct {
	TierPrices      map[id.Tier]decimal.Decimal
	DiscountPercent decimal.Decimal
}

// Service evaluates the benefit policy against live module state.
type Service struct {
	registrants   ports.RegistrantPort
	credits       ports.CreditPort
	verifications ports.VerificationPort
	cfg           Config
	metrics       *metrics.Metrics
}

func NewService(registrants ports.RegistrantPort, credits ports.CreditPort, verifications ports.VerificationPort, cfg Config, m *metrics.Metrics) *Service {
	return &Service{
		registrants:   registrants,
		credits:       credits,
		verifications: verifications,
		cfg:           cfg,
		metrics:       m,
	}
}

// Best returns the single benefit the registrant is entitled to for their tier.
func (s *Service) Best(ctx context.Context, registrantID id.RegistrantID) (*Benefit, error) {
	tier, err := s.registrants.Tier(ctx, registrantID)
	if err != nil {
		return nil, err
	}

	var (
		verified bool
		credits  decimal.Decimal
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		v, err := s.verifications.IsServiceVerified(gctx, registrantID)
		verified = v
		return err
	})
	g.Go(func() error {
		c, err := s.credits.ActiveCreditTotal(gctx, registrantID)
		credits = c
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	b := ChooseBenefit(Input{
		Tier:            tier,
		TierPrice:       s.cfg.TierPrices[tier],
		ServiceVerified: verified,
		DiscountPercent: s.cfg.DiscountPercent,
		ActiveCredits:   credits,
	})
	s.metrics.IncrementBenefit(string(b.Kind))
	return &b, nil
}
