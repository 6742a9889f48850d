// Package ports declares what the benefit policy reads from other modules,
// so the rewards package does not import their stores.
package ports

import (
	"context"

	"github.com/shopspring/decimal"

	id "lifenavigator/pkg/domain"
)

type RegistrantPort interface {
	Tier(ctx context.Context, registrantID id.RegistrantID) (id.Tier, error)
}

type CreditPort interface {
	ActiveCreditTotal(ctx context.Context, registrantID id.RegistrantID) (decimal.Decimal, error)
}

type VerificationPort interface {
	IsServiceVerified(ctx context.Context, registrantID id.RegistrantID) (bool, error)
}
