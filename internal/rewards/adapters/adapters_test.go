package adapters

import (
	"context"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	refmodels "lifenavigator/internal/referral/models"
	vermodels "lifenavigator/internal/verification/models"
	"lifenavigator/internal/waitlist/store/registrant"
	id "lifenavigator/pkg/domain"
	dErrors "lifenavigator/pkg/domain-errors"
)

type creditList []*refmodels.Credit

func (c creditList) ActiveCredits(context.Context, id.RegistrantID) ([]*refmodels.Credit, error) {
	return c, nil
}

type verificationResult struct {
	v   *vermodels.ServiceVerification
	err error
}

func (r verificationResult) Get(context.Context, id.RegistrantID) (*vermodels.ServiceVerification, error) {
	return r.v, r.err
}

func TestCreditAdapter_SumsActiveCredits(t *testing.T) {
	a := NewCreditAdapter(creditList{
		{Amount: decimal.RequireFromString("20.00")},
		{Amount: decimal.RequireFromString("25.50")},
	})

	total, err := a.ActiveCreditTotal(context.Background(), id.NewRegistrantID())

	require.NoError(t, err)
	assert.Equal(t, "45.50", total.StringFixed(2))
}

func TestVerificationAdapter(t *testing.T) {
	ctx := context.Background()

	ok, err := NewVerificationAdapter(verificationResult{v: &vermodels.ServiceVerification{}}).IsServiceVerified(ctx, id.NewRegistrantID())
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = NewVerificationAdapter(verificationResult{err: dErrors.New(dErrors.CodeNotFound, "none")}).IsServiceVerified(ctx, id.NewRegistrantID())
	require.NoError(t, err)
	assert.False(t, ok)

	_, err = NewVerificationAdapter(verificationResult{err: dErrors.New(dErrors.CodeInternal, "db")}).IsServiceVerified(ctx, id.NewRegistrantID())
	assert.Error(t, err)
}

func TestRegistrantAdapter_UnknownRegistrant(t *testing.T) {
	_, err := NewRegistrantAdapter(registrant.NewInMemory()).Tier(context.Background(), id.NewRegistrantID())
	assert.True(t, dErrors.HasCode(err, dErrors.CodeNotFound))
}
