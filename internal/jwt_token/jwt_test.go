package jwttoken

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	id "lifenavigator/pkg/domain"
	dErrors "lifenavigator/pkg/domain-errors"
)

var (
	registrantID = id.NewRegistrantID()
	fixedNow     = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
)

func newService(now time.Time) *JWTService {
	return NewJWTService("test-signing-key", "", WithClock(func() time.Time { return now }))
}

func Test_IssueAndValidate(t *testing.T) {
	svc := newService(fixedNow)

	token, issued, err := svc.Issue(registrantID, PurposeSession, SessionTTL)
	require.NoError(t, err)
	require.NotEmpty(t, token)

	claims, err := svc.Validate(token, PurposeSession)
	require.NoError(t, err)
	assert.Equal(t, registrantID.String(), claims.RegistrantID)
	assert.Equal(t, DefaultIssuer, claims.Issuer)
	assert.Equal(t, issued.ID, claims.ID)
	assert.True(t, claims.ExpiresAt.Time.Equal(fixedNow.Add(24*time.Hour)))

	got, err := RegistrantIDFrom(claims)
	require.NoError(t, err)
	assert.Equal(t, registrantID, got)
}

func Test_ValidateExpired(t *testing.T) {
	token, _, err := newService(fixedNow).Issue(registrantID, PurposeSession, SessionTTL)
	require.NoError(t, err)

	_, err = newService(fixedNow.Add(25*time.Hour)).Validate(token, PurposeSession)

	require.Error(t, err)
	assert.Equal(t, "token has expired", dErrors.Message(err))
}

func Test_ValidateWrongPurpose(t *testing.T) {
	svc := newService(fixedNow)
	token, _, err := svc.Issue(registrantID, PurposeEmailVerification, EmailVerificationTTL)
	require.NoError(t, err)

	_, err = svc.Validate(token, PurposeSession)

	assert.True(t, dErrors.HasCode(err, dErrors.CodeUnauthorized))
}

func Test_ValidateRejectsForeignIssuerAndKey(t *testing.T) {
	token, _, err := NewJWTService("other-key", "", WithClock(func() time.Time { return fixedNow })).
		Issue(registrantID, PurposeSession, SessionTTL)
	require.NoError(t, err)
	_, err = newService(fixedNow).Validate(token, PurposeSession)
	assert.True(t, dErrors.HasCode(err, dErrors.CodeUnauthorized))

	token, _, err = NewJWTService("test-signing-key", "someone-else", WithClock(func() time.Time { return fixedNow })).
		Issue(registrantID, PurposeSession, SessionTTL)
	require.NoError(t, err)
	_, err = newService(fixedNow).Validate(token, PurposeSession)
	assert.True(t, dErrors.HasCode(err, dErrors.CodeUnauthorized))
}

func Test_ValidateRejectsNoneAlgorithm(t *testing.T) {
	token, err := jwt.NewWithClaims(jwt.SigningMethodNone, &Claims{
		RegistrantID: registrantID.String(),
		Purpose:      PurposeSession,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    DefaultIssuer,
			ExpiresAt: jwt.NewNumericDate(fixedNow.Add(time.Hour)),
		},
	}).SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)

	_, err = newService(fixedNow).Validate(token, PurposeSession)
	assert.Error(t, err)
}
