package jwttoken

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	id "lifenavigator/pkg/domain"
	dErrors "lifenavigator/pkg/domain-errors"
)

const (
	DefaultIssuer            = "lifenavigator"
	SessionTTL               = 24 * time.Hour
	EmailVerificationTTL     = 72 * time.Hour
	PurposeSession           = "session"
	PurposeEmailVerification = "email_verification"
)

// Claims scopes a token to one registrant and one purpose, so a verification
// link cannot be replayed as a session.
type Claims struct {
	RegistrantID string `json:"registrant_id"`
	Purpose      string `json:"purpose"`
	jwt.RegisteredClaims
}

// JWTService signs and validates HS256 tokens.
type JWTService struct {
	signingKey []byte
	issuer     string
	now        func() time.Time
}

type Option func(*JWTService)

func WithClock(now func() time.Time) Option {
	return func(s *JWTService) { s.now = now }
}

func NewJWTService(signingKey string, issuer string, opts ...Option) *JWTService {
	if issuer == "" {
		issuer = DefaultIssuer
	}
	s := &JWTService{
		signingKey: []byte(signingKey),
		issuer:     issuer,
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Issue returns a signed token and its claims.
func (s *JWTService) Issue(registrantID id.RegistrantID, purpose string, expiresIn time.Duration) (string, *Claims, error) {
	now := s.now()
	claims := &Claims{
		RegistrantID: registrantID.String(),
		Purpose:      purpose,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   registrantID.String(),
			ExpiresAt: jwt.NewNumericDate(now.Add(expiresIn)),
			IssuedAt:  jwt.NewNumericDate(now),
			Issuer:    s.issuer,
			ID:        uuid.NewString(),
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.signingKey)
	if err != nil {
		return "", nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to sign token")
	}
	return signed, claims, nil
}

// Validate checks signature, expiry, issuer and purpose.
func (s *JWTService) Validate(tokenString, purpose string) (*Claims, error) {
	parsed, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (any, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, jwt.ErrTokenUnverifiable
		}
		return s.signingKey, nil
	}, jwt.WithIssuer(s.issuer), jwt.WithTimeFunc(s.now), jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, dErrors.New(dErrors.CodeUnauthorized, "token has expired")
		}
		return nil, dErrors.New(dErrors.CodeUnauthorized, "invalid token")
	}

	claims, ok := parsed.Claims.(*Claims)
	if !ok || !parsed.Valid {
		return nil, dErrors.New(dErrors.CodeUnauthorized, "invalid token claims")
	}
	if claims.Purpose != purpose {
		return nil, dErrors.New(dErrors.CodeUnauthorized, "token not valid for this purpose")
	}
	return claims, nil
}

// RegistrantIDFrom parses the registrant id carried by validated claims.
func RegistrantIDFrom(claims *Claims) (id.RegistrantID, error) {
	registrantID, err := id.ParseRegistrantID(claims.RegistrantID)
	if err != nil {
		return id.RegistrantID{}, dErrors.New(dErrors.CodeUnauthorized, "invalid token subject")
	}
	return registrantID, nil
}
