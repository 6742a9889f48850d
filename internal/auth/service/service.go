// Package service issues registrant sessions and email verification tokens.
package service

import (
	"context"
	"log/slog"
	"time"

	"lifenavigator/internal/auth/metrics"
	jwttoken "lifenavigator/internal/jwt_token"
	wlmodels "lifenavigator/internal/waitlist/models"
	id "lifenavigator/pkg/domain"
	dErrors "lifenavigator/pkg/domain-errors"
	"lifenavigator/pkg/requestcontext"
)

// Registrants is the slice of the waitlist the auth flows need.
type Registrants interface {
	VerifyCredentials(ctx context.Context, email, password string) (*wlmodels.Registrant, error)
	TouchLogin(ctx context.Context, registrantID id.RegistrantID) error
	MarkEmailVerified(ctx context.Context, registrantID id.RegistrantID) error
}

type RevocationStore interface {
	Revoke(ctx context.Context, jti string, ttl time.Duration) error
	IsRevoked(ctx context.Context, jti string) (bool, error)
}

type Session struct {
	Token        string
	RegistrantID id.RegistrantID
	ExpiresAt    time.Time
}

type Service struct {
	registrants Registrants
	tokens      *jwttoken.JWTService
	revocations RevocationStore
	logger      *slog.Logger
	metrics     *metrics.Metrics
	sessionTTL  time.Duration
	verifyTTL   time.Duration
}

type Option func(*Service)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) { s.logger = logger }
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Service) { s.metrics = m }
}

func WithRevocationStore(store RevocationStore) Option {
	return func(s *Service) { s.revocations = store }
}

func New(registrants Registrants, tokens *jwttoken.JWTService, opts ...Option) *Service {
	s := &Service{
		registrants: registrants,
		tokens:      tokens,
		logger:      slog.Default(),
		sessionTTL:  jwttoken.SessionTTL,
		verifyTTL:   jwttoken.EmailVerificationTTL,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Login checks the password and returns a session token. Unknown emails and
// wrong passwords are indistinguishable to the caller.
func (s *Service) Login(ctx context.Context, email, password string) (*Session, error) {
	r, err := s.registrants.VerifyCredentials(ctx, email, password)
	if err != nil {
		if dErrors.HasCode(err, dErrors.CodeUnauthorized) {
			s.metrics.IncrementLogin("invalid_credentials")
			return nil, dErrors.New(dErrors.CodeUnauthorized, "invalid credentials")
		}
		s.metrics.IncrementLogin("error")
		return nil, err
	}

	token, claims, err := s.tokens.Issue(r.ID, jwttoken.PurposeSession, s.sessionTTL)
	if err != nil {
		s.metrics.IncrementLogin("error")
		return nil, err
	}
	if err := s.registrants.TouchLogin(ctx, r.ID); err != nil {
		s.logger.WarnContext(ctx, "failed to record login time",
			"registrant_id", r.ID.String(),
			"error", err,
		)
	}
	s.metrics.IncrementLogin("success")
	return &Session{Token: token, RegistrantID: r.ID, ExpiresAt: claims.ExpiresAt.Time}, nil
}

// ValidateSession resolves a bearer token to its registrant.
func (s *Service) ValidateSession(ctx context.Context, token string) (id.RegistrantID, error) {
	claims, err := s.tokens.Validate(token, jwttoken.PurposeSession)
	if err != nil {
		return id.RegistrantID{}, err
	}
	if s.revocations != nil {
		revoked, err := s.revocations.IsRevoked(ctx, claims.ID)
		if err != nil {
			return id.RegistrantID{}, dErrors.Wrap(err, dErrors.CodeUnavailable, "failed to check token revocation")
		}
		if revoked {
			return id.RegistrantID{}, dErrors.New(dErrors.CodeUnauthorized, "token has been revoked")
		}
	}
	return jwttoken.RegistrantIDFrom(claims)
}

// Logout revokes the session token for the rest of its lifetime.
func (s *Service) Logout(ctx context.Context, token string) error {
	claims, err := s.tokens.Validate(token, jwttoken.PurposeSession)
	if err != nil {
		return err
	}
	if s.revocations == nil {
		return nil
	}
	ttl := claims.ExpiresAt.Time.Sub(requestcontext.Now(ctx))
	if err := s.revocations.Revoke(ctx, claims.ID, ttl); err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to revoke session")
	}
	return nil
}

// IssueEmailVerification returns a token for the welcome email link.
func (s *Service) IssueEmailVerification(registrantID id.RegistrantID) (string, error) {
	token, _, err := s.tokens.Issue(registrantID, jwttoken.PurposeEmailVerification, s.verifyTTL)
	return token, err
}

// VerifyEmail marks the token's registrant verified. Repeating it is harmless.
func (s *Service) VerifyEmail(ctx context.Context, token string) (id.RegistrantID, error) {
	claims, err := s.tokens.Validate(token, jwttoken.PurposeEmailVerification)
	if err != nil {
		s.metrics.IncrementEmailVerification("invalid_token")
		return id.RegistrantID{}, err
	}
	registrantID, err := jwttoken.RegistrantIDFrom(claims)
	if err != nil {
		s.metrics.IncrementEmailVerification("invalid_token")
		return id.RegistrantID{}, err
	}
	if err := s.registrants.MarkEmailVerified(ctx, registrantID); err != nil {
		s.metrics.IncrementEmailVerification("error")
		return id.RegistrantID{}, err
	}
	s.metrics.IncrementEmailVerification("verified")
	return registrantID, nil
}
