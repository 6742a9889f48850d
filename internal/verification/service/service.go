// Package service runs the ID.me verification round trip and records the
// resulting service membership.
package service

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"lifenavigator/internal/verification/idme"
	"lifenavigator/internal/verification/metrics"
	"lifenavigator/internal/verification/models"
	id "lifenavigator/pkg/domain"
	dErrors "lifenavigator/pkg/domain-errors"
	"lifenavigator/pkg/platform/events"
	"lifenavigator/pkg/platform/sentinel"
	"lifenavigator/pkg/requestcontext"
)

var tracer = otel.Tracer("lifenavigator/internal/verification")

const (
	DefaultStateTTL = 10 * time.Minute
	stateBytes      = 32
)

type Provider interface {
	AuthorizeURL(state string) string
	Exchange(ctx context.Context, code string) (string, error)
	Groups(ctx context.Context, accessToken string) ([]models.GroupStatus, error)
}

type StateStore interface {
	Save(ctx context.Context, st models.State) error
	Consume(ctx context.Context, value string, now time.Time) (models.State, error)
}

type VerificationStore interface {
	Insert(ctx context.Context, v *models.ServiceVerification) error
	FindByRegistrant(ctx context.Context, registrantID id.RegistrantID) (*models.ServiceVerification, error)
}

type Service struct {
	provider      Provider
	states        StateStore
	verifications VerificationStore
	events        events.Store
	metrics       *metrics.Metrics
	logger        *slog.Logger
	stateTTL      time.Duration
}

type Option func(*Service)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) { s.logger = logger }
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Service) { s.metrics = m }
}

func WithEventStore(store events.Store) Option {
	return func(s *Service) { s.events = store }
}

func WithStateTTL(ttl time.Duration) Option {
	return func(s *Service) {
		if ttl > 0 {
			s.stateTTL = ttl
		}
	}
}

func New(provider Provider, states StateStore, verifications VerificationStore, opts ...Option) *Service {
	s := &Service{
		provider:      provider,
		states:        states,
		verifications: verifications,
		logger:        slog.Default(),
		stateTTL:      DefaultStateTTL,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Start returns the provider URL the registrant should be sent to.
func (s *Service) Start(ctx context.Context, registrantID id.RegistrantID) (string, error) {
	ctx, span := tracer.Start(ctx, "verification.Start")
	defer span.End()
	span.SetAttributes(attribute.String("registrant_id", registrantID.String()))

	if err := s.ensureUnverified(ctx, registrantID); err != nil {
		return "", err
	}

	value, err := newStateValue()
	if err != nil {
		return "", dErrors.Wrap(err, dErrors.CodeInternal, "failed to generate verification state")
	}
	st := models.State{
		Value:        value,
		RegistrantID: registrantID,
		ExpiresAt:    requestcontext.Now(ctx).Add(s.stateTTL),
	}
	if err := s.states.Save(ctx, st); err != nil {
		span.RecordError(err)
		return "", dErrors.Wrap(err, dErrors.CodeInternal, "failed to save verification state")
	}
	return s.provider.AuthorizeURL(value), nil
}

// Complete finishes the callback. Any failure leaves the registrant unverified.
func (s *Service) Complete(ctx context.Context, registrantID id.RegistrantID, state, code string) (*models.ServiceVerification, error) {
	ctx, span := tracer.Start(ctx, "verification.Complete")
	defer span.End()
	span.SetAttributes(attribute.String("registrant_id", registrantID.String()))

	v, outcome, err := s.complete(ctx, registrantID, state, code)
	s.metrics.IncrementOutcome(outcome)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, outcome)
		s.logger.WarnContext(ctx, "service verification failed",
			"registrant_id", registrantID.String(),
			"outcome", outcome,
			"error", err,
		)
		return nil, err
	}
	span.SetAttributes(attribute.String("service_type", v.ServiceType.String()))
	return v, nil
}

func (s *Service) complete(ctx context.Context, registrantID id.RegistrantID, state, code string) (*models.ServiceVerification, string, error) {
	if state == "" || code == "" {
		return nil, "invalid_state", dErrors.New(dErrors.CodeValidation, "state and code are required")
	}
	now := requestcontext.Now(ctx)

	st, err := s.states.Consume(ctx, state, now)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) || errors.Is(err, sentinel.ErrExpired) {
			return nil, "invalid_state", models.ErrInvalidState
		}
		return nil, "error", dErrors.Wrap(err, dErrors.CodeInternal, "failed to load verification state")
	}
	if st.RegistrantID != registrantID {
		return nil, "invalid_state", models.ErrInvalidState
	}

	if err := s.ensureUnverified(ctx, registrantID); err != nil {
		return nil, "already_verified", err
	}

	token, err := s.provider.Exchange(ctx, code)
	if err != nil {
		return nil, "provider_error", idme.ToDomain(err)
	}
	groups, err := s.provider.Groups(ctx, token)
	if err != nil {
		return nil, "provider_error", idme.ToDomain(err)
	}

	serviceType, ok := models.ResolveServiceType(groups)
	if !ok {
		return nil, "not_eligible", models.ErrNotEligible
	}

	v, err := models.NewServiceVerification(registrantID, serviceType, models.ProviderIDMe, now)
	if err != nil {
		return nil, "error", err
	}
	if err := s.verifications.Insert(ctx, v); err != nil {
		switch {
		case errors.Is(err, sentinel.ErrConflict):
			return nil, "already_verified", models.ErrAlreadyVerified
		case errors.Is(err, sentinel.ErrNotFound):
			return nil, "error", dErrors.New(dErrors.CodeNotFound, "registrant not found")
		}
		return nil, "error", dErrors.Wrap(err, dErrors.CodeInternal, "failed to store service verification")
	}

	_ = events.Emit(ctx, s.logger, s.events, events.New(ctx, events.TypeServiceVerified, registrantID.String(), map[string]string{
		"service_type": serviceType.String(),
		"provider":     models.ProviderIDMe,
	}))
	s.logger.InfoContext(ctx, "service membership verified",
		"registrant_id", registrantID.String(),
		"service_type", serviceType.String(),
	)
	return v, "verified", nil
}

// Get returns the stored verification, or CodeNotFound when there is none.
func (s *Service) Get(ctx context.Context, registrantID id.RegistrantID) (*models.ServiceVerification, error) {
	v, err := s.verifications.FindByRegistrant(ctx, registrantID)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, dErrors.New(dErrors.CodeNotFound, "no service verification")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load service verification")
	}
	return v, nil
}

func (s *Service) ensureUnverified(ctx context.Context, registrantID id.RegistrantID) error {
	_, err := s.verifications.FindByRegistrant(ctx, registrantID)
	switch {
	case err == nil:
		return models.ErrAlreadyVerified
	case errors.Is(err, sentinel.ErrNotFound):
		return nil
	default:
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to load service verification")
	}
}

func newStateValue() (string, error) {
	b := make([]byte, stateBytes)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}
