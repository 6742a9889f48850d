// Package service records product analytics and builds admin summaries.
package service

import (
	"context"
	"log/slog"
	"time"

	"lifenavigator/internal/analytics/models"
	id "lifenavigator/pkg/domain"
	dErrors "lifenavigator/pkg/domain-errors"
	"lifenavigator/pkg/requestcontext"
)

const MaxSummaryDays = 366

type Store interface {
	Insert(ctx context.Context, e *models.Event) error
	ListBetween(ctx context.Context, from, to time.Time) ([]*models.Event, error)
	CountSessions(ctx context.Context, since time.Time) (int, error)
}

// TrackInput is an event as reported by a browser.
type TrackInput struct {
	SessionID    string
	Type         models.EventType
	Path         string
	RegistrantID *id.RegistrantID
	Properties   map[string]string
}

type Service struct {
	store  Store
	logger *slog.Logger
}

func New(store Store, logger *slog.Logger) *Service {
	return &Service{store: store, logger: logger}
}

// Track classifies the request's user agent and stores the event.
func (s *Service) Track(ctx context.Context, in TrackInput) (*models.Event, error) {
	e, err := models.NewEvent(in.SessionID, in.Type, in.Path, in.RegistrantID, in.Properties,
		requestcontext.UserAgent(ctx), requestcontext.Now(ctx))
	if err != nil {
		return nil, err
	}
	if err := s.store.Insert(ctx, e); err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to store analytics event")
	}
	return e, nil
}

// Summary rolls up events in [from, to).
func (s *Service) Summary(ctx context.Context, from, to time.Time) (*models.Summary, error) {
	if !from.Before(to) {
		return nil, dErrors.New(dErrors.CodeValidation, "from must be before to")
	}
	if to.Sub(from) > MaxSummaryDays*24*time.Hour {
		return nil, dErrors.New(dErrors.CodeValidation, "summary range is too long")
	}
	events, err := s.store.ListBetween(ctx, from, to)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load analytics events")
	}
	return models.Summarize(events, from, to), nil
}

// SummaryForDays covers the trailing window ending now.
func (s *Service) SummaryForDays(ctx context.Context, days int) (*models.Summary, error) {
	if days < 1 || days > MaxSummaryDays {
		return nil, dErrors.New(dErrors.CodeValidation, "days must be between 1 and 366")
	}
	to := requestcontext.Now(ctx)
	return s.Summary(ctx, to.AddDate(0, 0, -days), to)
}

func (s *Service) CountSessions(ctx context.Context, since time.Time) (int, error) {
	n, err := s.store.CountSessions(ctx, since)
	if err != nil {
		return 0, dErrors.Wrap(err, dErrors.CodeInternal, "failed to count sessions")
	}
	return n, nil
}
