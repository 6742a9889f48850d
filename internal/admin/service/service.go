// Package service backs the admin dashboard: headline counts, segment
// building and campaign sends.
package service

import (
	"context"
	"errors"
	"log/slog"
	"strconv"
	"strings"
	"sync/atomic"
	"time"

	"github.com/gosimple/slug"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"golang.org/x/sync/errgroup"

	"lifenavigator/internal/admin/models"
	wlmodels "lifenavigator/internal/waitlist/models"
	dErrors "lifenavigator/pkg/domain-errors"
	"lifenavigator/pkg/platform/events"
	"lifenavigator/pkg/platform/sentinel"
	"lifenavigator/pkg/requestcontext"
)

var tracer = otel.Tracer("lifenavigator/internal/admin")

const (
	DefaultCampaignConcurrency = 8
	sessionWindow              = 30 * 24 * time.Hour
	maxSubjectLen              = 200
)

type SegmentStore interface {
	Save(ctx context.Context, seg *models.Segment) error
	FindBySlug(ctx context.Context, slug string) (*models.Segment, error)
	List(ctx context.Context) ([]*models.Segment, error)
	Members(ctx context.Context, conds []models.Condition, limit int) ([]*wlmodels.Registrant, error)
	CountMembers(ctx context.Context, conds []models.Condition) (int, error)
}

type ReferralStats interface {
	ReferralCounts(ctx context.Context) (models.ReferralCounts, error)
}

type VerificationStats interface {
	CountServiceVerified(ctx context.Context) (int, error)
}

type SessionStats interface {
	CountSessions(ctx context.Context, since time.Time) (int, error)
}

type Mailer interface {
	Campaign(ctx context.Context, r *wlmodels.Registrant, subject, body string) bool
}

type Service struct {
	segments      SegmentStore
	referrals     ReferralStats
	verifications VerificationStats
	sessions      SessionStats
	mailer        Mailer
	events        events.Store
	logger        *slog.Logger
	concurrency   int
}

type Option func(*Service)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) { s.logger = logger }
}

func WithEventStore(store events.Store) Option {
	return func(s *Service) { s.events = store }
}

func WithCampaignConcurrency(n int) Option {
	return func(s *Service) {
		if n > 0 {
			s.concurrency = n
		}
	}
}

func New(segments SegmentStore, referrals ReferralStats, verifications VerificationStats, sessions SessionStats, mailer Mailer, opts ...Option) *Service {
	s := &Service{
		segments:      segments,
		referrals:     referrals,
		verifications: verifications,
		sessions:      sessions,
		mailer:        mailer,
		logger:        slog.Default(),
		concurrency:   DefaultCampaignConcurrency,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Overview gathers the dashboard counts concurrently. Any failing source
// fails the whole overview.
func (s *Service) Overview(ctx context.Context) (*models.Overview, error) {
	ctx, span := tracer.Start(ctx, "admin.Overview")
	defer span.End()

	var (
		out      models.Overview
		refs     models.ReferralCounts
		verified = []models.Condition{{Field: models.FieldEmailVerified, Operator: models.OpEquals, Kind: models.KindBool, Bool: true}}
		paying   = []models.Condition{{Field: models.FieldIsPaying, Operator: models.OpEquals, Kind: models.KindBool, Bool: true}}
		since    = requestcontext.Now(ctx).Add(-sessionWindow)
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() (err error) {
		out.Registrants, err = s.segments.CountMembers(gctx, nil)
		return err
	})
	g.Go(func() (err error) {
		out.VerifiedEmails, err = s.segments.CountMembers(gctx, verified)
		return err
	})
	g.Go(func() (err error) {
		out.Paying, err = s.segments.CountMembers(gctx, paying)
		return err
	})
	g.Go(func() (err error) {
		refs, err = s.referrals.ReferralCounts(gctx)
		return err
	})
	g.Go(func() (err error) {
		out.ServiceVerified, err = s.verifications.CountServiceVerified(gctx)
		return err
	})
	g.Go(func() (err error) {
		out.Sessions30d, err = s.sessions.CountSessions(gctx, since)
		return err
	})
	if err := g.Wait(); err != nil {
		span.RecordError(err)
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load dashboard overview")
	}
	out.Referrals = refs.Referrals
	out.Conversions = refs.Conversions
	out.ActiveCredits = refs.ActiveCredits
	return &out, nil
}

// Preview counts the registrants matching filters and returns the first
// PreviewLimit emails by position.
func (s *Service) Preview(ctx context.Context, filters []models.Filter) (*models.Preview, error) {
	conds, err := models.ParseFilters(filters)
	if err != nil {
		return nil, err
	}

	var (
		count   int
		members []*wlmodels.Registrant
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() (err error) {
		count, err = s.segments.CountMembers(gctx, conds)
		return err
	})
	g.Go(func() (err error) {
		members, err = s.segments.Members(gctx, conds, models.PreviewLimit)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to preview segment")
	}

	emails := make([]string, 0, len(members))
	for _, m := range members {
		emails = append(emails, m.Email)
	}
	return &models.Preview{Count: count, Emails: emails}, nil
}

// Save validates filters and stores them under slug.Make(name). Saving an
// existing name replaces its filters.
func (s *Service) Save(ctx context.Context, name string, filters []models.Filter) (*models.Segment, error) {
	name = strings.TrimSpace(name)
	key := slug.Make(name)
	if key == "" {
		return nil, dErrors.New(dErrors.CodeValidation, "segment name is required")
	}
	if _, err := models.ParseFilters(filters); err != nil {
		return nil, err
	}
	seg := &models.Segment{
		Slug:      key,
		Name:      name,
		Filters:   filters,
		CreatedAt: requestcontext.Now(ctx),
	}
	if err := s.segments.Save(ctx, seg); err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to save segment")
	}
	s.logger.InfoContext(ctx, "segment saved", "slug", key, "filters", len(filters))
	return seg, nil
}

func (s *Service) List(ctx context.Context) ([]*models.Segment, error) {
	segs, err := s.segments.List(ctx)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to list segments")
	}
	return segs, nil
}

// Count returns the current membership of a saved segment.
func (s *Service) Count(ctx context.Context, segmentSlug string) (int, error) {
	conds, err := s.load(ctx, segmentSlug)
	if err != nil {
		return 0, err
	}
	n, err := s.segments.CountMembers(ctx, conds)
	if err != nil {
		return 0, dErrors.Wrap(err, dErrors.CodeInternal, "failed to count segment")
	}
	return n, nil
}

// SendCampaign mails every member of a saved segment with bounded
// concurrency. Individual send failures are counted, not returned.
func (s *Service) SendCampaign(ctx context.Context, segmentSlug, subject, body string) (*models.CampaignResult, error) {
	ctx, span := tracer.Start(ctx, "admin.SendCampaign")
	defer span.End()

	subject = strings.TrimSpace(subject)
	if subject == "" || len(subject) > maxSubjectLen {
		return nil, dErrors.New(dErrors.CodeValidation, "subject is required and at most 200 characters")
	}
	if strings.TrimSpace(body) == "" {
		return nil, dErrors.New(dErrors.CodeValidation, "body is required")
	}
	conds, err := s.load(ctx, segmentSlug)
	if err != nil {
		return nil, err
	}
	members, err := s.segments.Members(ctx, conds, 0)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load segment members")
	}

	var sent, failed atomic.Int64
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.concurrency)
	for _, m := range members {
		g.Go(func() error {
			if gctx.Err() != nil {
				failed.Add(1)
				return nil
			}
			if s.mailer.Campaign(gctx, m, subject, body) {
				sent.Add(1)
			} else {
				failed.Add(1)
			}
			return nil
		})
	}
	_ = g.Wait()

	result := &models.CampaignResult{
		Segment:    segmentSlug,
		Recipients: len(members),
		Sent:       int(sent.Load()),
		Failed:     int(failed.Load()),
	}
	span.SetAttributes(
		attribute.String("segment", segmentSlug),
		attribute.Int("recipients", result.Recipients),
		attribute.Int("failed", result.Failed),
	)
	if err := events.Emit(ctx, s.logger, s.events, events.New(ctx, events.TypeCampaignSent, segmentSlug, map[string]string{
		"recipients": strconv.Itoa(result.Recipients),
		"sent":       strconv.Itoa(result.Sent),
		"failed":     strconv.Itoa(result.Failed),
	})); err != nil {
		s.logger.WarnContext(ctx, "campaign event not recorded", "segment", segmentSlug, "error", err)
	}
	return result, nil
}

func (s *Service) load(ctx context.Context, segmentSlug string) ([]models.Condition, error) {
	seg, err := s.segments.FindBySlug(ctx, segmentSlug)
	if errors.Is(err, sentinel.ErrNotFound) {
		return nil, dErrors.New(dErrors.CodeNotFound, "segment not found")
	}
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load segment")
	}
	conds, err := models.ParseFilters(seg.Filters)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "saved segment no longer valid")
	}
	return conds, nil
}
