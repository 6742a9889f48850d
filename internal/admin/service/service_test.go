package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"lifenavigator/internal/admin/models"
	"lifenavigator/internal/admin/store/segment"
	wlmodels "lifenavigator/internal/waitlist/models"
	"lifenavigator/internal/waitlist/store/registrant"
	id "lifenavigator/pkg/domain"
	dErrors "lifenavigator/pkg/domain-errors"
	"lifenavigator/pkg/platform/events"
	eventsmemory "lifenavigator/pkg/platform/events/store/memory"
	"lifenavigator/pkg/requestcontext"
)

type stubStats struct {
	refs     models.ReferralCounts
	verified int
	sessions int
	since    time.Time
	err      error
}

func (s *stubStats) ReferralCounts(context.Context) (models.ReferralCounts, error) {
	return s.refs, s.err
}

func (s *stubStats) CountServiceVerified(context.Context) (int, error) { return s.verified, nil }

func (s *stubStats) CountSessions(_ context.Context, since time.Time) (int, error) {
	s.since = since
	return s.sessions, nil
}

type recordingMailer struct {
	mu       sync.Mutex
	to       []string
	inFlight atomic.Int32
	maxSeen  atomic.Int32
	failFor  string
}

func (m *recordingMailer) Campaign(_ context.Context, r *wlmodels.Registrant, _, _ string) bool {
	n := m.inFlight.Add(1)
	defer m.inFlight.Add(-1)
	for {
		seen := m.maxSeen.Load()
		if n <= seen || m.maxSeen.CompareAndSwap(seen, n) {
			break
		}
	}
	time.Sleep(time.Millisecond)
	m.mu.Lock()
	m.to = append(m.to, r.Email)
	m.mu.Unlock()
	return m.failFor == "" || !strings.Contains(r.Email, m.failFor)
}

type AdminServiceSuite struct {
	suite.Suite
	ctx         context.Context
	now         time.Time
	registrants *registrant.InMemoryStore
	stats       *stubStats
	mailer      *recordingMailer
	events      *eventsmemory.InMemoryStore
	service     *Service
}

func TestAdminServiceSuite(t *testing.T) {
	suite.Run(t, new(AdminServiceSuite))
}

func (s *AdminServiceSuite) SetupTest() {
	s.now = time.Date(2026, 3, 31, 12, 0, 0, 0, time.UTC)
	s.ctx = requestcontext.WithTime(context.Background(), s.now)
	s.registrants = registrant.NewInMemory()
	s.stats = &stubStats{
		refs:     models.ReferralCounts{Referrals: 9, Conversions: 4, ActiveCredits: 1},
		verified: 2,
		sessions: 77,
	}
	s.mailer = &recordingMailer{}
	s.events = eventsmemory.NewInMemoryStore()
	s.service = New(segment.NewInMemory(s.registrants), s.stats, s.stats, s.stats, s.mailer,
		WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))),
		WithEventStore(s.events),
	)

	for i := 1; i <= 30; i++ {
		r, err := wlmodels.NewRegistrant(id.NewRegistrantID(), fmt.Sprintf("user%02d@example.com", i), "",
			100+i, id.ReferralCode(fmt.Sprintf("CODE%04d", i)), []string{"finance"}, id.TierPro, "", s.now)
		s.Require().NoError(err)
		r.EmailVerified = i <= 10
		r.IsPaying = i <= 3
		r.ReferralCount = i % 5
		s.Require().NoError(s.registrants.Create(s.ctx, r))
	}
}

func (s *AdminServiceSuite) TestOverview() {
	got, err := s.service.Overview(s.ctx)
	s.Require().NoError(err)

	s.Equal(&models.Overview{
		Registrants:     30,
		VerifiedEmails:  10,
		Paying:          3,
		Referrals:       9,
		Conversions:     4,
		ActiveCredits:   1,
		ServiceVerified: 2,
		Sessions30d:     77,
	}, got)
	s.Equal(s.now.Add(-30*24*time.Hour), s.stats.since)
}

func (s *AdminServiceSuite) TestOverviewFailsWhenASourceFails() {
	s.stats.err = errors.New("ledger down")
	_, err := s.service.Overview(s.ctx)
	s.True(dErrors.HasCode(err, dErrors.CodeInternal))
}

func (s *AdminServiceSuite) TestPreview() {
	got, err := s.service.Preview(s.ctx, []models.Filter{
		{Field: "email_verified", Operator: "equals", Value: "true"},
		{Field: "referral_count", Operator: "greater_than", Value: "2"},
	})
	s.Require().NoError(err)

	// users 3, 4, 8, 9 have referral_count 3 or 4 among the first ten.
	s.Equal(4, got.Count)
	s.Equal([]string{"user03@example.com", "user04@example.com", "user08@example.com", "user09@example.com"}, got.Emails)
}

func (s *AdminServiceSuite) TestPreviewCapsEmails() {
	got, err := s.service.Preview(s.ctx, nil)
	s.Require().NoError(err)
	s.Equal(30, got.Count)
	s.Len(got.Emails, models.PreviewLimit)
}

func (s *AdminServiceSuite) TestPreviewRejectsBadFilter() {
	_, err := s.service.Preview(s.ctx, []models.Filter{{Field: "password_hash", Operator: "equals", Value: "x"}})
	s.True(dErrors.HasCode(err, dErrors.CodeValidation))
}

func (s *AdminServiceSuite) TestSaveListCount() {
	seg, err := s.service.Save(s.ctx, "  Paying Finance Fans ", []models.Filter{
		{Field: "is_paying", Operator: "equals", Value: "true"},
		{Field: "interests", Operator: "contains", Value: "finance"},
	})
	s.Require().NoError(err)
	s.Equal("paying-finance-fans", seg.Slug)
	s.Equal("Paying Finance Fans", seg.Name)

	list, err := s.service.List(s.ctx)
	s.Require().NoError(err)
	s.Len(list, 1)

	n, err := s.service.Count(s.ctx, "paying-finance-fans")
	s.Require().NoError(err)
	s.Equal(3, n)

	_, err = s.service.Count(s.ctx, "missing")
	s.True(dErrors.HasCode(err, dErrors.CodeNotFound))
}

func (s *AdminServiceSuite) TestSaveRejects() {
	_, err := s.service.Save(s.ctx, "   ", nil)
	s.True(dErrors.HasCode(err, dErrors.CodeValidation))

	_, err = s.service.Save(s.ctx, "bad", []models.Filter{{Field: "interests", Operator: "equals", Value: "x"}})
	s.True(dErrors.HasCode(err, dErrors.CodeValidation))
}

func (s *AdminServiceSuite) TestSendCampaign() {
	_, err := s.service.Save(s.ctx, "everyone", nil)
	s.Require().NoError(err)
	s.mailer.failFor = "user07@"

	result, err := s.service.SendCampaign(s.ctx, "everyone", "Launch news", "We launch soon.")
	s.Require().NoError(err)

	s.Equal(&models.CampaignResult{Segment: "everyone", Recipients: 30, Sent: 29, Failed: 1}, result)
	s.Len(s.mailer.to, 30)
	s.LessOrEqual(s.mailer.maxSeen.Load(), int32(DefaultCampaignConcurrency))

	recorded := s.events.ListByType(events.TypeCampaignSent)
	s.Require().Len(recorded, 1)
	s.Equal("29", recorded[0].Attributes["sent"])
}

func (s *AdminServiceSuite) TestSendCampaignValidation() {
	_, err := s.service.SendCampaign(s.ctx, "everyone", " ", "body")
	s.True(dErrors.HasCode(err, dErrors.CodeValidation))

	_, err = s.service.SendCampaign(s.ctx, "everyone", "Subject", "")
	s.True(dErrors.HasCode(err, dErrors.CodeValidation))

	_, err = s.service.SendCampaign(s.ctx, "nope", "Subject", "body")
	s.True(dErrors.HasCode(err, dErrors.CodeNotFound))
	s.Empty(s.mailer.to)
}
