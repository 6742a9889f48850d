package notify

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/suite"

	"lifenavigator/internal/notify/metrics"
	refmodels "lifenavigator/internal/referral/models"
	wlmodels "lifenavigator/internal/waitlist/models"
	id "lifenavigator/pkg/domain"
)

type recordingSender struct {
	mu   sync.Mutex
	sent []Message
	err  error
}

func (s *recordingSender) Send(_ context.Context, msg Message) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return s.err
	}
	s.sent = append(s.sent, msg)
	return nil
}

type DispatcherSuite struct {
	suite.Suite
	sender     *recordingSender
	metrics    *metrics.Metrics
	dispatcher *Dispatcher
	member     *wlmodels.Registrant
}

func TestDispatcherSuite(t *testing.T) {
	suite.Run(t, new(DispatcherSuite))
}

func (s *DispatcherSuite) SetupTest() {
	s.sender = &recordingSender{}
	s.metrics = metrics.New(prometheus.NewRegistry())
	s.dispatcher = NewDispatcher(s.sender, wlmodels.PositionPolicy{Base: 100, Jump: 100},
		WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))),
		WithMetrics(s.metrics),
		WithReferralLinks(func(code id.ReferralCode) string {
			return "https://lifenavigator.example/join?ref=" + code.String()
		}),
		WithVerificationLinks(func(id.RegistrantID) (string, error) {
			return "https://lifenavigator.example/verify-email?token=abc", nil
		}),
	)
	s.member = &wlmodels.Registrant{
		ID:           id.NewRegistrantID(),
		Email:        "ada.lovelace@example.com",
		Position:     250,
		ReferralCode: "AB3XK9QZ",
	}
}

func (s *DispatcherSuite) TestWelcome() {
	s.dispatcher.Welcome(context.Background(), s.member, 250)

	s.Require().Len(s.sender.sent, 1)
	msg := s.sender.sent[0]
	s.Equal("ada.lovelace@example.com", msg.To)
	s.Contains(msg.HTML, "Hi Ada,")
	s.Contains(msg.HTML, "#250")
	s.Contains(msg.HTML, "join?ref=AB3XK9QZ")
	s.Contains(msg.HTML, "verify-email?token=abc")
	s.Equal(1.0, testutil.ToFloat64(s.metrics.Emails.WithLabelValues("welcome.html", "sent")))
}

func (s *DispatcherSuite) TestMilestoneUsesEffectivePosition() {
	s.member.Name = "Grace Hopper"
	s.dispatcher.ReferralMilestone(context.Background(), s.member, 2)

	s.Require().Len(s.sender.sent, 1)
	s.Contains(s.sender.sent[0].HTML, "Hi Grace,")
	s.Contains(s.sender.sent[0].HTML, "2 people have joined")
	s.Contains(s.sender.sent[0].HTML, "#50")
}

func (s *DispatcherSuite) TestCreditEarned() {
	s.dispatcher.CreditEarned(context.Background(), s.member, &refmodels.Credit{
		Amount:     decimal.RequireFromString("25.5"),
		BatchCount: 20,
		ExpiresAt:  time.Date(2026, 3, 31, 0, 0, 0, 0, time.UTC),
	})

	s.Require().Len(s.sender.sent, 1)
	s.Contains(s.sender.sent[0].HTML, "$25.50")
	s.Contains(s.sender.sent[0].HTML, "March 31, 2026")
}

func (s *DispatcherSuite) TestCampaignEscapesBody() {
	ok := s.dispatcher.Campaign(context.Background(), s.member, "News", "First <b>line</b>\n\nSecond")

	s.True(ok)
	s.Require().Len(s.sender.sent, 1)
	s.Equal("News", s.sender.sent[0].Subject)
	s.Contains(s.sender.sent[0].HTML, "<p>First &lt;b&gt;line&lt;/b&gt;</p>")
	s.Contains(s.sender.sent[0].HTML, "<p>Second</p>")
}

func (s *DispatcherSuite) TestSendFailureIsSwallowed() {
	s.sender.err = errors.New("smtp down")

	s.False(s.dispatcher.Campaign(context.Background(), s.member, "News", "Hello"))
	s.dispatcher.Welcome(context.Background(), s.member, 1)

	s.Equal(1.0, testutil.ToFloat64(s.metrics.Emails.WithLabelValues("campaign.html", "failed")))
	s.Equal(1.0, testutil.ToFloat64(s.metrics.Emails.WithLabelValues("welcome.html", "failed")))
}
