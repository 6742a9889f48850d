package notify

import (
	"bytes"
	"context"
	"embed"
	"html/template"
	"log/slog"
	"strings"

	"lifenavigator/internal/notify/metrics"
	refmodels "lifenavigator/internal/referral/models"
	wlmodels "lifenavigator/internal/waitlist/models"
	id "lifenavigator/pkg/domain"
	"lifenavigator/pkg/email"
)

//go:embed templates/*.html
var templateFS embed.FS

var templates = template.Must(template.ParseFS(templateFS, "templates/*.html"))

const (
	templateWelcome   = "welcome.html"
	templateMilestone = "milestone.html"
	templateCredit    = "credit.html"
	templateCampaign  = "campaign.html"
)

// Dispatcher renders templates and hands them to a Sender. It never returns
// delivery errors to callers; failures are logged and counted.
type Dispatcher struct {
	sender      Sender
	policy      wlmodels.PositionPolicy
	links       func(code id.ReferralCode) string
	verifyLinks func(registrantID id.RegistrantID) (string, error)
	logger      *slog.Logger
	metrics     *metrics.Metrics
}

type Option func(*Dispatcher)

func WithLogger(logger *slog.Logger) Option {
	return func(d *Dispatcher) { d.logger = logger }
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(d *Dispatcher) { d.metrics = m }
}

// WithReferralLinks sets how referral codes become shareable URLs.
func WithReferralLinks(fn func(code id.ReferralCode) string) Option {
	return func(d *Dispatcher) { d.links = fn }
}

// WithVerificationLinks adds an email confirmation link to the welcome message.
func WithVerificationLinks(fn func(registrantID id.RegistrantID) (string, error)) Option {
	return func(d *Dispatcher) { d.verifyLinks = fn }
}

func NewDispatcher(sender Sender, policy wlmodels.PositionPolicy, opts ...Option) *Dispatcher {
	d := &Dispatcher{
		sender: sender,
		policy: policy,
		links:  func(code id.ReferralCode) string { return code.String() },
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

func (d *Dispatcher) Welcome(ctx context.Context, r *wlmodels.Registrant, effectivePosition int) {
	data := map[string]any{
		"FirstName":    firstName(r),
		"Position":     effectivePosition,
		"Jump":         d.policy.Jump,
		"ReferralLink": d.links(r.ReferralCode),
	}
	if d.verifyLinks != nil {
		link, err := d.verifyLinks(r.ID)
		if err != nil {
			d.logger.WarnContext(ctx, "failed to build email verification link",
				"registrant_id", r.ID.String(),
				"error", err,
			)
		} else {
			data["VerifyLink"] = link
		}
	}
	d.deliver(ctx, templateWelcome, r.Email, "You're on the LifeNavigator waitlist", data)
}

func (d *Dispatcher) ReferralMilestone(ctx context.Context, referrer *wlmodels.Registrant, count int) {
	d.deliver(ctx, templateMilestone, referrer.Email, "Your referrals are moving you up", map[string]any{
		"FirstName":    firstName(referrer),
		"Count":        count,
		"Position":     d.policy.Effective(referrer.Position, count),
		"ReferralLink": d.links(referrer.ReferralCode),
	})
}

func (d *Dispatcher) CreditEarned(ctx context.Context, referrer *wlmodels.Registrant, credit *refmodels.Credit) {
	d.deliver(ctx, templateCredit, referrer.Email, "You earned a LifeNavigator credit", map[string]any{
		"FirstName":  firstName(referrer),
		"BatchCount": credit.BatchCount,
		"Amount":     credit.Amount.StringFixed(2),
		"ExpiresAt":  credit.ExpiresAt.Format("January 2, 2006"),
	})
}

// Campaign sends one campaign message and reports whether it was delivered.
// Paragraphs are separated by blank lines in body.
func (d *Dispatcher) Campaign(ctx context.Context, r *wlmodels.Registrant, subject, body string) bool {
	return d.deliver(ctx, templateCampaign, r.Email, subject, map[string]any{
		"FirstName":  firstName(r),
		"Paragraphs": paragraphs(body),
	})
}

func (d *Dispatcher) deliver(ctx context.Context, name, to, subject string, data map[string]any) bool {
	var buf bytes.Buffer
	if err := templates.ExecuteTemplate(&buf, name, data); err != nil {
		d.metrics.IncrementEmail(name, "render_error")
		d.logger.ErrorContext(ctx, "failed to render email", "template", name, "error", err)
		return false
	}
	if err := d.sender.Send(ctx, Message{To: to, Subject: subject, HTML: buf.String()}); err != nil {
		d.metrics.IncrementEmail(name, "failed")
		d.logger.WarnContext(ctx, "failed to send email",
			"template", name,
			"to", to,
			"error", err,
		)
		return false
	}
	d.metrics.IncrementEmail(name, "sent")
	return true
}

func firstName(r *wlmodels.Registrant) string {
	return email.GreetingName(r.Name, r.Email)
}

func paragraphs(body string) []string {
	var out []string
	for _, p := range strings.Split(strings.ReplaceAll(body, "\r\n", "\n"), "\n\n") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
