package waitlist

import (
	"context"
	"fmt"

	"github.com/cucumber/godog"
)

// TestContext interface defines the methods needed from the main test context
type TestContext interface {
	POST(path string, body any) error
	GET(path string, headers map[string]string) error
	ResponseField(field string) (any, error)
	LastStatus() int
	Email(alias string) string
	Code(alias string) string
	SetCode(alias, code string)
}

// RegisterSteps registers signup and referral step definitions
func RegisterSteps(ctx *godog.ScenarioContext, tc TestContext, password string) {
	steps := &waitlistSteps{tc: tc, password: password}

	ctx.Step(`^"([^"]*)" joins the waitlist$`, steps.join)
	ctx.Step(`^"([^"]*)" joins the waitlist with the referral code of "([^"]*)"$`, steps.joinReferred)
	ctx.Step(`^"([^"]*)" joins the waitlist with referral code "([^"]*)"$`, steps.joinWithRawCode)
	ctx.Step(`^I check the referral code of "([^"]*)"$`, steps.checkCode)
	ctx.Step(`^I check referral code "([^"]*)"$`, steps.checkRawCode)
}

type waitlistSteps struct {
	tc       TestContext
	password string
}

func (s *waitlistSteps) join(ctx context.Context, alias string) error {
	return s.joinWithRawCode(ctx, alias, "")
}

func (s *waitlistSteps) joinReferred(ctx context.Context, alias, referrer string) error {
	code := s.tc.Code(referrer)
	if code == "" {
		return fmt.Errorf("%q has not joined in this scenario", referrer)
	}
	return s.joinWithRawCode(ctx, alias, code)
}

func (s *waitlistSteps) joinWithRawCode(ctx context.Context, alias, code string) error {
	body := map[string]any{
		"email":    s.tc.Email(alias),
		"name":     alias,
		"password": s.password,
	}
	if code != "" {
		body["referral_code"] = code
	}
	if err := s.tc.POST("/waitlist/join", body); err != nil {
		return err
	}
	if status := s.tc.LastStatus(); status != 201 && status != 200 {
		return nil
	}
	v, err := s.tc.ResponseField("referral_code")
	if err != nil {
		return err
	}
	s.tc.SetCode(alias, fmt.Sprint(v))
	return nil
}

func (s *waitlistSteps) checkCode(ctx context.Context, alias string) error {
	return s.checkRawCode(ctx, s.tc.Code(alias))
}

func (s *waitlistSteps) checkRawCode(ctx context.Context, code string) error {
	return s.tc.GET("/waitlist/referrals/"+code, nil)
}
