package auth

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
	Token(alias string) string
	SetToken(alias, token string)
}

// RegisterSteps registers authentication-related step definitions
func RegisterSteps(ctx *godog.ScenarioContext, tc TestContext, password string) {
	steps := &authSteps{tc: tc, password: password}

	ctx.Step(`^"([^"]*)" logs in$`, steps.login)
	ctx.Step(`^"([^"]*)" logs in with password "([^"]*)"$`, steps.loginWithPassword)
	ctx.Step(`^"([^"]*)" requests their waitlist status$`, steps.requestStatus)
	ctx.Step(`^"([^"]*)" requests their referral stats$`, steps.requestReferrals)
	ctx.Step(`^I GET "([^"]*)" with invalid token "([^"]*)"$`, steps.getWithInvalidToken)
}

type authSteps struct {
	tc       TestContext
	password string
}

func (s *authSteps) login(ctx context.Context, alias string) error {
	if err := s.loginWithPassword(ctx, alias, s.password); err != nil {
		return err
	}
	if s.tc.LastStatus() != 200 {
		return fmt.Errorf("login for %q returned %d", alias, s.tc.LastStatus())
	}
	token, err := s.tc.ResponseField("access_token")
	if err != nil {
		return err
	}
	s.tc.SetToken(alias, fmt.Sprint(token))
	return nil
}

func (s *authSteps) loginWithPassword(ctx context.Context, alias, password string) error {
	return s.tc.POST("/auth/login", map[string]any{
		"email":    s.tc.Email(alias),
		"password": password,
	})
}

func (s *authSteps) requestStatus(ctx context.Context, alias string) error {
	return s.getAs(alias, "/me")
}

func (s *authSteps) requestReferrals(ctx context.Context, alias string) error {
	return s.getAs(alias, "/me/referrals")
}

func (s *authSteps) getAs(alias, path string) error {
	token := s.tc.Token(alias)
	if token == "" {
		return fmt.Errorf("%q has not logged in", alias)
	}
	return s.tc.GET(path, map[string]string{"Authorization": "Bearer " + token})
}

func (s *authSteps) getWithInvalidToken(ctx context.Context, path, token string) error {
	return s.tc.GET(path, map[string]string{
		"Authorization": "Bearer " + token,
	})
}
