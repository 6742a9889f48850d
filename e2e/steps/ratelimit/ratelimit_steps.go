package ratelimit

import (
	"context"
	"fmt"

	"github.com/cucumber/godog"
)

// maxAttempts bounds the search for the configured limit.
const maxAttempts = 200

// TestContext interface defines the methods needed from the main test context
type TestContext interface {
	POST(path string, body any) error
	LastStatus() int
	Email(alias string) string
}

// RegisterSteps registers rate-limiting step definitions
func RegisterSteps(ctx *godog.ScenarioContext, tc TestContext, password string) {
	steps := &ratelimitSteps{tc: tc, password: password}

	ctx.Step(`^I keep signing up new registrants until one is rejected$`, steps.signupUntilRejected)
	ctx.Step(`^at least (\d+) signups? should have been accepted$`, steps.acceptedAtLeast)
	ctx.Step(`^the rejected signup should return (\d+)$`, steps.rejectedShouldReturn)
}

type ratelimitSteps struct {
	tc       TestContext
	password string
	accepted int
	rejected int
}

func (s *ratelimitSteps) signupUntilRejected(ctx context.Context) error {
	for i := 0; i < maxAttempts; i++ {
		err := s.tc.POST("/waitlist/join", map[string]any{
			"email":    s.tc.Email(fmt.Sprintf("burst-%d", i)),
			"password": s.password,
		})
		if err != nil {
			return err
		}
		switch status := s.tc.LastStatus(); status {
		case 200, 201:
			s.accepted++
		default:
			s.rejected = status
			return nil
		}
	}
	return fmt.Errorf("no signup rejected after %d attempts", maxAttempts)
}

func (s *ratelimitSteps) acceptedAtLeast(ctx context.Context, n int) error {
	if s.accepted < n {
		return fmt.Errorf("expected at least %d accepted signups, got %d", n, s.accepted)
	}
	return nil
}

func (s *ratelimitSteps) rejectedShouldReturn(ctx context.Context, want int) error {
	if s.rejected != want {
		return fmt.Errorf("expected rejection status %d, got %d", want, s.rejected)
	}
	return nil
}
