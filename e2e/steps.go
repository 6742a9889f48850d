package e2e

import (
	"github.com/cucumber/godog"

	"lifenavigator/e2e/steps/auth"
	"lifenavigator/e2e/steps/common"
	"lifenavigator/e2e/steps/ratelimit"
	"lifenavigator/e2e/steps/waitlist"
)

// RegisterSteps registers all step definitions from modular packages
func RegisterSteps(ctx *godog.ScenarioContext, tc *TestContext) {
	// Health checks, generic status and field assertions
	common.RegisterSteps(ctx, tc)

	// Signup and referral attribution
	waitlist.RegisterSteps(ctx, tc, Password)

	// Login and the registrant's own views
	auth.RegisterSteps(ctx, tc, Password)

	// Per-IP signup limits
	ratelimit.RegisterSteps(ctx, tc, Password)
}
