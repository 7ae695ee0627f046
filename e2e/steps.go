package e2e

import (
	"context"

	"github.com/cucumber/godog"

	"veridoc/e2e/steps/common"
	"veridoc/e2e/steps/verification"
)

// RegisterSteps registers all step definitions from modular packages.
func RegisterSteps(ctx *godog.ScenarioContext, tc *TestContext) {
	// Reset scenario state so scenarios stay independent.
	ctx.Before(func(c context.Context, sc *godog.Scenario) (context.Context, error) {
		tc.Reset()
		return c, nil
	})

	// Generic request and assertion steps.
	common.RegisterSteps(ctx, tc)

	// Verification lifecycle steps.
	verification.RegisterSteps(ctx, tc)
}
