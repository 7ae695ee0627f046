package common

import (
	"fmt"

	"github.com/cucumber/godog"
)

// TestContext is the slice of the suite context the generic steps need.
type TestContext interface {
	MintPartnerToken() error
	ClearToken()
	GET(path string) error
	LastStatus() int
	ResponseField(path string) (interface{}, error)
}

// RegisterSteps registers the background, request, and assertion steps shared
// by every feature.
func RegisterSteps(ctx *godog.ScenarioContext, tc TestContext) {
	steps := &commonSteps{tc: tc}

	ctx.Step(`^a partner API token$`, steps.mintPartnerToken)
	ctx.Step(`^no API token$`, steps.clearToken)
	ctx.Step(`^I GET "([^"]*)"$`, steps.get)

	ctx.Step(`^the response status should be (\d+)$`, steps.assertStatus)
	ctx.Step(`^the response field "([^"]*)" should be "([^"]*)"$`, steps.assertField)
	ctx.Step(`^the response field "([^"]*)" should be (true|false)$`, steps.assertBoolField)
}

type commonSteps struct {
	tc TestContext
}

func (s *commonSteps) mintPartnerToken() error {
	return s.tc.MintPartnerToken()
}

func (s *commonSteps) clearToken() error {
	s.tc.ClearToken()
	return nil
}

func (s *commonSteps) get(path string) error {
	return s.tc.GET(path)
}

func (s *commonSteps) assertStatus(expected int) error {
	if s.tc.LastStatus() != expected {
		return fmt.Errorf("expected status %d, got %d", expected, s.tc.LastStatus())
	}
	return nil
}

func (s *commonSteps) assertField(path, expected string) error {
	value, err := s.tc.ResponseField(path)
	if err != nil {
		return err
	}
	if fmt.Sprintf("%v", value) != expected {
		return fmt.Errorf("expected field %q to be %q, got %v", path, expected, value)
	}
	return nil
}

func (s *commonSteps) assertBoolField(path, expected string) error {
	return s.assertField(path, expected)
}
