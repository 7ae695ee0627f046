package verification

import (
	"fmt"

	"github.com/cucumber/godog"
	"github.com/google/uuid"
)

// TestContext is the slice of the suite context the verification steps need.
type TestContext interface {
	POST(path string, body interface{}) error
	GET(path string) error
	PostFile(path, field, filename string, data []byte, fields map[string]string) error
	LastStatus() int
	ResponseField(path string) (interface{}, error)
	VerificationID() string
	SetVerificationID(id string)
}

// samplePDF passes the document intake as a scanned PDF.
var samplePDF = []byte("%PDF-1.4\n1 0 obj\n<< /Type /Catalog >>\nendobj\ntrailer\n<< /Root 1 0 R >>\n%%EOF")

// sampleSelfie is deliberately not a decodable image. Local analysis falls
// back to its defaults, and the decision engine flags the face comparison,
// which is exactly what the retry features need.
var sampleSelfie = []byte("not-a-real-selfie")

// RegisterSteps registers the verification lifecycle steps.
func RegisterSteps(ctx *godog.ScenarioContext, tc TestContext) {
	steps := &verificationSteps{tc: tc}

	ctx.Step(`^I create a "([^"]*)" verification$`, steps.createVerification)
	ctx.Step(`^I create a "([^"]*)" verification with max retries (\d+)$`, steps.createVerificationWithBudget)
	ctx.Step(`^I save the verification id$`, steps.saveVerificationID)
	ctx.Step(`^I fetch the verification$`, steps.fetchVerification)
	ctx.Step(`^I upload a document$`, steps.uploadDocument)
	ctx.Step(`^I upload a selfie$`, steps.uploadSelfie)
	ctx.Step(`^I submit the verification$`, steps.submitVerification)
	ctx.Step(`^I switch to the spawned retry$`, steps.switchToSpawnedRetry)
}

type verificationSteps struct {
	tc TestContext
}

func (s *verificationSteps) createVerification(verificationType string) error {
	return s.createVerificationWithBudget(verificationType, 0)
}

func (s *verificationSteps) createVerificationWithBudget(verificationType string, maxRetries int) error {
	body := map[string]interface{}{
		"user_id": uuid.NewString(),
		"type":    verificationType,
	}
	if maxRetries > 0 {
		body["max_retries"] = maxRetries
	}
	return s.tc.POST("/v1/verifications", body)
}

func (s *verificationSteps) saveVerificationID() error {
	return s.captureID("id")
}

func (s *verificationSteps) fetchVerification() error {
	return s.tc.GET("/v1/verifications/" + s.tc.VerificationID())
}

func (s *verificationSteps) uploadDocument() error {
	return s.tc.PostFile(
		"/v1/verifications/"+s.tc.VerificationID()+"/documents",
		"file", "passport.pdf", samplePDF,
		map[string]string{"document_type": "PASSPORT", "side": "FRONT"},
	)
}

func (s *verificationSteps) uploadSelfie() error {
	return s.tc.PostFile(
		"/v1/verifications/"+s.tc.VerificationID()+"/selfie",
		"file", "selfie.jpg", sampleSelfie, nil,
	)
}

func (s *verificationSteps) submitVerification() error {
	return s.tc.POST("/v1/verifications/"+s.tc.VerificationID()+"/submit", map[string]interface{}{})
}

// switchToSpawnedRetry repoints the scenario at the verification returned by
// the last upload, which is the retry when one was spawned.
func (s *verificationSteps) switchToSpawnedRetry() error {
	return s.captureID("verification_id")
}

func (s *verificationSteps) captureID(field string) error {
	value, err := s.tc.ResponseField(field)
	if err != nil {
		return err
	}
	id, ok := value.(string)
	if !ok || id == "" {
		return fmt.Errorf("response field %q is not a verification id: %v", field, value)
	}
	s.tc.SetVerificationID(id)
	return nil
}
