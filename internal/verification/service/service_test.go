package service

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"veridoc/internal/biometric"
	"veridoc/internal/classifier"
	"veridoc/internal/decision"
	"veridoc/internal/extraction"
	"veridoc/internal/providers"
	"veridoc/internal/quality"
	"veridoc/internal/storage"
	"veridoc/internal/verification/models"
	"veridoc/internal/verification/store"
	id "veridoc/pkg/domain"
	dErrors "veridoc/pkg/domain-errors"
	"veridoc/pkg/email"
	"veridoc/pkg/platform/audit"
	"veridoc/pkg/requestcontext"
)

var testClock = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

// pdfDocument bypasses pixel analysis in the quality gate, keeping pipeline
// tests independent of synthesized image content.
var pdfDocument = []byte("%PDF-1.4\n1 0 obj\n<<>>\nendobj\n%%EOF")

var selfieBytes = []byte("selfie-image-bytes")

// stubExtractor is a mutable structured-extraction provider; tests swap its
// entities to steer what the pipeline reads off the document.
type stubExtractor struct {
	entities []providers.Entity
	err      error
}

func (s *stubExtractor) Name() string                         { return "stub-structured" }
func (s *stubExtractor) SupportsType(_ id.DocumentType) bool  { return true }
func (s *stubExtractor) Extract(_ context.Context, _ []byte, docType id.DocumentType) (*providers.StructuredResult, error) {
	if s.err != nil {
		return nil, s.err
	}
	return &providers.StructuredResult{
		Entities:     s.entities,
		DocumentType: docType,
		Confidence:   0.9,
	}, nil
}

// stubComparer is a mutable face-comparison provider on the 0-100 similarity
// scale.
type stubComparer struct {
	similarity float64
	err        error
}

func (s *stubComparer) Name() string { return "stub-faces" }
func (s *stubComparer) Compare(_ context.Context, _, _ []byte) (*providers.FaceComparison, error) {
	if s.err != nil {
		return nil, s.err
	}
	return &providers.FaceComparison{Similarity: s.similarity, Confidence: 0.95}, nil
}

// stubAnalyzer is a mutable face-attribute provider for selfie checks and
// liveness.
type stubAnalyzer struct {
	attrs providers.FaceAttributes
	err   error
}

func (s *stubAnalyzer) Name() string { return "stub-attributes" }
func (s *stubAnalyzer) Analyze(_ context.Context, _ []byte) (*providers.FaceAttributes, error) {
	if s.err != nil {
		return nil, s.err
	}
	attrs := s.attrs
	return &attrs, nil
}

func liveAttributes() providers.FaceAttributes {
	return providers.FaceAttributes{
		FaceCount:           1,
		DetectionConfidence: 0.99,
		EyesOpenConfidence:  0.95,
		PoseDeviation:       5,
		Brightness:          128,
		Sharpness:           80,
		HasExpression:       true,
		FaceAreaRatio:       0.3,
	}
}

type sentWebhook struct {
	VerificationID id.VerificationID
	EventType      models.EventType
	URL            string
	Payload        any
}

type webhookRecorder struct {
	mu   sync.Mutex
	sent []sentWebhook
}

func (r *webhookRecorder) Notify(_ context.Context, verificationID id.VerificationID, eventType models.EventType, url string, payload any) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sent = append(r.sent, sentWebhook{verificationID, eventType, url, payload})
}

func (r *webhookRecorder) all() []sentWebhook {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]sentWebhook(nil), r.sent...)
}

type auditRecorder struct {
	mu      sync.Mutex
	actions []audit.AuditEvent
}

func (r *auditRecorder) Emit(_ context.Context, action audit.AuditEvent, _ id.PartnerID, _ id.UserID, _ id.VerificationID, _ map[string]string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.actions = append(r.actions, action)
}

func (r *auditRecorder) all() []audit.AuditEvent {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]audit.AuditEvent(nil), r.actions...)
}

type sentEmail struct {
	Recipient string
	Template  email.TemplateKind
	Params    map[string]string
}

type emailRecorder struct {
	mu   sync.Mutex
	sent []sentEmail
}

func (r *emailRecorder) Send(_ context.Context, recipient string, template email.TemplateKind, params map[string]string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sent = append(r.sent, sentEmail{recipient, template, params})
	return nil
}

func (r *emailRecorder) all() []sentEmail {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]sentEmail(nil), r.sent...)
}

// fixture wires a full service over in-memory stores and stub providers.
type fixture struct {
	svc           *Service
	verifications *store.MemoryVerificationStore
	documents     *store.MemoryDocumentStore
	results       *store.MemoryResultStore
	blobs         *storage.MemoryStore

	extractor *stubExtractor
	comparer  *stubComparer
	analyzer  *stubAnalyzer
	webhooks  *webhookRecorder
	emails    *emailRecorder
	audits    *auditRecorder
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	f := &fixture{
		verifications: store.NewMemoryVerificationStore(),
		documents:     store.NewMemoryDocumentStore(),
		results:       store.NewMemoryResultStore(),
		blobs:         storage.NewMemoryStore(),
		extractor: &stubExtractor{entities: []providers.Entity{
			{Key: "surname", Value: "DOE", Confidence: 0.9},
			{Key: "given_name", Value: "JANE", Confidence: 0.9},
			{Key: "document_number", Value: "X123456789", Confidence: 0.9},
		}},
		comparer: &stubComparer{similarity: 95},
		analyzer: &stubAnalyzer{attrs: liveAttributes()},
		webhooks: &webhookRecorder{},
		emails:   &emailRecorder{},
		audits:   &auditRecorder{},
	}

	biometrics := biometric.New(
		biometric.WithFaceComparer(f.comparer),
		biometric.WithFaceAttributeAnalyzer(f.analyzer),
	)
	pipeline := Pipeline{
		Quality:    quality.New(quality.DefaultConfig()),
		Classifier: classifier.New(classifier.DefaultConfig()),
		Extractor:  extraction.New(extraction.WithStructuredExtractor(f.extractor)),
		Biometrics: biometrics,
		Decisions:  decision.New(storage.NewFetcher(f.blobs), biometrics),
	}
	stores := Stores{
		Verifications: f.verifications,
		Documents:     f.documents,
		Results:       f.results,
	}
	f.svc = New(stores, pipeline, f.blobs,
		WithWebhooks(f.webhooks),
		WithEmails(f.emails),
		WithAuditor(f.audits),
	)
	return f
}

func testContext() context.Context {
	return requestcontext.WithTime(context.Background(), testClock)
}

func (f *fixture) create(t *testing.T, vType id.VerificationType) *models.Verification {
	t.Helper()
	v, err := f.svc.Create(testContext(), CreateRequest{
		PartnerID:   id.NewPartnerID(),
		UserID:      id.NewUserID(),
		Type:        vType,
		WebhookURL:  "https://partner.example.com/hooks",
		NotifyEmail: "jane.doe@example.com",
	})
	require.NoError(t, err)
	return v
}

func (f *fixture) uploadDocument(t *testing.T, verificationID id.VerificationID) *UploadOutcome {
	t.Helper()
	outcome, err := f.svc.UploadDocument(testContext(), UploadDocumentRequest{
		VerificationID: verificationID,
		DeclaredType:   id.DocumentTypeNationalID,
		Data:           pdfDocument,
	})
	require.NoError(t, err)
	return outcome
}

func (f *fixture) uploadSelfie(t *testing.T, verificationID id.VerificationID) *UploadOutcome {
	t.Helper()
	outcome, err := f.svc.UploadSelfie(testContext(), verificationID, selfieBytes)
	require.NoError(t, err)
	return outcome
}

func requireCode(t *testing.T, err error, code dErrors.Code) {
	t.Helper()
	require.Error(t, err)
	assert.Equal(t, code, dErrors.CodeOf(err))
}

func TestCreateVerification(t *testing.T) {
	f := newFixture(t)

	v := f.create(t, id.VerificationTypeIdentity)

	assert.Equal(t, models.StatusPending, v.Status)
	assert.Equal(t, models.DefaultMaxRetries, v.MaxRetries)
	assert.Equal(t, 0, v.RetryCount)
	assert.Nil(t, v.ParentID)
	assert.Equal(t, testClock, v.CreatedAt)

	stored, err := f.verifications.Get(testContext(), v.ID)
	require.NoError(t, err)
	assert.Equal(t, v.ID, stored.ID)
	assert.Contains(t, f.audits.all(), audit.EventVerificationCreated)
}

func TestCreateVerificationValidation(t *testing.T) {
	f := newFixture(t)

	_, err := f.svc.Create(testContext(), CreateRequest{
		UserID: id.NewUserID(),
		Type:   id.VerificationTypeIdentity,
	})
	requireCode(t, err, dErrors.CodeInvalidInput)

	_, err = f.svc.Create(testContext(), CreateRequest{
		PartnerID: id.NewPartnerID(),
		UserID:    id.NewUserID(),
		Type:      id.VerificationType("NOT_A_TYPE"),
	})
	requireCode(t, err, dErrors.CodeInvalidInput)
}

func TestCreateVerificationMaxRetriesOverride(t *testing.T) {
	f := newFixture(t)

	v, err := f.svc.Create(testContext(), CreateRequest{
		PartnerID:  id.NewPartnerID(),
		UserID:     id.NewUserID(),
		Type:       id.VerificationTypeIdentity,
		MaxRetries: 2,
	})
	require.NoError(t, err)
	assert.Equal(t, 2, v.MaxRetries)
}

func TestGetNotFound(t *testing.T) {
	f := newFixture(t)

	_, err := f.svc.Get(testContext(), id.NewVerificationID())
	requireCode(t, err, dErrors.CodeNotFound)
}

func TestGetIncludesDocumentsAndRetryPosture(t *testing.T) {
	f := newFixture(t)
	v := f.create(t, id.VerificationTypeIdentity)
	f.uploadDocument(t, v.ID)

	details, err := f.svc.Get(testContext(), v.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusInProgress, details.Verification.Status)
	assert.Len(t, details.Documents, 1)
	assert.Nil(t, details.Result)
	assert.False(t, details.CanRetry)
	assert.Equal(t, models.DefaultMaxRetries, details.RemainingRetries)
}

func TestGetFailedVerificationOffersRetry(t *testing.T) {
	f := newFixture(t)
	v := f.create(t, id.VerificationTypeIdentity)

	stored, err := f.verifications.Get(testContext(), v.ID)
	require.NoError(t, err)
	stored.Status = models.StatusFailed
	require.NoError(t, f.verifications.Update(testContext(), stored))

	details, err := f.svc.Get(testContext(), v.ID)
	require.NoError(t, err)
	assert.True(t, details.CanRetry)
	assert.Equal(t, models.DefaultMaxRetries, details.RemainingRetries)
	assert.Contains(t, details.RetryMessage, "retries remaining")
}

func TestDeleteCascades(t *testing.T) {
	f := newFixture(t)
	v := f.create(t, id.VerificationTypeDocumentOnly)
	outcome := f.uploadDocument(t, v.ID)

	_, err := f.blobs.Get(testContext(), outcome.Document.StorageKey)
	require.NoError(t, err)

	require.NoError(t, f.svc.Delete(testContext(), v.ID))

	_, err = f.svc.Get(testContext(), v.ID)
	requireCode(t, err, dErrors.CodeNotFound)

	docs, err := f.documents.ListByVerification(testContext(), v.ID)
	require.NoError(t, err)
	assert.Empty(t, docs)

	_, err = f.blobs.Get(testContext(), outcome.Document.StorageKey)
	assert.Error(t, err)

	assert.Contains(t, f.audits.all(), audit.EventVerificationDeleted)
}

func TestDeleteNotFound(t *testing.T) {
	f := newFixture(t)

	err := f.svc.Delete(testContext(), id.NewVerificationID())
	requireCode(t, err, dErrors.CodeNotFound)
}

func TestCompareFaces(t *testing.T) {
	f := newFixture(t)

	result, err := f.svc.CompareFaces(testContext(), pdfDocument, selfieBytes)
	require.NoError(t, err)
	assert.True(t, result.Match)
	assert.InDelta(t, 0.95, result.Score, 1e-9)
}
