// Package service orchestrates the verification pipeline: intake, document
// and selfie ingestion through the quality/classification/extraction chain,
// submission through the decision engine, and the retry-chain state machine.
package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"veridoc/internal/biometric"
	"veridoc/internal/classifier"
	"veridoc/internal/decision"
	"veridoc/internal/extraction"
	"veridoc/internal/quality"
	"veridoc/internal/storage"
	"veridoc/internal/verification/metrics"
	"veridoc/internal/verification/models"
	"veridoc/internal/verification/store"
	id "veridoc/pkg/domain"
	dErrors "veridoc/pkg/domain-errors"
	"veridoc/pkg/email"
	"veridoc/pkg/platform/audit"
	"veridoc/pkg/platform/sentinel"
	"veridoc/pkg/requestcontext"
)

// Stores bundles the persistence dependencies.
type Stores struct {
	Verifications store.VerificationStore
	Documents     store.DocumentStore
	Results       store.ResultStore
}

// Pipeline bundles the processing engines the service drives.
type Pipeline struct {
	Quality    *quality.Gate
	Classifier *classifier.Classifier
	Extractor  *extraction.Engine
	Biometrics *biometric.Engine
	Decisions  *decision.Engine
}

// WebhookNotifier is the outbound notification port the dispatcher satisfies.
// Notify must never block or fail the caller.
type WebhookNotifier interface {
	Notify(ctx context.Context, verificationID id.VerificationID, eventType models.EventType, url string, payload any)
}

// Auditor is the audit trail port the publisher satisfies.
type Auditor interface {
	Emit(ctx context.Context, action audit.AuditEvent, partnerID id.PartnerID, userID id.UserID, verificationID id.VerificationID, details map[string]string)
}

//go:generate mockgen -destination=mock_cache_test.go -package=service veridoc/internal/verification/service ResultCache

// ResultCache is a read-through cache for completed results. Failures are
// logged and fall through to the store.
type ResultCache interface {
	Get(ctx context.Context, verificationID id.VerificationID) (*models.VerificationResult, error)
	Set(ctx context.Context, result *models.VerificationResult) error
	Invalidate(ctx context.Context, verificationID id.VerificationID) error
}

// Service orchestrates verifications end to end.
type Service struct {
	stores   Stores
	pipeline Pipeline
	blobs    storage.Store

	webhooks WebhookNotifier
	emails   email.Notifier
	auditor  Auditor
	cache    ResultCache
	logger   *slog.Logger
	metrics  *metrics.Metrics
}

// Option configures a Service.
type Option func(*Service)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) { s.logger = logger }
}

func WithWebhooks(notifier WebhookNotifier) Option {
	return func(s *Service) { s.webhooks = notifier }
}

func WithEmails(notifier email.Notifier) Option {
	return func(s *Service) { s.emails = notifier }
}

func WithAuditor(auditor Auditor) Option {
	return func(s *Service) { s.auditor = auditor }
}

func WithResultCache(cache ResultCache) Option {
	return func(s *Service) { s.cache = cache }
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Service) { s.metrics = m }
}

// New constructs a Service.
func New(stores Stores, pipeline Pipeline, blobs storage.Store, opts ...Option) *Service {
	s := &Service{
		stores:   stores,
		pipeline: pipeline,
		blobs:    blobs,
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// CreateRequest is the intake payload for a new verification.
type CreateRequest struct {
	PartnerID     id.PartnerID
	UserID        id.UserID
	Type          id.VerificationType
	WebhookURL    string
	NotifyEmail   string
	RequestedName string
	// MaxRetries overrides the default chain budget when positive.
	MaxRetries int
}

// Create opens a new pending verification.
func (s *Service) Create(ctx context.Context, req CreateRequest) (*models.Verification, error) {
	if req.PartnerID.IsNil() || req.UserID.IsNil() {
		return nil, dErrors.New(dErrors.CodeInvalidInput, "partner and user are required")
	}

	v, err := models.NewVerification(req.PartnerID, req.UserID, req.Type, requestcontext.Now(ctx))
	if err != nil {
		return nil, err
	}
	v.WebhookURL = req.WebhookURL
	v.NotifyEmail = req.NotifyEmail
	v.RequestedName = req.RequestedName
	if req.MaxRetries > 0 {
		v.MaxRetries = req.MaxRetries
	}

	if err := s.stores.Verifications.Create(ctx, v); err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to create verification")
	}

	s.audit(ctx, audit.EventVerificationCreated, v, map[string]string{"type": string(v.Type)})
	if s.metrics != nil {
		s.metrics.RecordCreated(string(v.Type))
	}
	s.logger.InfoContext(ctx, "verification created",
		"verification_id", v.ID, "partner_id", v.PartnerID, "type", v.Type)
	return v, nil
}

// Details is the read model for one verification, including the retry
// posture derived from the chain.
type Details struct {
	Verification *models.Verification       `json:"verification"`
	Documents    []*models.Document         `json:"documents,omitempty"`
	Result       *models.VerificationResult `json:"result,omitempty"`

	CanRetry         bool   `json:"can_retry"`
	RemainingRetries int    `json:"remaining_retries"`
	RetryMessage     string `json:"retry_message,omitempty"`
}

// Get returns the verification with its documents, result, and retry
// posture.
func (s *Service) Get(ctx context.Context, verificationID id.VerificationID) (*Details, error) {
	v, err := s.getVerification(ctx, verificationID)
	if err != nil {
		return nil, err
	}

	docs, err := s.stores.Documents.ListByVerification(ctx, v.ID)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load documents")
	}

	result, err := s.getResult(ctx, v.ID)
	if err != nil {
		return nil, err
	}

	used, err := s.retriesUsed(ctx, v)
	if err != nil {
		return nil, err
	}

	details := &Details{
		Verification:     v,
		Documents:        docs,
		Result:           result,
		RemainingRetries: max(0, v.MaxRetries-used),
	}
	if v.Status == models.StatusFailed {
		if used < v.MaxRetries {
			details.CanRetry = true
			details.RetryMessage = fmt.Sprintf(
				"verification failed, upload new documents to retry (%d of %d retries remaining)",
				details.RemainingRetries, v.MaxRetries)
		} else {
			details.RetryMessage = "retry limit reached, no further attempts are allowed"
		}
	}
	return details, nil
}

// Delete removes a verification and everything it owns: documents, result,
// and stored image bytes. Chained retries are detached, not removed.
func (s *Service) Delete(ctx context.Context, verificationID id.VerificationID) error {
	v, err := s.getVerification(ctx, verificationID)
	if err != nil {
		return err
	}

	if err := s.stores.Documents.DeleteByVerification(ctx, v.ID); err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to delete documents")
	}
	if err := s.stores.Results.DeleteByVerification(ctx, v.ID); err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to delete result")
	}
	if err := s.blobs.DeletePrefix(ctx, blobPrefix(v.ID)); err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to delete stored images")
	}
	if s.cache != nil {
		if err := s.cache.Invalidate(ctx, v.ID); err != nil {
			s.logger.WarnContext(ctx, "result cache invalidation failed",
				"verification_id", v.ID, "error", err)
		}
	}
	if err := s.stores.Verifications.Delete(ctx, v.ID); err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to delete verification")
	}

	s.audit(ctx, audit.EventVerificationDeleted, v, nil)
	s.logger.InfoContext(ctx, "verification deleted", "verification_id", v.ID)
	return nil
}

// CompareFaces runs the biometric comparison directly. Debug surface; no
// stored state is touched.
func (s *Service) CompareFaces(ctx context.Context, docImage, selfie []byte) (*biometric.CompareResult, error) {
	return s.pipeline.Biometrics.Compare(ctx, docImage, selfie)
}

func (s *Service) getVerification(ctx context.Context, verificationID id.VerificationID) (*models.Verification, error) {
	v, err := s.stores.Verifications.Get(ctx, verificationID)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, dErrors.New(dErrors.CodeNotFound, "verification not found")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load verification")
	}
	return v, nil
}

// getResult reads through the cache, falling back to the store. A missing
// result is not an error; decisions may not have run yet.
func (s *Service) getResult(ctx context.Context, verificationID id.VerificationID) (*models.VerificationResult, error) {
	if s.cache != nil {
		cached, err := s.cache.Get(ctx, verificationID)
		if err != nil && !errors.Is(err, sentinel.ErrNotFound) {
			s.logger.WarnContext(ctx, "result cache read failed",
				"verification_id", verificationID, "error", err)
		}
		if cached != nil {
			return cached, nil
		}
	}

	result, err := s.stores.Results.Get(ctx, verificationID)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, nil
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load result")
	}
	return result, nil
}

func (s *Service) audit(ctx context.Context, action audit.AuditEvent, v *models.Verification, details map[string]string) {
	if s.auditor == nil {
		return
	}
	s.auditor.Emit(ctx, action, v.PartnerID, v.UserID, v.ID, details)
}

func blobPrefix(verificationID id.VerificationID) string {
	return "verifications/" + verificationID.String() + "/"
}
