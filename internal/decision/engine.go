// Package decision fuses quality, extraction, biometric, and liveness
// signals for one verification into a pass/fail verdict with a continuous
// score, a risk level, and machine-readable flags. All thresholds live in
// Config; evaluation is deterministic for identical inputs.
package decision

import (
	"context"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"veridoc/internal/biometric"
	"veridoc/internal/decision/metrics"
	"veridoc/internal/verification/models"
	dErrors "veridoc/pkg/domain-errors"
	"veridoc/pkg/requestcontext"
)

// ImageFetcher retrieves stored artifact bytes for face comparison.
type ImageFetcher interface {
	Fetch(ctx context.Context, storageKey string) ([]byte, error)
}

// FaceComparer is the face-matching capability the engine consumes; the
// biometric engine satisfies it.
type FaceComparer interface {
	Compare(ctx context.Context, docImage, selfie []byte) (*biometric.CompareResult, error)
}

// Engine evaluates a verification's stored artifacts into a result.
type Engine struct {
	config  Config
	images  ImageFetcher
	faces   FaceComparer
	metrics *metrics.Metrics
	logger  *slog.Logger
	tracer  trace.Tracer
}

// Option configures an Engine.
type Option func(*Engine)

func WithConfig(config Config) Option {
	return func(e *Engine) { e.config = config }
}

func WithLogger(logger *slog.Logger) Option {
	return func(e *Engine) { e.logger = logger }
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(e *Engine) { e.metrics = m }
}

// New constructs a decision engine with default thresholds.
func New(images ImageFetcher, faces FaceComparer, opts ...Option) *Engine {
	e := &Engine{
		config: DefaultConfig(),
		images: images,
		faces:  faces,
		logger: slog.Default(),
		tracer: otel.Tracer("veridoc/decision"),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Evaluate produces the verification result for the given artifacts. The
// server clock is read from the request context so tests can pin it.
//
// Errors: CodePreconditionFailed when a required document or selfie is
// missing; precondition violations never produce a result row.
func (e *Engine) Evaluate(ctx context.Context, v *models.Verification, docs []*models.Document) (*models.VerificationResult, error) {
	ctx, span := e.tracer.Start(ctx, "decision.Evaluate",
		trace.WithAttributes(attribute.String("verification.id", v.ID.String())))
	defer span.End()
	start := time.Now()

	idDocs, selfie := splitDocuments(docs)
	if v.Type.RequiresDocument() && len(idDocs) == 0 {
		return nil, dErrors.New(dErrors.CodePreconditionFailed,
			"no identity document has been uploaded")
	}
	if v.Type.RequiresSelfie() && selfie == nil {
		return nil, dErrors.New(dErrors.CodePreconditionFailed,
			"no selfie has been uploaded")
	}

	now := requestcontext.Now(ctx)
	result := &models.VerificationResult{
		VerificationID: v.ID,
		ExtractedData:  MergeExtracted(docs),
		CreatedAt:      now,
		UpdatedAt:      now,
	}

	avgQuality, avgOCR := documentAggregates(idDocs)
	e.checkDocuments(result, idDocs, avgQuality, avgOCR, now)
	nameSupplied := e.checkName(result, v.RequestedName)
	_ = e.checkFaces(ctx, result, idDocs, selfie)
	livenessChecked := e.checkLiveness(result, v, selfie)

	result.Score = e.score(result, avgQuality, nameSupplied)
	// Every failing check raises a flag, so a clean flag list is the pass
	// criterion.
	result.Passed = len(result.Flags) == 0
	result.RiskLevel = e.riskLevel(result, idDocs, avgQuality)
	result.DocumentAuthentic = len(idDocs) > 0 && !result.DocumentTampered &&
		!result.HasFlag(models.FlagLowQuality)

	span.SetAttributes(
		attribute.Bool("decision.passed", result.Passed),
		attribute.String("decision.risk_level", string(result.RiskLevel)),
	)
	if e.metrics != nil {
		e.metrics.RecordDecision(result.Passed, string(result.RiskLevel))
		e.metrics.ObserveEvaluate(start)
	}
	e.logger.InfoContext(ctx, "verification evaluated",
		"verification_id", v.ID.String(),
		"passed", result.Passed,
		"score", result.Score,
		"risk_level", result.RiskLevel,
		"flags", result.Flags,
		"liveness_checked", livenessChecked,
	)
	return result, nil
}

func splitDocuments(docs []*models.Document) (idDocs []*models.Document, selfie *models.Document) {
	for _, doc := range docs {
		if doc.IsSelfie() {
			if selfie == nil || doc.CreatedAt.After(selfie.CreatedAt) {
				selfie = doc
			}
			continue
		}
		idDocs = append(idDocs, doc)
	}
	return idDocs, selfie
}

func documentAggregates(idDocs []*models.Document) (avgQuality, avgOCR float64) {
	if len(idDocs) == 0 {
		return 0, 0
	}
	for _, doc := range idDocs {
		avgQuality += doc.QualityScore
		avgOCR += doc.OCRConfidence
	}
	n := float64(len(idDocs))
	return avgQuality / n, avgOCR / n
}

// checkDocuments evaluates quality, tampering, and expiry over the ID
// documents.
func (e *Engine) checkDocuments(result *models.VerificationResult, idDocs []*models.Document, avgQuality, avgOCR float64, now time.Time) {
	if len(idDocs) == 0 {
		return
	}

	if avgQuality < e.config.MinQuality {
		result.Flags = append(result.Flags, models.FlagLowQuality)
	}
	for _, doc := range idDocs {
		if doc.IsBlurry {
			result.Warnings = append(result.Warnings, "document image is blurry")
		}
		if doc.HasGlare {
			result.Warnings = append(result.Warnings, "document image has glare")
		}
	}

	if avgQuality < e.config.TamperQualityThreshold || avgOCR < e.config.TamperOCRThreshold {
		result.DocumentTampered = true
		result.Flags = append(result.Flags, models.FlagPossibleTampering)
	}

	if expiry := result.ExtractedData.ExpiryDate; expiry != nil {
		if dateOnly(*expiry).Before(dateOnly(now)) {
			result.DocumentExpired = true
			result.Flags = append(result.Flags, models.FlagDocumentExpired)
		}
	}
}

// checkName compares the requester-declared name when one was supplied.
// Without one the check is skipped entirely: it neither fails the
// verification nor contributes to the score.
func (e *Engine) checkName(result *models.VerificationResult, requestedName string) bool {
	if requestedName == "" {
		result.NameMatch = true
		return false
	}
	match, score := e.CompareNames(requestedName, result.ExtractedData.ResolvedName())
	result.NameMatch = match
	result.NameMatchScore = score
	if !match {
		result.Flags = append(result.Flags, models.FlagNameMismatch)
	}
	return true
}

// checkFaces runs face comparison between the newest ID document and the
// selfie. Fetch and comparison failures become flags that raise risk rather
// than aborting the decision.
func (e *Engine) checkFaces(ctx context.Context, result *models.VerificationResult, idDocs []*models.Document, selfie *models.Document) bool {
	if selfie == nil || len(idDocs) == 0 {
		return false
	}
	newest := idDocs[0]
	for _, doc := range idDocs[1:] {
		if doc.CreatedAt.After(newest.CreatedAt) {
			newest = doc
		}
	}

	docImage, err := e.images.Fetch(ctx, newest.StorageKey)
	if err == nil {
		var selfieImage []byte
		selfieImage, err = e.images.Fetch(ctx, selfie.StorageKey)
		if err == nil {
			comparison, cmpErr := e.faces.Compare(ctx, docImage, selfieImage)
			if cmpErr != nil {
				e.logger.WarnContext(ctx, "face comparison failed", "error", cmpErr)
				result.Flags = append(result.Flags, models.FlagFaceComparisonError)
				return true
			}
			result.FaceMatch = comparison.Match
			result.FaceMatchScore = comparison.Score
			if !comparison.Match {
				result.Flags = append(result.Flags, models.FlagFaceMismatch)
			}
			return true
		}
	}
	e.logger.WarnContext(ctx, "could not fetch stored image for face comparison", "error", err)
	result.Flags = append(result.Flags, models.FlagImageFetchFailed)
	return true
}

// checkLiveness reads the liveness verdict captured during selfie upload.
func (e *Engine) checkLiveness(result *models.VerificationResult, v *models.Verification, selfie *models.Document) bool {
	if selfie == nil || v.Metadata.Liveness == nil {
		return false
	}
	liveness := v.Metadata.Liveness
	result.LivenessPassed = liveness.IsLive
	result.LivenessScore = liveness.Confidence
	if !liveness.IsLive {
		result.Flags = append(result.Flags, models.FlagLivenessFailed)
	}
	return true
}

// score computes the weighted sum. Each term is zeroed when its underlying
// check failed or did not run.
func (e *Engine) score(result *models.VerificationResult, avgQuality float64, nameSupplied bool) float64 {
	var total float64
	if avgQuality >= e.config.MinQuality {
		total += e.config.QualityWeight * avgQuality
	}
	if result.FaceMatch {
		total += e.config.FaceWeight * result.FaceMatchScore
	}
	if nameSupplied && result.NameMatch {
		total += e.config.NameWeight * result.NameMatchScore
	}
	if result.LivenessPassed {
		total += e.config.LivenessWeight * result.LivenessScore
	}
	return total
}

// riskLevel applies the severity ladder over the accumulated signals.
func (e *Engine) riskLevel(result *models.VerificationResult, idDocs []*models.Document, avgQuality float64) models.RiskLevel {
	risk := models.RiskLow
	if len(idDocs) > 0 && avgQuality < e.config.MediumRiskQuality {
		risk = risk.AtLeast(models.RiskMedium)
	}
	if result.HasFlag(models.FlagImageFetchFailed) ||
		result.HasFlag(models.FlagFaceComparisonError) ||
		result.DocumentExpired ||
		(len(idDocs) > 0 && avgQuality < e.config.HighRiskQuality) {
		risk = risk.AtLeast(models.RiskHigh)
	}
	if result.DocumentTampered ||
		result.HasFlag(models.FlagFaceMismatch) ||
		result.HasFlag(models.FlagNameMismatch) ||
		result.HasFlag(models.FlagLivenessFailed) {
		risk = risk.AtLeast(models.RiskCritical)
	}
	return risk
}

func dateOnly(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}
