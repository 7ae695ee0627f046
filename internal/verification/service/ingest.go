package service

import (
	"context"
	"strconv"
	"strings"

	"veridoc/internal/docid"
	"veridoc/internal/imaging"
	"veridoc/internal/storage"
	"veridoc/internal/verification/models"
	id "veridoc/pkg/domain"
	dErrors "veridoc/pkg/domain-errors"
	"veridoc/pkg/platform/audit"
	pstrings "veridoc/pkg/platform/strings"
	"veridoc/pkg/requestcontext"
)

// UploadDocumentRequest carries one identity-document upload.
type UploadDocumentRequest struct {
	VerificationID id.VerificationID
	DeclaredType   id.DocumentType
	Side           id.DocumentSide
	Data           []byte
}

// UploadOutcome reports where an upload landed and what the pipeline made of
// it. VerificationID differs from the request's when the upload was routed
// into a spawned or reused retry attempt.
type UploadOutcome struct {
	VerificationID id.VerificationID `json:"verification_id"`
	Document       *models.Document  `json:"document"`
	RetrySpawned   bool              `json:"retry_spawned,omitempty"`
	TypeCorrected  bool              `json:"type_corrected,omitempty"`
	Warnings       []string          `json:"warnings,omitempty"`
}

// UploadDocument runs the document intake pipeline: quality gate,
// classification, field extraction, and for full KYC verifications the
// jurisdiction document-number check. The stored document supersedes any
// prior identity document on the same verification.
func (s *Service) UploadDocument(ctx context.Context, req UploadDocumentRequest) (*UploadOutcome, error) {
	v, err := s.getVerification(ctx, req.VerificationID)
	if err != nil {
		return nil, err
	}
	if !v.Type.RequiresDocument() {
		s.rejectUpload("type_mismatch")
		return nil, dErrors.Newf(dErrors.CodeBadRequest,
			"%s verifications do not accept identity documents", v.Type)
	}
	if req.DeclaredType == id.DocumentTypeSelfie {
		return nil, dErrors.New(dErrors.CodeBadRequest,
			"selfies go through the selfie upload endpoint")
	}
	if len(req.Data) == 0 {
		return nil, dErrors.New(dErrors.CodeInvalidInput, "document image is empty")
	}

	target, spawned, err := s.ensureUploadable(ctx, v)
	if err != nil {
		return nil, err
	}

	report, err := s.pipeline.Quality.Assess(req.Data)
	if err != nil {
		s.rejectUpload("undecodable")
		return nil, dErrors.Wrap(err, dErrors.CodeInvalidInput, "document image could not be read")
	}
	if err := s.pipeline.Quality.Check(report); err != nil {
		s.rejectUpload("quality")
		return nil, err
	}

	classified, err := s.pipeline.Classifier.Classify(ctx, req.Data, req.DeclaredType)
	if err != nil {
		return nil, err
	}

	var warnings []string
	if classified.Corrected {
		warnings = append(warnings, "declared type "+classified.DeclaredType.String()+
			" corrected to "+classified.Type.String())
	}

	extracted, err := s.pipeline.Extractor.Extract(ctx, req.Data, classified.Type)
	if err != nil {
		return nil, err
	}

	// Document-number validation is a hard gate for full KYC only; the other
	// flows surface problems at decision time instead.
	if v.Type == id.VerificationTypeFullKYC && extracted.DocumentNumber != "" {
		country := extracted.Country
		if country == "" {
			country = extracted.Nationality
		}
		checked, err := docid.Check(extracted.DocumentNumber, classified.Type, country, extracted.Surname)
		if err != nil {
			s.rejectUpload("document_number")
			return nil, err
		}
		warnings = append(warnings, checked.Warnings...)
	}

	doc := &models.Document{
		ID:             id.NewDocumentID(),
		VerificationID: target.ID,
		Type:           classified.Type,
		Side:           req.Side,
		StorageKey:     blobPrefix(target.ID) + "document",
		MimeType:       sniffMIME(req.Data),
		ExtractedData:  extracted,
		QualityScore:   report.QualityScore,
		IsBlurry:       report.IsBlurry,
		HasGlare:       report.HasGlare,
		IsComplete:     report.IsComplete,
		OCRConfidence:  extracted.Confidence,
		CreatedAt:      requestcontext.Now(ctx),
		UpdatedAt:      requestcontext.Now(ctx),
	}

	if err := s.storeUpload(ctx, target, doc, req.Data); err != nil {
		return nil, err
	}

	s.audit(ctx, audit.EventDocumentUploaded, target, map[string]string{
		"document_id": doc.ID.String(),
		"type":        string(doc.Type),
	})
	if s.metrics != nil {
		s.metrics.RecordUpload("document")
	}
	s.notifyUploaded(ctx, target, doc)
	s.logger.InfoContext(ctx, "document uploaded",
		"verification_id", target.ID, "document_id", doc.ID,
		"type", doc.Type, "quality_score", report.QualityScore)

	return &UploadOutcome{
		VerificationID: target.ID,
		Document:       doc,
		RetrySpawned:   spawned,
		TypeCorrected:  classified.Corrected,
		Warnings:       pstrings.DedupeAndTrim(warnings),
	}, nil
}

// UploadSelfie runs selfie intake: face presence check, liveness scoring,
// and storage. The liveness verdict is kept on the verification for the
// decision engine; a failed liveness check does not reject the upload.
func (s *Service) UploadSelfie(ctx context.Context, verificationID id.VerificationID, data []byte) (*UploadOutcome, error) {
	v, err := s.getVerification(ctx, verificationID)
	if err != nil {
		return nil, err
	}
	if !v.Type.RequiresSelfie() {
		s.rejectUpload("type_mismatch")
		return nil, dErrors.Newf(dErrors.CodeBadRequest,
			"%s verifications do not accept selfies", v.Type)
	}
	if len(data) == 0 {
		return nil, dErrors.New(dErrors.CodeInvalidInput, "selfie image is empty")
	}

	target, spawned, err := s.ensureUploadable(ctx, v)
	if err != nil {
		return nil, err
	}

	if err := s.pipeline.Biometrics.CheckSelfie(ctx, data); err != nil {
		s.rejectUpload("no_face")
		return nil, err
	}
	liveness := s.pipeline.Biometrics.Liveness(ctx, data)

	doc := &models.Document{
		ID:             id.NewDocumentID(),
		VerificationID: target.ID,
		Type:           id.DocumentTypeSelfie,
		StorageKey:     blobPrefix(target.ID) + "selfie",
		MimeType:       sniffMIME(data),
		IsComplete:     true,
		CreatedAt:      requestcontext.Now(ctx),
		UpdatedAt:      requestcontext.Now(ctx),
	}

	if err := s.storeUpload(ctx, target, doc, data); err != nil {
		return nil, err
	}

	target.Metadata.Liveness = liveness
	if err := s.stores.Verifications.Update(ctx, target); err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to record liveness")
	}

	s.audit(ctx, audit.EventSelfieUploaded, target, map[string]string{
		"document_id": doc.ID.String(),
		"live":        strconv.FormatBool(liveness.IsLive),
	})
	if s.metrics != nil {
		s.metrics.RecordUpload("selfie")
	}
	s.notifyUploaded(ctx, target, doc)
	s.logger.InfoContext(ctx, "selfie uploaded",
		"verification_id", target.ID, "document_id", doc.ID,
		"live", liveness.IsLive, "liveness_confidence", liveness.Confidence)

	var warnings []string
	if !liveness.IsLive {
		warnings = append(warnings, "liveness check did not pass, the decision will flag it")
	}
	return &UploadOutcome{
		VerificationID: target.ID,
		Document:       doc,
		RetrySpawned:   spawned,
		Warnings:       warnings,
	}, nil
}

// storeUpload persists the image bytes and the document row, and moves a
// pending verification into IN_PROGRESS on its first artifact.
func (s *Service) storeUpload(ctx context.Context, target *models.Verification, doc *models.Document, data []byte) error {
	obj := storage.Object{Data: data, MimeType: doc.MimeType}
	if err := s.blobs.Put(ctx, doc.StorageKey, obj); err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to store image")
	}
	if err := s.stores.Documents.Put(ctx, doc); err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to store document")
	}
	if target.Status == models.StatusPending {
		if err := target.Transition(models.StatusInProgress, requestcontext.Now(ctx)); err != nil {
			return err
		}
		if err := s.stores.Verifications.Update(ctx, target); err != nil {
			return dErrors.Wrap(err, dErrors.CodeInternal, "failed to update verification")
		}
	}
	return nil
}

func (s *Service) notifyUploaded(ctx context.Context, v *models.Verification, doc *models.Document) {
	if s.webhooks == nil || v.WebhookURL == "" {
		return
	}
	s.webhooks.Notify(ctx, v.ID, models.EventDocumentUploaded, v.WebhookURL, map[string]any{
		"verification_id": v.ID.String(),
		"document_id":     doc.ID.String(),
		"document_type":   doc.Type.String(),
		"status":          string(v.Status),
	})
}

func (s *Service) rejectUpload(reason string) {
	if s.metrics != nil {
		s.metrics.RecordUploadRejected(reason)
	}
}

// sniffMIME derives the stored content type from the bytes themselves rather
// than trusting the upload's headers.
func sniffMIME(data []byte) string {
	if imaging.IsPDF(data) {
		return "application/pdf"
	}
	if _, format, err := imaging.Decode(data); err == nil {
		return "image/" + strings.ToLower(format)
	}
	return "application/octet-stream"
}
