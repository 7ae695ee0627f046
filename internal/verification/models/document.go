package models

import (
	"time"

	"veridoc/internal/extraction"
	id "veridoc/pkg/domain"
)

// Document is one uploaded artifact tied to a verification.
//
// Invariant: at most one identity document and at most one selfie are live
// per verification. A new upload of the same kind supersedes the prior one
// atomically at the store layer.
type Document struct {
	ID             id.DocumentID     `json:"id"`
	VerificationID id.VerificationID `json:"verification_id"`
	Type           id.DocumentType   `json:"type"`
	Side           id.DocumentSide   `json:"side,omitempty"`
	StorageKey     string            `json:"storage_key"`
	URL            string            `json:"url,omitempty"`
	MimeType       string            `json:"mime_type"`
	ExtractedData  *extraction.Data  `json:"extracted_data,omitempty"`
	QualityScore   float64           `json:"quality_score"`
	IsBlurry       bool              `json:"is_blurry"`
	HasGlare       bool              `json:"has_glare"`
	IsComplete     bool              `json:"is_complete"`
	OCRConfidence  float64           `json:"ocr_confidence"`
	CreatedAt      time.Time         `json:"created_at"`
	UpdatedAt      time.Time         `json:"updated_at"`
}

// IsSelfie reports whether this artifact is the selfie rather than an ID
// document. Supersede-on-write and decision merging both branch on it.
func (d *Document) IsSelfie() bool {
	return d.Type == id.DocumentTypeSelfie
}
