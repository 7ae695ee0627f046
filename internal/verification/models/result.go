package models

import (
	"time"

	"veridoc/internal/extraction"
	id "veridoc/pkg/domain"
)

// VerificationResult is the decision engine's verdict, one-to-one with a
// verification and upserted on every decision run.
type VerificationResult struct {
	VerificationID id.VerificationID `json:"verification_id"`
	Passed         bool              `json:"passed"`
	Score          float64           `json:"score"`
	RiskLevel      RiskLevel         `json:"risk_level"`

	DocumentAuthentic bool    `json:"document_authentic"`
	DocumentExpired   bool    `json:"document_expired"`
	DocumentTampered  bool    `json:"document_tampered"`
	FaceMatch         bool    `json:"face_match"`
	FaceMatchScore    float64 `json:"face_match_score"`
	NameMatch         bool    `json:"name_match"`
	NameMatchScore    float64 `json:"name_match_score"`
	LivenessPassed    bool    `json:"liveness_passed"`
	LivenessScore     float64 `json:"liveness_score"`

	ExtractedData *extraction.Data `json:"extracted_data,omitempty"`
	Flags         []Flag           `json:"flags,omitempty"`
	Warnings      []string         `json:"warnings,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// HasFlag reports whether a specific reason code was raised.
func (r *VerificationResult) HasFlag(flag Flag) bool {
	for _, f := range r.Flags {
		if f == flag {
			return true
		}
	}
	return false
}
