package models

import (
	"time"

	"veridoc/internal/biometric"
	id "veridoc/pkg/domain"
	dErrors "veridoc/pkg/domain-errors"
)

// DefaultMaxRetries bounds the total attempts in one retry chain.
const DefaultMaxRetries = 5

// Verification is the aggregate root for one identity-check attempt.
//
// Invariants:
//   - Status follows PENDING → IN_PROGRESS → {COMPLETED, FAILED}
//   - MaxRetries ≥ 1; RetryCount < MaxRetries
//   - ParentID, when set, points at a member of the retry chain; counting
//     resolves transitively to the chain root
//   - At most one member of a chain is non-terminal at any time. Enforced at
//     the service layer (retry controller), not by the row itself
//   - CreatedAt is immutable after construction
type Verification struct {
	ID            id.VerificationID   `json:"id"`
	PartnerID     id.PartnerID        `json:"partner_id"`
	UserID        id.UserID           `json:"user_id"`
	Type          id.VerificationType `json:"type"`
	Status        VerificationStatus  `json:"status"`
	RetryCount    int                 `json:"retry_count"`
	MaxRetries    int                 `json:"max_retries"`
	ParentID      *id.VerificationID  `json:"parent_verification_id,omitempty"`
	WebhookURL    string              `json:"webhook_url,omitempty"`
	NotifyEmail   string              `json:"notify_email,omitempty"`
	RequestedName string              `json:"requested_name,omitempty"`
	Metadata      Metadata            `json:"metadata"`
	CreatedAt     time.Time           `json:"created_at"`
	CompletedAt   *time.Time          `json:"completed_at,omitempty"`
}

// Metadata holds per-verification pipeline snapshots that are not part of the
// decision result, currently the liveness verdict captured at selfie upload.
type Metadata struct {
	Liveness *biometric.LivenessResult `json:"liveness,omitempty"`
}

// NewVerification constructs a pending verification.
func NewVerification(partnerID id.PartnerID, userID id.UserID, vType id.VerificationType, now time.Time) (*Verification, error) {
	if !vType.IsValid() {
		return nil, dErrors.New(dErrors.CodeInvalidInput, "unknown verification type")
	}
	return &Verification{
		ID:         id.NewVerificationID(),
		PartnerID:  partnerID,
		UserID:     userID,
		Type:       vType,
		Status:     StatusPending,
		MaxRetries: DefaultMaxRetries,
		CreatedAt:  now,
	}, nil
}

// NewRetry constructs the next chained attempt after a failure. root must be
// the chain root; retryCount is the chain's total attempt count so far.
func (v *Verification) NewRetry(root id.VerificationID, retryCount int, now time.Time) *Verification {
	return &Verification{
		ID:            id.NewVerificationID(),
		PartnerID:     v.PartnerID,
		UserID:        v.UserID,
		Type:          v.Type,
		Status:        StatusPending,
		RetryCount:    retryCount,
		MaxRetries:    v.MaxRetries,
		ParentID:      &root,
		WebhookURL:    v.WebhookURL,
		NotifyEmail:   v.NotifyEmail,
		RequestedName: v.RequestedName,
		CreatedAt:     now,
	}
}

// Transition moves the verification to the target status, stamping
// CompletedAt on terminal states.
func (v *Verification) Transition(target VerificationStatus, now time.Time) error {
	if !v.Status.CanTransitionTo(target) {
		return dErrors.Newf(dErrors.CodeConflict,
			"verification cannot move from %s to %s", v.Status, target)
	}
	v.Status = target
	if target.IsTerminal() {
		v.CompletedAt = &now
	}
	return nil
}

// AcceptsUploads reports whether new artifacts may land on this row directly.
// FAILED rows accept uploads only through the retry controller.
func (v *Verification) AcceptsUploads() bool {
	return v.Status == StatusPending || v.Status == StatusInProgress
}
