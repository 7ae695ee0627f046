// Package audit captures key pipeline actions for compliance and operational
// visibility. Events are published asynchronously; the pipeline never blocks
// on the audit trail.
package audit

import (
	"time"

	id "veridoc/pkg/domain"
)

// EventCategory classifies audit events by their primary purpose, enabling
// different retention policies and routing.
type EventCategory string

const (
	// CategoryCompliance covers events with legal/regulatory significance:
	// verification outcomes and partner-initiated deletions.
	CategoryCompliance EventCategory = "compliance"

	// CategoryOperations covers events useful for debugging and operational
	// visibility: uploads, retries, webhook delivery.
	CategoryOperations EventCategory = "operations"
)

// Event is emitted from domain logic to capture key actions. Kept
// transport-agnostic so stores and sinks can fan out.
type Event struct {
	Category       EventCategory     `json:"category"`
	Timestamp      time.Time         `json:"timestamp"`
	Action         string            `json:"action"`
	PartnerID      id.PartnerID      `json:"partner_id"`
	UserID         id.UserID         `json:"user_id"`
	VerificationID id.VerificationID `json:"verification_id"`
	Reason         string            `json:"reason,omitempty"`
	RequestID      string            `json:"request_id,omitempty"`
	Details        map[string]string `json:"details,omitempty"`
}

// AuditEvent names one auditable action.
type AuditEvent string

const (
	EventVerificationCreated   AuditEvent = "verification_created"
	EventDocumentUploaded      AuditEvent = "document_uploaded"
	EventSelfieUploaded        AuditEvent = "selfie_uploaded"
	EventVerificationCompleted AuditEvent = "verification_completed"
	EventVerificationFailed    AuditEvent = "verification_failed"
	EventRetrySpawned          AuditEvent = "retry_spawned"
	EventRetryExhausted        AuditEvent = "retry_exhausted"
	EventVerificationDeleted   AuditEvent = "verification_deleted"
	EventWebhookExhausted      AuditEvent = "webhook_exhausted"
)

// categories routes each action to its retention class. Unlisted actions
// default to operations.
var categories = map[AuditEvent]EventCategory{
	EventVerificationCompleted: CategoryCompliance,
	EventVerificationFailed:    CategoryCompliance,
	EventVerificationDeleted:   CategoryCompliance,
	EventRetryExhausted:        CategoryCompliance,
}

// CategoryFor returns the retention class for an action.
func CategoryFor(action AuditEvent) EventCategory {
	if category, ok := categories[action]; ok {
		return category
	}
	return CategoryOperations
}
