package models

import (
	"encoding/json"
	"time"

	id "veridoc/pkg/domain"
)

// EventType names a partner notification.
type EventType string

const (
	EventDocumentUploaded      EventType = "document.uploaded"
	EventVerificationCompleted EventType = "verification.completed"
	EventVerificationFailed    EventType = "verification.failed"
)

// WebhookEvent is the delivery record for one partner notification. Rows are
// never deleted; every delivery attempt updates the same record.
type WebhookEvent struct {
	ID             id.WebhookEventID `json:"id"`
	VerificationID id.VerificationID `json:"verification_id"`
	EventType      EventType         `json:"event_type"`
	URL            string            `json:"url"`
	Payload        json.RawMessage   `json:"payload"`

	Delivered        bool       `json:"delivered"`
	DeliveryAttempts int        `json:"delivery_attempts"`
	LastAttemptAt    *time.Time `json:"last_attempt_at,omitempty"`
	DeliveredAt      *time.Time `json:"delivered_at,omitempty"`
	ResponseStatus   int        `json:"response_status,omitempty"`
	ResponseBody     string     `json:"response_body,omitempty"`

	CreatedAt time.Time `json:"created_at"`
}

// RecordAttempt updates the delivery bookkeeping after one HTTP attempt.
func (e *WebhookEvent) RecordAttempt(status int, body string, ok bool, now time.Time) {
	e.DeliveryAttempts++
	e.LastAttemptAt = &now
	e.ResponseStatus = status
	e.ResponseBody = body
	if ok {
		e.Delivered = true
		e.DeliveredAt = &now
	}
}
