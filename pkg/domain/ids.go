package domain

import (
	"github.com/google/uuid"

	dErrors "veridoc/pkg/domain-errors"
)

// Typed UUID wrappers for entity identifiers. The distinct types keep a
// verification ID from being passed where a document ID is expected; the
// compiler enforces what code review would otherwise have to catch.
type (
	VerificationID uuid.UUID
	DocumentID     uuid.UUID
	PartnerID      uuid.UUID
	UserID         uuid.UUID
	WebhookEventID uuid.UUID
)

// parseUUID enforces the shared invariant: IDs must be valid, non-nil UUIDs.
// Construct IDs through the Parse* functions at trust boundaries; direct
// casting bypasses validation.
func parseUUID(s, what string) (uuid.UUID, error) {
	if s == "" {
		return uuid.Nil, dErrors.New(dErrors.CodeInvalidInput, what+" cannot be empty")
	}
	parsed, err := uuid.Parse(s)
	if err != nil {
		return uuid.Nil, dErrors.New(dErrors.CodeInvalidInput, "invalid "+what)
	}
	if parsed == uuid.Nil {
		return uuid.Nil, dErrors.New(dErrors.CodeInvalidInput, what+" cannot be nil")
	}
	return parsed, nil
}

func ParseVerificationID(s string) (VerificationID, error) {
	id, err := parseUUID(s, "verification_id")
	return VerificationID(id), err
}

func ParseDocumentID(s string) (DocumentID, error) {
	id, err := parseUUID(s, "document_id")
	return DocumentID(id), err
}

func ParsePartnerID(s string) (PartnerID, error) {
	id, err := parseUUID(s, "partner_id")
	return PartnerID(id), err
}

func ParseUserID(s string) (UserID, error) {
	id, err := parseUUID(s, "user_id")
	return UserID(id), err
}

func ParseWebhookEventID(s string) (WebhookEventID, error) {
	id, err := parseUUID(s, "webhook_event_id")
	return WebhookEventID(id), err
}

func NewVerificationID() VerificationID { return VerificationID(uuid.New()) }
func NewDocumentID() DocumentID         { return DocumentID(uuid.New()) }
func NewPartnerID() PartnerID           { return PartnerID(uuid.New()) }
func NewUserID() UserID                 { return UserID(uuid.New()) }
func NewWebhookEventID() WebhookEventID { return WebhookEventID(uuid.New()) }

func (id VerificationID) String() string { return uuid.UUID(id).String() }
func (id DocumentID) String() string     { return uuid.UUID(id).String() }
func (id PartnerID) String() string      { return uuid.UUID(id).String() }
func (id UserID) String() string         { return uuid.UUID(id).String() }
func (id WebhookEventID) String() string { return uuid.UUID(id).String() }

func (id VerificationID) IsNil() bool { return uuid.UUID(id) == uuid.Nil }
func (id DocumentID) IsNil() bool     { return uuid.UUID(id) == uuid.Nil }
func (id PartnerID) IsNil() bool      { return uuid.UUID(id) == uuid.Nil }
func (id UserID) IsNil() bool         { return uuid.UUID(id) == uuid.Nil }
func (id WebhookEventID) IsNil() bool { return uuid.UUID(id) == uuid.Nil }
