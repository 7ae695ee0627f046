// Package store persists verifications, documents, results, and webhook
// delivery records. Stores are pure I/O; retry-chain and decision rules live
// in the service layer. Both an in-memory and a PostgreSQL implementation are
// provided behind the same interfaces.
package store

import (
	"context"

	"veridoc/internal/verification/models"
	id "veridoc/pkg/domain"
)

// VerificationStore persists verification rows and resolves retry chains.
// Implementations return sentinel.ErrNotFound for missing rows.
type VerificationStore interface {
	Create(ctx context.Context, v *models.Verification) error
	Get(ctx context.Context, verificationID id.VerificationID) (*models.Verification, error)
	Update(ctx context.Context, v *models.Verification) error
	// Delete removes the verification row; callers cascade documents and
	// results through their stores.
	Delete(ctx context.Context, verificationID id.VerificationID) error
	// ListByParent returns every row whose parent pointer equals root.
	ListByParent(ctx context.Context, root id.VerificationID) ([]*models.Verification, error)
	// CountByParent counts the rows whose parent pointer equals root.
	CountByParent(ctx context.Context, root id.VerificationID) (int, error)
	// FindActiveRetry returns the non-terminal row chained to root, or
	// sentinel.ErrNotFound when every chained row is terminal.
	FindActiveRetry(ctx context.Context, root id.VerificationID) (*models.Verification, error)
}

// DocumentStore persists uploaded artifacts with supersede-on-write
// semantics: putting a document atomically replaces any live document of the
// same kind (identity document or selfie) on that verification.
type DocumentStore interface {
	Put(ctx context.Context, doc *models.Document) error
	Get(ctx context.Context, documentID id.DocumentID) (*models.Document, error)
	ListByVerification(ctx context.Context, verificationID id.VerificationID) ([]*models.Document, error)
	DeleteByVerification(ctx context.Context, verificationID id.VerificationID) error
}

// ResultStore persists decision verdicts, one row per verification.
type ResultStore interface {
	// Upsert is idempotent on verification ID: racing decision runs land on
	// one row.
	Upsert(ctx context.Context, result *models.VerificationResult) error
	Get(ctx context.Context, verificationID id.VerificationID) (*models.VerificationResult, error)
	DeleteByVerification(ctx context.Context, verificationID id.VerificationID) error
}

// WebhookEventStore persists notification delivery records. Rows are never
// deleted.
type WebhookEventStore interface {
	Create(ctx context.Context, event *models.WebhookEvent) error
	Update(ctx context.Context, event *models.WebhookEvent) error
	Get(ctx context.Context, eventID id.WebhookEventID) (*models.WebhookEvent, error)
	// ListUndelivered returns events still awaiting delivery, oldest first.
	ListUndelivered(ctx context.Context, limit int) ([]*models.WebhookEvent, error)
}
