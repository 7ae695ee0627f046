package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/lib/pq"

	"veridoc/internal/extraction"
	"veridoc/internal/verification/models"
	id "veridoc/pkg/domain"
	"veridoc/pkg/platform/sentinel"
	"veridoc/pkg/platform/tx"
)

// PostgresVerificationStore persists verification rows in PostgreSQL.
// Pure I/O, retry-chain rules belong in the service.
type PostgresVerificationStore struct {
	db *sql.DB
}

var _ VerificationStore = (*PostgresVerificationStore)(nil)

func NewPostgresVerificationStore(db *sql.DB) *PostgresVerificationStore {
	return &PostgresVerificationStore{db: db}
}

const verificationColumns = `id, partner_id, user_id, type, status, retry_count, max_retries,
	parent_verification_id, webhook_url, notify_email, requested_name, metadata, created_at, completed_at`

func (s *PostgresVerificationStore) Create(ctx context.Context, v *models.Verification) error {
	metadata, err := json.Marshal(v.Metadata)
	if err != nil {
		return fmt.Errorf("marshal verification metadata: %w", err)
	}
	query := `
		INSERT INTO verifications (` + verificationColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
	`
	_, err = s.q(ctx).ExecContext(ctx, query,
		v.ID.String(), v.PartnerID.String(), v.UserID.String(),
		string(v.Type), string(v.Status), v.RetryCount, v.MaxRetries,
		nullableID(v.ParentID), v.WebhookURL, v.NotifyEmail, v.RequestedName, metadata,
		v.CreatedAt, v.CompletedAt,
	)
	if err != nil {
		if pqErr, ok := err.(*pq.Error); ok && pqErr.Code.Name() == "unique_violation" {
			return sentinel.ErrConflict
		}
		return fmt.Errorf("create verification: %w", err)
	}
	return nil
}

func (s *PostgresVerificationStore) Get(ctx context.Context, verificationID id.VerificationID) (*models.Verification, error) {
	query := `SELECT ` + verificationColumns + ` FROM verifications WHERE id = $1`
	v, err := scanVerification(s.q(ctx).QueryRowContext(ctx, query, verificationID.String()))
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, sentinel.ErrNotFound
		}
		return nil, fmt.Errorf("get verification: %w", err)
	}
	return v, nil
}

func (s *PostgresVerificationStore) Update(ctx context.Context, v *models.Verification) error {
	metadata, err := json.Marshal(v.Metadata)
	if err != nil {
		return fmt.Errorf("marshal verification metadata: %w", err)
	}
	query := `
		UPDATE verifications
		SET status = $2, retry_count = $3, webhook_url = $4, notify_email = $5,
			requested_name = $6, metadata = $7, completed_at = $8
		WHERE id = $1
	`
	result, err := s.q(ctx).ExecContext(ctx, query,
		v.ID.String(), string(v.Status), v.RetryCount,
		v.WebhookURL, v.NotifyEmail, v.RequestedName, metadata, v.CompletedAt,
	)
	if err != nil {
		return fmt.Errorf("update verification: %w", err)
	}
	return requireRow(result, "update verification")
}

func (s *PostgresVerificationStore) Delete(ctx context.Context, verificationID id.VerificationID) error {
	result, err := s.q(ctx).ExecContext(ctx,
		`DELETE FROM verifications WHERE id = $1`, verificationID.String())
	if err != nil {
		return fmt.Errorf("delete verification: %w", err)
	}
	return requireRow(result, "delete verification")
}

func (s *PostgresVerificationStore) ListByParent(ctx context.Context, root id.VerificationID) ([]*models.Verification, error) {
	query := `
		SELECT ` + verificationColumns + `
		FROM verifications
		WHERE parent_verification_id = $1
		ORDER BY created_at ASC
	`
	rows, err := s.q(ctx).QueryContext(ctx, query, root.String())
	if err != nil {
		return nil, fmt.Errorf("list verifications by parent: %w", err)
	}
	defer rows.Close()

	var chained []*models.Verification
	for rows.Next() {
		v, err := scanVerification(rows)
		if err != nil {
			return nil, fmt.Errorf("scan chained verification: %w", err)
		}
		chained = append(chained, v)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate chained verifications: %w", err)
	}
	return chained, nil
}

func (s *PostgresVerificationStore) CountByParent(ctx context.Context, root id.VerificationID) (int, error) {
	var count int
	err := s.q(ctx).QueryRowContext(ctx,
		`SELECT COUNT(*) FROM verifications WHERE parent_verification_id = $1`,
		root.String()).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("count verifications by parent: %w", err)
	}
	return count, nil
}

func (s *PostgresVerificationStore) FindActiveRetry(ctx context.Context, root id.VerificationID) (*models.Verification, error) {
	query := `
		SELECT ` + verificationColumns + `
		FROM verifications
		WHERE parent_verification_id = $1 AND status IN ('PENDING', 'IN_PROGRESS')
		ORDER BY created_at DESC
		LIMIT 1
	`
	v, err := scanVerification(s.q(ctx).QueryRowContext(ctx, query, root.String()))
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, sentinel.ErrNotFound
		}
		return nil, fmt.Errorf("find active retry: %w", err)
	}
	return v, nil
}

type row interface {
	Scan(dest ...any) error
}

func scanVerification(r row) (*models.Verification, error) {
	var (
		v           models.Verification
		rowID       string
		partnerID   string
		userID      string
		vType       string
		status      string
		parentID    sql.NullString
		metadata    []byte
		completedAt sql.NullTime
	)
	if err := r.Scan(&rowID, &partnerID, &userID, &vType, &status,
		&v.RetryCount, &v.MaxRetries, &parentID, &v.WebhookURL, &v.NotifyEmail,
		&v.RequestedName, &metadata, &v.CreatedAt, &completedAt); err != nil {
		return nil, err
	}

	var err error
	if v.ID, err = id.ParseVerificationID(rowID); err != nil {
		return nil, err
	}
	if v.PartnerID, err = id.ParsePartnerID(partnerID); err != nil {
		return nil, err
	}
	if v.UserID, err = id.ParseUserID(userID); err != nil {
		return nil, err
	}
	v.Type = id.VerificationType(vType)
	v.Status = models.VerificationStatus(status)
	if parentID.Valid {
		parent, err := id.ParseVerificationID(parentID.String)
		if err != nil {
			return nil, err
		}
		v.ParentID = &parent
	}
	if len(metadata) > 0 {
		if err := json.Unmarshal(metadata, &v.Metadata); err != nil {
			return nil, fmt.Errorf("unmarshal verification metadata: %w", err)
		}
	}
	if completedAt.Valid {
		v.CompletedAt = &completedAt.Time
	}
	return &v, nil
}

// PostgresDocumentStore persists uploaded documents in PostgreSQL.
type PostgresDocumentStore struct {
	db *sql.DB
}

var _ DocumentStore = (*PostgresDocumentStore)(nil)

func NewPostgresDocumentStore(db *sql.DB) *PostgresDocumentStore {
	return &PostgresDocumentStore{db: db}
}

const documentColumns = `id, verification_id, type, side, storage_key, url, mime_type,
	extracted_data, quality_score, is_blurry, has_glare, is_complete, ocr_confidence,
	created_at, updated_at`

// Put inserts the document and removes any prior document of the same kind on
// the verification in one transaction, so at most one identity document and
// one selfie are ever live per verification.
func (s *PostgresDocumentStore) Put(ctx context.Context, doc *models.Document) error {
	extracted, err := marshalExtracted(doc.ExtractedData)
	if err != nil {
		return err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin put document: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	_, err = tx.ExecContext(ctx, `
		DELETE FROM documents
		WHERE verification_id = $1 AND (type = 'SELFIE') = $2 AND id <> $3
	`, doc.VerificationID.String(), doc.IsSelfie(), doc.ID.String())
	if err != nil {
		return fmt.Errorf("supersede prior document: %w", err)
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO documents (`+documentColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)
		ON CONFLICT (id) DO UPDATE SET
			type = EXCLUDED.type,
			side = EXCLUDED.side,
			storage_key = EXCLUDED.storage_key,
			url = EXCLUDED.url,
			mime_type = EXCLUDED.mime_type,
			extracted_data = EXCLUDED.extracted_data,
			quality_score = EXCLUDED.quality_score,
			is_blurry = EXCLUDED.is_blurry,
			has_glare = EXCLUDED.has_glare,
			is_complete = EXCLUDED.is_complete,
			ocr_confidence = EXCLUDED.ocr_confidence,
			updated_at = EXCLUDED.updated_at
	`,
		doc.ID.String(), doc.VerificationID.String(), string(doc.Type), string(doc.Side),
		doc.StorageKey, doc.URL, doc.MimeType, extracted,
		doc.QualityScore, doc.IsBlurry, doc.HasGlare, doc.IsComplete, doc.OCRConfidence,
		doc.CreatedAt, doc.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert document: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit put document: %w", err)
	}
	return nil
}

func (s *PostgresDocumentStore) Get(ctx context.Context, documentID id.DocumentID) (*models.Document, error) {
	query := `SELECT ` + documentColumns + ` FROM documents WHERE id = $1`
	doc, err := scanDocument(s.q(ctx).QueryRowContext(ctx, query, documentID.String()))
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, sentinel.ErrNotFound
		}
		return nil, fmt.Errorf("get document: %w", err)
	}
	return doc, nil
}

func (s *PostgresDocumentStore) ListByVerification(ctx context.Context, verificationID id.VerificationID) ([]*models.Document, error) {
	query := `
		SELECT ` + documentColumns + `
		FROM documents
		WHERE verification_id = $1
		ORDER BY created_at ASC
	`
	rows, err := s.q(ctx).QueryContext(ctx, query, verificationID.String())
	if err != nil {
		return nil, fmt.Errorf("list documents: %w", err)
	}
	defer rows.Close()

	var docs []*models.Document
	for rows.Next() {
		doc, err := scanDocument(rows)
		if err != nil {
			return nil, fmt.Errorf("scan document: %w", err)
		}
		docs = append(docs, doc)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate documents: %w", err)
	}
	return docs, nil
}

func (s *PostgresDocumentStore) DeleteByVerification(ctx context.Context, verificationID id.VerificationID) error {
	_, err := s.q(ctx).ExecContext(ctx,
		`DELETE FROM documents WHERE verification_id = $1`, verificationID.String())
	if err != nil {
		return fmt.Errorf("delete documents: %w", err)
	}
	return nil
}

func scanDocument(r row) (*models.Document, error) {
	var (
		doc       models.Document
		rowID     string
		verID     string
		docType   string
		side      string
		extracted []byte
	)
	if err := r.Scan(&rowID, &verID, &docType, &side, &doc.StorageKey, &doc.URL,
		&doc.MimeType, &extracted, &doc.QualityScore, &doc.IsBlurry, &doc.HasGlare,
		&doc.IsComplete, &doc.OCRConfidence, &doc.CreatedAt, &doc.UpdatedAt); err != nil {
		return nil, err
	}

	var err error
	if doc.ID, err = id.ParseDocumentID(rowID); err != nil {
		return nil, err
	}
	if doc.VerificationID, err = id.ParseVerificationID(verID); err != nil {
		return nil, err
	}
	doc.Type = id.DocumentType(docType)
	doc.Side = id.DocumentSide(side)
	if len(extracted) > 0 {
		doc.ExtractedData = &extraction.Data{}
		if err := json.Unmarshal(extracted, doc.ExtractedData); err != nil {
			return nil, fmt.Errorf("unmarshal extracted data: %w", err)
		}
	}
	return &doc, nil
}

// PostgresResultStore persists decision verdicts in PostgreSQL. The table
// carries a unique constraint on verification_id so upserts converge on one
// row per verification.
type PostgresResultStore struct {
	db *sql.DB
}

var _ ResultStore = (*PostgresResultStore)(nil)

func NewPostgresResultStore(db *sql.DB) *PostgresResultStore {
	return &PostgresResultStore{db: db}
}

const resultColumns = `verification_id, passed, score, risk_level,
	document_authentic, document_expired, document_tampered,
	face_match, face_match_score, name_match, name_match_score,
	liveness_passed, liveness_score, extracted_data, flags, warnings,
	created_at, updated_at`

func (s *PostgresResultStore) Upsert(ctx context.Context, result *models.VerificationResult) error {
	extracted, err := marshalExtracted(result.ExtractedData)
	if err != nil {
		return err
	}
	flags := make([]string, len(result.Flags))
	for i, f := range result.Flags {
		flags[i] = string(f)
	}

	query := `
		INSERT INTO verification_results (` + resultColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18)
		ON CONFLICT (verification_id) DO UPDATE SET
			passed = EXCLUDED.passed,
			score = EXCLUDED.score,
			risk_level = EXCLUDED.risk_level,
			document_authentic = EXCLUDED.document_authentic,
			document_expired = EXCLUDED.document_expired,
			document_tampered = EXCLUDED.document_tampered,
			face_match = EXCLUDED.face_match,
			face_match_score = EXCLUDED.face_match_score,
			name_match = EXCLUDED.name_match,
			name_match_score = EXCLUDED.name_match_score,
			liveness_passed = EXCLUDED.liveness_passed,
			liveness_score = EXCLUDED.liveness_score,
			extracted_data = EXCLUDED.extracted_data,
			flags = EXCLUDED.flags,
			warnings = EXCLUDED.warnings,
			updated_at = EXCLUDED.updated_at
	`
	_, err = s.q(ctx).ExecContext(ctx, query,
		result.VerificationID.String(), result.Passed, result.Score, string(result.RiskLevel),
		result.DocumentAuthentic, result.DocumentExpired, result.DocumentTampered,
		result.FaceMatch, result.FaceMatchScore, result.NameMatch, result.NameMatchScore,
		result.LivenessPassed, result.LivenessScore, extracted,
		pq.Array(flags), pq.Array(result.Warnings),
		result.CreatedAt, result.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("upsert verification result: %w", err)
	}
	return nil
}

func (s *PostgresResultStore) Get(ctx context.Context, verificationID id.VerificationID) (*models.VerificationResult, error) {
	query := `SELECT ` + resultColumns + ` FROM verification_results WHERE verification_id = $1`

	var (
		result    models.VerificationResult
		verID     string
		riskLevel string
		extracted []byte
		flags     []string
	)
	err := s.q(ctx).QueryRowContext(ctx, query, verificationID.String()).Scan(
		&verID, &result.Passed, &result.Score, &riskLevel,
		&result.DocumentAuthentic, &result.DocumentExpired, &result.DocumentTampered,
		&result.FaceMatch, &result.FaceMatchScore, &result.NameMatch, &result.NameMatchScore,
		&result.LivenessPassed, &result.LivenessScore, &extracted,
		pq.Array(&flags), pq.Array(&result.Warnings),
		&result.CreatedAt, &result.UpdatedAt,
	)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, sentinel.ErrNotFound
		}
		return nil, fmt.Errorf("get verification result: %w", err)
	}

	if result.VerificationID, err = id.ParseVerificationID(verID); err != nil {
		return nil, err
	}
	result.RiskLevel = models.RiskLevel(riskLevel)
	if len(extracted) > 0 {
		result.ExtractedData = &extraction.Data{}
		if err := json.Unmarshal(extracted, result.ExtractedData); err != nil {
			return nil, fmt.Errorf("unmarshal extracted data: %w", err)
		}
	}
	for _, f := range flags {
		result.Flags = append(result.Flags, models.Flag(f))
	}
	return &result, nil
}

func (s *PostgresResultStore) DeleteByVerification(ctx context.Context, verificationID id.VerificationID) error {
	_, err := s.q(ctx).ExecContext(ctx,
		`DELETE FROM verification_results WHERE verification_id = $1`, verificationID.String())
	if err != nil {
		return fmt.Errorf("delete verification result: %w", err)
	}
	return nil
}

// PostgresWebhookEventStore persists webhook delivery records in PostgreSQL.
type PostgresWebhookEventStore struct {
	db *sql.DB
}

var _ WebhookEventStore = (*PostgresWebhookEventStore)(nil)

func NewPostgresWebhookEventStore(db *sql.DB) *PostgresWebhookEventStore {
	return &PostgresWebhookEventStore{db: db}
}

const webhookEventColumns = `id, verification_id, event_type, url, payload,
	delivered, delivery_attempts, last_attempt_at, delivered_at,
	response_status, response_body, created_at`

func (s *PostgresWebhookEventStore) Create(ctx context.Context, event *models.WebhookEvent) error {
	query := `
		INSERT INTO webhook_events (` + webhookEventColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
	`
	_, err := s.q(ctx).ExecContext(ctx, query,
		event.ID.String(), event.VerificationID.String(), string(event.EventType),
		event.URL, []byte(event.Payload),
		event.Delivered, event.DeliveryAttempts, event.LastAttemptAt, event.DeliveredAt,
		event.ResponseStatus, event.ResponseBody, event.CreatedAt,
	)
	if err != nil {
		if pqErr, ok := err.(*pq.Error); ok && pqErr.Code.Name() == "unique_violation" {
			return sentinel.ErrConflict
		}
		return fmt.Errorf("create webhook event: %w", err)
	}
	return nil
}

func (s *PostgresWebhookEventStore) Update(ctx context.Context, event *models.WebhookEvent) error {
	query := `
		UPDATE webhook_events
		SET delivered = $2, delivery_attempts = $3, last_attempt_at = $4,
			delivered_at = $5, response_status = $6, response_body = $7
		WHERE id = $1
	`
	result, err := s.q(ctx).ExecContext(ctx, query,
		event.ID.String(), event.Delivered, event.DeliveryAttempts,
		event.LastAttemptAt, event.DeliveredAt, event.ResponseStatus, event.ResponseBody,
	)
	if err != nil {
		return fmt.Errorf("update webhook event: %w", err)
	}
	return requireRow(result, "update webhook event")
}

func (s *PostgresWebhookEventStore) Get(ctx context.Context, eventID id.WebhookEventID) (*models.WebhookEvent, error) {
	query := `SELECT ` + webhookEventColumns + ` FROM webhook_events WHERE id = $1`
	event, err := scanWebhookEvent(s.q(ctx).QueryRowContext(ctx, query, eventID.String()))
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, sentinel.ErrNotFound
		}
		return nil, fmt.Errorf("get webhook event: %w", err)
	}
	return event, nil
}

func (s *PostgresWebhookEventStore) ListUndelivered(ctx context.Context, limit int) ([]*models.WebhookEvent, error) {
	query := `
		SELECT ` + webhookEventColumns + `
		FROM webhook_events
		WHERE NOT delivered
		ORDER BY created_at ASC
		LIMIT $1
	`
	rows, err := s.q(ctx).QueryContext(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("list undelivered webhook events: %w", err)
	}
	defer rows.Close()

	var pending []*models.WebhookEvent
	for rows.Next() {
		event, err := scanWebhookEvent(rows)
		if err != nil {
			return nil, fmt.Errorf("scan webhook event: %w", err)
		}
		pending = append(pending, event)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate webhook events: %w", err)
	}
	return pending, nil
}

func scanWebhookEvent(r row) (*models.WebhookEvent, error) {
	var (
		event         models.WebhookEvent
		rowID         string
		verID         string
		eventType     string
		payload       []byte
		lastAttemptAt sql.NullTime
		deliveredAt   sql.NullTime
	)
	if err := r.Scan(&rowID, &verID, &eventType, &event.URL, &payload,
		&event.Delivered, &event.DeliveryAttempts, &lastAttemptAt, &deliveredAt,
		&event.ResponseStatus, &event.ResponseBody, &event.CreatedAt); err != nil {
		return nil, err
	}

	var err error
	if event.ID, err = id.ParseWebhookEventID(rowID); err != nil {
		return nil, err
	}
	if event.VerificationID, err = id.ParseVerificationID(verID); err != nil {
		return nil, err
	}
	event.EventType = models.EventType(eventType)
	event.Payload = json.RawMessage(payload)
	if lastAttemptAt.Valid {
		event.LastAttemptAt = &lastAttemptAt.Time
	}
	if deliveredAt.Valid {
		event.DeliveredAt = &deliveredAt.Time
	}
	return &event, nil
}

func nullableID(verificationID *id.VerificationID) any {
	if verificationID == nil {
		return nil
	}
	return verificationID.String()
}

func marshalExtracted(data *extraction.Data) ([]byte, error) {
	if data == nil {
		return nil, nil
	}
	encoded, err := json.Marshal(data)
	if err != nil {
		return nil, fmt.Errorf("marshal extracted data: %w", err)
	}
	return encoded, nil
}

func requireRow(result sql.Result, op string) error {
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("%s rows affected: %w", op, err)
	}
	if rows == 0 {
		return sentinel.ErrNotFound
	}
	return nil
}

// querier is the query surface shared by *sql.DB and *sql.Tx.
type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// pick returns the ambient transaction when the caller opened one, and the
// pooled database otherwise.
func pick(ctx context.Context, db *sql.DB) querier {
	if t, ok := tx.From(ctx); ok {
		return t
	}
	return db
}

func (s *PostgresVerificationStore) q(ctx context.Context) querier { return pick(ctx, s.db) }
func (s *PostgresDocumentStore) q(ctx context.Context) querier     { return pick(ctx, s.db) }
func (s *PostgresResultStore) q(ctx context.Context) querier       { return pick(ctx, s.db) }
func (s *PostgresWebhookEventStore) q(ctx context.Context) querier { return pick(ctx, s.db) }
