package store

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"veridoc/internal/verification/models"
	id "veridoc/pkg/domain"
	"veridoc/pkg/platform/sentinel"
)

func newVerification(t *testing.T) *models.Verification {
	t.Helper()
	v, err := models.NewVerification(id.NewPartnerID(), id.NewUserID(),
		id.VerificationTypeIdentity, time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	return v
}

func TestMemoryVerificationStore(t *testing.T) {
	ctx := context.Background()

	t.Run("create then get round trips", func(t *testing.T) {
		s := NewMemoryVerificationStore()
		v := newVerification(t)

		require.NoError(t, s.Create(ctx, v))
		got, err := s.Get(ctx, v.ID)
		require.NoError(t, err)
		assert.Equal(t, v, got)
	})

	t.Run("duplicate create conflicts", func(t *testing.T) {
		s := NewMemoryVerificationStore()
		v := newVerification(t)

		require.NoError(t, s.Create(ctx, v))
		assert.ErrorIs(t, s.Create(ctx, v), sentinel.ErrConflict)
	})

	t.Run("get returns a copy", func(t *testing.T) {
		s := NewMemoryVerificationStore()
		v := newVerification(t)
		require.NoError(t, s.Create(ctx, v))

		got, err := s.Get(ctx, v.ID)
		require.NoError(t, err)
		got.Status = models.StatusFailed

		again, err := s.Get(ctx, v.ID)
		require.NoError(t, err)
		assert.Equal(t, models.StatusPending, again.Status)
	})

	t.Run("update missing row", func(t *testing.T) {
		s := NewMemoryVerificationStore()
		assert.ErrorIs(t, s.Update(ctx, newVerification(t)), sentinel.ErrNotFound)
	})

	t.Run("delete", func(t *testing.T) {
		s := NewMemoryVerificationStore()
		v := newVerification(t)
		require.NoError(t, s.Create(ctx, v))

		require.NoError(t, s.Delete(ctx, v.ID))
		_, err := s.Get(ctx, v.ID)
		assert.ErrorIs(t, err, sentinel.ErrNotFound)
		assert.ErrorIs(t, s.Delete(ctx, v.ID), sentinel.ErrNotFound)
	})
}

func TestMemoryVerificationStoreRetryChain(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryVerificationStore()

	root := newVerification(t)
	root.Status = models.StatusFailed
	require.NoError(t, s.Create(ctx, root))

	first := root.NewRetry(root.ID, 1, root.CreatedAt.Add(time.Hour))
	first.Status = models.StatusFailed
	require.NoError(t, s.Create(ctx, first))

	second := root.NewRetry(root.ID, 2, root.CreatedAt.Add(2*time.Hour))
	require.NoError(t, s.Create(ctx, second))

	t.Run("count excludes the root itself", func(t *testing.T) {
		count, err := s.CountByParent(ctx, root.ID)
		require.NoError(t, err)
		assert.Equal(t, 2, count)
	})

	t.Run("list is ordered by creation time", func(t *testing.T) {
		chained, err := s.ListByParent(ctx, root.ID)
		require.NoError(t, err)
		require.Len(t, chained, 2)
		assert.Equal(t, first.ID, chained[0].ID)
		assert.Equal(t, second.ID, chained[1].ID)
	})

	t.Run("active retry is the non-terminal member", func(t *testing.T) {
		active, err := s.FindActiveRetry(ctx, root.ID)
		require.NoError(t, err)
		assert.Equal(t, second.ID, active.ID)
	})

	t.Run("no active retry once every member is terminal", func(t *testing.T) {
		second.Status = models.StatusCompleted
		require.NoError(t, s.Update(ctx, second))

		_, err := s.FindActiveRetry(ctx, root.ID)
		assert.ErrorIs(t, err, sentinel.ErrNotFound)
	})
}

func testDocument(verificationID id.VerificationID, docType id.DocumentType, key string, at time.Time) *models.Document {
	return &models.Document{
		ID:             id.NewDocumentID(),
		VerificationID: verificationID,
		Type:           docType,
		Side:           id.DocumentSideFront,
		StorageKey:     key,
		MimeType:       "image/jpeg",
		QualityScore:   0.8,
		IsComplete:     true,
		CreatedAt:      at,
		UpdatedAt:      at,
	}
}

func TestMemoryDocumentStoreSupersede(t *testing.T) {
	ctx := context.Background()
	base := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	verificationID := id.NewVerificationID()

	t.Run("second front upload leaves exactly one identity document", func(t *testing.T) {
		s := NewMemoryDocumentStore()
		first := testDocument(verificationID, id.DocumentTypeDriversLicense, "uploads/first.jpg", base)
		second := testDocument(verificationID, id.DocumentTypeDriversLicense, "uploads/second.jpg", base.Add(time.Minute))

		require.NoError(t, s.Put(ctx, first))
		require.NoError(t, s.Put(ctx, second))

		docs, err := s.ListByVerification(ctx, verificationID)
		require.NoError(t, err)
		require.Len(t, docs, 1)
		assert.Equal(t, "uploads/second.jpg", docs[0].StorageKey)

		_, err = s.Get(ctx, first.ID)
		assert.ErrorIs(t, err, sentinel.ErrNotFound)
	})

	t.Run("a different document type still supersedes", func(t *testing.T) {
		s := NewMemoryDocumentStore()
		license := testDocument(verificationID, id.DocumentTypeDriversLicense, "uploads/license.jpg", base)
		passport := testDocument(verificationID, id.DocumentTypePassport, "uploads/passport.jpg", base.Add(time.Minute))

		require.NoError(t, s.Put(ctx, license))
		require.NoError(t, s.Put(ctx, passport))

		docs, err := s.ListByVerification(ctx, verificationID)
		require.NoError(t, err)
		require.Len(t, docs, 1)
		assert.Equal(t, id.DocumentTypePassport, docs[0].Type)
	})

	t.Run("selfie and identity document coexist", func(t *testing.T) {
		s := NewMemoryDocumentStore()
		license := testDocument(verificationID, id.DocumentTypeDriversLicense, "uploads/license.jpg", base)
		selfie := testDocument(verificationID, id.DocumentTypeSelfie, "uploads/selfie.jpg", base.Add(time.Minute))
		selfie.Side = ""

		require.NoError(t, s.Put(ctx, license))
		require.NoError(t, s.Put(ctx, selfie))

		docs, err := s.ListByVerification(ctx, verificationID)
		require.NoError(t, err)
		assert.Len(t, docs, 2)
	})

	t.Run("documents on other verifications are untouched", func(t *testing.T) {
		s := NewMemoryDocumentStore()
		other := testDocument(id.NewVerificationID(), id.DocumentTypePassport, "uploads/other.jpg", base)
		mine := testDocument(verificationID, id.DocumentTypePassport, "uploads/mine.jpg", base)

		require.NoError(t, s.Put(ctx, other))
		require.NoError(t, s.Put(ctx, mine))

		kept, err := s.Get(ctx, other.ID)
		require.NoError(t, err)
		assert.Equal(t, "uploads/other.jpg", kept.StorageKey)
	})

	t.Run("re-put of the same document updates in place", func(t *testing.T) {
		s := NewMemoryDocumentStore()
		doc := testDocument(verificationID, id.DocumentTypePassport, "uploads/doc.jpg", base)
		require.NoError(t, s.Put(ctx, doc))

		doc.QualityScore = 0.95
		require.NoError(t, s.Put(ctx, doc))

		got, err := s.Get(ctx, doc.ID)
		require.NoError(t, err)
		assert.InDelta(t, 0.95, got.QualityScore, 0.001)
	})
}

func TestMemoryDocumentStoreDeleteByVerification(t *testing.T) {
	ctx := context.Background()
	base := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	s := NewMemoryDocumentStore()
	verificationID := id.NewVerificationID()

	license := testDocument(verificationID, id.DocumentTypeDriversLicense, "uploads/license.jpg", base)
	selfie := testDocument(verificationID, id.DocumentTypeSelfie, "uploads/selfie.jpg", base)
	other := testDocument(id.NewVerificationID(), id.DocumentTypePassport, "uploads/other.jpg", base)
	require.NoError(t, s.Put(ctx, license))
	require.NoError(t, s.Put(ctx, selfie))
	require.NoError(t, s.Put(ctx, other))

	require.NoError(t, s.DeleteByVerification(ctx, verificationID))

	docs, err := s.ListByVerification(ctx, verificationID)
	require.NoError(t, err)
	assert.Empty(t, docs)

	_, err = s.Get(ctx, other.ID)
	assert.NoError(t, err)
}

func TestMemoryResultStore(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryResultStore()
	verificationID := id.NewVerificationID()
	base := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)

	t.Run("get before upsert", func(t *testing.T) {
		_, err := s.Get(ctx, verificationID)
		assert.ErrorIs(t, err, sentinel.ErrNotFound)
	})

	t.Run("upsert converges on one row", func(t *testing.T) {
		require.NoError(t, s.Upsert(ctx, &models.VerificationResult{
			VerificationID: verificationID,
			Passed:         false,
			Score:          0.4,
			RiskLevel:      models.RiskHigh,
			CreatedAt:      base,
			UpdatedAt:      base,
		}))
		require.NoError(t, s.Upsert(ctx, &models.VerificationResult{
			VerificationID: verificationID,
			Passed:         true,
			Score:          0.93,
			RiskLevel:      models.RiskLow,
			CreatedAt:      base,
			UpdatedAt:      base.Add(time.Minute),
		}))

		result, err := s.Get(ctx, verificationID)
		require.NoError(t, err)
		assert.True(t, result.Passed)
		assert.InDelta(t, 0.93, result.Score, 0.001)
	})

	t.Run("delete by verification", func(t *testing.T) {
		require.NoError(t, s.DeleteByVerification(ctx, verificationID))
		_, err := s.Get(ctx, verificationID)
		assert.ErrorIs(t, err, sentinel.ErrNotFound)
	})
}

func TestMemoryWebhookEventStore(t *testing.T) {
	ctx := context.Background()
	base := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)

	newEvent := func(at time.Time) *models.WebhookEvent {
		return &models.WebhookEvent{
			ID:             id.NewWebhookEventID(),
			VerificationID: id.NewVerificationID(),
			EventType:      models.EventVerificationCompleted,
			URL:            "https://partner.example/webhook",
			Payload:        json.RawMessage(`{"status":"COMPLETED"}`),
			CreatedAt:      at,
		}
	}

	t.Run("undelivered events come back oldest first", func(t *testing.T) {
		s := NewMemoryWebhookEventStore()
		newer := newEvent(base.Add(time.Minute))
		older := newEvent(base)
		delivered := newEvent(base.Add(-time.Minute))
		delivered.Delivered = true

		require.NoError(t, s.Create(ctx, newer))
		require.NoError(t, s.Create(ctx, older))
		require.NoError(t, s.Create(ctx, delivered))

		pending, err := s.ListUndelivered(ctx, 10)
		require.NoError(t, err)
		require.Len(t, pending, 2)
		assert.Equal(t, older.ID, pending[0].ID)
		assert.Equal(t, newer.ID, pending[1].ID)
	})

	t.Run("limit truncates the sweep batch", func(t *testing.T) {
		s := NewMemoryWebhookEventStore()
		for i := 0; i < 5; i++ {
			require.NoError(t, s.Create(ctx, newEvent(base.Add(time.Duration(i)*time.Second))))
		}
		pending, err := s.ListUndelivered(ctx, 3)
		require.NoError(t, err)
		assert.Len(t, pending, 3)
	})

	t.Run("recording a successful attempt clears it from the sweep", func(t *testing.T) {
		s := NewMemoryWebhookEventStore()
		event := newEvent(base)
		require.NoError(t, s.Create(ctx, event))

		event.RecordAttempt(200, `{"ok":true}`, true, base.Add(time.Second))
		require.NoError(t, s.Update(ctx, event))

		pending, err := s.ListUndelivered(ctx, 10)
		require.NoError(t, err)
		assert.Empty(t, pending)

		got, err := s.Get(ctx, event.ID)
		require.NoError(t, err)
		assert.True(t, got.Delivered)
		assert.Equal(t, 1, got.DeliveryAttempts)
		assert.Equal(t, 200, got.ResponseStatus)
	})

	t.Run("update of an unknown event", func(t *testing.T) {
		s := NewMemoryWebhookEventStore()
		assert.ErrorIs(t, s.Update(ctx, newEvent(base)), sentinel.ErrNotFound)
	})
}
