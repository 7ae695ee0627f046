package service

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"veridoc/internal/providers"
	"veridoc/internal/verification/models"
	id "veridoc/pkg/domain"
	dErrors "veridoc/pkg/domain-errors"
	"veridoc/pkg/platform/audit"
)

func TestUploadDocument(t *testing.T) {
	f := newFixture(t)
	v := f.create(t, id.VerificationTypeIdentity)

	outcome := f.uploadDocument(t, v.ID)

	assert.Equal(t, v.ID, outcome.VerificationID)
	assert.False(t, outcome.RetrySpawned)
	doc := outcome.Document
	assert.Equal(t, id.DocumentTypeNationalID, doc.Type)
	assert.Equal(t, "application/pdf", doc.MimeType)
	assert.InDelta(t, 0.8, doc.QualityScore, 1e-9)
	require.NotNil(t, doc.ExtractedData)
	assert.Equal(t, "DOE", doc.ExtractedData.Surname)
	assert.Equal(t, "X123456789", doc.ExtractedData.DocumentNumber)

	obj, err := f.blobs.Get(testContext(), doc.StorageKey)
	require.NoError(t, err)
	assert.Equal(t, pdfDocument, obj.Data)

	stored, err := f.verifications.Get(testContext(), v.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusInProgress, stored.Status)

	assert.Contains(t, f.audits.all(), audit.EventDocumentUploaded)
	sent := f.webhooks.all()
	require.Len(t, sent, 1)
	assert.Equal(t, models.EventDocumentUploaded, sent[0].EventType)
}

func TestUploadDocumentSupersedesPrevious(t *testing.T) {
	f := newFixture(t)
	v := f.create(t, id.VerificationTypeIdentity)

	first := f.uploadDocument(t, v.ID)
	second := f.uploadDocument(t, v.ID)

	docs, err := f.documents.ListByVerification(testContext(), v.ID)
	require.NoError(t, err)
	require.Len(t, docs, 1)
	assert.Equal(t, second.Document.ID, docs[0].ID)
	assert.NotEqual(t, first.Document.ID, docs[0].ID)
}

func TestUploadDocumentTypeGate(t *testing.T) {
	f := newFixture(t)
	v := f.create(t, id.VerificationTypeSelfieOnly)

	_, err := f.svc.UploadDocument(testContext(), UploadDocumentRequest{
		VerificationID: v.ID,
		DeclaredType:   id.DocumentTypePassport,
		Data:           pdfDocument,
	})
	requireCode(t, err, dErrors.CodeBadRequest)
}

func TestUploadDocumentRejectsSelfieType(t *testing.T) {
	f := newFixture(t)
	v := f.create(t, id.VerificationTypeIdentity)

	_, err := f.svc.UploadDocument(testContext(), UploadDocumentRequest{
		VerificationID: v.ID,
		DeclaredType:   id.DocumentTypeSelfie,
		Data:           pdfDocument,
	})
	requireCode(t, err, dErrors.CodeBadRequest)
}

func TestUploadDocumentEmptyPayload(t *testing.T) {
	f := newFixture(t)
	v := f.create(t, id.VerificationTypeIdentity)

	_, err := f.svc.UploadDocument(testContext(), UploadDocumentRequest{
		VerificationID: v.ID,
		DeclaredType:   id.DocumentTypePassport,
	})
	requireCode(t, err, dErrors.CodeInvalidInput)
}

func TestUploadDocumentUnreadablePayload(t *testing.T) {
	f := newFixture(t)
	v := f.create(t, id.VerificationTypeIdentity)

	_, err := f.svc.UploadDocument(testContext(), UploadDocumentRequest{
		VerificationID: v.ID,
		DeclaredType:   id.DocumentTypePassport,
		Data:           []byte("not an image and not a pdf"),
	})
	requireCode(t, err, dErrors.CodeInvalidInput)
}

func TestUploadDocumentFullKYCValidatesNumber(t *testing.T) {
	f := newFixture(t)
	v := f.create(t, id.VerificationTypeFullKYC)

	f.extractor.entities = []providers.Entity{
		{Key: "surname", Value: "DOE", Confidence: 0.9},
		{Key: "given_name", Value: "JANE", Confidence: 0.9},
		{Key: "document_number", Value: "AAAAAAAA", Confidence: 0.9},
	}

	_, err := f.svc.UploadDocument(testContext(), UploadDocumentRequest{
		VerificationID: v.ID,
		DeclaredType:   id.DocumentTypeNationalID,
		Data:           pdfDocument,
	})
	requireCode(t, err, dErrors.CodeInvalidInput)
	assert.Contains(t, err.Error(), "document number")

	docs, err := f.documents.ListByVerification(testContext(), v.ID)
	require.NoError(t, err)
	assert.Empty(t, docs)
}

func TestUploadDocumentFullKYCAcceptsValidNumber(t *testing.T) {
	f := newFixture(t)
	v := f.create(t, id.VerificationTypeFullKYC)

	outcome := f.uploadDocument(t, v.ID)
	assert.Equal(t, "X123456789", outcome.Document.ExtractedData.DocumentNumber)
}

func TestUploadDocumentToCompletedVerification(t *testing.T) {
	f := newFixture(t)
	v := f.create(t, id.VerificationTypeIdentity)

	stored, err := f.verifications.Get(testContext(), v.ID)
	require.NoError(t, err)
	stored.Status = models.StatusCompleted
	require.NoError(t, f.verifications.Update(testContext(), stored))

	_, err = f.svc.UploadDocument(testContext(), UploadDocumentRequest{
		VerificationID: v.ID,
		DeclaredType:   id.DocumentTypePassport,
		Data:           pdfDocument,
	})
	requireCode(t, err, dErrors.CodeConflict)
}

func TestUploadSelfie(t *testing.T) {
	f := newFixture(t)
	v := f.create(t, id.VerificationTypeSelfieOnly)

	outcome := f.uploadSelfie(t, v.ID)

	doc := outcome.Document
	assert.Equal(t, id.DocumentTypeSelfie, doc.Type)
	assert.Empty(t, outcome.Warnings)

	stored, err := f.verifications.Get(testContext(), v.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusInProgress, stored.Status)
	require.NotNil(t, stored.Metadata.Liveness)
	assert.True(t, stored.Metadata.Liveness.IsLive)

	assert.Contains(t, f.audits.all(), audit.EventSelfieUploaded)
}

func TestUploadSelfieTypeGate(t *testing.T) {
	f := newFixture(t)
	v := f.create(t, id.VerificationTypeDocumentOnly)

	_, err := f.svc.UploadSelfie(testContext(), v.ID, selfieBytes)
	requireCode(t, err, dErrors.CodeBadRequest)
}

func TestUploadSelfieNoFace(t *testing.T) {
	f := newFixture(t)
	v := f.create(t, id.VerificationTypeSelfieOnly)

	f.analyzer.attrs.FaceCount = 0

	_, err := f.svc.UploadSelfie(testContext(), v.ID, selfieBytes)
	requireCode(t, err, dErrors.CodeInvalidInput)
}

func TestUploadSelfieMultipleFaces(t *testing.T) {
	f := newFixture(t)
	v := f.create(t, id.VerificationTypeSelfieOnly)

	f.analyzer.attrs.FaceCount = 2

	_, err := f.svc.UploadSelfie(testContext(), v.ID, selfieBytes)
	requireCode(t, err, dErrors.CodeInvalidInput)
}

func TestUploadSelfieFailedLivenessWarnsButAccepts(t *testing.T) {
	f := newFixture(t)
	v := f.create(t, id.VerificationTypeSelfieOnly)

	f.analyzer.attrs = providers.FaceAttributes{
		FaceCount:           1,
		DetectionConfidence: 0.4,
		EyesOpenConfidence:  0.1,
		PoseDeviation:       80,
		Brightness:          10,
		Sharpness:           5,
		Sunglasses:          true,
		FaceAreaRatio:       0.01,
	}

	outcome := f.uploadSelfie(t, v.ID)
	require.Len(t, outcome.Warnings, 1)
	assert.Contains(t, outcome.Warnings[0], "liveness")

	stored, err := f.verifications.Get(testContext(), v.ID)
	require.NoError(t, err)
	require.NotNil(t, stored.Metadata.Liveness)
	assert.False(t, stored.Metadata.Liveness.IsLive)
}

func TestUploadSelfieSupersedesPrevious(t *testing.T) {
	f := newFixture(t)
	v := f.create(t, id.VerificationTypeSelfieOnly)

	f.uploadSelfie(t, v.ID)
	second := f.uploadSelfie(t, v.ID)

	docs, err := f.documents.ListByVerification(testContext(), v.ID)
	require.NoError(t, err)
	require.Len(t, docs, 1)
	assert.Equal(t, second.Document.ID, docs[0].ID)
}
