package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"veridoc/internal/biometric"
	"veridoc/internal/storage"
	"veridoc/internal/verification/models"
	"veridoc/internal/verification/service"
	id "veridoc/pkg/domain"
	dErrors "veridoc/pkg/domain-errors"
	"veridoc/pkg/platform/middleware/auth"
	"veridoc/pkg/platform/middleware/request"
	"veridoc/pkg/platform/middleware/requesttime"
)

// stubService records calls and replays canned responses.
type stubService struct {
	partnerID id.PartnerID
	created   *models.Verification
	details   *service.Details
	outcome   *service.UploadOutcome
	result    *models.VerificationResult
	err       error

	lastCreate service.CreateRequest
	lastUpload service.UploadDocumentRequest
	deleted    []id.VerificationID
}

func (s *stubService) Create(_ context.Context, req service.CreateRequest) (*models.Verification, error) {
	s.lastCreate = req
	return s.created, s.err
}

func (s *stubService) Get(_ context.Context, _ id.VerificationID) (*service.Details, error) {
	if s.details == nil {
		return nil, dErrors.New(dErrors.CodeNotFound, "verification not found")
	}
	return s.details, s.err
}

func (s *stubService) Delete(_ context.Context, verificationID id.VerificationID) error {
	s.deleted = append(s.deleted, verificationID)
	return s.err
}

func (s *stubService) UploadDocument(_ context.Context, req service.UploadDocumentRequest) (*service.UploadOutcome, error) {
	s.lastUpload = req
	return s.outcome, s.err
}

func (s *stubService) UploadSelfie(_ context.Context, _ id.VerificationID, _ []byte) (*service.UploadOutcome, error) {
	return s.outcome, s.err
}

func (s *stubService) Submit(_ context.Context, _ id.VerificationID) (*models.VerificationResult, error) {
	return s.result, s.err
}

func (s *stubService) CompareFaces(_ context.Context, _, _ []byte) (*biometric.CompareResult, error) {
	return &biometric.CompareResult{Match: true, Score: 0.93, Method: "provider"}, s.err
}

const (
	testJWTSecret  = "handler-test-secret"
	testAdminToken = "handler-admin-token"
)

type env struct {
	router    chi.Router
	svc       *stubService
	blobs     *storage.MemoryStore
	validator *auth.Validator
	partnerID id.PartnerID
}

func newEnv(t *testing.T) *env {
	t.Helper()

	partnerID := id.NewPartnerID()
	verificationID := id.NewVerificationID()
	v := &models.Verification{
		ID:         verificationID,
		PartnerID:  partnerID,
		UserID:     id.NewUserID(),
		Type:       id.VerificationTypeIdentity,
		Status:     models.StatusPending,
		MaxRetries: models.DefaultMaxRetries,
		CreatedAt:  time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC),
	}

	e := &env{
		svc: &stubService{
			partnerID: partnerID,
			created:   v,
			details:   &service.Details{Verification: v, RemainingRetries: v.MaxRetries},
			outcome: &service.UploadOutcome{
				VerificationID: verificationID,
				Document:       &models.Document{ID: id.NewDocumentID(), VerificationID: verificationID},
			},
			result: &models.VerificationResult{VerificationID: verificationID, Passed: true},
		},
		blobs:     storage.NewMemoryStore(),
		validator: auth.NewValidator(testJWTSecret),
		partnerID: partnerID,
	}

	signer := storage.NewSigner([]byte("signing-secret"), "http://files.test/v1/files", 15*time.Minute)
	h := New(e.svc, e.blobs, signer, e.validator, testAdminToken, slog.Default())

	r := chi.NewRouter()
	r.Use(request.Middleware)
	r.Use(requesttime.Middleware)
	h.Register(r)
	e.router = r
	return e
}

func (e *env) bearer(t *testing.T) string {
	t.Helper()
	token, err := e.validator.IssueToken(e.partnerID, time.Hour)
	require.NoError(t, err)
	return "Bearer " + token
}

func (e *env) do(t *testing.T, req *http.Request) *httptest.ResponseRecorder {
	t.Helper()
	rec := httptest.NewRecorder()
	e.router.ServeHTTP(rec, req)
	return rec
}

func multipartBody(t *testing.T, fields map[string]string, files map[string][]byte) (*bytes.Buffer, string) {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	for key, value := range fields {
		require.NoError(t, mw.WriteField(key, value))
	}
	for name, data := range files {
		part, err := mw.CreateFormFile(name, name+".bin")
		require.NoError(t, err)
		_, err = part.Write(data)
		require.NoError(t, err)
	}
	require.NoError(t, mw.Close())
	return &buf, mw.FormDataContentType()
}

func TestCreateVerification(t *testing.T) {
	e := newEnv(t)

	body := `{"user_id":"` + e.svc.created.UserID.String() + `","type":"IDENTITY","webhook_url":"https://p.example.com/hook"}`
	req := httptest.NewRequest(http.MethodPost, "/verifications", strings.NewReader(body))
	req.Header.Set("Authorization", e.bearer(t))

	rec := e.do(t, req)

	require.Equal(t, http.StatusCreated, rec.Code)
	assert.Equal(t, e.partnerID, e.svc.lastCreate.PartnerID)
	assert.Equal(t, id.VerificationTypeIdentity, e.svc.lastCreate.Type)
	assert.Equal(t, "https://p.example.com/hook", e.svc.lastCreate.WebhookURL)

	var resp models.Verification
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, e.svc.created.ID, resp.ID)
}

func TestCreateRequiresAuth(t *testing.T) {
	e := newEnv(t)

	req := httptest.NewRequest(http.MethodPost, "/verifications", strings.NewReader(`{}`))
	rec := e.do(t, req)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	req = httptest.NewRequest(http.MethodPost, "/verifications", strings.NewReader(`{}`))
	req.Header.Set("Authorization", "Bearer not-a-token")
	rec = e.do(t, req)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestCreateRejectsBadUserID(t *testing.T) {
	e := newEnv(t)

	req := httptest.NewRequest(http.MethodPost, "/verifications", strings.NewReader(`{"user_id":"nope","type":"IDENTITY"}`))
	req.Header.Set("Authorization", e.bearer(t))

	rec := e.do(t, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestGetSignsDocumentURLs(t *testing.T) {
	e := newEnv(t)
	e.svc.details.Documents = []*models.Document{{
		ID:             id.NewDocumentID(),
		VerificationID: e.svc.created.ID,
		Type:           id.DocumentTypePassport,
		StorageKey:     "verifications/" + e.svc.created.ID.String() + "/document",
	}}

	req := httptest.NewRequest(http.MethodGet, "/verifications/"+e.svc.created.ID.String(), nil)
	req.Header.Set("Authorization", e.bearer(t))

	rec := e.do(t, req)
	require.Equal(t, http.StatusOK, rec.Code)

	var resp service.Details
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Len(t, resp.Documents, 1)
	parsed, err := url.Parse(resp.Documents[0].URL)
	require.NoError(t, err)
	assert.Equal(t, "files.test", parsed.Host)
	assert.NotEmpty(t, parsed.Query().Get("token"))
}

func TestGetHidesForeignVerifications(t *testing.T) {
	e := newEnv(t)

	otherPartner := id.NewPartnerID()
	token, err := e.validator.IssueToken(otherPartner, time.Hour)
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodGet, "/verifications/"+e.svc.created.ID.String(), nil)
	req.Header.Set("Authorization", "Bearer "+token)

	rec := e.do(t, req)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestUploadDocument(t *testing.T) {
	e := newEnv(t)

	body, contentType := multipartBody(t,
		map[string]string{"document_type": "PASSPORT", "side": "FRONT"},
		map[string][]byte{"file": []byte("%PDF-1.4 fake")})
	req := httptest.NewRequest(http.MethodPost, "/verifications/"+e.svc.created.ID.String()+"/documents", body)
	req.Header.Set("Authorization", e.bearer(t))
	req.Header.Set("Content-Type", contentType)

	rec := e.do(t, req)

	require.Equal(t, http.StatusCreated, rec.Code)
	assert.Equal(t, id.DocumentTypePassport, e.svc.lastUpload.DeclaredType)
	assert.Equal(t, id.DocumentSideFront, e.svc.lastUpload.Side)
	assert.Equal(t, []byte("%PDF-1.4 fake"), e.svc.lastUpload.Data)
}

func TestUploadDocumentMissingFile(t *testing.T) {
	e := newEnv(t)

	body, contentType := multipartBody(t, map[string]string{"document_type": "PASSPORT"}, nil)
	req := httptest.NewRequest(http.MethodPost, "/verifications/"+e.svc.created.ID.String()+"/documents", body)
	req.Header.Set("Authorization", e.bearer(t))
	req.Header.Set("Content-Type", contentType)

	rec := e.do(t, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestSubmit(t *testing.T) {
	e := newEnv(t)

	req := httptest.NewRequest(http.MethodPost, "/verifications/"+e.svc.created.ID.String()+"/submit", nil)
	req.Header.Set("Authorization", e.bearer(t))

	rec := e.do(t, req)
	require.Equal(t, http.StatusOK, rec.Code)

	var resp models.VerificationResult
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.True(t, resp.Passed)
}

func TestDeleteRequiresAdminToken(t *testing.T) {
	e := newEnv(t)

	req := httptest.NewRequest(http.MethodDelete, "/verifications/"+e.svc.created.ID.String(), nil)
	req.Header.Set("Authorization", e.bearer(t))
	rec := e.do(t, req)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	req = httptest.NewRequest(http.MethodDelete, "/verifications/"+e.svc.created.ID.String(), nil)
	req.Header.Set("X-Admin-Token", testAdminToken)
	rec = e.do(t, req)
	assert.Equal(t, http.StatusNoContent, rec.Code)
	require.Len(t, e.svc.deleted, 1)
	assert.Equal(t, e.svc.created.ID, e.svc.deleted[0])
}

func TestDownloadServesSignedFiles(t *testing.T) {
	e := newEnv(t)

	key := "verifications/" + e.svc.created.ID.String() + "/document"
	require.NoError(t, e.blobs.Put(context.Background(),
		key, storage.Object{Data: []byte("image-bytes"), MimeType: "image/jpeg"}))

	signer := storage.NewSigner([]byte("signing-secret"), "http://files.test/v1/files", 15*time.Minute)
	signedURL, err := signer.SignedURL(key, time.Now())
	require.NoError(t, err)
	parsed, err := url.Parse(signedURL)
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodGet, "/files?token="+url.QueryEscape(parsed.Query().Get("token")), nil)
	rec := e.do(t, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "image/jpeg", rec.Header().Get("Content-Type"))
	data, err := io.ReadAll(rec.Body)
	require.NoError(t, err)
	assert.Equal(t, []byte("image-bytes"), data)
}

func TestDownloadRejectsGarbageToken(t *testing.T) {
	e := newEnv(t)

	req := httptest.NewRequest(http.MethodGet, "/files?token=garbage", nil)
	rec := e.do(t, req)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}
