// Package handler exposes the verification HTTP API.
package handler

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/url"

	"github.com/go-chi/chi/v5"

	"veridoc/internal/biometric"
	"veridoc/internal/storage"
	"veridoc/internal/verification/models"
	"veridoc/internal/verification/service"
	id "veridoc/pkg/domain"
	dErrors "veridoc/pkg/domain-errors"
	"veridoc/pkg/platform/httputil"
	"veridoc/pkg/platform/middleware/admin"
	"veridoc/pkg/platform/middleware/auth"
	"veridoc/pkg/platform/middleware/metadata"
	"veridoc/pkg/requestcontext"
)

// maxUploadBytes bounds one document or selfie upload.
const maxUploadBytes = 15 << 20

// Service is the verification operation surface the handler drives.
type Service interface {
	Create(ctx context.Context, req service.CreateRequest) (*models.Verification, error)
	Get(ctx context.Context, verificationID id.VerificationID) (*service.Details, error)
	Delete(ctx context.Context, verificationID id.VerificationID) error
	UploadDocument(ctx context.Context, req service.UploadDocumentRequest) (*service.UploadOutcome, error)
	UploadSelfie(ctx context.Context, verificationID id.VerificationID, data []byte) (*service.UploadOutcome, error)
	Submit(ctx context.Context, verificationID id.VerificationID) (*models.VerificationResult, error)
	CompareFaces(ctx context.Context, docImage, selfie []byte) (*biometric.CompareResult, error)
}

// Handler handles the verification endpoints.
type Handler struct {
	logger     *slog.Logger
	service    Service
	blobs      storage.Store
	signer     *storage.Signer
	validator  *auth.Validator
	adminToken string
}

// New creates a verification Handler.
func New(svc Service, blobs storage.Store, signer *storage.Signer, validator *auth.Validator, adminToken string, logger *slog.Logger) *Handler {
	return &Handler{
		logger:     logger,
		service:    svc,
		blobs:      blobs,
		signer:     signer,
		validator:  validator,
		adminToken: adminToken,
	}
}

// Register mounts the verification routes.
func (h *Handler) Register(r chi.Router) {
	r.Get("/files", h.handleDownload)

	r.Group(func(r chi.Router) {
		r.Use(auth.RequirePartner(h.validator, h.logger))

		r.Post("/verifications", h.handleCreate)
		r.Get("/verifications/{verificationID}", h.handleGet)
		r.Post("/verifications/{verificationID}/documents", h.handleUploadDocument)
		r.Post("/verifications/{verificationID}/selfie", h.handleUploadSelfie)
		r.Post("/verifications/{verificationID}/submit", h.handleSubmit)
	})

	r.Group(func(r chi.Router) {
		r.Use(admin.RequireAdminToken(h.adminToken, h.logger))

		r.Delete("/verifications/{verificationID}", h.handleDelete)
		r.Post("/compare", h.handleCompare)
	})
}

// createRequest is the wire shape for opening a verification.
type createRequest struct {
	UserID        string `json:"user_id"`
	Type          string `json:"type"`
	WebhookURL    string `json:"webhook_url,omitempty"`
	NotifyEmail   string `json:"notify_email,omitempty"`
	RequestedName string `json:"requested_name,omitempty"`
	MaxRetries    int    `json:"max_retries,omitempty"`
}

func (h *Handler) handleCreate(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	req, ok := httputil.DecodeAndPrepare[createRequest](w, r, h.logger, ctx, requestcontext.RequestID(ctx))
	if !ok {
		return
	}
	userID, err := id.ParseUserID(req.UserID)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	v, err := h.service.Create(ctx, service.CreateRequest{
		PartnerID:     requestcontext.PartnerID(ctx),
		UserID:        userID,
		Type:          id.VerificationType(req.Type),
		WebhookURL:    req.WebhookURL,
		NotifyEmail:   req.NotifyEmail,
		RequestedName: req.RequestedName,
		MaxRetries:    req.MaxRetries,
	})
	if err != nil {
		h.logError(ctx, "create verification failed", err)
		httputil.WriteError(w, err)
		return
	}

	httputil.WriteJSON(w, http.StatusCreated, v)
}

func (h *Handler) handleGet(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	details, ok := h.loadOwned(w, r)
	if !ok {
		return
	}
	for _, doc := range details.Documents {
		url, err := h.signer.SignedURL(doc.StorageKey, requestcontext.Now(ctx))
		if err != nil {
			h.logError(ctx, "could not sign download link", err)
			continue
		}
		doc.URL = url
	}
	httputil.WriteJSON(w, http.StatusOK, details)
}

func (h *Handler) handleUploadDocument(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	details, ok := h.loadOwned(w, r)
	if !ok {
		return
	}

	data, form, ok := h.readUpload(w, r)
	if !ok {
		return
	}
	side, err := id.ParseDocumentSide(form.Get("side"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	outcome, err := h.service.UploadDocument(ctx, service.UploadDocumentRequest{
		VerificationID: details.Verification.ID,
		DeclaredType:   id.DocumentType(form.Get("document_type")),
		Side:           side,
		Data:           data,
	})
	if err != nil {
		h.logError(ctx, "document upload rejected", err)
		httputil.WriteError(w, err)
		return
	}

	h.logger.InfoContext(ctx, "document upload accepted",
		"verification_id", outcome.VerificationID,
		"client_ip", metadata.GetClientIP(ctx),
		"user_agent", metadata.GetUserAgent(ctx))
	httputil.WriteJSON(w, http.StatusCreated, outcome)
}

func (h *Handler) handleUploadSelfie(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	details, ok := h.loadOwned(w, r)
	if !ok {
		return
	}
	data, _, ok := h.readUpload(w, r)
	if !ok {
		return
	}

	outcome, err := h.service.UploadSelfie(ctx, details.Verification.ID, data)
	if err != nil {
		h.logError(ctx, "selfie upload rejected", err)
		httputil.WriteError(w, err)
		return
	}

	h.logger.InfoContext(ctx, "selfie upload accepted",
		"verification_id", outcome.VerificationID,
		"client_ip", metadata.GetClientIP(ctx),
		"user_agent", metadata.GetUserAgent(ctx))
	httputil.WriteJSON(w, http.StatusCreated, outcome)
}

func (h *Handler) handleSubmit(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	details, ok := h.loadOwned(w, r)
	if !ok {
		return
	}

	result, err := h.service.Submit(ctx, details.Verification.ID)
	if err != nil {
		h.logError(ctx, "submit failed", err)
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, result)
}

func (h *Handler) handleDelete(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	verificationID, err := id.ParseVerificationID(chi.URLParam(r, "verificationID"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	if err := h.service.Delete(ctx, verificationID); err != nil {
		h.logError(ctx, "delete failed", err)
		httputil.WriteError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// handleCompare is the operational debug surface: compare two uploaded
// images without touching stored state.
func (h *Handler) handleCompare(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	if err := r.ParseMultipartForm(2 * maxUploadBytes); err != nil {
		httputil.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "invalid multipart body"))
		return
	}
	docImage, ok := h.readFormFile(w, r, "document")
	if !ok {
		return
	}
	selfie, ok := h.readFormFile(w, r, "selfie")
	if !ok {
		return
	}

	result, err := h.service.CompareFaces(ctx, docImage, selfie)
	if err != nil {
		h.logError(ctx, "face comparison failed", err)
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, result)
}

// handleDownload serves stored artifacts through signed, expiring links.
func (h *Handler) handleDownload(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	key, err := h.signer.Verify(r.URL.Query().Get("token"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	obj, err := h.blobs.Get(ctx, key)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			httputil.WriteError(w, dErrors.New(dErrors.CodeNotFound, "file not found"))
			return
		}
		h.logError(ctx, "file read failed", err)
		httputil.WriteError(w, dErrors.New(dErrors.CodeInternal, "failed to read file"))
		return
	}
	w.Header().Set("Content-Type", obj.MimeType)
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(obj.Data)
}

// loadOwned resolves the path verification and enforces partner ownership.
// Foreign verifications read as not-found so partners cannot probe each
// other's IDs.
func (h *Handler) loadOwned(w http.ResponseWriter, r *http.Request) (*service.Details, bool) {
	ctx := r.Context()

	verificationID, err := id.ParseVerificationID(chi.URLParam(r, "verificationID"))
	if err != nil {
		httputil.WriteError(w, err)
		return nil, false
	}
	details, err := h.service.Get(ctx, verificationID)
	if err != nil {
		httputil.WriteError(w, err)
		return nil, false
	}
	if details.Verification.PartnerID != requestcontext.PartnerID(ctx) {
		httputil.WriteError(w, dErrors.New(dErrors.CodeNotFound, "verification not found"))
		return nil, false
	}
	return details, true
}

// readUpload reads the multipart "file" part, bounded by maxUploadBytes.
func (h *Handler) readUpload(w http.ResponseWriter, r *http.Request) ([]byte, url.Values, bool) {
	r.Body = http.MaxBytesReader(w, r.Body, maxUploadBytes)
	if err := r.ParseMultipartForm(maxUploadBytes); err != nil {
		httputil.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "invalid or oversized multipart body"))
		return nil, nil, false
	}
	data, ok := h.readFormFile(w, r, "file")
	if !ok {
		return nil, nil, false
	}
	return data, url.Values(r.MultipartForm.Value), true
}

func (h *Handler) readFormFile(w http.ResponseWriter, r *http.Request, field string) ([]byte, bool) {
	file, _, err := r.FormFile(field)
	if err != nil {
		httputil.WriteError(w, dErrors.Newf(dErrors.CodeBadRequest, "missing %q file part", field))
		return nil, false
	}
	defer file.Close()

	data, err := io.ReadAll(io.LimitReader(file, maxUploadBytes+1))
	if err != nil {
		httputil.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "could not read upload"))
		return nil, false
	}
	if len(data) > maxUploadBytes {
		httputil.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "upload exceeds the size limit"))
		return nil, false
	}
	return data, true
}

func (h *Handler) logError(ctx context.Context, msg string, err error) {
	logFn := h.logger.WarnContext
	if dErrors.CodeOf(err) == dErrors.CodeInternal {
		logFn = h.logger.ErrorContext
	}
	logFn(ctx, msg, "error", err, "request_id", requestcontext.RequestID(ctx))
}
