// Package httputil centralizes JSON response and request-decoding helpers so
// handlers stay thin and error bodies stay consistent across domains.
package httputil

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"

	dErrors "veridoc/pkg/domain-errors"
)

// errorResponse is the wire shape for every error this service returns.
type errorResponse struct {
	Error            string `json:"error"`
	ErrorDescription string `json:"error_description,omitempty"`
	Retryable        *bool  `json:"retryable,omitempty"`
}

// WriteJSON writes v as a JSON body with the given status.
func WriteJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// WriteError translates a domain error into a JSON error body. Internal
// errors omit the description so infrastructure details never leak; the
// precondition and retry-exhausted codes additionally carry a retryable flag
// so callers can distinguish "fix and retry" from "chain exhausted".
func WriteError(w http.ResponseWriter, err error) {
	code := dErrors.CodeOf(err)
	resp := errorResponse{Error: string(code)}
	if code != dErrors.CodeInternal {
		resp.ErrorDescription = dErrors.MessageOf(err)
	}
	switch code {
	case dErrors.CodePreconditionFailed, dErrors.CodeRetryExhausted, dErrors.CodeUnavailable:
		retryable := dErrors.Retryable(err)
		resp.Retryable = &retryable
	}
	WriteJSON(w, dErrors.HTTPStatus(err), resp)
}

// DecodeAndPrepare decodes the request body into T, writing a bad_request
// response and logging on failure. The boolean result tells the handler
// whether to continue.
func DecodeAndPrepare[T any](w http.ResponseWriter, r *http.Request, logger *slog.Logger, ctx context.Context, requestID string) (T, bool) {
	var req T
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		if logger != nil {
			logger.WarnContext(ctx, "failed to decode request body",
				"request_id", requestID,
				"error", err,
			)
		}
		WriteError(w, dErrors.New(dErrors.CodeBadRequest, "invalid request body"))
		var zero T
		return zero, false
	}
	return req, true
}
