// Package request assigns a correlation ID to every request. Downstream
// logging, audit events, and error responses carry the same ID.
package request

import (
	"context"
	"net/http"

	"github.com/google/uuid"

	"veridoc/pkg/requestcontext"
)

// Header is the correlation header honored on ingress and echoed on egress.
const Header = "X-Request-Id"

// Middleware reuses the caller-supplied correlation ID or generates one.
func Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requestID := r.Header.Get(Header)
		if requestID == "" {
			requestID = uuid.NewString()
		}
		w.Header().Set(Header, requestID)
		ctx := requestcontext.WithRequestID(r.Context(), requestID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// GetRequestID retrieves the correlation ID from the context.
func GetRequestID(ctx context.Context) string {
	return requestcontext.RequestID(ctx)
}
