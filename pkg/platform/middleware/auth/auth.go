// Package auth authenticates partner API calls. Partners present an HS256
// bearer token whose subject is their partner ID; the middleware stores the
// authenticated partner on the request context.
package auth

import (
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"

	id "veridoc/pkg/domain"
	request "veridoc/pkg/platform/middleware/request"
	"veridoc/pkg/requestcontext"
)

// Validator verifies partner bearer tokens.
type Validator struct {
	secret []byte
}

func NewValidator(secret string) *Validator {
	return &Validator{secret: []byte(secret)}
}

// ValidateToken parses and verifies a partner token, returning the partner
// ID from its subject.
func (v *Validator) ValidateToken(tokenString string) (id.PartnerID, error) {
	token, err := jwt.ParseWithClaims(tokenString, &jwt.RegisteredClaims{}, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, jwt.ErrSignatureInvalid
		}
		return v.secret, nil
	})
	if err != nil {
		return id.PartnerID{}, err
	}
	claims := token.Claims.(*jwt.RegisteredClaims)
	return id.ParsePartnerID(claims.Subject)
}

// IssueToken mints a partner token. Used by provisioning tooling and tests.
func (v *Validator) IssueToken(partnerID id.PartnerID, ttl time.Duration) (string, error) {
	now := time.Now()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{
		Subject:   partnerID.String(),
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
	})
	return token.SignedString(v.secret)
}

// RequirePartner rejects requests without a valid partner bearer token and
// stores the partner ID on the context for the handlers.
func RequirePartner(validator *Validator, logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()
			token, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer ")
			if !ok {
				logger.WarnContext(ctx, "unauthorized request, missing bearer token",
					"request_id", request.GetRequestID(ctx))
				writeUnauthorized(w, "Missing or invalid Authorization header")
				return
			}

			partnerID, err := validator.ValidateToken(token)
			if err != nil {
				logger.WarnContext(ctx, "unauthorized request, invalid token",
					"error", err,
					"request_id", request.GetRequestID(ctx))
				writeUnauthorized(w, "Invalid or expired token")
				return
			}

			ctx = requestcontext.WithPartnerID(ctx, partnerID)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func writeUnauthorized(w http.ResponseWriter, description string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusUnauthorized)
	_, _ = w.Write([]byte(`{"error":"unauthorized","error_description":"` + description + `"}`))
}
