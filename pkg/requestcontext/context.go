// Package requestcontext provides HTTP-independent context accessors for
// request-scoped values.
//
// Middleware sets these values; services read them. Keeping the package free
// of net/http lets services import only what they need.
//
// Usage in services (read values):
//
//	partnerID := requestcontext.PartnerID(ctx)
//	requestID := requestcontext.RequestID(ctx)
//	now := requestcontext.Now(ctx)
//
// Usage in tests (inject values):
//
//	ctx = requestcontext.WithTime(ctx, fixedTime)
//	ctx = requestcontext.WithPartnerID(ctx, partnerID)
package requestcontext

import (
	"context"
	"time"

	id "veridoc/pkg/domain"
)

// Context key types (unexported for encapsulation).
type (
	partnerIDKey   struct{}
	requestIDKey   struct{}
	requestTimeKey struct{}
)

// Exported context keys for tests that need context.WithValue directly.
var (
	ContextKeyPartnerID   = partnerIDKey{}
	ContextKeyRequestID   = requestIDKey{}
	ContextKeyRequestTime = requestTimeKey{}
)

// PartnerID retrieves the authenticated partner ID from the context.
// Returns the zero value (nil UUID) if not set.
func PartnerID(ctx context.Context) id.PartnerID {
	if partnerID, ok := ctx.Value(ContextKeyPartnerID).(id.PartnerID); ok {
		return partnerID
	}
	return id.PartnerID{}
}

// WithPartnerID injects a partner ID into the context.
func WithPartnerID(ctx context.Context, partnerID id.PartnerID) context.Context {
	return context.WithValue(ctx, ContextKeyPartnerID, partnerID)
}

// RequestID retrieves the correlation ID assigned by middleware.
func RequestID(ctx context.Context) string {
	if requestID, ok := ctx.Value(ContextKeyRequestID).(string); ok {
		return requestID
	}
	return ""
}

// WithRequestID injects a correlation ID into the context.
func WithRequestID(ctx context.Context, requestID string) context.Context {
	return context.WithValue(ctx, ContextKeyRequestID, requestID)
}

// Now returns the request time when middleware captured one, falling back to
// the wall clock. Decision runs read time through this accessor so tests can
// pin the evaluation clock (expiry checks are date-sensitive).
func Now(ctx context.Context) time.Time {
	if t, ok := ctx.Value(ContextKeyRequestTime).(time.Time); ok {
		return t
	}
	return time.Now()
}

// WithTime injects a fixed time into the context.
func WithTime(ctx context.Context, t time.Time) context.Context {
	return context.WithValue(ctx, ContextKeyRequestTime, t)
}
