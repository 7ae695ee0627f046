// Package storage persists uploaded image and PDF bytes under opaque keys.
// Database rows carry the key, never the bytes; the decision engine and the
// debug endpoints fetch through this port.
//
// The store is interface-driven to keep the pipeline testable and to allow
// swapping in-memory, file-based, or object-store persistence without
// rewiring business code.
package storage

import (
	"context"

	"veridoc/pkg/platform/sentinel"
)

// Object is one stored artifact.
type Object struct {
	Data     []byte
	MimeType string
}

// Store persists raw uploads. Implementations return sentinel.ErrNotFound for
// missing keys.
type Store interface {
	Put(ctx context.Context, key string, obj Object) error
	Get(ctx context.Context, key string) (Object, error)
	Delete(ctx context.Context, key string) error
	// DeletePrefix removes every object whose key starts with prefix, used to
	// cascade a verification's artifacts.
	DeletePrefix(ctx context.Context, prefix string) error
}

// ErrNotFound aliases the shared sentinel so callers can errors.Is against
// either name.
var ErrNotFound = sentinel.ErrNotFound
