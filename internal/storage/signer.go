package storage

import (
	"fmt"
	"net/url"
	"time"

	"github.com/golang-jwt/jwt/v5"
	gocache "github.com/patrickmn/go-cache"

	dErrors "veridoc/pkg/domain-errors"
)

// DefaultURLTTL is how long a signed download link stays valid.
const DefaultURLTTL = 15 * time.Minute

// Signer issues and verifies short-lived signed download URLs for stored
// objects. Tokens are HMAC-signed JWTs carrying the storage key as subject,
// so the file handler never trusts a raw key from the client.
type Signer struct {
	secret  []byte
	baseURL string
	ttl     time.Duration
	cache   *gocache.Cache
}

// NewSigner constructs a Signer. baseURL is the externally reachable file
// endpoint, for example "https://api.example.com/v1/files".
func NewSigner(secret []byte, baseURL string, ttl time.Duration) *Signer {
	if ttl <= 0 {
		ttl = DefaultURLTTL
	}
	// Cached URLs expire ahead of the token so a served link is never within
	// its final minute of validity.
	cacheTTL := ttl - time.Minute
	if cacheTTL <= 0 {
		cacheTTL = ttl / 2
	}
	return &Signer{
		secret:  secret,
		baseURL: baseURL,
		ttl:     ttl,
		cache:   gocache.New(cacheTTL, 5*time.Minute),
	}
}

// SignedURL returns a download URL for key, reusing a cached one when a
// still-fresh link exists.
func (s *Signer) SignedURL(key string, now time.Time) (string, error) {
	if cached, ok := s.cache.Get(key); ok {
		return cached.(string), nil
	}

	claims := jwt.RegisteredClaims{
		Subject:   key,
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(s.ttl)),
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
	if err != nil {
		return "", fmt.Errorf("sign download token: %w", err)
	}

	signed := fmt.Sprintf("%s?token=%s", s.baseURL, url.QueryEscape(token))
	s.cache.Set(key, signed, gocache.DefaultExpiration)
	return signed, nil
}

// Verify validates a download token and returns the storage key it grants.
//
// Errors: CodeUnauthorized for tampered, expired, or wrongly-signed tokens.
func (s *Signer) Verify(tokenString string) (string, error) {
	token, err := jwt.ParseWithClaims(tokenString, &jwt.RegisteredClaims{},
		func(t *jwt.Token) (any, error) {
			if t.Method != jwt.SigningMethodHS256 {
				return nil, fmt.Errorf("unexpected signing method %q", t.Method.Alg())
			}
			return s.secret, nil
		})
	if err != nil || !token.Valid {
		return "", dErrors.New(dErrors.CodeUnauthorized, "download link is invalid or expired")
	}
	claims, ok := token.Claims.(*jwt.RegisteredClaims)
	if !ok || claims.Subject == "" {
		return "", dErrors.New(dErrors.CodeUnauthorized, "download link is invalid or expired")
	}
	return claims.Subject, nil
}
