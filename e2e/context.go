// Package e2e drives a running veridoc server over HTTP. The suite needs
// VERIDOC_E2E_BASE_URL pointing at the server and the server's JWT signing
// key to mint partner tokens.
package e2e

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// TestContext carries shared state across steps within one scenario: the
// partner identity, the last HTTP response, and the verification under test.
type TestContext struct {
	baseURL    string
	signingKey string
	client     *http.Client

	partnerID string
	token     string

	lastStatus int
	lastBody   map[string]interface{}

	verificationID string
}

// NewTestContext builds a context from the environment. BaseURL returns ""
// when the suite is not configured, and the runner skips.
func NewTestContext() *TestContext {
	return &TestContext{
		baseURL:    os.Getenv("VERIDOC_E2E_BASE_URL"),
		signingKey: envOr("VERIDOC_E2E_JWT_KEY", "dev-secret-key-change-in-production"),
		client:     &http.Client{Timeout: 30 * time.Second},
	}
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

// BaseURL reports the target server address.
func (tc *TestContext) BaseURL() string { return tc.baseURL }

// Reset clears per-scenario state. The partner identity is re-minted so
// scenarios never see each other's verifications.
func (tc *TestContext) Reset() {
	tc.partnerID = ""
	tc.token = ""
	tc.lastStatus = 0
	tc.lastBody = nil
	tc.verificationID = ""
}

// MintPartnerToken creates a fresh partner and signs a bearer token for it
// with the server's shared key.
func (tc *TestContext) MintPartnerToken() error {
	tc.partnerID = uuid.NewString()
	now := time.Now()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{
		Subject:   tc.partnerID,
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(time.Hour)),
	})
	signed, err := token.SignedString([]byte(tc.signingKey))
	if err != nil {
		return fmt.Errorf("sign partner token: %w", err)
	}
	tc.token = signed
	return nil
}

// ClearToken drops the bearer token so the next request goes out
// unauthenticated.
func (tc *TestContext) ClearToken() { tc.token = "" }

// VerificationID returns the verification the scenario is working on.
func (tc *TestContext) VerificationID() string { return tc.verificationID }

// SetVerificationID switches the scenario to another verification, for
// example the retry spawned by an upload.
func (tc *TestContext) SetVerificationID(id string) { tc.verificationID = id }

// POST sends a JSON body and records the response.
func (tc *TestContext) POST(path string, body interface{}) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return err
	}
	req, err := http.NewRequest(http.MethodPost, tc.baseURL+path, bytes.NewReader(payload))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	return tc.do(req)
}

// GET fetches a path and records the response.
func (tc *TestContext) GET(path string) error {
	req, err := http.NewRequest(http.MethodGet, tc.baseURL+path, nil)
	if err != nil {
		return err
	}
	return tc.do(req)
}

// PostFile uploads one file part plus form fields as multipart/form-data.
func (tc *TestContext) PostFile(path, field, filename string, data []byte, fields map[string]string) error {
	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)
	part, err := writer.CreateFormFile(field, filename)
	if err != nil {
		return err
	}
	if _, err := part.Write(data); err != nil {
		return err
	}
	for key, value := range fields {
		if err := writer.WriteField(key, value); err != nil {
			return err
		}
	}
	if err := writer.Close(); err != nil {
		return err
	}

	req, err := http.NewRequest(http.MethodPost, tc.baseURL+path, &buf)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())
	return tc.do(req)
}

func (tc *TestContext) do(req *http.Request) error {
	if tc.token != "" {
		req.Header.Set("Authorization", "Bearer "+tc.token)
	}
	resp, err := tc.client.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", req.Method, req.URL.Path, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return err
	}
	tc.lastStatus = resp.StatusCode
	tc.lastBody = nil
	if len(raw) > 0 {
		var parsed map[string]interface{}
		if err := json.Unmarshal(raw, &parsed); err == nil {
			tc.lastBody = parsed
		}
	}
	return nil
}

// LastStatus returns the status code of the most recent response.
func (tc *TestContext) LastStatus() int { return tc.lastStatus }

// ResponseField resolves a dotted path like "verification.status" in the
// last JSON response.
func (tc *TestContext) ResponseField(path string) (interface{}, error) {
	if tc.lastBody == nil {
		return nil, fmt.Errorf("last response had no JSON body")
	}
	var current interface{} = tc.lastBody
	for _, segment := range strings.Split(path, ".") {
		object, ok := current.(map[string]interface{})
		if !ok {
			return nil, fmt.Errorf("field %q: %q is not an object", path, segment)
		}
		current, ok = object[segment]
		if !ok {
			return nil, fmt.Errorf("field %q not present in response", path)
		}
	}
	return current, nil
}
