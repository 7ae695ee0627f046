// Package webhook delivers signed outcome notifications to partner callback
// URLs. Delivery is at-least-once: the request path fires and forgets, every
// attempt lands on the stored WebhookEvent record, and a periodic sweep
// re-attempts anything still undelivered.
package webhook

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"veridoc/internal/verification/models"
	"veridoc/internal/webhook/metrics"
	id "veridoc/pkg/domain"
	"veridoc/pkg/requestcontext"
)

const (
	// SignatureHeader carries the hex HMAC-SHA256 of the request body.
	SignatureHeader = "X-Webhook-Signature"
	// EventHeader carries the event type so partners can route before parsing.
	EventHeader = "X-Webhook-Event"
	// IDHeader carries the event ID for partner-side deduplication.
	IDHeader = "X-Webhook-Id"

	maxAttempts     = 3
	maxResponseBody = 4 << 10
)

// defaultBackoff spaces the in-process retry attempts.
var defaultBackoff = []time.Duration{1 * time.Second, 5 * time.Second, 15 * time.Second}

// Dispatcher signs and delivers webhook payloads.
type Dispatcher struct {
	store   EventStore
	secret  []byte
	client  *http.Client
	backoff []time.Duration
	logger  *slog.Logger
	metrics *metrics.Metrics
}

// EventStore is the slice of the webhook event store the dispatcher needs.
type EventStore interface {
	Create(ctx context.Context, event *models.WebhookEvent) error
	Update(ctx context.Context, event *models.WebhookEvent) error
	ListUndelivered(ctx context.Context, limit int) ([]*models.WebhookEvent, error)
}

// Option configures a Dispatcher.
type Option func(*Dispatcher)

func WithLogger(logger *slog.Logger) Option {
	return func(d *Dispatcher) { d.logger = logger }
}

func WithHTTPClient(client *http.Client) Option {
	return func(d *Dispatcher) { d.client = client }
}

// WithBackoff overrides the inter-attempt delays, mainly for tests.
func WithBackoff(backoff []time.Duration) Option {
	return func(d *Dispatcher) { d.backoff = backoff }
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(d *Dispatcher) { d.metrics = m }
}

// New constructs a Dispatcher. secret is the partner-shared HMAC key.
func New(store EventStore, secret []byte, opts ...Option) *Dispatcher {
	d := &Dispatcher{
		store:   store,
		secret:  secret,
		client:  &http.Client{Timeout: 10 * time.Second},
		backoff: defaultBackoff,
		logger:  slog.Default(),
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Notify records a pending event and delivers it in the background. Failures
// never reach the caller; they only affect the stored delivery record.
func (d *Dispatcher) Notify(ctx context.Context, verificationID id.VerificationID, eventType models.EventType, url string, payload any) {
	if url == "" {
		return
	}

	body, err := json.Marshal(payload)
	if err != nil {
		d.logger.ErrorContext(ctx, "webhook payload not serializable",
			"verification_id", verificationID, "event_type", eventType, "error", err)
		return
	}

	event := &models.WebhookEvent{
		ID:             id.NewWebhookEventID(),
		VerificationID: verificationID,
		EventType:      eventType,
		URL:            url,
		Payload:        body,
		CreatedAt:      requestcontext.Now(ctx),
	}
	if err := d.store.Create(ctx, event); err != nil {
		d.logger.ErrorContext(ctx, "webhook event not recorded",
			"verification_id", verificationID, "event_type", eventType, "error", err)
		return
	}

	// Detached from the request context: the HTTP response must not wait on
	// partner endpoints or backoff sleeps.
	go d.Deliver(context.WithoutCancel(ctx), event)
}

// Deliver runs the full attempt loop for one event, updating the record after
// every attempt. Exported so the sweeper and tests can drive it directly.
func (d *Dispatcher) Deliver(ctx context.Context, event *models.WebhookEvent) {
	for attempt := 0; attempt < maxAttempts; attempt++ {
		if attempt > 0 {
			if !sleep(ctx, d.backoffFor(attempt-1)) {
				return
			}
		}
		if d.attempt(ctx, event); event.Delivered {
			if d.metrics != nil {
				d.metrics.RecordDelivery("delivered", event.DeliveryAttempts)
			}
			return
		}
	}

	if d.metrics != nil {
		d.metrics.RecordDelivery("exhausted", event.DeliveryAttempts)
	}
	d.logger.WarnContext(ctx, "webhook delivery exhausted",
		"event_id", event.ID,
		"verification_id", event.VerificationID,
		"event_type", event.EventType,
		"attempts", event.DeliveryAttempts,
	)
}

// attempt performs one signed POST and records the outcome.
func (d *Dispatcher) attempt(ctx context.Context, event *models.WebhookEvent) {
	now := requestcontext.Now(ctx)
	status, body, err := d.post(ctx, event)
	if err != nil {
		event.RecordAttempt(0, err.Error(), false, now)
	} else {
		event.RecordAttempt(status, body, status >= 200 && status < 300, now)
	}

	if err := d.store.Update(ctx, event); err != nil {
		d.logger.ErrorContext(ctx, "webhook attempt not recorded",
			"event_id", event.ID, "error", err)
	}
}

func (d *Dispatcher) post(ctx context.Context, event *models.WebhookEvent) (int, string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, event.URL,
		bytes.NewReader(event.Payload))
	if err != nil {
		return 0, "", fmt.Errorf("build webhook request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set(SignatureHeader, Sign(d.secret, event.Payload))
	req.Header.Set(EventHeader, string(event.EventType))
	req.Header.Set(IDHeader, event.ID.String())

	resp, err := d.client.Do(req)
	if err != nil {
		return 0, "", err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBody))
	if err != nil {
		return resp.StatusCode, "", nil
	}
	return resp.StatusCode, string(body), nil
}

func (d *Dispatcher) backoffFor(i int) time.Duration {
	if i < len(d.backoff) {
		return d.backoff[i]
	}
	if len(d.backoff) == 0 {
		return 0
	}
	return d.backoff[len(d.backoff)-1]
}

// Sign returns the hex HMAC-SHA256 of body under the shared secret.
func Sign(secret, body []byte) string {
	mac := hmac.New(sha256.New, secret)
	mac.Write(body)
	return hex.EncodeToString(mac.Sum(nil))
}

// VerifySignature reports whether signature matches body under the shared
// secret. Provided for partner-side reference and for tests.
func VerifySignature(secret, body []byte, signature string) bool {
	return hmac.Equal([]byte(Sign(secret, body)), []byte(signature))
}

func sleep(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return true
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}
