package audit

import (
	"context"
	"log/slog"
	"sync"

	id "veridoc/pkg/domain"
	"veridoc/pkg/requestcontext"
)

const defaultBufferSize = 256

// Publisher fans audit events out to the store and an optional sink from a
// background worker. Emit never blocks the caller: when the buffer is full
// the event is dropped with a log line rather than stalling the pipeline.
type Publisher struct {
	store  Store
	sink   Sink
	logger *slog.Logger

	inbox chan Event
	done  chan struct{}
	once  sync.Once
}

// Sink receives a copy of every event, typically a message broker.
type Sink interface {
	Publish(ctx context.Context, event Event) error
}

// PublisherOption configures a Publisher.
type PublisherOption func(*Publisher)

func WithSink(sink Sink) PublisherOption {
	return func(p *Publisher) { p.sink = sink }
}

func WithLogger(logger *slog.Logger) PublisherOption {
	return func(p *Publisher) { p.logger = logger }
}

func WithBufferSize(size int) PublisherOption {
	return func(p *Publisher) { p.inbox = make(chan Event, size) }
}

// NewPublisher constructs and starts a Publisher.
func NewPublisher(store Store, opts ...PublisherOption) *Publisher {
	p := &Publisher{
		store:  store,
		logger: slog.Default(),
		inbox:  make(chan Event, defaultBufferSize),
		done:   make(chan struct{}),
	}
	for _, opt := range opts {
		opt(p)
	}
	go p.run()
	return p
}

// Emit queues one event. The timestamp and request ID come from the request
// context; the category is derived from the action.
func (p *Publisher) Emit(ctx context.Context, action AuditEvent, partnerID id.PartnerID, userID id.UserID, verificationID id.VerificationID, details map[string]string) {
	event := Event{
		Category:       CategoryFor(action),
		Timestamp:      requestcontext.Now(ctx),
		Action:         string(action),
		PartnerID:      partnerID,
		UserID:         userID,
		VerificationID: verificationID,
		RequestID:      requestcontext.RequestID(ctx),
		Details:        details,
	}

	select {
	case p.inbox <- event:
	default:
		p.logger.WarnContext(ctx, "audit buffer full, event dropped",
			"action", event.Action, "verification_id", verificationID)
	}
}

// Close stops the worker after draining queued events.
func (p *Publisher) Close() {
	p.once.Do(func() {
		close(p.inbox)
		<-p.done
	})
}

func (p *Publisher) run() {
	defer close(p.done)
	ctx := context.Background()

	for event := range p.inbox {
		if err := p.store.Append(ctx, event); err != nil {
			p.logger.Error("audit event not stored", "action", event.Action, "error", err)
		}
		if p.sink != nil {
			if err := p.sink.Publish(ctx, event); err != nil {
				p.logger.Error("audit event not published", "action", event.Action, "error", err)
			}
		}
	}
}
