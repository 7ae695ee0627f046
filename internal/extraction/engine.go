// Package extraction pulls structured fields out of classified document
// images through an ordered provider fallback chain: structured extraction,
// then general vision with regex parsing, then local OCR with the same
// parsers.
package extraction

import (
	"context"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"veridoc/internal/providers"
	id "veridoc/pkg/domain"
	dErrors "veridoc/pkg/domain-errors"
	"veridoc/pkg/platform/circuit"
)

// Engine runs the extraction fallback chain. Providers are tried in cost and
// quality order, sequentially; a provider error advances the chain rather
// than failing the operation. Each provider sits behind a circuit breaker so
// a flapping provider stops being called until it recovers.
type Engine struct {
	structured providers.StructuredExtractor
	vision     providers.VisionAnalyzer
	ocr        providers.OCREngine
	timeout    time.Duration
	logger     *slog.Logger
	tracer     trace.Tracer

	structuredBreaker *circuit.Breaker
	visionBreaker     *circuit.Breaker
	ocrBreaker        *circuit.Breaker
}

// Option configures an Engine.
type Option func(*Engine)

func WithLogger(logger *slog.Logger) Option {
	return func(e *Engine) { e.logger = logger }
}

func WithStructuredExtractor(p providers.StructuredExtractor) Option {
	return func(e *Engine) { e.structured = p }
}

func WithVisionAnalyzer(p providers.VisionAnalyzer) Option {
	return func(e *Engine) { e.vision = p }
}

func WithOCREngine(p providers.OCREngine) Option {
	return func(e *Engine) { e.ocr = p }
}

// WithTimeout bounds each individual provider call.
func WithTimeout(d time.Duration) Option {
	return func(e *Engine) { e.timeout = d }
}

// WithBreakerOptions tunes the per-provider circuit breakers.
func WithBreakerOptions(opts ...circuit.Option) Option {
	return func(e *Engine) {
		e.structuredBreaker = circuit.New("structured", opts...)
		e.visionBreaker = circuit.New("vision", opts...)
		e.ocrBreaker = circuit.New("ocr", opts...)
	}
}

// New constructs an extraction engine.
func New(opts ...Option) *Engine {
	e := &Engine{
		timeout:           10 * time.Second,
		logger:            slog.Default(),
		tracer:            otel.Tracer("veridoc/extraction"),
		structuredBreaker: circuit.New("structured"),
		visionBreaker:     circuit.New("vision"),
		ocrBreaker:        circuit.New("ocr"),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Extract recovers the canonical field set from a classified document image.
//
// Errors: CodeInvalidInput when the chain ran but neither a full name nor a
// document number could be recovered (the user should upload a clearer
// image); CodeUnavailable when every provider in the chain failed outright.
func (e *Engine) Extract(ctx context.Context, image []byte, docType id.DocumentType) (*Data, error) {
	ctx, span := e.tracer.Start(ctx, "extraction.Extract",
		trace.WithAttributes(attribute.String("document.type", docType.String())))
	defer span.End()

	var attempted, failed int

	if data, ok := e.tryStructured(ctx, image, docType, &attempted, &failed); ok {
		span.SetAttributes(attribute.String("extraction.source", data.Source))
		return data, nil
	}
	if data, ok := e.tryVision(ctx, image, docType, &attempted, &failed); ok {
		span.SetAttributes(attribute.String("extraction.source", data.Source))
		return data, nil
	}
	if data, ok := e.tryOCR(ctx, image, docType, &attempted, &failed); ok {
		span.SetAttributes(attribute.String("extraction.source", data.Source))
		return data, nil
	}

	if attempted > 0 && failed == attempted {
		return nil, dErrors.New(dErrors.CodeUnavailable,
			"document extraction is temporarily unavailable, try again shortly")
	}
	return nil, dErrors.New(dErrors.CodeInvalidInput,
		"could not read a name or document number, upload a clearer image")
}

func (e *Engine) tryStructured(ctx context.Context, image []byte, docType id.DocumentType, attempted, failed *int) (*Data, bool) {
	if e.structured == nil || !e.structured.SupportsType(docType) {
		return nil, false
	}
	*attempted++
	if !e.structuredBreaker.Allow() {
		*failed++
		return nil, false
	}

	callCtx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()
	result, err := e.structured.Extract(callCtx, image, docType)
	if err != nil {
		*failed++
		e.recordFailure(ctx, e.structuredBreaker, e.structured.Name())
		e.logger.WarnContext(ctx, "structured extraction failed, falling back",
			"provider", e.structured.Name(), "error", err)
		return nil, false
	}
	e.recordSuccess(ctx, e.structuredBreaker, e.structured.Name())

	data := &Data{
		DocumentType: docType,
		Confidence:   result.Confidence,
		Source:       e.structured.Name(),
	}
	for _, entity := range result.Entities {
		if key := CanonicalKey(entity.Key); key != "" {
			data.setField(key, entity.Value)
		}
	}
	if !data.HasIdentity() {
		return nil, false
	}
	return data, true
}

func (e *Engine) tryVision(ctx context.Context, image []byte, docType id.DocumentType, attempted, failed *int) (*Data, bool) {
	if e.vision == nil {
		return nil, false
	}
	*attempted++
	if !e.visionBreaker.Allow() {
		*failed++
		return nil, false
	}

	callCtx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()
	result, err := e.vision.Analyze(callCtx, image)
	if err != nil {
		*failed++
		e.recordFailure(ctx, e.visionBreaker, e.vision.Name())
		e.logger.WarnContext(ctx, "vision extraction failed, falling back",
			"provider", e.vision.Name(), "error", err)
		return nil, false
	}
	e.recordSuccess(ctx, e.visionBreaker, e.vision.Name())

	data := ParseText(result.Text, docType)
	data.Source = e.vision.Name()
	if !data.HasIdentity() {
		return nil, false
	}
	return data, true
}

func (e *Engine) tryOCR(ctx context.Context, image []byte, docType id.DocumentType, attempted, failed *int) (*Data, bool) {
	if e.ocr == nil {
		return nil, false
	}
	*attempted++
	if !e.ocrBreaker.Allow() {
		*failed++
		return nil, false
	}

	callCtx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()
	text, err := e.ocr.Recognize(callCtx, image)
	if err != nil {
		*failed++
		e.recordFailure(ctx, e.ocrBreaker, e.ocr.Name())
		e.logger.WarnContext(ctx, "local ocr failed",
			"provider", e.ocr.Name(), "error", err)
		return nil, false
	}
	e.recordSuccess(ctx, e.ocrBreaker, e.ocr.Name())

	data := ParseText(text, docType)
	data.Source = e.ocr.Name()
	if !data.HasIdentity() {
		return nil, false
	}
	return data, true
}

func (e *Engine) recordFailure(ctx context.Context, breaker *circuit.Breaker, provider string) {
	if _, change := breaker.RecordFailure(); change.Opened {
		e.logger.WarnContext(ctx, "extraction provider circuit opened",
			"breaker", breaker.Name(), "provider", provider)
	}
}

func (e *Engine) recordSuccess(ctx context.Context, breaker *circuit.Breaker, provider string) {
	if _, change := breaker.RecordSuccess(); change.Closed {
		e.logger.InfoContext(ctx, "extraction provider circuit closed",
			"breaker", breaker.Name(), "provider", provider)
	}
}
