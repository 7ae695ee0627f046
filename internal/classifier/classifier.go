// Package classifier determines a document's type from image content and an
// optional user-declared hint.
//
// Strategy, in priority order: trust a structured-extraction provider when it
// returns high-confidence entities; otherwise score vision labels and text
// against per-type keyword vocabularies; otherwise fall back to aspect-ratio
// heuristics. The fallback is unreliable on its own, so it only succeeds when
// the caller declared a type.
package classifier

import (
	"context"
	"log/slog"
	"sort"
	"strings"

	"veridoc/internal/imaging"
	"veridoc/internal/providers"
	id "veridoc/pkg/domain"
	dErrors "veridoc/pkg/domain-errors"
)

// Method identifies which strategy produced a classification.
type Method string

const (
	MethodStructured  Method = "structured_provider"
	MethodKeyword     Method = "keyword_match"
	MethodAspectRatio Method = "aspect_ratio"
	MethodDeclared    Method = "user_declared"
)

// reliable reports whether the method's detections are trusted enough to
// override a user-declared type.
func (m Method) reliable() bool {
	return m == MethodStructured || m == MethodKeyword
}

// Result is the classification outcome.
type Result struct {
	Type            id.DocumentType
	Confidence      float64
	Method          Method
	MatchedKeywords []string
	// Corrected is set when the detected type overrode a conflicting
	// user-declared type; DeclaredType records what the user claimed so the
	// caller can surface the correction.
	Corrected    bool
	DeclaredType id.DocumentType
}

// Config holds classification thresholds.
type Config struct {
	// MinConfidence is the floor below which a detection cannot stand on
	// its own.
	MinConfidence float64
	// OverrideConfidence is the floor above which a reliable detection
	// overrides a conflicting declared type.
	OverrideConfidence float64
	// StructuredConfidence is the floor for trusting a structured
	// provider's type outright.
	StructuredConfidence float64
	// Bonuses credited at three and five keyword hits.
	ThreeHitBonus float64
	FiveHitBonus  float64
}

// DefaultConfig returns the production thresholds.
func DefaultConfig() Config {
	return Config{
		MinConfidence:        0.4,
		OverrideConfidence:   0.5,
		StructuredConfidence: 0.7,
		ThreeHitBonus:        0.1,
		FiveHitBonus:         0.1,
	}
}

// Classifier runs the strategy chain. Either provider may be nil.
type Classifier struct {
	structured providers.StructuredExtractor
	vision     providers.VisionAnalyzer
	cfg        Config
	logger     *slog.Logger
}

// Option configures a Classifier.
type Option func(*Classifier)

func WithLogger(logger *slog.Logger) Option {
	return func(c *Classifier) { c.logger = logger }
}

func WithStructuredExtractor(p providers.StructuredExtractor) Option {
	return func(c *Classifier) { c.structured = p }
}

func WithVisionAnalyzer(p providers.VisionAnalyzer) Option {
	return func(c *Classifier) { c.vision = p }
}

// New constructs a classifier.
func New(cfg Config, opts ...Option) *Classifier {
	c := &Classifier{cfg: cfg, logger: slog.Default()}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Classify determines the document type. declared may be empty.
//
// Errors: CodeInvalidInput when no strategy produces a usable type and the
// caller declared nothing; the message asks for a clearer image.
func (c *Classifier) Classify(ctx context.Context, image []byte, declared id.DocumentType) (*Result, error) {
	detected := c.detect(ctx, image)

	// No usable detection: fall back to the declared type or fail.
	if detected == nil || detected.Confidence < c.cfg.MinConfidence || detected.Method == MethodAspectRatio {
		if declared.IsIdentityDocument() {
			result := &Result{
				Type:         declared,
				Confidence:   1.0,
				Method:       MethodDeclared,
				DeclaredType: declared,
			}
			if detected != nil {
				result.MatchedKeywords = detected.MatchedKeywords
			}
			return result, nil
		}
		return nil, dErrors.New(dErrors.CodeInvalidInput,
			"could not determine document type, upload a clearer image or specify the type")
	}

	// Reliable detection vs conflicting declared type: detection wins at the
	// override threshold, otherwise the user is trusted.
	if declared.IsIdentityDocument() && declared != detected.Type {
		if detected.Method.reliable() && detected.Confidence >= c.cfg.OverrideConfidence {
			detected.Corrected = true
			detected.DeclaredType = declared
			c.logger.InfoContext(ctx, "declared document type corrected",
				"declared", declared,
				"detected", detected.Type,
				"confidence", detected.Confidence,
				"method", detected.Method,
			)
			return detected, nil
		}
		return &Result{
			Type:            declared,
			Confidence:      1.0,
			Method:          MethodDeclared,
			MatchedKeywords: detected.MatchedKeywords,
			DeclaredType:    declared,
		}, nil
	}

	detected.DeclaredType = declared
	return detected, nil
}

// detect runs the strategy chain and returns the best detection, or nil when
// every strategy came up empty.
func (c *Classifier) detect(ctx context.Context, image []byte) *Result {
	if result := c.detectStructured(ctx, image); result != nil {
		return result
	}
	if result := c.detectKeywords(ctx, image); result != nil {
		return result
	}
	return c.detectAspectRatio(image)
}

func (c *Classifier) detectStructured(ctx context.Context, image []byte) *Result {
	if c.structured == nil {
		return nil
	}
	structured, err := c.structured.Extract(ctx, image, "")
	if err != nil {
		c.logger.WarnContext(ctx, "structured provider unavailable for classification",
			"provider", c.structured.Name(), "error", err)
		return nil
	}
	if structured.Confidence < c.cfg.StructuredConfidence || !structured.DocumentType.IsIdentityDocument() {
		return nil
	}
	return &Result{
		Type:       structured.DocumentType,
		Confidence: structured.Confidence,
		Method:     MethodStructured,
	}
}

func (c *Classifier) detectKeywords(ctx context.Context, image []byte) *Result {
	if c.vision == nil {
		return nil
	}
	vision, err := c.vision.Analyze(ctx, image)
	if err != nil {
		c.logger.WarnContext(ctx, "vision provider unavailable for classification",
			"provider", c.vision.Name(), "error", err)
		return nil
	}

	haystack := strings.ToLower(vision.Text + " " + strings.Join(vision.Labels, " "))
	if strings.TrimSpace(haystack) == "" {
		return nil
	}

	var best *Result
	for docType, vocab := range vocabularies {
		score, matched := scoreVocabulary(haystack, vision.Text, vocab, c.cfg)
		if score <= 0 {
			continue
		}
		if best == nil || score > best.Confidence ||
			(score == best.Confidence && docType < best.Type) {
			best = &Result{
				Type:            docType,
				Confidence:      score,
				Method:          MethodKeyword,
				MatchedKeywords: matched,
			}
		}
	}
	return best
}

// scoreVocabulary sums matched keyword weights, credits regex pattern hits,
// applies hit-count bonuses, and clamps to [0,1].
func scoreVocabulary(haystack, rawText string, vocab typeVocabulary, cfg Config) (float64, []string) {
	var score float64
	var matched []string
	for _, kw := range vocab.keywords {
		if strings.Contains(haystack, kw.text) {
			score += kw.weight
			matched = append(matched, kw.text)
		}
	}
	for _, pattern := range vocab.patterns {
		if pattern.MatchString(rawText) {
			score += vocab.patternWeight
			matched = append(matched, pattern.String())
		}
	}
	if len(matched) >= 3 {
		score += cfg.ThreeHitBonus
	}
	if len(matched) >= 5 {
		score += cfg.FiveHitBonus
	}
	if score > 1 {
		score = 1
	}
	sort.Strings(matched)
	return score, matched
}

// detectAspectRatio is the last resort: landscape card ratios suggest a
// license, portrait page ratios suggest a passport. Too weak to stand alone,
// which Classify enforces.
func (c *Classifier) detectAspectRatio(data []byte) *Result {
	img, _, err := imaging.Decode(data)
	if err != nil {
		return nil
	}
	aspect := imaging.AspectRatio(img)
	switch {
	case aspect >= 1.4 && aspect <= 1.8:
		return &Result{Type: id.DocumentTypeDriversLicense, Confidence: 0.3, Method: MethodAspectRatio}
	case aspect >= 0.6 && aspect <= 0.8:
		return &Result{Type: id.DocumentTypePassport, Confidence: 0.3, Method: MethodAspectRatio}
	}
	return nil
}
