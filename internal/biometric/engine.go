package biometric

import (
	"log/slog"

	"veridoc/internal/providers"
)

// Config carries the decision thresholds of the biometric engine.
type Config struct {
	// ProviderMatchThreshold is the minimum provider similarity (0-100
	// scale) counted as a face match.
	ProviderMatchThreshold float64
	// LandmarkMatchThreshold applies to the blended landmark-geometry
	// similarity in [0,1].
	LandmarkMatchThreshold float64
	// CosineMatchThreshold applies to embedding cosine similarity after
	// rescaling from [-1,1] to [0,1].
	CosineMatchThreshold float64

	// AttributePassCount is how many of the seven provider liveness signals
	// must pass.
	AttributePassCount int
	// AttributeMeanThreshold accepts a provider liveness verdict on mean
	// signal confidence alone.
	AttributeMeanThreshold float64
	// HeuristicPassCount is how many of the eight pixel heuristics must
	// pass.
	HeuristicPassCount int
	// HeuristicMeanThreshold accepts a heuristic verdict on mean score
	// alone.
	HeuristicMeanThreshold float64
}

// DefaultConfig returns the production thresholds.
func DefaultConfig() Config {
	return Config{
		ProviderMatchThreshold: 80,
		LandmarkMatchThreshold: 0.75,
		CosineMatchThreshold:   0.85,
		AttributePassCount:     4,
		AttributeMeanThreshold: 0.6,
		HeuristicPassCount:     4,
		HeuristicMeanThreshold: 0.45,
	}
}

// Engine runs face comparison and liveness analysis, preferring configured
// providers and degrading to local pixel analysis.
type Engine struct {
	comparer   providers.FaceComparer
	attributes providers.FaceAttributeAnalyzer
	config     Config
	logger     *slog.Logger
}

// Option configures an Engine.
type Option func(*Engine)

func WithLogger(logger *slog.Logger) Option {
	return func(e *Engine) { e.logger = logger }
}

func WithFaceComparer(p providers.FaceComparer) Option {
	return func(e *Engine) { e.comparer = p }
}

func WithFaceAttributeAnalyzer(p providers.FaceAttributeAnalyzer) Option {
	return func(e *Engine) { e.attributes = p }
}

func WithConfig(config Config) Option {
	return func(e *Engine) { e.config = config }
}

// New constructs a biometric engine with default thresholds.
func New(opts ...Option) *Engine {
	e := &Engine{
		config: DefaultConfig(),
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}
