// Package quality implements the document quality gate: blur, glare, and
// completeness checks that run before any extraction is attempted.
package quality

import (
	"image"

	"veridoc/internal/imaging"
	dErrors "veridoc/pkg/domain-errors"
)

// Config holds the gate thresholds. The zero value is not usable; start from
// DefaultConfig so tests can vary individual thresholds.
type Config struct {
	// BlurThreshold is the minimum Laplacian variance for a sharp image.
	BlurThreshold float64
	// GlareMaxIntensity and GlareGap flag glare when the brightest channel
	// exceeds GlareMaxIntensity and sits more than GlareGap above the mean.
	GlareMaxIntensity float64
	GlareGap          float64
	// MinAspect/MaxAspect/MinDimension bound what counts as a complete,
	// fully-framed document photo.
	MinAspect    float64
	MaxAspect    float64
	MinDimension int
	// Penalties subtracted from the 1.0 starting score.
	BlurPenalty       float64
	GlarePenalty      float64
	IncompletePenalty float64
	// MinQuality is the gate: ingestion aborts below this score.
	MinQuality float64
	// PDFDefaultScore is assigned to PDF uploads, which bypass pixel
	// analysis entirely.
	PDFDefaultScore float64
}

// DefaultConfig returns the production thresholds.
func DefaultConfig() Config {
	return Config{
		BlurThreshold:     100,
		GlareMaxIntensity: 250,
		GlareGap:          100,
		MinAspect:         0.5,
		MaxAspect:         2.5,
		MinDimension:      300,
		BlurPenalty:       0.3,
		GlarePenalty:      0.2,
		IncompletePenalty: 0.4,
		MinQuality:        0.3,
		PDFDefaultScore:   0.8,
	}
}

// Report is the quality record stored on a document row.
type Report struct {
	QualityScore float64
	IsBlurry     bool
	HasGlare     bool
	IsComplete   bool
	// BlurVariance is the raw Laplacian variance, kept for diagnostics.
	BlurVariance float64
	// PDFBypass marks records assigned without pixel analysis.
	PDFBypass bool
}

// Gate assesses raw document images against configured thresholds.
type Gate struct {
	cfg Config
}

// New constructs a quality gate.
func New(cfg Config) *Gate {
	return &Gate{cfg: cfg}
}

// Assess computes the quality record for a raw upload. It is a pure function
// of the image bytes: no I/O, no stored state.
//
// Errors: CodeInvalidInput when the payload is neither a decodable image nor
// a PDF.
func (g *Gate) Assess(data []byte) (*Report, error) {
	if imaging.IsPDF(data) {
		return &Report{
			QualityScore: g.cfg.PDFDefaultScore,
			IsComplete:   true,
			PDFBypass:    true,
		}, nil
	}

	img, _, err := imaging.Decode(data)
	if err != nil {
		return nil, err
	}
	return g.assessImage(img), nil
}

func (g *Gate) assessImage(img image.Image) *Report {
	gray := imaging.Gray(img)

	report := &Report{
		BlurVariance: imaging.LaplacianVariance(gray),
		IsComplete:   g.isComplete(img),
	}
	report.IsBlurry = report.BlurVariance < g.cfg.BlurThreshold

	maxIntensity, meanIntensity := imaging.ChannelStats(img)
	report.HasGlare = maxIntensity > g.cfg.GlareMaxIntensity &&
		maxIntensity-meanIntensity > g.cfg.GlareGap

	score := 1.0
	if report.IsBlurry {
		score -= g.cfg.BlurPenalty
	}
	if report.HasGlare {
		score -= g.cfg.GlarePenalty
	}
	if !report.IsComplete {
		score -= g.cfg.IncompletePenalty
	}
	if score < 0 {
		score = 0
	}
	report.QualityScore = score
	return report
}

func (g *Gate) isComplete(img image.Image) bool {
	bounds := img.Bounds()
	if bounds.Dx() < g.cfg.MinDimension || bounds.Dy() < g.cfg.MinDimension {
		return false
	}
	aspect := imaging.AspectRatio(img)
	return aspect >= g.cfg.MinAspect && aspect <= g.cfg.MaxAspect
}

// Check enforces the gate: callers abort ingestion when the score is below
// the configured minimum.
//
// Errors: CodeInvalidInput with a remediation hint; never retried
// automatically.
func (g *Gate) Check(report *Report) error {
	if report.QualityScore >= g.cfg.MinQuality {
		return nil
	}
	switch {
	case report.IsBlurry && report.HasGlare:
		return dErrors.New(dErrors.CodeInvalidInput,
			"image is blurry and has glare, retake the photo in even lighting")
	case report.IsBlurry:
		return dErrors.New(dErrors.CodeInvalidInput,
			"image is too blurry, hold the camera steady and retake the photo")
	case report.HasGlare:
		return dErrors.New(dErrors.CodeInvalidInput,
			"image has too much glare, retake the photo away from direct light")
	default:
		return dErrors.New(dErrors.CodeInvalidInput,
			"document is not fully visible, retake the photo with the whole document in frame")
	}
}
