package quality

import (
	"bytes"
	"image"
	"image/color"
	"image/png"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	dErrors "veridoc/pkg/domain-errors"
)

func encodePNG(t *testing.T, img image.Image) []byte {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

// noisyDocument simulates a sharp, well-lit document photo: mid-gray paper
// with per-pixel noise so the Laplacian variance is high.
func noisyDocument(w, h int) image.Image {
	rng := rand.New(rand.NewSource(42))
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			v := uint8(100 + rng.Intn(100))
			img.Set(x, y, color.RGBA{R: v, G: v, B: v, A: 255})
		}
	}
	return img
}

func flatImage(w, h int, v uint8) image.Image {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, color.RGBA{R: v, G: v, B: v, A: 255})
		}
	}
	return img
}

func TestAssess_SharpCompleteDocument(t *testing.T) {
	gate := New(DefaultConfig())

	report, err := gate.Assess(encodePNG(t, noisyDocument(640, 400)))
	require.NoError(t, err)

	assert.False(t, report.IsBlurry)
	assert.False(t, report.HasGlare)
	assert.True(t, report.IsComplete)
	assert.InDelta(t, 1.0, report.QualityScore, 0.001)
	require.NoError(t, gate.Check(report))
}

func TestAssess_FlatRegionIsBlurry(t *testing.T) {
	gate := New(DefaultConfig())

	report, err := gate.Assess(encodePNG(t, flatImage(640, 400, 120)))
	require.NoError(t, err)

	assert.True(t, report.IsBlurry, "flat region has Laplacian variance below 100")
	assert.Less(t, report.BlurVariance, 100.0)
	assert.InDelta(t, 0.7, report.QualityScore, 0.001)
}

func TestAssess_GlareDetection(t *testing.T) {
	gate := New(DefaultConfig())

	// Dark noisy background with a blown-out highlight patch.
	img := noisyDocument(640, 400).(*image.RGBA)
	for y := 0; y < 40; y++ {
		for x := 0; x < 40; x++ {
			img.Set(x, y, color.RGBA{R: 255, G: 255, B: 255, A: 255})
		}
	}
	report, err := gate.Assess(encodePNG(t, img))
	require.NoError(t, err)

	assert.True(t, report.HasGlare)
	assert.InDelta(t, 0.8, report.QualityScore, 0.001)
}

func TestAssess_Incompleteness(t *testing.T) {
	gate := New(DefaultConfig())

	t.Run("too small", func(t *testing.T) {
		report, err := gate.Assess(encodePNG(t, noisyDocument(100, 100)))
		require.NoError(t, err)
		assert.False(t, report.IsComplete)
		assert.InDelta(t, 0.6, report.QualityScore, 0.001)
	})

	t.Run("extreme aspect ratio", func(t *testing.T) {
		report, err := gate.Assess(encodePNG(t, noisyDocument(1200, 310)))
		require.NoError(t, err)
		assert.False(t, report.IsComplete, "aspect 3.87 is outside document bounds")
	})
}

func TestAssess_ScoreFloorsAtZero(t *testing.T) {
	cfg := DefaultConfig()
	cfg.BlurPenalty = 0.5
	cfg.IncompletePenalty = 0.6
	gate := New(cfg)

	report, err := gate.Assess(encodePNG(t, flatImage(100, 100, 120)))
	require.NoError(t, err)
	assert.Zero(t, report.QualityScore)
}

func TestAssess_PDFBypass(t *testing.T) {
	gate := New(DefaultConfig())

	report, err := gate.Assess([]byte("%PDF-1.4\nsome pdf body"))
	require.NoError(t, err)

	assert.True(t, report.PDFBypass)
	assert.True(t, report.IsComplete)
	assert.False(t, report.IsBlurry)
	assert.InDelta(t, 0.8, report.QualityScore, 0.001)
	require.NoError(t, gate.Check(report))
}

func TestAssess_UndecodableInput(t *testing.T) {
	gate := New(DefaultConfig())

	_, err := gate.Assess([]byte("definitely not an image"))
	require.Error(t, err)
	assert.True(t, dErrors.HasCode(err, dErrors.CodeInvalidInput))
}

func TestCheck_BelowMinimumFailsWithHint(t *testing.T) {
	gate := New(DefaultConfig())

	err := gate.Check(&Report{QualityScore: 0.1, IsBlurry: true})
	require.Error(t, err)
	assert.True(t, dErrors.HasCode(err, dErrors.CodeInvalidInput))
	assert.Contains(t, dErrors.MessageOf(err), "blurry")
}
