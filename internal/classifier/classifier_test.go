package classifier

import (
	"bytes"
	"context"
	"errors"
	"image"
	"image/png"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"veridoc/internal/providers"
	id "veridoc/pkg/domain"
	dErrors "veridoc/pkg/domain-errors"
)

type stubStructured struct {
	result *providers.StructuredResult
	err    error
}

func (s *stubStructured) Name() string                        { return "stub-structured" }
func (s *stubStructured) SupportsType(id.DocumentType) bool   { return true }
func (s *stubStructured) Extract(context.Context, []byte, id.DocumentType) (*providers.StructuredResult, error) {
	return s.result, s.err
}

type stubVision struct {
	result *providers.VisionResult
	err    error
}

func (s *stubVision) Name() string { return "stub-vision" }
func (s *stubVision) Analyze(context.Context, []byte) (*providers.VisionResult, error) {
	return s.result, s.err
}

func pngBytes(t *testing.T, w, h int) []byte {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, image.NewGray(image.Rect(0, 0, w, h))))
	return buf.Bytes()
}

func TestClassify_StructuredProviderWins(t *testing.T) {
	c := New(DefaultConfig(),
		WithStructuredExtractor(&stubStructured{result: &providers.StructuredResult{
			DocumentType: id.DocumentTypePassport,
			Confidence:   0.92,
		}}),
		WithVisionAnalyzer(&stubVision{result: &providers.VisionResult{Text: "driver license class c"}}),
	)

	result, err := c.Classify(context.Background(), pngBytes(t, 100, 150), "")
	require.NoError(t, err)
	assert.Equal(t, id.DocumentTypePassport, result.Type)
	assert.Equal(t, MethodStructured, result.Method)
	assert.InDelta(t, 0.92, result.Confidence, 0.001)
}

func TestClassify_KeywordScoring(t *testing.T) {
	vision := &stubVision{result: &providers.VisionResult{
		Text:   "PASSPORT\nP<USADOE<<JANE<<<<\nNationality: USA\nPlace of birth: NEW YORK",
		Labels: []string{"document", "text"},
	}}
	c := New(DefaultConfig(),
		WithStructuredExtractor(&stubStructured{err: errors.New("quota exceeded")}),
		WithVisionAnalyzer(vision),
	)

	result, err := c.Classify(context.Background(), pngBytes(t, 100, 150), "")
	require.NoError(t, err)
	assert.Equal(t, id.DocumentTypePassport, result.Type)
	assert.Equal(t, MethodKeyword, result.Method)
	assert.GreaterOrEqual(t, result.Confidence, 0.4)
	assert.NotEmpty(t, result.MatchedKeywords)
}

func TestClassify_KeywordHitBonuses(t *testing.T) {
	// Five distinct passport vocabulary hits trigger both bonuses.
	text := "passport nationality place of birth date of issue issuing authority"
	weak := "passport"

	rich, matchedRich := scoreVocabulary(text, text, vocabularies[id.DocumentTypePassport], DefaultConfig())
	poor, matchedPoor := scoreVocabulary(weak, weak, vocabularies[id.DocumentTypePassport], DefaultConfig())

	assert.GreaterOrEqual(t, len(matchedRich), 5)
	assert.Len(t, matchedPoor, 1)
	assert.Greater(t, rich, poor+0.2, "three-hit and five-hit bonuses should both apply")
}

func TestClassify_AspectRatioFallbackNeedsDeclaredType(t *testing.T) {
	c := New(DefaultConfig()) // no providers at all

	t.Run("fails without declared type", func(t *testing.T) {
		_, err := c.Classify(context.Background(), pngBytes(t, 160, 100), "")
		require.Error(t, err)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeInvalidInput))
	})

	t.Run("declared type is trusted", func(t *testing.T) {
		result, err := c.Classify(context.Background(), pngBytes(t, 160, 100), id.DocumentTypeDriversLicense)
		require.NoError(t, err)
		assert.Equal(t, id.DocumentTypeDriversLicense, result.Type)
		assert.Equal(t, MethodDeclared, result.Method)
	})
}

func TestClassify_DetectionOverridesDeclaredType(t *testing.T) {
	vision := &stubVision{result: &providers.VisionResult{
		Text: "PASSPORT\nP<USADOE<<JANE<<<<\nNationality: USA\nIssuing authority: Dept of State",
	}}
	c := New(DefaultConfig(), WithVisionAnalyzer(vision))

	result, err := c.Classify(context.Background(), pngBytes(t, 100, 150), id.DocumentTypeDriversLicense)
	require.NoError(t, err)
	assert.Equal(t, id.DocumentTypePassport, result.Type, "high-confidence detection wins")
	assert.True(t, result.Corrected)
	assert.Equal(t, id.DocumentTypeDriversLicense, result.DeclaredType)
}

func TestClassify_WeakDetectionDefersToDeclaredType(t *testing.T) {
	// A single weak keyword hit: above MinConfidence scoring is impossible,
	// so declared type must win even though detection disagrees.
	vision := &stubVision{result: &providers.VisionResult{Text: "citizen"}}
	c := New(DefaultConfig(), WithVisionAnalyzer(vision))

	result, err := c.Classify(context.Background(), pngBytes(t, 160, 100), id.DocumentTypeDriversLicense)
	require.NoError(t, err)
	assert.Equal(t, id.DocumentTypeDriversLicense, result.Type)
	assert.Equal(t, MethodDeclared, result.Method)
	assert.False(t, result.Corrected)
}

func TestClassify_ProviderErrorsFallThrough(t *testing.T) {
	c := New(DefaultConfig(),
		WithStructuredExtractor(&stubStructured{err: errors.New("timeout")}),
		WithVisionAnalyzer(&stubVision{err: errors.New("unreachable")}),
	)

	// Landscape card ratio: aspect fallback fires, declared type carries it.
	result, err := c.Classify(context.Background(), pngBytes(t, 160, 100), id.DocumentTypeNationalID)
	require.NoError(t, err)
	assert.Equal(t, id.DocumentTypeNationalID, result.Type)
}
