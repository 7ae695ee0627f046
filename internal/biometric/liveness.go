package biometric

import (
	"context"

	"veridoc/internal/imaging"
	"veridoc/internal/providers"
	dErrors "veridoc/pkg/domain-errors"
)

// Liveness methods.
const (
	MethodAttributes = "attributes"
	MethodHeuristics = "heuristics"
	MethodDefault    = "default"
)

// LivenessResult is the anti-spoofing verdict for a single still image.
type LivenessResult struct {
	IsLive     bool               `json:"is_live"`
	Confidence float64            `json:"confidence"`
	Method     string             `json:"method"`
	Signals    map[string]float64 `json:"signals,omitempty"`
}

// defaultLiveness is the fail-open verdict used when analysis itself breaks.
// A broken analyzer must not silently deny users.
func defaultLiveness() *LivenessResult {
	return &LivenessResult{IsLive: true, Confidence: 0.5, Method: MethodDefault}
}

// CheckSelfie rejects selfies that definitely do not show exactly one face.
// Provider absence or failure passes the selfie through; the liveness score
// still reflects what local analysis found.
func (e *Engine) CheckSelfie(ctx context.Context, selfie []byte) error {
	if e.attributes == nil {
		return nil
	}
	attrs, err := e.attributes.Analyze(ctx, selfie)
	if err != nil {
		e.logger.WarnContext(ctx, "face attribute provider failed during selfie check",
			"provider", e.attributes.Name(), "error", err)
		return nil
	}
	switch {
	case attrs.FaceCount == 0:
		return dErrors.New(dErrors.CodeInvalidInput, "no face detected in the selfie")
	case attrs.FaceCount > 1:
		return dErrors.New(dErrors.CodeInvalidInput, "more than one face detected in the selfie")
	}
	return nil
}

// Liveness scores a single selfie for spoofing. The attribute provider's
// seven signals are preferred; without one the eight pixel heuristics decide.
// Analysis errors yield the fail-open default verdict, never an error.
func (e *Engine) Liveness(ctx context.Context, selfie []byte) *LivenessResult {
	if e.attributes != nil {
		attrs, err := e.attributes.Analyze(ctx, selfie)
		if err == nil {
			return e.scoreAttributes(attrs)
		}
		e.logger.WarnContext(ctx, "face attribute provider failed, using pixel heuristics",
			"provider", e.attributes.Name(), "error", err)
	}

	result, err := e.scoreHeuristics(selfie)
	if err != nil {
		e.logger.WarnContext(ctx, "liveness heuristics failed, defaulting to live", "error", err)
		return defaultLiveness()
	}
	return result
}

// scoreAttributes evaluates the seven provider signals: detection
// confidence, eyes open, pose, image quality, sunglasses absence, expression
// presence, and face-area ratio.
func (e *Engine) scoreAttributes(attrs *providers.FaceAttributes) *LivenessResult {
	if attrs.FaceCount == 0 {
		return &LivenessResult{
			IsLive:     false,
			Confidence: 0,
			Method:     MethodAttributes,
			Signals:    map[string]float64{"detection": 0},
		}
	}

	signals := map[string]float64{
		"detection":     clamp01(attrs.DetectionConfidence),
		"eyes_open":     clamp01(attrs.EyesOpenConfidence),
		"pose":          clamp01(1 - attrs.PoseDeviation/90),
		"image_quality": attributeQualityScore(attrs),
		"sunglasses":    boolScore(!attrs.Sunglasses),
		"expression":    boolScore(attrs.HasExpression),
		"face_area":     faceAreaScore(attrs.FaceAreaRatio),
	}
	passes := 0
	if signals["detection"] >= 0.9 {
		passes++
	}
	if signals["eyes_open"] >= 0.8 {
		passes++
	}
	if attrs.PoseDeviation <= 30 {
		passes++
	}
	if signals["image_quality"] >= 0.5 {
		passes++
	}
	if !attrs.Sunglasses {
		passes++
	}
	if attrs.HasExpression {
		passes++
	}
	if attrs.FaceAreaRatio >= 0.05 && attrs.FaceAreaRatio <= 0.8 {
		passes++
	}

	mean := meanOf(signals)
	return &LivenessResult{
		IsLive:     passes >= e.config.AttributePassCount || mean >= e.config.AttributeMeanThreshold,
		Confidence: mean,
		Method:     MethodAttributes,
		Signals:    signals,
	}
}

// scoreHeuristics evaluates the eight pixel-domain anti-spoofing scores.
func (e *Engine) scoreHeuristics(selfie []byte) (*LivenessResult, error) {
	img, _, err := imaging.Decode(selfie)
	if err != nil {
		return nil, err
	}
	gray := imaging.Gray(img)

	signals := map[string]float64{
		"texture":    textureScore(gray),
		"skin":       skinScore(img),
		"moire":      moireScore(gray),
		"highlights": highlightScore(gray),
		"depth":      depthScore(gray),
		"border":     borderScore(gray),
		"print":      printScore(img),
		"reflection": reflectionScore(gray),
	}

	passes := 0
	for _, score := range signals {
		if score >= 0.5 {
			passes++
		}
	}
	mean := meanOf(signals)
	return &LivenessResult{
		IsLive:     passes >= e.config.HeuristicPassCount || mean >= e.config.HeuristicMeanThreshold,
		Confidence: mean,
		Method:     MethodHeuristics,
		Signals:    signals,
	}, nil
}

// attributeQualityScore blends brightness plausibility with sharpness.
// Brightness is on the 0-255 scale, sharpness on the provider's 0-100 scale.
func attributeQualityScore(attrs *providers.FaceAttributes) float64 {
	brightness := 1.0
	if attrs.Brightness < 40 {
		brightness = attrs.Brightness / 40
	} else if attrs.Brightness > 220 {
		brightness = clamp01((255 - attrs.Brightness) / 35)
	}
	sharpness := clamp01(attrs.Sharpness / 50)
	return clamp01((brightness + sharpness) / 2)
}

func faceAreaScore(ratio float64) float64 {
	if ratio >= 0.05 && ratio <= 0.8 {
		return 1
	}
	return 0.2
}

func boolScore(ok bool) float64 {
	if ok {
		return 1
	}
	return 0
}

func meanOf(signals map[string]float64) float64 {
	if len(signals) == 0 {
		return 0
	}
	var sum float64
	for _, v := range signals {
		sum += v
	}
	return sum / float64(len(signals))
}
