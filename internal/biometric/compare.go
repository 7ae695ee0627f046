package biometric

import (
	"context"
	"math"
)

// Comparison methods, in fallback order.
const (
	MethodProvider  = "provider"
	MethodLandmarks = "landmarks"
	MethodEmbedding = "embedding"
)

// minInterocular is the smallest normalized eye distance at which landmark
// geometry is trusted; below it the estimate degenerated and the embedding
// fallback decides.
const minInterocular = 0.05

// CompareResult is the face-comparison verdict.
type CompareResult struct {
	Match  bool    `json:"match"`
	Score  float64 `json:"score"`
	Method string  `json:"method"`
}

// Compare decides whether the face on the document matches the selfie. A
// configured comparison provider is authoritative; provider failure falls
// back to landmark geometry and then to embedding cosine similarity.
//
// Errors: CodeInvalidInput when either image cannot be analyzed locally.
func (e *Engine) Compare(ctx context.Context, docImage, selfie []byte) (*CompareResult, error) {
	if e.comparer != nil {
		comparison, err := e.comparer.Compare(ctx, docImage, selfie)
		if err == nil {
			return &CompareResult{
				Match:  comparison.Similarity >= e.config.ProviderMatchThreshold,
				Score:  comparison.Similarity / 100,
				Method: MethodProvider,
			}, nil
		}
		e.logger.WarnContext(ctx, "face comparison provider failed, using local fallback",
			"provider", e.comparer.Name(), "error", err)
	}

	docFace, err := ExtractFace(docImage)
	if err != nil {
		return nil, err
	}
	selfieFace, err := ExtractFace(selfie)
	if err != nil {
		return nil, err
	}

	if landmarksUsable(docFace) && landmarksUsable(selfieFace) {
		score := landmarkSimilarity(docFace, selfieFace)
		return &CompareResult{
			Match:  score >= e.config.LandmarkMatchThreshold,
			Score:  score,
			Method: MethodLandmarks,
		}, nil
	}

	score := (cosineSimilarity(docFace.Embedding, selfieFace.Embedding) + 1) / 2
	return &CompareResult{
		Match:  score >= e.config.CosineMatchThreshold,
		Score:  score,
		Method: MethodEmbedding,
	}, nil
}

func landmarksUsable(face *FaceData) bool {
	if len(face.Landmarks) < 2 {
		return false
	}
	return landmarkDistance(face.Landmarks[0], face.Landmarks[1]) >= minInterocular
}

// landmarkSimilarity blends relative-distance geometry (60%) with pose and
// frame-ratio agreement (40%). Distances are normalized by each face's
// inter-ocular distance so scale cancels out.
func landmarkSimilarity(a, b *FaceData) float64 {
	distances := relativeSimilarity(a.Landmarks, b.Landmarks)
	pose := poseSimilarity(a, b)
	return clamp01(0.6*distances + 0.4*pose)
}

func relativeSimilarity(a, b []Landmark) float64 {
	n := len(a)
	if len(b) < n {
		n = len(b)
	}
	scaleA := landmarkDistance(a[0], a[1])
	scaleB := landmarkDistance(b[0], b[1])

	var totalDiff float64
	var pairs int
	for i := 0; i < n; i++ {
		for j := i + 1; j < n; j++ {
			da := landmarkDistance(a[i], a[j]) / scaleA
			db := landmarkDistance(b[i], b[j]) / scaleB
			larger := math.Max(da, db)
			if larger > 0 {
				totalDiff += math.Abs(da-db) / larger
			}
			pairs++
		}
	}
	if pairs == 0 {
		return 0
	}
	return clamp01(1 - totalDiff/float64(pairs))
}

// poseSimilarity compares eye-line tilt and frame aspect ratio.
func poseSimilarity(a, b *FaceData) float64 {
	angleA := math.Atan2(a.Landmarks[1].Y-a.Landmarks[0].Y, a.Landmarks[1].X-a.Landmarks[0].X)
	angleB := math.Atan2(b.Landmarks[1].Y-b.Landmarks[0].Y, b.Landmarks[1].X-b.Landmarks[0].X)
	angleSim := 1 - math.Abs(angleA-angleB)/math.Pi

	ratioA := float64(a.Width) / float64(a.Height)
	ratioB := float64(b.Width) / float64(b.Height)
	ratioSim := math.Min(ratioA, ratioB) / math.Max(ratioA, ratioB)

	return clamp01((angleSim + ratioSim) / 2)
}

func landmarkDistance(a, b Landmark) float64 {
	return math.Hypot(a.X-b.X, a.Y-b.Y)
}

func clamp01(v float64) float64 {
	return math.Min(1, math.Max(0, v))
}
