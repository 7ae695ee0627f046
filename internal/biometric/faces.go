// Package biometric compares the face on an identity document against a
// selfie and scores single-image liveness. Dedicated providers are preferred;
// every capability has a local pixel-domain fallback so the pipeline works
// with no providers configured.
package biometric

import (
	"image"
	"math"

	"veridoc/internal/imaging"
	dErrors "veridoc/pkg/domain-errors"
)

// embeddingSide is the downsample edge for the fallback intensity embedding.
const embeddingSide = 16

// Landmark is one coarse facial reference point in normalized [0,1] image
// coordinates.
type Landmark struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// FaceData is the locally computed representation of a face image: a
// normalized intensity embedding plus estimated landmark positions.
type FaceData struct {
	Embedding []float64
	Landmarks []Landmark
	Width     int
	Height    int
}

// ExtractFace decodes an image and computes its local face features. The
// embedding is the zero-mean, unit-norm flattening of a downsampled grayscale
// raster; landmarks are estimated from intensity minima in the canonical eye,
// nose, and mouth regions.
//
// Errors: CodeInvalidInput for undecodable payloads.
func ExtractFace(data []byte) (*FaceData, error) {
	img, _, err := imaging.Decode(data)
	if err != nil {
		return nil, err
	}
	gray := imaging.Gray(img)
	bounds := gray.Bounds()
	if bounds.Dx() < embeddingSide || bounds.Dy() < embeddingSide {
		return nil, dErrors.New(dErrors.CodeInvalidInput, "image too small for face analysis")
	}

	return &FaceData{
		Embedding: intensityEmbedding(gray),
		Landmarks: estimateLandmarks(gray),
		Width:     bounds.Dx(),
		Height:    bounds.Dy(),
	}, nil
}

// intensityEmbedding flattens a 16x16 downsample into a zero-mean unit
// vector. Uniform images degrade to the zero vector, which cosine comparison
// treats as a non-match.
func intensityEmbedding(gray *image.Gray) []float64 {
	small := imaging.Downsample(gray, embeddingSide, embeddingSide)
	vec := make([]float64, 0, embeddingSide*embeddingSide)
	var sum float64
	for y := 0; y < embeddingSide; y++ {
		for x := 0; x < embeddingSide; x++ {
			v := float64(small.GrayAt(x, y).Y)
			vec = append(vec, v)
			sum += v
		}
	}
	mean := sum / float64(len(vec))
	var norm float64
	for i := range vec {
		vec[i] -= mean
		norm += vec[i] * vec[i]
	}
	norm = math.Sqrt(norm)
	if norm > 0 {
		for i := range vec {
			vec[i] /= norm
		}
	}
	return vec
}

// landmarkRegions are the canonical search windows for the five estimated
// landmarks, as fractions of the image: left eye, right eye, nose tip, left
// mouth corner, right mouth corner.
var landmarkRegions = [5][4]float64{
	{0.15, 0.20, 0.45, 0.50},
	{0.55, 0.20, 0.85, 0.50},
	{0.35, 0.40, 0.65, 0.70},
	{0.20, 0.60, 0.50, 0.90},
	{0.50, 0.60, 0.80, 0.90},
}

// minLandmarkContrast is the global standard deviation below which the image
// has no dark structure to anchor landmarks on.
const minLandmarkContrast = 10.0

// estimateLandmarks returns the darkest-pixel centroid of each canonical
// region. Eyes, nostrils, and mouth corners are the darkest structures of a
// frontal face, so the centroids track real positions well enough for
// relative-geometry comparison. Near-uniform images return no landmarks and
// comparison falls through to the embedding.
func estimateLandmarks(gray *image.Gray) []Landmark {
	if _, std := imaging.MeanStd(gray); std < minLandmarkContrast {
		return nil
	}
	bounds := gray.Bounds()
	w, h := float64(bounds.Dx()), float64(bounds.Dy())

	landmarks := make([]Landmark, 0, len(landmarkRegions))
	for _, region := range landmarkRegions {
		r := image.Rect(
			bounds.Min.X+int(region[0]*w), bounds.Min.Y+int(region[1]*h),
			bounds.Min.X+int(region[2]*w), bounds.Min.Y+int(region[3]*h),
		)
		sub := imaging.SubGray(gray, r)
		cx, cy := darkCentroid(sub)
		landmarks = append(landmarks, Landmark{
			X: (float64(r.Min.X-bounds.Min.X) + cx) / w,
			Y: (float64(r.Min.Y-bounds.Min.Y) + cy) / h,
		})
	}
	return landmarks
}

// darkCentroid weights each pixel by its darkness and returns the centroid.
func darkCentroid(g *image.Gray) (x, y float64) {
	bounds := g.Bounds()
	var sumX, sumY, total float64
	for py := bounds.Min.Y; py < bounds.Max.Y; py++ {
		for px := bounds.Min.X; px < bounds.Max.X; px++ {
			weight := 255 - float64(g.GrayAt(px, py).Y)
			sumX += float64(px) * weight
			sumY += float64(py) * weight
			total += weight
		}
	}
	if total == 0 {
		return float64(bounds.Dx()) / 2, float64(bounds.Dy()) / 2
	}
	return sumX / total, sumY / total
}

// cosineSimilarity returns the cosine of two equal-length vectors in [-1,1].
// Zero vectors or mismatched lengths return -1.
func cosineSimilarity(a, b []float64) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return -1
	}
	var dot, normA, normB float64
	for i := range a {
		dot += a[i] * b[i]
		normA += a[i] * a[i]
		normB += b[i] * b[i]
	}
	if normA == 0 || normB == 0 {
		return -1
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}
