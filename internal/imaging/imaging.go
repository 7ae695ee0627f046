// Package imaging holds the pixel-domain primitives shared by the quality
// gate, the document classifier, and the biometric engine. Everything here is
// a pure function of image bytes; callers own thresholds and policy.
package imaging

import (
	"bytes"
	"image"
	"image/color"
	"math"

	// Registered for image.Decode.
	_ "image/jpeg"
	_ "image/png"

	dErrors "veridoc/pkg/domain-errors"
)

var pdfMagic = []byte("%PDF-")

// IsPDF reports whether the payload is a PDF document. PDFs bypass pixel
// analysis entirely; the quality gate assigns them a fixed default record.
func IsPDF(data []byte) bool {
	return bytes.HasPrefix(data, pdfMagic)
}

// Decode parses JPEG or PNG bytes into an image.
//
// Errors: returns CodeInvalidInput for payloads that are not a decodable
// image, with a remediation hint for the end user.
func Decode(data []byte) (image.Image, string, error) {
	img, format, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, "", dErrors.Wrap(err, dErrors.CodeInvalidInput,
			"could not read image, upload a JPEG or PNG photo")
	}
	return img, format, nil
}

// Gray converts an image to an 8-bit grayscale raster using the standard
// luminance weights.
func Gray(img image.Image) *image.Gray {
	bounds := img.Bounds()
	gray := image.NewGray(bounds)
	for y := bounds.Min.Y; y < bounds.Max.Y; y++ {
		for x := bounds.Min.X; x < bounds.Max.X; x++ {
			gray.Set(x, y, color.GrayModel.Convert(img.At(x, y)))
		}
	}
	return gray
}

// LaplacianVariance measures focus by convolving the 4-neighbor Laplacian
// kernel over the raster and taking the variance of the responses. Flat or
// defocused regions produce small responses; a variance under ~100 reads as
// blurry for typical document photos.
func LaplacianVariance(g *image.Gray) float64 {
	bounds := g.Bounds()
	w, h := bounds.Dx(), bounds.Dy()
	if w < 3 || h < 3 {
		return 0
	}

	responses := make([]float64, 0, (w-2)*(h-2))
	var sum float64
	for y := bounds.Min.Y + 1; y < bounds.Max.Y-1; y++ {
		for x := bounds.Min.X + 1; x < bounds.Max.X-1; x++ {
			center := float64(g.GrayAt(x, y).Y)
			response := -4*center +
				float64(g.GrayAt(x-1, y).Y) +
				float64(g.GrayAt(x+1, y).Y) +
				float64(g.GrayAt(x, y-1).Y) +
				float64(g.GrayAt(x, y+1).Y)
			responses = append(responses, response)
			sum += response
		}
	}

	mean := sum / float64(len(responses))
	var variance float64
	for _, r := range responses {
		d := r - mean
		variance += d * d
	}
	return variance / float64(len(responses))
}

// Downsample shrinks a grayscale raster to the given dimensions with
// box-filter averaging. Used for embeddings and cross-region statistics
// where exact resampling quality does not matter.
func Downsample(g *image.Gray, width, height int) *image.Gray {
	bounds := g.Bounds()
	srcW, srcH := bounds.Dx(), bounds.Dy()
	out := image.NewGray(image.Rect(0, 0, width, height))
	if srcW == 0 || srcH == 0 {
		return out
	}

	for y := 0; y < height; y++ {
		y0 := bounds.Min.Y + y*srcH/height
		y1 := bounds.Min.Y + (y+1)*srcH/height
		if y1 <= y0 {
			y1 = y0 + 1
		}
		for x := 0; x < width; x++ {
			x0 := bounds.Min.X + x*srcW/width
			x1 := bounds.Min.X + (x+1)*srcW/width
			if x1 <= x0 {
				x1 = x0 + 1
			}
			var sum, count int
			for sy := y0; sy < y1 && sy < bounds.Max.Y; sy++ {
				for sx := x0; sx < x1 && sx < bounds.Max.X; sx++ {
					sum += int(g.GrayAt(sx, sy).Y)
					count++
				}
			}
			if count > 0 {
				out.SetGray(x, y, color.Gray{Y: uint8(sum / count)})
			}
		}
	}
	return out
}

// MeanStd returns the mean and standard deviation of a grayscale raster.
func MeanStd(g *image.Gray) (mean, std float64) {
	bounds := g.Bounds()
	n := bounds.Dx() * bounds.Dy()
	if n == 0 {
		return 0, 0
	}
	var sum float64
	for y := bounds.Min.Y; y < bounds.Max.Y; y++ {
		for x := bounds.Min.X; x < bounds.Max.X; x++ {
			sum += float64(g.GrayAt(x, y).Y)
		}
	}
	mean = sum / float64(n)
	var varSum float64
	for y := bounds.Min.Y; y < bounds.Max.Y; y++ {
		for x := bounds.Min.X; x < bounds.Max.X; x++ {
			d := float64(g.GrayAt(x, y).Y) - mean
			varSum += d * d
		}
	}
	return mean, math.Sqrt(varSum / float64(n))
}

// ChannelStats scans the RGB channels and returns the maximum single-channel
// intensity and the mean intensity across all channels (0-255 scale). The
// glare heuristic compares the two: blown-out highlights push the max toward
// 255 while the mean stays moderate.
func ChannelStats(img image.Image) (maxIntensity, meanIntensity float64) {
	bounds := img.Bounds()
	n := bounds.Dx() * bounds.Dy()
	if n == 0 {
		return 0, 0
	}
	var sum float64
	for y := bounds.Min.Y; y < bounds.Max.Y; y++ {
		for x := bounds.Min.X; x < bounds.Max.X; x++ {
			r, g, b, _ := img.At(x, y).RGBA()
			r8, g8, b8 := float64(r>>8), float64(g>>8), float64(b>>8)
			for _, c := range [3]float64{r8, g8, b8} {
				if c > maxIntensity {
					maxIntensity = c
				}
			}
			sum += (r8 + g8 + b8) / 3
		}
	}
	return maxIntensity, sum / float64(n)
}

// Histogram builds a 256-bin intensity histogram of a grayscale raster.
func Histogram(g *image.Gray) [256]int {
	var hist [256]int
	bounds := g.Bounds()
	for y := bounds.Min.Y; y < bounds.Max.Y; y++ {
		for x := bounds.Min.X; x < bounds.Max.X; x++ {
			hist[g.GrayAt(x, y).Y]++
		}
	}
	return hist
}

// SubGray extracts a copy of the given region, clamped to the raster bounds.
func SubGray(g *image.Gray, r image.Rectangle) *image.Gray {
	r = r.Intersect(g.Bounds())
	out := image.NewGray(image.Rect(0, 0, r.Dx(), r.Dy()))
	for y := 0; y < r.Dy(); y++ {
		for x := 0; x < r.Dx(); x++ {
			out.SetGray(x, y, g.GrayAt(r.Min.X+x, r.Min.Y+y))
		}
	}
	return out
}

// AspectRatio returns width divided by height, or 0 for degenerate images.
func AspectRatio(img image.Image) float64 {
	bounds := img.Bounds()
	if bounds.Dy() == 0 {
		return 0
	}
	return float64(bounds.Dx()) / float64(bounds.Dy())
}
