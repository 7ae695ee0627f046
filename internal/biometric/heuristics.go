package biometric

import (
	"image"
	"math"

	"veridoc/internal/imaging"
)

// Pixel-domain anti-spoofing scores. Each returns a value in [0,1] where
// higher means more consistent with a live capture. They are intentionally
// independent; the liveness verdict votes across all eight.

const analysisSide = 64

// textureScore measures local-binary-pattern richness at radii 1 and 2.
// Live skin produces varied micro-texture; prints and screens flatten it.
func textureScore(gray *image.Gray) float64 {
	small := imaging.Downsample(gray, analysisSide, analysisSide)
	return (lbpEntropy(small, 1) + lbpEntropy(small, 2)) / 2
}

// lbpEntropy computes the normalized entropy of the LBP code histogram at
// the given neighbor radius.
func lbpEntropy(g *image.Gray, radius int) float64 {
	bounds := g.Bounds()
	var hist [256]int
	total := 0
	for y := bounds.Min.Y + radius; y < bounds.Max.Y-radius; y++ {
		for x := bounds.Min.X + radius; x < bounds.Max.X-radius; x++ {
			center := g.GrayAt(x, y).Y
			code := 0
			offsets := [8][2]int{
				{-radius, -radius}, {0, -radius}, {radius, -radius},
				{radius, 0}, {radius, radius}, {0, radius},
				{-radius, radius}, {-radius, 0},
			}
			for bit, off := range offsets {
				if g.GrayAt(x+off[0], y+off[1]).Y >= center {
					code |= 1 << bit
				}
			}
			hist[code]++
			total++
		}
	}
	if total == 0 {
		return 0
	}
	var entropy float64
	for _, count := range hist {
		if count == 0 {
			continue
		}
		p := float64(count) / float64(total)
		entropy -= p * math.Log2(p)
	}
	return clamp01(entropy / 8)
}

// skinScore checks that a plausible share of the frame is skin-toned, using
// the classic RGB skin rule.
func skinScore(img image.Image) float64 {
	bounds := img.Bounds()
	stride := bounds.Dx() / analysisSide
	if stride < 1 {
		stride = 1
	}
	var skin, total float64
	for y := bounds.Min.Y; y < bounds.Max.Y; y += stride {
		for x := bounds.Min.X; x < bounds.Max.X; x += stride {
			r16, g16, b16, _ := img.At(x, y).RGBA()
			r, g, b := float64(r16>>8), float64(g16>>8), float64(b16>>8)
			maxC := math.Max(r, math.Max(g, b))
			minC := math.Min(r, math.Min(g, b))
			if r > 95 && g > 40 && b > 20 && maxC-minC > 15 &&
				math.Abs(r-g) > 15 && r > g && r > b {
				skin++
			}
			total++
		}
	}
	if total == 0 {
		return 0
	}
	fraction := skin / total
	switch {
	case fraction >= 0.15 && fraction <= 0.7:
		return 1
	case fraction < 0.15:
		return fraction / 0.15
	default:
		return clamp01((1 - fraction) / 0.3)
	}
}

// moireScore penalizes periodic high-frequency patterns, the signature of a
// rephotographed screen. Inverse score: strong periodicity scores low.
func moireScore(gray *image.Gray) float64 {
	rows := projectionDiffs(gray, true)
	cols := projectionDiffs(gray, false)
	peak := math.Max(autocorrelationPeak(rows, 2, 16), autocorrelationPeak(cols, 2, 16))
	return clamp01(1 - peak)
}

// highlightScore expects small, localized specular highlights. Large
// blown-out areas point at glossy prints or screens.
func highlightScore(gray *image.Gray) float64 {
	hist := imaging.Histogram(gray)
	bounds := gray.Bounds()
	total := bounds.Dx() * bounds.Dy()
	if total == 0 {
		return 0
	}
	bright := 0
	for v := 251; v < 256; v++ {
		bright += hist[v]
	}
	fraction := float64(bright) / float64(total)
	if fraction <= 0.02 {
		return 1
	}
	return clamp01(1 - (fraction-0.02)/0.2)
}

// depthScore expects sharpness to vary across the frame: a real scene has a
// focused face against a softer background, a flat reproduction is uniformly
// sharp or uniformly soft.
func depthScore(gray *image.Gray) float64 {
	bounds := gray.Bounds()
	w, h := bounds.Dx()/3, bounds.Dy()/3
	if w == 0 || h == 0 {
		return 0
	}
	var sharpness []float64
	var sum float64
	for ry := 0; ry < 3; ry++ {
		for rx := 0; rx < 3; rx++ {
			region := imaging.SubGray(gray, image.Rect(
				bounds.Min.X+rx*w, bounds.Min.Y+ry*h,
				bounds.Min.X+(rx+1)*w, bounds.Min.Y+(ry+1)*h,
			))
			v := imaging.LaplacianVariance(region)
			sharpness = append(sharpness, v)
			sum += v
		}
	}
	mean := sum / float64(len(sharpness))
	if mean == 0 {
		return 0
	}
	var varSum float64
	for _, v := range sharpness {
		d := v - mean
		varSum += d * d
	}
	cv := math.Sqrt(varSum/float64(len(sharpness))) / mean
	return clamp01(cv)
}

// borderScore penalizes strong edges concentrated near the frame border,
// where the outline of a held-up printed photo lands. Inverse score.
func borderScore(gray *image.Gray) float64 {
	bounds := gray.Bounds()
	band := bounds.Dx() / 12
	if bandY := bounds.Dy() / 12; bandY < band {
		band = bandY
	}
	if band < 1 {
		return 0.5
	}
	inner := image.Rect(bounds.Min.X+band, bounds.Min.Y+band, bounds.Max.X-band, bounds.Max.Y-band)
	interior := meanGradient(gray, inner)
	whole := meanGradient(gray, bounds)
	if whole == 0 {
		return 0.5
	}
	// Border gradient dominating the interior reads as a pasted rectangle.
	ratio := whole / (interior + 1e-6)
	return clamp01(1 - (ratio-1)/2)
}

// printScore blends three print-artifact cues: color-quantization diversity,
// halftone periodicity, and RGB channel alignment.
func printScore(img image.Image) float64 {
	diversity := colorDiversity(img)
	gray := imaging.Gray(img)
	halftone := 1 - autocorrelationPeak(projectionDiffs(gray, true), 3, 8)
	alignment := channelAlignment(img)
	return clamp01((diversity + clamp01(halftone) + alignment) / 3)
}

// reflectionScore expects moderate lighting variation across quadrants.
// A screen's uniform backlight or a flash bouncing off glossy paper both
// push the spread out of the live band.
func reflectionScore(gray *image.Gray) float64 {
	bounds := gray.Bounds()
	w, h := bounds.Dx()/2, bounds.Dy()/2
	if w == 0 || h == 0 {
		return 0
	}
	var means []float64
	for ry := 0; ry < 2; ry++ {
		for rx := 0; rx < 2; rx++ {
			quadrant := imaging.SubGray(gray, image.Rect(
				bounds.Min.X+rx*w, bounds.Min.Y+ry*h,
				bounds.Min.X+(rx+1)*w, bounds.Min.Y+(ry+1)*h,
			))
			mean, _ := imaging.MeanStd(quadrant)
			means = append(means, mean)
		}
	}
	minM, maxM := means[0], means[0]
	for _, m := range means[1:] {
		minM = math.Min(minM, m)
		maxM = math.Max(maxM, m)
	}
	spread := (maxM - minM) / 255
	switch {
	case spread < 0.02:
		return spread / 0.02 * 0.4
	case spread <= 0.3:
		return 1
	default:
		return clamp01(1 - (spread-0.3)/0.4)
	}
}

// projectionDiffs returns first differences of row (or column) mean
// intensities, the 1-D signal the periodicity checks run on.
func projectionDiffs(gray *image.Gray, rows bool) []float64 {
	bounds := gray.Bounds()
	outer, inner := bounds.Dy(), bounds.Dx()
	if !rows {
		outer, inner = inner, outer
	}
	means := make([]float64, outer)
	for i := 0; i < outer; i++ {
		var sum float64
		for j := 0; j < inner; j++ {
			x, y := j, i
			if !rows {
				x, y = i, j
			}
			sum += float64(gray.GrayAt(bounds.Min.X+x, bounds.Min.Y+y).Y)
		}
		means[i] = sum / float64(inner)
	}
	diffs := make([]float64, 0, len(means)-1)
	for i := 1; i < len(means); i++ {
		diffs = append(diffs, means[i]-means[i-1])
	}
	return diffs
}

// autocorrelationPeak returns the strongest normalized autocorrelation of a
// signal across the lag range, clamped to [0,1].
func autocorrelationPeak(signal []float64, minLag, maxLag int) float64 {
	n := len(signal)
	if n < minLag*2 {
		return 0
	}
	var energy float64
	for _, v := range signal {
		energy += v * v
	}
	if energy == 0 {
		return 0
	}
	var peak float64
	for lag := minLag; lag <= maxLag && lag < n; lag++ {
		var corr float64
		for i := 0; i+lag < n; i++ {
			corr += signal[i] * signal[i+lag]
		}
		peak = math.Max(peak, corr/energy)
	}
	return clamp01(peak)
}

// meanGradient averages horizontal+vertical gradient magnitude over a region.
func meanGradient(gray *image.Gray, r image.Rectangle) float64 {
	r = r.Intersect(gray.Bounds())
	if r.Dx() < 2 || r.Dy() < 2 {
		return 0
	}
	var sum float64
	var count int
	for y := r.Min.Y + 1; y < r.Max.Y; y++ {
		for x := r.Min.X + 1; x < r.Max.X; x++ {
			v := float64(gray.GrayAt(x, y).Y)
			dx := math.Abs(v - float64(gray.GrayAt(x-1, y).Y))
			dy := math.Abs(v - float64(gray.GrayAt(x, y-1).Y))
			sum += dx + dy
			count++
		}
	}
	return sum / float64(count)
}

// colorDiversity counts distinct 12-bit quantized colors on a sampled grid.
// Continuous-tone captures carry far more distinct colors than prints.
func colorDiversity(img image.Image) float64 {
	bounds := img.Bounds()
	stride := bounds.Dx() / analysisSide
	if stride < 1 {
		stride = 1
	}
	seen := make(map[uint16]struct{})
	for y := bounds.Min.Y; y < bounds.Max.Y; y += stride {
		for x := bounds.Min.X; x < bounds.Max.X; x += stride {
			r, g, b, _ := img.At(x, y).RGBA()
			code := uint16(r>>12)<<8 | uint16(g>>12)<<4 | uint16(b>>12)
			seen[code] = struct{}{}
		}
	}
	return clamp01(float64(len(seen)) / 256)
}

// channelAlignment correlates the red and blue gradient fields. Print
// misregistration drives the channels apart.
func channelAlignment(img image.Image) float64 {
	bounds := img.Bounds()
	stride := bounds.Dx() / analysisSide
	if stride < 1 {
		stride = 1
	}
	var dotRB, normR, normB float64
	for y := bounds.Min.Y + stride; y < bounds.Max.Y; y += stride {
		for x := bounds.Min.X + stride; x < bounds.Max.X; x += stride {
			r1, _, b1, _ := img.At(x, y).RGBA()
			r0, _, b0, _ := img.At(x-stride, y).RGBA()
			gr := float64(r1>>8) - float64(r0>>8)
			gb := float64(b1>>8) - float64(b0>>8)
			dotRB += gr * gb
			normR += gr * gr
			normB += gb * gb
		}
	}
	if normR == 0 || normB == 0 {
		return 0.5
	}
	return clamp01(dotRB / math.Sqrt(normR*normB))
}
