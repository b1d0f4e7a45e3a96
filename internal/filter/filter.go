package filter

import (
	"image"
	"image/color"
	"runtime"
	"sync"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat/distuv"
)

// Filter identifiers as they appear in upload headers.
const (
	Normal  = "normal"
	BW      = "bw"
	Vintage = "vintage"
)

// grainSigma is the standard deviation of the film-grain noise added by the
// vintage filter, in 8-bit channel units.
const grainSigma = 3.0

var displayNames = map[string]string{
	Normal:  "Normal Color",
	BW:      "Black & White",
	Vintage: "Vintage Sepia",
}

var transforms = map[string]func(image.Image) image.Image{
	BW:      blackAndWhite,
	Vintage: vintage,
}

// Apply runs the named filter over img and returns the filtered result.
// "normal" and unknown identifiers leave the image untouched, so Apply is
// total over arbitrary header input.
func Apply(img image.Image, id string) image.Image {
	if transform, ok := transforms[id]; ok {
		return transform(img)
	}
	return img
}

// Alters reports whether the identifier names a transform that changes
// pixels. Callers use it to skip a pointless re-encode for "normal".
func Alters(id string) bool {
	_, ok := transforms[id]
	return ok
}

// DisplayName maps a filter identifier to its gallery display name.
// Unknown identifiers read as unfiltered.
func DisplayName(id string) string {
	if name, ok := displayNames[id]; ok {
		return name
	}
	return displayNames[Normal]
}

// blackAndWhite converts to grayscale with Rec. 601 luma weights, replicated
// across all three channels so downstream consumers still see RGB.
func blackAndWhite(img image.Image) image.Image {
	bounds := img.Bounds()
	out := image.NewRGBA(bounds)

	eachRowStrip(bounds, func(startY, endY int) {
		for y := startY; y < endY; y++ {
			for x := bounds.Min.X; x < bounds.Max.X; x++ {
				r, g, b, a := img.At(x, y).RGBA()
				gray := 0.299*float64(r>>8) + 0.587*float64(g>>8) + 0.114*float64(b>>8)
				v := clampChannel(gray)
				out.SetRGBA(x, y, color.RGBA{v, v, v, uint8(a >> 8)})
			}
		}
	})
	return out
}

// vintage applies the classic sepia mix, darkens toward the edges with a
// Gaussian vignette, and adds film grain. Grain makes the output
// intentionally non-deterministic.
func vintage(img image.Image) image.Image {
	bounds := img.Bounds()
	width, height := bounds.Dx(), bounds.Dy()
	out := image.NewRGBA(bounds)
	if width == 0 || height == 0 {
		return out
	}

	mask := vignetteMask(width, height)
	grain := distuv.Normal{Mu: 0, Sigma: grainSigma}

	eachRowStrip(bounds, func(startY, endY int) {
		for y := startY; y < endY; y++ {
			for x := bounds.Min.X; x < bounds.Max.X; x++ {
				r, g, b, a := img.At(x, y).RGBA()
				rf, gf, bf := float64(r>>8), float64(g>>8), float64(b>>8)

				// Sepia overflows bright pixels, so clamp before the
				// vignette scales them back down.
				sr := clampFloat(0.393*rf + 0.769*gf + 0.189*bf)
				sg := clampFloat(0.349*rf + 0.686*gf + 0.168*bf)
				sb := clampFloat(0.272*rf + 0.534*gf + 0.131*bf)

				m := mask[(y-bounds.Min.Y)*width+(x-bounds.Min.X)]
				out.SetRGBA(x, y, color.RGBA{
					clampChannel(sr*m + grain.Rand()),
					clampChannel(sg*m + grain.Rand()),
					clampChannel(sb*m + grain.Rand()),
					uint8(a >> 8),
				})
			}
		}
	})
	return out
}

// vignetteMask builds per-pixel brightness weights as the outer product of
// two 1-D Gaussian kernels (sigma = dimension/3), normalized so the peak
// weight is 1.0 at the image center.
func vignetteMask(width, height int) []float64 {
	kx := gaussianKernel(width)
	ky := gaussianKernel(height)

	mask := make([]float64, width*height)
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			mask[y*width+x] = ky[y] * kx[x]
		}
	}
	if max := floats.Max(mask); max > 0 {
		floats.Scale(1/max, mask)
	}
	return mask
}

// gaussianKernel samples a normal density centered on the kernel midpoint.
func gaussianKernel(n int) []float64 {
	dist := distuv.Normal{Mu: float64(n-1) / 2, Sigma: float64(n) / 3}
	kernel := make([]float64, n)
	for i := range kernel {
		kernel[i] = dist.Prob(float64(i))
	}
	return kernel
}

// eachRowStrip fans rows out across CPU-count goroutines in horizontal
// strips. fn must only touch rows in [startY, endY); strips are disjoint so
// writers never overlap.
func eachRowStrip(bounds image.Rectangle, fn func(startY, endY int)) {
	height := bounds.Dy()
	if height == 0 {
		return
	}
	numWorkers := runtime.NumCPU()
	if height < numWorkers {
		numWorkers = height
	}
	rowsPerWorker := (height + numWorkers - 1) / numWorkers // ceil division

	var wg sync.WaitGroup
	for i := 0; i < numWorkers; i++ {
		startY := bounds.Min.Y + i*rowsPerWorker
		endY := startY + rowsPerWorker
		if endY > bounds.Max.Y {
			endY = bounds.Max.Y
		}
		if startY >= endY {
			continue
		}
		wg.Add(1)
		go func(startY, endY int) {
			defer wg.Done()
			fn(startY, endY)
		}(startY, endY)
	}
	wg.Wait()
}

func clampFloat(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 255 {
		return 255
	}
	return v
}

func clampChannel(v float64) uint8 {
	return uint8(clampFloat(v) + 0.5)
}
