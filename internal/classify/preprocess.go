package classify

import (
	"image"
	"image/draw"

	"github.com/nfnt/resize"
)

const (
	// inputSize is the square crop fed to the model.
	inputSize = 224
	// resizeTarget is the short-side length before cropping.
	resizeTarget = 256
)

// ImageNet channel statistics; the model was trained on inputs normalized
// with these.
var (
	imagenetMean = [3]float32{0.485, 0.456, 0.406}
	imagenetStd  = [3]float32{0.229, 0.224, 0.225}
)

// preprocess converts an image into the model's input layout: scale the
// short side to 256, center-crop 224x224, normalize per channel and lay the
// result out as CHW planes.
func preprocess(img image.Image) []float32 {
	cropped := centerCrop(scaleShortSide(img, resizeTarget), inputSize)

	bounds := cropped.Bounds()
	width, height := bounds.Dx(), bounds.Dy()
	plane := width * height
	data := make([]float32, 3*plane)

	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			r, g, b, _ := cropped.At(bounds.Min.X+x, bounds.Min.Y+y).RGBA()
			idx := y*width + x
			data[idx] = (float32(r)/65535.0 - imagenetMean[0]) / imagenetStd[0]
			data[plane+idx] = (float32(g)/65535.0 - imagenetMean[1]) / imagenetStd[1]
			data[2*plane+idx] = (float32(b)/65535.0 - imagenetMean[2]) / imagenetStd[2]
		}
	}
	return data
}

// scaleShortSide resizes so the shorter dimension equals target, preserving
// aspect ratio.
func scaleShortSide(img image.Image, target uint) image.Image {
	bounds := img.Bounds()
	if bounds.Dx() <= bounds.Dy() {
		return resize.Resize(target, 0, img, resize.Lanczos3)
	}
	return resize.Resize(0, target, img, resize.Lanczos3)
}

// centerCrop cuts a size x size square from the middle of the image.
func centerCrop(img image.Image, size int) image.Image {
	bounds := img.Bounds()
	offsetX := bounds.Min.X + (bounds.Dx()-size)/2
	offsetY := bounds.Min.Y + (bounds.Dy()-size)/2

	cropped := image.NewRGBA(image.Rect(0, 0, size, size))
	draw.Draw(cropped, cropped.Bounds(), img, image.Pt(offsetX, offsetY), draw.Src)
	return cropped
}
