package rimage

import (
	"image"

	"go.viam.com/multiview/utils"
)

// binomial5 is the 5-tap binomial approximation of a Gaussian, the standard
// prefilter for 2x pyramid resampling.
var binomial5 = [5]float64{1, 4, 6, 4, 1}

const (
	// downsampleScale normalizes binomial5 so a single pass preserves energy.
	downsampleScale = 1.0 / 16.0
	// upsampleScale is 1/8, not 1/16: zero interleaving drops three of every
	// four samples, and the extra factor of 2 per axis compensates.
	upsampleScale = 1.0 / 8.0
)

// reflect101 maps an out-of-bounds index back into [0, n) by mirroring across
// the border without repeating the edge sample (OpenCV BORDER_REFLECT_101).
func reflect101(i, n int) int {
	if n == 1 {
		return 0
	}
	for i < 0 || i >= n {
		if i < 0 {
			i = -i
		}
		if i >= n {
			i = 2*(n-1) - i
		}
	}
	return i
}

// convolveSeparable applies the scaled binomial5 kernel along y and then
// along x, mirroring at the borders.
func convolveSeparable(img *FloatImage, scale float64) *FloatImage {
	width, height, channels := img.Dims()
	size := image.Point{width, height}

	vertical := NewFloatImage(width, height, channels)
	utils.ParallelForEachPixel(size, func(x, y int) {
		for c := 0; c < channels; c++ {
			var sum float64
			for k := -2; k <= 2; k++ {
				sum += binomial5[k+2] * img.At(x, reflect101(y+k, height), c)
			}
			vertical.Set(x, y, c, sum*scale)
		}
	})

	out := NewFloatImage(width, height, channels)
	utils.ParallelForEachPixel(size, func(x, y int) {
		for c := 0; c < channels; c++ {
			var sum float64
			for k := -2; k <= 2; k++ {
				sum += binomial5[k+2] * vertical.At(reflect101(x+k, width), y, c)
			}
			out.Set(x, y, c, sum*scale)
		}
	})
	return out
}

// Downsample prefilters img with the 1/16-scaled binomial kernel in both
// axes and keeps the even-indexed rows and columns, starting at index 0.
// The result is ceil(height/2) x ceil(width/2) with the channel count
// unchanged.
func Downsample(img *FloatImage) *FloatImage {
	width, height, channels := img.Dims()
	blurred := convolveSeparable(img, downsampleScale)

	outWidth := (width + 1) / 2
	outHeight := (height + 1) / 2
	out := NewFloatImage(outWidth, outHeight, channels)
	utils.ParallelForEachPixel(image.Point{outWidth, outHeight}, func(x, y int) {
		for c := 0; c < channels; c++ {
			out.Set(x, y, c, blurred.At(2*x, 2*y, c))
		}
	})
	return out
}

// Upsample doubles img in both axes: input samples land on the even-indexed
// coordinates, the odd ones start at zero, and the 1/8-scaled binomial kernel
// interpolates across both. The channel dimension is preserved, so a
// single-channel input yields a 2*height x 2*width x 1 output.
func Upsample(img *FloatImage) *FloatImage {
	width, height, channels := img.Dims()
	interleaved := NewFloatImage(2*width, 2*height, channels)
	utils.ParallelForEachPixel(image.Point{width, height}, func(x, y int) {
		for c := 0; c < channels; c++ {
			interleaved.Set(2*x, 2*y, c, img.At(x, y, c))
		}
	})
	return convolveSeparable(interleaved, upsampleScale)
}
