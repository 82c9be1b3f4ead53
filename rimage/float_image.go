// Package rimage provides dense floating-point image containers and the
// separable filters used to build Gaussian image pyramids.
package rimage

import (
	"image"

	"github.com/pkg/errors"
)

// FloatImage is a dense height x width x channels raster of float32 samples.
// Samples are stored flat in row-major order, channels innermost:
// index = (y*width + x)*channels + c. Arithmetic on samples is done in
// float64; storage stays single precision.
type FloatImage struct {
	width, height, channels int
	data                    []float32
}

// NewFloatImage returns a zero-filled image of the given dimensions.
// Width, height and channels must all be at least 1.
func NewFloatImage(width, height, channels int) *FloatImage {
	return &FloatImage{
		width:    width,
		height:   height,
		channels: channels,
		data:     make([]float32, width*height*channels),
	}
}

// NewFloatImageFromData wraps an existing row-major sample slice. The slice is
// used directly, not copied.
func NewFloatImageFromData(width, height, channels int, data []float32) (*FloatImage, error) {
	if len(data) != width*height*channels {
		return nil, errors.Errorf("expected %d samples for a %dx%dx%d image, got %d",
			width*height*channels, width, height, channels, len(data))
	}
	return &FloatImage{width: width, height: height, channels: channels, data: data}, nil
}

// Width returns the horizontal size in pixels.
func (fi *FloatImage) Width() int {
	return fi.width
}

// Height returns the vertical size in pixels.
func (fi *FloatImage) Height() int {
	return fi.height
}

// Channels returns the number of samples per pixel.
func (fi *FloatImage) Channels() int {
	return fi.channels
}

// Dims returns width, height and channels.
func (fi *FloatImage) Dims() (int, int, int) {
	return fi.width, fi.height, fi.channels
}

// Bounds returns the pixel bounds as an image.Rectangle.
func (fi *FloatImage) Bounds() image.Rectangle {
	return image.Rect(0, 0, fi.width, fi.height)
}

func (fi *FloatImage) index(x, y, c int) int {
	return (y*fi.width+x)*fi.channels + c
}

// At returns the sample at (x, y) in channel c.
func (fi *FloatImage) At(x, y, c int) float64 {
	return float64(fi.data[fi.index(x, y, c)])
}

// Set stores v at (x, y) in channel c.
func (fi *FloatImage) Set(x, y, c int, v float64) {
	fi.data[fi.index(x, y, c)] = float32(v)
}

// Pixel returns the channel slice backing the pixel at (x, y). The slice
// aliases the image data.
func (fi *FloatImage) Pixel(x, y int) []float32 {
	start := fi.index(x, y, 0)
	return fi.data[start : start+fi.channels]
}

// Clone returns a deep copy.
func (fi *FloatImage) Clone() *FloatImage {
	out := NewFloatImage(fi.width, fi.height, fi.channels)
	copy(out.data, fi.data)
	return out
}
