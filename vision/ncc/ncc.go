// Package ncc implements the per-pixel patch preprocessing and scoring
// primitive of normalized cross-correlation matching.
package ncc

import (
	"image"

	"github.com/pkg/errors"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"

	"go.viam.com/multiview/rimage"
	"go.viam.com/multiview/utils"
)

// normEpsilon is the cutoff below which a mean-subtracted patch vector is
// considered flat and zeroed instead of normalized.
const normEpsilon = 1e-6

// Preprocess extracts, for every pixel, the patchSize x patchSize
// neighborhood centered on it and turns it into a feature vector of length
// channels * patchSize^2. The vector is laid out in channel-major blocks,
// row-major within each block. The mean of the whole vector is subtracted
// (not a per-channel mean) and the result divided by its L2 norm; vectors
// with norm below normEpsilon come back as exact zeros, as do all pixels
// whose window would cross the image border.
//
// patchSize must be odd so the window is symmetric around the center pixel.
func Preprocess(img *rimage.FloatImage, patchSize int) (*rimage.FloatImage, error) {
	if patchSize < 1 || patchSize%2 == 0 {
		return nil, errors.Errorf("patch size must be a positive odd integer, got %d", patchSize)
	}
	width, height, channels := img.Dims()
	half := patchSize / 2
	dim := channels * patchSize * patchSize

	features := rimage.NewFloatImage(width, height, dim)
	utils.ParallelForEachPixel(image.Point{width, height}, func(x, y int) {
		if x-half < 0 || y-half < 0 || x+half >= width || y+half >= height {
			return
		}
		vec := make([]float64, dim)
		i := 0
		for c := 0; c < channels; c++ {
			for dy := -half; dy <= half; dy++ {
				for dx := -half; dx <= half; dx++ {
					vec[i] = img.At(x+dx, y+dy, c)
					i++
				}
			}
		}
		mean := floats.Sum(vec) / float64(dim)
		floats.AddConst(-mean, vec)
		norm := floats.Norm(vec, 2)
		if norm < normEpsilon {
			return
		}
		for i, v := range vec {
			features.Set(x, y, i, v/norm)
		}
	})
	return features, nil
}

// Correlate computes the per-pixel dot product of two preprocessed feature
// images, yielding the height x width NCC score plane. Both inputs must come
// from Preprocess calls with identical image dimensions and patch size.
func Correlate(features1, features2 *rimage.FloatImage) (*mat.Dense, error) {
	w1, h1, c1 := features1.Dims()
	w2, h2, c2 := features2.Dims()
	if w1 != w2 || h1 != h2 || c1 != c2 {
		return nil, errors.Errorf("feature dimensions do not match: %dx%dx%d vs %dx%dx%d",
			w1, h1, c1, w2, h2, c2)
	}
	ncc := mat.NewDense(h1, w1, nil)
	utils.ParallelForEachPixel(image.Point{w1, h1}, func(x, y int) {
		var sum float64
		for c := 0; c < c1; c++ {
			sum += features1.At(x, y, c) * features2.At(x, y, c)
		}
		ncc.Set(y, x, sum)
	})
	return ncc, nil
}
