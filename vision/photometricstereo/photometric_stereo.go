// Package photometricstereo recovers per-pixel albedo and surface normals of
// a Lambertian scene from images taken under known directional lighting.
package photometricstereo

import (
	"image"
	"math"
	"sync/atomic"

	"github.com/edaniels/golog"
	"github.com/pkg/errors"
	"gonum.org/v1/gonum/mat"

	"go.viam.com/multiview/rimage"
	"go.viam.com/multiview/utils"
)

var logger = golog.NewLogger("photometricstereo")

// degenerateNorm is the cutoff below which a pixel's solution is considered
// unlit and both its albedo and normal are forced to exact zero.
const degenerateNorm = 1e-7

// lightPseudoInverse returns lights^T * (lights * lights^T)^-1, the N x 3
// right pseudo-inverse shared by every pixel's least-squares solve. A rank
// deficient light matrix surfaces as an inversion error.
func lightPseudoInverse(lights *mat.Dense) (*mat.Dense, error) {
	var gram mat.Dense
	gram.Mul(lights, lights.T())
	var gramInv mat.Dense
	if err := gramInv.Inverse(&gram); err != nil {
		return nil, errors.Wrap(err, "light direction matrix is rank deficient")
	}
	var pinv mat.Dense
	pinv.Mul(lights.T(), &gramInv)
	return &pinv, nil
}

// ComputeAlbedoAndNormals solves, per pixel, the Lambertian model
// intensity_j = albedo * (normal . light_j) in the least-squares sense.
//
// lights is 3 x N, one unit light direction per column; images holds the N
// corresponding views of the scene, all with identical dimensions. Intensity
// for the normal solve is read from channel 0; albedo is then re-fit per
// channel in closed form. The returned albedo matches the input channel
// count and normals is height x width x 3 with unit-length rows wherever
// albedo is nonzero.
func ComputeAlbedoAndNormals(
	lights *mat.Dense,
	images []*rimage.FloatImage,
) (*rimage.FloatImage, *rimage.FloatImage, error) {
	if lights == nil {
		return nil, nil, errors.New("light direction matrix is nil")
	}
	rows, n := lights.Dims()
	if rows != 3 {
		return nil, nil, errors.Errorf("light direction matrix must be 3xN, got %dx%d", rows, n)
	}
	if len(images) == 0 {
		return nil, nil, errors.New("need at least one image")
	}
	if n != len(images) {
		return nil, nil, errors.Errorf("have %d images but %d light directions", len(images), n)
	}
	width, height, channels := images[0].Dims()
	for j, img := range images {
		if w, h, c := img.Dims(); w != width || h != height || c != channels {
			return nil, nil, errors.Errorf("image %d is %dx%dx%d, want %dx%dx%d like image 0",
				j, w, h, c, width, height, channels)
		}
	}

	pinv, err := lightPseudoInverse(lights)
	if err != nil {
		return nil, nil, err
	}

	albedo := rimage.NewFloatImage(width, height, channels)
	normals := rimage.NewFloatImage(width, height, 3)
	var degenerate int64
	utils.ParallelForEachPixel(image.Point{width, height}, func(x, y int) {
		// g = I * lights^T * (lights * lights^T)^-1, a 3-vector whose
		// magnitude is the grayscale albedo and direction the normal.
		var g0, g1, g2 float64
		for j := 0; j < n; j++ {
			intensity := images[j].At(x, y, 0)
			g0 += intensity * pinv.At(j, 0)
			g1 += intensity * pinv.At(j, 1)
			g2 += intensity * pinv.At(j, 2)
		}
		kd := math.Sqrt(g0*g0 + g1*g1 + g2*g2)
		div := kd
		if kd == 0 {
			div = degenerateNorm
		}
		n0, n1, n2 := g0/div, g1/div, g2/div
		if kd == 0 {
			n0, n1, n2 = 0, 0, 0
		}

		// Re-fit albedo per channel: argmin_a sum_j ((n.l_j)*a - p_j)^2.
		var albedoNormSq float64
		pixel := make([]float64, channels)
		for c := 0; c < channels; c++ {
			var num, den float64
			for j := 0; j < n; j++ {
				shade := n0*lights.At(0, j) + n1*lights.At(1, j) + n2*lights.At(2, j)
				num += shade * images[j].At(x, y, c)
				den += shade * shade
			}
			if den == 0 {
				den = 1
			}
			pixel[c] = num / den
			albedoNormSq += pixel[c] * pixel[c]
		}

		if math.Sqrt(albedoNormSq) < degenerateNorm {
			atomic.AddInt64(&degenerate, 1)
			return
		}
		for c := 0; c < channels; c++ {
			albedo.Set(x, y, c, pixel[c])
		}
		normals.Set(x, y, 0, n0)
		normals.Set(x, y, 1, n1)
		normals.Set(x, y, 2, n2)
	})
	if degenerate > 0 {
		logger.Debugf("zeroed albedo and normal at %d of %d pixels", degenerate, width*height)
	}
	return albedo, normals, nil
}
