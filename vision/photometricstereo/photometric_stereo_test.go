package photometricstereo

import (
	"math"
	"testing"

	"go.viam.com/test"
	"gonum.org/v1/gonum/mat"

	"go.viam.com/multiview/rimage"
)

// testLights returns four unit light directions, all with a positive z
// component so every test normal is lit.
func testLights() *mat.Dense {
	cols := [][3]float64{
		{0, 0, 1},
		{1, 0, 1},
		{0, 1, 1},
		{-1, 1, 1},
	}
	lights := mat.NewDense(3, 4, nil)
	for j, c := range cols {
		norm := math.Sqrt(c[0]*c[0] + c[1]*c[1] + c[2]*c[2])
		lights.Set(0, j, c[0]/norm)
		lights.Set(1, j, c[1]/norm)
		lights.Set(2, j, c[2]/norm)
	}
	return lights
}

// renderLambertian builds one image per light with
// value(x, y, c) = albedo[c](x, y) * (normal(x, y) . light_j).
func renderLambertian(
	lights *mat.Dense,
	width, height int,
	normalAt func(x, y int) [3]float64,
	albedoAt func(x, y, c int) float64,
	channels int,
) []*rimage.FloatImage {
	_, n := lights.Dims()
	images := make([]*rimage.FloatImage, n)
	for j := 0; j < n; j++ {
		img := rimage.NewFloatImage(width, height, channels)
		for y := 0; y < height; y++ {
			for x := 0; x < width; x++ {
				nrm := normalAt(x, y)
				shade := nrm[0]*lights.At(0, j) + nrm[1]*lights.At(1, j) + nrm[2]*lights.At(2, j)
				for c := 0; c < channels; c++ {
					img.Set(x, y, c, albedoAt(x, y, c)*shade)
				}
			}
		}
		images[j] = img
	}
	return images
}

func TestComputeAlbedoAndNormals(t *testing.T) {
	lights := testLights()
	const width, height, channels = 3, 2, 2

	normalAt := func(x, y int) [3]float64 {
		v := [3]float64{0.3*float64(x) - 0.3, 0.2*float64(y) - 0.1, 1}
		norm := math.Sqrt(v[0]*v[0] + v[1]*v[1] + v[2]*v[2])
		return [3]float64{v[0] / norm, v[1] / norm, v[2] / norm}
	}
	albedoAt := func(x, y, c int) float64 {
		if x == 2 && y == 1 {
			return 0 // unlit pixel, must come back as exact zeros
		}
		if c == 0 {
			return 0.5 + 0.1*float64(x+y)
		}
		return 0.9 - 0.05*float64(x)
	}

	images := renderLambertian(lights, width, height, normalAt, albedoAt, channels)
	albedo, normals, err := ComputeAlbedoAndNormals(lights, images)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, albedo.Channels(), test.ShouldEqual, channels)
	test.That(t, normals.Channels(), test.ShouldEqual, 3)

	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			if x == 2 && y == 1 {
				for c := 0; c < channels; c++ {
					test.That(t, albedo.At(x, y, c), test.ShouldEqual, 0)
				}
				for c := 0; c < 3; c++ {
					test.That(t, normals.At(x, y, c), test.ShouldEqual, 0)
				}
				continue
			}
			for c := 0; c < channels; c++ {
				test.That(t, albedo.At(x, y, c), test.ShouldAlmostEqual, albedoAt(x, y, c), 1e-4)
			}
			want := normalAt(x, y)
			normSq := 0.0
			for c := 0; c < 3; c++ {
				test.That(t, normals.At(x, y, c), test.ShouldAlmostEqual, want[c], 1e-4)
				normSq += normals.At(x, y, c) * normals.At(x, y, c)
			}
			test.That(t, math.Sqrt(normSq), test.ShouldAlmostEqual, 1, 1e-5)
		}
	}
}

func TestComputeAlbedoAndNormalsAllDark(t *testing.T) {
	lights := testLights()
	images := make([]*rimage.FloatImage, 4)
	for j := range images {
		images[j] = rimage.NewFloatImage(2, 2, 1)
	}
	albedo, normals, err := ComputeAlbedoAndNormals(lights, images)
	test.That(t, err, test.ShouldBeNil)
	for y := 0; y < 2; y++ {
		for x := 0; x < 2; x++ {
			test.That(t, albedo.At(x, y, 0), test.ShouldEqual, 0)
			for c := 0; c < 3; c++ {
				test.That(t, normals.At(x, y, c), test.ShouldEqual, 0)
			}
		}
	}
}

func TestComputeAlbedoAndNormalsDegenerateLights(t *testing.T) {
	// two identical lights span a rank 1 system
	lights := mat.NewDense(3, 2, []float64{
		0, 0,
		0, 0,
		1, 1,
	})
	images := []*rimage.FloatImage{
		rimage.NewFloatImage(2, 2, 1),
		rimage.NewFloatImage(2, 2, 1),
	}
	_, _, err := ComputeAlbedoAndNormals(lights, images)
	test.That(t, err, test.ShouldNotBeNil)
}

func TestComputeAlbedoAndNormalsValidation(t *testing.T) {
	lights := testLights()

	_, _, err := ComputeAlbedoAndNormals(nil, nil)
	test.That(t, err, test.ShouldNotBeNil)

	_, _, err = ComputeAlbedoAndNormals(lights, nil)
	test.That(t, err, test.ShouldNotBeNil)

	// three images for four lights
	images := []*rimage.FloatImage{
		rimage.NewFloatImage(2, 2, 1),
		rimage.NewFloatImage(2, 2, 1),
		rimage.NewFloatImage(2, 2, 1),
	}
	_, _, err = ComputeAlbedoAndNormals(lights, images)
	test.That(t, err, test.ShouldNotBeNil)

	// mismatched image sizes
	images = append(images, rimage.NewFloatImage(3, 2, 1))
	_, _, err = ComputeAlbedoAndNormals(lights, images)
	test.That(t, err, test.ShouldNotBeNil)

	_, _, err = ComputeAlbedoAndNormals(mat.NewDense(2, 4, nil), images)
	test.That(t, err, test.ShouldNotBeNil)
}
