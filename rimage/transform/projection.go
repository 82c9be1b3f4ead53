// Package transform projects points between 3D world space and the pinhole
// camera image plane.
package transform

import (
	"image"

	"github.com/golang/geo/r3"
	"github.com/pkg/errors"
	"go.uber.org/multierr"
	"gonum.org/v1/gonum/mat"

	"go.viam.com/multiview/rimage"
	"go.viam.com/multiview/utils"
)

// zEpsilon is the smallest camera-space depth treated as in front of the
// camera. Anything closer projects to exactly (0, 0) rather than blowing up.
const zEpsilon = 1e-7

// Intrinsics3x3 builds the camera matrix
//
//	[[fx 0 ppx],
//	 [0 fy ppy],
//	 [0 0  1]]
func Intrinsics3x3(fx, fy, ppx, ppy float64) *mat.Dense {
	intrinsics := mat.NewDense(3, 3, nil)
	intrinsics.Set(0, 0, fx)
	intrinsics.Set(1, 1, fy)
	intrinsics.Set(0, 2, ppx)
	intrinsics.Set(1, 2, ppy)
	intrinsics.Set(2, 2, 1)
	return intrinsics
}

// Extrinsics3x4 augments a 3x3 rotation and a translation into the camera
// pose matrix [R | t].
func Extrinsics3x4(rotation *mat.Dense, translation r3.Vector) *mat.Dense {
	t := mat.NewDense(3, 1, []float64{translation.X, translation.Y, translation.Z})
	var pose mat.Dense
	pose.Augment(rotation, t)
	return &pose
}

// CheckIntrinsics verifies the intrinsics matrix is 3x3.
func CheckIntrinsics(intrinsics mat.Matrix) error {
	if intrinsics == nil {
		return errors.New("camera intrinsics matrix is nil")
	}
	if r, c := intrinsics.Dims(); r != 3 || c != 3 {
		return errors.Errorf("camera intrinsics must be 3x3, got %dx%d", r, c)
	}
	return nil
}

// CheckExtrinsics verifies the extrinsics matrix is 3x4.
func CheckExtrinsics(extrinsics mat.Matrix) error {
	if extrinsics == nil {
		return errors.New("camera extrinsics matrix is nil")
	}
	if r, c := extrinsics.Dims(); r != 3 || c != 4 {
		return errors.Errorf("camera extrinsics must be 3x4, got %dx%d", r, c)
	}
	return nil
}

// ProjectPoints projects a height x width x 3 grid of 3D world points into a
// calibrated camera, yielding a height x width x 2 grid of pixel coordinates.
// Points with camera-space depth below zEpsilon are degenerate and map to
// exactly (0, 0).
func ProjectPoints(intrinsics, extrinsics *mat.Dense, points *rimage.FloatImage) (*rimage.FloatImage, error) {
	if err := multierr.Combine(CheckIntrinsics(intrinsics), CheckExtrinsics(extrinsics)); err != nil {
		return nil, err
	}
	if points.Channels() != 3 {
		return nil, errors.Errorf("points must have 3 channels, got %d", points.Channels())
	}

	// cam = K * [R | t], shared by every point.
	var cam mat.Dense
	cam.Mul(intrinsics, extrinsics)

	width, height := points.Width(), points.Height()
	proj := rimage.NewFloatImage(width, height, 2)
	utils.ParallelForEachPixel(image.Point{width, height}, func(x, y int) {
		px, py, pz := points.At(x, y, 0), points.At(x, y, 1), points.At(x, y, 2)
		locX := cam.At(0, 0)*px + cam.At(0, 1)*py + cam.At(0, 2)*pz + cam.At(0, 3)
		locY := cam.At(1, 0)*px + cam.At(1, 1)*py + cam.At(1, 2)*pz + cam.At(1, 3)
		locZ := cam.At(2, 0)*px + cam.At(2, 1)*py + cam.At(2, 2)*pz + cam.At(2, 3)
		if locZ >= zEpsilon {
			proj.Set(x, y, 0, locX/locZ)
			proj.Set(x, y, 1, locY/locZ)
		}
	})
	return proj, nil
}

// UnprojectCorners casts rays through the four image corners (0,0), (width,0),
// (0,height) and (width,height), scales them to the given depth, and returns
// the corresponding world points arranged as a 2x2 grid:
//
//	 (0, 0)      |  (width, 0)
//	-------------+------------------
//	 (0, height) |  (width, height)
//
// The ray through pixel (x, y) is K^-1 * (x, y, 1); the world point is
// R^T * (depth * ray) - R^T * t.
func UnprojectCorners(
	intrinsics *mat.Dense,
	width, height int,
	depth float64,
	extrinsics *mat.Dense,
) ([2][2]r3.Vector, error) {
	var corners [2][2]r3.Vector
	if err := multierr.Combine(CheckIntrinsics(intrinsics), CheckExtrinsics(extrinsics)); err != nil {
		return corners, err
	}

	var kInv mat.Dense
	if err := kInv.Inverse(intrinsics); err != nil {
		return corners, errors.Wrap(err, "cannot invert camera intrinsics")
	}

	rotation := extrinsics.Slice(0, 3, 0, 3)
	translation := mat.NewVecDense(3, []float64{extrinsics.At(0, 3), extrinsics.At(1, 3), extrinsics.At(2, 3)})
	// camToWorld offset = R^T * t, shared by all four corners.
	var offset mat.VecDense
	offset.MulVec(rotation.T(), translation)

	for i, v := range []float64{0, float64(height)} {
		for j, u := range []float64{0, float64(width)} {
			pixel := mat.NewVecDense(3, []float64{u, v, 1})
			var ray mat.VecDense
			ray.MulVec(&kInv, pixel)
			ray.ScaleVec(depth, &ray)

			var world mat.VecDense
			world.MulVec(rotation.T(), &ray)
			world.SubVec(&world, &offset)
			corners[i][j] = r3.Vector{X: world.AtVec(0), Y: world.AtVec(1), Z: world.AtVec(2)}
		}
	}
	return corners, nil
}
