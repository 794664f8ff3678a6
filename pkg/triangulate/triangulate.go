// Package triangulate implements linear (DLT) stereo/multi-view
// triangulation of a single 3D point from its normalized-camera-plane
// observations in two or more calibrated views.
package triangulate

import (
	"errors"
	"fmt"

	"gonum.org/v1/gonum/mat"

	"github.com/stereoslam/frontend/pkg/geometry"
)

// ErrDegenerate is returned when the view configuration does not
// constrain the point well enough to triangulate reliably (spec.md 4.B:
// "the smallest singular value is not sufficiently smaller than the
// next").
var ErrDegenerate = errors.New("triangulate: degenerate view configuration")

// degeneracyRatio is the maximum allowed ratio of the smallest to the
// second-smallest singular value of the DLT constraint matrix before a
// configuration is rejected as degenerate.
const degeneracyRatio = 0.1

// View is one observation of the point to triangulate: the world->camera
// pose of the observing camera and the normalized (z=1 plane) image
// coordinate of the observation.
type View struct {
	Pose  geometry.SE3
	Point geometry.Vec2
}

// Triangulate estimates the world point that best explains the given
// views by minimizing algebraic reprojection error, via SVD of the
// stacked DLT constraint matrix. At least two views are required.
func Triangulate(views []View) (geometry.Vec3, error) {
	if len(views) < 2 {
		return geometry.Vec3{}, fmt.Errorf("triangulate: need at least 2 views, got %d", len(views))
	}

	a := mat.NewDense(2*len(views), 4, nil)
	for i, v := range views {
		r := v.Pose.R
		t := v.Pose.T

		p0 := [4]float64{r[0][0], r[0][1], r[0][2], t.X}
		p1 := [4]float64{r[1][0], r[1][1], r[1][2], t.Y}
		p2 := [4]float64{r[2][0], r[2][1], r[2][2], t.Z}

		for c := 0; c < 4; c++ {
			a.Set(2*i, c, v.Point.X*p2[c]-p0[c])
			a.Set(2*i+1, c, v.Point.Y*p2[c]-p1[c])
		}
	}

	var svd mat.SVD
	if ok := svd.Factorize(a, mat.SVDFull); !ok {
		return geometry.Vec3{}, fmt.Errorf("triangulate: SVD factorization failed")
	}

	values := svd.Values(nil)
	n := len(values)
	if n < 2 {
		return geometry.Vec3{}, fmt.Errorf("triangulate: unexpected singular value count %d", n)
	}
	smallest := values[n-1]
	next := values[n-2]
	if next == 0 || smallest/next > degeneracyRatio {
		return geometry.Vec3{}, ErrDegenerate
	}

	var v mat.Dense
	svd.VTo(&v)
	col := v.ColView(n - 1)

	w := col.AtVec(3)
	if w == 0 {
		return geometry.Vec3{}, ErrDegenerate
	}

	return geometry.Vec3{
		X: col.AtVec(0) / w,
		Y: col.AtVec(1) / w,
		Z: col.AtVec(2) / w,
	}, nil
}
