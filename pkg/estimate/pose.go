// Package estimate implements the motion-only pose optimizer: an
// iterative refinement of a single SE(3) pose against observed 2D-3D
// correspondences, with a Huber robust kernel and iterative outlier
// rejection (spec.md §4.E). Each inner iteration takes an undamped
// Gauss-Newton step; no Levenberg-Marquardt damping term is added to the
// normal equations, and a step is never rejected for raising the cost.
package estimate

import (
	"math"

	"gonum.org/v1/gonum/mat"

	"github.com/stereoslam/frontend/pkg/geometry"
)

// HuberDeltaSq is chi-squared's 95th percentile for 2 degrees of freedom,
// the threshold separating inliers from outliers (spec.md §6/§9).
const HuberDeltaSq = 5.991

// Params controls the optimizer's iteration schedule, per spec.md §6.
type Params struct {
	OuterIterations int
	InnerIterations int
	// DisableKernelAtOuterIteration is the zero-indexed outer iteration
	// from which on the Huber kernel is turned off, so the final passes use
	// a pure quadratic cost on the surviving inliers (spec default: 2).
	DisableKernelAtOuterIteration int
}

// DefaultParams returns the spec's recommended iteration schedule: 4 outer
// iterations of up to 10 inner iterations each, kernel disabled on the
// third (index 2) outer iteration.
func DefaultParams() Params {
	return Params{OuterIterations: 4, InnerIterations: 10, DisableKernelAtOuterIteration: 2}
}

// Observation is one 2D-3D correspondence: a landmark's world position
// and its measured pixel in the current frame. The index of an
// Observation in the slice passed to EstimatePose is the identifier the
// caller uses to interpret PoseResult.OutlierIndices.
type Observation struct {
	Point geometry.Vec3
	Pixel geometry.Vec2
}

// PoseResult is the outcome of EstimatePose.
type PoseResult struct {
	// Pose is the refined world->camera pose.
	Pose geometry.SE3
	// Inliers is the number of observations classified as inliers after
	// the final outer iteration.
	Inliers int
	// OutlierIndices lists, into the input Observations slice, every
	// observation whose reprojection chi-squared exceeded HuberDeltaSq
	// after optimization.
	OutlierIndices []int
}

// EstimatePose refines priorPose against obs using robust Gauss-Newton
// iterations, per
// spec.md §4.E. priorPose is the constant-velocity prior (relative
// motion composed with the previous frame's pose); it is re-applied at
// the start of every outer iteration, exactly as the spec specifies.
func EstimatePose(priorPose geometry.SE3, k geometry.Intrinsics, obs []Observation, p Params) PoseResult {
	n := len(obs)
	outlier := make([]bool, n)
	pose := priorPose

	for outer := 0; outer < p.OuterIterations; outer++ {
		pose = priorPose
		useHuber := outer < p.DisableKernelAtOuterIteration

		for inner := 0; inner < p.InnerIterations; inner++ {
			h := mat.NewDense(6, 6, nil)
			b := mat.NewVecDense(6, nil)

			for i, o := range obs {
				if outlier[i] {
					continue
				}
				pCam := pose.Apply(o.Point)
				if pCam.Z <= 0 {
					continue
				}

				r, j := residualAndJacobian(k, pCam, o.Pixel)
				weight := huberWeight(r, useHuber)

				accumulateNormalEquations(h, b, j, r, weight)
			}

			var dx mat.VecDense
			if err := dx.SolveVec(h, b); err != nil {
				break
			}
			if mat.Norm(&dx, 2) < 1e-10 {
				break
			}

			rho := geometry.Vec3{X: dx.AtVec(0), Y: dx.AtVec(1), Z: dx.AtVec(2)}
			phi := geometry.Vec3{X: dx.AtVec(3), Y: dx.AtVec(4), Z: dx.AtVec(5)}
			pose = geometry.ExpSE3(rho, phi).Compose(pose)
		}

		inliers := 0
		for i, o := range obs {
			pCam := pose.Apply(o.Point)
			if pCam.Z <= 0 {
				outlier[i] = true
				continue
			}
			proj := k.Project(pCam)
			r := geometry.Vec2{X: proj.X - o.Pixel.X, Y: proj.Y - o.Pixel.Y}
			chi2 := r.X*r.X + r.Y*r.Y
			if chi2 > HuberDeltaSq {
				outlier[i] = true
			} else {
				outlier[i] = false
				inliers++
			}
		}

		if outer == p.OuterIterations-1 {
			outliers := make([]int, 0, n-inliers)
			for i, isOut := range outlier {
				if isOut {
					outliers = append(outliers, i)
				}
			}
			return PoseResult{Pose: pose, Inliers: inliers, OutlierIndices: outliers}
		}
	}

	return PoseResult{Pose: pose}
}

// residualAndJacobian computes the reprojection residual (predicted -
// measured) and its 2x6 Jacobian with respect to a left SE(3)
// perturbation xi = (rho, phi), following the standard pinhole-BA
// derivation (spec.md §9: written from scratch).
func residualAndJacobian(k geometry.Intrinsics, pCam geometry.Vec3, measured geometry.Vec2) (geometry.Vec2, [2][6]float64) {
	x, y, z := pCam.X, pCam.Y, pCam.Z
	invZ := 1 / z
	invZ2 := invZ * invZ

	proj := k.Project(pCam)
	r := geometry.Vec2{X: proj.X - measured.X, Y: proj.Y - measured.Y}

	fx, fy := k.Fx, k.Fy
	j := [2][6]float64{
		{fx * invZ, 0, -fx * x * invZ2, -fx * x * y * invZ2, fx + fx*x*x*invZ2, -fx * y * invZ},
		{0, fy * invZ, -fy * y * invZ2, -fy - fy*y*y*invZ2, fy * x * y * invZ2, fy * x * invZ},
	}
	return r, j
}

// huberWeight returns the IRLS weight for a residual under the Huber
// kernel with threshold sqrt(HuberDeltaSq), or 1 when the kernel is
// disabled.
func huberWeight(r geometry.Vec2, useHuber bool) float64 {
	if !useHuber {
		return 1
	}
	chi2 := r.X*r.X + r.Y*r.Y
	if chi2 <= HuberDeltaSq {
		return 1
	}
	return math.Sqrt(HuberDeltaSq / chi2)
}

// accumulateNormalEquations adds one edge's contribution to the
// Gauss-Newton normal equations H*dx = b, where H += w*J^T*J and
// b += -w*J^T*r.
func accumulateNormalEquations(h *mat.Dense, b *mat.VecDense, j [2][6]float64, r geometry.Vec2, weight float64) {
	residual := [2]float64{r.X, r.Y}
	for a := 0; a < 6; a++ {
		var bSum float64
		for row := 0; row < 2; row++ {
			bSum += j[row][a] * residual[row]
		}
		b.SetVec(a, b.AtVec(a)-weight*bSum)

		for c := 0; c < 6; c++ {
			var hSum float64
			for row := 0; row < 2; row++ {
				hSum += j[row][a] * j[row][c]
			}
			h.Set(a, c, h.At(a, c)+weight*hSum)
		}
	}
}

