//go:build cgo
// +build cgo

// Package opticalflow wraps a pyramidal sparse Lucas-Kanade tracker
// (gocv.CalcOpticalFlowPyrLKWithParams) behind the narrow contract the
// frontend needs: given two images and a set of points with initial
// guesses, produce refined points and a per-point success flag.
package opticalflow

import (
	"fmt"
	"image"

	"gocv.io/x/gocv"

	"github.com/stereoslam/frontend/pkg/geometry"
)

// minEigThreshold is OpenCV's own default for CalcOpticalFlowPyrLK's
// eigenvalue-based track-quality rejection.
const minEigThreshold = 1e-4

// Params holds the recommended LK parameters from spec.md §6.
type Params struct {
	WindowSize int
	Levels     int
	MaxIters   int
	Eps        float64
}

// DefaultParams returns the spec's recommended pyramidal-LK parameters:
// an 11x11 window, 3 pyramid levels, termination after 30 iterations or
// a 0.01-pixel step.
func DefaultParams() Params {
	return Params{WindowSize: 11, Levels: 3, MaxIters: 30, Eps: 0.01}
}

// Tracker runs sparse optical flow between two grayscale images.
type Tracker struct {
	params Params
}

// NewTracker creates a Tracker with the given parameters.
func NewTracker(params Params) *Tracker {
	return &Tracker{params: params}
}

// Result is the outcome of tracking one point.
type Result struct {
	Point geometry.Vec2
	OK    bool
}

// Track refines srcPoints (observed in image a) to their corresponding
// locations in image b, using guesses as the initial estimate for each
// point (use-initial-flow, per spec.md §4.C). len(srcPoints) must equal
// len(guesses). The i-th result corresponds to the i-th input point.
func (tr *Tracker) Track(a, b gocv.Mat, srcPoints, guesses []geometry.Vec2) ([]Result, error) {
	if len(srcPoints) != len(guesses) {
		return nil, fmt.Errorf("opticalflow: srcPoints and guesses length mismatch (%d vs %d)", len(srcPoints), len(guesses))
	}
	if len(srcPoints) == 0 {
		return nil, nil
	}

	prevPts := vec2ToMat(srcPoints)
	defer prevPts.Close()

	// Pre-fill the destination points with the initial guess. gocv's LK
	// implementation honors a non-empty nextPts Mat as the initial search
	// location, matching OPTFLOW_USE_INITIAL_FLOW semantics.
	nextPts := vec2ToMat(guesses)
	defer nextPts.Close()

	status := gocv.NewMat()
	defer status.Close()
	trackErr := gocv.NewMat()
	defer trackErr.Close()

	winSize := image.Pt(tr.params.WindowSize, tr.params.WindowSize)
	maxLevel := tr.params.Levels - 1
	criteria := gocv.NewTermCriteria(gocv.MaxIter|gocv.EPS, tr.params.MaxIters, tr.params.Eps)

	gocv.CalcOpticalFlowPyrLKWithParams(a, b, prevPts, nextPts, &status, &trackErr,
		winSize, maxLevel, criteria, int(gocv.OptflowUseInitialFlow), minEigThreshold)

	tracked := matToVec2(nextPts)
	results := make([]Result, len(srcPoints))
	for i := range srcPoints {
		results[i] = Result{
			Point: tracked[i],
			OK:    status.GetUCharAt(i, 0) != 0,
		}
	}
	return results, nil
}

// vec2ToMat packs points into the Nx1, 2-channel float32 Mat that gocv's
// optical-flow and corner-detection bindings expect.
func vec2ToMat(points []geometry.Vec2) gocv.Mat {
	m := gocv.NewMatWithSize(len(points), 1, gocv.MatTypeCV32FC2)
	for i, p := range points {
		m.SetVecfAt(i, 0, []float32{float32(p.X), float32(p.Y)})
	}
	return m
}

// matToVec2 unpacks a Nx1, 2-channel float32 Mat back into points.
func matToVec2(m gocv.Mat) []geometry.Vec2 {
	n := m.Rows()
	points := make([]geometry.Vec2, n)
	for i := 0; i < n; i++ {
		v := m.GetVecfAt(i, 0)
		points[i] = geometry.Vec2{X: float64(v[0]), Y: float64(v[1])}
	}
	return points
}
