//go:build cgo
// +build cgo

package opticalflow

import (
	"image"
	"image/color"
	"math"
	"testing"

	"gocv.io/x/gocv"

	"github.com/stereoslam/frontend/pkg/geometry"
)

func TestTrackMismatchedLengths(t *testing.T) {
	tr := NewTracker(DefaultParams())
	a := gocv.NewMatWithSize(64, 64, gocv.MatTypeCV8U)
	defer a.Close()
	b := gocv.NewMatWithSize(64, 64, gocv.MatTypeCV8U)
	defer b.Close()

	_, err := tr.Track(a, b, []geometry.Vec2{{X: 1, Y: 1}}, nil)
	if err == nil {
		t.Error("expected error for mismatched srcPoints/guesses length")
	}
}

func TestTrackEmptyInputReturnsNoResults(t *testing.T) {
	tr := NewTracker(DefaultParams())
	a := gocv.NewMatWithSize(64, 64, gocv.MatTypeCV8U)
	defer a.Close()
	b := gocv.NewMatWithSize(64, 64, gocv.MatTypeCV8U)
	defer b.Close()

	results, err := tr.Track(a, b, nil, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(results) != 0 {
		t.Errorf("expected no results for empty input, got %d", len(results))
	}
}

func TestTrackOnIdenticalFramesKeepsPointsStationary(t *testing.T) {
	img := gocv.NewMatWithSize(128, 128, gocv.MatTypeCV8U)
	defer img.Close()
	// Paint a textured corner so LK has something to lock onto.
	gocv.Rectangle(&img, image.Rect(40, 40, 88, 88), color.RGBA{R: 255, G: 255, B: 255, A: 255}, -1)

	tr := NewTracker(DefaultParams())
	pts := []geometry.Vec2{{X: 40, Y: 40}}

	results, err := tr.Track(img, img, pts, pts)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(results) != 1 {
		t.Fatalf("expected 1 result, got %d", len(results))
	}
	if !results[0].OK {
		t.Skip("LK did not converge on synthetic corner; environment-dependent")
	}
	if math.Abs(results[0].Point.X-pts[0].X) > 0.5 || math.Abs(results[0].Point.Y-pts[0].Y) > 0.5 {
		t.Errorf("expected point to stay at %+v on identical frames, got %+v", pts[0], results[0].Point)
	}
}
