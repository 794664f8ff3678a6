//go:build cgo
// +build cgo

// Package detect implements the good-features-to-track-style corner
// detector used to seed new candidate features on the left image, under
// a spatial exclusion mask that keeps detections away from points
// already being tracked (spec.md §4.D).
package detect

import (
	"fmt"
	"image"
	"image/color"

	"gocv.io/x/gocv"

	"github.com/stereoslam/frontend/pkg/geometry"
)

// Config holds the corner-detector parameters from spec.md §4.D/§6.
type Config struct {
	// NumFeatures is the target detection count (spec default 150).
	NumFeatures int
	// QualityLevel is the minimum accepted corner quality, relative to
	// the best corner found (spec default 0.01).
	QualityLevel float64
	// MinDistance is the minimum pixel separation between corners (spec
	// default 20).
	MinDistance float64
	// MaskBoxSize is the side length, in pixels, of the exclusion box
	// painted around each existing tracked feature (spec default 20).
	MaskBoxSize int
}

// DefaultConfig returns the spec's recommended detector configuration.
func DefaultConfig() Config {
	return Config{NumFeatures: 150, QualityLevel: 0.01, MinDistance: 20, MaskBoxSize: 20}
}

// Detector finds new corner candidates on a grayscale image, excluding
// regions already occupied by tracked features.
type Detector struct {
	cfg    Config
	closed bool
}

// NewDetector creates a Detector with the given configuration.
func NewDetector(cfg Config) (*Detector, error) {
	if cfg.NumFeatures <= 0 {
		return nil, fmt.Errorf("detect: NumFeatures must be positive, got %d", cfg.NumFeatures)
	}
	return &Detector{cfg: cfg}, nil
}

// BuildExclusionMask paints a white image with a black MaskBoxSize x
// MaskBoxSize box centered on every existing feature position, so that
// Detect does not propose corners that duplicate current tracks (spec.md
// §4.D).
func (d *Detector) BuildExclusionMask(width, height int, existing []geometry.Vec2) gocv.Mat {
	mask := gocv.NewMatWithSize(height, width, gocv.MatTypeCV8U)
	mask.SetTo(gocv.NewScalar(255, 0, 0, 0))

	half := d.cfg.MaskBoxSize / 2
	for _, p := range existing {
		x0 := int(p.X) - half
		y0 := int(p.Y) - half
		x1 := int(p.X) + half
		y1 := int(p.Y) + half
		gocv.Rectangle(&mask, image.Rect(x0, y0, x1, y1), color.RGBA{A: 255}, -1)
	}
	return mask
}

// Detect finds up to Config.NumFeatures corners in img that fall outside
// the black regions of mask. mask must be the same size as img, as
// produced by BuildExclusionMask.
func (d *Detector) Detect(img, mask gocv.Mat) ([]geometry.Vec2, error) {
	if d.closed {
		return nil, fmt.Errorf("detect: detector is closed")
	}

	corners := gocv.NewMat()
	defer corners.Close()

	gocv.GoodFeaturesToTrack(img, &corners, d.cfg.NumFeatures, d.cfg.QualityLevel, d.cfg.MinDistance)

	n := corners.Rows()
	points := make([]geometry.Vec2, 0, n)
	for i := 0; i < n; i++ {
		v := corners.GetVecfAt(i, 0)
		x, y := int(v[0]), int(v[1])

		if !mask.Empty() {
			if x < 0 || y < 0 || x >= mask.Cols() || y >= mask.Rows() {
				continue
			}
			if mask.GetUCharAt(y, x) == 0 {
				continue // inside an exclusion box
			}
		}

		points = append(points, geometry.Vec2{X: float64(v[0]), Y: float64(v[1])})
	}
	return points, nil
}

// Close releases detector resources. Detector currently holds none, but
// the method is kept to satisfy the frontend's detector contract and to
// mirror the lifecycle of the other gocv-backed components.
func (d *Detector) Close() error {
	d.closed = true
	return nil
}
