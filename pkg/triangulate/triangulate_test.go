package triangulate

import (
	"math"
	"testing"

	"github.com/stereoslam/frontend/pkg/geometry"
)

func project(pose geometry.SE3, p geometry.Vec3) geometry.Vec2 {
	pCam := pose.Apply(p)
	return geometry.Vec2{X: pCam.X / pCam.Z, Y: pCam.Y / pCam.Z}
}

func TestTriangulateStereoBaseline(t *testing.T) {
	truth := geometry.Vec3{X: 0.3, Y: -0.2, Z: 2.0}

	leftPose := geometry.IdentitySE3()
	rightPose := geometry.SE3{R: geometry.Identity3(), T: geometry.Vec3{X: -0.12}}

	views := []View{
		{Pose: leftPose, Point: project(leftPose, truth)},
		{Pose: rightPose, Point: project(rightPose, truth)},
	}

	got, err := Triangulate(views)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if math.Abs(got.Z-truth.Z) > 1e-6*truth.Z {
		t.Errorf("triangulated depth %v not within 1e-6 relative of truth %v", got.Z, truth.Z)
	}
	if math.Abs(got.X-truth.X) > 1e-6 || math.Abs(got.Y-truth.Y) > 1e-6 {
		t.Errorf("triangulated point %+v does not match truth %+v", got, truth)
	}
}

func TestTriangulateRequiresTwoViews(t *testing.T) {
	_, err := Triangulate([]View{{Pose: geometry.IdentitySE3(), Point: geometry.Vec2{X: 0, Y: 0}}})
	if err == nil {
		t.Error("expected error for single view")
	}
}

func TestTriangulateDegenerateIdenticalViews(t *testing.T) {
	pose := geometry.IdentitySE3()
	views := []View{
		{Pose: pose, Point: geometry.Vec2{X: 0.1, Y: 0.1}},
		{Pose: pose, Point: geometry.Vec2{X: 0.1, Y: 0.1}},
	}

	_, err := Triangulate(views)
	if err == nil {
		t.Error("expected degenerate-configuration error for two identical views")
	}
}

func TestTriangulateReprojectionResidual(t *testing.T) {
	truth := geometry.Vec3{X: -0.5, Y: 0.4, Z: 3.0}
	leftPose := geometry.IdentitySE3()
	rightPose := geometry.SE3{R: geometry.Identity3(), T: geometry.Vec3{X: -0.12}}

	views := []View{
		{Pose: leftPose, Point: project(leftPose, truth)},
		{Pose: rightPose, Point: project(rightPose, truth)},
	}

	got, err := Triangulate(views)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	// Reprojecting the recovered point into either camera should land
	// within a tiny normalized-plane residual of the original
	// observation (spec.md section 8 round-trip property).
	for _, v := range views {
		reproj := project(v.Pose, got)
		dx := reproj.X - v.Point.X
		dy := reproj.Y - v.Point.Y
		if math.Hypot(dx, dy) > 1e-6 {
			t.Errorf("reprojection residual too large: %v", math.Hypot(dx, dy))
		}
	}
}
