package geometry

import (
	"math"
	"testing"
)

func TestPixelToCameraRoundTrip(t *testing.T) {
	k := Intrinsics{Fx: 500, Fy: 500, Cx: 320, Cy: 240}
	u := Vec2{X: 400, Y: 200}

	pCam := k.PixelToCamera(u)
	got := k.Project(pCam)

	if math.Abs(got.X-u.X) > 1e-9 || math.Abs(got.Y-u.Y) > 1e-9 {
		t.Errorf("pixel round trip: got %+v, want %+v", got, u)
	}
}

func TestStereoRigPoseIdentityForLeft(t *testing.T) {
	rig := StereoRig{
		Left:           Camera{K: Intrinsics{Fx: 500, Fy: 500, Cx: 320, Cy: 240}, BodyFromCamera: IdentitySE3()},
		Right:          Camera{K: Intrinsics{Fx: 500, Fy: 500, Cx: 320, Cy: 240}, BodyFromCamera: SE3{R: Identity3(), T: Vec3{X: -0.12}}},
		BaselineMeters: 0.12,
	}

	if err := rig.Validate(); err != nil {
		t.Fatalf("unexpected validation error: %v", err)
	}

	p := Vec3{X: 1, Y: 2, Z: 3}
	if got := rig.Left.Pose().Apply(p); !almostEqualVec3(got, p, 1e-12) {
		t.Errorf("left camera pose should be identity: got %+v", got)
	}
}

func TestStereoRigBaselineSeparatesCameras(t *testing.T) {
	baseline := 0.12
	rig := StereoRig{
		Left:           Camera{K: Intrinsics{Fx: 500, Fy: 500, Cx: 320, Cy: 240}, BodyFromCamera: IdentitySE3()},
		Right:          Camera{K: Intrinsics{Fx: 500, Fy: 500, Cx: 320, Cy: 240}, BodyFromCamera: SE3{R: Identity3(), T: Vec3{X: baseline}}},
		BaselineMeters: baseline,
	}

	// A world point directly in front of the rig should project to a
	// smaller (or equal) x pixel in the right image than in the left,
	// since the right camera sits to the left-camera's right along +X
	// in the body frame (BodyFromCamera translation is +baseline).
	pWorld := Vec3{X: 0, Y: 0, Z: 2}
	leftPix := rig.Left.WorldToPixel(pWorld, IdentitySE3())
	rightPix := rig.Right.WorldToPixel(pWorld, IdentitySE3())

	if leftPix.X == rightPix.X {
		t.Errorf("expected stereo disparity between left and right projections, got equal x=%g", leftPix.X)
	}
}

func TestIntrinsicsValidateRejectsNonPositiveFocalLength(t *testing.T) {
	k := Intrinsics{Fx: 0, Fy: 500, Cx: 320, Cy: 240}
	if err := k.Validate(); err == nil {
		t.Error("expected validation error for zero focal length")
	}
}
