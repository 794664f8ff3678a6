package geometry

import "fmt"

// Intrinsics holds a pinhole camera's focal lengths and principal point.
// Images are assumed already rectified (no distortion model), per spec.
type Intrinsics struct {
	Fx, Fy float64
	Cx, Cy float64
}

// Validate reports whether the intrinsics are usable.
func (k Intrinsics) Validate() error {
	if k.Fx <= 0 || k.Fy <= 0 {
		return fmt.Errorf("geometry: bad focal lengths fx=%g fy=%g", k.Fx, k.Fy)
	}
	return nil
}

// PixelToCamera maps a pixel coordinate to the normalized camera plane
// (z=1), per spec.md 4.A pixel_to_camera.
func (k Intrinsics) PixelToCamera(u Vec2) Vec3 {
	return Vec3{
		X: (u.X - k.Cx) / k.Fx,
		Y: (u.Y - k.Cy) / k.Fy,
		Z: 1,
	}
}

// Project maps a point already expressed in this camera's frame to a
// pixel coordinate, per spec.md 4.A world_to_pixel (the world->camera
// step is the caller's responsibility via SE3.Apply).
func (k Intrinsics) Project(pCam Vec3) Vec2 {
	return Vec2{
		X: k.Fx*pCam.X/pCam.Z + k.Cx,
		Y: k.Fy*pCam.Y/pCam.Z + k.Cy,
	}
}

// Camera bundles a camera's intrinsics with its fixed extrinsic pose
// relative to the rig body frame (identity for the left/reference camera,
// baseline translation for the right camera). This is the "camera model"
// of spec.md 4.A: pixel_to_camera, world_to_pixel and pose().
type Camera struct {
	K Intrinsics
	// BodyFromCamera transforms points from this camera's frame into the
	// rig body frame; its inverse is this camera's pose() in the body
	// frame's coordinates.
	BodyFromCamera SE3
}

// Pose returns the fixed extrinsic transform from the body frame to this
// camera (spec.md 4.A pose()).
func (c Camera) Pose() SE3 {
	return c.BodyFromCamera.Inverse()
}

// WorldToPixel projects a world point into this camera's image given the
// body's world->camera pose bodyFromWorld.
func (c Camera) WorldToPixel(pWorld Vec3, bodyFromWorld SE3) Vec2 {
	pCam := c.Pose().Compose(bodyFromWorld).Apply(pWorld)
	return c.K.Project(pCam)
}

// StereoRig bundles the left (reference) and right cameras of a
// calibrated stereo pair and the fixed baseline between them, supplied at
// frontend-construction time per spec.md §6.
type StereoRig struct {
	Left, Right Camera
	// BaselineMeters is the fixed left-to-right camera separation.
	BaselineMeters float64
}

// Validate checks that both cameras have usable intrinsics and the
// baseline is physically meaningful.
func (s StereoRig) Validate() error {
	if err := s.Left.K.Validate(); err != nil {
		return fmt.Errorf("left camera: %w", err)
	}
	if err := s.Right.K.Validate(); err != nil {
		return fmt.Errorf("right camera: %w", err)
	}
	if s.BaselineMeters <= 0 {
		return fmt.Errorf("geometry: baseline must be positive, got %g", s.BaselineMeters)
	}
	return nil
}
