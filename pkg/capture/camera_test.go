//go:build cgo
// +build cgo

package capture

import "testing"

func TestStereoCameraOpenAndRead(t *testing.T) {
	cam := NewStereoCamera()

	err := cam.Open(0, 1, 640, 480, 30)
	if err != nil {
		t.Skipf("skipping: stereo rig not available: %v", err)
	}
	defer cam.Close()

	width, height := cam.Resolution()
	if width <= 0 || height <= 0 {
		t.Errorf("invalid resolution: %dx%d", width, height)
	}

	left, right, err := cam.Read()
	if err != nil {
		t.Fatalf("unexpected read error: %v", err)
	}
	defer left.Close()
	defer right.Close()

	if left.Empty() || right.Empty() {
		t.Error("expected non-empty stereo frame pair")
	}
	if left.Channels() != 1 || right.Channels() != 1 {
		t.Errorf("expected grayscale frames, got %d/%d channels", left.Channels(), right.Channels())
	}
}

func TestStereoCameraReadBeforeOpenFails(t *testing.T) {
	cam := NewStereoCamera()
	_, _, err := cam.Read()
	if err == nil {
		t.Error("expected error reading before Open")
	}
}
