//go:build cgo
// +build cgo

// Package capture provides the stereo camera source: two synchronized
// OpenCV video captures whose frames are converted to the grayscale Mats
// the frontend's detection and optical-flow stages expect.
package capture

import (
	"fmt"
	"sync"

	"gocv.io/x/gocv"
)

// fourccMJPEG is the FourCC code for Motion JPEG, the codec most USB
// webcams support reliably over V4L2.
const fourccMJPEG = 0x47504A4D

// StereoCamera opens a pair of video capture devices and reads
// synchronized, rectified-assumption grayscale frame pairs from them.
type StereoCamera struct {
	mu sync.Mutex

	left  *gocv.VideoCapture
	right *gocv.VideoCapture
	opened bool

	width, height, fps int
}

// NewStereoCamera creates an unopened StereoCamera.
func NewStereoCamera() *StereoCamera {
	return &StereoCamera{}
}

// Open initializes both capture devices with the given configuration.
// Uses the V4L2 backend on Linux, matching the rest of this codebase's
// camera handling.
func (c *StereoCamera) Open(leftDeviceID, rightDeviceID, width, height, fps int) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.opened {
		return fmt.Errorf("capture: stereo camera already opened")
	}

	left, err := openDevice(leftDeviceID, width, height, fps)
	if err != nil {
		return fmt.Errorf("capture: opening left camera %d: %w", leftDeviceID, err)
	}
	right, err := openDevice(rightDeviceID, width, height, fps)
	if err != nil {
		left.Close()
		return fmt.Errorf("capture: opening right camera %d: %w", rightDeviceID, err)
	}

	c.left = left
	c.right = right
	c.width = int(left.Get(gocv.VideoCaptureFrameWidth))
	c.height = int(left.Get(gocv.VideoCaptureFrameHeight))
	c.fps = int(left.Get(gocv.VideoCaptureFPS))
	c.opened = true
	return nil
}

func openDevice(deviceID, width, height, fps int) (*gocv.VideoCapture, error) {
	webcam, err := gocv.OpenVideoCaptureWithAPI(deviceID, gocv.VideoCaptureV4L2)
	if err != nil {
		return nil, err
	}
	if !webcam.IsOpened() {
		webcam.Close()
		return nil, fmt.Errorf("device %d not found or unavailable", deviceID)
	}

	webcam.Set(gocv.VideoCaptureFOURCC, fourccMJPEG)
	if width > 0 {
		webcam.Set(gocv.VideoCaptureFrameWidth, float64(width))
	}
	if height > 0 {
		webcam.Set(gocv.VideoCaptureFrameHeight, float64(height))
	}
	if fps > 0 {
		webcam.Set(gocv.VideoCaptureFPS, float64(fps))
	}

	warmup := gocv.NewMat()
	webcam.Read(&warmup)
	warmup.Close()

	return &webcam, nil
}

// Read captures one synchronized stereo pair and converts both images to
// grayscale. The caller owns and must Close the returned Mats.
func (c *StereoCamera) Read() (left, right gocv.Mat, err error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.opened {
		return gocv.NewMat(), gocv.NewMat(), fmt.Errorf("capture: camera not opened")
	}

	rawLeft := gocv.NewMat()
	defer rawLeft.Close()
	rawRight := gocv.NewMat()
	defer rawRight.Close()

	if ok := c.left.Read(&rawLeft); !ok || rawLeft.Empty() {
		return gocv.NewMat(), gocv.NewMat(), fmt.Errorf("capture: failed to read left frame")
	}
	if ok := c.right.Read(&rawRight); !ok || rawRight.Empty() {
		return gocv.NewMat(), gocv.NewMat(), fmt.Errorf("capture: failed to read right frame")
	}

	grayLeft := gocv.NewMat()
	grayRight := gocv.NewMat()
	gocv.CvtColor(rawLeft, &grayLeft, gocv.ColorBGRToGray)
	gocv.CvtColor(rawRight, &grayRight, gocv.ColorBGRToGray)

	return grayLeft, grayRight, nil
}

// Resolution returns the negotiated capture width and height.
func (c *StereoCamera) Resolution() (width, height int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.width, c.height
}

// FPS returns the negotiated capture frame rate.
func (c *StereoCamera) FPS() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.fps
}

// Close releases both capture devices.
func (c *StereoCamera) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.opened {
		return nil
	}

	var errs []error
	if err := c.left.Close(); err != nil {
		errs = append(errs, fmt.Errorf("closing left camera: %w", err))
	}
	if err := c.right.Close(); err != nil {
		errs = append(errs, fmt.Errorf("closing right camera: %w", err))
	}
	c.opened = false

	if len(errs) > 0 {
		return fmt.Errorf("capture: %v", errs)
	}
	return nil
}
