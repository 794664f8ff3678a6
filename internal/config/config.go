// Package config provides TOML configuration loading for the stereo
// visual SLAM tracking frontend.
//
// The configuration file supports the following structure:
//
//	[camera]
//	left_device_id = 0
//	right_device_id = 1
//	width = 1280
//	height = 720
//	fps = 30
//
//	[rig.left]
//	fx = 700.0
//	fy = 700.0
//	cx = 640.0
//	cy = 360.0
//
//	[rig.right]
//	fx = 700.0
//	fy = 700.0
//	cx = 640.0
//	cy = 360.0
//	baseline_meters = 0.12
//
//	[tracking]
//	num_features_init = 100
//	num_features_tracking = 50
//	num_features_tracking_bad = 20
//	num_features_needed_for_keyframe = 80
//
//	[optical_flow]
//	window_size = 11
//	levels = 3
//	max_iters = 30
//	eps = 0.01
//
//	[telemetry]
//	enabled = true
//	address = "127.0.0.1"
//	port = 39539
package config

import (
	"fmt"
	"os"

	"github.com/BurntSushi/toml"
)

// Config is the complete configuration for the tracking frontend.
type Config struct {
	Camera      CameraConfig      `toml:"camera"`
	Rig         RigConfig         `toml:"rig"`
	Tracking    TrackingConfig    `toml:"tracking"`
	OpticalFlow OpticalFlowConfig `toml:"optical_flow"`
	Telemetry   TelemetryConfig   `toml:"telemetry"`
}

// CameraConfig holds stereo webcam capture settings.
type CameraConfig struct {
	// LeftDeviceID is the left camera's device index (default: 0).
	LeftDeviceID int `toml:"left_device_id"`
	// RightDeviceID is the right camera's device index (default: 1).
	RightDeviceID int `toml:"right_device_id"`
	// Width is the capture width in pixels (default: 1280).
	Width int `toml:"width"`
	// Height is the capture height in pixels (default: 720).
	Height int `toml:"height"`
	// FPS is the target frame rate (default: 30).
	FPS int `toml:"fps"`
}

// RigConfig holds the calibrated stereo rig's intrinsics/extrinsics,
// assumed already rectified (spec.md §4.A).
type RigConfig struct {
	Left  CameraIntrinsicsConfig `toml:"left"`
	Right RightCameraConfig      `toml:"right"`
}

// CameraIntrinsicsConfig is one camera's pinhole intrinsics.
type CameraIntrinsicsConfig struct {
	Fx float64 `toml:"fx"`
	Fy float64 `toml:"fy"`
	Cx float64 `toml:"cx"`
	Cy float64 `toml:"cy"`
}

// RightCameraConfig adds the baseline to the right camera's intrinsics;
// the right camera's extrinsic pose is assumed to be a pure translation
// of BaselineMeters along X from the left (reference) camera.
type RightCameraConfig struct {
	CameraIntrinsicsConfig
	BaselineMeters float64 `toml:"baseline_meters"`
}

// TrackingConfig holds the frontend's state-machine thresholds (spec.md
// §6).
type TrackingConfig struct {
	// NumFeaturesInit is the minimum triangulated-point count required
	// to bootstrap the map (default: 100).
	NumFeaturesInit int `toml:"num_features_init"`
	// NumFeaturesTracking is the inlier threshold for TRACKING_GOOD
	// (default: 50).
	NumFeaturesTracking int `toml:"num_features_tracking"`
	// NumFeaturesTrackingBad is the inlier threshold for TRACKING_BAD
	// (default: 20).
	NumFeaturesTrackingBad int `toml:"num_features_tracking_bad"`
	// NumFeaturesNeededForKeyframe is the inlier count below which a
	// tracked frame is promoted to a keyframe (default: 80).
	NumFeaturesNeededForKeyframe int `toml:"num_features_needed_for_keyframe"`
}

// OpticalFlowConfig holds the pyramidal Lucas-Kanade parameters (spec.md
// §6).
type OpticalFlowConfig struct {
	WindowSize int     `toml:"window_size"`
	Levels     int     `toml:"levels"`
	MaxIters   int     `toml:"max_iters"`
	Eps        float64 `toml:"eps"`
}

// TelemetryConfig holds the pose-broadcast sender settings.
type TelemetryConfig struct {
	// Enabled enables OSC pose telemetry output (default: false).
	Enabled bool `toml:"enabled"`
	// Address is the destination IP address (default: "127.0.0.1").
	Address string `toml:"address"`
	// Port is the destination UDP port (default: 39539).
	Port int `toml:"port"`
}

// Default returns the default configuration.
func Default() *Config {
	return &Config{
		Camera: CameraConfig{
			LeftDeviceID:  0,
			RightDeviceID: 1,
			Width:         1280,
			Height:        720,
			FPS:           30,
		},
		Rig: RigConfig{
			Left:  CameraIntrinsicsConfig{Fx: 700, Fy: 700, Cx: 640, Cy: 360},
			Right: RightCameraConfig{CameraIntrinsicsConfig: CameraIntrinsicsConfig{Fx: 700, Fy: 700, Cx: 640, Cy: 360}, BaselineMeters: 0.12},
		},
		Tracking: TrackingConfig{
			NumFeaturesInit:              100,
			NumFeaturesTracking:          50,
			NumFeaturesTrackingBad:       20,
			NumFeaturesNeededForKeyframe: 80,
		},
		OpticalFlow: OpticalFlowConfig{
			WindowSize: 11,
			Levels:     3,
			MaxIters:   30,
			Eps:        0.01,
		},
		Telemetry: TelemetryConfig{
			Enabled: false,
			Address: "127.0.0.1",
			Port:    39539,
		},
	}
}

// Load reads and parses a TOML configuration file.
// If the file does not exist, it returns the default configuration.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path == "" {
		return cfg, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	if _, err := toml.Decode(string(data), cfg); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return cfg, nil
}

// Validate checks the configuration for invalid values.
func (c *Config) Validate() error {
	if c.Camera.Width <= 0 {
		return fmt.Errorf("camera width must be positive, got %d", c.Camera.Width)
	}
	if c.Camera.Height <= 0 {
		return fmt.Errorf("camera height must be positive, got %d", c.Camera.Height)
	}
	if c.Camera.FPS <= 0 {
		return fmt.Errorf("camera FPS must be positive, got %d", c.Camera.FPS)
	}
	if c.Rig.Left.Fx <= 0 || c.Rig.Left.Fy <= 0 {
		return fmt.Errorf("left camera focal lengths must be positive, got fx=%g fy=%g", c.Rig.Left.Fx, c.Rig.Left.Fy)
	}
	if c.Rig.Right.Fx <= 0 || c.Rig.Right.Fy <= 0 {
		return fmt.Errorf("right camera focal lengths must be positive, got fx=%g fy=%g", c.Rig.Right.Fx, c.Rig.Right.Fy)
	}
	if c.Rig.Right.BaselineMeters <= 0 {
		return fmt.Errorf("stereo baseline must be positive, got %g", c.Rig.Right.BaselineMeters)
	}
	if c.Tracking.NumFeaturesInit <= 0 {
		return fmt.Errorf("num_features_init must be positive, got %d", c.Tracking.NumFeaturesInit)
	}
	if c.Tracking.NumFeaturesTracking < c.Tracking.NumFeaturesTrackingBad {
		return fmt.Errorf("num_features_tracking (%d) must be >= num_features_tracking_bad (%d)",
			c.Tracking.NumFeaturesTracking, c.Tracking.NumFeaturesTrackingBad)
	}
	if c.OpticalFlow.WindowSize <= 0 {
		return fmt.Errorf("optical flow window_size must be positive, got %d", c.OpticalFlow.WindowSize)
	}
	if c.OpticalFlow.Levels <= 0 {
		return fmt.Errorf("optical flow levels must be positive, got %d", c.OpticalFlow.Levels)
	}
	if c.Telemetry.Port <= 0 || c.Telemetry.Port > 65535 {
		return fmt.Errorf("telemetry port must be between 1 and 65535, got %d", c.Telemetry.Port)
	}
	return nil
}
