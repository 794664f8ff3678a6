package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestDefault(t *testing.T) {
	cfg := Default()

	if cfg.Camera.LeftDeviceID != 0 || cfg.Camera.RightDeviceID != 1 {
		t.Errorf("unexpected default device IDs: left=%d right=%d", cfg.Camera.LeftDeviceID, cfg.Camera.RightDeviceID)
	}
	if cfg.Camera.Width != 1280 || cfg.Camera.Height != 720 {
		t.Errorf("unexpected default resolution: %dx%d", cfg.Camera.Width, cfg.Camera.Height)
	}
	if cfg.Camera.FPS != 30 {
		t.Errorf("expected FPS 30, got %d", cfg.Camera.FPS)
	}
	if cfg.Rig.Right.BaselineMeters != 0.12 {
		t.Errorf("expected default baseline 0.12, got %g", cfg.Rig.Right.BaselineMeters)
	}
	if cfg.Tracking.NumFeaturesInit != 100 {
		t.Errorf("expected default NumFeaturesInit 100, got %d", cfg.Tracking.NumFeaturesInit)
	}
	if cfg.Tracking.NumFeaturesNeededForKeyframe != 80 {
		t.Errorf("expected 80, got %d", cfg.Tracking.NumFeaturesNeededForKeyframe)
	}
	if cfg.OpticalFlow.WindowSize != 11 || cfg.OpticalFlow.Levels != 3 {
		t.Errorf("unexpected default LK params: window=%d levels=%d", cfg.OpticalFlow.WindowSize, cfg.OpticalFlow.Levels)
	}
	if cfg.Telemetry.Enabled {
		t.Error("expected telemetry disabled by default")
	}
}

func TestLoadEmptyPathReturnsDefault(t *testing.T) {
	cfg, err := Load("")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg == nil {
		t.Fatal("expected non-nil config")
	}
}

func TestLoadNonExistentFileReturnsDefault(t *testing.T) {
	cfg, err := Load("/nonexistent/path/config.toml")
	if err != nil {
		t.Fatalf("unexpected error for non-existent file: %v", err)
	}
	if cfg == nil {
		t.Fatal("expected default config for non-existent file")
	}
}

func TestLoadValidFile(t *testing.T) {
	content := `
[camera]
left_device_id = 2
right_device_id = 3
width = 1920
height = 1080
fps = 60

[rig.left]
fx = 800.0
fy = 800.0
cx = 960.0
cy = 540.0

[rig.right]
fx = 800.0
fy = 800.0
cx = 960.0
cy = 540.0
baseline_meters = 0.15

[tracking]
num_features_init = 60
num_features_tracking = 60
num_features_tracking_bad = 25
num_features_needed_for_keyframe = 100

[telemetry]
enabled = true
address = "192.168.1.100"
port = 39540
`
	dir := t.TempDir()
	path := filepath.Join(dir, "config.toml")
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("failed to write test file: %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if cfg.Camera.LeftDeviceID != 2 || cfg.Camera.RightDeviceID != 3 {
		t.Errorf("unexpected device IDs: left=%d right=%d", cfg.Camera.LeftDeviceID, cfg.Camera.RightDeviceID)
	}
	if cfg.Rig.Right.BaselineMeters != 0.15 {
		t.Errorf("expected baseline 0.15, got %g", cfg.Rig.Right.BaselineMeters)
	}
	if cfg.Tracking.NumFeaturesNeededForKeyframe != 100 {
		t.Errorf("expected 100, got %d", cfg.Tracking.NumFeaturesNeededForKeyframe)
	}
	if !cfg.Telemetry.Enabled || cfg.Telemetry.Port != 39540 {
		t.Errorf("unexpected telemetry config: %+v", cfg.Telemetry)
	}
}

func TestLoadInvalidTOML(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "invalid.toml")
	if err := os.WriteFile(path, []byte("invalid [ toml"), 0644); err != nil {
		t.Fatalf("failed to write test file: %v", err)
	}

	_, err := Load(path)
	if err == nil {
		t.Error("expected error for invalid TOML")
	}
}

func TestValidateRejectsNonPositiveWidth(t *testing.T) {
	cfg := Default()
	cfg.Camera.Width = 0
	if err := cfg.Validate(); err == nil {
		t.Error("expected error for invalid width")
	}
}

func TestValidateRejectsZeroBaseline(t *testing.T) {
	cfg := Default()
	cfg.Rig.Right.BaselineMeters = 0
	if err := cfg.Validate(); err == nil {
		t.Error("expected error for zero baseline")
	}
}

func TestValidateRejectsTrackingBelowTrackingBad(t *testing.T) {
	cfg := Default()
	cfg.Tracking.NumFeaturesTracking = 10
	cfg.Tracking.NumFeaturesTrackingBad = 20
	if err := cfg.Validate(); err == nil {
		t.Error("expected error when tracking threshold is below tracking-bad threshold")
	}
}

func TestValidateRejectsBadTelemetryPort(t *testing.T) {
	cfg := Default()
	cfg.Telemetry.Port = 0
	if err := cfg.Validate(); err == nil {
		t.Error("expected error for telemetry port 0")
	}

	cfg.Telemetry.Port = 70000
	if err := cfg.Validate(); err == nil {
		t.Error("expected error for telemetry port > 65535")
	}
}
