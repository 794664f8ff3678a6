//go:build cgo
// +build cgo

// Package main is the CLI entry point for the stereo visual SLAM
// tracking frontend.
package main

import (
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/stereoslam/frontend/internal/config"
	"github.com/stereoslam/frontend/pkg/backend"
	"github.com/stereoslam/frontend/pkg/capture"
	"github.com/stereoslam/frontend/pkg/frontend"
	"github.com/stereoslam/frontend/pkg/geometry"
	"github.com/stereoslam/frontend/pkg/mapstore"
	"github.com/stereoslam/frontend/pkg/opticalflow"
	"github.com/stereoslam/frontend/pkg/preview"
	"github.com/stereoslam/frontend/pkg/telemetry"
)

var version = "0.1.0"

func main() {
	configPath := flag.String("config", "", "Path to TOML configuration file")
	showVersion := flag.Bool("version", false, "Show version information")
	leftCamera := flag.Int("left-camera", -1, "Left camera device ID (overrides config)")
	rightCamera := flag.Int("right-camera", -1, "Right camera device ID (overrides config)")
	showPreview := flag.Bool("preview", false, "Show a debug preview window")
	verbose := flag.Bool("verbose", false, "Enable verbose output")

	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "svofrontend - stereo visual SLAM tracking frontend\n\n")
		fmt.Fprintf(os.Stderr, "Usage: %s [options]\n\n", os.Args[0])
		flag.PrintDefaults()
	}
	flag.Parse()

	if *showVersion {
		fmt.Printf("svofrontend version %s\n", version)
		os.Exit(0)
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}
	if *leftCamera >= 0 {
		cfg.Camera.LeftDeviceID = *leftCamera
	}
	if *rightCamera >= 0 {
		cfg.Camera.RightDeviceID = *rightCamera
	}

	rig := stereoRigFromConfig(cfg)

	cam := capture.NewStereoCamera()
	if err := cam.Open(cfg.Camera.LeftDeviceID, cfg.Camera.RightDeviceID, cfg.Camera.Width, cfg.Camera.Height, cfg.Camera.FPS); err != nil {
		log.Fatalf("failed to open stereo camera: %v", err)
	}
	defer cam.Close()

	width, height := cam.Resolution()
	log.Printf("stereo camera opened: %dx%d@%dfps", width, height, cam.FPS())

	feCfg := frontend.DefaultConfig(rig)
	feCfg.NumFeaturesInit = cfg.Tracking.NumFeaturesInit
	feCfg.NumFeaturesTracking = cfg.Tracking.NumFeaturesTracking
	feCfg.NumFeaturesTrackingBad = cfg.Tracking.NumFeaturesTrackingBad
	feCfg.NumFeaturesNeededForKeyframe = cfg.Tracking.NumFeaturesNeededForKeyframe
	feCfg.LK = opticalflow.Params{
		WindowSize: cfg.OpticalFlow.WindowSize,
		Levels:     cfg.OpticalFlow.Levels,
		MaxIters:   cfg.OpticalFlow.MaxIters,
		Eps:        cfg.OpticalFlow.Eps,
	}

	store := mapstore.New()
	bk := backend.New()

	var win *preview.Window
	if *showPreview {
		win = preview.NewWindow("svofrontend")
		defer win.Close()
	}

	var viewer frontend.Viewer
	if win != nil {
		viewer = win
	}

	fe, err := frontend.New(feCfg, store, bk, viewer)
	if err != nil {
		log.Fatalf("failed to create frontend: %v", err)
	}
	defer fe.Close()

	var sender *telemetry.PoseSender
	if cfg.Telemetry.Enabled {
		sender, err = telemetry.NewPoseSender(cfg.Telemetry.Address, cfg.Telemetry.Port)
		if err != nil {
			log.Fatalf("failed to create telemetry sender: %v", err)
		}
		defer sender.Close()
		log.Printf("telemetry enabled: %s:%d", cfg.Telemetry.Address, cfg.Telemetry.Port)
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	log.Println("tracking started, press Ctrl+C to stop")

	frameCount := uint64(0)
	for {
		select {
		case sig := <-sigCh:
			log.Printf("received signal %v, shutting down", sig)
			return
		default:
		}

		left, right, err := cam.Read()
		if err != nil {
			log.Printf("read error: %v", err)
			continue
		}

		if win != nil {
			win.SetImage(left)
		}

		status, err := fe.AddFrame(left, right, time.Now())
		left.Close()
		right.Close()
		if err != nil {
			log.Printf("frontend error: %v", err)
			continue
		}

		frameCount++
		if status == frontend.LOST {
			log.Println("tracking lost, resetting")
			fe.Reset()
		}

		if sender != nil {
			_ = sender.Send(fe.CurrentPose(), status)
		}

		if *verbose && frameCount%30 == 0 {
			log.Printf("frame %d: status=%s", frameCount, status)
		}
	}
}

func stereoRigFromConfig(cfg *config.Config) geometry.StereoRig {
	leftK := geometry.Intrinsics{Fx: cfg.Rig.Left.Fx, Fy: cfg.Rig.Left.Fy, Cx: cfg.Rig.Left.Cx, Cy: cfg.Rig.Left.Cy}
	rightK := geometry.Intrinsics{Fx: cfg.Rig.Right.Fx, Fy: cfg.Rig.Right.Fy, Cx: cfg.Rig.Right.Cx, Cy: cfg.Rig.Right.Cy}

	return geometry.StereoRig{
		Left:  geometry.Camera{K: leftK, BodyFromCamera: geometry.IdentitySE3()},
		Right: geometry.Camera{K: rightK, BodyFromCamera: geometry.SE3{R: geometry.Identity3(), T: geometry.Vec3{X: cfg.Rig.Right.BaselineMeters}}},
		BaselineMeters: cfg.Rig.Right.BaselineMeters,
	}
}
