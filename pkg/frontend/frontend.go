//go:build cgo
// +build cgo

package frontend

import (
	"fmt"
	"sync"
	"time"

	"gocv.io/x/gocv"

	"github.com/stereoslam/frontend/pkg/detect"
	"github.com/stereoslam/frontend/pkg/estimate"
	"github.com/stereoslam/frontend/pkg/geometry"
	"github.com/stereoslam/frontend/pkg/opticalflow"
	"github.com/stereoslam/frontend/pkg/triangulate"
)

// Config holds the frontend's tunable thresholds, all from spec.md §6.
type Config struct {
	Rig geometry.StereoRig

	// NumFeaturesInit is the minimum number of triangulated points
	// required to leave INITING and bootstrap the map.
	NumFeaturesInit int
	// NumFeaturesTracking is the inlier count above which (strictly)
	// tracking is reported TRACKING_GOOD.
	NumFeaturesTracking int
	// NumFeaturesTrackingBad is the inlier count above which (strictly)
	// tracking is reported TRACKING_BAD instead of LOST.
	NumFeaturesTrackingBad int
	// NumFeaturesNeededForKeyframe is the inlier count below which a
	// TRACKING_GOOD frame is promoted to a keyframe (spec default 80).
	NumFeaturesNeededForKeyframe int

	Detector detect.Config
	LK       opticalflow.Params
	Estimate estimate.Params
}

// DefaultConfig returns the spec's recommended thresholds for the given
// calibrated stereo rig.
func DefaultConfig(rig geometry.StereoRig) Config {
	return Config{
		Rig:                          rig,
		NumFeaturesInit:              100,
		NumFeaturesTracking:          50,
		NumFeaturesTrackingBad:       20,
		NumFeaturesNeededForKeyframe: 80,
		Detector:                     detect.DefaultConfig(),
		LK:                           opticalflow.DefaultParams(),
		Estimate:                     estimate.DefaultParams(),
	}
}

// Frontend coordinates detection, tracking, triangulation and pose
// estimation into the INITING -> TRACKING_GOOD <-> TRACKING_BAD -> LOST
// state machine of spec.md §3. It holds the only mutable state the
// package needs beyond the Map collaborator, guarded by mu.
type Frontend struct {
	cfg      Config
	detector *detect.Detector
	flow     *opticalflow.Tracker

	mapStore Map
	backend  Backend
	viewer   Viewer

	mu             sync.Mutex
	status         TrackingStatus
	lastFrame      *Frame
	lastLeftImage  gocv.Mat
	relativeMotion geometry.SE3
	nextFrameID    FrameID
}

// New creates a Frontend. m must not be nil; backend and viewer may be
// nil, in which case their steps are skipped.
func New(cfg Config, m Map, backend Backend, viewer Viewer) (*Frontend, error) {
	if m == nil {
		return nil, ErrNilMap
	}
	if err := cfg.Rig.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrBadRig, err)
	}

	det, err := detect.NewDetector(cfg.Detector)
	if err != nil {
		return nil, fmt.Errorf("frontend: %w", err)
	}

	return &Frontend{
		cfg:            cfg,
		detector:       det,
		flow:           opticalflow.NewTracker(cfg.LK),
		mapStore:       m,
		backend:        backend,
		viewer:         viewer,
		status:         INITING,
		relativeMotion: geometry.IdentitySE3(),
		lastLeftImage:  gocv.NewMat(),
	}, nil
}

// Status returns the frontend's current tracking state.
func (fe *Frontend) Status() TrackingStatus {
	fe.mu.Lock()
	defer fe.mu.Unlock()
	return fe.status
}

// CurrentPose returns the most recently estimated world->left-camera
// pose, or the identity transform if no frame has been processed yet.
func (fe *Frontend) CurrentPose() geometry.SE3 {
	fe.mu.Lock()
	defer fe.mu.Unlock()
	if fe.lastFrame == nil {
		return geometry.IdentitySE3()
	}
	return fe.lastFrame.Pose
}

// Close releases the frontend's gocv resources.
func (fe *Frontend) Close() error {
	fe.mu.Lock()
	defer fe.mu.Unlock()
	fe.lastLeftImage.Close()
	return fe.detector.Close()
}

// AddFrame processes one synchronized, rectified, grayscale stereo pair
// and returns the resulting tracking status (spec.md §4.F). Neither left
// nor right is retained; the frontend clones what it needs to keep.
func (fe *Frontend) AddFrame(left, right gocv.Mat, ts time.Time) (TrackingStatus, error) {
	fe.mu.Lock()
	defer fe.mu.Unlock()

	frame := &Frame{ID: fe.nextFrameID, Timestamp: ts}
	fe.nextFrameID++

	var status TrackingStatus
	var err error
	switch fe.status {
	case INITING:
		status, err = fe.stereoInit(frame, left, right)
	case LOST:
		// A frame arriving in LOST triggers a soft reset (as Reset does);
		// the frame itself is not tracked.
		fe.lastFrame = nil
		fe.relativeMotion = geometry.IdentitySE3()
		status = INITING
	default:
		status, err = fe.track(frame, left, right)
	}
	if err != nil {
		return fe.status, err
	}

	fe.status = status
	// A stereo_init attempt that didn't bootstrap the map leaves frame
	// unpopulated (no pose, no features); keep the previous lastFrame
	// rather than replacing it with a zero-value one.
	if status != INITING {
		fe.lastFrame = frame
		left.CopyTo(&fe.lastLeftImage)
	}

	if fe.viewer != nil {
		fe.viewer.ShowFrame(frame, status)
	}

	return status, nil
}

// stereoInit attempts to bootstrap the map from a single stereo pair: it
// detects corners on the left image, matches each one to the right image
// via optical flow seeded at the same pixel (the search is not constrained
// to the epipolar line), triangulates the surviving pairs, keeping only
// points with positive depth in both cameras, and if enough of them
// succeed, inserts the first
// keyframe and returns TRACKING_GOOD (spec.md §4.F step "stereo_init").
func (fe *Frontend) stereoInit(frame *Frame, left, right gocv.Mat) (TrackingStatus, error) {
	noMask := gocv.NewMat()
	defer noMask.Close()
	corners, err := fe.detector.Detect(left, noMask)
	if err != nil {
		return INITING, fmt.Errorf("frontend: detect: %w", err)
	}
	if len(corners) == 0 {
		return INITING, nil
	}

	rightResults, err := fe.flow.Track(left, right, corners, corners)
	if err != nil {
		return INITING, fmt.Errorf("frontend: stereo match: %w", err)
	}

	leftPose := fe.cfg.Rig.Left.Pose()
	rightPose := fe.cfg.Rig.Right.Pose()

	features := make([]Feature, 0, len(corners))
	featuresRight := make([]*Feature, 0, len(corners))
	points := make([]*MapPoint, 0, len(corners))
	for i, c := range corners {
		if !rightResults[i].OK {
			continue
		}

		views := []triangulate.View{
			{Pose: leftPose, Point: normalizedPlane(fe.cfg.Rig.Left.K, c)},
			{Pose: rightPose, Point: normalizedPlane(fe.cfg.Rig.Right.K, rightResults[i].Point)},
		}
		pos, err := triangulate.Triangulate(views)
		if err != nil || leftPose.Apply(pos).Z <= 0 || rightPose.Apply(pos).Z <= 0 {
			continue
		}

		mp := &MapPoint{
			Position:     pos,
			Observations: []Observation{{FrameID: frame.ID, FeatureIndex: len(features)}},
		}
		rf := Feature{Pixel: rightResults[i].Point}
		features = append(features, Feature{Pixel: c})
		featuresRight = append(featuresRight, &rf)
		points = append(points, mp)
	}

	if len(points) < fe.cfg.NumFeaturesInit {
		return INITING, nil
	}

	frame.Pose = geometry.IdentitySE3()
	frame.IsKeyframe = true
	frame.Features = features
	frame.FeaturesRight = featuresRight

	if err := fe.mapStore.InsertKeyframe(frame); err != nil {
		return INITING, fmt.Errorf("frontend: insert keyframe: %w", err)
	}
	for i, mp := range points {
		id := fe.mapStore.InsertMapPoint(mp)
		frame.Features[i].MapPointID = id
		frame.Features[i].HasMapPoint = true
		frame.FeaturesRight[i].MapPointID = id
		frame.FeaturesRight[i].HasMapPoint = true
	}

	fe.relativeMotion = geometry.IdentitySE3()
	if fe.backend != nil {
		fe.backend.UpdateMap()
	}
	return TRACKING_GOOD, nil
}

// track runs the steady-state tracking pipeline: optical flow from the
// previous frame's features, seeded by projecting each feature's
// MapPoint through the constant-velocity prior pose where one exists
// (identity otherwise), motion-only pose refinement against the
// associated map points, and keyframe admission (spec.md §4.F steps
// "track_last_frame"/"insert_keyframe").
func (fe *Frontend) track(frame *Frame, left, right gocv.Mat) (TrackingStatus, error) {
	prev := fe.lastFrame
	priorPose := fe.relativeMotion.Compose(prev.Pose)

	prevPixels := make([]geometry.Vec2, len(prev.Features))
	guesses := make([]geometry.Vec2, len(prev.Features))
	for i, f := range prev.Features {
		prevPixels[i] = f.Pixel
		guesses[i] = f.Pixel
		if f.HasMapPoint {
			if mp, ok := fe.mapStore.MapPoint(f.MapPointID); ok {
				guesses[i] = fe.cfg.Rig.Left.K.Project(priorPose.Apply(mp.Position))
			}
		}
	}

	results, err := fe.flow.Track(fe.lastLeftImage, left, prevPixels, guesses)
	if err != nil {
		return fe.status, fmt.Errorf("frontend: track: %w", err)
	}

	obs := make([]estimate.Observation, 0, len(results))
	obsFeatureIdx := make([]int, 0, len(results))
	for i, r := range results {
		if !r.OK || !prev.Features[i].HasMapPoint {
			continue
		}
		mp, ok := fe.mapStore.MapPoint(prev.Features[i].MapPointID)
		if !ok {
			continue
		}
		obs = append(obs, estimate.Observation{Point: mp.Position, Pixel: r.Point})
		obsFeatureIdx = append(obsFeatureIdx, i)
	}

	if len(obs) == 0 {
		frame.Pose = priorPose
		return LOST, nil
	}

	result := estimate.EstimatePose(priorPose, fe.cfg.Rig.Left.K, obs, fe.cfg.Estimate)

	// outlierByIdx is keyed by index into prev.Features/results, not by
	// index into obs, so an unassociated feature tracked alongside an
	// outlier one is never mistaken for it.
	outlierByIdx := make(map[int]bool, len(result.OutlierIndices))
	for _, k := range result.OutlierIndices {
		outlierByIdx[obsFeatureIdx[k]] = true
	}

	// Every feature optical flow still tracks survives into the new
	// frame, whether or not it carries a MapPoint association: a feature
	// detached as an outlier in an earlier frame stays a tracked,
	// unassociated feature. Nothing in this package re-associates such a
	// feature with a landmark later; insert_keyframe only creates
	// landmarks for newly detected corners, and pose estimation only uses
	// features that already have one.
	features := make([]Feature, 0, len(results))
	for i, r := range results {
		if !r.OK {
			continue
		}
		f := Feature{Pixel: r.Point}
		switch {
		case outlierByIdx[i]:
			// Detach the association; the feature survives unassociated.
		case prev.Features[i].HasMapPoint:
			f.MapPointID = prev.Features[i].MapPointID
			f.HasMapPoint = true
		}
		features = append(features, f)
	}

	fe.relativeMotion = result.Pose.Compose(prev.Pose.Inverse())
	frame.Pose = result.Pose
	frame.Features = features

	status := fe.classifyTracking(result.Inliers)
	if status == TRACKING_GOOD && result.Inliers < fe.cfg.NumFeaturesNeededForKeyframe {
		if err := fe.insertKeyframe(frame, left, right); err != nil {
			return status, err
		}
	}
	return status, nil
}

// classifyTracking maps an inlier count to a TrackingStatus per the
// strict thresholds of spec.md §4.F step 4: inliers == a threshold does
// not meet it, only exceeding it does.
func (fe *Frontend) classifyTracking(inliers int) TrackingStatus {
	switch {
	case inliers > fe.cfg.NumFeaturesTracking:
		return TRACKING_GOOD
	case inliers > fe.cfg.NumFeaturesTrackingBad:
		return TRACKING_BAD
	default:
		return LOST
	}
}

// insertKeyframe records an observation for every currently-tracked
// feature, detects fresh corners outside the existing feature footprint,
// triangulates new landmarks for them against the right image (keeping
// only points with positive depth in both cameras), and
// inserts the enriched frame into the map (spec.md §4.F
// "Keyframe admission").
func (fe *Frontend) insertKeyframe(frame *Frame, left, right gocv.Mat) error {
	fe.recordObservations(frame)

	// Features carried forward by track_last_frame were never re-matched
	// against the right image this frame; pad with absent (nil) entries
	// so FeaturesRight stays parallel to Features before the new
	// stereo-matched corners below are appended 1:1.
	for len(frame.FeaturesRight) < len(frame.Features) {
		frame.FeaturesRight = append(frame.FeaturesRight, nil)
	}

	existing := make([]geometry.Vec2, len(frame.Features))
	for i, f := range frame.Features {
		existing[i] = f.Pixel
	}
	mask := fe.detector.BuildExclusionMask(left.Cols(), left.Rows(), existing)
	defer mask.Close()

	newCorners, err := fe.detector.Detect(left, mask)
	if err != nil {
		return fmt.Errorf("frontend: keyframe detect: %w", err)
	}

	frame.IsKeyframe = true

	if len(newCorners) > 0 {
		rightResults, err := fe.flow.Track(left, right, newCorners, newCorners)
		if err != nil {
			return fmt.Errorf("frontend: keyframe stereo match: %w", err)
		}

		leftPose := frame.Pose
		rightPose := fe.cfg.Rig.Right.Pose().Compose(frame.Pose)

		for i, c := range newCorners {
			leftFeature := Feature{Pixel: c}
			var rightFeature *Feature
			if rightResults[i].OK {
				rf := Feature{Pixel: rightResults[i].Point}
				rightFeature = &rf

				views := []triangulate.View{
					{Pose: leftPose, Point: normalizedPlane(fe.cfg.Rig.Left.K, c)},
					{Pose: rightPose, Point: normalizedPlane(fe.cfg.Rig.Right.K, rightResults[i].Point)},
				}
				if pos, err := triangulate.Triangulate(views); err == nil && leftPose.Apply(pos).Z > 0 && rightPose.Apply(pos).Z > 0 {
					mp := &MapPoint{
						Position:     pos,
						Observations: []Observation{{FrameID: frame.ID, FeatureIndex: len(frame.Features)}},
					}
					id := fe.mapStore.InsertMapPoint(mp)
					leftFeature.MapPointID = id
					leftFeature.HasMapPoint = true
					rightFeature.MapPointID = id
					rightFeature.HasMapPoint = true
				}
			}
			frame.Features = append(frame.Features, leftFeature)
			frame.FeaturesRight = append(frame.FeaturesRight, rightFeature)
		}
	}

	if err := fe.mapStore.InsertKeyframe(frame); err != nil {
		return fmt.Errorf("frontend: insert keyframe: %w", err)
	}

	if fe.backend != nil {
		fe.backend.UpdateMap()
	}
	return nil
}

// recordObservations appends an Observation for frame to the MapPoint
// backing every currently-tracked feature, per spec.md §4.F "add
// observations from each currently-tracked feature to its MapPoint".
func (fe *Frontend) recordObservations(frame *Frame) {
	for i, f := range frame.Features {
		if !f.HasMapPoint {
			continue
		}
		fe.mapStore.AddObservation(f.MapPointID, Observation{FrameID: frame.ID, FeatureIndex: i})
	}
}

// normalizedPlane projects a pixel to the camera's normalized (z=1)
// image plane, the coordinate triangulate.View expects.
func normalizedPlane(k geometry.Intrinsics, pixel geometry.Vec2) geometry.Vec2 {
	c := k.PixelToCamera(pixel)
	return geometry.Vec2{X: c.X, Y: c.Y}
}

// Reset performs a soft reset (spec.md §9 Open Question 2): tracking
// state is cleared and the frontend returns to INITING, but the map
// accumulated so far is left untouched for the backend/viewer to keep
// using.
func (fe *Frontend) Reset() {
	fe.mu.Lock()
	defer fe.mu.Unlock()
	fe.status = INITING
	fe.lastFrame = nil
	fe.relativeMotion = geometry.IdentitySE3()
}
