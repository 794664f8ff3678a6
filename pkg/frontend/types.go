// Package frontend implements the tracking frontend state machine: it
// turns a stream of synchronized stereo image pairs into camera poses and
// a sparse map of landmarks, coordinating feature detection, optical-flow
// tracking, triangulation and motion-only pose refinement (spec.md §4.F).
package frontend

import (
	"errors"
	"time"

	"github.com/stereoslam/frontend/pkg/geometry"
)

// Sentinel errors returned by the frontend.
var (
	ErrNilMap     = errors.New("frontend: map store is required")
	ErrBadRig     = errors.New("frontend: stereo rig is invalid")
	ErrNotIniting = errors.New("frontend: reset is only valid once tracking has started")
)

// TrackingStatus is the frontend's state, per spec.md §3.
type TrackingStatus int

const (
	// INITING means no map exists yet; the frontend is waiting for a
	// stereo pair with enough triangulated points to bootstrap the map.
	INITING TrackingStatus = iota
	// TRACKING_GOOD means motion-only tracking found enough inliers.
	TRACKING_GOOD
	// TRACKING_BAD means tracking succeeded but with a thin inlier set;
	// the frontend keeps going but will not insert new keyframes.
	TRACKING_BAD
	// LOST means tracking failed outright; the frontend needs a reset.
	LOST
)

func (s TrackingStatus) String() string {
	switch s {
	case INITING:
		return "initing"
	case TRACKING_GOOD:
		return "tracking_good"
	case TRACKING_BAD:
		return "tracking_bad"
	case LOST:
		return "lost"
	default:
		return "unknown"
	}
}

// FrameID identifies a frame the frontend has processed.
type FrameID uint64

// MapPointID identifies a triangulated landmark.
type MapPointID uint64

// Feature is a tracked or detected point in one frame's left image. A
// Feature carries at most one MapPoint association at a time; HasMapPoint
// distinguishes "never associated" from "associated with MapPointID 0" (0
// is a valid ID, not a sentinel) so the zero value of Feature is a
// well-formed, unassociated feature (spec.md §9: association resolved by
// stable ID rather than a direct pointer, so features and map points do
// not hold literal cyclic references).
type Feature struct {
	Pixel       geometry.Vec2
	MapPointID  MapPointID
	HasMapPoint bool
	// IsOutlier marks a feature whose reprojection error exceeded the
	// robust threshold during pose optimization. The frontend tracks
	// optimizer outliers internally and, instead of setting this flag,
	// detaches the outlier's MapPoint association; every Feature it
	// produces has IsOutlier false.
	IsOutlier bool
}

// Observation is a MapPoint's back-reference to one of its sightings:
// the frame it was seen in and the index of the corresponding Feature in
// that frame's Features slice (spec.md §9).
type Observation struct {
	FrameID      FrameID
	FeatureIndex int
}

// Frame is one processed stereo pair: its estimated pose and the two
// parallel feature sequences carried forward from detection/tracking.
// Features and FeaturesRight are parallel: entry i in both refers to the
// same candidate correspondence. A nil FeaturesRight[i] means no matched
// feature was found on the right image for Features[i] (spec.md §3).
// FeaturesRight is only populated for frames that went through stereo
// matching (stereo_init or a keyframe's new-correspondence detection);
// a frame produced purely by left-image tracking leaves it nil.
type Frame struct {
	ID        FrameID
	Timestamp time.Time
	// Pose is the world->left-camera transform at this frame. The body
	// frame is taken to coincide with the left (reference) camera frame,
	// so this doubles as the rig's body pose; only the right camera
	// carries a nontrivial extrinsic (the baseline).
	Pose          geometry.SE3
	Features      []Feature
	FeaturesRight []*Feature
	IsKeyframe    bool
}

// MapPoint is a triangulated 3D landmark and the frames that observe it.
type MapPoint struct {
	ID           MapPointID
	Position     geometry.Vec3
	Observations []Observation
}

// Map is the frontend's external collaborator for persisting keyframes
// and landmarks (spec.md §6). mapstore.Store is the default
// implementation shipped alongside this package.
type Map interface {
	InsertKeyframe(f *Frame) error
	InsertMapPoint(p *MapPoint) MapPointID
	MapPoint(id MapPointID) (*MapPoint, bool)
	ActiveMapPoints() []*MapPoint
	// AddObservation records that frame/feature obs sighted the MapPoint
	// with the given ID, appending to its Observations under the Map's
	// own lock. It reports false if id is not a known MapPoint.
	AddObservation(id MapPointID, obs Observation) bool
}

// Backend is the frontend's external collaborator for background map
// refinement (e.g. local bundle adjustment). The frontend calls
// UpdateMap after every keyframe insertion and does not wait for it to
// finish (spec.md §6). backend.Noop is the default implementation.
type Backend interface {
	UpdateMap()
}

// Viewer is the frontend's external collaborator for visualization
// (spec.md §6). preview.Window is the default implementation.
type Viewer interface {
	ShowFrame(f *Frame, status TrackingStatus)
}
