// Package mapstore provides the default, in-memory implementation of the
// frontend.Map collaborator: a concurrency-safe store of keyframes and
// triangulated landmarks with monotonic ID allocation (spec.md §5/§9).
package mapstore

import (
	"sync"

	"github.com/stereoslam/frontend/pkg/frontend"
)

// Store is a concurrency-safe, in-memory frontend.Map. Reads (used by
// the frontend's tracking loop and by a viewer polling for a snapshot)
// take the read lock; the single-threaded frontend is the only writer,
// but the lock also protects concurrent read access from a viewer or
// backend goroutine.
type Store struct {
	mu         sync.RWMutex
	keyframes  []*frontend.Frame
	mapPoints  map[frontend.MapPointID]*frontend.MapPoint
	nextPointID frontend.MapPointID
}

// New creates an empty Store.
func New() *Store {
	return &Store{mapPoints: make(map[frontend.MapPointID]*frontend.MapPoint)}
}

// InsertKeyframe appends f to the keyframe history. Store never rejects
// a keyframe; the frontend alone decides admission policy.
func (s *Store) InsertKeyframe(f *frontend.Frame) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.keyframes = append(s.keyframes, f)
	return nil
}

// InsertMapPoint assigns p a fresh MapPointID, stores it, and returns the
// ID.
func (s *Store) InsertMapPoint(p *frontend.MapPoint) frontend.MapPointID {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextPointID++
	p.ID = s.nextPointID
	s.mapPoints[p.ID] = p
	return p.ID
}

// AddObservation appends obs to the Observations of the MapPoint
// identified by id, under the store's write lock. It reports false if
// id is not a known landmark.
func (s *Store) AddObservation(id frontend.MapPointID, obs frontend.Observation) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.mapPoints[id]
	if !ok {
		return false
	}
	p.Observations = append(p.Observations, obs)
	return true
}

// MapPoint looks up a landmark by ID.
func (s *Store) MapPoint(id frontend.MapPointID) (*frontend.MapPoint, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.mapPoints[id]
	return p, ok
}

// ActiveMapPoints returns a snapshot slice of every stored landmark, for
// a viewer or backend to read without holding the store's lock.
func (s *Store) ActiveMapPoints() []*frontend.MapPoint {
	s.mu.RLock()
	defer s.mu.RUnlock()
	points := make([]*frontend.MapPoint, 0, len(s.mapPoints))
	for _, p := range s.mapPoints {
		points = append(points, p)
	}
	return points
}

// Keyframes returns a snapshot slice of every inserted keyframe, in
// insertion order.
func (s *Store) Keyframes() []*frontend.Frame {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*frontend.Frame, len(s.keyframes))
	copy(out, s.keyframes)
	return out
}

// NumMapPoints reports how many landmarks are currently stored.
func (s *Store) NumMapPoints() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.mapPoints)
}
