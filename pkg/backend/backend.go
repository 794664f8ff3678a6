// Package backend provides the default frontend.Backend implementation.
// Full local/global bundle adjustment is out of scope for this module
// (spec.md §1 Non-goals); Noop stands in as the collaborator the
// frontend calls after every keyframe so the interface boundary is
// exercised end to end, with a counter a caller can inspect in tests or
// diagnostics.
package backend

import "sync/atomic"

// Noop is a frontend.Backend that performs no map refinement. It counts
// how many times UpdateMap has been invoked.
type Noop struct {
	calls atomic.Int64
}

// New creates a Noop backend.
func New() *Noop {
	return &Noop{}
}

// UpdateMap records the call. It does no bundle adjustment.
func (n *Noop) UpdateMap() {
	n.calls.Add(1)
}

// Calls reports how many times UpdateMap has been invoked so far.
func (n *Noop) Calls() int64 {
	return n.calls.Load()
}
