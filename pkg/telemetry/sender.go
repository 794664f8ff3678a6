// Package telemetry broadcasts the frontend's estimated pose over OSC,
// for a separate visualizer or logger process to consume. It reuses the
// OSC message framing from the VMC protocol work this codebase started
// from, retargeted at a single /slam/pose address instead of per-bone
// VMC messages (spec.md is silent on telemetry; this supplements it,
// grounded on the teacher's existing OSC sender).
package telemetry

import (
	"encoding/binary"
	"fmt"
	"math"
	"net"
	"sync"

	"github.com/stereoslam/frontend/pkg/frontend"
	"github.com/stereoslam/frontend/pkg/geometry"
)

// PoseSender transmits pose updates as OSC messages over UDP.
type PoseSender struct {
	mu      sync.Mutex
	conn    *net.UDPConn
	enabled bool
}

// NewPoseSender dials a UDP connection to address:port and returns a
// ready-to-use PoseSender.
func NewPoseSender(address string, port int) (*PoseSender, error) {
	addr, err := net.ResolveUDPAddr("udp", fmt.Sprintf("%s:%d", address, port))
	if err != nil {
		return nil, fmt.Errorf("telemetry: resolving address: %w", err)
	}
	conn, err := net.DialUDP("udp", nil, addr)
	if err != nil {
		return nil, fmt.Errorf("telemetry: connecting: %w", err)
	}
	return &PoseSender{conn: conn, enabled: true}, nil
}

// Send transmits a pose and tracking status as a single OSC message at
// /slam/pose: translation (x,y,z), rotation as a quaternion (x,y,z,w),
// and the tracking status as a string.
func (s *PoseSender) Send(pose geometry.SE3, status frontend.TrackingStatus) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.enabled || s.conn == nil {
		return nil
	}

	q := quaternionFromRotation(pose.R)
	msg := buildOSCMessage("/slam/pose",
		float32(pose.T.X), float32(pose.T.Y), float32(pose.T.Z),
		float32(q.X), float32(q.Y), float32(q.Z), float32(q.W),
		status.String(),
	)
	if _, err := s.conn.Write(msg); err != nil {
		return fmt.Errorf("telemetry: sending pose: %w", err)
	}
	return nil
}

// Close releases the sender's UDP connection.
func (s *PoseSender) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.enabled = false
	if s.conn != nil {
		return s.conn.Close()
	}
	return nil
}

// quaternion is a minimal rotation quaternion, used only to serialize
// SE3.R into the OSC message.
type quaternion struct {
	X, Y, Z, W float64
}

// quaternionFromRotation converts a rotation matrix to a unit quaternion
// via the standard trace-based extraction.
func quaternionFromRotation(r geometry.Mat3) quaternion {
	trace := r[0][0] + r[1][1] + r[2][2]
	switch {
	case trace > 0:
		s := math.Sqrt(trace+1) * 2
		return quaternion{
			W: s / 4,
			X: (r[2][1] - r[1][2]) / s,
			Y: (r[0][2] - r[2][0]) / s,
			Z: (r[1][0] - r[0][1]) / s,
		}
	case r[0][0] > r[1][1] && r[0][0] > r[2][2]:
		s := math.Sqrt(1+r[0][0]-r[1][1]-r[2][2]) * 2
		return quaternion{
			W: (r[2][1] - r[1][2]) / s,
			X: s / 4,
			Y: (r[0][1] + r[1][0]) / s,
			Z: (r[0][2] + r[2][0]) / s,
		}
	case r[1][1] > r[2][2]:
		s := math.Sqrt(1+r[1][1]-r[0][0]-r[2][2]) * 2
		return quaternion{
			W: (r[0][2] - r[2][0]) / s,
			X: (r[0][1] + r[1][0]) / s,
			Y: s / 4,
			Z: (r[1][2] + r[2][1]) / s,
		}
	default:
		s := math.Sqrt(1+r[2][2]-r[0][0]-r[1][1]) * 2
		return quaternion{
			W: (r[1][0] - r[0][1]) / s,
			X: (r[0][2] + r[2][0]) / s,
			Y: (r[1][2] + r[2][1]) / s,
			Z: s / 4,
		}
	}
}

// buildOSCMessage creates an OSC message with the given address and
// arguments, framed exactly as the OSC 1.0 spec requires: a
// null-terminated, 4-byte-aligned address, a type tag string, then each
// argument in order.
func buildOSCMessage(address string, args ...interface{}) []byte {
	buf := make([]byte, 0, 64)
	buf = appendOSCString(buf, address)

	typeTag := ","
	for _, arg := range args {
		switch arg.(type) {
		case float32:
			typeTag += "f"
		case string:
			typeTag += "s"
		}
	}
	buf = appendOSCString(buf, typeTag)

	for _, arg := range args {
		switch v := arg.(type) {
		case float32:
			buf = appendFloat32(buf, v)
		case string:
			buf = appendOSCString(buf, v)
		}
	}
	return buf
}

func appendOSCString(buf []byte, s string) []byte {
	buf = append(buf, []byte(s)...)
	buf = append(buf, 0)
	padding := (4 - (len(s)+1)%4) % 4
	for i := 0; i < padding; i++ {
		buf = append(buf, 0)
	}
	return buf
}

func appendFloat32(buf []byte, v float32) []byte {
	b := make([]byte, 4)
	binary.BigEndian.PutUint32(b, math.Float32bits(v))
	return append(buf, b...)
}
