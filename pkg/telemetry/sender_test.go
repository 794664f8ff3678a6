package telemetry

import (
	"bytes"
	"math"
	"testing"

	"github.com/stereoslam/frontend/pkg/frontend"
	"github.com/stereoslam/frontend/pkg/geometry"
)

func TestBuildOSCMessageStartsWithAddress(t *testing.T) {
	msg := buildOSCMessage("/slam/pose", float32(1), float32(2), "tracking_good")
	if !bytes.HasPrefix(msg, []byte("/slam/pose")) {
		t.Error("message should start with its address")
	}
}

func TestAppendOSCStringPadsTo4ByteBoundary(t *testing.T) {
	cases := []struct {
		input  string
		wantLen int
	}{
		{"", 4},
		{"a", 4},
		{"ab", 4},
		{"abc", 4},
		{"abcd", 8},
	}
	for _, c := range cases {
		buf := appendOSCString(nil, c.input)
		if len(buf) != c.wantLen {
			t.Errorf("appendOSCString(%q) = len %d, want %d", c.input, len(buf), c.wantLen)
		}
		if buf[len(c.input)] != 0 {
			t.Errorf("expected null terminator after %q", c.input)
		}
	}
}

func TestAppendFloat32RoundTrips(t *testing.T) {
	buf := appendFloat32(nil, 3.25)
	if len(buf) != 4 {
		t.Fatalf("expected 4 bytes, got %d", len(buf))
	}
	bits := uint32(buf[0])<<24 | uint32(buf[1])<<16 | uint32(buf[2])<<8 | uint32(buf[3])
	got := math.Float32frombits(bits)
	if got != 3.25 {
		t.Errorf("got %v, want 3.25", got)
	}
}

func TestQuaternionFromIdentityRotation(t *testing.T) {
	q := quaternionFromRotation(geometry.Identity3())
	if math.Abs(q.W-1) > 1e-9 || math.Abs(q.X) > 1e-9 || math.Abs(q.Y) > 1e-9 || math.Abs(q.Z) > 1e-9 {
		t.Errorf("identity rotation should give identity quaternion, got %+v", q)
	}
}

func TestSendOnClosedSenderIsNoop(t *testing.T) {
	s, err := NewPoseSender("127.0.0.1", 9999)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := s.Close(); err != nil {
		t.Fatalf("unexpected close error: %v", err)
	}
	if err := s.Send(geometry.IdentitySE3(), frontend.INITING); err != nil {
		t.Errorf("Send after Close should be a silent no-op, got error: %v", err)
	}
}
