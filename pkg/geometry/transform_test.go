package geometry

import (
	"math"
	"testing"
)

func almostEqualVec3(a, b Vec3, eps float64) bool {
	return math.Abs(a.X-b.X) < eps && math.Abs(a.Y-b.Y) < eps && math.Abs(a.Z-b.Z) < eps
}

func TestIdentitySE3Apply(t *testing.T) {
	id := IdentitySE3()
	p := Vec3{X: 1, Y: 2, Z: 3}
	got := id.Apply(p)
	if !almostEqualVec3(got, p, 1e-12) {
		t.Errorf("identity transform changed point: got %+v, want %+v", got, p)
	}
}

func TestSE3InverseRoundTrip(t *testing.T) {
	xi := ExpSE3(Vec3{X: 0.1, Y: -0.2, Z: 0.3}, Vec3{X: 0.05, Y: 0.1, Z: -0.05})
	p := Vec3{X: 1, Y: -2, Z: 5}

	back := xi.Inverse().Apply(xi.Apply(p))
	if !almostEqualVec3(back, p, 1e-9) {
		t.Errorf("inverse round trip failed: got %+v, want %+v", back, p)
	}
}

func TestSE3ComposeMatchesSequentialApply(t *testing.T) {
	a := ExpSE3(Vec3{X: 0.1}, Vec3{X: 0.2})
	b := ExpSE3(Vec3{Y: 0.3}, Vec3{Y: 0.1})
	p := Vec3{X: 1, Y: 1, Z: 1}

	composed := a.Compose(b).Apply(p)
	sequential := a.Apply(b.Apply(p))
	if !almostEqualVec3(composed, sequential, 1e-9) {
		t.Errorf("compose did not match sequential application: got %+v, want %+v", composed, sequential)
	}
}

func TestExpSE3ZeroIsIdentity(t *testing.T) {
	zero := ExpSE3(Vec3{}, Vec3{})
	p := Vec3{X: 3, Y: -1, Z: 2}
	if !almostEqualVec3(zero.Apply(p), p, 1e-12) {
		t.Errorf("ExpSE3 of zero vector should be identity")
	}
}

func TestExpSE3QuarterTurnAboutZ(t *testing.T) {
	xi := ExpSE3(Vec3{}, Vec3{X: 0, Y: 0, Z: math.Pi / 2})
	p := Vec3{X: 1, Y: 0, Z: 0}
	got := xi.Apply(p)
	// Rotating (1,0,0) by 90 degrees about Z should give (0,1,0).
	if !almostEqualVec3(got, Vec3{X: 0, Y: 1, Z: 0}, 1e-9) {
		t.Errorf("90 degree Z rotation: got %+v, want (0,1,0)", got)
	}
}
