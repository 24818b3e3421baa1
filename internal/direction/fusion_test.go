package direction

import (
	"math"
	"testing"

	"github.com/hudwear/hudserver/internal/config"
)

func approxEqual(t *testing.T, got, want, tol float64) {
	t.Helper()
	if math.Abs(got-want) > tol {
		t.Fatalf("got %v, want %v (tol %v)", got, want, tol)
	}
}

func TestFuseQuadFrontCenter(t *testing.T) {
	c := config.Default()
	r := Fuse(Inputs{FL: 1, FR: 1, BL: 0, BR: 0, FrontFresh: true, BackFresh: true}, c)
	if r.Source != SourceQuad {
		t.Fatalf("source=%v, want quad", r.Source)
	}
	approxEqual(t, r.RawDirection, 0, 1e-6)
}

func TestFuseFrontOnly(t *testing.T) {
	c := config.Default()

	right := Fuse(Inputs{FL: 0, FR: 1, FrontFresh: true}, c)
	if right.Source != SourceFront {
		t.Fatalf("source=%v, want front", right.Source)
	}
	approxEqual(t, right.RawDirection, 90, 1e-6)

	left := Fuse(Inputs{FL: 1, FR: 0, FrontFresh: true}, c)
	approxEqual(t, left.RawDirection, -90, 1e-6)
}

func TestFuseBackOnly(t *testing.T) {
	c := config.Default()
	r := Fuse(Inputs{BL: 1, BR: 0, BackFresh: true}, c)
	if r.Source != SourceBack {
		t.Fatalf("source=%v, want back", r.Source)
	}
	// balance=(0-1)/(1+eps); shaped=-(1/(1+eps))^0.8;
	// raw=wrap(180+150*(1/(1+eps))^0.8)=150*(1/(1+eps))^0.8-180, just under -30.
	approxEqual(t, r.RawDirection, 150*math.Pow(1/(1+eps), 0.8)-180, 1e-6)
}

func TestFuseMonoFallback(t *testing.T) {
	c := config.Default()
	front := Fuse(Inputs{FL: 0.2, FR: 0, MonoFront: true}, c)
	if front.Source != SourceMono || front.RawDirection != 0 {
		t.Fatalf("got %+v", front)
	}
	back := Fuse(Inputs{BL: 0.2, BR: 0, MonoBack: true}, c)
	if back.Source != SourceMono || back.RawDirection != 180 {
		t.Fatalf("got %+v", back)
	}
}

func TestFuseNoneWhenNothingFresh(t *testing.T) {
	c := config.Default()
	r := Fuse(Inputs{}, c)
	if r.Source != SourceNone {
		t.Fatalf("source=%v, want none", r.Source)
	}
}

func TestSmootherShortArc(t *testing.T) {
	s := NewSmoother(0.5)
	s.Update(170)
	got := s.Update(-170)
	approxEqual(t, got, 180, 1e-6)
}

func TestDeltaYawZeroWhenPoseMissing(t *testing.T) {
	if got := DeltaYaw(false, true, 10, 0, 10, 0); got != 0 {
		t.Fatalf("got %v, want 0", got)
	}
}

func TestDeltaYawAppliesOffsets(t *testing.T) {
	// head compensation example from spec §8: delta_yaw=30 when torso-frame
	// dir=60 yields final direction_deg=30.
	got := DeltaYaw(true, true, 30, 0, 0, 0)
	approxEqual(t, got, 30, 1e-6)
}

func TestGlowEdge(t *testing.T) {
	cases := map[float64]string{0: "top", 44: "top", 90: "right", 134.9: "right", -90: "left", -134.9: "left", 180: "bottom", -180: "bottom"}
	for deg, want := range cases {
		if got := GlowEdge(deg); got != want {
			t.Fatalf("GlowEdge(%v)=%v, want %v", deg, got, want)
		}
	}
}
