package anglemath

import (
	"math"
	"testing"
)

func TestWrapRange(t *testing.T) {
	cases := []float64{-720, -270, -180.0001, -180, 0, 45, 179.999, 180, 181, 360, 540, 1000.5}
	for _, x := range cases {
		w := Wrap(x)
		if w <= -180 || w > 180 {
			t.Errorf("Wrap(%v) = %v, out of (-180,180]", x, w)
		}
		if ww := Wrap(w); math.Abs(ww-w) > 1e-9 {
			t.Errorf("Wrap(Wrap(%v)) = %v, want %v (idempotent)", x, ww, w)
		}
	}
}

func TestLerpEndpoints(t *testing.T) {
	a, b := 10.0, 200.0
	if got := Lerp(a, b, 0); math.Abs(got-Wrap(a)) > 1e-9 {
		t.Errorf("Lerp(a,b,0) = %v, want %v", got, Wrap(a))
	}
	if got := Lerp(a, b, 1); math.Abs(got-Wrap(b)) > 1e-9 {
		t.Errorf("Lerp(a,b,1) = %v, want %v", got, Wrap(b))
	}
}

func TestLerpShortArc(t *testing.T) {
	got := Lerp(170, -170, 0.5)
	if math.Abs(got-180) > 1e-9 {
		t.Errorf("Lerp(170,-170,0.5) = %v, want 180 (short arc)", got)
	}
}

func TestClamp(t *testing.T) {
	if Clamp(-1, 0, 1) != 0 {
		t.Error("Clamp should floor at lo")
	}
	if Clamp(2, 0, 1) != 1 {
		t.Error("Clamp should ceil at hi")
	}
	if Clamp(0.5, 0, 1) != 0.5 {
		t.Error("Clamp should pass through in-range values")
	}
}
