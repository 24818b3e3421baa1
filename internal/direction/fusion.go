// Package direction implements the 20 Hz Direction Loop from spec §4.3: it
// fuses up to four channel RMS levels into a torso-relative direction and
// intensity, smooths it, compensates for head/torso delta yaw, and maps the
// result to UI polar coordinates. Fusion itself (Fuse) is pure and takes
// plain float64 inputs so it can be exercised by the Radar Track Loop's
// per-peak direction estimate too (spec §4.4 reuses these same equations).
package direction

import (
	"math"

	"github.com/hudwear/hudserver/internal/anglemath"
	"github.com/hudwear/hudserver/internal/config"
)

const eps = 1e-6

// Source names the fusion mode that produced a Result.
type Source string

const (
	SourceQuad  Source = "quad"
	SourceFront Source = "front"
	SourceBack  Source = "back"
	SourceMono  Source = "mono"
	SourceNone  Source = ""
)

// Result is the raw (pre-smoothing) output of one fusion pass.
type Result struct {
	Source       Source
	RawDirection float64 // degrees, torso frame
	Intensity    float64 // [0,1]
}

// Inputs are the four channel energies (RMS or band energy) plus which
// channels are currently fresh/present.
type Inputs struct {
	FL, FR, BL, BR     float64
	FrontFresh         bool
	BackFresh          bool // phone mic fresh AND stereo
	MonoFront, MonoBack bool // a single channel fresh, for the mono fallback
}

// Fuse selects a fusion mode per spec §4.3 step 2 and computes raw direction
// and intensity. Returns SourceNone if nothing is fresh.
func Fuse(in Inputs, c *config.Config) Result {
	switch {
	case in.FrontFresh && in.BackFresh:
		return fuseQuad(in, c)
	case in.FrontFresh:
		return fuseFront(in, c)
	case in.BackFresh:
		return fuseBack(in, c)
	case in.MonoFront:
		return Result{Source: SourceMono, RawDirection: 0, Intensity: clampIntensity((in.FL+in.FR)*c.DirectionGainMono, 0)}
	case in.MonoBack:
		return Result{Source: SourceMono, RawDirection: 180, Intensity: clampIntensity((in.BL+in.BR)*c.DirectionGainMono, 0)}
	default:
		return Result{Source: SourceNone}
	}
}

func fuseQuad(in Inputs, c *config.Config) Result {
	fl, fr, bl, br := in.FL, in.FR, in.BL, in.BR
	if c.QuadFrontWeight != 0 {
		fl *= c.QuadFrontWeight
		fr *= c.QuadFrontWeight
	}
	if c.QuadBackWeight != 0 {
		bl *= c.QuadBackWeight
		br *= c.QuadBackWeight
	}

	xBalance := (br - bl) / (bl + br + eps)
	yBalance := anglemath.Clamp(((fl+fr)-(bl+br))/(fl+fr+bl+br+eps)*c.HybridFrontBackGain, -1, 1)
	raw := math.Atan2(xBalance, yBalance) * 180 / math.Pi
	intensity := clampIntensity((in.FL+in.FR+in.BL+in.BR-c.DirectionNoiseFloor)*c.DirectionGainQuad, 0)
	return Result{Source: SourceQuad, RawDirection: raw, Intensity: intensity}
}

func fuseFront(in Inputs, c *config.Config) Result {
	balance := (in.FR - in.FL) / (in.FL + in.FR + eps)
	raw := anglemath.Clamp(balance*90, -90, 90)
	intensity := clampIntensity((in.FL+in.FR-c.DirectionNoiseFloor)*c.DirectionGainLR, 0)
	return Result{Source: SourceFront, RawDirection: raw, Intensity: intensity}
}

func fuseBack(in Inputs, c *config.Config) Result {
	balance := (in.BR - in.BL) / (in.BL + in.BR + eps)
	shaped := math.Copysign(math.Pow(math.Abs(balance), c.BackBalanceExp), balance)
	gain := c.BackBalanceGainDeg
	if gain > 170 {
		gain = 170
	}
	raw := anglemath.Wrap(180 - shaped*gain)
	intensity := clampIntensity((in.BL+in.BR-c.DirectionNoiseFloor)*c.DirectionGainLR, 0)
	return Result{Source: SourceBack, RawDirection: raw, Intensity: intensity}
}

func clampIntensity(v, lo float64) float64 {
	return anglemath.Clamp(v, lo, 1)
}

// Smoother maintains the torso-frame EMA direction across ticks (spec §4.3
// step 3). Zero value is not usable; use NewSmoother.
type Smoother struct {
	alpha float64
	value float64
	init  bool
}

// NewSmoother creates a Smoother with the given EMA weight.
func NewSmoother(alpha float64) *Smoother {
	return &Smoother{alpha: alpha}
}

// Update folds raw into the smoothed torso-frame direction and returns it.
func (s *Smoother) Update(raw float64) float64 {
	if !s.init {
		s.value = anglemath.Wrap(raw)
		s.init = true
		return s.value
	}
	s.value = anglemath.Lerp(s.value, raw, s.alpha)
	return s.value
}

// Reset clears smoothing state so the next Update seeds it directly.
func (s *Smoother) Reset() {
	s.init = false
	s.value = 0
}

// DeltaYaw computes wrap((head_yaw-head0) - (torso_yaw-torso0)); either pose
// missing yields 0 (spec glossary "Delta yaw").
func DeltaYaw(hasHead, hasTorso bool, headYaw, head0, torsoYaw, torso0 float64) float64 {
	if !hasHead || !hasTorso {
		return 0
	}
	return anglemath.Wrap((headYaw - head0) - (torsoYaw - torso0))
}

// GlowEdge classifies a head-frame direction into a HUD glow edge (spec
// §4.3 step 5).
func GlowEdge(directionDeg float64) string {
	switch {
	case math.Abs(directionDeg) <= 45:
		return "top"
	case directionDeg > 45 && directionDeg < 135:
		return "right"
	case directionDeg < -45 && directionDeg > -135:
		return "left"
	default:
		return "bottom"
	}
}

// PolarUI maps a head-frame direction and intensity to radar_x/radar_y
// (spec §4.3 step 5).
func PolarUI(directionDeg, intensity float64) (x, y float64) {
	theta := directionDeg * math.Pi / 180
	radius := anglemath.Clamp(intensity, 0, 1)
	return math.Sin(theta) * radius, math.Cos(theta) * radius
}
