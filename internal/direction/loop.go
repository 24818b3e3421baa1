package direction

import (
	"context"
	"time"

	"github.com/hudwear/hudserver/internal/anglemath"
	"github.com/hudwear/hudserver/internal/audiostate"
	"github.com/hudwear/hudserver/internal/broadcast"
	"github.com/hudwear/hudserver/internal/protocol"
)

const tick = 50 * time.Millisecond        // 20 Hz
const radarTriggerEvery = 200 * time.Millisecond // spec §4.3 step 7

// RadarEmitter is satisfied by the Radar Track Loop: Update recomputes
// tracks from fresh sample rings (expensive), Emit produces the current
// radarDots snapshot (cheap, called every tick).
type RadarEmitter interface {
	Update(now time.Time, deltaYaw float64)
	Emit(now time.Time, deltaYaw float64) []protocol.RadarDot
}

// Loop runs the 20 Hz Direction Loop against shared state, publishing to
// events and triggering the Radar Track Loop every 200ms.
type Loop struct {
	state  *audiostate.State
	events *broadcast.Set
	radar  RadarEmitter

	smoother       *Smoother
	sinceRadarTick time.Duration
}

// New creates a Direction Loop.
func New(state *audiostate.State, events *broadcast.Set, radar RadarEmitter) *Loop {
	return &Loop{
		state:  state,
		events: events,
		radar:  radar,
		smoother: NewSmoother(0.25),
	}
}

// Run blocks, ticking at 20 Hz until ctx is cancelled.
func (l *Loop) Run(ctx context.Context) {
	ticker := time.NewTicker(tick)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			l.step(now)
		}
	}
}

func (l *Loop) step(now time.Time) {
	cfg := l.state.Cfg
	snap := l.state.Snapshot(now)

	in := buildInputs(snap)
	result := Fuse(in, cfg)

	var smoothed float64
	if result.Source == SourceNone {
		smoothed = l.smoother.Update(0)
	} else {
		smoothed = l.smoother.Update(result.RawDirection)
	}

	deltaYaw := DeltaYaw(snap.HasHead, snap.HasTorso, snap.HeadYawDeg, snap.Head0YawDeg, snap.TorsoYawDeg, snap.Torso0YawDeg)
	directionDeg := anglemath.Wrap(smoothed - deltaYaw)

	x, y := PolarUI(directionDeg, result.Intensity)
	edge := GlowEdge(directionDeg)

	l.sinceRadarTick += tick
	triggerRadar := l.sinceRadarTick >= radarTriggerEvery
	if triggerRadar {
		l.sinceRadarTick = 0
		l.radar.Update(now, deltaYaw)
	}
	dots := l.radar.Emit(now, deltaYaw)

	payload := &protocol.DirectionUI{
		Type:              "direction.ui",
		Source:            string(result.Source),
		DirectionDeg:      directionDeg,
		RawDirectionDeg:   result.RawDirection,
		TorsoDirectionDeg: smoothed,
		DeltaYawDeg:       deltaYaw,
		Intensity:         result.Intensity,
		RadarDots:         dots,
		RadarX:            x,
		RadarY:            y,
		GlowEdge:          edge,
		GlowStrength:      result.Intensity,
	}

	l.state.SetLatestDirection(payload)
	l.events.Send(payload)
}

func buildInputs(snap audiostate.FreshSnapshot) Inputs {
	var in Inputs

	if snap.Left != nil {
		in.FL = float64(snap.Left.LastRMS)
	}
	if snap.Right != nil {
		in.FR = float64(snap.Right.LastRMS)
	}
	if snap.Phone != nil {
		in.BL = float64(snap.Phone.LastRMSLeft)
		in.BR = float64(snap.Phone.LastRMSRight)
	}

	in.FrontFresh = snap.Left != nil && snap.Right != nil
	in.BackFresh = snap.Phone != nil

	switch {
	case in.FrontFresh || in.BackFresh:
	case snap.Left != nil || snap.Right != nil:
		in.MonoFront = true
		if snap.Left != nil {
			in.FL = float64(snap.Left.LastRMS)
		} else {
			in.FL = float64(snap.Right.LastRMS)
			in.FR = 0
		}
	case snap.PhoneMono != nil:
		in.MonoBack = true
		in.BL = float64(snap.PhoneMono.LastRMS)
		in.BR = 0
	}
	return in
}

