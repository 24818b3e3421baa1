// Package srcselect implements the source-selection rule spec §4.6
// describes for the STT Muxer and reuses, verbatim, for the Alarm Loop's
// "same selection logic as STT Muxer" requirement: prefer ESP32 front mics
// when fresh, falling back to the phone mic, with a sticky active ESP32
// role that only flips on a >=1.5x RMS swing from the other side.
package srcselect

import (
	"time"

	"github.com/hudwear/hudserver/internal/audiostate"
)

// Source is the mic state selected for one iteration. Exactly one of Front
// or Phone is non-nil, unless nothing is fresh, in which case both are nil.
type Source struct {
	Front *audiostate.FrontMicState
	Phone *audiostate.PhoneMicState
}

// Selector tracks the sticky ESP32 role across calls to Select.
type Selector struct {
	state      *audiostate.State
	stickyRole string
}

// New builds a Selector defaulting its sticky role to "left".
func New(state *audiostate.State) *Selector {
	return &Selector{state: state, stickyRole: "left"}
}

// Select applies the spec §4.6 rule for the current configured
// stt_audio_source and mic freshness.
func (s *Selector) Select() Source {
	now := time.Now()
	source := s.state.STTSource()

	leftFresh := s.state.FrontFreshByRole("left", now)
	rightFresh := s.state.FrontFreshByRole("right", now)

	useESP32 := false
	switch source {
	case "esp32":
		useESP32 = leftFresh || rightFresh
	case "android_mic", "android":
		useESP32 = false
	default: // auto
		useESP32 = leftFresh || rightFresh
	}

	if useESP32 {
		role := s.pickStickyRole(leftFresh, rightFresh)
		if mic := s.state.FrontMic(role); mic != nil {
			return Source{Front: mic}
		}
		return Source{}
	}

	if source != "android_mic" && source != "android" {
		if fresh, _ := s.state.PhoneFreshAny(now); !fresh {
			return Source{}
		}
	}
	if phone := s.state.AnyPhoneMic(); phone != nil {
		return Source{Phone: phone}
	}
	return Source{}
}

func (s *Selector) pickStickyRole(leftFresh, rightFresh bool) string {
	if !leftFresh && !rightFresh {
		return s.stickyRole
	}
	if leftFresh && !rightFresh {
		s.stickyRole = "left"
		return "left"
	}
	if rightFresh && !leftFresh {
		s.stickyRole = "right"
		return "right"
	}

	left, right := s.state.FrontMic("left"), s.state.FrontMic("right")
	if left == nil || right == nil {
		return s.stickyRole
	}
	cur, other, otherRole := left, right, "right"
	if s.stickyRole == "right" {
		cur, other, otherRole = right, left, "left"
	}
	if float64(other.LastRMS) >= float64(cur.LastRMS)*1.5 {
		s.stickyRole = otherRole
	}
	return s.stickyRole
}
