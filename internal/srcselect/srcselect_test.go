package srcselect

import (
	"testing"
	"time"

	"github.com/hudwear/hudserver/internal/audiostate"
	"github.com/hudwear/hudserver/internal/config"
)

func TestSelectPrefersESP32OverPhone(t *testing.T) {
	state := audiostate.New(config.Default())
	now := time.Now()
	left := state.RegisterFrontMic("left", "dev-l", 16000, 1, 20)
	left.LastSeen = now
	phone := state.RegisterPhoneMic("conn1", "phone1", 16000, 2, 20)
	phone.LastSeen = now

	src := New(state).Select()
	if src.Front != left || src.Phone != nil {
		t.Fatalf("Select() = %+v, want left front mic", src)
	}
}

func TestSelectFallsBackToPhoneWhenESP32Stale(t *testing.T) {
	state := audiostate.New(config.Default())
	phone := state.RegisterPhoneMic("conn1", "phone1", 16000, 2, 20)
	phone.LastSeen = time.Now()

	src := New(state).Select()
	if src.Phone != phone || src.Front != nil {
		t.Fatalf("Select() = %+v, want phone mic", src)
	}
}

func TestSelectNoneWhenNothingFresh(t *testing.T) {
	state := audiostate.New(config.Default())
	src := New(state).Select()
	if src.Front != nil || src.Phone != nil {
		t.Fatalf("Select() = %+v, want empty", src)
	}
}

func TestSelectStaysStickyUntilBigEnoughSwing(t *testing.T) {
	state := audiostate.New(config.Default())
	now := time.Now()
	left := state.RegisterFrontMic("left", "dev-l", 16000, 1, 20)
	left.LastSeen, left.LastRMS = now, 0.1
	right := state.RegisterFrontMic("right", "dev-r", 16000, 1, 20)
	right.LastSeen, right.LastRMS = now, 0.14 // under 1.5x, should not flip

	sel := New(state)
	if src := sel.Select(); src.Front != left {
		t.Fatalf("expected sticky left, got %+v", src)
	}

	right.LastRMS = 0.2 // >=1.5x left, should flip
	if src := sel.Select(); src.Front != right {
		t.Fatalf("expected flip to right, got %+v", src)
	}

	left.LastRMS = 0.15 // short of a 1.5x swing back
	if src := sel.Select(); src.Front != right {
		t.Fatalf("expected to remain sticky on right, got %+v", src)
	}
}

func TestSelectHonorsExplicitAndroidMicSource(t *testing.T) {
	state := audiostate.New(config.Default())
	state.SetSTTSource("android_mic")
	now := time.Now()
	left := state.RegisterFrontMic("left", "dev-l", 16000, 1, 20)
	left.LastSeen = now
	phone := state.RegisterPhoneMic("conn1", "phone1", 16000, 2, 20)
	phone.LastSeen = now

	src := New(state).Select()
	if src.Phone != phone || src.Front != nil {
		t.Fatalf("Select() = %+v, want phone mic even though esp32 is fresh", src)
	}
}
