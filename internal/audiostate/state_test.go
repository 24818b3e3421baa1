package audiostate

import (
	"testing"
	"time"

	"github.com/hudwear/hudserver/internal/config"
)

func newTestState() *State {
	return New(config.Default())
}

func TestRegisterUnregisterFrontMicDeviceIDGuard(t *testing.T) {
	s := newTestState()
	s.RegisterFrontMic("left", "dev-1", 16000, 1, 20)

	// A reconnect under a new device id should not be torn down by the old
	// connection's teardown.
	s.RegisterFrontMic("left", "dev-2", 16000, 1, 20)
	s.UnregisterFrontMic("left", "dev-1")

	if got := s.FrontMic("left"); got == nil || got.DeviceID != "dev-2" {
		t.Fatalf("expected dev-2 to survive stale teardown, got %+v", got)
	}

	s.UnregisterFrontMic("left", "dev-2")
	if got := s.FrontMic("left"); got != nil {
		t.Fatalf("expected nil after matching teardown, got %+v", got)
	}
}

func TestCalibratePoseZeroRequiresFreshPoses(t *testing.T) {
	s := newTestState()
	now := time.Now()

	if _, _, ok := s.CalibratePoseZero(now); ok {
		t.Fatalf("expected calibration to fail with no poses set")
	}

	s.SetHeadPose(45, 0, 0, now)
	s.SetTorsoPose(30, now)

	headYaw, torsoYaw, ok := s.CalibratePoseZero(now)
	if !ok || headYaw != 45 || torsoYaw != 30 {
		t.Fatalf("got headYaw=%v torsoYaw=%v ok=%v", headYaw, torsoYaw, ok)
	}
}

func TestMutateTuningKeepsKeywordsIndependent(t *testing.T) {
	s := newTestState()
	s.MutateTuning(func(tu *Tuning) {
		tu.Keywords = []string{"help"}
	})

	snap := s.Tuning()
	snap.Keywords[0] = "mutated"

	if got := s.Tuning().Keywords[0]; got != "help" {
		t.Fatalf("Tuning() leaked internal slice, got %q", got)
	}
}

func TestPushFrameReportsEviction(t *testing.T) {
	st := newFrontMicState("dev", "left", 16000, 1, 20)
	for i := 0; i < FrameQueueCap; i++ {
		if PushFrame(st.SttQ, []byte{byte(i)}) {
			t.Fatalf("unexpected eviction before queue is full, i=%d", i)
		}
	}
	if !PushFrame(st.SttQ, []byte{0xff}) {
		t.Fatalf("expected eviction once queue is full")
	}
}
