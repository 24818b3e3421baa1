package alarm

import (
	"testing"
	"time"

	"github.com/hudwear/hudserver/internal/audiostate"
	"github.com/hudwear/hudserver/internal/broadcast"
	"github.com/hudwear/hudserver/internal/config"
	"github.com/hudwear/hudserver/internal/haptics"
)

type nopLogger struct{}

func (nopLogger) Errorf(string, ...any) {}
func (nopLogger) Warnf(string, ...any)  {}
func (nopLogger) Infof(string, ...any)  {}
func (nopLogger) Debugf(string, ...any) {}

type fakeClassifier struct {
	scores               Scores
	fire, carHorn, siren float64
}

func (f fakeClassifier) Classify([]float32, int) Scores { return f.scores }
func (f fakeClassifier) Thresholds(audiostate.Tuning) (float64, float64, float64) {
	return f.fire, f.carHorn, f.siren
}

func newTestLoop(t *testing.T, fc fakeClassifier) (*Loop, *broadcast.Set) {
	t.Helper()
	cfg := config.Default()
	cfg.AlarmFireHoldS = 10
	cfg.AlarmCarHornHoldS = 2
	cfg.AlarmSirenHoldS = 3
	state := audiostate.New(cfg)
	events := broadcast.NewSet(nopLogger{})
	left := haptics.NewClient("left", "", cfg, nopLogger{})
	right := haptics.NewClient("right", "", cfg, nopLogger{})
	return New(state, fc, events, left, right, nopLogger{}), events
}

func TestEvaluateStartsOnPositiveDetection(t *testing.T) {
	l, _ := newTestLoop(t, fakeClassifier{fire: 0.5, carHorn: 0.5, siren: 0.5})
	now := time.Now()
	l.evaluate(now, "fire", 0.9, 0.5, 10)
	if !l.active["fire"] {
		t.Fatalf("expected fire to become active")
	}
}

func TestEvaluateEndsAfterHoldExpires(t *testing.T) {
	l, _ := newTestLoop(t, fakeClassifier{})
	t0 := time.Now()
	l.evaluate(t0, "car_horn", 0.9, 0.5, 2)
	if !l.active["car_horn"] {
		t.Fatalf("expected car_horn active at t0")
	}

	l.evaluate(t0.Add(1*time.Second), "car_horn", 0.0, 0.5, 2)
	if !l.active["car_horn"] {
		t.Fatalf("expected car_horn to remain active within hold window")
	}

	l.evaluate(t0.Add(3*time.Second), "car_horn", 0.0, 0.5, 2)
	if l.active["car_horn"] {
		t.Fatalf("expected car_horn to end after hold expires")
	}
}

func TestEvaluateStaysInactiveBelowThreshold(t *testing.T) {
	l, _ := newTestLoop(t, fakeClassifier{})
	now := time.Now()
	l.evaluate(now, "siren", 0.1, 0.5, 3)
	if l.active["siren"] {
		t.Fatalf("siren should not have activated below threshold")
	}
	l.evaluate(now.Add(time.Millisecond), "siren", 0.1, 0.5, 3)
	if l.active["siren"] {
		t.Fatalf("siren should still be inactive")
	}
}

func TestStepSkipsClassifyBelowRmsFloor(t *testing.T) {
	l, _ := newTestLoop(t, fakeClassifier{scores: Scores{FireAlarm: 1, CarHorn: 1, Siren: 1}, fire: 0.5, carHorn: 0.5, siren: 0.5})
	l.state.MutateTuning(func(tu *audiostate.Tuning) { tu.AlarmRmsThreshold = 1000 })
	l.window.Append(make([]float32, 16000)) // silence, RMS=0 < floor
	l.step(time.Now())
	if l.active["fire"] || l.active["car_horn"] || l.active["siren"] {
		t.Fatalf("expected no alarms to activate when RMS is below the floor")
	}
}
