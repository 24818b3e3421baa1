package stt

import (
	"testing"
	"time"

	"github.com/hudwear/hudserver/internal/audiostate"
	"github.com/hudwear/hudserver/internal/broadcast"
	"github.com/hudwear/hudserver/internal/config"
)

type nopLogger struct{}

func (nopLogger) Errorf(string, ...any) {}
func (nopLogger) Warnf(string, ...any)  {}
func (nopLogger) Infof(string, ...any)  {}
func (nopLogger) Debugf(string, ...any) {}

func newTestMuxer(t *testing.T) (*Muxer, *audiostate.State) {
	t.Helper()
	cfg := config.Default()
	cfg.ElevenLabsAPIKey = ""
	state := audiostate.New(cfg)
	client := NewClient(cfg, nopLogger{})
	sttSet := broadcast.NewSet(nopLogger{})
	eventsSet := broadcast.NewSet(nopLogger{})
	return New(state, client, sttSet, eventsSet, nopLogger{}), state
}

func TestSelectQueuePrefersFreshESP32OverPhone(t *testing.T) {
	m, state := newTestMuxer(t)
	now := time.Now()

	left := state.RegisterFrontMic("left", "dev-l", 16000, 1, 20)
	left.LastSeen = now
	phone := state.RegisterPhoneMic("conn1", "phone1", 16000, 2, 20)
	phone.LastSeen = now

	q, rate := m.selectQueue()
	if q != left.SttQ || rate != 16000 {
		t.Fatalf("selectQueue chose phone mic, want left esp32")
	}
}

func TestSelectQueueFallsBackToPhoneWhenESP32Stale(t *testing.T) {
	m, state := newTestMuxer(t)
	now := time.Now()

	phone := state.RegisterPhoneMic("conn1", "phone1", 16000, 2, 20)
	phone.LastSeen = now

	q, _ := m.selectQueue()
	if q != phone.SttQ {
		t.Fatalf("selectQueue did not fall back to phone mic")
	}
}

func TestSelectQueueNoneWhenNothingFresh(t *testing.T) {
	m, _ := newTestMuxer(t)
	q, _ := m.selectQueue()
	if q != nil {
		t.Fatalf("selectQueue = %v, want nil", q)
	}
}

func TestScanKeywordsRespectsCooldown(t *testing.T) {
	m, state := newTestMuxer(t)
	state.MutateTuning(func(tu *audiostate.Tuning) {
		tu.Keywords = []string{"fire alarm"}
		tu.KeywordCooldownS = 30
	})

	m.scanKeywords("I think the Fire   Alarm is going off")
	if len(m.lastKeyword) != 1 {
		t.Fatalf("expected keyword to be recorded once, got %d", len(m.lastKeyword))
	}
	first := m.lastKeyword["fire alarm"]

	m.scanKeywords("fire alarm again")
	if m.lastKeyword["fire alarm"] != first {
		t.Fatalf("keyword fired again inside cooldown window")
	}
}

func TestHandlePartialTracksDeltaWords(t *testing.T) {
	m, _ := newTestMuxer(t)
	m.handle(Message{Type: "partial", Text: "the fire"})
	if len(m.prevWords) != 2 {
		t.Fatalf("prevWords = %v, want 2 words", m.prevWords)
	}
	m.handle(Message{Type: "partial", Text: "the fire alarm"})
	if len(m.prevWords) != 3 {
		t.Fatalf("prevWords = %v, want 3 words", m.prevWords)
	}
	m.handle(Message{Type: "final", Text: "the fire alarm"})
	if m.prevWords != nil {
		t.Fatalf("prevWords should reset to nil after final")
	}
}
