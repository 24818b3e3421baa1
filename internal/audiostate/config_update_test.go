package audiostate

import (
	"encoding/json"
	"testing"

	"github.com/hudwear/hudserver/internal/config"
	"github.com/hudwear/hudserver/internal/protocol"
)

func rawUpdate(t *testing.T, m map[string]any) protocol.ConfigUpdateRaw {
	t.Helper()
	raw := make(protocol.ConfigUpdateRaw, len(m))
	for k, v := range m {
		b, err := json.Marshal(v)
		if err != nil {
			t.Fatalf("marshal %s: %v", k, err)
		}
		raw[k] = b
	}
	return raw
}

func TestApplyConfigUpdateAppliesKnownFields(t *testing.T) {
	s := New(config.Default())
	applied := s.ApplyConfigUpdate(rawUpdate(t, map[string]any{
		"alarmRmsThreshold": 0.07,
		"esp32GainLeft":      2.0,
		"keywords":           []string{"  Help  Me  ", "FIRE"},
	}))

	if len(applied) != 3 {
		t.Fatalf("applied = %v, want 3 fields", applied)
	}
	tuning := s.Tuning()
	if tuning.AlarmRmsThreshold != 0.07 {
		t.Fatalf("AlarmRmsThreshold = %f, want 0.07", tuning.AlarmRmsThreshold)
	}
	if tuning.ESP32GainLeft != 2.0 {
		t.Fatalf("ESP32GainLeft = %f, want 2.0", tuning.ESP32GainLeft)
	}
	want := []string{"help me", "fire"}
	if len(tuning.Keywords) != len(want) || tuning.Keywords[0] != want[0] || tuning.Keywords[1] != want[1] {
		t.Fatalf("Keywords = %v, want %v", tuning.Keywords, want)
	}
}

func TestApplyConfigUpdateClampsNegativeGain(t *testing.T) {
	s := New(config.Default())
	s.ApplyConfigUpdate(rawUpdate(t, map[string]any{"esp32GainRight": -5.0}))
	if got := s.Tuning().ESP32GainRight; got != 0 {
		t.Fatalf("ESP32GainRight = %f, want 0 (clamped)", got)
	}
}

func TestApplyConfigUpdateSkipsBadFieldKeepsRest(t *testing.T) {
	s := New(config.Default())
	raw := rawUpdate(t, map[string]any{"hornRatioThreshold": 0.6})
	raw["fireRatioThreshold"] = json.RawMessage(`"not a number"`)

	applied := s.ApplyConfigUpdate(raw)
	if len(applied) != 1 || applied[0] != "hornRatioThreshold" {
		t.Fatalf("applied = %v, want only hornRatioThreshold", applied)
	}
	if got := s.Tuning().HornRatioThreshold; got != 0.6 {
		t.Fatalf("HornRatioThreshold = %f, want 0.6", got)
	}
}

func TestApplyConfigUpdateCapsKeywordsAtFifty(t *testing.T) {
	s := New(config.Default())
	words := make([]string, 60)
	for i := range words {
		words[i] = "kw"
	}
	s.ApplyConfigUpdate(rawUpdate(t, map[string]any{"keywords": words}))
	if got := len(s.Tuning().Keywords); got != 50 {
		t.Fatalf("len(Keywords) = %d, want 50", got)
	}
}
