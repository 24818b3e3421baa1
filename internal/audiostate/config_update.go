package audiostate

import (
	"github.com/hudwear/hudserver/internal/config"
	"github.com/hudwear/hudserver/internal/protocol"
)

// maxKeywords caps the keyword list config.update may install (spec §6:
// "keywords[≤50]").
const maxKeywords = 50

// ApplyConfigUpdate mutates the runtime Tuning from a config.update message,
// decoding each field independently so one bad field never rejects the rest
// (spec §9's "parse each field independently" rule). Returns the field names
// that were actually applied.
func (s *State) ApplyConfigUpdate(raw protocol.ConfigUpdateRaw) []string {
	var applied []string

	s.mu.Lock()
	defer s.mu.Unlock()

	if v, ok := decodeFloat(raw, "alarmRmsThreshold"); ok {
		s.tuning.AlarmRmsThreshold = v
		applied = append(applied, "alarmRmsThreshold")
	}
	if v, ok := decodeFloat(raw, "fireRatioThreshold"); ok {
		s.tuning.FireRatioThreshold = v
		applied = append(applied, "fireRatioThreshold")
	}
	if v, ok := decodeFloat(raw, "hornRatioThreshold"); ok {
		s.tuning.HornRatioThreshold = v
		applied = append(applied, "hornRatioThreshold")
	}
	if v, ok := decodeFloat(raw, "keywordCooldownS"); ok {
		s.tuning.KeywordCooldownS = v
		applied = append(applied, "keywordCooldownS")
	}
	if v, ok := decodeFloat(raw, "esp32GainLeft"); ok {
		s.tuning.ESP32GainLeft = config.ClampGain(v)
		applied = append(applied, "esp32GainLeft")
	}
	if v, ok := decodeFloat(raw, "esp32GainRight"); ok {
		s.tuning.ESP32GainRight = config.ClampGain(v)
		applied = append(applied, "esp32GainRight")
	}
	if v, ok := decodeFloat(raw, "yamnetFireThreshold"); ok {
		s.tuning.YamnetFireThreshold = v
		applied = append(applied, "yamnetFireThreshold")
	}
	if v, ok := decodeFloat(raw, "yamnetHornThreshold"); ok {
		s.tuning.YamnetHornThreshold = v
		applied = append(applied, "yamnetHornThreshold")
	}
	if v, ok := decodeFloat(raw, "yamnetMinRms"); ok {
		s.tuning.YamnetMinRms = v
		applied = append(applied, "yamnetMinRms")
	}
	if field, ok := raw["keywords"]; ok {
		var words []string
		if protocol.DecodeField(field, &words) {
			if len(words) > maxKeywords {
				words = words[:maxKeywords]
			}
			normalized := make([]string, 0, len(words))
			for _, w := range words {
				if n := config.NormalizeKeyword(w); n != "" {
					normalized = append(normalized, n)
				}
			}
			s.tuning.Keywords = normalized
			applied = append(applied, "keywords")
		}
	}

	return applied
}

func decodeFloat(raw protocol.ConfigUpdateRaw, key string) (float64, bool) {
	field, ok := raw[key]
	if !ok {
		return 0, false
	}
	var v float64
	if !protocol.DecodeField(field, &v) {
		return 0, false
	}
	return v, true
}
