// Package config loads the server's runtime tuning knobs.
//
// Defaults are layered the way cmd/giztoy's CLI config store layers its
// context files: an optional YAML file supplies overrides to the built-in
// defaults, then environment variables (the full list from spec §6) take
// final precedence. There is no persistence beyond process lifetime — this
// is read once at startup, plus the small subset of fields HUD clients can
// mutate at runtime via `config.update` (see Tuning).
package config

import (
	"fmt"
	"math"
	"os"
	"strconv"
	"strings"

	yaml "github.com/goccy/go-yaml"
)

// Config holds every knob named in spec.md §6.
type Config struct {
	Host string `yaml:"host"`
	Port int    `yaml:"port"`

	STTAudioSource string `yaml:"sttAudioSource"` // auto | android_mic | esp32

	DirectionNoiseFloor  float64 `yaml:"directionNoiseFloor"`
	DirectionGainQuad    float64 `yaml:"directionGainQuad"`
	DirectionGainLR      float64 `yaml:"directionGainLR"`
	DirectionGainMono    float64 `yaml:"directionGainMono"`
	BackBalanceGainDeg   float64 `yaml:"backBalanceGainDeg"`
	BackBalanceExp       float64 `yaml:"backBalanceExp"`
	HybridFrontBackGain  float64 `yaml:"hybridFrontBackGain"`
	QuadFrontWeight      float64 `yaml:"quadFrontWeight"`
	QuadBackWeight       float64 `yaml:"quadBackWeight"`

	ESP32GainLeft  float64 `yaml:"esp32GainLeft"`
	ESP32GainRight float64 `yaml:"esp32GainRight"`

	RadarWindowS             float64 `yaml:"radarWindowS"`
	RadarMaxDots             int     `yaml:"radarMaxDots"`
	RadarMinFreqHz           float64 `yaml:"radarMinFreqHz"`
	RadarMaxFreqHz           float64 `yaml:"radarMaxFreqHz"`
	RadarBaselineAlpha       float64 `yaml:"radarBaselineAlpha"`
	RadarBaselinePeakCap     float64 `yaml:"radarBaselinePeakCap"`
	RadarOutlierRatioThresh  float64 `yaml:"radarOutlierRatioThresh"`
	RadarTrackFreqTolHz      float64 `yaml:"radarTrackFreqTolHz"`
	RadarTrackAlphaFreq      float64 `yaml:"radarTrackAlphaFreq"`
	RadarTrackAlphaIntensity float64 `yaml:"radarTrackAlphaIntensity"`
	RadarTrackAlphaDir       float64 `yaml:"radarTrackAlphaDir"`
	RadarTrackDecayTauS      float64 `yaml:"radarTrackDecayTauS"`
	RadarTrackMinIntensity   float64 `yaml:"radarTrackMinIntensity"`

	KeywordCooldownS float64  `yaml:"keywordCooldownS"`
	Keywords         []string `yaml:"keywords"`

	AlarmRmsMin         float64 `yaml:"alarmRmsMin"`
	AlarmFireRatioThresh float64 `yaml:"alarmFireRatioThresh"`
	AlarmHornRatioThresh float64 `yaml:"alarmHornRatioThresh"`
	AlarmFireHoldS      float64 `yaml:"alarmFireHoldS"`
	AlarmCarHornHoldS   float64 `yaml:"alarmCarHornHoldS"`
	AlarmSirenHoldS     float64 `yaml:"alarmSirenHoldS"`

	YamnetFireThreshold float64 `yaml:"yamnetFireThreshold"`
	YamnetHornThreshold float64 `yaml:"yamnetHornThreshold"`
	YamnetMinRms        float64 `yaml:"yamnetMinRms"`

	ExternalHapticsLeftURL  string `yaml:"externalHapticsLeftURL"`
	ExternalHapticsRightURL string `yaml:"externalHapticsRightURL"`
	ExternalHapticsFormat   string `yaml:"externalHapticsFormat"` // csv | tuple | json
	ExternalHapticsOpenTimeoutS float64 `yaml:"externalHapticsOpenTimeoutS"`
	ExternalHapticsMaxQueue int     `yaml:"externalHapticsMaxQueue"`

	ArrayBackWidthMm  float64 `yaml:"arrayBackWidthMm"`
	ArrayFrontWidthMm float64 `yaml:"arrayFrontWidthMm"`
	ArraySideLenMm    float64 `yaml:"arraySideLenMm"`

	ElevenLabsAPIKey        string `yaml:"-"` // never persisted to a file
	ElevenLabsHost          string `yaml:"elevenLabsHost"`
	ElevenLabsModelID       string `yaml:"elevenLabsModelID"`
	ElevenLabsLanguageCode  string `yaml:"elevenLabsLanguageCode"`
	ElevenLabsCommitStrategy string `yaml:"elevenLabsCommitStrategy"`
	ElevenLabsIncludeTimestamps bool `yaml:"elevenLabsIncludeTimestamps"`
	ElevenLabsInsecureSSL       bool `yaml:"elevenLabsInsecureSSL"`
}

// Default returns the built-in defaults from spec.md.
func Default() *Config {
	return &Config{
		Host: "0.0.0.0",
		Port: 8765,

		STTAudioSource: "auto",

		DirectionGainQuad: 1.0,
		DirectionGainLR:   1.0,
		DirectionGainMono: 1.0,

		BackBalanceGainDeg:  150,
		BackBalanceExp:      0.8,
		HybridFrontBackGain: 1.0,
		QuadFrontWeight:     1.0,
		QuadBackWeight:      1.0,

		ESP32GainLeft:  1.0,
		ESP32GainRight: 0.25,

		RadarWindowS:             0.5,
		RadarMaxDots:             3,
		RadarMinFreqHz:           200,
		RadarMaxFreqHz:           4000,
		RadarBaselineAlpha:       0.03,
		RadarBaselinePeakCap:     2.0,
		RadarOutlierRatioThresh:  0.7,
		RadarTrackFreqTolHz:      250,
		RadarTrackAlphaFreq:      0.25,
		RadarTrackAlphaIntensity: 0.15,
		RadarTrackAlphaDir:       0.15,
		RadarTrackDecayTauS:      1.2,
		RadarTrackMinIntensity:   0.15,

		KeywordCooldownS: 30,

		AlarmFireRatioThresh: 0.5,
		AlarmHornRatioThresh: 0.5,
		AlarmFireHoldS:       10,
		AlarmCarHornHoldS:    2,
		AlarmSirenHoldS:      3,

		YamnetFireThreshold: 0.5,
		YamnetHornThreshold: 0.5,
		YamnetMinRms:        0.02,

		ExternalHapticsFormat:       "csv",
		ExternalHapticsOpenTimeoutS: 15,
		ExternalHapticsMaxQueue:     10,

		ArrayBackWidthMm:  140,
		ArrayFrontWidthMm: 160,
		ArraySideLenMm:    110,

		ElevenLabsHost:         "api.elevenlabs.io",
		ElevenLabsCommitStrategy: "vad",
	}
}

// Load builds a Config from the defaults, an optional YAML file, then the
// environment. yamlPath may be empty to skip the file layer.
func Load(yamlPath string) (*Config, error) {
	cfg := Default()

	if yamlPath != "" {
		data, err := os.ReadFile(yamlPath)
		if err != nil {
			if !os.IsNotExist(err) {
				return nil, fmt.Errorf("config: read %s: %w", yamlPath, err)
			}
		} else if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("config: parse %s: %w", yamlPath, err)
		}
	}

	applyEnv(cfg)
	return cfg, nil
}

func applyEnv(c *Config) {
	str := func(key string, dst *string) {
		if v, ok := os.LookupEnv(key); ok && v != "" {
			*dst = v
		}
	}
	f64 := func(key string, dst *float64) {
		if v, ok := os.LookupEnv(key); ok {
			if n, err := strconv.ParseFloat(v, 64); err == nil {
				*dst = n
			}
		}
	}
	i := func(key string, dst *int) {
		if v, ok := os.LookupEnv(key); ok {
			if n, err := strconv.Atoi(v); err == nil {
				*dst = n
			}
		}
	}
	b := func(key string, dst *bool) {
		if v, ok := os.LookupEnv(key); ok {
			*dst = v == "1" || strings.EqualFold(v, "true")
		}
	}

	str("HUD_HOST", &c.Host)
	i("HUD_PORT", &c.Port)

	str("STT_AUDIO_SOURCE", &c.STTAudioSource)

	f64("DIRECTION_NOISE_FLOOR", &c.DirectionNoiseFloor)
	f64("DIRECTION_GAIN_QUAD", &c.DirectionGainQuad)
	f64("DIRECTION_GAIN_LR", &c.DirectionGainLR)
	f64("DIRECTION_GAIN_MONO", &c.DirectionGainMono)
	f64("BACK_BALANCE_GAIN_DEG", &c.BackBalanceGainDeg)
	f64("BACK_BALANCE_EXP", &c.BackBalanceExp)
	f64("HYBRID_FRONT_BACK_GAIN", &c.HybridFrontBackGain)
	f64("QUAD_FRONT_WEIGHT", &c.QuadFrontWeight)
	f64("QUAD_BACK_WEIGHT", &c.QuadBackWeight)

	f64("ESP32_GAIN_LEFT", &c.ESP32GainLeft)
	f64("ESP32_GAIN_RIGHT", &c.ESP32GainRight)

	f64("RADAR_WINDOW_S", &c.RadarWindowS)
	i("RADAR_MAX_DOTS", &c.RadarMaxDots)
	f64("RADAR_MIN_FREQ_HZ", &c.RadarMinFreqHz)
	f64("RADAR_MAX_FREQ_HZ", &c.RadarMaxFreqHz)
	f64("RADAR_BASELINE_ALPHA", &c.RadarBaselineAlpha)
	f64("RADAR_BASELINE_PEAK_CAP", &c.RadarBaselinePeakCap)
	f64("RADAR_OUTLIER_RATIO_THRESH", &c.RadarOutlierRatioThresh)
	f64("RADAR_TRACK_FREQ_TOL_HZ", &c.RadarTrackFreqTolHz)
	f64("RADAR_TRACK_ALPHA_FREQ", &c.RadarTrackAlphaFreq)
	f64("RADAR_TRACK_ALPHA_INTENSITY", &c.RadarTrackAlphaIntensity)
	f64("RADAR_TRACK_ALPHA_DIR", &c.RadarTrackAlphaDir)
	f64("RADAR_TRACK_DECAY_TAU_S", &c.RadarTrackDecayTauS)
	f64("RADAR_TRACK_MIN_INTENSITY", &c.RadarTrackMinIntensity)

	f64("KEYWORD_COOLDOWN_S", &c.KeywordCooldownS)
	if v, ok := os.LookupEnv("KEYWORDS"); ok && v != "" {
		c.Keywords = splitKeywords(v)
	}

	f64("ALARM_RMS_MIN", &c.AlarmRmsMin)
	f64("ALARM_FIRE_RATIO_THRESH", &c.AlarmFireRatioThresh)
	f64("ALARM_HORN_RATIO_THRESH", &c.AlarmHornRatioThresh)
	f64("ALARM_FIRE_HOLD_S", &c.AlarmFireHoldS)
	f64("ALARM_CAR_HORN_HOLD_S", &c.AlarmCarHornHoldS)
	f64("ALARM_SIREN_HOLD_S", &c.AlarmSirenHoldS)

	f64("YAMNET_FIRE_THRESHOLD", &c.YamnetFireThreshold)
	f64("YAMNET_HORN_THRESHOLD", &c.YamnetHornThreshold)
	f64("YAMNET_MIN_RMS", &c.YamnetMinRms)

	str("EXTERNAL_HAPTICS_LEFT_URL", &c.ExternalHapticsLeftURL)
	str("EXTERNAL_HAPTICS_RIGHT_URL", &c.ExternalHapticsRightURL)
	str("EXTERNAL_HAPTICS_FORMAT", &c.ExternalHapticsFormat)
	f64("EXTERNAL_HAPTICS_OPEN_TIMEOUT_S", &c.ExternalHapticsOpenTimeoutS)
	i("EXTERNAL_HAPTICS_MAX_QUEUE", &c.ExternalHapticsMaxQueue)

	f64("ARRAY_BACK_WIDTH_MM", &c.ArrayBackWidthMm)
	f64("ARRAY_FRONT_WIDTH_MM", &c.ArrayFrontWidthMm)
	f64("ARRAY_SIDE_LEN_MM", &c.ArraySideLenMm)

	str("ELEVENLABS_API_KEY", &c.ElevenLabsAPIKey)
	str("ELEVENLABS_HOST", &c.ElevenLabsHost)
	str("ELEVENLABS_MODEL_ID", &c.ElevenLabsModelID)
	str("ELEVENLABS_LANGUAGE_CODE", &c.ElevenLabsLanguageCode)
	str("ELEVENLABS_COMMIT_STRATEGY", &c.ElevenLabsCommitStrategy)
	b("ELEVENLABS_INCLUDE_TIMESTAMPS", &c.ElevenLabsIncludeTimestamps)
	b("ELEVENLABS_INSECURE_SSL", &c.ElevenLabsInsecureSSL)
}

func splitKeywords(v string) []string {
	parts := strings.Split(v, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = NormalizeKeyword(p)
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}

// NormalizeKeyword lowercases and collapses whitespace, matching the
// config.update keyword normalization rule in spec §6.
func NormalizeKeyword(s string) string {
	return strings.Join(strings.Fields(strings.ToLower(strings.TrimSpace(s))), " ")
}

// ClampGain clamps a gain knob to >= 0, per config.update's rule.
func ClampGain(g float64) float64 {
	if g < 0 || math.IsNaN(g) {
		return 0
	}
	return g
}
