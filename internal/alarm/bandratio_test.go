package alarm

import (
	"math"
	"testing"

	"github.com/hudwear/hudserver/internal/audiostate"
)

func sineWave(freqHz float64, n, sampleRateHz int) []float32 {
	out := make([]float32, n)
	for i := range out {
		out[i] = float32(math.Sin(2 * math.Pi * freqHz * float64(i) / float64(sampleRateHz)))
	}
	return out
}

func TestBandRatioClassifyFireTone(t *testing.T) {
	c := NewBandRatioClassifier()
	window := sineWave(3100, 16000, 16000)
	scores := c.Classify(window, 16000)
	if scores.FireAlarm < 0.5 {
		t.Fatalf("FireAlarm score = %f, want >= 0.5 for a 3.1kHz tone", scores.FireAlarm)
	}
	if scores.CarHorn > 0.1 || scores.Siren > 0.1 {
		t.Fatalf("unexpected cross-band score: %+v", scores)
	}
}

func TestBandRatioClassifyHornTone(t *testing.T) {
	c := NewBandRatioClassifier()
	window := sineWave(440, 16000, 16000)
	scores := c.Classify(window, 16000)
	if scores.CarHorn < 0.5 {
		t.Fatalf("CarHorn score = %f, want >= 0.5 for a 440Hz tone", scores.CarHorn)
	}
}

func TestBandRatioClassifySilenceIsZero(t *testing.T) {
	c := NewBandRatioClassifier()
	window := make([]float32, 16000)
	scores := c.Classify(window, 16000)
	if scores.FireAlarm != 0 || scores.CarHorn != 0 || scores.Siren != 0 {
		t.Fatalf("silence scored %+v, want all zero", scores)
	}
}

func TestBandRatioThresholdsUseTuningKnobsAndReuseHornForSiren(t *testing.T) {
	c := NewBandRatioClassifier()
	tuning := audiostate.Tuning{FireRatioThreshold: 0.6, HornRatioThreshold: 0.4}
	fire, horn, siren := c.Thresholds(tuning)
	if fire != 0.6 || horn != 0.4 || siren != 0.4 {
		t.Fatalf("Thresholds = (%f,%f,%f), want (0.6,0.4,0.4)", fire, horn, siren)
	}
}
