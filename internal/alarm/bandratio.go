// bandratio.go implements the "simple band-ratio heuristic" fallback spec
// §4.7 calls for when no real classifier is loaded: each alarm class maps
// to a characteristic frequency band, and its score is that band's share of
// total spectral energy. Grounded on the same gonum FFT + Hann window
// machinery internal/radar uses for its spectral peak picking.
package alarm

import (
	"math"

	"gonum.org/v1/gonum/dsp/fourier"

	"github.com/hudwear/hudserver/internal/audiostate"
)

// Frequency bands (Hz) for each alarm class. Smoke/fire alarms emit a loud
// narrowband piezo tone; car horns sit in a lower tonal band; sirens sweep
// a band above the horn band. The siren/horn bands are separated by a gap
// rather than overlapping so a single tone doesn't score against both
// classes at once.
var (
	fireBandLoHz, fireBandHiHz   = 2800.0, 3500.0
	hornBandLoHz, hornBandHiHz   = 350.0, 550.0
	sirenBandLoHz, sirenBandHiHz = 700.0, 1600.0
)

// BandRatioClassifier is the Classifier fallback used when no real model is
// wired in (the only option here, since nothing in the example pack brings
// a usable Go inference runtime for YAMNet's TensorFlow weights).
type BandRatioClassifier struct{}

// NewBandRatioClassifier builds the fallback Classifier.
func NewBandRatioClassifier() *BandRatioClassifier { return &BandRatioClassifier{} }

func (BandRatioClassifier) Classify(window []float32, sampleRateHz int) Scores {
	n := len(window)
	if n < 256 {
		return Scores{}
	}

	hann := make([]float64, n)
	mean := 0.0
	for _, s := range window {
		mean += float64(s)
	}
	mean /= float64(n)
	for i, s := range window {
		w := 0.5 * (1 - math.Cos(2*math.Pi*float64(i)/float64(n-1)))
		hann[i] = (float64(s) - mean) * w
	}

	fft := fourier.NewFFT(n)
	coeffs := fft.Coefficients(nil, hann)
	power := make([]float64, len(coeffs))
	total := 0.0
	for k, c := range coeffs {
		power[k] = real(c)*real(c) + imag(c)*imag(c)
		total += power[k]
	}
	if total <= 0 {
		return Scores{}
	}

	binHz := float64(sampleRateHz) / float64(n)
	bandRatio := func(loHz, hiHz float64) float64 {
		lo := clampBin(int(math.Floor(loHz/binHz)), len(power))
		hi := clampBin(int(math.Ceil(hiHz/binHz)), len(power))
		if hi < lo {
			return 0
		}
		sum := 0.0
		for k := lo; k <= hi; k++ {
			sum += power[k]
		}
		return sum / total
	}

	return Scores{
		FireAlarm: bandRatio(fireBandLoHz, fireBandHiHz),
		CarHorn:   bandRatio(hornBandLoHz, hornBandHiHz),
		Siren:     bandRatio(sirenBandLoHz, sirenBandHiHz),
	}
}

// Thresholds uses the fire/horn ratio knobs from config.update. Spec.md
// never defines a dedicated siren ratio threshold, so the siren band
// reuses the horn threshold (see DESIGN.md).
func (BandRatioClassifier) Thresholds(t audiostate.Tuning) (fire, carHorn, siren float64) {
	return t.FireRatioThreshold, t.HornRatioThreshold, t.HornRatioThreshold
}

func clampBin(k, n int) int {
	if k < 0 {
		return 0
	}
	if k > n-1 {
		return n - 1
	}
	return k
}
