package pcm

import resampling "github.com/tphakala/go-audio-resampling"

// Resampler converts PCM float32 samples between sample rates, grounded on
// pkg/audio/resampler/resampler.go's use of the same library — adapted here
// to operate directly on in-memory frames rather than wrapping an io.Reader,
// since Audio Ingress already holds a fully decoded frame in hand.
//
// Front mics normally report 16kHz already; this only does real work for
// the rare device that doesn't, so every Sample Ring stays at the single
// 16kHz rate the rest of the fusion pipeline assumes.
type Resampler struct {
	r resampling.Resampler
}

// NewResampler builds a Resampler from srcRateHz to dstRateHz. When the
// rates match it returns a passthrough (no allocation per frame).
func NewResampler(srcRateHz, dstRateHz, channels int) (*Resampler, error) {
	if srcRateHz == dstRateHz {
		return &Resampler{}, nil
	}
	cfg := &resampling.Config{
		InputRate:  float64(srcRateHz),
		OutputRate: float64(dstRateHz),
		Channels:   channels,
		Quality:    resampling.QualitySpec{Preset: resampling.QualityHigh},
	}
	r, err := resampling.New(cfg)
	if err != nil {
		return nil, err
	}
	return &Resampler{r: r}, nil
}

// Process resamples one frame of normalized float32 samples.
func (rs *Resampler) Process(samples []float32) ([]float32, error) {
	if rs.r == nil {
		return samples, nil
	}
	input := make([]float64, len(samples))
	for i, s := range samples {
		input[i] = float64(s)
	}
	output, err := rs.r.Process(input)
	if err != nil {
		return nil, err
	}
	out := make([]float32, len(output))
	for i, v := range output {
		if v > 1 {
			v = 1
		} else if v < -1 {
			v = -1
		}
		out[i] = float32(v)
	}
	return out, nil
}
