// Package radar implements the Radar Track Loop from spec §4.4: a 5 Hz
// update pass that turns per-channel Sample Ring snapshots into tracked
// spectral peaks ("radar dots"), and a 20 Hz emit pass that applies decay
// and head compensation to the live track table.
//
// FFTs run on gonum's real-input transform (gonum.org/v1/gonum/dsp/fourier),
// the same numerical library the rest of the pack reaches for DSP work.
// Hann windows and FFT plans are cached per distinct window length and
// reused across ticks, per the "allocate once" design note.
package radar

import (
	"math"
	"sort"
	"sync"
	"time"

	"gonum.org/v1/gonum/dsp/fourier"

	"github.com/hudwear/hudserver/internal/anglemath"
	"github.com/hudwear/hudserver/internal/audiostate"
	"github.com/hudwear/hudserver/internal/config"
	"github.com/hudwear/hudserver/internal/direction"
	"github.com/hudwear/hudserver/internal/protocol"
)

const sampleRateHz = 16000
const minWindowSamples = 2048

// windowPlan is the cached Hann window + FFT plan + baseline spectrum for
// one distinct analysis window length.
type windowPlan struct {
	n        int
	hann     []float64
	fft      *fourier.FFT
	baseline []float64 // len n/2+1, nil until first use
}

// Tracker owns the baseline spectra and track table for the Radar Track
// Loop. Update and Emit must not run concurrently with each other: both
// read the track table from audiostate.State and store a new one back, and
// Update modifies tracks in place. The Direction Loop calls both from its
// single goroutine.
type Tracker struct {
	state *audiostate.State

	mu      sync.Mutex
	windows map[int]*windowPlan
}

// New creates a Tracker over state.
func New(state *audiostate.State) *Tracker {
	return &Tracker{state: state, windows: make(map[int]*windowPlan)}
}

// Update recomputes the baseline spectra and reassociates tracks. It is the
// expensive half of the loop, so the caller runs it only every 200ms while
// Emit runs at 20 Hz.
func (t *Tracker) Update(now time.Time, deltaYaw float64) {
	cfg := t.state.Cfg

	fresh := map[string]bool{
		"fl": t.state.FrontFreshByRole("left", now),
		"fr": t.state.FrontFreshByRole("right", now),
	}
	phoneFresh, _ := t.state.PhoneFreshAny(now)
	fresh["bl"] = phoneFresh
	fresh["br"] = phoneFresh

	if !fresh["fl"] && !fresh["fr"] && !fresh["bl"] && !fresh["br"] {
		return
	}

	samples := map[string][]float32{}
	n := -1
	for _, ch := range []string{"fl", "fr", "bl", "br"} {
		if !fresh[ch] {
			continue
		}
		s := t.state.Ring(ch).Get()
		if len(s) == 0 {
			continue
		}
		samples[ch] = s
		if n == -1 || len(s) < n {
			n = len(s)
		}
	}
	if n < minWindowSamples {
		return
	}

	plan := t.planFor(n)

	spectra := make(map[string][]float64, len(samples))
	total := make([]float64, len(plan.hann)/2+1)
	for ch, s := range samples {
		tail := s[len(s)-n:]
		p := powerSpectrum(plan, tail)
		spectra[ch] = p
		for k, v := range p {
			total[k] += v
		}
	}

	if plan.baseline == nil {
		plan.baseline = append([]float64(nil), total...)
	}
	baseline := plan.baseline
	for k := range baseline {
		clipped := math.Min(total[k], baseline[k]*cfg.RadarBaselinePeakCap)
		baseline[k] = (1-cfg.RadarBaselineAlpha)*baseline[k] + cfg.RadarBaselineAlpha*clipped
	}

	binHz := float64(sampleRateHz) / float64(n)
	lo := int(math.Ceil(cfg.RadarMinFreqHz / binHz))
	hi := int(math.Floor(cfg.RadarMaxFreqHz / binHz))
	if lo < 0 {
		lo = 0
	}
	if hi > len(total)-1 {
		hi = len(total) - 1
	}
	if hi < lo {
		return
	}

	peaks := pickPeaks(total, baseline, lo, hi, binHz, cfg)
	if len(peaks) == 0 {
		return
	}

	bandBins := int(math.Ceil(120 / binHz))
	candidates := make([]candidate, 0, len(peaks))
	maxBandExcess := 0.0
	for _, b := range peaks {
		bandLo, bandHi := b-bandBins, b+bandBins
		if bandLo < 0 {
			bandLo = 0
		}
		if bandHi > len(total)-1 {
			bandHi = len(total) - 1
		}

		var eFL, eFR, eBL, eBR, bandTotal, bandBase float64
		var freqNum, freqDen float64
		for k := bandLo; k <= bandHi; k++ {
			if p, ok := spectra["fl"]; ok {
				eFL += p[k]
			}
			if p, ok := spectra["fr"]; ok {
				eFR += p[k]
			}
			if p, ok := spectra["bl"]; ok {
				eBL += p[k]
			}
			if p, ok := spectra["br"]; ok {
				eBR += p[k]
			}
			bandTotal += total[k]
			bandBase += baseline[k]
			excess := math.Max(0, total[k]-baseline[k])
			freqNum += float64(k) * binHz * excess
			freqDen += excess
		}
		bandExcess := math.Max(0, bandTotal-bandBase)
		if bandTotal == 0 || bandExcess == 0 {
			continue
		}
		scale := anglemath.Clamp(bandExcess/bandTotal, 0, 1)
		eFL *= scale
		eFR *= scale
		eBL *= scale
		eBR *= scale

		freqHz := float64(b) * binHz
		if freqDen > 0 {
			freqHz = freqNum / freqDen
		}

		frontBothFresh := fresh["fl"] && fresh["fr"]
		backPresent := fresh["bl"] // fresh["bl"] == fresh["br"], both driven by phoneFresh
		res := direction.Fuse(direction.Inputs{
			FL: eFL, FR: eFR, BL: eBL, BR: eBR,
			FrontFresh: frontBothFresh,
			BackFresh:  backPresent,
			MonoFront:  (fresh["fl"] || fresh["fr"]) && !frontBothFresh && !backPresent,
		}, cfg)

		if bandExcess > maxBandExcess {
			maxBandExcess = bandExcess
		}
		candidates = append(candidates, candidate{freqHz: freqHz, rawDir: res.RawDirection, bandExcess: bandExcess})
	}
	if maxBandExcess == 0 {
		return
	}
	for i := range candidates {
		candidates[i].intensity = anglemath.Clamp(math.Sqrt(candidates[i].bandExcess/maxBandExcess), 0, 1)
	}

	sort.Slice(candidates, func(i, j int) bool { return candidates[i].intensity > candidates[j].intensity })
	t.associate(candidates, now, cfg)
}

type candidate struct {
	freqHz     float64
	rawDir     float64
	bandExcess float64
	intensity  float64
}

func (t *Tracker) associate(candidates []candidate, now time.Time, cfg *config.Config) {
	tracks := t.state.Tracks()
	used := make([]bool, len(tracks))

	for _, c := range candidates {
		best := -1
		bestDist := math.Inf(1)
		for i, tr := range tracks {
			if used[i] {
				continue
			}
			d := math.Abs(tr.FreqHz - c.freqHz)
			if d < bestDist {
				bestDist = d
				best = i
			}
		}
		if best == -1 || bestDist > cfg.RadarTrackFreqTolHz {
			tracks = append(tracks, &audiostate.RadarTrack{
				TrackID:           t.state.NewTrackID(),
				FreqHz:            c.freqHz,
				Intensity:         c.intensity,
				TorsoDirectionDeg: c.rawDir,
				LastSeen:          now,
			})
			used = append(used, true)
			continue
		}
		tr := tracks[best]
		tr.FreqHz = (1-cfg.RadarTrackAlphaFreq)*tr.FreqHz + cfg.RadarTrackAlphaFreq*c.freqHz
		tr.Intensity = (1-cfg.RadarTrackAlphaIntensity)*tr.Intensity + cfg.RadarTrackAlphaIntensity*c.intensity
		tr.TorsoDirectionDeg = anglemath.Lerp(tr.TorsoDirectionDeg, c.rawDir, cfg.RadarTrackAlphaDir)
		tr.LastSeen = now
		used[best] = true
	}
	t.state.ReplaceTracks(tracks)
}

// Emit produces the current radarDots snapshot, pruning dead tracks from
// the table (age > 3s, or decayed intensity below the floor).
func (t *Tracker) Emit(now time.Time, deltaYaw float64) []protocol.RadarDot {
	cfg := t.state.Cfg
	tracks := t.state.Tracks()

	alive := make([]*audiostate.RadarTrack, 0, len(tracks))
	dots := make([]protocol.RadarDot, 0, len(tracks))
	for _, tr := range tracks {
		age := now.Sub(tr.LastSeen)
		if age > 3*time.Second {
			continue
		}
		decay := math.Exp(-age.Seconds() / cfg.RadarTrackDecayTauS)
		displayIntensity := tr.Intensity * decay
		if displayIntensity < cfg.RadarTrackMinIntensity {
			continue
		}
		alive = append(alive, tr)

		dirHead := anglemath.Wrap(tr.TorsoDirectionDeg - deltaYaw)
		x, y := direction.PolarUI(dirHead, displayIntensity)
		dots = append(dots, protocol.RadarDot{
			TrackID:           tr.TrackID,
			FreqHz:            tr.FreqHz,
			DirectionDeg:      dirHead,
			TorsoDirectionDeg: tr.TorsoDirectionDeg,
			Intensity:         displayIntensity,
			RadarX:            x,
			RadarY:            y,
		})
	}
	t.state.ReplaceTracks(alive)

	sort.Slice(dots, func(i, j int) bool { return dots[i].Intensity > dots[j].Intensity })
	if len(dots) > cfg.RadarMaxDots {
		dots = dots[:cfg.RadarMaxDots]
	}
	return dots
}

func (t *Tracker) planFor(n int) *windowPlan {
	t.mu.Lock()
	defer t.mu.Unlock()
	if p, ok := t.windows[n]; ok {
		return p
	}
	hann := make([]float64, n)
	for i := range hann {
		hann[i] = 0.5 * (1 - math.Cos(2*math.Pi*float64(i)/float64(n-1)))
	}
	p := &windowPlan{n: n, hann: hann, fft: fourier.NewFFT(n)}
	t.windows[n] = p
	return p
}

func powerSpectrum(plan *windowPlan, samples []float32) []float64 {
	n := plan.n
	windowed := make([]float64, n)
	mean := 0.0
	for _, s := range samples {
		mean += float64(s)
	}
	mean /= float64(n)
	for i, s := range samples {
		windowed[i] = (float64(s) - mean) * plan.hann[i]
	}
	coeffs := plan.fft.Coefficients(nil, windowed)
	power := make([]float64, len(coeffs))
	for k, c := range coeffs {
		power[k] = real(c)*real(c) + imag(c)*imag(c)
	}
	return power
}

// pickPeaks implements the outlier peak picking rule from spec §4.4.
func pickPeaks(total, baseline []float64, lo, hi int, binHz float64, cfg *config.Config) []int {
	type scored struct {
		k              int
		excess, rel, score float64
	}
	var cands []scored
	maxExcess := 0.0
	for k := lo; k <= hi; k++ {
		excess := math.Max(0, total[k]-baseline[k])
		if excess > maxExcess {
			maxExcess = excess
		}
		rel := excess / (baseline[k] + 1e-9)
		score := excess * math.Sqrt(rel+1e-6)
		cands = append(cands, scored{k: k, excess: excess, rel: rel, score: score})
	}
	if maxExcess <= 0 {
		return nil
	}
	sort.Slice(cands, func(i, j int) bool { return cands[i].score > cands[j].score })

	sepBins := int(math.Ceil(200 / binHz))
	var accepted []int
	for _, c := range cands {
		if len(accepted) >= cfg.RadarMaxDots {
			break
		}
		if c.excess < 0.25*maxExcess {
			continue
		}
		if c.rel < cfg.RadarOutlierRatioThresh {
			continue
		}
		tooClose := false
		for _, p := range accepted {
			if abs(c.k-p) < sepBins {
				tooClose = true
				break
			}
		}
		if tooClose {
			continue
		}
		accepted = append(accepted, c.k)
	}
	return accepted
}

func abs(x int) int {
	if x < 0 {
		return -x
	}
	return x
}
