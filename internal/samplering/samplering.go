// Package samplering implements the per-channel Sample Ring from spec §4.1: a
// bounded, append-only float32 buffer holding the last N samples, backed by a
// deque of whole chunks rather than one flat array. Evicting whole chunks
// (instead of shifting a giant slice on every append) keeps each append O(1)
// amortized, matching the "cheap to mutate under a lock" requirement in §9 —
// the same reasoning that shapes buffer.RingBuffer, but chunk-grained instead
// of sample-grained so a single incoming frame is never copied sample by sample.
package samplering

import "sync"

// Ring is a bounded chunked float32 buffer. Zero value is not usable; use New.
type Ring struct {
	mu          sync.Mutex
	maxSamples  int
	parts       [][]float32
	totalSamples int
}

// New creates a Ring that retains at most maxSamples samples.
func New(maxSamples int) *Ring {
	return &Ring{maxSamples: maxSamples}
}

// Append adds samples to the ring. If the incoming block itself exceeds
// capacity, only its tail is kept. Whole oldest chunks are evicted until the
// ring is back within capacity. Appending an empty slice is a no-op.
func (r *Ring) Append(samples []float32) {
	if len(samples) == 0 {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	if len(samples) > r.maxSamples {
		samples = samples[len(samples)-r.maxSamples:]
	}

	chunk := make([]float32, len(samples))
	copy(chunk, samples)
	r.parts = append(r.parts, chunk)
	r.totalSamples += len(chunk)

	for r.totalSamples > r.maxSamples && len(r.parts) > 0 {
		evicted := r.parts[0]
		r.parts = r.parts[1:]
		r.totalSamples -= len(evicted)
	}
}

// Get returns a contiguous copy of the ring's current contents, oldest
// sample first. An empty ring yields a zero-length slice.
func (r *Ring) Get() []float32 {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make([]float32, r.totalSamples)
	off := 0
	for _, p := range r.parts {
		copy(out[off:], p)
		off += len(p)
	}
	return out
}

// Len returns the number of samples currently held.
func (r *Ring) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.totalSamples
}

// Reset discards all buffered samples.
func (r *Ring) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.parts = nil
	r.totalSamples = 0
}
