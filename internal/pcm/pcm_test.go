package pcm

import "testing"

func TestDecodeEncodeRoundTrip(t *testing.T) {
	orig := []float32{0, 0.5, -0.5, 1, -1}
	data := EncodeS16LE(orig)
	got := DecodeS16LE(data)
	for i := range orig {
		if diff := float64(got[i] - orig[i]); diff > 0.001 || diff < -0.001 {
			t.Fatalf("round trip mismatch at %d: got %v, want %v", i, got[i], orig[i])
		}
	}
}

func TestRMSOfSilenceIsZero(t *testing.T) {
	if got := RMS(make([]float32, 100)); got != 0 {
		t.Fatalf("got %v, want 0", got)
	}
}

func TestRMSOfConstantSignal(t *testing.T) {
	samples := make([]float32, 10)
	for i := range samples {
		samples[i] = 0.5
	}
	if got := RMS(samples); got < 0.499 || got > 0.501 {
		t.Fatalf("got %v, want ~0.5", got)
	}
}

func TestGainClipClamps(t *testing.T) {
	got := GainClip([]float32{0.5, -0.5}, 4)
	if got[0] != 1 || got[1] != -1 {
		t.Fatalf("got %v, want clipped to [-1,1]", got)
	}
}

func TestDeinterleaveAndDownmix(t *testing.T) {
	interleaved := []float32{1, 3, 1, 3}
	left, right := Deinterleave(interleaved)
	if len(left) != 2 || left[0] != 1 || left[1] != 1 {
		t.Fatalf("left=%v", left)
	}
	if len(right) != 2 || right[0] != 3 || right[1] != 3 {
		t.Fatalf("right=%v", right)
	}
	mono := DownmixMono(left, right)
	if mono[0] != 2 || mono[1] != 2 {
		t.Fatalf("mono=%v, want [2 2]", mono)
	}
}

func TestBytesPerFrame(t *testing.T) {
	f := Format{SampleRateHz: 16000, Channels: 1, FrameMs: 20}
	if got := f.BytesPerFrame(); got != 640 {
		t.Fatalf("got %d, want 640", got)
	}
}
