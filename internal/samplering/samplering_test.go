package samplering

import "testing"

func TestAppendThenGetIsSuffix(t *testing.T) {
	r := New(5)
	r.Append([]float32{1, 2, 3})
	r.Append([]float32{4, 5, 6})

	got := r.Get()
	want := []float32{2, 3, 4, 5, 6}
	if len(got) != len(want) {
		t.Fatalf("len=%d, want %d (%v)", len(got), len(want), got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("got=%v, want=%v", got, want)
		}
	}
}

func TestTotalNeverExceedsMax(t *testing.T) {
	r := New(10)
	for i := 0; i < 100; i++ {
		r.Append([]float32{float32(i), float32(i), float32(i)})
		if r.Len() > 10 {
			t.Fatalf("Len()=%d exceeds max", r.Len())
		}
	}
}

func TestAppendEmptyIsNoop(t *testing.T) {
	r := New(4)
	r.Append([]float32{1, 2})
	before := r.Len()
	r.Append(nil)
	r.Append([]float32{})
	if r.Len() != before {
		t.Fatalf("Len() changed after empty append: %d -> %d", before, r.Len())
	}
}

func TestOversizedBlockKeepsTail(t *testing.T) {
	r := New(3)
	r.Append([]float32{1, 2, 3, 4, 5})
	got := r.Get()
	want := []float32{3, 4, 5}
	if len(got) != 3 {
		t.Fatalf("len=%d, want 3", len(got))
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("got=%v, want=%v", got, want)
		}
	}
}

func TestEmptyRingYieldsZeroLength(t *testing.T) {
	r := New(4)
	if got := r.Get(); len(got) != 0 {
		t.Fatalf("expected zero-length get, got %v", got)
	}
}
