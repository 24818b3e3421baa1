package stt

import "testing"

func TestSplitWordsDropsWhitespace(t *testing.T) {
	got := splitWords("hello,  world!")
	want := []string{"hello", "world"}
	if len(got) != len(want) {
		t.Fatalf("splitWords = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("splitWords = %v, want %v", got, want)
		}
	}
}

func TestDeltaWordsExtension(t *testing.T) {
	prev := []string{"the", "fire"}
	cur := []string{"the", "fire", "alarm", "is"}
	n, ok := deltaWords(prev, cur)
	if !ok || n != 2 {
		t.Fatalf("deltaWords = (%d,%v), want (2,true)", n, ok)
	}
}

func TestDeltaWordsRevisionIsNotExtension(t *testing.T) {
	prev := []string{"the", "fire"}
	cur := []string{"the", "wire", "is"}
	n, ok := deltaWords(prev, cur)
	if ok || n != 0 {
		t.Fatalf("deltaWords = (%d,%v), want (0,false)", n, ok)
	}
}

func TestDeltaWordsCapsAtEight(t *testing.T) {
	prev := []string{}
	cur := []string{"a", "b", "c", "d", "e", "f", "g", "h", "i", "j"}
	n, ok := deltaWords(prev, cur)
	if !ok || n != 8 {
		t.Fatalf("deltaWords = (%d,%v), want (8,true)", n, ok)
	}
}

func TestDeltaWordsShorterCurrentIsRevision(t *testing.T) {
	prev := []string{"a", "b", "c"}
	cur := []string{"a", "b"}
	n, ok := deltaWords(prev, cur)
	if ok || n != 0 {
		t.Fatalf("deltaWords = (%d,%v), want (0,false)", n, ok)
	}
}
