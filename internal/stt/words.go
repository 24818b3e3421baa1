package stt

import (
	"strings"
	"unicode"

	"github.com/clipperhouse/uax29/v2/words"
)

// splitWords tokenizes text into its word-like segments (UAX#29 word
// boundaries), dropping pure-whitespace/punctuation segments, matching the
// "current word list" comparison deltaWords needs.
func splitWords(text string) []string {
	var out []string
	iter := words.FromString(text)
	for iter.Next() {
		s := iter.Value()
		if strings.IndexFunc(s, func(r rune) bool { return unicode.IsLetter(r) || unicode.IsNumber(r) }) < 0 {
			continue
		}
		out = append(out, s)
	}
	return out
}

// deltaWords reports how many trailing words `cur` adds on top of `prev`,
// when cur is a prefix extension of prev (spec §6: "checking the current
// word list is a prefix extension of the previous; on revision, emit no
// delta"). Returns (n, true) on a clean extension, (0, false) on a
// revision (prev is not a prefix of cur).
func deltaWords(prevWords, curWords []string) (int, bool) {
	if len(curWords) < len(prevWords) {
		return 0, false
	}
	for i, w := range prevWords {
		if curWords[i] != w {
			return 0, false
		}
	}
	n := len(curWords) - len(prevWords)
	if n > 8 {
		n = 8
	}
	return n, true
}
