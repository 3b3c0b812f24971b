// Package utils provides shared utilities for text, math, and logging.
package utils

import (
	"strings"
	"unicode"
	"unicode/utf8"
)

// Truncate returns s truncated to maxLen runes, with "..." appended if truncated.
// If maxLen is 0 or negative, returns s unchanged.
func Truncate(s string, maxLen int) string {
	if maxLen <= 0 || utf8.RuneCountInString(s) <= maxLen {
		return s
	}
	return string([]rune(s)[:maxLen]) + "..."
}

// TruncateWords cuts s to at most maxRunes runes, backing up to the last
// whitespace so a word is not split. A single word longer than the limit is
// cut at the rune boundary. The second result reports whether s was cut.
func TruncateWords(s string, maxRunes int) (string, bool) {
	if maxRunes <= 0 || utf8.RuneCountInString(s) <= maxRunes {
		return s, false
	}
	runes := []rune(s)[:maxRunes]
	cut := len(runes)
	for i := len(runes) - 1; i > 0; i-- {
		if unicode.IsSpace(runes[i]) {
			cut = i
			break
		}
	}
	return strings.TrimRightFunc(string(runes[:cut]), unicode.IsSpace), true
}

// SingleLine collapses all whitespace runs in s into single spaces.
func SingleLine(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
