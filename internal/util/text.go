package util

import (
	"strings"
	"unicode/utf8"
)

// SanitizeText drops null bytes and invalid UTF-8 sequences from raw file
// content so it can be handled as plain text downstream.
func SanitizeText(s string) string {
	if utf8.ValidString(s) && !strings.ContainsRune(s, 0) {
		return s
	}
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		if r == 0 || r == utf8.RuneError {
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

// TruncateString returns at most max bytes of s, cutting on a rune boundary.
func TruncateString(s string, max int) string {
	if len(s) <= max {
		return s
	}
	cut := s[:max]
	for len(cut) > 0 && !utf8.ValidString(cut) {
		cut = cut[:len(cut)-1]
	}
	return cut
}
