// Package utils provides shared utilities for text handling and logging.
package utils

import (
	"strings"
	"unicode"
)

// Truncate returns s truncated to maxLen runes, with "..." appended if truncated.
// If maxLen is 0 or negative, returns s unchanged.
func Truncate(s string, maxLen int) string {
	if maxLen <= 0 {
		return s
	}
	runes := []rune(s)
	if len(runes) <= maxLen {
		return s
	}
	return string(runes[:maxLen]) + "..."
}

// NormSpace trims s and collapses internal whitespace runs to a single space.
func NormSpace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

// Fold lowercases s, maps "ё" to "е" and collapses whitespace, for
// case-insensitive comparison of Russian and Belarusian names.
func Fold(s string) string {
	s = strings.ToLower(NormSpace(s))
	return strings.ReplaceAll(s, "ё", "е")
}

// Tokens splits s into folded word tokens on any rune that is not a letter or digit.
func Tokens(s string) []string {
	return strings.FieldsFunc(Fold(s), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
}

// DigitsOnly returns the decimal digits of s in order.
func DigitsOnly(s string) string {
	var b strings.Builder
	for _, r := range s {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	return b.String()
}
