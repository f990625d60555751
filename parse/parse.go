// Package parse holds pure text normalization helpers used by the
// extractors and the reconciler.
package parse

import "strings"

// Digits strips everything except decimal digit characters. "1." becomes
// "1", "7.9" becomes "79", text with no digits becomes the empty string.
func Digits(s string) string {
	var b strings.Builder
	for _, r := range s {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	return b.String()
}

// CleanText trims a string and collapses internal whitespace runs to a
// single space.
func CleanText(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

// Truncate silently caps s at max characters. A non-positive max disables
// the cap.
func Truncate(s string, max int) string {
	if max <= 0 || len(s) <= max {
		return s
	}
	runes := []rune(s)
	if len(runes) <= max {
		return s
	}
	return string(runes[:max])
}
