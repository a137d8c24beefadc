// Package textnorm folds Portuguese text for comparisons and fixed-charset fields.
package textnorm

import (
	"regexp"
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

var (
	nonAlphanumeric = regexp.MustCompile(`[^A-Z0-9 ]+`)
	whitespace      = regexp.MustCompile(`\s+`)
)

// StripAccents removes combining marks: "São João" -> "Sao Joao".
func StripAccents(s string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	out, _, err := transform.String(t, s)
	if err != nil {
		return s
	}
	return out
}

// Key upper-cases, strips accents and punctuation and collapses spaces.
func Key(s string) string {
	s = strings.ToUpper(StripAccents(s))
	s = nonAlphanumeric.ReplaceAllString(s, " ")
	s = whitespace.ReplaceAllString(s, " ")
	return strings.TrimSpace(s)
}

// Tokens returns the words of Key(s) with at least min runes.
func Tokens(s string, min int) []string {
	var out []string
	for _, w := range strings.Fields(Key(s)) {
		if len(w) >= min {
			out = append(out, w)
		}
	}
	return out
}
