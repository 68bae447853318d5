package textutil

import (
	"strings"
	"unicode"

	"golang.org/x/text/cases"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
	"golang.org/x/text/width"
)

// StripAccents removes combining marks after canonical decomposition.
func StripAccents(s string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	out, _, err := transform.String(t, s)
	if err != nil {
		return s
	}
	return out
}

// CollapseSpace trims s and replaces every whitespace run with one space.
func CollapseSpace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

// Fold returns the comparison form of a title: case folded, accents
// stripped and whitespace collapsed.
func Fold(s string) string {
	return CollapseSpace(cases.Fold().String(StripAccents(s)))
}

// NormalizedKey returns a dedupe key for s: accents stripped, fullwidth
// characters folded to halfwidth, spaces removed and case folded.
func NormalizedKey(s string) string {
	folded := cases.Fold().String(width.Fold.String(StripAccents(s)))
	return strings.Map(func(r rune) rune {
		if unicode.IsSpace(r) {
			return -1
		}
		return r
	}, folded)
}
