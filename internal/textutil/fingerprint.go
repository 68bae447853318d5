package textutil

import (
	"math"
	"strings"
	"unicode"
)

// Fingerprint is the folded term-frequency vector of a title.
type Fingerprint struct {
	terms map[string]float64
	norm  float64
}

// NewFingerprint returns the fingerprint of title, or nil when the title has
// no token of at least two runes.
func NewFingerprint(title string) *Fingerprint {
	tokens := Tokenize(title)
	if len(tokens) == 0 {
		return nil
	}
	terms := make(map[string]float64, len(tokens))
	for _, token := range tokens {
		terms[token]++
	}
	var sum float64
	for _, n := range terms {
		sum += n * n
	}
	return &Fingerprint{terms: terms, norm: math.Sqrt(sum)}
}

// Tokenize folds text and splits it on anything that is not a letter or a
// digit. Single-rune tokens ("a", "x", volume letters) are dropped.
func Tokenize(text string) []string {
	fields := strings.FieldsFunc(Fold(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsNumber(r)
	})
	out := fields[:0]
	for _, field := range fields {
		if len([]rune(field)) >= 2 {
			out = append(out, field)
		}
	}
	return out
}

// Similarity is the cosine of the angle between two fingerprints, in [0, 1].
// A nil fingerprint is similar to nothing.
func (f *Fingerprint) Similarity(other *Fingerprint) float64 {
	if f == nil || other == nil || f.norm == 0 || other.norm == 0 {
		return 0
	}
	small, large := f, other
	if len(small.terms) > len(large.terms) {
		small, large = large, small
	}
	var dot float64
	for term, n := range small.terms {
		dot += n * large.terms[term]
	}
	return dot / (f.norm * other.norm)
}
