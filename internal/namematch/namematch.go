// Package namematch decides whether a query title names the same series as a
// provider's candidate titles.
package namematch

import (
	"fmt"
	"strings"

	"github.com/agnivade/levenshtein"

	"komf/internal/textutil"
)

// Mode selects how strictly titles are compared.
type Mode string

const (
	// Exact requires folded equality with at least one candidate.
	Exact Mode = "exact"
	// ClosestMatch additionally accepts candidates above a similarity threshold.
	ClosestMatch Mode = "closest_match"
)

// DefaultThreshold is the minimum normalized Levenshtein similarity accepted
// in ClosestMatch mode.
const DefaultThreshold = 0.85

// ParseMode converts a configuration value into a Mode.
func ParseMode(value string) (Mode, error) {
	switch Mode(strings.ToLower(strings.TrimSpace(value))) {
	case Exact:
		return Exact, nil
	case ClosestMatch, "":
		return ClosestMatch, nil
	}
	return "", fmt.Errorf("unknown name matching mode %q", value)
}

// Matcher compares titles under one Mode.
type Matcher struct {
	mode      Mode
	threshold float64
}

// New returns a matcher for mode using DefaultThreshold.
func New(mode Mode) Matcher {
	return Matcher{mode: mode, threshold: DefaultThreshold}
}

// WithThreshold returns a copy of m using threshold for fuzzy matches.
func (m Matcher) WithThreshold(threshold float64) Matcher {
	m.threshold = threshold
	return m
}

// Mode reports the matcher's mode.
func (m Matcher) Mode() Mode {
	return m.mode
}

// Matches reports whether name matches any candidate.
func (m Matcher) Matches(name string, candidates []string) bool {
	_, ok := m.Score(name, candidates)
	return ok
}

// Score returns the best similarity of name against candidates and whether it
// is accepted under the matcher's mode.
func (m Matcher) Score(name string, candidates []string) (float64, bool) {
	query := textutil.Fold(name)
	if query == "" {
		return 0, false
	}
	best := 0.0
	for _, candidate := range candidates {
		folded := textutil.Fold(candidate)
		if folded == "" {
			continue
		}
		if folded == query {
			return 1, true
		}
		if m.mode == ClosestMatch {
			best = max(best, Similarity(query, folded))
		}
	}
	return best, m.mode == ClosestMatch && best >= m.threshold
}

// Best returns the index of the candidate set that matches name with the
// highest score, or -1 when none is accepted. Earlier sets win ties.
func (m Matcher) Best(name string, candidateSets [][]string) int {
	bestIdx := -1
	bestScore := 0.0
	for idx, set := range candidateSets {
		score, ok := m.Score(name, set)
		if !ok {
			continue
		}
		if bestIdx == -1 || score > bestScore {
			bestIdx, bestScore = idx, score
		}
	}
	return bestIdx
}

// Similarity is the normalized Levenshtein similarity of two already folded
// strings, in [0, 1].
func Similarity(a, b string) float64 {
	la, lb := len([]rune(a)), len([]rune(b))
	longest := max(la, lb)
	if longest == 0 {
		return 1
	}
	distance := levenshtein.ComputeDistance(a, b)
	return 1 - float64(distance)/float64(longest)
}
