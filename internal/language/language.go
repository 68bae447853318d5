package language

import (
	"slices"
	"strings"

	xlanguage "golang.org/x/text/language"
)

var names = map[string]string{
	"english":            "en",
	"japanese":           "ja",
	"korean":             "ko",
	"chinese":            "zh",
	"french":             "fr",
	"german":             "de",
	"spanish":            "es",
	"italian":            "it",
	"portuguese":         "pt",
	"russian":            "ru",
	"polish":             "pl",
	"vietnamese":         "vi",
	"indonesian":         "id",
	"thai":               "th",
	"romaji":             "ja-ro",
	"romanized japanese": "ja-ro",
	"romanized korean":   "ko-ro",
	"romanized chinese":  "zh-ro",
}

// Normalize returns the canonical lowercase form of a language tag. The base
// language is reduced to its ISO 639-1 code when one exists; any subtag such
// as the "ro" romanization marker is kept.
func Normalize(tag string) string {
	s := strings.ToLower(strings.TrimSpace(tag))
	s = strings.ReplaceAll(s, "_", "-")
	if s == "" {
		return ""
	}
	if mapped, ok := names[s]; ok {
		return mapped
	}
	base, sub, _ := strings.Cut(s, "-")
	if canonical := baseCode(base); canonical != "" {
		base = canonical
	}
	if sub == "" {
		return base
	}
	return base + "-" + sub
}

func baseCode(code string) string {
	if mapped, ok := names[code]; ok && !strings.Contains(mapped, "-") {
		return mapped
	}
	if len(code) != 2 && len(code) != 3 {
		return ""
	}
	b, err := xlanguage.ParseBase(code)
	if err != nil {
		return ""
	}
	return b.String()
}

// Matches reports whether two tags name the same language. Empty tags never
// match.
func Matches(a, b string) bool {
	na := Normalize(a)
	return na != "" && na == Normalize(b)
}

// NormalizeList normalizes every tag, dropping blanks and duplicates while
// keeping the first occurrence order.
func NormalizeList(tags []string) []string {
	out := make([]string, 0, len(tags))
	for _, tag := range tags {
		n := Normalize(tag)
		if n == "" || slices.Contains(out, n) {
			continue
		}
		out = append(out, n)
	}
	return out
}
