// Package booknames extracts volume, chapter and edition hints from book
// file names and strips bracketed qualifiers from series titles.
package booknames

import (
	"regexp"
	"strconv"
	"strings"

	"komf/internal/metadata"
)

const number = `(\d+(?:[.,]\d+)?)`

var (
	volumePattern  = regexp.MustCompile(`(?i)(?:^|[^\p{L}])(?:volume|vol\.?|tome|tomo|v|t)\s*` + number + `(?:\s*-\s*(?:volume|vol\.?|v|t)?\s*` + number + `)?`)
	chapterPattern = regexp.MustCompile(`(?i)(?:^|[^\p{L}])(?:chapter|chap\.?|ch\.?|c)\s*` + number + `(?:\s*-\s*(?:chapter|chap\.?|ch\.?|c)?\s*` + number + `)?`)
	numberPattern  = regexp.MustCompile(`(?:^|[^\p{L}\d.,])#?` + number + `(?:\s*-\s*#?` + number + `)?`)
	bracketPattern = regexp.MustCompile(`[\[(（【{]([^\])）】}]*)[\])）】}]`)
)

// VolumeRange returns the volume range named in a file name, e.g. "v01",
// "Vol. 10.5" or "v01-03".
func VolumeRange(name string) (metadata.BookRange, bool) {
	return rangeFrom(volumePattern, StripBrackets(name))
}

// ChapterRange returns the chapter range named in a file name, e.g. "c012"
// or "Ch. 12-14".
func ChapterRange(name string) (metadata.BookRange, bool) {
	return rangeFrom(chapterPattern, StripBrackets(name))
}

// BookNumber returns the first standalone number of a file name once
// bracketed groups are removed, e.g. "Batman 012 (2016)" -> 12.
func BookNumber(name string) (metadata.BookRange, bool) {
	return rangeFrom(numberPattern, StripBrackets(name))
}

// IsChapterRelease reports whether the name carries an explicit chapter
// marker.
func IsChapterRelease(name string) bool {
	_, ok := ChapterRange(name)
	return ok
}

// ExtraData returns the trimmed contents of every bracketed or parenthesized
// group in name, in order of appearance.
func ExtraData(name string) []string {
	matches := bracketPattern.FindAllStringSubmatch(name, -1)
	out := make([]string, 0, len(matches))
	for _, m := range matches {
		if value := strings.TrimSpace(m[1]); value != "" {
			out = append(out, value)
		}
	}
	return out
}

// StripBrackets removes bracketed and parenthesized groups from a title and
// collapses the remaining whitespace.
func StripBrackets(title string) string {
	return strings.Join(strings.Fields(bracketPattern.ReplaceAllString(title, " ")), " ")
}

// RangeForMediaType extracts the number used to order and associate a book.
// MANGA prefers the volume, then the chapter, then a bare number. NOVEL and
// COMIC libraries use the bare number only.
func RangeForMediaType(mediaType, name string) (metadata.BookRange, bool) {
	if strings.EqualFold(mediaType, "MANGA") {
		if r, ok := VolumeRange(name); ok {
			return r, true
		}
		if r, ok := ChapterRange(name); ok {
			return r, true
		}
	}
	return BookNumber(name)
}

func rangeFrom(pattern *regexp.Regexp, value string) (metadata.BookRange, bool) {
	m := pattern.FindStringSubmatch(value)
	if m == nil {
		return metadata.BookRange{}, false
	}
	start, ok := parseNumber(m[1])
	if !ok {
		return metadata.BookRange{}, false
	}
	end := start
	if len(m) > 2 && m[2] != "" {
		if parsed, ok := parseNumber(m[2]); ok && parsed >= start {
			end = parsed
		}
	}
	return metadata.BookRange{Start: start, End: end}, true
}

func parseNumber(value string) (float64, bool) {
	n, err := strconv.ParseFloat(strings.ReplaceAll(value, ",", "."), 64)
	if err != nil {
		return 0, false
	}
	return n, true
}
