// Package association pairs the local books of a series with the entries of
// a provider's book list.
//
// Pairing is decided by, in order:
//   - an explicitly requested edition: provider books outside that edition
//     are ignored and books pair by number
//   - a single local book and a single provider book pair directly unless the
//     local name is a chapter release
//   - otherwise each local book pairs with the provider book of its edition
//     (taken from bracketed file name groups) whose range equals its own
//
// A local book whose number cannot be read is left unmatched.
package association

import (
	"regexp"
	"strings"

	"komf/internal/booknames"
	"komf/internal/mediaserver"
	"komf/internal/metadata"
	"komf/internal/textutil"
)

var editionWord = regexp.MustCompile(`\bedition\b`)

// NormalizeEdition returns the comparison form of an edition label:
// "Deluxe Edition", "deluxe" and "Édition Deluxe" all become "deluxe".
func NormalizeEdition(label string) string {
	return textutil.CollapseSpace(editionWord.ReplaceAllString(textutil.Fold(label), " "))
}

// Options scopes an association run.
type Options struct {
	// MediaType selects the number parser, see booknames.RangeForMediaType.
	MediaType string
	// Edition restricts provider books to one edition group when set.
	Edition string
}

// Associate returns the provider book paired with each local book, keyed by
// local book id. Every local book is a key; unmatched books map to nil.
func Associate(local []mediaserver.Book, remote []metadata.SeriesBook, opts Options) map[string]*metadata.SeriesBook {
	out := make(map[string]*metadata.SeriesBook, len(local))
	for _, book := range local {
		out[book.ID] = nil
	}

	if strings.TrimSpace(opts.Edition) != "" {
		group := editionGroups(remote)[NormalizeEdition(opts.Edition)]
		for _, book := range local {
			out[book.ID] = byRange(group, book.Name, opts.MediaType)
		}
		return out
	}

	if len(local) == 1 && len(remote) == 1 && !booknames.IsChapterRelease(local[0].Name) {
		match := remote[0]
		out[local[0].ID] = &match
		return out
	}

	groups := editionGroups(remote)
	for _, book := range local {
		group := groups[""]
		if edition, ok := editionHint(book.Name, groups); ok {
			group = groups[edition]
		}
		out[book.ID] = byRange(group, book.Name, opts.MediaType)
	}
	return out
}

// editionGroups buckets provider books by normalized edition; books without
// an edition are under "".
func editionGroups(books []metadata.SeriesBook) map[string][]metadata.SeriesBook {
	groups := make(map[string][]metadata.SeriesBook)
	for _, book := range books {
		key := NormalizeEdition(book.Edition)
		groups[key] = append(groups[key], book)
	}
	return groups
}

// editionHint returns the first bracketed group of name that names one of
// the provider's editions.
func editionHint(name string, groups map[string][]metadata.SeriesBook) (string, bool) {
	for _, extra := range booknames.ExtraData(name) {
		key := NormalizeEdition(extra)
		if key == "" {
			continue
		}
		if _, ok := groups[key]; ok {
			return key, true
		}
	}
	return "", false
}

func byRange(group []metadata.SeriesBook, name, mediaType string) *metadata.SeriesBook {
	want, ok := booknames.RangeForMediaType(mediaType, name)
	if !ok {
		return nil
	}
	for _, candidate := range group {
		if candidate.Number != nil && *candidate.Number == want {
			match := candidate
			return &match
		}
	}
	return nil
}
