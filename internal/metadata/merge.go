package metadata

import (
	"slices"
	"sort"
	"strings"
)

// MergeOptions controls how tag and genre sets are combined.
type MergeOptions struct {
	MergeTags   bool
	MergeGenres bool
}

// MergeSeries combines original with incoming. Scalar fields keep the first
// non-empty value with original winning ties, title collections concatenate
// (an incoming primary title that loses to the original one becomes an
// alternative), links concatenate and dedupe by label. Tags and genres are merged only when
// enabled in opts; otherwise original wins when non-empty.
func MergeSeries(original, incoming SeriesMetadata, opts MergeOptions) SeriesMetadata {
	title := firstPtr(original.Title, incoming.Title)
	return SeriesMetadata{
		Status:                firstString(original.Status, incoming.Status),
		Title:                 title,
		Titles:                mergeTitles(title, original, incoming),
		Summary:               firstString(original.Summary, incoming.Summary),
		Publisher:             firstPtr(original.Publisher, incoming.Publisher),
		AlternativePublishers: dedupeBy(concat(original.AlternativePublishers, incoming.AlternativePublishers), func(p Publisher) string { return p.Name }),
		ReadingDirection:      firstString(original.ReadingDirection, incoming.ReadingDirection),
		AgeRating:             firstPtr(original.AgeRating, incoming.AgeRating),
		Language:              firstString(original.Language, incoming.Language),
		Genres:                mergeSet(original.Genres, incoming.Genres, opts.MergeGenres),
		Tags:                  mergeSet(original.Tags, incoming.Tags, opts.MergeTags),
		TotalBookCount:        firstPtr(original.TotalBookCount, incoming.TotalBookCount),
		Authors:               firstNonEmpty(original.Authors, incoming.Authors),
		ReleaseDate:           firstPtr(original.ReleaseDate, incoming.ReleaseDate),
		Thumbnail:             firstPtr(original.Thumbnail, incoming.Thumbnail),
		Links:                 dedupeBy(concat(original.Links, incoming.Links), func(l WebLink) string { return l.Label }),
		Score:                 firstPtr(original.Score, incoming.Score),
	}
}

// MergeBooks merges two book maps keyed by local book id. Keys from both maps
// are kept; values are combined with MergeBook.
func MergeBooks(original, incoming map[string]*BookMetadata) map[string]*BookMetadata {
	out := make(map[string]*BookMetadata, len(original))
	for id, book := range original {
		out[id] = MergeBook(book, incoming[id])
	}
	for id, book := range incoming {
		if _, ok := out[id]; ok {
			continue
		}
		out[id] = MergeBook(nil, book)
	}
	return out
}

// MergeBook combines two book records with the original winning per field.
// Tags, authors and links concatenate; chapters keep the original list when it
// is non-empty. Nil inputs are treated as absent.
func MergeBook(original, incoming *BookMetadata) *BookMetadata {
	switch {
	case original == nil && incoming == nil:
		return nil
	case original == nil:
		cp := incoming.Clone()
		return &cp
	case incoming == nil:
		cp := original.Clone()
		return &cp
	}
	return &BookMetadata{
		Title:       firstString(original.Title, incoming.Title),
		Summary:     firstString(original.Summary, incoming.Summary),
		Number:      firstPtr(original.Number, incoming.Number),
		NumberSort:  firstPtr(original.NumberSort, incoming.NumberSort),
		ReleaseDate: firstPtr(original.ReleaseDate, incoming.ReleaseDate),
		Authors:     dedupeBy(concat(original.Authors, incoming.Authors), func(a Author) string { return string(a.Role) + "\x00" + a.Name }),
		Tags:        dedupeBy(concat(original.Tags, incoming.Tags), func(t string) string { return t }),
		ISBN:        firstString(original.ISBN, incoming.ISBN),
		Links:       dedupeBy(concat(original.Links, incoming.Links), func(l WebLink) string { return l.Label }),
		Thumbnail:   firstPtr(original.Thumbnail, incoming.Thumbnail),
		Chapters:    firstNonEmpty(original.Chapters, incoming.Chapters),
	}
}

// Clone returns a deep copy of the slices held by b.
func (b BookMetadata) Clone() BookMetadata {
	b.Authors = slices.Clone(b.Authors)
	b.Tags = slices.Clone(b.Tags)
	b.Links = slices.Clone(b.Links)
	b.Chapters = slices.Clone(b.Chapters)
	return b
}

// Clone returns a deep copy of the slices held by m.
func (m SeriesMetadata) Clone() SeriesMetadata {
	m.Titles = slices.Clone(m.Titles)
	m.AlternativePublishers = slices.Clone(m.AlternativePublishers)
	m.Genres = slices.Clone(m.Genres)
	m.Tags = slices.Clone(m.Tags)
	m.Authors = slices.Clone(m.Authors)
	m.Links = slices.Clone(m.Links)
	return m
}

func firstString[T ~string](values ...T) T {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}

func firstPtr[T any](values ...*T) *T {
	for _, v := range values {
		if v != nil {
			return v
		}
	}
	return nil
}

func firstNonEmpty[T any](original, incoming []T) []T {
	if len(original) > 0 {
		return slices.Clone(original)
	}
	return slices.Clone(incoming)
}

func mergeTitles(title *SeriesTitle, original, incoming SeriesMetadata) []SeriesTitle {
	key := func(t SeriesTitle) string { return t.Name + "\x00" + t.Language }
	all := concat(original.AllTitles(), incoming.AllTitles())
	if title != nil {
		all = slices.DeleteFunc(all, func(t SeriesTitle) bool { return key(t) == key(*title) })
	}
	return dedupeBy(all, key)
}

func concat[T any](a, b []T) []T {
	if len(a) == 0 && len(b) == 0 {
		return nil
	}
	out := make([]T, 0, len(a)+len(b))
	out = append(out, a...)
	return append(out, b...)
}

func dedupeBy[T any](values []T, key func(T) string) []T {
	if len(values) == 0 {
		return nil
	}
	seen := make(map[string]struct{}, len(values))
	out := make([]T, 0, len(values))
	for _, v := range values {
		k := key(v)
		if _, ok := seen[k]; ok {
			continue
		}
		seen[k] = struct{}{}
		out = append(out, v)
	}
	return out
}

// mergeSet concatenates both sets and returns them sorted case-insensitively
// with case-insensitive duplicates removed. When merging is disabled the
// original wins if it is non-empty.
func mergeSet(original, incoming []string, merge bool) []string {
	if !merge {
		return firstNonEmpty(original, incoming)
	}
	combined := dedupeBy(concat(original, incoming), strings.ToLower)
	sort.SliceStable(combined, func(i, j int) bool {
		return strings.ToLower(combined[i]) < strings.ToLower(combined[j])
	})
	return combined
}
