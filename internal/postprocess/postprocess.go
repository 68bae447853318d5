package postprocess

import (
	"fmt"
	"math"
	"slices"
	"strings"

	"komf/internal/booknames"
	"komf/internal/config"
	"komf/internal/language"
	"komf/internal/mediaserver"
	"komf/internal/metadata"
	"komf/internal/textutil"
)

// Options mirrors the post-processing configuration for one library.
type Options struct {
	SeriesTitle         bool
	SeriesTitleLanguage string
	FallbackToAltTitle  bool
	AltTitles           bool
	AltTitleLanguages   []string
	ScoreTag            bool
	ReadingDirection    metadata.ReadingDirection
	Language            string
	OrderBooks          bool
	MediaType           string
	// BookMetadata is set when book metadata is written back, so a one-shot
	// cover can move from the series onto its book.
	BookMetadata bool
}

// OptionsFromConfig builds Options for a library of the given media type.
func OptionsFromConfig(m config.Metadata, mediaType string) Options {
	pp := m.PostProcessing
	direction, _ := metadata.ParseReadingDirection(pp.ReadingDirectionValue)
	return Options{
		SeriesTitle:         pp.SeriesTitle,
		SeriesTitleLanguage: pp.SeriesTitleLanguage,
		FallbackToAltTitle:  pp.FallbackToAltTitle,
		AltTitles:           pp.AlternativeSeriesTitles,
		AltTitleLanguages:   slices.Clone(pp.AlternativeSeriesTitleLanguages),
		ScoreTag:            pp.ScoreTag,
		ReadingDirection:    direction,
		Language:            strings.TrimSpace(pp.LanguageValue),
		OrderBooks:          pp.OrderBooks,
		MediaType:           mediaType,
		BookMetadata:        m.BookMetadata,
	}
}

// Processor transforms SeriesAndBookMetadata according to Options.
type Processor struct {
	opts Options
}

// New returns a Processor.
func New(opts Options) *Processor {
	return &Processor{opts: opts}
}

// Process returns the transformed copy of result for a series made of books.
func (p *Processor) Process(books []mediaserver.Book, result metadata.SeriesAndBookMetadata) metadata.SeriesAndBookMetadata {
	series := result.Series.Clone()
	bookMeta := make(map[string]*metadata.BookMetadata, len(result.Books))
	for id, meta := range result.Books {
		if meta == nil {
			bookMeta[id] = nil
			continue
		}
		clone := meta.Clone()
		bookMeta[id] = &clone
	}

	series = p.titles(series)
	if p.opts.ScoreTag && series.Score != nil {
		series.Tags = appendUnique(series.Tags, fmt.Sprintf("score: %d", int(math.Round(*series.Score))))
	}
	if p.opts.ReadingDirection != "" {
		series.ReadingDirection = p.opts.ReadingDirection
	}
	if p.opts.Language != "" {
		series.Language = p.opts.Language
	}
	if p.opts.OrderBooks {
		p.orderBooks(books, bookMeta)
	}
	oneshot(books, &series, bookMeta, p.opts.BookMetadata)

	return metadata.SeriesAndBookMetadata{Series: series, Books: bookMeta}
}

func (p *Processor) titles(series metadata.SeriesMetadata) metadata.SeriesMetadata {
	alts := series.AllTitles()
	if p.opts.SeriesTitle {
		series.Title = p.selectTitle(series)
	}
	if p.opts.AltTitles {
		alts = FilterLanguages(alts, p.opts.AltTitleLanguages)
	}
	var exclude string
	if series.Title != nil {
		exclude = series.Title.Name
	}
	series.Titles = DedupeTitles(alts, exclude)
	return series
}

func (p *Processor) selectTitle(series metadata.SeriesMetadata) *metadata.SeriesTitle {
	if lang := p.opts.SeriesTitleLanguage; lang != "" {
		for _, title := range series.AllTitles() {
			if language.Matches(title.Language, lang) {
				t := title
				return &t
			}
		}
	}
	if series.Title != nil {
		return series.Title
	}
	if p.opts.FallbackToAltTitle && len(series.Titles) > 0 {
		t := series.Titles[0]
		return &t
	}
	return nil
}

// FilterLanguages keeps the titles whose language is in languages. Titles
// without a language are dropped.
func FilterLanguages(titles []metadata.SeriesTitle, languages []string) []metadata.SeriesTitle {
	var out []metadata.SeriesTitle
	for _, title := range titles {
		if title.Language == "" {
			continue
		}
		if slices.ContainsFunc(languages, func(lang string) bool { return language.Matches(lang, title.Language) }) {
			out = append(out, title)
		}
	}
	return out
}

// DedupeTitles removes titles whose normalized key repeats an earlier title
// or matches exclude. The first occurrence wins, so applying it twice yields
// the same list.
func DedupeTitles(titles []metadata.SeriesTitle, exclude string) []metadata.SeriesTitle {
	seen := make(map[string]struct{}, len(titles)+1)
	if exclude != "" {
		seen[textutil.NormalizedKey(exclude)] = struct{}{}
	}
	var out []metadata.SeriesTitle
	for _, title := range titles {
		key := textutil.NormalizedKey(title.Name)
		if key == "" {
			continue
		}
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, title)
	}
	return out
}

func (p *Processor) orderBooks(books []mediaserver.Book, bookMeta map[string]*metadata.BookMetadata) {
	for _, book := range books {
		if book.Deleted {
			continue
		}
		r, ok := booknames.RangeForMediaType(p.opts.MediaType, book.Name)
		if !ok {
			continue
		}
		meta := bookMeta[book.ID]
		if meta == nil {
			meta = &metadata.BookMetadata{}
			bookMeta[book.ID] = meta
		}
		number := r
		sortKey := r.Start
		meta.Number = &number
		meta.NumberSort = &sortKey
	}
}

// oneshot back-fills the only remaining book of a series from the series
// metadata. The cover moves onto that book only when books are written back.
func oneshot(books []mediaserver.Book, series *metadata.SeriesMetadata, bookMeta map[string]*metadata.BookMetadata, moveCover bool) {
	var only *mediaserver.Book
	for i := range books {
		if books[i].Deleted {
			continue
		}
		if only != nil {
			return
		}
		only = &books[i]
	}
	if only == nil {
		return
	}

	meta := bookMeta[only.ID]
	if meta == nil {
		meta = &metadata.BookMetadata{}
		bookMeta[only.ID] = meta
	}
	if meta.Summary == "" {
		meta.Summary = series.Summary
	}
	if len(meta.Tags) == 0 {
		meta.Tags = slices.Clone(series.Tags)
	}
	if len(meta.Links) == 0 {
		meta.Links = slices.Clone(series.Links)
	}
	if !moveCover {
		return
	}
	if meta.Thumbnail == nil {
		meta.Thumbnail = series.Thumbnail
	}
	series.Thumbnail = nil
}

func appendUnique(values []string, value string) []string {
	if slices.Contains(values, value) {
		return values
	}
	return append(values, value)
}
