package metadata

import (
	"fmt"
	"strconv"
)

// SeriesStatus is the publication status of a series.
type SeriesStatus string

const (
	StatusEnded     SeriesStatus = "ENDED"
	StatusOngoing   SeriesStatus = "ONGOING"
	StatusAbandoned SeriesStatus = "ABANDONED"
	StatusHiatus    SeriesStatus = "HIATUS"
	StatusCompleted SeriesStatus = "COMPLETED"
)

// ReadingDirection describes the page order of a series.
type ReadingDirection string

const (
	LeftToRight ReadingDirection = "LEFT_TO_RIGHT"
	RightToLeft ReadingDirection = "RIGHT_TO_LEFT"
	Vertical    ReadingDirection = "VERTICAL"
	Webtoon     ReadingDirection = "WEBTOON"
)

// ParseReadingDirection converts a configuration value into a ReadingDirection.
func ParseReadingDirection(value string) (ReadingDirection, bool) {
	switch ReadingDirection(value) {
	case LeftToRight, RightToLeft, Vertical, Webtoon:
		return ReadingDirection(value), true
	}
	return "", false
}

// TitleType tags a series title with its script/romanisation.
type TitleType string

const (
	TitleRomaji    TitleType = "ROMAJI"
	TitleLocalized TitleType = "LOCALIZED"
	TitleNative    TitleType = "NATIVE"
)

// AuthorRole is the creative role of an author.
type AuthorRole string

const (
	RoleWriter     AuthorRole = "WRITER"
	RolePenciller  AuthorRole = "PENCILLER"
	RoleInker      AuthorRole = "INKER"
	RoleColorist   AuthorRole = "COLORIST"
	RoleLetterer   AuthorRole = "LETTERER"
	RoleCover      AuthorRole = "COVER"
	RoleEditor     AuthorRole = "EDITOR"
	RoleTranslator AuthorRole = "TRANSLATOR"
)

// PublisherType distinguishes the original publisher from localized ones.
type PublisherType string

const (
	PublisherOriginal  PublisherType = "ORIGINAL"
	PublisherLocalized PublisherType = "LOCALIZED"
)

// SeriesTitle is one title of a series with optional type and language tag.
type SeriesTitle struct {
	Name     string    `json:"name"`
	Type     TitleType `json:"type,omitempty"`
	Language string    `json:"language,omitempty"`
}

// Publisher names a publishing company.
type Publisher struct {
	Name string        `json:"name"`
	Type PublisherType `json:"type,omitempty"`
}

// Author is a named contributor with a role.
type Author struct {
	Name string     `json:"name"`
	Role AuthorRole `json:"role"`
}

// WebLink is a labelled URL.
type WebLink struct {
	Label string `json:"label"`
	URL   string `json:"url"`
}

// ReleaseDate is a partial calendar date. Month and Day are zero when unknown.
type ReleaseDate struct {
	Year  int `json:"year"`
	Month int `json:"month,omitempty"`
	Day   int `json:"day,omitempty"`
}

// Image is a cover image. URL is set by providers; Data is filled once the
// image has been downloaded.
type Image struct {
	URL      string `json:"url,omitempty"`
	Data     []byte `json:"-"`
	MimeType string `json:"mimeType,omitempty"`
}

// BookRange is a volume or chapter span. Single numbers have Start == End.
type BookRange struct {
	Start float64 `json:"start"`
	End   float64 `json:"end"`
}

// SingleRange returns a range covering exactly one number.
func SingleRange(n float64) BookRange {
	return BookRange{Start: n, End: n}
}

// IsSingle reports whether the range covers a single number.
func (r BookRange) IsSingle() bool {
	return r.Start == r.End
}

func (r BookRange) String() string {
	if r.IsSingle() {
		return formatNumber(r.Start)
	}
	return fmt.Sprintf("%s-%s", formatNumber(r.Start), formatNumber(r.End))
}

func formatNumber(n float64) string {
	return strconv.FormatFloat(n, 'f', -1, 64)
}

// Chapter describes a chapter contained in a book.
type Chapter struct {
	Name  string    `json:"name,omitempty"`
	Range BookRange `json:"range"`
}

// SeriesMetadata is the series-level metadata produced by a provider or by
// merging two instances.
type SeriesMetadata struct {
	Status                SeriesStatus     `json:"status,omitempty"`
	Title                 *SeriesTitle     `json:"title,omitempty"`
	Titles                []SeriesTitle    `json:"titles,omitempty"`
	Summary               string           `json:"summary,omitempty"`
	Publisher             *Publisher       `json:"publisher,omitempty"`
	AlternativePublishers []Publisher      `json:"alternativePublishers,omitempty"`
	ReadingDirection      ReadingDirection `json:"readingDirection,omitempty"`
	AgeRating             *int             `json:"ageRating,omitempty"`
	Language              string           `json:"language,omitempty"`
	Genres                []string         `json:"genres,omitempty"`
	Tags                  []string         `json:"tags,omitempty"`
	TotalBookCount        *int             `json:"totalBookCount,omitempty"`
	Authors               []Author         `json:"authors,omitempty"`
	ReleaseDate           *ReleaseDate     `json:"releaseDate,omitempty"`
	Thumbnail             *Image           `json:"thumbnail,omitempty"`
	Links                 []WebLink        `json:"links,omitempty"`
	Score                 *float64         `json:"score,omitempty"`
}

// AllTitles returns the primary title (if any) followed by every other title.
func (m SeriesMetadata) AllTitles() []SeriesTitle {
	out := make([]SeriesTitle, 0, len(m.Titles)+1)
	if m.Title != nil {
		out = append(out, *m.Title)
	}
	return append(out, m.Titles...)
}

// TitleNames returns the names of AllTitles without empty or duplicate entries.
func (m SeriesMetadata) TitleNames() []string {
	seen := make(map[string]struct{})
	var names []string
	for _, title := range m.AllTitles() {
		if title.Name == "" {
			continue
		}
		if _, ok := seen[title.Name]; ok {
			continue
		}
		seen[title.Name] = struct{}{}
		names = append(names, title.Name)
	}
	return names
}

// BookMetadata is the per-book metadata matched to one local book.
type BookMetadata struct {
	Title       string       `json:"title,omitempty"`
	Summary     string       `json:"summary,omitempty"`
	Number      *BookRange   `json:"number,omitempty"`
	NumberSort  *float64     `json:"numberSort,omitempty"`
	ReleaseDate *ReleaseDate `json:"releaseDate,omitempty"`
	Authors     []Author     `json:"authors,omitempty"`
	Tags        []string     `json:"tags,omitempty"`
	ISBN        string       `json:"isbn,omitempty"`
	Links       []WebLink    `json:"links,omitempty"`
	Thumbnail   *Image       `json:"thumbnail,omitempty"`
	Chapters    []Chapter    `json:"chapters,omitempty"`
}

// BookType classifies an entry of a provider's book list.
type BookType string

const (
	BookVolume  BookType = "VOLUME"
	BookChapter BookType = "CHAPTER"
	BookOneshot BookType = "ONESHOT"
)

// SeriesBook is an entry of a provider's book list. It is used to associate
// local books with provider books and is never written back directly.
type SeriesBook struct {
	ID      string     `json:"id"`
	Number  *BookRange `json:"number,omitempty"`
	Edition string     `json:"edition,omitempty"`
	Type    BookType   `json:"type,omitempty"`
	Name    string     `json:"name"`
}

// SeriesAndBookMetadata pairs series metadata with the metadata matched for
// each local book, keyed by local book id. A nil value means no provider book
// was associated with that local book; the key is still present.
type SeriesAndBookMetadata struct {
	Series SeriesMetadata           `json:"series"`
	Books  map[string]*BookMetadata `json:"books"`
}
