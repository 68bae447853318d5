package komga

import (
	"fmt"
	"strconv"
	"strings"

	"komf/internal/mediaserver"
	"komf/internal/metadata"
)

type libraryDTO struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

type pageDTO[T any] struct {
	Content    []T `json:"content"`
	Number     int `json:"number"`
	TotalPages int `json:"totalPages"`
}

type seriesDTO struct {
	ID         string            `json:"id"`
	LibraryID  string            `json:"libraryId"`
	Name       string            `json:"name"`
	BooksCount int               `json:"booksCount"`
	Metadata   seriesMetadataDTO `json:"metadata"`
	Books      struct {
		ReleaseDate string `json:"releaseDate"`
	} `json:"booksMetadata"`
}

type seriesMetadataDTO struct {
	Title                string              `json:"title"`
	TitleLock            bool                `json:"titleLock"`
	TitleSortLock        bool                `json:"titleSortLock"`
	StatusLock           bool                `json:"statusLock"`
	SummaryLock          bool                `json:"summaryLock"`
	PublisherLock        bool                `json:"publisherLock"`
	ReadingDirectionLock bool                `json:"readingDirectionLock"`
	AgeRatingLock        bool                `json:"ageRatingLock"`
	LanguageLock         bool                `json:"languageLock"`
	GenresLock           bool                `json:"genresLock"`
	TagsLock             bool                `json:"tagsLock"`
	TotalBookCountLock   bool                `json:"totalBookCountLock"`
	LinksLock            bool                `json:"linksLock"`
	AlternateTitles      []alternateTitleDTO `json:"alternateTitles"`
	AlternateTitlesLock  bool                `json:"alternateTitlesLock"`
}

type alternateTitleDTO struct {
	Label string `json:"label"`
	Title string `json:"title"`
}

type bookDTO struct {
	ID        string          `json:"id"`
	SeriesID  string          `json:"seriesId"`
	LibraryID string          `json:"libraryId"`
	Name      string          `json:"name"`
	Number    float64         `json:"number"`
	Deleted   bool            `json:"deleted"`
	Metadata  bookMetadataDTO `json:"metadata"`
}

type bookMetadataDTO struct {
	TitleLock       bool `json:"titleLock"`
	SummaryLock     bool `json:"summaryLock"`
	NumberLock      bool `json:"numberLock"`
	NumberSortLock  bool `json:"numberSortLock"`
	ReleaseDateLock bool `json:"releaseDateLock"`
	AuthorsLock     bool `json:"authorsLock"`
	TagsLock        bool `json:"tagsLock"`
	IsbnLock        bool `json:"isbnLock"`
	LinksLock       bool `json:"linksLock"`
}

type thumbnailDTO struct {
	ID       string `json:"id"`
	Type     string `json:"type"`
	Selected bool   `json:"selected"`
}

type authorDTO struct {
	Name string `json:"name"`
	Role string `json:"role"`
}

type linkDTO struct {
	Label string `json:"label"`
	URL   string `json:"url"`
}

func (s seriesDTO) toSeries() mediaserver.Series {
	m := s.Metadata
	out := mediaserver.Series{
		ID:        s.ID,
		LibraryID: s.LibraryID,
		Name:      s.Name,
		Title:     m.Title,
		BookCount: s.BooksCount,
		Locks: lockSet(map[mediaserver.Field]bool{
			mediaserver.FieldTitle:             m.TitleLock,
			mediaserver.FieldTitleSort:         m.TitleSortLock,
			mediaserver.FieldStatus:            m.StatusLock,
			mediaserver.FieldSummary:           m.SummaryLock,
			mediaserver.FieldPublisher:         m.PublisherLock,
			mediaserver.FieldReadingDirection:  m.ReadingDirectionLock,
			mediaserver.FieldAgeRating:         m.AgeRatingLock,
			mediaserver.FieldLanguage:          m.LanguageLock,
			mediaserver.FieldGenres:            m.GenresLock,
			mediaserver.FieldTags:              m.TagsLock,
			mediaserver.FieldTotalBookCount:    m.TotalBookCountLock,
			mediaserver.FieldLinks:             m.LinksLock,
			mediaserver.FieldAlternativeTitles: m.AlternateTitlesLock,
		}),
	}
	for _, alt := range m.AlternateTitles {
		out.AlternativeTitles = append(out.AlternativeTitles, alt.Title)
	}
	if len(s.Books.ReleaseDate) >= 4 {
		if year, err := strconv.Atoi(s.Books.ReleaseDate[:4]); err == nil {
			out.ReleaseYear = year
		}
	}
	return out
}

func (b bookDTO) toBook() mediaserver.Book {
	m := b.Metadata
	return mediaserver.Book{
		ID:        b.ID,
		SeriesID:  b.SeriesID,
		LibraryID: b.LibraryID,
		Name:      b.Name,
		Number:    b.Number,
		Deleted:   b.Deleted,
		Locks: lockSet(map[mediaserver.Field]bool{
			mediaserver.FieldTitle:       m.TitleLock,
			mediaserver.FieldSummary:     m.SummaryLock,
			mediaserver.FieldNumber:      m.NumberLock,
			mediaserver.FieldNumberSort:  m.NumberSortLock,
			mediaserver.FieldReleaseDate: m.ReleaseDateLock,
			mediaserver.FieldAuthors:     m.AuthorsLock,
			mediaserver.FieldTags:        m.TagsLock,
			mediaserver.FieldISBN:        m.IsbnLock,
			mediaserver.FieldLinks:       m.LinksLock,
		}),
	}
}

func lockSet(flags map[mediaserver.Field]bool) mediaserver.Locks {
	locks := mediaserver.Locks{}
	for field, locked := range flags {
		if locked {
			locks[field] = true
		}
	}
	return locks
}

// selectedCover reports the selected thumbnail, if any.
func selectedCover(thumbs []thumbnailDTO) *mediaserver.Cover {
	for _, t := range thumbs {
		if t.Selected {
			return &mediaserver.Cover{ID: t.ID, UserUploaded: t.Type == "USER_UPLOADED"}
		}
	}
	return nil
}

func seriesPatch(u mediaserver.SeriesUpdate) map[string]any {
	patch := map[string]any{}
	if u.Status != nil {
		status := *u.Status
		if status == metadata.StatusCompleted {
			status = metadata.StatusEnded
		}
		patch["status"] = status
	}
	if u.Title != nil {
		patch["title"] = *u.Title
	}
	if u.TitleSort != nil {
		patch["titleSort"] = *u.TitleSort
	}
	if u.Summary != nil {
		patch["summary"] = *u.Summary
	}
	if u.Publisher != nil {
		patch["publisher"] = *u.Publisher
	}
	if u.ReadingDirection != nil {
		patch["readingDirection"] = *u.ReadingDirection
	}
	if u.AgeRating != nil {
		patch["ageRating"] = *u.AgeRating
	}
	if u.Language != nil {
		patch["language"] = *u.Language
	}
	if u.Genres != nil {
		patch["genres"] = u.Genres
	}
	if u.Tags != nil {
		patch["tags"] = u.Tags
	}
	if u.TotalBookCount != nil {
		patch["totalBookCount"] = *u.TotalBookCount
	}
	if u.Links != nil {
		patch["links"] = links(u.Links)
	}
	if u.AlternativeTitles != nil {
		titles := make([]alternateTitleDTO, 0, len(u.AlternativeTitles))
		for _, t := range u.AlternativeTitles {
			label := t.Language
			if label == "" {
				label = strings.ToLower(string(t.Type))
			}
			titles = append(titles, alternateTitleDTO{Label: label, Title: t.Name})
		}
		patch["alternateTitles"] = titles
	}
	return patch
}

func bookPatch(u mediaserver.BookUpdate) map[string]any {
	patch := map[string]any{}
	if u.Title != nil {
		patch["title"] = *u.Title
	}
	if u.Summary != nil {
		patch["summary"] = *u.Summary
	}
	if u.Number != nil {
		patch["number"] = *u.Number
	}
	if u.NumberSort != nil {
		patch["numberSort"] = *u.NumberSort
	}
	if u.ReleaseDate != nil {
		patch["releaseDate"] = releaseDate(*u.ReleaseDate)
	}
	if u.Authors != nil {
		authors := make([]authorDTO, 0, len(u.Authors))
		for _, a := range u.Authors {
			authors = append(authors, authorDTO{Name: a.Name, Role: strings.ToLower(string(a.Role))})
		}
		patch["authors"] = authors
	}
	if u.Tags != nil {
		patch["tags"] = u.Tags
	}
	if u.ISBN != nil {
		patch["isbn"] = *u.ISBN
	}
	if u.Links != nil {
		patch["links"] = links(u.Links)
	}
	return patch
}

func links(in []metadata.WebLink) []linkDTO {
	out := make([]linkDTO, 0, len(in))
	for _, l := range in {
		out = append(out, linkDTO{Label: l.Label, URL: l.URL})
	}
	return out
}

func releaseDate(d metadata.ReleaseDate) string {
	month, day := d.Month, d.Day
	if month == 0 {
		month = 1
	}
	if day == 0 {
		day = 1
	}
	return fmt.Sprintf("%04d-%02d-%02d", d.Year, month, day)
}
