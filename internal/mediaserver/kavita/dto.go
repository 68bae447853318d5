package kavita

import (
	"path/filepath"
	"strconv"
	"strings"

	"komf/internal/mediaserver"
	"komf/internal/metadata"
)

type libraryDTO struct {
	ID   int    `json:"id"`
	Name string `json:"name"`
}

type seriesDTO struct {
	ID                  int    `json:"id"`
	Name                string `json:"name"`
	LocalizedName       string `json:"localizedName"`
	LibraryID           int    `json:"libraryId"`
	Pages               int    `json:"pages"`
	NameLocked          bool   `json:"nameLocked"`
	SortNameLocked      bool   `json:"sortNameLocked"`
	LocalizedNameLocked bool   `json:"localizedNameLocked"`
	CoverImageLocked    bool   `json:"coverImageLocked"`
}

type seriesMetadataDTO struct {
	ReleaseYear             int  `json:"releaseYear"`
	SummaryLocked           bool `json:"summaryLocked"`
	GenresLocked            bool `json:"genresLocked"`
	TagsLocked              bool `json:"tagsLocked"`
	WriterLocked            bool `json:"writerLocked"`
	PublisherLocked         bool `json:"publisherLocked"`
	AgeRatingLocked         bool `json:"ageRatingLocked"`
	LanguageLocked          bool `json:"languageLocked"`
	PublicationStatusLocked bool `json:"publicationStatusLocked"`
	ReleaseYearLocked       bool `json:"releaseYearLocked"`
}

type volumeDTO struct {
	ID       int          `json:"id"`
	Name     string       `json:"name"`
	Chapters []chapterDTO `json:"chapters"`
}

type chapterDTO struct {
	ID                int     `json:"id"`
	Range             string  `json:"range"`
	SortOrder         float64 `json:"sortOrder"`
	Title             string  `json:"title"`
	TitleNameLocked   bool    `json:"titleNameLocked"`
	SummaryLocked     bool    `json:"summaryLocked"`
	ReleaseDateLocked bool    `json:"releaseDateLocked"`
	WriterLocked      bool    `json:"writerLocked"`
	TagsLocked        bool    `json:"tagsLocked"`
	IsbnLocked        bool    `json:"isbnLocked"`
	CoverImageLocked  bool    `json:"coverImageLocked"`
	Files             []struct {
		FilePath string `json:"filePath"`
	} `json:"files"`
}

type personDTO struct {
	Name string `json:"name"`
}

type titledDTO struct {
	Title string `json:"title"`
}

// Kavita publication status values.
const (
	statusOngoing   = 0
	statusHiatus    = 1
	statusCompleted = 2
	statusCancelled = 3
	statusEnded     = 4
)

func publicationStatus(s metadata.SeriesStatus) int {
	switch s {
	case metadata.StatusHiatus:
		return statusHiatus
	case metadata.StatusCompleted:
		return statusCompleted
	case metadata.StatusAbandoned:
		return statusCancelled
	case metadata.StatusEnded:
		return statusEnded
	}
	return statusOngoing
}

// ageRating maps a minimum reader age onto Kavita's rating enum.
func ageRating(age int) int {
	switch {
	case age >= 18:
		return 12
	case age >= 17:
		return 10
	case age >= 15:
		return 9
	case age >= 13:
		return 8
	case age >= 10:
		return 5
	}
	return 3
}

// personFields maps author roles onto Kavita series/chapter person lists.
var personFields = map[metadata.AuthorRole]string{
	metadata.RoleWriter:     "writers",
	metadata.RolePenciller:  "pencillers",
	metadata.RoleInker:      "inkers",
	metadata.RoleColorist:   "colorists",
	metadata.RoleLetterer:   "letterers",
	metadata.RoleCover:      "coverArtists",
	metadata.RoleEditor:     "editors",
	metadata.RoleTranslator: "translators",
}

func applyAuthors(patch map[string]any, authors []metadata.Author) {
	byField := map[string][]personDTO{}
	for _, field := range personFields {
		byField[field] = []personDTO{}
	}
	for _, a := range authors {
		if field, ok := personFields[a.Role]; ok {
			byField[field] = append(byField[field], personDTO{Name: a.Name})
		}
	}
	for field, people := range byField {
		patch[field] = people
	}
}

func titled(values []string) []titledDTO {
	out := make([]titledDTO, 0, len(values))
	for _, v := range values {
		out = append(out, titledDTO{Title: v})
	}
	return out
}

func webLinks(links []metadata.WebLink) string {
	urls := make([]string, 0, len(links))
	for _, l := range links {
		urls = append(urls, l.URL)
	}
	return strings.Join(urls, ",")
}

func (s seriesDTO) toSeries(meta seriesMetadataDTO) mediaserver.Series {
	out := mediaserver.Series{
		ID:          strconv.Itoa(s.ID),
		LibraryID:   strconv.Itoa(s.LibraryID),
		Name:        s.Name,
		Title:       s.Name,
		ReleaseYear: meta.ReleaseYear,
		Locks:       mediaserver.Locks{},
	}
	if s.LocalizedName != "" {
		out.AlternativeTitles = []string{s.LocalizedName}
	}
	flags := map[mediaserver.Field]bool{
		mediaserver.FieldTitle:             s.NameLocked,
		mediaserver.FieldTitleSort:         s.SortNameLocked,
		mediaserver.FieldAlternativeTitles: s.LocalizedNameLocked,
		mediaserver.FieldSummary:           meta.SummaryLocked,
		mediaserver.FieldGenres:            meta.GenresLocked,
		mediaserver.FieldTags:              meta.TagsLocked,
		mediaserver.FieldAuthors:           meta.WriterLocked,
		mediaserver.FieldPublisher:         meta.PublisherLocked,
		mediaserver.FieldAgeRating:         meta.AgeRatingLocked,
		mediaserver.FieldLanguage:          meta.LanguageLocked,
		mediaserver.FieldStatus:            meta.PublicationStatusLocked,
		mediaserver.FieldReleaseDate:       meta.ReleaseYearLocked,
	}
	for field, locked := range flags {
		if locked {
			out.Locks[field] = true
		}
	}
	if s.CoverImageLocked {
		out.Cover = &mediaserver.Cover{UserUploaded: true}
	}
	return out
}

func (c chapterDTO) toBook(seriesID, libraryID string) mediaserver.Book {
	name := c.Title
	if len(c.Files) > 0 {
		base := filepath.Base(c.Files[0].FilePath)
		name = strings.TrimSuffix(base, filepath.Ext(base))
	}
	book := mediaserver.Book{
		ID:        strconv.Itoa(c.ID),
		SeriesID:  seriesID,
		LibraryID: libraryID,
		Name:      name,
		Number:    c.SortOrder,
		Locks:     mediaserver.Locks{},
	}
	flags := map[mediaserver.Field]bool{
		mediaserver.FieldTitle:       c.TitleNameLocked,
		mediaserver.FieldSummary:     c.SummaryLocked,
		mediaserver.FieldReleaseDate: c.ReleaseDateLocked,
		mediaserver.FieldAuthors:     c.WriterLocked,
		mediaserver.FieldTags:        c.TagsLocked,
		mediaserver.FieldISBN:        c.IsbnLocked,
	}
	for field, locked := range flags {
		if locked {
			book.Locks[field] = true
		}
	}
	if c.CoverImageLocked {
		book.Cover = &mediaserver.Cover{UserUploaded: true}
	}
	return book
}
