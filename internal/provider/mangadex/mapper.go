package mangadex

import (
	"fmt"
	"maps"
	"slices"
	"sort"
	"strconv"
	"strings"

	"komf/internal/metadata"
)

type searchResponse struct {
	Data []manga `json:"data"`
}

type mangaResponse struct {
	Data manga `json:"data"`
}

type manga struct {
	ID            string         `json:"id"`
	Attributes    mangaAttrs     `json:"attributes"`
	Relationships []relationship `json:"relationships"`
}

type mangaAttrs struct {
	Title                  map[string]string   `json:"title"`
	AltTitles              []map[string]string `json:"altTitles"`
	Description            map[string]string   `json:"description"`
	Links                  map[string]string   `json:"links"`
	OriginalLanguage       string              `json:"originalLanguage"`
	LastVolume             string              `json:"lastVolume"`
	PublicationDemographic string              `json:"publicationDemographic"`
	Status                 string              `json:"status"`
	Year                   int                 `json:"year"`
	ContentRating          string              `json:"contentRating"`
	Tags                   []tag               `json:"tags"`
}

type tag struct {
	Attributes struct {
		Name  map[string]string `json:"name"`
		Group string            `json:"group"`
	} `json:"attributes"`
}

type relationship struct {
	ID         string `json:"id"`
	Type       string `json:"type"`
	Attributes struct {
		Name     string `json:"name"`
		FileName string `json:"fileName"`
	} `json:"attributes"`
}

type aggregateResponse struct {
	Volumes map[string]aggregateVolume `json:"volumes"`
}

type aggregateVolume struct {
	Volume   string                      `json:"volume"`
	Count    int                         `json:"count"`
	Chapters map[string]aggregateChapter `json:"chapters"`
}

type aggregateChapter struct {
	Chapter string `json:"chapter"`
	ID      string `json:"id"`
}

type coverResponse struct {
	Data []struct {
		ID         string `json:"id"`
		Attributes struct {
			Volume   string `json:"volume"`
			FileName string `json:"fileName"`
			Locale   string `json:"locale"`
		} `json:"attributes"`
	} `json:"data"`
}

var linkLabels = map[string]string{
	"al":    "AniList",
	"ap":    "Anime-Planet",
	"bw":    "BookWalker",
	"mu":    "MangaUpdates",
	"kt":    "Kitsu",
	"mal":   "MyAnimeList",
	"raw":   "Raw",
	"engtl": "Official English",
}

func (c *Client) seriesMetadata(m manga) metadata.SeriesMetadata {
	attrs := m.Attributes
	titles := mangaTitles(attrs)
	out := metadata.SeriesMetadata{
		Status:   seriesStatus(attrs.Status),
		Summary:  localized(attrs.Description),
		Language: attrs.OriginalLanguage,
		Links:    mangaLinks(m.ID, attrs.Links),
	}
	if len(titles) > 0 {
		out.Title = &titles[0]
		out.Titles = titles[1:]
	}
	for _, t := range attrs.Tags {
		name := localized(t.Attributes.Name)
		if name == "" {
			continue
		}
		if t.Attributes.Group == "genre" {
			out.Genres = append(out.Genres, name)
		} else {
			out.Tags = append(out.Tags, name)
		}
	}
	if attrs.Year > 0 {
		out.ReleaseDate = &metadata.ReleaseDate{Year: attrs.Year}
	}
	if rating, ok := ageRating(attrs.ContentRating); ok {
		out.AgeRating = &rating
	}
	if attrs.Status == "completed" {
		if last, err := strconv.Atoi(attrs.LastVolume); err == nil && last > 0 {
			out.TotalBookCount = &last
		}
	}
	switch attrs.OriginalLanguage {
	case "ja":
		out.ReadingDirection = metadata.RightToLeft
	case "ko":
		out.ReadingDirection = metadata.Webtoon
	}
	for _, rel := range m.Relationships {
		if rel.Type == "author" || rel.Type == "artist" {
			out.Authors = append(out.Authors, c.settings.Roles.Authors(rel.Type, rel.Attributes.Name)...)
		}
	}
	if cover := c.coverURL(m); cover != "" {
		out.Thumbnail = &metadata.Image{URL: cover}
	}
	return out
}

func (c *Client) coverURL(m manga) string {
	for _, rel := range m.Relationships {
		if rel.Type == "cover_art" && rel.Attributes.FileName != "" {
			return c.coversURL + "/" + m.ID + "/" + rel.Attributes.FileName
		}
	}
	return ""
}

// mangaTitles returns the main title followed by alternative titles.
func mangaTitles(attrs mangaAttrs) []metadata.SeriesTitle {
	var out []metadata.SeriesTitle
	for _, lang := range slices.Sorted(maps.Keys(attrs.Title)) {
		out = append(out, seriesTitle(lang, attrs.Title[lang]))
	}
	for _, alt := range attrs.AltTitles {
		for _, lang := range slices.Sorted(maps.Keys(alt)) {
			out = append(out, seriesTitle(lang, alt[lang]))
		}
	}
	return slices.DeleteFunc(out, func(t metadata.SeriesTitle) bool { return strings.TrimSpace(t.Name) == "" })
}

func seriesTitle(lang, name string) metadata.SeriesTitle {
	title := metadata.SeriesTitle{Name: strings.TrimSpace(name), Language: lang, Type: metadata.TitleLocalized}
	switch {
	case strings.HasSuffix(lang, "-ro"):
		title.Type = metadata.TitleRomaji
	case lang == "ja" || lang == "ko" || lang == "zh":
		title.Type = metadata.TitleNative
	}
	return title
}

func localized(values map[string]string) string {
	if v := strings.TrimSpace(values["en"]); v != "" {
		return v
	}
	for _, lang := range slices.Sorted(maps.Keys(values)) {
		if v := strings.TrimSpace(values[lang]); v != "" {
			return v
		}
	}
	return ""
}

func seriesStatus(value string) metadata.SeriesStatus {
	switch value {
	case "ongoing":
		return metadata.StatusOngoing
	case "completed":
		return metadata.StatusEnded
	case "hiatus":
		return metadata.StatusHiatus
	case "cancelled":
		return metadata.StatusAbandoned
	}
	return ""
}

func ageRating(value string) (int, bool) {
	switch value {
	case "suggestive":
		return 13, true
	case "erotica":
		return 16, true
	case "pornographic":
		return 18, true
	}
	return 0, false
}

func mangaLinks(id string, links map[string]string) []metadata.WebLink {
	out := []metadata.WebLink{{Label: "MangaDex", URL: "https://mangadex.org/title/" + id}}
	for _, key := range slices.Sorted(maps.Keys(links)) {
		label, ok := linkLabels[key]
		if !ok {
			continue
		}
		value := links[key]
		switch key {
		case "al":
			value = "https://anilist.co/manga/" + value
		case "mal":
			value = "https://myanimelist.net/manga/" + value
		case "mu":
			value = "https://www.mangaupdates.com/series.html?id=" + value
		case "kt":
			value = "https://kitsu.app/manga/" + value
		case "ap":
			value = "https://www.anime-planet.com/manga/" + value
		case "bw":
			value = "https://bookwalker.jp/" + value
		}
		out = append(out, metadata.WebLink{Label: label, URL: value})
	}
	return out
}

// seriesBooks lists numbered volumes in ascending order. Chapters without a
// volume are skipped.
func seriesBooks(volumes map[string]aggregateVolume) []metadata.SeriesBook {
	var books []metadata.SeriesBook
	for key, volume := range volumes {
		n, err := strconv.ParseFloat(volume.Volume, 64)
		if err != nil {
			continue
		}
		number := metadata.SingleRange(n)
		books = append(books, metadata.SeriesBook{
			ID:     key,
			Number: &number,
			Type:   metadata.BookVolume,
			Name:   fmt.Sprintf("Volume %s", volume.Volume),
		})
	}
	sort.Slice(books, func(i, j int) bool { return books[i].Number.Start < books[j].Number.Start })
	return books
}

func bookMetadata(seriesID string, volume aggregateVolume) metadata.BookMetadata {
	out := metadata.BookMetadata{
		Title: fmt.Sprintf("Volume %s", volume.Volume),
		Links: []metadata.WebLink{{Label: "MangaDex", URL: "https://mangadex.org/title/" + seriesID}},
	}
	if n, err := strconv.ParseFloat(volume.Volume, 64); err == nil {
		number := metadata.SingleRange(n)
		out.Number = &number
		out.NumberSort = &n
	}
	for _, ch := range volume.Chapters {
		n, err := strconv.ParseFloat(ch.Chapter, 64)
		if err != nil {
			continue
		}
		out.Chapters = append(out.Chapters, metadata.Chapter{Range: metadata.SingleRange(n)})
	}
	sort.Slice(out.Chapters, func(i, j int) bool { return out.Chapters[i].Range.Start < out.Chapters[j].Range.Start })
	return out
}
