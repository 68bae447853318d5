package anilist

import (
	"html"
	"regexp"
	"strconv"
	"strings"

	"komf/internal/metadata"
	"komf/internal/provider"
)

type media struct {
	ID    int    `json:"id"`
	URL   string `json:"siteUrl"`
	Title struct {
		Romaji  string `json:"romaji"`
		English string `json:"english"`
		Native  string `json:"native"`
	} `json:"title"`
	Synonyms        []string  `json:"synonyms"`
	Status          string    `json:"status"`
	Description     string    `json:"description"`
	StartDate       fuzzyDate `json:"startDate"`
	Volumes         *int      `json:"volumes"`
	CountryOfOrigin string    `json:"countryOfOrigin"`
	IsAdult         bool      `json:"isAdult"`
	AverageScore    *int      `json:"averageScore"`
	Genres          []string  `json:"genres"`
	Tags            []struct {
		Name    string `json:"name"`
		Rank    int    `json:"rank"`
		Spoiler bool   `json:"isMediaSpoiler"`
	} `json:"tags"`
	CoverImage coverImage `json:"coverImage"`
	Staff      struct {
		Edges []struct {
			Role string `json:"role"`
			Node struct {
				Name struct {
					Full string `json:"full"`
				} `json:"name"`
			} `json:"node"`
		} `json:"edges"`
	} `json:"staff"`
}

type fuzzyDate struct {
	Year  *int `json:"year"`
	Month *int `json:"month"`
	Day   *int `json:"day"`
}

type coverImage struct {
	ExtraLarge string `json:"extraLarge"`
	Large      string `json:"large"`
}

func (c coverImage) best() string {
	if c.ExtraLarge != "" {
		return c.ExtraLarge
	}
	return c.Large
}

var (
	tagPattern    = regexp.MustCompile(`<[^>]*>`)
	sourcePattern = regexp.MustCompile(`(?s)\(Source:.*?\)`)
)

func (m media) titles() []metadata.SeriesTitle {
	var out []metadata.SeriesTitle
	add := func(name string, kind metadata.TitleType, lang string) {
		if name = strings.TrimSpace(name); name != "" {
			out = append(out, metadata.SeriesTitle{Name: name, Type: kind, Language: lang})
		}
	}
	native := nativeLanguage(m.CountryOfOrigin)
	add(m.Title.English, metadata.TitleLocalized, "en")
	add(m.Title.Romaji, metadata.TitleRomaji, native+"-ro")
	add(m.Title.Native, metadata.TitleNative, native)
	for _, synonym := range m.Synonyms {
		add(synonym, "", "")
	}
	return out
}

func (m media) titleNames() []string {
	titles := m.titles()
	names := make([]string, 0, len(titles))
	for _, t := range titles {
		names = append(names, t.Name)
	}
	return names
}

func nativeLanguage(country string) string {
	switch strings.ToUpper(country) {
	case "KR":
		return "ko"
	case "CN", "TW":
		return "zh"
	}
	return "ja"
}

func (c *Client) series(m media) provider.Series {
	titles := m.titles()
	out := metadata.SeriesMetadata{
		Status:  seriesStatus(m.Status),
		Summary: cleanDescription(m.Description),
		Genres:  append([]string(nil), m.Genres...),
		Links:   []metadata.WebLink{{Label: "AniList", URL: m.URL}},
	}
	if m.URL == "" {
		out.Links[0].URL = "https://anilist.co/manga/" + strconv.Itoa(m.ID)
	}
	if len(titles) > 0 {
		out.Title = &titles[0]
		out.Titles = titles[1:]
	}
	for _, t := range m.Tags {
		if t.Spoiler || t.Rank < c.tagMinRank {
			continue
		}
		out.Tags = append(out.Tags, t.Name)
	}
	if m.StartDate.Year != nil {
		date := metadata.ReleaseDate{Year: *m.StartDate.Year}
		if m.StartDate.Month != nil {
			date.Month = *m.StartDate.Month
		}
		if m.StartDate.Day != nil {
			date.Day = *m.StartDate.Day
		}
		out.ReleaseDate = &date
	}
	if m.Volumes != nil && *m.Volumes > 0 {
		count := *m.Volumes
		out.TotalBookCount = &count
	}
	if m.IsAdult {
		rating := 18
		out.AgeRating = &rating
	}
	if m.AverageScore != nil {
		score := float64(*m.AverageScore) / 10
		out.Score = &score
	}
	if cover := m.CoverImage.best(); cover != "" {
		out.Thumbnail = &metadata.Image{URL: cover}
	}
	for _, edge := range m.Staff.Edges {
		role := strings.ToLower(edge.Role)
		name := edge.Node.Name.Full
		if strings.Contains(role, "story") {
			out.Authors = append(out.Authors, c.settings.Roles.Authors("story", name)...)
		}
		if strings.Contains(role, "art") {
			out.Authors = append(out.Authors, c.settings.Roles.Authors("art", name)...)
		}
	}
	return provider.Series{
		ID:       strconv.Itoa(m.ID),
		Metadata: c.settings.Fields.ApplySeries(out),
	}
}

func seriesStatus(value string) metadata.SeriesStatus {
	switch value {
	case "RELEASING":
		return metadata.StatusOngoing
	case "FINISHED":
		return metadata.StatusEnded
	case "HIATUS":
		return metadata.StatusHiatus
	case "CANCELLED":
		return metadata.StatusAbandoned
	}
	return ""
}

func cleanDescription(value string) string {
	value = strings.ReplaceAll(value, "<br>", "\n")
	value = tagPattern.ReplaceAllString(value, "")
	value = sourcePattern.ReplaceAllString(value, "")
	return strings.TrimSpace(html.UnescapeString(value))
}
