package provider

import (
	"strings"

	"komf/internal/config"
	"komf/internal/metadata"
	"komf/internal/namematch"
)

// Fields lists the fields a provider contributes.
type Fields struct {
	Summary       bool
	Thumbnail     bool
	Genres        bool
	Tags          bool
	Authors       bool
	Publisher     bool
	ReleaseDate   bool
	AgeRating     bool
	Links         bool
	Score         bool
	Books         bool
	BookThumbnail bool
}

// AllFields includes everything.
func AllFields() Fields {
	return Fields{
		Summary: true, Thumbnail: true, Genres: true, Tags: true, Authors: true,
		Publisher: true, ReleaseDate: true, AgeRating: true, Links: true, Score: true,
		Books: true, BookThumbnail: true,
	}
}

// FieldsFromConfig resolves include flags, treating unset flags as included.
func FieldsFromConfig(inc config.FieldIncludes) Fields {
	return Fields{
		Summary:       inc.Enabled(inc.Summary),
		Thumbnail:     inc.Enabled(inc.Thumbnail),
		Genres:        inc.Enabled(inc.Genres),
		Tags:          inc.Enabled(inc.Tags),
		Authors:       inc.Enabled(inc.Authors),
		Publisher:     inc.Enabled(inc.Publisher),
		ReleaseDate:   inc.Enabled(inc.ReleaseDate),
		AgeRating:     inc.Enabled(inc.AgeRating),
		Links:         inc.Enabled(inc.Links),
		Score:         inc.Enabled(inc.Score),
		Books:         inc.Enabled(inc.Books),
		BookThumbnail: inc.Enabled(inc.BookThumbnail),
	}
}

// ApplySeries clears excluded series fields.
func (f Fields) ApplySeries(m metadata.SeriesMetadata) metadata.SeriesMetadata {
	if !f.Summary {
		m.Summary = ""
	}
	if !f.Thumbnail {
		m.Thumbnail = nil
	}
	if !f.Genres {
		m.Genres = nil
	}
	if !f.Tags {
		m.Tags = nil
	}
	if !f.Authors {
		m.Authors = nil
	}
	if !f.Publisher {
		m.Publisher = nil
		m.AlternativePublishers = nil
	}
	if !f.ReleaseDate {
		m.ReleaseDate = nil
	}
	if !f.AgeRating {
		m.AgeRating = nil
	}
	if !f.Links {
		m.Links = nil
	}
	if !f.Score {
		m.Score = nil
	}
	return m
}

// ApplyBook clears excluded book fields.
func (f Fields) ApplyBook(m metadata.BookMetadata) metadata.BookMetadata {
	if !f.Summary {
		m.Summary = ""
	}
	if !f.BookThumbnail {
		m.Thumbnail = nil
	}
	if !f.Tags {
		m.Tags = nil
	}
	if !f.Authors {
		m.Authors = nil
	}
	if !f.ReleaseDate {
		m.ReleaseDate = nil
	}
	if !f.Links {
		m.Links = nil
	}
	return m
}

// RoleMapping maps a provider's native author role onto shared roles.
type RoleMapping map[string][]metadata.AuthorRole

// DefaultRoleMapping maps the common "author"/"story" and "artist"/"art"
// roles.
func DefaultRoleMapping() RoleMapping {
	art := []metadata.AuthorRole{
		metadata.RolePenciller, metadata.RoleInker, metadata.RoleColorist,
		metadata.RoleLetterer, metadata.RoleCover,
	}
	return RoleMapping{
		"author": {metadata.RoleWriter},
		"story":  {metadata.RoleWriter},
		"artist": art,
		"art":    art,
	}
}

// RoleMappingFromConfig overlays configured roles on the defaults. Unknown
// role names are ignored.
func RoleMappingFromConfig(roles map[string][]string) RoleMapping {
	mapping := DefaultRoleMapping()
	for native, targets := range roles {
		mapped := make([]metadata.AuthorRole, 0, len(targets))
		for _, target := range targets {
			role := metadata.AuthorRole(strings.ToUpper(strings.TrimSpace(target)))
			switch role {
			case metadata.RoleWriter, metadata.RolePenciller, metadata.RoleInker, metadata.RoleColorist,
				metadata.RoleLetterer, metadata.RoleCover, metadata.RoleEditor, metadata.RoleTranslator:
				mapped = append(mapped, role)
			}
		}
		mapping[strings.ToLower(strings.TrimSpace(native))] = mapped
	}
	return mapping
}

// Authors expands one native credit into shared authors.
func (r RoleMapping) Authors(nativeRole, name string) []metadata.Author {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil
	}
	roles := r[strings.ToLower(strings.TrimSpace(nativeRole))]
	out := make([]metadata.Author, 0, len(roles))
	for _, role := range roles {
		out = append(out, metadata.Author{Name: name, Role: role})
	}
	return out
}

// Settings carries the per-provider configuration applied by clients before
// data reaches the caller.
type Settings struct {
	Matcher namematch.Matcher
	Fields  Fields
	Roles   RoleMapping
}

// DefaultSettings includes every field, uses closest-match naming and the
// default role mapping.
func DefaultSettings() Settings {
	return Settings{
		Matcher: namematch.New(namematch.ClosestMatch),
		Fields:  AllFields(),
		Roles:   DefaultRoleMapping(),
	}
}
