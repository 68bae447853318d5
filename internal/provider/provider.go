package provider

import (
	"context"
	"errors"
	"strings"

	"komf/internal/metadata"
)

// Name identifies a provider, e.g. "mangadex".
type Name string

// ParseName normalizes a provider name as used in configuration and requests.
func ParseName(value string) Name {
	return Name(strings.ToLower(strings.TrimSpace(value)))
}

var (
	// ErrProviderNotFound is returned for names that are not registered.
	ErrProviderNotFound = errors.New("provider not found")
	// ErrProviderDisabled is returned for registered but disabled providers.
	ErrProviderDisabled = errors.New("provider disabled")
)

// SearchResult is one candidate returned by a series search.
type SearchResult struct {
	Provider Name   `json:"provider"`
	ResultID string `json:"resultId"`
	Title    string `json:"title"`
	ImageURL string `json:"imageUrl,omitempty"`
}

// Series is a provider's series record mapped into the shared model, along
// with the provider's book list used for association.
type Series struct {
	ID       string                  `json:"id"`
	Metadata metadata.SeriesMetadata `json:"metadata"`
	Books    []metadata.SeriesBook   `json:"books,omitempty"`
}

// Book is a provider's book record mapped into the shared model.
type Book struct {
	ID       string                `json:"id"`
	Metadata metadata.BookMetadata `json:"metadata"`
}

// AnchorBook is a representative local book some providers use to
// disambiguate a match.
type AnchorBook struct {
	Name   string
	Number *metadata.BookRange
	// Cover lazily loads the book's cover image.
	Cover func(ctx context.Context) ([]byte, error)
}

// MatchQuery describes the series being matched.
type MatchQuery struct {
	Title string
	// Year is the release year, zero when unknown.
	Year int
	Book *AnchorBook
}

// Provider is a metadata source.
type Provider interface {
	Name() Name
	SearchSeries(ctx context.Context, name string, limit int) ([]SearchResult, error)
	GetSeriesMetadata(ctx context.Context, seriesID string) (Series, error)
	GetBookMetadata(ctx context.Context, seriesID, bookID string) (Book, error)
	// MatchSeriesMetadata returns nil without error when nothing matches.
	MatchSeriesMetadata(ctx context.Context, query MatchQuery) (*Series, error)
}
