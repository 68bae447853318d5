package anilist

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"komf/internal/logging"
	"komf/internal/provider"
	"komf/internal/ratelimit"
)

// Name is the provider name used in configuration.
const Name provider.Name = "anilist"

// DefaultBaseURL is the public GraphQL endpoint.
const DefaultBaseURL = "https://graphql.anilist.co"

const searchLimit = 10

// DefaultRateLimit stays under the documented 90 requests per minute.
var DefaultRateLimit = ratelimit.Spec{Interval: time.Minute, EventsPerInterval: 85}

const mediaFields = `
  id
  siteUrl
  title { romaji english native }
  synonyms
  status
  description(asHtml: false)
  startDate { year month day }
  volumes
  countryOfOrigin
  isAdult
  averageScore
  genres
  tags { name rank isMediaSpoiler }
  coverImage { extraLarge large }
  staff { edges { role node { name { full } } } }
`

const searchQuery = `query ($search: String, $perPage: Int) {
  Page(perPage: $perPage) {
    media(search: $search, type: MANGA, format_not_in: [NOVEL]) {` + mediaFields + `}
  }
}`

const mediaQuery = `query ($id: Int) {
  Media(id: $id, type: MANGA) {` + mediaFields + `}
}`

// Client queries AniList.
type Client struct {
	http     *ratelimit.Client
	baseURL  string
	settings provider.Settings
	// tagMinRank drops tags AniList ranks below this value.
	tagMinRank int
	logger     *slog.Logger
}

var _ provider.Provider = (*Client)(nil)

// Option configures a Client.
type Option func(*Client)

// WithBaseURL overrides the GraphQL endpoint.
func WithBaseURL(base string) Option {
	return func(c *Client) {
		if base = strings.TrimSpace(base); base != "" {
			c.baseURL = strings.TrimRight(base, "/")
		}
	}
}

// WithSettings applies matcher, field and role configuration.
func WithSettings(settings provider.Settings) Option {
	return func(c *Client) {
		c.settings = settings
	}
}

// WithLogger attaches a logger.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Client) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// New creates an AniList client issuing requests through httpClient.
func New(httpClient *ratelimit.Client, opts ...Option) (*Client, error) {
	if httpClient == nil {
		return nil, errors.New("anilist http client required")
	}
	c := &Client{
		http:       httpClient,
		baseURL:    DefaultBaseURL,
		settings:   provider.DefaultSettings(),
		tagMinRank: 60,
		logger:     logging.NewNop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// Name implements provider.Provider.
func (c *Client) Name() provider.Name {
	return Name
}

// SearchSeries implements provider.Provider.
func (c *Client) SearchSeries(ctx context.Context, name string, limit int) ([]provider.SearchResult, error) {
	media, err := c.search(ctx, name, limit)
	if err != nil {
		return nil, err
	}
	results := make([]provider.SearchResult, 0, len(media))
	for _, m := range media {
		result := provider.SearchResult{
			Provider: Name,
			ResultID: strconv.Itoa(m.ID),
			ImageURL: m.CoverImage.best(),
		}
		if names := m.titleNames(); len(names) > 0 {
			result.Title = names[0]
		}
		results = append(results, result)
	}
	return results, nil
}

// GetSeriesMetadata implements provider.Provider.
func (c *Client) GetSeriesMetadata(ctx context.Context, seriesID string) (provider.Series, error) {
	id, err := strconv.Atoi(strings.TrimSpace(seriesID))
	if err != nil {
		return provider.Series{}, fmt.Errorf("anilist series id %q: %w", seriesID, err)
	}
	var data struct {
		Media media `json:"Media"`
	}
	if err := c.query(ctx, mediaQuery, map[string]any{"id": id}, &data); err != nil {
		return provider.Series{}, fmt.Errorf("anilist media %d: %w", id, err)
	}
	return c.series(data.Media), nil
}

// GetBookMetadata implements provider.Provider. AniList has no per-book data.
func (c *Client) GetBookMetadata(_ context.Context, seriesID, bookID string) (provider.Book, error) {
	return provider.Book{}, fmt.Errorf("anilist series %s: book %s: books are not supported", seriesID, bookID)
}

// MatchSeriesMetadata implements provider.Provider.
func (c *Client) MatchSeriesMetadata(ctx context.Context, query provider.MatchQuery) (*provider.Series, error) {
	media, err := c.search(ctx, query.Title, searchLimit)
	if err != nil {
		return nil, err
	}
	candidates := make([][]string, 0, len(media))
	for _, m := range media {
		if query.Year > 0 && m.StartDate.Year != nil && *m.StartDate.Year != query.Year {
			candidates = append(candidates, nil)
			continue
		}
		candidates = append(candidates, m.titleNames())
	}
	best := c.settings.Matcher.Best(query.Title, candidates)
	if best < 0 {
		c.logger.Debug("no anilist candidate matched",
			logging.String("title", query.Title),
			logging.Int("candidates", len(media)),
		)
		return nil, nil
	}
	series := c.series(media[best])
	return &series, nil
}

func (c *Client) search(ctx context.Context, name string, limit int) ([]media, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, errors.New("search title must not be empty")
	}
	if limit <= 0 {
		limit = searchLimit
	}
	var data struct {
		Page struct {
			Media []media `json:"media"`
		} `json:"Page"`
	}
	if err := c.query(ctx, searchQuery, map[string]any{"search": name, "perPage": limit}, &data); err != nil {
		return nil, fmt.Errorf("anilist search %q: %w", name, err)
	}
	return data.Page.Media, nil
}

type graphQLError struct {
	Message string `json:"message"`
	Status  int    `json:"status"`
}

func (c *Client) query(ctx context.Context, query string, variables map[string]any, out any) error {
	payload, err := json.Marshal(map[string]any{"query": query, "variables": variables})
	if err != nil {
		return fmt.Errorf("encode query: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	var envelope struct {
		Data   json.RawMessage `json:"data"`
		Errors []graphQLError  `json:"errors"`
	}
	if err := c.http.DoJSON(req, &envelope); err != nil {
		return err
	}
	if len(envelope.Errors) > 0 {
		first := envelope.Errors[0]
		return fmt.Errorf("graphql error (status %d): %s", first.Status, first.Message)
	}
	if err := json.Unmarshal(envelope.Data, out); err != nil {
		return fmt.Errorf("decode data: %w", err)
	}
	return nil
}
