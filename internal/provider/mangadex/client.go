package mangadex

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"komf/internal/logging"
	"komf/internal/metadata"
	"komf/internal/provider"
	"komf/internal/ratelimit"
)

// Name is the provider name used in configuration.
const Name provider.Name = "mangadex"

const (
	DefaultBaseURL   = "https://api.mangadex.org"
	DefaultCoversURL = "https://uploads.mangadex.org/covers"
	searchLimit      = 10
)

// DefaultRateLimit mirrors the documented global limit of five requests per
// second.
var DefaultRateLimit = ratelimit.Spec{Interval: time.Second, EventsPerInterval: 5}

var includes = []string{"cover_art", "author", "artist"}

// Client queries the MangaDex API.
type Client struct {
	http      *ratelimit.Client
	baseURL   string
	coversURL string
	settings  provider.Settings
	logger    *slog.Logger
}

var _ provider.Provider = (*Client)(nil)

// Option configures a Client.
type Option func(*Client)

// WithBaseURL overrides the API endpoint.
func WithBaseURL(base string) Option {
	return func(c *Client) {
		if base = strings.TrimSpace(base); base != "" {
			c.baseURL = strings.TrimRight(base, "/")
		}
	}
}

// WithCoversURL overrides the cover image host.
func WithCoversURL(base string) Option {
	return func(c *Client) {
		if base = strings.TrimSpace(base); base != "" {
			c.coversURL = strings.TrimRight(base, "/")
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

// New creates a MangaDex client issuing requests through httpClient.
func New(httpClient *ratelimit.Client, opts ...Option) (*Client, error) {
	if httpClient == nil {
		return nil, errors.New("mangadex http client required")
	}
	c := &Client{
		http:      httpClient,
		baseURL:   DefaultBaseURL,
		coversURL: DefaultCoversURL,
		settings:  provider.DefaultSettings(),
		logger:    logging.NewNop(),
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
	manga, err := c.search(ctx, name, limit)
	if err != nil {
		return nil, err
	}
	results := make([]provider.SearchResult, 0, len(manga))
	for _, m := range manga {
		result := provider.SearchResult{Provider: Name, ResultID: m.ID}
		if titles := mangaTitles(m.Attributes); len(titles) > 0 {
			result.Title = titles[0].Name
		}
		if cover := c.coverURL(m); cover != "" {
			result.ImageURL = cover
		}
		results = append(results, result)
	}
	return results, nil
}

// GetSeriesMetadata implements provider.Provider.
func (c *Client) GetSeriesMetadata(ctx context.Context, seriesID string) (provider.Series, error) {
	var resp mangaResponse
	params := url.Values{"includes[]": includes}
	if err := c.get(ctx, "/manga/"+url.PathEscape(seriesID), params, &resp); err != nil {
		return provider.Series{}, fmt.Errorf("mangadex manga %s: %w", seriesID, err)
	}
	series := provider.Series{
		ID:       resp.Data.ID,
		Metadata: c.settings.Fields.ApplySeries(c.seriesMetadata(resp.Data)),
	}
	if !c.settings.Fields.Books {
		return series, nil
	}
	volumes, err := c.aggregate(ctx, seriesID)
	if err != nil {
		return provider.Series{}, err
	}
	series.Books = seriesBooks(volumes)
	return series, nil
}

// GetBookMetadata implements provider.Provider. Book ids are volume numbers.
func (c *Client) GetBookMetadata(ctx context.Context, seriesID, bookID string) (provider.Book, error) {
	volumes, err := c.aggregate(ctx, seriesID)
	if err != nil {
		return provider.Book{}, err
	}
	volume, ok := volumes[bookID]
	if !ok {
		return provider.Book{}, fmt.Errorf("mangadex manga %s: volume %s not found", seriesID, bookID)
	}
	book := provider.Book{ID: bookID, Metadata: bookMetadata(seriesID, volume)}
	if c.settings.Fields.BookThumbnail {
		cover, err := c.volumeCover(ctx, seriesID, bookID)
		if err != nil {
			return provider.Book{}, err
		}
		book.Metadata.Thumbnail = cover
	}
	book.Metadata = c.settings.Fields.ApplyBook(book.Metadata)
	return book, nil
}

// MatchSeriesMetadata implements provider.Provider.
func (c *Client) MatchSeriesMetadata(ctx context.Context, query provider.MatchQuery) (*provider.Series, error) {
	manga, err := c.search(ctx, query.Title, searchLimit)
	if err != nil {
		return nil, err
	}
	candidates := make([][]string, 0, len(manga))
	for _, m := range manga {
		if query.Year > 0 && m.Attributes.Year > 0 && m.Attributes.Year != query.Year {
			candidates = append(candidates, nil)
			continue
		}
		names := make([]string, 0, 4)
		for _, title := range mangaTitles(m.Attributes) {
			names = append(names, title.Name)
		}
		candidates = append(candidates, names)
	}
	best := c.settings.Matcher.Best(query.Title, candidates)
	if best < 0 {
		c.logger.Debug("no mangadex candidate matched",
			logging.String("title", query.Title),
			logging.Int("candidates", len(manga)),
		)
		return nil, nil
	}
	series, err := c.GetSeriesMetadata(ctx, manga[best].ID)
	if err != nil {
		return nil, err
	}
	return &series, nil
}

func (c *Client) search(ctx context.Context, name string, limit int) ([]manga, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, errors.New("search title must not be empty")
	}
	if limit <= 0 {
		limit = searchLimit
	}
	params := url.Values{
		"title":      {name},
		"limit":      {strconv.Itoa(limit)},
		"includes[]": includes,
	}
	params.Add("contentRating[]", "safe")
	params.Add("contentRating[]", "suggestive")
	params.Add("contentRating[]", "erotica")
	var resp searchResponse
	if err := c.get(ctx, "/manga", params, &resp); err != nil {
		return nil, fmt.Errorf("mangadex search %q: %w", name, err)
	}
	return resp.Data, nil
}

func (c *Client) aggregate(ctx context.Context, seriesID string) (map[string]aggregateVolume, error) {
	var resp aggregateResponse
	if err := c.get(ctx, "/manga/"+url.PathEscape(seriesID)+"/aggregate", nil, &resp); err != nil {
		return nil, fmt.Errorf("mangadex aggregate %s: %w", seriesID, err)
	}
	return resp.Volumes, nil
}

func (c *Client) volumeCover(ctx context.Context, seriesID, volume string) (*metadata.Image, error) {
	params := url.Values{
		"manga[]":  {seriesID},
		"volume[]": {volume},
		"limit":    {"10"},
	}
	var resp coverResponse
	if err := c.get(ctx, "/cover", params, &resp); err != nil {
		return nil, fmt.Errorf("mangadex covers %s: %w", seriesID, err)
	}
	for _, cover := range resp.Data {
		if cover.Attributes.FileName == "" {
			continue
		}
		return &metadata.Image{URL: c.coversURL + "/" + seriesID + "/" + cover.Attributes.FileName}, nil
	}
	return nil, nil
}

func (c *Client) get(ctx context.Context, path string, params url.Values, out any) error {
	endpoint := c.baseURL + path
	if len(params) > 0 {
		endpoint += "?" + params.Encode()
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	return c.http.DoJSON(req, out)
}
