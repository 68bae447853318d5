package kavita

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"komf/internal/logging"
	"komf/internal/mediaserver"
	"komf/internal/ratelimit"
)

// Client talks to a Kavita server.
type Client struct {
	http    *ratelimit.Client
	baseURL string
	tokens  *TokenManager
	logger  *slog.Logger
}

var _ mediaserver.Client = (*Client)(nil)

// Option configures a Client.
type Option func(*Client)

// WithLogger attaches a logger.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Client) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// New creates a Kavita client authenticating with apiKey.
func New(httpClient *ratelimit.Client, baseURL, apiKey string, opts ...Option) (*Client, error) {
	if httpClient == nil {
		return nil, errors.New("kavita http client required")
	}
	baseURL = strings.TrimRight(strings.TrimSpace(baseURL), "/")
	if baseURL == "" {
		return nil, errors.New("kavita url required")
	}
	if strings.TrimSpace(apiKey) == "" {
		return nil, ErrAPIKeyMissing
	}
	c := &Client{
		http:    httpClient,
		baseURL: baseURL,
		tokens:  NewTokenManager(httpClient, baseURL, apiKey),
		logger:  logging.NewNop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

func (c *Client) Type() mediaserver.Type {
	return mediaserver.Kavita
}

func (c *Client) ListLibraries(ctx context.Context) ([]mediaserver.Library, error) {
	var libs []libraryDTO
	if err := c.call(ctx, http.MethodGet, "/api/Library/libraries", nil, nil, &libs); err != nil {
		return nil, fmt.Errorf("list libraries: %w", err)
	}
	out := make([]mediaserver.Library, 0, len(libs))
	for _, lib := range libs {
		out = append(out, mediaserver.Library{ID: strconv.Itoa(lib.ID), Name: lib.Name})
	}
	return out, nil
}

func (c *Client) GetLibrary(ctx context.Context, libraryID string) (mediaserver.Library, error) {
	libs, err := c.ListLibraries(ctx)
	if err != nil {
		return mediaserver.Library{}, err
	}
	for _, lib := range libs {
		if lib.ID == libraryID {
			return lib, nil
		}
	}
	return mediaserver.Library{}, fmt.Errorf("library %s: %w", libraryID, mediaserver.ErrNotFound)
}

func (c *Client) ListSeries(ctx context.Context, libraryID string, page, size int) (mediaserver.Page[mediaserver.Series], error) {
	params := url.Values{
		"libraryId":  {libraryID},
		"PageNumber": {strconv.Itoa(page + 1)},
		"PageSize":   {strconv.Itoa(size)},
	}
	resp, err := c.send(ctx, http.MethodPost, "/api/Series/all", params, map[string]any{})
	if err != nil {
		return mediaserver.Page[mediaserver.Series]{}, fmt.Errorf("list series of library %s: %w", libraryID, err)
	}
	defer resp.Body.Close()
	var series []seriesDTO
	if err := json.NewDecoder(resp.Body).Decode(&series); err != nil {
		return mediaserver.Page[mediaserver.Series]{}, fmt.Errorf("decode series page: %w", err)
	}
	var pagination struct {
		CurrentPage int `json:"currentPage"`
		TotalPages  int `json:"totalPages"`
	}
	if header := resp.Header.Get("Pagination"); header != "" {
		if err := json.Unmarshal([]byte(header), &pagination); err != nil {
			return mediaserver.Page[mediaserver.Series]{}, fmt.Errorf("decode pagination header: %w", err)
		}
	}
	out := mediaserver.Page[mediaserver.Series]{Page: page, TotalPages: pagination.TotalPages}
	for _, s := range series {
		out.Content = append(out.Content, s.toSeries(seriesMetadataDTO{}))
	}
	return out, nil
}

func (c *Client) GetSeries(ctx context.Context, seriesID string) (mediaserver.Series, error) {
	var series seriesDTO
	if err := c.call(ctx, http.MethodGet, "/api/Series/"+url.PathEscape(seriesID), nil, nil, &series); err != nil {
		return mediaserver.Series{}, fmt.Errorf("get series %s: %w", seriesID, err)
	}
	var meta seriesMetadataDTO
	if err := c.call(ctx, http.MethodGet, "/api/Series/metadata", url.Values{"seriesId": {seriesID}}, nil, &meta); err != nil {
		return mediaserver.Series{}, fmt.Errorf("get series metadata %s: %w", seriesID, err)
	}
	return series.toSeries(meta), nil
}

func (c *Client) ListBooks(ctx context.Context, seriesID string) ([]mediaserver.Book, error) {
	series, err := c.GetSeries(ctx, seriesID)
	if err != nil {
		return nil, err
	}
	var volumes []volumeDTO
	if err := c.call(ctx, http.MethodGet, "/api/Series/volumes", url.Values{"seriesId": {seriesID}}, nil, &volumes); err != nil {
		return nil, fmt.Errorf("list volumes of %s: %w", seriesID, err)
	}
	var books []mediaserver.Book
	for _, v := range volumes {
		for _, ch := range v.Chapters {
			books = append(books, ch.toBook(seriesID, series.LibraryID))
		}
	}
	return books, nil
}

func (c *Client) GetBookThumbnail(ctx context.Context, bookID string) ([]byte, error) {
	resp, err := c.send(ctx, http.MethodGet, "/api/Image/chapter-cover", url.Values{"chapterId": {bookID}}, nil)
	if err != nil {
		return nil, fmt.Errorf("get chapter cover %s: %w", bookID, err)
	}
	defer resp.Body.Close()
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read chapter cover %s: %w", bookID, err)
	}
	return data, nil
}

func (c *Client) UpdateSeries(ctx context.Context, seriesID string, update mediaserver.SeriesUpdate) error {
	if update.Title != nil || update.TitleSort != nil || update.AlternativeTitles != nil {
		var series map[string]any
		if err := c.call(ctx, http.MethodGet, "/api/Series/"+url.PathEscape(seriesID), nil, nil, &series); err != nil {
			return fmt.Errorf("get series %s: %w", seriesID, err)
		}
		if update.Title != nil {
			series["name"] = *update.Title
		}
		if update.TitleSort != nil {
			series["sortName"] = *update.TitleSort
		}
		if len(update.AlternativeTitles) > 0 {
			series["localizedName"] = update.AlternativeTitles[0].Name
		}
		if err := c.call(ctx, http.MethodPost, "/api/Series/update", nil, series, nil); err != nil {
			return fmt.Errorf("update series %s: %w", seriesID, err)
		}
	}

	var meta map[string]any
	if err := c.call(ctx, http.MethodGet, "/api/Series/metadata", url.Values{"seriesId": {seriesID}}, nil, &meta); err != nil {
		return fmt.Errorf("get series metadata %s: %w", seriesID, err)
	}
	if update.Summary != nil {
		meta["summary"] = *update.Summary
	}
	if update.Status != nil {
		meta["publicationStatus"] = publicationStatus(*update.Status)
	}
	if update.AgeRating != nil {
		meta["ageRating"] = ageRating(*update.AgeRating)
	}
	if update.Language != nil {
		meta["language"] = *update.Language
	}
	if update.Publisher != nil {
		meta["publishers"] = []personDTO{{Name: *update.Publisher}}
	}
	if update.Genres != nil {
		meta["genres"] = titled(update.Genres)
	}
	if update.Tags != nil {
		meta["tags"] = titled(update.Tags)
	}
	if update.Authors != nil {
		applyAuthors(meta, update.Authors)
	}
	if update.ReleaseDate != nil {
		meta["releaseYear"] = update.ReleaseDate.Year
	}
	if update.Links != nil {
		meta["webLinks"] = webLinks(update.Links)
	}
	if update.TotalBookCount != nil {
		meta["maxCount"] = *update.TotalBookCount
	}
	return c.call(ctx, http.MethodPost, "/api/Series/metadata", nil, map[string]any{"seriesMetadata": meta}, nil)
}

func (c *Client) UpdateBook(ctx context.Context, bookID string, update mediaserver.BookUpdate) error {
	var chapter map[string]any
	if err := c.call(ctx, http.MethodGet, "/api/Chapter", url.Values{"chapterId": {bookID}}, nil, &chapter); err != nil {
		return fmt.Errorf("get chapter %s: %w", bookID, err)
	}
	if update.Title != nil {
		chapter["titleName"] = *update.Title
	}
	if update.Summary != nil {
		chapter["summary"] = *update.Summary
	}
	if update.NumberSort != nil {
		chapter["sortOrder"] = *update.NumberSort
	}
	if update.ReleaseDate != nil {
		d := *update.ReleaseDate
		chapter["releaseDate"] = fmt.Sprintf("%04d-%02d-%02dT00:00:00", d.Year, max(d.Month, 1), max(d.Day, 1))
	}
	if update.Authors != nil {
		applyAuthors(chapter, update.Authors)
	}
	if update.Tags != nil {
		chapter["tags"] = titled(update.Tags)
	}
	if update.ISBN != nil {
		chapter["isbn"] = *update.ISBN
	}
	if update.Links != nil {
		chapter["webLinks"] = webLinks(update.Links)
	}
	return c.call(ctx, http.MethodPost, "/api/Chapter/update", nil, chapter, nil)
}

func (c *Client) UploadSeriesThumbnail(ctx context.Context, seriesID string, image mediaserver.Image) (string, error) {
	return "", c.uploadCover(ctx, "/api/Upload/series", seriesID, image)
}

func (c *Client) UploadBookThumbnail(ctx context.Context, bookID string, image mediaserver.Image) (string, error) {
	return "", c.uploadCover(ctx, "/api/Upload/chapter", bookID, image)
}

// DeleteSeriesThumbnail is a no-op: Kavita keeps a single cover which the
// next upload replaces.
func (c *Client) DeleteSeriesThumbnail(context.Context, string, string) error {
	return nil
}

// DeleteBookThumbnail is a no-op for the same reason as DeleteSeriesThumbnail.
func (c *Client) DeleteBookThumbnail(context.Context, string, string) error {
	return nil
}

func (c *Client) ResetSeries(ctx context.Context, series mediaserver.Series) error {
	var meta map[string]any
	if err := c.call(ctx, http.MethodGet, "/api/Series/metadata", url.Values{"seriesId": {series.ID}}, nil, &meta); err != nil {
		return fmt.Errorf("get series metadata %s: %w", series.ID, err)
	}
	meta["summary"] = ""
	meta["genres"] = []titledDTO{}
	meta["tags"] = []titledDTO{}
	meta["publishers"] = []personDTO{}
	meta["webLinks"] = ""
	meta["language"] = ""
	meta["ageRating"] = 0
	meta["publicationStatus"] = statusOngoing
	applyAuthors(meta, nil)
	for key := range meta {
		if strings.HasSuffix(key, "Locked") {
			meta[key] = false
		}
	}
	return c.call(ctx, http.MethodPost, "/api/Series/metadata", nil, map[string]any{"seriesMetadata": meta}, nil)
}

func (c *Client) ResetBook(ctx context.Context, book mediaserver.Book) error {
	var chapter map[string]any
	if err := c.call(ctx, http.MethodGet, "/api/Chapter", url.Values{"chapterId": {book.ID}}, nil, &chapter); err != nil {
		return fmt.Errorf("get chapter %s: %w", book.ID, err)
	}
	chapter["titleName"] = ""
	chapter["summary"] = ""
	chapter["isbn"] = ""
	chapter["webLinks"] = ""
	chapter["tags"] = []titledDTO{}
	applyAuthors(chapter, nil)
	for key := range chapter {
		if strings.HasSuffix(key, "Locked") {
			chapter[key] = false
		}
	}
	return c.call(ctx, http.MethodPost, "/api/Chapter/update", nil, chapter, nil)
}

func (c *Client) uploadCover(ctx context.Context, path, id string, image mediaserver.Image) error {
	numericID, err := strconv.Atoi(id)
	if err != nil {
		return fmt.Errorf("kavita id %q: %w", id, err)
	}
	payload := map[string]any{
		"id":        numericID,
		"url":       base64.StdEncoding.EncodeToString(image.Data),
		"lockCover": true,
	}
	if err := c.call(ctx, http.MethodPost, path, nil, payload, nil); err != nil {
		return fmt.Errorf("upload cover: %w", err)
	}
	return nil
}

func (c *Client) call(ctx context.Context, method, path string, params url.Values, payload, out any) error {
	resp, err := c.send(ctx, method, path, params, payload)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

// send issues an authenticated request. A 401 invalidates the cached token
// and the request is retried once with a fresh one.
func (c *Client) send(ctx context.Context, method, path string, params url.Values, payload any) (*http.Response, error) {
	var encoded []byte
	if payload != nil {
		var err error
		encoded, err = json.Marshal(payload)
		if err != nil {
			return nil, fmt.Errorf("encode request: %w", err)
		}
	}
	endpoint := c.baseURL + path
	if len(params) > 0 {
		endpoint += "?" + params.Encode()
	}

	for attempt := 0; ; attempt++ {
		token, err := c.tokens.Token(ctx)
		if err != nil {
			return nil, err
		}
		var body io.Reader
		if encoded != nil {
			body = bytes.NewReader(encoded)
		}
		req, err := http.NewRequestWithContext(ctx, method, endpoint, body)
		if err != nil {
			return nil, fmt.Errorf("build request: %w", err)
		}
		if encoded != nil {
			req.Header.Set("Content-Type", "application/json")
			req.GetBody = func() (io.ReadCloser, error) { return io.NopCloser(bytes.NewReader(encoded)), nil }
		}
		req.Header.Set("Accept", "application/json")
		req.Header.Set("Authorization", "Bearer "+token)

		resp, err := c.http.Do(req)
		if err != nil {
			return nil, err
		}
		if resp.StatusCode == http.StatusUnauthorized && attempt == 0 {
			resp.Body.Close()
			c.tokens.Invalidate(token)
			c.logger.Debug("kavita token rejected, re-authenticating")
			continue
		}
		if err := ratelimit.CheckResponse(resp); err != nil {
			resp.Body.Close()
			if resp.StatusCode == http.StatusNotFound {
				return nil, fmt.Errorf("%w: %w", mediaserver.ErrNotFound, err)
			}
			return nil, err
		}
		return resp, nil
	}
}
