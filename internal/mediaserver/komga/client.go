package komga

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"net/url"
	"strconv"
	"strings"

	"komf/internal/logging"
	"komf/internal/mediaserver"
	"komf/internal/ratelimit"
)

// Client talks to a Komga server.
type Client struct {
	http     *ratelimit.Client
	baseURL  string
	username string
	password string
	logger   *slog.Logger
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

// New creates a Komga client.
func New(httpClient *ratelimit.Client, baseURL, username, password string, opts ...Option) (*Client, error) {
	if httpClient == nil {
		return nil, errors.New("komga http client required")
	}
	baseURL = strings.TrimRight(strings.TrimSpace(baseURL), "/")
	if baseURL == "" {
		return nil, errors.New("komga url required")
	}
	c := &Client{
		http:     httpClient,
		baseURL:  baseURL,
		username: username,
		password: password,
		logger:   logging.NewNop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

func (c *Client) Type() mediaserver.Type {
	return mediaserver.Komga
}

func (c *Client) ListLibraries(ctx context.Context) ([]mediaserver.Library, error) {
	var libs []libraryDTO
	if err := c.getJSON(ctx, "/api/v1/libraries", nil, &libs); err != nil {
		return nil, fmt.Errorf("list libraries: %w", err)
	}
	out := make([]mediaserver.Library, 0, len(libs))
	for _, lib := range libs {
		out = append(out, mediaserver.Library{ID: lib.ID, Name: lib.Name})
	}
	return out, nil
}

func (c *Client) GetLibrary(ctx context.Context, libraryID string) (mediaserver.Library, error) {
	var lib libraryDTO
	if err := c.getJSON(ctx, "/api/v1/libraries/"+url.PathEscape(libraryID), nil, &lib); err != nil {
		return mediaserver.Library{}, fmt.Errorf("get library %s: %w", libraryID, err)
	}
	return mediaserver.Library{ID: lib.ID, Name: lib.Name}, nil
}

func (c *Client) ListSeries(ctx context.Context, libraryID string, page, size int) (mediaserver.Page[mediaserver.Series], error) {
	params := url.Values{
		"library_id": {libraryID},
		"page":       {strconv.Itoa(page)},
		"size":       {strconv.Itoa(size)},
		"sort":       {"metadata.titleSort,asc"},
	}
	var resp pageDTO[seriesDTO]
	if err := c.getJSON(ctx, "/api/v1/series", params, &resp); err != nil {
		return mediaserver.Page[mediaserver.Series]{}, fmt.Errorf("list series of library %s: %w", libraryID, err)
	}
	out := mediaserver.Page[mediaserver.Series]{Page: resp.Number, TotalPages: resp.TotalPages}
	for _, s := range resp.Content {
		out.Content = append(out.Content, s.toSeries())
	}
	return out, nil
}

func (c *Client) GetSeries(ctx context.Context, seriesID string) (mediaserver.Series, error) {
	var dto seriesDTO
	path := "/api/v1/series/" + url.PathEscape(seriesID)
	if err := c.getJSON(ctx, path, nil, &dto); err != nil {
		return mediaserver.Series{}, fmt.Errorf("get series %s: %w", seriesID, err)
	}
	series := dto.toSeries()
	var thumbs []thumbnailDTO
	if err := c.getJSON(ctx, path+"/thumbnails", nil, &thumbs); err != nil {
		return mediaserver.Series{}, fmt.Errorf("get series thumbnails %s: %w", seriesID, err)
	}
	series.Cover = selectedCover(thumbs)
	return series, nil
}

func (c *Client) ListBooks(ctx context.Context, seriesID string) ([]mediaserver.Book, error) {
	var resp pageDTO[bookDTO]
	params := url.Values{"unpaged": {"true"}}
	if err := c.getJSON(ctx, "/api/v1/series/"+url.PathEscape(seriesID)+"/books", params, &resp); err != nil {
		return nil, fmt.Errorf("list books of %s: %w", seriesID, err)
	}
	out := make([]mediaserver.Book, 0, len(resp.Content))
	for _, b := range resp.Content {
		out = append(out, b.toBook())
	}
	return out, nil
}

func (c *Client) GetBookThumbnail(ctx context.Context, bookID string) ([]byte, error) {
	req, err := c.newRequest(ctx, http.MethodGet, "/api/v1/books/"+url.PathEscape(bookID)+"/thumbnail", nil, nil)
	if err != nil {
		return nil, err
	}
	resp, err := c.do(req)
	if err != nil {
		return nil, fmt.Errorf("get book thumbnail %s: %w", bookID, err)
	}
	defer resp.Body.Close()
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read book thumbnail %s: %w", bookID, err)
	}
	return data, nil
}

func (c *Client) UpdateSeries(ctx context.Context, seriesID string, update mediaserver.SeriesUpdate) error {
	return c.sendJSON(ctx, http.MethodPatch, "/api/v1/series/"+url.PathEscape(seriesID)+"/metadata", seriesPatch(update))
}

func (c *Client) UpdateBook(ctx context.Context, bookID string, update mediaserver.BookUpdate) error {
	return c.sendJSON(ctx, http.MethodPatch, "/api/v1/books/"+url.PathEscape(bookID)+"/metadata", bookPatch(update))
}

func (c *Client) UploadSeriesThumbnail(ctx context.Context, seriesID string, image mediaserver.Image) (string, error) {
	return c.upload(ctx, "/api/v1/series/"+url.PathEscape(seriesID)+"/thumbnails", image)
}

func (c *Client) UploadBookThumbnail(ctx context.Context, bookID string, image mediaserver.Image) (string, error) {
	return c.upload(ctx, "/api/v1/books/"+url.PathEscape(bookID)+"/thumbnails", image)
}

func (c *Client) DeleteSeriesThumbnail(ctx context.Context, seriesID, thumbnailID string) error {
	return c.sendJSON(ctx, http.MethodDelete, "/api/v1/series/"+url.PathEscape(seriesID)+"/thumbnails/"+url.PathEscape(thumbnailID), nil)
}

func (c *Client) DeleteBookThumbnail(ctx context.Context, bookID, thumbnailID string) error {
	return c.sendJSON(ctx, http.MethodDelete, "/api/v1/books/"+url.PathEscape(bookID)+"/thumbnails/"+url.PathEscape(thumbnailID), nil)
}

func (c *Client) ResetSeries(ctx context.Context, series mediaserver.Series) error {
	patch := map[string]any{
		"status": "ONGOING", "statusLock": false,
		"title": series.Name, "titleLock": false,
		"titleSort": series.Name, "titleSortLock": false,
		"summary": "", "summaryLock": false,
		"publisher": "", "publisherLock": false,
		"readingDirection": nil, "readingDirectionLock": false,
		"ageRating": nil, "ageRatingLock": false,
		"language": "", "languageLock": false,
		"genres": []string{}, "genresLock": false,
		"tags": []string{}, "tagsLock": false,
		"totalBookCount": nil, "totalBookCountLock": false,
		"links": []linkDTO{}, "linksLock": false,
		"alternateTitles": []alternateTitleDTO{}, "alternateTitlesLock": false,
	}
	return c.sendJSON(ctx, http.MethodPatch, "/api/v1/series/"+url.PathEscape(series.ID)+"/metadata", patch)
}

func (c *Client) ResetBook(ctx context.Context, book mediaserver.Book) error {
	number := strconv.FormatFloat(book.Number, 'f', -1, 64)
	patch := map[string]any{
		"title": book.Name, "titleLock": false,
		"summary": "", "summaryLock": false,
		"number": number, "numberLock": false,
		"numberSort": book.Number, "numberSortLock": false,
		"releaseDate": nil, "releaseDateLock": false,
		"authors": []authorDTO{}, "authorsLock": false,
		"tags": []string{}, "tagsLock": false,
		"isbn": "", "isbnLock": false,
		"links": []linkDTO{}, "linksLock": false,
	}
	return c.sendJSON(ctx, http.MethodPatch, "/api/v1/books/"+url.PathEscape(book.ID)+"/metadata", patch)
}

func (c *Client) upload(ctx context.Context, path string, image mediaserver.Image) (string, error) {
	var body bytes.Buffer
	writer := multipart.NewWriter(&body)
	header := textproto.MIMEHeader{}
	header.Set("Content-Disposition", `form-data; name="file"; filename="cover"`)
	header.Set("Content-Type", image.MimeType)
	part, err := writer.CreatePart(header)
	if err != nil {
		return "", fmt.Errorf("create multipart file: %w", err)
	}
	if _, err := part.Write(image.Data); err != nil {
		return "", fmt.Errorf("write multipart file: %w", err)
	}
	if err := writer.WriteField("selected", "true"); err != nil {
		return "", fmt.Errorf("write multipart field: %w", err)
	}
	if err := writer.Close(); err != nil {
		return "", fmt.Errorf("close multipart body: %w", err)
	}

	payload := body.Bytes()
	req, err := c.newRequest(ctx, http.MethodPost, path, nil, bytes.NewReader(payload))
	if err != nil {
		return "", err
	}
	req.GetBody = func() (io.ReadCloser, error) { return io.NopCloser(bytes.NewReader(payload)), nil }
	req.Header.Set("Content-Type", writer.FormDataContentType())

	var thumb thumbnailDTO
	if err := c.decode(req, &thumb); err != nil {
		return "", fmt.Errorf("upload thumbnail: %w", err)
	}
	c.logger.Debug("thumbnail uploaded",
		logging.String("path", path),
		logging.String("thumbnail_id", thumb.ID),
	)
	return thumb.ID, nil
}

func (c *Client) getJSON(ctx context.Context, path string, params url.Values, out any) error {
	req, err := c.newRequest(ctx, http.MethodGet, path, params, nil)
	if err != nil {
		return err
	}
	return c.decode(req, out)
}

func (c *Client) sendJSON(ctx context.Context, method, path string, payload any) error {
	var body io.Reader
	var encoded []byte
	if payload != nil {
		var err error
		encoded, err = json.Marshal(payload)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		body = bytes.NewReader(encoded)
	}
	req, err := c.newRequest(ctx, method, path, nil, body)
	if err != nil {
		return err
	}
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
		req.GetBody = func() (io.ReadCloser, error) { return io.NopCloser(bytes.NewReader(encoded)), nil }
	}
	resp, err := c.do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	resp.Body.Close()
	return nil
}

func (c *Client) newRequest(ctx context.Context, method, path string, params url.Values, body io.Reader) (*http.Request, error) {
	endpoint := c.baseURL + path
	if len(params) > 0 {
		endpoint += "?" + params.Encode()
	}
	req, err := http.NewRequestWithContext(ctx, method, endpoint, body)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.SetBasicAuth(c.username, c.password)
	req.Header.Set("Accept", "application/json")
	return req, nil
}

func (c *Client) decode(req *http.Request, out any) error {
	resp, err := c.do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

// do sends req and converts failures, mapping 404 to mediaserver.ErrNotFound.
func (c *Client) do(req *http.Request) (*http.Response, error) {
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, err
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
