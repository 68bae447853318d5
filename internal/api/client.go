package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/gorilla/websocket"

	"komf/internal/identification"
	"komf/internal/jobs"
	"komf/internal/provider"
)

// StatusError is returned for non-2xx API responses.
type StatusError struct {
	StatusCode int
	Message    string
}

func (e *StatusError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("api returned %d", e.StatusCode)
	}
	return fmt.Sprintf("api returned %d: %s", e.StatusCode, e.Message)
}

// IsNotFound reports whether err is a 404 API response.
func IsNotFound(err error) bool {
	var statusErr *StatusError
	return errors.As(err, &statusErr) && statusErr.StatusCode == http.StatusNotFound
}

// Client calls the komf HTTP API.
type Client struct {
	base   *url.URL
	token  string
	http   *http.Client
	dialer *websocket.Dialer
}

// ClientOption customizes a Client.
type ClientOption func(*Client)

// WithHTTPClient replaces the default HTTP client.
func WithHTTPClient(client *http.Client) ClientOption {
	return func(c *Client) {
		if client != nil {
			c.http = client
		}
	}
}

// NewClient builds a client for the API served at baseURL. A bare host:port
// is treated as http.
func NewClient(baseURL, token string, opts ...ClientOption) (*Client, error) {
	baseURL = strings.TrimSpace(baseURL)
	if baseURL == "" {
		return nil, errors.New("api base url required")
	}
	if !strings.Contains(baseURL, "://") {
		baseURL = "http://" + baseURL
	}
	base, err := url.Parse(strings.TrimRight(baseURL, "/"))
	if err != nil {
		return nil, fmt.Errorf("parse api url: %w", err)
	}
	c := &Client{
		base:   base,
		token:  strings.TrimSpace(token),
		http:   &http.Client{Timeout: 30 * time.Second},
		dialer: &websocket.Dialer{HandshakeTimeout: 10 * time.Second},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// Status returns daemon runtime information.
func (c *Client) Status(ctx context.Context) (DaemonStatus, error) {
	var out DaemonStatus
	err := c.do(ctx, http.MethodGet, "/api/status", nil, nil, &out)
	return out, err
}

// Providers lists the registered providers in priority order.
func (c *Client) Providers(ctx context.Context) ([]ProviderInfo, error) {
	var out []ProviderInfo
	err := c.do(ctx, http.MethodGet, "/api/providers", nil, nil, &out)
	return out, err
}

// ListJobs pages through job records.
func (c *Client) ListJobs(ctx context.Context, opts jobs.ListOptions) (JobPageResponse, error) {
	query := url.Values{}
	if opts.Status != "" {
		query.Set("status", string(opts.Status))
	}
	if opts.Page > 0 {
		query.Set("page", strconv.Itoa(opts.Page))
	}
	if opts.PageSize > 0 {
		query.Set("pageSize", strconv.Itoa(opts.PageSize))
	}
	var out JobPageResponse
	err := c.do(ctx, http.MethodGet, "/api/jobs", query, nil, &out)
	return out, err
}

// GetJob returns one job record.
func (c *Client) GetJob(ctx context.Context, id string) (JobResponse, error) {
	var out JobResponse
	err := c.do(ctx, http.MethodGet, "/api/jobs/"+url.PathEscape(id), nil, nil, &out)
	return out, err
}

// ClearJobs deletes every job record.
func (c *Client) ClearJobs(ctx context.Context) error {
	return c.do(ctx, http.MethodDelete, "/api/jobs", nil, nil, nil)
}

// Search queries every enabled provider for name.
func (c *Client) Search(ctx context.Context, name, libraryID string) ([]provider.SearchResult, error) {
	query := url.Values{"name": {name}}
	if libraryID != "" {
		query.Set("libraryId", libraryID)
	}
	var out SearchResponse
	err := c.do(ctx, http.MethodGet, "/api/metadata/search", query, nil, &out)
	return out.Results, err
}

// Identify launches an identify job and returns its id.
func (c *Client) Identify(ctx context.Context, req identification.IdentifyRequest) (string, error) {
	var out JobLaunchedResponse
	err := c.do(ctx, http.MethodPost, "/api/metadata/identify", nil, req, &out)
	return out.JobID, err
}

// MatchSeries launches a match job and returns its id.
func (c *Client) MatchSeries(ctx context.Context, seriesID string) (string, error) {
	var out JobLaunchedResponse
	err := c.do(ctx, http.MethodPost, "/api/metadata/match/series/"+url.PathEscape(seriesID), nil, nil, &out)
	return out.JobID, err
}

// MatchLibrary starts a background scan of a library.
func (c *Client) MatchLibrary(ctx context.Context, libraryID string) error {
	return c.do(ctx, http.MethodPost, "/api/metadata/match/library/"+url.PathEscape(libraryID), nil, nil, nil)
}

// ResetSeries clears metadata written to a series.
func (c *Client) ResetSeries(ctx context.Context, seriesID string) error {
	return c.do(ctx, http.MethodPost, "/api/metadata/reset/series/"+url.PathEscape(seriesID), nil, nil, nil)
}

// ResetLibrary clears metadata written to every series of a library and
// returns the number of failures.
func (c *Client) ResetLibrary(ctx context.Context, libraryID string) (int, error) {
	var out ResetLibraryResponse
	err := c.do(ctx, http.MethodPost, "/api/metadata/reset/library/"+url.PathEscape(libraryID), nil, nil, &out)
	return out.Failed, err
}

// FollowJob calls fn for every event of job id, replayed history first, until
// the CompletionEvent or ctx ends. An error from fn stops following.
func (c *Client) FollowJob(ctx context.Context, id string, fn func(jobs.Record) error) error {
	target := *c.base
	switch target.Scheme {
	case "https":
		target.Scheme = "wss"
	default:
		target.Scheme = "ws"
	}
	target.Path = strings.TrimRight(target.Path, "/") + "/api/jobs/" + url.PathEscape(id) + "/ws"

	header := http.Header{}
	if c.token != "" {
		header.Set("Authorization", "Bearer "+c.token)
	}
	conn, resp, err := c.dialer.DialContext(ctx, target.String(), header)
	if err != nil {
		if resp != nil {
			defer resp.Body.Close()
			return decodeStatusError(resp)
		}
		return fmt.Errorf("connect to job event stream: %w", err)
	}
	defer conn.Close()

	stop := context.AfterFunc(ctx, func() { _ = conn.Close() })
	defer stop()

	for {
		var record jobs.Record
		if err := conn.ReadJSON(&record); err != nil {
			if websocket.IsCloseError(err, websocket.CloseNormalClosure) {
				return nil
			}
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return fmt.Errorf("read job event: %w", err)
		}
		if err := fn(record); err != nil {
			return err
		}
		if record.Event.Type() == jobs.EventCompletion {
			return nil
		}
	}
}

func (c *Client) do(ctx context.Context, method, path string, query url.Values, body, out any) error {
	target := *c.base
	target.Path = strings.TrimRight(target.Path, "/") + path
	target.RawQuery = query.Encode()

	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		reader = bytes.NewReader(data)
	}
	req, err := http.NewRequestWithContext(ctx, method, target.String(), reader)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return decodeStatusError(resp)
	}
	if out == nil || resp.StatusCode == http.StatusNoContent {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode %s response: %w", path, err)
	}
	return nil
}

func decodeStatusError(resp *http.Response) error {
	data, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
	var payload errorResponse
	message := strings.TrimSpace(string(data))
	if err := json.Unmarshal(data, &payload); err == nil && payload.Error != "" {
		message = payload.Error
	}
	return &StatusError{StatusCode: resp.StatusCode, Message: message}
}
