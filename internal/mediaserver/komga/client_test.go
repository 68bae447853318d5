package komga_test

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"komf/internal/mediaserver"
	"komf/internal/mediaserver/komga"
	"komf/internal/metadata"
	"komf/internal/ratelimit"
)

type recorded struct {
	method string
	path   string
	body   string
}

func newServer(t *testing.T) (*httptest.Server, *[]recorded) {
	t.Helper()
	var mu sync.Mutex
	var calls []recorded
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		user, pass, ok := r.BasicAuth()
		if !ok || user != "admin" || pass != "secret" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		body, _ := io.ReadAll(r.Body)
		mu.Lock()
		calls = append(calls, recorded{method: r.Method, path: r.URL.Path, body: string(body)})
		mu.Unlock()
		w.Header().Set("Content-Type", "application/json")
		switch {
		case r.URL.Path == "/api/v1/series/s1":
			_, _ = w.Write([]byte(`{"id":"s1","libraryId":"l1","name":"Berserk","booksCount":2,
				"metadata":{"title":"Berserk","summaryLock":true,"alternateTitles":[{"label":"ja","title":"ベルセルク"}]},
				"booksMetadata":{"releaseDate":"1990-11-26"}}`))
		case r.URL.Path == "/api/v1/series/s1/thumbnails" && r.Method == http.MethodGet:
			_, _ = w.Write([]byte(`[{"id":"t0","type":"GENERATED","selected":false},{"id":"t9","type":"USER_UPLOADED","selected":true}]`))
		case r.URL.Path == "/api/v1/series/s1/thumbnails" && r.Method == http.MethodPost:
			if !strings.HasPrefix(r.Header.Get("Content-Type"), "multipart/form-data") {
				t.Errorf("expected multipart upload, got %q", r.Header.Get("Content-Type"))
			}
			_, _ = w.Write([]byte(`{"id":"t10","type":"USER_UPLOADED","selected":true}`))
		case r.URL.Path == "/api/v1/series/s1/books":
			_, _ = w.Write([]byte(`{"content":[{"id":"b1","seriesId":"s1","libraryId":"l1","name":"Berserk v01","number":1,
				"metadata":{"numberLock":true}}],"number":0,"totalPages":1}`))
		case r.URL.Path == "/api/v1/series":
			if r.URL.Query().Get("library_id") != "l1" {
				t.Errorf("unexpected query %q", r.URL.RawQuery)
			}
			_, _ = w.Write([]byte(`{"content":[{"id":"s1","libraryId":"l1","name":"Berserk"}],"number":0,"totalPages":3}`))
		case r.Method == http.MethodPatch:
			w.WriteHeader(http.StatusNoContent)
		default:
			w.WriteHeader(http.StatusNotFound)
			_, _ = w.Write([]byte(`{"error":"not found"}`))
		}
	}))
	t.Cleanup(server.Close)
	return server, &calls
}

func newClient(t *testing.T, server *httptest.Server) *komga.Client {
	t.Helper()
	client, err := komga.New(ratelimit.NewClient(server.Client(), nil, ratelimit.RetryPolicy{}), server.URL+"/", "admin", "secret")
	if err != nil {
		t.Fatalf("New returned error: %v", err)
	}
	return client
}

func TestNewValidatesArguments(t *testing.T) {
	if _, err := komga.New(nil, "http://x", "", ""); err == nil {
		t.Fatal("expected error without http client")
	}
	if _, err := komga.New(ratelimit.NewClient(nil, nil, ratelimit.RetryPolicy{}), " ", "", ""); err == nil {
		t.Fatal("expected error without url")
	}
}

func TestGetSeriesReadsLocksAndCover(t *testing.T) {
	server, _ := newServer(t)
	client := newClient(t, server)

	series, err := client.GetSeries(context.Background(), "s1")
	if err != nil {
		t.Fatalf("GetSeries returned error: %v", err)
	}
	if !series.Locks.Has(mediaserver.FieldSummary) || series.Locks.Has(mediaserver.FieldTitle) {
		t.Fatalf("unexpected locks: %v", series.Locks)
	}
	if series.Cover == nil || series.Cover.ID != "t9" || !series.Cover.UserUploaded {
		t.Fatalf("unexpected cover: %+v", series.Cover)
	}
	if series.ReleaseYear != 1990 || len(series.AlternativeTitles) != 1 {
		t.Fatalf("unexpected series: %+v", series)
	}
}

func TestGetSeriesNotFound(t *testing.T) {
	server, _ := newServer(t)
	_, err := newClient(t, server).GetSeries(context.Background(), "missing")
	if !errors.Is(err, mediaserver.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestListSeriesAndBooks(t *testing.T) {
	server, _ := newServer(t)
	client := newClient(t, server)

	page, err := client.ListSeries(context.Background(), "l1", 0, 20)
	if err != nil {
		t.Fatalf("ListSeries returned error: %v", err)
	}
	if len(page.Content) != 1 || page.TotalPages != 3 || page.Last() {
		t.Fatalf("unexpected page: %+v", page)
	}
	books, err := client.ListBooks(context.Background(), "s1")
	if err != nil {
		t.Fatalf("ListBooks returned error: %v", err)
	}
	if len(books) != 1 || !books[0].Locks.Has(mediaserver.FieldNumber) || books[0].Name != "Berserk v01" {
		t.Fatalf("unexpected books: %+v", books)
	}
}

func TestUpdateSeriesSendsPatch(t *testing.T) {
	server, calls := newServer(t)
	client := newClient(t, server)

	title := "Berserk"
	status := metadata.StatusCompleted
	update := mediaserver.SeriesUpdate{
		Title:  &title,
		Status: &status,
		Genres: []string{},
		AlternativeTitles: []metadata.SeriesTitle{
			{Name: "Beruseruku", Type: metadata.TitleRomaji},
		},
	}
	if err := client.UpdateSeries(context.Background(), "s1", update); err != nil {
		t.Fatalf("UpdateSeries returned error: %v", err)
	}
	last := (*calls)[len(*calls)-1]
	var body map[string]any
	if err := json.Unmarshal([]byte(last.body), &body); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	if body["title"] != "Berserk" || body["status"] != "ENDED" {
		t.Fatalf("unexpected patch: %v", body)
	}
	if genres, ok := body["genres"].([]any); !ok || len(genres) != 0 {
		t.Fatalf("expected empty genres to clear, got %v", body["genres"])
	}
	if _, ok := body["summary"]; ok {
		t.Fatalf("nil fields must be omitted: %v", body)
	}
	alt := body["alternateTitles"].([]any)[0].(map[string]any)
	if alt["label"] != "romaji" {
		t.Fatalf("unexpected alternate title: %v", alt)
	}
}

func TestUploadSeriesThumbnail(t *testing.T) {
	server, _ := newServer(t)
	id, err := newClient(t, server).UploadSeriesThumbnail(context.Background(), "s1", mediaserver.Image{Data: []byte("img"), MimeType: "image/jpeg"})
	if err != nil {
		t.Fatalf("UploadSeriesThumbnail returned error: %v", err)
	}
	if id != "t10" {
		t.Fatalf("unexpected thumbnail id %q", id)
	}
}
