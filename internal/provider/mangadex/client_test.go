package mangadex_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"komf/internal/metadata"
	"komf/internal/namematch"
	"komf/internal/provider"
	"komf/internal/provider/mangadex"
	"komf/internal/ratelimit"
)

const mangaJSON = `{
  "id": "abc",
  "attributes": {
    "title": {"en": "Chainsaw Man"},
    "altTitles": [{"ja": "チェンソーマン"}, {"ja-ro": "Chensou Man"}],
    "description": {"en": "Denji hunts devils."},
    "links": {"al": "105778", "mal": "116778", "unknown": "x"},
    "originalLanguage": "ja",
    "lastVolume": "",
    "status": "ongoing",
    "year": 2018,
    "contentRating": "suggestive",
    "tags": [
      {"attributes": {"name": {"en": "Action"}, "group": "genre"}},
      {"attributes": {"name": {"en": "Gore"}, "group": "content"}}
    ]
  },
  "relationships": [
    {"id": "a1", "type": "author", "attributes": {"name": "Tatsuki Fujimoto"}},
    {"id": "c1", "type": "cover_art", "attributes": {"fileName": "cover.jpg"}}
  ]
}`

func newServer(t *testing.T) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/manga", func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("title") == "" {
			t.Errorf("expected title query, got %q", r.URL.RawQuery)
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"data":[` + mangaJSON + `]}`))
	})
	mux.HandleFunc("/manga/abc", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"data":` + mangaJSON + `}`))
	})
	mux.HandleFunc("/manga/abc/aggregate", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"volumes":{
			"2":{"volume":"2","chapters":{"9":{"chapter":"9","id":"c9"},"8":{"chapter":"8","id":"c8"}}},
			"1":{"volume":"1","chapters":{"1":{"chapter":"1","id":"c1"}}},
			"none":{"volume":"none","chapters":{"100":{"chapter":"100","id":"c100"}}}
		}}`))
	})
	mux.HandleFunc("/cover", func(w http.ResponseWriter, r *http.Request) {
		if got := r.URL.Query().Get("volume[]"); got != "2" {
			t.Errorf("expected volume 2 cover lookup, got %q", got)
		}
		_, _ = w.Write([]byte(`{"data":[{"id":"v2","attributes":{"volume":"2","fileName":"v2.jpg"}}]}`))
	})
	server := httptest.NewServer(mux)
	t.Cleanup(server.Close)
	return server
}

func newClient(t *testing.T, server *httptest.Server, settings provider.Settings) *mangadex.Client {
	t.Helper()
	httpClient := ratelimit.NewClient(server.Client(), nil, ratelimit.RetryPolicy{})
	client, err := mangadex.New(httpClient,
		mangadex.WithBaseURL(server.URL),
		mangadex.WithCoversURL("https://covers.test"),
		mangadex.WithSettings(settings),
	)
	if err != nil {
		t.Fatalf("New returned error: %v", err)
	}
	return client
}

func TestNewRequiresHTTPClient(t *testing.T) {
	if _, err := mangadex.New(nil); err == nil {
		t.Fatal("expected error without http client")
	}
}

func TestGetSeriesMetadataMapsFields(t *testing.T) {
	server := newServer(t)
	client := newClient(t, server, provider.DefaultSettings())

	series, err := client.GetSeriesMetadata(context.Background(), "abc")
	if err != nil {
		t.Fatalf("GetSeriesMetadata returned error: %v", err)
	}
	meta := series.Metadata
	if meta.Title == nil || meta.Title.Name != "Chainsaw Man" || meta.Title.Language != "en" {
		t.Fatalf("unexpected title: %+v", meta.Title)
	}
	if len(meta.Titles) != 2 || meta.Titles[0].Type != metadata.TitleNative || meta.Titles[1].Type != metadata.TitleRomaji {
		t.Fatalf("unexpected alternative titles: %+v", meta.Titles)
	}
	if meta.Status != metadata.StatusOngoing || meta.ReadingDirection != metadata.RightToLeft {
		t.Fatalf("unexpected status/direction: %s %s", meta.Status, meta.ReadingDirection)
	}
	if len(meta.Genres) != 1 || meta.Genres[0] != "Action" || len(meta.Tags) != 1 || meta.Tags[0] != "Gore" {
		t.Fatalf("unexpected genres/tags: %v %v", meta.Genres, meta.Tags)
	}
	if meta.AgeRating == nil || *meta.AgeRating != 13 {
		t.Fatalf("unexpected age rating: %v", meta.AgeRating)
	}
	if meta.Thumbnail == nil || meta.Thumbnail.URL != "https://covers.test/abc/cover.jpg" {
		t.Fatalf("unexpected thumbnail: %+v", meta.Thumbnail)
	}
	if len(meta.Links) != 3 || !strings.HasPrefix(meta.Links[1].URL, "https://anilist.co/manga/") {
		t.Fatalf("unexpected links: %+v", meta.Links)
	}
	if len(meta.Authors) != 1 || meta.Authors[0].Role != metadata.RoleWriter {
		t.Fatalf("unexpected authors: %+v", meta.Authors)
	}
	if len(series.Books) != 2 || series.Books[0].ID != "1" || series.Books[1].Number.Start != 2 {
		t.Fatalf("unexpected books: %+v", series.Books)
	}
}

func TestGetSeriesMetadataAppliesIncludes(t *testing.T) {
	server := newServer(t)
	settings := provider.DefaultSettings()
	settings.Fields.Thumbnail = false
	settings.Fields.Books = false
	client := newClient(t, server, settings)

	series, err := client.GetSeriesMetadata(context.Background(), "abc")
	if err != nil {
		t.Fatalf("GetSeriesMetadata returned error: %v", err)
	}
	if series.Metadata.Thumbnail != nil {
		t.Fatalf("expected thumbnail excluded, got %+v", series.Metadata.Thumbnail)
	}
	if len(series.Books) != 0 {
		t.Fatalf("expected no books, got %+v", series.Books)
	}
}

func TestGetBookMetadata(t *testing.T) {
	server := newServer(t)
	client := newClient(t, server, provider.DefaultSettings())

	book, err := client.GetBookMetadata(context.Background(), "abc", "2")
	if err != nil {
		t.Fatalf("GetBookMetadata returned error: %v", err)
	}
	if book.Metadata.Number == nil || book.Metadata.Number.Start != 2 {
		t.Fatalf("unexpected number: %+v", book.Metadata.Number)
	}
	if len(book.Metadata.Chapters) != 2 || book.Metadata.Chapters[0].Range.Start != 8 {
		t.Fatalf("unexpected chapters: %+v", book.Metadata.Chapters)
	}
	if book.Metadata.Thumbnail == nil || book.Metadata.Thumbnail.URL != "https://covers.test/abc/v2.jpg" {
		t.Fatalf("unexpected thumbnail: %+v", book.Metadata.Thumbnail)
	}
	if _, err := client.GetBookMetadata(context.Background(), "abc", "7"); err == nil {
		t.Fatal("expected error for unknown volume")
	}
}

func TestMatchSeriesMetadata(t *testing.T) {
	server := newServer(t)
	client := newClient(t, server, provider.DefaultSettings())

	series, err := client.MatchSeriesMetadata(context.Background(), provider.MatchQuery{Title: "chainsaw man"})
	if err != nil {
		t.Fatalf("MatchSeriesMetadata returned error: %v", err)
	}
	if series == nil || series.ID != "abc" {
		t.Fatalf("expected match abc, got %+v", series)
	}

	settings := provider.DefaultSettings()
	settings.Matcher = namematch.New(namematch.Exact)
	exact := newClient(t, server, settings)
	series, err = exact.MatchSeriesMetadata(context.Background(), provider.MatchQuery{Title: "Chainsaw Men"})
	if err != nil {
		t.Fatalf("MatchSeriesMetadata returned error: %v", err)
	}
	if series != nil {
		t.Fatalf("expected no exact match, got %+v", series)
	}

	series, err = client.MatchSeriesMetadata(context.Background(), provider.MatchQuery{Title: "Chainsaw Man", Year: 1999})
	if err != nil {
		t.Fatalf("MatchSeriesMetadata returned error: %v", err)
	}
	if series != nil {
		t.Fatalf("expected year mismatch to reject candidate, got %+v", series)
	}
}

func TestSearchSeriesSurfacesStatusError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"result":"error"}`))
	}))
	t.Cleanup(server.Close)
	client := newClient(t, server, provider.DefaultSettings())

	_, err := client.SearchSeries(context.Background(), "x", 5)
	if err == nil || !strings.Contains(err.Error(), "http 400") {
		t.Fatalf("expected http 400 error, got %v", err)
	}
}
