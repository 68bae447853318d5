package anilist_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"komf/internal/metadata"
	"komf/internal/provider"
	"komf/internal/provider/anilist"
	"komf/internal/ratelimit"
)

const mediaJSON = `{
  "id": 105778,
  "siteUrl": "https://anilist.co/manga/105778",
  "title": {"romaji": "Chainsaw Man", "english": "Chainsaw Man", "native": "チェンソーマン"},
  "synonyms": ["CSM"],
  "status": "RELEASING",
  "description": "Denji is a teenage boy.<br><i>(Source: VIZ)</i>",
  "startDate": {"year": 2018, "month": 12, "day": 3},
  "volumes": null,
  "countryOfOrigin": "JP",
  "isAdult": false,
  "averageScore": 86,
  "genres": ["Action", "Horror"],
  "tags": [
    {"name": "Devils", "rank": 95, "isMediaSpoiler": false},
    {"name": "Twist", "rank": 90, "isMediaSpoiler": true},
    {"name": "Rare", "rank": 20, "isMediaSpoiler": false}
  ],
  "coverImage": {"extraLarge": "https://img.test/large.jpg", "large": "https://img.test/medium.jpg"},
  "staff": {"edges": [{"role": "Story & Art", "node": {"name": {"full": "Tatsuki Fujimoto"}}}]}
}`

func newServer(t *testing.T) *httptest.Server {
	t.Helper()
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			t.Errorf("expected POST, got %s", r.Method)
		}
		var body struct {
			Query     string         `json:"query"`
			Variables map[string]any `json:"variables"`
		}
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			t.Errorf("decode body: %v", err)
		}
		w.Header().Set("Content-Type", "application/json")
		switch {
		case strings.Contains(body.Query, "Page("):
			_, _ = w.Write([]byte(`{"data":{"Page":{"media":[` + mediaJSON + `]}}}`))
		case body.Variables["id"] == float64(105778):
			_, _ = w.Write([]byte(`{"data":{"Media":` + mediaJSON + `}}`))
		default:
			_, _ = w.Write([]byte(`{"data":null,"errors":[{"message":"Not Found.","status":404}]}`))
		}
	}))
	t.Cleanup(server.Close)
	return server
}

func newClient(t *testing.T, server *httptest.Server) *anilist.Client {
	t.Helper()
	httpClient := ratelimit.NewClient(server.Client(), nil, ratelimit.RetryPolicy{})
	client, err := anilist.New(httpClient, anilist.WithBaseURL(server.URL), anilist.WithSettings(provider.DefaultSettings()))
	if err != nil {
		t.Fatalf("New returned error: %v", err)
	}
	return client
}

func TestGetSeriesMetadataMapsMedia(t *testing.T) {
	client := newClient(t, newServer(t))

	series, err := client.GetSeriesMetadata(context.Background(), "105778")
	if err != nil {
		t.Fatalf("GetSeriesMetadata returned error: %v", err)
	}
	meta := series.Metadata
	if series.ID != "105778" || meta.Title == nil || meta.Title.Language != "en" {
		t.Fatalf("unexpected series: %+v", series)
	}
	if len(meta.Titles) != 3 || meta.Titles[1].Type != metadata.TitleNative {
		t.Fatalf("unexpected titles: %+v", meta.Titles)
	}
	if meta.Summary != "Denji is a teenage boy." {
		t.Fatalf("unexpected summary: %q", meta.Summary)
	}
	if len(meta.Tags) != 1 || meta.Tags[0] != "Devils" {
		t.Fatalf("expected spoiler and low rank tags dropped, got %v", meta.Tags)
	}
	if meta.Score == nil || *meta.Score != 8.6 {
		t.Fatalf("unexpected score: %v", meta.Score)
	}
	if meta.ReleaseDate == nil || meta.ReleaseDate.Month != 12 {
		t.Fatalf("unexpected release date: %+v", meta.ReleaseDate)
	}
	if meta.Status != metadata.StatusOngoing {
		t.Fatalf("unexpected status: %s", meta.Status)
	}
	// "Story & Art" maps to the writer plus the five art roles.
	if len(meta.Authors) != 6 {
		t.Fatalf("unexpected authors: %+v", meta.Authors)
	}
	if len(series.Books) != 0 {
		t.Fatalf("expected no books, got %+v", series.Books)
	}
}

func TestGetSeriesMetadataGraphQLError(t *testing.T) {
	client := newClient(t, newServer(t))
	_, err := client.GetSeriesMetadata(context.Background(), "1")
	if err == nil || !strings.Contains(err.Error(), "Not Found.") {
		t.Fatalf("expected graphql error, got %v", err)
	}
	if _, err := client.GetSeriesMetadata(context.Background(), "abc"); err == nil {
		t.Fatal("expected error for non-numeric id")
	}
}

func TestMatchAndSearch(t *testing.T) {
	client := newClient(t, newServer(t))

	series, err := client.MatchSeriesMetadata(context.Background(), provider.MatchQuery{Title: "チェンソーマン"})
	if err != nil {
		t.Fatalf("MatchSeriesMetadata returned error: %v", err)
	}
	if series == nil || series.ID != "105778" {
		t.Fatalf("expected match, got %+v", series)
	}

	series, err = client.MatchSeriesMetadata(context.Background(), provider.MatchQuery{Title: "One Piece"})
	if err != nil {
		t.Fatalf("MatchSeriesMetadata returned error: %v", err)
	}
	if series != nil {
		t.Fatalf("expected nil match, got %+v", series)
	}

	results, err := client.SearchSeries(context.Background(), "chainsaw", 5)
	if err != nil {
		t.Fatalf("SearchSeries returned error: %v", err)
	}
	if len(results) != 1 || results[0].ResultID != "105778" || results[0].ImageURL != "https://img.test/large.jpg" {
		t.Fatalf("unexpected results: %+v", results)
	}
}

func TestGetBookMetadataUnsupported(t *testing.T) {
	client := newClient(t, newServer(t))
	if _, err := client.GetBookMetadata(context.Background(), "1", "1"); err == nil {
		t.Fatal("expected error")
	}
}
