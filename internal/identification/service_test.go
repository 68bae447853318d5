package identification_test

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"slices"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"komf/internal/config"
	"komf/internal/identification"
	"komf/internal/jobs"
	"komf/internal/mediaserver"
	"komf/internal/metadata"
	"komf/internal/provider"
	"komf/internal/provider/mangadex"
	"komf/internal/ratelimit"
	"komf/internal/store"
	"komf/internal/testsupport"
)

type recordingNotifier struct {
	mu      sync.Mutex
	matched []string
	scans   []string
}

func (n *recordingNotifier) NotifySeriesMatched(_ context.Context, title string, providerName string) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.matched = append(n.matched, title+"|"+providerName)
	return nil
}

func (n *recordingNotifier) NotifyLibraryScanCompleted(_ context.Context, libraryName string, processed, failed int) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.scans = append(n.scans, fmt.Sprintf("%s|%d|%d", libraryName, processed, failed))
	return nil
}

func (n *recordingNotifier) NotifyError(context.Context, error, string) error {
	return nil
}

// failingProvider fails matches for one title and behaves like the wrapped
// fake otherwise.
type failingProvider struct {
	*testsupport.Provider
	fail string
}

func (p *failingProvider) MatchSeriesMetadata(ctx context.Context, query provider.MatchQuery) (*provider.Series, error) {
	if query.Title == p.fail {
		return nil, errors.New("upstream unavailable")
	}
	return p.Provider.MatchSeriesMetadata(ctx, query)
}

// blockingProvider holds every match until ctx ends and reports each call on
// started.
type blockingProvider struct {
	*testsupport.Provider
	started chan string
}

func (p *blockingProvider) MatchSeriesMetadata(ctx context.Context, query provider.MatchQuery) (*provider.Series, error) {
	select {
	case p.started <- query.Title:
	default:
	}
	<-ctx.Done()
	return nil, ctx.Err()
}

type harness struct {
	cfg      *config.Config
	server   *testsupport.MediaServer
	store    *store.Store
	tracker  *jobs.Tracker
	notifier *recordingNotifier
	svc      *identification.Service
}

func newHarness(t *testing.T, cfg *config.Config, entries ...provider.Entry) *harness {
	t.Helper()
	server := testsupport.NewMediaServer()
	st := testsupport.MustOpenStore(t)
	tracker := jobs.NewTracker(st, jobs.Options{Workers: 2, Retention: time.Minute})
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = tracker.Shutdown(ctx)
	})
	notifier := &recordingNotifier{}
	updater := mediaserver.NewUpdater(server, testsupport.NewThumbnails(), testsupport.StaticImages{}, mediaserver.UpdaterOptionsFromConfig(cfg), nil)
	svc, err := identification.NewService(identification.Dependencies{
		Config:    cfg,
		Server:    server,
		Updater:   updater,
		Providers: provider.NewRegistry(entries...),
		Matches:   st,
		Jobs:      tracker,
		Notifier:  notifier,
	})
	if err != nil {
		t.Fatalf("NewService: %v", err)
	}
	return &harness{cfg: cfg, server: server, store: st, tracker: tracker, notifier: notifier, svc: svc}
}

// await collects the events of job and returns them with the final record.
func (h *harness) await(t *testing.T, job jobs.Job) ([]jobs.Event, jobs.Job) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	records, err := h.tracker.Subscribe(ctx, job.ID)
	if err != nil {
		t.Fatalf("Subscribe: %v", err)
	}
	var events []jobs.Event
	for record := range records {
		events = append(events, record.Event)
	}
	if ctx.Err() != nil {
		t.Fatalf("job %s did not complete", job.ID)
	}
	final, err := h.tracker.Get(ctx, job.ID)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	return events, final
}

func eventTypes(events []jobs.Event) []jobs.EventType {
	out := make([]jobs.EventType, len(events))
	for i, evt := range events {
		out[i] = evt.Type()
	}
	return out
}

func chainsawMan(books ...metadata.SeriesBook) provider.Series {
	return provider.Series{
		ID: "md-1",
		Metadata: metadata.SeriesMetadata{
			Title:   &metadata.SeriesTitle{Name: "Chainsaw Man", Language: "en"},
			Summary: "Denji hunts devils.",
			Status:  metadata.StatusOngoing,
		},
		Books: books,
	}
}

func TestMatchStripsBracketedQualifiers(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	mangadex := testsupport.NewProvider("mangadex")
	mangadex.AddSeries(chainsawMan(metadata.SeriesBook{
		ID:     "md-b1",
		Number: &metadata.BookRange{Start: 1, End: 1},
		Type:   metadata.BookVolume,
		Name:   "Volume 1",
	}), "Chainsaw Man")
	mangadex.AddBook(provider.Book{ID: "md-b1", Metadata: metadata.BookMetadata{Title: "Volume 1", Summary: "Volume one."}})

	h := newHarness(t, cfg, provider.Entry{Provider: mangadex, Priority: 10, Enabled: true})
	h.server.AddSeries("lib1", "s1", "Chainsaw Man (VF)", "Chainsaw Man (VF) v01")

	job, err := h.svc.Match(context.Background(), "s1")
	if err != nil {
		t.Fatalf("Match: %v", err)
	}
	events, final := h.await(t, job)

	if final.Status != jobs.StatusCompleted || final.Message != "matched with mangadex" {
		t.Fatalf("final job = %+v", final)
	}
	if got := mangadex.QueriedTitles(); !slices.Equal(got, []string{"Chainsaw Man (VF)", "Chainsaw Man"}) {
		t.Fatalf("queried titles = %v", got)
	}
	wantTypes := []jobs.EventType{
		jobs.EventProviderSeries,
		jobs.EventProviderBook,
		jobs.EventProviderCompleted,
		jobs.EventPostProcessingStart,
		jobs.EventCompletion,
	}
	if got := eventTypes(events); !slices.Equal(got, wantTypes) {
		t.Fatalf("event types = %v, want %v", got, wantTypes)
	}
	if got := events[1].(jobs.ProviderBookEvent); got.TotalBooks != 1 || got.Progress != 1 {
		t.Fatalf("book event = %+v", got)
	}

	updates := h.server.SeriesUpdatesFor("s1")
	if len(updates) != 1 || updates[0].Title == nil || *updates[0].Title != "Chainsaw Man" {
		t.Fatalf("series updates = %+v", updates)
	}
	books := h.server.BookUpdatesFor("s1-b1")
	if len(books) != 1 || books[0].Summary == nil || *books[0].Summary != "Volume one." {
		t.Fatalf("book updates = %+v", books)
	}
	if !slices.Equal(h.notifier.matched, []string{"Chainsaw Man|mangadex"}) {
		t.Fatalf("notifications = %v", h.notifier.matched)
	}
}

func TestMatchUsesStoredSeriesMatch(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	mangadex := testsupport.NewProvider("mangadex")
	mangadex.AddSeries(chainsawMan())

	h := newHarness(t, cfg, provider.Entry{Provider: mangadex, Priority: 10, Enabled: true})
	h.server.AddSeries("lib1", "s1", "Something Else Entirely", "v01")
	ctx := context.Background()
	if err := h.store.SaveSeriesMatch(ctx, identification.SeriesMatch{
		SeriesID:         "s1",
		Provider:         "mangadex",
		ProviderSeriesID: "md-1",
		CreatedAt:        time.Now(),
	}); err != nil {
		t.Fatalf("SaveSeriesMatch: %v", err)
	}

	job, err := h.svc.Match(ctx, "s1")
	if err != nil {
		t.Fatalf("Match: %v", err)
	}
	_, final := h.await(t, job)
	if final.Status != jobs.StatusCompleted {
		t.Fatalf("status = %s (%s)", final.Status, final.Message)
	}
	if got := mangadex.QueriedTitles(); len(got) != 0 {
		t.Fatalf("stored match should skip title search, queried %v", got)
	}
	if updates := h.server.SeriesUpdatesFor("s1"); len(updates) != 1 {
		t.Fatalf("series updates = %d", len(updates))
	}
}

func TestIdentifySavesSeriesMatch(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	mangadex := testsupport.NewProvider("mangadex")
	mangadex.AddSeries(chainsawMan())

	h := newHarness(t, cfg, provider.Entry{Provider: mangadex, Priority: 10, Enabled: true})
	h.server.AddSeries("lib1", "s1", "CSM", "CSM v01")
	ctx := context.Background()

	job, err := h.svc.Identify(ctx, identification.IdentifyRequest{
		SeriesID:         "s1",
		Provider:         "mangadex",
		ProviderSeriesID: "md-1",
		Edition:          "Deluxe",
	})
	if err != nil {
		t.Fatalf("Identify: %v", err)
	}
	_, final := h.await(t, job)
	if final.Status != jobs.StatusCompleted || final.Message != "identified with mangadex" {
		t.Fatalf("final job = %+v", final)
	}
	match, err := h.store.FindSeriesMatch(ctx, "s1")
	if err != nil {
		t.Fatalf("FindSeriesMatch: %v", err)
	}
	if match == nil || match.ProviderSeriesID != "md-1" || match.Edition != "Deluxe" {
		t.Fatalf("stored match = %+v", match)
	}

	if err := h.svc.ResetSeries(ctx, "s1"); err != nil {
		t.Fatalf("ResetSeries: %v", err)
	}
	if match, err := h.store.FindSeriesMatch(ctx, "s1"); err != nil || match != nil {
		t.Fatalf("match after reset = %+v, %v", match, err)
	}
	if !slices.Contains(h.server.Resets, "series:s1") {
		t.Fatalf("resets = %v", h.server.Resets)
	}
}

func TestIdentifyValidatesSynchronously(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	mangadex := testsupport.NewProvider("mangadex")
	anilist := testsupport.NewProvider("anilist")
	h := newHarness(t, cfg,
		provider.Entry{Provider: mangadex, Priority: 10, Enabled: true},
		provider.Entry{Provider: anilist, Priority: 20, Enabled: false},
	)
	h.server.AddSeries("lib1", "s1", "CSM")
	ctx := context.Background()

	tests := []struct {
		name string
		req  identification.IdentifyRequest
		want error
	}{
		{"unknown series", identification.IdentifyRequest{SeriesID: "missing", Provider: "mangadex", ProviderSeriesID: "x"}, mediaserver.ErrNotFound},
		{"disabled provider", identification.IdentifyRequest{SeriesID: "s1", Provider: "anilist", ProviderSeriesID: "x"}, provider.ErrProviderDisabled},
		{"unknown provider", identification.IdentifyRequest{SeriesID: "s1", Provider: "kitsu", ProviderSeriesID: "x"}, provider.ErrProviderNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := h.svc.Identify(ctx, tt.req); !errors.Is(err, tt.want) {
				t.Fatalf("Identify error = %v, want %v", err, tt.want)
			}
		})
	}
	if _, err := h.svc.Identify(ctx, identification.IdentifyRequest{SeriesID: "s1", Provider: "mangadex"}); !errors.Is(err, identification.ErrInvalidRequest) {
		t.Fatal("expected error for blank provider series id")
	}
	if _, err := h.svc.Match(ctx, "missing"); !errors.Is(err, mediaserver.ErrNotFound) {
		t.Fatalf("Match error = %v", err)
	}
}

func TestMatchProviderErrorFailsJob(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	mangadex := testsupport.NewProvider("mangadex")
	mangadex.Err = errors.New("rate limited")

	h := newHarness(t, cfg, provider.Entry{Provider: mangadex, Priority: 10, Enabled: true})
	h.server.AddSeries("lib1", "s1", "Chainsaw Man", "v01")

	job, err := h.svc.Match(context.Background(), "s1")
	if err != nil {
		t.Fatalf("Match: %v", err)
	}
	events, final := h.await(t, job)
	if final.Status != jobs.StatusFailed || !strings.Contains(final.Message, "rate limited") {
		t.Fatalf("final job = %+v", final)
	}
	if final.FinishedAt == nil {
		t.Fatal("failed job should have a finish time")
	}
	want := []jobs.Event{
		jobs.ProviderSeriesEvent{Provider: "mangadex"},
		jobs.ProviderErrorEvent{Provider: "mangadex", Message: "rate limited"},
		jobs.CompletionEvent{},
	}
	if !slices.Equal(events, want) {
		t.Fatalf("events = %#v, want %#v", events, want)
	}
	if updates := h.server.SeriesUpdatesFor("s1"); len(updates) != 0 {
		t.Fatalf("failed job wrote metadata: %+v", updates)
	}
}

func TestMatchRetriesServerErrorsBeforeFailing(t *testing.T) {
	var attempts atomic.Int32
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		attempts.Add(1)
		http.Error(w, "upstream exploded", http.StatusInternalServerError)
	}))
	t.Cleanup(upstream.Close)

	var (
		mu     sync.Mutex
		delays []time.Duration
	)
	sleeper := func(_ context.Context, d time.Duration) error {
		mu.Lock()
		defer mu.Unlock()
		delays = append(delays, d)
		return nil
	}
	policy := ratelimit.RetryPolicy{MaxRetries: 3, BaseDelay: 100 * time.Millisecond, MaxDelay: time.Second}
	httpClient := ratelimit.NewClient(upstream.Client(), nil, policy, ratelimit.WithSleeper(sleeper))
	client, err := mangadex.New(httpClient, mangadex.WithBaseURL(upstream.URL))
	if err != nil {
		t.Fatalf("mangadex.New: %v", err)
	}

	cfg := testsupport.NewConfig(t)
	h := newHarness(t, cfg, provider.Entry{Provider: client, Priority: 10, Enabled: true})
	h.server.AddSeries("lib1", "s1", "Chainsaw Man", "v01")

	job, err := h.svc.Match(context.Background(), "s1")
	if err != nil {
		t.Fatalf("Match: %v", err)
	}
	events, final := h.await(t, job)

	if got := attempts.Load(); got != 4 {
		t.Fatalf("attempts = %d, want 4", got)
	}
	mu.Lock()
	gotDelays := slices.Clone(delays)
	mu.Unlock()
	want := []time.Duration{100 * time.Millisecond, 200 * time.Millisecond, 400 * time.Millisecond}
	if !slices.Equal(gotDelays, want) {
		t.Fatalf("retry delays = %v, want %v", gotDelays, want)
	}
	if len(events) < 2 {
		t.Fatalf("events = %#v", events)
	}
	tail := events[len(events)-2:]
	providerErr, ok := tail[0].(jobs.ProviderErrorEvent)
	if !ok || providerErr.Provider != "mangadex" || !strings.Contains(providerErr.Message, "http 500") {
		t.Fatalf("expected mangadex ProviderErrorEvent with http 500, got %#v", tail[0])
	}
	if tail[1].Type() != jobs.EventCompletion {
		t.Fatalf("last event = %#v, want CompletionEvent", tail[1])
	}
	if final.Status != jobs.StatusFailed || !strings.Contains(final.Message, "http 500") {
		t.Fatalf("final job = %+v", final)
	}
}

func TestMatchWithoutResultCompletes(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	mangadex := testsupport.NewProvider("mangadex")

	h := newHarness(t, cfg, provider.Entry{Provider: mangadex, Priority: 10, Enabled: true})
	h.server.AddSeries("lib1", "s1", "Unknown Series", "v01")

	job, err := h.svc.Match(context.Background(), "s1")
	if err != nil {
		t.Fatalf("Match: %v", err)
	}
	events, final := h.await(t, job)
	if final.Status != jobs.StatusCompleted || final.Message != "no match found" {
		t.Fatalf("final job = %+v", final)
	}
	want := []jobs.EventType{jobs.EventProviderSeries, jobs.EventProviderCompleted, jobs.EventCompletion}
	if got := eventTypes(events); !slices.Equal(got, want) {
		t.Fatalf("event types = %v", got)
	}
	if updates := h.server.SeriesUpdatesFor("s1"); len(updates) != 0 {
		t.Fatalf("unexpected updates: %+v", updates)
	}
}

func TestMatchFallsThroughProvidersByPriority(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	mangadex := testsupport.NewProvider("mangadex")
	anilist := testsupport.NewProvider("anilist")
	anilist.AddSeries(provider.Series{
		ID:       "al-1",
		Metadata: metadata.SeriesMetadata{Title: &metadata.SeriesTitle{Name: "Frieren"}},
	}, "Frieren")

	h := newHarness(t, cfg,
		provider.Entry{Provider: anilist, Priority: 20, Enabled: true},
		provider.Entry{Provider: mangadex, Priority: 10, Enabled: true},
	)
	h.server.AddSeries("lib1", "s1", "Frieren", "v01")

	job, err := h.svc.Match(context.Background(), "s1")
	if err != nil {
		t.Fatalf("Match: %v", err)
	}
	events, final := h.await(t, job)
	if final.Message != "matched with anilist" {
		t.Fatalf("message = %q", final.Message)
	}
	if len(mangadex.QueriedTitles()) == 0 {
		t.Fatal("higher priority provider was not queried")
	}
	if first := events[0].(jobs.ProviderSeriesEvent); first.Provider != "mangadex" {
		t.Fatalf("first provider = %s", first.Provider)
	}
}

func TestAggregationMergesInPriorityOrder(t *testing.T) {
	cfg := testsupport.NewConfig(t,
		testsupport.WithAggregation(),
	)
	primary := testsupport.NewProvider("mangadex")
	primary.AddSeries(provider.Series{
		ID:       "md-1",
		Metadata: metadata.SeriesMetadata{Title: &metadata.SeriesTitle{Name: "Frieren"}},
	}, "Frieren")

	// The higher priority secondary finishes last.
	slow := testsupport.NewProvider("anilist")
	slow.Block = make(chan struct{})
	slow.AddSeries(provider.Series{
		ID:       "al-1",
		Metadata: metadata.SeriesMetadata{Title: &metadata.SeriesTitle{Name: "Frieren"}, Summary: "from anilist"},
	}, "Frieren")
	fast := testsupport.NewProvider("bangumi")
	fast.AddSeries(provider.Series{
		ID: "bg-1",
		Metadata: metadata.SeriesMetadata{
			Title:   &metadata.SeriesTitle{Name: "Frieren"},
			Summary: "from bangumi",
			Genres:  []string{"Fantasy"},
		},
	}, "Frieren")
	broken := testsupport.NewProvider("kitsu")
	broken.Err = errors.New("boom")

	h := newHarness(t, cfg,
		provider.Entry{Provider: primary, Priority: 10, Enabled: true},
		provider.Entry{Provider: slow, Priority: 20, Enabled: true},
		provider.Entry{Provider: fast, Priority: 30, Enabled: true},
		provider.Entry{Provider: broken, Priority: 40, Enabled: true},
	)
	h.server.AddSeries("lib1", "s1", "Frieren", "v01")

	time.AfterFunc(50*time.Millisecond, func() { close(slow.Block) })
	job, err := h.svc.Match(context.Background(), "s1")
	if err != nil {
		t.Fatalf("Match: %v", err)
	}
	_, final := h.await(t, job)
	if final.Status != jobs.StatusCompleted {
		t.Fatalf("aggregation failure should not fail the job: %+v", final)
	}
	updates := h.server.SeriesUpdatesFor("s1")
	if len(updates) != 1 {
		t.Fatalf("series updates = %d", len(updates))
	}
	if updates[0].Summary == nil || *updates[0].Summary != "from anilist" {
		t.Fatalf("summary = %v, want the higher priority secondary", updates[0].Summary)
	}
	if !slices.Equal(updates[0].Genres, []string{"Fantasy"}) {
		t.Fatalf("genres = %v", updates[0].Genres)
	}
}

func TestScanLibraryCountsFailures(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	fake := testsupport.NewProvider("mangadex")
	fake.AddSeries(chainsawMan(), "Chainsaw Man")
	mangadex := &failingProvider{Provider: fake, fail: "Broken"}

	h := newHarness(t, cfg, provider.Entry{Provider: mangadex, Priority: 10, Enabled: true})
	h.server.AddSeries("lib1", "s1", "Chainsaw Man", "v01")
	h.server.AddSeries("lib1", "s2", "Broken", "v01")
	h.server.AddSeries("lib1", "s3", "Nothing Matches", "v01")
	h.server.AddSeries("lib2", "s4", "Chainsaw Man", "v01")

	summary, err := h.svc.ScanLibrary(context.Background(), "lib1")
	if err != nil {
		t.Fatalf("ScanLibrary: %v", err)
	}
	if summary != (identification.ScanSummary{Processed: 3, Failed: 1}) {
		t.Fatalf("summary = %+v", summary)
	}
	if len(h.server.SeriesUpdatesFor("s1")) != 1 || len(h.server.SeriesUpdatesFor("s4")) != 0 {
		t.Fatal("scan touched the wrong series")
	}
	if !slices.Equal(h.notifier.scans, []string{"Library lib1|3|1"}) {
		t.Fatalf("scan notifications = %v", h.notifier.scans)
	}

	page, err := h.tracker.List(context.Background(), jobs.ListOptions{Status: jobs.StatusFailed})
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if page.TotalElements != 1 || page.Content[0].SeriesID != "s2" {
		t.Fatalf("failed jobs = %+v", page)
	}
}

func TestMatchLibraryRunsInBackground(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	mangadex := testsupport.NewProvider("mangadex")
	mangadex.AddSeries(chainsawMan(), "Chainsaw Man")

	h := newHarness(t, cfg, provider.Entry{Provider: mangadex, Priority: 10, Enabled: true})
	h.server.AddSeries("lib1", "s1", "Chainsaw Man", "v01")

	if err := h.svc.MatchLibrary(context.Background(), "missing"); !errors.Is(err, mediaserver.ErrNotFound) {
		t.Fatalf("MatchLibrary(missing) = %v", err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	if err := h.svc.MatchLibrary(ctx, "lib1"); err != nil {
		t.Fatalf("MatchLibrary: %v", err)
	}
	cancel()
	h.svc.Wait()
	if len(h.server.SeriesUpdatesFor("s1")) != 1 {
		t.Fatal("background scan should survive the request context")
	}
}

func TestShutdownStopsLibraryScan(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	mangadex := &blockingProvider{Provider: testsupport.NewProvider("mangadex"), started: make(chan string, 1)}

	h := newHarness(t, cfg, provider.Entry{Provider: mangadex, Priority: 10, Enabled: true})
	for i := range 50 {
		h.server.AddSeries("lib1", fmt.Sprintf("s%02d", i), fmt.Sprintf("Series %02d", i), "v01")
	}

	if err := h.svc.MatchLibrary(context.Background(), "lib1"); err != nil {
		t.Fatalf("MatchLibrary: %v", err)
	}
	select {
	case <-mangadex.started:
	case <-time.After(5 * time.Second):
		t.Fatal("scan never reached the provider")
	}

	h.svc.Shutdown()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := h.tracker.Shutdown(ctx); err != nil {
		t.Fatalf("tracker Shutdown: %v", err)
	}
	done := make(chan struct{})
	go func() {
		h.svc.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("library scan did not stop")
	}

	page, err := h.tracker.List(context.Background(), jobs.ListOptions{PageSize: 100})
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if page.TotalElements != 1 {
		t.Fatalf("jobs after shutdown = %d, want only the interrupted one", page.TotalElements)
	}
	h.notifier.mu.Lock()
	scans := slices.Clone(h.notifier.scans)
	h.notifier.mu.Unlock()
	if len(scans) != 0 {
		t.Fatalf("stopped scan sent notifications: %v", scans)
	}
	if err := h.svc.MatchLibrary(context.Background(), "lib1"); !errors.Is(err, jobs.ErrTrackerClosed) {
		t.Fatalf("MatchLibrary after shutdown = %v", err)
	}
}

func TestSearchSeriesOrdersByPriorityThenSimilarity(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	mangadex := testsupport.NewProvider("mangadex")
	mangadex.Results = []provider.SearchResult{
		{Provider: "mangadex", ResultID: "md-2", Title: "Boruto"},
		{Provider: "mangadex", ResultID: "md-1", Title: "Naruto"},
	}
	anilist := testsupport.NewProvider("anilist")
	anilist.Results = []provider.SearchResult{
		{Provider: "anilist", ResultID: "al-2", Title: "Naruto Gaiden"},
		{Provider: "anilist", ResultID: "al-1", Title: "Naruto"},
	}
	disabled := testsupport.NewProvider("bangumi")
	disabled.Results = []provider.SearchResult{{Provider: "bangumi", ResultID: "bg-1", Title: "Naruto"}}
	broken := testsupport.NewProvider("kitsu")
	broken.Err = errors.New("down")

	h := newHarness(t, cfg,
		provider.Entry{Provider: anilist, Priority: 20, Enabled: true},
		provider.Entry{Provider: mangadex, Priority: 10, Enabled: true},
		provider.Entry{Provider: disabled, Priority: 5, Enabled: false},
		provider.Entry{Provider: broken, Priority: 1, Enabled: true},
	)

	results := h.svc.SearchSeries(context.Background(), "  Naruto ")
	var ids []string
	for _, r := range results {
		ids = append(ids, r.ResultID)
	}
	want := []string{"md-1", "md-2", "al-1", "al-2"}
	if !slices.Equal(ids, want) {
		t.Fatalf("result ids = %v, want %v", ids, want)
	}
	if got := h.svc.SearchSeries(context.Background(), " "); got != nil {
		t.Fatalf("blank search = %v", got)
	}
}

func TestSearchTitles(t *testing.T) {
	tests := []struct {
		name   string
		series mediaserver.Series
		want   []string
	}{
		{"plain", mediaserver.Series{Title: "Berserk"}, []string{"Berserk"}},
		{"brackets", mediaserver.Series{Title: "Berserk [Digital]"}, []string{"Berserk [Digital]", "Berserk"}},
		{"name fallback", mediaserver.Series{Name: "Vagabond"}, []string{"Vagabond"}},
		{"alternatives deduped", mediaserver.Series{Title: "Berserk", AlternativeTitles: []string{"ベルセルク", "Berserk", " "}}, []string{"Berserk", "ベルセルク"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := identification.SearchTitles(tt.series); !slices.Equal(got, tt.want) {
				t.Fatalf("SearchTitles = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestNewServiceRequiresDependencies(t *testing.T) {
	if _, err := identification.NewService(identification.Dependencies{}); err == nil {
		t.Fatal("expected error for missing dependencies")
	}
}
