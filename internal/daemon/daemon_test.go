package daemon_test

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"testing"
	"time"

	"komf/internal/api"
	"komf/internal/config"
	"komf/internal/daemon"
	"komf/internal/identification"
	"komf/internal/jobs"
	"komf/internal/mediaserver"
	"komf/internal/provider"
	"komf/internal/store"
	"komf/internal/testsupport"
)

func newDaemon(t *testing.T, cfg *config.Config) (*daemon.Daemon, *store.Store) {
	t.Helper()
	st, err := store.Open(cfg)
	if err != nil {
		t.Fatalf("store.Open: %v", err)
	}
	server := testsupport.NewMediaServer()
	server.AddSeries("lib1", "s1", "Chainsaw Man")
	tracker := jobs.NewTracker(st, jobs.Options{Workers: 1, Retention: time.Minute})
	updater := mediaserver.NewUpdater(server, testsupport.NewThumbnails(), testsupport.StaticImages{}, mediaserver.UpdaterOptionsFromConfig(cfg), nil)
	svc, err := identification.NewService(identification.Dependencies{
		Config:  cfg,
		Server:  server,
		Updater: updater,
		Providers: provider.NewRegistry(
			provider.Entry{Provider: testsupport.NewProvider("mangadex"), Priority: 10, Enabled: true},
		),
		Matches: st,
		Jobs:    tracker,
	})
	if err != nil {
		t.Fatalf("identification.NewService: %v", err)
	}
	d, err := daemon.New(cfg, daemon.Components{Store: st, Tracker: tracker, Service: svc}, nil)
	if err != nil {
		t.Fatalf("daemon.New: %v", err)
	}
	t.Cleanup(func() {
		_ = d.Close()
	})
	return d, st
}

func TestNewRequiresComponents(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	if _, err := daemon.New(cfg, daemon.Components{}, nil); err == nil {
		t.Fatal("expected error for missing components")
	}
}

func TestDaemonStartStop(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	d, _ := newDaemon(t, cfg)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := d.Start(ctx); err != nil {
		t.Fatalf("Start failed: %v", err)
	}

	status := d.Status(ctx)
	if !status.Running {
		t.Fatal("expected daemon to report running")
	}
	if status.LockFilePath != cfg.LockPath() {
		t.Fatalf("unexpected lock path %q", status.LockFilePath)
	}
	if status.StartedAt == "" {
		t.Fatal("expected start time")
	}

	if err := d.Start(ctx); err == nil {
		t.Fatal("expected second start to fail")
	}

	d.Stop()
	status = d.Status(ctx)
	if status.Running {
		t.Fatal("expected daemon to be stopped")
	}
	if d.APIAddress() != "" {
		t.Fatalf("expected api listener closed, got %q", d.APIAddress())
	}
}

func TestDaemonSingleInstance(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	first, _ := newDaemon(t, cfg)
	second, _ := newDaemon(t, cfg)

	ctx := context.Background()
	if err := first.Start(ctx); err != nil {
		t.Fatalf("first Start: %v", err)
	}
	err := second.Start(ctx)
	if err == nil || !strings.Contains(err.Error(), "already running") {
		t.Fatalf("expected lock conflict, got %v", err)
	}

	first.Stop()
	if err := second.Start(ctx); err != nil {
		t.Fatalf("Start after release: %v", err)
	}
}

func TestDaemonFailsInterruptedJobs(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	d, st := newDaemon(t, cfg)

	ctx := context.Background()
	stale := jobs.Job{ID: "stale", SeriesID: "s1", Status: jobs.StatusRunning, StartedAt: time.Now().Add(-time.Hour)}
	if err := st.SaveJob(ctx, stale); err != nil {
		t.Fatalf("SaveJob: %v", err)
	}

	if err := d.Start(ctx); err != nil {
		t.Fatalf("Start: %v", err)
	}
	job, err := st.GetJob(ctx, "stale")
	if err != nil {
		t.Fatalf("GetJob: %v", err)
	}
	if job.Status != jobs.StatusFailed || job.Message != jobs.InterruptedMessage {
		t.Fatalf("expected interrupted job failed, got %+v", job)
	}
	if job.FinishedAt == nil {
		t.Fatal("expected finish time")
	}
	if got := d.Status(ctx).RunningJobs; got != 0 {
		t.Fatalf("expected no running jobs, got %d", got)
	}
}

func TestDaemonServesAPI(t *testing.T) {
	cfg := testsupport.NewConfig(t, testsupport.WithAPIToken("secret"))
	d, _ := newDaemon(t, cfg)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := d.Start(ctx); err != nil {
		t.Fatalf("Start: %v", err)
	}

	client, err := api.NewClient(d.APIAddress(), "secret")
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}
	status, err := client.Status(ctx)
	if err != nil {
		t.Fatalf("Status: %v", err)
	}
	if !status.Running || status.DatabasePath != cfg.DatabasePath() {
		t.Fatalf("unexpected status %+v", status)
	}
	if len(status.Providers) != 1 || status.Providers[0].Name != "mangadex" {
		t.Fatalf("unexpected providers %+v", status.Providers)
	}

	jobID, err := client.MatchSeries(ctx, "s1")
	if err != nil {
		t.Fatalf("MatchSeries: %v", err)
	}
	var last jobs.Record
	if err := client.FollowJob(ctx, jobID, func(r jobs.Record) error {
		last = r
		return nil
	}); err != nil {
		t.Fatalf("FollowJob: %v", err)
	}
	if last.Event == nil || last.Event.Type() != jobs.EventCompletion {
		t.Fatalf("expected completion event, got %+v", last)
	}

	anonymous, err := api.NewClient(d.APIAddress(), "")
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}
	_, err = anonymous.Status(ctx)
	var statusErr *api.StatusError
	if !errors.As(err, &statusErr) || statusErr.StatusCode != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %v", err)
	}
}

func TestNewMediaServerClient(t *testing.T) {
	tests := []struct {
		name    string
		kind    string
		apiKey  string
		want    mediaserver.Type
		wantErr bool
	}{
		{name: "komga", kind: "komga", want: mediaserver.Komga},
		{name: "case insensitive", kind: " Komga ", want: mediaserver.Komga},
		{name: "kavita", kind: "kavita", apiKey: "key", want: mediaserver.Kavita},
		{name: "kavita without key", kind: "kavita", wantErr: true},
		{name: "unknown", kind: "plex", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := testsupport.NewConfig(t, testsupport.WithMediaServer(tt.kind, "http://server.test"))
			cfg.MediaServer.APIKey = tt.apiKey
			client, err := daemon.NewMediaServerClient(cfg, http.DefaultClient, nil)
			if tt.wantErr {
				if err == nil {
					t.Fatal("expected error")
				}
				return
			}
			if err != nil {
				t.Fatalf("NewMediaServerClient: %v", err)
			}
			if client.Type() != tt.want {
				t.Fatalf("expected %s client, got %s", tt.want, client.Type())
			}
		})
	}
}

func TestBuildWiresDaemon(t *testing.T) {
	cfg := testsupport.NewConfig(t, testsupport.WithMediaServer("komga", "http://komga.test"))
	d, err := daemon.Build(cfg, nil)
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	defer d.Close()

	status := d.Status(context.Background())
	if status.Running {
		t.Fatal("expected built daemon to be idle until started")
	}
	if status.MediaServer != "komga" || status.DatabasePath != cfg.DatabasePath() {
		t.Fatalf("unexpected status %+v", status)
	}
}

func TestBuildRejectsUnknownMediaServer(t *testing.T) {
	cfg := testsupport.NewConfig(t, testsupport.WithMediaServer("plex", "http://plex.test"))
	if _, err := daemon.Build(cfg, nil); err == nil {
		t.Fatal("expected error for unknown media server")
	}
}
