package main

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"komf/internal/config"
	"komf/internal/daemon"
	"komf/internal/identification"
	"komf/internal/jobs"
	"komf/internal/mediaserver"
	"komf/internal/metadata"
	"komf/internal/provider"
	"komf/internal/store"
	"komf/internal/testsupport"
)

type cliTestEnv struct {
	cfg        *config.Config
	store      *store.Store
	server     *testsupport.MediaServer
	provider   *testsupport.Provider
	daemon     *daemon.Daemon
	apiAddr    string
	configPath string
}

func setupCLITestEnv(t *testing.T) *cliTestEnv {
	t.Helper()

	cfg := testsupport.NewConfig(t,
		testsupport.WithMediaServer("komga", "http://komga.test"),
		testsupport.WithAPIToken("cli-token"),
	)
	homeDir := filepath.Join(testsupport.BaseDir(cfg), "home")
	if err := os.MkdirAll(homeDir, 0o755); err != nil {
		t.Fatalf("mkdir home: %v", err)
	}
	t.Setenv("HOME", homeDir)

	configPath := filepath.Join(homeDir, ".config", "komf", "config.toml")
	writeTestConfig(t, configPath, cfg)

	st, err := store.Open(cfg)
	if err != nil {
		t.Fatalf("store.Open: %v", err)
	}

	server := testsupport.NewMediaServer()
	server.AddSeries("lib1", "s1", "Chainsaw Man", "Chainsaw Man v01.cbz")

	mangadex := testsupport.NewProvider("mangadex")
	mangadex.AddSeries(provider.Series{
		ID: "md-1",
		Metadata: metadata.SeriesMetadata{
			Title:   &metadata.SeriesTitle{Name: "Chainsaw Man", Language: "en"},
			Summary: "Denji hunts devils.",
		},
	}, "Chainsaw Man")
	mangadex.Results = []provider.SearchResult{{Provider: "mangadex", ResultID: "md-1", Title: "Chainsaw Man"}}

	tracker := jobs.NewTracker(st, jobs.Options{Workers: 2, Retention: time.Minute})
	updater := mediaserver.NewUpdater(server, testsupport.NewThumbnails(), testsupport.StaticImages{}, mediaserver.UpdaterOptionsFromConfig(cfg), nil)
	svc, err := identification.NewService(identification.Dependencies{
		Config:  cfg,
		Server:  server,
		Updater: updater,
		Providers: provider.NewRegistry(
			provider.Entry{Provider: mangadex, Priority: 10, Enabled: true},
			provider.Entry{Provider: testsupport.NewProvider("anilist"), Priority: 20, Enabled: false},
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
	if err := d.Start(context.Background()); err != nil {
		t.Fatalf("daemon.Start: %v", err)
	}
	t.Cleanup(func() {
		_ = d.Close()
	})

	return &cliTestEnv{
		cfg:        cfg,
		store:      st,
		server:     server,
		provider:   mangadex,
		daemon:     d,
		apiAddr:    d.APIAddress(),
		configPath: configPath,
	}
}

func runCLI(t *testing.T, args []string, apiAddr, configPath string) (string, string, error) {
	t.Helper()
	cmd := newRootCommand()
	var stdout, stderr bytes.Buffer
	cmd.SetOut(&stdout)
	cmd.SetErr(&stderr)
	var flags []string
	if apiAddr != "" {
		flags = append(flags, "--api", apiAddr)
	}
	if configPath != "" {
		flags = append(flags, "--config", configPath)
	}
	cmd.SetArgs(append(flags, args...))
	err := cmd.Execute()
	return stdout.String(), stderr.String(), err
}

func writeTestConfig(t *testing.T, path string, cfg *config.Config) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("mkdir config dir: %v", err)
	}
	content := fmt.Sprintf(
		"[paths]\ndata_dir = %q\nlog_dir = %q\napi_bind = %q\napi_token = %q\n\n[media_server]\ntype = %q\nurl = %q\nusername = %q\npassword = %q\n",
		cfg.Paths.DataDir,
		cfg.Paths.LogDir,
		cfg.Paths.APIBind,
		cfg.Paths.APIToken,
		cfg.MediaServer.Type,
		cfg.MediaServer.URL,
		cfg.MediaServer.Username,
		cfg.MediaServer.Password,
	)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
}

// launchedJobID extracts the id from a "Job <id> started" line.
func launchedJobID(t *testing.T, output string) string {
	t.Helper()
	for _, line := range strings.Split(output, "\n") {
		fields := strings.Fields(line)
		if len(fields) == 3 && fields[0] == "Job" && fields[2] == "started" {
			return fields[1]
		}
	}
	t.Fatalf("no launched job in %q", output)
	return ""
}

func requireContains(t *testing.T, output, substr string) {
	t.Helper()
	if !strings.Contains(output, substr) {
		t.Fatalf("expected %q to contain %q", output, substr)
	}
}
