package config_test

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/pelletier/go-toml/v2"

	"komf/internal/config"
	"komf/internal/testsupport"
)

func validConfig() config.Config {
	cfg := config.Default()
	cfg.MediaServer.URL = "http://komga.local"
	cfg.MediaServer.Username = "admin"
	cfg.MediaServer.Password = "secret"
	return cfg
}

func TestLoadDefaultConfigUsesEnvAndExpandsPaths(t *testing.T) {
	tempHome := t.TempDir()
	t.Setenv("HOME", tempHome)
	t.Setenv("KOMF_MEDIA_SERVER_URL", "http://komga.local/")
	t.Setenv("KOMF_KOMGA_PASSWORD", "env-password")
	t.Chdir(t.TempDir())

	// username has no env fallback; write a minimal file in the default location
	configPath := filepath.Join(tempHome, ".config", "komf", "config.toml")
	testsupport.WriteFile(t, configPath, "[media_server]\nusername = \"admin\"\n")

	cfg, resolved, exists, err := config.Load("")
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if !exists || resolved != configPath {
		t.Fatalf("resolved = %q exists = %v", resolved, exists)
	}
	if want := filepath.Join(tempHome, ".local", "share", "komf"); cfg.Paths.DataDir != want {
		t.Fatalf("unexpected data dir: got %q want %q", cfg.Paths.DataDir, want)
	}
	if cfg.MediaServer.URL != "http://komga.local" {
		t.Fatalf("expected trimmed url from env, got %q", cfg.MediaServer.URL)
	}
	if cfg.MediaServer.Password != "env-password" {
		t.Fatalf("expected password from env, got %q", cfg.MediaServer.Password)
	}
	if cfg.Paths.APIBind != "127.0.0.1:8085" {
		t.Fatalf("unexpected api bind: %q", cfg.Paths.APIBind)
	}
	if _, ok := cfg.Metadata.Providers["mangadex"]; !ok {
		t.Fatalf("expected default providers, got %v", cfg.Metadata.Providers)
	}
	if err := cfg.EnsureDirectories(); err != nil {
		t.Fatalf("EnsureDirectories failed: %v", err)
	}
	for _, dir := range []string{cfg.Paths.DataDir, cfg.Paths.LogDir} {
		if info, err := os.Stat(dir); err != nil || !info.IsDir() {
			t.Fatalf("expected directory %q to exist: %v", dir, err)
		}
	}
}

func TestLoadCustomPathWithProviders(t *testing.T) {
	tempDir := t.TempDir()
	configPath := filepath.Join(tempDir, "komf.toml")
	content := `
[media_server]
type = "Kavita"
url = "http://kavita.local"
api_key = "file-key"

[metadata]
name_matching_mode = "EXACT"

[metadata.library_media_types]
lib1 = "novel"

[metadata.post_processing]
series_title_language = "English"
alternative_series_title_languages = ["eng", "ja_RO", "en", " "]
language_value = "JPN"

[metadata.providers.AniList]
enabled = true
priority = 5
name_matching_mode = "closest_match"

[metadata.providers.AniList.include]
thumbnail = false
`
	if err := os.WriteFile(configPath, []byte(content), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, resolved, exists, err := config.Load(configPath)
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if !exists || resolved != configPath {
		t.Fatalf("resolved = %q exists = %v", resolved, exists)
	}
	if cfg.MediaServer.Type != "kavita" {
		t.Fatalf("expected lowercased type, got %q", cfg.MediaServer.Type)
	}
	if len(cfg.Metadata.Providers) != 1 {
		t.Fatalf("expected provider tables to replace defaults, got %v", cfg.Metadata.Providers)
	}
	anilist, ok := cfg.Metadata.Providers["anilist"]
	if !ok {
		t.Fatalf("expected provider keys to be lowercased, got %v", cfg.Metadata.Providers)
	}
	if anilist.Priority != 5 || anilist.RetryAttempts != 3 {
		t.Fatalf("unexpected provider: %+v", anilist)
	}
	if anilist.Include.Enabled(anilist.Include.Thumbnail) {
		t.Fatal("expected thumbnail excluded")
	}
	if !anilist.Include.Enabled(anilist.Include.Summary) {
		t.Fatal("expected unset summary to be included")
	}
	if got := cfg.MediaTypeForLibrary("lib1"); got != "NOVEL" {
		t.Fatalf("MediaTypeForLibrary(lib1) = %q", got)
	}
	if got := cfg.MediaTypeForLibrary("other"); got != "MANGA" {
		t.Fatalf("MediaTypeForLibrary(other) = %q", got)
	}
	if got := cfg.NameMatchingModeFor("anilist"); got != "closest_match" {
		t.Fatalf("NameMatchingModeFor(anilist) = %q", got)
	}
	if got := cfg.NameMatchingModeFor("mangadex"); got != "exact" {
		t.Fatalf("NameMatchingModeFor(mangadex) = %q", got)
	}
	pp := cfg.Metadata.PostProcessing
	if pp.SeriesTitleLanguage != "en" || pp.LanguageValue != "ja" {
		t.Fatalf("unexpected language normalization: %+v", pp)
	}
	if got := strings.Join(pp.AlternativeSeriesTitleLanguages, ","); got != "en,ja-ro" {
		t.Fatalf("AlternativeSeriesTitleLanguages = %q", got)
	}
}

func TestLoadReadsDotEnvNextToConfig(t *testing.T) {
	tempDir := t.TempDir()
	configPath := filepath.Join(tempDir, "komf.toml")
	if err := os.WriteFile(configPath, []byte("[media_server]\ntype = \"kavita\"\nurl = \"http://kavita.local\"\n"), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	if err := os.WriteFile(filepath.Join(tempDir, ".env"), []byte("KOMF_KAVITA_API_KEY=dotenv-key\n"), 0o644); err != nil {
		t.Fatalf("write env: %v", err)
	}
	// registered so the variable set by godotenv is restored after the test
	t.Setenv("KOMF_KAVITA_API_KEY", "")
	os.Unsetenv("KOMF_KAVITA_API_KEY")

	cfg, _, _, err := config.Load(configPath)
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if cfg.MediaServer.APIKey != "dotenv-key" {
		t.Fatalf("expected api key from .env, got %q", cfg.MediaServer.APIKey)
	}
}

func TestLoadMissingMediaServerURL(t *testing.T) {
	t.Setenv("KOMF_MEDIA_SERVER_URL", "")
	_, _, _, err := config.Load(filepath.Join(t.TempDir(), "missing.toml"))
	if err == nil || !strings.Contains(err.Error(), "media_server.url") {
		t.Fatalf("expected media_server.url error, got %v", err)
	}
}

func TestCreateSample(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sample.toml")
	if err := config.CreateSample(path); err != nil {
		t.Fatalf("CreateSample failed: %v", err)
	}
	contents, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read sample: %v", err)
	}
	if !strings.Contains(string(contents), "your_komga_password_here") {
		t.Fatalf("sample config missing placeholder password: %s", contents)
	}
	var cfg config.Config
	if err := toml.Unmarshal(contents, &cfg); err != nil {
		t.Fatalf("unmarshal sample: %v", err)
	}
	if cfg.Metadata.Providers["mangadex"].Priority != 10 {
		t.Fatalf("unexpected sample providers: %+v", cfg.Metadata.Providers)
	}
	if roles := cfg.Metadata.Providers["mangadex"].AuthorRoles["artist"]; len(roles) == 0 {
		t.Fatal("expected sample author roles")
	}
}

func TestValidateDetectsInvalidValues(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*config.Config)
	}{
		{"unknown server type", func(c *config.Config) { c.MediaServer.Type = "plex" }},
		{"komga without password", func(c *config.Config) { c.MediaServer.Password = "" }},
		{"kavita without key", func(c *config.Config) { c.MediaServer.Type = "kavita" }},
		{"bad matching mode", func(c *config.Config) { c.Metadata.NameMatchingMode = "fuzzy" }},
		{"bad media type", func(c *config.Config) { c.Metadata.DefaultMediaType = "BOOK" }},
		{"bad reading direction", func(c *config.Config) { c.Metadata.PostProcessing.ReadingDirectionValue = "UP" }},
		{"no providers", func(c *config.Config) { c.Metadata.Providers = map[string]config.Provider{} }},
		{"zero workers", func(c *config.Config) { c.Jobs.Workers = 0 }},
		{"bad rate limit", func(c *config.Config) {
			c.Metadata.Providers["mangadex"] = config.Provider{Enabled: true, RateLimit: &config.RateLimit{}}
		}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			tt.mutate(&cfg)
			if err := cfg.Validate(); err == nil {
				t.Fatal("expected validation error")
			}
		})
	}

	cfg := validConfig()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("valid config rejected: %v", err)
	}
}
