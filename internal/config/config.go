package config

import (
	_ "embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/joho/godotenv"
	"github.com/pelletier/go-toml/v2"
)

//go:embed sample_config.toml
var sampleConfig string

// Paths contains directory and bind address configuration.
type Paths struct {
	DataDir  string `toml:"data_dir"`
	LogDir   string `toml:"log_dir"`
	APIBind  string `toml:"api_bind"`
	APIToken string `toml:"api_token"`
}

// Logging contains configuration for log output.
type Logging struct {
	Format string `toml:"format"`
	Level  string `toml:"level"`
}

// MediaServer selects and authenticates the media server metadata is written to.
type MediaServer struct {
	Type           string `toml:"type"`
	URL            string `toml:"url"`
	Username       string `toml:"username"`
	Password       string `toml:"password"`
	APIKey         string `toml:"api_key"`
	TimeoutSeconds int    `toml:"timeout_seconds"`
}

// PostProcessing controls the transformations applied to matched metadata
// before write-back.
type PostProcessing struct {
	SeriesTitle                     bool     `toml:"series_title"`
	SeriesTitleLanguage             string   `toml:"series_title_language"`
	FallbackToAltTitle              bool     `toml:"fallback_to_alt_title"`
	AlternativeSeriesTitles         bool     `toml:"alternative_series_titles"`
	AlternativeSeriesTitleLanguages []string `toml:"alternative_series_title_languages"`
	ScoreTag                        bool     `toml:"score_tag"`
	ReadingDirectionValue           string   `toml:"reading_direction_value"`
	LanguageValue                   string   `toml:"language_value"`
	OrderBooks                      bool     `toml:"order_books"`
}

// FieldIncludes toggles which fields a provider contributes. A nil entry means
// the field is included.
type FieldIncludes struct {
	Summary       *bool `toml:"summary"`
	Thumbnail     *bool `toml:"thumbnail"`
	Genres        *bool `toml:"genres"`
	Tags          *bool `toml:"tags"`
	Authors       *bool `toml:"authors"`
	Publisher     *bool `toml:"publisher"`
	ReleaseDate   *bool `toml:"release_date"`
	AgeRating     *bool `toml:"age_rating"`
	Links         *bool `toml:"links"`
	Score         *bool `toml:"score"`
	Books         *bool `toml:"books"`
	BookThumbnail *bool `toml:"book_thumbnail"`
}

// RateLimit overrides a provider's built-in request cap.
type RateLimit struct {
	IntervalSeconds   float64 `toml:"interval_seconds"`
	EventsPerInterval int     `toml:"events_per_interval"`
	AllowBurst        bool    `toml:"allow_burst"`
}

// Provider configures one metadata provider.
type Provider struct {
	Enabled          bool                `toml:"enabled"`
	Priority         int                 `toml:"priority"`
	NameMatchingMode string              `toml:"name_matching_mode"`
	BaseURL          string              `toml:"base_url"`
	RetryAttempts    int                 `toml:"retry_attempts"`
	Include          FieldIncludes       `toml:"include"`
	AuthorRoles      map[string][]string `toml:"author_roles"`
	RateLimit        *RateLimit          `toml:"rate_limit"`
}

// Metadata contains matching, aggregation and write-back behaviour.
type Metadata struct {
	NameMatchingMode    string              `toml:"name_matching_mode"`
	DefaultMediaType    string              `toml:"default_media_type"`
	LibraryMediaTypes   map[string]string   `toml:"library_media_types"`
	Aggregate           bool                `toml:"aggregate"`
	MergeTags           bool                `toml:"merge_tags"`
	MergeGenres         bool                `toml:"merge_genres"`
	UpdateSeriesTitle   bool                `toml:"update_series_title"`
	OverwriteThumbnails bool                `toml:"overwrite_thumbnails"`
	BookMetadata        bool                `toml:"book_metadata"`
	PostProcessing      PostProcessing      `toml:"post_processing"`
	Providers           map[string]Provider `toml:"providers"`
}

// Jobs controls the background job tracker.
type Jobs struct {
	Workers                int `toml:"workers"`
	EventBufferSize        int `toml:"event_buffer_size"`
	StreamRetentionSeconds int `toml:"stream_retention_seconds"`
}

// Notifications contains configuration for ntfy push notifications.
type Notifications struct {
	NtfyTopic      string `toml:"ntfy_topic"`
	RequestTimeout int    `toml:"request_timeout"`
	SeriesMatched  bool   `toml:"series_matched"`
	LibraryScan    bool   `toml:"library_scan"`
	Errors         bool   `toml:"errors"`
}

// Config encapsulates all configuration values for komf.
//
// Configuration sections by subsystem:
//   - Paths: data/log directories and API bind address
//   - Logging: log format and level
//   - MediaServer: Komga or Kavita connection
//   - Metadata: matching, aggregation, post-processing and providers
//   - Jobs: worker pool and event stream sizing
//   - Notifications: ntfy push notification settings
type Config struct {
	Paths         Paths         `toml:"paths"`
	Logging       Logging       `toml:"logging"`
	MediaServer   MediaServer   `toml:"media_server"`
	Metadata      Metadata      `toml:"metadata"`
	Jobs          Jobs          `toml:"jobs"`
	Notifications Notifications `toml:"notifications"`
}

// DefaultConfigPath returns the absolute path to the default configuration file location.
func DefaultConfigPath() (string, error) {
	return expandPath("~/.config/komf/config.toml")
}

// Load locates, parses, and validates a configuration file. A .env file next
// to the configuration is loaded first so its values act as environment
// fallbacks. The returned config has all path fields expanded.
func Load(path string) (*Config, string, bool, error) {
	cfg := Default()

	resolvedPath, exists, err := resolveConfigPath(path)
	if err != nil {
		return nil, "", false, err
	}
	if err := loadDotEnv(filepath.Join(filepath.Dir(resolvedPath), ".env")); err != nil {
		return nil, "", false, err
	}

	if exists {
		file, err := os.Open(resolvedPath)
		if err != nil {
			return nil, "", false, fmt.Errorf("open config: %w", err)
		}
		defer file.Close()

		// Provider tables replace the defaults wholesale when present.
		cfg.Metadata.Providers = nil
		decoder := toml.NewDecoder(file)
		if err := decoder.Decode(&cfg); err != nil {
			return nil, "", false, fmt.Errorf("parse config: %w", err)
		}
		if cfg.Metadata.Providers == nil {
			cfg.Metadata.Providers = defaultProviders()
		}
	}

	if err := cfg.normalize(); err != nil {
		return nil, "", false, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, "", false, err
	}
	return &cfg, resolvedPath, exists, nil
}

func loadDotEnv(path string) error {
	if _, err := os.Stat(path); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("stat env file: %w", err)
	}
	if err := godotenv.Load(path); err != nil {
		return fmt.Errorf("load env file %s: %w", path, err)
	}
	return nil
}

func resolveConfigPath(path string) (string, bool, error) {
	if path != "" {
		expanded, err := expandPath(path)
		if err != nil {
			return "", false, err
		}
		_, err = os.Stat(expanded)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return expanded, false, nil
			}
			return "", false, fmt.Errorf("stat config: %w", err)
		}
		return expanded, true, nil
	}

	defaultPath, err := DefaultConfigPath()
	if err != nil {
		return "", false, err
	}
	projectPath, err := filepath.Abs("komf.toml")
	if err != nil {
		return "", false, err
	}

	if info, err := os.Stat(defaultPath); err == nil && !info.IsDir() {
		return defaultPath, true, nil
	}
	if info, err := os.Stat(projectPath); err == nil && !info.IsDir() {
		return projectPath, true, nil
	}
	return defaultPath, false, nil
}

// EnsureDirectories creates the data and log directories.
func (c *Config) EnsureDirectories() error {
	for _, dir := range []string{c.Paths.DataDir, c.Paths.LogDir} {
		if strings.TrimSpace(dir) == "" {
			continue
		}
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create directory %q: %w", dir, err)
		}
	}
	return nil
}

// DatabasePath returns the sqlite database location.
func (c *Config) DatabasePath() string {
	return filepath.Join(c.Paths.DataDir, "komf.db")
}

// LockPath returns the daemon lock file location.
func (c *Config) LockPath() string {
	return filepath.Join(c.Paths.DataDir, "komf.lock")
}

// MediaTypeForLibrary returns the configured media type of a library, falling
// back to the default media type.
func (c *Config) MediaTypeForLibrary(libraryID string) string {
	if value, ok := c.Metadata.LibraryMediaTypes[libraryID]; ok && value != "" {
		return value
	}
	return c.Metadata.DefaultMediaType
}

// NameMatchingModeFor resolves the name matching mode of a provider, falling
// back to the library-wide default.
func (c *Config) NameMatchingModeFor(provider string) string {
	if p, ok := c.Metadata.Providers[provider]; ok && p.NameMatchingMode != "" {
		return p.NameMatchingMode
	}
	return c.Metadata.NameMatchingMode
}

// Enabled reports whether a field is included. Unset fields are included.
func (f FieldIncludes) Enabled(flag *bool) bool {
	return flag == nil || *flag
}

func expandPath(pathValue string) (string, error) {
	if pathValue == "" {
		return pathValue, nil
	}
	if strings.HasPrefix(pathValue, "~") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home directory: %w", err)
		}
		if pathValue == "~" {
			pathValue = home
		} else if len(pathValue) > 1 && (pathValue[1] == '/' || pathValue[1] == '\\') {
			pathValue = filepath.Join(home, pathValue[2:])
		}
	}
	cleaned := filepath.Clean(pathValue)
	absolute, err := filepath.Abs(cleaned)
	if err != nil {
		return "", fmt.Errorf("resolve absolute path for %q: %w", cleaned, err)
	}
	return absolute, nil
}

// ExpandPath exposes the repository path expansion rules for other packages.
func ExpandPath(pathValue string) (string, error) {
	return expandPath(pathValue)
}

// CreateSample writes a sample configuration file to the specified location.
func CreateSample(path string) error {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create config directory: %w", err)
		}
	}
	if err := os.WriteFile(path, []byte(sampleConfig), 0o644); err != nil {
		return fmt.Errorf("write sample config: %w", err)
	}
	return nil
}
