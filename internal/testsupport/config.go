package testsupport

import (
	"path/filepath"
	"testing"

	"komf/internal/config"
)

// ConfigOption allows callers to customize the generated test configuration.
type ConfigOption func(*configBuilder)

type configBuilder struct {
	t       testing.TB
	baseDir string
	cfg     *config.Config
}

// NewConfig produces a config seeded with unique temp directories per test.
// It defaults common fields and applies any provided options.
func NewConfig(t testing.TB, opts ...ConfigOption) *config.Config {
	t.Helper()

	base := t.TempDir()
	cfgVal := config.Default()
	cfgVal.Paths.DataDir = filepath.Join(base, "data")
	cfgVal.Paths.LogDir = filepath.Join(base, "logs")
	cfgVal.Paths.APIBind = "127.0.0.1:0"
	cfgVal.MediaServer.URL = "http://komga.test"
	cfgVal.MediaServer.Username = "user"
	cfgVal.MediaServer.Password = "pass"

	builder := &configBuilder{
		t:       t,
		baseDir: base,
		cfg:     &cfgVal,
	}

	for _, opt := range opts {
		opt(builder)
	}

	return builder.cfg
}

// WithProvider sets (or replaces) a provider entry.
func WithProvider(name string, provider config.Provider) ConfigOption {
	return func(b *configBuilder) {
		if b.cfg.Metadata.Providers == nil {
			b.cfg.Metadata.Providers = map[string]config.Provider{}
		}
		b.cfg.Metadata.Providers[name] = provider
	}
}

// WithAggregation enables aggregation from secondary providers.
func WithAggregation() ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Metadata.Aggregate = true
	}
}

// WithAPIToken sets the API bearer token.
func WithAPIToken(token string) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Paths.APIToken = token
	}
}

// WithMediaServer points the config at a media server URL.
func WithMediaServer(kind, url string) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.MediaServer.Type = kind
		b.cfg.MediaServer.URL = url
	}
}

// BaseDir returns the root temp directory used by the builder.
func BaseDir(cfg *config.Config) string {
	return filepath.Dir(cfg.Paths.DataDir)
}
