// Package catalog builds the provider registry from configuration. Each
// provider gets its own limiter and retrying HTTP client, shared by every
// caller of that provider.
package catalog

import (
	"fmt"
	"log/slog"
	"net/http"
	"sort"
	"time"

	"komf/internal/config"
	"komf/internal/logging"
	"komf/internal/namematch"
	"komf/internal/provider"
	"komf/internal/provider/anilist"
	"komf/internal/provider/mangadex"
	"komf/internal/ratelimit"
)

// Factory constructs one provider from its resolved dependencies.
type Factory struct {
	DefaultRateLimit ratelimit.Spec
	// TooManyRequests lists provider-specific throttling status codes.
	TooManyRequests []int
	New             func(client *ratelimit.Client, cfg config.Provider, settings provider.Settings, logger *slog.Logger) (provider.Provider, error)
}

// Factories returns the built-in providers keyed by configuration name.
func Factories() map[provider.Name]Factory {
	return map[provider.Name]Factory{
		mangadex.Name: {
			DefaultRateLimit: mangadex.DefaultRateLimit,
			New: func(client *ratelimit.Client, cfg config.Provider, settings provider.Settings, logger *slog.Logger) (provider.Provider, error) {
				return mangadex.New(client,
					mangadex.WithBaseURL(cfg.BaseURL),
					mangadex.WithSettings(settings),
					mangadex.WithLogger(logger),
				)
			},
		},
		anilist.Name: {
			DefaultRateLimit: anilist.DefaultRateLimit,
			New: func(client *ratelimit.Client, cfg config.Provider, settings provider.Settings, logger *slog.Logger) (provider.Provider, error) {
				return anilist.New(client,
					anilist.WithBaseURL(cfg.BaseURL),
					anilist.WithSettings(settings),
					anilist.WithLogger(logger),
				)
			},
		},
	}
}

// Build constructs every configured provider with a known factory. Unknown
// provider names are logged and skipped.
func Build(cfg *config.Config, doer ratelimit.Doer, logger *slog.Logger) (*provider.Registry, error) {
	return BuildWith(cfg, doer, logger, Factories())
}

// BuildWith is Build with an explicit factory set.
func BuildWith(cfg *config.Config, doer ratelimit.Doer, logger *slog.Logger, factories map[provider.Name]Factory) (*provider.Registry, error) {
	if cfg == nil {
		return nil, fmt.Errorf("build providers: config is nil")
	}
	if logger == nil {
		logger = logging.NewNop()
	}
	if doer == nil {
		doer = &http.Client{Timeout: 30 * time.Second}
	}

	names := make([]string, 0, len(cfg.Metadata.Providers))
	for name := range cfg.Metadata.Providers {
		names = append(names, name)
	}
	sort.Strings(names)

	entries := make([]provider.Entry, 0, len(names))
	for _, key := range names {
		pc := cfg.Metadata.Providers[key]
		name := provider.ParseName(key)
		factory, ok := factories[name]
		if !ok {
			logging.WarnWithContext(logger, "unknown provider in configuration", "provider_unknown",
				logging.String(logging.FieldProvider, key),
				logging.String(logging.FieldImpact, "provider ignored"),
			)
			continue
		}

		mode, err := namematch.ParseMode(cfg.NameMatchingModeFor(key))
		if err != nil {
			return nil, fmt.Errorf("provider %s: %w", key, err)
		}
		settings := provider.Settings{
			Matcher: namematch.New(mode),
			Fields:  provider.FieldsFromConfig(pc.Include),
			Roles:   provider.RoleMappingFromConfig(pc.AuthorRoles),
		}

		spec := RateLimitSpec(factory.DefaultRateLimit, pc.RateLimit)
		policy := ratelimit.DefaultRetryPolicy()
		if pc.RetryAttempts > 0 {
			policy.MaxRetries = pc.RetryAttempts
		}
		policy.TooManyRequests = factory.TooManyRequests

		providerLogger := logger.With(logging.String(logging.FieldProvider, string(name)))
		client := ratelimit.NewClient(doer, ratelimit.NewLimiter(spec), policy, ratelimit.WithLogger(providerLogger))
		p, err := factory.New(client, pc, settings, providerLogger)
		if err != nil {
			return nil, fmt.Errorf("provider %s: %w", key, err)
		}
		entries = append(entries, provider.Entry{Provider: p, Priority: pc.Priority, Enabled: pc.Enabled})

		logger.Debug("provider configured",
			logging.String(logging.FieldProvider, string(name)),
			logging.Bool("enabled", pc.Enabled),
			logging.Int("priority", pc.Priority),
			logging.String("name_matching_mode", string(mode)),
			logging.String("rate_limit", spec.String()),
		)
	}
	return provider.NewRegistry(entries...), nil
}

// RateLimitSpec applies a configured override to a provider's default cap.
func RateLimitSpec(def ratelimit.Spec, override *config.RateLimit) ratelimit.Spec {
	if override == nil {
		return def
	}
	return ratelimit.Spec{
		Interval:          time.Duration(override.IntervalSeconds * float64(time.Second)),
		EventsPerInterval: override.EventsPerInterval,
		AllowBurst:        override.AllowBurst,
	}
}
