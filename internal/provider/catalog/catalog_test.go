package catalog_test

import (
	"errors"
	"log/slog"
	"testing"
	"time"

	"komf/internal/config"
	"komf/internal/namematch"
	"komf/internal/provider"
	"komf/internal/provider/catalog"
	"komf/internal/ratelimit"
)

func TestBuildOrdersAndFiltersProviders(t *testing.T) {
	cfg := config.Default()
	cfg.Metadata.Providers = map[string]config.Provider{
		"mangadex": {Enabled: true, Priority: 20},
		"anilist":  {Enabled: true, Priority: 10},
		"unknown":  {Enabled: true, Priority: 1},
	}

	registry, err := catalog.Build(&cfg, nil, nil)
	if err != nil {
		t.Fatalf("Build returned error: %v", err)
	}
	enabled := registry.Enabled()
	if len(enabled) != 2 || enabled[0].Name() != "anilist" || enabled[1].Name() != "mangadex" {
		t.Fatalf("unexpected provider order: %v", enabled)
	}
}

type recordingProvider struct {
	provider.Provider
	name     provider.Name
	settings provider.Settings
	limiter  *ratelimit.Limiter
}

func (r *recordingProvider) Name() provider.Name { return r.name }

func recordingFactory(name provider.Name, built map[provider.Name]*recordingProvider) catalog.Factory {
	return catalog.Factory{
		DefaultRateLimit: ratelimit.Spec{Interval: time.Second, EventsPerInterval: 1},
		New: func(client *ratelimit.Client, _ config.Provider, settings provider.Settings, _ *slog.Logger) (provider.Provider, error) {
			p := &recordingProvider{name: name, settings: settings, limiter: client.Limiter()}
			built[name] = p
			return p, nil
		},
	}
}

func TestBuildWithResolvesSettingsAndLimiters(t *testing.T) {
	cfg := config.Default()
	cfg.Metadata.NameMatchingMode = "closest_match"
	no := false
	cfg.Metadata.Providers = map[string]config.Provider{
		"fake": {
			Enabled:          true,
			NameMatchingMode: "exact",
			Include:          config.FieldIncludes{Summary: &no},
			RateLimit:        &config.RateLimit{IntervalSeconds: 10, EventsPerInterval: 10},
		},
		"other": {Enabled: false},
	}

	built := map[provider.Name]*recordingProvider{}
	factories := map[provider.Name]catalog.Factory{
		"fake":  recordingFactory("fake", built),
		"other": recordingFactory("other", built),
	}

	registry, err := catalog.BuildWith(&cfg, nil, nil, factories)
	if err != nil {
		t.Fatalf("BuildWith returned error: %v", err)
	}
	fake := built["fake"]
	if fake.settings.Matcher.Mode() != namematch.Exact {
		t.Fatalf("expected provider override mode exact, got %s", fake.settings.Matcher.Mode())
	}
	if built["other"].settings.Matcher.Mode() != namematch.ClosestMatch {
		t.Fatalf("expected library default mode, got %s", built["other"].settings.Matcher.Mode())
	}
	if fake.settings.Fields.Summary || !fake.settings.Fields.Thumbnail {
		t.Fatalf("unexpected fields: %+v", fake.settings.Fields)
	}
	spec := fake.limiter.Spec()
	if spec.Interval != 10*time.Second || spec.EventsPerInterval != 10 {
		t.Fatalf("unexpected limiter spec: %+v", spec)
	}
	if built["other"].limiter.Spec().Interval != time.Second {
		t.Fatalf("expected default spec, got %+v", built["other"].limiter.Spec())
	}
	if fake.limiter == built["other"].limiter {
		t.Fatal("providers must not share a limiter")
	}
	if _, err := registry.Get("other"); !errors.Is(err, provider.ErrProviderDisabled) {
		t.Fatalf("expected disabled provider, got %v", err)
	}
}

func TestRateLimitSpec(t *testing.T) {
	def := ratelimit.Spec{Interval: time.Second, EventsPerInterval: 5}
	if got := catalog.RateLimitSpec(def, nil); got != def {
		t.Fatalf("expected default, got %+v", got)
	}
	got := catalog.RateLimitSpec(def, &config.RateLimit{IntervalSeconds: 0.5, EventsPerInterval: 2, AllowBurst: true})
	if got.Interval != 500*time.Millisecond || got.EventsPerInterval != 2 || !got.AllowBurst {
		t.Fatalf("unexpected override: %+v", got)
	}
}
