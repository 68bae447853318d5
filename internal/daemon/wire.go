package daemon

import (
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"komf/internal/config"
	"komf/internal/identification"
	"komf/internal/jobs"
	"komf/internal/logging"
	"komf/internal/mediaserver"
	"komf/internal/mediaserver/kavita"
	"komf/internal/mediaserver/komga"
	"komf/internal/notifications"
	"komf/internal/provider/catalog"
	"komf/internal/ratelimit"
	"komf/internal/store"
)

// providerTimeout bounds a single metadata provider request.
const providerTimeout = 30 * time.Second

// Build opens the store and wires every component described by cfg into a
// Daemon. The returned daemon owns the store; call Close to release it.
func Build(cfg *config.Config, logger *slog.Logger) (*Daemon, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config is required")
	}
	if logger == nil {
		logger = logging.NewNop()
	}
	if err := cfg.EnsureDirectories(); err != nil {
		return nil, fmt.Errorf("ensure directories: %w", err)
	}

	st, err := store.Open(cfg)
	if err != nil {
		return nil, fmt.Errorf("open store: %w", err)
	}
	d, err := build(cfg, st, logger)
	if err != nil {
		_ = st.Close()
		return nil, err
	}
	return d, nil
}

func build(cfg *config.Config, st *store.Store, logger *slog.Logger) (*Daemon, error) {
	serverHTTP := &http.Client{Timeout: time.Duration(cfg.MediaServer.TimeoutSeconds) * time.Second}
	server, err := NewMediaServerClient(cfg, serverHTTP, logger)
	if err != nil {
		return nil, err
	}

	registry, err := catalog.Build(cfg, &http.Client{Timeout: providerTimeout}, logger)
	if err != nil {
		return nil, fmt.Errorf("build providers: %w", err)
	}

	updater := mediaserver.NewUpdater(
		server,
		st,
		mediaserver.NewHTTPImageLoader(&http.Client{Timeout: providerTimeout}),
		mediaserver.UpdaterOptionsFromConfig(cfg),
		logger,
	)
	tracker := jobs.NewTracker(st, jobs.OptionsFromConfig(cfg.Jobs), jobs.WithLogger(logger))
	notifier := notifications.NewService(cfg)

	service, err := identification.NewService(identification.Dependencies{
		Config:    cfg,
		Server:    server,
		Updater:   updater,
		Providers: registry,
		Matches:   st,
		Jobs:      tracker,
		Notifier:  notifier,
		Logger:    logger,
	})
	if err != nil {
		return nil, fmt.Errorf("build identification service: %w", err)
	}

	return New(cfg, Components{
		Store:   st,
		Tracker: tracker,
		Service: service,
	}, logger)
}

// NewMediaServerClient builds the Komga or Kavita client selected by
// cfg.MediaServer.Type. Media server requests are retried but not rate
// limited.
func NewMediaServerClient(cfg *config.Config, doer ratelimit.Doer, logger *slog.Logger) (mediaserver.Client, error) {
	if logger == nil {
		logger = logging.NewNop()
	}
	client := ratelimit.NewClient(doer, ratelimit.NewLimiter(ratelimit.Spec{}), ratelimit.DefaultRetryPolicy(),
		ratelimit.WithLogger(logger))

	ms := cfg.MediaServer
	switch mediaserver.Type(strings.ToLower(strings.TrimSpace(ms.Type))) {
	case mediaserver.Komga:
		c, err := komga.New(client, ms.URL, ms.Username, ms.Password, komga.WithLogger(logger))
		if err != nil {
			return nil, fmt.Errorf("komga client: %w", err)
		}
		return c, nil
	case mediaserver.Kavita:
		c, err := kavita.New(client, ms.URL, ms.APIKey, kavita.WithLogger(logger))
		if err != nil {
			return nil, fmt.Errorf("kavita client: %w", err)
		}
		return c, nil
	default:
		return nil, fmt.Errorf("unsupported media server type %q", ms.Type)
	}
}
