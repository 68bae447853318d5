package daemon

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"

	"komf/internal/config"
	"komf/internal/logging"
)

// RunOptions configures daemon process runtime behavior.
type RunOptions struct {
	// LogLevel overrides the configured log level when set.
	LogLevel string
}

// Run starts the komf daemon and blocks until ctx ends or the process
// receives SIGINT or SIGTERM.
func Run(cmdCtx context.Context, cfg *config.Config, opts RunOptions) error {
	if cfg == nil {
		return fmt.Errorf("config is required")
	}

	signalCtx, cancel := signal.NotifyContext(cmdCtx, syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if level := strings.TrimSpace(opts.LogLevel); level != "" {
		cfg.Logging.Level = strings.ToLower(level)
	}
	logger, err := logging.NewFromConfig(cfg)
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}
	logConfigSnapshot(logger, cfg)

	d, err := Build(cfg, logger)
	if err != nil {
		logger.Error("build daemon", logging.Error(err))
		return err
	}
	defer d.Close()

	if err := d.Start(signalCtx); err != nil {
		logger.Error("daemon start failed",
			logging.Error(err),
			logging.String(logging.FieldEventType, "daemon_start_failed"),
			logging.String(logging.FieldErrorHint, "check the lock file, api bind address and database access"),
		)
		return err
	}

	pidPath := filepath.Join(cfg.Paths.DataDir, "komf.pid")
	if err := writePIDFile(pidPath); err != nil {
		logging.WarnWithContext(logger, "write pid file", "pid_file_failed",
			logging.Error(err),
			logging.String(logging.FieldImpact, "status tooling cannot read the daemon pid"),
		)
	}
	defer os.Remove(pidPath)

	<-signalCtx.Done()
	logger.Info("komf daemon shutting down")
	return nil
}

func writePIDFile(path string) error {
	if path == "" {
		return nil
	}
	value := strconv.Itoa(os.Getpid()) + "\n"
	return os.WriteFile(path, []byte(value), 0o644)
}

func logConfigSnapshot(logger *slog.Logger, cfg *config.Config) {
	enabled := 0
	for _, p := range cfg.Metadata.Providers {
		if p.Enabled {
			enabled++
		}
	}
	logger.Info("configuration snapshot",
		logging.String(logging.FieldEventType, "config_snapshot"),
		logging.String("media_server", cfg.MediaServer.Type),
		logging.String("media_server_url", cfg.MediaServer.URL),
		logging.Bool("api_token_present", strings.TrimSpace(cfg.Paths.APIToken) != ""),
		logging.Int("providers_enabled", enabled),
		logging.Bool("aggregate", cfg.Metadata.Aggregate),
		logging.Int("workers", cfg.Jobs.Workers),
		logging.Bool("notifications", strings.TrimSpace(cfg.Notifications.NtfyTopic) != ""),
	)
}
