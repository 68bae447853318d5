package daemon

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gofrs/flock"

	"komf/internal/api"
	"komf/internal/config"
	"komf/internal/identification"
	"komf/internal/jobs"
	"komf/internal/logging"
	"komf/internal/store"
)

// shutdownTimeout bounds how long Stop waits for running jobs.
const shutdownTimeout = 10 * time.Second

// Components are the long-lived services owned by a Daemon.
type Components struct {
	Store   *store.Store
	Tracker *jobs.Tracker
	Service *identification.Service
}

// Daemon coordinates the API server and background jobs and enforces
// single-instance execution.
type Daemon struct {
	cfg     *config.Config
	logger  *slog.Logger
	store   *store.Store
	tracker *jobs.Tracker
	service *identification.Service

	lockPath string
	lock     *flock.Flock
	api      *apiServer

	mu        sync.Mutex
	running   atomic.Bool
	stopped   bool
	startedAt time.Time
}

// New constructs a daemon from initialized components.
func New(cfg *config.Config, c Components, logger *slog.Logger) (*Daemon, error) {
	if cfg == nil || c.Store == nil || c.Tracker == nil || c.Service == nil {
		return nil, errors.New("daemon requires config, store, job tracker, and identification service")
	}
	if logger == nil {
		logger = logging.NewNop()
	}
	lockPath := cfg.LockPath()
	d := &Daemon{
		cfg:      cfg,
		logger:   logging.NewComponentLogger(logger, "daemon"),
		store:    c.Store,
		tracker:  c.Tracker,
		service:  c.Service,
		lockPath: lockPath,
		lock:     flock.New(lockPath),
	}
	handler, err := api.NewHandler(api.Options{
		Metadata: c.Service,
		Jobs:     c.Tracker,
		Status:   d.Status,
		Token:    cfg.Paths.APIToken,
		Logger:   logger,
	})
	if err != nil {
		return nil, fmt.Errorf("build api handler: %w", err)
	}
	d.api = newAPIServer(cfg.Paths.APIBind, handler, logger)
	return d, nil
}

// Start acquires the daemon lock, fails jobs interrupted by a previous
// process and starts serving the API.
func (d *Daemon) Start(ctx context.Context) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.running.Load() {
		return errors.New("daemon already running")
	}
	if d.stopped {
		return errors.New("daemon already stopped")
	}

	ok, err := d.lock.TryLock()
	if err != nil {
		return fmt.Errorf("acquire lock: %w", err)
	}
	if !ok {
		return errors.New("another komf daemon instance is already running")
	}

	interrupted, err := d.store.FailInterruptedJobs(ctx)
	if err != nil {
		_ = d.lock.Unlock()
		return fmt.Errorf("fail interrupted jobs: %w", err)
	}
	if interrupted > 0 {
		logging.WarnWithContext(d.logger, "jobs interrupted by previous shutdown", "jobs_interrupted",
			logging.Int64("count", interrupted),
			logging.String(logging.FieldImpact, "interrupted jobs marked failed"),
		)
	}

	if err := d.api.start(); err != nil {
		_ = d.lock.Unlock()
		return err
	}

	d.startedAt = time.Now()
	d.running.Store(true)
	d.logger.Info("komf daemon started",
		logging.String("lock", d.lockPath),
		logging.String("api", d.api.address()),
		logging.String(logging.FieldEventType, "daemon_started"),
	)
	return nil
}

// Stop cancels running jobs, stops the API server and releases the daemon
// lock. A stopped daemon cannot be restarted.
func (d *Daemon) Stop() {
	d.mu.Lock()
	defer d.mu.Unlock()
	if !d.running.Load() {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	d.service.Shutdown()
	if err := d.tracker.Shutdown(ctx); err != nil {
		logging.WarnWithContext(d.logger, "jobs did not stop in time", "jobs_shutdown_timeout",
			logging.Error(err),
			logging.String(logging.FieldImpact, "unfinished jobs are failed on next start"),
		)
	}
	scans := make(chan struct{})
	go func() {
		d.service.Wait()
		close(scans)
	}()
	select {
	case <-scans:
	case <-ctx.Done():
	}
	d.api.stop()

	if err := d.lock.Unlock(); err != nil {
		d.logger.Warn("failed to release daemon lock", logging.Error(err))
	}
	d.running.Store(false)
	d.stopped = true
	d.logger.Info("komf daemon stopped", logging.String(logging.FieldEventType, "daemon_stopped"))
}

// Close releases resources held by the daemon.
func (d *Daemon) Close() error {
	d.Stop()
	if d.store != nil {
		return d.store.Close()
	}
	return nil
}

// APIAddress returns the address the API listens on, or "" when not started.
func (d *Daemon) APIAddress() string {
	return d.api.address()
}

// Status returns the current daemon status.
func (d *Daemon) Status(ctx context.Context) api.DaemonStatus {
	status := api.DaemonStatus{
		Running:         d.running.Load(),
		PID:             os.Getpid(),
		DatabasePath:    d.store.Path(),
		LockFilePath:    d.lockPath,
		MediaServer:     d.cfg.MediaServer.Type,
		MediaServerURL:  d.cfg.MediaServer.URL,
		Aggregate:       d.cfg.Metadata.Aggregate,
		Providers:       api.FromProviderEntries(d.service.Providers()),
		NotificationsOn: strings.TrimSpace(d.cfg.Notifications.NtfyTopic) != "",
	}
	if status.Running {
		status.StartedAt = d.startedAt.UTC().Format(time.RFC3339)
	}
	page, err := d.store.ListJobs(ctx, jobs.ListOptions{Status: jobs.StatusRunning, PageSize: 1})
	if err != nil {
		d.logger.Warn("count running jobs", logging.Error(err))
	} else {
		status.RunningJobs = page.TotalElements
	}
	return status
}
