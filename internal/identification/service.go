package identification

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"komf/internal/config"
	"komf/internal/jobs"
	"komf/internal/logging"
	"komf/internal/mediaserver"
	"komf/internal/metadata"
	"komf/internal/postprocess"
	"komf/internal/provider"
)

// JobRunner launches and observes background jobs; *jobs.Tracker is the
// production implementation.
type JobRunner interface {
	Launch(ctx context.Context, seriesID string, work jobs.Work) (jobs.Job, error)
	Subscribe(ctx context.Context, id string) (<-chan jobs.Record, error)
	Get(ctx context.Context, id string) (jobs.Job, error)
}

// Notifier announces finished work.
type Notifier interface {
	NotifySeriesMatched(ctx context.Context, title string, providerName string) error
	NotifyLibraryScanCompleted(ctx context.Context, libraryName string, processed, failed int) error
	NotifyError(ctx context.Context, err error, context string) error
}

// Dependencies wires a Service.
type Dependencies struct {
	Config    *config.Config
	Server    mediaserver.Client
	Updater   *mediaserver.Updater
	Providers *provider.Registry
	Matches   SeriesMatchRepository
	Jobs      JobRunner
	// Notifier is optional.
	Notifier Notifier
	Logger   *slog.Logger
}

// Service runs identify, match, reset and search operations.
type Service struct {
	cfg       *config.Config
	server    mediaserver.Client
	updater   *mediaserver.Updater
	providers *provider.Registry
	matches   SeriesMatchRepository
	jobs      JobRunner
	notifier  Notifier
	logger    *slog.Logger
	now       func() time.Time

	root   context.Context
	cancel context.CancelFunc
	scans  sync.WaitGroup
}

// NewService validates deps and builds a Service.
func NewService(deps Dependencies) (*Service, error) {
	switch {
	case deps.Config == nil:
		return nil, errors.New("identification: config required")
	case deps.Server == nil:
		return nil, errors.New("identification: media server client required")
	case deps.Updater == nil:
		return nil, errors.New("identification: metadata updater required")
	case deps.Providers == nil:
		return nil, errors.New("identification: provider registry required")
	case deps.Matches == nil:
		return nil, errors.New("identification: series match repository required")
	case deps.Jobs == nil:
		return nil, errors.New("identification: job runner required")
	}
	logger := deps.Logger
	if logger == nil {
		logger = logging.NewNop()
	}
	root, cancel := context.WithCancel(context.Background())
	return &Service{
		root:      root,
		cancel:    cancel,
		cfg:       deps.Config,
		server:    deps.Server,
		updater:   deps.Updater,
		providers: deps.Providers,
		matches:   deps.Matches,
		jobs:      deps.Jobs,
		notifier:  deps.Notifier,
		logger:    logging.NewComponentLogger(logger, "identification"),
		now:       time.Now,
	}, nil
}

// Providers returns the registered providers in priority order.
func (s *Service) Providers() []provider.Entry {
	return s.providers.Entries()
}

// GetLibrary looks up a media server library.
func (s *Service) GetLibrary(ctx context.Context, libraryID string) (mediaserver.Library, error) {
	return s.server.GetLibrary(ctx, libraryID)
}

// Shutdown stops background library scans after the series they are
// currently matching. It does not wait; call Wait for that.
func (s *Service) Shutdown() {
	s.cancel()
}

// Wait blocks until background library scans have finished.
func (s *Service) Wait() {
	s.scans.Wait()
}

func (s *Service) mergeOptions() metadata.MergeOptions {
	return metadata.MergeOptions{
		MergeTags:   s.cfg.Metadata.MergeTags,
		MergeGenres: s.cfg.Metadata.MergeGenres,
	}
}

func (s *Service) mediaType(libraryID string) string {
	return s.cfg.MediaTypeForLibrary(libraryID)
}

func (s *Service) postProcessor(libraryID string) *postprocess.Processor {
	return postprocess.New(postprocess.OptionsFromConfig(s.cfg.Metadata, s.mediaType(libraryID)))
}

// job wraps body so failures publish the matching error event before the
// tracker publishes the CompletionEvent.
func (s *Service) job(body jobs.Work) jobs.Work {
	return func(ctx context.Context, emit func(jobs.Event)) (string, error) {
		message, err := body(ctx, emit)
		if err == nil {
			return message, nil
		}
		var perr *ProviderError
		if errors.As(err, &perr) {
			emit(jobs.ProviderErrorEvent{Provider: string(perr.Provider), Message: perr.Err.Error()})
		} else {
			emit(jobs.ProcessingErrorEvent{Message: err.Error()})
		}
		logging.WarnWithContext(logging.WithContext(ctx, s.logger), "metadata job failed", "metadata_job_failed",
			logging.Error(err),
		)
		return message, err
	}
}
