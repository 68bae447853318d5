package jobs

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"runtime/debug"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/semaphore"

	"komf/internal/config"
	"komf/internal/logging"
)

// Work is the body of a job. It publishes progress through emit and returns
// the message stored on the finished job.
type Work func(ctx context.Context, emit func(Event)) (string, error)

// Options sizes a Tracker.
type Options struct {
	Workers    int
	BufferSize int
	Retention  time.Duration
}

// OptionsFromConfig converts the [jobs] configuration section.
func OptionsFromConfig(cfg config.Jobs) Options {
	return Options{
		Workers:    cfg.Workers,
		BufferSize: cfg.EventBufferSize,
		Retention:  time.Duration(cfg.StreamRetentionSeconds) * time.Second,
	}
}

// Option configures a Tracker.
type Option func(*Tracker)

// WithLogger attaches a logger.
func WithLogger(logger *slog.Logger) Option {
	return func(t *Tracker) {
		if logger != nil {
			t.logger = logger
		}
	}
}

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(t *Tracker) {
		if now != nil {
			t.now = now
		}
	}
}

// Tracker launches jobs on a bounded worker pool and owns their streams.
type Tracker struct {
	repo      Repository
	sem       *semaphore.Weighted
	buffer    int
	retention time.Duration
	logger    *slog.Logger
	now       func() time.Time

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu      sync.Mutex
	streams map[string]*EventStream
}

// NewTracker builds a Tracker persisting jobs to repo.
func NewTracker(repo Repository, opts Options, options ...Option) *Tracker {
	workers := opts.Workers
	if workers <= 0 {
		workers = 1
	}
	ctx, cancel := context.WithCancel(context.Background())
	t := &Tracker{
		repo:      repo,
		sem:       semaphore.NewWeighted(int64(workers)),
		buffer:    opts.BufferSize,
		retention: opts.Retention,
		logger:    logging.NewNop(),
		now:       time.Now,
		ctx:       ctx,
		cancel:    cancel,
		streams:   make(map[string]*EventStream),
	}
	for _, opt := range options {
		opt(t)
	}
	return t
}

// Launch persists a RUNNING job for seriesID and runs work in the
// background. It returns as soon as the job is recorded; cancelling ctx does
// not cancel the job.
func (t *Tracker) Launch(ctx context.Context, seriesID string, work Work) (Job, error) {
	if work == nil {
		return Job{}, errors.New("job work required")
	}
	if t.ctx.Err() != nil {
		return Job{}, ErrTrackerClosed
	}
	job := Job{
		ID:        uuid.NewString(),
		SeriesID:  seriesID,
		Status:    StatusRunning,
		StartedAt: t.now().UTC(),
	}
	if err := t.repo.SaveJob(ctx, job); err != nil {
		return Job{}, fmt.Errorf("save job: %w", err)
	}

	stream := NewEventStream(t.buffer)
	stream.now = t.now
	t.mu.Lock()
	t.streams[job.ID] = stream
	t.mu.Unlock()

	jobCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	jobCtx = logging.WithSeriesID(logging.WithJobID(jobCtx, job.ID), seriesID)
	stop := context.AfterFunc(t.ctx, cancel)

	t.wg.Add(1)
	go func() {
		defer t.wg.Done()
		defer stop()
		defer cancel()
		t.run(jobCtx, job, stream, work)
	}()
	return job, nil
}

func (t *Tracker) run(ctx context.Context, job Job, stream *EventStream, work Work) {
	logger := logging.WithContext(ctx, t.logger)
	var (
		message string
		err     error
	)
	defer func() {
		t.finish(logger, job, stream, message, err)
	}()
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("job panicked: %v", r)
			stream.Publish(ProcessingErrorEvent{Message: err.Error()})
			logger.Error("job panicked",
				logging.Any("panic", r),
				logging.String("stack", string(debug.Stack())),
				logging.String(logging.FieldEventType, "job_panic"),
			)
		}
	}()

	if err = t.sem.Acquire(ctx, 1); err != nil {
		err = fmt.Errorf("wait for worker: %w", err)
		return
	}
	defer t.sem.Release(1)

	logger.Debug("job started")
	message, err = work(ctx, stream.Publish)
}

func (t *Tracker) finish(logger *slog.Logger, job Job, stream *EventStream, message string, err error) {
	finished := t.now().UTC()
	job.FinishedAt = &finished
	job.Status = StatusCompleted
	job.Message = message
	if err != nil {
		job.Status = StatusFailed
		job.Message = err.Error()
	}

	if saveErr := t.repo.SaveJob(context.Background(), job); saveErr != nil {
		logging.WarnWithContext(logger, "failed to persist finished job", "job_persist_failed",
			logging.Error(saveErr),
		)
	}
	stream.Publish(CompletionEvent{})

	if err != nil {
		logger.Info("job failed", logging.Error(err), logging.String(logging.FieldEventType, "job_failed"))
	} else {
		logger.Info("job completed", logging.String("message", message), logging.String(logging.FieldEventType, "job_completed"))
	}

	if t.retention <= 0 {
		t.evict(job.ID, stream)
		return
	}
	time.AfterFunc(t.retention, func() { t.evict(job.ID, stream) })
}

func (t *Tracker) evict(id string, stream *EventStream) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.streams[id] == stream {
		delete(t.streams, id)
	}
}

// Stream returns the event stream of a running or recently finished job.
func (t *Tracker) Stream(id string) (*EventStream, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	stream, ok := t.streams[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrStreamNotFound, id)
	}
	return stream, nil
}

// Subscribe replays and follows the events of job id. The channel closes
// after the CompletionEvent.
func (t *Tracker) Subscribe(ctx context.Context, id string) (<-chan Record, error) {
	stream, err := t.Stream(id)
	if err != nil {
		return nil, err
	}
	return stream.Subscribe(ctx), nil
}

// Get returns a job record.
func (t *Tracker) Get(ctx context.Context, id string) (Job, error) {
	return t.repo.GetJob(ctx, id)
}

// List pages through job records.
func (t *Tracker) List(ctx context.Context, opts ListOptions) (Page, error) {
	return t.repo.ListJobs(ctx, opts)
}

// DeleteAll removes every job record and drops the streams of finished jobs.
func (t *Tracker) DeleteAll(ctx context.Context) error {
	if err := t.repo.DeleteAllJobs(ctx); err != nil {
		return err
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	for id, stream := range t.streams {
		if stream.Closed() {
			delete(t.streams, id)
		}
	}
	return nil
}

// Shutdown cancels running jobs and waits for them to finish or for ctx to
// end.
func (t *Tracker) Shutdown(ctx context.Context) error {
	t.cancel()
	done := make(chan struct{})
	go func() {
		t.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Wait blocks until every launched job has finished.
func (t *Tracker) Wait() {
	t.wg.Wait()
}
