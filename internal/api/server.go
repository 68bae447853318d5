package api

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"komf/internal/identification"
	"komf/internal/jobs"
	"komf/internal/logging"
	"komf/internal/mediaserver"
	"komf/internal/provider"
)

// MetadataService is the operation surface served over HTTP;
// *identification.Service is the production implementation.
type MetadataService interface {
	Identify(ctx context.Context, req identification.IdentifyRequest) (jobs.Job, error)
	Match(ctx context.Context, seriesID string) (jobs.Job, error)
	MatchLibrary(ctx context.Context, libraryID string) error
	ResetSeries(ctx context.Context, seriesID string) error
	ResetLibrary(ctx context.Context, libraryID string) (int, error)
	SearchSeries(ctx context.Context, name string) []provider.SearchResult
	GetLibrary(ctx context.Context, libraryID string) (mediaserver.Library, error)
	Providers() []provider.Entry
}

// JobService exposes job records and event streams; *jobs.Tracker is the
// production implementation.
type JobService interface {
	Get(ctx context.Context, id string) (jobs.Job, error)
	List(ctx context.Context, opts jobs.ListOptions) (jobs.Page, error)
	DeleteAll(ctx context.Context) error
	Subscribe(ctx context.Context, id string) (<-chan jobs.Record, error)
}

// Options wires a Handler.
type Options struct {
	Metadata MetadataService
	Jobs     JobService
	// Status reports daemon runtime information; optional.
	Status func(ctx context.Context) DaemonStatus
	// Token enables bearer authentication when non-empty.
	Token  string
	Logger *slog.Logger
}

type handler struct {
	metadata MetadataService
	jobs     JobService
	status   func(ctx context.Context) DaemonStatus
	logger   *slog.Logger
}

// NewHandler builds the HTTP API router.
func NewHandler(opts Options) (http.Handler, error) {
	if opts.Metadata == nil || opts.Jobs == nil {
		return nil, errors.New("api: metadata and job services required")
	}
	logger := opts.Logger
	if logger == nil {
		logger = logging.NewNop()
	}
	h := &handler{
		metadata: opts.Metadata,
		jobs:     opts.Jobs,
		status:   opts.Status,
		logger:   logging.NewComponentLogger(logger, "api"),
	}

	r := chi.NewRouter()
	r.Use(chimw.RequestID)
	r.Use(chimw.Recoverer)
	r.Use(h.requestLogger)
	r.Use(authMiddleware(opts.Token))

	r.Route("/api", func(r chi.Router) {
		r.Get("/status", h.handleStatus)
		r.Get("/providers", h.handleProviders)

		r.Get("/jobs", h.handleListJobs)
		r.Delete("/jobs", h.handleDeleteJobs)
		r.Get("/jobs/{id}", h.handleGetJob)
		r.Get("/jobs/{id}/events", h.handleJobEvents)
		r.Get("/jobs/{id}/ws", h.handleJobWebSocket)

		r.Route("/metadata", func(r chi.Router) {
			r.Get("/search", h.handleSearch)
			r.Post("/identify", h.handleIdentify)
			r.Post("/match/series/{id}", h.handleMatchSeries)
			r.Post("/match/library/{id}", h.handleMatchLibrary)
			r.Post("/reset/series/{id}", h.handleResetSeries)
			r.Post("/reset/library/{id}", h.handleResetLibrary)
		})
	})
	return r, nil
}

func (h *handler) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := chimw.NewWrapResponseWriter(w, r.ProtoMajor)
		ctx := logging.WithRequestID(r.Context(), chimw.GetReqID(r.Context()))
		next.ServeHTTP(ww, r.WithContext(ctx))
		logging.WithContext(ctx, h.logger).Debug("api request",
			logging.String("method", r.Method),
			logging.String("path", r.URL.Path),
			logging.Int("status", ww.Status()),
			logging.Duration("duration", time.Since(start)),
		)
	})
}

func (h *handler) handleStatus(w http.ResponseWriter, r *http.Request) {
	status := DaemonStatus{Running: true, Providers: FromProviderEntries(h.metadata.Providers())}
	if h.status != nil {
		status = h.status(r.Context())
	}
	h.writeJSON(w, http.StatusOK, status)
}

func (h *handler) handleProviders(w http.ResponseWriter, _ *http.Request) {
	h.writeJSON(w, http.StatusOK, FromProviderEntries(h.metadata.Providers()))
}

func (h *handler) handleListJobs(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	var opts jobs.ListOptions
	if value := strings.TrimSpace(query.Get("status")); value != "" {
		status, err := jobs.ParseStatus(value)
		if err != nil {
			h.writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		opts.Status = status
	}
	var err error
	if opts.Page, err = intParam(query.Get("page")); err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid page")
		return
	}
	if opts.PageSize, err = intParam(query.Get("pageSize")); err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid pageSize")
		return
	}
	page, err := h.jobs.List(r.Context(), opts)
	if err != nil {
		h.writeFailure(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, FromJobPage(page))
}

func intParam(value string) (int, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(value)
	if err != nil || n < 0 {
		return 0, errors.New("invalid integer")
	}
	return n, nil
}

func (h *handler) handleGetJob(w http.ResponseWriter, r *http.Request) {
	job, err := h.jobs.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.writeFailure(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, FromJob(job))
}

func (h *handler) handleDeleteJobs(w http.ResponseWriter, r *http.Request) {
	if err := h.jobs.DeleteAll(r.Context()); err != nil {
		h.writeFailure(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *handler) handleSearch(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	name := strings.TrimSpace(query.Get("name"))
	if name == "" {
		h.writeError(w, http.StatusBadRequest, "name is required")
		return
	}
	if libraryID := strings.TrimSpace(query.Get("libraryId")); libraryID != "" {
		if _, err := h.metadata.GetLibrary(r.Context(), libraryID); err != nil {
			h.writeFailure(w, err)
			return
		}
	}
	results := h.metadata.SearchSeries(r.Context(), name)
	if results == nil {
		results = []provider.SearchResult{}
	}
	h.writeJSON(w, http.StatusOK, SearchResponse{Results: results})
}

func (h *handler) handleIdentify(w http.ResponseWriter, r *http.Request) {
	var req identification.IdentifyRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	req.Provider = provider.ParseName(string(req.Provider))
	job, err := h.metadata.Identify(r.Context(), req)
	if err != nil {
		h.writeFailure(w, err)
		return
	}
	h.writeJSON(w, http.StatusAccepted, JobLaunchedResponse{JobID: job.ID})
}

func (h *handler) handleMatchSeries(w http.ResponseWriter, r *http.Request) {
	job, err := h.metadata.Match(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.writeFailure(w, err)
		return
	}
	h.writeJSON(w, http.StatusAccepted, JobLaunchedResponse{JobID: job.ID})
}

func (h *handler) handleMatchLibrary(w http.ResponseWriter, r *http.Request) {
	if err := h.metadata.MatchLibrary(r.Context(), chi.URLParam(r, "id")); err != nil {
		h.writeFailure(w, err)
		return
	}
	w.WriteHeader(http.StatusAccepted)
}

func (h *handler) handleResetSeries(w http.ResponseWriter, r *http.Request) {
	if err := h.metadata.ResetSeries(r.Context(), chi.URLParam(r, "id")); err != nil {
		h.writeFailure(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *handler) handleResetLibrary(w http.ResponseWriter, r *http.Request) {
	failed, err := h.metadata.ResetLibrary(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.writeFailure(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, ResetLibraryResponse{Failed: failed})
}

// statusForError maps service errors to HTTP status codes.
func statusForError(err error) int {
	switch {
	case errors.Is(err, jobs.ErrJobNotFound),
		errors.Is(err, jobs.ErrStreamNotFound),
		errors.Is(err, mediaserver.ErrNotFound),
		errors.Is(err, provider.ErrProviderNotFound):
		return http.StatusNotFound
	case errors.Is(err, identification.ErrInvalidRequest),
		errors.Is(err, provider.ErrProviderDisabled):
		return http.StatusBadRequest
	case errors.Is(err, jobs.ErrTrackerClosed):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func (h *handler) writeFailure(w http.ResponseWriter, err error) {
	status := statusForError(err)
	if status == http.StatusInternalServerError {
		logging.WarnWithContext(h.logger, "api request failed", "api_request_failed", logging.Error(err))
	}
	h.writeError(w, status, err.Error())
}

func (h *handler) writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if payload == nil {
		return
	}
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		h.logger.Error("failed to encode response", logging.Error(err))
	}
}

func (h *handler) writeError(w http.ResponseWriter, status int, message string) {
	h.writeJSON(w, status, errorResponse{Error: message})
}
