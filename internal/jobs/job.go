package jobs

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
)

// Status represents the lifecycle of a metadata job.
type Status string

const (
	StatusRunning   Status = "RUNNING"
	StatusFailed    Status = "FAILED"
	StatusCompleted Status = "COMPLETED"
)

// InterruptedMessage is stored on jobs left running by a stopped process.
const InterruptedMessage = "interrupted"

var (
	// ErrJobNotFound is returned for unknown job ids.
	ErrJobNotFound = errors.New("job not found")
	// ErrStreamNotFound is returned when no event stream exists for a job id.
	ErrStreamNotFound = errors.New("job event stream not found")
	// ErrTrackerClosed is returned by Launch after Shutdown.
	ErrTrackerClosed = errors.New("job tracker is shut down")
)

// ParseStatus converts a user supplied status, case-insensitively.
func ParseStatus(value string) (Status, error) {
	status := Status(strings.ToUpper(strings.TrimSpace(value)))
	switch status {
	case StatusRunning, StatusFailed, StatusCompleted:
		return status, nil
	}
	return "", fmt.Errorf("unknown job status %q", value)
}

// Terminal reports whether s is a final status.
func (s Status) Terminal() bool {
	return s == StatusFailed || s == StatusCompleted
}

// Job is the persisted record of one identify or match run.
type Job struct {
	ID         string     `json:"id"`
	SeriesID   string     `json:"seriesId"`
	Status     Status     `json:"status"`
	Message    string     `json:"message,omitempty"`
	StartedAt  time.Time  `json:"startedAt"`
	FinishedAt *time.Time `json:"finishedAt,omitempty"`
}

// ListOptions filters and pages a job listing. Page is zero based.
type ListOptions struct {
	Status   Status
	Page     int
	PageSize int
}

// Page is one page of jobs, newest first.
type Page struct {
	Content       []Job `json:"content"`
	Page          int   `json:"page"`
	TotalPages    int   `json:"totalPages"`
	TotalElements int   `json:"totalElements"`
}

// Repository persists job records.
type Repository interface {
	SaveJob(ctx context.Context, job Job) error
	GetJob(ctx context.Context, id string) (Job, error)
	ListJobs(ctx context.Context, opts ListOptions) (Page, error)
	DeleteAllJobs(ctx context.Context) error
}
