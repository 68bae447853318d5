package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"komf/internal/jobs"
)

const (
	defaultPageSize = 20
	maxPageSize     = 500
)

var _ jobs.Repository = (*Store)(nil)

const jobColumns = `id, series_id, status, message, started_at, finished_at`

// SaveJob inserts or replaces a job record.
func (s *Store) SaveJob(ctx context.Context, job jobs.Job) error {
	_, err := s.exec(ctx,
		`INSERT INTO metadata_jobs (`+jobColumns+`) VALUES (?, ?, ?, ?, ?, ?)
         ON CONFLICT(id) DO UPDATE SET
             series_id = excluded.series_id, status = excluded.status, message = excluded.message,
             started_at = excluded.started_at, finished_at = excluded.finished_at`,
		job.ID,
		job.SeriesID,
		job.Status,
		nullableString(job.Message),
		formatTime(job.StartedAt),
		nullableTime(job.FinishedAt),
	)
	if err != nil {
		return fmt.Errorf("save job %s: %w", job.ID, err)
	}
	return nil
}

// GetJob returns a job by id or jobs.ErrJobNotFound.
func (s *Store) GetJob(ctx context.Context, id string) (jobs.Job, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+jobColumns+` FROM metadata_jobs WHERE id = ?`, id)
	job, err := scanJob(row)
	if errors.Is(err, sql.ErrNoRows) {
		return jobs.Job{}, fmt.Errorf("%w: %s", jobs.ErrJobNotFound, id)
	}
	if err != nil {
		return jobs.Job{}, fmt.Errorf("get job: %w", err)
	}
	return job, nil
}

// ListJobs pages through jobs, newest first, optionally filtered by status.
func (s *Store) ListJobs(ctx context.Context, opts jobs.ListOptions) (jobs.Page, error) {
	size := opts.PageSize
	if size <= 0 {
		size = defaultPageSize
	}
	size = min(size, maxPageSize)
	page := max(opts.Page, 0)

	where := ""
	var args []any
	if opts.Status != "" {
		where = ` WHERE status = ?`
		args = append(args, opts.Status)
	}

	var total int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(1) FROM metadata_jobs`+where, args...).Scan(&total); err != nil {
		return jobs.Page{}, fmt.Errorf("count jobs: %w", err)
	}

	query := `SELECT ` + jobColumns + ` FROM metadata_jobs` + where + ` ORDER BY started_at DESC, id LIMIT ? OFFSET ?`
	rows, err := s.db.QueryContext(ctx, query, append(args, size, page*size)...)
	if err != nil {
		return jobs.Page{}, fmt.Errorf("list jobs: %w", err)
	}
	defer rows.Close()

	result := jobs.Page{
		Content:       []jobs.Job{},
		Page:          page,
		TotalPages:    (total + size - 1) / size,
		TotalElements: total,
	}
	for rows.Next() {
		job, err := scanJob(rows)
		if err != nil {
			return jobs.Page{}, err
		}
		result.Content = append(result.Content, job)
	}
	return result, rows.Err()
}

// DeleteAllJobs removes every job record.
func (s *Store) DeleteAllJobs(ctx context.Context) error {
	if _, err := s.exec(ctx, `DELETE FROM metadata_jobs`); err != nil {
		return fmt.Errorf("delete jobs: %w", err)
	}
	return nil
}

// FailInterruptedJobs marks jobs left RUNNING by a previous process as
// FAILED and returns how many were updated.
func (s *Store) FailInterruptedJobs(ctx context.Context) (int64, error) {
	res, err := s.exec(ctx,
		`UPDATE metadata_jobs SET status = ?, message = ?, finished_at = ? WHERE status = ?`,
		jobs.StatusFailed,
		jobs.InterruptedMessage,
		formatTime(s.now()),
		jobs.StatusRunning,
	)
	if err != nil {
		return 0, fmt.Errorf("fail interrupted jobs: %w", err)
	}
	return res.RowsAffected()
}

func scanJob(scanner interface{ Scan(dest ...any) error }) (jobs.Job, error) {
	var (
		job        jobs.Job
		message    sql.NullString
		startedAt  string
		finishedAt sql.NullString
	)
	if err := scanner.Scan(&job.ID, &job.SeriesID, &job.Status, &message, &startedAt, &finishedAt); err != nil {
		return jobs.Job{}, err
	}
	job.Message = message.String
	started, err := parseTime(startedAt)
	if err != nil {
		return jobs.Job{}, err
	}
	job.StartedAt = started
	if finishedAt.Valid {
		finished, err := parseTime(finishedAt.String)
		if err != nil {
			return jobs.Job{}, err
		}
		job.FinishedAt = &finished
	}
	return job, nil
}
