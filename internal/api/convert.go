package api

import (
	"komf/internal/jobs"
	"komf/internal/provider"
)

// FromJob converts a job record to its API representation.
func FromJob(job jobs.Job) JobResponse {
	dto := JobResponse{
		ID:       job.ID,
		SeriesID: job.SeriesID,
		Status:   string(job.Status),
		Message:  job.Message,
	}
	if !job.StartedAt.IsZero() {
		dto.StartedAt = job.StartedAt.UTC().Format(dateTimeFormat)
	}
	if job.FinishedAt != nil && !job.FinishedAt.IsZero() {
		dto.FinishedAt = job.FinishedAt.UTC().Format(dateTimeFormat)
	}
	return dto
}

// FromJobPage converts a page of job records. Content is never nil.
func FromJobPage(page jobs.Page) JobPageResponse {
	content := make([]JobResponse, 0, len(page.Content))
	for _, job := range page.Content {
		content = append(content, FromJob(job))
	}
	return JobPageResponse{
		Content:       content,
		Page:          page.Page,
		TotalPages:    page.TotalPages,
		TotalElements: page.TotalElements,
	}
}

// FromProviderEntries converts registry entries, keeping their priority
// order.
func FromProviderEntries(entries []provider.Entry) []ProviderInfo {
	out := make([]ProviderInfo, 0, len(entries))
	for _, e := range entries {
		out = append(out, ProviderInfo{
			Name:     string(e.Provider.Name()),
			Priority: e.Priority,
			Enabled:  e.Enabled,
		})
	}
	return out
}
