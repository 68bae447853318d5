package api

import "komf/internal/provider"

// dateTimeFormat is used for RFC3339 timestamps in API payloads.
const dateTimeFormat = "2006-01-02T15:04:05.000Z07:00"

// JobResponse describes a metadata job in a transport-friendly format.
type JobResponse struct {
	ID         string `json:"id"`
	SeriesID   string `json:"seriesId"`
	Status     string `json:"status"`
	Message    string `json:"message,omitempty"`
	StartedAt  string `json:"startedAt,omitempty"`
	FinishedAt string `json:"finishedAt,omitempty"`
}

// JobPageResponse is one page of job records.
type JobPageResponse struct {
	Content       []JobResponse `json:"content"`
	Page          int           `json:"page"`
	TotalPages    int           `json:"totalPages"`
	TotalElements int           `json:"totalElements"`
}

// JobLaunchedResponse reports the job started by a match or identify call.
type JobLaunchedResponse struct {
	JobID string `json:"jobId"`
}

// ResetLibraryResponse reports how many series could not be reset.
type ResetLibraryResponse struct {
	Failed int `json:"failed"`
}

// ProviderInfo describes a registered metadata provider.
type ProviderInfo struct {
	Name     string `json:"name"`
	Priority int    `json:"priority"`
	Enabled  bool   `json:"enabled"`
}

// SearchResponse wraps provider search results.
type SearchResponse struct {
	Results []provider.SearchResult `json:"results"`
}

// DaemonStatus aggregates daemon runtime information for API consumers.
type DaemonStatus struct {
	Running         bool           `json:"running"`
	PID             int            `json:"pid"`
	StartedAt       string         `json:"startedAt,omitempty"`
	DatabasePath    string         `json:"databasePath"`
	LockFilePath    string         `json:"lockFilePath"`
	MediaServer     string         `json:"mediaServer"`
	MediaServerURL  string         `json:"mediaServerUrl"`
	Aggregate       bool           `json:"aggregate"`
	RunningJobs     int            `json:"runningJobs"`
	Providers       []ProviderInfo `json:"providers"`
	NotificationsOn bool           `json:"notificationsEnabled"`
}

type errorResponse struct {
	Error string `json:"error"`
}
