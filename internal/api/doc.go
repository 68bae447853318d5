// Package api exposes the metadata service over HTTP and provides the Go
// client used by the CLI.
//
// # Key Types
//
// Handler: chi router serving job, provider, search, identify, match and
// reset endpoints, guarded by an optional bearer token.
//
// Client: typed HTTP client for the same endpoints, including a WebSocket
// follower for job events.
//
// JobResponse/JobPageResponse: transport representation of job records.
//
// DaemonStatus: runtime information reported by the daemon.
//
// # Event Streams
//
// Job events are available as server-sent events at /api/jobs/{id}/events and
// as WebSocket messages at /api/jobs/{id}/ws. Both replay the buffered history
// of the job, follow it live and end after the CompletionEvent. Each message
// is a jobs.Record encoded as {"seq","ts","type","data"}.
//
// # Design Notes
//
// DTOs use camelCase JSON tags. Timestamps use RFC3339 with milliseconds.
// Errors are returned as {"error": "..."} with 404 for unknown resources, 400
// for rejected requests and 500 otherwise.
package api
