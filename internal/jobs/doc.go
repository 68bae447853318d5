// Package jobs tracks background metadata jobs and their event streams.
//
// A Tracker launches each job body on a bounded worker pool and returns the
// job record immediately. Progress is published to a per-job EventStream: a
// bounded replay buffer that drops the oldest event when full, so producers
// never block and late subscribers still see recent history. Every job
// stream ends with exactly one CompletionEvent, whether the body succeeds,
// fails or panics. Finished streams stay subscribable for a retention period
// and are evicted afterwards.
//
// Job records are persisted through a Repository; internal/store provides
// the sqlite implementation.
package jobs
