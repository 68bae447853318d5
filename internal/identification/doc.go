// Package identification orchestrates metadata jobs for media server series.
//
// Identify fetches metadata from an explicitly chosen provider series and
// remembers the choice as a sticky SeriesMatch. Match reuses a sticky match
// when its provider is still enabled and otherwise tries every enabled
// provider in priority order with a list of search titles, stopping at the
// first match. Both return a job immediately and continue in the background:
// book association, optional aggregation of secondary providers, post
// processing and write-back all report progress on the job's event stream.
//
// A failing provider call during the primary match aborts the job with a
// ProviderErrorEvent. Secondary providers are best effort: their failures are
// logged and they are left out of the merge. Any other failure aborts the job
// with a ProcessingErrorEvent.
package identification
