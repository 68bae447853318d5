// Package ratelimit provides the per-provider admission control and HTTP
// retry policy shared by every metadata provider client.
//
// A Limiter caps requests at EventsPerInterval per Interval, either spacing
// permits evenly or allowing a burst up to the full window. Client wraps any
// HTTP doer, acquiring a permit before each attempt and retrying rate-limited
// and server-error responses with exponential backoff that honours
// Retry-After. Limiters are constructed explicitly and injected, so every
// caller of one provider shares the same permit stream.
package ratelimit
