// Package provider defines the contract every metadata source implements and
// the registry that orders enabled sources by priority.
//
// Providers map their native records into the shared metadata model before
// returning them, applying the configured field include flags and author role
// mapping. MatchSeriesMetadata returns (nil, nil) when no candidate is similar
// enough; errors are reserved for transport and parsing failures.
//
// Concrete sources live in sub-packages (mangadex, anilist); the catalog
// sub-package builds a Registry from configuration, constructing one rate
// limiter per source.
package provider
