package identification

import (
	"context"
	"time"

	"komf/internal/provider"
)

// SeriesMatch is a provider series chosen for a media server series.
type SeriesMatch struct {
	SeriesID         string        `json:"seriesId"`
	Provider         provider.Name `json:"provider"`
	ProviderSeriesID string        `json:"providerSeriesId"`
	Edition          string        `json:"edition,omitempty"`
	CreatedAt        time.Time     `json:"createdAt"`
}

// SeriesMatchRepository persists sticky matches. Find returns nil without
// error when no match is stored.
type SeriesMatchRepository interface {
	FindSeriesMatch(ctx context.Context, seriesID string) (*SeriesMatch, error)
	SaveSeriesMatch(ctx context.Context, match SeriesMatch) error
	DeleteSeriesMatch(ctx context.Context, seriesID string) error
}
