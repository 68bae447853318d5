package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"komf/internal/identification"
	"komf/internal/provider"
)

var _ identification.SeriesMatchRepository = (*Store)(nil)

// FindSeriesMatch returns the sticky match of a series, nil when none.
func (s *Store) FindSeriesMatch(ctx context.Context, seriesID string) (*identification.SeriesMatch, error) {
	var (
		match     identification.SeriesMatch
		name      string
		edition   sql.NullString
		createdAt string
	)
	err := s.db.QueryRowContext(ctx,
		`SELECT series_id, provider, provider_series_id, edition, created_at FROM series_matches WHERE series_id = ?`,
		seriesID,
	).Scan(&match.SeriesID, &name, &match.ProviderSeriesID, &edition, &createdAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("find series match: %w", err)
	}
	match.Provider = provider.Name(name)
	match.Edition = edition.String
	if match.CreatedAt, err = parseTime(createdAt); err != nil {
		return nil, err
	}
	return &match, nil
}

// SaveSeriesMatch stores or replaces the sticky match of a series.
func (s *Store) SaveSeriesMatch(ctx context.Context, match identification.SeriesMatch) error {
	createdAt := match.CreatedAt
	if createdAt.IsZero() {
		createdAt = s.now()
	}
	_, err := s.exec(ctx,
		`INSERT INTO series_matches (series_id, provider, provider_series_id, edition, created_at)
         VALUES (?, ?, ?, ?, ?)
         ON CONFLICT(series_id) DO UPDATE SET
             provider = excluded.provider, provider_series_id = excluded.provider_series_id,
             edition = excluded.edition, created_at = excluded.created_at`,
		match.SeriesID,
		string(match.Provider),
		match.ProviderSeriesID,
		nullableString(match.Edition),
		formatTime(createdAt),
	)
	if err != nil {
		return fmt.Errorf("save series match: %w", err)
	}
	return nil
}

// DeleteSeriesMatch forgets the sticky match of a series.
func (s *Store) DeleteSeriesMatch(ctx context.Context, seriesID string) error {
	if _, err := s.exec(ctx, `DELETE FROM series_matches WHERE series_id = ?`, seriesID); err != nil {
		return fmt.Errorf("delete series match: %w", err)
	}
	return nil
}
