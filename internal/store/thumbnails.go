package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"komf/internal/mediaserver"
)

var _ mediaserver.ThumbnailRepository = (*Store)(nil)

func (s *Store) FindSeriesThumbnail(ctx context.Context, seriesID string) (*mediaserver.Thumbnail, error) {
	var thumbID sql.NullString
	err := s.db.QueryRowContext(ctx, `SELECT thumbnail_id FROM series_thumbnails WHERE series_id = ?`, seriesID).Scan(&thumbID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("find series thumbnail: %w", err)
	}
	return &mediaserver.Thumbnail{SeriesID: seriesID, ThumbnailID: thumbID.String}, nil
}

func (s *Store) SaveSeriesThumbnail(ctx context.Context, thumb mediaserver.Thumbnail) error {
	_, err := s.exec(ctx,
		`INSERT INTO series_thumbnails (series_id, thumbnail_id) VALUES (?, ?)
         ON CONFLICT(series_id) DO UPDATE SET thumbnail_id = excluded.thumbnail_id`,
		thumb.SeriesID,
		nullableString(thumb.ThumbnailID),
	)
	if err != nil {
		return fmt.Errorf("save series thumbnail: %w", err)
	}
	return nil
}

func (s *Store) DeleteSeriesThumbnail(ctx context.Context, seriesID string) error {
	if _, err := s.exec(ctx, `DELETE FROM series_thumbnails WHERE series_id = ?`, seriesID); err != nil {
		return fmt.Errorf("delete series thumbnail: %w", err)
	}
	return nil
}

func (s *Store) FindBookThumbnail(ctx context.Context, bookID string) (*mediaserver.Thumbnail, error) {
	var seriesID, thumbID sql.NullString
	err := s.db.QueryRowContext(ctx, `SELECT series_id, thumbnail_id FROM book_thumbnails WHERE book_id = ?`, bookID).Scan(&seriesID, &thumbID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("find book thumbnail: %w", err)
	}
	return &mediaserver.Thumbnail{SeriesID: seriesID.String, BookID: bookID, ThumbnailID: thumbID.String}, nil
}

func (s *Store) SaveBookThumbnail(ctx context.Context, thumb mediaserver.Thumbnail) error {
	_, err := s.exec(ctx,
		`INSERT INTO book_thumbnails (book_id, series_id, thumbnail_id) VALUES (?, ?, ?)
         ON CONFLICT(book_id) DO UPDATE SET series_id = excluded.series_id, thumbnail_id = excluded.thumbnail_id`,
		thumb.BookID,
		nullableString(thumb.SeriesID),
		nullableString(thumb.ThumbnailID),
	)
	if err != nil {
		return fmt.Errorf("save book thumbnail: %w", err)
	}
	return nil
}

func (s *Store) DeleteBookThumbnail(ctx context.Context, bookID string) error {
	if _, err := s.exec(ctx, `DELETE FROM book_thumbnails WHERE book_id = ?`, bookID); err != nil {
		return fmt.Errorf("delete book thumbnail: %w", err)
	}
	return nil
}
