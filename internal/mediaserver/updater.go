package mediaserver

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"komf/internal/config"
	"komf/internal/logging"
	"komf/internal/metadata"
)

const resetPageSize = 500

// UpdaterOptions controls write-back behaviour.
type UpdaterOptions struct {
	UpdateSeriesTitle   bool
	UpdateAltTitles     bool
	OverwriteThumbnails bool
	BookMetadata        bool
}

// UpdaterOptionsFromConfig reads write-back options from configuration.
func UpdaterOptionsFromConfig(cfg *config.Config) UpdaterOptions {
	return UpdaterOptions{
		UpdateSeriesTitle:   cfg.Metadata.UpdateSeriesTitle,
		UpdateAltTitles:     cfg.Metadata.PostProcessing.AlternativeSeriesTitles,
		OverwriteThumbnails: cfg.Metadata.OverwriteThumbnails,
		BookMetadata:        cfg.Metadata.BookMetadata,
	}
}

// Updater writes matched metadata back to a media server.
type Updater struct {
	client     Client
	thumbnails ThumbnailRepository
	images     ImageLoader
	opts       UpdaterOptions
	logger     *slog.Logger
}

// NewUpdater builds an Updater.
func NewUpdater(client Client, thumbnails ThumbnailRepository, images ImageLoader, opts UpdaterOptions, logger *slog.Logger) *Updater {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Updater{
		client:     client,
		thumbnails: thumbnails,
		images:     images,
		opts:       opts,
		logger:     logging.NewComponentLogger(logger, "updater"),
	}
}

// UpdateMetadata applies result to series and its books. Locked fields are
// skipped. Books mapped to nil are still visited so thumbnails previously
// uploaded for them are removed.
func (u *Updater) UpdateMetadata(ctx context.Context, series Series, books []Book, result metadata.SeriesAndBookMetadata) error {
	patch := u.seriesPatch(series.Locks, result.Series)
	if !patch.Empty() {
		if err := u.client.UpdateSeries(ctx, series.ID, patch); err != nil {
			return fmt.Errorf("update series %s: %w", series.ID, err)
		}
	}
	if err := u.replaceSeriesThumbnail(ctx, series, result.Series.Thumbnail); err != nil {
		return err
	}
	if !u.opts.BookMetadata {
		return nil
	}

	var errs []error
	for _, book := range books {
		if book.Deleted {
			continue
		}
		if err := u.updateBook(ctx, book, result.Books[book.ID]); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (u *Updater) updateBook(ctx context.Context, book Book, meta *metadata.BookMetadata) error {
	if meta == nil {
		return u.removeBookThumbnail(ctx, book.ID)
	}
	patch := bookPatch(book.Locks, *meta)
	if !patch.Empty() {
		if err := u.client.UpdateBook(ctx, book.ID, patch); err != nil {
			return fmt.Errorf("update book %s: %w", book.ID, err)
		}
	}
	return u.replaceBookThumbnail(ctx, book, meta.Thumbnail)
}

func (u *Updater) seriesPatch(locks Locks, m metadata.SeriesMetadata) SeriesUpdate {
	var p SeriesUpdate
	if m.Status != "" && !locks.Has(FieldStatus) {
		status := m.Status
		p.Status = &status
	}
	if u.opts.UpdateSeriesTitle && m.Title != nil && m.Title.Name != "" {
		name := m.Title.Name
		if !locks.Has(FieldTitle) {
			p.Title = &name
		}
		if !locks.Has(FieldTitleSort) {
			p.TitleSort = &name
		}
	}
	if u.opts.UpdateAltTitles && len(m.Titles) > 0 && !locks.Has(FieldAlternativeTitles) {
		p.AlternativeTitles = append([]metadata.SeriesTitle{}, m.Titles...)
	}
	if m.Summary != "" && !locks.Has(FieldSummary) {
		summary := m.Summary
		p.Summary = &summary
	}
	if m.Publisher != nil && m.Publisher.Name != "" && !locks.Has(FieldPublisher) {
		name := m.Publisher.Name
		p.Publisher = &name
	}
	if m.ReadingDirection != "" && !locks.Has(FieldReadingDirection) {
		direction := m.ReadingDirection
		p.ReadingDirection = &direction
	}
	if m.AgeRating != nil && !locks.Has(FieldAgeRating) {
		rating := *m.AgeRating
		p.AgeRating = &rating
	}
	if m.Language != "" && !locks.Has(FieldLanguage) {
		language := m.Language
		p.Language = &language
	}
	if len(m.Genres) > 0 && !locks.Has(FieldGenres) {
		p.Genres = append([]string{}, m.Genres...)
	}
	if len(m.Tags) > 0 && !locks.Has(FieldTags) {
		p.Tags = append([]string{}, m.Tags...)
	}
	if m.TotalBookCount != nil && !locks.Has(FieldTotalBookCount) {
		count := *m.TotalBookCount
		p.TotalBookCount = &count
	}
	if len(m.Authors) > 0 && !locks.Has(FieldAuthors) {
		p.Authors = append([]metadata.Author{}, m.Authors...)
	}
	if m.ReleaseDate != nil && !locks.Has(FieldReleaseDate) {
		date := *m.ReleaseDate
		p.ReleaseDate = &date
	}
	if len(m.Links) > 0 && !locks.Has(FieldLinks) {
		p.Links = append([]metadata.WebLink{}, m.Links...)
	}
	return p
}

func bookPatch(locks Locks, m metadata.BookMetadata) BookUpdate {
	var p BookUpdate
	if m.Title != "" && !locks.Has(FieldTitle) {
		title := m.Title
		p.Title = &title
	}
	if m.Summary != "" && !locks.Has(FieldSummary) {
		summary := m.Summary
		p.Summary = &summary
	}
	if m.Number != nil && !locks.Has(FieldNumber) {
		number := m.Number.String()
		p.Number = &number
	}
	if m.NumberSort != nil && !locks.Has(FieldNumberSort) {
		sort := *m.NumberSort
		p.NumberSort = &sort
	}
	if m.ReleaseDate != nil && !locks.Has(FieldReleaseDate) {
		date := *m.ReleaseDate
		p.ReleaseDate = &date
	}
	if len(m.Authors) > 0 && !locks.Has(FieldAuthors) {
		p.Authors = append([]metadata.Author{}, m.Authors...)
	}
	if len(m.Tags) > 0 && !locks.Has(FieldTags) {
		p.Tags = append([]string{}, m.Tags...)
	}
	if m.ISBN != "" && !locks.Has(FieldISBN) {
		isbn := m.ISBN
		p.ISBN = &isbn
	}
	if len(m.Links) > 0 && !locks.Has(FieldLinks) {
		p.Links = append([]metadata.WebLink{}, m.Links...)
	}
	return p
}

// userCover reports whether cover was chosen by a user rather than uploaded
// by komf as previous.
func userCover(cover *Cover, previous *Thumbnail) bool {
	if cover == nil || !cover.UserUploaded {
		return false
	}
	return previous == nil || cover.ID == "" || cover.ID != previous.ThumbnailID
}

func (u *Updater) replaceSeriesThumbnail(ctx context.Context, series Series, image *metadata.Image) error {
	if image == nil {
		return nil
	}
	previous, err := u.thumbnails.FindSeriesThumbnail(ctx, series.ID)
	if err != nil {
		return fmt.Errorf("find series thumbnail: %w", err)
	}
	if userCover(series.Cover, previous) && !u.opts.OverwriteThumbnails {
		u.logger.Debug("keeping user selected series cover", logging.String(logging.FieldSeriesID, series.ID))
		return nil
	}
	loaded, err := u.images.Load(ctx, image)
	if err != nil {
		logging.WarnWithContext(u.logger, "series thumbnail download failed", "thumbnail_download_failed",
			logging.String(logging.FieldSeriesID, series.ID),
			logging.Error(err),
			logging.String(logging.FieldImpact, "series cover left unchanged"),
		)
		return nil
	}
	id, err := u.client.UploadSeriesThumbnail(ctx, series.ID, loaded)
	if err != nil {
		return fmt.Errorf("upload series thumbnail: %w", err)
	}
	if previous != nil && previous.ThumbnailID != "" && previous.ThumbnailID != id {
		if err := u.client.DeleteSeriesThumbnail(ctx, series.ID, previous.ThumbnailID); err != nil && !errors.Is(err, ErrNotFound) {
			return fmt.Errorf("delete previous series thumbnail: %w", err)
		}
	}
	if err := u.thumbnails.SaveSeriesThumbnail(ctx, Thumbnail{SeriesID: series.ID, ThumbnailID: id}); err != nil {
		return fmt.Errorf("save series thumbnail: %w", err)
	}
	return nil
}

func (u *Updater) replaceBookThumbnail(ctx context.Context, book Book, image *metadata.Image) error {
	if image == nil {
		return nil
	}
	previous, err := u.thumbnails.FindBookThumbnail(ctx, book.ID)
	if err != nil {
		return fmt.Errorf("find book thumbnail: %w", err)
	}
	if userCover(book.Cover, previous) && !u.opts.OverwriteThumbnails {
		return nil
	}
	loaded, err := u.images.Load(ctx, image)
	if err != nil {
		logging.WarnWithContext(u.logger, "book thumbnail download failed", "thumbnail_download_failed",
			logging.String("book_id", book.ID),
			logging.Error(err),
			logging.String(logging.FieldImpact, "book cover left unchanged"),
		)
		return nil
	}
	id, err := u.client.UploadBookThumbnail(ctx, book.ID, loaded)
	if err != nil {
		return fmt.Errorf("upload book thumbnail %s: %w", book.ID, err)
	}
	if previous != nil && previous.ThumbnailID != "" && previous.ThumbnailID != id {
		if err := u.client.DeleteBookThumbnail(ctx, book.ID, previous.ThumbnailID); err != nil && !errors.Is(err, ErrNotFound) {
			return fmt.Errorf("delete previous book thumbnail %s: %w", book.ID, err)
		}
	}
	if err := u.thumbnails.SaveBookThumbnail(ctx, Thumbnail{SeriesID: book.SeriesID, BookID: book.ID, ThumbnailID: id}); err != nil {
		return fmt.Errorf("save book thumbnail %s: %w", book.ID, err)
	}
	return nil
}

func (u *Updater) removeBookThumbnail(ctx context.Context, bookID string) error {
	previous, err := u.thumbnails.FindBookThumbnail(ctx, bookID)
	if err != nil {
		return fmt.Errorf("find book thumbnail: %w", err)
	}
	if previous == nil {
		return nil
	}
	if previous.ThumbnailID != "" {
		if err := u.client.DeleteBookThumbnail(ctx, bookID, previous.ThumbnailID); err != nil && !errors.Is(err, ErrNotFound) {
			return fmt.Errorf("delete book thumbnail %s: %w", bookID, err)
		}
	}
	return u.thumbnails.DeleteBookThumbnail(ctx, bookID)
}

// ResetSeries clears metadata written to series and its books and removes
// uploaded thumbnails.
func (u *Updater) ResetSeries(ctx context.Context, series Series) error {
	books, err := u.client.ListBooks(ctx, series.ID)
	if err != nil {
		return fmt.Errorf("list books of %s: %w", series.ID, err)
	}
	if err := u.client.ResetSeries(ctx, series); err != nil {
		return fmt.Errorf("reset series %s: %w", series.ID, err)
	}
	previous, err := u.thumbnails.FindSeriesThumbnail(ctx, series.ID)
	if err != nil {
		return fmt.Errorf("find series thumbnail: %w", err)
	}
	if previous != nil {
		if previous.ThumbnailID != "" {
			if err := u.client.DeleteSeriesThumbnail(ctx, series.ID, previous.ThumbnailID); err != nil && !errors.Is(err, ErrNotFound) {
				return fmt.Errorf("delete series thumbnail: %w", err)
			}
		}
		if err := u.thumbnails.DeleteSeriesThumbnail(ctx, series.ID); err != nil {
			return fmt.Errorf("forget series thumbnail: %w", err)
		}
	}
	for _, book := range books {
		if book.Deleted {
			continue
		}
		if err := u.client.ResetBook(ctx, book); err != nil {
			return fmt.Errorf("reset book %s: %w", book.ID, err)
		}
		if err := u.removeBookThumbnail(ctx, book.ID); err != nil {
			return err
		}
	}
	u.logger.Info("series metadata reset",
		logging.String(logging.FieldSeriesID, series.ID),
		logging.Int("books", len(books)),
	)
	return nil
}

// ResetLibrary resets every series of a library. Failures are counted and
// the scan continues.
func (u *Updater) ResetLibrary(ctx context.Context, libraryID string) (int, error) {
	failed := 0
	for page := 0; ; page++ {
		result, err := u.client.ListSeries(ctx, libraryID, page, resetPageSize)
		if err != nil {
			return failed, fmt.Errorf("list series of library %s: %w", libraryID, err)
		}
		for _, series := range result.Content {
			if err := u.ResetSeries(ctx, series); err != nil {
				failed++
				logging.WarnWithContext(u.logger, "series reset failed", "series_reset_failed",
					logging.String(logging.FieldSeriesID, series.ID),
					logging.Error(err),
					logging.String(logging.FieldImpact, "series keeps previous metadata"),
				)
			}
		}
		if result.Last() {
			return failed, nil
		}
	}
}
