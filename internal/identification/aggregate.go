package identification

import (
	"context"

	"golang.org/x/sync/errgroup"

	"komf/internal/jobs"
	"komf/internal/logging"
	"komf/internal/mediaserver"
	"komf/internal/metadata"
	"komf/internal/provider"
)

// aggregate queries every other enabled provider with the titles of the
// primary result and folds their metadata into it in priority order.
// Failures of secondary providers are logged and skipped.
func (s *Service) aggregate(ctx context.Context, emit func(jobs.Event), primary provider.Name, series mediaserver.Series, books []mediaserver.Book, result metadata.SeriesAndBookMetadata) metadata.SeriesAndBookMetadata {
	others := s.providers.Others(primary)
	if len(others) == 0 {
		return result
	}
	titles := result.Series.TitleNames()
	if len(titles) == 0 {
		titles = SearchTitles(series)
	}
	anchor := s.anchorBook(books)
	logger := logging.WithContext(ctx, s.logger)

	found := make([]*metadata.SeriesAndBookMetadata, len(others))
	var g errgroup.Group
	for i, p := range others {
		g.Go(func() error {
			emit(jobs.ProviderSeriesEvent{Provider: string(p.Name())})
			defer emit(jobs.ProviderCompletedEvent{Provider: string(p.Name())})

			match, err := matchTitles(ctx, p, titles, series.ReleaseYear, anchor)
			if err == nil && match != nil {
				var bookMeta map[string]*metadata.BookMetadata
				bookMeta, err = s.fetchBooks(ctx, emit, p, *match, books, series.LibraryID, "")
				if err == nil {
					found[i] = &metadata.SeriesAndBookMetadata{Series: match.Metadata, Books: bookMeta}
				}
			}
			if err != nil {
				logging.WarnWithContext(logger, "aggregation provider failed", "aggregation_provider_failed",
					logging.String(logging.FieldProvider, string(p.Name())),
					logging.Error(err),
					logging.String(logging.FieldImpact, "provider left out of merged metadata"),
				)
			}
			return nil
		})
	}
	_ = g.Wait()

	opts := s.mergeOptions()
	for _, r := range found {
		if r == nil {
			continue
		}
		result = metadata.SeriesAndBookMetadata{
			Series: metadata.MergeSeries(result.Series, r.Series, opts),
			Books:  metadata.MergeBooks(result.Books, r.Books),
		}
	}
	return result
}
