package identification

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"komf/internal/association"
	"komf/internal/booknames"
	"komf/internal/jobs"
	"komf/internal/logging"
	"komf/internal/mediaserver"
	"komf/internal/metadata"
	"komf/internal/provider"
)

// IdentifyRequest selects a provider series for a media server series.
type IdentifyRequest struct {
	SeriesID         string        `json:"seriesId"`
	Provider         provider.Name `json:"provider"`
	ProviderSeriesID string        `json:"providerSeriesId"`
	Edition          string        `json:"edition,omitempty"`
}

// Identify launches a job applying the metadata of an explicitly chosen
// provider series. Unknown series and disabled providers are reported
// synchronously.
func (s *Service) Identify(ctx context.Context, req IdentifyRequest) (jobs.Job, error) {
	if strings.TrimSpace(req.ProviderSeriesID) == "" {
		return jobs.Job{}, fmt.Errorf("%w: provider series id required", ErrInvalidRequest)
	}
	series, err := s.server.GetSeries(ctx, req.SeriesID)
	if err != nil {
		return jobs.Job{}, err
	}
	p, err := s.providers.Get(req.Provider)
	if err != nil {
		return jobs.Job{}, err
	}
	return s.jobs.Launch(ctx, series.ID, s.job(func(ctx context.Context, emit func(jobs.Event)) (string, error) {
		emit(jobs.ProviderSeriesEvent{Provider: string(p.Name())})
		fetched, err := p.GetSeriesMetadata(ctx, req.ProviderSeriesID)
		if err != nil {
			return "", providerError(p.Name(), "get series metadata", err)
		}
		if err := s.apply(ctx, emit, series, p, fetched, req.Edition); err != nil {
			return "", err
		}
		match := SeriesMatch{
			SeriesID:         series.ID,
			Provider:         p.Name(),
			ProviderSeriesID: req.ProviderSeriesID,
			Edition:          req.Edition,
			CreatedAt:        s.now().UTC(),
		}
		if err := s.matches.SaveSeriesMatch(ctx, match); err != nil {
			return "", fmt.Errorf("save series match: %w", err)
		}
		return fmt.Sprintf("identified with %s", p.Name()), nil
	}))
}

// Match launches a job matching series against the enabled providers.
func (s *Service) Match(ctx context.Context, seriesID string) (jobs.Job, error) {
	series, err := s.server.GetSeries(ctx, seriesID)
	if err != nil {
		return jobs.Job{}, err
	}
	return s.jobs.Launch(ctx, series.ID, s.job(func(ctx context.Context, emit func(jobs.Event)) (string, error) {
		return s.match(ctx, emit, series)
	}))
}

func (s *Service) match(ctx context.Context, emit func(jobs.Event), series mediaserver.Series) (string, error) {
	logger := logging.WithContext(ctx, s.logger)

	sticky, err := s.matches.FindSeriesMatch(ctx, series.ID)
	if err != nil {
		return "", fmt.Errorf("find series match: %w", err)
	}
	if sticky != nil && s.providers.IsEnabled(sticky.Provider) {
		p, err := s.providers.Get(sticky.Provider)
		if err != nil {
			return "", err
		}
		logger.Debug("using stored series match",
			logging.String(logging.FieldProvider, string(p.Name())),
			logging.String("provider_series_id", sticky.ProviderSeriesID),
		)
		emit(jobs.ProviderSeriesEvent{Provider: string(p.Name())})
		fetched, err := p.GetSeriesMetadata(ctx, sticky.ProviderSeriesID)
		if err != nil {
			return "", providerError(p.Name(), "get series metadata", err)
		}
		if err := s.apply(ctx, emit, series, p, fetched, sticky.Edition); err != nil {
			return "", err
		}
		return fmt.Sprintf("matched with %s", p.Name()), nil
	}

	books, err := s.server.ListBooks(ctx, series.ID)
	if err != nil {
		return "", fmt.Errorf("list books: %w", err)
	}
	titles := SearchTitles(series)
	anchor := s.anchorBook(books)

	for _, p := range s.providers.Enabled() {
		emit(jobs.ProviderSeriesEvent{Provider: string(p.Name())})
		found, err := matchTitles(ctx, p, titles, series.ReleaseYear, anchor)
		if err != nil {
			return "", err
		}
		if found == nil {
			emit(jobs.ProviderCompletedEvent{Provider: string(p.Name())})
			continue
		}
		logger.Info("series matched",
			logging.String(logging.FieldProvider, string(p.Name())),
			logging.String("provider_series_id", found.ID),
			logging.String(logging.FieldEventType, "series_matched"),
		)
		if err := s.applyWithBooks(ctx, emit, series, books, p, *found, ""); err != nil {
			return "", err
		}
		return fmt.Sprintf("matched with %s", p.Name()), nil
	}

	logger.Info("no provider matched series",
		logging.String("title", series.Title),
		logging.String(logging.FieldEventType, "series_not_matched"),
	)
	return "no match found", nil
}

// SearchTitles lists the titles tried when matching series: its title, the
// title without bracketed qualifiers and every alternative title.
func SearchTitles(series mediaserver.Series) []string {
	seen := make(map[string]struct{})
	var out []string
	add := func(title string) {
		title = strings.TrimSpace(title)
		if title == "" {
			return
		}
		if _, ok := seen[title]; ok {
			return
		}
		seen[title] = struct{}{}
		out = append(out, title)
	}
	title := series.Title
	if title == "" {
		title = series.Name
	}
	add(title)
	add(booknames.StripBrackets(title))
	for _, alt := range series.AlternativeTitles {
		add(alt)
	}
	return out
}

func matchTitles(ctx context.Context, p provider.Provider, titles []string, year int, anchor *provider.AnchorBook) (*provider.Series, error) {
	for _, title := range titles {
		found, err := p.MatchSeriesMetadata(ctx, provider.MatchQuery{Title: title, Year: year, Book: anchor})
		if err != nil {
			return nil, providerError(p.Name(), "match series", err)
		}
		if found != nil {
			return found, nil
		}
	}
	return nil, nil
}

// anchorBook picks the lowest numbered book as a representative volume.
func (s *Service) anchorBook(books []mediaserver.Book) *provider.AnchorBook {
	var candidates []mediaserver.Book
	for _, b := range books {
		if !b.Deleted {
			candidates = append(candidates, b)
		}
	}
	if len(candidates) == 0 {
		return nil
	}
	sort.SliceStable(candidates, func(i, j int) bool { return candidates[i].Number < candidates[j].Number })
	book := candidates[0]
	anchor := &provider.AnchorBook{
		Name: book.Name,
		Cover: func(ctx context.Context) ([]byte, error) {
			return s.server.GetBookThumbnail(ctx, book.ID)
		},
	}
	if r, ok := booknames.RangeForMediaType(s.mediaType(book.LibraryID), book.Name); ok {
		anchor.Number = &r
	}
	return anchor
}

func (s *Service) apply(ctx context.Context, emit func(jobs.Event), series mediaserver.Series, p provider.Provider, fetched provider.Series, edition string) error {
	books, err := s.server.ListBooks(ctx, series.ID)
	if err != nil {
		return fmt.Errorf("list books: %w", err)
	}
	return s.applyWithBooks(ctx, emit, series, books, p, fetched, edition)
}

// applyWithBooks completes a primary match: book metadata, aggregation,
// post processing and write-back.
func (s *Service) applyWithBooks(ctx context.Context, emit func(jobs.Event), series mediaserver.Series, books []mediaserver.Book, p provider.Provider, fetched provider.Series, edition string) error {
	bookMeta, err := s.fetchBooks(ctx, emit, p, fetched, books, series.LibraryID, edition)
	if err != nil {
		return err
	}
	emit(jobs.ProviderCompletedEvent{Provider: string(p.Name())})

	result := metadata.SeriesAndBookMetadata{Series: fetched.Metadata, Books: bookMeta}
	if s.cfg.Metadata.Aggregate {
		result = s.aggregate(ctx, emit, p.Name(), series, books, result)
	}

	emit(jobs.PostProcessingStartEvent{})
	result = s.postProcessor(series.LibraryID).Process(books, result)
	if err := s.updater.UpdateMetadata(ctx, series, books, result); err != nil {
		return fmt.Errorf("write metadata: %w", err)
	}
	s.notifyMatched(ctx, series, result, p.Name())
	return nil
}

// fetchBooks associates local books with the provider's book list and
// fetches metadata for every paired book. Every local book is a key of the
// result.
func (s *Service) fetchBooks(ctx context.Context, emit func(jobs.Event), p provider.Provider, fetched provider.Series, books []mediaserver.Book, libraryID, edition string) (map[string]*metadata.BookMetadata, error) {
	out := make(map[string]*metadata.BookMetadata, len(books))
	for _, b := range books {
		out[b.ID] = nil
	}
	if !s.cfg.Metadata.BookMetadata || len(fetched.Books) == 0 {
		return out, nil
	}

	paired := association.Associate(books, fetched.Books, association.Options{
		MediaType: s.mediaType(libraryID),
		Edition:   edition,
	})
	var todo []mediaserver.Book
	for _, b := range books {
		if paired[b.ID] != nil {
			todo = append(todo, b)
		}
	}
	for i, b := range todo {
		emit(jobs.ProviderBookEvent{Provider: string(p.Name()), TotalBooks: len(todo), Progress: i + 1})
		book, err := p.GetBookMetadata(ctx, fetched.ID, paired[b.ID].ID)
		if err != nil {
			return nil, providerError(p.Name(), "get book metadata", err)
		}
		meta := book.Metadata
		out[b.ID] = &meta
	}
	return out, nil
}

func (s *Service) notifyMatched(ctx context.Context, series mediaserver.Series, result metadata.SeriesAndBookMetadata, name provider.Name) {
	if s.notifier == nil || !s.cfg.Notifications.SeriesMatched {
		return
	}
	title := series.Title
	if result.Series.Title != nil && result.Series.Title.Name != "" {
		title = result.Series.Title.Name
	}
	if err := s.notifier.NotifySeriesMatched(ctx, title, string(name)); err != nil {
		logging.WarnWithContext(logging.WithContext(ctx, s.logger), "series matched notification failed", "notification_failed",
			logging.Error(err),
		)
	}
}
