package testsupport

import (
	"context"
	"fmt"
	"sync"

	"komf/internal/provider"
)

// Provider is a scriptable provider.Provider.
type Provider struct {
	ProviderName provider.Name

	mu sync.Mutex
	// Matches maps a query title to the series returned for it.
	Matches map[string]*provider.Series
	// SeriesByID answers GetSeriesMetadata.
	SeriesByID map[string]provider.Series
	// BooksByID answers GetBookMetadata.
	BooksByID map[string]provider.Book
	Results   []provider.SearchResult
	// Err fails every call when set.
	Err error
	// Block, when non-nil, is awaited by every call.
	Block chan struct{}

	Queries []string
}

var _ provider.Provider = (*Provider)(nil)

// NewProvider returns an empty fake provider.
func NewProvider(name provider.Name) *Provider {
	return &Provider{
		ProviderName: name,
		Matches:      map[string]*provider.Series{},
		SeriesByID:   map[string]provider.Series{},
		BooksByID:    map[string]provider.Book{},
	}
}

// AddSeries registers series as both a match for titles and a fetchable id.
func (p *Provider) AddSeries(series provider.Series, titles ...string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.SeriesByID[series.ID] = series
	for _, title := range titles {
		s := series
		p.Matches[title] = &s
	}
}

// AddBook registers book metadata.
func (p *Provider) AddBook(book provider.Book) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.BooksByID[book.ID] = book
}

// QueriedTitles returns the titles passed to MatchSeriesMetadata.
func (p *Provider) QueriedTitles() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]string(nil), p.Queries...)
}

func (p *Provider) wait(ctx context.Context) error {
	if p.Block == nil {
		return nil
	}
	select {
	case <-p.Block:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (p *Provider) Name() provider.Name { return p.ProviderName }

func (p *Provider) SearchSeries(ctx context.Context, _ string, limit int) ([]provider.SearchResult, error) {
	if err := p.wait(ctx); err != nil {
		return nil, err
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.Err != nil {
		return nil, p.Err
	}
	results := p.Results
	if limit > 0 && len(results) > limit {
		results = results[:limit]
	}
	return append([]provider.SearchResult(nil), results...), nil
}

func (p *Provider) GetSeriesMetadata(ctx context.Context, seriesID string) (provider.Series, error) {
	if err := p.wait(ctx); err != nil {
		return provider.Series{}, err
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.Err != nil {
		return provider.Series{}, p.Err
	}
	series, ok := p.SeriesByID[seriesID]
	if !ok {
		return provider.Series{}, fmt.Errorf("series %s not found", seriesID)
	}
	return series, nil
}

func (p *Provider) GetBookMetadata(ctx context.Context, _ string, bookID string) (provider.Book, error) {
	if err := p.wait(ctx); err != nil {
		return provider.Book{}, err
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.Err != nil {
		return provider.Book{}, p.Err
	}
	return p.BooksByID[bookID], nil
}

func (p *Provider) MatchSeriesMetadata(ctx context.Context, query provider.MatchQuery) (*provider.Series, error) {
	if err := p.wait(ctx); err != nil {
		return nil, err
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	p.Queries = append(p.Queries, query.Title)
	if p.Err != nil {
		return nil, p.Err
	}
	return p.Matches[query.Title], nil
}
