package identification

import (
	"context"
	"sort"
	"strings"

	"golang.org/x/sync/errgroup"

	"komf/internal/logging"
	"komf/internal/provider"
	"komf/internal/textutil"
)

const (
	searchLimit       = 5
	searchConcurrency = 4
)

// SearchSeries queries every enabled provider for name and returns the
// results ordered by provider priority, each provider's results ranked by
// title similarity. Failing providers are logged and skipped.
func (s *Service) SearchSeries(ctx context.Context, name string) []provider.SearchResult {
	name = strings.TrimSpace(name)
	enabled := s.providers.Enabled()
	if name == "" || len(enabled) == 0 {
		return nil
	}

	perProvider := make([][]provider.SearchResult, len(enabled))
	var g errgroup.Group
	g.SetLimit(searchConcurrency)
	for i, p := range enabled {
		g.Go(func() error {
			results, err := p.SearchSeries(ctx, name, searchLimit)
			if err != nil {
				logging.WarnWithContext(s.logger, "provider search failed", "provider_search_failed",
					logging.String(logging.FieldProvider, string(p.Name())),
					logging.Error(err),
				)
				return nil
			}
			perProvider[i] = rankResults(name, results)
			return nil
		})
	}
	_ = g.Wait()

	var out []provider.SearchResult
	for _, results := range perProvider {
		out = append(out, results...)
	}
	return out
}

func rankResults(name string, results []provider.SearchResult) []provider.SearchResult {
	type scored struct {
		result provider.SearchResult
		score  float64
	}
	query := textutil.NewFingerprint(name)
	ranked := make([]scored, len(results))
	for i, r := range results {
		ranked[i] = scored{result: r, score: query.Similarity(textutil.NewFingerprint(r.Title))}
	}
	sort.SliceStable(ranked, func(a, b int) bool { return ranked[a].score > ranked[b].score })
	out := make([]provider.SearchResult, len(ranked))
	for i, r := range ranked {
		out[i] = r.result
	}
	return out
}
