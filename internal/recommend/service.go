// Package recommend ranks similar movies and enriches them with posters.
package recommend

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/hyperjump/reelmatch/internal/catalog"
	"github.com/hyperjump/reelmatch/internal/keyword"
	"github.com/hyperjump/reelmatch/internal/metrics"
	"github.com/hyperjump/reelmatch/internal/models"
)

// ErrMovieNotFound is returned when the requested title is not in the catalog.
// It wraps models.ErrNotFound.
var ErrMovieNotFound = fmt.Errorf("movie %w", models.ErrNotFound)

// PosterResolver turns a movie identifier into an image URL. It must not fail.
type PosterResolver interface {
	Resolve(ctx context.Context, movieID string) string
}

// Options tunes a Service. Zero values use the defaults.
type Options struct {
	// Limit is the number of recommendations returned (default 5).
	Limit int
	// Workers bounds concurrent poster resolutions per request (default 5).
	Workers int
	// MaxSimilar caps k for Similar (default 100).
	MaxSimilar int
	// Fuzziness and Suggestions configure typo-tolerant search and not-found suggestions.
	Fuzziness   int
	Suggestions int
	// SuggestionPool is how many fuzzy hits are re-ranked for suggestions (default 25).
	SuggestionPool int
	// SearchLimit and MaxSearchLimit bound fuzzy search results (defaults 20 and 100).
	SearchLimit    int
	MaxSearchLimit int
}

// Service answers recommendation and search requests over an immutable catalog.
type Service struct {
	catalog   *catalog.Catalog
	posters   PosterResolver
	titles    keyword.TitleIndex
	suggester *keyword.Suggester
	opts      Options
	logger    *zap.Logger
}

// Option configures a Service.
type Option func(*Service)

// WithLogger sets the service logger.
func WithLogger(l *zap.Logger) Option {
	return func(s *Service) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithTitleIndex enables fuzzy search and not-found suggestions.
func WithTitleIndex(idx keyword.TitleIndex) Option {
	return func(s *Service) {
		s.titles = idx
	}
}

// NewService builds a Service. posters must not be nil.
func NewService(c *catalog.Catalog, posters PosterResolver, opts Options, options ...Option) *Service {
	if opts.Limit <= 0 {
		opts.Limit = 5
	}
	if opts.Workers <= 0 {
		opts.Workers = 5
	}
	if opts.MaxSimilar <= 0 {
		opts.MaxSimilar = 100
	}
	if opts.SearchLimit <= 0 {
		opts.SearchLimit = models.DefaultSearchLimit
	}
	if opts.MaxSearchLimit <= 0 {
		opts.MaxSearchLimit = models.MaxSearchLimit
	}
	if opts.Fuzziness <= 0 {
		opts.Fuzziness = 2
	}
	s := &Service{
		catalog: c,
		posters: posters,
		opts:    opts,
		logger:  zap.NewNop(),
	}
	for _, o := range options {
		o(s)
	}
	if s.titles != nil && opts.Suggestions > 0 {
		s.suggester = keyword.NewSuggester(s.titles,
			keyword.WithFuzziness(opts.Fuzziness),
			keyword.WithMaxSuggestions(opts.Suggestions),
			keyword.WithCandidatePool(opts.SuggestionPool))
	}
	return s
}

// Catalog returns the catalog the service reads.
func (s *Service) Catalog() *catalog.Catalog {
	return s.catalog
}

// neighbors resolves title and returns its top k neighbors. Entries named like the query or
// repeating an earlier name are skipped so the result never contains the query or duplicates.
func (s *Service) neighbors(title string, k int) ([]Neighbor, error) {
	idx, err := s.catalog.FindIndexByExactName(title)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrMovieNotFound, err)
	}
	row, err := s.catalog.Row(idx)
	if err != nil {
		return nil, err
	}
	seen := map[string]struct{}{title: {}}
	skip := func(n Neighbor) bool {
		m, err := s.catalog.Movie(n.Index)
		if err != nil {
			return true
		}
		if _, dup := seen[m.Name]; dup {
			return true
		}
		seen[m.Name] = struct{}{}
		return false
	}
	return TopK(Rank(row), idx, k, skip), nil
}

// Recommend returns up to Limit movies most similar to title, in rank order, each with a poster.
// Posters are resolved concurrently by at most Workers goroutines; a movie whose record cannot
// be read is logged and skipped.
func (s *Service) Recommend(ctx context.Context, title string) ([]models.Recommendation, error) {
	top, err := s.neighbors(title, s.opts.Limit)
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			metrics.Recommendations.WithLabelValues("not_found").Inc()
		} else {
			metrics.Recommendations.WithLabelValues("error").Inc()
		}
		return nil, err
	}

	slots := make([]*models.Recommendation, len(top))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.opts.Workers)
	for i, n := range top {
		i, n := i, n
		g.Go(func() error {
			m, err := s.catalog.Movie(n.Index)
			if err != nil {
				s.logger.Warn("skipping recommendation", zap.Int("row", n.Index), zap.Error(err))
				return nil
			}
			slots[i] = &models.Recommendation{
				Name:   m.Name,
				Poster: s.posters.Resolve(gctx, m.ID),
			}
			return nil
		})
	}
	_ = g.Wait()
	if err := ctx.Err(); err != nil {
		metrics.Recommendations.WithLabelValues("error").Inc()
		return nil, fmt.Errorf("recommend %q: %w", title, err)
	}

	recs := make([]models.Recommendation, 0, len(slots))
	for _, r := range slots {
		if r != nil {
			recs = append(recs, *r)
		}
	}
	metrics.Recommendations.WithLabelValues("ok").Inc()
	s.logger.Debug("recommendations served", zap.String("movie", title), zap.Int("count", len(recs)))
	return recs, nil
}

// Similar returns the k most similar movies with their scores and no posters.
// k <= 0 uses Limit; k is capped at MaxSimilar.
func (s *Service) Similar(ctx context.Context, title string, k int) ([]models.SimilarMovie, error) {
	if k <= 0 {
		k = s.opts.Limit
	}
	k = min(k, s.opts.MaxSimilar)
	top, err := s.neighbors(title, k)
	if err != nil {
		return nil, err
	}
	out := make([]models.SimilarMovie, 0, len(top))
	for _, n := range top {
		m, err := s.catalog.Movie(n.Index)
		if err != nil {
			continue
		}
		out = append(out, models.SimilarMovie{Name: m.Name, Score: float64(n.Score)})
	}
	return out, nil
}

// Search returns titles matching q. Plain search is a case-insensitive substring match in
// catalog order; fuzzy search asks the title index and returns up to q.Limit titles by relevance.
func (s *Service) Search(ctx context.Context, q models.SearchQuery) ([]string, error) {
	if err := q.ValidateWithLimits(s.opts.SearchLimit, s.opts.MaxSearchLimit); err != nil {
		return nil, err
	}
	if !q.Fuzzy {
		return s.catalog.SearchBySubstring(q.Query), nil
	}
	if s.titles == nil {
		return nil, fmt.Errorf("%w: fuzzy search is not enabled", models.ErrValidation)
	}
	hits, err := s.titles.Search(ctx, q.Query, q.Limit, &keyword.SearchOptions{
		FuzzyEnabled: true,
		Fuzziness:    s.opts.Fuzziness,
	})
	if err != nil {
		return nil, fmt.Errorf("fuzzy search: %w", err)
	}
	matches := make([]string, 0, len(hits))
	for _, h := range hits {
		matches = append(matches, h.Name)
	}
	return matches, nil
}

// Suggest returns close catalog titles for a title that was not found.
// It returns nil when suggestions are disabled or fail.
func (s *Service) Suggest(ctx context.Context, title string) []string {
	if s.suggester == nil || strings.TrimSpace(title) == "" {
		return nil
	}
	suggestions, err := s.suggester.Suggest(ctx, title)
	if err != nil {
		s.logger.Warn("title suggestions failed", zap.String("movie", title), zap.Error(err))
		return nil
	}
	return keyword.Titles(suggestions)
}
