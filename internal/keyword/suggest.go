package keyword

import (
	"context"
	"sort"
)

// Suggestion is a catalog title close to a title the user asked for.
type Suggestion struct {
	Title    string
	Distance int     // title-level edit distance from the request
	Score    float64 // Bleve relevance of the candidate
	RowIndex int
}

// Suggester proposes catalog titles for a title that did not match exactly.
// Candidates come from a fuzzy title search and are re-ranked by whole-title edit distance.
type Suggester struct {
	index          TitleIndex
	fuzziness      int
	maxSuggestions int
	candidatePool  int
	maxDistance    int
}

// SuggesterOption is a functional option for configuring Suggester.
type SuggesterOption func(*Suggester)

// WithFuzziness sets the per-term edit distance used to gather candidates.
func WithFuzziness(d int) SuggesterOption {
	return func(s *Suggester) {
		if d > 0 {
			s.fuzziness = d
		}
	}
}

// WithMaxSuggestions sets the maximum number of suggestions returned.
func WithMaxSuggestions(n int) SuggesterOption {
	return func(s *Suggester) {
		if n > 0 {
			s.maxSuggestions = n
		}
	}
}

// WithCandidatePool sets how many fuzzy hits are considered before re-ranking.
func WithCandidatePool(n int) SuggesterOption {
	return func(s *Suggester) {
		if n > 0 {
			s.candidatePool = n
		}
	}
}

// WithMaxDistance drops candidates whose title distance exceeds d. Zero means no limit.
func WithMaxDistance(d int) SuggesterOption {
	return func(s *Suggester) {
		if d >= 0 {
			s.maxDistance = d
		}
	}
}

// NewSuggester creates a Suggester over index.
func NewSuggester(index TitleIndex, opts ...SuggesterOption) *Suggester {
	s := &Suggester{
		index:          index,
		fuzziness:      2,
		maxSuggestions: 3,
		candidatePool:  25,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Suggest returns up to maxSuggestions distinct titles, closest first. Ties on distance
// keep the higher relevance score, then the earlier catalog row.
func (s *Suggester) Suggest(ctx context.Context, title string) ([]Suggestion, error) {
	if len(tokenizeQuery(title)) == 0 {
		return nil, nil
	}
	hits, err := s.index.Search(ctx, title, s.candidatePool, &SearchOptions{
		FuzzyEnabled: true,
		Fuzziness:    s.fuzziness,
	})
	if err != nil {
		return nil, err
	}

	seen := make(map[string]struct{}, len(hits))
	suggestions := make([]Suggestion, 0, len(hits))
	for _, hit := range hits {
		if _, dup := seen[hit.Name]; dup || hit.Name == "" {
			continue
		}
		seen[hit.Name] = struct{}{}
		d := TitleDistance(title, hit.Name)
		if s.maxDistance > 0 && d > s.maxDistance {
			continue
		}
		suggestions = append(suggestions, Suggestion{
			Title:    hit.Name,
			Distance: d,
			Score:    hit.Score,
			RowIndex: hit.RowIndex,
		})
	}

	sort.SliceStable(suggestions, func(i, j int) bool {
		a, b := suggestions[i], suggestions[j]
		if a.Distance != b.Distance {
			return a.Distance < b.Distance
		}
		if a.Score != b.Score {
			return a.Score > b.Score
		}
		return a.RowIndex < b.RowIndex
	})
	if len(suggestions) > s.maxSuggestions {
		suggestions = suggestions[:s.maxSuggestions]
	}
	return suggestions, nil
}

// Titles returns just the suggested titles.
func Titles(suggestions []Suggestion) []string {
	out := make([]string, len(suggestions))
	for i, s := range suggestions {
		out[i] = s.Title
	}
	return out
}
