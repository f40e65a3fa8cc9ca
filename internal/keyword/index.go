// Package keyword provides typo-tolerant movie title search and "did you mean" suggestions.
package keyword

import (
	"context"

	"github.com/hyperjump/reelmatch/internal/models"
)

// SearchOptions optional parameters for title search. Nil means use defaults.
type SearchOptions struct {
	// FuzzyEnabled enables fuzzy matching for typo tolerance.
	FuzzyEnabled bool
	// Fuzziness is the maximum Levenshtein edit distance per term (1 or 2).
	// Default is 2 when FuzzyEnabled is true.
	Fuzziness int
}

// TitleIndex defines movie title indexing and search operations.
type TitleIndex interface {
	// Sync makes the index hold exactly movies. It is a no-op when the index was
	// already built for the same non-empty catalog version.
	Sync(ctx context.Context, movies []models.Movie, version string) error
	Search(ctx context.Context, query string, limit int, opts *SearchOptions) ([]*TitleResult, error)
	// DocCount returns the total number of titles in the index.
	DocCount() (uint64, error)
	Close() error
}

// TitleResult is a single title search hit.
type TitleResult struct {
	RowIndex int
	Name     string
	Score    float64
}
