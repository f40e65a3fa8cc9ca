package models

import (
	"fmt"
	"strings"
)

// RecommendRequest is the body of POST /recommend.
type RecommendRequest struct {
	Movie string `json:"movie" validate:"required"`
}

// RecommendResponse is the success body of POST /recommend.
type RecommendResponse struct {
	RecommendedMovies []Recommendation `json:"recommended_movies"`
}

// SearchQuery represents a title search with optional fuzzy matching.
// Limit caps fuzzy results only; substring search returns every match.
type SearchQuery struct {
	Query string `json:"q"`
	Fuzzy bool   `json:"fuzzy,omitempty"`
	Limit int    `json:"limit,omitempty"`
}

// Fuzzy result limits used when no configured limits are given.
const (
	DefaultSearchLimit = 20
	MaxSearchLimit     = 100
)

// Validate normalizes the limit with DefaultSearchLimit and MaxSearchLimit.
func (q *SearchQuery) Validate() error {
	return q.ValidateWithLimits(DefaultSearchLimit, MaxSearchLimit)
}

// ValidateWithLimits fills an unset limit with defaultLimit and caps it at maxLimit.
// Substring search accepts an empty query (matches everything); fuzzy search needs at least
// one non-blank character.
func (q *SearchQuery) ValidateWithLimits(defaultLimit, maxLimit int) error {
	if q.Fuzzy && strings.TrimSpace(q.Query) == "" {
		return fmt.Errorf("%w: fuzzy search needs a query", ErrValidation)
	}
	if q.Limit <= 0 {
		q.Limit = defaultLimit
	}
	if maxLimit > 0 && q.Limit > maxLimit {
		q.Limit = maxLimit
	}
	return nil
}

// SearchResponse is the body of GET /search.
type SearchResponse struct {
	Matches []string `json:"matches"`
}

// SimilarResponse is the body of GET /similar.
type SimilarResponse struct {
	Movie   string         `json:"movie"`
	Similar []SimilarMovie `json:"similar"`
}

// PosterCheckResponse is the body of GET /test_poster/{movie_id}.
type PosterCheckResponse struct {
	MovieID   string `json:"movie_id"`
	PosterURL string `json:"poster_url"`
	Success   bool   `json:"success"`
}

// ErrorResponse is the body of every non-2xx response.
type ErrorResponse struct {
	Error       string   `json:"error"`
	Suggestions []string `json:"suggestions,omitempty"`
}

// HealthResponse is the body of GET /health.
type HealthResponse struct {
	Status           string   `json:"status"`
	Movies           int      `json:"movies"`
	CatalogVersion   string   `json:"catalog_version"`
	ArtifactsStale   bool     `json:"artifacts_stale"`
	ArtifactBytes    int64    `json:"artifact_bytes"`
	MissingArtifacts []string `json:"missing_artifacts,omitempty"`
}
