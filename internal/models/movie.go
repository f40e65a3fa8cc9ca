// Package models defines core data structures for movies, recommendations, and API payloads.
package models

import "strings"

// Movie is one row of the catalog. RowIndex is its position in both the
// movie table and the similarity matrix.
type Movie struct {
	ID       string `json:"movie_id" db:"movie_id"`
	Name     string `json:"movie_name" db:"movie_name"`
	RowIndex int    `json:"row_index" db:"row_index"`
}

// IsIMDbID reports whether id has the external "tt..." form.
func IsIMDbID(id string) bool {
	return strings.HasPrefix(id, "tt")
}

// Recommendation is a recommended movie with its resolved poster URL.
type Recommendation struct {
	Name   string `json:"name"`
	Poster string `json:"poster"`
}

// SimilarMovie is a ranked neighbour without poster enrichment.
type SimilarMovie struct {
	Name  string  `json:"name"`
	Score float64 `json:"score"`
}
