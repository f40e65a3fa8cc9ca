// Package catalog provides the read-only movie table and its companion similarity matrix.
package catalog

import (
	"fmt"
	"strings"

	"github.com/hyperjump/reelmatch/internal/models"
)

// Catalog is an immutable movie table paired with a similarity matrix whose rows and columns
// follow the table's order. It is safe for concurrent use without locking.
type Catalog struct {
	movies  []models.Movie
	lower   []string
	byName  map[string]int
	matrix  *SimilarityMatrix
	version string
}

// New validates the row mapping between movies and matrix and builds lookup tables.
// It fails when the matrix dimension differs from the number of movies, when a movie's
// RowIndex differs from its position, or when a movie has an empty id or name.
func New(movies []models.Movie, matrix *SimilarityMatrix) (*Catalog, error) {
	if matrix == nil {
		return nil, fmt.Errorf("similarity matrix is nil")
	}
	if matrix.Dim() != len(movies) {
		return nil, fmt.Errorf("similarity matrix is %dx%d but catalog has %d movies",
			matrix.Dim(), matrix.Dim(), len(movies))
	}
	c := &Catalog{
		movies: make([]models.Movie, len(movies)),
		lower:  make([]string, len(movies)),
		byName: make(map[string]int, len(movies)),
		matrix: matrix,
	}
	for i, m := range movies {
		if m.RowIndex != i {
			return nil, fmt.Errorf("movie %q has row index %d at position %d", m.Name, m.RowIndex, i)
		}
		if m.ID == "" || m.Name == "" {
			return nil, fmt.Errorf("movie at row %d has empty id or name", i)
		}
		c.movies[i] = m
		c.lower[i] = strings.ToLower(m.Name)
		// First occurrence wins for duplicate names.
		if _, ok := c.byName[m.Name]; !ok {
			c.byName[m.Name] = i
		}
	}
	return c, nil
}

// WithVersion returns c labelled with a build version (shown by /health).
func (c *Catalog) WithVersion(version string) *Catalog {
	c.version = version
	return c
}

// Version returns the artifact build version, or "" when the source carries none.
func (c *Catalog) Version() string {
	return c.version
}

// Len returns the number of movies.
func (c *Catalog) Len() int {
	return len(c.movies)
}

// Movie returns the record at row i.
func (c *Catalog) Movie(i int) (models.Movie, error) {
	if i < 0 || i >= len(c.movies) {
		return models.Movie{}, fmt.Errorf("row %d out of range [0,%d)", i, len(c.movies))
	}
	return c.movies[i], nil
}

// Movies returns a copy of the movie table in row order.
func (c *Catalog) Movies() []models.Movie {
	return append([]models.Movie(nil), c.movies...)
}

// Row returns the similarity row for movie i. The slice must not be modified.
func (c *Catalog) Row(i int) ([]float32, error) {
	if i < 0 || i >= len(c.movies) {
		return nil, fmt.Errorf("row %d out of range [0,%d)", i, len(c.movies))
	}
	return c.matrix.Row(i), nil
}

// Matrix returns the underlying similarity matrix.
func (c *Catalog) Matrix() *SimilarityMatrix {
	return c.matrix
}

// FindIndexByExactName returns the row of the first movie whose name equals name
// (case-sensitive). It returns an error wrapping models.ErrNotFound when there is none.
func (c *Catalog) FindIndexByExactName(name string) (int, error) {
	idx, ok := c.byName[name]
	if !ok {
		return -1, fmt.Errorf("movie %q: %w", name, models.ErrNotFound)
	}
	return idx, nil
}

// SearchBySubstring returns, in catalog order, every name containing query
// (case-insensitive). An empty query matches every movie.
func (c *Catalog) SearchBySubstring(query string) []string {
	q := strings.ToLower(query)
	matches := make([]string, 0)
	for i, name := range c.lower {
		if strings.Contains(name, q) {
			matches = append(matches, c.movies[i].Name)
		}
	}
	return matches
}
