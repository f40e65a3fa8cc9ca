// Package storage persists the movie catalog and similarity matrix in a database.
package storage

import (
	"context"
	"errors"

	"github.com/hyperjump/reelmatch/internal/catalog"
	"github.com/hyperjump/reelmatch/internal/models"
)

// ErrEmptyCatalog is returned when loading from a store that holds no movies.
var ErrEmptyCatalog = errors.New("catalog store is empty")

// CatalogStore defines catalog persistence operations.
type CatalogStore interface {
	// SaveCatalog replaces the stored catalog and returns the new catalog version.
	SaveCatalog(ctx context.Context, movies []models.Movie, matrix *catalog.SimilarityMatrix) (string, error)
	// LoadCatalog rebuilds an in-memory catalog from the store.
	LoadCatalog(ctx context.Context) (*catalog.Catalog, error)

	// Stats
	CountMovies(ctx context.Context) (int64, error)
	CatalogVersion(ctx context.Context) (string, error)

	Close() error
}
