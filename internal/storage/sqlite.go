package storage

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"

	"github.com/hyperjump/reelmatch/internal/catalog"
	"github.com/hyperjump/reelmatch/internal/models"
)

const (
	metaVersion    = "catalog_version"
	metaImportedAt = "imported_at"
)

var _ CatalogStore = (*SQLiteStorage)(nil)

// SQLiteStorage implements CatalogStore using SQLite.
type SQLiteStorage struct {
	db *sql.DB
}

// NewSQLiteStorage opens or creates a SQLite database at dbPath and initializes the schema.
// Parent directories are created if they do not exist.
func NewSQLiteStorage(dbPath string) (*SQLiteStorage, error) {
	if dir := filepath.Dir(dbPath); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}
	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to enable WAL: %w", err)
	}

	if err := initSchema(db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	return &SQLiteStorage{db: db}, nil
}

func initSchema(db *sql.DB) error {
	schema := `
	CREATE TABLE IF NOT EXISTS movies (
		row_index INTEGER PRIMARY KEY,
		movie_id TEXT NOT NULL,
		movie_name TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_movies_name ON movies(movie_name);

	CREATE TABLE IF NOT EXISTS similarity (
		row_index INTEGER PRIMARY KEY,
		scores BLOB NOT NULL,
		FOREIGN KEY (row_index) REFERENCES movies(row_index) ON DELETE CASCADE
	);

	CREATE TABLE IF NOT EXISTS meta (
		key TEXT PRIMARY KEY,
		value TEXT NOT NULL
	);
	`
	_, err := db.Exec(schema)
	return err
}

// SaveCatalog replaces the stored movies and matrix in one transaction and stamps a fresh version.
// The input is validated with catalog.New first, so a store never holds a mismatched pair.
func (s *SQLiteStorage) SaveCatalog(ctx context.Context, movies []models.Movie, matrix *catalog.SimilarityMatrix) (string, error) {
	if _, err := catalog.New(movies, matrix); err != nil {
		return "", fmt.Errorf("invalid catalog: %w", err)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return "", err
	}
	defer tx.Rollback()

	for _, table := range []string{"similarity", "movies", "meta"} {
		if _, err := tx.ExecContext(ctx, "DELETE FROM "+table); err != nil {
			return "", fmt.Errorf("failed to clear %s: %w", table, err)
		}
	}

	movieStmt, err := tx.PrepareContext(ctx,
		`INSERT INTO movies (row_index, movie_id, movie_name) VALUES (?, ?, ?)`,
	)
	if err != nil {
		return "", err
	}
	defer movieStmt.Close()

	rowStmt, err := tx.PrepareContext(ctx,
		`INSERT INTO similarity (row_index, scores) VALUES (?, ?)`,
	)
	if err != nil {
		return "", err
	}
	defer rowStmt.Close()

	for i, m := range movies {
		if _, err := movieStmt.ExecContext(ctx, i, m.ID, m.Name); err != nil {
			return "", fmt.Errorf("failed to insert movie %d: %w", i, err)
		}
		if _, err := rowStmt.ExecContext(ctx, i, catalog.EncodeRow(matrix.Row(i))); err != nil {
			return "", fmt.Errorf("failed to insert similarity row %d: %w", i, err)
		}
	}

	version := uuid.New().String()
	if _, err := tx.ExecContext(ctx,
		`INSERT INTO meta (key, value) VALUES (?, ?), (?, ?)`,
		metaVersion, version, metaImportedAt, time.Now().UTC().Format(time.RFC3339),
	); err != nil {
		return "", fmt.Errorf("failed to write catalog version: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return "", err
	}
	return version, nil
}

// LoadCatalog reads every movie and similarity row ordered by row index.
func (s *SQLiteStorage) LoadCatalog(ctx context.Context) (*catalog.Catalog, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT m.row_index, m.movie_id, m.movie_name, s.scores
		 FROM movies m LEFT JOIN similarity s ON s.row_index = m.row_index
		 ORDER BY m.row_index`,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var movies []models.Movie
	var matrix [][]float32
	for rows.Next() {
		var m models.Movie
		var scores []byte
		if err := rows.Scan(&m.RowIndex, &m.ID, &m.Name, &scores); err != nil {
			return nil, err
		}
		if scores == nil {
			return nil, fmt.Errorf("%w: no similarity row for movie %d", catalog.ErrMalformedMatrix, m.RowIndex)
		}
		movies = append(movies, m)
		matrix = append(matrix, catalog.DecodeRow(scores))
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if len(movies) == 0 {
		return nil, ErrEmptyCatalog
	}

	sm, err := catalog.NewSimilarityMatrix(matrix)
	if err != nil {
		return nil, err
	}
	c, err := catalog.New(movies, sm)
	if err != nil {
		return nil, err
	}
	version, err := s.CatalogVersion(ctx)
	if err != nil {
		return nil, err
	}
	return c.WithVersion(version), nil
}

// CountMovies returns the total number of stored movies.
func (s *SQLiteStorage) CountMovies(ctx context.Context) (int64, error) {
	var count int64
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM movies`).Scan(&count)
	return count, err
}

// CatalogVersion returns the version stamped by the last SaveCatalog, or "" if none.
func (s *SQLiteStorage) CatalogVersion(ctx context.Context) (string, error) {
	var version string
	err := s.db.QueryRowContext(ctx, `SELECT value FROM meta WHERE key = ?`, metaVersion).Scan(&version)
	if err == sql.ErrNoRows {
		return "", nil
	}
	return version, err
}

// Close closes the database connection.
func (s *SQLiteStorage) Close() error {
	return s.db.Close()
}
