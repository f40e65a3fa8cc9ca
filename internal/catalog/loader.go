package catalog

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/hyperjump/reelmatch/internal/models"
)

// ErrMalformedMovies is returned when the movies table cannot be decoded.
var ErrMalformedMovies = errors.New("malformed movies table")

const (
	columnID   = "movie_id"
	columnName = "movie_name"
)

// ReadMovies decodes a CSV movie table. The header must name the movie_id and movie_name
// columns (in any order, extra columns ignored). RowIndex is assigned from row order.
func ReadMovies(r io.Reader) ([]models.Movie, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	header, err := cr.Read()
	if err != nil {
		return nil, fmt.Errorf("%w: read header: %v", ErrMalformedMovies, err)
	}
	idCol, nameCol := -1, -1
	for i, h := range header {
		switch strings.TrimSpace(strings.TrimPrefix(h, "\ufeff")) {
		case columnID:
			idCol = i
		case columnName:
			nameCol = i
		}
	}
	if idCol < 0 || nameCol < 0 {
		return nil, fmt.Errorf("%w: header must contain %s and %s", ErrMalformedMovies, columnID, columnName)
	}
	var movies []models.Movie
	for line := 2; ; line++ {
		rec, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrMalformedMovies, err)
		}
		if idCol >= len(rec) || nameCol >= len(rec) {
			return nil, fmt.Errorf("%w: line %d has %d fields", ErrMalformedMovies, line, len(rec))
		}
		id := strings.TrimSpace(rec[idCol])
		if id == "" || rec[nameCol] == "" {
			return nil, fmt.Errorf("%w: line %d has empty id or name", ErrMalformedMovies, line)
		}
		movies = append(movies, models.Movie{ID: id, Name: rec[nameCol], RowIndex: len(movies)})
	}
	return movies, nil
}

// WriteMovies encodes movies as CSV in row order with a movie_id,movie_name header.
func WriteMovies(w io.Writer, movies []models.Movie) error {
	cw := csv.NewWriter(w)
	if err := cw.Write([]string{columnID, columnName}); err != nil {
		return err
	}
	for _, m := range movies {
		if err := cw.Write([]string{m.ID, m.Name}); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

// LoadMovies reads the movie table from a CSV file.
func LoadMovies(path string) ([]models.Movie, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open movies table: %w", err)
	}
	defer f.Close()
	movies, err := ReadMovies(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return movies, nil
}

// SaveMovies writes the movie table to a CSV file, creating parent directories.
func SaveMovies(path string, movies []models.Movie) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("create movies dir: %w", err)
	}
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create movies file: %w", err)
	}
	if err := WriteMovies(f, movies); err != nil {
		_ = f.Close()
		return err
	}
	return f.Close()
}

// LoadFiles builds a Catalog from a CSV movie table and a binary similarity matrix.
func LoadFiles(moviesPath, matrixPath string) (*Catalog, error) {
	movies, err := LoadMovies(moviesPath)
	if err != nil {
		return nil, err
	}
	m, err := LoadMatrix(matrixPath)
	if err != nil {
		return nil, err
	}
	return New(movies, m)
}
