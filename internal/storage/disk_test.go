package storage

import (
	"os"
	"path/filepath"
	"testing"
)

func TestDiskUsage(t *testing.T) {
	dir := t.TempDir()

	movies := filepath.Join(dir, "movies.csv")
	if err := os.WriteFile(movies, []byte("movie_id,movie_name\n"), 0644); err != nil {
		t.Fatal(err)
	}
	index := filepath.Join(dir, "titles.bleve")
	if err := os.Mkdir(index, 0755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(index, "a"), []byte("ab"), 0644); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(index, "b"), []byte("c"), 0644); err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		name        string
		paths       []string
		wantBytes   int64
		wantMissing int
	}{
		{"single file", []string{movies}, 20, 0},
		{"directory", []string{index}, 3, 0},
		{"file and directory", []string{movies, index}, 23, 0},
		{"missing path reported", []string{movies, filepath.Join(dir, "similarity.bin")}, 20, 1},
		{"empty path skipped", []string{"", movies}, 20, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := DiskUsage(tt.paths...)
			if err != nil {
				t.Fatal(err)
			}
			if got.Bytes != tt.wantBytes {
				t.Errorf("Bytes=%d, want %d", got.Bytes, tt.wantBytes)
			}
			if len(got.Missing) != tt.wantMissing {
				t.Errorf("Missing=%v, want %d entries", got.Missing, tt.wantMissing)
			}
		})
	}
}
