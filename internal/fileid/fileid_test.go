package fileid

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}
}

func TestArtifactVersion_deterministic(t *testing.T) {
	dir := t.TempDir()
	movies := filepath.Join(dir, "movies.csv")
	matrix := filepath.Join(dir, "similarity.bin")
	writeFile(t, movies, "movie_id,movie_name\n")
	writeFile(t, matrix, "\x00\x00\x00\x00")

	v1, err := ArtifactVersion(movies, matrix)
	if err != nil {
		t.Fatal(err)
	}
	v2, err := ArtifactVersion(movies, matrix)
	if err != nil {
		t.Fatal(err)
	}
	if v1 != v2 {
		t.Errorf("same files should give same version: %q vs %q", v1, v2)
	}
	if !strings.HasPrefix(v1, prefix) {
		t.Errorf("version should have prefix %q: got %q", prefix, v1)
	}
}

func TestArtifactVersion_changesOnRewrite(t *testing.T) {
	dir := t.TempDir()
	movies := filepath.Join(dir, "movies.csv")
	writeFile(t, movies, "movie_id,movie_name\n")
	before, err := ArtifactVersion(movies)
	if err != nil {
		t.Fatal(err)
	}

	writeFile(t, movies, "movie_id,movie_name\n1,Heat\n")
	later := time.Now().Add(2 * time.Second)
	if err := os.Chtimes(movies, later, later); err != nil {
		t.Fatal(err)
	}
	after, err := ArtifactVersion(movies)
	if err != nil {
		t.Fatal(err)
	}
	if before == after {
		t.Errorf("rewritten artifact should change version: %q", before)
	}
}

func TestArtifactVersion_missingFile(t *testing.T) {
	if _, err := ArtifactVersion(filepath.Join(t.TempDir(), "missing.csv")); err == nil {
		t.Error("expected error for missing artifact")
	}
}
