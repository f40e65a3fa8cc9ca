package recommend

import (
	"context"
	"fmt"
	"math/rand"
	"testing"

	"github.com/hyperjump/reelmatch/internal/catalog"
	"github.com/hyperjump/reelmatch/internal/models"
)

func benchCatalog(b *testing.B, n int) *catalog.Catalog {
	b.Helper()
	rng := rand.New(rand.NewSource(1))
	movies := make([]models.Movie, n)
	rows := make([][]float32, n)
	for i := range movies {
		movies[i] = models.Movie{ID: fmt.Sprint(i), Name: fmt.Sprintf("Movie %d", i), RowIndex: i}
		rows[i] = make([]float32, n)
		for j := range rows[i] {
			rows[i][j] = rng.Float32()
		}
		rows[i][i] = 1
	}
	m, err := catalog.NewSimilarityMatrix(rows)
	if err != nil {
		b.Fatal(err)
	}
	c, err := catalog.New(movies, m)
	if err != nil {
		b.Fatal(err)
	}
	return c
}

func BenchmarkRank(b *testing.B) {
	c := benchCatalog(b, 5000)
	row, _ := c.Row(42)
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_ = TopK(Rank(row), 42, 5, nil)
	}
}

func BenchmarkRecommend(b *testing.B) {
	c := benchCatalog(b, 5000)
	svc := NewService(c, &stubResolver{}, Options{})
	ctx := context.Background()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if _, err := svc.Recommend(ctx, "Movie 42"); err != nil {
			b.Fatal(err)
		}
	}
}

func BenchmarkSearchBySubstring(b *testing.B) {
	c := benchCatalog(b, 5000)
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_ = c.SearchBySubstring("movie 4")
	}
}
