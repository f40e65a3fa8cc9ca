package catalog

import (
	"bytes"
	"errors"
	"math"
	"path/filepath"
	"testing"
)

func TestNewSimilarityMatrix_rejectsNonSquare(t *testing.T) {
	_, err := NewSimilarityMatrix([][]float32{{1, 0}, {0}})
	if !errors.Is(err, ErrMalformedMatrix) {
		t.Fatalf("expected ErrMalformedMatrix, got %v", err)
	}
}

func TestNewSimilarityMatrix_rejectsNaN(t *testing.T) {
	nan := float32(math.NaN())
	_, err := NewSimilarityMatrix([][]float32{{1, nan}, {0, 1}})
	if !errors.Is(err, ErrMalformedMatrix) {
		t.Fatalf("expected ErrMalformedMatrix, got %v", err)
	}
}

func TestMatrix_SaveLoad(t *testing.T) {
	m, err := NewSimilarityMatrix([][]float32{
		{1, 0.5, 0.25},
		{0.5, 1, -0.75},
		{0.25, -0.75, 1},
	})
	if err != nil {
		t.Fatal(err)
	}
	path := filepath.Join(t.TempDir(), "nested", "similarity.bin")
	if err := SaveMatrix(path, m); err != nil {
		t.Fatal(err)
	}
	loaded, err := LoadMatrix(path)
	if err != nil {
		t.Fatal(err)
	}
	if loaded.Dim() != 3 {
		t.Fatalf("Dim=%d, want 3", loaded.Dim())
	}
	for i := 0; i < 3; i++ {
		for j, v := range m.Row(i) {
			if got := loaded.Row(i)[j]; got != v {
				t.Errorf("[%d][%d]=%v, want %v", i, j, got, v)
			}
		}
	}
}

func TestReadMatrix_rejectsTruncatedAndTrailing(t *testing.T) {
	m, _ := NewSimilarityMatrix([][]float32{{1, 0}, {0, 1}})
	var buf bytes.Buffer
	if err := WriteMatrix(&buf, m); err != nil {
		t.Fatal(err)
	}
	full := buf.Bytes()
	if len(full) != 4+4*4 {
		t.Fatalf("encoded length=%d, want 20", len(full))
	}

	tests := []struct {
		name string
		data []byte
	}{
		{"empty", nil},
		{"short header", full[:2]},
		{"truncated row", full[:len(full)-1]},
		{"trailing bytes", append(append([]byte(nil), full...), 0)},
		{"huge dimension", []byte{0xff, 0xff, 0xff, 0xff}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ReadMatrix(bytes.NewReader(tt.data))
			if !errors.Is(err, ErrMalformedMatrix) {
				t.Errorf("expected ErrMalformedMatrix, got %v", err)
			}
		})
	}
}

func TestMatrix_RowAliasCannotGrow(t *testing.T) {
	m, _ := NewSimilarityMatrix([][]float32{{1, 2}, {3, 4}})
	row := m.Row(0)
	row = append(row, 99)
	if m.Row(1)[0] != 3 {
		t.Errorf("append to row 0 overwrote row 1: %v", m.Row(1))
	}
	_ = row
}

func TestEncodeDecodeRow(t *testing.T) {
	row := []float32{0.1, -2, 3.5}
	got := DecodeRow(EncodeRow(row))
	if len(got) != len(row) {
		t.Fatalf("len=%d", len(got))
	}
	for i := range row {
		if got[i] != row[i] {
			t.Errorf("[%d]=%v, want %v", i, got[i], row[i])
		}
	}
}
