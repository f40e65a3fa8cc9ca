package catalog

import (
	"bufio"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"
)

// ErrMalformedMatrix is returned when a similarity matrix artifact cannot be decoded.
var ErrMalformedMatrix = errors.New("malformed similarity matrix")

// maxDimension bounds the header value so a corrupt file cannot trigger a huge allocation.
const maxDimension = 1 << 18

// SimilarityMatrix is a dense square matrix of similarity scores stored row-major.
// It is never mutated after construction.
type SimilarityMatrix struct {
	n    int
	data []float32
}

// NewSimilarityMatrix copies rows into a matrix. Every row must have len(rows) entries.
func NewSimilarityMatrix(rows [][]float32) (*SimilarityMatrix, error) {
	n := len(rows)
	data := make([]float32, 0, n*n)
	for i, row := range rows {
		if len(row) != n {
			return nil, fmt.Errorf("%w: row %d has %d columns, want %d", ErrMalformedMatrix, i, len(row), n)
		}
		for j, v := range row {
			if math.IsNaN(float64(v)) {
				return nil, fmt.Errorf("%w: NaN at [%d][%d]", ErrMalformedMatrix, i, j)
			}
		}
		data = append(data, row...)
	}
	return &SimilarityMatrix{n: n, data: data}, nil
}

// Dim returns the number of rows (and columns).
func (m *SimilarityMatrix) Dim() int {
	return m.n
}

// Row returns row i. The returned slice aliases the matrix and must not be modified.
func (m *SimilarityMatrix) Row(i int) []float32 {
	return m.data[i*m.n : (i+1)*m.n : (i+1)*m.n]
}

// WriteMatrix encodes m as: dimension (uint32), then dimension*dimension float32 values, all little endian.
func WriteMatrix(w io.Writer, m *SimilarityMatrix) error {
	bw := bufio.NewWriter(w)
	if err := binary.Write(bw, binary.LittleEndian, uint32(m.n)); err != nil {
		return fmt.Errorf("write dimension: %w", err)
	}
	buf := make([]byte, 4)
	for _, v := range m.data {
		binary.LittleEndian.PutUint32(buf, math.Float32bits(v))
		if _, err := bw.Write(buf); err != nil {
			return fmt.Errorf("write score: %w", err)
		}
	}
	return bw.Flush()
}

// ReadMatrix decodes a matrix written by WriteMatrix. Truncated input, trailing bytes,
// and NaN scores are rejected with ErrMalformedMatrix.
func ReadMatrix(r io.Reader) (*SimilarityMatrix, error) {
	br := bufio.NewReader(r)
	var dim uint32
	if err := binary.Read(br, binary.LittleEndian, &dim); err != nil {
		return nil, fmt.Errorf("%w: read dimension: %v", ErrMalformedMatrix, err)
	}
	n := int(dim)
	if n > maxDimension {
		return nil, fmt.Errorf("%w: dimension %d exceeds %d", ErrMalformedMatrix, n, maxDimension)
	}
	rows := make([][]float32, n)
	buf := make([]byte, n*4)
	for i := 0; i < n; i++ {
		if _, err := io.ReadFull(br, buf); err != nil {
			return nil, fmt.Errorf("%w: read row %d: %v", ErrMalformedMatrix, i, err)
		}
		rows[i] = bytesToFloat32Slice(buf)
	}
	if _, err := br.ReadByte(); err != io.EOF {
		return nil, fmt.Errorf("%w: trailing data after %d rows", ErrMalformedMatrix, n)
	}
	return NewSimilarityMatrix(rows)
}

// SaveMatrix writes m to path, creating parent directories.
func SaveMatrix(path string, m *SimilarityMatrix) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("create matrix dir: %w", err)
	}
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create matrix file: %w", err)
	}
	if err := WriteMatrix(f, m); err != nil {
		_ = f.Close()
		return err
	}
	return f.Close()
}

// LoadMatrix reads a matrix artifact from path.
func LoadMatrix(path string) (*SimilarityMatrix, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open similarity matrix: %w", err)
	}
	defer f.Close()
	m, err := ReadMatrix(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return m, nil
}

// EncodeRow packs a row into little endian float32 bytes.
func EncodeRow(row []float32) []byte {
	const size = 4
	out := make([]byte, len(row)*size)
	for i, v := range row {
		binary.LittleEndian.PutUint32(out[i*size:(i+1)*size], math.Float32bits(v))
	}
	return out
}

// DecodeRow is the inverse of EncodeRow.
func DecodeRow(b []byte) []float32 {
	return bytesToFloat32Slice(b)
}

func bytesToFloat32Slice(b []byte) []float32 {
	const size = 4
	out := make([]float32, len(b)/size)
	for i := range out {
		out[i] = math.Float32frombits(binary.LittleEndian.Uint32(b[i*size : (i+1)*size]))
	}
	return out
}
