package database

import (
	"encoding/binary"
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/ZanzyTHEbar/mcp-memo-libsql-go/internal/apptype"
)

// checkDims rejects vectors that do not fit the embedding column.
func (s *Store) checkDims(v []float32) error {
	if len(v) != s.config.EmbeddingDims {
		return fmt.Errorf("%w: vector must have exactly %d dimensions, got %d", apptype.ErrInvalidInput, s.config.EmbeddingDims, len(v))
	}
	for i, n := range v {
		if math.IsNaN(float64(n)) || math.IsInf(float64(n), 0) {
			return fmt.Errorf("%w: non-finite vector value at index %d", apptype.ErrInvalidInput, i)
		}
	}
	return nil
}

// vectorToString converts a float32 slice to libSQL vector text, e.g.
// "[1, 0.5]". Values are printed with full float32 precision.
func vectorToString(numbers []float32) string {
	parts := make([]string, len(numbers))
	for i, n := range numbers {
		parts[i] = strconv.FormatFloat(float64(n), 'g', -1, 32)
	}
	return "[" + strings.Join(parts, ", ") + "]"
}

// vectorToBlob encodes v in the F32_BLOB layout: little-endian float32s.
func vectorToBlob(v []float32) []byte {
	out := make([]byte, len(v)*4)
	for i, n := range v {
		binary.LittleEndian.PutUint32(out[i*4:], math.Float32bits(n))
	}
	return out
}

// extractVector decodes an F32_BLOB. A nil blob means no embedding.
func extractVector(embedding []byte, dims int) ([]float32, error) {
	if embedding == nil {
		return nil, nil
	}
	expectedBytes := dims * 4
	if len(embedding) != expectedBytes {
		return nil, fmt.Errorf("invalid embedding size: expected %d bytes for %d-dimensional vector, got %d", expectedBytes, dims, len(embedding))
	}
	vector := make([]float32, dims)
	for i := 0; i < dims; i++ {
		bits := binary.LittleEndian.Uint32(embedding[i*4 : (i+1)*4])
		vector[i] = math.Float32frombits(bits)
	}
	return vector, nil
}
