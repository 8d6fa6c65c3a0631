// Package graph scores memo embeddings against each other: cosine
// similarity, exact top-k search and the 2D/3D similarity graphs.
package graph

import (
	"fmt"
	"math"

	"github.com/ZanzyTHEbar/mcp-memo-libsql-go/internal/apptype"
)

// CosineSimilarity returns dot(a,b)/(|a||b|) accumulated in float64.
// A zero-magnitude vector yields 0. Vectors of different length are
// rejected with apptype.ErrInvalidInput.
func CosineSimilarity(a, b []float32) (float64, error) {
	if len(a) != len(b) {
		return 0, fmt.Errorf("%w: vector length mismatch %d != %d", apptype.ErrInvalidInput, len(a), len(b))
	}
	var dot, normA, normB float64
	for i := range a {
		x, y := float64(a[i]), float64(b[i])
		dot += x * y
		normA += x * x
		normB += y * y
	}
	if normA == 0 || normB == 0 {
		return 0, nil
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB)), nil
}

// round4 rounds to four decimal places, half away from zero.
func round4(x float64) float64 {
	return math.Round(x*1e4) / 1e4
}
