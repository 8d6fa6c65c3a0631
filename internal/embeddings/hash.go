package embeddings

import (
	"context"
	"hash/fnv"
	"math"
	"strings"
	"unicode"
)

// DefaultHashDims matches all-MiniLM-L6-v2.
const DefaultHashDims = 384

// HashProvider produces deterministic bag-of-words vectors by feature
// hashing lowercase tokens. Texts sharing words get similar vectors, which
// is enough for offline development and tests.
type HashProvider struct {
	dims int
}

// NewHash returns a HashProvider with the given dimensionality.
func NewHash(dims int) *HashProvider {
	if dims <= 0 {
		dims = DefaultHashDims
	}
	return &HashProvider{dims: dims}
}

func (h *HashProvider) Name() string    { return "hash" }
func (h *HashProvider) Dimensions() int { return h.dims }

func (h *HashProvider) Embed(_ context.Context, inputs []string) ([][]float32, error) {
	out := make([][]float32, len(inputs))
	for i, in := range inputs {
		out[i] = h.vector(in)
	}
	return out, nil
}

func (h *HashProvider) vector(text string) []float32 {
	v := make([]float32, h.dims)
	tokens := strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsNumber(r)
	})
	for _, tok := range tokens {
		f := fnv.New64a()
		_, _ = f.Write([]byte(tok))
		sum := f.Sum64()
		sign := float32(1)
		if sum>>63 == 1 {
			sign = -1
		}
		v[sum%uint64(h.dims)] += sign
	}
	return normalize(v)
}

// normalize converts v to a unit vector in place; zero vectors are returned as is.
func normalize(v []float32) []float32 {
	var norm float64
	for _, x := range v {
		norm += float64(x) * float64(x)
	}
	if norm == 0 {
		return v
	}
	n := float32(math.Sqrt(norm))
	for i := range v {
		v[i] /= n
	}
	return v
}
