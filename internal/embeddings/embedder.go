package embeddings

import (
	"context"
	"fmt"

	"github.com/ZanzyTHEbar/mcp-memo-libsql-go/internal/apptype"
)

// Embedder adapts a batch Provider to single-text embedding and checks the
// returned dimensionality.
type Embedder struct {
	provider Provider
}

// NewEmbedder returns nil when p is nil so callers can treat a missing
// provider as "embeddings disabled".
func NewEmbedder(p Provider) *Embedder {
	if p == nil {
		return nil
	}
	return &Embedder{provider: p}
}

// Provider returns the wrapped provider.
func (e *Embedder) Provider() Provider { return e.provider }

func (e *Embedder) Dimensions() int { return e.provider.Dimensions() }

// Embed returns the vector for text.
func (e *Embedder) Embed(ctx context.Context, text string) ([]float32, error) {
	vecs, err := e.provider.Embed(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	if len(vecs) != 1 {
		return nil, fmt.Errorf("%s returned %d vectors for one input", e.provider.Name(), len(vecs))
	}
	if len(vecs[0]) != e.provider.Dimensions() {
		return nil, fmt.Errorf("%w: %s returned %d dimensions, want %d",
			apptype.ErrInvalidInput, e.provider.Name(), len(vecs[0]), e.provider.Dimensions())
	}
	return vecs[0], nil
}
