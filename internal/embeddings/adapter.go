package embeddings

import (
	"context"
	"fmt"
	"strings"
)

// Adapt modes for WrapToDims. AdaptTruncate only shortens vectors and
// AdaptPad only lengthens them; a vector that would need the other operation
// is rejected.
const (
	AdaptPadOrTruncate = "pad_or_truncate"
	AdaptTruncate      = "truncate"
	AdaptPad           = "pad"
)

// ValidAdaptMode reports whether mode names a known adapt mode. Empty means
// AdaptPadOrTruncate.
func ValidAdaptMode(mode string) bool {
	switch normalizeMode(mode) {
	case AdaptPadOrTruncate, AdaptTruncate, AdaptPad:
		return true
	}
	return false
}

func normalizeMode(mode string) string {
	m := strings.ToLower(strings.TrimSpace(mode))
	if m == "" {
		return AdaptPadOrTruncate
	}
	return m
}

// adaptingProvider wraps a Provider and coerces its embeddings to a target
// dimensionality by zero-padding or truncating.
type adaptingProvider struct {
	base       Provider
	targetDims int
	mode       string
}

// WrapToDims returns a Provider whose vectors have exactly targetDims
// entries. If base already matches targetDims, base is returned unchanged.
func WrapToDims(base Provider, targetDims int, mode string) Provider {
	if base == nil || targetDims <= 0 || base.Dimensions() == targetDims {
		return base
	}
	return &adaptingProvider{base: base, targetDims: targetDims, mode: normalizeMode(mode)}
}

func (p *adaptingProvider) Name() string { return p.base.Name() }

func (p *adaptingProvider) Dimensions() int { return p.targetDims }

func (p *adaptingProvider) Embed(ctx context.Context, inputs []string) ([][]float32, error) {
	vecs, err := p.base.Embed(ctx, inputs)
	if err != nil {
		return nil, err
	}
	out := make([][]float32, len(vecs))
	for i, v := range vecs {
		a, err := adaptVector(v, p.targetDims, p.mode)
		if err != nil {
			return nil, fmt.Errorf("%s embedding %d: %w", p.base.Name(), i, err)
		}
		out[i] = a
	}
	return out, nil
}

// adaptVector returns v with exactly target entries, or an error when mode
// forbids the required change.
func adaptVector(v []float32, target int, mode string) ([]float32, error) {
	n := len(v)
	switch {
	case n == target:
		return v, nil
	case n > target:
		if mode == AdaptPad {
			return nil, fmt.Errorf("%d dims exceed target %d and adapt mode %q does not truncate", n, target, mode)
		}
		return v[:target:target], nil
	default:
		if mode == AdaptTruncate {
			return nil, fmt.Errorf("%d dims are short of target %d and adapt mode %q does not pad", n, target, mode)
		}
		out := make([]float32, target)
		copy(out, v)
		return out, nil
	}
}
