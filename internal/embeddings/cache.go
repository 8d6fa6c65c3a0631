package embeddings

import (
	"context"
	"fmt"

	"github.com/dgraph-io/ristretto"
)

// cachedProvider memoizes vectors per (provider, dims, text) in a ristretto
// cache. Inputs already cached are not sent to the base provider.
type cachedProvider struct {
	base  Provider
	cache *ristretto.Cache
}

// NewCached wraps base with a cache of roughly size entries. Each vector
// costs 1, so MaxCost is an entry count.
func NewCached(base Provider, size int) (Provider, error) {
	if base == nil || size <= 0 {
		return base, nil
	}
	c, err := ristretto.NewCache(&ristretto.Config{
		NumCounters:        int64(size) * 10,
		MaxCost:            int64(size),
		BufferItems:        64,
		IgnoreInternalCost: true,
	})
	if err != nil {
		return nil, fmt.Errorf("embeddings cache: %w", err)
	}
	return &cachedProvider{base: base, cache: c}, nil
}

func (p *cachedProvider) Name() string    { return p.base.Name() }
func (p *cachedProvider) Dimensions() int { return p.base.Dimensions() }

func (p *cachedProvider) key(text string) string {
	return fmt.Sprintf("%s/%d/%s", p.base.Name(), p.base.Dimensions(), text)
}

func (p *cachedProvider) Embed(ctx context.Context, inputs []string) ([][]float32, error) {
	out := make([][]float32, len(inputs))
	var (
		missing []string
		slots   []int
	)
	for i, in := range inputs {
		if v, ok := p.cache.Get(p.key(in)); ok {
			out[i] = v.([]float32)
			continue
		}
		missing = append(missing, in)
		slots = append(slots, i)
	}
	if len(missing) == 0 {
		return out, nil
	}
	vecs, err := p.base.Embed(ctx, missing)
	if err != nil {
		return nil, err
	}
	if len(vecs) != len(missing) {
		return nil, fmt.Errorf("%s returned %d vectors for %d inputs", p.base.Name(), len(vecs), len(missing))
	}
	for j, v := range vecs {
		out[slots[j]] = v
		p.cache.Set(p.key(missing[j]), v, 1)
	}
	p.cache.Wait()
	return out, nil
}

// Close releases the cache goroutines.
func (p *cachedProvider) Close() error {
	p.cache.Close()
	return nil
}
