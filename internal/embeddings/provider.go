package embeddings

import (
	"context"
	"fmt"
	"strings"
	"time"
)

// Provider defines a simple embeddings provider interface.
// Implementations should be concurrency-safe.
type Provider interface {
	// Name returns the provider name (e.g., "openai", "ollama").
	Name() string
	// Dimensions returns the embedding dimensionality this provider produces.
	Dimensions() int
	// Embed returns one embedding per input string.
	Embed(ctx context.Context, inputs []string) ([][]float32, error)
}

// Config selects and configures a provider.
type Config struct {
	// Provider is "openai", "localai", "ollama", "hash", or empty for disabled.
	Provider string

	OpenAIAPIKey  string
	OpenAIBaseURL string
	OpenAIModel   string

	LocalAIBaseURL string
	LocalAIModel   string

	OllamaHost  string
	OllamaModel string

	HTTPTimeout time.Duration
	// Dims, when positive, forces the output dimensionality through WrapToDims.
	Dims      int
	AdaptMode string
	// CacheSize bounds the ristretto cache in entries; 0 disables caching.
	CacheSize int
}

// New constructs the configured provider, wrapped with the dimension
// adapter and cache when requested. It returns (nil, nil) when no provider
// is configured.
func New(cfg Config) (Provider, error) {
	name := strings.ToLower(strings.TrimSpace(cfg.Provider))
	var (
		p   Provider
		err error
	)
	switch name {
	case "":
		return nil, nil
	case "openai":
		p, err = newOpenAI(cfg)
	case "localai", "llamacpp", "llama.cpp":
		p, err = newLocalAI(cfg)
	case "ollama":
		p, err = newOllama(cfg)
	case "hash":
		dims := cfg.Dims
		if dims <= 0 {
			dims = DefaultHashDims
		}
		p = NewHash(dims)
	default:
		return nil, fmt.Errorf("unknown embeddings provider %q", cfg.Provider)
	}
	if err != nil {
		return nil, err
	}
	if !ValidAdaptMode(cfg.AdaptMode) {
		return nil, fmt.Errorf("unknown adapt mode %q", cfg.AdaptMode)
	}
	p = WrapToDims(p, cfg.Dims, cfg.AdaptMode)
	if cfg.CacheSize > 0 {
		return NewCached(p, cfg.CacheSize)
	}
	return p, nil
}
