package embeddings

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/sashabaranov/go-openai"
)

const (
	defaultOpenAIModel  = "text-embedding-3-small"
	defaultLocalAIURL   = "http://localhost:8080/v1"
	defaultLocalAIModel = "text-embedding-ada-002"
)

// openAIProvider talks to the OpenAI embeddings API or any server that
// speaks it (LocalAI, llama.cpp).
type openAIProvider struct {
	name   string
	client *openai.Client
	model  string
	dims   int
	// sendDims asks the API for reduced output; only text-embedding-3 supports it.
	sendDims bool
}

func newOpenAI(cfg Config) (Provider, error) {
	apiKey := strings.TrimSpace(cfg.OpenAIAPIKey)
	if apiKey == "" {
		return nil, errors.New("openai embeddings: OPENAI_API_KEY is required")
	}
	model := cfg.OpenAIModel
	if model == "" {
		model = defaultOpenAIModel
	}
	clientConfig := openai.DefaultConfig(apiKey)
	if cfg.OpenAIBaseURL != "" {
		clientConfig.BaseURL = cfg.OpenAIBaseURL
	}
	if cfg.HTTPTimeout > 0 {
		clientConfig.HTTPClient = &http.Client{Timeout: cfg.HTTPTimeout}
	}
	dims := openAIModelDims(model)
	sendDims := false
	if cfg.Dims > 0 && strings.Contains(model, "embedding-3") {
		dims, sendDims = cfg.Dims, true
	}
	return &openAIProvider{
		name:     "openai",
		client:   openai.NewClientWithConfig(clientConfig),
		model:    model,
		dims:     dims,
		sendDims: sendDims,
	}, nil
}

func newLocalAI(cfg Config) (Provider, error) {
	base := cfg.LocalAIBaseURL
	if base == "" {
		base = defaultLocalAIURL
	}
	model := cfg.LocalAIModel
	if model == "" {
		model = defaultLocalAIModel
	}
	// LocalAI ignores the key but the client always sends one.
	clientConfig := openai.DefaultConfig("localai")
	clientConfig.BaseURL = base
	if cfg.HTTPTimeout > 0 {
		clientConfig.HTTPClient = &http.Client{Timeout: cfg.HTTPTimeout}
	}
	dims := cfg.Dims
	if dims <= 0 {
		dims = 1536
	}
	return &openAIProvider{
		name:   "localai",
		client: openai.NewClientWithConfig(clientConfig),
		model:  model,
		dims:   dims,
	}, nil
}

func openAIModelDims(model string) int {
	switch {
	case strings.Contains(model, "large"):
		return 3072
	default:
		return 1536
	}
}

func (p *openAIProvider) Name() string    { return p.name }
func (p *openAIProvider) Dimensions() int { return p.dims }

func (p *openAIProvider) Embed(ctx context.Context, inputs []string) ([][]float32, error) {
	if len(inputs) == 0 {
		return [][]float32{}, nil
	}
	req := openai.EmbeddingRequest{
		Input: inputs,
		Model: openai.EmbeddingModel(p.model),
	}
	if p.sendDims {
		req.Dimensions = p.dims
	}
	resp, err := p.client.CreateEmbeddings(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("%s embeddings: %w", p.name, err)
	}
	if len(resp.Data) != len(inputs) {
		return nil, fmt.Errorf("%s embeddings: got %d vectors for %d inputs", p.name, len(resp.Data), len(inputs))
	}
	out := make([][]float32, len(inputs))
	for _, d := range resp.Data {
		if d.Index < 0 || d.Index >= len(out) {
			return nil, fmt.Errorf("%s embeddings: index %d out of range", p.name, d.Index)
		}
		out[d.Index] = d.Embedding
	}
	return out, nil
}
