package embeddings

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"net/url"
	"path"
	"time"
)

const (
	defaultOllamaModel   = "nomic-embed-text"
	defaultOllamaTimeout = 60 * time.Second
)

type ollamaProvider struct {
	host  *url.URL
	model string
	dims  int
	http  *http.Client
}

func newOllama(cfg Config) (Provider, error) {
	if cfg.OllamaHost == "" {
		return nil, errors.New("ollama embeddings: OLLAMA_HOST is required")
	}
	host, err := url.Parse(cfg.OllamaHost)
	if err != nil {
		return nil, fmt.Errorf("ollama embeddings: parse host: %w", err)
	}
	model := cfg.OllamaModel
	if model == "" {
		model = defaultOllamaModel
	}
	// Default to 60s to tolerate cold model loads.
	timeout := cfg.HTTPTimeout
	if timeout <= 0 {
		timeout = defaultOllamaTimeout
	}
	return &ollamaProvider{host: host, model: model, dims: 768, http: &http.Client{Timeout: timeout}}, nil
}

func (p *ollamaProvider) Name() string    { return "ollama" }
func (p *ollamaProvider) Dimensions() int { return p.dims }

func (p *ollamaProvider) endpoint(name string) string {
	u := *p.host
	u.Path = path.Join(u.Path, name)
	return u.String()
}

func (p *ollamaProvider) post(ctx context.Context, endpoint string, payload any) (*http.Response, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	return p.http.Do(req)
}

func (p *ollamaProvider) Embed(ctx context.Context, inputs []string) ([][]float32, error) {
	if len(inputs) == 0 {
		return [][]float32{}, nil
	}
	// Prefer /api/embed (v0.2.6+); fall back to the legacy per-input endpoint.
	resp, err := p.post(ctx, p.endpoint("/api/embed"), map[string]any{"model": p.model, "input": inputs})
	if err != nil && isTimeout(err) {
		// Retry once on timeout
		resp, err = p.post(ctx, p.endpoint("/api/embed"), map[string]any{"model": p.model, "input": inputs})
	}
	if err != nil {
		return nil, err
	}
	if resp.StatusCode == http.StatusNotFound || resp.StatusCode == http.StatusMethodNotAllowed {
		resp.Body.Close()
		return p.embedLegacy(ctx, inputs)
	}
	defer resp.Body.Close()
	if err := ollamaStatusError(resp); err != nil {
		return nil, err
	}
	var out struct {
		Embeddings [][]float32 `json:"embeddings"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("ollama: decode response: %w", err)
	}
	if len(out.Embeddings) != len(inputs) {
		return nil, fmt.Errorf("ollama returned %d embeddings for %d inputs", len(out.Embeddings), len(inputs))
	}
	return out.Embeddings, nil
}

func (p *ollamaProvider) embedLegacy(ctx context.Context, inputs []string) ([][]float32, error) {
	results := make([][]float32, 0, len(inputs))
	for _, in := range inputs {
		resp, err := p.post(ctx, p.endpoint("/api/embeddings"), map[string]any{"model": p.model, "prompt": in})
		if err != nil {
			return nil, err
		}
		var single struct {
			Embedding []float64 `json:"embedding"`
		}
		err = ollamaStatusError(resp)
		if err == nil {
			err = json.NewDecoder(resp.Body).Decode(&single)
		}
		resp.Body.Close()
		if err != nil {
			return nil, err
		}
		if len(single.Embedding) == 0 {
			return nil, errors.New("ollama returned no embedding")
		}
		results = append(results, f64to32(single.Embedding))
	}
	return results, nil
}

func ollamaStatusError(resp *http.Response) error {
	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return nil
	}
	var b struct {
		Error string `json:"error"`
	}
	_ = json.NewDecoder(resp.Body).Decode(&b)
	if b.Error != "" {
		return fmt.Errorf("ollama error: %s", b.Error)
	}
	return fmt.Errorf("ollama http status: %s", resp.Status)
}

// isTimeout returns true if the error represents a timeout
func isTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var ne net.Error
	return errors.As(err, &ne) && ne.Timeout()
}

func f64to32(v []float64) []float32 {
	out := make([]float32, len(v))
	for i := range v {
		out[i] = float32(v[i])
	}
	return out
}
