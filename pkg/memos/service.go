// Package memos provides a library-first API over the memo service without
// the HTTP or MCP transports.
package memos

import (
	"context"

	"go.uber.org/zap"

	"github.com/ZanzyTHEbar/mcp-memo-libsql-go/internal/app"
	"github.com/ZanzyTHEbar/mcp-memo-libsql-go/internal/apptype"
	"github.com/ZanzyTHEbar/mcp-memo-libsql-go/internal/memo"
)

type (
	Memo           = apptype.Memo
	AnalysisResult = apptype.AnalysisResult
	SearchResult   = apptype.SearchResult
	GraphData      = apptype.GraphData
	Graph3DData    = apptype.Graph3DData
	Health         = apptype.HealthResult

	// Analyzer replaces the Claude client, e.g. with a local model.
	Analyzer = memo.Analyzer
)

var (
	ErrInvalidInput       = apptype.ErrInvalidInput
	ErrEmbeddingsDisabled = apptype.ErrEmbeddingsDisabled
)

// Option customizes NewService.
type Option func(*serviceOptions)

type serviceOptions struct {
	logger   *zap.Logger
	analyzer Analyzer
}

// WithLogger sets the logger; the default discards output.
func WithLogger(l *zap.Logger) Option {
	return func(o *serviceOptions) { o.logger = l }
}

// WithAnalyzer uses a instead of the Claude client.
func WithAnalyzer(a Analyzer) Option {
	return func(o *serviceOptions) { o.analyzer = a }
}

// Service provides memo operations backed by the configured store.
type Service struct {
	app *app.App
}

// NewService constructs a Service with the provided config.
func NewService(ctx context.Context, cfg *Config, opts ...Option) (*Service, error) {
	if cfg == nil {
		cfg = &Config{}
	}
	var o serviceOptions
	for _, opt := range opts {
		opt(&o)
	}
	internal, err := cfg.toInternal()
	if err != nil {
		return nil, err
	}
	var appOpts []app.Option
	if o.analyzer != nil {
		appOpts = append(appOpts, app.WithAnalyzer(o.analyzer))
	}
	a, err := app.New(ctx, internal, o.logger, appOpts...)
	if err != nil {
		return nil, err
	}
	return &Service{app: a}, nil
}

// Close releases resources.
func (s *Service) Close() error { return s.app.Close() }

// Create stores content after analysis and embedding.
func (s *Service) Create(ctx context.Context, content string) (*Memo, error) {
	return s.app.Service.Create(ctx, content)
}

// List returns every memo, most recent first.
func (s *Service) List(ctx context.Context) ([]Memo, error) { return s.app.Service.List(ctx) }

// Get returns (nil, nil) when no memo has the id.
func (s *Service) Get(ctx context.Context, id string) (*Memo, error) {
	return s.app.Service.Get(ctx, id)
}

// Update returns (nil, nil) when no memo has the id.
func (s *Service) Update(ctx context.Context, id, content string) (*Memo, error) {
	return s.app.Service.Update(ctx, id, content)
}

func (s *Service) Delete(ctx context.Context, id string) (bool, error) {
	return s.app.Service.Delete(ctx, id)
}

func (s *Service) Search(ctx context.Context, query string) (SearchResult, error) {
	return s.app.Service.Search(ctx, query)
}

// Graph uses the configured threshold when threshold is nil.
func (s *Service) Graph(ctx context.Context, threshold *float64) (GraphData, error) {
	return s.app.Service.Graph(ctx, threshold)
}

func (s *Service) Graph3D(ctx context.Context, threshold *float64) (Graph3DData, error) {
	return s.app.Service.Graph3D(ctx, nil, threshold)
}

// Reindex backfills missing or stale embeddings.
func (s *Service) Reindex(ctx context.Context) (int, error) { return s.app.Service.Reindex(ctx) }

func (s *Service) Health() Health { return s.app.Health() }
