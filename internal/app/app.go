// Package app wires the configured store, embedding provider and analysis
// client into a memo.Service.
package app

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/hashicorp/go-multierror"
	"go.uber.org/zap"

	"github.com/ZanzyTHEbar/mcp-memo-libsql-go/internal/ai"
	"github.com/ZanzyTHEbar/mcp-memo-libsql-go/internal/apptype"
	"github.com/ZanzyTHEbar/mcp-memo-libsql-go/internal/buildinfo"
	"github.com/ZanzyTHEbar/mcp-memo-libsql-go/internal/config"
	"github.com/ZanzyTHEbar/mcp-memo-libsql-go/internal/database"
	"github.com/ZanzyTHEbar/mcp-memo-libsql-go/internal/database/memstore"
	"github.com/ZanzyTHEbar/mcp-memo-libsql-go/internal/database/postgres"
	"github.com/ZanzyTHEbar/mcp-memo-libsql-go/internal/embeddings"
	"github.com/ZanzyTHEbar/mcp-memo-libsql-go/internal/memo"
	"github.com/ZanzyTHEbar/mcp-memo-libsql-go/internal/metrics"
	"github.com/ZanzyTHEbar/mcp-memo-libsql-go/internal/projection"
)

// Store is a memo repository the container can name and close.
type Store interface {
	memo.Repository
	Name() string
	Close() error
}

type dimensioned interface {
	Dims() int
}

type poolStater interface {
	PoolStats() (inUse, idle int)
}

// App holds the long-lived components of one process.
type App struct {
	Config   *config.Config
	Logger   *zap.Logger
	Store    Store
	Provider embeddings.Provider
	Service  *memo.Service
}

// Option overrides a component New would otherwise build from Config.
type Option func(*options)

type options struct {
	store    Store
	analyzer memo.Analyzer
	provider embeddings.Provider
}

// WithStore uses s instead of opening the configured driver.
func WithStore(s Store) Option {
	return func(o *options) { o.store = s }
}

// WithAnalyzer uses a instead of the Claude client.
func WithAnalyzer(a memo.Analyzer) Option {
	return func(o *options) { o.analyzer = a }
}

// WithProvider uses p instead of the configured embeddings provider.
func WithProvider(p embeddings.Provider) Option {
	return func(o *options) { o.provider = p }
}

// New opens the store, builds the embedding provider sized to the store's
// vector column and constructs the memo service. Close releases everything
// New opened.
func New(ctx context.Context, cfg *config.Config, logger *zap.Logger, opts ...Option) (*App, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	var o options
	for _, opt := range opts {
		opt(&o)
	}
	a := &App{Config: cfg, Logger: logger, Store: o.store}

	if a.Store == nil {
		store, err := openStore(ctx, cfg, logger)
		if err != nil {
			return nil, err
		}
		a.Store = store
	}

	dims := cfg.EmbeddingDims
	if d, ok := a.Store.(dimensioned); ok && d.Dims() > 0 {
		dims = d.Dims()
	}

	a.Provider = o.provider
	if a.Provider == nil {
		p, err := embeddings.New(embeddings.Config{
			Provider:       cfg.EmbeddingsProvider,
			OpenAIAPIKey:   cfg.OpenAIAPIKey,
			OpenAIBaseURL:  cfg.OpenAIBaseURL,
			OpenAIModel:    cfg.OpenAIEmbeddingsModel,
			LocalAIBaseURL: cfg.LocalAIBaseURL,
			LocalAIModel:   cfg.LocalAIEmbeddingsModel,
			OllamaHost:     cfg.OllamaHost,
			OllamaModel:    cfg.OllamaEmbeddingsModel,
			HTTPTimeout:    cfg.EmbeddingsHTTPTimeout,
			Dims:           dims,
			AdaptMode:      cfg.EmbeddingsAdaptMode,
			CacheSize:      cfg.EmbeddingsCacheSize,
		})
		if err != nil {
			_ = a.Close()
			return nil, fmt.Errorf("embeddings: %w", err)
		}
		a.Provider = p
	} else {
		a.Provider = embeddings.WrapToDims(a.Provider, dims, cfg.EmbeddingsAdaptMode)
	}

	analyzer := o.analyzer
	if analyzer == nil {
		client, err := ai.NewClient(ai.Config{
			APIKey:  cfg.AnthropicAPIKey,
			Model:   cfg.AnthropicModel,
			BaseURL: cfg.AnthropicBaseURL,
		}, logger.Named("ai"))
		if err != nil {
			_ = a.Close()
			return nil, err
		}
		analyzer = client
	}

	// A nil *Embedder stored in the interface would read as enabled.
	var embedder memo.Embedder
	if a.Provider != nil {
		embedder = embeddings.NewEmbedder(a.Provider)
	}

	a.Service = memo.NewService(a.Store, analyzer, embedder,
		memo.WithLogger(logger.Named("memo")),
		memo.WithThreshold(cfg.GraphThreshold),
		memo.WithSearchLimit(cfg.SearchLimit),
		memo.WithReducer(projection.WithScale(cfg.GraphScale)),
	)

	providerName := "none"
	if a.Provider != nil {
		providerName = a.Provider.Name()
	}
	logger.Info("memo service ready",
		zap.String("store", a.Store.Name()),
		zap.String("embeddings", providerName),
		zap.Int("dims", dims),
	)
	return a, nil
}

func openStore(ctx context.Context, cfg *config.Config, logger *zap.Logger) (Store, error) {
	switch cfg.StoreDriver {
	case config.DriverLibSQL:
		s, err := database.NewStore(&database.Config{
			URL:            cfg.LibSQLURL,
			AuthToken:      cfg.LibSQLAuthToken,
			EmbeddingDims:  cfg.EmbeddingDims,
			MaxOpenConns:   cfg.DBMaxOpenConns,
			MaxIdleConns:   cfg.DBMaxIdleConns,
			ConnMaxIdleSec: cfg.DBConnMaxIdleSec,
			ConnMaxLifeSec: cfg.DBConnMaxLifeSec,
		}, logger.Named("libsql"))
		if err != nil {
			return nil, fmt.Errorf("open libsql store: %w", err)
		}
		return s, nil
	case config.DriverPostgres:
		s, err := postgres.NewStore(ctx, postgres.Config{
			DSN:            cfg.DatabaseURL,
			EmbeddingDims:  cfg.EmbeddingDims,
			MaxOpenConns:   cfg.DBMaxOpenConns,
			MaxIdleConns:   cfg.DBMaxIdleConns,
			ConnMaxIdleSec: cfg.DBConnMaxIdleSec,
			ConnMaxLifeSec: cfg.DBConnMaxLifeSec,
		}, logger.Named("postgres"))
		if err != nil {
			return nil, fmt.Errorf("open postgres store: %w", err)
		}
		return s, nil
	case config.DriverMemory, "":
		return memstore.New(), nil
	default:
		return nil, fmt.Errorf("unknown store driver %q", cfg.StoreDriver)
	}
}

// Dims is the embedding width shared by the store and the provider.
func (a *App) Dims() int {
	if a.Provider != nil {
		return a.Provider.Dimensions()
	}
	if d, ok := a.Store.(dimensioned); ok {
		return d.Dims()
	}
	return a.Config.EmbeddingDims
}

// Health describes the running build and backends.
func (a *App) Health() apptype.HealthResult {
	h := apptype.HealthResult{
		Name:          "memo-graph",
		Version:       buildinfo.Version,
		Revision:      buildinfo.Revision,
		BuildDate:     buildinfo.BuildDate,
		Store:         a.Store.Name(),
		EmbeddingDims: a.Dims(),
	}
	if a.Provider != nil {
		h.EmbeddingsProvider = a.Provider.Name()
	}
	return h
}

// ReportPoolStats publishes connection pool gauges every interval until ctx
// is done. Stores without a pool are ignored.
func (a *App) ReportPoolStats(ctx context.Context, interval time.Duration) {
	ps, ok := a.Store.(poolStater)
	if !ok {
		return
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			metrics.Default().ObservePoolStats(ps.PoolStats())
		}
	}
}

// Close releases the provider cache and the store.
func (a *App) Close() error {
	var result *multierror.Error
	if c, ok := a.Provider.(io.Closer); ok {
		if err := c.Close(); err != nil {
			result = multierror.Append(result, fmt.Errorf("close embeddings provider: %w", err))
		}
	}
	if a.Store != nil {
		if err := a.Store.Close(); err != nil {
			result = multierror.Append(result, fmt.Errorf("close %s store: %w", a.Store.Name(), err))
		}
	}
	return result.ErrorOrNil()
}
