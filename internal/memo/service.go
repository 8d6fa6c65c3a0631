// Package memo orchestrates memo creation, search and the similarity graph
// views over a repository, an analysis collaborator and an optional
// embedder.
package memo

import (
	"context"
	"fmt"
	"strings"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/ZanzyTHEbar/mcp-memo-libsql-go/internal/apptype"
	"github.com/ZanzyTHEbar/mcp-memo-libsql-go/internal/graph"
	"github.com/ZanzyTHEbar/mcp-memo-libsql-go/internal/metrics"
	"github.com/ZanzyTHEbar/mcp-memo-libsql-go/internal/projection"
)

// Repository persists memos. GetByID returns (nil, nil) when absent.
type Repository interface {
	Save(ctx context.Context, m *apptype.Memo) error
	GetAll(ctx context.Context) ([]apptype.Memo, error)
	GetByID(ctx context.Context, id string) (*apptype.Memo, error)
	Delete(ctx context.Context, id string) (bool, error)
	SearchByVector(ctx context.Context, query []float32, limit int) ([]apptype.Memo, error)
}

// Analyzer summarizes content and answers questions over memos.
type Analyzer interface {
	Analyze(ctx context.Context, content string) (apptype.AnalysisResult, error)
	Search(ctx context.Context, query string, memos []apptype.Memo) (apptype.SearchResult, error)
}

// Embedder turns text into a fixed-size vector.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
	Dimensions() int
}

const (
	DefaultSearchLimit = 5
	reindexWorkers     = 4
)

// Service implements the memo use cases.
type Service struct {
	repo     Repository
	analyzer Analyzer
	embedder Embedder

	logger      *zap.Logger
	searchLimit int
	threshold   float64
	reducer     projection.Reducer
	now         func() time.Time
	newID       func() string
}

// Option configures a Service.
type Option func(*Service)

func WithLogger(l *zap.Logger) Option {
	return func(s *Service) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithSearchLimit sets how many nearest memos are handed to the analyzer.
func WithSearchLimit(n int) Option {
	return func(s *Service) {
		if n > 0 {
			s.searchLimit = n
		}
	}
}

// WithThreshold sets the graph similarity threshold used when a call does
// not pass one.
func WithThreshold(t float64) Option {
	return func(s *Service) { s.threshold = t }
}

// WithReducer sets the reducer used by Graph3D when a call does not pass one.
func WithReducer(r projection.Reducer) Option {
	return func(s *Service) {
		if r != nil {
			s.reducer = r
		}
	}
}

// WithClock overrides time.Now, mostly for tests.
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

// WithIDGenerator overrides uuid generation.
func WithIDGenerator(f func() string) Option {
	return func(s *Service) { s.newID = f }
}

// NewService wires a Service. embedder may be nil, which disables vector
// search and the graph views.
func NewService(repo Repository, analyzer Analyzer, embedder Embedder, opts ...Option) *Service {
	s := &Service{
		repo:        repo,
		analyzer:    analyzer,
		embedder:    embedder,
		logger:      zap.NewNop(),
		searchLimit: DefaultSearchLimit,
		threshold:   graph.DefaultThreshold,
		reducer:     projection.DefaultReducer,
		now:         time.Now,
		newID:       uuid.NewString,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// EmbeddingsEnabled reports whether an embedder is configured.
func (s *Service) EmbeddingsEnabled() bool { return s.embedder != nil }

func validateText(field, v string) error {
	if strings.TrimSpace(v) == "" {
		return fmt.Errorf("%w: %s must not be empty", apptype.ErrInvalidInput, field)
	}
	return nil
}

// enrich fills summary, tags and (when enabled) the embedding of m from its
// content. Nothing is written on failure.
func (s *Service) enrich(ctx context.Context, m *apptype.Memo) error {
	analysis, err := s.analyzer.Analyze(ctx, m.Content)
	if err != nil {
		return fmt.Errorf("analyze memo: %w", err)
	}
	m.Summary = analysis.Summary
	m.Tags = analysis.Tags
	if m.Tags == nil {
		m.Tags = []string{}
	}
	m.Embedding = nil
	if s.embedder != nil {
		vec, err := s.embed(ctx, m.Content)
		if err != nil {
			return err
		}
		m.Embedding = vec
	}
	return nil
}

func (s *Service) embed(ctx context.Context, text string) ([]float32, error) {
	vec, err := s.embedder.Embed(ctx, text)
	if err != nil {
		return nil, fmt.Errorf("embed text: %w", err)
	}
	if want := s.embedder.Dimensions(); len(vec) != want {
		return nil, fmt.Errorf("%w: embedding has %d dimensions, want %d", apptype.ErrInvalidInput, len(vec), want)
	}
	return vec, nil
}

// Create analyzes, embeds and stores new content.
func (s *Service) Create(ctx context.Context, content string) (*apptype.Memo, error) {
	done := metrics.TimeOp("memo_create")
	success := false
	defer func() { done(success) }()

	if err := validateText("content", content); err != nil {
		return nil, err
	}
	// Microseconds survive every backend, including TIMESTAMPTZ.
	created := s.now().UTC().Truncate(time.Microsecond)
	m := &apptype.Memo{ID: s.newID(), Content: content, CreatedAt: created}
	if err := s.enrich(ctx, m); err != nil {
		return nil, err
	}
	if err := s.repo.Save(ctx, m); err != nil {
		return nil, fmt.Errorf("save memo: %w", err)
	}
	s.logger.Info("memo created", zap.String("id", m.ID), zap.Bool("embedded", m.HasEmbedding()))
	success = true
	return m, nil
}

// List returns all memos in repository order.
func (s *Service) List(ctx context.Context) ([]apptype.Memo, error) {
	done := metrics.TimeOp("memo_list")
	memos, err := s.repo.GetAll(ctx)
	done(err == nil)
	return memos, err
}

// Get returns (nil, nil) when no memo has the id.
func (s *Service) Get(ctx context.Context, id string) (*apptype.Memo, error) {
	done := metrics.TimeOp("memo_get")
	m, err := s.repo.GetByID(ctx, id)
	done(err == nil)
	return m, err
}

// Update replaces the content of a memo and re-runs analysis and embedding.
// The id and creation time are kept. It returns (nil, nil) when absent.
func (s *Service) Update(ctx context.Context, id, content string) (*apptype.Memo, error) {
	done := metrics.TimeOp("memo_update")
	success := false
	defer func() { done(success) }()

	if err := validateText("content", content); err != nil {
		return nil, err
	}
	existing, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if existing == nil {
		success = true
		return nil, nil
	}
	updated := &apptype.Memo{ID: existing.ID, Content: content, CreatedAt: existing.CreatedAt}
	if err := s.enrich(ctx, updated); err != nil {
		return nil, err
	}
	if err := s.repo.Save(ctx, updated); err != nil {
		return nil, fmt.Errorf("save memo: %w", err)
	}
	s.logger.Info("memo updated", zap.String("id", id))
	success = true
	return updated, nil
}

// Delete reports whether the memo existed.
func (s *Service) Delete(ctx context.Context, id string) (bool, error) {
	done := metrics.TimeOp("memo_delete")
	ok, err := s.repo.Delete(ctx, id)
	done(err == nil)
	if err == nil && ok {
		s.logger.Info("memo deleted", zap.String("id", id))
	}
	return ok, err
}

// Search answers query from the nearest memos, or from every memo when
// embeddings are disabled.
func (s *Service) Search(ctx context.Context, query string) (apptype.SearchResult, error) {
	done := metrics.TimeOp("memo_search")
	success := false
	defer func() { done(success) }()

	if err := validateText("query", query); err != nil {
		return apptype.SearchResult{}, err
	}
	var (
		candidates []apptype.Memo
		err        error
	)
	if s.embedder != nil {
		vec, eerr := s.embed(ctx, query)
		if eerr != nil {
			return apptype.SearchResult{}, eerr
		}
		candidates, err = s.repo.SearchByVector(ctx, vec, s.searchLimit)
	} else {
		candidates, err = s.repo.GetAll(ctx)
	}
	if err != nil {
		return apptype.SearchResult{}, fmt.Errorf("load candidates: %w", err)
	}
	res, err := s.analyzer.Search(ctx, query, candidates)
	if err != nil {
		return apptype.SearchResult{}, fmt.Errorf("search memos: %w", err)
	}
	if res.RelatedMemoIDs == nil {
		res.RelatedMemoIDs = []string{}
	}
	success = true
	return res, nil
}

func (s *Service) resolveThreshold(t *float64) float64 {
	if t != nil {
		return *t
	}
	return s.threshold
}

// Graph builds the 2D similarity graph over all embedded memos.
func (s *Service) Graph(ctx context.Context, threshold *float64) (apptype.GraphData, error) {
	if s.embedder == nil {
		return apptype.GraphData{}, apptype.ErrEmbeddingsDisabled
	}
	memos, err := s.repo.GetAll(ctx)
	if err != nil {
		return apptype.GraphData{}, err
	}
	observe := metrics.TimeGraph("2d")
	g, err := graph.BuildGraph(memos, s.resolveThreshold(threshold))
	if err != nil {
		return apptype.GraphData{}, err
	}
	observe(len(g.Edges))
	return g, nil
}

// Graph3D is Graph plus 3D positions from reduce (the service reducer when nil).
func (s *Service) Graph3D(ctx context.Context, reduce projection.Reducer, threshold *float64) (apptype.Graph3DData, error) {
	if s.embedder == nil {
		return apptype.Graph3DData{}, apptype.ErrEmbeddingsDisabled
	}
	if reduce == nil {
		reduce = s.reducer
	}
	memos, err := s.repo.GetAll(ctx)
	if err != nil {
		return apptype.Graph3DData{}, err
	}
	observe := metrics.TimeGraph("3d")
	g, err := graph.BuildGraph3D(memos, reduce, s.resolveThreshold(threshold))
	if err != nil {
		return apptype.Graph3DData{}, err
	}
	observe(len(g.Edges))
	return g, nil
}

// Reindex embeds every memo that has no embedding or one of the wrong size,
// and returns how many were updated. Memos are processed concurrently; the
// first failure stops the run.
func (s *Service) Reindex(ctx context.Context) (int, error) {
	if s.embedder == nil {
		return 0, apptype.ErrEmbeddingsDisabled
	}
	done := metrics.TimeOp("memo_reindex")
	memos, err := s.repo.GetAll(ctx)
	if err != nil {
		done(false)
		return 0, err
	}
	dims := s.embedder.Dimensions()
	var updated atomic.Int64
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(reindexWorkers)
	for _, m := range memos {
		if len(m.Embedding) == dims {
			continue
		}
		g.Go(func() error {
			vec, err := s.embed(gctx, m.Content)
			if err != nil {
				return fmt.Errorf("memo %s: %w", m.ID, err)
			}
			m.Embedding = vec
			if err := s.repo.Save(gctx, &m); err != nil {
				return fmt.Errorf("memo %s: %w", m.ID, err)
			}
			updated.Add(1)
			return nil
		})
	}
	err = g.Wait()
	n := int(updated.Load())
	done(err == nil)
	s.logger.Info("memos reindexed", zap.Int("updated", n), zap.Error(err))
	return n, err
}
