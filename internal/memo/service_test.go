package memo

import (
	"context"
	"errors"
	"fmt"
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/ZanzyTHEbar/mcp-memo-libsql-go/internal/apptype"
	"github.com/ZanzyTHEbar/mcp-memo-libsql-go/internal/database/memstore"
	"github.com/ZanzyTHEbar/mcp-memo-libsql-go/internal/projection"
)

// stubAnalyzer summarizes with a fixed prefix and relates the first two
// candidates.
type stubAnalyzer struct {
	candidates []apptype.Memo
}

func (a *stubAnalyzer) Analyze(_ context.Context, content string) (apptype.AnalysisResult, error) {
	r := []rune(content)
	if len(r) > 20 {
		r = r[:20]
	}
	return apptype.AnalysisResult{Summary: "Summary of: " + string(r), Tags: []string{"test-tag"}}, nil
}

func (a *stubAnalyzer) Search(_ context.Context, query string, memos []apptype.Memo) (apptype.SearchResult, error) {
	a.candidates = memos
	ids := []string{}
	for i, m := range memos {
		if i == 2 {
			break
		}
		ids = append(ids, m.ID)
	}
	return apptype.SearchResult{Answer: fmt.Sprintf("%d memos for %q", len(memos), query), RelatedMemoIDs: ids}, nil
}

// mapEmbedder returns preset vectors keyed by text.
type mapEmbedder struct {
	dims    int
	vectors map[string][]float32
}

func (e *mapEmbedder) Dimensions() int { return e.dims }

func (e *mapEmbedder) Embed(_ context.Context, text string) ([]float32, error) {
	if v, ok := e.vectors[text]; ok {
		return v, nil
	}
	v := make([]float32, e.dims)
	v[0] = 1
	return v, nil
}

type mockAnalyzer struct{ mock.Mock }

func (m *mockAnalyzer) Analyze(ctx context.Context, content string) (apptype.AnalysisResult, error) {
	args := m.Called(ctx, content)
	return args.Get(0).(apptype.AnalysisResult), args.Error(1)
}

func (m *mockAnalyzer) Search(ctx context.Context, query string, memos []apptype.Memo) (apptype.SearchResult, error) {
	args := m.Called(ctx, query, memos)
	return args.Get(0).(apptype.SearchResult), args.Error(1)
}

type mockEmbedder struct{ mock.Mock }

func (m *mockEmbedder) Dimensions() int { return m.Called().Int(0) }

func (m *mockEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	args := m.Called(ctx, text)
	v, _ := args.Get(0).([]float32)
	return v, args.Error(1)
}

func angle(deg float64) []float32 {
	rad := deg * math.Pi / 180
	return []float32{float32(math.Cos(rad)), float32(math.Sin(rad))}
}

// steppingClock advances one second per call so creation order is stable.
func steppingClock() func() time.Time {
	t := time.Date(2025, 6, 1, 9, 0, 0, 0, time.UTC)
	return func() time.Time {
		t = t.Add(time.Second)
		return t
	}
}

func newTestService(t *testing.T, embedder Embedder, opts ...Option) (*Service, *memstore.Store, *stubAnalyzer) {
	t.Helper()
	repo := memstore.New()
	analyzer := &stubAnalyzer{}
	opts = append([]Option{WithLogger(zaptest.NewLogger(t)), WithClock(steppingClock())}, opts...)
	return NewService(repo, analyzer, embedder, opts...), repo, analyzer
}

func TestCreate(t *testing.T) {
	emb := &mapEmbedder{dims: 2, vectors: map[string][]float32{"buy milk and eggs tomorrow morning": {0.6, 0.8}}}
	svc, repo, _ := newTestService(t, emb)
	ctx := context.Background()

	m, err := svc.Create(ctx, "buy milk and eggs tomorrow morning")
	require.NoError(t, err)
	assert.NotEmpty(t, m.ID)
	assert.Equal(t, "Summary of: buy milk and eggs to", m.Summary)
	assert.Equal(t, []string{"test-tag"}, m.Tags)
	assert.Equal(t, []float32{0.6, 0.8}, m.Embedding)
	assert.False(t, m.CreatedAt.IsZero())

	stored, err := repo.GetByID(ctx, m.ID)
	require.NoError(t, err)
	assert.Equal(t, m, stored)
}

func TestCreateWithoutEmbedder(t *testing.T) {
	svc, _, _ := newTestService(t, nil)
	m, err := svc.Create(context.Background(), "plain memo")
	require.NoError(t, err)
	assert.Nil(t, m.Embedding)
	assert.False(t, svc.EmbeddingsEnabled())
}

func TestCreateRejectsBlankContent(t *testing.T) {
	svc, repo, _ := newTestService(t, nil)
	for _, content := range []string{"", "   ", "\n\t"} {
		_, err := svc.Create(context.Background(), content)
		require.ErrorIs(t, err, apptype.ErrInvalidInput)
	}
	all, err := repo.GetAll(context.Background())
	require.NoError(t, err)
	assert.Empty(t, all)
}

func TestCreateAnalyzerFailureSavesNothing(t *testing.T) {
	repo := memstore.New()
	analyzer := &mockAnalyzer{}
	boom := errors.New("claude unavailable")
	analyzer.On("Analyze", mock.Anything, "hello").Return(apptype.AnalysisResult{}, boom).Once()
	svc := NewService(repo, analyzer, nil)

	_, err := svc.Create(context.Background(), "hello")
	require.ErrorIs(t, err, boom)
	analyzer.AssertExpectations(t)

	all, err := repo.GetAll(context.Background())
	require.NoError(t, err)
	assert.Empty(t, all)
}

func TestCreateEmbedderFailureSavesNothing(t *testing.T) {
	repo := memstore.New()
	emb := &mockEmbedder{}
	boom := errors.New("embedding service down")
	emb.On("Embed", mock.Anything, "hello").Return(nil, boom)
	emb.On("Dimensions").Return(3).Maybe()
	svc := NewService(repo, &stubAnalyzer{}, emb)

	_, err := svc.Create(context.Background(), "hello")
	require.ErrorIs(t, err, boom)
	emb.AssertExpectations(t)

	all, err := repo.GetAll(context.Background())
	require.NoError(t, err)
	assert.Empty(t, all)
}

func TestCreateRejectsWrongEmbeddingSize(t *testing.T) {
	repo := memstore.New()
	emb := &mockEmbedder{}
	emb.On("Embed", mock.Anything, mock.Anything).Return([]float32{1, 2}, nil)
	emb.On("Dimensions").Return(3)
	svc := NewService(repo, &stubAnalyzer{}, emb)

	_, err := svc.Create(context.Background(), "hello")
	require.ErrorIs(t, err, apptype.ErrInvalidInput)
	all, err := repo.GetAll(context.Background())
	require.NoError(t, err)
	assert.Empty(t, all)
}

func TestGetAndDelete(t *testing.T) {
	svc, _, _ := newTestService(t, nil)
	ctx := context.Background()

	got, err := svc.Get(ctx, "missing")
	require.NoError(t, err)
	assert.Nil(t, got)

	m, err := svc.Create(ctx, "to delete")
	require.NoError(t, err)
	got, err = svc.Get(ctx, m.ID)
	require.NoError(t, err)
	require.NotNil(t, got)

	ok, err := svc.Delete(ctx, m.ID)
	require.NoError(t, err)
	assert.True(t, ok)
	ok, err = svc.Delete(ctx, m.ID)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestUpdate(t *testing.T) {
	emb := &mapEmbedder{dims: 2, vectors: map[string][]float32{"first": {1, 0}, "second": {0, 1}}}
	svc, _, _ := newTestService(t, emb)
	ctx := context.Background()

	orig, err := svc.Create(ctx, "first")
	require.NoError(t, err)

	updated, err := svc.Update(ctx, orig.ID, "second")
	require.NoError(t, err)
	require.NotNil(t, updated)
	assert.Equal(t, orig.ID, updated.ID)
	assert.True(t, orig.CreatedAt.Equal(updated.CreatedAt))
	assert.Equal(t, "Summary of: second", updated.Summary)
	assert.Equal(t, []float32{0, 1}, updated.Embedding)

	got, err := svc.Get(ctx, orig.ID)
	require.NoError(t, err)
	assert.Equal(t, "second", got.Content)
}

func TestUpdateMissing(t *testing.T) {
	svc, _, _ := newTestService(t, nil)
	got, err := svc.Update(context.Background(), "nope", "content")
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestUpdateAnalyzerFailureKeepsOriginal(t *testing.T) {
	repo := memstore.New()
	analyzer := &mockAnalyzer{}
	analyzer.On("Analyze", mock.Anything, "v1").Return(apptype.AnalysisResult{Summary: "one"}, nil).Once()
	analyzer.On("Analyze", mock.Anything, "v2").Return(apptype.AnalysisResult{}, errors.New("rate limited")).Once()
	svc := NewService(repo, analyzer, nil)
	ctx := context.Background()

	m, err := svc.Create(ctx, "v1")
	require.NoError(t, err)
	_, err = svc.Update(ctx, m.ID, "v2")
	require.Error(t, err)

	got, err := svc.Get(ctx, m.ID)
	require.NoError(t, err)
	assert.Equal(t, "v1", got.Content)
	assert.Equal(t, "one", got.Summary)
	analyzer.AssertExpectations(t)
}

func TestSearchWithEmbedder(t *testing.T) {
	emb := &mapEmbedder{dims: 3, vectors: map[string][]float32{
		"x axis":   {1, 0, 0},
		"y axis":   {0, 1, 0},
		"mostly x": {0.9, 0.1, 0},
		"find x":   {1, 0, 0},
	}}
	svc, _, analyzer := newTestService(t, emb, WithSearchLimit(2))
	ctx := context.Background()
	x, err := svc.Create(ctx, "x axis")
	require.NoError(t, err)
	_, err = svc.Create(ctx, "y axis")
	require.NoError(t, err)
	nearX, err := svc.Create(ctx, "mostly x")
	require.NoError(t, err)

	res, err := svc.Search(ctx, "find x")
	require.NoError(t, err)
	require.Len(t, analyzer.candidates, 2)
	assert.Equal(t, x.ID, analyzer.candidates[0].ID)
	assert.Equal(t, nearX.ID, analyzer.candidates[1].ID)
	assert.Equal(t, []string{x.ID, nearX.ID}, res.RelatedMemoIDs)
}

func TestSearchWithoutEmbedderUsesAllMemos(t *testing.T) {
	svc, _, analyzer := newTestService(t, nil, WithSearchLimit(1))
	ctx := context.Background()
	for i := 0; i < 4; i++ {
		_, err := svc.Create(ctx, fmt.Sprintf("memo %d", i))
		require.NoError(t, err)
	}
	res, err := svc.Search(ctx, "anything")
	require.NoError(t, err)
	assert.Len(t, analyzer.candidates, 4)
	assert.Len(t, res.RelatedMemoIDs, 2)
}

func TestSearchRejectsBlankQuery(t *testing.T) {
	svc, _, _ := newTestService(t, nil)
	_, err := svc.Search(context.Background(), " ")
	require.ErrorIs(t, err, apptype.ErrInvalidInput)
}

func TestSearchAnalyzerFailure(t *testing.T) {
	analyzer := &mockAnalyzer{}
	analyzer.On("Search", mock.Anything, "q", mock.Anything).Return(apptype.SearchResult{}, errors.New("bad reply"))
	svc := NewService(memstore.New(), analyzer, nil)
	_, err := svc.Search(context.Background(), "q")
	require.Error(t, err)
}

func TestGraphRequiresEmbeddings(t *testing.T) {
	svc, _, _ := newTestService(t, nil)
	_, err := svc.Graph(context.Background(), nil)
	require.ErrorIs(t, err, apptype.ErrEmbeddingsDisabled)
	_, err = svc.Graph3D(context.Background(), nil, nil)
	require.ErrorIs(t, err, apptype.ErrEmbeddingsDisabled)
	_, err = svc.Reindex(context.Background())
	require.ErrorIs(t, err, apptype.ErrEmbeddingsDisabled)
}

func angleService(t *testing.T, opts ...Option) (*Service, map[string]string) {
	t.Helper()
	emb := &mapEmbedder{dims: 2, vectors: map[string][]float32{
		"zero":   angle(0),
		"ninety": angle(90),
		"ten":    angle(10),
	}}
	svc, _, _ := newTestService(t, emb, opts...)
	ids := map[string]string{}
	for _, c := range []string{"zero", "ninety", "ten"} {
		m, err := svc.Create(context.Background(), c)
		require.NoError(t, err)
		ids[c] = m.ID
	}
	return svc, ids
}

func TestGraph(t *testing.T) {
	svc, ids := angleService(t)
	g, err := svc.Graph(context.Background(), nil)
	require.NoError(t, err)
	require.Len(t, g.Nodes, 3)
	require.Len(t, g.Edges, 1)
	e := g.Edges[0]
	assert.ElementsMatch(t, []string{ids["zero"], ids["ten"]}, []string{e.Source, e.Target})
	assert.Greater(t, e.Similarity, 0.9)
}

func TestGraphThresholdResolution(t *testing.T) {
	svc, _ := angleService(t, WithThreshold(-1))
	g, err := svc.Graph(context.Background(), nil)
	require.NoError(t, err)
	assert.Len(t, g.Edges, 3)

	strict := 0.99
	g, err = svc.Graph(context.Background(), &strict)
	require.NoError(t, err)
	assert.Empty(t, g.Edges)
}

func TestGraph3DMatches2DEdges(t *testing.T) {
	svc, _ := angleService(t)
	ctx := context.Background()
	flat, err := svc.Graph(ctx, nil)
	require.NoError(t, err)
	g, err := svc.Graph3D(ctx, projection.WithScale(10), nil)
	require.NoError(t, err)
	assert.Equal(t, flat.Edges, g.Edges)
	require.Len(t, g.Nodes, 3)
	for i, n := range g.Nodes {
		assert.Equal(t, flat.Nodes[i], n.GraphNode)
	}
}

func TestReindexBackfillsEmbeddings(t *testing.T) {
	repo := memstore.New()
	analyzer := &stubAnalyzer{}
	plain := NewService(repo, analyzer, nil, WithClock(steppingClock()))
	ctx := context.Background()
	for _, c := range []string{"zero", "ninety", "ten"} {
		_, err := plain.Create(ctx, c)
		require.NoError(t, err)
	}

	emb := &mapEmbedder{dims: 2, vectors: map[string][]float32{"zero": angle(0), "ninety": angle(90), "ten": angle(10)}}
	svc := NewService(repo, analyzer, emb)

	before, err := svc.Graph(ctx, nil)
	require.NoError(t, err)
	assert.Empty(t, before.Nodes)

	n, err := svc.Reindex(ctx)
	require.NoError(t, err)
	assert.Equal(t, 3, n)

	after, err := svc.Graph(ctx, nil)
	require.NoError(t, err)
	assert.Len(t, after.Nodes, 3)
	assert.Len(t, after.Edges, 1)

	again, err := svc.Reindex(ctx)
	require.NoError(t, err)
	assert.Zero(t, again)
}
