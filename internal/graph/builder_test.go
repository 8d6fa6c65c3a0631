package graph

import (
	"encoding/json"
	"fmt"
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ZanzyTHEbar/mcp-memo-libsql-go/internal/apptype"
	"github.com/ZanzyTHEbar/mcp-memo-libsql-go/internal/projection"
)

func angleVector(deg float64) []float32 {
	rad := deg * math.Pi / 180
	return []float32{float32(math.Cos(rad)), float32(math.Sin(rad))}
}

func angleMemos() []apptype.Memo {
	return []apptype.Memo{
		{ID: "m0", Content: "zero degrees", Summary: "zero", Tags: []string{"a"}, Embedding: angleVector(0)},
		{ID: "m90", Content: "ninety degrees", Tags: []string{"b"}, Embedding: angleVector(90)},
		{ID: "m10", Content: "ten degrees", Summary: "ten", Embedding: angleVector(10)},
	}
}

func TestBuildGraph_SingleEdgeAboveThreshold(t *testing.T) {
	g, err := BuildGraph(angleMemos(), DefaultThreshold)
	require.NoError(t, err)

	require.Len(t, g.Nodes, 3)
	require.Len(t, g.Edges, 1)
	e := g.Edges[0]
	assert.Equal(t, "m0", e.Source)
	assert.Equal(t, "m10", e.Target)
	assert.Greater(t, e.Similarity, 0.9)
	assert.Equal(t, 0.9848, e.Similarity)
}

func TestBuildGraph_Labels(t *testing.T) {
	memos := []apptype.Memo{
		{ID: "s", Content: "content ignored", Summary: "the summary", Embedding: []float32{1}},
		{ID: "long", Content: "abcdefghijklmnopqrstuvwxyz0123456789", Embedding: []float32{1}},
		{ID: "utf8", Content: "日本語のメモはここに書かれていますがとても長い内容になっています", Embedding: []float32{1}},
	}
	g, err := BuildGraph(memos, 2)
	require.NoError(t, err)
	assert.Equal(t, "the summary", g.Nodes[0].Label)
	assert.Equal(t, "abcdefghijklmnopqrstuvwxyz0123", g.Nodes[1].Label)
	assert.Equal(t, 30, len([]rune(g.Nodes[2].Label)))
	assert.Empty(t, g.Edges)
}

func TestBuildGraph_NodeCarriesMemoFields(t *testing.T) {
	created := time.Date(2025, 1, 2, 3, 4, 5, 0, time.UTC)
	memos := []apptype.Memo{
		{ID: "a", Content: "hello world", Tags: []string{"x"}, Embedding: []float32{1, 0}, CreatedAt: created},
		{ID: "b", Content: "no tags", Embedding: []float32{0, 1}, CreatedAt: created.Add(time.Hour)},
	}
	g, err := BuildGraph(memos, DefaultThreshold)
	require.NoError(t, err)
	require.Len(t, g.Nodes, 2)

	assert.Equal(t, apptype.GraphNode{
		ID:        "a",
		Label:     "hello world",
		Content:   "hello world",
		Tags:      []string{"x"},
		CreatedAt: created,
	}, g.Nodes[0])

	raw, err := json.Marshal(g.Nodes[1])
	require.NoError(t, err)
	assert.JSONEq(t, `{"id":"b","label":"no tags","content":"no tags","tags":[],"created_at":"2025-01-02T04:04:05Z"}`, string(raw))

	g3, err := BuildGraph3D(memos, nil, DefaultThreshold)
	require.NoError(t, err)
	assert.Equal(t, "hello world", g3.Nodes[0].Content)
	assert.Equal(t, created, g3.Nodes[0].CreatedAt)
}

func TestBuildGraph_ThresholdMonotonic(t *testing.T) {
	memos := benchMemos(25, 8)
	thresholds := []float64{-1, -0.5, 0, 0.25, 0.5, 0.7, 0.9, 0.99, 1}

	var prev map[string]bool
	for _, th := range thresholds {
		g, err := BuildGraph(memos, th)
		require.NoError(t, err)
		cur := make(map[string]bool, len(g.Edges))
		for _, e := range g.Edges {
			key := e.Source + "->" + e.Target
			cur[key] = true
			if prev != nil {
				assert.True(t, prev[key], "edge %s appeared when threshold rose to %v", key, th)
			}
		}
		if prev != nil {
			assert.LessOrEqual(t, len(cur), len(prev))
		}
		prev = cur
	}
	// -1 admits every pair.
	g, err := BuildGraph(memos, -1)
	require.NoError(t, err)
	assert.Len(t, g.Edges, 25*24/2)
}

// angleVector3D is a unit vector in the XY plane of 3D space.
func angleVector3D(deg float64) []float32 {
	v := angleVector(deg)
	return []float32{v[0], v[1], 0}
}

func TestBuildGraph_ThreeDimensionalAngles(t *testing.T) {
	planar := []apptype.Memo{
		{ID: "m0", Content: "zero degrees", Embedding: angleVector3D(0)},
		{ID: "m90", Content: "ninety degrees", Embedding: angleVector3D(90)},
		{ID: "m10", Content: "ten degrees", Embedding: angleVector3D(10)},
	}
	g, err := BuildGraph(planar, DefaultThreshold)
	require.NoError(t, err)
	require.Len(t, g.Edges, 1)
	assert.Equal(t, apptype.GraphEdge{Source: "m0", Target: "m10", Similarity: 0.9848}, g.Edges[0])

	memos := []apptype.Memo{
		{ID: "x", Content: "x axis", Embedding: []float32{1, 0, 0}},
		{ID: "y", Content: "y axis", Embedding: []float32{0, 1, 0}},
		{ID: "xy", Content: "diagonal", Embedding: []float32{1, 1, 0}},
		{ID: "near", Content: "near x", Embedding: []float32{0.9, 0.1, 0}},
	}
	g, err = BuildGraph(memos, DefaultThreshold)
	require.NoError(t, err)

	assert.Equal(t, []apptype.GraphEdge{
		{Source: "x", Target: "xy", Similarity: 0.7071},
		{Source: "x", Target: "near", Similarity: 0.9939},
		{Source: "y", Target: "xy", Similarity: 0.7071},
		{Source: "xy", Target: "near", Similarity: 0.7809},
	}, g.Edges)
}

func TestBuildGraph_ExcludesMemosWithoutEmbedding(t *testing.T) {
	memos := append(angleMemos(), apptype.Memo{ID: "plain", Content: "no vector"})
	g, err := BuildGraph(memos, DefaultThreshold)
	require.NoError(t, err)
	for _, n := range g.Nodes {
		assert.NotEqual(t, "plain", n.ID)
	}
	for _, e := range g.Edges {
		assert.NotEqual(t, "plain", e.Source)
		assert.NotEqual(t, "plain", e.Target)
	}
}

func TestBuildGraph_Empty(t *testing.T) {
	g, err := BuildGraph(nil, DefaultThreshold)
	require.NoError(t, err)
	assert.Empty(t, g.Nodes)
	assert.Empty(t, g.Edges)

	raw, err := json.Marshal(g)
	require.NoError(t, err)
	assert.JSONEq(t, `{"nodes":[],"edges":[]}`, string(raw))
}

func TestBuildGraph_ThresholdIsInclusive(t *testing.T) {
	memos := []apptype.Memo{
		{ID: "a", Embedding: []float32{1, 0}},
		{ID: "b", Embedding: []float32{1, 0}},
	}
	g, err := BuildGraph(memos, 1.0)
	require.NoError(t, err)
	require.Len(t, g.Edges, 1)
	assert.Equal(t, 1.0, g.Edges[0].Similarity)
}

func TestBuildGraph_Deterministic(t *testing.T) {
	first, err := BuildGraph(angleMemos(), 0.1)
	require.NoError(t, err)
	second, err := BuildGraph(angleMemos(), 0.1)
	require.NoError(t, err)
	assert.Equal(t, first, second)
}

func TestBuildGraph_MixedDimensions(t *testing.T) {
	memos := []apptype.Memo{
		{ID: "a", Embedding: []float32{1, 0}},
		{ID: "b", Embedding: []float32{1, 0, 0}},
	}
	_, err := BuildGraph(memos, DefaultThreshold)
	require.ErrorIs(t, err, apptype.ErrInvalidInput)
}

func TestBuildGraph3D_EdgesMatch2D(t *testing.T) {
	memos := make([]apptype.Memo, 12)
	for i := range memos {
		memos[i] = apptype.Memo{
			ID:        fmt.Sprintf("m%02d", i),
			Content:   fmt.Sprintf("memo %d", i),
			Embedding: angleVector(float64(i) * 30),
		}
	}
	flat, err := BuildGraph(memos, DefaultThreshold)
	require.NoError(t, err)
	g, err := BuildGraph3D(memos, projection.WithScale(10), DefaultThreshold)
	require.NoError(t, err)

	assert.Equal(t, flat.Edges, g.Edges)
	require.Len(t, g.Nodes, len(flat.Nodes))
	maxAbs := 0.0
	for i, n := range g.Nodes {
		assert.Equal(t, flat.Nodes[i], n.GraphNode)
		maxAbs = math.Max(maxAbs, math.Max(math.Abs(n.Position.X), math.Abs(n.Position.Y)))
	}
	assert.InDelta(t, 10.0, maxAbs, 1e-6)
}

func TestBuildGraph3D_DefaultReducer(t *testing.T) {
	g, err := BuildGraph3D(angleMemos(), nil, DefaultThreshold)
	require.NoError(t, err)
	require.Len(t, g.Nodes, 3)
	require.Len(t, g.Edges, 1)
}

func TestBuildGraph3D_SingleMemoAtOrigin(t *testing.T) {
	g, err := BuildGraph3D(angleMemos()[:1], nil, DefaultThreshold)
	require.NoError(t, err)
	require.Len(t, g.Nodes, 1)
	assert.Equal(t, apptype.Position3D{}, g.Nodes[0].Position)
	assert.Empty(t, g.Edges)
}

func TestBuildGraph3D_ReducerError(t *testing.T) {
	failing := func([][]float32) ([]apptype.Position3D, error) {
		return nil, fmt.Errorf("boom")
	}
	_, err := BuildGraph3D(angleMemos(), failing, DefaultThreshold)
	require.Error(t, err)
}

func TestBuildGraph3D_ReducerWrongCountPanics(t *testing.T) {
	short := func(v [][]float32) ([]apptype.Position3D, error) {
		return make([]apptype.Position3D, len(v)-1), nil
	}
	assert.Panics(t, func() {
		_, _ = BuildGraph3D(angleMemos(), short, DefaultThreshold)
	})
}

func benchMemos(n, dims int) []apptype.Memo {
	memos := make([]apptype.Memo, n)
	for i := range memos {
		v := make([]float32, dims)
		for j := range v {
			v[j] = float32(math.Sin(float64(i+1) * float64(j+1)))
		}
		memos[i] = apptype.Memo{ID: fmt.Sprintf("m%d", i), Content: "bench", Embedding: v}
	}
	return memos
}

func BenchmarkBuildGraph(b *testing.B) {
	memos := benchMemos(300, 384)
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if _, err := BuildGraph(memos, DefaultThreshold); err != nil {
			b.Fatal(err)
		}
	}
}

func BenchmarkTopK(b *testing.B) {
	memos := benchMemos(1000, 384)
	q := memos[0].Embedding
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if _, err := TopK(q, memos, 5); err != nil {
			b.Fatal(err)
		}
	}
}
