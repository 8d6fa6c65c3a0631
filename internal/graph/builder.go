package graph

import (
	"fmt"

	"github.com/ZanzyTHEbar/mcp-memo-libsql-go/internal/apptype"
	"github.com/ZanzyTHEbar/mcp-memo-libsql-go/internal/projection"
)

// DefaultThreshold is the minimum similarity for an edge when the caller
// does not choose one.
const DefaultThreshold = 0.7

// BuildGraph returns one node per embedded memo (input order) and an edge
// for every pair i<j whose similarity is at least threshold.
func BuildGraph(memos []apptype.Memo, threshold float64) (apptype.GraphData, error) {
	embedded := withEmbeddings(memos)
	edges, err := similarityEdges(embedded, threshold)
	if err != nil {
		return apptype.GraphData{}, err
	}
	nodes := make([]apptype.GraphNode, len(embedded))
	for i, m := range embedded {
		nodes[i] = nodeFor(m)
	}
	return apptype.GraphData{Nodes: nodes, Edges: edges}, nil
}

// BuildGraph3D is BuildGraph plus a position per node computed by reduce
// over the node embeddings. The edge set is identical to BuildGraph's for the
// same input. A reducer that returns the wrong number of positions panics.
func BuildGraph3D(memos []apptype.Memo, reduce projection.Reducer, threshold float64) (apptype.Graph3DData, error) {
	if reduce == nil {
		reduce = projection.DefaultReducer
	}
	embedded := withEmbeddings(memos)
	edges, err := similarityEdges(embedded, threshold)
	if err != nil {
		return apptype.Graph3DData{}, err
	}
	vectors := make([][]float32, len(embedded))
	for i, m := range embedded {
		vectors[i] = m.Embedding
	}
	positions, err := reduce(vectors)
	if err != nil {
		return apptype.Graph3DData{}, fmt.Errorf("reduce embeddings: %w", err)
	}
	if len(positions) != len(embedded) {
		panic(fmt.Sprintf("graph: reducer returned %d positions for %d vectors", len(positions), len(embedded)))
	}
	nodes := make([]apptype.GraphNode3D, len(embedded))
	for i, m := range embedded {
		nodes[i] = apptype.GraphNode3D{GraphNode: nodeFor(m), Position: positions[i]}
	}
	return apptype.Graph3DData{Nodes: nodes, Edges: edges}, nil
}

func withEmbeddings(memos []apptype.Memo) []apptype.Memo {
	out := make([]apptype.Memo, 0, len(memos))
	for _, m := range memos {
		if m.HasEmbedding() {
			out = append(out, m)
		}
	}
	return out
}

func nodeFor(m apptype.Memo) apptype.GraphNode {
	tags := m.Tags
	if tags == nil {
		tags = []string{}
	}
	return apptype.GraphNode{
		ID:        m.ID,
		Label:     m.Label(),
		Content:   m.Content,
		Tags:      tags,
		CreatedAt: m.CreatedAt,
	}
}

// similarityEdges is shared by both builders.
func similarityEdges(memos []apptype.Memo, threshold float64) ([]apptype.GraphEdge, error) {
	edges := []apptype.GraphEdge{}
	for i := 0; i < len(memos); i++ {
		for j := i + 1; j < len(memos); j++ {
			sim, err := CosineSimilarity(memos[i].Embedding, memos[j].Embedding)
			if err != nil {
				return nil, fmt.Errorf("memos %s and %s: %w", memos[i].ID, memos[j].ID, err)
			}
			if sim >= threshold {
				edges = append(edges, apptype.GraphEdge{
					Source:     memos[i].ID,
					Target:     memos[j].ID,
					Similarity: round4(sim),
				})
			}
		}
	}
	return edges, nil
}
