package apptype

import "time"

// Memo is a short text note enriched with an AI summary, tags and an
// optional embedding vector.
type Memo struct {
	ID        string    `json:"id"`
	Content   string    `json:"content"`
	Summary   string    `json:"summary"`
	Tags      []string  `json:"tags"`
	Embedding []float32 `json:"-"`
	CreatedAt time.Time `json:"created_at"`
}

// HasEmbedding reports whether the memo carries a vector.
func (m Memo) HasEmbedding() bool { return m.Embedding != nil }

// Label is the display text of a memo in graph views: the summary when one
// exists, otherwise the first 30 characters of the content.
func (m Memo) Label() string {
	if m.Summary != "" {
		return m.Summary
	}
	r := []rune(m.Content)
	if len(r) > labelRunes {
		r = r[:labelRunes]
	}
	return string(r)
}

const labelRunes = 30

// AnalysisResult is what the analysis collaborator returns for new content.
type AnalysisResult struct {
	Summary string   `json:"summary"`
	Tags    []string `json:"tags"`
}

// SearchResult is the natural-language answer to a search query.
type SearchResult struct {
	Answer         string   `json:"answer"`
	RelatedMemoIDs []string `json:"related_memo_ids"`
}

// GraphNode is one memo in a similarity graph.
type GraphNode struct {
	ID        string    `json:"id"`
	Label     string    `json:"label"`
	Content   string    `json:"content"`
	Tags      []string  `json:"tags"`
	CreatedAt time.Time `json:"created_at"`
}

// GraphEdge links two memos whose similarity met the threshold.
// Source precedes Target in the node order.
type GraphEdge struct {
	Source     string  `json:"source"`
	Target     string  `json:"target"`
	Similarity float64 `json:"similarity"`
}

// GraphData is the 2D similarity graph.
type GraphData struct {
	Nodes []GraphNode `json:"nodes"`
	Edges []GraphEdge `json:"edges"`
}

// Position3D is a point in the reduced embedding space.
type Position3D struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
	Z float64 `json:"z"`
}

// GraphNode3D is a GraphNode with a position.
type GraphNode3D struct {
	GraphNode
	Position Position3D `json:"position"`
}

// Graph3DData is the 3D similarity graph.
type Graph3DData struct {
	Nodes []GraphNode3D `json:"nodes"`
	Edges []GraphEdge   `json:"edges"`
}
