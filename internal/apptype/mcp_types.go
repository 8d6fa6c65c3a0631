package apptype

// CreateMemoArgs represents the arguments for the create_memo tool
type CreateMemoArgs struct {
	Content string `json:"content" jsonschema:"The memo text to store and analyze."`
}

// MemoIDArgs identifies a single memo (get_memo, delete_memo)
type MemoIDArgs struct {
	ID string `json:"id" jsonschema:"The memo id."`
}

// UpdateMemoArgs replaces the content of an existing memo
type UpdateMemoArgs struct {
	ID      string `json:"id" jsonschema:"The memo id."`
	Content string `json:"content" jsonschema:"The new memo text."`
}

type ListMemosArgs struct{}

// SearchMemosArgs represents the arguments for the search_memos tool
type SearchMemosArgs struct {
	Query string `json:"query" jsonschema:"Natural-language question about stored memos."`
}

// GraphArgs carries the optional similarity threshold for graph tools.
type GraphArgs struct {
	Threshold *float64 `json:"threshold,omitempty" jsonschema:"Minimum cosine similarity for an edge (default 0.7)."`
}

type ReindexArgs struct{}

// MemoResult wraps a single memo. Found is false when the id is unknown.
type MemoResult struct {
	Found bool  `json:"found"`
	Memo  *Memo `json:"memo,omitempty"`
}

type MemoListResult struct {
	Memos []Memo `json:"memos"`
}

type DeleteResult struct {
	Deleted bool `json:"deleted"`
}

type ReindexResult struct {
	Updated int `json:"updated"`
}

// Health
type HealthArgs struct{}

type HealthResult struct {
	Name               string `json:"name"`
	Version            string `json:"version"`
	Revision           string `json:"revision"`
	BuildDate          string `json:"buildDate"`
	Store              string `json:"store"`
	EmbeddingsProvider string `json:"embeddingsProvider,omitempty"`
	EmbeddingDims      int    `json:"embeddingDims"`
}
