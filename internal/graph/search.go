package graph

import (
	"sort"

	"github.com/ZanzyTHEbar/mcp-memo-libsql-go/internal/apptype"
)

type scored struct {
	memo  apptype.Memo
	score float64
}

// TopK ranks memos by cosine similarity to query and returns at most limit
// of them, best first. Memos without an embedding are skipped; equal scores
// keep their input order.
func TopK(query []float32, memos []apptype.Memo, limit int) ([]apptype.Memo, error) {
	if limit <= 0 || len(memos) == 0 {
		return []apptype.Memo{}, nil
	}
	ranked := make([]scored, 0, len(memos))
	for _, m := range memos {
		if !m.HasEmbedding() {
			continue
		}
		s, err := CosineSimilarity(query, m.Embedding)
		if err != nil {
			return nil, err
		}
		ranked = append(ranked, scored{memo: m, score: s})
	}
	sort.SliceStable(ranked, func(i, j int) bool { return ranked[i].score > ranked[j].score })
	if len(ranked) > limit {
		ranked = ranked[:limit]
	}
	out := make([]apptype.Memo, len(ranked))
	for i, r := range ranked {
		out[i] = r.memo
	}
	return out, nil
}
