package database

import (
	"context"
	"fmt"

	"github.com/ZanzyTHEbar/mcp-memo-libsql-go/internal/apptype"
	"github.com/ZanzyTHEbar/mcp-memo-libsql-go/internal/graph"
	"github.com/ZanzyTHEbar/mcp-memo-libsql-go/internal/metrics"
)

// Zero-magnitude vectors make vector_distance_cos NULL; they score as
// similarity 0 (distance 1) to agree with graph.CosineSimilarity.
const searchSQL = "SELECT " + memoColumns + ` FROM memos
    WHERE embedding IS NOT NULL
    ORDER BY COALESCE(vector_distance_cos(embedding, vector32(?)), 1.0) ASC, created_at DESC, rowid DESC
    LIMIT ?`

// SearchByVector returns up to limit memos ranked by cosine similarity to
// query. Every row is scored; no approximate index is consulted.
func (s *Store) SearchByVector(ctx context.Context, query []float32, limit int) ([]apptype.Memo, error) {
	done := metrics.TimeOp("db_search_by_vector")
	success := false
	defer func() { done(success) }()

	if err := s.checkDims(query); err != nil {
		return nil, err
	}
	if limit <= 0 {
		success = true
		return []apptype.Memo{}, nil
	}

	var (
		memos []apptype.Memo
		err   error
	)
	if s.caps.vectorDistance && !isZero(query) {
		memos, err = s.searchInDB(ctx, query, limit)
	} else {
		memos, err = s.searchInProcess(ctx, query, limit)
	}
	if err != nil {
		return nil, err
	}
	success = true
	return memos, nil
}

func (s *Store) searchInDB(ctx context.Context, query []float32, limit int) ([]apptype.Memo, error) {
	stmt, err := s.getPreparedStmt(ctx, searchSQL)
	if err != nil {
		return nil, err
	}
	rows, err := stmt.QueryContext(ctx, vectorToString(query), limit)
	if err != nil {
		return nil, fmt.Errorf("failed to search memos: %w", err)
	}
	return s.scanMemos(rows)
}

// searchInProcess ranks with graph.TopK. A zero query scores every memo 0,
// which leaves them in GetAll order.
func (s *Store) searchInProcess(ctx context.Context, query []float32, limit int) ([]apptype.Memo, error) {
	all, err := s.GetAll(ctx)
	if err != nil {
		return nil, err
	}
	return graph.TopK(query, all, limit)
}

func isZero(v []float32) bool {
	for _, x := range v {
		if x != 0 {
			return false
		}
	}
	return true
}
