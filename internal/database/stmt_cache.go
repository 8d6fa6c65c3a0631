package database

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/ZanzyTHEbar/mcp-memo-libsql-go/internal/metrics"
)

// getPreparedStmt returns or prepares and caches a statement
func (s *Store) getPreparedStmt(ctx context.Context, sqlText string) (*sql.Stmt, error) {
	s.stmtMu.RLock()
	stmt, ok := s.stmtCache[sqlText]
	s.stmtMu.RUnlock()
	if ok {
		metrics.Default().IncStmtCache(true)
		return stmt, nil
	}
	metrics.Default().IncStmtCache(false)

	s.stmtMu.Lock()
	defer s.stmtMu.Unlock()
	// Another goroutine may have prepared it while we waited.
	if stmt, ok := s.stmtCache[sqlText]; ok {
		return stmt, nil
	}
	stmt, err := s.db.PrepareContext(ctx, sqlText)
	if err != nil {
		return nil, fmt.Errorf("failed to prepare statement: %w", err)
	}
	s.stmtCache[sqlText] = stmt
	return stmt, nil
}
