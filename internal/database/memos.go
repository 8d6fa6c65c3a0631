package database

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/ZanzyTHEbar/mcp-memo-libsql-go/internal/apptype"
	"github.com/ZanzyTHEbar/mcp-memo-libsql-go/internal/metrics"
)

const memoColumns = "id, content, summary, tags, embedding, created_at"

const upsertTail = ` ON CONFLICT(id) DO UPDATE SET
        content = excluded.content,
        summary = excluded.summary,
        tags = excluded.tags,
        embedding = excluded.embedding`

const (
	insertVectorSQL = "INSERT INTO memos (" + memoColumns + ") VALUES (?, ?, ?, ?, vector32(?), ?)" + upsertTail
	insertBlobSQL   = "INSERT INTO memos (" + memoColumns + ") VALUES (?, ?, ?, ?, ?, ?)" + upsertTail
	selectAllSQL    = "SELECT " + memoColumns + " FROM memos ORDER BY created_at DESC, rowid DESC"
	selectByIDSQL   = "SELECT " + memoColumns + " FROM memos WHERE id = ?"
	deleteSQL       = "DELETE FROM memos WHERE id = ?"
)

// Save inserts or replaces a memo. created_at is fixed at first insert.
func (s *Store) Save(ctx context.Context, m *apptype.Memo) error {
	done := metrics.TimeOp("db_save_memo")
	success := false
	defer func() { done(success) }()

	tags := m.Tags
	if tags == nil {
		tags = []string{}
	}
	tagsJSON, err := json.Marshal(tags)
	if err != nil {
		return fmt.Errorf("failed to encode tags: %w", err)
	}
	summary := sql.NullString{String: m.Summary, Valid: m.Summary != ""}

	query := insertBlobSQL
	var embedding any
	if m.HasEmbedding() {
		if err := s.checkDims(m.Embedding); err != nil {
			return err
		}
		if s.caps.vectorDistance {
			query = insertVectorSQL
			embedding = vectorToString(m.Embedding)
		} else {
			embedding = vectorToBlob(m.Embedding)
		}
	}

	stmt, err := s.getPreparedStmt(ctx, query)
	if err != nil {
		return err
	}
	if _, err := stmt.ExecContext(ctx, m.ID, m.Content, summary, string(tagsJSON), embedding, m.CreatedAt.UnixNano()); err != nil {
		return fmt.Errorf("failed to save memo %s: %w", m.ID, err)
	}
	success = true
	return nil
}

// GetAll returns every memo, most recent first.
func (s *Store) GetAll(ctx context.Context) ([]apptype.Memo, error) {
	done := metrics.TimeOp("db_get_all_memos")
	success := false
	defer func() { done(success) }()

	stmt, err := s.getPreparedStmt(ctx, selectAllSQL)
	if err != nil {
		return nil, err
	}
	rows, err := stmt.QueryContext(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to query memos: %w", err)
	}
	memos, err := s.scanMemos(rows)
	if err != nil {
		return nil, err
	}
	success = true
	return memos, nil
}

// GetByID returns (nil, nil) when no memo has the id.
func (s *Store) GetByID(ctx context.Context, id string) (*apptype.Memo, error) {
	done := metrics.TimeOp("db_get_memo")
	success := false
	defer func() { done(success) }()

	stmt, err := s.getPreparedStmt(ctx, selectByIDSQL)
	if err != nil {
		return nil, err
	}
	m, err := s.scanMemo(stmt.QueryRowContext(ctx, id))
	if errors.Is(err, sql.ErrNoRows) {
		success = true
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get memo %s: %w", id, err)
	}
	success = true
	return m, nil
}

// Delete reports whether a row was removed.
func (s *Store) Delete(ctx context.Context, id string) (bool, error) {
	done := metrics.TimeOp("db_delete_memo")
	success := false
	defer func() { done(success) }()

	stmt, err := s.getPreparedStmt(ctx, deleteSQL)
	if err != nil {
		return false, err
	}
	res, err := stmt.ExecContext(ctx, id)
	if err != nil {
		return false, fmt.Errorf("failed to delete memo %s: %w", id, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to read affected rows: %w", err)
	}
	success = true
	return n > 0, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func (s *Store) scanMemo(row rowScanner) (*apptype.Memo, error) {
	var (
		m         apptype.Memo
		summary   sql.NullString
		tagsJSON  string
		embedding []byte
		created   int64
	)
	if err := row.Scan(&m.ID, &m.Content, &summary, &tagsJSON, &embedding, &created); err != nil {
		return nil, err
	}
	m.Summary = summary.String
	if err := json.Unmarshal([]byte(tagsJSON), &m.Tags); err != nil {
		return nil, fmt.Errorf("failed to decode tags of memo %s: %w", m.ID, err)
	}
	if m.Tags == nil {
		m.Tags = []string{}
	}
	vec, err := extractVector(embedding, s.config.EmbeddingDims)
	if err != nil {
		return nil, fmt.Errorf("memo %s: %w", m.ID, err)
	}
	m.Embedding = vec
	m.CreatedAt = time.Unix(0, created).UTC()
	return &m, nil
}

func (s *Store) scanMemos(rows *sql.Rows) ([]apptype.Memo, error) {
	defer rows.Close()
	memos := []apptype.Memo{}
	for rows.Next() {
		m, err := s.scanMemo(rows)
		if err != nil {
			return nil, err
		}
		memos = append(memos, *m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate memos: %w", err)
	}
	return memos, nil
}
