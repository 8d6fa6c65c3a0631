// Package postgres stores memos in PostgreSQL with pgvector embeddings.
package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"github.com/pgvector/pgvector-go"
	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/ZanzyTHEbar/mcp-memo-libsql-go/internal/apptype"
	"github.com/ZanzyTHEbar/mcp-memo-libsql-go/internal/metrics"
)

// Config holds the PostgreSQL store configuration.
type Config struct {
	DSN           string
	EmbeddingDims int

	MaxOpenConns   int
	MaxIdleConns   int
	ConnMaxIdleSec int
	ConnMaxLifeSec int
}

// Store persists memos in a single memos table. No ivfflat/hnsw index is
// created, so pgvector answers ORDER BY <=> with an exact scan.
type Store struct {
	db     *sql.DB
	dims   int
	logger *zap.Logger
}

func schema(dims int) []string {
	return []string{
		`CREATE EXTENSION IF NOT EXISTS vector`,
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS memos (
			seq BIGSERIAL,
			id UUID PRIMARY KEY,
			content TEXT NOT NULL,
			summary TEXT,
			tags TEXT[] NOT NULL DEFAULT '{}',
			embedding vector(%d),
			created_at TIMESTAMPTZ NOT NULL
		)`, dims),
		`CREATE INDEX IF NOT EXISTS idx_memos_created_at ON memos (created_at DESC, seq DESC)`,
	}
}

// NewStore connects, creates the schema and adopts the dimensionality of an
// existing embedding column.
func NewStore(ctx context.Context, cfg Config, logger *zap.Logger) (*Store, error) {
	if cfg.EmbeddingDims <= 0 || cfg.EmbeddingDims > 16000 {
		return nil, errors.Wrapf(apptype.ErrInvalidInput, "embedding dims %d out of range", cfg.EmbeddingDims)
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	db, err := sql.Open("postgres", cfg.DSN)
	if err != nil {
		return nil, errors.Wrap(err, "failed to open database")
	}
	tune(db, cfg)
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, errors.Wrap(err, "failed to ping database")
	}
	s := &Store{db: db, dims: cfg.EmbeddingDims, logger: logger}
	if err := s.migrate(ctx); err != nil {
		db.Close()
		return nil, err
	}
	if existing := s.columnDims(ctx); existing > 0 && existing != s.dims {
		logger.Warn("embedding dims mismatch, adopting database dims",
			zap.Int("db", existing), zap.Int("config", s.dims))
		s.dims = existing
	}
	return s, nil
}

func tune(db *sql.DB, cfg Config) {
	if cfg.MaxOpenConns > 0 {
		db.SetMaxOpenConns(cfg.MaxOpenConns)
	}
	if cfg.MaxIdleConns > 0 {
		db.SetMaxIdleConns(cfg.MaxIdleConns)
	}
	if cfg.ConnMaxIdleSec > 0 {
		db.SetConnMaxIdleTime(time.Duration(cfg.ConnMaxIdleSec) * time.Second)
	}
	if cfg.ConnMaxLifeSec > 0 {
		db.SetConnMaxLifetime(time.Duration(cfg.ConnMaxLifeSec) * time.Second)
	}
}

func (s *Store) migrate(ctx context.Context) error {
	done := metrics.TimeOp("pg_migrate")
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		done(false)
		return errors.Wrap(err, "failed to begin migration")
	}
	defer tx.Rollback()
	for _, stmt := range schema(s.dims) {
		if _, err := tx.ExecContext(ctx, stmt); err != nil {
			done(false)
			return errors.Wrap(err, "failed to apply schema")
		}
	}
	if err := tx.Commit(); err != nil {
		done(false)
		return errors.Wrap(err, "failed to commit schema")
	}
	done(true)
	return nil
}

// columnDims reads the typmod of memos.embedding, which pgvector uses for
// the declared dimension.
func (s *Store) columnDims(ctx context.Context) int {
	var n int
	err := s.db.QueryRowContext(ctx, `
		SELECT atttypmod FROM pg_attribute
		WHERE attrelid = 'memos'::regclass AND attname = 'embedding'`).Scan(&n)
	if err != nil {
		return 0
	}
	return n
}

// Dims is the embedding dimensionality of the memos table.
func (s *Store) Dims() int { return s.dims }

func (s *Store) Name() string { return "postgres" }

func (s *Store) Close() error { return s.db.Close() }

func (s *Store) observePool() {
	metrics.Default().ObservePoolStats(s.PoolStats())
}

func (s *Store) PoolStats() (inUse, idle int) {
	stats := s.db.Stats()
	return stats.InUse, stats.Idle
}

const memoColumns = "id, content, summary, tags, embedding, created_at"

// Save inserts or replaces a memo; created_at keeps its first value.
func (s *Store) Save(ctx context.Context, m *apptype.Memo) error {
	done := metrics.TimeOp("pg_save_memo")
	id, err := uuid.Parse(m.ID)
	if err != nil {
		done(false)
		return errors.Wrapf(apptype.ErrInvalidInput, "memo id %q is not a uuid", m.ID)
	}
	var embedding any
	if m.HasEmbedding() {
		if len(m.Embedding) != s.dims {
			done(false)
			return errors.Wrapf(apptype.ErrInvalidInput, "vector must have exactly %d dimensions, got %d", s.dims, len(m.Embedding))
		}
		embedding = pgvector.NewVector(m.Embedding)
	}
	tags := m.Tags
	if tags == nil {
		tags = []string{}
	}
	stmt := `
		INSERT INTO memos (` + memoColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (id)
		DO UPDATE SET
			content = EXCLUDED.content,
			summary = EXCLUDED.summary,
			tags = EXCLUDED.tags,
			embedding = EXCLUDED.embedding`
	_, err = s.db.ExecContext(ctx, stmt,
		id,
		m.Content,
		sql.NullString{String: m.Summary, Valid: m.Summary != ""},
		pq.Array(tags),
		embedding,
		m.CreatedAt,
	)
	if err != nil {
		done(false)
		return errors.Wrap(err, "failed to save memo")
	}
	done(true)
	s.observePool()
	return nil
}

// GetAll returns every memo, most recent first.
func (s *Store) GetAll(ctx context.Context) ([]apptype.Memo, error) {
	done := metrics.TimeOp("pg_get_all_memos")
	rows, err := s.db.QueryContext(ctx, `SELECT `+memoColumns+` FROM memos ORDER BY created_at DESC, seq DESC`)
	if err != nil {
		done(false)
		return nil, errors.Wrap(err, "failed to list memos")
	}
	memos, err := scanMemos(rows)
	done(err == nil)
	return memos, err
}

// GetByID returns (nil, nil) for unknown or malformed ids.
func (s *Store) GetByID(ctx context.Context, id string) (*apptype.Memo, error) {
	done := metrics.TimeOp("pg_get_memo")
	uid, err := uuid.Parse(id)
	if err != nil {
		done(true)
		return nil, nil
	}
	row := s.db.QueryRowContext(ctx, `SELECT `+memoColumns+` FROM memos WHERE id = $1`, uid)
	m, err := scanMemo(row)
	if errors.Is(err, sql.ErrNoRows) {
		done(true)
		return nil, nil
	}
	if err != nil {
		done(false)
		return nil, errors.Wrap(err, "failed to get memo")
	}
	done(true)
	return m, nil
}

// Delete reports whether a row was removed.
func (s *Store) Delete(ctx context.Context, id string) (bool, error) {
	done := metrics.TimeOp("pg_delete_memo")
	uid, err := uuid.Parse(id)
	if err != nil {
		done(true)
		return false, nil
	}
	result, err := s.db.ExecContext(ctx, `DELETE FROM memos WHERE id = $1`, uid)
	if err != nil {
		done(false)
		return false, errors.Wrap(err, "failed to delete memo")
	}
	n, err := result.RowsAffected()
	if err != nil {
		done(false)
		return false, errors.Wrap(err, "failed to read affected rows")
	}
	done(true)
	return n > 0, nil
}

// SearchByVector ranks by cosine distance (<=>). pgvector yields NaN for
// zero vectors; those rank as similarity 0.
func (s *Store) SearchByVector(ctx context.Context, query []float32, limit int) ([]apptype.Memo, error) {
	done := metrics.TimeOp("pg_search_by_vector")
	if len(query) != s.dims {
		done(false)
		return nil, errors.Wrapf(apptype.ErrInvalidInput, "query must have exactly %d dimensions, got %d", s.dims, len(query))
	}
	if limit <= 0 {
		done(true)
		return []apptype.Memo{}, nil
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+memoColumns+`
		FROM memos
		WHERE embedding IS NOT NULL
		ORDER BY COALESCE(NULLIF(embedding <=> $1, 'NaN'::float8), 1) ASC, created_at DESC, seq DESC
		LIMIT $2`,
		pgvector.NewVector(query), limit)
	if err != nil {
		done(false)
		return nil, errors.Wrap(err, "failed to search memos")
	}
	memos, err := scanMemos(rows)
	done(err == nil)
	return memos, err
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanMemo(row rowScanner) (*apptype.Memo, error) {
	var (
		m       apptype.Memo
		summary sql.NullString
		tags    []string
		vector  *pgvector.Vector
	)
	if err := row.Scan(&m.ID, &m.Content, &summary, pq.Array(&tags), &vector, &m.CreatedAt); err != nil {
		return nil, err
	}
	m.Summary = summary.String
	if tags == nil {
		tags = []string{}
	}
	m.Tags = tags
	if vector != nil {
		m.Embedding = vector.Slice()
	}
	m.CreatedAt = m.CreatedAt.UTC()
	return &m, nil
}

func scanMemos(rows *sql.Rows) ([]apptype.Memo, error) {
	defer rows.Close()
	list := []apptype.Memo{}
	for rows.Next() {
		m, err := scanMemo(rows)
		if err != nil {
			return nil, errors.Wrap(err, "failed to scan memo")
		}
		list = append(list, *m)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return list, nil
}
