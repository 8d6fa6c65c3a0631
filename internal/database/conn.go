package database

import (
	"context"
	"database/sql"
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	_ "github.com/tursodatabase/go-libsql"
	"go.uber.org/zap"

	"github.com/ZanzyTHEbar/mcp-memo-libsql-go/internal/apptype"
	"github.com/ZanzyTHEbar/mcp-memo-libsql-go/internal/metrics"
)

// Store persists memos in libSQL with F32_BLOB embeddings.
type Store struct {
	config *Config
	db     *sql.DB
	logger *zap.Logger

	stmtMu    sync.RWMutex
	stmtCache map[string]*sql.Stmt

	caps capFlags
}

// NewStore opens the database, creates the schema and probes optional
// vector functions.
func NewStore(config *Config, logger *zap.Logger) (*Store, error) {
	if config.EmbeddingDims <= 0 || config.EmbeddingDims > 65536 {
		return nil, fmt.Errorf("%w: EMBEDDING_DIMS must be between 1 and 65536 inclusive, got %d", apptype.ErrInvalidInput, config.EmbeddingDims)
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	cfg := *config
	s := &Store{
		config:    &cfg,
		logger:    logger,
		stmtCache: make(map[string]*sql.Stmt),
	}

	db, err := sql.Open("libsql", s.connURL())
	if err != nil {
		return nil, fmt.Errorf("failed to create database connector: %w", err)
	}
	if err := s.initialize(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize database: %w", err)
	}
	s.tunePool(db)
	s.db = db

	// Reconcile embedding dims with an existing table to avoid env drift.
	if dbDims := detectDBEmbeddingDims(db); dbDims > 0 && dbDims != s.config.EmbeddingDims {
		logger.Warn("embedding dims mismatch, adopting database dims",
			zap.Int("db", dbDims), zap.Int("config", s.config.EmbeddingDims))
		s.config.EmbeddingDims = dbDims
	}

	s.detectCapabilities(context.Background())
	s.observePool()
	return s, nil
}

// connURL appends the auth token to remote URLs.
func (s *Store) connURL() string {
	dbURL := s.config.URL
	if strings.HasPrefix(dbURL, "file:") || s.config.AuthToken == "" {
		return dbURL
	}
	u, err := url.Parse(dbURL)
	if err != nil {
		sep := "?"
		if strings.Contains(dbURL, "?") {
			sep = "&"
		}
		return dbURL + sep + "authToken=" + url.QueryEscape(s.config.AuthToken)
	}
	q := u.Query()
	q.Set("authToken", s.config.AuthToken)
	u.RawQuery = q.Encode()
	return u.String()
}

func (s *Store) tunePool(db *sql.DB) {
	if s.config.MaxOpenConns > 0 {
		db.SetMaxOpenConns(s.config.MaxOpenConns)
	}
	if s.config.MaxIdleConns > 0 {
		db.SetMaxIdleConns(s.config.MaxIdleConns)
	}
	if s.config.ConnMaxIdleSec > 0 {
		db.SetConnMaxIdleTime(time.Duration(s.config.ConnMaxIdleSec) * time.Second)
	}
	if s.config.ConnMaxLifeSec > 0 {
		db.SetConnMaxLifetime(time.Duration(s.config.ConnMaxLifeSec) * time.Second)
	}
}

func (s *Store) observePool() {
	metrics.Default().ObservePoolStats(s.PoolStats())
}

// PoolStats returns the in-use and idle connection counts.
func (s *Store) PoolStats() (inUse, idle int) {
	stats := s.db.Stats()
	return stats.InUse, stats.Idle
}

// Dims is the embedding dimensionality of the memos table.
func (s *Store) Dims() int { return s.config.EmbeddingDims }

// Name identifies the backend in health output.
func (s *Store) Name() string { return "libsql" }

// VectorFunctions reports whether search runs inside libSQL.
func (s *Store) VectorFunctions() bool { return s.caps.vectorDistance }

// Close closes cached statements and the database.
func (s *Store) Close() error {
	s.stmtMu.Lock()
	for q, stmt := range s.stmtCache {
		_ = stmt.Close()
		delete(s.stmtCache, q)
	}
	s.stmtMu.Unlock()
	return s.db.Close()
}

// detectDBEmbeddingDims parses F32_BLOB(n) out of the memos DDL.
func detectDBEmbeddingDims(db *sql.DB) int {
	var sqlText string
	_ = db.QueryRow("SELECT sql FROM sqlite_master WHERE type='table' AND name='memos'").Scan(&sqlText)
	low := strings.ToLower(sqlText)
	idx := strings.Index(low, "f32_blob(")
	if idx < 0 {
		return 0
	}
	rest := low[idx+len("f32_blob("):]
	end := strings.Index(rest, ")")
	if end <= 0 {
		return 0
	}
	n, err := strconv.Atoi(strings.TrimSpace(rest[:end]))
	if err != nil || n <= 0 {
		return 0
	}
	return n
}

// initialize creates tables and indexes if they don't exist
func (s *Store) initialize(db *sql.DB) error {
	done := metrics.TimeOp("db_initialize")
	success := false
	defer func() { done(success) }()
	tx, err := db.BeginTx(context.Background(), nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction for initialization: %w", err)
	}
	defer tx.Rollback()

	for _, statement := range dynamicSchema(s.config.EmbeddingDims) {
		if _, err := tx.Exec(statement); err != nil {
			return fmt.Errorf("failed to execute schema statement: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return err
	}
	success = true
	return nil
}
