package database

import "fmt"

// dynamicSchema returns schema DDL using the configured embedding dimension.
// No libsql_vector_idx is created; searches score every row.
func dynamicSchema(embeddingDims int) []string {
	if embeddingDims <= 0 {
		embeddingDims = 4
	}
	return []string{
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS memos (
        id TEXT PRIMARY KEY,
        content TEXT NOT NULL,
        summary TEXT,
        tags TEXT NOT NULL DEFAULT '[]',
        embedding F32_BLOB(%d),
        created_at INTEGER NOT NULL
    )`, embeddingDims),

		`CREATE INDEX IF NOT EXISTS idx_memos_created_at ON memos(created_at)`,
	}
}
