package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zapcore"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load(New())
	require.NoError(t, err)

	assert.Equal(t, DriverMemory, cfg.StoreDriver)
	assert.Equal(t, "file:./libsql.db", cfg.LibSQLURL)
	assert.Equal(t, 4, cfg.EmbeddingDims)
	assert.Empty(t, cfg.EmbeddingsProvider)
	assert.Equal(t, 0.7, cfg.GraphThreshold)
	assert.Equal(t, 20.0, cfg.GraphScale)
	assert.Equal(t, 5, cfg.SearchLimit)
	assert.Equal(t, ":8000", cfg.HTTPAddr)
	assert.Equal(t, []string{"http://localhost:1420", "http://127.0.0.1:1420"}, cfg.CORSOrigins)
	assert.Equal(t, 30*time.Second, cfg.EmbeddingsHTTPTimeout)
	assert.False(t, cfg.MetricsPrometheus)
	assert.Equal(t, "json", cfg.LogFormat)
}

func TestLoad_Env(t *testing.T) {
	t.Setenv("STORE_DRIVER", "LibSQL")
	t.Setenv("LIBSQL_URL", "file:memos.db")
	t.Setenv("EMBEDDINGS_PROVIDER", "hash")
	t.Setenv("GRAPH_THRESHOLD", "0.55")
	t.Setenv("SEARCH_LIMIT", "8")
	t.Setenv("CORS_ORIGINS", " http://a.example , ,http://b.example")
	t.Setenv("METRICS_PROMETHEUS", "true")

	cfg, err := Load(New())
	require.NoError(t, err)

	assert.Equal(t, DriverLibSQL, cfg.StoreDriver)
	assert.Equal(t, "file:memos.db", cfg.LibSQLURL)
	assert.Equal(t, "hash", cfg.EmbeddingsProvider)
	assert.Equal(t, 384, cfg.EmbeddingDims)
	assert.Equal(t, 0.55, cfg.GraphThreshold)
	assert.Equal(t, 8, cfg.SearchLimit)
	assert.Equal(t, []string{"http://a.example", "http://b.example"}, cfg.CORSOrigins)
	assert.True(t, cfg.MetricsPrometheus)
}

func TestLoad_DatabaseURLSelectsPostgres(t *testing.T) {
	t.Setenv("DATABASE_URL", "postgres://localhost/memos?sslmode=disable")

	cfg, err := Load(New())
	require.NoError(t, err)
	assert.Equal(t, DriverPostgres, cfg.StoreDriver)

	t.Setenv("STORE_DRIVER", "memory")
	cfg, err = Load(New())
	require.NoError(t, err)
	assert.Equal(t, DriverMemory, cfg.StoreDriver)
}

func TestLoad_DefaultDimsByProvider(t *testing.T) {
	tests := []struct {
		provider string
		model    string
		want     int
	}{
		{"", "", 4},
		{"hash", "", 384},
		{"openai", "", 1536},
		{"openai", "text-embedding-3-large", 3072},
		{"ollama", "", 768},
		{"localai", "", 1536},
	}
	for _, tt := range tests {
		t.Run(tt.provider+"/"+tt.model, func(t *testing.T) {
			t.Setenv("EMBEDDINGS_PROVIDER", tt.provider)
			if tt.model != "" {
				t.Setenv("OPENAI_EMBEDDINGS_MODEL", tt.model)
			}
			cfg, err := Load(New())
			require.NoError(t, err)
			assert.Equal(t, tt.want, cfg.EmbeddingDims)
		})
	}
}

func TestLoad_ExplicitDimsWin(t *testing.T) {
	t.Setenv("EMBEDDINGS_PROVIDER", "openai")
	t.Setenv("EMBEDDING_DIMS", "256")

	cfg, err := Load(New())
	require.NoError(t, err)
	assert.Equal(t, 256, cfg.EmbeddingDims)
}

func TestValidate(t *testing.T) {
	valid := func() *Config {
		return &Config{
			StoreDriver:    DriverMemory,
			EmbeddingDims:  4,
			GraphThreshold: 0.7,
			GraphScale:     20,
			SearchLimit:    5,
			LogFormat:      "json",
		}
	}
	tests := []struct {
		name   string
		mutate func(*Config)
		errMsg string
	}{
		{"valid", func(*Config) {}, ""},
		{"unknown driver", func(c *Config) { c.StoreDriver = "mongo" }, "unknown STORE_DRIVER"},
		{"postgres without url", func(c *Config) { c.StoreDriver = DriverPostgres }, "DATABASE_URL is required"},
		{"threshold too high", func(c *Config) { c.GraphThreshold = 1.5 }, "GRAPH_THRESHOLD"},
		{"threshold too low", func(c *Config) { c.GraphThreshold = -1.01 }, "GRAPH_THRESHOLD"},
		{"negative threshold ok", func(c *Config) { c.GraphThreshold = -1 }, ""},
		{"zero scale", func(c *Config) { c.GraphScale = 0 }, "GRAPH_SCALE"},
		{"zero limit", func(c *Config) { c.SearchLimit = 0 }, "SEARCH_LIMIT"},
		{"zero dims", func(c *Config) { c.EmbeddingDims = 0 }, "EMBEDDING_DIMS"},
		{"huge dims", func(c *Config) { c.EmbeddingDims = 70000 }, "EMBEDDING_DIMS"},
		{"negative cache", func(c *Config) { c.EmbeddingsCacheSize = -1 }, "EMBEDDINGS_CACHE_SIZE"},
		{"truncate mode", func(c *Config) { c.EmbeddingsAdaptMode = "truncate" }, ""},
		{"bad adapt mode", func(c *Config) { c.EmbeddingsAdaptMode = "stretch" }, "EMBEDDINGS_ADAPT_MODE"},
		{"bad log format", func(c *Config) { c.LogFormat = "xml" }, "LOG_FORMAT"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := valid()
			tt.mutate(c)
			err := c.Validate()
			if tt.errMsg == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.errMsg)
		})
	}
}

func TestReadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "memo-graph.yaml")
	require.NoError(t, os.WriteFile(path, []byte("search_limit: 9\ngraph_scale: 7.5\n"), 0o600))

	v := New()
	require.NoError(t, ReadFile(v, path))
	cfg, err := Load(v)
	require.NoError(t, err)
	assert.Equal(t, 9, cfg.SearchLimit)
	assert.Equal(t, 7.5, cfg.GraphScale)

	assert.Error(t, ReadFile(New(), filepath.Join(t.TempDir(), "missing.yaml")))
	assert.NoError(t, ReadFile(New(), ""))
}

func TestNewLogger(t *testing.T) {
	logger, err := NewLogger(&Config{LogLevel: "debug", LogFormat: "console"})
	require.NoError(t, err)
	assert.True(t, logger.Core().Enabled(zapcore.DebugLevel))

	logger, err = NewLogger(&Config{LogLevel: "warn", LogFormat: "json"})
	require.NoError(t, err)
	assert.False(t, logger.Core().Enabled(zapcore.InfoLevel))

	_, err = NewLogger(&Config{LogLevel: "loud"})
	assert.Error(t, err)
}
