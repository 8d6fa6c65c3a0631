package memos

import (
	"github.com/ZanzyTHEbar/mcp-memo-libsql-go/internal/config"
)

// Config exposes a stable wrapper for the runtime configuration in package
// mode. Zero values fall back to the environment and then to the same
// defaults as the server.
type Config struct {
	// StoreDriver is "memory" (default), "libsql" or "postgres".
	StoreDriver   string
	LibSQLURL     string
	AuthToken     string
	DatabaseURL   string
	EmbeddingDims int

	MaxOpenConns   int
	MaxIdleConns   int
	ConnMaxIdleSec int
	ConnMaxLifeSec int

	// EmbeddingsProvider is "openai", "localai", "ollama", "hash" or empty.
	EmbeddingsProvider string
	OpenAIAPIKey       string
	OllamaHost         string

	AnthropicAPIKey string
	AnthropicModel  string

	GraphThreshold *float64
	GraphScale     float64
	SearchLimit    int
}

func (c *Config) toInternal() (*config.Config, error) {
	v := config.New()
	set := func(key string, val any, ok bool) {
		if ok {
			v.Set(key, val)
		}
	}
	set("store_driver", c.StoreDriver, c.StoreDriver != "")
	set("libsql_url", c.LibSQLURL, c.LibSQLURL != "")
	set("libsql_auth_token", c.AuthToken, c.AuthToken != "")
	set("database_url", c.DatabaseURL, c.DatabaseURL != "")
	set("embedding_dims", c.EmbeddingDims, c.EmbeddingDims > 0)
	set("db_max_open_conns", c.MaxOpenConns, c.MaxOpenConns > 0)
	set("db_max_idle_conns", c.MaxIdleConns, c.MaxIdleConns > 0)
	set("db_conn_max_idle_sec", c.ConnMaxIdleSec, c.ConnMaxIdleSec > 0)
	set("db_conn_max_life_sec", c.ConnMaxLifeSec, c.ConnMaxLifeSec > 0)
	set("embeddings_provider", c.EmbeddingsProvider, c.EmbeddingsProvider != "")
	set("openai_api_key", c.OpenAIAPIKey, c.OpenAIAPIKey != "")
	set("ollama_host", c.OllamaHost, c.OllamaHost != "")
	set("anthropic_api_key", c.AnthropicAPIKey, c.AnthropicAPIKey != "")
	set("anthropic_model", c.AnthropicModel, c.AnthropicModel != "")
	if c.GraphThreshold != nil {
		v.Set("graph_threshold", *c.GraphThreshold)
	}
	set("graph_scale", c.GraphScale, c.GraphScale > 0)
	set("search_limit", c.SearchLimit, c.SearchLimit > 0)
	return config.Load(v)
}
