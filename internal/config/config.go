// Package config loads runtime settings from the environment, an optional
// config file and bound command-line flags.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Store drivers.
const (
	DriverMemory   = "memory"
	DriverLibSQL   = "libsql"
	DriverPostgres = "postgres"
)

// Config is the flattened application configuration.
type Config struct {
	StoreDriver     string
	LibSQLURL       string
	LibSQLAuthToken string
	DatabaseURL     string
	EmbeddingDims   int

	DBMaxOpenConns   int
	DBMaxIdleConns   int
	DBConnMaxIdleSec int
	DBConnMaxLifeSec int

	EmbeddingsProvider     string
	OpenAIAPIKey           string
	OpenAIBaseURL          string
	OpenAIEmbeddingsModel  string
	LocalAIBaseURL         string
	LocalAIEmbeddingsModel string
	OllamaHost             string
	OllamaEmbeddingsModel  string
	EmbeddingsAdaptMode    string
	EmbeddingsCacheSize    int
	EmbeddingsHTTPTimeout  time.Duration

	AnthropicAPIKey  string
	AnthropicModel   string
	AnthropicBaseURL string

	GraphThreshold float64
	GraphScale     float64
	SearchLimit    int

	HTTPAddr    string
	CORSOrigins []string

	MetricsPrometheus bool
	MetricsAddr       string

	LogLevel  string
	LogFormat string
}

var defaultCORSOrigins = []string{"http://localhost:1420", "http://127.0.0.1:1420"}

// New returns a viper instance with defaults registered and environment
// lookup enabled. Keys are the lower-cased environment variable names.
func New() *viper.Viper {
	v := viper.New()
	v.SetDefault("store_driver", "")
	v.SetDefault("libsql_url", "file:./libsql.db")
	v.SetDefault("libsql_auth_token", "")
	v.SetDefault("database_url", "")
	v.SetDefault("embedding_dims", 0)
	v.SetDefault("db_max_open_conns", 0)
	v.SetDefault("db_max_idle_conns", 0)
	v.SetDefault("db_conn_max_idle_sec", 0)
	v.SetDefault("db_conn_max_life_sec", 0)
	v.SetDefault("embeddings_provider", "")
	v.SetDefault("openai_api_key", "")
	v.SetDefault("openai_base_url", "")
	v.SetDefault("openai_embeddings_model", "text-embedding-3-small")
	v.SetDefault("localai_base_url", "")
	v.SetDefault("localai_embeddings_model", "")
	v.SetDefault("ollama_host", "")
	v.SetDefault("ollama_embeddings_model", "")
	v.SetDefault("embeddings_adapt_mode", "pad_or_truncate")
	v.SetDefault("embeddings_cache_size", 1024)
	v.SetDefault("embeddings_http_timeout", "30s")
	v.SetDefault("anthropic_api_key", "")
	v.SetDefault("anthropic_model", "")
	v.SetDefault("anthropic_base_url", "")
	v.SetDefault("graph_threshold", 0.7)
	v.SetDefault("graph_scale", 20.0)
	v.SetDefault("search_limit", 5)
	v.SetDefault("http_addr", ":8000")
	v.SetDefault("cors_origins", strings.Join(defaultCORSOrigins, ","))
	v.SetDefault("metrics_prometheus", false)
	v.SetDefault("metrics_addr", ":9090")
	v.SetDefault("log_level", "info")
	v.SetDefault("log_format", "json")
	v.AutomaticEnv()
	return v
}

// ReadFile merges a YAML, TOML or JSON config file into v.
func ReadFile(v *viper.Viper, path string) error {
	if path == "" {
		return nil
	}
	v.SetConfigFile(path)
	if err := v.ReadInConfig(); err != nil {
		return fmt.Errorf("read config %s: %w", path, err)
	}
	return nil
}

// Load resolves the final configuration from v and validates it.
func Load(v *viper.Viper) (*Config, error) {
	cfg := &Config{
		StoreDriver:            strings.ToLower(strings.TrimSpace(v.GetString("store_driver"))),
		LibSQLURL:              v.GetString("libsql_url"),
		LibSQLAuthToken:        v.GetString("libsql_auth_token"),
		DatabaseURL:            v.GetString("database_url"),
		EmbeddingDims:          v.GetInt("embedding_dims"),
		DBMaxOpenConns:         v.GetInt("db_max_open_conns"),
		DBMaxIdleConns:         v.GetInt("db_max_idle_conns"),
		DBConnMaxIdleSec:       v.GetInt("db_conn_max_idle_sec"),
		DBConnMaxLifeSec:       v.GetInt("db_conn_max_life_sec"),
		EmbeddingsProvider:     strings.ToLower(strings.TrimSpace(v.GetString("embeddings_provider"))),
		OpenAIAPIKey:           v.GetString("openai_api_key"),
		OpenAIBaseURL:          v.GetString("openai_base_url"),
		OpenAIEmbeddingsModel:  v.GetString("openai_embeddings_model"),
		LocalAIBaseURL:         v.GetString("localai_base_url"),
		LocalAIEmbeddingsModel: v.GetString("localai_embeddings_model"),
		OllamaHost:             v.GetString("ollama_host"),
		OllamaEmbeddingsModel:  v.GetString("ollama_embeddings_model"),
		EmbeddingsAdaptMode:    v.GetString("embeddings_adapt_mode"),
		EmbeddingsCacheSize:    v.GetInt("embeddings_cache_size"),
		EmbeddingsHTTPTimeout:  v.GetDuration("embeddings_http_timeout"),
		AnthropicAPIKey:        v.GetString("anthropic_api_key"),
		AnthropicModel:         v.GetString("anthropic_model"),
		AnthropicBaseURL:       v.GetString("anthropic_base_url"),
		GraphThreshold:         v.GetFloat64("graph_threshold"),
		GraphScale:             v.GetFloat64("graph_scale"),
		SearchLimit:            v.GetInt("search_limit"),
		HTTPAddr:               v.GetString("http_addr"),
		CORSOrigins:            splitList(v.GetString("cors_origins")),
		MetricsPrometheus:      v.GetBool("metrics_prometheus"),
		MetricsAddr:            v.GetString("metrics_addr"),
		LogLevel:               v.GetString("log_level"),
		LogFormat:              strings.ToLower(v.GetString("log_format")),
	}
	if cfg.StoreDriver == "" {
		cfg.StoreDriver = DriverMemory
		if cfg.DatabaseURL != "" {
			cfg.StoreDriver = DriverPostgres
		}
	}
	if cfg.EmbeddingDims == 0 {
		cfg.EmbeddingDims = defaultDims(cfg)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// defaultDims picks the vector width the configured provider produces so a
// fresh table is sized correctly without EMBEDDING_DIMS.
func defaultDims(cfg *Config) int {
	switch cfg.EmbeddingsProvider {
	case "hash":
		return 384
	case "openai":
		if strings.Contains(cfg.OpenAIEmbeddingsModel, "large") {
			return 3072
		}
		return 1536
	case "ollama":
		return 768
	case "localai", "llamacpp", "llama.cpp":
		return 1536
	default:
		return 4
	}
}

// Validate rejects settings no component can run with.
func (c *Config) Validate() error {
	switch c.StoreDriver {
	case DriverMemory, DriverLibSQL:
	case DriverPostgres:
		if c.DatabaseURL == "" {
			return fmt.Errorf("DATABASE_URL is required for the %s driver", DriverPostgres)
		}
	default:
		return fmt.Errorf("unknown STORE_DRIVER %q (expected memory, libsql or postgres)", c.StoreDriver)
	}
	if c.GraphThreshold < -1 || c.GraphThreshold > 1 {
		return fmt.Errorf("GRAPH_THRESHOLD must be within [-1, 1], got %v", c.GraphThreshold)
	}
	if c.GraphScale <= 0 {
		return fmt.Errorf("GRAPH_SCALE must be positive, got %v", c.GraphScale)
	}
	if c.SearchLimit <= 0 {
		return fmt.Errorf("SEARCH_LIMIT must be positive, got %d", c.SearchLimit)
	}
	if c.EmbeddingDims < 1 || c.EmbeddingDims > 65536 {
		return fmt.Errorf("EMBEDDING_DIMS must be within [1, 65536], got %d", c.EmbeddingDims)
	}
	if c.EmbeddingsCacheSize < 0 {
		return fmt.Errorf("EMBEDDINGS_CACHE_SIZE must not be negative, got %d", c.EmbeddingsCacheSize)
	}
	switch strings.ToLower(strings.TrimSpace(c.EmbeddingsAdaptMode)) {
	case "", "pad_or_truncate", "truncate", "pad":
	default:
		return fmt.Errorf("unknown EMBEDDINGS_ADAPT_MODE %q (expected pad_or_truncate, truncate or pad)", c.EmbeddingsAdaptMode)
	}
	switch c.LogFormat {
	case "json", "console":
	default:
		return fmt.Errorf("unknown LOG_FORMAT %q (expected json or console)", c.LogFormat)
	}
	return nil
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
