package database

// Config holds the libSQL store configuration
type Config struct {
	URL       string
	AuthToken string
	// EmbeddingDims sizes the F32_BLOB column. An existing table wins over
	// this value; see Store.Dims.
	EmbeddingDims int

	MaxOpenConns   int
	MaxIdleConns   int
	ConnMaxIdleSec int
	ConnMaxLifeSec int
}

// NewConfig returns a Config with a local file database and 4-dim vectors.
func NewConfig() *Config {
	return &Config{
		URL:           "file:./libsql.db",
		EmbeddingDims: 4,
	}
}
