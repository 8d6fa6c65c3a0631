package config

import (
	"go.uber.org/zap"
)

// NewLogger builds the process logger. Both encoders write to stderr, which
// keeps stdout free for the stdio MCP transport.
func NewLogger(cfg *Config) (*zap.Logger, error) {
	level, err := zap.ParseAtomicLevel(cfg.LogLevel)
	if err != nil {
		return nil, err
	}
	zc := zap.NewProductionConfig()
	if cfg.LogFormat == "console" {
		zc = zap.NewDevelopmentConfig()
	}
	zc.Level = level
	return zc.Build()
}
