package database

import (
	"context"
	"time"
)

// capFlags records optional libSQL features.
type capFlags struct {
	checked        bool
	vectorDistance bool
}

// detectCapabilities probes vector32 and vector_distance_cos. Builds without
// them store raw little-endian blobs and rank in Go.
func (s *Store) detectCapabilities(ctx context.Context) {
	if s.caps.checked {
		return
	}
	ctx2, cancel := context.WithTimeout(ctx, 500*time.Millisecond)
	defer cancel()
	var d float64
	err := s.db.QueryRowContext(ctx2, "SELECT vector_distance_cos(vector32('[1, 0]'), vector32('[1, 0]'))").Scan(&d)
	s.caps = capFlags{checked: true, vectorDistance: err == nil}
	if err != nil {
		s.logger.Info("libsql vector functions unavailable, ranking in process")
	}
}
