package apptype

import "errors"

var (
	// ErrInvalidInput marks caller mistakes: blank content, vectors of
	// mismatched length, malformed ids.
	ErrInvalidInput = errors.New("invalid input")
	// ErrEmbeddingsDisabled is returned by graph operations when no
	// embeddings provider is configured.
	ErrEmbeddingsDisabled = errors.New("embeddings disabled")
)
