package reembed

import "errors"

var (
	// ErrInvalidMaxAttempts is returned when maxAttempts is <= 0
	ErrInvalidMaxAttempts = errors.New("maxAttempts must be greater than 0")

	// ErrContentStoreRequired is returned when no content store is provided
	ErrContentStoreRequired = errors.New("content store is required")

	// ErrEmbedderRequired is returned when no embedder is provided
	ErrEmbedderRequired = errors.New("embedder is required")
)
