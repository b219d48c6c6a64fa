package ingestion

import "errors"

var (
	// ErrMetadataStoreRequired is returned when a metadata store is not provided.
	ErrMetadataStoreRequired = errors.New("metadata store required")

	// ErrContentStoreRequired is returned when a content store is not provided.
	ErrContentStoreRequired = errors.New("content store required")

	// ErrEmbedderRequired is returned when an embedder is not provided.
	ErrEmbedderRequired = errors.New("embedder required")

	// ErrSkipMessage marks a source message that normalization drops on
	// purpose (system subtypes, too-short text). Not a failure.
	ErrSkipMessage = errors.New("message skipped by normalization")
)
