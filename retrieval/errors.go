package retrieval

import "errors"

var (
	// ErrRegistryRequired is returned when a tenant registry is not provided.
	ErrRegistryRequired = errors.New("tenant registry required")

	// ErrMetadataStoreRequired is returned when a metadata store is not provided.
	ErrMetadataStoreRequired = errors.New("metadata store required")

	// ErrContentStoreRequired is returned when a content store is not provided.
	ErrContentStoreRequired = errors.New("content store required")

	// ErrEmbedderRequired is returned when an embedder is not provided.
	ErrEmbedderRequired = errors.New("embedder required")

	// ErrEmptyQuery is returned for blank query text.
	ErrEmptyQuery = errors.New("query text cannot be empty")
)
