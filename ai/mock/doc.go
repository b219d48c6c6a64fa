// Package mock provides a deterministic test double for the ai.Embedder
// interface. The default behavior hashes input text into a stable unit
// vector, so similarity relationships are reproducible across test runs.
package mock
