// Package reembed rebuilds the embedding vectors of a tenant's content
// collection with a new or updated embedding model.
//
// Entries are processed in batches with retry and exponential backoff
// on embedding failures, progress reporting, and vector normalization
// so rebuilt vectors stay compatible with dot-product search.
package reembed
