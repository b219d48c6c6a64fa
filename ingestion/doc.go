// Package ingestion provides the dual-write pipeline that turns raw source
// messages into metadata rows and embedded content entries.
//
// The Pipeline normalizes source-native records, writes the metadata row
// first in content-pending state, embeds the text, writes the content entry
// and finally links the two. A record is visible to retrieval only once both
// writes have landed. Transient store failures are retried with backoff;
// a record that still fails stays content-pending and is picked up by the
// repair pass or the next sync.
//
// Batch ingestion fans records out over a worker pool; per-record errors are
// collected in the BatchResult without aborting the batch.
package ingestion
