package reembed

import (
	"context"
	"fmt"
	"time"

	"github.com/hearsaylabs/hearsay/ai"
	"github.com/hearsaylabs/hearsay/core"
	"github.com/hearsaylabs/hearsay/storage"
)

// BatchProcessor re-embeds a batch of content entries and writes the
// updated vectors back into the tenant's collection.
type BatchProcessor struct {
	content        storage.ContentStore
	embedder       ai.Embedder
	maxRetries     int
	retryBaseDelay time.Duration
}

// NewBatchProcessor creates a new batch processor.
// maxRetries: maximum number of retry attempts for embedding API calls
// retryBaseDelay: base delay for exponential backoff
func NewBatchProcessor(content storage.ContentStore, embedder ai.Embedder, maxRetries int, retryBaseDelay time.Duration) *BatchProcessor {
	return &BatchProcessor{
		content:        content,
		embedder:       embedder,
		maxRetries:     maxRetries,
		retryBaseDelay: retryBaseDelay,
	}
}

// Process embeds the text of each entry and upserts the entries with
// their new vectors. Vectors are normalized so dot-product similarity
// keeps behaving as cosine similarity.
func (bp *BatchProcessor) Process(ctx context.Context, tenantID string, entries []*core.ContentEntry) error {
	if len(entries) == 0 {
		return nil
	}

	texts := make([]string, len(entries))
	for i, entry := range entries {
		texts[i] = entry.Text
	}

	var embeddings [][]float32
	err := RetryWithBackoff(ctx, func() error {
		var err error
		embeddings, err = bp.embedder.EmbedTexts(ctx, texts)
		return err
	}, bp.maxRetries, bp.retryBaseDelay)
	if err != nil {
		return fmt.Errorf("failed to generate embeddings after %d attempts: %w", bp.maxRetries, err)
	}

	if len(embeddings) != len(entries) {
		return fmt.Errorf("embedding count mismatch: expected %d, got %d", len(entries), len(embeddings))
	}

	for i := range entries {
		entries[i].Vector = NormalizeVector(embeddings[i])
		if err := bp.content.UpsertEntry(ctx, tenantID, entries[i]); err != nil {
			return fmt.Errorf("failed to update entry %s: %w", entries[i].Ref, err)
		}
	}

	return nil
}
