package ingestion

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"runtime"
	"sync"
	"time"

	"github.com/panjf2000/ants/v2"

	"github.com/hearsaylabs/hearsay/ai"
	"github.com/hearsaylabs/hearsay/core"
	"github.com/hearsaylabs/hearsay/source"
	"github.com/hearsaylabs/hearsay/storage"
)

// Pipeline dual-writes normalized messages into the metadata and content
// stores. The metadata row goes first in content-pending state; the record
// becomes retrievable only after the content write lands and the row is
// linked.
type Pipeline struct {
	metadata storage.MetadataStore
	content  storage.ContentStore
	embedder ai.Embedder
	pool     *ants.Pool

	maxAttempts int
	backoff     time.Duration
	logger      *slog.Logger
}

// Option configures a Pipeline.
type Option func(*Pipeline) error

// WithPoolSize sets the worker pool size for batch ingestion.
// Default is runtime.NumCPU() / 2, with a minimum of 1.
func WithPoolSize(size int) Option {
	return func(p *Pipeline) error {
		if size < 1 {
			size = 1
		}

		if p.pool != nil {
			p.pool.Release()
		}

		pool, err := ants.NewPool(size)
		if err != nil {
			return err
		}
		p.pool = pool
		return nil
	}
}

// WithLogger sets a custom logger.
// Default is slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(p *Pipeline) error {
		if logger == nil {
			logger = slog.Default()
		}
		p.logger = logger
		return nil
	}
}

// WithRetry configures how transient store failures are retried.
// Default is 3 attempts with a 50ms base backoff.
func WithRetry(attempts int, backoff time.Duration) Option {
	return func(p *Pipeline) error {
		if attempts < 1 {
			attempts = 1
		}
		p.maxAttempts = attempts
		p.backoff = backoff
		return nil
	}
}

// NewPipeline creates a new ingestion pipeline.
func NewPipeline(
	metadata storage.MetadataStore,
	content storage.ContentStore,
	embedder ai.Embedder,
	opts ...Option,
) (*Pipeline, error) {
	if metadata == nil {
		return nil, ErrMetadataStoreRequired
	}
	if content == nil {
		return nil, ErrContentStoreRequired
	}
	if embedder == nil {
		return nil, ErrEmbedderRequired
	}

	poolSize := runtime.NumCPU() / 2
	if poolSize < 1 {
		poolSize = 1
	}
	pool, err := ants.NewPool(poolSize)
	if err != nil {
		return nil, err
	}

	p := &Pipeline{
		metadata:    metadata,
		content:     content,
		embedder:    embedder,
		pool:        pool,
		maxAttempts: 3,
		backoff:     50 * time.Millisecond,
		logger:      slog.Default(),
	}

	for _, opt := range opts {
		if optErr := opt(p); optErr != nil {
			p.Release()
			return nil, optErr
		}
	}

	return p, nil
}

// Ingest dual-writes one normalized record. The returned reference is the
// deterministic content id; ingesting the same (tenant, source id) again
// updates both stores in place.
//
// Write order: metadata upsert (pending), embed, content upsert, link.
// A failure after the first write leaves the row content-pending, never a
// dangling content entry.
func (p *Pipeline) Ingest(ctx context.Context, tenantID string, rec *core.MessageRecord, text string) (core.ContentRef, error) {
	if err := core.ValidateTenantID(tenantID); err != nil {
		return "", err
	}
	rec.TenantID = tenantID
	if err := core.ValidateMessageRecord(rec); err != nil {
		return "", err
	}
	if text == "" {
		return "", core.ErrEmptyContent
	}

	rec.ContentRef = ""
	rec.ContentState = core.ContentPending

	if err := p.retryTransient(ctx, func() error {
		return p.metadata.UpsertMessage(ctx, tenantID, rec)
	}); err != nil {
		return "", fmt.Errorf("metadata write for %s: %w", rec.SourceID, err)
	}

	vector, err := p.embedder.EmbedText(ctx, text)
	if err != nil {
		p.logger.Warn("embedding failed, record stays pending",
			"tenant", tenantID, "source_id", rec.SourceID, "err", err)
		return "", fmt.Errorf("embedding %s: %w", rec.SourceID, err)
	}

	ref := core.NewContentRef(tenantID, rec.SourceID)
	entry := &core.ContentEntry{
		TenantID:    tenantID,
		Ref:         ref,
		SourceID:    rec.SourceID,
		Text:        text,
		Vector:      vector,
		ChannelID:   rec.ChannelID,
		ChannelName: rec.ChannelName,
		AuthorID:    rec.AuthorID,
		AuthorName:  rec.AuthorName,
		ThreadID:    rec.ThreadID,
		Kind:        rec.Kind,
		CreatedAt:   rec.CreatedAt,
	}

	if err := p.retryTransient(ctx, func() error {
		return p.content.UpsertEntry(ctx, tenantID, entry)
	}); err != nil {
		return "", fmt.Errorf("content write for %s: %w", rec.SourceID, err)
	}

	if err := p.retryTransient(ctx, func() error {
		return p.metadata.LinkContent(ctx, tenantID, rec.SourceID, ref)
	}); err != nil {
		// Content exists but the row is still pending; the repair pass
		// relinks it from the deterministic reference.
		return "", fmt.Errorf("linking content for %s: %w", rec.SourceID, err)
	}

	rec.ContentRef = ref
	rec.ContentState = core.ContentLinked
	return ref, nil
}

// RecordError names one record that failed inside a batch.
type RecordError struct {
	SourceID string
	Err      error
}

// BatchResult summarizes a batch ingestion. Failed holds per-record errors;
// a partially failed batch is not an error at the batch level.
type BatchResult struct {
	Ingested int
	Skipped  int
	Failed   []RecordError
}

// IngestBatch normalizes and ingests raw messages concurrently over the
// worker pool. Normalization skips are counted, per-record failures are
// collected, and neither aborts the rest of the batch.
func (p *Pipeline) IngestBatch(ctx context.Context, tenantID string, raws []source.RawMessage) (*BatchResult, error) {
	if err := core.ValidateTenantID(tenantID); err != nil {
		return nil, err
	}

	result := &BatchResult{}
	var mu sync.Mutex
	var wg sync.WaitGroup

	for _, raw := range raws {
		rec, text, err := Normalize(tenantID, raw)
		if err != nil {
			mu.Lock()
			if isSkip(err) {
				result.Skipped++
			} else {
				result.Failed = append(result.Failed, RecordError{SourceID: raw.SourceID, Err: err})
			}
			mu.Unlock()
			continue
		}

		wg.Add(1)
		submitErr := p.pool.Submit(func() {
			defer wg.Done()
			_, err := p.Ingest(ctx, tenantID, rec, text)
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				result.Failed = append(result.Failed, RecordError{SourceID: rec.SourceID, Err: err})
				return
			}
			result.Ingested++
		})
		if submitErr != nil {
			wg.Done()
			mu.Lock()
			result.Failed = append(result.Failed, RecordError{SourceID: rec.SourceID, Err: submitErr})
			mu.Unlock()
		}
	}

	wg.Wait()
	return result, nil
}

// RepairPending relinks rows stuck in content-pending state whose content
// entry actually landed. Rows whose entry is missing keep waiting for the
// next sync to re-ingest them; their text is not recoverable locally.
func (p *Pipeline) RepairPending(ctx context.Context, tenantID string, limit int) (int, error) {
	if err := core.ValidateTenantID(tenantID); err != nil {
		return 0, err
	}

	pending, err := p.metadata.ListPending(ctx, tenantID, limit)
	if err != nil {
		return 0, err
	}

	repaired := 0
	for _, rec := range pending {
		if ctx.Err() != nil {
			return repaired, ctx.Err()
		}

		ref := core.NewContentRef(tenantID, rec.SourceID)
		if _, err := p.content.GetEntry(ctx, tenantID, ref); err != nil {
			continue
		}
		if err := p.metadata.LinkContent(ctx, tenantID, rec.SourceID, ref); err != nil {
			p.logger.Warn("relink failed", "tenant", tenantID, "source_id", rec.SourceID, "err", err)
			continue
		}
		repaired++
	}

	p.logger.Info("repair pass finished",
		"tenant", tenantID, "pending", len(pending), "repaired", repaired)
	return repaired, nil
}

// Release releases the worker pool.
// The pipeline should not be used after calling Release.
func (p *Pipeline) Release() {
	if p.pool != nil {
		p.pool.Release()
	}
}

// retryTransient runs fn, retrying transient store failures with linear
// backoff. Non-transient errors return immediately.
func (p *Pipeline) retryTransient(ctx context.Context, fn func() error) error {
	var err error
	for attempt := 1; attempt <= p.maxAttempts; attempt++ {
		err = fn()
		if err == nil || !storage.IsTransient(err) {
			return err
		}
		if attempt == p.maxAttempts {
			break
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(p.backoff * time.Duration(attempt)):
		}
	}
	return err
}

func isSkip(err error) bool {
	return errors.Is(err, ErrSkipMessage)
}
