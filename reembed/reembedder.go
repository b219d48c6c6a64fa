// Copyright 2025 Hearsay Labs
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package reembed

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/hearsaylabs/hearsay/ai"
	"github.com/hearsaylabs/hearsay/core"
	"github.com/hearsaylabs/hearsay/storage"
)

// Config holds configuration for a reembedding run.
type Config struct {
	// BatchSize is the number of entries to embed per API call
	BatchSize int

	// ReportInterval is how often to report progress (number of entries)
	ReportInterval int

	// MaxRetries is the maximum number of retry attempts for failed
	// embedding calls
	MaxRetries int

	// RetryDelay is the base delay for exponential backoff
	RetryDelay time.Duration
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		BatchSize:      100,
		ReportInterval: 100,
		MaxRetries:     3,
		RetryDelay:     1 * time.Second,
	}
}

// Reembedder rebuilds the vectors of one tenant's content collection.
type Reembedder struct {
	content   storage.ContentStore
	embedder  ai.Embedder
	config    *Config
	progress  io.Writer
	processor *BatchProcessor
}

// NewReembedder creates a new reembedder.
// progress: where to write progress output (typically os.Stderr)
func NewReembedder(content storage.ContentStore, embedder ai.Embedder, config *Config, progress io.Writer) (*Reembedder, error) {
	if content == nil {
		return nil, ErrContentStoreRequired
	}
	if embedder == nil {
		return nil, ErrEmbedderRequired
	}
	if config == nil {
		config = DefaultConfig()
	}

	return &Reembedder{
		content:   content,
		embedder:  embedder,
		config:    config,
		progress:  progress,
		processor: NewBatchProcessor(content, embedder, config.MaxRetries, config.RetryDelay),
	}, nil
}

// Run re-embeds every entry in the tenant's collection with the
// configured embedder, reporting progress as it goes.
func (r *Reembedder) Run(ctx context.Context, tenantID string) error {
	total, err := r.content.CollectionSize(ctx, tenantID)
	if err != nil {
		return fmt.Errorf("failed to size collection: %w", err)
	}
	if total == 0 {
		fmt.Fprintf(r.progress, "No entries found for tenant %s (0 entries)\n", tenantID)
		return nil
	}

	fmt.Fprintf(r.progress, "Starting reembedding of %d entries (batch size: %d)\n",
		total, r.config.BatchSize)

	tracker := NewProgressTracker(r.progress, total, r.config.ReportInterval)
	tracker.Start()

	processed := 0
	batch := make([]*core.ContentEntry, 0, r.config.BatchSize)

	flush := func() error {
		if len(batch) == 0 {
			return nil
		}
		if err := r.processor.Process(ctx, tenantID, batch); err != nil {
			return fmt.Errorf("failed to process batch: %w", err)
		}
		processed += len(batch)
		tracker.Update(processed)
		batch = batch[:0]
		return nil
	}

	err = r.content.ForEachEntry(ctx, tenantID, func(entry *core.ContentEntry) error {
		batch = append(batch, entry)
		if len(batch) >= r.config.BatchSize {
			return flush()
		}
		return nil
	})
	if err != nil {
		return err
	}
	if err := flush(); err != nil {
		return err
	}

	tracker.Finish()

	elapsed := tracker.Elapsed()
	rate := float64(processed)
	if elapsed.Seconds() > 0 {
		rate = float64(processed) / elapsed.Seconds()
	}
	fmt.Fprintf(r.progress, "Reembedding complete. Processed %d entries in %v (%.1f entries/sec)\n",
		processed, elapsed.Round(time.Second), rate)

	return nil
}
