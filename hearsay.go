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

package hearsay

import (
	"context"
	"log/slog"

	"github.com/hearsaylabs/hearsay/ai"
	"github.com/hearsaylabs/hearsay/ai/openai"
	"github.com/hearsaylabs/hearsay/ingestion"
	"github.com/hearsaylabs/hearsay/retrieval"
	"github.com/hearsaylabs/hearsay/storage"
	"github.com/hearsaylabs/hearsay/storage/badger"
	"github.com/hearsaylabs/hearsay/storage/sqlite"
)

// Engine bundles the metadata store, the content store, and the
// embedder behind one handle with an ordered Close.
type Engine struct {
	metadata *sqlite.Store
	content  storage.ContentStore
	embedder ai.Embedder
	logger   *slog.Logger
}

// EngineOption configures an Engine.
type EngineOption func(*engineOptions)

type engineOptions struct {
	aiConfig *ai.Config
	embedder ai.Embedder
}

// WithAIConfig sets the embedding endpoint configuration.
func WithAIConfig(config *ai.Config) EngineOption {
	return func(o *engineOptions) {
		o.aiConfig = config
	}
}

// WithEmbedder injects an embedder directly, bypassing the OpenAI
// client. Intended for tests.
func WithEmbedder(embedder ai.Embedder) EngineOption {
	return func(o *engineOptions) {
		o.embedder = embedder
	}
}

// NewEngine opens the relational store at dataDir and the content
// store at contentDir. On any failure the stores opened so far are
// closed before returning.
func NewEngine(dataDir, contentDir string, opts ...EngineOption) (*Engine, error) {
	options := &engineOptions{
		aiConfig: ai.DefaultConfig(),
	}
	for _, opt := range opts {
		opt(options)
	}

	metadata, err := sqlite.Open(dataDir)
	if err != nil {
		return nil, err
	}

	content, err := badger.Open(contentDir)
	if err != nil {
		metadata.Close()
		return nil, err
	}

	embedder := options.embedder
	if embedder == nil {
		embedder, err = openai.NewEmbedder(options.aiConfig)
		if err != nil {
			content.Close()
			metadata.Close()
			return nil, err
		}
	}

	return &Engine{
		metadata: metadata,
		content:  content,
		embedder: embedder,
		logger:   slog.Default(),
	}, nil
}

func (e *Engine) Close() error {
	if err := e.content.Close(); err != nil {
		e.logger.Error("error closing content store", "err", err)
		return err
	}
	if err := e.metadata.Close(); err != nil {
		e.logger.Error("error closing metadata store", "err", err)
		return err
	}
	return nil
}

func (e *Engine) TenantRegistry() storage.TenantRegistry {
	return e.metadata
}

func (e *Engine) MetadataStore() storage.MetadataStore {
	return e.metadata
}

func (e *Engine) JobStore() storage.JobStore {
	return e.metadata
}

func (e *Engine) ScheduleStore() storage.ScheduleStore {
	return e.metadata
}

func (e *Engine) ContentStore() storage.ContentStore {
	return e.content
}

// DeleteTenantData hard-deletes a tenant's metadata rows and drops its
// content collection. Returns the number of metadata rows removed.
func (e *Engine) DeleteTenantData(ctx context.Context, tenantID string) (int, error) {
	deleted, err := e.metadata.DeleteTenantMessages(ctx, tenantID)
	if err != nil {
		return 0, err
	}
	if err := e.content.DropCollection(ctx, tenantID); err != nil {
		return deleted, err
	}
	return deleted, nil
}

func (e *Engine) NewIngestionPipeline(opts ...ingestion.Option) (*ingestion.Pipeline, error) {
	return ingestion.NewPipeline(e.metadata, e.content, e.embedder, opts...)
}

func (e *Engine) NewRetrievalService(opts ...retrieval.Option) (*retrieval.Service, error) {
	return retrieval.NewService(e.metadata, e.metadata, e.content, e.embedder, opts...)
}
