package hearsay

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	aimock "github.com/hearsaylabs/hearsay/ai/mock"
	"github.com/hearsaylabs/hearsay/core"
)

func newTestEngine(t *testing.T) *Engine {
	t.Helper()
	engine, err := NewEngine(
		filepath.Join(t.TempDir(), "meta"),
		filepath.Join(t.TempDir(), "content"),
		WithEmbedder(&aimock.Embedder{}),
	)
	require.NoError(t, err)
	require.NotNil(t, engine)
	return engine
}

func TestNewEngine(t *testing.T) {
	t.Run("create new engine", func(t *testing.T) {
		engine := newTestEngine(t)
		defer engine.Close()

		assert.NotNil(t, engine.TenantRegistry())
		assert.NotNil(t, engine.MetadataStore())
		assert.NotNil(t, engine.JobStore())
		assert.NotNil(t, engine.ScheduleStore())
		assert.NotNil(t, engine.ContentStore())
	})

	t.Run("error with invalid content path", func(t *testing.T) {
		// A regular file where the content directory should be
		tmpFile := filepath.Join(t.TempDir(), "not_a_dir")
		err := os.WriteFile(tmpFile, []byte("test"), 0644)
		require.NoError(t, err)

		engine, err := NewEngine(
			filepath.Join(t.TempDir(), "meta"),
			tmpFile,
			WithEmbedder(&aimock.Embedder{}),
		)
		assert.Error(t, err)
		assert.Nil(t, engine)
	})
}

func TestEngine_Close(t *testing.T) {
	engine := newTestEngine(t)
	assert.NoError(t, engine.Close())
}

func TestEngine_DeleteTenantData(t *testing.T) {
	engine := newTestEngine(t)
	defer engine.Close()

	ctx := context.Background()
	pipeline, err := engine.NewIngestionPipeline()
	require.NoError(t, err)
	defer pipeline.Release()

	require.NoError(t, engine.TenantRegistry().CreateTenant(ctx, &core.Tenant{
		ID: "acme", Name: "Acme", Active: true,
	}))

	rec := &core.MessageRecord{
		SourceID:  "1700000000.000100",
		ChannelID: "C001",
		Kind:      core.KindRegular,
		CreatedAt: time.Now().UTC().Add(-time.Hour),
	}
	_, err = pipeline.Ingest(ctx, "acme", rec, "a message worth keeping")
	require.NoError(t, err)

	deleted, err := engine.DeleteTenantData(ctx, "acme")
	require.NoError(t, err)
	assert.Equal(t, 1, deleted)

	size, err := engine.ContentStore().CollectionSize(ctx, "acme")
	require.NoError(t, err)
	assert.Zero(t, size)
}

func TestEngine_FactoryMethods(t *testing.T) {
	engine := newTestEngine(t)
	defer engine.Close()

	t.Run("can create ingestion pipeline", func(t *testing.T) {
		pipeline, err := engine.NewIngestionPipeline()
		require.NoError(t, err)
		require.NotNil(t, pipeline)
		pipeline.Release()
	})

	t.Run("can create retrieval service", func(t *testing.T) {
		service, err := engine.NewRetrievalService()
		require.NoError(t, err)
		require.NotNil(t, service)
	})
}
