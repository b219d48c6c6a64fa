package retrieval

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hearsaylabs/hearsay/ai/mock"
	"github.com/hearsaylabs/hearsay/core"
	"github.com/hearsaylabs/hearsay/ingestion"
	"github.com/hearsaylabs/hearsay/source"
	badgerstore "github.com/hearsaylabs/hearsay/storage/badger"
	"github.com/hearsaylabs/hearsay/storage/sqlite"
)

// vectorFor gives tests full control over similarity: the query vector is
// a unit basis vector and document vectors are scaled copies, so the dot
// product equals the configured score.
var vectorFor = map[string][]float32{
	"how do we rotate signing keys":   {1, 0, 0, 0},
	"rotate the signing key monthly":  {0.95, 0, 0, 0},
	"key rotation runbook is in the wiki": {0.80, 0, 0, 0},
	"lunch menu for the offsite":      {0, 0.9, 0, 0},
}

type env struct {
	store    *sqlite.Store
	pipeline *ingestion.Pipeline
	service  *Service
}

func setupService(t *testing.T) *env {
	t.Helper()

	store, err := sqlite.Open(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	content, err := badgerstore.OpenMemory()
	require.NoError(t, err)
	t.Cleanup(func() { content.Close() })

	embedder := mock.NewEmbedder()
	embedder.EmbedTextFunc = func(ctx context.Context, text string) ([]float32, error) {
		if v, ok := vectorFor[text]; ok {
			return v, nil
		}
		return []float32{0, 0, 0, 1}, nil
	}

	pipeline, err := ingestion.NewPipeline(store, content, embedder, ingestion.WithPoolSize(1))
	require.NoError(t, err)
	t.Cleanup(pipeline.Release)

	service, err := NewService(store, store, content, embedder)
	require.NoError(t, err)

	require.NoError(t, store.CreateTenant(context.Background(), &core.Tenant{
		ID:        "acme",
		Name:      "Acme",
		Active:    true,
		CreatedAt: time.Now().UTC(),
	}))

	return &env{store: store, pipeline: pipeline, service: service}
}

func ingest(t *testing.T, e *env, tenantID, sourceID, channelID, text string, at time.Time) {
	t.Helper()

	rec, norm, err := ingestion.Normalize(tenantID, source.RawMessage{
		SourceID:    sourceID,
		ChannelID:   channelID,
		ChannelName: channelID,
		AuthorID:    "U01",
		AuthorName:  "dana",
		Text:        text,
		CreatedAt:   at,
	})
	require.NoError(t, err)
	_, err = e.pipeline.Ingest(context.Background(), tenantID, rec, norm)
	require.NoError(t, err)
}

func TestNewService(t *testing.T) {
	e := setupService(t)

	t.Run("requires registry", func(t *testing.T) {
		_, err := NewService(nil, e.store, nil, nil)
		assert.ErrorIs(t, err, ErrRegistryRequired)
	})

	t.Run("requires embedder", func(t *testing.T) {
		_, err := NewService(e.store, e.store, e.service.content, nil)
		assert.ErrorIs(t, err, ErrEmbedderRequired)
	})
}

func TestQuery(t *testing.T) {
	ctx := context.Background()
	now := time.Now().UTC().Add(-time.Hour)

	t.Run("ranks by similarity above the floor", func(t *testing.T) {
		e := setupService(t)
		ingest(t, e, "acme", "m1", "C01", "rotate the signing key monthly", now)
		ingest(t, e, "acme", "m2", "C01", "key rotation runbook is in the wiki", now)
		ingest(t, e, "acme", "m3", "C01", "lunch menu for the offsite", now)

		resp, err := e.service.Query(ctx, "acme", "how do we rotate signing keys", Filters{})
		require.NoError(t, err)

		require.Len(t, resp.Results, 2)
		assert.Equal(t, "m1", resp.Results[0].Record.SourceID)
		assert.Equal(t, "m2", resp.Results[1].Record.SourceID)
		assert.Greater(t, resp.Results[0].Score, resp.Results[1].Score)
		assert.Greater(t, resp.Confidence, 0.0)
		assert.Contains(t, resp.Explanation, "2 matches")
	})

	t.Run("channel filter applies before ranking", func(t *testing.T) {
		e := setupService(t)
		ingest(t, e, "acme", "m1", "C01", "rotate the signing key monthly", now)
		ingest(t, e, "acme", "m2", "C02", "key rotation runbook is in the wiki", now)

		resp, err := e.service.Query(ctx, "acme", "how do we rotate signing keys",
			Filters{ChannelID: "C02"})
		require.NoError(t, err)

		require.Len(t, resp.Results, 1)
		assert.Equal(t, "m2", resp.Results[0].Record.SourceID)
	})

	t.Run("time range filter", func(t *testing.T) {
		e := setupService(t)
		old := now.Add(-30 * 24 * time.Hour)
		ingest(t, e, "acme", "m1", "C01", "rotate the signing key monthly", old)
		ingest(t, e, "acme", "m2", "C01", "key rotation runbook is in the wiki", now)

		resp, err := e.service.Query(ctx, "acme", "how do we rotate signing keys",
			Filters{From: now.Add(-24 * time.Hour)})
		require.NoError(t, err)

		require.Len(t, resp.Results, 1)
		assert.Equal(t, "m2", resp.Results[0].Record.SourceID)
	})

	t.Run("no matches yields zero confidence", func(t *testing.T) {
		e := setupService(t)
		ingest(t, e, "acme", "m1", "C01", "lunch menu for the offsite", now)

		resp, err := e.service.Query(ctx, "acme", "how do we rotate signing keys", Filters{})
		require.NoError(t, err)

		assert.Empty(t, resp.Results)
		assert.Zero(t, resp.Confidence)
		assert.Equal(t, "no matches above the relevance threshold", resp.Explanation)
	})

	t.Run("soft deleted rows are dropped", func(t *testing.T) {
		e := setupService(t)
		ingest(t, e, "acme", "m1", "C01", "rotate the signing key monthly", now)
		require.NoError(t, e.store.SoftDeleteMessage(ctx, "acme", "m1"))

		resp, err := e.service.Query(ctx, "acme", "how do we rotate signing keys", Filters{})
		require.NoError(t, err)
		assert.Empty(t, resp.Results)
	})

	t.Run("pending rows are invisible", func(t *testing.T) {
		e := setupService(t)
		ingest(t, e, "acme", "m1", "C01", "rotate the signing key monthly", now)
		require.NoError(t, e.store.MarkContentPending(ctx, "acme", "m1"))

		resp, err := e.service.Query(ctx, "acme", "how do we rotate signing keys", Filters{})
		require.NoError(t, err)
		assert.Empty(t, resp.Results)
	})

	t.Run("tenants never see each other", func(t *testing.T) {
		e := setupService(t)
		require.NoError(t, e.store.CreateTenant(ctx, &core.Tenant{
			ID: "rival", Name: "Rival", Active: true, CreatedAt: time.Now().UTC(),
		}))
		// Same source-native id in both tenants.
		ingest(t, e, "acme", "m1", "C01", "rotate the signing key monthly", now)
		ingest(t, e, "rival", "m1", "C01", "key rotation runbook is in the wiki", now)

		resp, err := e.service.Query(ctx, "rival", "how do we rotate signing keys", Filters{})
		require.NoError(t, err)

		require.Len(t, resp.Results, 1)
		assert.Equal(t, "rival", resp.Results[0].Record.TenantID)
		assert.Equal(t, "key rotation runbook is in the wiki", resp.Results[0].Text)
	})

	t.Run("limit caps results", func(t *testing.T) {
		e := setupService(t)
		ingest(t, e, "acme", "m1", "C01", "rotate the signing key monthly", now)
		ingest(t, e, "acme", "m2", "C01", "key rotation runbook is in the wiki", now)

		resp, err := e.service.Query(ctx, "acme", "how do we rotate signing keys",
			Filters{Limit: 1})
		require.NoError(t, err)
		require.Len(t, resp.Results, 1)
		assert.Equal(t, "m1", resp.Results[0].Record.SourceID)
	})

	t.Run("rejects empty query", func(t *testing.T) {
		e := setupService(t)
		_, err := e.service.Query(ctx, "acme", "", Filters{})
		assert.ErrorIs(t, err, ErrEmptyQuery)
	})

	t.Run("rejects empty tenant", func(t *testing.T) {
		e := setupService(t)
		_, err := e.service.Query(ctx, "", "anything", Filters{})
		assert.ErrorIs(t, err, core.ErrTenantRequired)
	})
}
