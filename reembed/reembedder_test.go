package reembed

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	aimock "github.com/hearsaylabs/hearsay/ai/mock"
	"github.com/hearsaylabs/hearsay/core"
	"github.com/hearsaylabs/hearsay/storage"
	"github.com/hearsaylabs/hearsay/storage/badger"
)

func seedEntries(t *testing.T, content storage.ContentStore, tenantID string, n int) {
	t.Helper()
	ctx := context.Background()
	for i := 0; i < n; i++ {
		entry := &core.ContentEntry{
			SourceID:  fmt.Sprintf("msg-%03d", i),
			ChannelID: "C001",
			Text:      fmt.Sprintf("message number %d", i),
			Vector:    []float32{1, 0, 0},
			CreatedAt: time.Now().UTC(),
		}
		require.NoError(t, content.UpsertEntry(ctx, tenantID, entry))
	}
}

func TestNewReembedder(t *testing.T) {
	content, err := badger.OpenMemory()
	require.NoError(t, err)
	defer content.Close()

	t.Run("requires content store", func(t *testing.T) {
		_, err := NewReembedder(nil, aimock.NewEmbedder(), nil, &bytes.Buffer{})
		assert.ErrorIs(t, err, ErrContentStoreRequired)
	})

	t.Run("requires embedder", func(t *testing.T) {
		_, err := NewReembedder(content, nil, nil, &bytes.Buffer{})
		assert.ErrorIs(t, err, ErrEmbedderRequired)
	})

	t.Run("nil config uses defaults", func(t *testing.T) {
		r, err := NewReembedder(content, aimock.NewEmbedder(), nil, &bytes.Buffer{})
		require.NoError(t, err)
		assert.Equal(t, DefaultConfig().BatchSize, r.config.BatchSize)
	})
}

func TestReembedder_Run(t *testing.T) {
	ctx := context.Background()

	t.Run("rewrites every vector", func(t *testing.T) {
		content, err := badger.OpenMemory()
		require.NoError(t, err)
		defer content.Close()

		seedEntries(t, content, "acme", 7)

		embedder := aimock.NewEmbedder()
		embedder.EmbedTextsFunc = func(ctx context.Context, texts []string) ([][]float32, error) {
			out := make([][]float32, len(texts))
			for i := range texts {
				out[i] = []float32{0, 2, 0}
			}
			return out, nil
		}

		var progress bytes.Buffer
		config := DefaultConfig()
		config.BatchSize = 3

		r, err := NewReembedder(content, embedder, config, &progress)
		require.NoError(t, err)
		require.NoError(t, r.Run(ctx, "acme"))

		// 7 entries at batch size 3 means 3 embedding calls
		assert.Equal(t, 3, embedder.CallCount())

		count := 0
		err = content.ForEachEntry(ctx, "acme", func(entry *core.ContentEntry) error {
			count++
			assert.Equal(t, []float32{0, 1, 0}, entry.Vector, "vector should be normalized")
			return nil
		})
		require.NoError(t, err)
		assert.Equal(t, 7, count)
		assert.Contains(t, progress.String(), "Reembedding complete")
	})

	t.Run("empty collection is a no-op", func(t *testing.T) {
		content, err := badger.OpenMemory()
		require.NoError(t, err)
		defer content.Close()

		embedder := aimock.NewEmbedder()
		var progress bytes.Buffer

		r, err := NewReembedder(content, embedder, nil, &progress)
		require.NoError(t, err)
		require.NoError(t, r.Run(ctx, "acme"))

		assert.Equal(t, 0, embedder.CallCount())
		assert.Contains(t, progress.String(), "0 entries")
	})

	t.Run("does not touch other tenants", func(t *testing.T) {
		content, err := badger.OpenMemory()
		require.NoError(t, err)
		defer content.Close()

		seedEntries(t, content, "acme", 2)
		seedEntries(t, content, "globex", 2)

		embedder := aimock.NewEmbedder()
		embedder.EmbedTextsFunc = func(ctx context.Context, texts []string) ([][]float32, error) {
			out := make([][]float32, len(texts))
			for i := range texts {
				out[i] = []float32{0, 0, 5}
			}
			return out, nil
		}

		r, err := NewReembedder(content, embedder, nil, &bytes.Buffer{})
		require.NoError(t, err)
		require.NoError(t, r.Run(ctx, "acme"))

		err = content.ForEachEntry(ctx, "globex", func(entry *core.ContentEntry) error {
			assert.Equal(t, []float32{1, 0, 0}, entry.Vector)
			return nil
		})
		require.NoError(t, err)
	})

	t.Run("embedding failure surfaces after retries", func(t *testing.T) {
		content, err := badger.OpenMemory()
		require.NoError(t, err)
		defer content.Close()

		seedEntries(t, content, "acme", 1)

		embedder := aimock.NewEmbedder()
		embedder.EmbedTextsFunc = func(ctx context.Context, texts []string) ([][]float32, error) {
			return nil, errors.New("model unavailable")
		}

		config := DefaultConfig()
		config.MaxRetries = 2
		config.RetryDelay = time.Millisecond

		r, err := NewReembedder(content, embedder, config, &bytes.Buffer{})
		require.NoError(t, err)

		err = r.Run(ctx, "acme")
		require.Error(t, err)
		assert.Contains(t, err.Error(), "model unavailable")
		assert.Equal(t, 2, embedder.CallCount())
	})
}

func TestBatchProcessor_Process(t *testing.T) {
	ctx := context.Background()

	t.Run("empty batch is a no-op", func(t *testing.T) {
		content, err := badger.OpenMemory()
		require.NoError(t, err)
		defer content.Close()

		embedder := aimock.NewEmbedder()
		bp := NewBatchProcessor(content, embedder, 1, time.Millisecond)
		require.NoError(t, bp.Process(ctx, "acme", nil))
		assert.Equal(t, 0, embedder.CallCount())
	})

	t.Run("count mismatch is an error", func(t *testing.T) {
		content, err := badger.OpenMemory()
		require.NoError(t, err)
		defer content.Close()

		embedder := aimock.NewEmbedder()
		embedder.EmbedTextsFunc = func(ctx context.Context, texts []string) ([][]float32, error) {
			return [][]float32{{1}}, nil
		}

		entries := []*core.ContentEntry{
			{SourceID: "a", Text: "one"},
			{SourceID: "b", Text: "two"},
		}

		bp := NewBatchProcessor(content, embedder, 1, time.Millisecond)
		err = bp.Process(ctx, "acme", entries)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "mismatch")
	})
}
