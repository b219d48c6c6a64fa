package sqlite

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hearsaylabs/hearsay/core"
	"github.com/hearsaylabs/hearsay/storage"
)

func testMessage(sourceID, channelID, authorID string, createdAt time.Time) *core.MessageRecord {
	return &core.MessageRecord{
		SourceID:    sourceID,
		ChannelID:   channelID,
		ChannelName: "chan-" + channelID,
		AuthorID:    authorID,
		AuthorName:  "author-" + authorID,
		Kind:        core.KindRegular,
		CreatedAt:   createdAt,
	}
}

func TestUpsertMessage(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	createTestTenant(t, store, "acme")
	now := time.Now().UTC().Add(-time.Hour)

	t.Run("insert and read back", func(t *testing.T) {
		rec := testMessage("1700000000.000100", "C001", "U001", now)
		rec.ReplyCount = 2
		rec.MentionCount = 1
		require.NoError(t, store.UpsertMessage(ctx, "acme", rec))

		got, err := store.GetMessage(ctx, "acme", "1700000000.000100")
		require.NoError(t, err)
		assert.Equal(t, "acme", got.TenantID)
		assert.Equal(t, "C001", got.ChannelID)
		assert.Equal(t, core.ContentPending, got.ContentState, "new rows start content-pending")
		assert.Empty(t, got.ContentRef)
		assert.Equal(t, 2, got.ReplyCount)
		assert.Equal(t, 1, got.MentionCount)
	})

	t.Run("re-upsert updates counters without duplicating", func(t *testing.T) {
		rec := testMessage("1700000000.000100", "C001", "U001", now)
		rec.ReplyCount = 5
		rec.EditedAt = now.Add(time.Minute)
		require.NoError(t, store.UpsertMessage(ctx, "acme", rec))

		got, err := store.GetMessage(ctx, "acme", "1700000000.000100")
		require.NoError(t, err)
		assert.Equal(t, 5, got.ReplyCount)
		assert.False(t, got.EditedAt.IsZero())

		rows, err := store.GetMessages(ctx, "acme", []string{"1700000000.000100"})
		require.NoError(t, err)
		assert.Len(t, rows, 1)
	})

	t.Run("invalid record rejected", func(t *testing.T) {
		rec := testMessage("", "C001", "U001", now)
		err := store.UpsertMessage(ctx, "acme", rec)
		assert.ErrorIs(t, err, core.ErrInvalidRecord)
	})
}

func TestLinkContent(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	createTestTenant(t, store, "acme")
	now := time.Now().UTC().Add(-time.Hour)

	rec := testMessage("m1", "C001", "U001", now)
	require.NoError(t, store.UpsertMessage(ctx, "acme", rec))

	ref := core.NewContentRef("acme", "m1")
	require.NoError(t, store.LinkContent(ctx, "acme", "m1", ref))

	got, err := store.GetMessage(ctx, "acme", "m1")
	require.NoError(t, err)
	assert.Equal(t, core.ContentLinked, got.ContentState)
	assert.Equal(t, ref, got.ContentRef)

	t.Run("mark pending clears the ref", func(t *testing.T) {
		require.NoError(t, store.MarkContentPending(ctx, "acme", "m1"))

		got, err := store.GetMessage(ctx, "acme", "m1")
		require.NoError(t, err)
		assert.Equal(t, core.ContentPending, got.ContentState)
		assert.Empty(t, got.ContentRef, "no reader may follow a dangling link")
	})

	t.Run("missing row is not found", func(t *testing.T) {
		err := store.LinkContent(ctx, "acme", "nope", ref)
		assert.ErrorIs(t, err, storage.ErrNotFound)
	})
}

func TestListPending(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	createTestTenant(t, store, "acme")
	now := time.Now().UTC().Add(-time.Hour)

	for i, id := range []string{"m1", "m2", "m3"} {
		rec := testMessage(id, "C001", "U001", now.Add(time.Duration(i)*time.Minute))
		require.NoError(t, store.UpsertMessage(ctx, "acme", rec))
	}
	require.NoError(t, store.LinkContent(ctx, "acme", "m2", core.NewContentRef("acme", "m2")))

	pending, err := store.ListPending(ctx, "acme", 10)
	require.NoError(t, err)
	require.Len(t, pending, 2)
	assert.Equal(t, "m1", pending[0].SourceID, "oldest first")
	assert.Equal(t, "m3", pending[1].SourceID)

	t.Run("soft-deleted rows excluded", func(t *testing.T) {
		require.NoError(t, store.SoftDeleteMessage(ctx, "acme", "m1"))

		pending, err := store.ListPending(ctx, "acme", 10)
		require.NoError(t, err)
		require.Len(t, pending, 1)
		assert.Equal(t, "m3", pending[0].SourceID)
	})

	t.Run("limit respected", func(t *testing.T) {
		pending, err := store.ListPending(ctx, "acme", 1)
		require.NoError(t, err)
		assert.Len(t, pending, 1)
	})
}

func TestSoftDeleteMessage(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	createTestTenant(t, store, "acme")
	now := time.Now().UTC().Add(-time.Hour)

	require.NoError(t, store.UpsertMessage(ctx, "acme", testMessage("m1", "C001", "U001", now)))
	require.NoError(t, store.SoftDeleteMessage(ctx, "acme", "m1"))

	got, err := store.GetMessage(ctx, "acme", "m1")
	require.NoError(t, err)
	assert.False(t, got.DeletedAt.IsZero())

	// Deleting twice matches no live row
	err = store.SoftDeleteMessage(ctx, "acme", "m1")
	assert.ErrorIs(t, err, storage.ErrNotFound)
}

func TestDeleteTenantMessages(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	createTestTenant(t, store, "acme")
	createTestTenant(t, store, "globex")
	now := time.Now().UTC().Add(-time.Hour)

	require.NoError(t, store.UpsertMessage(ctx, "acme", testMessage("m1", "C001", "U001", now)))
	require.NoError(t, store.UpsertMessage(ctx, "acme", testMessage("m2", "C001", "U001", now)))
	require.NoError(t, store.UpsertMessage(ctx, "globex", testMessage("m1", "C009", "U009", now)))

	deleted, err := store.DeleteTenantMessages(ctx, "acme")
	require.NoError(t, err)
	assert.Equal(t, 2, deleted)

	_, err = store.GetMessage(ctx, "acme", "m1")
	assert.ErrorIs(t, err, storage.ErrNotFound)

	// The other tenant's row with the same source id survives
	got, err := store.GetMessage(ctx, "globex", "m1")
	require.NoError(t, err)
	assert.Equal(t, "C009", got.ChannelID)
}

func TestChannelActivity(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	createTestTenant(t, store, "acme")
	now := time.Now().UTC()

	// Three messages in C001 by two authors, one in C002, one too old
	require.NoError(t, store.UpsertMessage(ctx, "acme", testMessage("m1", "C001", "U001", now.Add(-time.Hour))))
	require.NoError(t, store.UpsertMessage(ctx, "acme", testMessage("m2", "C001", "U001", now.Add(-2*time.Hour))))
	require.NoError(t, store.UpsertMessage(ctx, "acme", testMessage("m3", "C001", "U002", now.Add(-3*time.Hour))))
	require.NoError(t, store.UpsertMessage(ctx, "acme", testMessage("m4", "C002", "U001", now.Add(-time.Hour))))
	require.NoError(t, store.UpsertMessage(ctx, "acme", testMessage("m5", "C001", "U001", now.Add(-48*time.Hour))))

	activity, err := store.ChannelActivity(ctx, "acme", now.Add(-24*time.Hour))
	require.NoError(t, err)
	require.Len(t, activity, 2)

	assert.Equal(t, "C001", activity[0].ChannelID, "busiest channel first")
	assert.Equal(t, 3, activity[0].MessageCount)
	assert.Equal(t, 2, activity[0].ActiveAuthors)
	assert.Equal(t, 1, activity[1].MessageCount)

	authors, err := store.TopAuthors(ctx, "acme", now.Add(-24*time.Hour), 10)
	require.NoError(t, err)
	require.Len(t, authors, 2)
	assert.Equal(t, "U001", authors[0].AuthorID)
	assert.Equal(t, 3, authors[0].MessageCount)
	assert.Equal(t, 2, authors[0].ChannelsActive)
}

func TestMessagesTenantIsolation(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	createTestTenant(t, store, "acme")
	createTestTenant(t, store, "globex")
	now := time.Now().UTC().Add(-time.Hour)

	require.NoError(t, store.UpsertMessage(ctx, "acme", testMessage("m1", "C001", "U001", now)))

	_, err := store.GetMessage(ctx, "globex", "m1")
	assert.ErrorIs(t, err, storage.ErrNotFound)

	rows, err := store.GetMessages(ctx, "globex", []string{"m1"})
	require.NoError(t, err)
	assert.Empty(t, rows)
}
