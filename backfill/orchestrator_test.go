package backfill

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hearsaylabs/hearsay/ai/mock"
	"github.com/hearsaylabs/hearsay/core"
	"github.com/hearsaylabs/hearsay/ingestion"
	"github.com/hearsaylabs/hearsay/source"
	sourcemock "github.com/hearsaylabs/hearsay/source/mock"
	"github.com/hearsaylabs/hearsay/storage"
	badgerstore "github.com/hearsaylabs/hearsay/storage/badger"
	"github.com/hearsaylabs/hearsay/storage/sqlite"
)

type fixture struct {
	store     *sqlite.Store
	connector *sourcemock.Connector
	orch      *Orchestrator
}

func setupOrchestrator(t *testing.T, opts ...Option) *fixture {
	t.Helper()

	store, err := sqlite.Open(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	content, err := badgerstore.OpenMemory()
	require.NoError(t, err)
	t.Cleanup(func() { content.Close() })

	pipeline, err := ingestion.NewPipeline(store, content, mock.NewEmbedder(), ingestion.WithPoolSize(2))
	require.NoError(t, err)
	t.Cleanup(pipeline.Release)

	connector := sourcemock.NewConnector()
	resolver := source.ResolverFunc(func(ctx context.Context, tenantID string) (string, error) {
		return "xoxb-test", nil
	})
	factory := func(token string) (source.Connector, error) {
		return connector, nil
	}

	orch, err := NewOrchestrator(store, store, resolver, factory, pipeline, opts...)
	require.NoError(t, err)

	require.NoError(t, store.CreateTenant(context.Background(), &core.Tenant{
		ID:         "acme",
		Name:       "Acme",
		Credential: core.Credential{Format: core.CredentialPlain, Blob: []byte("xoxb-test")},
		Active:     true,
		CreatedAt:  time.Now().UTC(),
	}))

	return &fixture{store: store, connector: connector, orch: orch}
}

func seedChannel(f *fixture, channelID string, count int) {
	msgs := make([]source.RawMessage, count)
	for i := range msgs {
		msgs[i] = source.RawMessage{
			SourceID:    fmt.Sprintf("%s-msg-%d", channelID, i),
			ChannelID:   channelID,
			ChannelName: channelID,
			AuthorID:    "U01",
			AuthorName:  "dana",
			Text:        fmt.Sprintf("message number %d with enough text to keep", i),
			CreatedAt:   time.Now().Add(-time.Hour),
		}
	}
	f.connector.AddChannel(source.Channel{ID: channelID, Name: channelID}, msgs...)
}

func waitForJob(t *testing.T, f *fixture, jobID string) *core.SyncJob {
	t.Helper()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, f.orch.WaitIdle(ctx, 5*time.Millisecond))

	job, err := f.store.GetJob(context.Background(), "acme", jobID)
	require.NoError(t, err)
	return job
}

func TestNewOrchestrator(t *testing.T) {
	f := setupOrchestrator(t)

	t.Run("requires job store", func(t *testing.T) {
		_, err := NewOrchestrator(nil, f.store, source.ResolverFunc(nil), nil, nil)
		assert.ErrorIs(t, err, ErrJobStoreRequired)
	})

	t.Run("requires schedule store", func(t *testing.T) {
		_, err := NewOrchestrator(f.store, nil, source.ResolverFunc(nil), nil, nil)
		assert.ErrorIs(t, err, ErrScheduleStoreRequired)
	})
}

func TestTriggerNow(t *testing.T) {
	t.Run("requires start", func(t *testing.T) {
		f := setupOrchestrator(t)
		_, err := f.orch.TriggerNow(context.Background(), "acme", 7)
		assert.ErrorIs(t, err, ErrNotStarted)
	})

	t.Run("rejects bad lookback", func(t *testing.T) {
		f := setupOrchestrator(t)
		require.NoError(t, f.orch.Start(context.Background()))
		defer f.orch.Stop()

		_, err := f.orch.TriggerNow(context.Background(), "acme", 0)
		assert.ErrorIs(t, err, ErrInvalidLookback)
	})

	t.Run("runs to success", func(t *testing.T) {
		f := setupOrchestrator(t)
		seedChannel(f, "C01", 5)
		seedChannel(f, "C02", 3)

		require.NoError(t, f.orch.Start(context.Background()))
		defer f.orch.Stop()

		handle, err := f.orch.TriggerNow(context.Background(), "acme", 7)
		require.NoError(t, err)

		job := waitForJob(t, f, handle.JobID)
		assert.Equal(t, core.JobSuccess, job.Status)
		assert.Equal(t, core.TriggerManual, job.Trigger)
		assert.Equal(t, 8, job.MessagesCollected)
		assert.Equal(t, 2, job.ChannelsProcessed)
		assert.Equal(t, 2, job.ChannelsTotal)
		assert.Empty(t, job.ErrorDetail)
		assert.False(t, job.FinishedAt.IsZero())
	})

	t.Run("partial channel failures stay successful", func(t *testing.T) {
		f := setupOrchestrator(t)
		for i := 0; i < 10; i++ {
			seedChannel(f, fmt.Sprintf("C%02d", i), 2)
		}
		for i := 0; i < 3; i++ {
			f.connector.ChannelErrs[fmt.Sprintf("C%02d", i)] = source.ErrUnavailable
		}

		require.NoError(t, f.orch.Start(context.Background()))
		defer f.orch.Stop()

		handle, err := f.orch.TriggerNow(context.Background(), "acme", 7)
		require.NoError(t, err)

		job := waitForJob(t, f, handle.JobID)
		assert.Equal(t, core.JobSuccess, job.Status)
		assert.Equal(t, 7, job.ChannelsProcessed)
		assert.Equal(t, 10, job.ChannelsTotal)
		assert.Len(t, job.ErrorDetail, 3)
		assert.Equal(t, 14, job.MessagesCollected)
	})

	t.Run("revoked credential fails the job", func(t *testing.T) {
		f := setupOrchestrator(t, WithChannelWorkers(1))
		seedChannel(f, "C01", 2)
		seedChannel(f, "C02", 2)
		f.connector.ChannelErrs["C02"] = source.ErrCredentialRevoked

		require.NoError(t, f.orch.Start(context.Background()))
		defer f.orch.Stop()

		handle, err := f.orch.TriggerNow(context.Background(), "acme", 7)
		require.NoError(t, err)

		job := waitForJob(t, f, handle.JobID)
		assert.Equal(t, core.JobFailed, job.Status)
		assert.Contains(t, job.ErrorMessage, "credential revoked")
		// Progress before the fatal error is retained.
		assert.Equal(t, 2, job.MessagesCollected)
	})
}

func TestCancel(t *testing.T) {
	f := setupOrchestrator(t, WithChannelWorkers(1))
	seedChannel(f, "C01", 2)

	blocked := make(chan struct{})
	f.connector.FetchMessagesFunc = func(ctx context.Context, channelID string, opts source.FetchOptions) (*source.MessagePage, error) {
		close(blocked)
		<-ctx.Done()
		return nil, ctx.Err()
	}

	require.NoError(t, f.orch.Start(context.Background()))
	defer f.orch.Stop()

	handle, err := f.orch.TriggerNow(context.Background(), "acme", 7)
	require.NoError(t, err)

	select {
	case <-blocked:
	case <-time.After(5 * time.Second):
		t.Fatal("job never reached the connector")
	}
	require.NoError(t, f.orch.Cancel(handle.JobID))

	job := waitForJob(t, f, handle.JobID)
	assert.Equal(t, core.JobCancelled, job.Status)

	t.Run("unknown job", func(t *testing.T) {
		assert.ErrorIs(t, f.orch.Cancel("no-such-job"), ErrJobNotRunning)
	})
}

func TestSetSchedule(t *testing.T) {
	ctx := context.Background()

	t.Run("rejects invalid cron", func(t *testing.T) {
		f := setupOrchestrator(t)
		err := f.orch.SetSchedule(ctx, "acme", "not a cron", 7)
		assert.ErrorIs(t, err, ErrInvalidCron)
	})

	t.Run("upserts one schedule per tenant", func(t *testing.T) {
		f := setupOrchestrator(t)

		require.NoError(t, f.orch.SetSchedule(ctx, "acme", "0 3 * * *", 7))
		require.NoError(t, f.orch.SetSchedule(ctx, "acme", "30 4 * * *", 14))

		schedules, err := f.orch.ListActiveSchedules(ctx, "acme")
		require.NoError(t, err)
		require.Len(t, schedules, 1)
		assert.Equal(t, "30 4 * * *", schedules[0].CronExpr)
		assert.Equal(t, 14, schedules[0].LookbackDays)
	})

	t.Run("remove disarms the schedule", func(t *testing.T) {
		f := setupOrchestrator(t)

		require.NoError(t, f.orch.SetSchedule(ctx, "acme", "0 3 * * *", 7))
		require.NoError(t, f.orch.RemoveSchedule(ctx, "acme"))

		schedules, err := f.orch.ListActiveSchedules(ctx, "acme")
		require.NoError(t, err)
		assert.Empty(t, schedules)
	})
}

func TestRunScheduledSkipsActiveJob(t *testing.T) {
	ctx := context.Background()
	f := setupOrchestrator(t)
	seedChannel(f, "C01", 2)

	require.NoError(t, f.orch.Start(ctx))
	defer f.orch.Stop()

	require.NoError(t, f.orch.SetSchedule(ctx, "acme", "0 3 * * *", 7))
	sch, err := f.store.GetSchedule(ctx, "acme")
	require.NoError(t, err)

	// Pin an active job to the schedule, then fire the tick by hand.
	active := &core.SyncJob{
		ID:           "active-1",
		TenantID:     "acme",
		ScheduleID:   sch.ID,
		Trigger:      core.TriggerScheduled,
		LookbackDays: 7,
		Status:       core.JobPending,
	}
	require.NoError(t, f.store.CreateJob(ctx, active))

	f.orch.runScheduled(sch.ID, "acme", 7)

	jobs, err := f.store.ListJobs(ctx, "acme", storage.JobFilter{})
	require.NoError(t, err)
	assert.Len(t, jobs, 1, "tick with an active job must not create another")

	t.Run("tick runs once the job is terminal", func(t *testing.T) {
		active.Status = core.JobCancelled
		active.FinishedAt = time.Now().UTC()
		require.NoError(t, f.store.CompleteJob(ctx, "acme", active))

		f.orch.runScheduled(sch.ID, "acme", 7)

		waitCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		defer cancel()
		require.NoError(t, f.orch.WaitIdle(waitCtx, 5*time.Millisecond))

		jobs, err := f.store.ListJobs(ctx, "acme", storage.JobFilter{Trigger: core.TriggerScheduled})
		require.NoError(t, err)
		assert.Len(t, jobs, 2)
	})
}
