package backfill

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/hearsaylabs/hearsay/core"
	"github.com/hearsaylabs/hearsay/source"
)

// repairLimit bounds the post-run repair pass over content-pending rows.
const repairLimit = 500

// runJob executes one sync job to its terminal state. Every exit path
// writes a terminal status through CompleteJob.
func (o *Orchestrator) runJob(ctx context.Context, job *core.SyncJob) {
	logger := o.logger.With("tenant", job.TenantID, "job_id", job.ID, "trigger", job.Trigger)

	if err := o.jobs.StartJob(ctx, job.TenantID, job.ID, time.Now().UTC()); err != nil {
		if ctx.Err() != nil {
			// Cancelled before the run began; pending -> cancelled is legal.
			job.Status = core.JobCancelled
			job.FinishedAt = time.Now().UTC()
			completeCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			if cerr := o.jobs.CompleteJob(completeCtx, job.TenantID, job); cerr != nil {
				logger.Error("terminal status write failed", "status", job.Status, "err", cerr)
			}
			return
		}
		logger.Error("job start failed", "err", err)
		return
	}
	job.Status = core.JobRunning
	logger.Info("job started", "lookback_days", job.LookbackDays)

	err := o.collect(ctx, job, logger)
	switch {
	case err == nil:
		job.Status = core.JobSuccess
	case errors.Is(err, context.Canceled):
		job.Status = core.JobCancelled
	default:
		job.Status = core.JobFailed
		job.ErrorMessage = err.Error()
	}
	job.FinishedAt = time.Now().UTC()

	// Terminal write uses a fresh context: the job's own context may
	// already be cancelled.
	completeCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if cerr := o.jobs.CompleteJob(completeCtx, job.TenantID, job); cerr != nil {
		logger.Error("terminal status write failed", "status", job.Status, "err", cerr)
		return
	}

	logger.Info("job finished",
		"status", job.Status,
		"messages", job.MessagesCollected,
		"channels_processed", job.ChannelsProcessed,
		"channels_total", job.ChannelsTotal,
		"channel_errors", len(job.ErrorDetail))
}

// collect pulls source history and feeds it through the ingestion
// pipeline. Per-channel errors are recorded on the job without failing
// the run; a revoked credential or cancellation aborts it.
func (o *Orchestrator) collect(ctx context.Context, job *core.SyncJob, logger *slog.Logger) error {
	token, err := o.resolver.Resolve(ctx, job.TenantID)
	if err != nil {
		return fmt.Errorf("resolving credentials: %w", err)
	}

	connector, err := o.connect(token)
	if err != nil {
		return fmt.Errorf("building connector: %w", err)
	}

	channels, err := connector.ListChannels(ctx)
	if err != nil {
		return fmt.Errorf("listing channels: %w", err)
	}
	job.ChannelsTotal = len(channels)

	oldest := time.Now().UTC().AddDate(0, 0, -job.LookbackDays)

	var mu sync.Mutex
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(o.channelWorkers)

	for _, ch := range channels {
		ch := ch
		g.Go(func() error {
			if gctx.Err() != nil {
				return gctx.Err()
			}

			collected, err := o.collectChannel(gctx, connector, job.TenantID, ch.ID, oldest)

			mu.Lock()
			defer mu.Unlock()
			job.MessagesCollected += collected
			if err != nil {
				// Revoked credentials poison every remaining channel.
				if errors.Is(err, source.ErrCredentialRevoked) || gctx.Err() != nil {
					return err
				}
				job.ErrorDetail = append(job.ErrorDetail,
					fmt.Sprintf("channel %s: %v", ch.ID, err))
				logger.Warn("channel failed", "channel", ch.ID, "err", err)
				return nil
			}
			job.ChannelsProcessed++
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return err
	}

	// Rows left content-pending by transient failures get one relink
	// attempt while the data is still warm.
	if repaired, err := o.pipeline.RepairPending(ctx, job.TenantID, repairLimit); err == nil && repaired > 0 {
		logger.Warn("relinked pending rows", "repaired", repaired)
	}
	return nil
}

// collectChannel pages through one channel's history and ingests each
// page. Returns the number of records ingested even on error.
func (o *Orchestrator) collectChannel(ctx context.Context, connector source.Connector, tenantID, channelID string, oldest time.Time) (int, error) {
	collected := 0
	opts := source.FetchOptions{Oldest: oldest}

	for {
		if ctx.Err() != nil {
			return collected, ctx.Err()
		}

		page, err := connector.FetchMessages(ctx, channelID, opts)
		if err != nil {
			return collected, err
		}

		result, err := o.pipeline.IngestBatch(ctx, tenantID, page.Messages)
		if err != nil {
			return collected, err
		}
		collected += result.Ingested
		for _, fail := range result.Failed {
			o.logger.Warn("record failed",
				"tenant", tenantID, "channel", channelID,
				"source_id", fail.SourceID, "err", fail.Err)
		}

		if !page.HasMore {
			return collected, nil
		}
		opts.Cursor = page.NextCursor
	}
}
