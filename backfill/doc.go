// Package backfill orchestrates sync jobs: scheduled and manual pulls of
// source history into the ingestion pipeline.
//
// The Orchestrator is an explicitly constructed, explicitly owned instance
// with a Start/Stop lifecycle; nothing here is process-global, so tests run
// multiple isolated instances. Schedules are cron expressions persisted in
// the schedule store and armed on Start; at most one scheduled job runs per
// schedule at a time, while manual triggers always create a new job row.
//
// Within a job, channels fan out over a bounded worker group. Per-channel
// failures land in the job's error detail without failing the run; a revoked
// credential aborts the remaining channels and marks the job failed, keeping
// partial progress.
package backfill
