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


package backfill

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/robfig/cron/v3"

	"github.com/hearsaylabs/hearsay/core"
	"github.com/hearsaylabs/hearsay/ingestion"
	"github.com/hearsaylabs/hearsay/source"
	"github.com/hearsaylabs/hearsay/storage"
)

// cronParser accepts standard 5-field expressions.
var cronParser = cron.NewParser(
	cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow)

// ValidateCron checks a 5-field cron expression without arming anything.
func ValidateCron(expr string) error {
	if _, err := cronParser.Parse(expr); err != nil {
		return fmt.Errorf("%w: %q: %v", ErrInvalidCron, expr, err)
	}
	return nil
}

// Orchestrator owns sync job execution for all tenants. Construct one,
// Start it, Stop it on shutdown.
type Orchestrator struct {
	jobs      storage.JobStore
	schedules storage.ScheduleStore
	resolver  source.CredentialResolver
	connect   source.ConnectorFactory
	pipeline  *ingestion.Pipeline

	cron           *cron.Cron
	channelWorkers int
	logger         *slog.Logger

	mu      sync.Mutex
	started bool
	baseCtx context.Context
	cancel  context.CancelFunc
	wg      sync.WaitGroup
	entries map[string]cron.EntryID       // schedule id -> cron entry
	running map[string]context.CancelFunc // job id -> cancel
}

// Option configures an Orchestrator.
type Option func(*Orchestrator) error

// WithChannelWorkers bounds per-job channel fan-out. Default is 4.
func WithChannelWorkers(n int) Option {
	return func(o *Orchestrator) error {
		if n < 1 {
			n = 1
		}
		o.channelWorkers = n
		return nil
	}
}

// WithLogger sets a custom logger.
// Default is slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(o *Orchestrator) error {
		if logger == nil {
			logger = slog.Default()
		}
		o.logger = logger
		return nil
	}
}

// NewOrchestrator creates a sync orchestrator.
func NewOrchestrator(
	jobs storage.JobStore,
	schedules storage.ScheduleStore,
	resolver source.CredentialResolver,
	connect source.ConnectorFactory,
	pipeline *ingestion.Pipeline,
	opts ...Option,
) (*Orchestrator, error) {
	if jobs == nil {
		return nil, ErrJobStoreRequired
	}
	if schedules == nil {
		return nil, ErrScheduleStoreRequired
	}
	if resolver == nil {
		return nil, ErrResolverRequired
	}
	if connect == nil {
		return nil, ErrConnectorFactoryRequired
	}
	if pipeline == nil {
		return nil, ErrPipelineRequired
	}

	o := &Orchestrator{
		jobs:           jobs,
		schedules:      schedules,
		resolver:       resolver,
		connect:        connect,
		pipeline:       pipeline,
		cron:           cron.New(cron.WithParser(cronParser)),
		channelWorkers: 4,
		logger:         slog.Default(),
		entries:        map[string]cron.EntryID{},
		running:        map[string]context.CancelFunc{},
	}

	for _, opt := range opts {
		if err := opt(o); err != nil {
			return nil, err
		}
	}
	return o, nil
}

// Start loads active schedules, arms their cron triggers and begins
// executing. The context bounds every job the orchestrator ever runs.
func (o *Orchestrator) Start(ctx context.Context) error {
	o.mu.Lock()
	if o.started {
		o.mu.Unlock()
		return ErrAlreadyStarted
	}
	o.started = true
	o.baseCtx, o.cancel = context.WithCancel(ctx)
	o.mu.Unlock()

	schedules, err := o.schedules.ListActiveSchedules(ctx)
	if err != nil {
		return fmt.Errorf("loading schedules: %w", err)
	}

	for _, sch := range schedules {
		if err := o.armSchedule(sch); err != nil {
			o.logger.Error("failed to arm schedule",
				"tenant", sch.TenantID, "cron", sch.CronExpr, "err", err)
		}
	}

	o.cron.Start()
	o.logger.Info("orchestrator started", "schedules", len(schedules))
	return nil
}

// Stop halts cron triggering, cancels running jobs and waits for them to
// finish writing their terminal state.
func (o *Orchestrator) Stop() {
	o.mu.Lock()
	if !o.started {
		o.mu.Unlock()
		return
	}
	o.started = false
	cancel := o.cancel
	o.mu.Unlock()

	<-o.cron.Stop().Done()
	cancel()
	o.wg.Wait()
	o.logger.Info("orchestrator stopped")
}

// JobHandle identifies an asynchronously running job.
type JobHandle struct {
	JobID    string
	TenantID string
}

// TriggerNow creates a manual job and runs it asynchronously. Manual
// triggers always create a new job row, even when a scheduled job is
// already active for the tenant.
func (o *Orchestrator) TriggerNow(ctx context.Context, tenantID string, lookbackDays int) (*JobHandle, error) {
	if err := core.ValidateTenantID(tenantID); err != nil {
		return nil, err
	}
	if lookbackDays <= 0 {
		return nil, ErrInvalidLookback
	}

	o.mu.Lock()
	if !o.started {
		o.mu.Unlock()
		return nil, ErrNotStarted
	}
	o.mu.Unlock()

	job := &core.SyncJob{
		ID:           uuid.NewString(),
		TenantID:     tenantID,
		Trigger:      core.TriggerManual,
		LookbackDays: lookbackDays,
		Status:       core.JobPending,
	}
	if err := o.jobs.CreateJob(ctx, job); err != nil {
		return nil, err
	}

	o.launch(job)
	return &JobHandle{JobID: job.ID, TenantID: tenantID}, nil
}

// Cancel requests cooperative cancellation of a running job. The job
// transitions to cancelled at the next channel or record boundary,
// keeping progress already committed.
func (o *Orchestrator) Cancel(jobID string) error {
	o.mu.Lock()
	cancel, ok := o.running[jobID]
	o.mu.Unlock()
	if !ok {
		return ErrJobNotRunning
	}
	cancel()
	return nil
}

// ListJobs returns the tenant's job history, newest first.
func (o *Orchestrator) ListJobs(ctx context.Context, tenantID string, filter storage.JobFilter) ([]*core.SyncJob, error) {
	if err := core.ValidateTenantID(tenantID); err != nil {
		return nil, err
	}
	return o.jobs.ListJobs(ctx, tenantID, filter)
}

// SetSchedule creates or replaces the tenant's recurring backfill and
// re-arms the live cron trigger if the orchestrator is running.
func (o *Orchestrator) SetSchedule(ctx context.Context, tenantID, cronExpr string, lookbackDays int) error {
	if err := core.ValidateTenantID(tenantID); err != nil {
		return err
	}
	if lookbackDays <= 0 {
		return ErrInvalidLookback
	}
	if _, err := cronParser.Parse(cronExpr); err != nil {
		return fmt.Errorf("%w: %q: %v", ErrInvalidCron, cronExpr, err)
	}

	sch := &core.Schedule{
		TenantID:     tenantID,
		CronExpr:     cronExpr,
		LookbackDays: lookbackDays,
		Active:       true,
	}
	if err := o.schedules.UpsertSchedule(ctx, tenantID, sch); err != nil {
		return err
	}

	o.mu.Lock()
	started := o.started
	o.mu.Unlock()
	if started {
		if err := o.armSchedule(sch); err != nil {
			return err
		}
	}
	return nil
}

// RemoveSchedule deactivates the tenant's schedule and disarms its trigger.
func (o *Orchestrator) RemoveSchedule(ctx context.Context, tenantID string) error {
	if err := core.ValidateTenantID(tenantID); err != nil {
		return err
	}

	sch, err := o.schedules.GetSchedule(ctx, tenantID)
	if err != nil {
		return err
	}
	if err := o.schedules.DeactivateSchedule(ctx, tenantID); err != nil {
		return err
	}

	o.mu.Lock()
	if entryID, ok := o.entries[sch.ID]; ok {
		o.cron.Remove(entryID)
		delete(o.entries, sch.ID)
	}
	o.mu.Unlock()
	return nil
}

// ListActiveSchedules returns active schedules, optionally scoped to one
// tenant. An empty tenant id returns all of them.
func (o *Orchestrator) ListActiveSchedules(ctx context.Context, tenantID string) ([]*core.Schedule, error) {
	all, err := o.schedules.ListActiveSchedules(ctx)
	if err != nil {
		return nil, err
	}
	if tenantID == "" {
		return all, nil
	}
	var out []*core.Schedule
	for _, sch := range all {
		if sch.TenantID == tenantID {
			out = append(out, sch)
		}
	}
	return out, nil
}

// armSchedule installs or replaces the cron entry for a schedule.
func (o *Orchestrator) armSchedule(sch *core.Schedule) error {
	o.mu.Lock()
	defer o.mu.Unlock()

	if entryID, ok := o.entries[sch.ID]; ok {
		o.cron.Remove(entryID)
	}

	scheduleID := sch.ID
	tenantID := sch.TenantID
	lookback := sch.LookbackDays
	entryID, err := o.cron.AddFunc(sch.CronExpr, func() {
		o.runScheduled(scheduleID, tenantID, lookback)
	})
	if err != nil {
		return fmt.Errorf("%w: %q: %v", ErrInvalidCron, sch.CronExpr, err)
	}
	o.entries[sch.ID] = entryID
	return nil
}

// runScheduled fires on a cron tick. A schedule with a job still active
// skips this tick; the next tick retries naturally.
func (o *Orchestrator) runScheduled(scheduleID, tenantID string, lookbackDays int) {
	ctx := o.baseCtx

	active, err := o.jobs.ActiveJobForSchedule(ctx, tenantID, scheduleID)
	if err != nil {
		o.logger.Error("active job lookup failed", "tenant", tenantID, "err", err)
		return
	}
	if active != nil {
		o.logger.Info("schedule tick skipped, job still active",
			"tenant", tenantID, "job_id", active.ID)
		return
	}

	job := &core.SyncJob{
		ID:           uuid.NewString(),
		TenantID:     tenantID,
		ScheduleID:   scheduleID,
		Trigger:      core.TriggerScheduled,
		LookbackDays: lookbackDays,
		Status:       core.JobPending,
	}
	if err := o.jobs.CreateJob(ctx, job); err != nil {
		o.logger.Error("scheduled job creation failed", "tenant", tenantID, "err", err)
		return
	}

	o.launch(job)
}

// launch runs a job on its own goroutine with a per-job cancel handle.
func (o *Orchestrator) launch(job *core.SyncJob) {
	jobCtx, jobCancel := context.WithCancel(o.baseCtx)

	o.mu.Lock()
	o.running[job.ID] = jobCancel
	o.mu.Unlock()

	o.wg.Add(1)
	go func() {
		defer o.wg.Done()
		defer jobCancel()
		defer func() {
			o.mu.Lock()
			delete(o.running, job.ID)
			o.mu.Unlock()
		}()

		o.runJob(jobCtx, job)
	}()
}

// WaitIdle blocks until no jobs are running. Intended for tests and
// drain-on-shutdown paths that must not stop the cron machinery.
func (o *Orchestrator) WaitIdle(ctx context.Context, poll time.Duration) error {
	if poll <= 0 {
		poll = 10 * time.Millisecond
	}
	for {
		o.mu.Lock()
		n := len(o.running)
		o.mu.Unlock()
		if n == 0 {
			return nil
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(poll):
		}
	}
}
