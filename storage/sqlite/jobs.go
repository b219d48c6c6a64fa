package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/hearsaylabs/hearsay/core"
	"github.com/hearsaylabs/hearsay/storage"
)

var _ storage.JobStore = (*Store)(nil)

const jobColumns = `
	job_id, tenant_id, schedule_id, trigger_type, lookback_days, status,
	messages_collected, channels_processed, channels_total,
	error_detail, error_message, started_at, finished_at`

// CreateJob inserts a new job row in pending state.
func (s *Store) CreateJob(ctx context.Context, job *core.SyncJob) error {
	if err := core.ValidateTenantID(job.TenantID); err != nil {
		return err
	}
	if job.Status == "" {
		job.Status = core.JobPending
	}
	if job.Status != core.JobPending {
		return fmt.Errorf("%w: jobs start pending, got %q", core.ErrIllegalTransition, job.Status)
	}

	var scheduleID sql.NullString
	if job.ScheduleID != "" {
		scheduleID = sql.NullString{String: job.ScheduleID, Valid: true}
	}

	_, err := s.execContext(ctx, `
		INSERT INTO sync_jobs (`+jobColumns+`, created_at)
		VALUES (?, ?, ?, ?, ?, ?, 0, 0, 0, '[]', '', NULL, NULL, ?)`,
		job.ID, job.TenantID, scheduleID, string(job.Trigger), job.LookbackDays,
		string(job.Status), fmtTime(time.Now()),
	)
	return err
}

// StartJob transitions pending -> running. The WHERE guard makes the
// state machine race-safe: a job already moved on is left untouched.
func (s *Store) StartJob(ctx context.Context, tenantID, jobID string, startedAt time.Time) error {
	if err := core.ValidateTenantID(tenantID); err != nil {
		return err
	}

	res, err := s.execContext(ctx, `
		UPDATE sync_jobs SET status = ?, started_at = ?
		WHERE tenant_id = ? AND job_id = ? AND status = ?`,
		string(core.JobRunning), fmtTime(startedAt),
		tenantID, jobID, string(core.JobPending),
	)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return s.transitionError(ctx, tenantID, jobID, core.JobRunning)
	}
	return nil
}

// CompleteJob writes the terminal status, counters and error detail in
// a single guarded update. Terminal rows are never updated again.
func (s *Store) CompleteJob(ctx context.Context, tenantID string, job *core.SyncJob) error {
	if err := core.ValidateTenantID(tenantID); err != nil {
		return err
	}
	if !job.Status.Terminal() {
		return fmt.Errorf("%w: completion requires a terminal status, got %q", core.ErrIllegalTransition, job.Status)
	}

	detail, err := json.Marshal(job.ErrorDetail)
	if err != nil {
		return fmt.Errorf("%w: %w", storage.ErrSerializationFailed, err)
	}
	if job.FinishedAt.IsZero() {
		job.FinishedAt = time.Now().UTC()
	}

	res, err := s.execContext(ctx, `
		UPDATE sync_jobs SET
			status = ?, messages_collected = ?, channels_processed = ?, channels_total = ?,
			error_detail = ?, error_message = ?, finished_at = ?
		WHERE tenant_id = ? AND job_id = ? AND status IN (?, ?)`,
		string(job.Status), job.MessagesCollected, job.ChannelsProcessed, job.ChannelsTotal,
		string(detail), job.ErrorMessage, fmtTime(job.FinishedAt),
		tenantID, job.ID, string(core.JobPending), string(core.JobRunning),
	)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return s.transitionError(ctx, tenantID, job.ID, job.Status)
	}
	return nil
}

// transitionError distinguishes a missing job from an illegal
// transition after a guarded update matched no rows. The current status
// is read back and checked against the state machine so the error names
// the transition that was refused.
func (s *Store) transitionError(ctx context.Context, tenantID, jobID string, next core.JobStatus) error {
	var status string
	err := s.db.QueryRowContext(ctx,
		`SELECT status FROM sync_jobs WHERE tenant_id = ? AND job_id = ?`,
		tenantID, jobID,
	).Scan(&status)
	if errors.Is(err, sql.ErrNoRows) {
		return storage.ErrNotFound
	}
	if err != nil {
		return err
	}
	if !core.JobStatus(status).CanTransition(next) {
		return fmt.Errorf("%w: job %s is %s, cannot become %s", core.ErrIllegalTransition, jobID, status, next)
	}
	// The guard lost a race with a legal transition; the caller's view
	// of the row is stale either way.
	return fmt.Errorf("%w: job %s moved to %s concurrently", core.ErrIllegalTransition, jobID, status)
}

// GetJob retrieves a job by id.
func (s *Store) GetJob(ctx context.Context, tenantID, jobID string) (*core.SyncJob, error) {
	if err := core.ValidateTenantID(tenantID); err != nil {
		return nil, err
	}

	row := s.db.QueryRowContext(ctx, `
		SELECT `+jobColumns+`
		FROM sync_jobs WHERE tenant_id = ? AND job_id = ?`,
		tenantID, jobID,
	)
	job, err := scanJob(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, storage.ErrNotFound
	}
	return job, err
}

// ListJobs returns jobs matching the filter, newest first.
func (s *Store) ListJobs(ctx context.Context, tenantID string, filter storage.JobFilter) ([]*core.SyncJob, error) {
	if err := core.ValidateTenantID(tenantID); err != nil {
		return nil, err
	}

	query := `SELECT ` + jobColumns + ` FROM sync_jobs WHERE tenant_id = ?`
	args := []any{tenantID}

	if filter.Status != "" {
		query += ` AND status = ?`
		args = append(args, string(filter.Status))
	}
	if filter.Trigger != "" {
		query += ` AND trigger_type = ?`
		args = append(args, string(filter.Trigger))
	}
	if !filter.Since.IsZero() {
		query += ` AND created_at > ?`
		args = append(args, fmtTime(filter.Since))
	}

	limit := filter.Limit
	if limit <= 0 {
		limit = 50
	}
	query += ` ORDER BY created_at DESC LIMIT ?`
	args = append(args, limit)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var results []*core.SyncJob
	for rows.Next() {
		job, err := scanJob(rows)
		if err != nil {
			return nil, err
		}
		results = append(results, job)
	}
	return results, rows.Err()
}

// ActiveJobForSchedule returns the pending or running job for a
// schedule, or nil when none is active.
func (s *Store) ActiveJobForSchedule(ctx context.Context, tenantID, scheduleID string) (*core.SyncJob, error) {
	if err := core.ValidateTenantID(tenantID); err != nil {
		return nil, err
	}

	row := s.db.QueryRowContext(ctx, `
		SELECT `+jobColumns+`
		FROM sync_jobs
		WHERE tenant_id = ? AND schedule_id = ? AND status IN (?, ?)
		LIMIT 1`,
		tenantID, scheduleID, string(core.JobPending), string(core.JobRunning),
	)
	job, err := scanJob(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	return job, err
}

func scanJob(row scanner) (*core.SyncJob, error) {
	var (
		job        core.SyncJob
		scheduleID sql.NullString
		trigger    string
		status     string
		detail     string
		startedAt  sql.NullString
		finishedAt sql.NullString
	)
	err := row.Scan(
		&job.ID, &job.TenantID, &scheduleID, &trigger, &job.LookbackDays, &status,
		&job.MessagesCollected, &job.ChannelsProcessed, &job.ChannelsTotal,
		&detail, &job.ErrorMessage, &startedAt, &finishedAt,
	)
	if err != nil {
		return nil, err
	}

	job.ScheduleID = scheduleID.String
	job.Trigger = core.TriggerType(trigger)
	job.Status = core.JobStatus(status)
	if detail != "" {
		if err := json.Unmarshal([]byte(detail), &job.ErrorDetail); err != nil {
			return nil, fmt.Errorf("%w: %w", storage.ErrSerializationFailed, err)
		}
	}
	if job.StartedAt, err = parseNullTime(startedAt); err != nil {
		return nil, err
	}
	if job.FinishedAt, err = parseNullTime(finishedAt); err != nil {
		return nil, err
	}
	return &job, nil
}
