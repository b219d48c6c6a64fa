package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/hearsaylabs/hearsay/core"
	"github.com/hearsaylabs/hearsay/storage"
)

var _ storage.ScheduleStore = (*Store)(nil)

const scheduleColumns = `
	schedule_id, tenant_id, cron_expr, lookback_days, active, created_at, updated_at`

// UpsertSchedule creates or replaces the tenant's schedule. The UNIQUE
// constraint on tenant_id keeps it at one schedule per tenant.
func (s *Store) UpsertSchedule(ctx context.Context, tenantID string, sch *core.Schedule) error {
	if err := core.ValidateTenantID(tenantID); err != nil {
		return err
	}
	sch.TenantID = tenantID
	if sch.ID == "" {
		sch.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if sch.CreatedAt.IsZero() {
		sch.CreatedAt = now
	}
	sch.UpdatedAt = now

	_, err := s.execContext(ctx, `
		INSERT INTO sync_schedules (`+scheduleColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(tenant_id) DO UPDATE SET
			cron_expr = excluded.cron_expr,
			lookback_days = excluded.lookback_days,
			active = excluded.active,
			updated_at = excluded.updated_at`,
		sch.ID, tenantID, sch.CronExpr, sch.LookbackDays,
		boolToInt(sch.Active), fmtTime(sch.CreatedAt), fmtTime(sch.UpdatedAt),
	)
	return err
}

// GetSchedule returns the tenant's schedule.
func (s *Store) GetSchedule(ctx context.Context, tenantID string) (*core.Schedule, error) {
	if err := core.ValidateTenantID(tenantID); err != nil {
		return nil, err
	}

	row := s.db.QueryRowContext(ctx, `
		SELECT `+scheduleColumns+`
		FROM sync_schedules WHERE tenant_id = ?`, tenantID,
	)
	sch, err := scanSchedule(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, storage.ErrNotFound
	}
	return sch, err
}

// ListActiveSchedules returns every active schedule across tenants,
// joined against active tenants only. The orchestrator calls this once
// on start to re-arm triggers.
func (s *Store) ListActiveSchedules(ctx context.Context) ([]*core.Schedule, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT s.schedule_id, s.tenant_id, s.cron_expr, s.lookback_days, s.active, s.created_at, s.updated_at
		FROM sync_schedules s
		JOIN tenants t ON t.tenant_id = s.tenant_id
		WHERE s.active = 1 AND t.active = 1
		ORDER BY s.created_at`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var results []*core.Schedule
	for rows.Next() {
		sch, err := scanSchedule(rows)
		if err != nil {
			return nil, err
		}
		results = append(results, sch)
	}
	return results, rows.Err()
}

// DeactivateSchedule disables the tenant's schedule without deleting
// job history.
func (s *Store) DeactivateSchedule(ctx context.Context, tenantID string) error {
	if err := core.ValidateTenantID(tenantID); err != nil {
		return err
	}

	res, err := s.execContext(ctx,
		`UPDATE sync_schedules SET active = 0, updated_at = ? WHERE tenant_id = ?`,
		fmtTime(time.Now()), tenantID,
	)
	if err != nil {
		return err
	}
	return requireRow(res)
}

func scanSchedule(row scanner) (*core.Schedule, error) {
	var (
		sch       core.Schedule
		active    int
		createdAt string
		updatedAt string
	)
	err := row.Scan(&sch.ID, &sch.TenantID, &sch.CronExpr, &sch.LookbackDays, &active, &createdAt, &updatedAt)
	if err != nil {
		return nil, err
	}
	sch.Active = active != 0
	if sch.CreatedAt, err = parseTime(createdAt); err != nil {
		return nil, err
	}
	if sch.UpdatedAt, err = parseTime(updatedAt); err != nil {
		return nil, err
	}
	return &sch, nil
}
