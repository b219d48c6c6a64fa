package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	"github.com/hearsaylabs/hearsay/core"
	"github.com/hearsaylabs/hearsay/storage"
)

var _ storage.TenantRegistry = (*Store)(nil)

// CreateTenant registers a new tenant.
func (s *Store) CreateTenant(ctx context.Context, tenant *core.Tenant) error {
	if err := core.ValidateTenantID(tenant.ID); err != nil {
		return err
	}
	if tenant.CreatedAt.IsZero() {
		tenant.CreatedAt = time.Now().UTC()
	}
	if tenant.Credential.Format == "" {
		tenant.Credential.Format = core.CredentialPlain
	}

	_, err := s.execContext(ctx, `
		INSERT INTO tenants (tenant_id, name, credential_format, credential_blob, active, created_at)
		VALUES (?, ?, ?, ?, ?, ?)`,
		tenant.ID, tenant.Name, string(tenant.Credential.Format), tenant.Credential.Blob,
		boolToInt(tenant.Active), fmtTime(tenant.CreatedAt),
	)
	if err != nil && strings.Contains(err.Error(), "UNIQUE constraint") {
		return storage.ErrDuplicateKey
	}
	return err
}

// GetTenant retrieves a tenant by id.
func (s *Store) GetTenant(ctx context.Context, tenantID string) (*core.Tenant, error) {
	if err := core.ValidateTenantID(tenantID); err != nil {
		return nil, err
	}

	var (
		t         core.Tenant
		format    string
		active    int
		createdAt string
	)
	err := s.db.QueryRowContext(ctx, `
		SELECT tenant_id, name, credential_format, credential_blob, active, created_at
		FROM tenants WHERE tenant_id = ?`, tenantID,
	).Scan(&t.ID, &t.Name, &format, &t.Credential.Blob, &active, &createdAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, storage.ErrNotFound
	}
	if err != nil {
		return nil, err
	}

	t.Credential.Format = core.CredentialFormat(format)
	t.Active = active != 0
	if t.CreatedAt, err = parseTime(createdAt); err != nil {
		return nil, err
	}
	return &t, nil
}

// ListTenants returns all tenants, optionally only active ones.
func (s *Store) ListTenants(ctx context.Context, activeOnly bool) ([]*core.Tenant, error) {
	query := `
		SELECT tenant_id, name, credential_format, credential_blob, active, created_at
		FROM tenants`
	if activeOnly {
		query += ` WHERE active = 1`
	}
	query += ` ORDER BY created_at`

	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var results []*core.Tenant
	for rows.Next() {
		var (
			t         core.Tenant
			format    string
			active    int
			createdAt string
		)
		if err := rows.Scan(&t.ID, &t.Name, &format, &t.Credential.Blob, &active, &createdAt); err != nil {
			return nil, err
		}
		t.Credential.Format = core.CredentialFormat(format)
		t.Active = active != 0
		if t.CreatedAt, err = parseTime(createdAt); err != nil {
			return nil, err
		}
		results = append(results, &t)
	}
	return results, rows.Err()
}

// UpdateCredential replaces a tenant's installation credential.
func (s *Store) UpdateCredential(ctx context.Context, tenantID string, cred core.Credential) error {
	if err := core.ValidateTenantID(tenantID); err != nil {
		return err
	}

	res, err := s.execContext(ctx, `
		UPDATE tenants SET credential_format = ?, credential_blob = ?
		WHERE tenant_id = ?`,
		string(cred.Format), cred.Blob, tenantID,
	)
	if err != nil {
		return err
	}
	return requireRow(res)
}

// DisableTenant soft-disables a tenant and its schedule. Job history
// and data are retained for audit.
func (s *Store) DisableTenant(ctx context.Context, tenantID string) error {
	if err := core.ValidateTenantID(tenantID); err != nil {
		return err
	}

	res, err := s.execContext(ctx, `UPDATE tenants SET active = 0 WHERE tenant_id = ?`, tenantID)
	if err != nil {
		return err
	}
	if err := requireRow(res); err != nil {
		return err
	}

	// Cascading disable: the schedule stops firing with the tenant.
	_, err = s.execContext(ctx, `UPDATE sync_schedules SET active = 0 WHERE tenant_id = ?`, tenantID)
	return err
}

// SaveSettings stores per-tenant retrieval settings.
func (s *Store) SaveSettings(ctx context.Context, tenantID string, settings core.TenantSettings) error {
	if err := core.ValidateTenantID(tenantID); err != nil {
		return err
	}
	if err := core.ValidateTenantSettings(settings); err != nil {
		return err
	}

	_, err := s.execContext(ctx, `
		INSERT INTO tenant_settings (tenant_id, min_relevance, max_results, recency_half_life_days, updated_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(tenant_id) DO UPDATE SET
			min_relevance = excluded.min_relevance,
			max_results = excluded.max_results,
			recency_half_life_days = excluded.recency_half_life_days,
			updated_at = excluded.updated_at`,
		tenantID, settings.MinRelevance, settings.MaxResults,
		settings.RecencyHalfLifeDays, fmtTime(time.Now()),
	)
	return err
}

// GetSettings returns the tenant's settings, falling back to the
// documented defaults when none were saved.
func (s *Store) GetSettings(ctx context.Context, tenantID string) (core.TenantSettings, error) {
	if err := core.ValidateTenantID(tenantID); err != nil {
		return core.TenantSettings{}, err
	}

	var settings core.TenantSettings
	err := s.db.QueryRowContext(ctx, `
		SELECT min_relevance, max_results, recency_half_life_days
		FROM tenant_settings WHERE tenant_id = ?`, tenantID,
	).Scan(&settings.MinRelevance, &settings.MaxResults, &settings.RecencyHalfLifeDays)
	if errors.Is(err, sql.ErrNoRows) {
		return core.DefaultTenantSettings(), nil
	}
	if err != nil {
		return core.TenantSettings{}, err
	}
	return settings, nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

// requireRow converts a zero-rows-affected update into ErrNotFound.
func requireRow(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return storage.ErrNotFound
	}
	return nil
}
