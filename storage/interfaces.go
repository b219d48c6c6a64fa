package storage

import (
	"context"
	"time"

	"github.com/hearsaylabs/hearsay/core"
)

// TenantRegistry holds workspace identities, credentials and settings.
// It is the leaf dependency for every other component.
type TenantRegistry interface {
	// CreateTenant registers a new tenant. Returns ErrDuplicateKey if
	// the id is already taken.
	CreateTenant(ctx context.Context, tenant *core.Tenant) error

	// GetTenant retrieves a tenant by id. Returns ErrNotFound if the
	// tenant does not exist.
	GetTenant(ctx context.Context, tenantID string) (*core.Tenant, error)

	// ListTenants returns all tenants, optionally only active ones.
	ListTenants(ctx context.Context, activeOnly bool) ([]*core.Tenant, error)

	// UpdateCredential replaces a tenant's installation credential.
	UpdateCredential(ctx context.Context, tenantID string, cred core.Credential) error

	// DisableTenant soft-disables a tenant. Data is retained for audit
	// until DeleteTenantMessages / DropCollection remove it explicitly.
	DisableTenant(ctx context.Context, tenantID string) error

	// SaveSettings stores per-tenant retrieval settings.
	SaveSettings(ctx context.Context, tenantID string, settings core.TenantSettings) error

	// GetSettings returns the tenant's settings, or the documented
	// defaults when none were saved.
	GetSettings(ctx context.Context, tenantID string) (core.TenantSettings, error)
}

// MetadataStore provides relational operations for message metadata.
// Raw message text is never stored here.
type MetadataStore interface {
	// UpsertMessage inserts or updates a metadata row keyed by
	// (tenant, source id). Re-ingestion updates in place, never
	// duplicates. The row is written with ContentState as given
	// (normally pending until the content write lands).
	UpsertMessage(ctx context.Context, tenantID string, rec *core.MessageRecord) error

	// LinkContent back-fills the content reference after a successful
	// content write and flips ContentState to linked.
	LinkContent(ctx context.Context, tenantID, sourceID string, ref core.ContentRef) error

	// MarkContentPending flags a row whose content write failed. The
	// row stays invisible to retrieval until a repair pass relinks it.
	MarkContentPending(ctx context.Context, tenantID, sourceID string) error

	// GetMessage retrieves a single row. Returns ErrNotFound if absent.
	GetMessage(ctx context.Context, tenantID, sourceID string) (*core.MessageRecord, error)

	// GetMessages retrieves rows for the given source ids. Missing ids
	// are skipped without error.
	GetMessages(ctx context.Context, tenantID string, sourceIDs []string) ([]*core.MessageRecord, error)

	// ListPending returns up to limit rows stuck in content-pending
	// state, oldest first, for the repair pass.
	ListPending(ctx context.Context, tenantID string, limit int) ([]*core.MessageRecord, error)

	// SoftDeleteMessage sets the soft-delete marker on a row.
	SoftDeleteMessage(ctx context.Context, tenantID, sourceID string) error

	// DeleteTenantMessages hard-deletes every row of a tenant. Used by
	// explicit tenant-data-deletion only.
	DeleteTenantMessages(ctx context.Context, tenantID string) (int, error)

	// ChannelActivity aggregates message counts, active authors and
	// last activity per channel since the given time.
	ChannelActivity(ctx context.Context, tenantID string, since time.Time) ([]ChannelActivity, error)

	// TopAuthors returns the most active authors by message count since
	// the given time.
	TopAuthors(ctx context.Context, tenantID string, since time.Time, limit int) ([]AuthorActivity, error)
}

// ChannelActivity is a per-channel aggregation row.
type ChannelActivity struct {
	ChannelID     string
	ChannelName   string
	MessageCount  int
	ActiveAuthors int
	LastActivity  time.Time
}

// AuthorActivity is a per-author aggregation row.
type AuthorActivity struct {
	AuthorID       string
	AuthorName     string
	MessageCount   int
	ChannelsActive int
	LastMessageAt  time.Time
}

// ContentFilter restricts a similarity search to a metadata subset.
// Filtering happens before scoring, never after.
type ContentFilter struct {
	ChannelID string
	From      time.Time // zero means unbounded
	To        time.Time // zero means unbounded
	Kinds     []core.MessageKind
}

// Matches reports whether an entry passes the filter.
func (f ContentFilter) Matches(e *core.ContentEntry) bool {
	if f.ChannelID != "" && e.ChannelID != f.ChannelID {
		return false
	}
	if !f.From.IsZero() && e.CreatedAt.Before(f.From) {
		return false
	}
	if !f.To.IsZero() && !e.CreatedAt.Before(f.To) {
		return false
	}
	if len(f.Kinds) > 0 {
		ok := false
		for _, k := range f.Kinds {
			if e.Kind == k {
				ok = true
				break
			}
		}
		if !ok {
			return false
		}
	}
	return true
}

// ContentMatch is a similarity search hit.
type ContentMatch struct {
	Entry *core.ContentEntry
	Score float32
}

// ContentStore stores full text plus embeddings in per-tenant
// collections. Deleting a tenant drops its collection outright.
type ContentStore interface {
	// UpsertEntry writes an entry into the tenant's collection, keyed
	// by its deterministic Ref.
	UpsertEntry(ctx context.Context, tenantID string, entry *core.ContentEntry) error

	// GetEntry retrieves an entry by reference. Returns ErrNotFound if
	// absent.
	GetEntry(ctx context.Context, tenantID string, ref core.ContentRef) (*core.ContentEntry, error)

	// Search finds entries similar to the vector within the tenant's
	// collection. The filter is applied before scoring; results with
	// similarity >= minSimilarity are returned ordered by score
	// descending, up to limit.
	Search(ctx context.Context, tenantID string, vector []float32, minSimilarity float32, limit int, filter ContentFilter) ([]ContentMatch, error)

	// DeleteEntry removes a single entry from the tenant's collection.
	DeleteEntry(ctx context.Context, tenantID string, ref core.ContentRef) error

	// ForEachEntry visits every entry in the tenant's collection.
	// Iteration stops on the first error from fn.
	ForEachEntry(ctx context.Context, tenantID string, fn func(*core.ContentEntry) error) error

	// DropCollection deletes the tenant's entire collection.
	DropCollection(ctx context.Context, tenantID string) error

	// CollectionSize returns the number of entries in the tenant's
	// collection.
	CollectionSize(ctx context.Context, tenantID string) (int, error)

	// Close closes the backend and releases resources.
	Close() error
}

// JobFilter restricts ListJobs.
type JobFilter struct {
	Status  core.JobStatus   // empty means any
	Trigger core.TriggerType // empty means any
	Since   time.Time        // zero means unbounded
	Limit   int              // 0 means a backend default
}

// JobStore persists sync job execution history. Rows are append-only
// once terminal; the state machine is enforced at the storage layer.
type JobStore interface {
	// CreateJob inserts a new job row in pending state.
	CreateJob(ctx context.Context, job *core.SyncJob) error

	// StartJob transitions pending -> running. Returns
	// core.ErrIllegalTransition if the job is not pending.
	StartJob(ctx context.Context, tenantID, jobID string, startedAt time.Time) error

	// CompleteJob writes the terminal status, counters and error detail
	// in a single update. Returns core.ErrIllegalTransition if the job
	// is already terminal.
	CompleteJob(ctx context.Context, tenantID string, job *core.SyncJob) error

	// GetJob retrieves a job by id. Returns ErrNotFound if absent.
	GetJob(ctx context.Context, tenantID, jobID string) (*core.SyncJob, error)

	// ListJobs returns jobs matching the filter, newest first.
	ListJobs(ctx context.Context, tenantID string, filter JobFilter) ([]*core.SyncJob, error)

	// ActiveJobForSchedule returns the pending or running job for a
	// schedule, or nil when none is active.
	ActiveJobForSchedule(ctx context.Context, tenantID, scheduleID string) (*core.SyncJob, error)
}

// ScheduleStore persists recurring backfill definitions. At most one
// active schedule exists per tenant.
type ScheduleStore interface {
	// UpsertSchedule creates or replaces the tenant's schedule.
	UpsertSchedule(ctx context.Context, tenantID string, sch *core.Schedule) error

	// GetSchedule returns the tenant's schedule. Returns ErrNotFound
	// when the tenant has none.
	GetSchedule(ctx context.Context, tenantID string) (*core.Schedule, error)

	// ListActiveSchedules returns every active schedule across tenants.
	// The orchestrator calls this once on start to re-arm triggers.
	ListActiveSchedules(ctx context.Context) ([]*core.Schedule, error)

	// DeactivateSchedule disables the tenant's schedule without
	// deleting job history.
	DeactivateSchedule(ctx context.Context, tenantID string) error
}
