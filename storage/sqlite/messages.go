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

var _ storage.MetadataStore = (*Store)(nil)

const messageColumns = `
	tenant_id, source_id, channel_id, channel_name, author_id, author_name,
	kind, thread_id, created_at, edited_at, content_ref, content_state,
	reply_count, reaction_count, link_count, mention_count, has_attachments, deleted_at`

// UpsertMessage inserts or updates a metadata row keyed by
// (tenant, source id). Re-ingestion updates counters and edit markers
// in place; it never duplicates.
func (s *Store) UpsertMessage(ctx context.Context, tenantID string, rec *core.MessageRecord) error {
	if err := core.ValidateTenantID(tenantID); err != nil {
		return err
	}
	rec.TenantID = tenantID
	if err := core.ValidateMessageRecord(rec); err != nil {
		return err
	}
	if rec.ContentState == "" {
		rec.ContentState = core.ContentPending
	}

	var contentRef sql.NullString
	if rec.ContentRef != "" {
		contentRef = sql.NullString{String: string(rec.ContentRef), Valid: true}
	}

	_, err := s.execContext(ctx, `
		INSERT INTO message_metadata (`+messageColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(tenant_id, source_id) DO UPDATE SET
			channel_name    = excluded.channel_name,
			author_name     = excluded.author_name,
			kind            = excluded.kind,
			edited_at       = excluded.edited_at,
			reply_count     = excluded.reply_count,
			reaction_count  = excluded.reaction_count,
			link_count      = excluded.link_count,
			mention_count   = excluded.mention_count,
			has_attachments = excluded.has_attachments,
			content_state   = excluded.content_state`,
		tenantID, rec.SourceID, rec.ChannelID, rec.ChannelName, rec.AuthorID, rec.AuthorName,
		string(rec.Kind), rec.ThreadID, fmtTime(rec.CreatedAt), fmtNullTime(rec.EditedAt),
		contentRef, string(rec.ContentState),
		rec.ReplyCount, rec.ReactionCount, rec.LinkCount, rec.MentionCount,
		boolToInt(rec.HasAttachments), fmtNullTime(rec.DeletedAt),
	)
	if err != nil && isLockedErr(err) {
		return storage.Transient(err)
	}
	return err
}

// LinkContent back-fills the content reference and flips the row to
// linked state. The N:1 anchor between the two stores.
func (s *Store) LinkContent(ctx context.Context, tenantID, sourceID string, ref core.ContentRef) error {
	if err := core.ValidateTenantID(tenantID); err != nil {
		return err
	}

	res, err := s.execContext(ctx, `
		UPDATE message_metadata
		SET content_ref = ?, content_state = ?
		WHERE tenant_id = ? AND source_id = ?`,
		string(ref), string(core.ContentLinked), tenantID, sourceID,
	)
	if err != nil {
		if isLockedErr(err) {
			return storage.Transient(err)
		}
		return err
	}
	return requireRow(res)
}

// MarkContentPending flags a row whose content write failed. The
// content_ref is cleared so no reader can follow a dangling link.
func (s *Store) MarkContentPending(ctx context.Context, tenantID, sourceID string) error {
	if err := core.ValidateTenantID(tenantID); err != nil {
		return err
	}

	res, err := s.execContext(ctx, `
		UPDATE message_metadata
		SET content_ref = NULL, content_state = ?
		WHERE tenant_id = ? AND source_id = ?`,
		string(core.ContentPending), tenantID, sourceID,
	)
	if err != nil {
		return err
	}
	return requireRow(res)
}

// GetMessage retrieves a single row.
func (s *Store) GetMessage(ctx context.Context, tenantID, sourceID string) (*core.MessageRecord, error) {
	if err := core.ValidateTenantID(tenantID); err != nil {
		return nil, err
	}

	row := s.db.QueryRowContext(ctx, `
		SELECT `+messageColumns+`
		FROM message_metadata WHERE tenant_id = ? AND source_id = ?`,
		tenantID, sourceID,
	)
	rec, err := scanMessage(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, storage.ErrNotFound
	}
	return rec, err
}

// GetMessages retrieves rows for the given source ids; missing ids are
// skipped without error.
func (s *Store) GetMessages(ctx context.Context, tenantID string, sourceIDs []string) ([]*core.MessageRecord, error) {
	if err := core.ValidateTenantID(tenantID); err != nil {
		return nil, err
	}
	if len(sourceIDs) == 0 {
		return nil, nil
	}

	placeholders := strings.Repeat(",?", len(sourceIDs)-1)
	args := make([]any, 0, len(sourceIDs)+1)
	args = append(args, tenantID)
	for _, id := range sourceIDs {
		args = append(args, id)
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT `+messageColumns+`
		FROM message_metadata
		WHERE tenant_id = ? AND source_id IN (?`+placeholders+`)`,
		args...,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return scanMessages(rows)
}

// ListPending returns rows stuck in content-pending state, oldest
// first, for the repair pass.
func (s *Store) ListPending(ctx context.Context, tenantID string, limit int) ([]*core.MessageRecord, error) {
	if err := core.ValidateTenantID(tenantID); err != nil {
		return nil, err
	}
	if limit <= 0 {
		limit = 100
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT `+messageColumns+`
		FROM message_metadata
		WHERE tenant_id = ? AND content_state = ? AND deleted_at IS NULL
		ORDER BY created_at ASC
		LIMIT ?`,
		tenantID, string(core.ContentPending), limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return scanMessages(rows)
}

// SoftDeleteMessage sets the soft-delete marker on a row.
func (s *Store) SoftDeleteMessage(ctx context.Context, tenantID, sourceID string) error {
	if err := core.ValidateTenantID(tenantID); err != nil {
		return err
	}

	res, err := s.execContext(ctx, `
		UPDATE message_metadata SET deleted_at = ?
		WHERE tenant_id = ? AND source_id = ? AND deleted_at IS NULL`,
		fmtTime(time.Now()), tenantID, sourceID,
	)
	if err != nil {
		return err
	}
	return requireRow(res)
}

// DeleteTenantMessages hard-deletes every row of a tenant. Only
// explicit tenant-data-deletion calls this.
func (s *Store) DeleteTenantMessages(ctx context.Context, tenantID string) (int, error) {
	if err := core.ValidateTenantID(tenantID); err != nil {
		return 0, err
	}

	res, err := s.execContext(ctx, `DELETE FROM message_metadata WHERE tenant_id = ?`, tenantID)
	if err != nil {
		return 0, err
	}
	n, err := res.RowsAffected()
	return int(n), err
}

// ChannelActivity aggregates message counts, active authors and last
// activity per channel since the given time.
func (s *Store) ChannelActivity(ctx context.Context, tenantID string, since time.Time) ([]storage.ChannelActivity, error) {
	if err := core.ValidateTenantID(tenantID); err != nil {
		return nil, err
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT channel_id, channel_name,
		       COUNT(*) AS message_count,
		       COUNT(DISTINCT author_id) AS active_authors,
		       MAX(created_at) AS last_activity
		FROM message_metadata
		WHERE tenant_id = ? AND created_at > ? AND deleted_at IS NULL
		GROUP BY channel_id, channel_name
		ORDER BY message_count DESC`,
		tenantID, fmtTime(since),
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var results []storage.ChannelActivity
	for rows.Next() {
		var (
			a            storage.ChannelActivity
			lastActivity string
		)
		if err := rows.Scan(&a.ChannelID, &a.ChannelName, &a.MessageCount, &a.ActiveAuthors, &lastActivity); err != nil {
			return nil, err
		}
		if a.LastActivity, err = parseTime(lastActivity); err != nil {
			return nil, err
		}
		results = append(results, a)
	}
	return results, rows.Err()
}

// TopAuthors returns the most active authors by message count since the
// given time.
func (s *Store) TopAuthors(ctx context.Context, tenantID string, since time.Time, limit int) ([]storage.AuthorActivity, error) {
	if err := core.ValidateTenantID(tenantID); err != nil {
		return nil, err
	}
	if limit <= 0 {
		limit = 10
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT author_id, author_name,
		       COUNT(*) AS message_count,
		       COUNT(DISTINCT channel_id) AS channels_active,
		       MAX(created_at) AS last_message_at
		FROM message_metadata
		WHERE tenant_id = ? AND created_at > ? AND deleted_at IS NULL AND author_id != ''
		GROUP BY author_id, author_name
		ORDER BY message_count DESC
		LIMIT ?`,
		tenantID, fmtTime(since), limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var results []storage.AuthorActivity
	for rows.Next() {
		var (
			a             storage.AuthorActivity
			lastMessageAt string
		)
		if err := rows.Scan(&a.AuthorID, &a.AuthorName, &a.MessageCount, &a.ChannelsActive, &lastMessageAt); err != nil {
			return nil, err
		}
		if a.LastMessageAt, err = parseTime(lastMessageAt); err != nil {
			return nil, err
		}
		results = append(results, a)
	}
	return results, rows.Err()
}

// scanner abstracts *sql.Row and *sql.Rows for scanMessage.
type scanner interface {
	Scan(dest ...any) error
}

func scanMessage(row scanner) (*core.MessageRecord, error) {
	var (
		rec            core.MessageRecord
		kind           string
		createdAt      string
		editedAt       sql.NullString
		contentRef     sql.NullString
		contentState   string
		hasAttachments int
		deletedAt      sql.NullString
	)
	err := row.Scan(
		&rec.TenantID, &rec.SourceID, &rec.ChannelID, &rec.ChannelName,
		&rec.AuthorID, &rec.AuthorName, &kind, &rec.ThreadID,
		&createdAt, &editedAt, &contentRef, &contentState,
		&rec.ReplyCount, &rec.ReactionCount, &rec.LinkCount, &rec.MentionCount,
		&hasAttachments, &deletedAt,
	)
	if err != nil {
		return nil, err
	}

	rec.Kind = core.MessageKind(kind)
	rec.ContentState = core.ContentState(contentState)
	rec.ContentRef = core.ContentRef(contentRef.String)
	rec.HasAttachments = hasAttachments != 0
	if rec.CreatedAt, err = parseTime(createdAt); err != nil {
		return nil, err
	}
	if rec.EditedAt, err = parseNullTime(editedAt); err != nil {
		return nil, err
	}
	if rec.DeletedAt, err = parseNullTime(deletedAt); err != nil {
		return nil, err
	}
	return &rec, nil
}

func scanMessages(rows *sql.Rows) ([]*core.MessageRecord, error) {
	var results []*core.MessageRecord
	for rows.Next() {
		rec, err := scanMessage(rows)
		if err != nil {
			return nil, err
		}
		results = append(results, rec)
	}
	return results, rows.Err()
}

// isLockedErr detects the driver's busy/locked failures, which are
// safe to retry.
func isLockedErr(err error) bool {
	msg := err.Error()
	return strings.Contains(msg, "database is locked") || strings.Contains(msg, "SQLITE_BUSY")
}
