package core

import (
	"encoding/hex"
	"time"

	"github.com/go-crypt/x/blake2b"
)

// ContentRef is the stable identifier of a content entry inside a
// tenant's collection. It is derived deterministically from the tenant
// and the source-native message id, so re-ingesting the same message is
// a pure upsert on both stores.
type ContentRef string

// NewContentRef derives the content reference for a (tenant, sourceID)
// pair using BLAKE2b hashing. Identical inputs always produce the same
// reference.
func NewContentRef(tenantID, sourceID string) ContentRef {
	h, _ := blake2b.New(16, nil)
	h.Write([]byte(tenantID))
	h.Write([]byte{0})
	h.Write([]byte(sourceID))
	return ContentRef(hex.EncodeToString(h.Sum(nil)))
}

// CredentialFormat discriminates how a credential blob is encoded.
// Readers branch on the tag instead of probing parallel optional fields.
type CredentialFormat string

const (
	// CredentialPlain is an unencrypted credential blob.
	CredentialPlain CredentialFormat = "plain"
	// CredentialSealedV1 is a blob sealed by an external key manager.
	CredentialSealedV1 CredentialFormat = "sealed-v1"
)

// Credential is an opaque installation credential with an explicit
// format discriminator. The engine forwards it to the credential
// resolver and never decrypts, logs, or inspects it.
type Credential struct {
	Format CredentialFormat
	Blob   []byte
}

// Tenant is an isolated workspace. All records, jobs and schedules are
// owned by exactly one tenant.
type Tenant struct {
	ID         string
	Name       string
	Credential Credential
	Active     bool
	CreatedAt  time.Time
}

// TenantSettings are per-tenant retrieval behavior knobs with
// documented defaults. Fields are named and validated; there is no
// open-ended settings map.
type TenantSettings struct {
	// MinRelevance is the similarity floor below which a match does not
	// qualify. Default 0.60.
	MinRelevance float32
	// MaxResults caps the number of matches returned per query. Default 10.
	MaxResults int
	// RecencyHalfLifeDays controls how fast recency weighting decays.
	// Default 30.
	RecencyHalfLifeDays int
}

// DefaultTenantSettings returns the documented defaults.
func DefaultTenantSettings() TenantSettings {
	return TenantSettings{
		MinRelevance:        0.60,
		MaxResults:          10,
		RecencyHalfLifeDays: 30,
	}
}

// MessageKind classifies a source message.
type MessageKind string

const (
	KindRegular     MessageKind = "regular"
	KindThreadReply MessageKind = "thread_reply"
	KindBot         MessageKind = "bot"
	KindFileShare   MessageKind = "file_share"
)

// ContentState tracks the cross-store link state of a metadata row.
type ContentState string

const (
	// ContentPending means the metadata row exists but the content
	// entry has not been confirmed yet. Pending rows are invisible to
	// retrieval until a repair pass links them.
	ContentPending ContentState = "pending"
	// ContentLinked means both stores hold the record and the content
	// reference is valid.
	ContentLinked ContentState = "linked"
)

// MessageRecord is the metadata-only projection of a source message.
// Raw text never lives here; it belongs to the content store, reachable
// through ContentRef once the dual write completes.
type MessageRecord struct {
	TenantID    string
	SourceID    string // source-native id, unique per tenant
	ChannelID   string
	ChannelName string
	AuthorID    string
	AuthorName  string
	Kind        MessageKind
	ThreadID    string // empty when not part of a thread
	CreatedAt   time.Time
	EditedAt    time.Time // zero when never edited

	ContentRef   ContentRef // empty until the content write lands
	ContentState ContentState

	// Derived counters for filtering and aggregation without touching
	// content.
	ReplyCount     int
	ReactionCount  int
	LinkCount      int
	MentionCount   int
	HasAttachments bool

	DeletedAt time.Time // soft-delete marker; zero when live
}

// ContentEntry is the content-store projection: full text plus an
// embedding and a metadata mirror sufficient to filter without joining
// back to the metadata store.
type ContentEntry struct {
	TenantID    string
	Ref         ContentRef
	SourceID    string
	Text        string
	Vector      []float32
	ChannelID   string
	ChannelName string
	AuthorID    string
	AuthorName  string
	ThreadID    string
	Kind        MessageKind
	CreatedAt   time.Time
}

// TriggerType says how a sync job was started.
type TriggerType string

const (
	TriggerScheduled TriggerType = "scheduled"
	TriggerManual    TriggerType = "manual"
)

// JobStatus is the sync job state machine. Terminal states are final.
type JobStatus string

const (
	JobPending   JobStatus = "pending"
	JobRunning   JobStatus = "running"
	JobSuccess   JobStatus = "success"
	JobFailed    JobStatus = "failed"
	JobCancelled JobStatus = "cancelled"
)

// Terminal reports whether the status admits no further transition.
func (s JobStatus) Terminal() bool {
	switch s {
	case JobSuccess, JobFailed, JobCancelled:
		return true
	}
	return false
}

// CanTransition reports whether moving from s to next is legal.
// pending may be failed or cancelled directly, e.g. when credentials
// are rejected before the run starts.
func (s JobStatus) CanTransition(next JobStatus) bool {
	switch s {
	case JobPending:
		return next == JobRunning || next == JobFailed || next == JobCancelled
	case JobRunning:
		return next.Terminal()
	}
	return false
}

// SyncJob is one backfill execution. Rows are append-only once
// terminal; only the completion update mutates them.
type SyncJob struct {
	ID           string
	TenantID     string
	ScheduleID   string // empty for manual jobs
	Trigger      TriggerType
	LookbackDays int
	Status       JobStatus

	MessagesCollected int
	ChannelsProcessed int
	ChannelsTotal     int
	ErrorDetail       []string // per-channel failures, job still successful
	ErrorMessage      string   // fatal cause when Status == failed

	StartedAt  time.Time
	FinishedAt time.Time
}

// Schedule is a recurring backfill definition. At most one active
// schedule exists per tenant.
type Schedule struct {
	ID           string
	TenantID     string
	CronExpr     string
	LookbackDays int
	Active       bool
	CreatedAt    time.Time
	UpdatedAt    time.Time
}
