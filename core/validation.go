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


package core

import (
	"fmt"
	"strings"
	"time"
)

// ValidateTenantID checks that a tenant identifier is present and safe
// to embed in store key paths. Every adapter calls this before touching
// storage. The ':' byte is the key separator: a tenant id containing it
// would make one tenant's key prefix a prefix of another's.
func ValidateTenantID(tenantID string) error {
	if tenantID == "" {
		return ErrTenantRequired
	}
	if strings.ContainsAny(tenantID, ":") {
		return fmt.Errorf("%w: %q", ErrInvalidTenantID, tenantID)
	}
	return nil
}

// ValidateMessageRecord validates a MessageRecord according to domain rules.
//
// Validation rules:
//   - TenantID must be present
//   - SourceID must not be empty
//   - ChannelID must not be empty
//   - Kind must be a known MessageKind
//   - CreatedAt must not be in the future
//
// NOT validated (populated by the pipeline):
//   - ContentRef and ContentState (set during the dual write)
//   - EditedAt, DeletedAt (optional markers)
func ValidateMessageRecord(rec *MessageRecord) error {
	if rec == nil {
		return fmt.Errorf("%w: record is nil", ErrInvalidRecord)
	}

	if err := ValidateTenantID(rec.TenantID); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidRecord, err)
	}

	if rec.SourceID == "" {
		return fmt.Errorf("%w: %w", ErrInvalidRecord, ErrEmptySourceID)
	}

	if rec.ChannelID == "" {
		return fmt.Errorf("%w: %w", ErrInvalidRecord, ErrEmptyChannel)
	}

	if err := ValidateMessageKind(rec.Kind); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidRecord, err)
	}

	if !IsValidTimestamp(rec.CreatedAt) {
		return fmt.Errorf("%w: %w", ErrInvalidRecord, ErrInvalidTimestamp)
	}

	return nil
}

// ValidateMessageKind validates that a MessageKind has a known value.
func ValidateMessageKind(kind MessageKind) error {
	switch kind {
	case KindRegular, KindThreadReply, KindBot, KindFileShare:
		return nil
	}
	return fmt.Errorf("%w: value %q", ErrInvalidKind, kind)
}

// ValidateTenantSettings validates per-tenant retrieval settings.
func ValidateTenantSettings(s TenantSettings) error {
	if s.MinRelevance < 0 || s.MinRelevance > 1 {
		return fmt.Errorf("%w: MinRelevance must be in [0,1]", ErrInvalidSettings)
	}
	if s.MaxResults < 1 {
		return fmt.Errorf("%w: MaxResults must be positive", ErrInvalidSettings)
	}
	if s.RecencyHalfLifeDays < 1 {
		return fmt.Errorf("%w: RecencyHalfLifeDays must be positive", ErrInvalidSettings)
	}
	return nil
}

// IsValidTimestamp checks if a timestamp is valid (not in the future).
func IsValidTimestamp(ts time.Time) bool {
	return !ts.After(time.Now())
}
