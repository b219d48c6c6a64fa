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

import "errors"

// Domain validation errors
var (
	// ErrTenantRequired indicates a missing or empty tenant identifier.
	// Tenant scoping is mandatory; operations fail fast at the boundary
	// rather than silently scoping to all tenants.
	ErrTenantRequired = errors.New("tenant id required")

	// ErrInvalidTenantID indicates a tenant identifier containing
	// reserved characters. Tenant ids are embedded in store key paths,
	// so the separator byte must never appear in one.
	ErrInvalidTenantID = errors.New("tenant id contains reserved characters")

	// ErrInvalidRecord indicates a MessageRecord failed validation.
	ErrInvalidRecord = errors.New("invalid message record")

	// ErrEmptySourceID indicates the SourceID field is empty.
	ErrEmptySourceID = errors.New("source id cannot be empty")

	// ErrEmptyChannel indicates the ChannelID field is empty.
	ErrEmptyChannel = errors.New("channel id cannot be empty")

	// ErrEmptyContent indicates the message text is empty.
	ErrEmptyContent = errors.New("content cannot be empty")

	// ErrInvalidTimestamp indicates a timestamp is in the future.
	ErrInvalidTimestamp = errors.New("timestamp cannot be in the future")

	// ErrInvalidKind indicates an unknown MessageKind value.
	ErrInvalidKind = errors.New("invalid message kind")

	// ErrInvalidSettings indicates TenantSettings failed validation.
	ErrInvalidSettings = errors.New("invalid tenant settings")

	// ErrIllegalTransition indicates an attempt to move a job out of a
	// terminal state or to skip the state machine order.
	ErrIllegalTransition = errors.New("illegal job status transition")
)
