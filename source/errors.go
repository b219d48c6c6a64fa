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


package source

import "errors"

var (
	// ErrRateLimited indicates the upstream service rejected the request due
	// to rate limiting. Callers should back off; the next scheduled sync will
	// naturally retry.
	ErrRateLimited = errors.New("source: rate limited")

	// ErrCredentialRevoked indicates the tenant's credentials were rejected
	// outright. This is fatal for the current job; no further channels should
	// be fetched with the same credentials.
	ErrCredentialRevoked = errors.New("source: credential revoked")

	// ErrChannelNotFound indicates the requested channel does not exist or is
	// not accessible with the current credentials.
	ErrChannelNotFound = errors.New("source: channel not found")

	// ErrUnavailable indicates a generic upstream failure (network error,
	// service outage). Per-channel occurrences are recorded without failing
	// the whole job.
	ErrUnavailable = errors.New("source: upstream unavailable")

	// ErrSealedCredential indicates a sealed credential was encountered but
	// no unsealer was configured to open it.
	ErrSealedCredential = errors.New("source: sealed credential requires an unsealer")

	// ErrUnknownCredentialFormat indicates a credential carries a format tag
	// this build does not recognize.
	ErrUnknownCredentialFormat = errors.New("source: unknown credential format")
)
