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


// Package storage provides the storage abstraction layer for hearsay.
//
// Two heterogeneous stores back the engine:
//
//   - MetadataStore: relational rows of message metadata, indexed for
//     filtering and aggregation. Never holds raw text.
//   - ContentStore: per-tenant collections of full text plus an
//     embedding, queryable by similarity and metadata filter.
//
// Alongside them sit the TenantRegistry (workspace identities and
// credentials), the JobStore (sync job history) and the ScheduleStore
// (recurring backfill definitions).
//
// # Tenant Scoping
//
// Every read and write method takes a tenant identifier as its first
// data argument. Implementations must reject an empty tenant id with
// core.ErrTenantRequired before touching the backend; a forgotten
// filter elsewhere must never widen a query to all tenants.
//
// # Constructor Return Type Pattern
//
// Public constructors return interfaces to enforce abstraction and
// keep backends swappable:
//
//	meta, err := sqlite.Open(dataDir)   // storage.MetadataStore et al.
//	content, err := badger.Open(path)   // storage.ContentStore
//
// In-memory variants of both backends exist for tests.
//
// # Thread Safety
//
// All implementations must be safe for concurrent use. All methods
// accept context.Context for cancellation and timeouts.
package storage
