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


// Package retrieval answers similarity queries over ingested content.
//
// Queries are filter-then-rank: the tenant partition and any metadata
// filters are applied before similarity scoring, never after. Matches are
// enriched against the metadata store, and entries whose row is missing,
// soft-deleted or still content-pending are dropped rather than returned
// half-consistent.
//
// Each response carries an aggregate confidence in [0,1) computed as a
// recency-weighted noisy-OR over the qualifying scores. The service is
// read-only and has no side effects on either store.
package retrieval
