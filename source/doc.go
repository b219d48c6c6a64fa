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


// Package source defines the upstream connector boundary: paginated fetch of
// raw conversational records and directory lookups, given tenant credentials.
//
// Records come back in source-native shape (RawMessage); the ingestion
// package owns normalization into core.MessageRecord. Credentials are opaque
// to everything except the CredentialResolver, which is the only place the
// sealed-v1 format is ever opened.
//
// The package deliberately contains no Slack SDK import. Connector
// implementations live with the process that owns network access; this core
// ships the contract and a deterministic test double (source/mock).
package source
