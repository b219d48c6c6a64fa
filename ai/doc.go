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


// Package ai provides the embedding abstraction used by ingestion and retrieval.
//
// The core pipeline depends on the Embedder interface rather than any concrete
// client, so AI backends can be swapped without touching business logic.
//
// # Implementation Packages
//
//   - ai/openai: production implementation using OpenAI-compatible APIs
//   - ai/mock: a deterministic test double, no external services required
//
// Public constructors (openai.NewEmbedder) return the Embedder interface to
// enforce abstraction. The mock constructor returns the concrete type so tests
// can inject behavior and assert on call counts:
//
//	emb := mock.NewEmbedder()     // *mock.Embedder
//	emb.EmbedTextFunc = func(...) // behavior injection
//	count := emb.CallCount()      // test assertion
package ai
