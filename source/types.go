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

import "time"

// RawMessage is a conversational record in source-native shape.
// SourceID is the upstream-native message identifier, unique within a tenant.
// Subtype carries the upstream's message subtype verbatim (for example
// "bot_message", "file_share", "channel_join"); normalization interprets it.
type RawMessage struct {
	SourceID       string
	ChannelID      string
	ChannelName    string
	AuthorID       string
	AuthorName     string
	Text           string
	Subtype        string
	ThreadID       string
	ReplyCount     int
	ReactionCount  int
	HasAttachments bool
	CreatedAt      time.Time
	EditedAt       time.Time
}

// Channel describes a conversation container visible to the tenant's
// credentials.
type Channel struct {
	ID          string
	Name        string
	MemberCount int
	Archived    bool
}

// User is a directory entry for an upstream author.
type User struct {
	ID          string
	Name        string
	DisplayName string
	IsBot       bool
}

// MessagePage is one page of a paginated history fetch. NextCursor is opaque;
// pass it back unchanged to continue. HasMore is false on the final page.
type MessagePage struct {
	Messages   []RawMessage
	NextCursor string
	HasMore    bool
}

// FetchOptions bounds a history fetch. Oldest is inclusive; a zero Oldest
// means no lower bound. PageSize of 0 lets the connector choose.
type FetchOptions struct {
	Oldest   time.Time
	Cursor   string
	PageSize int
}
