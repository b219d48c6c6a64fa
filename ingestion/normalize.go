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


package ingestion

import (
	"fmt"
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/hearsaylabs/hearsay/core"
	"github.com/hearsaylabs/hearsay/source"
)

// minTextLength is the shortest message text worth embedding, counted
// in characters. Anything shorter carries no retrievable signal.
const minTextLength = 10

// System subtypes that never become records.
var skippedSubtypes = map[string]struct{}{
	"channel_join":  {},
	"channel_leave": {},
}

var (
	userMentionRe    = regexp.MustCompile(`<@([UW][A-Z0-9]+)>`)
	channelMentionRe = regexp.MustCompile(`<#(C[A-Z0-9]+)`)
	bracketLinkRe    = regexp.MustCompile(`<(https?://[^|>]+)`)
	plainLinkRe      = regexp.MustCompile(`(?:^|\s)(https?://[^\s<>]+)`)
)

// Normalize converts a source-native message into a metadata record plus the
// text destined for the content store. It returns ErrSkipMessage (wrapped)
// for system messages and text too short to embed.
func Normalize(tenantID string, raw source.RawMessage) (*core.MessageRecord, string, error) {
	if _, skip := skippedSubtypes[raw.Subtype]; skip {
		return nil, "", fmt.Errorf("subtype %q: %w", raw.Subtype, ErrSkipMessage)
	}

	text := strings.TrimSpace(raw.Text)
	if n := utf8.RuneCountInString(text); n < minTextLength {
		return nil, "", fmt.Errorf("text length %d: %w", n, ErrSkipMessage)
	}

	rec := &core.MessageRecord{
		TenantID:       tenantID,
		SourceID:       raw.SourceID,
		ChannelID:      raw.ChannelID,
		ChannelName:    raw.ChannelName,
		AuthorID:       raw.AuthorID,
		AuthorName:     raw.AuthorName,
		Kind:           classifyKind(raw),
		ThreadID:       threadOf(raw),
		CreatedAt:      raw.CreatedAt,
		EditedAt:       raw.EditedAt,
		ContentState:   core.ContentPending,
		ReplyCount:     raw.ReplyCount,
		ReactionCount:  raw.ReactionCount,
		LinkCount:      countLinks(text),
		MentionCount:   countMentions(text),
		HasAttachments: raw.HasAttachments,
	}

	if err := core.ValidateMessageRecord(rec); err != nil {
		return nil, "", err
	}
	return rec, text, nil
}

// classifyKind maps upstream subtypes and thread shape to a message kind.
func classifyKind(raw source.RawMessage) core.MessageKind {
	switch raw.Subtype {
	case "bot_message":
		return core.KindBot
	case "file_share":
		return core.KindFileShare
	}
	if raw.ThreadID != "" && raw.ThreadID != raw.SourceID {
		return core.KindThreadReply
	}
	return core.KindRegular
}

// threadOf returns the thread parent id, empty for top-level messages.
// A thread parent references itself upstream; that is not a reply.
func threadOf(raw source.RawMessage) string {
	if raw.ThreadID == raw.SourceID {
		return ""
	}
	return raw.ThreadID
}

// countMentions counts user and channel mentions in upstream markup.
func countMentions(text string) int {
	return len(userMentionRe.FindAllString(text, -1)) +
		len(channelMentionRe.FindAllString(text, -1))
}

// countLinks counts distinct URLs in bracketed markup and plain text.
func countLinks(text string) int {
	seen := map[string]struct{}{}
	for _, m := range bracketLinkRe.FindAllStringSubmatch(text, -1) {
		seen[m[1]] = struct{}{}
	}
	for _, m := range plainLinkRe.FindAllStringSubmatch(text, -1) {
		seen[m[1]] = struct{}{}
	}
	return len(seen)
}
