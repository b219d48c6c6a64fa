package storage

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hearsaylabs/hearsay/core"
)

func TestMarshalUnmarshalContentEntry(t *testing.T) {
	now := time.Now().UTC().Truncate(time.Microsecond)

	tests := []struct {
		name  string
		entry *core.ContentEntry
	}{
		{
			name: "minimal entry",
			entry: &core.ContentEntry{
				TenantID:  "acme",
				Ref:       core.NewContentRef("acme", "1700000000.000100"),
				SourceID:  "1700000000.000100",
				Text:      "hello",
				ChannelID: "C001",
				Kind:      core.KindRegular,
				CreatedAt: now,
			},
		},
		{
			name: "full entry",
			entry: &core.ContentEntry{
				TenantID:    "acme",
				Ref:         core.NewContentRef("acme", "1700000000.000200"),
				SourceID:    "1700000000.000200",
				Text:        "the key rotation runbook is in the wiki",
				Vector:      []float32{0.25, -0.5, 0.75, 1.0},
				ChannelID:   "C001",
				ChannelName: "platform",
				AuthorID:    "U042",
				AuthorName:  "dana",
				ThreadID:    "1700000000.000100",
				Kind:        core.KindThreadReply,
				CreatedAt:   now,
			},
		},
		{
			name: "empty vector",
			entry: &core.ContentEntry{
				TenantID:  "acme",
				Ref:       core.NewContentRef("acme", "x"),
				SourceID:  "x",
				Text:      "",
				ChannelID: "C002",
				Kind:      core.KindBot,
				CreatedAt: now,
			},
		},
		{
			name: "unicode text",
			entry: &core.ContentEntry{
				TenantID:  "acme",
				Ref:       core.NewContentRef("acme", "u"),
				SourceID:  "u",
				Text:      "naïve résumé 日本語 🚀",
				Vector:    []float32{1},
				ChannelID: "C003",
				Kind:      core.KindRegular,
				CreatedAt: now,
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			data := MarshalContentEntry(tt.entry)
			require.NotEmpty(t, data)
			assert.Len(t, data, ContentEntryMUS.Size(*tt.entry))

			decoded, err := UnmarshalContentEntry(data)
			require.NoError(t, err)
			assert.Equal(t, tt.entry, decoded)
		})
	}
}

func TestUnmarshalContentEntry_Invalid(t *testing.T) {
	tests := []struct {
		name string
		data []byte
	}{
		{"empty data", []byte{}},
		{"truncated data", MarshalContentEntry(&core.ContentEntry{
			TenantID: "acme", SourceID: "s", Text: "some text",
			Kind: core.KindRegular, CreatedAt: time.Now(),
		})[:4]},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := UnmarshalContentEntry(tt.data)
			assert.Error(t, err)
		})
	}
}
