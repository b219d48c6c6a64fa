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


package storage

import (
	"time"

	"github.com/hearsaylabs/hearsay/core"
	"github.com/mus-format/mus-go/ord"
	"github.com/mus-format/mus-go/raw"
	"github.com/mus-format/mus-go/varint"
)

// ContentEntryMUS is the MUS serializer for core.ContentEntry values
// stored in the content backend. Timestamps are encoded as Unix
// microseconds.
var ContentEntryMUS = contentEntryMUS{}

type contentEntryMUS struct{}

func (contentEntryMUS) Marshal(v core.ContentEntry, bs []byte) (n int) {
	n = ord.String.Marshal(v.TenantID, bs)
	n += ord.String.Marshal(string(v.Ref), bs[n:])
	n += ord.String.Marshal(v.SourceID, bs[n:])
	n += ord.String.Marshal(v.Text, bs[n:])
	n += varint.PositiveInt.Marshal(len(v.Vector), bs[n:])
	for _, f := range v.Vector {
		n += raw.Float32.Marshal(f, bs[n:])
	}
	n += ord.String.Marshal(v.ChannelID, bs[n:])
	n += ord.String.Marshal(v.ChannelName, bs[n:])
	n += ord.String.Marshal(v.AuthorID, bs[n:])
	n += ord.String.Marshal(v.AuthorName, bs[n:])
	n += ord.String.Marshal(v.ThreadID, bs[n:])
	n += ord.String.Marshal(string(v.Kind), bs[n:])
	n += varint.Int64.Marshal(v.CreatedAt.UnixMicro(), bs[n:])
	return n
}

func (contentEntryMUS) Unmarshal(bs []byte) (v core.ContentEntry, n int, err error) {
	var (
		n1 int
		s  string
	)
	if v.TenantID, n, err = ord.String.Unmarshal(bs); err != nil {
		return
	}
	if s, n1, err = ord.String.Unmarshal(bs[n:]); err != nil {
		return
	}
	n += n1
	v.Ref = core.ContentRef(s)
	if v.SourceID, n1, err = ord.String.Unmarshal(bs[n:]); err != nil {
		return
	}
	n += n1
	if v.Text, n1, err = ord.String.Unmarshal(bs[n:]); err != nil {
		return
	}
	n += n1
	var vecLen int
	if vecLen, n1, err = varint.PositiveInt.Unmarshal(bs[n:]); err != nil {
		return
	}
	n += n1
	if vecLen > 0 {
		v.Vector = make([]float32, vecLen)
		for i := 0; i < vecLen; i++ {
			if v.Vector[i], n1, err = raw.Float32.Unmarshal(bs[n:]); err != nil {
				return
			}
			n += n1
		}
	}
	if v.ChannelID, n1, err = ord.String.Unmarshal(bs[n:]); err != nil {
		return
	}
	n += n1
	if v.ChannelName, n1, err = ord.String.Unmarshal(bs[n:]); err != nil {
		return
	}
	n += n1
	if v.AuthorID, n1, err = ord.String.Unmarshal(bs[n:]); err != nil {
		return
	}
	n += n1
	if v.AuthorName, n1, err = ord.String.Unmarshal(bs[n:]); err != nil {
		return
	}
	n += n1
	if v.ThreadID, n1, err = ord.String.Unmarshal(bs[n:]); err != nil {
		return
	}
	n += n1
	if s, n1, err = ord.String.Unmarshal(bs[n:]); err != nil {
		return
	}
	n += n1
	v.Kind = core.MessageKind(s)
	var micros int64
	if micros, n1, err = varint.Int64.Unmarshal(bs[n:]); err != nil {
		return
	}
	n += n1
	v.CreatedAt = time.UnixMicro(micros).UTC()
	return
}

func (contentEntryMUS) Size(v core.ContentEntry) (size int) {
	size = ord.String.Size(v.TenantID)
	size += ord.String.Size(string(v.Ref))
	size += ord.String.Size(v.SourceID)
	size += ord.String.Size(v.Text)
	size += varint.PositiveInt.Size(len(v.Vector))
	for _, f := range v.Vector {
		size += raw.Float32.Size(f)
	}
	size += ord.String.Size(v.ChannelID)
	size += ord.String.Size(v.ChannelName)
	size += ord.String.Size(v.AuthorID)
	size += ord.String.Size(v.AuthorName)
	size += ord.String.Size(v.ThreadID)
	size += ord.String.Size(string(v.Kind))
	size += varint.Int64.Size(v.CreatedAt.UnixMicro())
	return size
}

// MarshalContentEntry serializes a ContentEntry to bytes.
func MarshalContentEntry(entry *core.ContentEntry) []byte {
	buf := make([]byte, ContentEntryMUS.Size(*entry))
	ContentEntryMUS.Marshal(*entry, buf)
	return buf
}

// UnmarshalContentEntry deserializes a ContentEntry from bytes.
func UnmarshalContentEntry(data []byte) (*core.ContentEntry, error) {
	entry, _, err := ContentEntryMUS.Unmarshal(data)
	if err != nil {
		return nil, err
	}
	return &entry, nil
}
