package badger

import (
	"github.com/hearsaylabs/hearsay/core"
)

// Key layout. Every key of a tenant's collection shares the collection
// prefix, so dropping the prefix deletes the collection outright.
const (
	collectionPrefix = "col"
	entrySegment     = "ent"
)

// makeCollectionPrefix returns the prefix owning every key of a
// tenant's collection. Format: col:<tenant>:
func makeCollectionPrefix(tenantID string) []byte {
	buf := make([]byte, 0, len(collectionPrefix)+len(tenantID)+2)
	buf = append(buf, collectionPrefix...)
	buf = append(buf, ':')
	buf = append(buf, tenantID...)
	buf = append(buf, ':')
	return buf
}

// makeEntryKey generates the key for a content entry.
// Format: col:<tenant>:ent:<ref>
func makeEntryKey(tenantID string, ref core.ContentRef) []byte {
	prefix := makeCollectionPrefix(tenantID)
	buf := make([]byte, 0, len(prefix)+len(entrySegment)+len(ref)+1)
	buf = append(buf, prefix...)
	buf = append(buf, entrySegment...)
	buf = append(buf, ':')
	buf = append(buf, ref...)
	return buf
}

// makeEntryPrefix returns the prefix covering all entries of a tenant.
func makeEntryPrefix(tenantID string) []byte {
	prefix := makeCollectionPrefix(tenantID)
	buf := make([]byte, 0, len(prefix)+len(entrySegment)+1)
	buf = append(buf, prefix...)
	buf = append(buf, entrySegment...)
	buf = append(buf, ':')
	return buf
}
