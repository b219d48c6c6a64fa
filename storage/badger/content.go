package badger

import (
	"context"
	"slices"

	"github.com/dgraph-io/badger/v4"
	"github.com/hearsaylabs/hearsay/core"
	"github.com/hearsaylabs/hearsay/storage"
)

// ContentStore implements storage.ContentStore on BadgerDB. Each
// tenant's entries live under a dedicated key prefix, so the collection
// can be dropped in one operation and no scan ever crosses tenants.
type ContentStore struct {
	backend *Backend
}

var _ storage.ContentStore = (*ContentStore)(nil)

// NewContentStore creates a ContentStore on an open backend.
func NewContentStore(backend *Backend) *ContentStore {
	return &ContentStore{backend: backend}
}

// Open opens a content store at the given path.
func Open(filePath string) (storage.ContentStore, error) {
	backend, err := OpenBackend(filePath, false)
	if err != nil {
		return nil, err
	}
	return NewContentStore(backend), nil
}

// OpenMemory opens an in-memory content store for tests.
func OpenMemory() (storage.ContentStore, error) {
	backend, err := OpenBackend("", true)
	if err != nil {
		return nil, err
	}
	return NewContentStore(backend), nil
}

// Close closes the underlying backend.
func (s *ContentStore) Close() error {
	return s.backend.Close()
}

// UpsertEntry writes an entry into the tenant's collection.
func (s *ContentStore) UpsertEntry(ctx context.Context, tenantID string, entry *core.ContentEntry) error {
	if err := core.ValidateTenantID(tenantID); err != nil {
		return err
	}
	if entry.Ref == "" {
		entry.Ref = core.NewContentRef(tenantID, entry.SourceID)
	}
	entry.TenantID = tenantID

	return s.backend.WithTx(func(tx *badger.Txn) error {
		key := makeEntryKey(tenantID, entry.Ref)
		if err := tx.Set(key, storage.MarshalContentEntry(entry)); err != nil {
			return err
		}
		return tx.Commit()
	}, true)
}

// GetEntry retrieves an entry by reference.
func (s *ContentStore) GetEntry(ctx context.Context, tenantID string, ref core.ContentRef) (*core.ContentEntry, error) {
	if err := core.ValidateTenantID(tenantID); err != nil {
		return nil, err
	}

	var result *core.ContentEntry
	err := s.backend.WithTx(func(tx *badger.Txn) error {
		var err error
		result, err = readEntry(tx, makeEntryKey(tenantID, ref))
		if err != nil {
			return err
		}
		if result == nil {
			return storage.ErrNotFound
		}
		return nil
	}, false)
	return result, err
}

// Search scans the tenant's collection, applies the metadata filter
// before scoring, and returns matches with similarity >= minSimilarity
// ordered by score descending.
func (s *ContentStore) Search(ctx context.Context, tenantID string, vector []float32, minSimilarity float32, limit int, filter storage.ContentFilter) ([]storage.ContentMatch, error) {
	if err := core.ValidateTenantID(tenantID); err != nil {
		return nil, err
	}

	var results []storage.ContentMatch
	err := s.backend.WithTx(func(tx *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = makeEntryPrefix(tenantID)
		iter := tx.NewIterator(opts)
		defer iter.Close()

		for iter.Rewind(); iter.Valid(); iter.Next() {
			if err := ctx.Err(); err != nil {
				return err
			}

			var entry *core.ContentEntry
			err := iter.Item().Value(func(val []byte) error {
				var err error
				entry, err = storage.UnmarshalContentEntry(val)
				return err
			})
			if err != nil {
				return err
			}
			if entry == nil || len(entry.Vector) == 0 {
				continue
			}
			// The prefix already scopes the scan; the stored tenant id
			// must agree with it.
			if entry.TenantID != tenantID {
				continue
			}

			// Filter before scoring
			if !filter.Matches(entry) {
				continue
			}

			similarity := dotProduct(vector, entry.Vector)
			if similarity >= minSimilarity {
				results = append(results, storage.ContentMatch{
					Entry: entry,
					Score: similarity,
				})
			}
		}
		return nil
	}, false)
	if err != nil {
		return nil, err
	}

	slices.SortFunc(results, func(a, b storage.ContentMatch) int {
		if a.Score > b.Score {
			return -1
		}
		if a.Score < b.Score {
			return 1
		}
		return 0
	})

	if limit > 0 && len(results) > limit {
		results = results[:limit]
	}

	return results, nil
}

// DeleteEntry removes a single entry from the tenant's collection.
func (s *ContentStore) DeleteEntry(ctx context.Context, tenantID string, ref core.ContentRef) error {
	if err := core.ValidateTenantID(tenantID); err != nil {
		return err
	}

	return s.backend.WithTx(func(tx *badger.Txn) error {
		key := makeEntryKey(tenantID, ref)
		if _, err := tx.Get(key); err != nil {
			if err == badger.ErrKeyNotFound {
				return storage.ErrNotFound
			}
			return err
		}
		if err := tx.Delete(key); err != nil {
			return err
		}
		return tx.Commit()
	}, true)
}

// ForEachEntry visits every entry in the tenant's collection in key
// order, stopping on the first error from fn.
func (s *ContentStore) ForEachEntry(ctx context.Context, tenantID string, fn func(*core.ContentEntry) error) error {
	if err := core.ValidateTenantID(tenantID); err != nil {
		return err
	}

	return s.backend.WithTx(func(tx *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = makeEntryPrefix(tenantID)
		iter := tx.NewIterator(opts)
		defer iter.Close()

		for iter.Rewind(); iter.Valid(); iter.Next() {
			if err := ctx.Err(); err != nil {
				return err
			}

			var entry *core.ContentEntry
			err := iter.Item().Value(func(val []byte) error {
				var err error
				entry, err = storage.UnmarshalContentEntry(val)
				return err
			})
			if err != nil {
				return err
			}
			if entry == nil || entry.TenantID != tenantID {
				continue
			}
			if err := fn(entry); err != nil {
				return err
			}
		}
		return nil
	}, false)
}

// DropCollection deletes the tenant's entire collection.
func (s *ContentStore) DropCollection(ctx context.Context, tenantID string) error {
	if err := core.ValidateTenantID(tenantID); err != nil {
		return err
	}
	return s.backend.DropPrefix(makeCollectionPrefix(tenantID))
}

// CollectionSize returns the number of entries in the tenant's collection.
func (s *ContentStore) CollectionSize(ctx context.Context, tenantID string) (int, error) {
	if err := core.ValidateTenantID(tenantID); err != nil {
		return 0, err
	}

	count := 0
	err := s.backend.WithTx(func(tx *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = makeEntryPrefix(tenantID)
		opts.PrefetchValues = false
		iter := tx.NewIterator(opts)
		defer iter.Close()

		for iter.Rewind(); iter.Valid(); iter.Next() {
			count++
		}
		return nil
	}, false)
	return count, err
}

// readEntry reads a content entry from the transaction. Returns nil
// without error when the key is absent.
func readEntry(tx *badger.Txn, key []byte) (*core.ContentEntry, error) {
	item, err := tx.Get(key)
	if err != nil {
		if err == badger.ErrKeyNotFound {
			return nil, nil
		}
		return nil, err
	}

	var entry *core.ContentEntry
	err = item.Value(func(val []byte) error {
		var unmarshalErr error
		entry, unmarshalErr = storage.UnmarshalContentEntry(val)
		return unmarshalErr
	})
	return entry, err
}

// dotProduct calculates the dot product of two vectors.
func dotProduct(a, b []float32) float32 {
	var sum float32
	minLen := len(a)
	if len(b) < minLen {
		minLen = len(b)
	}
	for i := 0; i < minLen; i++ {
		sum += a[i] * b[i]
	}
	return sum
}
