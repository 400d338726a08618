// Package docstore is the Badger-backed document store holding the
// visualization views. Documents are JSON objects addressed by
// (collection, key) and stored under "doc:<collection>:<key>".
package docstore

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"regexp"
	"sort"

	"github.com/dgraph-io/badger/v4"

	domainerrors "github.com/gabriellymonarca/Ecotrack/internal/errors"
)

// IDField is the document field carrying its key.
const IDField = "_id"

const (
	docPrefix       = "doc:"
	conflictRetries = 3
)

var collectionPattern = regexp.MustCompile(`^[a-z0-9_]+$`)

// Document is a JSON object. Numbers decode as float64.
type Document map[string]any

// ID returns the document key, or "" when it has none.
func (d Document) ID() string {
	id, _ := d[IDField].(string)
	return id
}

// CollectionInfo describes one non-empty collection.
type CollectionInfo struct {
	Name      string `json:"name"`
	Documents int    `json:"documents"`
}

// Store wraps a Badger database instance.
type Store struct {
	db     *badger.DB
	logger *slog.Logger
}

// Open opens (or creates) the document store at path.
func Open(path string, logger *slog.Logger) (*Store, error) {
	opts := badger.DefaultOptions(path)
	opts.Logger = nil
	opts.SyncWrites = true
	opts.CompactL0OnClose = true

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("failed to open badger db: %w", err)
	}

	logger.Info("document store opened", "path", path)
	return &Store{db: db, logger: logger}, nil
}

// OpenInMemory opens a store that lives only in memory. Used by tests and tools.
func OpenInMemory(logger *slog.Logger) (*Store, error) {
	opts := badger.DefaultOptions("").WithInMemory(true)
	opts.Logger = nil

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("failed to open in-memory badger db: %w", err)
	}
	return &Store{db: db, logger: logger}, nil
}

// Close closes the database.
func (s *Store) Close() error {
	return s.db.Close()
}

// Ping reports whether the store can serve reads.
func (s *Store) Ping(_ context.Context) error {
	if s.db.IsClosed() {
		return errors.New("document store closed")
	}
	return s.db.View(func(*badger.Txn) error { return nil })
}

// Upsert sets the given top-level fields on the document at (collection,
// key), creating it when missing. Existing fields not named in fields are
// kept; named fields are replaced wholesale, arrays included.
func (s *Store) Upsert(ctx context.Context, collection, key string, fields map[string]any) error {
	if err := validate(collection, key); err != nil {
		return err
	}
	k := docKey(collection, key)

	return s.update(ctx, func(txn *badger.Txn) error {
		doc := Document{}
		item, err := txn.Get(k)
		switch {
		case errors.Is(err, badger.ErrKeyNotFound):
		case err != nil:
			return err
		default:
			if err := item.Value(func(val []byte) error { return json.Unmarshal(val, &doc) }); err != nil {
				return fmt.Errorf("decode %s/%s: %w", collection, key, err)
			}
		}

		for f, v := range fields {
			doc[f] = v
		}
		doc[IDField] = key

		data, err := json.Marshal(doc)
		if err != nil {
			return fmt.Errorf("encode %s/%s: %w", collection, key, err)
		}
		return txn.Set(k, data)
	})
}

// ReplaceCollection deletes every document in collection and inserts docs.
// Each doc must carry a string _id. The swap is a single transaction unless
// the batch exceeds Badger's transaction limit, in which case the delete and
// the inserts are committed separately.
func (s *Store) ReplaceCollection(ctx context.Context, collection string, docs []Document) error {
	if err := validate(collection, "-"); err != nil {
		return err
	}

	encoded := make([][2][]byte, 0, len(docs))
	for i, d := range docs {
		id := d.ID()
		if id == "" {
			return domainerrors.Validationf("document %d in %s has no %s", i, collection, IDField)
		}
		data, err := json.Marshal(d)
		if err != nil {
			return fmt.Errorf("encode %s/%s: %w", collection, id, err)
		}
		encoded = append(encoded, [2][]byte{docKey(collection, id), data})
	}

	prefix := collectionPrefix(collection)
	err := s.update(ctx, func(txn *badger.Txn) error {
		if err := deletePrefixInTxn(txn, prefix); err != nil {
			return err
		}
		for _, kv := range encoded {
			if err := txn.Set(kv[0], kv[1]); err != nil {
				return err
			}
		}
		return nil
	})
	if !errors.Is(err, badger.ErrTxnTooBig) {
		return err
	}

	s.logger.Warn("collection too large for one transaction, replacing in batches",
		"collection", collection, "documents", len(docs))

	if err := s.db.DropPrefix(prefix); err != nil {
		return fmt.Errorf("drop %s: %w", collection, err)
	}
	wb := s.db.NewWriteBatch()
	defer wb.Cancel()
	for _, kv := range encoded {
		if err := wb.Set(kv[0], kv[1]); err != nil {
			return fmt.Errorf("batch write %s: %w", collection, err)
		}
	}
	return wb.Flush()
}

// Get returns one document or a not-found error.
func (s *Store) Get(_ context.Context, collection, key string) (Document, error) {
	if err := validate(collection, key); err != nil {
		return nil, err
	}

	var doc Document
	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(docKey(collection, key))
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error { return json.Unmarshal(val, &doc) })
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil, domainerrors.NotFoundf("document %s/%s not found", collection, key)
	}
	if err != nil {
		return nil, domainerrors.Wrapf(err, domainerrors.CodeInternal, "read %s/%s", collection, key)
	}
	return doc, nil
}

// List returns every document in collection ordered by key.
func (s *Store) List(ctx context.Context, collection string) ([]Document, error) {
	if err := validate(collection, "-"); err != nil {
		return nil, err
	}

	var docs []Document
	err := s.db.View(func(txn *badger.Txn) error {
		prefix := collectionPrefix(collection)
		opts := badger.DefaultIteratorOptions
		opts.Prefix = prefix
		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			if err := ctx.Err(); err != nil {
				return err
			}
			var doc Document
			if err := it.Item().Value(func(val []byte) error { return json.Unmarshal(val, &doc) }); err != nil {
				return err
			}
			docs = append(docs, doc)
		}
		return nil
	})
	if err != nil {
		return nil, domainerrors.Wrapf(err, domainerrors.CodeInternal, "list %s", collection)
	}
	return docs, nil
}

// Count returns the number of documents in collection.
func (s *Store) Count(_ context.Context, collection string) (int, error) {
	if err := validate(collection, "-"); err != nil {
		return 0, err
	}

	n := 0
	err := s.db.View(func(txn *badger.Txn) error {
		prefix := collectionPrefix(collection)
		opts := badger.DefaultIteratorOptions
		opts.Prefix = prefix
		opts.PrefetchValues = false
		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			n++
		}
		return nil
	})
	return n, err
}

// Collections lists non-empty collections with their document counts.
func (s *Store) Collections(_ context.Context) ([]CollectionInfo, error) {
	counts := map[string]int{}
	err := s.db.View(func(txn *badger.Txn) error {
		prefix := []byte(docPrefix)
		opts := badger.DefaultIteratorOptions
		opts.Prefix = prefix
		opts.PrefetchValues = false
		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			rest := it.Item().Key()[len(prefix):]
			if i := bytes.IndexByte(rest, ':'); i > 0 {
				counts[string(rest[:i])]++
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	out := make([]CollectionInfo, 0, len(counts))
	for name, n := range counts {
		out = append(out, CollectionInfo{Name: name, Documents: n})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

// update runs fn in a read-write transaction, retrying on write conflicts.
func (s *Store) update(ctx context.Context, fn func(*badger.Txn) error) error {
	var err error
	for attempt := 0; attempt < conflictRetries; attempt++ {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		err = s.db.Update(fn)
		if !errors.Is(err, badger.ErrConflict) {
			return err
		}
	}
	return domainerrors.Wrap(err, domainerrors.CodeConflict, "document write conflict")
}

// deletePrefixInTxn deletes all keys with the given prefix within a transaction.
func deletePrefixInTxn(txn *badger.Txn, prefix []byte) error {
	opts := badger.DefaultIteratorOptions
	opts.Prefix = prefix
	opts.PrefetchValues = false
	it := txn.NewIterator(opts)

	var keys [][]byte
	for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
		keys = append(keys, it.Item().KeyCopy(nil))
	}
	it.Close()

	for _, k := range keys {
		if err := txn.Delete(k); err != nil {
			return err
		}
	}
	return nil
}

func validate(collection, key string) error {
	if !collectionPattern.MatchString(collection) {
		return domainerrors.Validationf("invalid collection name %q", collection)
	}
	if key == "" {
		return domainerrors.Validation("document key is required")
	}
	return nil
}

func collectionPrefix(collection string) []byte {
	return []byte(docPrefix + collection + ":")
}

func docKey(collection, key string) []byte {
	return []byte(docPrefix + collection + ":" + key)
}
