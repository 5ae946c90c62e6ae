package badger

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strconv"

	"github.com/dgraph-io/badger/v4"
	"github.com/poiesic/agentmatrix/storage"
)

// Store implements storage.CollectionStore on BadgerDB.
// Each collection carries a counter revision that is compared and bumped
// inside the same transaction as the document write.
type Store struct {
	backend *Backend
	owned   bool
}

var _ storage.CollectionStore = (*Store)(nil)

// NewStore opens a BadgerDB directory and returns a store that owns it.
func NewStore(path string) (storage.CollectionStore, error) {
	backend, err := OpenBackend(path, false)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", storage.ErrStoreIO, err)
	}
	return &Store{backend: backend, owned: true}, nil
}

// NewStoreWithBackend returns a store on a backend the caller keeps ownership of.
func NewStoreWithBackend(backend *Backend) (storage.CollectionStore, error) {
	if backend == nil {
		return nil, errors.New("backend required")
	}
	return &Store{backend: backend}, nil
}

func (s *Store) check(ctx context.Context, name string) error {
	if s.backend.IsClosed() {
		return storage.ErrStorageClosed
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	return storage.ValidateName(name)
}

func ioErr(op, name string, err error) error {
	return fmt.Errorf("%w: %s %s: %w", storage.ErrStoreIO, op, name, err)
}

// readRevision returns the revision stored for name, or NoRevision.
func readRevision(tx *badger.Txn, name string) (storage.Revision, error) {
	item, err := tx.Get(makeRevisionKey(name))
	if errors.Is(err, badger.ErrKeyNotFound) {
		return storage.NoRevision, nil
	}
	if err != nil {
		return storage.NoRevision, err
	}
	val, err := item.ValueCopy(nil)
	if err != nil {
		return storage.NoRevision, err
	}
	return storage.Revision(val), nil
}

// LoadCollection reads a document and its revision in one snapshot.
func (s *Store) LoadCollection(ctx context.Context, name string) ([]byte, storage.Revision, error) {
	if err := s.check(ctx, name); err != nil {
		return nil, storage.NoRevision, err
	}

	var (
		data []byte
		rev  storage.Revision
	)
	err := s.backend.WithTx(func(tx *badger.Txn) error {
		item, err := tx.Get(makeCollectionKey(name))
		if errors.Is(err, badger.ErrKeyNotFound) {
			return storage.ErrNotFound
		}
		if err != nil {
			return ioErr("reading", name, err)
		}
		if data, err = item.ValueCopy(nil); err != nil {
			return ioErr("reading", name, err)
		}
		if rev, err = readRevision(tx, name); err != nil {
			return ioErr("reading revision of", name, err)
		}
		return nil
	}, false)
	if err != nil {
		return nil, storage.NoRevision, err
	}
	return data, rev, nil
}

// SaveCollection writes a document if its revision still equals expected.
func (s *Store) SaveCollection(ctx context.Context, name string, data []byte, expected storage.Revision) (storage.Revision, error) {
	if err := s.check(ctx, name); err != nil {
		return storage.NoRevision, err
	}

	var next storage.Revision
	err := s.backend.WithTx(func(tx *badger.Txn) error {
		current, err := readRevision(tx, name)
		if err != nil {
			return ioErr("reading revision of", name, err)
		}
		if current != expected {
			return fmt.Errorf("%w: %s", storage.ErrConflict, name)
		}

		n := uint64(0)
		if current != storage.NoRevision {
			n, err = strconv.ParseUint(string(current), 10, 64)
			if err != nil {
				return ioErr("parsing revision of", name, err)
			}
		}
		next = storage.Revision(strconv.FormatUint(n+1, 10))

		if err := tx.Set(makeCollectionKey(name), data); err != nil {
			return ioErr("writing", name, err)
		}
		if err := tx.Set(makeRevisionKey(name), []byte(next)); err != nil {
			return ioErr("writing revision of", name, err)
		}
		if err := tx.Commit(); err != nil {
			if errors.Is(err, badger.ErrConflict) {
				return fmt.Errorf("%w: %s: %w", storage.ErrConflict, name, err)
			}
			return ioErr("committing", name, err)
		}
		return nil
	}, true)
	if err != nil {
		if errors.Is(err, storage.ErrConflict) {
			s.backend.logger.Warn("revision conflict", "collection", name, "expected", expected)
		}
		return storage.NoRevision, err
	}

	s.backend.logger.Debug("collection saved", "collection", name, "bytes", len(data), "revision", next)
	return next, nil
}

// AppendLog stores an entry under the next value of the log's sequence.
func (s *Store) AppendLog(ctx context.Context, name string, entry []byte) error {
	if err := s.check(ctx, name); err != nil {
		return err
	}

	seq, err := s.backend.Sequence(makeLogSeqKey(name))
	if err != nil {
		return ioErr("leasing sequence for", name, err)
	}
	n, err := seq.Next()
	if err != nil {
		return ioErr("advancing sequence for", name, err)
	}

	return s.backend.WithTx(func(tx *badger.Txn) error {
		if err := tx.Set(makeLogEntryKey(name, n), slices.Clone(entry)); err != nil {
			return ioErr("appending to", name, err)
		}
		if err := tx.Commit(); err != nil {
			return ioErr("committing", name, err)
		}
		return nil
	}, true)
}

// ReadLog returns every entry in sequence order.
func (s *Store) ReadLog(ctx context.Context, name string) ([][]byte, error) {
	if err := s.check(ctx, name); err != nil {
		return nil, err
	}
	return s.scanLog(name, 0)
}

// TailLog returns the last n entries in sequence order.
func (s *Store) TailLog(ctx context.Context, name string, n int) ([][]byte, error) {
	if err := s.check(ctx, name); err != nil {
		return nil, err
	}
	if n <= 0 {
		return [][]byte{}, nil
	}
	return s.scanLog(name, n)
}

// scanLog collects entries of a log. With last > 0 it walks backwards and
// stops after last entries.
func (s *Store) scanLog(name string, last int) ([][]byte, error) {
	prefix := makePartialLogKey(name)
	entries := [][]byte{}

	err := s.backend.WithTx(func(tx *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = prefix
		opts.Reverse = last > 0
		iter := tx.NewIterator(opts)
		defer iter.Close()

		start := prefix
		if opts.Reverse {
			start = append(slices.Clone(prefix), 0xFF)
		}
		for iter.Seek(start); iter.ValidForPrefix(prefix); iter.Next() {
			val, err := iter.Item().ValueCopy(nil)
			if err != nil {
				return ioErr("reading", name, err)
			}
			entries = append(entries, val)
			if last > 0 && len(entries) == last {
				break
			}
		}
		return nil
	}, false)
	if err != nil {
		return nil, err
	}

	if last > 0 {
		slices.Reverse(entries)
	}
	return entries, nil
}

// Close closes the backend if the store opened it.
func (s *Store) Close() error {
	if !s.owned || s.backend.IsClosed() {
		return nil
	}
	return s.backend.Close()
}
