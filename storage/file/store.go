package file

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/poiesic/agentmatrix/core"
	"github.com/poiesic/agentmatrix/storage"
)

const (
	collectionExt = ".json"
	logExt        = ".jsonl"
	messagesDir   = "messages"
	indexDir      = "index"
)

// Store keeps collections as JSON files below a data directory.
type Store struct {
	dir    string
	logger *slog.Logger
	closed atomic.Bool

	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

var _ storage.CollectionStore = (*Store)(nil)

// Option configures a Store.
type Option func(*Store)

// WithLogger sets a custom logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Store) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// NewStore opens (creating if needed) a data directory.
func NewStore(dir string, opts ...Option) (storage.CollectionStore, error) {
	return newStore(dir, opts...)
}

func newStore(dir string, opts ...Option) (*Store, error) {
	if dir == "" {
		return nil, errors.New("data directory required")
	}
	for _, d := range []string{dir, filepath.Join(dir, indexDir), filepath.Join(dir, messagesDir)} {
		if err := os.MkdirAll(d, 0o755); err != nil {
			return nil, fmt.Errorf("%w: %w", storage.ErrStoreIO, err)
		}
	}

	s := &Store{
		dir:    dir,
		logger: slog.Default(),
		locks:  make(map[string]*sync.Mutex),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.logger = s.logger.With("component", "file-store", "dir", dir)
	return s, nil
}

// lock returns the mutex guarding one collection or log.
func (s *Store) lock(key string) *sync.Mutex {
	s.mu.Lock()
	defer s.mu.Unlock()
	l, ok := s.locks[key]
	if !ok {
		l = &sync.Mutex{}
		s.locks[key] = l
	}
	return l
}

func (s *Store) check(ctx context.Context, name string) error {
	if s.closed.Load() {
		return storage.ErrStorageClosed
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	return storage.ValidateName(name)
}

func (s *Store) collectionPath(name string) string {
	return filepath.Join(s.dir, filepath.FromSlash(name)+collectionExt)
}

func (s *Store) logPath(name string) string {
	return filepath.Join(s.dir, messagesDir, filepath.FromSlash(name)+logExt)
}

// readCollection returns the document and its digest, or ErrNotFound.
func (s *Store) readCollection(name string) ([]byte, storage.Revision, error) {
	data, err := os.ReadFile(s.collectionPath(name))
	if errors.Is(err, fs.ErrNotExist) {
		return nil, storage.NoRevision, storage.ErrNotFound
	}
	if err != nil {
		return nil, storage.NoRevision, fmt.Errorf("%w: reading %s: %w", storage.ErrStoreIO, name, err)
	}
	return data, storage.Revision(core.Digest(data)), nil
}

// LoadCollection reads a collection file.
func (s *Store) LoadCollection(ctx context.Context, name string) ([]byte, storage.Revision, error) {
	if err := s.check(ctx, name); err != nil {
		return nil, storage.NoRevision, err
	}
	return s.readCollection(name)
}

// SaveCollection replaces a collection file if its digest still matches expected.
func (s *Store) SaveCollection(ctx context.Context, name string, data []byte, expected storage.Revision) (storage.Revision, error) {
	if err := s.check(ctx, name); err != nil {
		return storage.NoRevision, err
	}

	l := s.lock("col:" + name)
	l.Lock()
	defer l.Unlock()

	_, current, err := s.readCollection(name)
	if err != nil && !errors.Is(err, storage.ErrNotFound) {
		return storage.NoRevision, err
	}
	if current != expected {
		s.logger.Warn("revision conflict", "collection", name, "expected", expected, "current", current)
		return storage.NoRevision, fmt.Errorf("%w: %s", storage.ErrConflict, name)
	}

	if err := writeAtomic(s.collectionPath(name), data); err != nil {
		return storage.NoRevision, fmt.Errorf("%w: writing %s: %w", storage.ErrStoreIO, name, err)
	}

	rev := storage.Revision(core.Digest(data))
	s.logger.Debug("collection saved", "collection", name, "bytes", len(data), "revision", rev)
	return rev, nil
}

// writeAtomic writes data next to path and renames it into place.
func writeAtomic(path string, data []byte) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".*.tmp")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	cleanup := func() {
		_ = os.Remove(tmpName)
	}

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		cleanup()
		return err
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		cleanup()
		return err
	}
	if err := tmp.Close(); err != nil {
		cleanup()
		return err
	}
	if err := os.Chmod(tmpName, 0o644); err != nil {
		cleanup()
		return err
	}
	if err := os.Rename(tmpName, path); err != nil {
		cleanup()
		return err
	}
	return nil
}

// AppendLog writes one line to the end of a log file.
func (s *Store) AppendLog(ctx context.Context, name string, entry []byte) error {
	if err := s.check(ctx, name); err != nil {
		return err
	}
	if bytes.ContainsAny(entry, "\r\n") {
		return fmt.Errorf("%w: log entry contains a line break", storage.ErrSerializationFailed)
	}

	l := s.lock("log:" + name)
	l.Lock()
	defer l.Unlock()

	path := s.logPath(name)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("%w: %w", storage.ErrStoreIO, err)
	}
	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("%w: opening %s: %w", storage.ErrStoreIO, name, err)
	}

	line := make([]byte, 0, len(entry)+1)
	line = append(line, entry...)
	line = append(line, '\n')
	if _, err := f.Write(line); err != nil {
		f.Close()
		return fmt.Errorf("%w: appending to %s: %w", storage.ErrStoreIO, name, err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("%w: closing %s: %w", storage.ErrStoreIO, name, err)
	}
	return nil
}

// ReadLog returns every non-blank line of a log file.
func (s *Store) ReadLog(ctx context.Context, name string) ([][]byte, error) {
	if err := s.check(ctx, name); err != nil {
		return nil, err
	}
	return s.readLog(name)
}

// TailLog returns the last n lines of a log file.
func (s *Store) TailLog(ctx context.Context, name string, n int) ([][]byte, error) {
	if err := s.check(ctx, name); err != nil {
		return nil, err
	}
	if n <= 0 {
		return [][]byte{}, nil
	}
	entries, err := s.readLog(name)
	if err != nil {
		return nil, err
	}
	if len(entries) > n {
		entries = entries[len(entries)-n:]
	}
	return entries, nil
}

func (s *Store) readLog(name string) ([][]byte, error) {
	f, err := os.Open(s.logPath(name))
	if errors.Is(err, fs.ErrNotExist) {
		return [][]byte{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("%w: opening %s: %w", storage.ErrStoreIO, name, err)
	}
	defer f.Close()

	entries := [][]byte{}
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 64*1024*1024)
	for scanner.Scan() {
		line := scanner.Text()
		if strings.TrimSpace(line) == "" {
			continue
		}
		entries = append(entries, []byte(line))
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("%w: reading %s: %w", storage.ErrStoreIO, name, err)
	}
	return entries, nil
}

// Close marks the store closed. Files need no flushing.
func (s *Store) Close() error {
	s.closed.Store(true)
	return nil
}
