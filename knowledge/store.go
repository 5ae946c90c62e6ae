package knowledge

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/poiesic/agentmatrix/credential"
	"github.com/poiesic/agentmatrix/storage"
)

// Collection names as laid out on disk by the file backend.
const (
	usersCollection         = "users"
	agentsCollection        = "agents"
	conversationsCollection = "conversations"

	indexRevisionsCollection  = "index/revisions"
	agentsByTenantIndex       = "index/agents_by_tenant"
	agentsByOwnerIndex        = "index/agents_by_user"
	conversationsByAgentIndex = "index/conversations_by_agent"
	conversationsByUserIndex  = "index/conversations_by_user"

	messageLogPrefix = "conv_"
)

const (
	defaultMaxAttempts = 8
	defaultRetryDelay  = 5 * time.Millisecond
)

// Store persists the knowledge model in a storage.CollectionStore.
// It is safe for concurrent use.
type Store struct {
	backend     storage.CollectionStore
	logger      *slog.Logger
	maxAttempts int
	retryDelay  time.Duration
	hashRounds  int

	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

// Option configures a Store.
type Option func(*Store) error

// WithLogger sets a custom logger.
// Default is slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(s *Store) error {
		if logger == nil {
			logger = slog.Default()
		}
		s.logger = logger
		return nil
	}
}

// WithRetry bounds how often a read-modify-write is re-run after a revision conflict.
func WithRetry(maxAttempts int, baseDelay time.Duration) Option {
	return func(s *Store) error {
		if maxAttempts < 1 {
			return fmt.Errorf("maxAttempts must be at least 1, got %d", maxAttempts)
		}
		if baseDelay < 0 {
			return errors.New("retry delay cannot be negative")
		}
		s.maxAttempts = maxAttempts
		s.retryDelay = baseDelay
		return nil
	}
}

// WithHashRounds sets the PBKDF2 iteration count for new password hashes.
// Default is credential.DefaultRounds.
func WithHashRounds(rounds int) Option {
	return func(s *Store) error {
		if rounds < 1 {
			return fmt.Errorf("hash rounds must be positive, got %d", rounds)
		}
		s.hashRounds = rounds
		return nil
	}
}

// NewStore creates a knowledge store on top of a collection store.
// The knowledge store does not own the backend; close it separately.
func NewStore(backend storage.CollectionStore, opts ...Option) (*Store, error) {
	if backend == nil {
		return nil, ErrStoreRequired
	}
	s := &Store{
		backend:     backend,
		logger:      slog.Default(),
		maxAttempts: defaultMaxAttempts,
		retryDelay:  defaultRetryDelay,
		hashRounds:  credential.DefaultRounds,
		locks:       make(map[string]*sync.Mutex),
	}
	for _, opt := range opts {
		if err := opt(s); err != nil {
			return nil, err
		}
	}
	s.logger = s.logger.With("component", "knowledge-store")
	return s, nil
}

// lock returns the in-process writer lock of a collection.
func (s *Store) lock(name string) *sync.Mutex {
	s.mu.Lock()
	defer s.mu.Unlock()
	l, ok := s.locks[name]
	if !ok {
		l = &sync.Mutex{}
		s.locks[name] = l
	}
	return l
}

// document is a collection body that can repair its zero value after decoding.
type document[T any] interface {
	*T
	normalize()
}

// loadDoc decodes a collection. A collection that was never saved decodes as empty.
func loadDoc[T any, P document[T]](ctx context.Context, backend storage.CollectionStore, name string) (P, storage.Revision, error) {
	var doc P = new(T)
	data, rev, err := backend.LoadCollection(ctx, name)
	switch {
	case errors.Is(err, storage.ErrNotFound):
		rev = storage.NoRevision
	case err != nil:
		return nil, storage.NoRevision, fmt.Errorf("loading %s: %w", name, err)
	default:
		if err := storage.Unmarshal(data, doc); err != nil {
			return nil, storage.NoRevision, fmt.Errorf("decoding %s: %w", name, err)
		}
	}
	doc.normalize()
	return doc, rev, nil
}

// update runs a read-modify-write of one collection. fn sees a freshly loaded
// document on every attempt; an error from fn aborts without writing.
// It returns the committed document and its new revision. Callers hold the collection lock.
func update[T any, P document[T]](ctx context.Context, s *Store, name string, fn func(doc P) error) (P, storage.Revision, error) {
	for attempt := 1; ; attempt++ {
		doc, rev, err := loadDoc[T, P](ctx, s.backend, name)
		if err != nil {
			return nil, storage.NoRevision, err
		}
		if err := fn(doc); err != nil {
			return nil, storage.NoRevision, err
		}
		data, err := storage.MarshalDocument(doc)
		if err != nil {
			return nil, storage.NoRevision, fmt.Errorf("encoding %s: %w", name, err)
		}

		newRev, err := s.backend.SaveCollection(ctx, name, data, rev)
		if err == nil {
			s.logger.Debug("collection written", "collection", name, "attempt", attempt)
			return doc, newRev, nil
		}
		if !errors.Is(err, storage.ErrConflict) || attempt >= s.maxAttempts {
			return nil, storage.NoRevision, fmt.Errorf("saving %s: %w", name, err)
		}

		s.logger.Warn("collection changed underneath, retrying", "collection", name, "attempt", attempt)
		delay := s.retryDelay * time.Duration(1<<(attempt-1))
		select {
		case <-ctx.Done():
			return nil, storage.NoRevision, ctx.Err()
		case <-time.After(delay):
		}
	}
}
