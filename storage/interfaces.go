package storage

import (
	"context"
	"fmt"
	"regexp"
)

// Revision identifies the stored content of a collection. NoRevision means
// the collection does not exist.
type Revision string

// NoRevision is the revision of a collection that has never been saved.
const NoRevision Revision = ""

// CollectionStore persists whole JSON collections and append-only logs.
// Implementations must be thread-safe and support concurrent access.
type CollectionStore interface {
	// LoadCollection returns the raw document and its revision.
	// Returns ErrNotFound if the collection was never saved.
	LoadCollection(ctx context.Context, name string) ([]byte, Revision, error)

	// SaveCollection replaces the document if the stored revision still equals
	// expected, and returns the new revision. Returns ErrConflict otherwise.
	// A failed save leaves the previous document intact and visible.
	SaveCollection(ctx context.Context, name string, data []byte, expected Revision) (Revision, error)

	// AppendLog adds one entry to the end of the named log, creating it if needed.
	AppendLog(ctx context.Context, name string, entry []byte) error

	// ReadLog returns every entry of the named log in append order.
	// A log that does not exist is empty.
	ReadLog(ctx context.Context, name string) ([][]byte, error)

	// TailLog returns the last n entries of the named log in append order.
	// n <= 0 yields an empty result.
	TailLog(ctx context.Context, name string, n int) ([][]byte, error)

	// Close closes the storage backend and releases resources.
	Close() error
}

var namePattern = regexp.MustCompile(`^[A-Za-z0-9_-]+(/[A-Za-z0-9_-]+)*$`)

// ValidateName rejects names that could escape a backend's namespace.
func ValidateName(name string) error {
	if !namePattern.MatchString(name) {
		return fmt.Errorf("%w: %q", ErrInvalidName, name)
	}
	return nil
}
