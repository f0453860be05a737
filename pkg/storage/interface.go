package storage

import (
	"context"
	"time"

	"github.com/Sriram-PR/statifier/pkg/models"
)

// StatificationStore keeps statification records keyed by commit.
// The empty commit identifies the statification in progress.
type StatificationStore interface {
	// Put creates or replaces the record stored under s.Commit
	Put(s *models.Statification) error

	// Get returns the record for commit, or an error wrapping utils.ErrNotFound
	Get(commit string) (*models.Statification, error)

	// Delete removes the record for commit. Deleting a missing record is not an error.
	Delete(commit string) error

	// List returns every record, most recently created first
	List() ([]*models.Statification, error)
}

// StoreAdmin handles lifecycle and administrative operations
type StoreAdmin interface {
	// Count returns the number of stored records
	Count() (int, error)

	// RunGC runs periodic garbage collection. Should be run in a goroutine
	RunGC(ctx context.Context, interval time.Duration)

	// Close cleanly closes the database connection
	Close() error
}

// Store combines all store interfaces for components that need full access
type Store interface {
	StatificationStore
	StoreAdmin
}
