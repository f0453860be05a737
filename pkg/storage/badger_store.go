package storage

import (
	"cmp"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"time"

	badger "github.com/dgraph-io/badger/v4"
	"github.com/sirupsen/logrus"

	"github.com/Sriram-PR/statifier/pkg/log"
	"github.com/Sriram-PR/statifier/pkg/models"
	"github.com/Sriram-PR/statifier/pkg/utils"
)

const (
	statificationKeyPrefix = "statification:" // Prefix for record keys, followed by the commit
	statificationDBDir     = "statifications" // Subdirectory name within stateDir for Badger DB files
)

// BadgerStore implements Store using BadgerDB
type BadgerStore struct {
	db  *badger.DB
	log *logrus.Entry
}

// NewBadgerStore opens (creating if needed) the record database under stateDir
func NewBadgerStore(stateDir string, logger *logrus.Entry) (*BadgerStore, error) {
	dbPath := filepath.Join(stateDir, statificationDBDir)
	logger.Infof("Opening statification database at: %s", dbPath)

	if err := os.MkdirAll(dbPath, 0755); err != nil {
		return nil, fmt.Errorf("%w: cannot create state directory %s: %w", utils.ErrFilesystem, dbPath, err)
	}

	badgerLogger := log.NewBadgerLogrusAdapter(logger.WithField("component", "badgerdb"))
	opts := badger.DefaultOptions(dbPath).
		WithLogger(badgerLogger).
		WithNumVersionsToKeep(1)

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to open badger database at %s: %w", utils.ErrDatabase, dbPath, err)
	}
	return &BadgerStore{db: db, log: logger}, nil
}

func recordKey(commit string) []byte {
	return []byte(statificationKeyPrefix + commit)
}

const maxConflictRetries = 10

// dbUpdate wraps db.Update with a retry loop for BadgerDB transaction conflicts
func (s *BadgerStore) dbUpdate(fn func(txn *badger.Txn) error) error {
	for i := range maxConflictRetries {
		err := s.db.Update(fn)
		if !errors.Is(err, badger.ErrConflict) {
			return err
		}
		s.log.Debugf("BadgerDB transaction conflict (attempt %d/%d), retrying", i+1, maxConflictRetries)
	}
	return fmt.Errorf("%w: transaction conflict not resolved after %d retries", utils.ErrDatabase, maxConflictRetries)
}

// Put implements StatificationStore
func (s *BadgerStore) Put(st *models.Statification) error {
	if st == nil {
		return fmt.Errorf("%w: nil statification", utils.ErrDatabase)
	}
	if !st.Status.IsValid() {
		return fmt.Errorf("%w: invalid status %q", utils.ErrDatabase, st.Status)
	}
	value, err := json.Marshal(st)
	if err != nil {
		return fmt.Errorf("%w: failed to marshal statification '%s': %w", utils.ErrParsing, st.Commit, err)
	}

	key := recordKey(st.Commit)
	err = s.dbUpdate(func(txn *badger.Txn) error {
		return txn.SetEntry(badger.NewEntry(key, value))
	})
	if err != nil {
		return fmt.Errorf("%w: failed storing statification '%s': %w", utils.ErrDatabase, st.Commit, err)
	}
	s.log.Debugf("Stored statification '%s' (%s)", st.Commit, st.Status)
	return nil
}

// Get implements StatificationStore
func (s *BadgerStore) Get(commit string) (*models.Statification, error) {
	var st models.Statification
	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(recordKey(commit))
		if errors.Is(err, badger.ErrKeyNotFound) {
			return fmt.Errorf("%w: statification '%s'", utils.ErrNotFound, commit)
		}
		if err != nil {
			return fmt.Errorf("%w: failed getting statification '%s': %w", utils.ErrDatabase, commit, err)
		}
		return item.Value(func(val []byte) error {
			if err := json.Unmarshal(val, &st); err != nil {
				return fmt.Errorf("%w: decoding statification '%s': %w", utils.ErrParsing, commit, err)
			}
			return nil
		})
	})
	if err != nil {
		return nil, err
	}
	return &st, nil
}

// Delete implements StatificationStore
func (s *BadgerStore) Delete(commit string) error {
	err := s.dbUpdate(func(txn *badger.Txn) error {
		return txn.Delete(recordKey(commit))
	})
	if err != nil {
		return fmt.Errorf("%w: failed deleting statification '%s': %w", utils.ErrDatabase, commit, err)
	}
	return nil
}

// List implements StatificationStore
func (s *BadgerStore) List() ([]*models.Statification, error) {
	var records []*models.Statification
	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = []byte(statificationKeyPrefix)
		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Rewind(); it.Valid(); it.Next() {
			item := it.Item()
			err := item.Value(func(val []byte) error {
				var st models.Statification
				if err := json.Unmarshal(val, &st); err != nil {
					s.log.Warnf("Skipping undecodable record '%s': %v", string(item.Key()), err)
					return nil
				}
				records = append(records, &st)
				return nil
			})
			if err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("%w: listing statifications: %w", utils.ErrDatabase, err)
	}

	slices.SortStableFunc(records, func(a, b *models.Statification) int {
		return cmp.Compare(b.CreatedAt.UnixNano(), a.CreatedAt.UnixNano())
	})
	return records, nil
}

// Count implements StoreAdmin
func (s *BadgerStore) Count() (int, error) {
	count := 0
	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = false
		opts.Prefix = []byte(statificationKeyPrefix)
		it := txn.NewIterator(opts)
		defer it.Close()
		for it.Rewind(); it.Valid(); it.Next() {
			count++
		}
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("%w: counting statifications: %w", utils.ErrDatabase, err)
	}
	return count, nil
}

// RunGC implements StoreAdmin
func (s *BadgerStore) RunGC(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = 10 * time.Minute
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	s.log.Debug("BadgerDB GC goroutine started.")
	for {
		select {
		case <-ticker.C:
			if s.db == nil || s.db.IsClosed() {
				continue
			}
			var err error
			// Loop GC until it returns ErrNoRewrite or another error
			for err == nil {
				err = s.db.RunValueLogGC(0.5)
			}
			if !errors.Is(err, badger.ErrNoRewrite) {
				s.log.Errorf("BadgerDB GC error: %v", err)
			}
		case <-ctx.Done():
			s.log.Debugf("Stopping BadgerDB garbage collection: %v", ctx.Err())
			return
		}
	}
}

// Close implements StoreAdmin
func (s *BadgerStore) Close() error {
	if s.db == nil || s.db.IsClosed() {
		return nil
	}
	if err := s.db.Close(); err != nil {
		s.log.Errorf("Error closing statification DB: %v", err)
		return fmt.Errorf("%w: closing database: %w", utils.ErrDatabase, err)
	}
	s.log.Info("Statification DB closed.")
	return nil
}
