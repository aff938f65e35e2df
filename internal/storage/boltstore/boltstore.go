// Package boltstore keeps time entries as JSON documents in a BoltDB file.
package boltstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	bolt "go.etcd.io/bbolt"

	"github.com/Tiliavir/time-tracking-app/internal/model"
	"github.com/Tiliavir/time-tracking-app/internal/storage"
)

var (
	entriesBucket = []byte("entries")
	// openBucket indexes the ids of entries that have no clock-out yet, so
	// that status lookups do not scan the whole log.
	openBucket = []byte("open")
)

var errLocked = errors.New(
	"database is locked: is another instance already using it?",
)

// Store is a BoltDB-backed storage.Store.
type Store struct {
	db *bolt.DB
}

var _ storage.Store = (*Store)(nil)

// Open creates or opens the database at path and prepares its buckets.
func Open(path string) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return nil, fmt.Errorf("creating database directory: %w", err)
	}

	var fileMode fs.FileMode = 0o600

	db, err := bolt.Open(path, fileMode, &bolt.Options{Timeout: 1 * time.Second})
	if err != nil {
		if errors.Is(err, bolt.ErrTimeout) || errors.Is(err, bolt.ErrDatabaseOpen) {
			return nil, errLocked
		}
		return nil, fmt.Errorf("opening bolt database %s: %w", path, err)
	}

	err = db.Update(func(tx *bolt.Tx) error {
		if _, err := tx.CreateBucketIfNotExists(entriesBucket); err != nil {
			return err
		}
		_, err := tx.CreateBucketIfNotExists(openBucket)
		return err
	})
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("creating buckets: %w", err)
	}

	return &Store{db: db}, nil
}

func (s *Store) Insert(_ context.Context, entry model.Entry) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(entriesBucket)
		if b.Get([]byte(entry.ID)) != nil {
			return fmt.Errorf("inserting entry %s: duplicate id", entry.ID)
		}
		return put(tx, entry)
	})
}

func (s *Store) Update(_ context.Context, entry model.Entry) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		if tx.Bucket(entriesBucket).Get([]byte(entry.ID)) == nil {
			return storage.ErrNotFound
		}
		return put(tx, entry)
	})
}

func (s *Store) LatestOpen(_ context.Context) (*model.Entry, error) {
	var open []model.Entry

	err := s.db.View(func(tx *bolt.Tx) error {
		entries := tx.Bucket(entriesBucket)
		return tx.Bucket(openBucket).ForEach(func(k, _ []byte) error {
			e, err := decode(entries.Get(k))
			if err != nil {
				return err
			}
			open = append(open, e)
			return nil
		})
	})
	if err != nil {
		return nil, fmt.Errorf("finding open entry: %w", err)
	}

	return storage.LatestOpen(open), nil
}

// CloseEntry runs in a single read-write transaction; bolt serialises
// writers, so two callers can never both close the same entry.
func (s *Store) CloseEntry(_ context.Context, id string, at time.Time) (model.Entry, error) {
	var closed model.Entry

	err := s.db.Update(func(tx *bolt.Tx) error {
		v := tx.Bucket(entriesBucket).Get([]byte(id))
		if v == nil {
			return storage.ErrNotFound
		}
		e, err := decode(v)
		if err != nil {
			return err
		}
		closed, err = storage.Closed(e, at)
		if err != nil {
			return err
		}
		return put(tx, closed)
	})

	return closed, err
}

func (s *Store) Find(_ context.Context, f storage.Filter) ([]model.Entry, error) {
	var entries []model.Entry

	err := s.db.View(func(tx *bolt.Tx) error {
		return tx.Bucket(entriesBucket).ForEach(func(_, v []byte) error {
			e, err := decode(v)
			if err != nil {
				return err
			}
			if f.Match(e) {
				entries = append(entries, e)
			}
			return nil
		})
	})
	if err != nil {
		return nil, fmt.Errorf("listing entries: %w", err)
	}

	storage.SortByClockIn(entries, f.Order)
	return entries, nil
}

func (s *Store) Delete(_ context.Context, id string) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(entriesBucket)
		if b.Get([]byte(id)) == nil {
			return storage.ErrNotFound
		}
		if err := b.Delete([]byte(id)); err != nil {
			return err
		}
		return tx.Bucket(openBucket).Delete([]byte(id))
	})
}

func (s *Store) Close() error {
	return s.db.Close()
}

// put writes the entry document and keeps the open index in sync.
func put(tx *bolt.Tx, e model.Entry) error {
	value, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("encoding entry %s: %w", e.ID, err)
	}

	key := []byte(e.ID)
	if err := tx.Bucket(entriesBucket).Put(key, value); err != nil {
		return err
	}

	if e.IsOpen() {
		return tx.Bucket(openBucket).Put(key, []byte(e.ClockIn.Format(time.RFC3339Nano)))
	}
	return tx.Bucket(openBucket).Delete(key)
}

func decode(v []byte) (model.Entry, error) {
	var e model.Entry
	if len(v) == 0 {
		return e, errors.New("dangling open index")
	}
	if err := json.Unmarshal(v, &e); err != nil {
		return e, fmt.Errorf("decoding entry: %w", err)
	}
	return e, nil
}
