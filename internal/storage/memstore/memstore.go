// Package memstore is an in-process storage.Store used by tests and the
// memory:// connection string.
package memstore

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/Tiliavir/time-tracking-app/internal/model"
	"github.com/Tiliavir/time-tracking-app/internal/storage"
)

// Store keeps entries in insertion order behind a mutex.
type Store struct {
	mu      sync.Mutex
	entries []model.Entry
}

var _ storage.Store = (*Store)(nil)

// New returns an empty Store.
func New() *Store {
	return &Store{}
}

func (s *Store) Insert(_ context.Context, entry model.Entry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.indexOf(entry.ID) >= 0 {
		return fmt.Errorf("inserting entry %s: duplicate id", entry.ID)
	}
	s.entries = append(s.entries, entry)
	return nil
}

func (s *Store) Update(_ context.Context, entry model.Entry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	i := s.indexOf(entry.ID)
	if i < 0 {
		return storage.ErrNotFound
	}
	s.entries[i] = entry
	return nil
}

func (s *Store) LatestOpen(_ context.Context) (*model.Entry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return storage.LatestOpen(s.entries), nil
}

func (s *Store) CloseEntry(_ context.Context, id string, at time.Time) (model.Entry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	i := s.indexOf(id)
	if i < 0 {
		return model.Entry{}, storage.ErrNotFound
	}
	closed, err := storage.Closed(s.entries[i], at)
	if err != nil {
		return model.Entry{}, err
	}
	s.entries[i] = closed
	return closed, nil
}

func (s *Store) Find(_ context.Context, f storage.Filter) ([]model.Entry, error) {
	s.mu.Lock()
	snapshot := append([]model.Entry(nil), s.entries...)
	s.mu.Unlock()
	return f.Apply(snapshot), nil
}

func (s *Store) Delete(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	i := s.indexOf(id)
	if i < 0 {
		return storage.ErrNotFound
	}
	s.entries = append(s.entries[:i], s.entries[i+1:]...)
	return nil
}

func (s *Store) Close() error { return nil }

func (s *Store) indexOf(id string) int {
	for i := range s.entries {
		if s.entries[i].ID == id {
			return i
		}
	}
	return -1
}
