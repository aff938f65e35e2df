// Package filestore keeps time entries in human-readable JSON files, one
// file per clock-in day, laid out as <base>/YYYY/MM/DD.json.
package filestore

import (
	"context"
	"encoding/json"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/Tiliavir/time-tracking-app/internal/model"
	"github.com/Tiliavir/time-tracking-app/internal/storage"
	"github.com/Tiliavir/time-tracking-app/internal/timecalc"
)

// Store is a directory-of-day-files storage.Store. All operations hold a
// mutex, so read-modify-write sequences are atomic within the process.
type Store struct {
	base string
	loc  *time.Location
	mu   sync.Mutex
}

var _ storage.Store = (*Store)(nil)

// New returns a Store rooted at base. Entries are filed under the day of
// their clock-in in loc.
func New(base string, loc *time.Location) (*Store, error) {
	if err := os.MkdirAll(base, 0o700); err != nil {
		return nil, fmt.Errorf("storage error creating %s: %w", base, err)
	}
	if loc == nil {
		loc = time.Local
	}
	return &Store{base: base, loc: loc}, nil
}

// dayFilePath returns the path for the given date's JSON file.
func (s *Store) dayFilePath(t time.Time) string {
	t = t.In(s.loc)
	return filepath.Join(s.base, t.Format("2006"), t.Format("01"), t.Format("02")+".json")
}

// LoadDay loads the DayFile for the given date. Returns an empty DayFile if not found.
func (s *Store) LoadDay(t time.Time) (model.DayFile, error) {
	return s.loadFile(s.dayFilePath(t), timecalc.DateKey(t, s.loc))
}

func (s *Store) loadFile(path, date string) (model.DayFile, error) {
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return model.DayFile{Date: date, Entries: []model.Entry{}}, nil
	}
	if err != nil {
		return model.DayFile{}, fmt.Errorf("storage error reading %s: %w", path, err)
	}

	var df model.DayFile
	if err := json.Unmarshal(data, &df); err != nil {
		// Back up corrupt file and abort.
		backupPath := path + ".corrupt"
		_ = os.Rename(path, backupPath)
		return model.DayFile{}, fmt.Errorf("corrupt JSON in %s (backed up to %s): %w", path, backupPath, err)
	}
	return df, nil
}

// saveDay atomically writes a DayFile for the given date. An empty day
// removes its file.
func (s *Store) saveDay(t time.Time, df model.DayFile) error {
	path := s.dayFilePath(t)
	if len(df.Entries) == 0 {
		if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
			return fmt.Errorf("storage error removing %s: %w", path, err)
		}
		return nil
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return fmt.Errorf("storage error creating directories: %w", err)
	}

	data, err := json.MarshalIndent(df, "", "  ")
	if err != nil {
		return fmt.Errorf("storage error marshalling JSON: %w", err)
	}

	// Atomic write: write to temp file then rename.
	tmpPath := path + ".tmp"
	if err := os.WriteFile(tmpPath, data, 0o600); err != nil {
		return fmt.Errorf("storage error writing temp file: %w", err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		_ = os.Remove(tmpPath)
		return fmt.Errorf("storage error renaming temp file: %w", err)
	}
	return nil
}

// all loads every entry of every day file, oldest day first.
func (s *Store) all() ([]model.Entry, error) {
	var entries []model.Entry
	err := filepath.WalkDir(s.base, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() || !strings.HasSuffix(path, ".json") {
			return nil
		}
		df, err := s.loadFile(path, "")
		if err != nil {
			return err
		}
		entries = append(entries, df.Entries...)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("storage error scanning %s: %w", s.base, err)
	}
	return entries, nil
}

// locate finds the entry with id and returns it with its clock-in day.
func (s *Store) locate(id string) (model.Entry, error) {
	entries, err := s.all()
	if err != nil {
		return model.Entry{}, err
	}
	for _, e := range entries {
		if e.ID == id {
			return e, nil
		}
	}
	return model.Entry{}, storage.ErrNotFound
}

// upsert replaces or appends an entry in the DayFile of its clock-in day.
func (s *Store) upsert(entry model.Entry) error {
	df, err := s.LoadDay(entry.ClockIn)
	if err != nil {
		return err
	}
	for i, e := range df.Entries {
		if e.ID == entry.ID {
			df.Entries[i] = entry
			return s.saveDay(entry.ClockIn, df)
		}
	}
	df.Entries = append(df.Entries, entry)
	return s.saveDay(entry.ClockIn, df)
}

// remove drops the entry with id from the day file of day.
func (s *Store) remove(day time.Time, id string) error {
	df, err := s.LoadDay(day)
	if err != nil {
		return err
	}
	kept := df.Entries[:0]
	for _, e := range df.Entries {
		if e.ID != id {
			kept = append(kept, e)
		}
	}
	df.Entries = kept
	return s.saveDay(day, df)
}

func (s *Store) Insert(_ context.Context, entry model.Entry) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, err := s.locate(entry.ID); err == nil {
		return fmt.Errorf("inserting entry %s: duplicate id", entry.ID)
	}
	return s.upsert(entry)
}

func (s *Store) Update(_ context.Context, entry model.Entry) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	current, err := s.locate(entry.ID)
	if err != nil {
		return err
	}
	if s.dayFilePath(current.ClockIn) != s.dayFilePath(entry.ClockIn) {
		if err := s.remove(current.ClockIn, entry.ID); err != nil {
			return err
		}
	}
	return s.upsert(entry)
}

func (s *Store) LatestOpen(_ context.Context) (*model.Entry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	entries, err := s.all()
	if err != nil {
		return nil, err
	}
	return storage.LatestOpen(entries), nil
}

func (s *Store) CloseEntry(_ context.Context, id string, at time.Time) (model.Entry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	current, err := s.locate(id)
	if err != nil {
		return model.Entry{}, err
	}
	closed, err := storage.Closed(current, at)
	if err != nil {
		return model.Entry{}, err
	}
	if err := s.upsert(closed); err != nil {
		return model.Entry{}, err
	}
	return closed, nil
}

func (s *Store) Find(_ context.Context, f storage.Filter) ([]model.Entry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	entries, err := s.all()
	if err != nil {
		return nil, err
	}
	return f.Apply(entries), nil
}

func (s *Store) Delete(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	current, err := s.locate(id)
	if err != nil {
		return err
	}
	return s.remove(current.ClockIn, id)
}

func (s *Store) Close() error { return nil }
