// Package sqlitestore keeps time entries in a SQLite table.
package sqlitestore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"github.com/Tiliavir/time-tracking-app/internal/model"
	"github.com/Tiliavir/time-tracking-app/internal/storage"
)

var migrations = []string{
	`CREATE TABLE IF NOT EXISTS time_entries (
		id          TEXT PRIMARY KEY,
		clock_in    INTEGER NOT NULL,
		clock_out   INTEGER,
		source      TEXT NOT NULL DEFAULT '',
		external_id TEXT NOT NULL DEFAULT '',
		note        TEXT
	)`,
	`CREATE INDEX IF NOT EXISTS idx_time_entries_clock_in ON time_entries (clock_in)`,
	`CREATE INDEX IF NOT EXISTS idx_time_entries_open ON time_entries (clock_in) WHERE clock_out IS NULL`,
	`CREATE INDEX IF NOT EXISTS idx_time_entries_external_id ON time_entries (external_id)`,
}

// entryColumns is the canonical SELECT column list for time_entries.
const entryColumns = `id, clock_in, clock_out, source, external_id, note`

// Store is a SQLite-backed storage.Store. Timestamps are stored as Unix
// nanoseconds so that range predicates compare numerically.
type Store struct {
	db *sql.DB
}

var _ storage.Store = (*Store)(nil)

// Open opens the database at path (":memory:" for an in-memory database)
// and runs the migrations.
func Open(path string) (*Store, error) {
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
			return nil, fmt.Errorf("creating db directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}
	// A single connection serialises writers and keeps ":memory:" databases
	// shared across queries.
	db.SetMaxOpenConns(1)

	if path != ":memory:" {
		if _, err := db.Exec("PRAGMA journal_mode = WAL"); err != nil {
			db.Close()
			return nil, fmt.Errorf("setting WAL mode: %w", err)
		}
	}

	if err := migrate(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("running migrations: %w", err)
	}

	return &Store{db: db}, nil
}

func migrate(db *sql.DB) error {
	for i, stmt := range migrations {
		if _, err := db.Exec(stmt); err != nil {
			return fmt.Errorf("migration %d: %w", i, err)
		}
	}
	return nil
}

func (s *Store) Insert(ctx context.Context, e model.Entry) error {
	query := `INSERT INTO time_entries (` + entryColumns + `) VALUES (?, ?, ?, ?, ?, ?)`
	_, err := s.db.ExecContext(ctx, query,
		e.ID,
		e.ClockIn.UnixNano(),
		nullableTime(e.ClockOut),
		e.Source,
		e.ExternalID,
		nullableString(e.Note),
	)
	if err != nil {
		return fmt.Errorf("inserting time entry: %w", err)
	}
	return nil
}

func (s *Store) Update(ctx context.Context, e model.Entry) error {
	query := `UPDATE time_entries
		SET clock_in = ?, clock_out = ?, source = ?, external_id = ?, note = ?
		WHERE id = ?`
	res, err := s.db.ExecContext(ctx, query,
		e.ClockIn.UnixNano(),
		nullableTime(e.ClockOut),
		e.Source,
		e.ExternalID,
		nullableString(e.Note),
		e.ID,
	)
	if err != nil {
		return fmt.Errorf("updating time entry: %w", err)
	}
	return requireAffected(res)
}

func (s *Store) LatestOpen(ctx context.Context) (*model.Entry, error) {
	query := `SELECT ` + entryColumns + ` FROM time_entries
		WHERE clock_out IS NULL ORDER BY clock_in DESC LIMIT 1`
	e, err := scanEntry(s.db.QueryRowContext(ctx, query))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("finding open entry: %w", err)
	}
	return &e, nil
}

// CloseEntry only touches rows whose clock_out is still NULL, which makes
// concurrent clock-outs of the same entry mutually exclusive.
func (s *Store) CloseEntry(ctx context.Context, id string, at time.Time) (model.Entry, error) {
	query := `UPDATE time_entries SET clock_out = ?
		WHERE id = ? AND clock_out IS NULL AND clock_in <= ?`
	res, err := s.db.ExecContext(ctx, query, at.UnixNano(), id, at.UnixNano())
	if err != nil {
		return model.Entry{}, fmt.Errorf("closing time entry: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return model.Entry{}, fmt.Errorf("closing time entry: %w", err)
	}

	current, err := s.get(ctx, id)
	if err != nil {
		return model.Entry{}, err
	}
	if n == 1 {
		return current, nil
	}
	if current.IsOpen() {
		return model.Entry{}, storage.ErrInvalidInterval
	}
	return model.Entry{}, storage.ErrAlreadyClosed
}

func (s *Store) Find(ctx context.Context, f storage.Filter) ([]model.Entry, error) {
	var (
		conds []string
		args  []any
	)
	if !f.ClockInFrom.IsZero() {
		conds = append(conds, "clock_in >= ?")
		args = append(args, f.ClockInFrom.UnixNano())
	}
	if !f.ClockInTo.IsZero() {
		conds = append(conds, "clock_in < ?")
		args = append(args, f.ClockInTo.UnixNano())
	}
	if f.ClosedOnly {
		conds = append(conds, "clock_out IS NOT NULL")
	}
	if !f.ClockOutBefore.IsZero() {
		conds = append(conds, "clock_out < ?")
		args = append(args, f.ClockOutBefore.UnixNano())
	}
	if f.ExternalID != "" {
		conds = append(conds, "external_id = ?")
		args = append(args, f.ExternalID)
	}

	query := `SELECT ` + entryColumns + ` FROM time_entries`
	if len(conds) > 0 {
		query += ` WHERE ` + strings.Join(conds, " AND ")
	}
	if f.Order == storage.Descending {
		query += ` ORDER BY clock_in DESC, rowid DESC`
	} else {
		query += ` ORDER BY clock_in ASC, rowid ASC`
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("listing time entries: %w", err)
	}
	defer rows.Close()

	var entries []model.Entry
	for rows.Next() {
		e, err := scanEntry(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning time entry: %w", err)
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

func (s *Store) Delete(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM time_entries WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("deleting time entry: %w", err)
	}
	return requireAffected(res)
}

func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) get(ctx context.Context, id string) (model.Entry, error) {
	query := `SELECT ` + entryColumns + ` FROM time_entries WHERE id = ?`
	e, err := scanEntry(s.db.QueryRowContext(ctx, query, id))
	if errors.Is(err, sql.ErrNoRows) {
		return model.Entry{}, storage.ErrNotFound
	}
	if err != nil {
		return model.Entry{}, fmt.Errorf("loading time entry: %w", err)
	}
	return e, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanEntry(row scanner) (model.Entry, error) {
	var (
		e        model.Entry
		clockIn  int64
		clockOut sql.NullInt64
		note     sql.NullString
	)
	if err := row.Scan(&e.ID, &clockIn, &clockOut, &e.Source, &e.ExternalID, &note); err != nil {
		return model.Entry{}, err
	}
	e.ClockIn = time.Unix(0, clockIn)
	if clockOut.Valid {
		out := time.Unix(0, clockOut.Int64)
		e.ClockOut = &out
	}
	if note.Valid {
		e.Note = &note.String
	}
	return e, nil
}

func requireAffected(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("checking affected rows: %w", err)
	}
	if n == 0 {
		return storage.ErrNotFound
	}
	return nil
}

func nullableTime(t *time.Time) any {
	if t == nil {
		return nil
	}
	return t.UnixNano()
}

func nullableString(s *string) any {
	if s == nil {
		return nil
	}
	return *s
}
