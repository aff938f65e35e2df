// Package storage defines the interval store that persists time entries and
// the query filter shared by all backends.
package storage

import (
	"context"
	"errors"
	"sort"
	"time"

	"github.com/Tiliavir/time-tracking-app/internal/model"
)

var (
	// ErrNotFound is returned when no entry has the requested id.
	ErrNotFound = errors.New("entry not found")
	// ErrAlreadyClosed is returned by CloseEntry when the entry has been
	// clocked out in the meantime.
	ErrAlreadyClosed = errors.New("entry already clocked out")
	// ErrInvalidInterval is returned when a clock-out precedes its clock-in.
	ErrInvalidInterval = errors.New("clock-out before clock-in")
)

// Store persists time entries. Implementations must make CloseEntry atomic:
// it sets ClockOut only while the entry is still open.
type Store interface {
	// Insert adds a new entry. The entry's ID must be unique.
	Insert(ctx context.Context, entry model.Entry) error
	// Update replaces an existing entry.
	Update(ctx context.Context, entry model.Entry) error
	// LatestOpen returns the open entry with the highest clock-in, or nil.
	LatestOpen(ctx context.Context) (*model.Entry, error)
	// CloseEntry sets the clock-out of an open entry and returns it.
	CloseEntry(ctx context.Context, id string, at time.Time) (model.Entry, error)
	// Find returns the entries matching f.
	Find(ctx context.Context, f Filter) ([]model.Entry, error)
	// Delete removes an entry.
	Delete(ctx context.Context, id string) error
	Close() error
}

// Order selects the clock-in ordering of query results.
type Order int

const (
	Ascending Order = iota
	Descending
)

// Filter restricts Find results. Zero-valued fields do not filter.
type Filter struct {
	// ClockInFrom is an inclusive lower bound on ClockIn.
	ClockInFrom time.Time
	// ClockInTo is an exclusive upper bound on ClockIn.
	ClockInTo time.Time
	// ClockOutBefore keeps only closed entries whose ClockOut is strictly before it.
	ClockOutBefore time.Time
	// ClosedOnly keeps only entries that have been clocked out.
	ClosedOnly bool
	ExternalID string
	Order      Order
}

// Match reports whether e satisfies every condition of f.
func (f Filter) Match(e model.Entry) bool {
	if !f.ClockInFrom.IsZero() && e.ClockIn.Before(f.ClockInFrom) {
		return false
	}
	if !f.ClockInTo.IsZero() && !e.ClockIn.Before(f.ClockInTo) {
		return false
	}
	if (f.ClosedOnly || !f.ClockOutBefore.IsZero()) && e.ClockOut == nil {
		return false
	}
	if !f.ClockOutBefore.IsZero() && !e.ClockOut.Before(f.ClockOutBefore) {
		return false
	}
	if f.ExternalID != "" && e.ExternalID != f.ExternalID {
		return false
	}
	return true
}

// Apply filters entries in place and sorts them by clock-in in f.Order.
// Entries with equal clock-in keep their relative order.
func (f Filter) Apply(entries []model.Entry) []model.Entry {
	out := entries[:0]
	for _, e := range entries {
		if f.Match(e) {
			out = append(out, e)
		}
	}
	SortByClockIn(out, f.Order)
	return out
}

// SortByClockIn sorts entries by clock-in, stable for ties.
func SortByClockIn(entries []model.Entry, order Order) {
	sort.SliceStable(entries, func(i, j int) bool {
		if order == Descending {
			return entries[i].ClockIn.After(entries[j].ClockIn)
		}
		return entries[i].ClockIn.Before(entries[j].ClockIn)
	})
}

// LatestOpen picks the open entry with the highest clock-in from entries.
func LatestOpen(entries []model.Entry) *model.Entry {
	var latest *model.Entry
	for i := range entries {
		e := entries[i]
		if !e.IsOpen() {
			continue
		}
		if latest == nil || e.ClockIn.After(latest.ClockIn) {
			latest = &e
		}
	}
	return latest
}

// Closed returns a copy of e clocked out at at, validating the interval.
func Closed(e model.Entry, at time.Time) (model.Entry, error) {
	if !e.IsOpen() {
		return e, ErrAlreadyClosed
	}
	if at.Before(e.ClockIn) {
		return e, ErrInvalidInterval
	}
	e.ClockOut = &at
	return e, nil
}
