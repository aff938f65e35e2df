// Package session starts and stops clock-in sessions on top of an
// interval store.
package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/Tiliavir/time-tracking-app/internal/model"
	"github.com/Tiliavir/time-tracking-app/internal/storage"
)

// ErrNoActiveSession is returned by ClockOut when nothing is clocked in.
var ErrNoActiveSession = errors.New("no active clock-in session found")

// maxCloseAttempts bounds the retries when a concurrent clock-out wins the
// race for the most recent open entry.
const maxCloseAttempts = 3

// Status describes whether a session is currently open.
type Status struct {
	IsClockedIn bool       `json:"isClockedIn"`
	ClockInTime *time.Time `json:"clockInTime"`
}

// Controller runs clock-in, clock-out and status queries against a store.
type Controller struct {
	store  storage.Store
	now    func() time.Time
	newID  func() string
	logger *slog.Logger
}

// Option configures a Controller.
type Option func(*Controller)

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(c *Controller) { c.now = now }
}

// WithIDGenerator replaces the UUID generator for new entries.
func WithIDGenerator(newID func() string) Option {
	return func(c *Controller) { c.newID = newID }
}

// WithLogger sets the logger for session events.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Controller) { c.logger = logger }
}

// NewController returns a Controller backed by store.
func NewController(store storage.Store, opts ...Option) *Controller {
	c := &Controller{
		store:  store,
		now:    time.Now,
		newID:  uuid.NewString,
		logger: slog.New(slog.DiscardHandler),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// ClockIn opens a new entry starting now. It does not check for an entry
// that is already open; Status and ClockOut always act on the latest one.
func (c *Controller) ClockIn(ctx context.Context) (model.Entry, error) {
	entry := model.Entry{
		ID:      c.newID(),
		ClockIn: c.now(),
	}
	if err := c.store.Insert(ctx, entry); err != nil {
		return model.Entry{}, fmt.Errorf("clocking in: %w", err)
	}
	c.logger.InfoContext(ctx, "clocked in", "entry_id", entry.ID, "clock_in", entry.ClockIn)
	return entry, nil
}

// ClockOut closes the most recent open entry.
func (c *Controller) ClockOut(ctx context.Context) (model.Entry, error) {
	for attempt := 1; attempt <= maxCloseAttempts; attempt++ {
		open, err := c.store.LatestOpen(ctx)
		if err != nil {
			return model.Entry{}, fmt.Errorf("clocking out: %w", err)
		}
		if open == nil {
			return model.Entry{}, ErrNoActiveSession
		}

		closed, err := c.store.CloseEntry(ctx, open.ID, c.now())
		switch {
		case err == nil:
			c.logger.InfoContext(ctx, "clocked out",
				"entry_id", closed.ID,
				"duration_s", closed.DurationSeconds(),
			)
			return closed, nil
		case errors.Is(err, storage.ErrAlreadyClosed), errors.Is(err, storage.ErrNotFound):
			c.logger.DebugContext(ctx, "open entry changed during clock-out, retrying",
				"entry_id", open.ID, "attempt", attempt)
			continue
		default:
			return model.Entry{}, fmt.Errorf("clocking out: %w", err)
		}
	}
	return model.Entry{}, ErrNoActiveSession
}

// Status reports whether a session is open and since when.
func (c *Controller) Status(ctx context.Context) (Status, error) {
	open, err := c.store.LatestOpen(ctx)
	if err != nil {
		return Status{}, fmt.Errorf("checking clock-in status: %w", err)
	}
	if open == nil {
		return Status{}, nil
	}
	clockIn := open.ClockIn
	return Status{IsClockedIn: true, ClockInTime: &clockIn}, nil
}

// Delete removes an entry. Unknown ids yield storage.ErrNotFound.
func (c *Controller) Delete(ctx context.Context, id string) error {
	if err := c.store.Delete(ctx, id); err != nil {
		return fmt.Errorf("deleting entry %s: %w", id, err)
	}
	c.logger.InfoContext(ctx, "deleted entry", "entry_id", id)
	return nil
}
