package report

import (
	"context"
	"fmt"
	"time"

	"github.com/Tiliavir/time-tracking-app/internal/model"
	"github.com/Tiliavir/time-tracking-app/internal/storage"
	"github.com/Tiliavir/time-tracking-app/internal/timecalc"
)

// DaySummary lists the entries clocked in on one day.
type DaySummary struct {
	Entries []model.Entry `json:"entries"`
	// TotalDuration is in seconds and only counts closed entries.
	TotalDuration float64 `json:"totalDuration"`
}

// Reporter answers the read-side queries over a store.
type Reporter struct {
	store storage.Store
	now   func() time.Time
	loc   *time.Location
}

// Option configures a Reporter.
type Option func(*Reporter)

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(r *Reporter) { r.now = now }
}

// WithLocation sets the time zone that defines days and weeks.
func WithLocation(loc *time.Location) Option {
	return func(r *Reporter) { r.loc = loc }
}

// NewReporter returns a Reporter reading from store.
func NewReporter(store storage.Store, opts ...Option) *Reporter {
	r := &Reporter{store: store, now: time.Now, loc: time.Local}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Location returns the time zone used for day and week boundaries.
func (r *Reporter) Location() *time.Location {
	return r.loc
}

// Today summarises the entries clocked in today.
func (r *Reporter) Today(ctx context.Context) (DaySummary, error) {
	return r.Day(ctx, r.now())
}

// Day summarises the entries clocked in on the day containing ref.
func (r *Reporter) Day(ctx context.Context, ref time.Time) (DaySummary, error) {
	start := timecalc.StartOfDay(ref.In(r.loc))
	entries, err := r.store.Find(ctx, storage.Filter{
		ClockInFrom: start,
		ClockInTo:   timecalc.Midnight(start),
	})
	if err != nil {
		return DaySummary{}, fmt.Errorf("loading entries of %s: %w", start.Format(timecalc.DateLayout), err)
	}

	summary := DaySummary{Entries: entries}
	if summary.Entries == nil {
		summary.Entries = []model.Entry{}
	}
	for _, e := range entries {
		summary.TotalDuration += e.DurationSeconds()
	}
	return summary, nil
}

// Previous groups every closed entry by day, most recent day first.
func (r *Reporter) Previous(ctx context.Context) ([]model.DateGroup, error) {
	entries, err := r.store.Find(ctx, storage.Filter{
		ClosedOnly: true,
		Order:      storage.Descending,
	})
	if err != nil {
		return nil, fmt.Errorf("loading closed entries: %w", err)
	}
	return GroupByDate(entries, r.loc).Groups(), nil
}

// CurrentWeek groups this week's closed entries by day.
func (r *Reporter) CurrentWeek(ctx context.Context) ([]model.DateGroup, error) {
	return r.Week(ctx, r.now())
}

// Week groups the entries of the Monday-first week containing ref. Only
// entries clocked out before the next week starts are included, so open
// entries never appear.
func (r *Reporter) Week(ctx context.Context, ref time.Time) ([]model.DateGroup, error) {
	start := timecalc.WeekStart(ref, r.loc)
	entries, err := r.store.Find(ctx, storage.Filter{
		ClockInFrom:    start,
		ClockOutBefore: timecalc.NextWeekStart(ref, r.loc),
	})
	if err != nil {
		return nil, fmt.Errorf("loading entries of week %s: %w", timecalc.ISOWeekLabel(start), err)
	}
	return GroupByDate(entries, r.loc).Groups(), nil
}
