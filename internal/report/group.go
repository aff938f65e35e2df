// Package report aggregates time entries into per-day summaries.
package report

import (
	"time"

	"github.com/Tiliavir/time-tracking-app/internal/model"
	"github.com/Tiliavir/time-tracking-app/internal/timecalc"
)

// Grouping maps date keys to their DateGroup and remembers the order in
// which the dates were first seen.
type Grouping struct {
	order  []string
	groups map[string]*model.DateGroup
}

// GroupByDate buckets entries by the calendar date of their clock-in in
// loc. Open entries are kept in their group but add nothing to the total.
func GroupByDate(entries []model.Entry, loc *time.Location) Grouping {
	g := Grouping{groups: make(map[string]*model.DateGroup)}
	for _, e := range entries {
		date := timecalc.DateKey(e.ClockIn, loc)
		group, ok := g.groups[date]
		if !ok {
			group = &model.DateGroup{Date: date, Entries: []model.Entry{}}
			g.groups[date] = group
			g.order = append(g.order, date)
		}
		group.TotalDuration += e.DurationSeconds()
		group.Entries = append(group.Entries, e)
	}
	return g
}

// Keys returns the date keys in first-seen order.
func (g Grouping) Keys() []string {
	return append([]string(nil), g.order...)
}

// Get returns the group for date.
func (g Grouping) Get(date string) (model.DateGroup, bool) {
	group, ok := g.groups[date]
	if !ok {
		return model.DateGroup{}, false
	}
	return *group, true
}

// Len returns the number of distinct dates.
func (g Grouping) Len() int {
	return len(g.order)
}

// Groups returns the groups in first-seen order. The result is never nil.
func (g Grouping) Groups() []model.DateGroup {
	out := make([]model.DateGroup, 0, len(g.order))
	for _, date := range g.order {
		out = append(out, *g.groups[date])
	}
	return out
}

// Entries flattens the grouping back into a single slice, group by group.
func (g Grouping) Entries() []model.Entry {
	var out []model.Entry
	for _, date := range g.order {
		out = append(out, g.groups[date].Entries...)
	}
	return out
}
