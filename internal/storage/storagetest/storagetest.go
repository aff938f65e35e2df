// Package storagetest holds the behavioural suite every storage.Store
// backend has to pass.
package storagetest

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Tiliavir/time-tracking-app/internal/model"
	"github.com/Tiliavir/time-tracking-app/internal/storage"
)

// Factory returns an empty store. It is called once per subtest.
type Factory func(t *testing.T) storage.Store

var base = time.Date(2024, 6, 10, 0, 0, 0, 0, time.UTC)

func hour(day, h int) time.Time {
	return base.AddDate(0, 0, day).Add(time.Duration(h) * time.Hour)
}

func entry(id string, in time.Time, out *time.Time) model.Entry {
	return model.Entry{ID: id, ClockIn: in, ClockOut: out}
}

func ptr(t time.Time) *time.Time { return &t }

// Run executes the suite against stores produced by newStore.
func Run(t *testing.T, newStore Factory) {
	tests := []struct {
		name string
		fn   func(t *testing.T, s storage.Store)
	}{
		{"InsertAndFind", testInsertAndFind},
		{"InsertDuplicateID", testInsertDuplicateID},
		{"LatestOpen", testLatestOpen},
		{"CloseEntry", testCloseEntry},
		{"CloseEntryConcurrent", testCloseEntryConcurrent},
		{"FindFilters", testFindFilters},
		{"Update", testUpdate},
		{"Delete", testDelete},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := newStore(t)
			t.Cleanup(func() { _ = s.Close() })
			tt.fn(t, s)
		})
	}
}

func testInsertAndFind(t *testing.T, s storage.Store) {
	ctx := context.Background()
	note := "standup"
	want := model.Entry{
		ID:         "e1",
		ClockIn:    hour(0, 9).Add(123 * time.Millisecond),
		ClockOut:   ptr(hour(0, 17)),
		Source:     model.SourceOutlook,
		ExternalID: "ext-1",
		Note:       &note,
	}
	require.NoError(t, s.Insert(ctx, want))

	got, err := s.Find(ctx, storage.Filter{})
	require.NoError(t, err)
	require.Len(t, got, 1)
	assertEntry(t, want, got[0])
}

func testInsertDuplicateID(t *testing.T, s storage.Store) {
	ctx := context.Background()
	require.NoError(t, s.Insert(ctx, entry("dup", hour(0, 9), nil)))
	assert.Error(t, s.Insert(ctx, entry("dup", hour(0, 10), nil)))
}

func testLatestOpen(t *testing.T, s storage.Store) {
	ctx := context.Background()

	latest, err := s.LatestOpen(ctx)
	require.NoError(t, err)
	assert.Nil(t, latest, "empty store has no open entry")

	require.NoError(t, s.Insert(ctx, entry("older", hour(0, 8), nil)))
	require.NoError(t, s.Insert(ctx, entry("closed", hour(0, 12), ptr(hour(0, 13)))))
	require.NoError(t, s.Insert(ctx, entry("newer", hour(0, 10), nil)))

	latest, err = s.LatestOpen(ctx)
	require.NoError(t, err)
	require.NotNil(t, latest)
	assert.Equal(t, "newer", latest.ID)
	assert.True(t, latest.IsOpen())
}

func testCloseEntry(t *testing.T, s storage.Store) {
	ctx := context.Background()
	require.NoError(t, s.Insert(ctx, entry("e1", hour(0, 9), nil)))

	_, err := s.CloseEntry(ctx, "e1", hour(0, 8))
	assert.ErrorIs(t, err, storage.ErrInvalidInterval)

	closed, err := s.CloseEntry(ctx, "e1", hour(0, 17))
	require.NoError(t, err)
	require.NotNil(t, closed.ClockOut)
	assert.WithinDuration(t, hour(0, 17), *closed.ClockOut, 0)

	_, err = s.CloseEntry(ctx, "e1", hour(0, 18))
	assert.ErrorIs(t, err, storage.ErrAlreadyClosed)

	_, err = s.CloseEntry(ctx, "missing", hour(0, 18))
	assert.ErrorIs(t, err, storage.ErrNotFound)

	latest, err := s.LatestOpen(ctx)
	require.NoError(t, err)
	assert.Nil(t, latest)

	got, err := s.Find(ctx, storage.Filter{})
	require.NoError(t, err)
	require.Len(t, got, 1)
	require.NotNil(t, got[0].ClockOut)
	assert.WithinDuration(t, hour(0, 17), *got[0].ClockOut, 0, "first close wins")
}

func testCloseEntryConcurrent(t *testing.T, s storage.Store) {
	ctx := context.Background()
	require.NoError(t, s.Insert(ctx, entry("race", hour(0, 9), nil)))

	const callers = 8
	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		succeeded int
		lost      int
	)
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, err := s.CloseEntry(ctx, "race", hour(0, 10+i))
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				succeeded++
			case errors.Is(err, storage.ErrAlreadyClosed):
				lost++
			default:
				t.Errorf("CloseEntry: unexpected error %v", err)
			}
		}(i)
	}
	wg.Wait()

	assert.Equal(t, 1, succeeded)
	assert.Equal(t, callers-1, lost)
}

func testFindFilters(t *testing.T, s storage.Store) {
	ctx := context.Background()
	fixtures := []model.Entry{
		entry("last-week", hour(-1, 9), ptr(hour(-1, 17))),
		entry("mon", hour(0, 9), ptr(hour(0, 17))),
		entry("wed", hour(2, 9), ptr(hour(2, 12))),
		entry("sun-spill", hour(6, 22), ptr(hour(7, 2))),
		entry("open", hour(3, 8), nil),
	}
	fixtures[2].ExternalID = "ext-wed"
	for _, e := range fixtures {
		require.NoError(t, s.Insert(ctx, e))
	}

	all, err := s.Find(ctx, storage.Filter{})
	require.NoError(t, err)
	assert.Equal(t, []string{"last-week", "mon", "wed", "open", "sun-spill"}, ids(all))

	week, err := s.Find(ctx, storage.Filter{ClockInFrom: hour(0, 0), ClockOutBefore: hour(7, 0)})
	require.NoError(t, err)
	assert.Equal(t, []string{"mon", "wed"}, ids(week))

	day, err := s.Find(ctx, storage.Filter{ClockInFrom: hour(3, 0), ClockInTo: hour(4, 0)})
	require.NoError(t, err)
	assert.Equal(t, []string{"open"}, ids(day))

	closedDesc, err := s.Find(ctx, storage.Filter{ClosedOnly: true, Order: storage.Descending})
	require.NoError(t, err)
	assert.Equal(t, []string{"sun-spill", "wed", "mon", "last-week"}, ids(closedDesc))

	byExt, err := s.Find(ctx, storage.Filter{ExternalID: "ext-wed"})
	require.NoError(t, err)
	assert.Equal(t, []string{"wed"}, ids(byExt))
}

func testUpdate(t *testing.T, s storage.Store) {
	ctx := context.Background()
	e := entry("e1", hour(0, 9), ptr(hour(0, 10)))
	require.NoError(t, s.Insert(ctx, e))

	note := "renamed"
	e.ClockOut = ptr(hour(0, 11))
	e.Note = &note
	require.NoError(t, s.Update(ctx, e))

	got, err := s.Find(ctx, storage.Filter{})
	require.NoError(t, err)
	require.Len(t, got, 1)
	assertEntry(t, e, got[0])

	err = s.Update(ctx, entry("missing", hour(0, 9), nil))
	assert.ErrorIs(t, err, storage.ErrNotFound)
}

func testDelete(t *testing.T, s storage.Store) {
	ctx := context.Background()
	require.NoError(t, s.Insert(ctx, entry("keep", hour(0, 9), ptr(hour(0, 10)))))
	require.NoError(t, s.Insert(ctx, entry("drop", hour(0, 11), nil)))

	require.NoError(t, s.Delete(ctx, "drop"))
	assert.ErrorIs(t, s.Delete(ctx, "drop"), storage.ErrNotFound)

	got, err := s.Find(ctx, storage.Filter{})
	require.NoError(t, err)
	assert.Equal(t, []string{"keep"}, ids(got))

	latest, err := s.LatestOpen(ctx)
	require.NoError(t, err)
	assert.Nil(t, latest, "deleted open entry must not be reported")
}

func assertEntry(t *testing.T, want, got model.Entry) {
	t.Helper()
	assert.Equal(t, want.ID, got.ID)
	assert.WithinDuration(t, want.ClockIn, got.ClockIn, 0)
	if want.ClockOut == nil {
		assert.Nil(t, got.ClockOut)
	} else if assert.NotNil(t, got.ClockOut) {
		assert.WithinDuration(t, *want.ClockOut, *got.ClockOut, 0)
	}
	assert.Equal(t, want.Source, got.Source)
	assert.Equal(t, want.ExternalID, got.ExternalID)
	assert.Equal(t, want.Note, got.Note)
}

func ids(entries []model.Entry) []string {
	out := make([]string, 0, len(entries))
	for _, e := range entries {
		out = append(out, e.ID)
	}
	return out
}
