package session_test

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Tiliavir/time-tracking-app/internal/model"
	"github.com/Tiliavir/time-tracking-app/internal/session"
	"github.com/Tiliavir/time-tracking-app/internal/storage"
	"github.com/Tiliavir/time-tracking-app/internal/storage/memstore"
)

// fakeClock hands out strictly increasing instants.
type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(time.Minute)
	return c.now
}

// recordingStore counts mutating calls.
type recordingStore struct {
	storage.Store
	mu     sync.Mutex
	writes int
}

func (s *recordingStore) Insert(ctx context.Context, e model.Entry) error {
	s.count()
	return s.Store.Insert(ctx, e)
}

func (s *recordingStore) Update(ctx context.Context, e model.Entry) error {
	s.count()
	return s.Store.Update(ctx, e)
}

func (s *recordingStore) CloseEntry(ctx context.Context, id string, at time.Time) (model.Entry, error) {
	s.count()
	return s.Store.CloseEntry(ctx, id, at)
}

func (s *recordingStore) Delete(ctx context.Context, id string) error {
	s.count()
	return s.Store.Delete(ctx, id)
}

func (s *recordingStore) count() {
	s.mu.Lock()
	s.writes++
	s.mu.Unlock()
}

func newController(store storage.Store) (*session.Controller, *fakeClock) {
	clock := &fakeClock{now: time.Date(2024, 6, 12, 9, 0, 0, 0, time.UTC)}
	var n int
	var mu sync.Mutex
	ids := func() string {
		mu.Lock()
		defer mu.Unlock()
		n++
		return fmt.Sprintf("entry-%d", n)
	}
	return session.NewController(store,
		session.WithClock(clock.Now),
		session.WithIDGenerator(ids),
	), clock
}

func TestClockInThenStatus(t *testing.T) {
	c, _ := newController(memstore.New())
	ctx := context.Background()

	entry, err := c.ClockIn(ctx)
	require.NoError(t, err)
	assert.True(t, entry.IsOpen())

	status, err := c.Status(ctx)
	require.NoError(t, err)
	assert.True(t, status.IsClockedIn)
	require.NotNil(t, status.ClockInTime)
	assert.True(t, status.ClockInTime.Equal(entry.ClockIn))
}

func TestStatusWhenIdle(t *testing.T) {
	c, _ := newController(memstore.New())

	status, err := c.Status(context.Background())
	require.NoError(t, err)
	assert.False(t, status.IsClockedIn)
	assert.Nil(t, status.ClockInTime)
}

func TestClockOutWithoutSession(t *testing.T) {
	store := &recordingStore{Store: memstore.New()}
	c, _ := newController(store)

	_, err := c.ClockOut(context.Background())

	assert.ErrorIs(t, err, session.ErrNoActiveSession)
	assert.Zero(t, store.writes, "failed clock-out must not write")
}

func TestClockOutClosesSession(t *testing.T) {
	store := memstore.New()
	c, _ := newController(store)
	ctx := context.Background()

	in, err := c.ClockIn(ctx)
	require.NoError(t, err)

	out, err := c.ClockOut(ctx)
	require.NoError(t, err)
	assert.Equal(t, in.ID, out.ID)
	require.NotNil(t, out.ClockOut)
	assert.False(t, out.ClockOut.Before(out.ClockIn))

	status, err := c.Status(ctx)
	require.NoError(t, err)
	assert.False(t, status.IsClockedIn)

	_, err = c.ClockOut(ctx)
	assert.ErrorIs(t, err, session.ErrNoActiveSession)
}

func TestClockInDoesNotRejectSecondOpenSession(t *testing.T) {
	store := memstore.New()
	c, _ := newController(store)
	ctx := context.Background()

	_, err := c.ClockIn(ctx)
	require.NoError(t, err)
	second, err := c.ClockIn(ctx)
	require.NoError(t, err)

	status, err := c.Status(ctx)
	require.NoError(t, err)
	assert.True(t, status.ClockInTime.Equal(second.ClockIn), "status reports the most recent open entry")

	out, err := c.ClockOut(ctx)
	require.NoError(t, err)
	assert.Equal(t, second.ID, out.ID, "clock-out closes the most recent open entry first")

	status, err = c.Status(ctx)
	require.NoError(t, err)
	assert.True(t, status.IsClockedIn, "the older duplicate is still open")
}

func TestConcurrentClockOutClosesOnce(t *testing.T) {
	store := memstore.New()
	c, _ := newController(store)
	ctx := context.Background()

	_, err := c.ClockIn(ctx)
	require.NoError(t, err)

	const callers = 10
	results := make(chan error, callers)
	var wg sync.WaitGroup
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := c.ClockOut(ctx)
			results <- err
		}()
	}
	wg.Wait()
	close(results)

	var ok, none int
	for err := range results {
		switch {
		case err == nil:
			ok++
		case errors.Is(err, session.ErrNoActiveSession):
			none++
		default:
			t.Errorf("unexpected error: %v", err)
		}
	}
	assert.Equal(t, 1, ok)
	assert.Equal(t, callers-1, none)
}

// racingStore lets another caller close the open entry between the
// lookup and the conditional close.
type racingStore struct {
	storage.Store
	once sync.Once
}

func (s *racingStore) CloseEntry(ctx context.Context, id string, at time.Time) (model.Entry, error) {
	s.once.Do(func() {
		_, _ = s.Store.CloseEntry(ctx, id, at)
	})
	return s.Store.CloseEntry(ctx, id, at)
}

func TestClockOutLosingRaceRetriesLookup(t *testing.T) {
	inner := memstore.New()
	ctx := context.Background()
	base := time.Date(2024, 6, 12, 8, 0, 0, 0, time.UTC)
	require.NoError(t, inner.Insert(ctx, model.Entry{ID: "older", ClockIn: base}))
	require.NoError(t, inner.Insert(ctx, model.Entry{ID: "newer", ClockIn: base.Add(time.Hour)}))

	c, _ := newController(&racingStore{Store: inner})

	out, err := c.ClockOut(ctx)
	require.NoError(t, err)
	assert.Equal(t, "older", out.ID, "after losing the race the next open entry is closed")
}

type failingStore struct {
	storage.Store
}

var errDisk = errors.New("disk on fire")

func (failingStore) LatestOpen(context.Context) (*model.Entry, error) { return nil, errDisk }
func (failingStore) Insert(context.Context, model.Entry) error        { return errDisk }

func TestStoreErrorsAreWrapped(t *testing.T) {
	c, _ := newController(failingStore{Store: memstore.New()})
	ctx := context.Background()

	_, err := c.ClockIn(ctx)
	assert.ErrorIs(t, err, errDisk)

	_, err = c.ClockOut(ctx)
	assert.ErrorIs(t, err, errDisk)
	assert.NotErrorIs(t, err, session.ErrNoActiveSession)

	_, err = c.Status(ctx)
	assert.ErrorIs(t, err, errDisk)
}

func TestDelete(t *testing.T) {
	store := memstore.New()
	c, _ := newController(store)
	ctx := context.Background()

	entry, err := c.ClockIn(ctx)
	require.NoError(t, err)

	require.NoError(t, c.Delete(ctx, entry.ID))
	assert.ErrorIs(t, c.Delete(ctx, entry.ID), storage.ErrNotFound)

	status, err := c.Status(ctx)
	require.NoError(t, err)
	assert.False(t, status.IsClockedIn)
}
