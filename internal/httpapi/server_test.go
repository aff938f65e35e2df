package httpapi_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"testing/fstest"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Tiliavir/time-tracking-app/internal/httpapi"
	"github.com/Tiliavir/time-tracking-app/internal/model"
	"github.com/Tiliavir/time-tracking-app/internal/report"
	"github.com/Tiliavir/time-tracking-app/internal/session"
	"github.com/Tiliavir/time-tracking-app/internal/storage"
	"github.com/Tiliavir/time-tracking-app/internal/storage/memstore"
)

var now = time.Date(2024, 6, 12, 9, 0, 0, 0, time.UTC)

func newHandler(t *testing.T, store storage.Store, opts ...httpapi.Option) http.Handler {
	t.Helper()
	clock := func() time.Time { return now }
	srv, err := httpapi.New(
		session.NewController(store, session.WithClock(clock)),
		report.NewReporter(store, report.WithClock(clock), report.WithLocation(time.UTC)),
		opts...,
	)
	require.NoError(t, err)
	return srv.Handler()
}

func do(t *testing.T, h http.Handler, method, path string) *httptest.ResponseRecorder {
	t.Helper()
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(method, path, nil))
	return rec
}

func decode(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body), rec.Body.String())
	return body
}

func TestClockInAndStatus(t *testing.T) {
	h := newHandler(t, memstore.New())

	rec := do(t, h, http.MethodPost, "/api/clock-in")
	require.Equal(t, http.StatusCreated, rec.Code)
	assert.Equal(t, "application/json; charset=utf-8", rec.Header().Get("Content-Type"))
	body := decode(t, rec)
	assert.Equal(t, "Clocked in", body["message"])
	assert.Equal(t, "2024-06-12T09:00:00Z", body["clockInTime"])

	rec = do(t, h, http.MethodGet, "/api/is-clocked-in")
	require.Equal(t, http.StatusOK, rec.Code)
	body = decode(t, rec)
	assert.Equal(t, true, body["isClockedIn"])
	assert.Equal(t, "2024-06-12T09:00:00Z", body["clockInTime"])

	rec = do(t, h, http.MethodGet, "/api/last-clock-in")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "2024-06-12T09:00:00Z", decode(t, rec)["clockInTime"])
}

func TestStatusWhenIdleReportsNull(t *testing.T) {
	h := newHandler(t, memstore.New())

	rec := do(t, h, http.MethodGet, "/api/is-clocked-in")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"isClockedIn":false,"clockInTime":null}`, rec.Body.String())

	rec = do(t, h, http.MethodGet, "/api/last-clock-in")
	assert.JSONEq(t, `{"clockInTime":null}`, rec.Body.String())
}

func TestClockOut(t *testing.T) {
	h := newHandler(t, memstore.New())

	rec := do(t, h, http.MethodPost, "/api/clock-out")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.JSONEq(t, `{"message":"No active clock-in session found"}`, rec.Body.String())

	require.Equal(t, http.StatusCreated, do(t, h, http.MethodPost, "/api/clock-in").Code)

	rec = do(t, h, http.MethodPost, "/api/clock-out")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"message":"Clocked out"}`, rec.Body.String())

	rec = do(t, h, http.MethodGet, "/api/is-clocked-in")
	assert.Equal(t, false, decode(t, rec)["isClockedIn"])
}

func TestReportsEncodeEmptyAsArray(t *testing.T) {
	h := newHandler(t, memstore.New())

	rec := do(t, h, http.MethodGet, "/api/today")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"entries":[],"totalDuration":0}`, rec.Body.String())

	for _, path := range []string{"/api/previous", "/api/current-week"} {
		rec := do(t, h, http.MethodGet, path)
		require.Equal(t, http.StatusOK, rec.Code, path)
		assert.JSONEq(t, `[]`, rec.Body.String(), path)
	}
}

func TestReports(t *testing.T) {
	store := memstore.New()
	ctx := context.Background()
	at := func(day, hour, minute int) time.Time {
		return time.Date(2024, 6, day, hour, minute, 0, 0, time.UTC)
	}
	closed := func(id string, in, out time.Time) model.Entry {
		return model.Entry{ID: id, ClockIn: in, ClockOut: &out}
	}
	require.NoError(t, store.Insert(ctx, closed("a", at(12, 6, 0), at(12, 8, 30))))
	require.NoError(t, store.Insert(ctx, closed("old", at(3, 6, 0), at(3, 7, 0))))
	h := newHandler(t, store)

	rec := do(t, h, http.MethodGet, "/api/today")
	require.Equal(t, http.StatusOK, rec.Code)
	var today report.DaySummary
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &today))
	require.Len(t, today.Entries, 1)
	assert.Equal(t, "a", today.Entries[0].ID)
	assert.Equal(t, float64(9000), today.TotalDuration)

	rec = do(t, h, http.MethodGet, "/api/current-week")
	var week []model.DateGroup
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &week))
	require.Len(t, week, 1)
	assert.Equal(t, "2024-06-12", week[0].Date)

	rec = do(t, h, http.MethodGet, "/api/previous")
	var previous []model.DateGroup
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &previous))
	require.Len(t, previous, 2)
	assert.Equal(t, "2024-06-12", previous[0].Date)
	assert.Equal(t, "2024-06-03", previous[1].Date)
	assert.Equal(t, float64(3600), previous[1].TotalDuration)
}

func TestDeleteEntry(t *testing.T) {
	store := memstore.New()
	require.NoError(t, store.Insert(context.Background(), model.Entry{ID: "e1", ClockIn: now}))
	h := newHandler(t, store)

	rec := do(t, h, http.MethodDelete, "/api/clock-entry/e1")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"message":"Entry deleted"}`, rec.Body.String())

	rec = do(t, h, http.MethodDelete, "/api/clock-entry/e1")
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "Entry not found", decode(t, rec)["message"])
}

type brokenStore struct{ storage.Store }

var errBroken = errors.New("connection refused")

func (brokenStore) Insert(context.Context, model.Entry) error { return errBroken }
func (brokenStore) LatestOpen(context.Context) (*model.Entry, error) {
	return nil, errBroken
}
func (brokenStore) Find(context.Context, storage.Filter) ([]model.Entry, error) {
	return nil, errBroken
}
func (brokenStore) Delete(context.Context, string) error { return errBroken }

func TestStoreFailuresReturnGenericErrors(t *testing.T) {
	var logs bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&logs, nil))
	h := newHandler(t, brokenStore{memstore.New()}, httpapi.WithLogger(logger))

	tests := []struct {
		method, path, want string
	}{
		{http.MethodPost, "/api/clock-in", "Error clocking in"},
		{http.MethodPost, "/api/clock-out", "Error clocking out"},
		{http.MethodGet, "/api/is-clocked-in", "Error checking clock-in status"},
		{http.MethodGet, "/api/last-clock-in", "Error retrieving last clock-in time"},
		{http.MethodGet, "/api/today", "Error retrieving today's entries"},
		{http.MethodGet, "/api/previous", "Error retrieving previous entries"},
		{http.MethodGet, "/api/current-week", "Error retrieving current week entries"},
		{http.MethodDelete, "/api/clock-entry/x", "Error deleting entry"},
	}
	for _, tt := range tests {
		t.Run(tt.method+" "+tt.path, func(t *testing.T) {
			rec := do(t, h, tt.method, tt.path)
			assert.Equal(t, http.StatusInternalServerError, rec.Code)
			body := decode(t, rec)
			assert.Equal(t, tt.want, body["error"])
			assert.NotContains(t, rec.Body.String(), errBroken.Error())
		})
	}
	assert.Contains(t, logs.String(), errBroken.Error())
}

func TestCORS(t *testing.T) {
	h := newHandler(t, memstore.New())

	req := httptest.NewRequest(http.MethodOptions, "/api/clock-in", nil)
	req.Header.Set("Origin", "http://localhost:8080")
	req.Header.Set("Access-Control-Request-Method", "POST")
	req.Header.Set("Access-Control-Request-Headers", "content-type")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, "*", rec.Header().Get("Access-Control-Allow-Origin"))
	assert.Contains(t, rec.Header().Get("Access-Control-Allow-Methods"), "DELETE")
	assert.Equal(t, "content-type", rec.Header().Get("Access-Control-Allow-Headers"))

	rec = do(t, h, http.MethodGet, "/api/today")
	assert.Equal(t, "*", rec.Header().Get("Access-Control-Allow-Origin"))
}

func TestStaticFallback(t *testing.T) {
	static := fstest.MapFS{
		"index.html": {Data: []byte("<h1>tracker</h1>")},
		"app.js":     {Data: []byte("console.log('hi')")},
	}
	h := newHandler(t, memstore.New(), httpapi.WithStatic(static))

	for _, path := range []string{"/", "/week/2024-06-10", "/api/unknown"} {
		rec := do(t, h, http.MethodGet, path)
		assert.Equal(t, http.StatusOK, rec.Code, path)
		assert.Equal(t, "<h1>tracker</h1>", rec.Body.String(), path)
		assert.Contains(t, rec.Header().Get("Content-Type"), "text/html", path)
	}

	rec := do(t, h, http.MethodGet, "/app.js")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "console.log('hi')", rec.Body.String())
}

func TestEmbeddedClientIsServed(t *testing.T) {
	rec := do(t, newHandler(t, memstore.New()), http.MethodGet, "/")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "/api")
}

func TestNewRequiresIndex(t *testing.T) {
	store := memstore.New()
	_, err := httpapi.New(session.NewController(store), report.NewReporter(store),
		httpapi.WithStatic(fstest.MapFS{}))
	assert.Error(t, err)
}

func TestServeShutsDownOnCancel(t *testing.T) {
	store := memstore.New()
	srv, err := httpapi.New(session.NewController(store), report.NewReporter(store))
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- srv.Serve(ctx, "127.0.0.1:0") }()

	time.Sleep(50 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("server did not shut down")
	}
}
