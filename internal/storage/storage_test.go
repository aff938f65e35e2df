package storage_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Tiliavir/time-tracking-app/internal/model"
	"github.com/Tiliavir/time-tracking-app/internal/storage"
)

func at(h int) time.Time {
	return time.Date(2024, 6, 12, h, 0, 0, 0, time.UTC)
}

func closed(id string, in, out int) model.Entry {
	o := at(out)
	return model.Entry{ID: id, ClockIn: at(in), ClockOut: &o}
}

func TestFilterMatch(t *testing.T) {
	open := model.Entry{ID: "open", ClockIn: at(10)}
	done := closed("done", 8, 9)

	tests := []struct {
		name   string
		filter storage.Filter
		entry  model.Entry
		want   bool
	}{
		{"empty filter matches open", storage.Filter{}, open, true},
		{"from is inclusive", storage.Filter{ClockInFrom: at(8)}, done, true},
		{"before from", storage.Filter{ClockInFrom: at(9)}, done, false},
		{"to is exclusive", storage.Filter{ClockInTo: at(8)}, done, false},
		{"closed only skips open", storage.Filter{ClosedOnly: true}, open, false},
		{"clock-out before excludes open", storage.Filter{ClockOutBefore: at(23)}, open, false},
		{"clock-out before is strict", storage.Filter{ClockOutBefore: at(9)}, done, false},
		{"clock-out before", storage.Filter{ClockOutBefore: at(10)}, done, true},
		{"external id", storage.Filter{ExternalID: "x"}, done, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.filter.Match(tt.entry))
		})
	}
}

func TestFilterApplySorts(t *testing.T) {
	entries := []model.Entry{closed("b", 10, 11), closed("a", 8, 9), {ID: "c", ClockIn: at(12)}}

	asc := storage.Filter{}.Apply(append([]model.Entry(nil), entries...))
	require.Len(t, asc, 3)
	assert.Equal(t, []string{"a", "b", "c"}, ids(asc))

	desc := storage.Filter{ClosedOnly: true, Order: storage.Descending}.Apply(append([]model.Entry(nil), entries...))
	assert.Equal(t, []string{"b", "a"}, ids(desc))
}

func TestLatestOpen(t *testing.T) {
	assert.Nil(t, storage.LatestOpen(nil))

	entries := []model.Entry{
		{ID: "older", ClockIn: at(8)},
		closed("closed", 13, 14),
		{ID: "newer", ClockIn: at(11)},
	}
	latest := storage.LatestOpen(entries)
	require.NotNil(t, latest)
	assert.Equal(t, "newer", latest.ID)
}

func TestClosed(t *testing.T) {
	e := model.Entry{ID: "e", ClockIn: at(9)}

	got, err := storage.Closed(e, at(10))
	require.NoError(t, err)
	require.NotNil(t, got.ClockOut)
	assert.Equal(t, at(10), *got.ClockOut)
	assert.True(t, e.IsOpen(), "original entry must not be modified")

	_, err = storage.Closed(got, at(11))
	assert.ErrorIs(t, err, storage.ErrAlreadyClosed)

	_, err = storage.Closed(e, at(8))
	assert.ErrorIs(t, err, storage.ErrInvalidInterval)
}

func ids(entries []model.Entry) []string {
	out := make([]string, len(entries))
	for i, e := range entries {
		out[i] = e.ID
	}
	return out
}
