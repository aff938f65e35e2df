package sqlitestore_test

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Tiliavir/time-tracking-app/internal/model"
	"github.com/Tiliavir/time-tracking-app/internal/storage"
	"github.com/Tiliavir/time-tracking-app/internal/storage/sqlitestore"
	"github.com/Tiliavir/time-tracking-app/internal/storage/storagetest"
)

func TestStoreInMemory(t *testing.T) {
	storagetest.Run(t, func(t *testing.T) storage.Store {
		s, err := sqlitestore.Open(":memory:")
		require.NoError(t, err)
		return s
	})
}

func TestStoreOnDisk(t *testing.T) {
	storagetest.Run(t, func(t *testing.T) storage.Store {
		s, err := sqlitestore.Open(filepath.Join(t.TempDir(), "entries.sqlite"))
		require.NoError(t, err)
		return s
	})
}

func TestReopenRunsMigrationsIdempotently(t *testing.T) {
	path := filepath.Join(t.TempDir(), "entries.sqlite")
	ctx := context.Background()

	s, err := sqlitestore.Open(path)
	require.NoError(t, err)
	require.NoError(t, s.Insert(ctx, model.Entry{ID: "e1", ClockIn: time.Date(2024, 6, 12, 9, 0, 0, 0, time.UTC)}))
	require.NoError(t, s.Close())

	s, err = sqlitestore.Open(path)
	require.NoError(t, err)
	defer s.Close()

	entries, err := s.Find(ctx, storage.Filter{})
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "e1", entries[0].ID)
}
