package memstore_test

import (
	"testing"

	"github.com/Tiliavir/time-tracking-app/internal/storage"
	"github.com/Tiliavir/time-tracking-app/internal/storage/memstore"
	"github.com/Tiliavir/time-tracking-app/internal/storage/storagetest"
)

func TestStore(t *testing.T) {
	storagetest.Run(t, func(t *testing.T) storage.Store {
		return memstore.New()
	})
}
