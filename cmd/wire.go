package cmd

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/adrg/xdg"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/Tiliavir/time-tracking-app/internal/config"
	"github.com/Tiliavir/time-tracking-app/internal/logging"
	"github.com/Tiliavir/time-tracking-app/internal/report"
	"github.com/Tiliavir/time-tracking-app/internal/session"
	"github.com/Tiliavir/time-tracking-app/internal/storage"
	"github.com/Tiliavir/time-tracking-app/internal/storage/boltstore"
	"github.com/Tiliavir/time-tracking-app/internal/storage/filestore"
	"github.com/Tiliavir/time-tracking-app/internal/storage/memstore"
	"github.com/Tiliavir/time-tracking-app/internal/storage/sqlitestore"
)

// wiring holds what the persistent flags collect until a command runs.
type wiring struct {
	v          *viper.Viper
	configPath string
}

type app struct {
	cfg      config.Config
	loc      *time.Location
	logger   *logging.Logger
	store    storage.Store
	sessions *session.Controller
	reports  *report.Reporter
	now      func() time.Time
}

func (w *wiring) open(cmd *cobra.Command) (*app, error) {
	cfg, err := config.Load(w.v, w.configPath)
	if err != nil {
		return nil, userFailure(err)
	}
	loc, err := cfg.Location()
	if err != nil {
		return nil, userFailure(err)
	}
	logger, err := logging.New(cfg.Log, cmd.ErrOrStderr())
	if err != nil {
		return nil, userFailure(err)
	}

	store, err := openStore(cfg.DBURL, loc)
	if err != nil {
		_ = logger.Close()
		return nil, storageFailure(err)
	}

	return &app{
		cfg:      cfg,
		loc:      loc,
		logger:   logger,
		store:    store,
		sessions: session.NewController(store, session.WithLogger(logger.Logger)),
		reports:  report.NewReporter(store, report.WithLocation(loc)),
		now:      time.Now,
	}, nil
}

func (a *app) Close() error {
	return errors.Join(a.store.Close(), a.logger.Close())
}

// defaultStorePath is the bolt database used when no db_url is configured.
func defaultStorePath() (string, error) {
	path, err := xdg.DataFile(filepath.Join(config.AppName, "entries.db"))
	if err != nil {
		return "", fmt.Errorf("cannot determine data directory: %w", err)
	}
	return path, nil
}

// openStore selects an interval store from a connection string of the
// form scheme://location.
func openStore(dsn string, loc *time.Location) (storage.Store, error) {
	if dsn == "" {
		path, err := defaultStorePath()
		if err != nil {
			return nil, err
		}
		return boltstore.Open(path)
	}

	scheme, location, ok := strings.Cut(dsn, "://")
	if !ok {
		return nil, fmt.Errorf("invalid db_url %q: expected scheme://location", dsn)
	}
	switch scheme {
	case "bolt", "bbolt":
		return boltstore.Open(location)
	case "sqlite", "sqlite3":
		return sqlitestore.Open(location)
	case "file":
		return filestore.New(location, loc)
	case "memory", "mem":
		return memstore.New(), nil
	}
	return nil, fmt.Errorf("unsupported db_url scheme %q (want bolt, sqlite, file or memory)", scheme)
}
