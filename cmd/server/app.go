package main

import (
	"io"

	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"

	"github.com/iliyamo/campus-reservation/internal/config"
	"github.com/iliyamo/campus-reservation/internal/database"
	"github.com/iliyamo/campus-reservation/internal/repository"
)

type nopCloser struct{}

func (nopCloser) Close() error { return nil }

// openLedger returns the ledger chosen by DB_DRIVER and a closer for its
// connection pool.
func openLedger(cfg config.Config) (repository.Ledger, io.Closer, error) {
	if cfg.DBDriver == "memory" {
		log.Warn("DB_DRIVER=memory: bookings are lost on restart")
		return repository.NewMemoryStore(), nopCloser{}, nil
	}
	db, err := database.Open(cfg)
	if err != nil {
		return nil, nil, errors.Wrap(err, "open database")
	}
	return repository.NewSQLStore(db), db, nil
}

// loadConfig reads Config and applies its logging settings.
func loadConfig() (config.Config, error) {
	cfg, err := config.Load()
	if err != nil {
		return cfg, err
	}
	cfg.ConfigureLogging()
	return cfg, nil
}

func openDB(cfg config.Config) (*sqlx.DB, error) {
	if cfg.DBDriver == "memory" {
		return nil, errors.New("DB_DRIVER=memory has no schema to migrate")
	}
	return database.Open(cfg)
}
