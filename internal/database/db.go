// Package database opens the SQL connection pool and owns the schema.
package database

import (
	"context"
	"fmt"
	"time"

	_ "github.com/go-sql-driver/mysql"
	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	"github.com/pkg/errors"

	"github.com/iliyamo/campus-reservation/internal/config"
)

// DSN builds the driver-specific connection string from cfg unless DB_DSN
// was given explicitly.
func DSN(cfg config.Config) string {
	if cfg.DBDSN != "" {
		return cfg.DBDSN
	}
	switch cfg.DBDriver {
	case "postgres":
		dsn := fmt.Sprintf("host=%s port=%s user=%s dbname=%s sslmode=disable TimeZone=UTC",
			cfg.DBHost, cfg.DBPort, cfg.DBUser, cfg.DBName)
		if cfg.DBPass != "" {
			dsn += " password=" + cfg.DBPass
		}
		return dsn
	default:
		auth := cfg.DBUser
		if cfg.DBPass != "" {
			auth = fmt.Sprintf("%s:%s", cfg.DBUser, cfg.DBPass)
		}
		// parseTime=true -> DATETIME -> time.Time | loc=UTC keeps times consistent
		return fmt.Sprintf("%s@tcp(%s:%s)/%s?charset=utf8mb4&parseTime=true&loc=UTC",
			auth, cfg.DBHost, cfg.DBPort, cfg.DBName)
	}
}

// Open connects with the configured driver and verifies the connection.
func Open(cfg config.Config) (*sqlx.DB, error) {
	db, err := sqlx.Open(cfg.DBDriver, DSN(cfg))
	if err != nil {
		return nil, errors.Wrapf(err, "open %s", cfg.DBDriver)
	}

	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(25)
	db.SetConnMaxLifetime(30 * time.Minute)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, errors.Wrapf(err, "ping %s", cfg.DBDriver)
	}
	return db, nil
}
