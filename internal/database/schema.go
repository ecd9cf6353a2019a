package database

import (
	"context"

	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
)

var mysqlSchema = []string{
	`CREATE TABLE IF NOT EXISTS resources (
		id               VARCHAR(64)  NOT NULL PRIMARY KEY,
		kind             VARCHAR(32)  NOT NULL,
		name             VARCHAR(255) NOT NULL,
		venue            VARCHAR(255) NOT NULL DEFAULT '',
		start_time       DATETIME(6)  NOT NULL,
		end_time         DATETIME(6)  NOT NULL,
		seat_rows        INT          NOT NULL DEFAULT 0,
		seat_cols        INT          NOT NULL DEFAULT 0,
		slot_minutes     INT          NOT NULL DEFAULT 0,
		min_participants INT          NOT NULL DEFAULT 0,
		max_participants INT          NOT NULL DEFAULT 0,
		created_at       DATETIME(6)  NOT NULL
	) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4`,
	`CREATE TABLE IF NOT EXISTS units (
		id               VARCHAR(64) NOT NULL PRIMARY KEY,
		kind             VARCHAR(32) NOT NULL,
		resource_id      VARCHAR(64) NOT NULL,
		label            VARCHAR(64) NOT NULL DEFAULT '',
		status           VARCHAR(16) NOT NULL,
		start_time       DATETIME(6) NULL,
		end_time         DATETIME(6) NULL,
		min_participants INT         NULL,
		max_participants INT         NULL,
		hold_token       VARCHAR(64) NULL,
		held_by          VARCHAR(64) NULL,
		hold_expires_at  DATETIME(6) NULL,
		updated_at       DATETIME(6) NOT NULL,
		INDEX idx_units_resource (resource_id, start_time),
		INDEX idx_units_hold (status, hold_expires_at),
		INDEX idx_units_token (hold_token),
		CONSTRAINT fk_units_resource FOREIGN KEY (resource_id) REFERENCES resources(id)
	) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4`,
	`CREATE TABLE IF NOT EXISTS bookings (
		id           VARCHAR(36) NOT NULL PRIMARY KEY,
		requester_id VARCHAR(64) NOT NULL,
		participants TEXT        NOT NULL,
		metadata     TEXT        NOT NULL,
		attachments  TEXT        NOT NULL,
		status       VARCHAR(16) NOT NULL,
		created_at   DATETIME(6) NOT NULL,
		cancelled_at DATETIME(6) NULL,
		INDEX idx_bookings_requester (requester_id, created_at)
	) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4`,
	`CREATE TABLE IF NOT EXISTS booking_units (
		booking_id VARCHAR(36) NOT NULL,
		unit_id    VARCHAR(64) NOT NULL,
		PRIMARY KEY (booking_id, unit_id),
		INDEX idx_booking_units_unit (unit_id),
		CONSTRAINT fk_bu_booking FOREIGN KEY (booking_id) REFERENCES bookings(id),
		CONSTRAINT fk_bu_unit FOREIGN KEY (unit_id) REFERENCES units(id)
	) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4`,
}

var postgresSchema = []string{
	`CREATE TABLE IF NOT EXISTS resources (
		id               VARCHAR(64)  PRIMARY KEY,
		kind             VARCHAR(32)  NOT NULL,
		name             VARCHAR(255) NOT NULL,
		venue            VARCHAR(255) NOT NULL DEFAULT '',
		start_time       TIMESTAMPTZ  NOT NULL,
		end_time         TIMESTAMPTZ  NOT NULL,
		seat_rows        INT          NOT NULL DEFAULT 0,
		seat_cols        INT          NOT NULL DEFAULT 0,
		slot_minutes     INT          NOT NULL DEFAULT 0,
		min_participants INT          NOT NULL DEFAULT 0,
		max_participants INT          NOT NULL DEFAULT 0,
		created_at       TIMESTAMPTZ  NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS units (
		id               VARCHAR(64) PRIMARY KEY,
		kind             VARCHAR(32) NOT NULL,
		resource_id      VARCHAR(64) NOT NULL REFERENCES resources(id),
		label            VARCHAR(64) NOT NULL DEFAULT '',
		status           VARCHAR(16) NOT NULL,
		start_time       TIMESTAMPTZ NULL,
		end_time         TIMESTAMPTZ NULL,
		min_participants INT         NULL,
		max_participants INT         NULL,
		hold_token       VARCHAR(64) NULL,
		held_by          VARCHAR(64) NULL,
		hold_expires_at  TIMESTAMPTZ NULL,
		updated_at       TIMESTAMPTZ NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS idx_units_resource ON units (resource_id, start_time)`,
	`CREATE INDEX IF NOT EXISTS idx_units_hold ON units (status, hold_expires_at)`,
	`CREATE INDEX IF NOT EXISTS idx_units_token ON units (hold_token)`,
	`CREATE TABLE IF NOT EXISTS bookings (
		id           VARCHAR(36) PRIMARY KEY,
		requester_id VARCHAR(64) NOT NULL,
		participants TEXT        NOT NULL,
		metadata     TEXT        NOT NULL,
		attachments  TEXT        NOT NULL,
		status       VARCHAR(16) NOT NULL,
		created_at   TIMESTAMPTZ NOT NULL,
		cancelled_at TIMESTAMPTZ NULL
	)`,
	`CREATE INDEX IF NOT EXISTS idx_bookings_requester ON bookings (requester_id, created_at)`,
	`CREATE TABLE IF NOT EXISTS booking_units (
		booking_id VARCHAR(36) NOT NULL REFERENCES bookings(id),
		unit_id    VARCHAR(64) NOT NULL REFERENCES units(id),
		PRIMARY KEY (booking_id, unit_id)
	)`,
	`CREATE INDEX IF NOT EXISTS idx_booking_units_unit ON booking_units (unit_id)`,
}

// Schema returns the DDL statements for a driver.
func Schema(driver string) ([]string, error) {
	switch driver {
	case "mysql":
		return mysqlSchema, nil
	case "postgres":
		return postgresSchema, nil
	}
	return nil, errors.Errorf("no schema for driver %q", driver)
}

// Migrate creates any missing tables and indexes.  Statements are
// idempotent so it is safe to run on every start.
func Migrate(ctx context.Context, db *sqlx.DB) error {
	stmts, err := Schema(db.DriverName())
	if err != nil {
		return err
	}
	for i, stmt := range stmts {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return errors.Wrapf(err, "migrate statement %d", i)
		}
	}
	log.WithField("driver", db.DriverName()).WithField("statements", len(stmts)).Info("schema up to date")
	return nil
}
