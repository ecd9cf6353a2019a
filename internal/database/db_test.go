package database

import (
	"context"
	"regexp"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/campus-reservation/internal/config"
)

func TestDSN(t *testing.T) {
	cfg := config.Config{DBDriver: "mysql", DBUser: "app", DBPass: "pw", DBHost: "db", DBPort: "3306", DBName: "campus"}
	assert.Equal(t, "app:pw@tcp(db:3306)/campus?charset=utf8mb4&parseTime=true&loc=UTC", DSN(cfg))

	cfg.DBDriver = "postgres"
	assert.Equal(t, "host=db port=3306 user=app dbname=campus sslmode=disable TimeZone=UTC password=pw", DSN(cfg))

	cfg.DBDSN = "postgres://explicit"
	assert.Equal(t, "postgres://explicit", DSN(cfg))
}

func TestMigrateRunsEveryStatement(t *testing.T) {
	raw, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer raw.Close()
	db := sqlx.NewDb(raw, "postgres")

	stmts, err := Schema("postgres")
	require.NoError(t, err)
	for _, s := range stmts {
		mock.ExpectExec(regexp.QuoteMeta(s)).WillReturnResult(sqlmock.NewResult(0, 0))
	}
	require.NoError(t, Migrate(context.Background(), db))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSchemaUnknownDriver(t *testing.T) {
	_, err := Schema("sqlite3")
	assert.Error(t, err)
}
