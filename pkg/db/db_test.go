package db

import (
	"errors"
	"fmt"
	"path/filepath"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/railzwaylabs/recon/internal/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClassify(t *testing.T) {
	tests := []struct {
		name string
		err  error
		busy bool
	}{
		{name: "nil", err: nil, busy: false},
		{name: "sqlite locked", err: errors.New("database is locked (5) (SQLITE_BUSY)"), busy: true},
		{name: "postgres lock not available", err: fmt.Errorf("update: %w", &pgconn.PgError{Code: "55P03"}), busy: true},
		{name: "postgres unique violation", err: &pgconn.PgError{Code: "23505"}, busy: false},
		{name: "constraint", err: errors.New("UNIQUE constraint failed: orders.order_id"), busy: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Classify(tt.err)
			assert.Equal(t, tt.busy, errors.Is(got, ErrBusy))
			if !tt.busy {
				assert.Equal(t, tt.err, got)
			}
		})
	}
}

func TestSQLiteDSN(t *testing.T) {
	dsn := sqliteDSN(config.DatabaseConfig{DSN: "file:x.db?cache=shared", BusyTimeout: 2 * time.Second})
	assert.Equal(t, "file:x.db?cache=shared&_pragma=busy_timeout(2000)&_pragma=foreign_keys(1)", dsn)
}

func TestOpen(t *testing.T) {
	_, err := Open(config.DatabaseConfig{Driver: "mysql"})
	assert.ErrorIs(t, err, ErrUnsupportedDriver)

	conn, err := Open(config.DatabaseConfig{
		Driver:       DriverSQLite,
		DSN:          filepath.Join(t.TempDir(), "recon.db"),
		BusyTimeout:  time.Second,
		MaxOpenConns: 1,
	})
	require.NoError(t, err)

	var timeout int64
	require.NoError(t, conn.Raw("PRAGMA busy_timeout").Scan(&timeout).Error)
	assert.Equal(t, int64(1000), timeout)

	sqlDB, err := conn.DB()
	require.NoError(t, err)
	require.NoError(t, sqlDB.Close())
}
