package migration

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
)

// advisoryLockKey is shared by every recon migrator on one Postgres server.
const advisoryLockKey int64 = 7_310_226_514

var errMigrationLocked = errors.New("migration_in_progress")

type unlockFunc func(ctx context.Context) error

// acquireAdvisoryLock takes the session lock without waiting.
func acquireAdvisoryLock(ctx context.Context, sqlDB *sql.DB) (unlockFunc, error) {
	if sqlDB == nil {
		return nil, errors.New("advisory lock requires database handle")
	}

	// Session locks belong to one connection, so pin it until unlock.
	conn, err := sqlDB.Conn(ctx)
	if err != nil {
		return nil, fmt.Errorf("reserve connection for advisory lock: %w", err)
	}

	var locked bool
	if err := conn.QueryRowContext(ctx, "SELECT pg_try_advisory_lock($1)", advisoryLockKey).Scan(&locked); err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("acquire advisory lock: %w", err)
	}
	if !locked {
		_ = conn.Close()
		return nil, errMigrationLocked
	}

	return func(unlockCtx context.Context) error {
		defer conn.Close()
		var released bool
		if err := conn.QueryRowContext(unlockCtx, "SELECT pg_advisory_unlock($1)", advisoryLockKey).Scan(&released); err != nil {
			return fmt.Errorf("release advisory lock: %w", err)
		}
		if !released {
			return errors.New("advisory lock was not held by this session")
		}
		return nil
	}, nil
}
