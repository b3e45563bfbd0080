package migration

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"io/fs"
	"time"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	costingdomain "github.com/railzwaylabs/recon/internal/costing/domain"
	ledgerdomain "github.com/railzwaylabs/recon/internal/ledger/domain"
	"github.com/railzwaylabs/recon/pkg/db"
	"gorm.io/gorm"
)

const migrationsDir = "migrations"

//go:embed migrations/*.sql
var embeddedMigrations embed.FS

// Models lists every table the application owns, for stores migrated
// through the ORM.
func Models() []any {
	return []any{
		&ledgerdomain.Snapshot{},
		&ledgerdomain.Order{},
		&ledgerdomain.Collection{},
		&ledgerdomain.Platform{},
		&ledgerdomain.Account{},
		&ledgerdomain.WeeklyReport{},
		&ledgerdomain.ReturnScan{},
		&ledgerdomain.FileImport{},
		&costingdomain.ProductCost{},
		&SchemaState{},
	}
}

// RunMigrations brings the schema up to date, seeds the reference rows and
// records the applied schema version. Postgres applies the embedded SQL
// under an advisory lock; SQLite is migrated from the models.
func RunMigrations(ctx context.Context, conn *gorm.DB, driver string) error {
	if conn == nil {
		return errors.New("migration database handle is required")
	}

	ctx, cancel := context.WithTimeout(ctx, 2*time.Minute)
	defer cancel()

	latestVersion, err := LatestMigrationVersion()
	if err != nil {
		return err
	}
	checksum, err := MigrationsChecksum()
	if err != nil {
		return err
	}

	switch driver {
	case db.DriverPostgres:
		sqlDB, err := conn.DB()
		if err != nil {
			return err
		}
		unlock, err := acquireAdvisoryLock(ctx, sqlDB)
		if err != nil {
			return err
		}
		defer func() {
			_ = unlock(context.Background())
		}()
		if err := migratePostgres(sqlDB, latestVersion); err != nil {
			return err
		}
	case db.DriverSQLite, "":
		if err := conn.WithContext(ctx).AutoMigrate(Models()...); err != nil {
			return fmt.Errorf("auto migrate: %w", err)
		}
	default:
		return fmt.Errorf("%w: %s", db.ErrUnsupportedDriver, driver)
	}

	if err := seedReferenceData(ctx, conn); err != nil {
		return err
	}
	return activateSchemaState(ctx, conn, fmt.Sprintf("%d", latestVersion), checksum)
}

func migratePostgres(sqlDB *sql.DB, latestVersion uint) error {
	sub, err := fs.Sub(embeddedMigrations, migrationsDir)
	if err != nil {
		return fmt.Errorf("open migrations: %w", err)
	}

	source, err := iofs.New(sub, ".")
	if err != nil {
		return fmt.Errorf("create migration source: %w", err)
	}

	driver, err := postgres.WithInstance(sqlDB, &postgres.Config{})
	if err != nil {
		return fmt.Errorf("create migration driver: %w", err)
	}

	migrator, err := migrate.NewWithInstance("iofs", source, "postgres", driver)
	if err != nil {
		return fmt.Errorf("create migrator: %w", err)
	}

	if _, err := ensureNotDirty(migrator); err != nil {
		return err
	}

	upErr := migrator.Up()
	if upErr != nil && !errors.Is(upErr, migrate.ErrNoChange) {
		return fmt.Errorf("apply migrations: %w", upErr)
	}

	currentVersion, err := ensureNotDirty(migrator)
	if err != nil {
		return err
	}
	if currentVersion != latestVersion {
		return fmt.Errorf("schema version mismatch after migrate: got %d want %d", currentVersion, latestVersion)
	}
	return nil
}

func ensureNotDirty(migrator *migrate.Migrate) (uint, error) {
	if migrator == nil {
		return 0, errors.New("migrator is required")
	}

	version, dirty, err := migrator.Version()
	if err != nil {
		if errors.Is(err, migrate.ErrNilVersion) {
			return 0, nil
		}
		return 0, fmt.Errorf("read migration version: %w", err)
	}
	if dirty {
		return 0, fmt.Errorf("database migrations are dirty at version %d", version)
	}
	return version, nil
}
