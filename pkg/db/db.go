package db

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/glebarez/sqlite"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/railzwaylabs/recon/internal/config"
	"github.com/uptrace/opentelemetry-go-extra/otelgorm"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
	gormprometheus "gorm.io/plugin/prometheus"
)

var Module = fx.Module("db",
	fx.Provide(New),
)

const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
)

var (
	// ErrBusy marks a write that lost a lock wait; the caller may retry.
	ErrBusy = errors.New("database_busy")

	ErrUnsupportedDriver = errors.New("unsupported_database_driver")
)

// pgLockNotAvailable is the Postgres SQLSTATE for lock_not_available.
const pgLockNotAvailable = "55P03"

type Params struct {
	fx.In

	Lifecycle fx.Lifecycle
	Cfg       config.Config
	Log       *zap.Logger
}

func New(p Params) (*gorm.DB, error) {
	conn, err := Open(p.Cfg.Database)
	if err != nil {
		return nil, err
	}

	if p.Cfg.MetricsEnabled {
		if err := conn.Use(gormprometheus.New(gormprometheus.Config{
			DBName:          p.Cfg.Database.Driver,
			RefreshInterval: 15,
		})); err != nil {
			p.Log.Warn("failed to enable database metrics", zap.Error(err))
		}
	}

	if p.Cfg.Tracing.Endpoint != "" {
		if err := conn.Use(otelgorm.NewPlugin(otelgorm.WithDBName(p.Cfg.Database.Driver))); err != nil {
			p.Log.Warn("failed to enable database tracing", zap.Error(err))
		}
	}

	p.Lifecycle.Append(fx.Hook{
		OnStop: func(ctx context.Context) error {
			sqlDB, err := conn.DB()
			if err != nil {
				return err
			}
			return sqlDB.Close()
		},
	})

	p.Log.Info("database opened",
		zap.String("driver", p.Cfg.Database.Driver),
		zap.Duration("busy_timeout", p.Cfg.Database.BusyTimeout),
	)
	return conn, nil
}

// Open connects to the configured store without fx.
func Open(cfg config.DatabaseConfig) (*gorm.DB, error) {
	var dialector gorm.Dialector
	switch cfg.Driver {
	case DriverSQLite, "":
		dialector = sqlite.Open(sqliteDSN(cfg))
	case DriverPostgres:
		dialector = postgres.Open(cfg.DSN)
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedDriver, cfg.Driver)
	}

	conn, err := gorm.Open(dialector, &gorm.Config{
		Logger: logger.Default.LogMode(logger.Warn),
	})
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	if cfg.MaxOpenConns > 0 {
		sqlDB, err := conn.DB()
		if err != nil {
			return nil, err
		}
		sqlDB.SetMaxOpenConns(cfg.MaxOpenConns)
	}
	return conn, nil
}

func sqliteDSN(cfg config.DatabaseConfig) string {
	dsn := cfg.DSN
	if dsn == "" {
		dsn = "recon.db"
	}
	sep := "?"
	if strings.Contains(dsn, "?") {
		sep = "&"
	}
	return fmt.Sprintf("%s%s_pragma=busy_timeout(%d)&_pragma=foreign_keys(1)", dsn, sep, cfg.BusyTimeout.Milliseconds())
}

// IsBusy reports whether err is lock contention rather than an integrity or
// syntax failure.
func IsBusy(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, ErrBusy) {
		return true
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == pgLockNotAvailable
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "database is locked") || strings.Contains(msg, "sqlite_busy")
}

// Classify wraps lock contention in ErrBusy and returns other errors as is.
func Classify(err error) error {
	if err == nil || errors.Is(err, ErrBusy) {
		return err
	}
	if IsBusy(err) {
		return fmt.Errorf("%w: %v", ErrBusy, err)
	}
	return err
}
