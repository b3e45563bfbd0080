package main

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/railzwaylabs/recon/internal/clock"
	"github.com/railzwaylabs/recon/internal/config"
	"github.com/railzwaylabs/recon/internal/costing"
	"github.com/railzwaylabs/recon/internal/ledger"
	"github.com/railzwaylabs/recon/internal/migration"
	"github.com/railzwaylabs/recon/internal/observability"
	"github.com/railzwaylabs/recon/internal/pipeline"
	"github.com/railzwaylabs/recon/internal/redis"
	"github.com/railzwaylabs/recon/internal/server"
	"github.com/railzwaylabs/recon/pkg/db"
	"github.com/spf13/cobra"
	"go.uber.org/fx"
	"go.uber.org/fx/fxevent"
	"go.uber.org/zap"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "recon",
		Short:         "Weekly orders and collections reconciliation",
		Version:       readVersionFromEnv(),
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.AddCommand(
		newMigrateCmd(),
		newServeCmd(),
		newProcessCmd(),
		newSnapshotCmd(),
		newCostsCmd(),
		newReportCmd(),
		newReturnsCmd(),
	)
	return root
}

func newMigrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Run database migrations and seed reference data",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runMigrate()
		},
	}
}

func newServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API",
		RunE: func(cmd *cobra.Command, args []string) error {
			runServe()
			return nil
		},
	}
}

func runMigrate() error {
	app := fx.New(
		config.Module,
		observability.Module,
		fx.WithLogger(fxLogger),
		db.Module,
		migration.Module,
	)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	if err := app.Start(ctx); err != nil {
		return fmt.Errorf("migrate failed: %w", err)
	}
	_ = app.Stop(context.Background())
	return nil
}

func runServe() {
	app := fx.New(
		append(serviceModules(),
			fx.Invoke(migration.EnforceSchemaGate),
			server.Module,
		)...,
	)
	app.Run()
}

// serviceModules is everything a command needs to read and write the ledger.
func serviceModules() []fx.Option {
	return []fx.Option{
		config.Module,
		observability.Module,
		fx.WithLogger(fxLogger),
		fx.Provide(registerSnowflake),
		db.Module,
		clock.Module,
		redis.Module,
		ledger.Module,
		costing.Module,
		pipeline.Module,
	}
}

// withServices starts a short-lived application, fills targets and runs fn.
// Background work is drained before returning.
func withServices(fn func(ctx context.Context) error, targets ...any) error {
	app := fx.New(
		append(serviceModules(),
			fx.Invoke(migration.EnforceSchemaGate),
			fx.Populate(targets...),
		)...,
	)

	startCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := app.Start(startCtx); err != nil {
		return err
	}

	runErr := fn(context.Background())

	stopCtx, stopCancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer stopCancel()
	if err := app.Stop(stopCtx); err != nil && runErr == nil {
		runErr = err
	}
	return runErr
}

func fxLogger(log *zap.Logger) fxevent.Logger {
	l := &fxevent.ZapLogger{Logger: log.Named("fx")}
	l.UseLogLevel(zap.DebugLevel)
	return l
}

func registerSnowflake(cfg config.Config) (*snowflake.Node, error) {
	return snowflake.NewNode(cfg.SnowflakeNode)
}

func readVersionFromEnv() string {
	if v := strings.TrimSpace(os.Getenv("APP_VERSION")); v != "" {
		return v
	}
	return "dev"
}
