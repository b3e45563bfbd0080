package migration

import (
	"context"

	"github.com/railzwaylabs/recon/internal/config"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

var Module = fx.Module("migrations",
	fx.Invoke(func(conn *gorm.DB, cfg config.Config, log *zap.Logger) error {
		if err := RunMigrations(context.Background(), conn, cfg.Database.Driver); err != nil {
			return err
		}
		log.Named("migrations").Info("schema up to date", zap.String("driver", cfg.Database.Driver))
		return nil
	}),
)
