package migration

import (
	"context"
	"fmt"
	"time"

	ledgerdomain "github.com/railzwaylabs/recon/internal/ledger/domain"
	"github.com/railzwaylabs/recon/internal/platform"
	"gorm.io/gorm"
)

// seededPlatforms start with zero fee defaults; operators tune them later.
var seededPlatforms = []string{
	platform.Ilasouq,
	platform.Noon,
	platform.Trendyol,
	platform.Amazon,
	platform.Website,
}

const legacySnapshotLabel = "Legacy"

func seedReferenceData(ctx context.Context, conn *gorm.DB) error {
	return conn.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := seedPlatforms(tx); err != nil {
			return err
		}
		return seedLegacySnapshot(tx)
	})
}

func seedPlatforms(tx *gorm.DB) error {
	const stmt = `
		INSERT INTO platforms (name, commission_rate, tax_rate, shipping_default)
		VALUES (?, 0, 0, 0)
		ON CONFLICT (name) DO NOTHING
	`
	for _, name := range seededPlatforms {
		if err := tx.Exec(stmt, name).Error; err != nil {
			return fmt.Errorf("seed platform %s: %w", name, err)
		}
	}
	return nil
}

func seedLegacySnapshot(tx *gorm.DB) error {
	err := tx.Exec(`
		INSERT INTO weekly_snapshots (id, label, week_number, year, notes, created_at)
		VALUES (?, ?, 0, 0, '', ?)
		ON CONFLICT (id) DO NOTHING
	`, ledgerdomain.LegacySnapshotID, legacySnapshotLabel, time.Now().UTC()).Error
	if err != nil {
		return fmt.Errorf("seed legacy snapshot: %w", err)
	}
	return nil
}
