package migration

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"
)

var ErrSchemaNotCurrent = errors.New("schema_not_current")

// EnforceSchemaGate refuses to start a process against a store that has not
// been migrated to the embedded schema version.
func EnforceSchemaGate(conn *gorm.DB) error {
	latest, err := LatestMigrationVersion()
	if err != nil {
		return err
	}
	state, err := CurrentSchemaState(context.Background(), conn)
	if err != nil {
		return fmt.Errorf("read schema state: %w", err)
	}
	want := fmt.Sprintf("%d", latest)
	if state == nil {
		return fmt.Errorf("%w: run `recon migrate` first", ErrSchemaNotCurrent)
	}
	if state.SchemaVersion != want {
		return fmt.Errorf("%w: have %s, want %s", ErrSchemaNotCurrent, state.SchemaVersion, want)
	}
	return nil
}
