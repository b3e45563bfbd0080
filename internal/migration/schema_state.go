package migration

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"gorm.io/gorm"
)

// SchemaState is the single row describing the applied schema.
type SchemaState struct {
	ID            int       `gorm:"primaryKey;autoIncrement:false;default:1"`
	SchemaVersion string    `gorm:"type:text;not null"`
	Checksum      *string   `gorm:"type:text"`
	ActivatedAt   time.Time `gorm:"not null"`
}

// TableName sets the database table name.
func (SchemaState) TableName() string { return "schema_state" }

func activateSchemaState(ctx context.Context, conn *gorm.DB, schemaVersion, checksum string) error {
	version := strings.TrimSpace(schemaVersion)
	if version == "" {
		return errors.New("schema version is required for schema state activation")
	}

	err := conn.WithContext(ctx).Exec(`
		INSERT INTO schema_state (id, schema_version, checksum, activated_at)
		VALUES (1, ?, ?, ?)
		ON CONFLICT (id) DO UPDATE
		SET schema_version = excluded.schema_version,
		    checksum = excluded.checksum,
		    activated_at = excluded.activated_at
	`, version, nullIfEmpty(checksum), time.Now().UTC()).Error
	if err != nil {
		return fmt.Errorf("activate schema state: %w", err)
	}
	return nil
}

// CurrentSchemaState returns the recorded schema row, or nil before the
// first migration.
func CurrentSchemaState(ctx context.Context, conn *gorm.DB) (*SchemaState, error) {
	var state SchemaState
	err := conn.WithContext(ctx).Raw(
		`SELECT id, schema_version, checksum, activated_at FROM schema_state WHERE id = 1`,
	).Scan(&state).Error
	if err != nil {
		return nil, err
	}
	if state.SchemaVersion == "" {
		return nil, nil
	}
	return &state, nil
}

func nullIfEmpty(value string) any {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return nil
	}
	return trimmed
}
