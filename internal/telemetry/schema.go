package telemetry

import (
	"context"
	"database/sql"

	"codeberg.org/mutker/sensorsim/internal/errors"
)

const (
	SchemaVersion = 1

	readingsTable = "sensor_data"

	createTablesSQL = `
	   CREATE TABLE IF NOT EXISTS schema_versions (
	       version     INTEGER PRIMARY KEY,
	       applied_at  TEXT NOT NULL
	   );
	   CREATE TABLE IF NOT EXISTS sensor_data (
	       timestamp   TIMESTAMP NOT NULL,
	       device_id   VARCHAR NOT NULL,
	       sensor_type VARCHAR NOT NULL,
	       value       DOUBLE NOT NULL,
	       unit        VARCHAR NOT NULL
	   );
	   CREATE INDEX IF NOT EXISTS idx_sensor_data_timestamp ON sensor_data (timestamp);`

	recordVersionSQL = `
	   INSERT OR IGNORE INTO schema_versions (version, applied_at)
	   VALUES (?, datetime('now'))`

	insertReadingSQL = `
	   INSERT INTO sensor_data (timestamp, device_id, sensor_type, value, unit)
	   VALUES (?, ?, ?, ?, ?)`
)

// InitSchema creates the telemetry tables if absent. It is idempotent and
// safe to call from several connections at once.
func InitSchema(ctx context.Context, db *sql.DB) error {
	errFactory := errors.New()

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return errFactory.Wrap(ErrSchemaInitFailed, err)
	}

	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback()
		}
	}()

	if _, err := tx.ExecContext(ctx, createTablesSQL); err != nil {
		return errFactory.WithData(ErrSchemaInitFailed, struct {
			Phase string
			Error string
		}{
			Phase: "create_tables",
			Error: err.Error(),
		})
	}

	if _, err := tx.ExecContext(ctx, recordVersionSQL, SchemaVersion); err != nil {
		return errFactory.WithData(ErrSchemaInitFailed, struct {
			Phase string
			Error string
		}{
			Phase: "record_version",
			Error: err.Error(),
		})
	}

	if err := tx.Commit(); err != nil {
		return errFactory.Wrap(ErrSchemaInitFailed, err)
	}
	committed = true

	return nil
}

func tableExists(ctx context.Context, db *sql.DB, tableName string) (bool, error) {
	var exists bool
	err := db.QueryRowContext(ctx, `
        SELECT EXISTS (
            SELECT 1 FROM sqlite_master
            WHERE type='table' AND name=?
        )
    `, tableName).Scan(&exists)
	if err != nil {
		return false, errors.New().Wrap(ErrStoreUnavailable, err)
	}
	return exists, nil
}
