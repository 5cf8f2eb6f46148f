package telemetry

import (
	"context"
	"database/sql"
	"strings"
	"time"

	"codeberg.org/mutker/sensorsim/internal/errors"
	"codeberg.org/mutker/sensorsim/internal/sensor"
)

// Insert appends the batch in one transaction. On failure nothing of the
// batch is visible and the error carries ErrStoreUnavailable.
func (s *SQLiteStore) Insert(ctx context.Context, batch []sensor.Reading) error {
	if len(batch) == 0 {
		return nil
	}

	errFactory := errors.New()

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return errFactory.WithMessage(ErrStoreUnavailable, "telemetry store is closed")
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return errFactory.Wrap(ErrStoreUnavailable, err)
	}

	committed := false
	defer func() {
		if !committed {
			if err := tx.Rollback(); err != nil && !errors.Is(err, sql.ErrTxDone) {
				s.log.Debug().Err(err).Msg("Failed to roll back batch")
			}
		}
	}()

	stmt, err := tx.PrepareContext(ctx, insertReadingSQL)
	if err != nil {
		return errFactory.Wrap(ErrStoreUnavailable, err)
	}
	defer stmt.Close()

	for _, r := range batch {
		if _, err := stmt.ExecContext(ctx,
			r.Timestamp.UTC(),
			r.DeviceID,
			r.Kind.String(),
			r.Value,
			r.Unit,
		); err != nil {
			return errFactory.Wrap(ErrStoreUnavailable, errFactory.WithData(ErrTransactionFailed, struct {
				Phase    string
				DeviceID string
				Error    string
			}{
				Phase:    "insert_reading",
				DeviceID: r.DeviceID,
				Error:    err.Error(),
			}))
		}
	}

	if err := tx.Commit(); err != nil {
		return errFactory.Wrap(ErrStoreUnavailable, err)
	}
	committed = true

	s.log.Debug().Int("readings", len(batch)).Msg("Batch committed")
	return nil
}

// Query returns matching readings ordered by timestamp ascending.
func (s *SQLiteStore) Query(ctx context.Context, f Filter) ([]sensor.Reading, error) {
	var (
		where = []string{"timestamp >= ?"}
		args  = []any{f.Since.UTC()}
	)
	if f.DeviceID != "" {
		where = append(where, "device_id = ?")
		args = append(args, f.DeviceID)
	}
	if f.Kind != nil {
		where = append(where, "sensor_type = ?")
		args = append(args, f.Kind.String())
	}

	query := "SELECT timestamp, device_id, sensor_type, value, unit FROM sensor_data WHERE " +
		strings.Join(where, " AND ") +
		" ORDER BY timestamp, rowid"

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, errors.New().Wrap(ErrStoreUnavailable, err)
	}
	defer rows.Close()

	var readings []sensor.Reading
	for rows.Next() {
		var (
			r    sensor.Reading
			ts   time.Time
			kind string
		)
		if err := rows.Scan(&ts, &r.DeviceID, &kind, &r.Value, &r.Unit); err != nil {
			return nil, errors.New().Wrap(ErrStoreUnavailable, err)
		}
		r.Timestamp = ts.UTC()
		r.Kind = sensor.ParseKind(kind)
		readings = append(readings, r)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.New().Wrap(ErrStoreUnavailable, err)
	}

	return readings, nil
}

// Devices returns the distinct device ids, sorted.
func (s *SQLiteStore) Devices(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT DISTINCT device_id FROM sensor_data ORDER BY device_id")
	if err != nil {
		return nil, errors.New().Wrap(ErrStoreUnavailable, err)
	}
	defer rows.Close()

	var devices []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, errors.New().Wrap(ErrStoreUnavailable, err)
		}
		devices = append(devices, id)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.New().Wrap(ErrStoreUnavailable, err)
	}
	return devices, nil
}

// Kinds returns the distinct sensor kinds, optionally for one device, sorted by name.
func (s *SQLiteStore) Kinds(ctx context.Context, deviceID string) ([]sensor.Kind, error) {
	query := "SELECT DISTINCT sensor_type FROM sensor_data"
	var args []any
	if deviceID != "" {
		query += " WHERE device_id = ?"
		args = append(args, deviceID)
	}
	query += " ORDER BY sensor_type"

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, errors.New().Wrap(ErrStoreUnavailable, err)
	}
	defer rows.Close()

	var kinds []sensor.Kind
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, errors.New().Wrap(ErrStoreUnavailable, err)
		}
		kinds = append(kinds, sensor.ParseKind(name))
	}
	if err := rows.Err(); err != nil {
		return nil, errors.New().Wrap(ErrStoreUnavailable, err)
	}
	return kinds, nil
}

// Count returns the total number of stored readings.
func (s *SQLiteStore) Count(ctx context.Context) (int, error) {
	var n int
	if err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM sensor_data").Scan(&n); err != nil {
		return 0, errors.New().Wrap(ErrStoreUnavailable, err)
	}
	return n, nil
}
