// Package telemetry is the append-only reading store shared by every
// simulated device and every query-side caller.
package telemetry

import (
	"context"
	"database/sql"
	"os"
	"path/filepath"
	"sync"

	"codeberg.org/mutker/sensorsim/internal/errors"
	"codeberg.org/mutker/sensorsim/internal/logger"

	_ "github.com/mattn/go-sqlite3"
)

// SQLiteStore implements Store on a single SQLite file.
type SQLiteStore struct {
	db     *sql.DB
	log    logger.Logger
	cfg    Config
	mu     sync.Mutex
	closed bool
}

// Open creates the database directory and file if needed and initializes the schema.
func Open(ctx context.Context, cfg Config, log logger.Logger) (*SQLiteStore, error) {
	errFactory := errors.New()

	if err := cfg.Validate(); err != nil {
		return nil, errFactory.Wrap(ErrInvalidConfig, err)
	}

	log.Debug().Str("db_path", cfg.DBPath).Msg("Opening telemetry store")

	if dir := filepath.Dir(cfg.DBPath); dir != "" && dir != "." {
		if err := os.MkdirAll(dir, defaultDirPerm); err != nil {
			return nil, errFactory.WithData(ErrStorageInit, struct {
				Phase string
				Path  string
				Error string
			}{
				Phase: "create_directory",
				Path:  dir,
				Error: err.Error(),
			})
		}
	}

	db, err := sql.Open("sqlite3", cfg.dsn())
	if err != nil {
		return nil, errFactory.Wrap(ErrStorageInit, err)
	}

	if err := InitSchema(ctx, db); err != nil {
		db.Close()
		return nil, errFactory.Wrap(ErrStorageInit, err)
	}

	exists, err := tableExists(ctx, db, readingsTable)
	if err != nil {
		db.Close()
		return nil, errFactory.Wrap(ErrStorageInit, err)
	}
	if !exists {
		db.Close()
		return nil, errFactory.WithMessage(ErrStorageInit, "table "+readingsTable+" missing after schema init")
	}

	log.Info().
		Str("db_path", cfg.DBPath).
		Int("schema_version", SchemaVersion).
		Msg("Telemetry store ready")

	return &SQLiteStore{
		db:  db,
		log: log,
		cfg: cfg,
	}, nil
}

// Close checkpoints the WAL and closes the database. Further calls are no-ops.
func (s *SQLiteStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil
	}
	s.closed = true

	if _, err := s.db.Exec("PRAGMA wal_checkpoint(TRUNCATE)"); err != nil {
		s.log.Warn().Err(err).Msg("Failed to checkpoint WAL")
	}

	if err := s.db.Close(); err != nil {
		return errors.New().Wrap(ErrStorageClose, err)
	}

	s.log.Info().Msg("Telemetry store closed")
	return nil
}
