package telemetry

import (
	"fmt"
	"time"

	"codeberg.org/mutker/sensorsim/internal/errors"
)

const (
	defaultDirPerm     = 0o755
	defaultDBPath      = "iot_data.db"
	defaultBusyTimeout = 5 * time.Second
)

type Config struct {
	DBPath      string
	BusyTimeout time.Duration
}

func DefaultConfig() Config {
	return Config{
		DBPath:      defaultDBPath,
		BusyTimeout: defaultBusyTimeout,
	}
}

func (c Config) Validate() error {
	errFactory := errors.New()
	if c.DBPath == "" {
		return errFactory.New(ErrInvalidDBPath)
	}
	if c.BusyTimeout < 0 {
		return errFactory.WithMessage(ErrInvalidConfig, "busy timeout must not be negative")
	}
	return nil
}

// dsn enables WAL so readers never block the writer, and immediate
// transactions so concurrent batches queue on the busy timeout instead of
// failing on lock upgrade.
func (c Config) dsn() string {
	timeout := c.BusyTimeout
	if timeout == 0 {
		timeout = defaultBusyTimeout
	}
	return fmt.Sprintf("file:%s?_journal=WAL&_busy_timeout=%d&_txlock=immediate",
		c.DBPath, timeout.Milliseconds())
}
