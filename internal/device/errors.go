package device

import "codeberg.org/mutker/sensorsim/internal/errors"

const (
	ErrNotConnected  = errors.ErrorCode("device_not_connected")
	ErrConnectFailed = errors.ErrorCode("device_connect_failed")
	ErrStoreFailed   = errors.ErrorCode("device_store_failed")
	ErrInvalidRun    = errors.ErrorCode("device_invalid_run")
)
