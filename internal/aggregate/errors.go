package aggregate

import "codeberg.org/mutker/sensorsim/internal/errors"

const (
	ErrQueryFailed = errors.ErrorCode("aggregate_query_failed")
)
