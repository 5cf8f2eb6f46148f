package simulation

import "codeberg.org/mutker/sensorsim/internal/errors"

const (
	ErrInvalidPlan = errors.ErrorCode("simulation_invalid_plan")
	ErrRunFailed   = errors.ErrorCode("simulation_run_failed")
)
