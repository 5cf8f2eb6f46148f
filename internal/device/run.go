package device

import (
	"context"
	"strings"
	"time"

	"codeberg.org/mutker/sensorsim/internal/errors"
)

// Run ticks until duration has elapsed, sleeping interval between ticks.
// It connects lazily before the first tick. Cancelling ctx stops the loop
// after the current tick; a store failure ends the run with an error.
// Tick and Run must not be called concurrently on the same Simulator.
func (s *Simulator) Run(ctx context.Context, interval, duration time.Duration) error {
	errFactory := errors.New()

	if interval <= 0 || duration <= 0 {
		return errFactory.WithData(ErrInvalidRun, struct {
			Interval time.Duration
			Duration time.Duration
		}{
			Interval: interval,
			Duration: duration,
		})
	}

	if err := s.Connect(ctx); err != nil {
		return err
	}

	s.log.Info().
		Str("sensors", s.kindNames()).
		Dur("interval", interval).
		Dur("duration", duration).
		Msg("Starting simulation")

	start := s.clock.Now()
	timer := time.NewTimer(interval)
	defer timer.Stop()

	for s.clock.Now().Sub(start) < duration {
		select {
		case <-ctx.Done():
			s.log.Info().Msg("Simulation cancelled")
			return nil
		default:
		}

		if _, err := s.Tick(ctx); err != nil {
			s.log.Error().Err(err).Msg("Simulation aborted")
			return err
		}

		if !timer.Stop() {
			select {
			case <-timer.C:
			default:
			}
		}
		timer.Reset(interval)

		select {
		case <-ctx.Done():
			s.log.Info().Msg("Simulation cancelled")
			return nil
		case <-timer.C:
		}
	}

	s.log.Info().Msg("Simulation complete")
	return nil
}

func (s *Simulator) kindNames() string {
	names := make([]string, len(s.kinds))
	for i, k := range s.kinds {
		names[i] = k.String()
	}
	return strings.Join(names, ", ")
}
