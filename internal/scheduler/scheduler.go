// Package scheduler drives the periodic refresh loop on a fixed cadence,
// optionally aligned to wall-clock interval boundaries.
package scheduler

import (
	"context"
	"time"

	"github.com/rs/zerolog"
)

// TickFunc runs one refresh. Errors are logged, never fatal to the loop.
type TickFunc func(ctx context.Context, tick time.Time) error

// Options tune scheduler behaviour.
type Options struct {
	Interval     time.Duration
	AlignToStart bool
	StartupDelay time.Duration
}

// Scheduler fires ticks until its context is cancelled.
type Scheduler struct {
	opts   Options
	logger zerolog.Logger
	now    func() time.Time
}

// New constructs a Scheduler instance.
func New(opts Options, logger zerolog.Logger) *Scheduler {
	if opts.Interval <= 0 {
		panic("scheduler interval must be positive")
	}
	return &Scheduler{
		opts:   opts,
		logger: logger.With().Str("component", "scheduler").Logger(),
		now:    time.Now,
	}
}

// Run blocks, invoking tick once per interval until ctx is cancelled.
func (s *Scheduler) Run(ctx context.Context, tick TickFunc) error {
	next := s.firstTick(s.now().UTC())
	for {
		if err := s.sleepUntil(ctx, next); err != nil {
			return err
		}

		s.logger.Info().Time("tick", next).Msg("executing scheduled refresh")
		if err := tick(ctx, next); err != nil {
			s.logger.Error().Err(err).Time("tick", next).Msg("refresh execution failed")
		}

		next = next.Add(s.opts.Interval)
		if behind := s.now().UTC(); next.Before(behind) {
			// A slow tick or clock jump left us behind; realign instead of
			// firing a burst of catch-up ticks.
			next = s.firstTick(behind)
		}
	}
}

// firstTick folds the startup delay into the schedule: the first fire happens
// no earlier than now+delay, on the next interval boundary when aligned.
func (s *Scheduler) firstTick(now time.Time) time.Time {
	earliest := now.Add(s.opts.StartupDelay)
	if !s.opts.AlignToStart {
		return earliest.Add(s.opts.Interval)
	}

	aligned := earliest.Truncate(s.opts.Interval)
	for !aligned.After(earliest) {
		aligned = aligned.Add(s.opts.Interval)
	}
	return aligned
}

func (s *Scheduler) sleepUntil(ctx context.Context, at time.Time) error {
	delay := at.Sub(s.now().UTC())
	if delay < 0 {
		delay = 0
	}

	timer := time.NewTimer(delay)
	defer timer.Stop()

	s.logger.Debug().Time("next_tick", at).Msg("waiting for next refresh tick")
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
