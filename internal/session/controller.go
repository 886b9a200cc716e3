// Package session drives a monitoring session from start to summary.
package session

import (
	"context"
	"time"

	"codeberg.org/mutker/socmonitor/internal/config"
	"codeberg.org/mutker/socmonitor/internal/errors"
	"codeberg.org/mutker/socmonitor/internal/logger"
	"codeberg.org/mutker/socmonitor/internal/schedule"
	"codeberg.org/mutker/socmonitor/internal/telemetry"
	"codeberg.org/mutker/socmonitor/internal/workers"
)

// Options wires a Controller. Source and Emitter are required; the rest
// default to no-ops and the system clock.
type Options struct {
	Config  *config.Config
	Source  telemetry.Source
	Emitter Emitter
	Hooks   CommandRunner
	Workers WorkerPool
	Archive Archive
	Clock   schedule.Clock
}

// Controller runs sessions. It holds no session state itself, so one
// Controller may run several sessions one after another.
type Controller struct {
	cfg     *config.Config
	source  telemetry.Source
	emitter Emitter
	hooks   CommandRunner
	workers WorkerPool
	archive Archive
	clock   schedule.Clock
}

func NewController(opts Options) *Controller {
	c := &Controller{
		cfg:     opts.Config,
		source:  opts.Source,
		emitter: opts.Emitter,
		hooks:   opts.Hooks,
		workers: opts.Workers,
		archive: opts.Archive,
		clock:   opts.Clock,
	}

	if c.hooks == nil {
		c.hooks = noopRunner{}
	}
	if c.workers == nil {
		c.workers = noopPool{}
	}
	if c.archive == nil {
		c.archive = noopArchive{}
	}
	if c.clock == nil {
		c.clock = schedule.SystemClock()
	}

	return c
}

// Run executes one session. Cancelling ctx requests termination: the session
// stops at the next loop check or wait, then still takes its end snapshot,
// runs its hooks and emits its summary.
//
// Run fails before sampling if the configuration is invalid, and aborts
// without a summary if telemetry cannot be read.
func (c *Controller) Run(ctx context.Context) (*Session, error) {
	errFactory := errors.New()

	if c.cfg == nil {
		return nil, errFactory.WithMessage(ErrInvalidConfig, "missing configuration")
	}
	if err := c.cfg.Validate(); err != nil {
		return nil, errFactory.Wrap(ErrInvalidConfig, err)
	}
	if c.source == nil {
		return nil, errFactory.New(ErrMissingSource)
	}
	if c.emitter == nil {
		return nil, errFactory.New(ErrMissingEmitter)
	}

	kinds, err := workers.ParseKinds(c.cfg.Workers)
	if err != nil {
		return nil, errFactory.Wrap(ErrInvalidConfig, err)
	}

	// Reads, hooks and archive writes must complete even after an interrupt.
	bg := context.WithoutCancel(ctx)

	s := newSession(c.cfg.SampleInterval())
	logger.Debug().Str("session", s.ID).Msg("Session initialising")

	c.hooks.Run(bg, c.cfg.Hooks.OnStart)

	s.startedAt = c.clock.Now()
	c.emit(c.emitter.EmitHeader(Header{SessionID: s.ID, StartedAt: s.startedAt}), "header")

	cause, err := c.step(bg, s)
	if err != nil {
		return s, errFactory.Wrap(ErrBaselineFailed, err)
	}

	if err := c.workers.Start(ctx, kinds); err != nil {
		logger.Warn().Err(err).Msg("Failed to start workers")
	}

	s.state = StateRunning
	logger.Debug().Str("session", s.ID).Msg("Session running")

	if cause == CauseNone {
		cause, err = c.loop(ctx, bg, s)
		if err != nil {
			c.workers.Stop()
			s.state = StateDone
			return s, errFactory.Wrap(ErrAborted, err)
		}
	}

	s.cause = cause
	s.state = StateTerminating
	logger.Info().Str("cause", cause.String()).Msg("Session terminating")

	if err := c.terminate(bg, s); err != nil {
		c.workers.Stop()
		s.state = StateDone
		return s, errFactory.Wrap(ErrAborted, err)
	}

	s.state = StateDone

	return s, nil
}

func (c *Controller) loop(ctx, bg context.Context, s *Session) (Cause, error) {
	period := c.cfg.SampleInterval()

	for {
		if ctx.Err() != nil {
			return CauseInterrupt, nil
		}

		tick, wait := schedule.NextTick(period, s.startedAt, c.clock.Now(), s.tick)
		if err := c.clock.Wait(ctx, wait); err != nil {
			return CauseInterrupt, nil
		}
		s.tick = tick

		cause, err := c.step(bg, s)
		if err != nil {
			return CauseNone, err
		}
		if cause != CauseNone {
			return cause, nil
		}
	}
}

// step takes one reading, commits it and reports whether a threshold holds.
func (c *Controller) step(ctx context.Context, s *Session) (Cause, error) {
	reading, err := c.source.Read(ctx)
	if err != nil {
		return CauseNone, errors.New().Wrap(ErrTelemetryFailed, err)
	}

	sample, estimate := s.commit(c.clock.Now(), reading)

	if err := c.archive.RecordSample(ctx, s.ID, sample, estimate); err != nil {
		logger.Warn().Err(err).Int("sample", sample.Index).Msg("Failed to archive sample")
	}

	if sample.Index%c.cfg.OutputEvery() == 0 {
		c.emit(c.emitter.EmitSample(sample, estimate), "sample")
	}

	logger.Debug().
		Int("sample", sample.Index).
		Float64("soc", sample.StateOfCharge).
		Bool("rate_defined", estimate.Defined()).
		Float64("rate", estimate.RatePercentPerHour.Value).
		Msg("Sample committed")

	return c.evaluate(sample), nil
}

func (c *Controller) evaluate(sample Sample) Cause {
	if c.cfg.MinimumSoC != nil && sample.StateOfCharge <= *c.cfg.MinimumSoC {
		logger.Info().
			Float64("soc", sample.StateOfCharge).
			Float64("minimum_soc", *c.cfg.MinimumSoC).
			Msg("State of charge reached the minimum level")
		return CauseMinimumSoC
	}
	if c.cfg.MaximumSoC != nil && sample.StateOfCharge >= *c.cfg.MaximumSoC {
		logger.Info().
			Float64("soc", sample.StateOfCharge).
			Float64("maximum_soc", *c.cfg.MaximumSoC).
			Msg("State of charge reached the maximum level")
		return CauseMaximumSoC
	}

	return CauseNone
}

func (c *Controller) terminate(ctx context.Context, s *Session) error {
	reading, err := c.source.Read(ctx)
	if err != nil {
		return errors.New().Wrap(ErrSnapshotFailed, err)
	}

	endedAt := c.clock.Now()
	summary := Summary{
		Start: s.history[0],
		End: Sample{
			Index:            s.last().Index,
			Time:             endedAt,
			StateOfCharge:    reading.StateOfCharge,
			SecondsRemaining: reading.SecondsRemaining,
			RemainingKnown:   reading.RemainingKnown,
		},
		StartEstimate: s.startEstimate,
		EndEstimate:   s.estimator.Estimate(),
		Duration:      endedAt.Sub(s.startedAt),
		Cause:         s.cause,
		Samples:       len(s.history),
	}

	switch s.cause {
	case CauseMinimumSoC:
		c.hooks.Run(ctx, c.cfg.Hooks.OnMinimumSoC)
	case CauseMaximumSoC:
		c.hooks.Run(ctx, c.cfg.Hooks.OnMaximumSoC)
	}
	c.hooks.Run(ctx, c.cfg.Hooks.OnEnd)

	c.workers.Stop()

	s.summary = &summary
	c.emit(c.emitter.EmitSummary(summary), "summary")

	if err := c.archive.RecordSummary(ctx, s.ID, summary); err != nil {
		logger.Warn().Err(err).Msg("Failed to archive summary")
	}

	logger.Debug().
		Str("session", s.ID).
		Int("samples", summary.Samples).
		Dur("duration", summary.Duration.Round(time.Second)).
		Msg("Session done")

	return nil
}

func (c *Controller) emit(err error, what string) {
	if err != nil {
		logger.Warn().Err(err).Str("output", what).Msg("Failed to emit output")
	}
}

