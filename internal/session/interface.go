package session

import (
	"context"
	"time"

	"codeberg.org/mutker/socmonitor/internal/estimator"
	"codeberg.org/mutker/socmonitor/internal/workers"
)

// Emitter renders session output. Calls are synchronous and made in session
// order: the header first, samples in index order, the summary last.
type Emitter interface {
	EmitHeader(header Header) error
	EmitSample(sample Sample, estimate estimator.Estimate) error
	EmitSummary(summary Summary) error
}

// CommandRunner runs operator supplied commands. Failures are the runner's
// concern and never reach the session.
type CommandRunner interface {
	Run(ctx context.Context, command string)
}

// WorkerPool runs background load for the duration of a session.
type WorkerPool interface {
	Start(ctx context.Context, kinds []workers.Kind) error
	Stop()
}

// Archive records a session for later analysis.
type Archive interface {
	RecordSample(ctx context.Context, sessionID string, sample Sample, estimate estimator.Estimate) error
	RecordSummary(ctx context.Context, sessionID string, summary Summary) error
}

// Header describes a session that is about to start sampling.
type Header struct {
	SessionID string
	StartedAt time.Time
}

type noopRunner struct{}

func (noopRunner) Run(context.Context, string) {}

type noopPool struct{}

func (noopPool) Start(context.Context, []workers.Kind) error { return nil }
func (noopPool) Stop()                                        {}

type noopArchive struct{}

func (noopArchive) RecordSample(context.Context, string, Sample, estimator.Estimate) error {
	return nil
}

func (noopArchive) RecordSummary(context.Context, string, Summary) error {
	return nil
}
