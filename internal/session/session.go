package session

import (
	"time"

	"codeberg.org/mutker/socmonitor/internal/estimator"
	"codeberg.org/mutker/socmonitor/internal/telemetry"
	"github.com/google/uuid"
)

// State is a lifecycle phase of a session.
type State int

const (
	StateInit State = iota
	StateRunning
	StateTerminating
	StateDone
)

func (s State) String() string {
	switch s {
	case StateInit:
		return "init"
	case StateRunning:
		return "running"
	case StateTerminating:
		return "terminating"
	case StateDone:
		return "done"
	default:
		return "unknown"
	}
}

// Cause is the reason a session left the running state.
type Cause int

const (
	CauseNone Cause = iota
	CauseMinimumSoC
	CauseMaximumSoC
	CauseInterrupt
)

func (c Cause) String() string {
	switch c {
	case CauseMinimumSoC:
		return "minimum_soc"
	case CauseMaximumSoC:
		return "maximum_soc"
	case CauseInterrupt:
		return "interrupt"
	default:
		return "none"
	}
}

// Sample is one committed telemetry reading.
type Sample struct {
	Index            int
	Time             time.Time
	StateOfCharge    float64
	SecondsRemaining int
	RemainingKnown   bool
}

// Elapsed returns the time since start.
func (s Sample) Elapsed(start time.Time) time.Duration {
	return s.Time.Sub(start)
}

// Summary describes a finished session.
type Summary struct {
	Start         Sample
	// End is the snapshot read while terminating. It is not part of the
	// history: its SoC and Time come from the snapshot, and Index is the
	// index of the last sample committed before it.
	End           Sample
	StartEstimate estimator.Estimate
	// EndEstimate spans the first to the last observed SoC transition, not
	// the whole history, so plateaus at either end do not dilute the rate.
	EndEstimate   estimator.Estimate
	Duration      time.Duration
	Cause         Cause
	Samples       int
}

// Session holds everything scoped to a single run.
type Session struct {
	ID string

	state         State
	startedAt     time.Time
	tick          int // schedule tick of the last committed sample
	history       []Sample
	estimator     *estimator.Estimator
	startEstimate estimator.Estimate
	cause         Cause
	summary       *Summary
}

func newSession(period time.Duration) *Session {
	return &Session{
		ID:        uuid.NewString(),
		state:     StateInit,
		estimator: estimator.New(period),
	}
}

// commit appends a reading to the history and feeds it to the estimator.
func (s *Session) commit(at time.Time, reading telemetry.Reading) (Sample, estimator.Estimate) {
	sample := Sample{
		Index:            len(s.history),
		Time:             at,
		StateOfCharge:    reading.StateOfCharge,
		SecondsRemaining: reading.SecondsRemaining,
		RemainingKnown:   reading.RemainingKnown,
	}
	s.history = append(s.history, sample)

	estimate := s.estimator.Observe(sample.Index, sample.StateOfCharge)
	if !s.startEstimate.Defined() && estimate.Defined() {
		s.startEstimate = estimate
	}

	return sample, estimate
}

func (s *Session) last() Sample {
	return s.history[len(s.history)-1]
}

// State returns the current lifecycle phase.
func (s *Session) State() State {
	return s.state
}

// StartedAt returns the time of the baseline sample.
func (s *Session) StartedAt() time.Time {
	return s.startedAt
}

// History returns a copy of the committed samples.
func (s *Session) History() []Sample {
	out := make([]Sample, len(s.history))
	copy(out, s.history)
	return out
}

// Cause returns why the session stopped running.
func (s *Session) Cause() Cause {
	return s.cause
}

// Summary returns the session summary once the session is done.
func (s *Session) Summary() (Summary, bool) {
	if s.summary == nil {
		return Summary{}, false
	}
	return *s.summary, true
}

// EstimatorState exposes the transition tracking of the session's estimator.
func (s *Session) EstimatorState() estimator.State {
	return s.estimator.State()
}
