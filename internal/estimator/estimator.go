// Package estimator derives battery consumption rates from quantized state
// of charge readings.
//
// Battery gauges report a coarse value that often repeats for many samples
// before stepping. Deltas between consecutive samples are therefore mostly
// zero and occasionally huge. The Estimator instead anchors on the sample
// indices where the reported value actually changed and measures the rate
// between those transitions.
package estimator

import "time"

const (
	secondsPerHour  = 3600
	percentPerCycle = 100
)

// Measure is a numeric estimate that may be undefined.
type Measure struct {
	Value float64
	Valid bool
}

// Undefined is the Measure reported when no estimate can be made.
var Undefined = Measure{}

func defined(v float64) Measure {
	return Measure{Value: v, Valid: true}
}

// Estimate is a consumption estimate. Positive values mean discharging.
type Estimate struct {
	RatePercentPerHour  Measure
	SecondsPerPercent   Measure
	SecondsPerFullCycle Measure
}

// Defined reports whether the estimate carries a rate.
func (e Estimate) Defined() bool {
	return e.RatePercentPerHour.Valid
}

// State tracks where the state of charge was last seen to change.
type State struct {
	FirstChangeIndex *int
	LastChangeIndex  *int
	LastObservedSoC  *float64
}

// Estimator is fed one observation per sample, in index order. It is not
// safe for concurrent use.
type Estimator struct {
	period time.Duration

	observed      bool
	lastSoC       float64
	initialSoC    float64
	hasFirst      bool
	firstIndex    int
	firstSoC      float64
	hasLast       bool
	lastIndex     int
	lastChangeSoC float64
}

// New returns an Estimator for samples taken every period.
func New(period time.Duration) *Estimator {
	return &Estimator{period: period}
}

// Observe records the state of charge seen at sample index and returns the
// updated estimate.
func (e *Estimator) Observe(index int, soc float64) Estimate {
	switch {
	case !e.hasFirst:
		if !e.observed {
			e.observed = true
			e.lastSoC = soc
			e.initialSoC = soc
		} else if soc != e.lastSoC {
			e.hasFirst = true
			e.firstIndex = index
			e.firstSoC = soc
			e.lastSoC = soc
		}
	case soc != e.lastSoC:
		// The first transition stays fixed; the window grows to the latest one.
		e.hasLast = true
		e.lastIndex = index
		e.lastChangeSoC = soc
		e.lastSoC = soc
	}

	return e.Estimate()
}

// Estimate returns the current estimate without observing anything.
func (e *Estimator) Estimate() Estimate {
	switch {
	case e.hasFirst && e.hasLast && e.lastIndex != e.firstIndex:
		return e.between(e.firstIndex, e.firstSoC, e.lastIndex, e.lastChangeSoC)
	case e.hasFirst:
		// Coarse early estimate anchored on the very first sample.
		return e.between(0, e.initialSoC, e.firstIndex, e.firstSoC)
	default:
		return Estimate{}
	}
}

func (e *Estimator) between(fromIndex int, fromSoC float64, toIndex int, toSoC float64) Estimate {
	elapsed := float64(toIndex-fromIndex) * e.period.Seconds()
	delta := fromSoC - toSoC
	if elapsed == 0 || delta == 0 {
		return Estimate{}
	}

	secondsPerPercent := elapsed / delta

	return Estimate{
		RatePercentPerHour:  defined(delta * secondsPerHour / elapsed),
		SecondsPerPercent:   defined(secondsPerPercent),
		SecondsPerFullCycle: defined(secondsPerPercent * percentPerCycle),
	}
}

// State returns a snapshot of the transition tracking.
func (e *Estimator) State() State {
	var s State
	if e.observed {
		soc := e.lastSoC
		s.LastObservedSoC = &soc
	}
	if e.hasFirst {
		first := e.firstIndex
		s.FirstChangeIndex = &first
	}
	if e.hasLast {
		last := e.lastIndex
		s.LastChangeIndex = &last
	}

	return s
}
