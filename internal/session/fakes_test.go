package session_test

import (
	"context"
	"fmt"
	"sync"
	"time"

	"codeberg.org/mutker/socmonitor/internal/config"
	"codeberg.org/mutker/socmonitor/internal/estimator"
	"codeberg.org/mutker/socmonitor/internal/session"
	"codeberg.org/mutker/socmonitor/internal/telemetry"
	"codeberg.org/mutker/socmonitor/internal/workers"
)

const readLatency = 100 * time.Millisecond

var epoch = time.Date(2024, 3, 1, 8, 0, 0, 0, time.UTC)

// fakeClock advances only when waited on or when a reading is taken.
type fakeClock struct {
	mu    sync.Mutex
	now   time.Time
	waits []time.Duration

	// onWait runs before each wait with the number of waits so far.
	onWait func(n int)
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: epoch}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func (c *fakeClock) Wait(ctx context.Context, d time.Duration) error {
	c.mu.Lock()
	c.waits = append(c.waits, d)
	n := len(c.waits)
	hook := c.onWait
	c.mu.Unlock()

	if hook != nil {
		hook(n)
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	c.advance(d)
	return nil
}

// fakeSource replays readings and repeats the last one once exhausted. Each
// read advances the clock by latency.
type fakeSource struct {
	clock    *fakeClock
	socs     []float64
	latency  time.Duration
	failAt   int
	failWith error
	reads    int
}

func newFakeSource(clock *fakeClock, socs ...float64) *fakeSource {
	return &fakeSource{clock: clock, socs: socs, latency: readLatency, failAt: -1}
}

func (s *fakeSource) Read(context.Context) (telemetry.Reading, error) {
	n := s.reads
	s.reads++
	if n == s.failAt {
		return telemetry.Reading{}, s.failWith
	}

	s.clock.advance(s.latency)
	soc := s.socs[len(s.socs)-1]
	if n < len(s.socs) {
		soc = s.socs[n]
	}

	return telemetry.Reading{StateOfCharge: soc, SecondsRemaining: int(soc) * 60, RemainingKnown: true}, nil
}

type emitted struct {
	kind     string
	sample   session.Sample
	estimate estimator.Estimate
	summary  session.Summary
}

type recordingEmitter struct {
	events []emitted
	fail   error
}

func (e *recordingEmitter) EmitHeader(session.Header) error {
	e.events = append(e.events, emitted{kind: "header"})
	return e.fail
}

func (e *recordingEmitter) EmitSample(sample session.Sample, estimate estimator.Estimate) error {
	e.events = append(e.events, emitted{kind: "sample", sample: sample, estimate: estimate})
	return e.fail
}

func (e *recordingEmitter) EmitSummary(summary session.Summary) error {
	e.events = append(e.events, emitted{kind: "summary", summary: summary})
	return e.fail
}

func (e *recordingEmitter) kinds() []string {
	out := make([]string, 0, len(e.events))
	for _, ev := range e.events {
		out = append(out, ev.kind)
	}
	return out
}

func (e *recordingEmitter) samples() []session.Sample {
	var out []session.Sample
	for _, ev := range e.events {
		if ev.kind == "sample" {
			out = append(out, ev.sample)
		}
	}
	return out
}

func (e *recordingEmitter) summaries() []session.Summary {
	var out []session.Summary
	for _, ev := range e.events {
		if ev.kind == "summary" {
			out = append(out, ev.summary)
		}
	}
	return out
}

type recordingRunner struct {
	commands []string
}

func (r *recordingRunner) Run(_ context.Context, command string) {
	if command != "" {
		r.commands = append(r.commands, command)
	}
}

type recordingPool struct {
	started []workers.Kind
	stops   int
}

func (p *recordingPool) Start(_ context.Context, kinds []workers.Kind) error {
	p.started = append(p.started, kinds...)
	return nil
}

func (p *recordingPool) Stop() {
	p.stops++
}

type recordingArchive struct {
	samples   map[string][]session.Sample
	summaries map[string]session.Summary
	fail      error
}

func newRecordingArchive() *recordingArchive {
	return &recordingArchive{samples: map[string][]session.Sample{}, summaries: map[string]session.Summary{}}
}

func (a *recordingArchive) RecordSample(_ context.Context, id string, sample session.Sample, _ estimator.Estimate) error {
	a.samples[id] = append(a.samples[id], sample)
	return a.fail
}

func (a *recordingArchive) RecordSummary(_ context.Context, id string, summary session.Summary) error {
	a.summaries[id] = summary
	return a.fail
}

type harness struct {
	cfg     *config.Config
	clock   *fakeClock
	source  *fakeSource
	emitter *recordingEmitter
	hooks   *recordingRunner
	pool    *recordingPool
	archive *recordingArchive
}

func newHarness(cfg *config.Config, socs ...float64) *harness {
	clock := newFakeClock()
	return &harness{
		cfg:     cfg,
		clock:   clock,
		source:  newFakeSource(clock, socs...),
		emitter: &recordingEmitter{},
		hooks:   &recordingRunner{},
		pool:    &recordingPool{},
		archive: newRecordingArchive(),
	}
}

func (h *harness) controller() *session.Controller {
	return session.NewController(session.Options{
		Config:  h.cfg,
		Source:  h.source,
		Emitter: h.emitter,
		Hooks:   h.hooks,
		Workers: h.pool,
		Archive: h.archive,
		Clock:   h.clock,
	})
}

func threshold(v float64) *float64 {
	return &v
}

func hooksConfig() config.Hooks {
	return config.Hooks{
		OnStart:      "start",
		OnEnd:        "end",
		OnMinimumSoC: "min",
		OnMaximumSoC: "max",
	}
}

var errNoBattery = fmt.Errorf("no battery")
