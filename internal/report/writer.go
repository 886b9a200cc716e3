// Package report renders session output as a compact tab separated stream
// or as a padded human readable table.
package report

import (
	"bytes"
	"fmt"
	"io"
	"math"
	"strconv"
	"strings"
	"sync"
	"time"

	"codeberg.org/mutker/socmonitor/internal/config"
	"codeberg.org/mutker/socmonitor/internal/errors"
	"codeberg.org/mutker/socmonitor/internal/estimator"
	"codeberg.org/mutker/socmonitor/internal/session"
)

const (
	compactColumns = "# <sec>\t<soc>\t<until>\t<cons>\t<sec/%>\t<sec/100%>"

	prettyColumns = "timeExecuted\tbat %\ttimeRemaining\tconsumption\ttime / %\ttime / 100%\n" +
		"hh:mm:ss\t\thh:mm:ss\t(estimate)\t(estimate)\n" +
		"---------\t-------\t---------\t-----------\t---------\t---------"

	prettyTimeLayout = "02.01.2006 15:04:05"
	headerTimeLayout = "2006-01-02 15:04:05"
)

// causeNotices are printed ahead of the summary of a threshold-terminated
// session when verbose.
var causeNotices = map[session.Cause]string{
	session.CauseMinimumSoC: "# Batteries state of charge reached the minimum level. Terminating monitoring.",
	session.CauseMaximumSoC: "# Batteries state of charge reached the maximum level. Terminating monitoring.",
}

// Options controls what a Writer renders.
type Options struct {
	Version  string
	Beautify bool
	Verbose  bool
	// Config is echoed in the header when Verbose is set.
	Config *config.Config
	// Platform describes the host; defaults to HostPlatform.
	Platform func() string
}

// Writer renders a session to a single destination. It is safe for use by
// one session at a time.
type Writer struct {
	out  io.Writer
	opts Options

	mu        sync.Mutex
	startedAt time.Time
}

func NewWriter(out io.Writer, opts Options) *Writer {
	if opts.Platform == nil {
		opts.Platform = HostPlatform
	}

	return &Writer{out: out, opts: opts}
}

func (w *Writer) EmitHeader(header session.Header) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	w.startedAt = header.StartedAt

	var buf bytes.Buffer
	fmt.Fprintf(&buf, "# Welcome to socmonitor version %s!\n", w.opts.Version)

	if w.opts.Verbose {
		w.writeParameters(&buf, header)
	}

	buf.WriteString("\n")
	if w.opts.Beautify {
		buf.WriteString(prettyColumns + "\n")
	} else {
		buf.WriteString(compactColumns + "\n")
	}

	return w.flush(&buf)
}

func (w *Writer) writeParameters(buf *bytes.Buffer, header session.Header) {
	param := func(name string, value any) {
		fmt.Fprintf(buf, "# %-14s:\t%v\n", name, value)
	}

	if cfg := w.opts.Config; cfg != nil {
		param("sample_period", cfg.SamplePeriod)
		param("output_period", cfg.OutputPeriod)
		param("verbose", cfg.Verbose)
		param("beautify", cfg.Beautify)
		param("log_file", noneIfEmpty(cfg.LogFile))
		param("minimum_soc", optionalFloat(cfg.MinimumSoC))
		param("maximum_soc", optionalFloat(cfg.MaximumSoC))
		param("cmd_start", noneIfEmpty(cfg.Hooks.OnStart))
		param("cmd_end", noneIfEmpty(cfg.Hooks.OnEnd))
		param("cmd_min_soc", noneIfEmpty(cfg.Hooks.OnMinimumSoC))
		param("cmd_max_soc", noneIfEmpty(cfg.Hooks.OnMaximumSoC))
		param("workers", noneIfEmpty(strings.Join(cfg.Workers, ",")))
		if cfg.Archive.Enabled {
			param("archive", cfg.Archive.DBPath)
		}
		buf.WriteString("#\n")
	}

	param("OS", w.opts.Platform())
	param("session", header.SessionID)
	if w.opts.Beautify {
		param("time_started", header.StartedAt.Format(headerTimeLayout))
	} else {
		param("time_started", header.StartedAt.Unix())
	}
}

func (w *Writer) EmitSample(sample session.Sample, estimate estimator.Estimate) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	var buf bytes.Buffer
	w.writeRow(&buf, elapsedSeconds(sample.Time.Sub(w.startedAt)), sample, estimate)

	return w.flush(&buf)
}

func (w *Writer) EmitSummary(summary session.Summary) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	var buf bytes.Buffer
	if w.opts.Verbose {
		if notice, ok := causeNotices[summary.Cause]; ok {
			buf.WriteString(notice + "\n")
		}
	}
	buf.WriteString("\n")

	if w.opts.Beautify {
		fmt.Fprintf(&buf, "# Monitoring started at %s with the following values:\n\n%s\n",
			summary.Start.Time.Format(prettyTimeLayout), prettyColumns)
	} else {
		fmt.Fprintf(&buf, "# started_at\t%d\n%s\n", summary.Start.Time.Unix(), compactColumns)
	}
	w.writeRow(&buf, 0, summary.Start, summary.StartEstimate)

	buf.WriteString("\n")

	if w.opts.Beautify {
		fmt.Fprintf(&buf, "# Monitoring terminated at %s with the following values:\n\n%s\n",
			summary.End.Time.Format(prettyTimeLayout), prettyColumns)
	} else {
		fmt.Fprintf(&buf, "# terminated_at\t%d\n%s\n", summary.End.Time.Unix(), compactColumns)
	}
	w.writeRow(&buf, elapsedSeconds(summary.Duration), summary.End, summary.EndEstimate)

	if w.opts.Verbose {
		buf.WriteString("# Goodbye!\n")
	}

	return w.flush(&buf)
}

func (w *Writer) writeRow(buf *bytes.Buffer, elapsed int, sample session.Sample, estimate estimator.Estimate) {
	remaining := -1
	if sample.RemainingKnown {
		remaining = sample.SecondsRemaining
	}

	if w.opts.Beautify {
		fmt.Fprintf(buf, "%s\t%s\t%s\t%s / h\t%s\t%s\n",
			FormatDuration(elapsed),
			FormatPercent(sample.StateOfCharge),
			FormatDuration(remaining),
			percentMeasure(estimate.RatePercentPerHour),
			durationMeasure(estimate.SecondsPerPercent),
			durationMeasure(estimate.SecondsPerFullCycle),
		)
		return
	}

	fmt.Fprintf(buf, "%d\t%s\t%s\t%s\t%s\t%s\n",
		elapsed,
		compactFloat(sample.StateOfCharge),
		strconv.Itoa(remaining),
		compactMeasure(estimate.RatePercentPerHour, 2),
		compactMeasure(estimate.SecondsPerPercent, 0),
		compactMeasure(estimate.SecondsPerFullCycle, 0),
	)
}

func (w *Writer) flush(buf *bytes.Buffer) error {
	if _, err := w.out.Write(buf.Bytes()); err != nil {
		return errors.New().Wrap(ErrWrite, err)
	}
	return nil
}

func elapsedSeconds(d time.Duration) int {
	return int(math.Round(d.Seconds()))
}

func noneIfEmpty(s string) string {
	if s == "" {
		return "None"
	}
	return s
}

func optionalFloat(v *float64) string {
	if v == nil {
		return "None"
	}
	return strconv.FormatFloat(*v, 'f', -1, 64)
}
