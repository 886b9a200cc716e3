package metrics

import (
	"context"
	"time"

	"codeberg.org/mutker/socmonitor/internal/estimator"
	"codeberg.org/mutker/socmonitor/internal/session"
)

// Recorder archives sessions. It satisfies session.Archive.
type Recorder interface {
	RecordSample(ctx context.Context, sessionID string, sample session.Sample, estimate estimator.Estimate) error
	RecordSummary(ctx context.Context, sessionID string, summary session.Summary) error
	Close() error
}

// Repository defines the interface for archive storage
type Repository interface {
	Record(record *SampleRecord) error
	RecordSummary(record *SummaryRecord) error
	Close() error
}

// SampleRecord is one archived sample row.
type SampleRecord struct {
	SessionID     string
	Index         int
	Timestamp     time.Time
	StateOfCharge float64
	// SecondsRemaining is nil when the platform did not report it.
	SecondsRemaining *int
	Consumption      Consumption
}

// SummaryRecord closes an archived session.
type SummaryRecord struct {
	SessionID string
	StartedAt time.Time
	EndedAt   time.Time
	Cause     string
	Samples   int
	StartSoC  float64
	EndSoC    float64
	Start     Consumption
	End       Consumption
}

// Consumption holds estimate values; nil fields were undefined.
type Consumption struct {
	RatePercentPerHour  *float64
	SecondsPerPercent   *float64
	SecondsPerFullCycle *float64
}

func consumptionOf(e estimator.Estimate) Consumption {
	return Consumption{
		RatePercentPerHour:  measureValue(e.RatePercentPerHour),
		SecondsPerPercent:   measureValue(e.SecondsPerPercent),
		SecondsPerFullCycle: measureValue(e.SecondsPerFullCycle),
	}
}

func measureValue(m estimator.Measure) *float64 {
	if !m.Valid {
		return nil
	}
	v := m.Value
	return &v
}

func newSampleRecord(sessionID string, sample session.Sample, estimate estimator.Estimate) *SampleRecord {
	record := &SampleRecord{
		SessionID:     sessionID,
		Index:         sample.Index,
		Timestamp:     sample.Time,
		StateOfCharge: sample.StateOfCharge,
		Consumption:   consumptionOf(estimate),
	}
	if sample.RemainingKnown {
		remaining := sample.SecondsRemaining
		record.SecondsRemaining = &remaining
	}
	return record
}

func newSummaryRecord(sessionID string, summary session.Summary) *SummaryRecord {
	return &SummaryRecord{
		SessionID: sessionID,
		StartedAt: summary.Start.Time,
		EndedAt:   summary.End.Time,
		Cause:     summary.Cause.String(),
		Samples:   summary.Samples,
		StartSoC:  summary.Start.StateOfCharge,
		EndSoC:    summary.End.StateOfCharge,
		Start:     consumptionOf(summary.StartEstimate),
		End:       consumptionOf(summary.EndEstimate),
	}
}
