package telemetry

import "codeberg.org/mutker/socmonitor/internal/errors"

const (
	ErrUnavailable = errors.ErrorCode("telemetry_unavailable")
	ErrReadFailed  = errors.ErrTelemetryFailed
	ErrCancelled   = errors.ErrorCode("telemetry_read_cancelled")
)
