package session

import "codeberg.org/mutker/socmonitor/internal/errors"

const (
	ErrInvalidConfig   = errors.ErrInvalidConfig
	ErrAborted         = errors.ErrSessionAborted
	ErrMissingSource   = errors.ErrorCode("session_missing_source")
	ErrMissingEmitter  = errors.ErrorCode("session_missing_emitter")
	ErrBaselineFailed  = errors.ErrorCode("session_baseline_failed")
	ErrSnapshotFailed  = errors.ErrorCode("session_end_snapshot_failed")
	ErrTelemetryFailed = errors.ErrTelemetryFailed
)
