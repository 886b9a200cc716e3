package report

import "codeberg.org/mutker/socmonitor/internal/errors"

const (
	ErrOpenLogFile = errors.ErrorCode("report_open_log_file_failed")
	ErrWrite       = errors.ErrorCode("report_write_failed")
)
