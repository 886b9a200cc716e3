package errors

// Common error codes
const (
	// System errors
	ErrInternal        ErrorCode = "internal_error"
	ErrInvalidArgument ErrorCode = "invalid_argument"

	// Configuration errors
	ErrInvalidConfig       ErrorCode = "invalid_configuration"
	ErrReadConfig          ErrorCode = "read_config_failed"
	ErrBindFlags           ErrorCode = "bind_flags_failed"
	ErrInvalidSamplePeriod ErrorCode = "invalid_sample_period"
	ErrInvalidOutputPeriod ErrorCode = "invalid_output_period"
	ErrInvalidThreshold    ErrorCode = "invalid_threshold"
	ErrInvalidWorker       ErrorCode = "invalid_worker_kind"

	// Process errors
	ErrAlreadyRunning ErrorCode = "already_running"

	// Session errors
	ErrSessionAborted  ErrorCode = "session_aborted"
	ErrTelemetryFailed ErrorCode = "telemetry_failed"

	// Lifecycle errors
	ErrInitFailed     ErrorCode = "initialization_failed"
	ErrShutdownFailed ErrorCode = "shutdown_failed"

	// Operation errors
	ErrTimeout ErrorCode = "operation_timeout"
)

var errorMessages = map[ErrorCode]string{
	ErrInternal:            "Internal error occurred",
	ErrInvalidArgument:     "Invalid argument provided",
	ErrInvalidConfig:       "Invalid configuration",
	ErrReadConfig:          "Failed to read configuration",
	ErrBindFlags:           "Failed to bind flags",
	ErrInvalidSamplePeriod: "Sample period must be greater than zero",
	ErrInvalidOutputPeriod: "Output period must be a positive multiple of the sample period",
	ErrInvalidThreshold:    "Invalid state of charge threshold",
	ErrInvalidWorker:       "Unknown worker kind",
	ErrAlreadyRunning:      "Another instance is already running",
	ErrSessionAborted:      "Monitoring session aborted",
	ErrTelemetryFailed:     "Failed to read battery telemetry",
	ErrInitFailed:          "Initialization failed",
	ErrShutdownFailed:      "Shutdown failed",
	ErrTimeout:             "Operation timed out",
}

// GetErrorMessage returns the message for a given error code
func GetErrorMessage(code ErrorCode) string {
	if msg, ok := errorMessages[code]; ok {
		return msg
	}

	return string(code)
}
