package metrics

import "codeberg.org/mutker/socmonitor/internal/errors"

const (
	// Configuration Errors
	ErrInvalidConfig    = errors.ErrInvalidConfig
	ErrInvalidDBPath    = errors.ErrorCode("metrics_invalid_db_path")
	ErrInvalidBatchSize = errors.ErrorCode("metrics_invalid_batch_size")

	// Schema Errors
	ErrSchemaInitFailed       = errors.ErrorCode("metrics_schema_init_failed")
	ErrSchemaValidationFailed = errors.ErrorCode("metrics_schema_validation_failed")
	ErrSchemaMigrationFailed  = errors.ErrorCode("metrics_schema_migration_failed")
	ErrTransactionFailed      = errors.ErrorCode("metrics_transaction_failed")

	// Storage Errors
	ErrStorageInit  = errors.ErrInitFailed
	ErrStorageClose = errors.ErrShutdownFailed
	ErrClosed       = errors.ErrorCode("metrics_archive_closed")

	// Service Errors
	ErrServiceShutdown = errors.ErrShutdownFailed

	// Recording Errors
	ErrRecordFailed  = errors.ErrorCode("metrics_record_failed")
	ErrInvalidRecord = errors.ErrorCode("metrics_invalid_record")

	// Operation Errors
	ErrOperationTimeout = errors.ErrTimeout
)
