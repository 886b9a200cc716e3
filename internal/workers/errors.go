package workers

import "codeberg.org/mutker/socmonitor/internal/errors"

const (
	ErrUnknownKind = errors.ErrInvalidWorker
	ErrNotSpawned  = errors.ErrorCode("workers_not_spawned")
)
