package metrics

import (
	"database/sql"
	"os"
	"path/filepath"
	"sync"
	"time"

	"codeberg.org/mutker/socmonitor/internal/errors"
	"codeberg.org/mutker/socmonitor/internal/logger"
	_ "github.com/mattn/go-sqlite3"
)

type repository struct {
	db            *sql.DB
	logger        logger.Logger
	cfg           Config
	mu            sync.Mutex
	buffer        []*SampleRecord
	closed        bool
	flushTicker   *time.Ticker
	shutdownChan  chan struct{}
	flushDoneChan chan struct{}
}

func NewRepository(cfg Config, log logger.Logger) (Repository, error) {
	errFactory := errors.New()

	if cfg.DBPath == "" {
		return nil, errFactory.New(ErrInvalidDBPath)
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = defaultBatchSize
	}

	if err := os.MkdirAll(filepath.Dir(cfg.DBPath), defaultDirPerm); err != nil {
		return nil, errFactory.WithData(ErrStorageInit, struct {
			Phase string
			Path  string
			Error string
		}{
			Phase: "create_directory",
			Path:  cfg.DBPath,
			Error: err.Error(),
		})
	}

	dsn := cfg.DBPath + "?_journal=WAL&_auto_vacuum=2&_foreign_keys=1"
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, errFactory.WithData(ErrStorageInit, struct {
			Phase string
			Error string
		}{
			Phase: "open_database",
			Error: err.Error(),
		})
	}
	// A single connection serializes writers on the database file.
	db.SetMaxOpenConns(1)

	if err := ValidateAndUpdateSchema(db, cfg.backupDir(), log); err != nil {
		db.Close()
		return nil, errFactory.Wrap(ErrStorageInit, err)
	}

	log.Info().
		Str("path", cfg.DBPath).
		Int("schema_version", SchemaVersion).
		Int("batch_size", cfg.BatchSize).
		Dur("flush_interval", cfg.FlushInterval).
		Msg("Archive repository initialized")

	repo := &repository{
		db:     db,
		logger: log,
		cfg:    cfg,
		buffer: make([]*SampleRecord, 0, cfg.BatchSize),
	}

	if cfg.FlushInterval > 0 {
		repo.flushTicker = time.NewTicker(cfg.FlushInterval)
		repo.shutdownChan = make(chan struct{})
		repo.flushDoneChan = make(chan struct{})
		go repo.flusher()
	}

	return repo, nil
}

func (r *repository) Record(record *SampleRecord) error {
	if record == nil {
		return errors.New().New(ErrInvalidRecord)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed {
		return errors.New().New(ErrClosed)
	}

	r.buffer = append(r.buffer, record)

	if len(r.buffer) >= r.cfg.BatchSize {
		return r.flush()
	}

	return nil
}

// RecordSummary flushes pending samples and closes the session row.
func (r *repository) RecordSummary(record *SummaryRecord) error {
	if record == nil {
		return errors.New().New(ErrInvalidRecord)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	errFactory := errors.New()

	if r.closed {
		return errFactory.New(ErrClosed)
	}

	if err := r.flush(); err != nil {
		return err
	}

	_, err := r.db.Exec(upsertSummarySQL,
		record.SessionID,
		record.StartedAt.Unix(),
		record.EndedAt.Unix(),
		record.Cause,
		record.Samples,
		record.StartSoC,
		record.EndSoC,
		record.Start.RatePercentPerHour,
		record.Start.SecondsPerPercent,
		record.Start.SecondsPerFullCycle,
		record.End.RatePercentPerHour,
		record.End.SecondsPerPercent,
		record.End.SecondsPerFullCycle,
	)
	if err != nil {
		r.logger.Error().Err(err).Str("session", record.SessionID).Msg("Failed to record session summary")
		return errFactory.Wrap(ErrTransactionFailed, err)
	}

	return nil
}

func (r *repository) Close() error {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return nil
	}
	r.closed = true
	r.mu.Unlock()

	if r.flushTicker != nil {
		r.flushTicker.Stop()
		close(r.shutdownChan)
		<-r.flushDoneChan
	}

	r.mu.Lock()
	flushErr := r.flush()
	r.mu.Unlock()
	if flushErr != nil {
		r.logger.Warn().Err(flushErr).Msg("Dropped unflushed samples on close")
	}

	// Checkpoint WAL and cleanup on close
	if _, err := r.db.Exec("PRAGMA wal_checkpoint(TRUNCATE)"); err != nil {
		r.db.Close()
		return errors.New().WithData(ErrStorageClose, struct {
			Phase string
			Error string
		}{
			Phase: "checkpoint_wal",
			Error: err.Error(),
		})
	}

	if err := r.db.Close(); err != nil {
		return errors.New().WithData(ErrStorageClose, struct {
			Phase string
			Error string
		}{
			Phase: "close_database",
			Error: err.Error(),
		})
	}

	r.logger.Debug().Msg("Archive repository closed")

	return nil
}

func (r *repository) flusher() {
	defer close(r.flushDoneChan)

	for {
		select {
		case <-r.flushTicker.C:
			r.mu.Lock()
			if err := r.flush(); err != nil {
				r.logger.Warn().Err(err).Msg("Periodic archive flush failed")
			}
			r.mu.Unlock()
		case <-r.shutdownChan:
			return
		}
	}
}

// flush writes buffered samples in one transaction. Callers hold r.mu. The
// batch is discarded on failure so the buffer stays bounded.
func (r *repository) flush() error {
	if len(r.buffer) == 0 {
		return nil
	}
	defer func() { r.buffer = r.buffer[:0] }()

	errFactory := errors.New()

	tx, err := r.db.Begin()
	if err != nil {
		r.logger.Error().Err(err).Msg("Failed to begin transaction")
		return errFactory.Wrap(ErrTransactionFailed, err)
	}

	rollback := func(cause error) error {
		if err := tx.Rollback(); err != nil {
			r.logger.Error().Err(err).Msg("Failed to roll back transaction")
		}
		return errFactory.Wrap(ErrTransactionFailed, cause)
	}

	sessionStmt, err := tx.Prepare(insertSessionSQL)
	if err != nil {
		r.logger.Error().Err(err).Msg("Failed to prepare statement")
		return rollback(err)
	}
	defer sessionStmt.Close()

	sampleStmt, err := tx.Prepare(insertSampleSQL)
	if err != nil {
		r.logger.Error().Err(err).Msg("Failed to prepare statement")
		return rollback(err)
	}
	defer sampleStmt.Close()

	for _, record := range r.buffer {
		if _, err := sessionStmt.Exec(record.SessionID, record.Timestamp.Unix()); err != nil {
			r.logger.Error().Err(err).Msg("Failed to insert session")
			return rollback(err)
		}

		values := []any{
			record.SessionID,
			record.Index,
			record.Timestamp.Unix(),
			record.StateOfCharge,
			record.SecondsRemaining,
			record.Consumption.RatePercentPerHour,
			record.Consumption.SecondsPerPercent,
			record.Consumption.SecondsPerFullCycle,
		}

		if _, err := sampleStmt.Exec(values...); err != nil {
			r.logger.Error().Err(err).Int("sample", record.Index).Msg("Failed to insert sample")
			return rollback(err)
		}
	}

	if err := tx.Commit(); err != nil {
		r.logger.Error().Err(err).Msg("Failed to commit transaction")
		return errFactory.Wrap(ErrTransactionFailed, err)
	}

	r.logger.Debug().Int("records", len(r.buffer)).Msg("Flushed samples to archive")

	return nil
}
