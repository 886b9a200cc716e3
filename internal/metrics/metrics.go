// Package metrics archives monitoring sessions to a SQLite database.
package metrics

import (
	"context"

	"codeberg.org/mutker/socmonitor/internal/errors"
	"codeberg.org/mutker/socmonitor/internal/estimator"
	"codeberg.org/mutker/socmonitor/internal/logger"
	"codeberg.org/mutker/socmonitor/internal/session"
)

type service struct {
	repo Repository
	cfg  Config
}

// No-op implementation
type noopRecorder struct{}

var (
	_ session.Archive = (*service)(nil)
	_ session.Archive = (*noopRecorder)(nil)
)

func NewService(cfg Config) (Recorder, error) {
	errFactory := errors.New()

	if err := cfg.Validate(); err != nil {
		return nil, errFactory.Wrap(ErrInvalidConfig, err)
	}

	// If the archive is disabled, return a no-op recorder
	if !cfg.Enabled {
		logger.Debug().Msg("Session archive disabled, using no-op recorder")
		return &noopRecorder{}, nil
	}

	repo, err := NewRepository(cfg, logger.Default())
	if err != nil {
		logger.Debug().Err(err).Msg("Failed to create archive repository")
		return nil, err
	}

	logger.Debug().
		Str("db_path", cfg.DBPath).
		Int("batch_size", cfg.BatchSize).
		Msg("Session archive initialized successfully")

	return &service{
		repo: repo,
		cfg:  cfg,
	}, nil
}

func (s *service) RecordSample(ctx context.Context, sessionID string, sample session.Sample, estimate estimator.Estimate) error {
	errFactory := errors.New()

	if sessionID == "" {
		return errFactory.WithMessage(ErrInvalidRecord, "sample without session id")
	}

	select {
	case <-ctx.Done():
		return errFactory.Wrap(ErrOperationTimeout, ctx.Err())
	default:
		if err := s.repo.Record(newSampleRecord(sessionID, sample, estimate)); err != nil {
			return errFactory.Wrap(ErrRecordFailed, err)
		}
	}

	return nil
}

func (s *service) RecordSummary(ctx context.Context, sessionID string, summary session.Summary) error {
	errFactory := errors.New()

	if sessionID == "" {
		return errFactory.WithMessage(ErrInvalidRecord, "summary without session id")
	}

	select {
	case <-ctx.Done():
		return errFactory.Wrap(ErrOperationTimeout, ctx.Err())
	default:
		if err := s.repo.RecordSummary(newSummaryRecord(sessionID, summary)); err != nil {
			return errFactory.Wrap(ErrRecordFailed, err)
		}
	}

	return nil
}

func (s *service) Close() error {
	if err := s.repo.Close(); err != nil {
		return errors.New().Wrap(ErrServiceShutdown, err)
	}
	return nil
}

// No-op implementation
func (*noopRecorder) RecordSample(context.Context, string, session.Sample, estimator.Estimate) error {
	return nil
}

func (*noopRecorder) RecordSummary(context.Context, string, session.Summary) error {
	return nil
}

func (*noopRecorder) Close() error {
	return nil
}
