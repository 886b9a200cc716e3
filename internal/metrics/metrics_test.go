package metrics

import (
	"context"
	"database/sql"
	"os"
	"path/filepath"
	"testing"
	"time"

	"codeberg.org/mutker/socmonitor/internal/errors"
	"codeberg.org/mutker/socmonitor/internal/estimator"
	"codeberg.org/mutker/socmonitor/internal/logger"
	"codeberg.org/mutker/socmonitor/internal/session"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var start = time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

func testConfig(t *testing.T, batch int) Config {
	t.Helper()
	return Config{
		DBPath:    filepath.Join(t.TempDir(), "archive", "archive.db"),
		BatchSize: batch,
		Enabled:   true,
	}
}

func openDB(t *testing.T, path string) *sql.DB {
	t.Helper()
	db, err := sql.Open("sqlite3", path)
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return db
}

func count(t *testing.T, db *sql.DB, query string, args ...any) int {
	t.Helper()
	var n int
	require.NoError(t, db.QueryRow(query, args...).Scan(&n))
	return n
}

func sample(index int, soc float64, remaining int) session.Sample {
	return session.Sample{
		Index:            index,
		Time:             start.Add(time.Duration(index) * 10 * time.Second),
		StateOfCharge:    soc,
		SecondsRemaining: remaining,
		RemainingKnown:   remaining >= 0,
	}
}

func estimate(rate float64) estimator.Estimate {
	return estimator.Estimate{
		RatePercentPerHour:  estimator.Measure{Value: rate, Valid: true},
		SecondsPerPercent:   estimator.Measure{Value: 3600 / rate, Valid: true},
		SecondsPerFullCycle: estimator.Measure{Value: 360000 / rate, Valid: true},
	}
}

func TestConfigValidate(t *testing.T) {
	tests := []struct {
		name string
		cfg  Config
		code errors.ErrorCode
	}{
		{name: "disabled", cfg: Config{}},
		{name: "default", cfg: DefaultConfig()},
		{name: "enabled", cfg: Config{Enabled: true, DBPath: "a.db", BatchSize: 1}},
		{name: "missing path", cfg: Config{Enabled: true, BatchSize: 1}, code: ErrInvalidDBPath},
		{name: "zero batch", cfg: Config{Enabled: true, DBPath: "a.db"}, code: ErrInvalidBatchSize},
		{name: "negative flush", cfg: Config{Enabled: true, DBPath: "a.db", BatchSize: 1, FlushInterval: -time.Second}, code: ErrInvalidConfig},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.cfg.Validate()
			if tt.code == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Equal(t, tt.code, errors.CodeOf(err))
		})
	}
}

func TestBackupDirDefaultsNextToDatabase(t *testing.T) {
	assert.Equal(t, "/data/backups", Config{DBPath: "/data/archive.db"}.backupDir())
	assert.Equal(t, "/elsewhere", Config{DBPath: "/data/archive.db", BackupDir: "/elsewhere"}.backupDir())
}

func TestDisabledServiceIsNoop(t *testing.T) {
	rec, err := NewService(Config{})
	require.NoError(t, err)
	assert.IsType(t, &noopRecorder{}, rec)

	ctx := context.Background()
	assert.NoError(t, rec.RecordSample(ctx, "id", sample(0, 50, -1), estimator.Estimate{}))
	assert.NoError(t, rec.RecordSummary(ctx, "id", session.Summary{}))
	assert.NoError(t, rec.Close())
}

func TestInvalidServiceConfig(t *testing.T) {
	_, err := NewService(Config{Enabled: true, BatchSize: 1})
	require.Error(t, err)
	assert.True(t, errors.HasCode(err, ErrInvalidConfig))
	assert.True(t, errors.HasCode(err, ErrInvalidDBPath))
}

func TestRecordSession(t *testing.T) {
	cfg := testConfig(t, 2)
	rec, err := NewService(cfg)
	require.NoError(t, err)

	ctx := context.Background()
	require.NoError(t, rec.RecordSample(ctx, "s1", sample(0, 50, 1800), estimator.Estimate{}))
	require.NoError(t, rec.RecordSample(ctx, "s1", sample(1, 50, -1), estimator.Estimate{}))
	require.NoError(t, rec.RecordSample(ctx, "s1", sample(2, 49, 1700), estimate(360)))

	db := openDB(t, cfg.DBPath)
	assert.Equal(t, 2, count(t, db, "SELECT COUNT(*) FROM samples"), "batch of two flushed, third pending")

	summary := session.Summary{
		Start:         sample(0, 50, 1800),
		End:           sample(2, 49, 1700),
		StartEstimate: estimate(360),
		EndEstimate:   estimate(360),
		Duration:      20 * time.Second,
		Cause:         session.CauseMinimumSoC,
		Samples:       3,
	}
	require.NoError(t, rec.RecordSummary(ctx, "s1", summary))
	require.NoError(t, rec.Close())

	assert.Equal(t, 3, count(t, db, "SELECT COUNT(*) FROM samples WHERE session_id = ?", "s1"))
	assert.Equal(t, 1, count(t, db, "SELECT COUNT(*) FROM samples WHERE seconds_remaining IS NULL"))
	assert.Equal(t, 2, count(t, db, "SELECT COUNT(*) FROM samples WHERE rate IS NULL"))

	var (
		startedAt, endedAt int64
		cause              string
		samples            int
		endRate            float64
	)
	require.NoError(t, db.QueryRow(
		"SELECT started_at, ended_at, cause, samples, end_rate FROM sessions WHERE id = ?", "s1",
	).Scan(&startedAt, &endedAt, &cause, &samples, &endRate))

	assert.Equal(t, start.Unix(), startedAt)
	assert.Equal(t, start.Add(20*time.Second).Unix(), endedAt)
	assert.Equal(t, "minimum_soc", cause)
	assert.Equal(t, 3, samples)
	assert.InDelta(t, 360, endRate, 1e-9)
}

func TestCloseFlushesPending(t *testing.T) {
	cfg := testConfig(t, 100)
	rec, err := NewService(cfg)
	require.NoError(t, err)

	for i := 0; i < 5; i++ {
		require.NoError(t, rec.RecordSample(context.Background(), "s1", sample(i, 80, -1), estimator.Estimate{}))
	}
	require.NoError(t, rec.Close())
	require.NoError(t, rec.Close())

	db := openDB(t, cfg.DBPath)
	assert.Equal(t, 5, count(t, db, "SELECT COUNT(*) FROM samples"))
	assert.Equal(t, 1, count(t, db, "SELECT COUNT(*) FROM sessions WHERE ended_at IS NULL"))

	err = rec.RecordSample(context.Background(), "s1", sample(5, 80, -1), estimator.Estimate{})
	require.Error(t, err)
	assert.True(t, errors.HasCode(err, ErrClosed))
}

func TestPeriodicFlush(t *testing.T) {
	cfg := testConfig(t, 100)
	cfg.FlushInterval = 10 * time.Millisecond

	rec, err := NewService(cfg)
	require.NoError(t, err)
	defer rec.Close()

	require.NoError(t, rec.RecordSample(context.Background(), "s1", sample(0, 80, -1), estimator.Estimate{}))

	db := openDB(t, cfg.DBPath)
	assert.Eventually(t, func() bool {
		var n int
		if err := db.QueryRow("SELECT COUNT(*) FROM samples").Scan(&n); err != nil {
			return false
		}
		return n == 1
	}, 2*time.Second, 10*time.Millisecond)
}

func TestRecordRejectsMissingSessionAndCancelledContext(t *testing.T) {
	rec, err := NewService(testConfig(t, 1))
	require.NoError(t, err)
	defer rec.Close()

	err = rec.RecordSample(context.Background(), "", sample(0, 50, -1), estimator.Estimate{})
	assert.True(t, errors.HasCode(err, ErrInvalidRecord))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err = rec.RecordSample(ctx, "s1", sample(0, 50, -1), estimator.Estimate{})
	assert.True(t, errors.HasCode(err, ErrOperationTimeout))
}

func TestFailedFlushDiscardsBatch(t *testing.T) {
	rec, err := NewService(testConfig(t, 1))
	require.NoError(t, err)
	defer rec.Close()

	ctx := context.Background()
	require.NoError(t, rec.RecordSample(ctx, "s1", sample(0, 50, -1), estimator.Estimate{}))

	err = rec.RecordSample(ctx, "s1", sample(0, 50, -1), estimator.Estimate{})
	require.Error(t, err)
	assert.True(t, errors.HasCode(err, ErrTransactionFailed))

	assert.NoError(t, rec.RecordSample(ctx, "s1", sample(1, 49, -1), estimator.Estimate{}))
}

func TestSchemaMigrationBacksUpOldVersion(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "archive.db")

	db := openDB(t, path)
	_, err := db.Exec(`
		CREATE TABLE schema_versions (version INTEGER PRIMARY KEY, applied_at TEXT NOT NULL);
		INSERT INTO schema_versions VALUES (99, datetime('now'));
		CREATE TABLE samples (legacy INTEGER);`)
	require.NoError(t, err)

	log := logger.Default()
	require.NoError(t, ValidateAndUpdateSchema(db, filepath.Join(dir, "backups"), log))

	version, err := GetSchemaVersion(db)
	require.NoError(t, err)
	assert.Equal(t, SchemaVersion, version)

	exists, err := TableExists(db, "sessions")
	require.NoError(t, err)
	assert.True(t, exists)

	backups, err := os.ReadDir(filepath.Join(dir, "backups"))
	require.NoError(t, err)
	require.Len(t, backups, 1)
	assert.Contains(t, backups[0].Name(), "archive_v99_")

	// Current schema is left alone.
	require.NoError(t, ValidateAndUpdateSchema(db, filepath.Join(dir, "backups"), log))
	backups, err = os.ReadDir(filepath.Join(dir, "backups"))
	require.NoError(t, err)
	assert.Len(t, backups, 1)
}
