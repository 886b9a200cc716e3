package metrics

import (
	"database/sql"

	"codeberg.org/mutker/socmonitor/internal/errors"
	"codeberg.org/mutker/socmonitor/internal/logger"
)

const (
	SchemaVersion = 1

	// SQL statements derived from schema
	createTablesSQL = `
	   CREATE TABLE IF NOT EXISTS schema_versions (
	       version     INTEGER PRIMARY KEY,
	       applied_at  TEXT NOT NULL
	   );
	   CREATE TABLE IF NOT EXISTS sessions (
	       id                 TEXT PRIMARY KEY,
	       started_at         INTEGER NOT NULL,
	       ended_at           INTEGER,
	       cause              TEXT,
	       samples            INTEGER,
	       start_soc          REAL,
	       end_soc            REAL,
	       start_rate         REAL,
	       start_sec_per_pct  REAL,
	       start_sec_per_full REAL,
	       end_rate           REAL,
	       end_sec_per_pct    REAL,
	       end_sec_per_full   REAL
	   );
	   CREATE TABLE IF NOT EXISTS samples (
	       session_id         TEXT NOT NULL REFERENCES sessions(id),
	       idx                INTEGER NOT NULL CHECK (idx >= 0),
	       timestamp          INTEGER NOT NULL,
	       soc                REAL NOT NULL CHECK (soc >= 0 AND soc <= 100),
	       seconds_remaining  INTEGER,
	       rate               REAL,
	       sec_per_pct        REAL,
	       sec_per_full       REAL,
	       PRIMARY KEY (session_id, idx)
	   );`

	insertSessionSQL = `
    INSERT OR IGNORE INTO sessions (id, started_at) VALUES (?, ?)`

	insertSampleSQL = `
    INSERT INTO samples (
        session_id, idx, timestamp, soc, seconds_remaining,
        rate, sec_per_pct, sec_per_full
    ) VALUES (?, ?, ?, ?, ?, ?, ?, ?)`

	upsertSummarySQL = `
    INSERT INTO sessions (
        id, started_at, ended_at, cause, samples, start_soc, end_soc,
        start_rate, start_sec_per_pct, start_sec_per_full,
        end_rate, end_sec_per_pct, end_sec_per_full
    ) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
    ON CONFLICT(id) DO UPDATE SET
        ended_at = excluded.ended_at,
        cause = excluded.cause,
        samples = excluded.samples,
        start_soc = excluded.start_soc,
        end_soc = excluded.end_soc,
        start_rate = excluded.start_rate,
        start_sec_per_pct = excluded.start_sec_per_pct,
        start_sec_per_full = excluded.start_sec_per_full,
        end_rate = excluded.end_rate,
        end_sec_per_pct = excluded.end_sec_per_pct,
        end_sec_per_full = excluded.end_sec_per_full`
)

// archiveTables lists the tables owned by the schema, dependents first.
var archiveTables = []string{"samples", "sessions", "schema_versions"}

// InitSchema creates a new database schema with the current version
func InitSchema(db *sql.DB, log logger.Logger) error {
	errFactory := errors.New()

	log.Debug().Msg("Creating database...")

	tx, err := db.Begin()
	if err != nil {
		return errFactory.Wrap(ErrSchemaInitFailed, err)
	}

	// Track transaction state
	committed := false
	defer func() {
		if !committed {
			if err := tx.Rollback(); err != nil && !errors.Is(err, sql.ErrTxDone) {
				log.Debug().Err(err).Msg("Failed to rollback transaction")
			}
		}
	}()

	if _, err := tx.Exec(createTablesSQL); err != nil {
		return errFactory.WithData(ErrSchemaInitFailed, struct {
			Phase string
			Error string
		}{
			Phase: "create_tables",
			Error: err.Error(),
		})
	}

	if _, err := tx.Exec(`
        INSERT INTO schema_versions (version, applied_at)
        VALUES (?, datetime('now'))
    `, SchemaVersion); err != nil {
		return errFactory.WithData(ErrSchemaInitFailed, struct {
			Phase string
			Error string
		}{
			Phase: "record_version",
			Error: err.Error(),
		})
	}

	if err := tx.Commit(); err != nil {
		return errFactory.Wrap(ErrSchemaInitFailed, err)
	}
	committed = true

	log.Info().
		Int("version", SchemaVersion).
		Msg("Archive schema initialized")

	return nil
}

// GetSchemaVersion returns the current schema version, or 0 for an empty
// database.
func GetSchemaVersion(db *sql.DB) (int, error) {
	errFactory := errors.New()

	exists, err := TableExists(db, "schema_versions")
	if err != nil {
		return 0, errFactory.Wrap(ErrSchemaValidationFailed, err)
	}
	if !exists {
		return 0, nil
	}

	var version int
	err = db.QueryRow(`
        SELECT version
        FROM schema_versions
        ORDER BY version DESC
        LIMIT 1
    `).Scan(&version)

	if errors.Is(err, sql.ErrNoRows) {
		return 0, nil
	}
	if err != nil {
		return 0, errFactory.WithData(ErrSchemaValidationFailed, struct {
			Phase string
			Error string
		}{
			Phase: "get_version",
			Error: err.Error(),
		})
	}

	return version, nil
}

// TableExists checks if a table exists
func TableExists(db *sql.DB, tableName string) (bool, error) {
	var exists bool
	err := db.QueryRow(`
        SELECT EXISTS (
            SELECT 1 FROM sqlite_master
            WHERE type='table' AND name=?
        )
    `, tableName).Scan(&exists)
	if err != nil {
		return false, errors.New().WithData(ErrSchemaValidationFailed, struct {
			Phase string
			Table string
			Error string
		}{
			Phase: "check_table_exists",
			Table: tableName,
			Error: err.Error(),
		})
	}
	return exists, nil
}
