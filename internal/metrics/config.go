package metrics

import (
	"path/filepath"
	"time"

	"codeberg.org/mutker/socmonitor/internal/config"
	"codeberg.org/mutker/socmonitor/internal/errors"
)

const (
	// File system permissions and paths
	defaultDirPerm   = 0o755
	defaultBatchSize = 30
	backupDirName    = "backups"
)

type Config struct {
	DBPath        string
	BatchSize     int
	FlushInterval time.Duration
	// BackupDir defaults to a backups directory next to the database.
	BackupDir string
	Enabled   bool
}

func DefaultConfig() Config {
	return Config{
		DBPath:    config.DefaultArchivePath,
		BatchSize: defaultBatchSize,
		Enabled:   false, // Disabled by default
	}
}

// FromArchive converts the archive section of the application config.
func FromArchive(a config.Archive) Config {
	return Config{
		DBPath:        a.DBPath,
		BatchSize:     a.BatchSize,
		FlushInterval: time.Duration(a.FlushInterval) * time.Second,
		Enabled:       a.Enabled,
	}
}

func (c Config) Validate() error {
	errFactory := errors.New()

	// Only validate when the archive is enabled
	if !c.Enabled {
		return nil
	}
	if c.DBPath == "" {
		return errFactory.New(ErrInvalidDBPath)
	}
	if c.BatchSize <= 0 {
		return errFactory.WithData(ErrInvalidBatchSize, c.BatchSize)
	}
	if c.FlushInterval < 0 {
		return errFactory.WithMessage(ErrInvalidConfig, "negative flush interval")
	}
	return nil
}

func (c Config) backupDir() string {
	if c.BackupDir != "" {
		return c.BackupDir
	}
	return filepath.Join(filepath.Dir(c.DBPath), backupDirName)
}
