package report

import (
	"io"
	"os"
	"path/filepath"

	"codeberg.org/mutker/socmonitor/internal/errors"
)

const (
	defaultDirPerm  = 0o755
	defaultFilePerm = 0o644
)

type nopCloser struct{}

func (nopCloser) Close() error { return nil }

// OpenSinks returns the report destination: the console, mirrored to an
// append-only log file when logFile is set.
func OpenSinks(console io.Writer, logFile string) (io.Writer, io.Closer, error) {
	if logFile == "" {
		return console, nopCloser{}, nil
	}

	errFactory := errors.New()

	if dir := filepath.Dir(logFile); dir != "." {
		if err := os.MkdirAll(dir, defaultDirPerm); err != nil {
			return nil, nil, errFactory.Wrap(ErrOpenLogFile, err)
		}
	}

	f, err := os.OpenFile(logFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, defaultFilePerm)
	if err != nil {
		return nil, nil, errFactory.Wrap(ErrOpenLogFile, err)
	}

	return io.MultiWriter(console, f), f, nil
}
