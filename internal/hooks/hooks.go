// Package hooks runs operator supplied shell commands at session transitions.
package hooks

import (
	"context"
	"io"
	"os/exec"
	"runtime"
	"time"

	"codeberg.org/mutker/socmonitor/internal/logger"
)

// ShellRunner runs each command through the platform shell and waits for it
// to exit. Output is discarded and failures are only logged.
type ShellRunner struct {
	shell []string
}

func NewShellRunner() *ShellRunner {
	if runtime.GOOS == "windows" {
		return &ShellRunner{shell: []string{"cmd", "/C"}}
	}
	return &ShellRunner{shell: []string{"/bin/sh", "-c"}}
}

// Run executes command. An empty command does nothing.
func (r *ShellRunner) Run(ctx context.Context, command string) {
	if command == "" {
		return
	}

	args := append(append([]string{}, r.shell[1:]...), command)
	cmd := exec.CommandContext(ctx, r.shell[0], args...)
	cmd.Stdout = io.Discard
	cmd.Stderr = io.Discard

	started := time.Now()
	logger.Debug().Str("command", command).Msg("Running hook")

	if err := cmd.Run(); err != nil {
		logger.Warn().Err(err).Str("command", command).Msg("Hook failed")
		return
	}

	logger.Debug().
		Str("command", command).
		Dur("took", time.Since(started)).
		Msg("Hook finished")
}
