package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"codeberg.org/mutker/socmonitor/internal/config"
	"codeberg.org/mutker/socmonitor/internal/errors"
	"codeberg.org/mutker/socmonitor/internal/hooks"
	"codeberg.org/mutker/socmonitor/internal/logger"
	"codeberg.org/mutker/socmonitor/internal/metrics"
	"codeberg.org/mutker/socmonitor/internal/pid"
	"codeberg.org/mutker/socmonitor/internal/report"
	"codeberg.org/mutker/socmonitor/internal/session"
	"codeberg.org/mutker/socmonitor/internal/telemetry"
	"codeberg.org/mutker/socmonitor/internal/workers"
	"github.com/spf13/pflag"
)

// version is set at build time with -ldflags "-X main.version=...".
var version = "dev"

func main() {
	os.Exit(run())
}

func run() int {
	cfg, err := config.Load(os.Args[1:])
	if err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return 0
		}
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		return 1
	}

	if cfg.ShowVersion {
		fmt.Println("socmonitor", version)
		return 0
	}

	logger.Init(cfg.Debug, cfg.Verbose, logger.IsService())
	logger.Debug().Msg("Config loaded")

	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "invalid configuration: %v\n", err)
		return 1
	}

	pidPath := pid.DefaultPath()
	if err := pid.Write(pidPath); err != nil {
		logger.Error().Err(err).Msg("Failed to acquire PID file")
		return 1
	}
	defer func() {
		if err := pid.Remove(pidPath); err != nil {
			logger.Warn().Err(err).Msg("Failed to remove PID file")
		}
	}()

	out, closer, err := report.OpenSinks(os.Stdout, cfg.LogFile)
	if err != nil {
		logger.Error().Err(err).Str("path", cfg.LogFile).Msg("Failed to open log file")
		return 1
	}
	defer closer.Close()

	archive, err := metrics.NewService(metrics.FromArchive(cfg.Archive))
	if err != nil {
		logger.Error().Err(err).Msg("Failed to open session archive")
		return 1
	}
	defer func() {
		if err := archive.Close(); err != nil {
			logger.Warn().Err(err).Msg("Failed to close session archive")
		}
	}()

	controller := session.NewController(session.Options{
		Config:  cfg,
		Source:  telemetry.NewBatterySource(),
		Emitter: report.NewWriter(out, report.Options{Version: version, Beautify: cfg.Beautify, Verbose: cfg.Verbose, Config: cfg}),
		Hooks:   hooks.NewShellRunner(),
		Workers: workers.NewPool(workers.DefaultRegistry()),
		Archive: archive,
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go handleSignals(ctx, cancel)

	s, err := controller.Run(ctx)
	if err != nil {
		var appErr errors.Error
		if errors.As(err, &appErr) {
			logger.ErrorWithCode(appErr).Msg("Monitoring failed")
		} else {
			logger.Error().Err(err).Msg("Monitoring failed")
		}
		return 1
	}

	logger.Info().
		Str("session", s.ID).
		Str("cause", s.Cause().String()).
		Msg("Exiting...")

	return 0
}

func handleSignals(ctx context.Context, cancel context.CancelFunc) {
	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigs)

	select {
	case <-sigs:
		logger.Info().Msg("Received termination signal.")
		cancel()
	case <-ctx.Done():
	}
}
