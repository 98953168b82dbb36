package main

import (
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"

	"github.com/hszk-dev/livecast/internal/config"
	"github.com/hszk-dev/livecast/internal/logging"
	"github.com/hszk-dev/livecast/internal/playlist"
	"github.com/hszk-dev/livecast/internal/sweeper"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	configPath := flag.String("config", "", "path to the stream definition file")
	flag.Parse()
	if *configPath == "" {
		return fmt.Errorf("usage: sweeper -config <file>")
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	logger := logging.New(cfg.LogLevel, cfg.LogFormat)
	slog.SetDefault(logger)
	logger.Info("sweeper started")

	tc := cfg.Transfer()
	if tc.Kind != "copy" {
		return fmt.Errorf("sweeper requires a copy transfer profile, got %q", tc.Kind)
	}

	gen := playlist.Generator{
		TargetDuration: cfg.SegmentLength,
		URLPrefix:      cfg.URLPrefix,
		SegmentPrefix:  cfg.SegmentPrefix,
		IndexPrefix:    cfg.IndexPrefix,
	}

	sw := sweeper.New(tc.Directory, logger)
	for _, p := range cfg.Profiles() {
		if err := sw.SweepProfile(gen.IndexFileName(p.Name)); err != nil {
			// A profile that never published has nothing to sweep.
			if errors.Is(err, sweeper.ErrNoSegments) || errors.Is(err, os.ErrNotExist) {
				logger.Info("nothing to sweep", slog.String("profile", p.Name))
				continue
			}
			return err
		}
	}

	logger.Info("sweeper finished")
	return nil
}
