package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/hszk-dev/livecast/internal/config"
	"github.com/hszk-dev/livecast/internal/domain/repository"
	"github.com/hszk-dev/livecast/internal/encoder"
	"github.com/hszk-dev/livecast/internal/logging"
	"github.com/hszk-dev/livecast/internal/monitor"
	"github.com/hszk-dev/livecast/internal/notify"
	"github.com/hszk-dev/livecast/internal/playlist"
	"github.com/hszk-dev/livecast/internal/publish"
	"github.com/hszk-dev/livecast/internal/status"
	"github.com/hszk-dev/livecast/internal/transport"
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
		return fmt.Errorf("usage: streamer -config <file>")
	}

	// Configuration problems abort here, before any subprocess starts.
	cfg, err := config.Load(*configPath)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	runID := uuid.New()
	logger := logging.New(cfg.LogLevel, cfg.LogFormat).With(
		slog.String("run_id", runID.String()),
	)
	slog.SetDefault(logger)
	logger.Info("streamer started")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Probe the selected backend now; an unavailable transport is a
	// startup failure, not something to discover mid-stream.
	tr, err := transport.New(ctx, cfg.Transfer(), logger)
	if err != nil {
		return fmt.Errorf("failed to initialize transport: %w", err)
	}
	logger.Info("transport ready", slog.String("kind", cfg.Transfer().Kind))

	var notifier repository.Notifier
	if cfg.AMQPURL != "" {
		client, err := notify.NewClient(ctx, notify.DefaultClientConfig(cfg.AMQPURL))
		if err != nil {
			return fmt.Errorf("failed to connect to AMQP broker: %w", err)
		}
		defer client.Close()
		notifier = client
		logger.Info("connected to AMQP broker")
	}

	var statusStore repository.StatusStore
	if cfg.RedisAddr != "" {
		redisClient := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
		defer redisClient.Close()
		if err := redisClient.Ping(ctx).Err(); err != nil {
			return fmt.Errorf("failed to connect to Redis: %w", err)
		}
		statusStore = status.NewRedisStatusStore(redisClient, cfg.SegmentLength)
		logger.Info("connected to Redis")
	}

	if cfg.MonitorAddr != "" {
		mon := monitor.NewServer(cfg.MonitorAddr, logger)
		go func() {
			if err := mon.Start(); err != nil {
				logger.Error("monitor server failed", slog.String("error", err.Error()))
			}
		}()
		defer func() {
			shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer shutdownCancel()
			_ = mon.Shutdown(shutdownCtx)
		}()
	}

	gen := playlist.Generator{
		TargetDuration: cfg.SegmentLength,
		URLPrefix:      cfg.URLPrefix,
		SegmentPrefix:  cfg.SegmentPrefix,
		IndexPrefix:    cfg.IndexPrefix,
	}

	queue := publish.NewQueue(publish.Config{
		TempDir:        cfg.TempDir,
		SegmentLength:  cfg.SegmentLength,
		WindowDepth:    cfg.IndexSegmentCount,
		Profiles:       cfg.Profiles(),
		PublishTimeout: cfg.EffectivePublishTimeout(),
	}, gen, tr, notifier, statusStore, logger)
	queue.Start()

	orch := encoder.New(cfg, queue, logger)

	// A signal asks the encoder to wind down; EOF propagation ends the
	// run, then the queue drains. Subprocesses are never force-killed.
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-quit
		logger.Info("shutdown requested", slog.String("signal", sig.String()))
		orch.Stop()
	}()

	runErr := orch.Run()

	// Drain before exit so buffered segments are not lost.
	queue.Stop()

	if runErr != nil {
		return runErr
	}
	logger.Info("streamer terminated")
	return nil
}
