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

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"golang.org/x/sync/errgroup"

	"github.com/skypro1111/binaural-intercom/internal/audio"
	"github.com/skypro1111/binaural-intercom/internal/config"
	"github.com/skypro1111/binaural-intercom/internal/intercom"
	"github.com/skypro1111/binaural-intercom/internal/metrics"
	"github.com/skypro1111/binaural-intercom/internal/pipeline"
	"github.com/skypro1111/binaural-intercom/internal/server"
)

const (
	defaultConfigPath = "configs/config.yaml"
	serviceName       = "binaural-intercom"
	serviceVersion    = server.Version
)

func main() {
	configPath := flag.String("config", defaultConfigPath, "Path to configuration file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	logger := initLogger(cfg.Logging)

	if err := run(cfg, logger, *configPath); err != nil {
		logger.Error("Service failed", slog.String("error", err.Error()))
		os.Exit(1)
	}
}

func run(cfg *config.Config, logger *slog.Logger, configPath string) error {
	logger.Info("Service starting",
		slog.String("service", serviceName),
		slog.String("version", serviceVersion),
		slog.String("config_path", configPath),
	)

	logger.Info("Configuration loaded",
		slog.Int("channels", cfg.Session.Channels),
		slog.Int("sample_rate", cfg.Session.SampleRate),
		slog.Int("frames_per_chunk", cfg.Session.FramesPerChunk),
		slog.String("mode", cfg.Session.Mode),
		slog.String("wavelet", cfg.Session.Wavelet),
		slog.Int("levels", cfg.Session.Levels),
		slog.String("listen_address", fmt.Sprintf("%s:%d", cfg.Transport.ListenAddress, cfg.Transport.ListenPort)),
		slog.String("peer_address", cfg.Transport.PeerAddress),
		slog.Duration("period", cfg.Session.GetPeriod()),
		slog.String("log_level", cfg.Logging.Level),
	)

	if cfg.Realtime.LockMemory {
		if err := lockMemory(); err != nil {
			logger.Warn("Failed to lock memory", slog.String("error", err.Error()))
		} else {
			logger.Info("Process memory locked")
		}
	}

	// Calibrate the session before anything touches the network
	sessionCfg, err := newSessionConfig(cfg.Session)
	if err != nil {
		return err
	}
	orch, err := pipeline.New(sessionCfg, logger)
	if err != nil {
		return fmt.Errorf("failed to create pipeline: %w", err)
	}
	cal, err := orch.Start()
	if err != nil {
		return fmt.Errorf("failed to start session: %w", err)
	}
	defer orch.Close()

	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	appMetrics := metrics.NewMetrics(reg)
	appMetrics.SetCalibratedBitplanes(cal.Bitplanes)
	logger.Info("Prometheus metrics initialized")

	buffer, err := audio.NewBuffer(cfg.Buffer.Cells, sessionCfg.Frames, sessionCfg.Channels)
	if err != nil {
		return fmt.Errorf("failed to create jitter buffer: %w", err)
	}

	source, err := openSource(cfg.Device, cfg.Session.SampleRate)
	if err != nil {
		return err
	}
	defer source.Close()

	sink, err := openSink(cfg.Device, cfg.Session.SampleRate, sessionCfg.Channels)
	if err != nil {
		return err
	}
	defer func() {
		if err := sink.Close(); err != nil {
			logger.Error("Error closing sink", slog.String("error", err.Error()))
		}
	}()

	peer := server.NewPeer(&cfg.Transport, newAnnounce(orch), buffer, appMetrics, logger)

	runner, err := intercom.NewRunner(intercom.Config{
		Orchestrator: orch,
		Source:       source,
		Sink:         sink,
		Transport:    peer,
		Buffer:       buffer,
		Metrics:      appMetrics,
		Period:       cfg.Session.GetPeriod(),
	}, logger)
	if err != nil {
		return fmt.Errorf("failed to create runner: %w", err)
	}

	var httpServer *server.HTTPServer
	if cfg.HTTP.Enabled {
		httpServer = server.NewHTTPServer(cfg.HTTP, logger, cfg, runner, peer, appMetrics, reg)
		logger.Info("HTTP API server initialized",
			slog.String("address", fmt.Sprintf("%s:%d", cfg.HTTP.Address, cfg.HTTP.Port)),
		)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := peer.Start(ctx); err != nil {
		return fmt.Errorf("failed to start UDP peer: %w", err)
	}

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigChan)

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		select {
		case sig := <-sigChan:
			logger.Info("Received shutdown signal", slog.String("signal", sig.String()))
			cancel()
		case <-gctx.Done():
		}
		return nil
	})

	g.Go(func() error {
		return runner.Run(gctx)
	})

	if httpServer != nil {
		g.Go(httpServer.Start)
		g.Go(func() error {
			<-gctx.Done()
			shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer shutdownCancel()
			return httpServer.Stop(shutdownCtx)
		})
	}

	logger.Info("Service started successfully, waiting for signals...")

	// A failing member cancels gctx, which stops the rest of the group
	runErr := g.Wait()

	logger.Info("Starting graceful shutdown...")

	if err := peer.Stop(); err != nil {
		logger.Error("Error stopping UDP peer", slog.String("error", err.Error()))
	}

	stats := runner.Stats()
	logger.Info("Final session statistics",
		slog.Uint64("ticks", stats.Ticks),
		slog.Uint64("overruns", stats.Overruns),
		slog.Uint64("chunks_sent", stats.Pipeline.ChunksSent),
		slog.Uint64("chunks_played", stats.Pipeline.ChunksPlayed),
		slog.Uint64("partial_chunks", stats.Buffer.PartialChunks),
		slog.Uint64("lost_chunks", stats.Buffer.LostChunks),
	)

	logger.Info("Service stopped")
	return runErr
}

// initLogger creates and configures the structured logger based on configuration
func initLogger(cfg config.LoggingConfig) *slog.Logger {
	var level slog.Level
	switch cfg.Level {
	case "debug":
		level = slog.LevelDebug
	case "info":
		level = slog.LevelInfo
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{
		Level:     level,
		AddSource: level == slog.LevelDebug,
	}

	var output *os.File
	switch cfg.Output {
	case "stderr":
		output = os.Stderr
	case "stdout", "":
		output = os.Stdout
	default:
		// Assume it's a file path
		file, err := os.OpenFile(cfg.Output, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Failed to open log file %s: %v, falling back to stdout\n", cfg.Output, err)
			output = os.Stdout
		} else {
			output = file
		}
	}

	var handler slog.Handler
	switch cfg.Format {
	case "json":
		handler = slog.NewJSONHandler(output, opts)
	default:
		handler = slog.NewTextHandler(output, opts)
	}

	return slog.New(handler)
}
