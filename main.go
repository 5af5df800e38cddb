package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/exec"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"mediadl/api"
	"mediadl/config"
	"mediadl/ffmpeg"
	"mediadl/history"
	"mediadl/notify"
	"mediadl/task"
)

const boardLimit = 200

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx); err != nil {
		slog.Error("Application failed", "error", err)
		stop()
		os.Exit(1)
	}
}

// run serves until ctx is done or the listener fails, then shuts everything
// down.
func run(ctx context.Context) error {
	// 1. Load configuration
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}
	setupLogging(cfg.LogLevel)

	if _, err := exec.LookPath(cfg.ExtractorBin); err != nil {
		slog.Warn("Extractor binary not found, downloads will fail until it is installed", "bin", cfg.ExtractorBin)
	}
	if _, err := ffmpeg.Lookup(cfg.FFBin); err != nil {
		slog.Warn("Transcoder not found, best-quality video downloads will fail", "error", err)
	}

	// 2. Initialize dependencies
	store, err := history.Open(cfg.HistoryDB)
	if err != nil {
		return fmt.Errorf("failed to open history database %s: %w", cfg.HistoryDB, err)
	}
	defer func() {
		if err := store.Close(); err != nil {
			slog.Error("Failed to close history database", "error", err)
		}
	}()

	settings := config.NewSettings(cfg)
	notifier := notify.New()
	manager, err := task.NewManager(cfg, settings, notifier, task.NewLauncher())
	if err != nil {
		return fmt.Errorf("failed to initialize download manager: %w", err)
	}
	board := api.NewBoard(boardLimit)

	// 3. Start the event consumer
	consumerCtx, stopConsumer := context.WithCancel(context.Background())
	consumerDone := make(chan struct{})
	go func() {
		defer close(consumerDone)
		notifier.Run(consumerCtx, cfg.PollInterval, cfg.PollBatch, func(ev notify.Event) {
			board.Handle(ev)
			if _, err := store.Record(ev); err != nil {
				slog.Error("Failed to record history", "id", ev.JobID(), "error", err)
			}
		})
	}()

	// 4. Set up router and server
	baseCtx, cancelRequests := context.WithCancel(context.Background())
	defer cancelRequests()
	router := api.SetupRouter(api.NewHandler(manager, settings, store, board), cfg)
	srv := &http.Server{
		Addr:        cfg.Addr(),
		Handler:     router,
		BaseContext: func(net.Listener) context.Context { return baseCtx },
	}

	serverErr := make(chan error, 1)
	go func() {
		slog.Info("Server starting", "addr", cfg.Addr(), "download_dir", cfg.DownloadDir)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- fmt.Errorf("server failed to start: %w", err)
		}
	}()

	// 5. Wait for interrupt signal or a listener failure
	var runErr error
	select {
	case <-ctx.Done():
		slog.Info("Shutting down gracefully, press Ctrl+C again to force")
	case runErr = <-serverErr:
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second+2*cfg.KillGrace)
	defer cancel()

	// Event streams never finish on their own.
	cancelRequests()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("Server forced to shutdown", "error", err)
	}
	if err := manager.Shutdown(shutdownCtx); err != nil {
		slog.Error("Downloads did not stop in time", "error", err)
	}

	stopConsumer()
	<-consumerDone
	slog.Info("Server exiting")
	return runErr
}

// setupLogging installs a text logger at the configured level.
func setupLogging(level string) {
	var logLevel slog.Level
	switch strings.ToLower(level) {
	case "debug":
		logLevel = slog.LevelDebug
	case "warn":
		logLevel = slog.LevelWarn
	case "error":
		logLevel = slog.LevelError
	default:
		logLevel = slog.LevelInfo
	}
	handler := slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: logLevel})
	slog.SetDefault(slog.New(handler))
}
