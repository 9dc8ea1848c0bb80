package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/b0bbywan/go-odio-nowplaying/api"
	"github.com/b0bbywan/go-odio-nowplaying/backend"
	"github.com/b0bbywan/go-odio-nowplaying/backend/systemd"
	"github.com/b0bbywan/go-odio-nowplaying/config"
	"github.com/b0bbywan/go-odio-nowplaying/logger"
)

func applyLogging(cfg *config.Config) {
	logger.SetLevel(cfg.LogLevel)
	logger.SetPackageLevels(cfg.PackageLevels)
	if cfg.Journal && !logger.UseJournal(true) {
		logger.Warn("[%s] journal requested but not available, logging to stderr", config.AppName)
	}
}

func main() {
	cfg, err := config.New()
	if err != nil {
		logger.Fatal("[%s] Failed to load config: %v", config.AppName, err)
	}
	applyLogging(cfg)

	// Global context for the entire application
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	notifier := systemd.New(cfg.Systemd)

	b, err := backend.New(ctx, cfg.MPRIS)
	if err != nil {
		logger.Fatal("[%s] Backend initialization failed: %v", config.AppName, err)
	}

	// Discovery failure is fatal: without the bus there is nothing to track
	if err := b.Start(); err != nil {
		b.Close()
		logger.Fatal("[%s] Backend start failed: %v", config.AppName, err)
	}

	config.Watch(func(c *config.Config) {
		applyLogging(c)
		b.Apply(c)
	})

	server := api.NewServer(cfg.Api, b)

	notifier.Ready()
	notifier.Status(fmt.Sprintf("tracking %d players", len(b.MPRIS.ListActiveSources())))
	notifier.StartWatchdog(ctx)

	// Channel to synchronize shutdown
	shutdownDone := make(chan struct{})
	go func() {
		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
		<-sigChan

		logger.Info("[%s] Shutdown signal received, stopping...", config.AppName)
		notifier.Stopping()

		// Cancel the global context, stops the http servers
		cancel()

		b.Close()
		notifier.Close()
		close(shutdownDone)
	}()

	logger.Info("[%s] %s started", config.AppName, config.AppVersion)
	if server != nil {
		if err := server.Run(ctx); err != nil && err != http.ErrServerClosed {
			logger.Error("[%s] http server error: %v", config.AppName, err)
		}
	}

	<-shutdownDone
	logger.Info("[%s] stopped", config.AppName)
}
