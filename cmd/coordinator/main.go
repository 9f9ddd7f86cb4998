package main

import (
	"context"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"ComputeMesh/internal/config"
	"ComputeMesh/internal/coordinator/dependencies"
	"ComputeMesh/internal/coordinator/server"
	"ComputeMesh/pkg/logger"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %s", err)
	}

	logg := logger.Setup(logger.Config{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
	})

	logg.Info("starting ComputeMesh coordinator",
		slog.String("name", cfg.App.Name),
		slog.String("version", cfg.App.Version),
		slog.Int("port", cfg.Server.Port),
	)

	initCtx, cancelInit := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancelInit()

	container, err := dependencies.NewContainer(initCtx, cfg, logg)
	if err != nil {
		logg.Error("failed to create dependency container", "error", err)
		os.Exit(1)
	}

	// recover worker records persisted before the last restart
	if err := container.Restore(initCtx); err != nil {
		logg.Error("failed to restore registry snapshot", "error", err)
		os.Exit(1)
	}

	monitorCtx, stopMonitor := context.WithCancel(context.Background())
	go container.Monitor.Run(monitorCtx)

	srv := server.New(&server.Config{
		Port: cfg.Server.Port,
		Mode: cfg.Server.Mode,
	}, container)

	go func() {
		if err := srv.Start(); err != nil {
			logg.Error("server failed to start", "error", err)
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	stopMonitor()

	shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancelShutdown()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logg.Error("server shutdown failed", "error", err)
		os.Exit(1)
	}

	logg.Info("coordinator stopped gracefully")
}
