package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
)

func main() {
	container := GetContainer()
	logger := container.Logger

	logger.Info("starting ComputeMesh worker agent",
		"coordinator_url", container.Config.Agent.CoordinatorURL,
		"declared_services", container.Config.Agent.DeclaredServices,
	)

	ctx, cancel := context.WithCancel(context.Background())

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-quit
		logger.Info("shutdown signal received")
		cancel()
	}()

	if err := container.Agent.Run(ctx); err != nil {
		logger.Error("agent terminated with error", "error", err)
		os.Exit(1)
	}

	logger.Info("agent stopped")
}
