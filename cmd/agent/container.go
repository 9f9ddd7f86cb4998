package main

import (
	"log"
	"log/slog"

	"ComputeMesh/internal/agent"
	"ComputeMesh/internal/agent/client"
	"ComputeMesh/internal/agent/runnersvc"
	"ComputeMesh/internal/config"
	"ComputeMesh/pkg/logger"
)

type Container struct {
	Config    *config.Config
	Logger    *slog.Logger
	APIClient *client.Client
	Manager   *runnersvc.Manager
	Agent     *agent.Agent
}

func GetContainer() *Container {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %s", err)
	}

	container := &Container{Config: cfg}

	container.initLogger()
	container.initAPIClient()
	container.initManager()
	container.initAgent()

	return container
}

func (c *Container) initLogger() {
	c.Logger = logger.Setup(logger.Config{
		Level:  c.Config.Logging.Level,
		Format: c.Config.Logging.Format,
	})
}

func (c *Container) initAPIClient() {
	c.APIClient = client.New(
		c.Config.Agent.CoordinatorURL,
		c.Logger.With("component", "api_client"),
	)
}

func (c *Container) initManager() {
	c.Manager = runnersvc.NewManager(
		c.Config.Agent.Services,
		c.Logger.With("component", "service_manager"),
	)
}

func (c *Container) initAgent() {
	c.Agent = agent.New(
		&c.Config.Agent,
		c.APIClient,
		c.Manager,
		c.Logger.With("component", "agent"),
	)
}
