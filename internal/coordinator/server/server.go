package server

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"ComputeMesh/internal/coordinator/dependencies"
	"ComputeMesh/internal/coordinator/handlers"

	"github.com/gin-gonic/gin"
)

type Server struct {
	router     *gin.Engine
	config     *Config
	container  *dependencies.Container
	handlers   *handlers.Handlers
	httpServer *http.Server
}

type Config struct {
	Port int
	Mode string
}

// New creates the coordinator HTTP server with dependency injection.
func New(config *Config, container *dependencies.Container) *Server {
	if config.Mode == "release" {
		gin.SetMode(gin.ReleaseMode)
	}

	server := &Server{
		router:    gin.New(),
		config:    config,
		container: container,
		handlers: handlers.NewHandlers(
			container.WorkerService,
			container.Router,
			container.Metrics,
			container.Logger.With("component", "handlers"),
		),
	}

	server.setupMiddlewares()
	server.setupRoutes()

	return server
}

func (s *Server) setupMiddlewares() {
	s.router.Use(gin.Recovery())
	s.router.Use(s.loggerMiddleware())
	s.router.Use(s.corsMiddleware())
	s.router.Use(s.requestIDMiddleware())
}

func (s *Server) setupRoutes() {
	// Health checks
	s.router.GET("/health", s.healthCheck)
	s.router.GET("/ready", s.readyCheck)
	s.router.GET("/metrics", gin.WrapH(s.container.Metrics.Handler()))

	// Worker lifecycle
	worker := s.router.Group("/worker")
	{
		worker.POST("/register", s.handlers.RegisterWorker)
		worker.POST("/heartbeat", s.handlers.Heartbeat)
		worker.DELETE("/:workerId", s.handlers.UnregisterWorker)
	}

	// Routing queries from the request-dispatch layer
	s.router.GET("/route/:serviceName", s.handlers.RouteService)

	// Operator read surface
	admin := s.router.Group("/admin")
	{
		admin.GET("/workers", s.handlers.ListWorkers)
		admin.GET("/workers/:workerId/events", s.handlers.WorkerEvents)
	}

	s.router.NoRoute(s.notFoundHandler)
}

func (s *Server) healthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":    "ok",
		"service":   "computemesh-coordinator",
		"version":   s.container.Config.App.Version,
		"timestamp": time.Now().UTC(),
	})
}

func (s *Server) readyCheck(c *gin.Context) {
	if s.container.WorkerService == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{
			"status": "error",
			"error":  "Worker service not initialized",
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"status":    "ready",
		"workers":   s.container.Registry.Len(),
		"timestamp": time.Now().UTC(),
	})
}

func (s *Server) notFoundHandler(c *gin.Context) {
	c.JSON(http.StatusNotFound, gin.H{
		"error":   "not_found",
		"message": "Endpoint not found",
		"path":    c.Request.URL.Path,
	})
}

func (s *Server) loggerMiddleware() gin.HandlerFunc {
	log := s.container.Logger
	return func(c *gin.Context) {
		start := time.Now()
		path := c.Request.URL.Path
		query := c.Request.URL.RawQuery

		c.Next()

		latency := time.Since(start)
		clientIP := c.ClientIP()
		method := c.Request.Method
		statusCode := c.Writer.Status()
		errorMessage := c.Errors.ByType(gin.ErrorTypePrivate).String()

		if query != "" {
			path = path + "?" + query
		}

		logFn := log.Info
		if statusCode >= 400 {
			logFn = log.Warn
		}
		if statusCode >= 500 {
			logFn = log.Error
		}

		logFn("HTTP request",
			"status", statusCode,
			"method", method,
			"path", path,
			"ip", clientIP,
			"latency", latency,
			"error", errorMessage,
		)
	}
}

func (s *Server) corsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Header("Access-Control-Allow-Origin", "*")
		c.Header("Access-Control-Allow-Methods", "GET, POST, PUT, PATCH, DELETE, OPTIONS")
		c.Header("Access-Control-Allow-Headers", "Content-Type, Authorization, X-Request-ID")
		c.Header("Access-Control-Expose-Headers", "X-Request-ID")
		c.Header("Access-Control-Max-Age", "86400")

		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}

		c.Next()
	}
}

func (s *Server) requestIDMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		requestID := c.GetHeader("X-Request-ID")
		if requestID == "" {
			requestID = fmt.Sprintf("req-%d", time.Now().UnixNano())
		}

		c.Header("X-Request-ID", requestID)
		c.Set("request_id", requestID)
		c.Next()
	}
}

// Start runs the HTTP server until it is shut down.
func (s *Server) Start() error {
	addr := fmt.Sprintf(":%d", s.config.Port)

	s.httpServer = &http.Server{
		Addr:         addr,
		Handler:      s.router,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	s.container.Logger.Info("starting HTTP server",
		"port", s.config.Port,
		"mode", s.config.Mode,
		"address", addr,
	)

	if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("failed to start server: %w", err)
	}

	return nil
}

// Shutdown performs a graceful shutdown of the server and its dependencies.
func (s *Server) Shutdown(ctx context.Context) error {
	s.container.Logger.Info("shutting down HTTP server")

	if s.httpServer != nil {
		if err := s.httpServer.Shutdown(ctx); err != nil {
			return fmt.Errorf("server shutdown failed: %w", err)
		}
	}

	if s.container != nil {
		if err := s.container.Close(); err != nil {
			s.container.Logger.Error("failed to close dependencies", "error", err)
		}
	}

	s.container.Logger.Info("server shutdown completed")
	return nil
}

// GetRouter exposes the gin engine for tests.
func (s *Server) GetRouter() *gin.Engine {
	return s.router
}
