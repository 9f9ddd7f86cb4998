package config

import (
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/spf13/viper"
)

type Config struct {
	App      AppConfig      `mapstructure:"app"`
	Server   ServerConfig   `mapstructure:"server"`
	Database DatabaseConfig `mapstructure:"database"`
	Redis    RedisConfig    `mapstructure:"redis"`
	Logging  LoggingConfig  `mapstructure:"logging"`
	Cluster  ClusterConfig  `mapstructure:"cluster"`
	Agent    AgentConfig    `mapstructure:"agent"`
}

type AppConfig struct {
	Name    string `mapstructure:"name"`
	Version string `mapstructure:"version"`
}

type ServerConfig struct {
	Port int    `mapstructure:"port"`
	Mode string `mapstructure:"mode"`
}

type DatabaseConfig struct {
	Enabled  bool   `mapstructure:"enabled"`
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	User     string `mapstructure:"user"`
	Password string `mapstructure:"password"`
	DBName   string `mapstructure:"dbname"`
	SSLMode  string `mapstructure:"sslmode"`
}

type RedisConfig struct {
	Enabled  bool   `mapstructure:"enabled"`
	Addr     string `mapstructure:"addr"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// ClusterConfig carries the coordinator-side liveness knobs. The interval is
// advisory: it is returned to agents in the registration response.
type ClusterConfig struct {
	HeartbeatTimeoutSeconds  int `mapstructure:"heartbeat_timeout_seconds"`
	HeartbeatIntervalSeconds int `mapstructure:"heartbeat_interval_seconds"`
	GCRetentionSeconds       int `mapstructure:"gc_retention_seconds"`
	MonitorTickSeconds       int `mapstructure:"monitor_tick_seconds"`
}

type AgentConfig struct {
	CoordinatorURL   string               `mapstructure:"coordinator_url"`
	WorkerID         string               `mapstructure:"worker_id"`
	AdvertiseURL     string               `mapstructure:"advertise_url"`
	DeclaredServices []string             `mapstructure:"declared_services"`
	Services         []AgentServiceConfig `mapstructure:"services"`
}

// AgentServiceConfig describes one locally-managed service process. A service
// with an empty command is assumed to be managed outside the agent.
type AgentServiceConfig struct {
	Name       string   `mapstructure:"name"`
	Command    string   `mapstructure:"command"`
	Args       []string `mapstructure:"args"`
	URL        string   `mapstructure:"url"`
	Port       int      `mapstructure:"port"`
	HealthPath string   `mapstructure:"health_path"`
}

func Load() (*Config, error) {
	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath("configs")

	setDefaults()
	bindEnv()

	if err := viper.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if errors.As(err, &notFound) {
			slog.Warn("config file not found, using defaults and environment")
		} else {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}

	var config Config
	if err := viper.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := validateConfig(&config); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	slog.Info("configuration loaded successfully")
	return &config, nil
}

func setDefaults() {
	// app defaults
	viper.SetDefault("app.name", "computemesh")
	viper.SetDefault("app.version", "1.0.0")

	// server defaults
	viper.SetDefault("server.port", 8080)
	viper.SetDefault("server.mode", "debug")

	// database defaults (worker event history, optional)
	viper.SetDefault("database.enabled", false)
	viper.SetDefault("database.host", "localhost")
	viper.SetDefault("database.port", 5432)
	viper.SetDefault("database.user", "computemesh")
	viper.SetDefault("database.password", "computemesh")
	viper.SetDefault("database.dbname", "computemesh")
	viper.SetDefault("database.sslmode", "disable")

	// redis defaults (registry snapshots + lifecycle events, optional)
	viper.SetDefault("redis.enabled", false)
	viper.SetDefault("redis.addr", "localhost:6379")
	viper.SetDefault("redis.password", "")
	viper.SetDefault("redis.db", 0)

	// logging defaults
	viper.SetDefault("logging.level", "info")
	viper.SetDefault("logging.format", "text")

	// cluster defaults: timeout is 3x the advisory heartbeat interval
	viper.SetDefault("cluster.heartbeat_timeout_seconds", 90)
	viper.SetDefault("cluster.heartbeat_interval_seconds", 30)
	viper.SetDefault("cluster.gc_retention_seconds", 86400)
	viper.SetDefault("cluster.monitor_tick_seconds", 15)

	// agent defaults
	viper.SetDefault("agent.coordinator_url", "http://localhost:8080")
	viper.SetDefault("agent.advertise_url", "")
	viper.SetDefault("agent.declared_services", []string{})
}

func bindEnv() {
	// Deployment surface documented for the coordinator.
	viper.BindEnv("cluster.heartbeat_timeout_seconds", "HEARTBEAT_TIMEOUT_SECONDS")
	viper.BindEnv("cluster.heartbeat_interval_seconds", "HEARTBEAT_INTERVAL_SECONDS")
	viper.BindEnv("cluster.gc_retention_seconds", "GC_RETENTION_SECONDS")
	viper.BindEnv("server.port", "COORDINATOR_PORT")

	// Agent surface, kept env-first so the daemon works without a config file.
	viper.BindEnv("agent.coordinator_url", "COORDINATOR_URL")
	viper.BindEnv("agent.worker_id", "WORKER_ID")
	viper.BindEnv("agent.advertise_url", "ADVERTISE_URL")

	viper.BindEnv("database.enabled", "DATABASE_ENABLED")
	viper.BindEnv("database.host", "DATABASE_HOST")
	viper.BindEnv("database.password", "DATABASE_PASSWORD")
	viper.BindEnv("redis.enabled", "REDIS_ENABLED")
	viper.BindEnv("redis.addr", "REDIS_ADDR")
	viper.BindEnv("redis.password", "REDIS_PASSWORD")
}

func validateConfig(cfg *Config) error {
	if cfg.Server.Port < 1 || cfg.Server.Port > 65535 {
		return fmt.Errorf("invalid server port %d", cfg.Server.Port)
	}

	if cfg.Server.Mode != "debug" && cfg.Server.Mode != "release" {
		return fmt.Errorf("invalid server mode %s", cfg.Server.Mode)
	}

	if cfg.Database.Enabled && cfg.Database.Host == "" {
		return errors.New("database host is required when database is enabled")
	}

	if cfg.Database.Enabled && cfg.Database.DBName == "" {
		return errors.New("database name is required when database is enabled")
	}

	if cfg.Redis.Enabled && cfg.Redis.Addr == "" {
		return errors.New("redis address is required when redis is enabled")
	}

	if cfg.Cluster.HeartbeatTimeoutSeconds <= 0 {
		return fmt.Errorf("invalid heartbeat timeout %d", cfg.Cluster.HeartbeatTimeoutSeconds)
	}

	if cfg.Cluster.HeartbeatIntervalSeconds <= 0 {
		return fmt.Errorf("invalid heartbeat interval %d", cfg.Cluster.HeartbeatIntervalSeconds)
	}

	if cfg.Cluster.HeartbeatTimeoutSeconds < cfg.Cluster.HeartbeatIntervalSeconds {
		slog.Warn("heartbeat timeout is shorter than the heartbeat interval - workers will flap offline",
			"timeout_seconds", cfg.Cluster.HeartbeatTimeoutSeconds,
			"interval_seconds", cfg.Cluster.HeartbeatIntervalSeconds,
		)
	}

	return nil
}

func (c *ClusterConfig) HeartbeatTimeout() time.Duration {
	return time.Duration(c.HeartbeatTimeoutSeconds) * time.Second
}

func (c *ClusterConfig) HeartbeatInterval() time.Duration {
	return time.Duration(c.HeartbeatIntervalSeconds) * time.Second
}

func (c *ClusterConfig) GCRetention() time.Duration {
	return time.Duration(c.GCRetentionSeconds) * time.Second
}

func (c *ClusterConfig) MonitorTick() time.Duration {
	return time.Duration(c.MonitorTickSeconds) * time.Second
}

// GetDSN returns the DSN string for PostgreSQL.
func (d *DatabaseConfig) GetDSN() string {
	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		d.Host, d.Port, d.User, d.Password, d.DBName, d.SSLMode)
}

// GetRedisOptions returns client options for Redis.
func (r *RedisConfig) GetRedisOptions() *redis.Options {
	return &redis.Options{
		Addr:            r.Addr,
		Password:        r.Password,
		DB:              r.DB,
		DisableIdentity: true,
	}
}
