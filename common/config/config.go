package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

// Config holds all service configuration
type Config struct {
	Service  ServiceConfig
	Database DatabaseConfig
	Redis    RedisConfig
	HL7      HL7Config
	Routing  RoutingConfig
}

// ServiceConfig holds service-specific settings
type ServiceConfig struct {
	Name        string
	Port        int
	Environment string
	LogLevel    string
	LogFormat   string
}

// DatabaseConfig holds Postgres connection settings
type DatabaseConfig struct {
	Host        string
	Port        int
	Database    string
	User        string
	Password    string
	MaxConns    int
	MinConns    int
	MaxIdleTime time.Duration
	MaxLifetime time.Duration
}

// RedisConfig holds Redis connection settings
type RedisConfig struct {
	Enabled  bool
	Host     string
	Port     int
	Password string
	DB       int
}

// HL7Config holds the MLLP listener and outbound stainer settings
type HL7Config struct {
	// Inbound listener
	ListenHost         string
	ListenPort         int
	ListenerWorkers    int
	ProcessWorkers     int
	ReadTimeout        time.Duration
	QueueSize          int

	// Outbound stainer device
	StainerHost string
	StainerPort int
	SendTimeout time.Duration

	// Identifiers stamped into generated MSH segments
	SendingApp      string
	SendingFacility string
	ReceivingApp    string
}

// RoutingConfig holds workflow routing settings
type RoutingConfig struct {
	// TTL for cached step sequences and department lookups
	StepCacheTTL time.Duration
}

// Load loads configuration from environment variables
func Load(serviceName string) (*Config, error) {
	cfg := &Config{
		Service: ServiceConfig{
			Name:        serviceName,
			Port:        getEnvInt("PORT", 8080),
			Environment: getEnv("ENVIRONMENT", "development"),
			LogLevel:    getEnv("LOG_LEVEL", "info"),
			LogFormat:   getEnv("LOG_FORMAT", "text"),
		},
		Database: DatabaseConfig{
			Host:        getEnv("POSTGRES_HOST", "localhost"),
			Port:        getEnvInt("POSTGRES_PORT", 5432),
			Database:    getEnv("POSTGRES_DB", "lims"),
			User:        getEnv("POSTGRES_USER", "lims"),
			Password:    getEnv("POSTGRES_PASSWORD", "lims"),
			MaxConns:    getEnvInt("POSTGRES_MAX_CONNS", 20),
			MinConns:    getEnvInt("POSTGRES_MIN_CONNS", 2),
			MaxIdleTime: getEnvDuration("POSTGRES_MAX_IDLE_TIME", 30*time.Minute),
			MaxLifetime: getEnvDuration("POSTGRES_MAX_LIFETIME", 1*time.Hour),
		},
		Redis: RedisConfig{
			Enabled:  getEnvBool("REDIS_ENABLED", true),
			Host:     getEnv("REDIS_HOST", "localhost"),
			Port:     getEnvInt("REDIS_PORT", 6379),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       getEnvInt("REDIS_DB", 0),
		},
		HL7: HL7Config{
			ListenHost:      getEnv("HL7_LISTEN_HOST", "0.0.0.0"),
			ListenPort:      getEnvInt("HL7_LISTEN_PORT", 2575),
			ListenerWorkers: getEnvInt("HL7_MAX_WORKERS_LISTENER", 8),
			ProcessWorkers:  getEnvInt("HL7_MAX_WORKERS_PROCESS_MSG", 4),
			ReadTimeout:     getEnvDuration("HL7_READ_TIMEOUT", 5*time.Second),
			QueueSize:       getEnvInt("HL7_QUEUE_SIZE", 1000),
			StainerHost:     getEnv("HL7_STAINER_HOST", "localhost"),
			StainerPort:     getEnvInt("HL7_STAINER_PORT", 3000),
			SendTimeout:     getEnvDuration("HL7_SEND_TIMEOUT", 10*time.Second),
			SendingApp:      getEnv("HL7_SENDING_APP", "LIS"),
			SendingFacility: getEnv("HL7_SENDING_FACILITY", "Gulf"),
			ReceivingApp:    getEnv("HL7_RECEIVING_APP", "ANATRAZ"),
		},
		Routing: RoutingConfig{
			StepCacheTTL: getEnvDuration("ROUTING_STEP_CACHE_TTL", 1*time.Minute),
		},
	}

	return cfg, cfg.Validate()
}

// Validate checks if configuration is valid
func (c *Config) Validate() error {
	if c.Service.Port < 1 || c.Service.Port > 65535 {
		return fmt.Errorf("invalid port: %d", c.Service.Port)
	}

	if c.HL7.ListenPort < 1 || c.HL7.ListenPort > 65535 {
		return fmt.Errorf("invalid HL7 listen port: %d", c.HL7.ListenPort)
	}

	if c.HL7.ListenerWorkers < 1 || c.HL7.ProcessWorkers < 1 {
		return fmt.Errorf("HL7 worker pool sizes must be >= 1")
	}

	if c.Database.Host == "" {
		return fmt.Errorf("database host is required")
	}

	if c.Database.MaxConns < c.Database.MinConns {
		return fmt.Errorf("max_conns must be >= min_conns")
	}

	return nil
}

// DatabaseURL returns the PostgreSQL connection string
func (c *Config) DatabaseURL() string {
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%d/%s?sslmode=disable",
		c.Database.User,
		c.Database.Password,
		c.Database.Host,
		c.Database.Port,
		c.Database.Database,
	)
}

// RedisAddr returns the Redis host:port address
func (c *Config) RedisAddr() string {
	return fmt.Sprintf("%s:%d", c.Redis.Host, c.Redis.Port)
}

// ListenAddr returns the MLLP listener bind address
func (c *HL7Config) ListenAddr() string {
	return fmt.Sprintf("%s:%d", c.ListenHost, c.ListenPort)
}

// StainerAddr returns the outbound stainer device address
func (c *HL7Config) StainerAddr() string {
	return fmt.Sprintf("%s:%d", c.StainerHost, c.StainerPort)
}

// Helper functions

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolVal, err := strconv.ParseBool(value); err == nil {
			return boolVal
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}
