package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/c10r/freetool-sub006/pkg/observability"
)

// Config holds all application configuration
type Config struct {
	// Server configuration
	Server ServerConfig

	// Database configuration
	Database DatabaseConfig

	// Redis configuration (optional mapping cache)
	Redis RedisConfig

	// Authz configuration (external relationship store)
	Authz AuthzConfig

	// Provisioning configuration
	Provisioning ProvisioningConfig

	// Observability configuration
	Observability ObservabilityConfig
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Host            string
	Port            string
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	IdleTimeout     time.Duration
	ShutdownTimeout time.Duration

	// Health/metrics server (separate port for k8s probes)
	HealthPort string
}

// DatabaseConfig holds PostgreSQL configuration
type DatabaseConfig struct {
	URL          string
	MaxOpenConns int
	MaxIdleConns int
	ConnLifetime time.Duration
}

// RedisConfig holds Redis cache configuration. The cache is optional; an
// empty Addr disables it.
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
	CacheTTL time.Duration
}

// AuthzConfig holds the relationship store configuration
type AuthzConfig struct {
	// APIURL is the base URL of the OpenFGA-compatible server.
	APIURL string

	// StoreName is looked up (or created) at startup.
	StoreName string

	// HandleTTL bounds how long resolved store/model ids are reused before
	// re-resolution. Zero means resolve once and never refresh.
	HandleTTL time.Duration
}

// ProvisioningConfig holds the identity provisioning surface
type ProvisioningConfig struct {
	// OrgAdminEmail, when set, grants the organization-admin relation to the
	// user with this email on login.
	OrgAdminEmail string

	// OrgUnitKeyPrefix marks org-unit group keys, e.g. "ou:/Eng/Backend".
	OrgUnitKeyPrefix string

	// OrganizationID is the default organization id used in tuples.
	OrganizationID string
}

// ObservabilityConfig holds observability settings
type ObservabilityConfig struct {
	LogLevel       observability.LogLevel
	MetricsEnabled bool
}

// LoadConfig loads configuration from environment variables
func LoadConfig() (*Config, error) {
	cfg := &Config{
		Server: ServerConfig{
			Host:            getEnv("FREETOOL_HOST", "0.0.0.0"),
			Port:            getEnv("FREETOOL_PORT", "8080"),
			ReadTimeout:     getEnvDuration("FREETOOL_READ_TIMEOUT", 15*time.Second),
			WriteTimeout:    getEnvDuration("FREETOOL_WRITE_TIMEOUT", 15*time.Second),
			IdleTimeout:     getEnvDuration("FREETOOL_IDLE_TIMEOUT", 60*time.Second),
			ShutdownTimeout: getEnvDuration("FREETOOL_SHUTDOWN_TIMEOUT", 30*time.Second),
			HealthPort:      getEnv("FREETOOL_HEALTH_PORT", "9090"),
		},
		Database: DatabaseConfig{
			URL:          getEnv("FREETOOL_POSTGRES_URL", ""),
			MaxOpenConns: getEnvInt("FREETOOL_POSTGRES_MAX_CONNS", 25),
			MaxIdleConns: getEnvInt("FREETOOL_POSTGRES_IDLE_CONNS", 5),
			ConnLifetime: getEnvDuration("FREETOOL_POSTGRES_CONN_LIFETIME", 30*time.Minute),
		},
		Redis: RedisConfig{
			Addr:     getEnv("FREETOOL_REDIS_ADDR", ""),
			Password: getEnv("FREETOOL_REDIS_PASSWORD", ""),
			DB:       getEnvInt("FREETOOL_REDIS_DB", 0),
			CacheTTL: getEnvDuration("FREETOOL_CACHE_TTL", 5*time.Minute),
		},
		Authz: AuthzConfig{
			APIURL:    getEnv("FREETOOL_FGA_API_URL", ""),
			StoreName: getEnv("FREETOOL_FGA_STORE_NAME", "freetool"),
			HandleTTL: getEnvDuration("FREETOOL_FGA_HANDLE_TTL", 0),
		},
		Provisioning: ProvisioningConfig{
			OrgAdminEmail:    getEnv("FREETOOL_ORG_ADMIN_EMAIL", ""),
			OrgUnitKeyPrefix: getEnv("FREETOOL_ORG_UNIT_KEY_PREFIX", "ou"),
			OrganizationID:   getEnv("FREETOOL_ORGANIZATION_ID", "default"),
		},
		Observability: ObservabilityConfig{
			LogLevel:       observability.ParseLogLevel(getEnv("FREETOOL_LOG_LEVEL", "info")),
			MetricsEnabled: getEnvBool("FREETOOL_METRICS_ENABLED", true),
		},
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return cfg, nil
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	if c.Server.Port == "" {
		return fmt.Errorf("server port is required")
	}
	if c.Server.HealthPort == "" {
		return fmt.Errorf("health port is required")
	}
	if c.Server.Port == c.Server.HealthPort {
		return fmt.Errorf("server port and health port must be different")
	}

	if c.Database.URL == "" {
		return fmt.Errorf("postgres URL is required")
	}

	if c.Authz.APIURL == "" {
		return fmt.Errorf("FGA API URL is required")
	}
	if c.Authz.StoreName == "" {
		return fmt.Errorf("FGA store name is required")
	}

	if c.Provisioning.OrgUnitKeyPrefix == "" {
		return fmt.Errorf("org-unit key prefix is required")
	}
	if c.Provisioning.OrganizationID == "" {
		return fmt.Errorf("organization id is required")
	}

	return nil
}

// CacheEnabled reports whether the Redis mapping cache is configured.
func (c *Config) CacheEnabled() bool {
	return c.Redis.Addr != ""
}

// getEnv returns an environment variable value or a default
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvBool returns a boolean environment variable or a default
func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		return strings.ToLower(value) == "true" || value == "1"
	}
	return defaultValue
}

// getEnvInt returns an integer environment variable or a default
func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

// getEnvDuration returns a duration environment variable or a default
func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}
