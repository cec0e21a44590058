// Package config provides application configuration management from environment variables.
//
// # Overview
//
// This package loads and validates configuration from environment variables with
// sensible defaults for all settings.
//
// # Configuration Structure
//
// Server settings:
//
//	FREETOOL_HOST="0.0.0.0"
//	FREETOOL_PORT="8080"
//	FREETOOL_HEALTH_PORT="9090"
//	FREETOOL_READ_TIMEOUT="15s"
//	FREETOOL_WRITE_TIMEOUT="15s"
//
// Database settings:
//
//	FREETOOL_POSTGRES_URL="postgres://localhost/freetool"
//	FREETOOL_POSTGRES_MAX_CONNS="25"
//
// Cache settings (optional; empty addr disables the cache):
//
//	FREETOOL_REDIS_ADDR="localhost:6379"
//	FREETOOL_CACHE_TTL="5m"
//
// Relationship store settings:
//
//	FREETOOL_FGA_API_URL="http://localhost:8081"
//	FREETOOL_FGA_STORE_NAME="freetool"
//	FREETOOL_FGA_HANDLE_TTL="0"  # 0 = resolve once, never refresh
//
// Provisioning settings:
//
//	FREETOOL_ORG_ADMIN_EMAIL="admin@co.com"  # optional
//	FREETOOL_ORG_UNIT_KEY_PREFIX="ou"
//	FREETOOL_ORGANIZATION_ID="default"
//
// Observability settings:
//
//	FREETOOL_LOG_LEVEL="info"  # debug, info, warn, error
//	FREETOOL_METRICS_ENABLED="true"
//
// # Usage Example
//
// Load configuration:
//
//	cfg, err := config.LoadConfig()
//	if err != nil {
//		log.Fatal(err)
//	}
//
//	fmt.Printf("Server: %s:%s\n", cfg.Server.Host, cfg.Server.Port)
//	fmt.Printf("Log level: %s\n", cfg.Observability.LogLevel)
package config
