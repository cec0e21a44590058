// Package observability provides the logging, metrics, health and shutdown
// plumbing shared by every service component.
//
// Logging is structured JSON over stdlib slog, wrapped in a Logger that
// supports field chaining:
//
//	logger := observability.NewLogger(observability.InfoLevel, os.Stdout)
//	logger.WithField("email", email).Info("user provisioned")
//
// Metrics are Prometheus collectors under the freetool_ namespace, created
// once at startup and passed by pointer:
//
//	registry := prometheus.NewRegistry()
//	metrics := observability.NewMetrics(registry)
//	metrics.ProvisioningTotal.WithLabelValues("created").Inc()
//
// HealthChecker serves /healthz (liveness) and /readyz (readiness). The
// database is mandatory; redis and any check registered with AddCheck as
// degraded-only lower readiness to "degraded" without failing the probe.
//
// ShutdownManager drains the HTTP servers and runs registered cleanup
// functions on SIGINT/SIGTERM with a bounded timeout.
package observability
