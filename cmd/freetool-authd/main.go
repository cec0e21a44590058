package main

import (
	"context"
	"database/sql"
	"encoding/json"
	"log"
	"net/http"
	"os"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/gorilla/mux"
	_ "github.com/lib/pq"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/c10r/freetool-sub006/pkg/authz"
	"github.com/c10r/freetool-sub006/pkg/config"
	"github.com/c10r/freetool-sub006/pkg/contextkeys"
	"github.com/c10r/freetool-sub006/pkg/identity"
	"github.com/c10r/freetool-sub006/pkg/middleware"
	"github.com/c10r/freetool-sub006/pkg/observability"
	"github.com/c10r/freetool-sub006/pkg/spaces"
)

func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	logger := observability.NewLogger(cfg.Observability.LogLevel, os.Stdout)
	logger.Info("Starting freetool-authd")

	// Connect to database
	db, err := sql.Open("postgres", cfg.Database.URL)
	if err != nil {
		logger.WithError(err).Error("Failed to open database")
		os.Exit(1)
	}
	db.SetMaxOpenConns(cfg.Database.MaxOpenConns)
	db.SetMaxIdleConns(cfg.Database.MaxIdleConns)
	db.SetConnMaxLifetime(cfg.Database.ConnLifetime)

	ctx := context.Background()
	if err := db.PingContext(ctx); err != nil {
		logger.WithError(err).Error("Failed to ping database")
		os.Exit(1)
	}

	// Run migrations
	if err := identity.RunMigrations(ctx, db); err != nil {
		logger.WithError(err).Error("Identity migrations failed")
		os.Exit(1)
	}
	if err := spaces.RunMigrations(ctx, db); err != nil {
		logger.WithError(err).Error("Spaces migrations failed")
		os.Exit(1)
	}

	// Metrics
	var registry *prometheus.Registry
	var metrics *observability.Metrics
	if cfg.Observability.MetricsEnabled {
		registry = prometheus.NewRegistry()
		metrics = observability.NewMetrics(registry)
	}

	// Optional Redis mapping cache
	var redisClient *redis.Client
	if cfg.CacheEnabled() {
		redisClient = redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		if err := redisClient.Ping(ctx).Err(); err != nil {
			// The cache degrades gracefully; a cold start without it is fine.
			logger.WithError(err).Warn("Redis unreachable, mapping cache will pass through")
		}
	}

	// Relationship store: store and model are resolved up front. Failing here
	// means no login can be authorized, so startup aborts.
	fga := authz.NewFGAClient(cfg.Authz.APIURL, cfg.Authz.StoreName, cfg.Authz.HandleTTL, logger, metrics)
	if err := fga.Initialize(ctx); err != nil {
		logger.WithError(err).Error("Failed to initialize relationship store")
		os.Exit(1)
	}

	// Stores
	userRepo := identity.NewPostgresRepository(db)
	spaceRepo := spaces.NewPostgresRepository(db)

	var mappingStore spaces.MappingStore = spaces.NewPostgresMappingStore(db)
	if redisClient != nil {
		mappingStore = spaces.NewRedisMappingCache(mappingStore, redisClient, cfg.Redis.CacheTTL, metrics)
	}

	// Provisioning pipeline
	reconciler := spaces.NewReconciler(spaceRepo, mappingStore, fga, logger, metrics)
	orgUnits := spaces.NewOrgUnitProvisioner(spaceRepo, mappingStore, fga,
		cfg.Provisioning.OrgUnitKeyPrefix, cfg.Provisioning.OrganizationID, logger)
	resolver := identity.NewGroupKeyResolver(cfg.Provisioning.OrgUnitKeyPrefix)

	provisioner := identity.NewProvisioner(userRepo, resolver, fga, orgUnits, reconciler,
		identity.ProvisionerConfig{
			OrgAdminEmail:  cfg.Provisioning.OrgAdminEmail,
			OrganizationID: cfg.Provisioning.OrganizationID,
		}, logger, metrics)

	// API server
	router := mux.NewRouter()
	router.Use(observability.RecoveryMiddleware(logger))
	if metrics != nil {
		router.Use(observability.HTTPMetricsMiddleware(metrics))
	}

	identityMW := middleware.NewIdentityMiddleware(provisioner, logger)
	api := router.PathPrefix("/api/v1").Subrouter()
	api.Use(identityMW.Handler)
	api.HandleFunc("/me", meHandler).Methods(http.MethodGet)

	apiServer := &http.Server{
		Addr:         cfg.Server.Host + ":" + cfg.Server.Port,
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	// Health and metrics server on a separate port
	checker := observability.NewHealthChecker(db, redisClient)
	checker.AddCheck("authz", fga.Ping, true)

	healthMux := http.NewServeMux()
	observability.RegisterHealthRoutes(healthMux, checker)
	if registry != nil {
		observability.RegisterMetricsEndpoint(healthMux, registry)
	}

	healthServer := &http.Server{
		Addr:         cfg.Server.Host + ":" + cfg.Server.HealthPort,
		Handler:      healthMux,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	if metrics != nil {
		go func() {
			defer observability.RecoverPanic(logger, "db stats sampler")
			sampleDBStats(ctx, db, metrics)
		}()
	}

	go func() {
		logger.WithField("addr", apiServer.Addr).Info("API server listening")
		if err := apiServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.WithError(err).Error("API server failed")
			os.Exit(1)
		}
	}()

	go func() {
		logger.WithField("addr", healthServer.Addr).Info("Health server listening")
		if err := healthServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.WithError(err).Error("Health server failed")
			os.Exit(1)
		}
	}()

	err = observability.GracefulShutdown(logger, []*http.Server{apiServer, healthServer},
		func(context.Context) error { return db.Close() },
		func(context.Context) error {
			if redisClient != nil {
				return redisClient.Close()
			}
			return nil
		},
	)
	if err != nil {
		logger.WithError(err).Error("Shutdown finished with errors")
		os.Exit(1)
	}
}

// meHandler echoes the provisioned identity back to the caller.
func meHandler(w http.ResponseWriter, r *http.Request) {
	userID, ok := contextkeys.GetUserID(r.Context())
	if !ok {
		w.WriteHeader(http.StatusUnauthorized)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]string{
		"user_id": userID.String(),
		"email":   contextkeys.GetClaimEmail(r.Context()),
	})
}

// sampleDBStats feeds connection pool gauges every 15 seconds.
func sampleDBStats(ctx context.Context, db *sql.DB, metrics *observability.Metrics) {
	ticker := time.NewTicker(15 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			metrics.ObserveDBStats(db.Stats())
		}
	}
}
