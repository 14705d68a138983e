package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"smc-engine/config"
	"smc-engine/internal/api"
	"smc-engine/internal/cache"
	"smc-engine/internal/database"
	"smc-engine/internal/events"
	"smc-engine/internal/logging"
	"smc-engine/internal/scheduler"
	"smc-engine/internal/smc"
	"smc-engine/internal/vault"

	"github.com/gin-gonic/gin"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	// Initialize structured logging
	logger := logging.New(&logging.Config{
		Level:       cfg.LoggingConfig.Level,
		Output:      cfg.LoggingConfig.Output,
		JSONFormat:  cfg.LoggingConfig.JSONFormat,
		IncludeFile: cfg.LoggingConfig.IncludeFile,
		Component:   "main",
	})
	logging.SetDefault(logger)
	logger.Info("Structured logging initialized")

	ctx, stop := context.WithCancel(context.Background())
	defer stop()

	// Pull infrastructure secrets before any connection is opened
	if cfg.VaultConfig.Enabled {
		vaultClient, err := vault.NewClient(cfg.VaultConfig)
		if err != nil {
			logger.WithError(err).Fatal("Failed to create Vault client")
		}
		if err := vaultClient.Apply(ctx, cfg); err != nil {
			logger.WithError(err).Fatal("Failed to load secrets from Vault")
		}
		logger.Info("Secrets loaded from Vault", "address", cfg.VaultConfig.Address)
	}

	// Initialize event bus
	eventBus := events.NewEventBus()
	logger.Info("Event bus initialized")

	engine := smc.NewEngine(cfg.EngineConfig.Params,
		smc.WithObserver(eventBus),
		smc.WithOpportunityLogSize(cfg.EngineConfig.OpportunityLogSize),
	)

	// Redis snapshot cache is optional; the API falls back to engine state
	var analysisCache *cache.AnalysisCache
	var snapshotDeleter scheduler.SnapshotDeleter
	if cfg.RedisConfig.Enabled {
		cacheService, err := cache.NewCacheService(cfg.RedisConfig)
		if err != nil {
			logger.WithError(err).Warn("Redis cache disabled")
		} else {
			defer cacheService.Close()
			analysisCache = cache.NewAnalysisCache(cacheService, cfg.RedisConfig.TTL())
			snapshotDeleter = analysisCache
		}
	}

	archive, err := database.Open(ctx, cfg.ArchiveConfig, cfg.DatabaseConfig)
	if err != nil {
		logger.WithError(err).Fatal("Failed to open analysis archive", "driver", cfg.ArchiveConfig.Driver)
	}
	defer archive.Close()
	logger.Info("Analysis archive ready", "driver", cfg.ArchiveConfig.Driver)

	var sched *scheduler.Scheduler
	if cfg.SchedulerConfig.Enabled {
		sched = scheduler.NewScheduler(ctx, engine, archive, snapshotDeleter,
			cfg.ArchiveConfig.Retention(), cfg.SchedulerConfig.StaleAfter())
		if err := sched.RegisterAll(cfg.SchedulerConfig.PruneSpec, cfg.SchedulerConfig.EvictSpec); err != nil {
			logger.WithError(err).Fatal("Failed to register scheduled jobs")
		}
		sched.Start()
	}

	if os.Getenv("GIN_MODE") == "" {
		gin.SetMode(gin.ReleaseMode)
	}
	server := api.NewServer(cfg.ServerConfig, cfg.ScannerConfig, engine, analysisCache, archive, eventBus)

	// Start web server in a goroutine
	go func() {
		if err := server.Start(); err != nil {
			logger.WithError(err).Fatal("Failed to start web server")
		}
	}()

	logger.Info("SMC engine started",
		"host", cfg.ServerConfig.Host,
		"port", cfg.ServerConfig.Port,
		"cache", analysisCache != nil,
		"scheduler", sched != nil,
	)

	// Wait for interrupt signal
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	<-sigChan

	logger.Info("Shutting down")

	// Graceful shutdown
	timeout := time.Duration(cfg.ServerConfig.ShutdownTimeout) * time.Second
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.WithError(err).Error("Error shutting down web server")
	}
	if sched != nil {
		sched.Stop()
	}
	eventBus.Close()
	stop()

	logger.Info("Shutdown complete")
}
