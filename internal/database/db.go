package database

import (
	"context"
	"fmt"
	"time"

	"smc-engine/internal/logging"

	"github.com/jackc/pgx/v5/pgxpool"
)

// DB wraps the PostgreSQL connection pool
type DB struct {
	Pool *pgxpool.Pool
}

// Config holds database configuration
type Config struct {
	Host     string
	Port     int
	User     string
	Password string
	Database string
	SSLMode  string
	MaxConns int32
}

// NewDB creates a new database connection
func NewDB(cfg Config) (*DB, error) {
	// Build connection string
	dsn := fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		cfg.Host, cfg.Port, cfg.User, cfg.Password, cfg.Database, cfg.SSLMode,
	)

	// Parse connection string
	poolConfig, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("unable to parse database config: %w", err)
	}

	// Configure connection pool
	poolConfig.MaxConns = 10
	if cfg.MaxConns > 0 {
		poolConfig.MaxConns = cfg.MaxConns
	}
	poolConfig.MinConns = 1
	poolConfig.MaxConnLifetime = time.Hour
	poolConfig.MaxConnIdleTime = 30 * time.Minute
	poolConfig.HealthCheckPeriod = time.Minute

	// Create connection pool
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, fmt.Errorf("unable to create connection pool: %w", err)
	}

	// Test connection
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("unable to ping database: %w", err)
	}

	logging.DatabaseContext("connect", "").Info("Connected to PostgreSQL", "database", cfg.Database)

	return &DB{Pool: pool}, nil
}

// Close closes the database connection
func (db *DB) Close() {
	if db.Pool != nil {
		db.Pool.Close()
		logging.DatabaseContext("close", "").Info("Database connection closed")
	}
}

// RunMigrations executes database migrations
func (db *DB) RunMigrations(ctx context.Context) error {
	log := logging.DatabaseContext("migrate", "")
	log.Info("Running database migrations")

	migrations := []string{
		// One row per analysis run
		`CREATE TABLE IF NOT EXISTS smc_analyses (
			id BIGSERIAL PRIMARY KEY,
			symbol VARCHAR(32) NOT NULL,
			timeframe VARCHAR(16) NOT NULL,
			analyzed_at TIMESTAMPTZ NOT NULL,
			trend VARCHAR(16) NOT NULL,
			phase VARCHAR(16) NOT NULL,
			flow_direction VARCHAR(16) NOT NULL,
			confidence DOUBLE PRECISION NOT NULL,
			recommendation TEXT NOT NULL,
			opportunities INTEGER NOT NULL DEFAULT 0,
			payload JSONB NOT NULL,
			created_at TIMESTAMPTZ DEFAULT CURRENT_TIMESTAMP
		)`,
		`CREATE INDEX IF NOT EXISTS idx_smc_analyses_symbol_time ON smc_analyses(symbol, analyzed_at DESC)`,
		`CREATE INDEX IF NOT EXISTS idx_smc_analyses_analyzed_at ON smc_analyses(analyzed_at)`,

		// Opportunity ids are deterministic, so re-analysis upserts
		`CREATE TABLE IF NOT EXISTS smc_opportunities (
			id VARCHAR(64) PRIMARY KEY,
			symbol VARCHAR(32) NOT NULL,
			type VARCHAR(32) NOT NULL,
			direction VARCHAR(16) NOT NULL,
			entry DOUBLE PRECISION NOT NULL,
			stop_loss DOUBLE PRECISION NOT NULL,
			take_profit DOUBLE PRECISION NOT NULL,
			risk_reward DOUBLE PRECISION NOT NULL,
			probability DOUBLE PRECISION NOT NULL,
			confluence JSONB NOT NULL DEFAULT '[]',
			analyzed_at TIMESTAMPTZ NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_smc_opportunities_symbol_time ON smc_opportunities(symbol, analyzed_at DESC)`,
		`CREATE INDEX IF NOT EXISTS idx_smc_opportunities_analyzed_at ON smc_opportunities(analyzed_at)`,
	}

	// Execute migrations
	for i, migration := range migrations {
		if _, err := db.Pool.Exec(ctx, migration); err != nil {
			return fmt.Errorf("migration %d failed: %w", i+1, err)
		}
	}

	log.Info("Database migrations completed")
	return nil
}

// HealthCheck performs a database health check
func (db *DB) HealthCheck(ctx context.Context) error {
	return db.Pool.Ping(ctx)
}
