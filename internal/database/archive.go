package database

import (
	"context"
	"fmt"
	"time"

	"smc-engine/config"
	"smc-engine/internal/smc"
)

// History query bounds
const (
	DefaultHistoryLimit = 100
	MaxHistoryLimit     = 1000
)

// Archive persists completed analyses and their opportunities
type Archive interface {
	SaveAnalysis(ctx context.Context, a *smc.Analysis) error
	Analyses(ctx context.Context, symbol string, limit int) ([]*AnalysisRecord, error)
	History(ctx context.Context, symbol string, limit int) ([]*OpportunityRecord, error)
	Prune(ctx context.Context, before time.Time) (int64, error)
	HealthCheck(ctx context.Context) error
	Close() error
}

// NoopArchive is used when archiving is disabled
type NoopArchive struct{}

func NewNoopArchive() *NoopArchive { return &NoopArchive{} }

func (NoopArchive) SaveAnalysis(context.Context, *smc.Analysis) error { return nil }
func (NoopArchive) Analyses(context.Context, string, int) ([]*AnalysisRecord, error) {
	return nil, nil
}
func (NoopArchive) History(context.Context, string, int) ([]*OpportunityRecord, error) {
	return nil, nil
}
func (NoopArchive) Prune(context.Context, time.Time) (int64, error) { return 0, nil }
func (NoopArchive) HealthCheck(context.Context) error { return nil }
func (NoopArchive) Close() error { return nil }

// Open returns the archive selected by cfg.Driver, running migrations
func Open(ctx context.Context, cfg config.ArchiveConfig, db config.DatabaseConfig) (Archive, error) {
	switch cfg.Driver {
	case "postgres":
		pg, err := NewDB(Config{
			Host:     db.Host,
			Port:     db.Port,
			User:     db.User,
			Password: db.Password,
			Database: db.Database,
			SSLMode:  db.SSLMode,
			MaxConns: int32(db.MaxConns),
		})
		if err != nil {
			return nil, err
		}
		if err := pg.RunMigrations(ctx); err != nil {
			pg.Close()
			return nil, err
		}
		return NewRepository(pg), nil
	case "sqlite":
		return NewSQLiteArchive(cfg.SQLitePath)
	case "none", "":
		return NewNoopArchive(), nil
	default:
		return nil, fmt.Errorf("unknown archive driver %q", cfg.Driver)
	}
}

func historyLimit(limit int) int {
	switch {
	case limit <= 0:
		return DefaultHistoryLimit
	case limit > MaxHistoryLimit:
		return MaxHistoryLimit
	}
	return limit
}
