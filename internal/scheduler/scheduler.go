// Package scheduler runs the retention jobs on cron schedules.
package scheduler

import (
	"context"
	"fmt"
	"time"

	"smc-engine/internal/logging"

	"github.com/robfig/cron/v3"
)

// Evictor drops symbols whose state is older than a cutoff
type Evictor interface {
	EvictStale(cutoff time.Time) []string
}

// Pruner deletes archived rows older than a cutoff
type Pruner interface {
	Prune(ctx context.Context, before time.Time) (int64, error)
}

// SnapshotDeleter removes cached snapshots of evicted symbols
type SnapshotDeleter interface {
	Delete(ctx context.Context, symbols ...string) error
}

// Scheduler manages all cron tasks.
type Scheduler struct {
	Cron       *cron.Cron
	Engine     Evictor
	Archive    Pruner
	Cache      SnapshotDeleter
	Retention  time.Duration
	StaleAfter time.Duration
	Ctx        context.Context

	now    func() time.Time
	logger *logging.Logger
}

// NewScheduler creates a new Scheduler. archive and cache may be nil.
func NewScheduler(ctx context.Context, engine Evictor, archive Pruner, cache SnapshotDeleter, retention, staleAfter time.Duration) *Scheduler {
	return &Scheduler{
		Cron:       cron.New(),
		Engine:     engine,
		Archive:    archive,
		Cache:      cache,
		Retention:  retention,
		StaleAfter: staleAfter,
		Ctx:        ctx,
		now:        time.Now,
		logger:     logging.WithComponent("scheduler"),
	}
}

// RegisterAll registers the prune and evict tasks. An empty spec skips its task.
func (s *Scheduler) RegisterAll(pruneSpec, evictSpec string) error {
	if pruneSpec != "" && s.Archive != nil && s.Retention > 0 {
		if _, err := s.Cron.AddFunc(pruneSpec, func() { s.RunPruneNow() }); err != nil {
			return fmt.Errorf("register prune task: %w", err)
		}
	}
	if evictSpec != "" && s.Engine != nil && s.StaleAfter > 0 {
		if _, err := s.Cron.AddFunc(evictSpec, func() { s.RunEvictNow() }); err != nil {
			return fmt.Errorf("register evict task: %w", err)
		}
	}
	return nil
}

// Start starts the cron scheduler.
func (s *Scheduler) Start() {
	s.Cron.Start()
	s.logger.Info("Scheduler started", "jobs", len(s.Cron.Entries()))
}

// Stop stops the cron scheduler and waits for running jobs.
func (s *Scheduler) Stop() {
	<-s.Cron.Stop().Done()
	s.logger.Info("Scheduler stopped")
}

// RunPruneNow deletes archive rows older than the retention window
func (s *Scheduler) RunPruneNow() (int64, error) {
	log := logging.JobContext("archive_prune")
	cutoff := s.now().Add(-s.Retention)

	start := time.Now()
	removed, err := s.Archive.Prune(s.Ctx, cutoff)
	if err != nil {
		log.WithError(err).Error("Archive prune failed", "cutoff", cutoff)
		return removed, err
	}

	log.WithDuration(time.Since(start)).Info("Archive pruned", "removed", removed, "cutoff", cutoff)
	return removed, nil
}

// RunEvictNow evicts symbols not analysed within StaleAfter and drops their
// cached snapshots
func (s *Scheduler) RunEvictNow() []string {
	log := logging.JobContext("evict_stale")
	cutoff := s.now().Add(-s.StaleAfter)

	evicted := s.Engine.EvictStale(cutoff)
	if len(evicted) == 0 {
		log.Debug("No stale symbols", "cutoff", cutoff)
		return evicted
	}

	if s.Cache != nil {
		if err := s.Cache.Delete(s.Ctx, evicted...); err != nil {
			log.WithError(err).Warn("Failed to drop cached snapshots", "symbols", evicted)
		}
	}

	log.Info("Evicted stale symbols", "count", len(evicted), "symbols", evicted)
	return evicted
}
