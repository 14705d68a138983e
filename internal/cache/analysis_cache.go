package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"smc-engine/internal/logging"
	"smc-engine/internal/smc"
)

// Key layout for analysis snapshots
const (
	PrefixAnalysis  = "smc:analysis:%s"
	PatternAnalysis = "smc:analysis:*"
)

// DefaultAnalysisTTL is used when no TTL is configured
const DefaultAnalysisTTL = time.Hour

// Backend is the subset of CacheService the snapshot cache needs
type Backend interface {
	IsHealthy() bool
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error
	Delete(ctx context.Context, keys ...string) error
	DeletePattern(ctx context.Context, pattern string) error
}

var _ Backend = (*CacheService)(nil)

// AnalysisKey generates the cache key for a symbol's latest analysis.
func AnalysisKey(symbol string) string {
	return fmt.Sprintf(PrefixAnalysis, strings.ToUpper(symbol))
}

// AnalysisCache stores the latest Analysis per symbol as JSON
type AnalysisCache struct {
	backend Backend
	ttl     time.Duration
}

// NewAnalysisCache wraps backend. A nil backend yields a cache that always
// reports ErrCacheUnavailable.
func NewAnalysisCache(backend Backend, ttl time.Duration) *AnalysisCache {
	if ttl <= 0 {
		ttl = DefaultAnalysisTTL
	}
	return &AnalysisCache{backend: backend, ttl: ttl}
}

// Healthy reports whether the backend is reachable
func (c *AnalysisCache) Healthy() bool {
	return c != nil && c.backend != nil && c.backend.IsHealthy()
}

// Put writes a snapshot of a.
func (c *AnalysisCache) Put(ctx context.Context, a *smc.Analysis) error {
	if c == nil || c.backend == nil {
		return ErrCacheUnavailable
	}
	if a == nil || a.Symbol == "" {
		return smc.ErrSymbolRequired
	}

	data, err := json.Marshal(a)
	if err != nil {
		return fmt.Errorf("failed to marshal analysis: %w", err)
	}

	key := AnalysisKey(a.Symbol)
	if err := c.backend.Set(ctx, key, data, c.ttl); err != nil {
		logging.CacheContext("put", key).WithError(err).Debug("Snapshot not cached")
		return err
	}
	return nil
}

// Get returns the cached snapshot for symbol. A missing entry returns ErrCacheMiss.
func (c *AnalysisCache) Get(ctx context.Context, symbol string) (*smc.Analysis, error) {
	if c == nil || c.backend == nil {
		return nil, ErrCacheUnavailable
	}

	key := AnalysisKey(symbol)
	data, err := c.backend.Get(ctx, key)
	if err != nil {
		return nil, err
	}

	var a smc.Analysis
	if err := json.Unmarshal([]byte(data), &a); err != nil {
		// Drop undecodable entries so the next Put replaces them
		if delErr := c.backend.Delete(ctx, key); delErr != nil {
			logging.CacheContext("get", key).WithError(delErr).Warn("Failed to drop corrupt snapshot")
		}
		return nil, fmt.Errorf("failed to unmarshal cached analysis: %w", err)
	}
	return &a, nil
}

// Delete removes the snapshots of the given symbols.
func (c *AnalysisCache) Delete(ctx context.Context, symbols ...string) error {
	if c == nil || c.backend == nil {
		return ErrCacheUnavailable
	}
	keys := make([]string, len(symbols))
	for i, s := range symbols {
		keys[i] = AnalysisKey(s)
	}
	return c.backend.Delete(ctx, keys...)
}

// Clear removes every analysis snapshot.
func (c *AnalysisCache) Clear(ctx context.Context) error {
	if c == nil || c.backend == nil {
		return ErrCacheUnavailable
	}
	return c.backend.DeletePattern(ctx, PatternAnalysis)
}

// IsMiss reports whether err means the entry was absent or the cache is down
func IsMiss(err error) bool {
	return errors.Is(err, ErrCacheMiss) || errors.Is(err, ErrCacheUnavailable)
}
